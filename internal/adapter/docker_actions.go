package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/google/shlex"

	"github.com/theredcat/heimdall/internal/domain"
	"github.com/theredcat/heimdall/internal/stream"
)

// ErrEmptyCommand is returned when a command string has no words
var ErrEmptyCommand = errors.New("empty command")

// StopHost stops the container and waits until it is no longer running
func (d *DockerSource) StopHost(ctx context.Context, id string) (domain.ActionStatus, error) {
	if err := d.client.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return domain.ActionFail, fmt.Errorf("stop %s: %w", id, classify(err))
	}

	waitC, errC := d.client.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case <-waitC:
		return domain.ActionSuccess, nil
	case err := <-errC:
		return domain.ActionFail, fmt.Errorf("wait %s: %w", id, classify(err))
	case <-ctx.Done():
		return domain.ActionFail, fmt.Errorf("wait %s: %w", id, classify(ctx.Err()))
	}
}

// StartHost starts the container
func (d *DockerSource) StartHost(ctx context.Context, id string) (domain.ActionStatus, error) {
	if err := d.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return domain.ActionFail, fmt.Errorf("start %s: %w", id, classify(err))
	}
	return domain.ActionSuccess, nil
}

// PauseHost freezes the container's processes
func (d *DockerSource) PauseHost(ctx context.Context, id string) (domain.ActionStatus, error) {
	if err := d.client.ContainerPause(ctx, id); err != nil {
		return domain.ActionFail, fmt.Errorf("pause %s: %w", id, classify(err))
	}
	return domain.ActionSuccess, nil
}

// DeleteHost is not offered for containers
func (d *DockerSource) DeleteHost(context.Context, string) (domain.ActionStatus, error) {
	return domain.ActionNotSupported, nil
}

// GetLogs returns the container's stdout and stderr lines, optionally only
// those after since
func (d *DockerSource) GetLogs(ctx context.Context, id string, since time.Time) ([]domain.LogLine, error) {
	inspect, err := d.client.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", id, classify(err))
	}
	tty := inspect.Config != nil && inspect.Config.Tty

	opts := container.LogsOptions{ShowStdout: true, ShowStderr: true, Timestamps: true}
	if !since.IsZero() {
		opts.Since = since.UTC().Format(time.RFC3339Nano)
	}

	rc, err := d.client.ContainerLogs(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("logs %s: %w", id, classify(err))
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read logs %s: %w", id, classify(err))
	}

	// A TTY container writes a single raw stream.
	if tty {
		return parseLogLines(domain.StreamStdout, raw), nil
	}

	out, err := stream.Demux(raw)
	if err != nil {
		return nil, fmt.Errorf("decode logs %s: %w", id, err)
	}

	var lines []domain.LogLine
	for _, seg := range out.Segments {
		lines = append(lines, parseLogLines(streamType(seg.Channel), out.Bytes(seg))...)
	}
	return lines, nil
}

// ExecuteCommand runs command inside the container and returns its decoded output
func (d *DockerSource) ExecuteCommand(ctx context.Context, id, command string) (*domain.CommandOutput, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	created, err := d.client.ContainerExecCreate(ctx, id, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          args,
	})
	if err != nil {
		return nil, fmt.Errorf("exec create %s: %w", id, classify(err))
	}

	resp, err := d.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec start %s: %w", created.ID, classify(err))
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp.Reader)
	if err != nil {
		return nil, fmt.Errorf("read exec output %s: %w", created.ID, classify(err))
	}

	out, err := stream.Demux(raw)
	if err != nil {
		return nil, fmt.Errorf("decode exec output %s: %w", created.ID, err)
	}
	return commandOutput(out), nil
}

func commandOutput(out *stream.Output) *domain.CommandOutput {
	result := &domain.CommandOutput{
		Output: out.Data,
		Chunks: make([]domain.OutputChunk, 0, len(out.Segments)),
	}
	for _, seg := range out.Segments {
		result.Chunks = append(result.Chunks, domain.OutputChunk{
			Stream: streamType(seg.Channel),
			Data:   out.Bytes(seg),
		})
	}
	return result
}

func streamType(ch stream.Channel) domain.StreamType {
	switch ch {
	case stream.Stdin:
		return domain.StreamStdin
	case stream.Stderr:
		return domain.StreamStderr
	}
	return domain.StreamStdout
}

// parseLogLines splits timestamped log output into lines. A line without
// a parsable timestamp prefix keeps its full text and a zero timestamp.
func parseLogLines(st domain.StreamType, data []byte) []domain.LogLine {
	var lines []domain.LogLine
	for _, raw := range bytes.Split(data, []byte{'\n'}) {
		text := strings.TrimSuffix(string(raw), "\r")
		if text == "" {
			continue
		}
		line := domain.LogLine{Stream: st, Data: text}
		if prefix, rest, ok := strings.Cut(text, " "); ok {
			if ts, err := time.Parse(time.RFC3339Nano, prefix); err == nil {
				line.Timestamp = ts
				line.Data = rest
			}
		}
		lines = append(lines, line)
	}
	return lines
}
