package domain

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ActionStatus is the outcome of a control action
type ActionStatus int

const (
	// ActionNotSupported means the source deliberately does not implement the action
	ActionNotSupported ActionStatus = iota
	ActionSuccess
	ActionFail
)

func (s ActionStatus) String() string {
	switch s {
	case ActionNotSupported:
		return "not_supported"
	case ActionSuccess:
		return "success"
	case ActionFail:
		return "fail"
	}
	return fmt.Sprintf("ActionStatus(%d)", int(s))
}

// MarshalText renders the status by name
func (s ActionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Action names a host control action
type Action string

const (
	ActionStop   Action = "stop"
	ActionStart  Action = "start"
	ActionPause  Action = "pause"
	ActionDelete Action = "delete"
)

// ParseAction validates an action name
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStop, ActionStart, ActionPause, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, s)
}

// StreamType names a standard stream
type StreamType string

const (
	StreamStdin  StreamType = "stdin"
	StreamStdout StreamType = "stdout"
	StreamStderr StreamType = "stderr"
)

// LogLine is one line of host output
type LogLine struct {
	Stream    StreamType `json:"stream"`
	Timestamp time.Time  `json:"timestamp"`
	Data      string     `json:"data"`
}

// OutputChunk is a contiguous run of output from one stream
type OutputChunk struct {
	Stream StreamType `json:"stream"`
	Data   []byte     `json:"data"`
}

// CommandOutput is the decoded result of a command run inside a host.
// Output is every chunk concatenated in the order received.
type CommandOutput struct {
	Output []byte        `json:"output"`
	Chunks []OutputChunk `json:"chunks"`
}

// Session is a live byte stream attached to a host's standard streams
type Session io.ReadWriteCloser

// HostController performs control actions against a host by id.
// Status actions return ActionFail together with the backend error.
type HostController interface {
	StopHost(ctx context.Context, id string) (ActionStatus, error)
	StartHost(ctx context.Context, id string) (ActionStatus, error)
	PauseHost(ctx context.Context, id string) (ActionStatus, error)
	DeleteHost(ctx context.Context, id string) (ActionStatus, error)
	GetLogs(ctx context.Context, id string, since time.Time) ([]LogLine, error)
	GetInteractiveSession(ctx context.Context, id string) (Session, error)
	ExecuteCommand(ctx context.Context, id, command string) (*CommandOutput, error)
}

// LogFollower streams a host's output live
type LogFollower interface {
	FollowLogs(ctx context.Context, id string) (Session, error)
}

// Perform dispatches a named status action to c
func Perform(ctx context.Context, c HostController, id string, action Action) (ActionStatus, error) {
	switch action {
	case ActionStop:
		return c.StopHost(ctx, id)
	case ActionStart:
		return c.StartHost(ctx, id)
	case ActionPause:
		return c.PauseHost(ctx, id)
	case ActionDelete:
		return c.DeleteHost(ctx, id)
	}
	return ActionNotSupported, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
}

type unsupportedController struct{}

func (unsupportedController) StopHost(context.Context, string) (ActionStatus, error) {
	return ActionNotSupported, nil
}

func (unsupportedController) StartHost(context.Context, string) (ActionStatus, error) {
	return ActionNotSupported, nil
}

func (unsupportedController) PauseHost(context.Context, string) (ActionStatus, error) {
	return ActionNotSupported, nil
}

func (unsupportedController) DeleteHost(context.Context, string) (ActionStatus, error) {
	return ActionNotSupported, nil
}

func (unsupportedController) GetLogs(context.Context, string, time.Time) ([]LogLine, error) {
	return nil, ErrUnsupportedAction
}

func (unsupportedController) GetInteractiveSession(context.Context, string) (Session, error) {
	return nil, ErrUnsupportedAction
}

func (unsupportedController) ExecuteCommand(context.Context, string, string) (*CommandOutput, error) {
	return nil, ErrUnsupportedAction
}
