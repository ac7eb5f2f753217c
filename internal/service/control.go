package service

import (
	"context"
	"fmt"
	"time"

	"github.com/theredcat/heimdall/internal/domain"
	"github.com/theredcat/heimdall/internal/metrics"
)

// Perform runs a status action on a host of the current snapshot through
// the controller of the source that reported it. Completion is published
// as EventActionCompleted whatever the outcome.
func (e *Engine) Perform(ctx context.Context, hostID string, action domain.Action) (domain.ActionStatus, error) {
	host, err := e.Host(hostID)
	if err != nil {
		return domain.ActionFail, err
	}

	status, err := domain.Perform(ctx, host.Control(), host.ID, action)
	metrics.RecordAction(string(action), status.String())

	payload := ActionCompleted{HostID: host.ID, Action: action, Status: status}
	if err != nil {
		payload.Error = err.Error()
		e.logger.Warn().Err(err).Str("host", host.ID).Str("action", string(action)).Msg("Action failed")
	} else {
		e.logger.Info().Str("host", host.ID).Str("action", string(action)).Stringer("status", status).Msg("Action completed")
	}
	e.bus.Publish(Event{Type: EventActionCompleted, Payload: payload})
	return status, err
}

// Logs returns a host's past output, only after since when it is not zero
func (e *Engine) Logs(ctx context.Context, hostID string, since time.Time) ([]domain.LogLine, error) {
	host, err := e.Host(hostID)
	if err != nil {
		return nil, err
	}
	return host.Logs(ctx, since)
}

// Exec runs a command inside a host
func (e *Engine) Exec(ctx context.Context, hostID, command string) (*domain.CommandOutput, error) {
	host, err := e.Host(hostID)
	if err != nil {
		return nil, err
	}
	return host.Exec(ctx, command)
}

// Session opens an interactive session on a host
func (e *Engine) Session(ctx context.Context, hostID string) (domain.Session, error) {
	host, err := e.Host(hostID)
	if err != nil {
		return nil, err
	}
	return host.Session(ctx)
}

// FollowLogs streams a host's output live when its source supports it
func (e *Engine) FollowLogs(ctx context.Context, hostID string) (domain.Session, error) {
	host, err := e.Host(hostID)
	if err != nil {
		return nil, err
	}
	follower, ok := host.Controller.(domain.LogFollower)
	if !ok {
		return nil, fmt.Errorf("follow logs of %s: %w", host.ID, domain.ErrUnsupportedAction)
	}
	return follower.FollowLogs(ctx, host.ID)
}
