package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/theredcat/heimdall/internal/domain"
)

// ActionResponse reports a control action outcome
type ActionResponse struct {
	HostID string              `json:"host_id"`
	Action domain.Action       `json:"action"`
	Status domain.ActionStatus `json:"status"`
	Error  string              `json:"error,omitempty"`
}

// PerformAction runs stop, start, pause or delete on a host
func (h *TopologyHandler) PerformAction(w http.ResponseWriter, r *http.Request) {
	action, err := domain.ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, "Unknown action", err.Error(), http.StatusNotFound)
		return
	}

	id := r.PathValue("id")
	status, err := h.engine.Perform(r.Context(), id, action)
	resp := ActionResponse{HostID: id, Action: action, Status: status}

	switch {
	case err != nil:
		resp.Error = err.Error()
		writeJSON(w, resp, statusFor(err))
	case status == domain.ActionNotSupported:
		writeJSON(w, resp, http.StatusNotImplemented)
	case status == domain.ActionFail:
		writeJSON(w, resp, http.StatusBadGateway)
	default:
		writeJSON(w, resp, http.StatusOK)
	}
}

// GetLogs returns a host's past output. With follow=true the output is
// streamed as plain text until the client goes away.
func (h *TopologyHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	if follow, _ := strconv.ParseBool(q.Get("follow")); follow {
		h.followLogs(w, r, id)
		return
	}

	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeError(w, "Invalid since", err.Error(), http.StatusBadRequest)
		return
	}

	lines, err := h.engine.Logs(r.Context(), id, since)
	if err != nil {
		h.writeEngineError(w, "Failed to get logs", err)
		return
	}
	writeJSON(w, lines, http.StatusOK)
}

func (h *TopologyHandler) followLogs(w http.ResponseWriter, r *http.Request, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming not supported", "", http.StatusInternalServerError)
		return
	}

	sess, err := h.engine.FollowLogs(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "Failed to follow logs", err)
		return
	}
	defer sess.Close()
	stop := context.AfterFunc(r.Context(), func() { sess.Close() })
	defer stop()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	buf := make([]byte, 32*1024)
	for {
		n, err := sess.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			return
		}
	}
}

// parseSince accepts RFC 3339 or unix seconds; empty means all output
func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or unix seconds: %q", s)
	}
	return ts, nil
}

// ExecRequest is the body of an exec call
type ExecRequest struct {
	Command string `json:"command"`
}

// ExecChunk is one stream run of command output
type ExecChunk struct {
	Stream domain.StreamType `json:"stream"`
	Data   string            `json:"data"`
}

// ExecResponse carries decoded command output
type ExecResponse struct {
	Output string      `json:"output"`
	Chunks []ExecChunk `json:"chunks"`
}

// Exec runs a command inside a host and returns its output
func (h *TopologyHandler) Exec(w http.ResponseWriter, r *http.Request) {
	var req ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, "Invalid request body", "command is required", http.StatusBadRequest)
		return
	}

	out, err := h.engine.Exec(r.Context(), r.PathValue("id"), req.Command)
	if err != nil {
		h.writeEngineError(w, "Failed to execute command", err)
		return
	}

	resp := ExecResponse{
		Output: string(out.Output),
		Chunks: make([]ExecChunk, 0, len(out.Chunks)),
	}
	for _, c := range out.Chunks {
		resp.Chunks = append(resp.Chunks, ExecChunk{Stream: c.Stream, Data: string(c.Data)})
	}
	writeJSON(w, resp, http.StatusOK)
}
