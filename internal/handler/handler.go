package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/theredcat/heimdall/internal/adapter"
	"github.com/theredcat/heimdall/internal/codec"
	"github.com/theredcat/heimdall/internal/domain"
	"github.com/theredcat/heimdall/internal/repository"
	"github.com/theredcat/heimdall/internal/service"
	"github.com/theredcat/heimdall/internal/stream"
)

// HostQuery answers filtered host queries on the stored snapshot
type HostQuery interface {
	ListHosts(ctx context.Context, filter repository.HostFilter) ([]repository.HostRecord, error)
}

// TopologyHandler serves the topology API
type TopologyHandler struct {
	engine *service.Engine
	hosts  HostQuery
	logger zerolog.Logger
}

// NewTopologyHandler creates a new topology handler
func NewTopologyHandler(engine *service.Engine, hosts HostQuery, logger zerolog.Logger) *TopologyHandler {
	return &TopologyHandler{
		engine: engine,
		hosts:  hosts,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Register adds every API route to mux
func (h *TopologyHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/topology", h.GetTopology)
	mux.HandleFunc("GET /api/graph", h.GetGraph)
	mux.HandleFunc("GET /api/hosts", h.ListHosts)
	mux.HandleFunc("GET /api/hosts/{id}", h.GetHost)
	mux.HandleFunc("POST /api/hosts/{id}/exec", h.Exec)
	mux.HandleFunc("POST /api/hosts/{id}/{action}", h.PerformAction)
	mux.HandleFunc("GET /api/hosts/{id}/logs", h.GetLogs)
	mux.HandleFunc("GET /api/hosts/{id}/attach", h.Attach)
	mux.HandleFunc("POST /api/refresh", h.Refresh)
	mux.HandleFunc("GET /api/options", h.GetOptions)
	mux.HandleFunc("PUT /api/options", h.SetOptions)
	mux.HandleFunc("GET /api/sources", h.ListSources)
	mux.HandleFunc("PUT /api/sources/{name}", h.SetSource)
	mux.HandleFunc("GET /api/export/{format}", h.Export)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GetTopology returns the current snapshot
func (h *TopologyHandler) GetTopology(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot(), http.StatusOK)
}

// GetGraph returns the graph derived from the current snapshot
func (h *TopologyHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Graph(), http.StatusOK)
}

// ListHosts returns stored hosts filtered by state, network and source
func (h *TopologyHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	if h.hosts == nil {
		writeError(w, "Host queries unavailable", "no snapshot store configured", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()
	filter := repository.HostFilter{
		State:   q.Get("state"),
		Network: q.Get("network"),
		Source:  q.Get("source"),
	}
	if filter.State != "" && !domain.HostState(filter.State).Valid() {
		writeError(w, "Invalid state", filter.State, http.StatusBadRequest)
		return
	}

	hosts, err := h.hosts.ListHosts(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list hosts")
		writeError(w, "Failed to list hosts", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, hosts, http.StatusOK)
}

// GetHost returns a single host of the current snapshot
func (h *TopologyHandler) GetHost(w http.ResponseWriter, r *http.Request) {
	host, err := h.engine.Host(r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, "Failed to get host", err)
		return
	}
	writeJSON(w, host, http.StatusOK)
}

// RefreshResponse reports the outcome of a manual refresh
type RefreshResponse struct {
	Changed     bool   `json:"changed"`
	Fingerprint string `json:"fingerprint"`
}

// Refresh runs one reconciliation cycle and waits for it
func (h *TopologyHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	changed, err := h.engine.Refresh(r.Context())
	if err != nil {
		h.writeEngineError(w, "Refresh failed", err)
		return
	}
	writeJSON(w, RefreshResponse{Changed: changed, Fingerprint: h.engine.Snapshot().Fingerprint}, http.StatusOK)
}

// OptionsResponse reports the display options after an update
type OptionsResponse struct {
	Options domain.DisplayOptions `json:"options"`
	Changed bool                  `json:"changed"`
}

// GetOptions returns the display options
func (h *TopologyHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Options(), http.StatusOK)
}

// SetOptions replaces the display options
func (h *TopologyHandler) SetOptions(w http.ResponseWriter, r *http.Request) {
	var opts domain.DisplayOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	changed := h.engine.SetOptions(r.Context(), opts)
	writeJSON(w, OptionsResponse{Options: h.engine.Options(), Changed: changed}, http.StatusOK)
}

// ListSources returns the registered sources
func (h *TopologyHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Sources(), http.StatusOK)
}

// SourceRequest toggles a source
type SourceRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetSource enables or disables a source for the following cycles
func (h *TopologyHandler) SetSource(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Enabled == nil {
		writeError(w, "Invalid request body", "enabled is required", http.StatusBadRequest)
		return
	}

	name := r.PathValue("name")
	if err := h.engine.SetSourceEnabled(name, *req.Enabled); err != nil {
		h.writeEngineError(w, "Failed to update source", err)
		return
	}
	h.logger.Info().Str("source", name).Bool("enabled", *req.Enabled).Msg("Source toggled")
	writeJSON(w, h.engine.Sources(), http.StatusOK)
}

// Export renders the current snapshot in the requested format
func (h *TopologyHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	exporter, err := codec.ForFormat(format)
	if err != nil {
		writeError(w, "Unknown export format", err.Error(), http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := h.engine.Export(format, &buf); err != nil {
		h.logger.Error().Err(err).Str("format", format).Msg("Failed to export topology")
		writeError(w, "Failed to export topology", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename(format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func exportFilename(format string) string {
	switch format {
	case "json":
		return "topology.json"
	case "ansible-inventory":
		return "inventory.yml"
	}
	return "topology.yml"
}

// statusFor maps domain and backend errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrHostNotFound),
		errors.Is(err, adapter.ErrSourceNotFound),
		errors.Is(err, codec.ErrUnknownFormat):
		return http.StatusNotFound
	case errors.Is(err, adapter.ErrEmptyCommand):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedAction):
		return http.StatusNotImplemented
	case errors.Is(err, stream.ErrMalformedFrame),
		errors.Is(err, domain.ErrBackendUnreachable),
		errors.Is(err, domain.ErrBackendRejected):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *TopologyHandler) writeEngineError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		h.logger.Warn().Err(err).Int("status", status).Msg(msg)
	}
	writeError(w, msg, err.Error(), status)
}

// Helper methods

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON")
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}
