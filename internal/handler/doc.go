// Package handler implements the HTTP API of heimdall.
//
// TopologyHandler serves the current snapshot, its derived graph, host
// queries against the snapshot store, control actions, logs, command
// execution and a websocket proxy to interactive sessions. Register adds
// every route to a ServeMux using method patterns.
//
// Errors are returned as JSON {error, details}. Domain errors map to status
// codes: unknown hosts and sources 404, unsupported actions 501, backend
// and framing failures 502.
//
// Chain composes the Recover, CORS and Logger middlewares.
package handler
