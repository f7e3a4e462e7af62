// Package api implements the HTTP REST API and WebSocket server for the
// Gray Logic webOS bridge.
//
// This package provides:
//   - REST endpoints listing managed television sessions and SSDP discoveries
//   - A raw SSAP request endpoint for diagnostics and UI integrations
//   - WebSocket hub broadcasting session state changes and discoveries
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server sits beside the MQTT command path. Both drive the same
// webos.Bridge, so a request made over HTTP shares the television's single
// socket with commands arriving from the bus. State transitions and SSDP
// discoveries are pushed to WebSocket clients subscribed to the
// "tv.state_changed" and "tv.discovered" channels.
//
// # Errors
//
// Bridge errors map onto HTTP statuses: unknown devices are 404, malformed
// requests 400, television refusals 502, deadline expiry 504 and unreachable
// televisions 503.
package api
