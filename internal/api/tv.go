package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxRequestTimeout bounds the per-request timeout a caller may ask for.
// It covers a pairing prompt the user has to accept on the television.
const maxRequestTimeout = 2 * time.Minute

// serviceSchemes are the URI schemes a television accepts in a request.
var serviceSchemes = []string{"ssap://", "luna://", "palm://"}

// tvRequestBody is the body of POST /tv/sessions/{id}/request.
type tvRequestBody struct {
	URI       string          `json:"uri"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	TimeoutMS int             `json:"timeout_ms,omitempty"`
}

// tvRequestResponse is returned for a successful raw request.
type tvRequestResponse struct {
	DeviceID string          `json:"device_id"`
	URI      string          `json:"uri"`
	Payload  json.RawMessage `json:"payload"`
}

// handleListSessions returns every managed television with its counters.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.bridge.Sessions()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleListDiscovered returns televisions found on the network by SSDP.
func (s *Server) handleListDiscovered(w http.ResponseWriter, _ *http.Request) {
	devices := s.bridge.Discovered()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleSessionRequest sends a raw SSAP request to one television and
// returns its response payload.
func (s *Server) handleSessionRequest(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var body tvRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	body.URI = strings.TrimSpace(body.URI)
	if body.URI == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "uri is required")
		return
	}
	if !hasServiceScheme(body.URI) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "uri must use the ssap, luna or palm scheme")
		return
	}
	if body.TimeoutMS < 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "timeout_ms must not be negative")
		return
	}
	timeout := time.Duration(body.TimeoutMS) * time.Millisecond
	if timeout > maxRequestTimeout {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "timeout_ms exceeds "+maxRequestTimeout.String())
		return
	}

	var payload any
	if len(body.Payload) > 0 {
		payload = body.Payload
	}

	resp, err := s.bridge.Request(r.Context(), deviceID, body.URI, payload, timeout)
	if err != nil {
		s.logger.Debug("tv request failed",
			"device_id", deviceID,
			"uri", body.URI,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeBridgeError(w, err)
		return
	}

	if len(resp) == 0 {
		resp = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, tvRequestResponse{
		DeviceID: deviceID,
		URI:      body.URI,
		Payload:  resp,
	})
}

func hasServiceScheme(uri string) bool {
	for _, scheme := range serviceSchemes {
		if strings.HasPrefix(uri, scheme) && len(uri) > len(scheme) {
			return true
		}
	}
	return false
}
