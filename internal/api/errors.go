package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-webos/internal/bridges/webos"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeTimeout        = "timeout"
	ErrCodeDeviceError    = "device_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeBadGateway     = "bad_gateway"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError maps a webos bridge error onto an HTTP status.
func writeBridgeError(w http.ResponseWriter, err error) {
	status, code := bridgeErrorStatus(err)
	writeError(w, status, code, err.Error())
}

func bridgeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, webos.ErrUnknownDevice):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, webos.ErrInvalidCommand):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, webos.ErrTimeout):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.Is(err, webos.ErrDeviceError):
		return http.StatusBadGateway, ErrCodeDeviceError
	case errors.Is(err, webos.ErrHandshakeRejected),
		errors.Is(err, webos.ErrProtocol),
		errors.Is(err, webos.ErrInvalidResponse):
		return http.StatusBadGateway, ErrCodeBadGateway
	case errors.Is(err, webos.ErrConnectionFailed),
		errors.Is(err, webos.ErrConnectionLost),
		errors.Is(err, webos.ErrCancelled):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
