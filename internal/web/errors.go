package web

// errors.go holds the JSON response envelope shared by every handler.
//
// Every response, success or failure, is {success, message, code?, data?}.
// Failures are mapped through core.MapError: the client sees the user
// message and support code, the technical error goes to the log with the
// request id.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/evsync/internal/core"
	"github.com/JonMunkholm/evsync/internal/logging"
)

// Response is the trigger's response envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Action  string `json:"action,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// errBadBody is reported for request bodies that are not valid JSON.
var errBadBody = errors.New("invalid request body")

// respondError logs err and writes the mapped user message with status.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, r, status, Response{
		Success: false,
		Message: msg.Message,
		Code:    msg.Code,
		Action:  msg.Action,
	})
}

// writeJSON encodes v with status. Encoding errors are only logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// statusFor picks the HTTP status for a sync outcome error.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrMissingID),
		errors.Is(err, core.ErrUnknownCommand),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManySyncs):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
