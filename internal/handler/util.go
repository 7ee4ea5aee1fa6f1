// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/capitalize-ai/chatrelay/internal/apperr"
)

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Error            string   `json:"error"`
	Code             string   `json:"code"`
	CreditsRemaining *int     `json:"credits_remaining,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	Detail           string   `json:"detail,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a plain JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: statusCode(status)})
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperr.KindValidation)
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	case http.StatusForbidden:
		return string(apperr.KindForbidden)
	default:
		return string(apperr.KindInternal)
	}
}

// writeAppError maps a taxonomy error onto HTTP. Provider and internal
// detail only leaves the process in development mode.
func writeAppError(w http.ResponseWriter, err error, development bool) {
	appErr := apperr.As(err)
	if appErr == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	body := errorBody{
		Error: appErr.Message,
		Code:  string(appErr.Kind),
	}
	if development && appErr.Err != nil {
		body.Detail = appErr.Err.Error()
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindInsufficientCredits:
		status = http.StatusForbidden
		remaining := appErr.Remaining
		body.CreditsRemaining = &remaining
	case apperr.KindModerationRejected:
		status = http.StatusBadRequest
		body.Categories = appErr.Categories
	case apperr.KindProvider:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, body)
}
