package common

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the control API error body. Hint and SQLState are only
// set for errors that carry them.
type ErrorResponse struct {
	Error    string `json:"error"`
	Hint     string `json:"hint,omitempty"`
	SQLState string `json:"sqlstate,omitempty"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithDomainError picks the status from err and attaches its operator
// hint and SQLSTATE, if any. message replaces err's text in the body.
func RespondWithDomainError(w http.ResponseWriter, err error, message string) {
	RespondWithJSON(w, HTTPStatusFromError(err), ErrorResponse{
		Error:    message,
		Hint:     HintFromError(err),
		SQLState: SQLState(err),
	})
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.WriteHeader(code)
	w.Write(body)
}
