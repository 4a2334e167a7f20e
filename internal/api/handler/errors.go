package handler

import (
	"net/http"

	"github.com/mcoot/hotpotato/internal/api/apierr"
)

// WriteError maps err to its HTTP status and JSON error body
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates a 400 error with a client-facing message
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}
