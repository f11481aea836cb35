package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/cdata"
	"github.com/gyaneshwarpardhi/sensoredit/internal/editor"
	"github.com/gyaneshwarpardhi/sensoredit/internal/host"
	"github.com/gyaneshwarpardhi/sensoredit/internal/options"
	"github.com/gyaneshwarpardhi/sensoredit/internal/tree"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr maps err to a status code and writes the error envelope.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tree.ErrNotFound),
		errors.Is(err, cdata.ErrNoVariable),
		errors.Is(err, editor.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, host.ErrBadSensorID),
		errors.Is(err, activity.ErrBadKey):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrSaveInProgress),
		errors.Is(err, editor.ErrNeedsConfirmation):
		return http.StatusConflict
	case errors.Is(err, tree.ErrWouldCycle),
		errors.Is(err, tree.ErrNotAGroup),
		errors.Is(err, tree.ErrIsRoot),
		errors.Is(err, tree.ErrBadType),
		errors.Is(err, tree.ErrDuplicate),
		errors.Is(err, options.ErrNotSupported),
		errors.Is(err, options.ErrSelf),
		errors.Is(err, options.ErrRelated),
		errors.Is(err, options.ErrUnknown),
		errors.Is(err, options.ErrComment),
		errors.Is(err, options.ErrBadValue),
		errors.Is(err, activity.ErrInvalidRow),
		errors.Is(err, cdata.ErrNulGroup),
		errors.Is(err, cdata.ErrNotGroup),
		errors.Is(err, cdata.ErrBadVariableName),
		errors.Is(err, editor.ErrInvalid),
		errors.Is(err, editor.ErrNotTestable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, editor.ErrNoHost):
		return http.StatusNotImplemented
	case errors.Is(err, host.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	// Includes a stored configuration that cannot be loaded (corrupt, newer
	// version, empty) and store failures.
	return http.StatusInternalServerError
}
