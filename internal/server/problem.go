package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tbarrett/upswatch/internal/session"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound    = "https://upswatch.io/problems/not-found"
	ProblemTypeBadRequest  = "https://upswatch.io/problems/bad-request"
	ProblemTypeInternal    = "https://upswatch.io/problems/internal-error"
	ProblemTypeConflict    = "https://upswatch.io/problems/conflict"
	ProblemTypeUpstream    = "https://upswatch.io/problems/upstream-failure"
	ProblemTypeUnreachable = "https://upswatch.io/problems/server-unreachable"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: instance,
	})
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeBadRequest,
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: instance,
	})
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: instance,
	})
}

// Conflict writes a 409 problem response.
func Conflict(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: instance,
	})
}

// BadGateway writes a 502 problem response for upstream NUT failures.
func BadGateway(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeUpstream,
		Title:    "Bad Gateway",
		Status:   http.StatusBadGateway,
		Detail:   detail,
		Instance: instance,
	})
}

// writeSessionError maps session sentinel errors onto problem responses.
func writeSessionError(w http.ResponseWriter, err error, instance string) {
	switch {
	case errors.Is(err, session.ErrUnreachable):
		WriteProblem(w, Problem{
			Type:     ProblemTypeUnreachable,
			Title:    "Bad Gateway",
			Status:   http.StatusBadGateway,
			Detail:   err.Error(),
			Instance: instance,
		})
	case errors.Is(err, session.ErrDeviceNotFound):
		NotFound(w, err.Error(), instance)
	case errors.Is(err, session.ErrAlreadyConnected),
		errors.Is(err, session.ErrNotConnected),
		errors.Is(err, session.ErrReadOnlyVariable):
		Conflict(w, err.Error(), instance)
	case errors.Is(err, session.ErrCommandRejected),
		errors.Is(err, session.ErrVariableRejected):
		BadGateway(w, err.Error(), instance)
	default:
		InternalError(w, err.Error(), instance)
	}
}
