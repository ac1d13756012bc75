// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors wrapped by the domain packages. The wrapping message becomes
// the problem detail.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

type errorStatus struct {
	err    error
	status int
	title  string
}

// Checked in order; the first sentinel in err's chain wins.
var errorStatuses = []errorStatus{
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrDuplicate, http.StatusConflict, "Duplicate"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

func classify(err error) (errorStatus, bool) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			return es, true
		}
	}
	return errorStatus{}, false
}

// RespondError maps domain errors to RFC7807 responses. Unknown errors become
// a 500 without leaking their message.
func RespondError(w http.ResponseWriter, err error) {
	es, ok := classify(err)
	if !ok {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	Problem(w, es.status, es.title, err.Error())
}

// IsClientError reports whether err maps to a 4xx response. Handlers log only
// the errors for which it is false.
func IsClientError(err error) bool {
	_, ok := classify(err)
	return ok
}
