package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned after a 401 response. By the time callers see
// it, both credential entries have been wiped and the unauthorized handler
// has fired.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx backend response other than 401.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend request failed with status %d: %s", e.Status, e.Body)
}

// IsClientError reports whether err is a 400-class backend response.
// 401 never reaches here; it is mapped to ErrUnauthorized by the client.
func IsClientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status >= 400 && se.Status < 500
}
