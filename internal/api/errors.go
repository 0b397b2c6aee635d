package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork covers transport failures and non-2xx answers alike. Callers
	// cannot tell "offline" from a 5xx at this layer.
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized marks 401 answers. It always travels with ErrNetwork.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is a non-2xx response. The status is kept for logging.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("network error: %d %s: %s", e.Status, http.StatusText(e.Status), e.Detail)
	}
	return fmt.Sprintf("network error: %d %s", e.Status, http.StatusText(e.Status))
}

// Is reports ErrNetwork for every status and ErrUnauthorized for 401.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return true
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

func transportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrNetwork, err)
}
