package audionode

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNotReady: todavía no llegó el op ready, no hay session id para los players.
	ErrNotReady = errors.New("audio node not ready")
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("audio node status %d: %s", e.Status, e.Body)
}

// LoadError es el loadType "error" de /loadtracks.
type LoadError struct {
	Message  string
	Severity string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed (%s): %s", e.Severity, e.Message)
}
