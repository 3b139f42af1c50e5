package client

import (
	"fmt"
)

// StatusError is an HTTP error status surfaced on the iterator fetch path.
// The raw scheduler surface never turns statuses into errors; iterators do,
// because a failed page fetch cannot extend a cache.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("board returned status %d for %s", e.StatusCode, e.URL)
}

// ConfigError reports invalid client configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}
