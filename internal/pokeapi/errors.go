package pokeapi

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable wraps the last error once every retry is spent.
var ErrUpstreamUnavailable = errors.New("pokeapi unavailable after retries")

// ErrRateLimited indicates the API answered 429
var ErrRateLimited = errors.New("pokeapi rate limit exceeded")

// HTTPError is any other non-2xx answer
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("pokeapi error: HTTP %d for %s", e.StatusCode, e.URL)
}
