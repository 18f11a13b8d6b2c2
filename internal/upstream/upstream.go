package upstream

import (
	"context"
	"errors"
	"fmt"
)

// CodeContentPolicy is the error code image APIs use when a prompt is
// refused by their safety system.
const CodeContentPolicy = "content_policy_violation"

var ErrNetwork = errors.New("upstream unreachable")

// Error is a non-2xx answer from an upstream API.
type Error struct {
	Provider string
	Status   int
	Code     string
	Message  string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s API %d (%s): %s", e.Provider, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s API %d: %s", e.Provider, e.Status, e.Message)
}

func IsContentPolicy(err error) bool {
	var upErr *Error
	return errors.As(err, &upErr) && upErr.Code == CodeContentPolicy
}

// Network wraps a transport failure so callers can match ErrNetwork while
// keeping the cause.
func Network(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: timed out: %w", provider, ErrNetwork, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrNetwork, err)
}
