package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// GenerationError wraps provider failures with status metadata.
type GenerationError struct {
	Backend   string
	Status    int
	Temporary bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return "generation error"
	}
	prefix := "generation failed"
	if e.Backend != "" {
		prefix = fmt.Sprintf("backend %s", e.Backend)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return fmt.Sprintf("%s: status %d", prefix, e.Status)
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newGenerationError(backend string, status int, err error) *GenerationError {
	return &GenerationError{
		Backend:   backend,
		Status:    status,
		Temporary: status == http.StatusTooManyRequests || status >= 500,
		Err:       err,
	}
}

// IsTransient reports whether an error is safe to retry on another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		if genErr.Temporary {
			return true
		}
		if genErr.Status == 429 || (genErr.Status >= 500 && genErr.Status <= 599) {
			return true
		}
	}
	return false
}
