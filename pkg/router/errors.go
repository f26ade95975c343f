package router

import (
	"fmt"

	"github.com/zen-systems/tierroute/pkg/classifier"
)

// RoutingError reports a request that could not be served. Err wraps
// adapter.ErrBackendNotFound or an *adapter.GenerationError.
type RoutingError struct {
	Tier    classifier.Tier
	Backend string
	Err     error
}

func (e *RoutingError) Error() string {
	if e == nil {
		return "routing error"
	}
	return fmt.Sprintf("route %s prompt via %s: %v", e.Tier, e.Backend, e.Err)
}

func (e *RoutingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
