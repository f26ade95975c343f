package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zen-systems/tierroute/pkg/router"
)

// Multi fans each record out to several sinks concurrently. One failing
// sink does not stop the others; their errors are joined.
type Multi struct {
	sinks []router.Sink
}

// NewMulti creates a fan-out sink. Nil sinks are ignored.
func NewMulti(sinks ...router.Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Append(ctx context.Context, rec router.DecisionRecord) error {
	if len(m.sinks) == 1 {
		return m.sinks[0].Append(ctx, rec)
	}

	errs := make([]error, len(m.sinks))
	var wg sync.WaitGroup
	for i, s := range m.sinks {
		wg.Add(1)
		go func(i int, s router.Sink) {
			defer wg.Done()
			if err := s.Append(ctx, rec); err != nil {
				errs[i] = fmt.Errorf("sink %d: %w", i, err)
			}
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close closes every sink that implements io.Closer.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Mirror is a Store that answers reads from its primary and appends to the
// primary and every mirror.
type Mirror struct {
	Store
	fanout *Multi
}

// NewMirror wraps primary so appends also reach mirrors.
func NewMirror(primary Store, mirrors ...router.Sink) *Mirror {
	return &Mirror{
		Store:  primary,
		fanout: NewMulti(append([]router.Sink{primary}, mirrors...)...),
	}
}

func (m *Mirror) Append(ctx context.Context, rec router.DecisionRecord) error {
	return m.fanout.Append(ctx, rec)
}

// Cleanup runs retention on the primary and on every mirror that supports
// it. The count is the primary's.
func (m *Mirror) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	var errs []error
	if c, ok := m.Store.(Cleaner); ok {
		n, err := c.Cleanup(ctx, cutoff)
		if err != nil {
			errs = append(errs, err)
		}
		total = n
	}
	for _, s := range m.fanout.sinks[1:] {
		if c, ok := s.(Cleaner); ok {
			if _, err := c.Cleanup(ctx, cutoff); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return total, errors.Join(errs...)
}

func (m *Mirror) Close() error {
	return m.fanout.Close()
}
