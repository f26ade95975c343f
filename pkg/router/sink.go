package router

import "context"

// Sink receives decision records. Append may be called concurrently.
type Sink interface {
	Append(ctx context.Context, rec DecisionRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec DecisionRecord) error

func (f SinkFunc) Append(ctx context.Context, rec DecisionRecord) error {
	return f(ctx, rec)
}

type discardSink struct{}

func (discardSink) Append(context.Context, DecisionRecord) error { return nil }
