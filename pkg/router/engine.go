// Package router classifies prompts, picks the backend for their tier, and
// records each routing decision.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zen-systems/tierroute/pkg/adapter"
	"github.com/zen-systems/tierroute/pkg/classifier"
	"github.com/zen-systems/tierroute/pkg/metrics"
)

// DefaultMaxTokens is used when Route is called without a token budget.
const DefaultMaxTokens = 100

// DefaultSinkTimeout bounds how long Route waits for the sink.
const DefaultSinkTimeout = 2 * time.Second

// maxFallbackHops is the hard cap on cascade length.
const maxFallbackHops = 2

// FallbackPolicy controls the upward cascade after a generation failure.
type FallbackPolicy struct {
	Enabled bool
	MaxHops int
}

// Engine routes prompts. It is safe for concurrent use.
type Engine struct {
	classifier  classifier.Classifier
	registry    *adapter.Registry
	tiers       atomic.Pointer[TierTable]
	sink        Sink
	fallback    FallbackPolicy
	sinkTimeout time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTierTable sets the initial tier table.
func WithTierTable(t TierTable) Option {
	return func(e *Engine) {
		table := t.clone()
		e.tiers.Store(&table)
	}
}

// WithSink sets where decision records go.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithFallback enables the upward cascade.
func WithFallback(p FallbackPolicy) Option {
	return func(e *Engine) {
		e.fallback = p
	}
}

// WithSinkTimeout bounds each sink append.
func WithSinkTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sinkTimeout = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine over c and reg.
func NewEngine(c classifier.Classifier, reg *adapter.Registry, opts ...Option) (*Engine, error) {
	if c == nil {
		return nil, errors.New("router: classifier is required")
	}
	if reg == nil {
		return nil, errors.New("router: registry is required")
	}

	e := &Engine{
		classifier:  c,
		registry:    reg,
		sink:        discardSink{},
		sinkTimeout: DefaultSinkTimeout,
		logger:      log.Logger,
		now:         time.Now,
	}
	defaults := DefaultTierTable()
	e.tiers.Store(&defaults)

	for _, opt := range opts {
		opt(e)
	}

	if err := e.TierTable().validate(); err != nil {
		return nil, err
	}
	if e.fallback.MaxHops <= 0 {
		e.fallback.MaxHops = 1
	}
	if e.fallback.MaxHops > maxFallbackHops {
		e.fallback.MaxHops = maxFallbackHops
	}
	return e, nil
}

// TierTable returns a copy of the current tier table.
func (e *Engine) TierTable() TierTable {
	return e.tiers.Load().clone()
}

// SetTierTable atomically swaps the tier table. In-flight requests keep
// the table they started with.
func (e *Engine) SetTierTable(t TierTable) error {
	if err := t.validate(); err != nil {
		return err
	}
	table := t.clone()
	e.tiers.Store(&table)
	return nil
}

// Classify runs only the classifier.
func (e *Engine) Classify(ctx context.Context, prompt string) classifier.Result {
	return e.classifier.Classify(ctx, prompt)
}

// Route classifies prompt, generates a reply on the tier's backend, and
// emits a decision record. maxTokens <= 0 uses DefaultMaxTokens.
func (e *Engine) Route(ctx context.Context, prompt string, maxTokens int) (*Decision, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	start := time.Now()

	result := e.classifier.Classify(ctx, prompt)
	tiers := e.tiers.Load()

	notes := []string{result.Rationale}
	if !result.Tier.Valid() {
		notes = append(notes, fmt.Sprintf("classifier returned unknown tier %q; treating as complex", result.Tier))
		result.Tier = classifier.TierComplex
	}
	name, substituted := tiers.backendFor(result.Tier)
	if substituted {
		notes = append(notes, fmt.Sprintf("no backend mapped for %s tier; using complex tier backend %s", result.Tier, name))
	}

	gen, used, hops, err := e.generate(ctx, *tiers, result.Tier, name, prompt, maxTokens)
	notes = append(notes, hops...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.RouteRequests.WithLabelValues(string(result.Tier), used, "canceled").Inc()
		return nil, ctxErr
	}
	if err != nil {
		metrics.RouteRequests.WithLabelValues(string(result.Tier), used, "error").Inc()
		e.logger.Warn().Err(err).
			Str("tier", string(result.Tier)).
			Str("backend", used).
			Msg("route failed")
		return nil, err
	}

	elapsed := time.Since(start)
	rec := DecisionRecord{
		ID:            uuid.NewString(),
		Timestamp:     e.now().UTC(),
		PromptPreview: promptPreview(prompt),
		Tier:          result.Tier,
		Rationale:     strings.Join(notes, "; "),
		Backend:       used,
		CostUSD:       gen.CostUSD,
		TokensUsed:    gen.TokensUsed,
		LatencyMs:     float64(elapsed) / float64(time.Millisecond),
	}
	if err := rec.Validate(); err != nil {
		metrics.RouteRequests.WithLabelValues(string(result.Tier), used, "error").Inc()
		return nil, &RoutingError{Tier: result.Tier, Backend: used, Err: err}
	}

	metrics.RouteRequests.WithLabelValues(string(rec.Tier), used, "ok").Inc()
	metrics.RouteLatency.WithLabelValues(used).Observe(elapsed.Seconds())
	metrics.RouteCost.WithLabelValues(used).Add(rec.CostUSD)

	e.emit(ctx, rec)

	e.logger.Info().
		Str("id", rec.ID).
		Str("tier", string(rec.Tier)).
		Str("backend", rec.Backend).
		Int("prompt_len", len(prompt)).
		Float64("latency_ms", rec.LatencyMs).
		Float64("cost_usd", rec.CostUSD).
		Msg("routed")

	return &Decision{Record: rec, Text: gen.Text, Model: gen.Model}, nil
}

// generate calls the tier backend and, when enabled, cascades to the
// backends of higher tiers. It returns the backend that produced the
// result, or the last one tried on failure.
func (e *Engine) generate(ctx context.Context, tiers TierTable, tier classifier.Tier, name, prompt string, maxTokens int) (*adapter.Generation, string, []string, error) {
	var candidates []string
	if e.fallback.Enabled {
		candidates = tiers.escalation(tier, name)
		if len(candidates) > e.fallback.MaxHops {
			candidates = candidates[:e.fallback.MaxHops]
		}
	}

	var notes []string
	current := name
	for i := 0; ; i++ {
		backend, err := e.registry.Resolve(current)
		if err != nil {
			return nil, current, notes, &RoutingError{Tier: tier, Backend: current, Err: err}
		}

		gen, err := backend.Generate(ctx, prompt, maxTokens)
		if err == nil && gen == nil {
			err = &adapter.GenerationError{Backend: current, Err: errors.New("backend returned no generation")}
		}
		if err == nil {
			return gen, current, notes, nil
		}
		if ctx.Err() != nil || i >= len(candidates) {
			return nil, current, notes, &RoutingError{Tier: tier, Backend: current, Err: err}
		}

		next := candidates[i]
		metrics.BackendFallbacks.WithLabelValues(current, next).Inc()
		e.logger.Warn().Err(err).Str("from", current).Str("to", next).Msg("backend failed; cascading")
		notes = append(notes, fmt.Sprintf("%s failed (%v); fell back to %s", current, err, next))
		current = next
	}
}

// emit hands rec to the sink on a detached context. Failures are logged
// and counted; a slow sink is abandoned after sinkTimeout.
func (e *Engine) emit(ctx context.Context, rec DecisionRecord) {
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.sinkTimeout)
	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- e.sink.Append(appendCtx, rec)
	}()

	timer := time.NewTimer(e.sinkTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			metrics.SinkFailures.Inc()
			e.logger.Error().Err(err).Str("id", rec.ID).Msg("decision record dropped")
		}
	case <-timer.C:
		metrics.SinkFailures.Inc()
		e.logger.Error().Str("id", rec.ID).Dur("timeout", e.sinkTimeout).Msg("decision record append timed out")
	}
}
