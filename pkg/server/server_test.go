package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/tierroute/pkg/adapter"
	"github.com/zen-systems/tierroute/pkg/classifier"
	"github.com/zen-systems/tierroute/pkg/config"
	"github.com/zen-systems/tierroute/pkg/router"
	"github.com/zen-systems/tierroute/pkg/store"
)

type fakeRouter struct {
	err    error
	prompt string
	tokens int
}

func (f *fakeRouter) Route(_ context.Context, prompt string, maxTokens int) (*router.Decision, error) {
	f.prompt, f.tokens = prompt, maxTokens
	if f.err != nil {
		return nil, f.err
	}
	return &router.Decision{
		Record: router.DecisionRecord{
			ID:         "rec-1",
			Timestamp:  time.Now().UTC(),
			Tier:       classifier.TierSimple,
			Rationale:  "Short prompt with no complex keywords.",
			Backend:    "phi-3-mini",
			CostUSD:    0.000046,
			TokensUsed: 23,
			LatencyMs:  100.4,
		},
		Text: "The answer is 4.",
	}, nil
}

type fakeKeys struct {
	got config.Credentials
	err error
}

func (f *fakeKeys) UpdateCredentials(_ context.Context, update config.Credentials) ([]string, error) {
	f.got = update
	return []string{"gpt-4o", "phi-3-mini"}, f.err
}

func newTestServer(r Router, reader store.Reader, keys KeyUpdater) *Server {
	return New(Config{Listen: "127.0.0.1:0"}, r, reader, keys, zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouteEndpoint(t *testing.T) {
	fr := &fakeRouter{}
	s := newTestServer(fr, store.NewMemory(10), nil)

	rec := do(t, s, http.MethodPost, "/route", `{"prompt":"What is 2+2?","max_tokens":64}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "What is 2+2?", fr.prompt)
	assert.Equal(t, 64, fr.tokens)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rec-1", resp["id"])
	assert.Equal(t, "phi-3-mini", resp["model"])
	assert.Equal(t, "simple", resp["difficulty"])
	assert.Equal(t, "Short prompt with no complex keywords.", resp["reasoning"])
	assert.Equal(t, "The answer is 4.", resp["response"])
	assert.Equal(t, float64(23), resp["tokens"])
	assert.Contains(t, resp, "cost")
	assert.Contains(t, resp, "latency_ms")
}

func TestRouteValidation(t *testing.T) {
	s := newTestServer(&fakeRouter{}, store.NewMemory(10), nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty prompt", `{"prompt":""}`},
		{"blank prompt", `{"prompt":"   "}`},
		{"bad json", `{"prompt":`},
		{"negative tokens", `{"prompt":"hi","max_tokens":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/route", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}

	rec := do(t, s, http.MethodGet, "/route", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouteErrorStatus(t *testing.T) {
	notFound := &router.RoutingError{Tier: classifier.TierSimple, Backend: "phi-3-mini",
		Err: fmt.Errorf("%w: phi-3-mini", adapter.ErrBackendNotFound)}
	badGateway := &router.RoutingError{Tier: classifier.TierComplex, Backend: "gpt-4o",
		Err: &adapter.GenerationError{Backend: "gpt-4o", Status: 400, Err: errors.New("bad request")}}
	unavailable := &router.RoutingError{Tier: classifier.TierComplex, Backend: "gpt-4o",
		Err: &adapter.GenerationError{Backend: "gpt-4o", Status: 503, Temporary: true}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", notFound, http.StatusInternalServerError},
		{"permanent generation error", badGateway, http.StatusBadGateway},
		{"transient generation error", unavailable, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeRouter{err: tt.err}, store.NewMemory(10), nil)
			rec := do(t, s, http.MethodPost, "/route", `{"prompt":"hi"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStatsAndLogs(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(100)
	for i := 0; i < 60; i++ {
		backend := "phi-3-mini"
		if i%3 == 0 {
			backend = "gpt-4o"
		}
		require.NoError(t, mem.Append(ctx, router.DecisionRecord{
			ID: fmt.Sprintf("r%02d", i), Tier: classifier.TierSimple, Backend: backend, CostUSD: 0.01,
		}))
	}
	s := newTestServer(&fakeRouter{}, mem, nil)

	rec := do(t, s, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 60, stats.TotalRequests)
	assert.Equal(t, 20, stats.Breakdown["gpt-4o"].Count)
	assert.InDelta(t, 0.6, stats.TotalCostUSD, 1e-9)

	rec = do(t, s, http.MethodGet, "/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []router.DecisionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, defaultLogsLimit)
	assert.Equal(t, "r59", logs[0].ID)

	rec = do(t, s, http.MethodGet, "/logs?limit=5", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs, 5)

	rec = do(t, s, http.MethodGet, "/logs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigKeys(t *testing.T) {
	keys := &fakeKeys{}
	s := newTestServer(&fakeRouter{}, store.NewMemory(1), keys)

	rec := do(t, s, http.MethodPost, "/config/keys", `{"OPENAI_API_KEY":"sk-new"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sk-new", keys.got.OpenAI)
	assert.Empty(t, keys.got.Google)

	var resp keysResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "updated", resp.Status)
	assert.Equal(t, []string{"gpt-4o", "phi-3-mini"}, resp.Backends)

	rec = do(t, s, http.MethodPost, "/config/keys", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	keys.err = errors.New("anthropic backend failed")
	rec = do(t, s, http.MethodPost, "/config/keys", `{"ANTHROPIC_API_KEY":"sk-ant"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "anthropic backend failed")

	disabled := newTestServer(&fakeRouter{}, store.NewMemory(1), nil)
	rec = do(t, disabled, http.MethodPost, "/config/keys", `{"OPENAI_API_KEY":"sk"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	s := newTestServer(&fakeRouter{}, store.NewMemory(1), nil)

	rec := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	_ = do(t, s, http.MethodPost, "/route", `{"prompt":"hi"}`)
	rec = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tierroute_http_requests_total")

	rec = do(t, s, http.MethodOptions, "/route", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRateLimit(t *testing.T) {
	s := New(Config{RateLimit: 1, Burst: 2}, &fakeRouter{}, store.NewMemory(1), nil, zerolog.Nop())

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		codes = append(codes, do(t, s, http.MethodPost, "/route", `{"prompt":"hi"}`).Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestListenAndServeShutsDown(t *testing.T) {
	s := newTestServer(&fakeRouter{}, store.NewMemory(1), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
