package adapter

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

type stubBackend struct {
	name string
	text string
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Generate(_ context.Context, prompt string, _ int) (*Generation, error) {
	return &Generation{Text: s.text, TokensUsed: countWords(prompt), Backend: s.name}, nil
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register("fast", Instance(&stubBackend{name: "fast", text: "A"}))

	b, err := reg.Resolve("fast")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if gen, _ := b.Generate(context.Background(), "p", 1); gen.Text != "A" {
		t.Fatalf("expected fast backend, got %+v", gen)
	}

	_, err = reg.Resolve("missing")
	if !errors.Is(err, ErrBackendNotFound) {
		t.Fatalf("expected ErrBackendNotFound, got %v", err)
	}
}

func TestRegistryReRegisterKeepsResolvedInstances(t *testing.T) {
	reg := NewRegistry()
	reg.Register("x", Instance(&stubBackend{name: "x", text: "A"}))

	before, err := reg.Resolve("x")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	reg.Register("x", Instance(&stubBackend{name: "x", text: "B"}))

	after, err := reg.Resolve("x")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	ctx := context.Background()
	oldGen, _ := before.Generate(ctx, "p", 10)
	newGen, _ := after.Generate(ctx, "p", 10)
	if oldGen.Text != "A" || newGen.Text != "B" {
		t.Fatalf("expected A then B, got %q then %q", oldGen.Text, newGen.Text)
	}
}

func TestRegistryNamesAndUnregister(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"gpt-4o", "phi-3-mini", "gemini-flash"} {
		reg.Register(name, Instance(&stubBackend{name: name}))
	}
	reg.Unregister("gemini-flash")
	reg.Unregister("never-registered")

	want := []string{"gpt-4o", "phi-3-mini"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("names: got %v want %v", got, want)
	}
	if _, err := reg.Resolve("gemini-flash"); !errors.Is(err, ErrBackendNotFound) {
		t.Fatalf("expected not found after unregister, got %v", err)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	reg.Register("x", Instance(&stubBackend{name: "x"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Register("x", Instance(&stubBackend{name: "x"}))
		}()
		go func() {
			defer wg.Done()
			if _, err := reg.Resolve("x"); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestLookupFollowsReRegistration(t *testing.T) {
	reg := NewRegistry()
	lookup := Lookup(reg, "judge")

	if _, err := lookup.Generate(context.Background(), "p", 5); !errors.Is(err, ErrBackendNotFound) {
		t.Fatalf("expected not found before registration, got %v", err)
	}

	reg.Register("judge", Instance(&stubBackend{name: "judge", text: "ok"}))
	gen, err := lookup.Generate(context.Background(), "p", 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.Text != "ok" || gen.Backend != "judge" {
		t.Fatalf("unexpected generation %+v", gen)
	}
}

func TestIsSimulated(t *testing.T) {
	reg := NewRegistry()
	lookup := Lookup(reg, "judge")

	if IsSimulated(lookup) {
		t.Fatal("an unregistered name is not simulated")
	}
	reg.Register("judge", Instance(NewSimulatedBackend("judge", SimulatedConfig{})))
	if !IsSimulated(lookup) {
		t.Fatal("expected the registered stand-in to count as simulated")
	}
	reg.Register("judge", Instance(&stubBackend{name: "judge"}))
	if IsSimulated(lookup) {
		t.Fatal("expected re-registration to a real backend to be seen")
	}
	if IsSimulated(&stubBackend{}) {
		t.Fatal("plain backends are not simulated")
	}
}
