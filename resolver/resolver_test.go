package resolver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/relaydb/queue/resolver"
)

func TestRegistryResolvesRegisteredHandler(t *testing.T) {
	reg := resolver.NewRegistry()
	called := false
	reg.Register("greet", resolver.HandlerFunc(func(ctx context.Context, payload map[string]any) error {
		called = true
		return nil
	}))

	h, err := reg.Resolve("greet")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("expected handler to run")
	}
}

func TestRegistryUnknownTask(t *testing.T) {
	reg := resolver.NewRegistry()
	_, err := reg.Resolve("nope")
	if !errors.Is(err, resolver.ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}

func TestRegistryInvalidHandlerFromFactory(t *testing.T) {
	reg := resolver.NewRegistry()
	reg.RegisterFactory("broken", func() (resolver.Handler, error) {
		return nil, nil
	})
	_, err := reg.Resolve("broken")
	if !errors.Is(err, resolver.ErrInvalidHandler) {
		t.Fatalf("expected ErrInvalidHandler, got %v", err)
	}
}

func TestRegistryFactoryErrorPropagates(t *testing.T) {
	reg := resolver.NewRegistry()
	boom := errors.New("construction failed")
	reg.RegisterFactory("bad-factory", func() (resolver.Handler, error) {
		return nil, boom
	})
	_, err := reg.Resolve("bad-factory")
	if !errors.Is(err, boom) {
		t.Fatalf("expected factory error to propagate, got %v", err)
	}
}

func TestRegistryOverwritesOnReRegister(t *testing.T) {
	reg := resolver.NewRegistry()
	reg.Register("task", resolver.HandlerFunc(func(ctx context.Context, payload map[string]any) error {
		return errors.New("old")
	}))
	reg.Register("task", resolver.HandlerFunc(func(ctx context.Context, payload map[string]any) error {
		return nil
	}))

	h, err := reg.Resolve("task")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(context.Background(), nil); err != nil {
		t.Fatalf("expected second registration to win, got err=%v", err)
	}
}
