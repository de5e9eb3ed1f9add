package resilience

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
)

type backend struct {
	name string
	err  error
}

func TestFallbackGroup_PrimaryFirst(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup(backend{name: "a"}, "a", FallbackConfig{})
	fg.AddFallback("b", backend{name: "b"})

	var tried []string
	got, err := ExecuteWithResult(context.Background(), fg, func(_ context.Context, b backend) (string, error) {
		tried = append(tried, b.name)
		return b.name, b.err
	})
	if err != nil || got != "a" {
		t.Fatalf("got (%q, %v), want (a, nil)", got, err)
	}
	if !slices.Equal(tried, []string{"a"}) {
		t.Errorf("tried = %v", tried)
	}
}

func TestFallbackGroup_Failover(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup(backend{name: "a", err: errors.New("a down")}, "a", FallbackConfig{})
	fg.AddFallback("b", backend{name: "b"})

	got, err := ExecuteWithResult(context.Background(), fg, func(_ context.Context, b backend) (string, error) {
		return b.name, b.err
	})
	if err != nil || got != "b" {
		t.Fatalf("got (%q, %v), want (b, nil)", got, err)
	}
}

func TestFallbackGroup_AllFailJoinsErrors(t *testing.T) {
	t.Parallel()

	errA, errB := errors.New("a down"), errors.New("b down")
	fg := NewFallbackGroup(backend{name: "a", err: errA}, "a", FallbackConfig{})
	fg.AddFallback("b", backend{name: "b", err: errB})

	err := fg.Execute(context.Background(), func(_ context.Context, b backend) error { return b.err })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("err = %v, want both provider errors", err)
	}
	if !strings.Contains(err.Error(), "a: a down") {
		t.Errorf("err %q does not name the provider", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup(backend{name: "a", err: errors.New("down")}, "a", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fg.AddFallback("b", backend{name: "b"})

	calls := map[string]int{}
	run := func() {
		_ = fg.Execute(context.Background(), func(_ context.Context, b backend) error {
			calls[b.name]++
			return b.err
		})
	}
	run()
	run()
	if calls["a"] != 1 || calls["b"] != 2 {
		t.Errorf("calls = %v, want a once (then open) and b twice", calls)
	}
}

func TestFallbackGroup_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup(backend{name: "a"}, "a", FallbackConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := fg.Execute(ctx, func(context.Context, backend) error { called = true; return nil })
	if called {
		t.Error("provider called with cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFallbackGroup_OnResult(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []string
	)
	fg := NewFallbackGroup(backend{name: "a", err: errors.New("x")}, "a", FallbackConfig{
		OnResult: func(name string, err error) {
			mu.Lock()
			defer mu.Unlock()
			status := "ok"
			if err != nil {
				status = "error"
			}
			seen = append(seen, name+"="+status)
		},
	})
	fg.AddFallback("b", backend{name: "b"})

	_ = fg.Execute(context.Background(), func(_ context.Context, b backend) error { return b.err })
	if !slices.Equal(seen, []string{"a=error", "b=ok"}) {
		t.Errorf("OnResult saw %v", seen)
	}
	if !slices.Equal(fg.Names(), []string{"a", "b"}) {
		t.Errorf("Names = %v", fg.Names())
	}
}
