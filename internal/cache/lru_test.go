package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"pivotboard/internal/log"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRU[string, string](10, time.Minute)
	c.now = clock.now

	c.Set("k", "v")
	c.Set("other", "v")
	clock.t = clock.t.Add(30 * time.Second)
	c.Set("other", "fresh")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should be expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Fatalf("cleaned %d, want 0 (other still fresh)", n)
	}
	clock.t = clock.t.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("cleaned %d, want 1", n)
	}
}

func TestLRUDeleteFunc(t *testing.T) {
	c := NewLRU[string, int](10, 0)
	c.Set("w1|a", 1)
	c.Set("w1|b", 2)
	c.Set("w2|a", 3)

	n := c.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, "w1|") })
	if n != 2 || c.Len() != 1 {
		t.Fatalf("deleted %d, len %d", n, c.Len())
	}
}

func TestManagerRun(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRU[string, int](10, time.Second)
	c.now = clock.now
	c.Set("k", 1)
	clock.t = clock.t.Add(2 * time.Second)

	m := NewManager(log.Discard())
	m.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for c.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("manager never swept the expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
