package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// slowKV blocks every Set until release is closed and records the values.
type slowKV struct {
	MemoryKV
	release chan struct{}
	mu      sync.Mutex
	writes  []string
}

func (s *slowKV) Set(ctx context.Context, key, value string) error {
	<-s.release
	s.mu.Lock()
	s.writes = append(s.writes, value)
	s.mu.Unlock()
	return s.MemoryKV.Set(ctx, key, value)
}

func TestWriter_CoalescesBurst(t *testing.T) {
	kv := &slowKV{MemoryKV: MemoryKV{data: map[string]string{}}, release: make(chan struct{})}
	w := newWriter(kv, "k", zap.NewNop())
	defer w.close(context.Background())

	w.submit("1", false)
	// let the goroutine pick up "1" and block inside Set
	time.Sleep(20 * time.Millisecond)
	for _, v := range []string{"2", "3", "4", "5"} {
		w.submit(v, false)
	}
	close(kv.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if len(kv.writes) > 2 {
		t.Errorf("writes = %v, want at most 2", kv.writes)
	}
	if last := kv.writes[len(kv.writes)-1]; last != "5" {
		t.Errorf("last write = %q, want %q", last, "5")
	}
}

func TestWriter_FlushHonoursContext(t *testing.T) {
	kv := &slowKV{MemoryKV: MemoryKV{data: map[string]string{}}, release: make(chan struct{})}
	w := newWriter(kv, "k", zap.NewNop())
	defer func() {
		close(kv.release)
		_ = w.close(context.Background())
	}()

	w.submit("x", false)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := w.flush(ctx); err == nil {
		t.Fatal("flush returned nil while write was blocked")
	}
}

func TestWriter_CloseDrainsPending(t *testing.T) {
	kv := NewMemoryKV()
	w := newWriter(kv, "k", zap.NewNop())
	w.submit("final", false)
	if err := w.close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	v, ok, _ := kv.Get(context.Background(), "k")
	if !ok || v != "final" {
		t.Errorf("stored = %q (ok=%v), want final", v, ok)
	}
}
