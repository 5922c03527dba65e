package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type writeOp struct {
	seq    uint64
	value  string
	remove bool
}

// writer is the single goroutine allowed to touch the persisted blob. Only
// the most recent submitted snapshot is kept, so a burst of mutations
// collapses into one write and the last write always carries the latest
// state.
type writer struct {
	kv  KV
	key string
	log *zap.Logger

	mu        sync.Mutex
	pending   *writeOp
	submitted uint64
	done      uint64
	advanced  chan struct{}

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newWriter(kv KV, key string, log *zap.Logger) *writer {
	w := &writer{
		kv:       kv,
		key:      key,
		log:      log,
		advanced: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) submit(value string, remove bool) {
	w.mu.Lock()
	w.submitted++
	w.pending = &writeOp{seq: w.submitted, value: value, remove: remove}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		op := w.pending
		w.pending = nil
		w.mu.Unlock()
		if op == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		var err error
		if op.remove {
			err = w.kv.Remove(ctx, w.key)
		} else {
			err = w.kv.Set(ctx, w.key, op.value)
		}
		cancel()
		if err != nil {
			w.log.Warn("cart persist failed", zap.String("key", w.key), zap.Uint64("seq", op.seq), zap.Error(err))
		}

		w.mu.Lock()
		w.done = op.seq
		close(w.advanced)
		w.advanced = make(chan struct{})
		w.mu.Unlock()
	}
}

// flush waits until every snapshot submitted before the call has been
// attempted.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.submitted
	for w.done < target {
		ch := w.advanced
		w.mu.Unlock()
		select {
		case <-ch:
		case <-w.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
		w.mu.Lock()
	}
	w.mu.Unlock()
	return nil
}

func (w *writer) close(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
