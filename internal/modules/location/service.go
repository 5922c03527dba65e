// README: Reporter pushes the latest fix to the backend on a fixed period while the driver is available.
package location

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultReportInterval = 30 * time.Second

type Pusher interface {
	PushLocation(ctx context.Context, lat, lng float64) error
}

type Reporter struct {
	pusher   Pusher
	store    Store
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	active   bool
	lastSent time.Time
	sent     int
	failed   int
}

func NewReporter(p Pusher, store Store, interval time.Duration, log *zap.Logger) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{pusher: p, store: store, interval: interval, log: log, now: time.Now}
}

// Record stores a fix from the device. It is pushed on the next tick.
func (r *Reporter) Record(ctx context.Context, f Fix) error {
	if !f.Position.Valid() {
		return ErrInvalidFix
	}
	if f.RecordedAt.IsZero() {
		f.RecordedAt = r.now()
	}
	return r.store.Save(ctx, f)
}

func (r *Reporter) Latest(ctx context.Context) (Fix, bool, error) {
	return r.store.Latest(ctx)
}

func (r *Reporter) Enable() {
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()
}

func (r *Reporter) Disable() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
}

func (r *Reporter) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

type ReportStats struct {
	Active   bool      `json:"active"`
	LastSent time.Time `json:"last_sent,omitempty"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
}

func (r *Reporter) Stats() ReportStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReportStats{Active: r.active, LastSent: r.lastSent, Sent: r.sent, Failed: r.failed}
}

// Run ticks until ctx is done. Ticks while inactive are skipped.
func (r *Reporter) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !r.Active() {
				continue
			}
			if err := r.Report(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("location push failed", zap.Error(err))
			}
		}
	}
}

// Report pushes the latest fix once. ErrNoFix means nothing was recorded yet.
func (r *Reporter) Report(ctx context.Context) error {
	f, ok, err := r.store.Latest(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoFix
	}
	err = r.pusher.PushLocation(ctx, f.Position.Lat, f.Position.Lng)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return err
	}
	r.sent++
	r.lastSent = r.now()
	return nil
}
