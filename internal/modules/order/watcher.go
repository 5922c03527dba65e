// README: Polling watcher that surfaces one new order at a time with a bounded decision window.
package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"delivery/internal/backend"
	"delivery/internal/notify"

	"go.uber.org/zap"
)

const (
	DefaultInterval       = 30 * time.Second
	DefaultDecisionWindow = 30 * time.Second

	maxBackoffFactor = 4
	releaseTimeout   = 10 * time.Second
)

type Config struct {
	Role           string
	Interval       time.Duration
	DecisionWindow time.Duration
	// RejectOnTimeout releases an expired offer through Source.Reject
	// instead of only dropping it locally.
	RejectOnTimeout bool
	// StartDisabled keeps the watcher quiet until Enable is called.
	StartDisabled bool
}

// Watcher polls a Source and offers the first unseen candidate for an
// accept/reject decision. Each decision ends exactly once: by Accept, Reject,
// the deadline or Disable, whichever claims it first.
type Watcher struct {
	cfg        Config
	src        Source
	notifier   notify.Notifier
	journal    Journal
	onAccepted func(ctx context.Context, o backend.Order)
	log        *zap.Logger
	now        func() time.Time

	nudge chan struct{}

	mu         sync.Mutex
	state      State
	lastSeenID string
	pending    *Decision
	timer      *time.Timer
	nextToken  uint64
	pollGen    uint64
	failures   int
}

func NewWatcher(cfg Config, src Source, log *zap.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.DecisionWindow <= 0 {
		cfg.DecisionWindow = DefaultDecisionWindow
	}
	state := StateIdle
	if cfg.StartDisabled {
		state = StateDisabled
	}
	return &Watcher{
		cfg:   cfg,
		src:   src,
		log:   log.With(zap.String("watcher", cfg.Role)),
		now:   time.Now,
		nudge: make(chan struct{}, 1),
		state: state,
	}
}

func (w *Watcher) WithNotifier(n notify.Notifier) *Watcher {
	w.notifier = n
	return w
}

func (w *Watcher) WithJournal(j Journal) *Watcher {
	w.journal = j
	return w
}

// OnAccepted registers a hook run after a successful accept, e.g. to refresh
// the assigned-orders list.
func (w *Watcher) OnAccepted(fn func(ctx context.Context, o backend.Order)) *Watcher {
	w.onAccepted = fn
	return w
}

func (w *Watcher) Role() string { return w.cfg.Role }

func (w *Watcher) Journal() Journal { return w.journal }

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) LastSeenID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeenID
}

// Pending returns the order awaiting decision, if any.
func (w *Watcher) Pending() (Decision, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return Decision{}, false
	}
	return *w.pending, true
}

// Snapshot is the watcher state as shown to the UI shell.
type Snapshot struct {
	Role        string    `json:"role"`
	State       State     `json:"state"`
	LastSeenID  string    `json:"last_seen_id,omitempty"`
	Pending     *Decision `json:"pending,omitempty"`
	SecondsLeft int       `json:"seconds_left"`
	Failures    int       `json:"consecutive_failures"`
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		Role:       w.cfg.Role,
		State:      w.state,
		LastSeenID: w.lastSeenID,
		Failures:   w.failures,
	}
	if w.pending != nil {
		d := *w.pending
		s.Pending = &d
		s.SecondsLeft = int(d.Remaining(w.now()).Round(time.Second) / time.Second)
	}
	return s
}

// Run ticks until ctx is done, then disables the watcher. Consecutive poll
// failures stretch the interval up to maxBackoffFactor times.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Disable()
			return
		case <-timer.C:
		case <-w.nudge:
			timer.Stop()
		}
		_ = w.Tick(ctx)
		timer.Reset(w.nextDelay())
	}
}

// Nudge asks Run for an immediate poll. Extra nudges collapse into one.
func (w *Watcher) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

func (w *Watcher) nextDelay() time.Duration {
	w.mu.Lock()
	n := w.failures
	w.mu.Unlock()

	d := w.cfg.Interval
	for i := 0; i < n && d < maxBackoffFactor*w.cfg.Interval; i++ {
		d *= 2
	}
	return min(d, maxBackoffFactor*w.cfg.Interval)
}

// Tick runs one poll cycle. It does nothing unless the watcher is Idle.
func (w *Watcher) Tick(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateIdle {
		w.mu.Unlock()
		return nil
	}
	w.setStateLocked(StatePolling)
	w.pollGen++
	gen := w.pollGen
	w.mu.Unlock()

	orders, err := w.src.Candidates(ctx)

	w.mu.Lock()
	// disabled, or superseded by a newer poll, while fetching
	if w.pollGen != gen || w.state != StatePolling {
		w.mu.Unlock()
		return nil
	}
	if err != nil {
		w.failures++
		n := w.failures
		w.setStateLocked(StateIdle)
		w.mu.Unlock()
		w.log.Warn("order poll failed", zap.Int("consecutive_failures", n), zap.Duration("next_poll", w.nextDelay()), zap.Error(err))
		return err
	}
	w.failures = 0
	if len(orders) == 0 || orders[0].ID == w.lastSeenID {
		w.setStateLocked(StateIdle)
		w.mu.Unlock()
		return nil
	}

	cand := orders[0]
	w.lastSeenID = cand.ID
	w.nextToken++
	d := &Decision{Order: cand, Deadline: w.now().Add(w.cfg.DecisionWindow), token: w.nextToken}
	w.pending = d
	w.setStateLocked(StateAwaitingDecision)
	tok := d.token
	w.timer = time.AfterFunc(w.cfg.DecisionWindow, func() { w.expire(tok) })
	offered := *d
	w.mu.Unlock()

	w.log.Info("order offered",
		zap.String("order_id", cand.ID),
		zap.Int64("numero_orden", cand.NumeroOrden),
		zap.Time("deadline", offered.Deadline))
	w.record(ctx, cand.ID, OutcomeOffered, "")
	if w.notifier != nil {
		err := w.notifier.Notify(ctx, notify.Alert{
			Role:          w.cfg.Role,
			OrderID:       cand.ID,
			NumeroOrden:   cand.NumeroOrden,
			ClienteNombre: cand.ClienteNombre,
			Total:         cand.Total,
			Deadline:      offered.Deadline,
		})
		if err != nil {
			w.log.Warn("decision alert failed", zap.String("order_id", cand.ID), zap.Error(err))
		}
	}
	return nil
}

// Accept accepts the pending order. orderID, when set, must match it. The
// decision is over when Accept returns, whatever the backend answered.
func (w *Watcher) Accept(ctx context.Context, orderID string) error {
	d, expired, err := w.claimForUser(orderID)
	if err != nil {
		return err
	}
	if expired {
		w.finishTimeout(ctx, d)
		return ErrDecisionExpired
	}

	if err := w.src.Accept(ctx, d.Order); err != nil {
		w.log.Warn("accept failed", zap.String("order_id", d.Order.ID), zap.Error(err))
		w.record(ctx, d.Order.ID, OutcomeAcceptFailed, err.Error())
		return fmt.Errorf("accept order %s: %w", d.Order.ID, err)
	}
	w.log.Info("order accepted", zap.String("order_id", d.Order.ID))
	w.record(ctx, d.Order.ID, OutcomeAccepted, "")
	if w.onAccepted != nil {
		w.onAccepted(ctx, d.Order)
	}
	return nil
}

// Reject declines the pending order and tells the backend. The local prompt
// is cleared even when the backend call fails.
func (w *Watcher) Reject(ctx context.Context, orderID string) error {
	d, expired, err := w.claimForUser(orderID)
	if err != nil {
		return err
	}
	if expired {
		w.finishTimeout(ctx, d)
		return ErrDecisionExpired
	}

	if err := w.src.Reject(ctx, d.Order); err != nil {
		w.log.Warn("reject failed", zap.String("order_id", d.Order.ID), zap.Error(err))
		w.record(ctx, d.Order.ID, OutcomeRejected, "backend: "+err.Error())
		return fmt.Errorf("reject order %s: %w", d.Order.ID, err)
	}
	w.log.Info("order rejected", zap.String("order_id", d.Order.ID))
	w.record(ctx, d.Order.ID, OutcomeRejected, "")
	return nil
}

// Enable resumes polling after Disable. lastSeenID is kept, so an order
// already resolved is not offered again.
func (w *Watcher) Enable() {
	w.mu.Lock()
	changed := w.state == StateDisabled
	if changed {
		w.setStateLocked(StateIdle)
	}
	w.mu.Unlock()
	if changed {
		w.log.Info("watcher enabled")
		w.Nudge()
	}
}

// Disable stops polling and drops any pending decision locally.
func (w *Watcher) Disable() {
	w.mu.Lock()
	if w.state == StateDisabled {
		w.mu.Unlock()
		return
	}
	var dropped *Decision
	if w.pending != nil {
		d, _ := w.claimLocked(w.pending.token)
		dropped = &d
	}
	w.setStateLocked(StateDisabled)
	w.mu.Unlock()

	w.log.Info("watcher disabled")
	if dropped != nil {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		w.record(ctx, dropped.Order.ID, OutcomeDismissed, "watcher disabled")
	}
}

func (w *Watcher) claimForUser(orderID string) (Decision, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return Decision{}, false, ErrNoPendingDecision
	}
	if orderID != "" && orderID != w.pending.Order.ID {
		return Decision{}, false, ErrStaleDecision
	}
	expired := !w.now().Before(w.pending.Deadline)
	d, _ := w.claimLocked(w.pending.token)
	return d, expired, nil
}

// claimLocked ends the decision identified by tok. Only the first caller for
// a given token gets ok=true.
func (w *Watcher) claimLocked(tok uint64) (Decision, bool) {
	if w.pending == nil || w.pending.token != tok {
		return Decision{}, false
	}
	d := *w.pending
	w.pending = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.state == StateAwaitingDecision {
		w.setStateLocked(StateIdle)
	}
	return d, true
}

func (w *Watcher) expire(tok uint64) {
	w.mu.Lock()
	d, ok := w.claimLocked(tok)
	w.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	w.finishTimeout(ctx, d)
}

func (w *Watcher) finishTimeout(ctx context.Context, d Decision) {
	detail := ""
	if w.cfg.RejectOnTimeout {
		if err := w.src.Reject(ctx, d.Order); err != nil {
			w.log.Warn("release after timeout failed", zap.String("order_id", d.Order.ID), zap.Error(err))
			detail = "release failed: " + err.Error()
		} else {
			detail = "released"
		}
	}
	w.log.Info("decision timed out", zap.String("order_id", d.Order.ID), zap.Bool("released", detail == "released"))
	w.record(ctx, d.Order.ID, OutcomeTimedOut, detail)
}

func (w *Watcher) setStateLocked(to State) {
	if w.state == to {
		return
	}
	if !CanTransition(w.state, to) {
		w.log.Error("invalid watcher transition", zap.String("from", string(w.state)), zap.String("to", string(to)))
		return
	}
	w.state = to
}

func (w *Watcher) record(ctx context.Context, orderID string, outcome Outcome, detail string) {
	if w.journal == nil {
		return
	}
	e := &Event{Role: w.cfg.Role, OrderID: orderID, Outcome: outcome, Detail: detail, CreatedAt: w.now()}
	if err := w.journal.AppendEvent(ctx, e); err != nil {
		w.log.Warn("journal append failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
