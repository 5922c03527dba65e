// README: Watcher states, transitions and the decision journal entries.
package order

import (
	"errors"
	"time"

	"delivery/internal/backend"
)

type State string

const (
	StateIdle             State = "idle"
	StatePolling          State = "polling"
	StateAwaitingDecision State = "awaiting_decision"
	StateDisabled         State = "disabled"
)

// AllowedTransitions represents the watcher state flow as code.
var AllowedTransitions = map[State][]State{
	StateIdle:             {StatePolling, StateDisabled},
	StatePolling:          {StateIdle, StateAwaitingDecision, StateDisabled},
	StateAwaitingDecision: {StateIdle, StateDisabled},
	StateDisabled:         {StateIdle},
}

func CanTransition(from, to State) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrInvalidState      = errors.New("invalid watcher state transition")
	ErrNoPendingDecision = errors.New("no order awaiting decision")
	ErrDecisionExpired   = errors.New("decision window expired")
	ErrStaleDecision     = errors.New("order is no longer the pending decision")
)

// Decision is the order currently offered to the user.
type Decision struct {
	Order    backend.Order `json:"orden"`
	Deadline time.Time     `json:"deadline"`
	token    uint64
}

// Remaining is the time left at now, never negative.
func (d Decision) Remaining(now time.Time) time.Duration {
	if r := d.Deadline.Sub(now); r > 0 {
		return r
	}
	return 0
}

// Outcome names how a decision ended, as recorded in the journal.
type Outcome string

const (
	OutcomeOffered      Outcome = "offered"
	OutcomeAccepted     Outcome = "accepted"
	OutcomeAcceptFailed Outcome = "accept_failed"
	OutcomeRejected     Outcome = "rejected"
	OutcomeTimedOut     Outcome = "timed_out"
	OutcomeDismissed    Outcome = "dismissed"
)

// Event is one journal entry.
type Event struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	OrderID   string    `json:"order_id"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
