// README: Driver availability flag with optimistic toggle and observer fan-out.
package location

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"delivery/internal/backend"
)

type AvailabilityBackend interface {
	GetDriverState(ctx context.Context) (backend.DriverState, error)
	SetAvailability(ctx context.Context, available bool) error
}

// Observer is told about every effective change of availability.
type Observer interface {
	Enable()
	Disable()
}

type Availability struct {
	backend   AvailabilityBackend
	log       *zap.Logger
	observers []Observer

	op sync.Mutex // serializes Refresh/Set

	mu        sync.Mutex
	known     bool
	available bool
}

func NewAvailability(b AvailabilityBackend, log *zap.Logger, observers ...Observer) *Availability {
	if log == nil {
		log = zap.NewNop()
	}
	return &Availability{backend: b, log: log, observers: observers}
}

func (a *Availability) Available() (available, known bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available, a.known
}

// Refresh loads the flag from the backend.
func (a *Availability) Refresh(ctx context.Context) (bool, error) {
	a.op.Lock()
	defer a.op.Unlock()
	st, err := a.backend.GetDriverState(ctx)
	if err != nil {
		return false, err
	}
	a.apply(st.Disponible)
	return st.Disponible, nil
}

// Toggle flips the flag. Observers see the new value before the backend
// confirms it and are rolled back if the backend refuses.
func (a *Availability) Toggle(ctx context.Context) (bool, error) {
	if !a.op.TryLock() {
		return false, ErrToggleBusy
	}
	defer a.op.Unlock()

	a.mu.Lock()
	if !a.known {
		a.mu.Unlock()
		return false, ErrStateUnknown
	}
	next := !a.available
	a.mu.Unlock()
	return a.setLocked(ctx, next)
}

// Set moves the flag to v. Setting the current value still calls the backend.
func (a *Availability) Set(ctx context.Context, v bool) (bool, error) {
	if !a.op.TryLock() {
		return false, ErrToggleBusy
	}
	defer a.op.Unlock()
	return a.setLocked(ctx, v)
}

func (a *Availability) setLocked(ctx context.Context, next bool) (bool, error) {
	a.mu.Lock()
	prev, known := a.available, a.known
	a.mu.Unlock()

	a.apply(next)
	if err := a.backend.SetAvailability(ctx, next); err != nil {
		a.log.Warn("availability change rejected", zap.Bool("want", next), zap.Error(err))
		if known {
			a.apply(prev)
		} else {
			a.mu.Lock()
			a.known = false
			a.mu.Unlock()
			if next {
				a.notify(false)
			}
		}
		return prev, err
	}
	a.log.Info("availability changed", zap.Bool("available", next))
	return next, nil
}

func (a *Availability) apply(v bool) {
	a.mu.Lock()
	changed := !a.known || a.available != v
	a.known = true
	a.available = v
	a.mu.Unlock()
	if changed {
		a.notify(v)
	}
}

func (a *Availability) notify(v bool) {
	for _, o := range a.observers {
		if v {
			o.Enable()
		} else {
			o.Disable()
		}
	}
}
