// README: Candidate-order sources for the driver and merchant watchers.
package order

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"delivery/internal/backend"
)

// Source supplies candidate orders and carries out decisions on them.
type Source interface {
	Candidates(ctx context.Context) ([]backend.Order, error)
	Accept(ctx context.Context, o backend.Order) error
	Reject(ctx context.Context, o backend.Order) error
}

type DriverBackend interface {
	ListAwaitingAcceptance(ctx context.Context) ([]backend.Order, error)
	ListMyOrders(ctx context.Context) ([]backend.Order, error)
	AcceptOrder(ctx context.Context, id string) error
	RejectOrder(ctx context.Context, id string) error
}

// DriverSource offers orders waiting for a driver and keeps the driver's
// assigned-orders list.
type DriverSource struct {
	b DriverBackend

	mu       sync.RWMutex
	assigned []backend.Order
}

func NewDriverSource(b DriverBackend) *DriverSource {
	return &DriverSource{b: b}
}

func (s *DriverSource) Candidates(ctx context.Context) ([]backend.Order, error) {
	return s.b.ListAwaitingAcceptance(ctx)
}

func (s *DriverSource) Accept(ctx context.Context, o backend.Order) error {
	return s.b.AcceptOrder(ctx, o.ID)
}

// Reject releases the offer so the backend can hand it to another driver.
func (s *DriverSource) Reject(ctx context.Context, o backend.Order) error {
	return s.b.RejectOrder(ctx, o.ID)
}

// RefreshAssigned reloads the orders assigned to this driver.
func (s *DriverSource) RefreshAssigned(ctx context.Context) error {
	orders, err := s.b.ListMyOrders(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.assigned = orders
	s.mu.Unlock()
	return nil
}

func (s *DriverSource) Assigned() []backend.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.assigned)
}

type MerchantBackend interface {
	ListOrders(ctx context.Context) ([]backend.Order, error)
	FindOrderStatus(ctx context.Context, name string) (backend.OrderStatus, error)
	ChangeOrderStatus(ctx context.Context, id, statusID string) error
}

// MerchantSource offers the restaurant's pending orders. Accept and reject
// move the order to "aceptada" and "cancelada".
type MerchantSource struct {
	b MerchantBackend

	mu       sync.Mutex
	statuses map[string]string
}

func NewMerchantSource(b MerchantBackend) *MerchantSource {
	return &MerchantSource{b: b, statuses: make(map[string]string)}
}

// Candidates keeps pending orders in the order the backend returned them.
func (s *MerchantSource) Candidates(ctx context.Context) ([]backend.Order, error) {
	all, err := s.b.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return PendingOf(all), nil
}

func (s *MerchantSource) Accept(ctx context.Context, o backend.Order) error {
	return s.moveTo(ctx, o, backend.StatusAccepted)
}

func (s *MerchantSource) Reject(ctx context.Context, o backend.Order) error {
	return s.moveTo(ctx, o, backend.StatusCancelled)
}

func (s *MerchantSource) moveTo(ctx context.Context, o backend.Order, status string) error {
	id, err := s.statusID(ctx, status)
	if err != nil {
		return err
	}
	return s.b.ChangeOrderStatus(ctx, o.ID, id)
}

// statusID resolves and caches status ids; they never change at runtime.
func (s *MerchantSource) statusID(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	id, ok := s.statuses[name]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	st, err := s.b.FindOrderStatus(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve status %q: %w", name, err)
	}
	s.mu.Lock()
	s.statuses[name] = st.ID
	s.mu.Unlock()
	return st.ID, nil
}

// PendingOf filters orders whose status is "pendiente".
func PendingOf(orders []backend.Order) []backend.Order {
	out := make([]backend.Order, 0, len(orders))
	for _, o := range orders {
		if o.HasStatus(backend.StatusPending) {
			out = append(out, o)
		}
	}
	return out
}
