package order

import (
	"context"
	"testing"

	"delivery/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMerchantBackend struct {
	orders      []backend.Order
	lookups     int
	transitions map[string]string
}

func (m *mockMerchantBackend) ListOrders(context.Context) ([]backend.Order, error) {
	return m.orders, nil
}

func (m *mockMerchantBackend) FindOrderStatus(_ context.Context, name string) (backend.OrderStatus, error) {
	m.lookups++
	return backend.OrderStatus{ID: "id-" + name, Nombre: name}, nil
}

func (m *mockMerchantBackend) ChangeOrderStatus(_ context.Context, id, statusID string) error {
	if m.transitions == nil {
		m.transitions = map[string]string{}
	}
	m.transitions[id] = statusID
	return nil
}

func TestMerchantSource_CandidatesKeepBackendOrder(t *testing.T) {
	b := &mockMerchantBackend{orders: []backend.Order{
		{ID: "a", NumeroOrden: 1, EstadoNombre: "Pendiente"},
		{ID: "b", NumeroOrden: 5, EstadoNombre: "completada"},
		{ID: "c", NumeroOrden: 3, EstadoNombre: "pendiente"},
	}}

	got, err := NewMerchantSource(b).Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestMerchantSource_AcceptRejectUseCachedStatusIDs(t *testing.T) {
	b := &mockMerchantBackend{}
	s := NewMerchantSource(b)
	ctx := context.Background()

	require.NoError(t, s.Accept(ctx, backend.Order{ID: "o1"}))
	require.NoError(t, s.Accept(ctx, backend.Order{ID: "o2"}))
	require.NoError(t, s.Reject(ctx, backend.Order{ID: "o3"}))

	assert.Equal(t, 2, b.lookups)
	assert.Equal(t, "id-"+backend.StatusAccepted, b.transitions["o1"])
	assert.Equal(t, "id-"+backend.StatusAccepted, b.transitions["o2"])
	assert.Equal(t, "id-"+backend.StatusCancelled, b.transitions["o3"])
}

type mockDriverBackend struct {
	accepted, rejected []string
	mine               []backend.Order
}

func (m *mockDriverBackend) ListAwaitingAcceptance(context.Context) ([]backend.Order, error) {
	return []backend.Order{{ID: "x"}}, nil
}

func (m *mockDriverBackend) ListMyOrders(context.Context) ([]backend.Order, error) {
	return m.mine, nil
}

func (m *mockDriverBackend) AcceptOrder(_ context.Context, id string) error {
	m.accepted = append(m.accepted, id)
	return nil
}

func (m *mockDriverBackend) RejectOrder(_ context.Context, id string) error {
	m.rejected = append(m.rejected, id)
	return nil
}

func TestDriverSource(t *testing.T) {
	b := &mockDriverBackend{mine: []backend.Order{{ID: "m1"}}}
	s := NewDriverSource(b)
	ctx := context.Background()

	got, err := s.Candidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", got[0].ID)

	require.NoError(t, s.Accept(ctx, got[0]))
	require.NoError(t, s.Reject(ctx, backend.Order{ID: "y"}))
	assert.Equal(t, []string{"x"}, b.accepted)
	assert.Equal(t, []string{"y"}, b.rejected)

	assert.Empty(t, s.Assigned())
	require.NoError(t, s.RefreshAssigned(ctx))
	assert.Equal(t, "m1", s.Assigned()[0].ID)
}
