package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok", 2*time.Second, zap.NewNop())
}

func TestListAwaitingAcceptance_DecodesOrders(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ordenes/ordenes/esperando-aceptacion/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"o1","numero_orden":7,"cliente_nombre":"Ana","estado_nombre":"Esperando aceptacion","creado_en":"2026-10-16T10:00:00Z","total":"12.50"}]`))
	}))

	orders, err := c.ListAwaitingAcceptance(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, int64(7), orders[0].NumeroOrden)
	assert.True(t, orders[0].Total.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, orders[0].HasStatus(StatusAwaitingDriver))
}

func TestCreateOrder_SendsIdempotencyKey(t *testing.T) {
	var got CreateOrderRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"new","total":21.9}`))
	}))

	out, err := c.CreateOrder(context.Background(), CreateOrderRequest{
		Restaurante: "r1",
		MetodoPago:  "m1",
		Detalles:    []OrderLine{{Plato: "p1", Cantidad: 2}},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "new", out.ID)
	assert.Equal(t, "r1", got.Restaurante)
	assert.Len(t, got.Detalles, 1)
}

func TestDo_NotFoundMapsToSentinel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"no"}`, http.StatusNotFound)
	}))

	_, err := c.GetRestaurant(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.ListOrders(ctx)
		require.Error(t, err)
	}
	_, err := c.ListOrders(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), hits.Load())
}

func TestDo_ClientErrorsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		err := c.AcceptOrder(ctx, "o1")
		var se *StatusError
		require.True(t, errors.As(err, &se), "want StatusError, got %v", err)
		assert.Equal(t, http.StatusBadRequest, se.Code)
	}
}

func TestDefaultAddress(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a1","es_predeterminada":false},{"id":"a2","latitud":10.5,"longitud":-66.9,"es_predeterminada":true}]`))
	}))

	addr, err := c.DefaultAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", addr.ID)
}

func TestListPaymentMethods(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/pagos/metodos-pago/", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"pm-cash","nombre":"Efectivo"},{"id":"pm-pm","nombre":"Pago móvil"}]`))
	}))

	methods, err := c.ListPaymentMethods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []PaymentMethod{{ID: "pm-cash", Nombre: "Efectivo"}, {ID: "pm-pm", Nombre: "Pago móvil"}}, methods)
}

func TestOrder_CreatedAt(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
	}{
		{"2026-10-16T10:00:00Z", true},
		{"2026-10-16T10:00:00.123456-04:00", true},
		{"2026-10-16", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tc := range cases {
		_, ok := Order{CreadoEn: tc.raw}.CreatedAt()
		if ok != tc.ok {
			t.Errorf("CreatedAt(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
		}
	}
}
