// README: HTTP client for the delivery REST backend, guarded by a circuit breaker.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var (
	ErrUnavailable = errors.New("backend unavailable")
	ErrNotFound    = errors.New("backend resource not found")
)

// StatusError carries a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) clientSide() bool {
	return e.Code >= 400 && e.Code < 500
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
	token   string
}

func NewClient(baseURL, token string, timeout time.Duration, log *zap.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
		token:   token,
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "delivery-backend",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx answers mean the backend is alive.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.clientSide())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, header http.Header) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: marshal request: %w", method, path, err)
		}
		payload = b
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%s %s: build request: %w", method, path, err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: do request: %w", method, path, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: truncate(string(raw), 256)}
		}
		return raw, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := c.do(ctx, http.MethodGet, "/api/ordenes/ordenes/", nil, &out, nil)
	return out, err
}

func (c *Client) ListAwaitingAcceptance(ctx context.Context) ([]Order, error) {
	var out []Order
	err := c.do(ctx, http.MethodGet, "/api/ordenes/ordenes/esperando-aceptacion/", nil, &out, nil)
	return out, err
}

func (c *Client) ListMyOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := c.do(ctx, http.MethodGet, "/api/ordenes/ordenes/mis-ordenes/", nil, &out, nil)
	return out, err
}

func (c *Client) AcceptOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/ordenes/ordenes/"+id+"/aceptar/", struct{}{}, nil, nil)
}

// RejectOrder releases an offered order back to the dispatch pool.
func (c *Client) RejectOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/ordenes/ordenes/"+id+"/rechazar/", struct{}{}, nil, nil)
}

func (c *Client) ChangeOrderStatus(ctx context.Context, id, statusID string) error {
	return c.do(ctx, http.MethodPatch, "/api/ordenes/ordenes/"+id+"/cambiar-estado/", statusChange{Estado: statusID}, nil, nil)
}

func (c *Client) ListOrderStatuses(ctx context.Context) ([]OrderStatus, error) {
	var out []OrderStatus
	err := c.do(ctx, http.MethodGet, "/api/ordenes/estados-orden/", nil, &out, nil)
	return out, err
}

// FindOrderStatus resolves a status id by its case-insensitive name.
func (c *Client) FindOrderStatus(ctx context.Context, name string) (OrderStatus, error) {
	all, err := c.ListOrderStatuses(ctx)
	if err != nil {
		return OrderStatus{}, err
	}
	for _, s := range all {
		if strings.EqualFold(s.Nombre, name) {
			return s, nil
		}
	}
	return OrderStatus{}, fmt.Errorf("%w: order status %q", ErrNotFound, name)
}

// CreateOrder posts a new order. idempotencyKey is generated when empty.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest, idempotencyKey string) (*CreatedOrder, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	h := http.Header{}
	h.Set("Idempotency-Key", idempotencyKey)
	var out CreatedOrder
	if err := c.do(ctx, http.MethodPost, "/api/ordenes/ordenes/", req, &out, h); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---------------------------------------------------------------------------
// Restaurants, payments, addresses
// ---------------------------------------------------------------------------

func (c *Client) GetRestaurant(ctx context.Context, id string) (*Restaurant, error) {
	var out Restaurant
	if err := c.do(ctx, http.MethodGet, "/api/restaurantes/restaurantes/"+id+"/", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	var out []PaymentMethod
	err := c.do(ctx, http.MethodGet, "/api/pagos/metodos-pago/", nil, &out, nil)
	return out, err
}

func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) error {
	return c.do(ctx, http.MethodPost, "/api/pagos/pagos/", req, nil, nil)
}

func (c *Client) ListAddresses(ctx context.Context) ([]Address, error) {
	var out []Address
	err := c.do(ctx, http.MethodGet, "/api/user/direcciones/", nil, &out, nil)
	return out, err
}

// DefaultAddress returns the address flagged es_predeterminada.
func (c *Client) DefaultAddress(ctx context.Context) (*Address, error) {
	all, err := c.ListAddresses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].EsPredeterminada {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: default address", ErrNotFound)
}

// ---------------------------------------------------------------------------
// Driver state
// ---------------------------------------------------------------------------

func (c *Client) GetDriverState(ctx context.Context) (DriverState, error) {
	var out DriverState
	err := c.do(ctx, http.MethodGet, "/api/user/conductor/mi_estado/", nil, &out, nil)
	return out, err
}

func (c *Client) SetAvailability(ctx context.Context, available bool) error {
	return c.do(ctx, http.MethodPatch, "/api/user/conductor/mi_estado/", driverAvailability{Disponible: available}, nil, nil)
}

func (c *Client) PushLocation(ctx context.Context, lat, lng float64) error {
	return c.do(ctx, http.MethodPatch, "/api/user/conductor/mi_estado/", driverPosition{Latitud: lat, Longitud: lng}, nil, nil)
}
