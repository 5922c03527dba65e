package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"delivery/internal/backend"
	"delivery/internal/modules/cart"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const minPhoneDigits = 7

type OrderBackend interface {
	FindOrderStatus(ctx context.Context, name string) (backend.OrderStatus, error)
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest, idempotencyKey string) (*backend.CreatedOrder, error)
	CreatePayment(ctx context.Context, req backend.PaymentRequest) error
}

// Cart is the part of the cart service the submitter needs.
type Cart interface {
	Items() []cart.LineItem
	Clear() error
}

type SubmitRequest struct {
	Address       *backend.Address       `json:"direccion"`
	PaymentMethod *backend.PaymentMethod `json:"metodo_pago"`
	Reference     string                 `json:"referencia"`
	Phone         string                 `json:"telefono"`
	// CallingCode prefixes Phone, without "+". Defaults to the submitter's.
	CallingCode string `json:"codigo_pais"`
	// IdempotencyKey lets a caller retry after ErrPaymentNotRegistered
	// without creating a second order. Generated when empty.
	IdempotencyKey string `json:"idempotency_key"`
}

type Receipt struct {
	OrderID        string          `json:"orden"`
	Total          decimal.Decimal `json:"total"`
	Status         string          `json:"estado"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type Submitter struct {
	backend      OrderBackend
	cart         Cart
	exchangeRate string
	callingCode  string
	log          *zap.Logger

	busy atomic.Bool
}

// NewSubmitter builds a submitter. exchangeRate is sent as tasa_cambio for
// bolívar-denominated payments.
func NewSubmitter(b OrderBackend, c Cart, exchangeRate, callingCode string, log *zap.Logger) *Submitter {
	return &Submitter{
		backend:      b,
		cart:         c,
		exchangeRate: exchangeRate,
		callingCode:  strings.TrimPrefix(callingCode, "+"),
		log:          log,
	}
}

// Submit validates locally, creates the order, registers its payment and
// clears the cart. The cart is left untouched on any failure.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}
	defer s.busy.Store(false)

	items := s.cart.Items()
	if err := validate(items, req); err != nil {
		return nil, err
	}
	mobile := isMobilePayment(req.PaymentMethod.Nombre)

	statusName := backend.StatusPending
	if mobile {
		statusName = backend.StatusPaymentToVerify
	}
	status, err := s.backend.FindOrderStatus(ctx, statusName)
	if err != nil {
		return nil, fmt.Errorf("resolve status %q: %w", statusName, err)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	created, err := s.backend.CreateOrder(ctx, buildOrder(items, req, status.ID), key)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	receipt := &Receipt{OrderID: created.ID, Total: created.Total, Status: status.Nombre, IdempotencyKey: key}

	if err := s.backend.CreatePayment(ctx, s.buildPayment(created, req, mobile)); err != nil {
		s.log.Warn("payment registration failed",
			zap.String("order_id", created.ID), zap.String("idempotency_key", key), zap.Error(err))
		return receipt, fmt.Errorf("%w: %w", ErrPaymentNotRegistered, err)
	}

	if err := s.cart.Clear(); err != nil && !errors.Is(err, cart.ErrNotLoaded) {
		s.log.Warn("clear cart after order failed", zap.String("order_id", created.ID), zap.Error(err))
	}
	s.log.Info("order submitted",
		zap.String("order_id", created.ID),
		zap.String("total", created.Total.StringFixed(2)),
		zap.String("payment", req.PaymentMethod.Nombre))
	return receipt, nil
}

func validate(items []cart.LineItem, req SubmitRequest) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	if req.Address == nil || (req.Address.ID == "" && strings.TrimSpace(req.Address.DireccionTexto) == "") {
		return ErrNoAddress
	}
	if req.PaymentMethod == nil || req.PaymentMethod.ID == "" {
		return ErrNoPaymentMethod
	}
	if isMobilePayment(req.PaymentMethod.Nombre) {
		if countDigits(req.Phone) < minPhoneDigits || strings.TrimSpace(req.Reference) == "" {
			return ErrPaymentDetails
		}
	}
	return nil
}

func buildOrder(items []cart.LineItem, req SubmitRequest, statusID string) backend.CreateOrderRequest {
	lines := make([]backend.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, backend.OrderLine{Plato: it.ID, Cantidad: it.Quantity, Extras: it.ExtraIDs()})
	}
	return backend.CreateOrderRequest{
		Restaurante:      items[0].RestaurantID,
		Estado:           statusID,
		MetodoPago:       req.PaymentMethod.ID,
		DireccionEntrega: req.Address.DireccionTexto,
		Latitud:          req.Address.Latitud,
		Longitud:         req.Address.Longitud,
		Detalles:         lines,
	}
}

func (s *Submitter) buildPayment(created *backend.CreatedOrder, req SubmitRequest, mobile bool) backend.PaymentRequest {
	p := backend.PaymentRequest{
		Orden:    created.ID,
		Metodo:   req.PaymentMethod.ID,
		MontoUSD: created.Total,
	}
	if mobile || isBolivares(req.PaymentMethod.Nombre) {
		p.TasaCambio = s.exchangeRate
	}
	if mobile {
		code := strings.TrimPrefix(req.CallingCode, "+")
		if code == "" {
			code = s.callingCode
		}
		p.Referencia = strings.TrimSpace(req.Reference)
		p.TelefonoPago = "+" + code + digitsOnly(req.Phone)
	}
	return p
}

func isMobilePayment(name string) bool {
	n := strings.TrimSpace(name)
	return strings.EqualFold(n, backend.PaymentMobile) || strings.EqualFold(n, "pago movil")
}

func isBolivares(name string) bool {
	n := strings.TrimSpace(name)
	return strings.EqualFold(n, backend.PaymentBolivares) || strings.EqualFold(n, "bolivares")
}

func countDigits(s string) int {
	return len(digitsOnly(s))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
