// README: Wire shapes of the delivery REST backend that the agent depends on.
package backend

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User roles as issued by the backend.
const (
	RoleCustomer = "cliente"
	RoleMerchant = "comercio"
	RoleDriver   = "delivery"
)

// Order status names as returned in estado_nombre.
const (
	StatusPending         = "pendiente"
	StatusPaymentToVerify = "pago por verificar"
	StatusAccepted        = "aceptada"
	StatusAwaitingDriver  = "esperando aceptacion"
	StatusAssigned        = "asignada"
	StatusPrepared        = "preparado"
	StatusOnTheWay        = "en camino"
	StatusDelivered       = "entregada"
	StatusCompleted       = "completada"
	StatusCancelled       = "cancelada"
)

// Payment method names as configured in the backend catalogue.
const (
	PaymentMobile    = "Pago móvil"
	PaymentBolivares = "Bolívares"
)

type Order struct {
	ID            string          `json:"id"`
	NumeroOrden   int64           `json:"numero_orden"`
	ClienteNombre string          `json:"cliente_nombre"`
	EstadoNombre  string          `json:"estado_nombre"`
	CreadoEn      string          `json:"creado_en"`
	Total         decimal.Decimal `json:"total"`
}

// HasStatus compares estado_nombre case-insensitively.
func (o Order) HasStatus(name string) bool {
	return strings.EqualFold(strings.TrimSpace(o.EstadoNombre), name)
}

// CreatedAt parses creado_en. The backend emits RFC3339 with or without
// fractional seconds; a date-only value is accepted as well.
func (o Order) CreatedAt() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, o.CreadoEn); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type OrderStatus struct {
	ID          string `json:"id"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
}

type Restaurant struct {
	ID        string  `json:"id"`
	Nombre    string  `json:"nombre"`
	Direccion string  `json:"direccion"`
	Latitud   float64 `json:"latitud"`
	Longitud  float64 `json:"longitud"`
}

type PaymentMethod struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
}

type Address struct {
	ID               string  `json:"id"`
	DireccionTexto   string  `json:"direccion_texto"`
	Latitud          float64 `json:"latitud"`
	Longitud         float64 `json:"longitud"`
	EsPredeterminada bool    `json:"es_predeterminada"`
}

type OrderLine struct {
	Plato    string `json:"plato"`
	Cantidad int    `json:"cantidad"`
	Extras   []int  `json:"extras,omitempty"`
}

type CreateOrderRequest struct {
	Restaurante      string      `json:"restaurante"`
	Estado           string      `json:"estado,omitempty"`
	MetodoPago       string      `json:"metodo_pago"`
	DireccionEntrega string      `json:"direccion_entrega"`
	Latitud          float64     `json:"latitud"`
	Longitud         float64     `json:"longitud"`
	Detalles         []OrderLine `json:"detalles"`
}

type CreatedOrder struct {
	ID    string          `json:"id"`
	Total decimal.Decimal `json:"total"`
}

type PaymentRequest struct {
	Orden        string          `json:"orden"`
	Metodo       string          `json:"metodo"`
	MontoUSD     decimal.Decimal `json:"monto_usd"`
	TasaCambio   string          `json:"tasa_cambio,omitempty"`
	Referencia   string          `json:"referencia,omitempty"`
	TelefonoPago string          `json:"telefono_pago,omitempty"`
}

type DriverState struct {
	Disponible bool `json:"disponible"`
}

type driverAvailability struct {
	Disponible bool `json:"disponible"`
}

type driverPosition struct {
	Latitud  float64 `json:"latitud"`
	Longitud float64 `json:"longitud"`
}

type statusChange struct {
	Estado string `json:"estado"`
}
