// README: Decision alerts: FCM push to the device and structured log fan-out.
package notify

import (
	"context"
	"errors"
	"strconv"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Alert announces an order waiting for an accept/reject decision.
type Alert struct {
	Role          string
	OrderID       string
	NumeroOrden   int64
	ClienteNombre string
	Total         decimal.Decimal
	Deadline      time.Time
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Log writes alerts to the structured log.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, a Alert) error {
	l.log.Info("order awaiting decision",
		zap.String("role", a.Role),
		zap.String("order_id", a.OrderID),
		zap.Int64("numero_orden", a.NumeroOrden),
		zap.String("cliente", a.ClienteNombre),
		zap.String("total", a.Total.StringFixed(2)),
		zap.Time("deadline", a.Deadline))
	return nil
}

// Sender is the part of the FCM client used here.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM pushes alerts to a single device token.
type FCM struct {
	client Sender
	token  string
}

func NewFCM(client Sender, deviceToken string) *FCM {
	return &FCM{client: client, token: deviceToken}
}

func (f *FCM) Notify(ctx context.Context, a Alert) error {
	ttl := time.Until(a.Deadline)
	if ttl < 0 {
		ttl = 0
	}
	msg := &messaging.Message{
		Token: f.token,
		Notification: &messaging.Notification{
			Title: "Nueva orden #" + strconv.FormatInt(a.NumeroOrden, 10),
			Body:  a.ClienteNombre + " · $" + a.Total.StringFixed(2),
		},
		Data: map[string]string{
			"role":     a.Role,
			"order_id": a.OrderID,
			"deadline": a.Deadline.UTC().Format(time.RFC3339),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &ttl,
		},
	}
	_, err := f.client.Send(ctx, msg)
	return err
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
