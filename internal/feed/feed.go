// README: Optional AMQP order-event feed that nudges watchers into an immediate poll.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrFeedClosed = errors.New("amqp delivery channel closed")

// Channel is the subset of *amqp.Channel the nudger uses.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Nudger interface {
	Nudge()
}

// Event is the message body published by the backend when an order changes.
type Event struct {
	Role    string `json:"role"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type AMQPNudger struct {
	ch      Channel
	queue   string
	targets map[string]Nudger
	log     *zap.Logger
}

// NewAMQPNudger routes events by role to targets. An event without a role
// nudges every target.
func NewAMQPNudger(ch Channel, queue string, targets map[string]Nudger, log *zap.Logger) *AMQPNudger {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPNudger{ch: ch, queue: queue, targets: targets, log: log}
}

// Run consumes until ctx is done or the broker closes the channel.
func (n *AMQPNudger) Run(ctx context.Context) error {
	if _, err := n.ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", n.queue, err)
	}
	if err := n.ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := n.ch.Consume(n.queue, "delivery-agent", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", n.queue, err)
	}
	n.log.Info("order feed consuming", zap.String("queue", n.queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrFeedClosed
			}
			n.handle(d)
		}
	}
}

func (n *AMQPNudger) handle(d amqp.Delivery) {
	var ev Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		n.log.Warn("dropping malformed order event", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	hit := n.route(ev)
	n.log.Debug("order event",
		zap.String("role", ev.Role),
		zap.String("order_id", ev.OrderID),
		zap.String("status", ev.Status),
		zap.Int("nudged", hit))
	_ = d.Ack(false)
}

func (n *AMQPNudger) route(ev Event) int {
	if ev.Role == "" {
		for _, t := range n.targets {
			t.Nudge()
		}
		return len(n.targets)
	}
	t, ok := n.targets[ev.Role]
	if !ok || t == nil {
		return 0
	}
	t.Nudge()
	return 1
}
