package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Channel = "dreamline.orders"

const (
	EventOrderCreated   = "order.created"
	EventOrderAssigned  = "order.assigned"
	EventOrderStatus    = "order.status_changed"
	EventOrderSettled   = "order.settled"
	EventOrderCancelled = "order.cancelled"
)

// Event is a committed order change. Consumers must tolerate duplicates and
// gaps; delivery is best effort.
type Event struct {
	Type                 string    `json:"type"`
	OrderID              string    `json:"order_id"`
	SubjectID            string    `json:"subject_id"`
	InterpreterSubjectID string    `json:"interpreter_subject_id,omitempty"`
	Status               string    `json:"status"`
	OccurredAt           time.Time `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// RedisNotifier publishes events as JSON on a pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = Channel
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// LogNotifier only logs. Used when redis is not configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notification.log")}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.log.Debug("order event",
		zap.String("type", event.Type),
		zap.String("order_id", event.OrderID),
		zap.String("status", event.Status),
	)
	return nil
}

func NewNotifier(client *redis.Client, log *zap.Logger) Notifier {
	if client == nil {
		return NewLogNotifier(log)
	}
	return NewRedisNotifier(client, Channel)
}
