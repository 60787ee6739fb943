package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notificationChannel = "notifications"

// RedisNotifier publishes lifecycle events to a Redis channel for the
// push-notification transport to pick up. Delivery is fire and forget:
// publish failures are logged and never retried inline.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

type notification struct {
	UserID  string         `json:"userId"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

func (n *RedisNotifier) Notify(ctx context.Context, userID primitive.ObjectID, event string, payload map[string]any) {
	msg := notification{
		UserID:  userID.Hex(),
		Event:   event,
		Payload: payload,
		At:      time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("notifier: failed to encode notification", "event", event, "error", err)
		return
	}
	if err := n.client.Publish(ctx, notificationChannel, data).Err(); err != nil {
		slog.Warn("notifier: publish failed", "event", event, "user", msg.UserID, "error", err)
		return
	}
	slog.Info("notifier: event dispatched", "event", event, "user", msg.UserID)
}
