// Package notifier publishes stock engine events to Redis pub/sub channels.
// Delivery is best effort; failures are logged and never propagate back into
// the state change that raised the event.
package notifier

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"facilicore-system/internal/database/models"
	"facilicore-system/internal/services/inventory"
)

const publishTimeout = 2 * time.Second

type event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type lowStockPayload struct {
	ItemID       string `json:"item_id"`
	ItemCode     string `json:"item_code"`
	ItemName     string `json:"item_name"`
	SiteID       string `json:"site_id"`
	CurrentStock int32  `json:"current_stock"`
	ReorderLevel int32  `json:"reorder_level"`
	Level        string `json:"level"`
}

type requestPayload struct {
	RequestID         string `json:"request_id"`
	ItemID            string `json:"item_id"`
	RequestedBy       string `json:"requested_by"`
	QuantityRequested int32  `json:"quantity_requested"`
	QuantityApproved  int32  `json:"quantity_approved,omitempty"`
	Status            string `json:"status"`
	Purpose           string `json:"purpose,omitempty"`
}

type defectPayload struct {
	SourceType    string `json:"source_type"`
	SourceID      string `json:"source_id"`
	ReplacementID string `json:"replacement_request_id"`
	ItemID        string `json:"item_id"`
	Reason        string `json:"reason"`
}

// RedisNotifier publishes one JSON event per call on a single channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "facilicore:inventory:events"
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) LowStock(ctx context.Context, item *models.Item, level string) {
	n.publish(ctx, "inventory.low_stock", lowStockPayload{
		ItemID:       item.ID,
		ItemCode:     item.ItemCode,
		ItemName:     item.ItemName,
		SiteID:       item.SiteID,
		CurrentStock: item.CurrentStock,
		ReorderLevel: item.ReorderLevel,
		Level:        level,
	})
}

func (n *RedisNotifier) RequestSubmitted(ctx context.Context, req *models.ItemRequest) {
	n.publish(ctx, "inventory.request_submitted", requestEventPayload(req))
}

func (n *RedisNotifier) RequestApproved(ctx context.Context, req *models.ItemRequest) {
	n.publish(ctx, "inventory.request_approved", requestEventPayload(req))
}

func (n *RedisNotifier) RequestDenied(ctx context.Context, req *models.ItemRequest) {
	n.publish(ctx, "inventory.request_denied", requestEventPayload(req))
}

func (n *RedisNotifier) ReservationDefective(ctx context.Context, origin inventory.Reference, replacement *models.ItemRequest, reason string) {
	n.publish(ctx, "inventory.defect_reported", defectPayload{
		SourceType:    origin.Type,
		SourceID:      origin.ID,
		ReplacementID: replacement.ID,
		ItemID:        replacement.ItemID,
		Reason:        reason,
	})
}

func (n *RedisNotifier) publish(ctx context.Context, eventType string, payload interface{}) {
	body, err := json.Marshal(event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		log.Printf("notifier: marshal %s event failed: %v", eventType, err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.client.Publish(pubCtx, n.channel, body).Err(); err != nil {
		log.Printf("notifier: publish %s event failed: %v", eventType, err)
	}
}

func requestEventPayload(req *models.ItemRequest) requestPayload {
	return requestPayload{
		RequestID:         req.ID,
		ItemID:            req.ItemID,
		RequestedBy:       req.RequestedBy,
		QuantityRequested: req.QuantityRequested,
		QuantityApproved:  req.QuantityApproved,
		Status:            req.Status,
		Purpose:           req.Purpose,
	}
}
