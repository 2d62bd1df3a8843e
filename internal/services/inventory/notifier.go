package inventory

import (
	"context"

	"facilicore-system/internal/database/models"
)

// Notifier fans out fire-and-forget events. Implementations own delivery and
// log their own failures; nothing here ever rolls back a state change.
type Notifier interface {
	LowStock(ctx context.Context, item *models.Item, level string)
	RequestSubmitted(ctx context.Context, req *models.ItemRequest)
	RequestApproved(ctx context.Context, req *models.ItemRequest)
	RequestDenied(ctx context.Context, req *models.ItemRequest)
	ReservationDefective(ctx context.Context, origin Reference, replacement *models.ItemRequest, reason string)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) LowStock(context.Context, *models.Item, string) {}
func (NopNotifier) RequestSubmitted(context.Context, *models.ItemRequest) {}
func (NopNotifier) RequestApproved(context.Context, *models.ItemRequest) {}
func (NopNotifier) RequestDenied(context.Context, *models.ItemRequest) {}
func (NopNotifier) ReservationDefective(context.Context, Reference, *models.ItemRequest, string) {}
