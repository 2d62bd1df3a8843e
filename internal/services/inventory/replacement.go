package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"facilicore-system/internal/database/models"
)

// ReplacementHandler turns defect reports into replacement requests. The
// physical units stay quarantined; replacements flow through the normal
// request workflow from pending.
type ReplacementHandler struct {
	store    Store
	notifier Notifier
}

func NewReplacementHandler(store Store, notifier Notifier) *ReplacementHandler {
	return &ReplacementHandler{store: store, notifier: notifier}
}

// SpawnForReservation quarantines the item and opens a pending replacement
// request for a defective reservation. The caller links the new request id
// back onto the reservation.
func (h *ReplacementHandler) SpawnForReservation(ctx context.Context, res *models.Reservation, quantity int32, actor Actor, reason string) (*models.ItemRequest, error) {
	if quantity <= 0 {
		quantity = res.Quantity
	}
	purpose := fmt.Sprintf("Replacement for defective stock from reservation %s (task %s)", res.ID, res.TaskID)
	taskID := res.TaskID

	replacement, err := h.spawn(ctx, res.ItemID, quantity, actor, purpose, &taskID, nil, reason)
	if err != nil {
		return nil, err
	}

	h.notifier.ReservationDefective(ctx, Reference{Type: models.ReferenceTypeReservation, ID: res.ID}, replacement, reason)
	return replacement, nil
}

// SpawnForRequest opens a pending replacement request chained to a request
// whose delivered stock was reported defective.
func (h *ReplacementHandler) SpawnForRequest(ctx context.Context, origin *models.ItemRequest, actor Actor, reason string) (*models.ItemRequest, error) {
	quantity := origin.QuantityApproved
	if quantity <= 0 {
		quantity = origin.QuantityRequested
	}
	purpose := fmt.Sprintf("Replacement for defective stock from request %s", origin.ID)

	replacement, err := h.spawn(ctx, origin.ItemID, quantity, actor, purpose, origin.TaskID, &origin.ID, reason)
	if err != nil {
		return nil, err
	}

	h.notifier.ReservationDefective(ctx, Reference{Type: models.ReferenceTypeRequest, ID: origin.ID}, replacement, reason)
	return replacement, nil
}

func (h *ReplacementHandler) spawn(ctx context.Context, itemID string, quantity int32, actor Actor, purpose string, taskID, parentID *string, reason string) (*models.ItemRequest, error) {
	if err := h.quarantineItem(ctx, itemID, reason); err != nil {
		return nil, err
	}

	now := time.Now()
	replacement := &models.ItemRequest{
		ID:                uuid.NewString(),
		ItemID:            itemID,
		RequestedBy:       actor.ID,
		QuantityRequested: quantity,
		Purpose:           purpose,
		TaskID:            taskID,
		Status:            models.RequestStatusPending,
		ParentRequestID:   parentID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := h.store.CreateRequest(ctx, replacement); err != nil {
		return nil, err
	}
	return replacement, nil
}

func (h *ReplacementHandler) quarantineItem(ctx context.Context, itemID, reason string) error {
	status := models.ItemStatusNeedsRepair
	upd := ItemUpdate{Status: &status}
	if reason != "" {
		upd.ConditionNotes = &reason
	}
	return h.store.UpdateItem(ctx, itemID, upd)
}
