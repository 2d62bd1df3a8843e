package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"facilicore-system/internal/database/models"
)

// Item conditions reported when releasing received stock.
const (
	ConditionGood      = "good"
	ConditionDefective = "defective"
	ConditionBroken    = "broken"
)

// ReservationManager owns the soft-hold lifecycle for task-linked stock.
// Creating a hold is the one operation that atomically spans the item and a
// new reservation row; every later transition is a compare-and-swap on the
// reservation's status.
type ReservationManager struct {
	store        Store
	ledger       *Ledger
	replacements *ReplacementHandler
}

func NewReservationManager(store Store, ledger *Ledger, replacements *ReplacementHandler) *ReservationManager {
	return &ReservationManager{store: store, ledger: ledger, replacements: replacements}
}

// Create places a soft hold of quantity against a task. Availability is
// current_stock minus reserved_quantity; the check and the hold land in one
// guarded write so concurrent holds cannot jointly oversubscribe the item.
func (r *ReservationManager) Create(ctx context.Context, itemID, taskID string, quantity int32, actor Actor) (*models.Reservation, error) {
	if itemID == "" || taskID == "" {
		return nil, fmt.Errorf("%w: item id and task id are required", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	}

	for attempt := 0; attempt < maxStockRetries; attempt++ {
		item, err := r.store.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("%w: item %s", ErrItemNotFound, itemID)
		}
		if !item.IsActive {
			return nil, fmt.Errorf("%w: item %s is inactive", ErrValidation, itemID)
		}

		available := item.CurrentStock - item.ReservedQuantity
		if quantity > available {
			return nil, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientStock, available, quantity)
		}

		now := time.Now()
		res := &models.Reservation{
			ID:         uuid.NewString(),
			ItemID:     itemID,
			TaskID:     taskID,
			Quantity:   quantity,
			Status:     models.ReservationStatusReserved,
			ReservedBy: actor.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		write := StockWrite{
			ItemID:           item.ID,
			ExpectedVersion:  item.Version,
			CurrentStock:     item.CurrentStock,
			ReservedQuantity: item.ReservedQuantity + quantity,
		}

		if err := r.store.CreateReservationHold(ctx, write, res); err != nil {
			if errors.Is(err, ErrStaleItem) {
				continue
			}
			return nil, err
		}
		return res, nil
	}

	return nil, fmt.Errorf("%w: reservation contention on item %s", ErrStoreUnavailable, itemID)
}

// MarkReceived records the physical handover: the real stock deduction
// happens here, referencing the reservation, and the soft hold is freed in
// the same guarded write. Valid only from reserved.
func (r *ReservationManager) MarkReceived(ctx context.Context, reservationID string, actor Actor) (*models.Reservation, error) {
	res, err := r.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != models.ReservationStatusReserved {
		return nil, fmt.Errorf("%w: reservation %s is %s, expected reserved", ErrInvalidStateTransition, reservationID, res.Status)
	}

	// Win the status first so a concurrent receive cannot deduct twice.
	now := time.Now()
	upd := ReservationUpdate{ReceivedAt: &now}
	if err := r.store.UpdateReservationStatus(ctx, reservationID, models.ReservationStatusReserved, models.ReservationStatusReceived, upd); err != nil {
		return nil, err
	}

	ref := &Reference{Type: models.ReferenceTypeReservation, ID: res.ID}
	reason := fmt.Sprintf("Stock received for task %s", res.TaskID)
	if _, err := r.ledger.applyDelta(ctx, res.ItemID, -res.Quantity, -res.Quantity, models.TransactionTypeOut, actor, ref, reason, nil); err != nil {
		// Deduction failed; hand the hold back.
		revertErr := r.store.UpdateReservationStatus(ctx, reservationID, models.ReservationStatusReceived, models.ReservationStatusReserved, ReservationUpdate{})
		if revertErr != nil {
			return nil, fmt.Errorf("deduction failed (%v) and revert failed: %w", err, revertErr)
		}
		return nil, err
	}

	res.Status = models.ReservationStatusReceived
	res.ReceivedAt = &now
	return res, nil
}

// MarkConsumed closes out received stock that was used up. Terminal; the
// deduction already happened at receipt.
func (r *ReservationManager) MarkConsumed(ctx context.Context, reservationID string, actor Actor) (*models.Reservation, error) {
	res, err := r.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != models.ReservationStatusReceived {
		return nil, fmt.Errorf("%w: reservation %s is %s, expected received", ErrInvalidStateTransition, reservationID, res.Status)
	}

	now := time.Now()
	if err := r.store.UpdateReservationStatus(ctx, reservationID, models.ReservationStatusReceived, models.ReservationStatusConsumed, ReservationUpdate{ConsumedAt: &now}); err != nil {
		return nil, err
	}
	res.Status = models.ReservationStatusConsumed
	res.ConsumedAt = &now
	return res, nil
}

// Release ends a reservation. From reserved it frees the hold with no ledger
// entry. From received it is a return of the unused portion: good condition
// restocks, defective condition quarantines and spawns a replacement request.
// quantity 0 means the reservation's full quantity.
func (r *ReservationManager) Release(ctx context.Context, reservationID string, actor Actor, condition string, quantity int32) (*models.Reservation, error) {
	res, err := r.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if quantity == 0 {
		quantity = res.Quantity
	}
	if quantity > res.Quantity {
		return nil, fmt.Errorf("%w: return of %d exceeds reserved quantity %d", ErrValidation, quantity, res.Quantity)
	}

	switch res.Status {
	case models.ReservationStatusReserved:
		return r.releaseHold(ctx, res, actor)
	case models.ReservationStatusReceived:
		return r.returnReceived(ctx, res, actor, condition, quantity)
	default:
		return nil, fmt.Errorf("%w: reservation %s is %s", ErrInvalidStateTransition, reservationID, res.Status)
	}
}

// RequestReplacement reports received stock as defective without releasing
// the reservation record first, spawning a linked replacement request.
func (r *ReservationManager) RequestReplacement(ctx context.Context, reservationID string, actor Actor, reason string) (*models.ItemRequest, error) {
	res, err := r.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != models.ReservationStatusReceived && res.Status != models.ReservationStatusReleased {
		return nil, fmt.Errorf("%w: reservation %s is %s", ErrInvalidStateTransition, reservationID, res.Status)
	}
	if res.ReplacementRequestID != nil {
		return nil, fmt.Errorf("%w: reservation %s already has replacement request %s", ErrValidation, reservationID, *res.ReplacementRequestID)
	}

	replacement, err := r.replacements.SpawnForReservation(ctx, res, res.Quantity, actor, reason)
	if err != nil {
		return nil, err
	}

	defective := true
	upd := ReservationUpdate{IsDefective: &defective, ReplacementRequestID: &replacement.ID}
	if reason != "" {
		upd.ConditionNotes = &reason
	}
	if err := r.store.UpdateReservationStatus(ctx, reservationID, res.Status, res.Status, upd); err != nil {
		return nil, err
	}
	return replacement, nil
}

func (r *ReservationManager) Get(ctx context.Context, reservationID string) (*models.Reservation, error) {
	return r.getReservation(ctx, reservationID)
}

func (r *ReservationManager) List(ctx context.Context, f ReservationFilter) ([]models.Reservation, error) {
	return r.store.ListReservations(ctx, f)
}

func (r *ReservationManager) releaseHold(ctx context.Context, res *models.Reservation, actor Actor) (*models.Reservation, error) {
	now := time.Now()
	if err := r.store.UpdateReservationStatus(ctx, res.ID, models.ReservationStatusReserved, models.ReservationStatusReleased, ReservationUpdate{ReleasedAt: &now}); err != nil {
		return nil, err
	}
	if err := r.adjustReservedQuantity(ctx, res.ItemID, -res.Quantity); err != nil {
		// Hold still counted against the item; reopen the reservation so a
		// retry can free it.
		revertErr := r.store.UpdateReservationStatus(ctx, res.ID, models.ReservationStatusReleased, models.ReservationStatusReserved, ReservationUpdate{})
		if revertErr != nil {
			return nil, fmt.Errorf("hold release failed (%v) and revert failed: %w", err, revertErr)
		}
		return nil, err
	}
	res.Status = models.ReservationStatusReleased
	res.ReleasedAt = &now
	return res, nil
}

func (r *ReservationManager) returnReceived(ctx context.Context, res *models.Reservation, actor Actor, condition string, quantity int32) (*models.Reservation, error) {
	if condition == "" {
		condition = ConditionGood
	}
	if condition != ConditionGood && condition != ConditionDefective && condition != ConditionBroken {
		return nil, fmt.Errorf("%w: unknown condition %q", ErrValidation, condition)
	}

	now := time.Now()
	defective := condition != ConditionGood
	upd := ReservationUpdate{ReleasedAt: &now, ReturnedQuantity: &quantity}
	if defective {
		upd.IsDefective = &defective
	}
	if err := r.store.UpdateReservationStatus(ctx, res.ID, models.ReservationStatusReceived, models.ReservationStatusReleased, upd); err != nil {
		return nil, err
	}
	res.Status = models.ReservationStatusReleased
	res.ReleasedAt = &now
	res.ReturnedQuantity = quantity

	if !defective {
		ref := &Reference{Type: models.ReferenceTypeReservation, ID: res.ID}
		reason := fmt.Sprintf("Unused stock returned from task %s", res.TaskID)
		if _, err := r.ledger.Restock(ctx, res.ItemID, quantity, actor, ref, reason, nil); err != nil {
			return nil, r.revertReturn(ctx, res, err)
		}
		return res, nil
	}

	// Defective units never re-enter usable stock.
	reason := fmt.Sprintf("Returned %s from task %s", condition, res.TaskID)
	replacement, err := r.replacements.SpawnForReservation(ctx, res, quantity, actor, reason)
	if err != nil {
		return nil, r.revertReturn(ctx, res, err)
	}
	res.IsDefective = true
	res.ReplacementRequestID = &replacement.ID
	linkUpd := ReservationUpdate{ReplacementRequestID: &replacement.ID}
	if err := r.store.UpdateReservationStatus(ctx, res.ID, models.ReservationStatusReleased, models.ReservationStatusReleased, linkUpd); err != nil {
		return nil, err
	}
	return res, nil
}

// revertReturn reopens a return whose stock side effect failed so the whole
// release can be retried.
func (r *ReservationManager) revertReturn(ctx context.Context, res *models.Reservation, cause error) error {
	revertErr := r.store.UpdateReservationStatus(ctx, res.ID, models.ReservationStatusReleased, models.ReservationStatusReceived, ReservationUpdate{})
	if revertErr != nil {
		return fmt.Errorf("return failed (%v) and revert failed: %w", cause, revertErr)
	}
	res.Status = models.ReservationStatusReceived
	res.ReleasedAt = nil
	res.ReturnedQuantity = 0
	return cause
}

// adjustReservedQuantity moves only the soft-hold counter, with no ledger
// entry, under the same optimistic guard as every other stock write.
func (r *ReservationManager) adjustReservedQuantity(ctx context.Context, itemID string, delta int32) error {
	for attempt := 0; attempt < maxStockRetries; attempt++ {
		item, err := r.store.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: item %s", ErrItemNotFound, itemID)
		}

		reserved := item.ReservedQuantity + delta
		if reserved < 0 {
			reserved = 0
		}
		write := StockWrite{
			ItemID:           item.ID,
			ExpectedVersion:  item.Version,
			CurrentStock:     item.CurrentStock,
			ReservedQuantity: reserved,
		}
		if err := r.store.ApplyStockChange(ctx, write, nil); err != nil {
			if errors.Is(err, ErrStaleItem) {
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: reserved quantity contention on item %s", ErrStoreUnavailable, itemID)
}

func (r *ReservationManager) getReservation(ctx context.Context, id string) (*models.Reservation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: reservation id is required", ErrValidation)
	}
	res, err := r.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: reservation %s", ErrReservationNotFound, id)
	}
	return res, nil
}
