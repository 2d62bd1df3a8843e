package inventory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"facilicore-system/internal/database/models"
)

// RequestWorkflow routes ad-hoc stock claims through admin approval and on to
// fulfillment, receipt, and returns. Approval attempts auto-fulfillment
// inline when stock already covers the approved quantity.
type RequestWorkflow struct {
	store        Store
	ledger       *Ledger
	replacements *ReplacementHandler
	tasks        TaskDirectory
	notifier     Notifier
}

func NewRequestWorkflow(store Store, ledger *Ledger, replacements *ReplacementHandler, tasks TaskDirectory, notifier Notifier) *RequestWorkflow {
	return &RequestWorkflow{
		store:        store,
		ledger:       ledger,
		replacements: replacements,
		tasks:        tasks,
		notifier:     notifier,
	}
}

// Submit opens a pending request for the given item.
func (w *RequestWorkflow) Submit(ctx context.Context, itemID string, requester Actor, quantity int32, purpose string, taskID *string) (*models.ItemRequest, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	}
	if purpose == "" {
		purpose = "general use"
	}

	item, err := w.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrItemNotFound, itemID)
	}

	now := time.Now()
	req := &models.ItemRequest{
		ID:                uuid.NewString(),
		ItemID:            itemID,
		RequestedBy:       requester.ID,
		QuantityRequested: quantity,
		Purpose:           purpose,
		TaskID:            taskID,
		Status:            models.RequestStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := w.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	w.notifier.RequestSubmitted(ctx, req)
	return req, nil
}

// Approve grants a pending request, then immediately tries to fulfill it
// under the system actor when stock already covers the approved quantity.
// Auto-fulfillment failures are logged; the approval stands either way.
func (w *RequestWorkflow) Approve(ctx context.Context, requestID string, approver Actor, quantityApproved int32, notes string) (*models.ItemRequest, error) {
	if !approver.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins approve requests", ErrNotAuthorized)
	}

	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("%w: request %s is %s, expected pending", ErrInvalidStateTransition, requestID, req.Status)
	}

	if quantityApproved <= 0 {
		quantityApproved = req.QuantityRequested
	}

	now := time.Now()
	upd := RequestUpdate{
		QuantityApproved: &quantityApproved,
		DecidedBy:        &approver.ID,
		ApprovedAt:       &now,
	}
	if notes != "" {
		upd.AdminNotes = &notes
	}
	if err := w.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusPending, models.RequestStatusApproved, upd); err != nil {
		return nil, err
	}
	req.Status = models.RequestStatusApproved
	req.QuantityApproved = quantityApproved
	req.DecidedBy = &approver.ID
	req.ApprovedAt = &now

	w.notifier.RequestApproved(ctx, req)

	item, err := w.store.GetItem(ctx, req.ItemID)
	if err == nil && item != nil && item.CurrentStock >= quantityApproved {
		fulfilled, fulfillErr := w.Fulfill(ctx, requestID, SystemActor)
		if fulfillErr != nil {
			log.Printf("auto-fulfillment of request %s failed: %v", requestID, fulfillErr)
			return req, nil
		}
		return fulfilled, nil
	}
	return req, nil
}

// Deny rejects a pending request. Terminal.
func (w *RequestWorkflow) Deny(ctx context.Context, requestID string, approver Actor, reason string) (*models.ItemRequest, error) {
	if !approver.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins deny requests", ErrNotAuthorized)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: a denial reason is required", ErrValidation)
	}

	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("%w: request %s is %s, expected pending", ErrInvalidStateTransition, requestID, req.Status)
	}

	upd := RequestUpdate{DecidedBy: &approver.ID, AdminNotes: &reason}
	if err := w.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusPending, models.RequestStatusDenied, upd); err != nil {
		return nil, err
	}
	req.Status = models.RequestStatusDenied
	req.DecidedBy = &approver.ID
	req.AdminNotes = &reason

	w.notifier.RequestDenied(ctx, req)
	return req, nil
}

// Fulfill consumes the approved quantity against the request. Valid only from
// approved; the status moves first so a concurrent fulfill cannot deduct
// stock twice.
func (w *RequestWorkflow) Fulfill(ctx context.Context, requestID string, actor Actor) (*models.ItemRequest, error) {
	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusApproved {
		return nil, fmt.Errorf("%w: request %s is %s, expected approved", ErrInvalidStateTransition, requestID, req.Status)
	}

	now := time.Now()
	if err := w.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusApproved, models.RequestStatusFulfilled, RequestUpdate{FulfilledAt: &now}); err != nil {
		return nil, err
	}

	if err := w.consumeForRequest(ctx, req, actor); err != nil {
		revertErr := w.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusFulfilled, models.RequestStatusApproved, RequestUpdate{})
		if revertErr != nil {
			return nil, fmt.Errorf("fulfillment failed (%v) and revert failed: %w", err, revertErr)
		}
		return nil, err
	}

	req.Status = models.RequestStatusFulfilled
	req.FulfilledAt = &now
	return req, nil
}

// MarkReceived confirms physical receipt. The actor must be the linked task's
// assigned staff or an admin; an unlinked request accepts its own requester.
// Good condition from approved consumes stock like Fulfill; defective never
// consumes more stock and spawns a replacement request instead.
func (w *RequestWorkflow) MarkReceived(ctx context.Context, requestID string, actor Actor, condition, notes string) (*models.ItemRequest, error) {
	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := w.authorizeReceipt(ctx, req, actor); err != nil {
		return nil, err
	}
	if condition == "" {
		condition = ConditionGood
	}
	if condition != ConditionGood && condition != ConditionDefective && condition != ConditionBroken {
		return nil, fmt.Errorf("%w: unknown condition %q", ErrValidation, condition)
	}
	if req.Status != models.RequestStatusApproved && req.Status != models.RequestStatusFulfilled {
		return nil, fmt.Errorf("%w: request %s is %s", ErrInvalidStateTransition, requestID, req.Status)
	}

	now := time.Now()
	defective := condition != ConditionGood
	from := req.Status
	upd := RequestUpdate{ReceivedAt: &now}
	if notes != "" {
		upd.AdminNotes = &notes
	}
	if defective {
		upd.IsDefective = &defective
	}
	if err := w.store.UpdateRequestStatus(ctx, requestID, from, models.RequestStatusReceived, upd); err != nil {
		return nil, err
	}
	req.Status = models.RequestStatusReceived
	req.ReceivedAt = &now

	if !defective {
		if from == models.RequestStatusApproved {
			if err := w.consumeForRequest(ctx, req, actor); err != nil {
				revertErr := w.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusReceived, from, RequestUpdate{})
				if revertErr != nil {
					return nil, fmt.Errorf("receipt consumption failed (%v) and revert failed: %w", err, revertErr)
				}
				return nil, err
			}
		}
		return req, nil
	}

	req.IsDefective = true
	reason := fmt.Sprintf("Received %s: %s", condition, notes)
	replacement, err := w.replacements.SpawnForRequest(ctx, req, actor, reason)
	if err != nil {
		return nil, err
	}
	req.ReplacementRequestID = &replacement.ID
	linkUpd := RequestUpdate{ReplacementRequestID: &replacement.ID}
	if err := w.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusReceived, models.RequestStatusReceived, linkUpd); err != nil {
		return nil, err
	}
	return req, nil
}

// Return restocks fulfilled quantity that came back unused. quantity 0 means
// the full approved quantity. Valid only from fulfilled.
func (w *RequestWorkflow) Return(ctx context.Context, requestID string, actor Actor, quantity int32) (*models.ItemRequest, error) {
	req, err := w.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusFulfilled {
		return nil, fmt.Errorf("%w: request %s is %s, expected fulfilled", ErrInvalidStateTransition, requestID, req.Status)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if quantity == 0 {
		quantity = req.QuantityApproved
	}
	if quantity > req.QuantityApproved {
		return nil, fmt.Errorf("%w: return of %d exceeds approved quantity %d", ErrValidation, quantity, req.QuantityApproved)
	}

	now := time.Now()
	upd := RequestUpdate{ReturnedAt: &now, ReturnedQuantity: &quantity}
	if err := w.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusFulfilled, models.RequestStatusReturned, upd); err != nil {
		return nil, err
	}

	ref := &Reference{Type: models.ReferenceTypeRequest, ID: req.ID}
	reason := fmt.Sprintf("Returned from request for %s", req.Purpose)
	if _, err := w.ledger.Restock(ctx, req.ItemID, quantity, actor, ref, reason, nil); err != nil {
		// Units not restocked yet; reopen the request so the return can be
		// retried.
		revertErr := w.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusReturned, models.RequestStatusFulfilled, RequestUpdate{})
		if revertErr != nil {
			return nil, fmt.Errorf("return failed (%v) and revert failed: %w", err, revertErr)
		}
		return nil, err
	}

	req.Status = models.RequestStatusReturned
	req.ReturnedAt = &now
	req.ReturnedQuantity = quantity
	return req, nil
}

func (w *RequestWorkflow) Get(ctx context.Context, requestID string) (*models.ItemRequest, error) {
	return w.getRequest(ctx, requestID)
}

func (w *RequestWorkflow) List(ctx context.Context, f RequestFilter) ([]models.ItemRequest, error) {
	return w.store.ListRequests(ctx, f)
}

func (w *RequestWorkflow) consumeForRequest(ctx context.Context, req *models.ItemRequest, actor Actor) error {
	ref := &Reference{Type: models.ReferenceTypeRequest, ID: req.ID}
	reason := fmt.Sprintf("Fulfilled request for %s", req.Purpose)
	_, err := w.ledger.Consume(ctx, req.ItemID, req.QuantityApproved, actor, ref, reason)
	return err
}

func (w *RequestWorkflow) authorizeReceipt(ctx context.Context, req *models.ItemRequest, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if req.TaskID != nil {
		assigned, err := w.tasks.IsStaffAssigned(ctx, *req.TaskID, actor.ID)
		if err != nil {
			return err
		}
		if assigned {
			return nil
		}
		return fmt.Errorf("%w: %s is not assigned to task %s", ErrNotAuthorized, actor.ID, *req.TaskID)
	}
	if actor.ID == req.RequestedBy {
		return nil
	}
	return fmt.Errorf("%w: %s may not receive request %s", ErrNotAuthorized, actor.ID, req.ID)
}

func (w *RequestWorkflow) getRequest(ctx context.Context, id string) (*models.ItemRequest, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrValidation)
	}
	req, err := w.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %s", ErrRequestNotFound, id)
	}
	return req, nil
}
