package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"facilicore-system/internal/database/models"
	"facilicore-system/internal/services/inventory"
)

func TestReservationLifecycle(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, err := e.reservations.Create(ctx, item.ID, "task-1", 4, staffActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Status != models.ReservationStatusReserved {
		t.Errorf("status = %q, want reserved", res.Status)
	}

	// The hold does not touch current stock.
	after := getItem(t, e, item.ID)
	if after.CurrentStock != 10 || after.ReservedQuantity != 4 {
		t.Errorf("stock/reserved = %d/%d, want 10/4", after.CurrentStock, after.ReservedQuantity)
	}
	if len(listTransactions(t, e, item.ID)) != 0 {
		t.Error("hold must not write a ledger transaction")
	}

	received, err := e.reservations.MarkReceived(ctx, res.ID, staffActor)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if received.Status != models.ReservationStatusReceived || received.ReceivedAt == nil {
		t.Errorf("status = %q receivedAt = %v", received.Status, received.ReceivedAt)
	}

	// Deduction and hold release happen together at receipt.
	after = getItem(t, e, item.ID)
	if after.CurrentStock != 6 || after.ReservedQuantity != 0 {
		t.Errorf("stock/reserved = %d/%d, want 6/0", after.CurrentStock, after.ReservedQuantity)
	}
	txns := listTransactions(t, e, item.ID)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].ReferenceType == nil || *txns[0].ReferenceType != models.ReferenceTypeReservation || *txns[0].ReferenceID != res.ID {
		t.Errorf("transaction reference = %v/%v, want reservation/%s", txns[0].ReferenceType, txns[0].ReferenceID, res.ID)
	}

	consumed, err := e.reservations.MarkConsumed(ctx, res.ID, staffActor)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed.Status != models.ReservationStatusConsumed {
		t.Errorf("status = %q, want consumed", consumed.Status)
	}
}

func TestReservationAvailabilityExcludesHolds(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	if _, err := e.reservations.Create(ctx, item.ID, "task-1", 8, staffActor); err != nil {
		t.Fatalf("first hold: %v", err)
	}
	_, err := e.reservations.Create(ctx, item.ID, "task-2", 5, staffActor)
	if !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	// A hold within the remaining availability still fits.
	if _, err := e.reservations.Create(ctx, item.ID, "task-3", 2, staffActor); err != nil {
		t.Fatalf("second hold: %v", err)
	}
}

func TestReservationRejectsInactiveItem(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})
	if err := e.catalog.Deactivate(ctx, item.ID, adminActor); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := e.reservations.Create(ctx, item.ID, "task-1", 1, staffActor); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestReleaseFromReservedFreesHold(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, err := e.reservations.Create(ctx, item.ID, "task-1", 4, staffActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	released, err := e.reservations.Release(ctx, res.ID, staffActor, "", 0)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != models.ReservationStatusReleased {
		t.Errorf("status = %q, want released", released.Status)
	}

	after := getItem(t, e, item.ID)
	if after.CurrentStock != 10 || after.ReservedQuantity != 0 {
		t.Errorf("stock/reserved = %d/%d, want 10/0", after.CurrentStock, after.ReservedQuantity)
	}
	if len(listTransactions(t, e, item.ID)) != 0 {
		t.Error("cancelled hold must not write a ledger transaction")
	}
}

func TestReturnReceivedGoodRestocks(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, _ := e.reservations.Create(ctx, item.ID, "task-1", 4, staffActor)
	if _, err := e.reservations.MarkReceived(ctx, res.ID, staffActor); err != nil {
		t.Fatalf("receive: %v", err)
	}

	released, err := e.reservations.Release(ctx, res.ID, staffActor, inventory.ConditionGood, 2)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.ReturnedQuantity != 2 {
		t.Errorf("returned_quantity = %d, want 2", released.ReturnedQuantity)
	}

	after := getItem(t, e, item.ID)
	if after.CurrentStock != 8 {
		t.Errorf("stock = %d, want 8", after.CurrentStock)
	}

	// Deduction at receipt plus a separate restock entry for the return.
	txns := listTransactions(t, e, item.ID)
	if len(txns) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txns))
	}
	var in, out int
	for _, txn := range txns {
		switch txn.Type {
		case models.TransactionTypeIn:
			in++
		case models.TransactionTypeOut:
			out++
		}
	}
	if in != 1 || out != 1 {
		t.Errorf("in/out = %d/%d, want 1/1", in, out)
	}
}

func TestReturnReceivedDefectiveSpawnsReplacement(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, _ := e.reservations.Create(ctx, item.ID, "task-1", 4, staffActor)
	if _, err := e.reservations.MarkReceived(ctx, res.ID, staffActor); err != nil {
		t.Fatalf("receive: %v", err)
	}

	released, err := e.reservations.Release(ctx, res.ID, staffActor, inventory.ConditionDefective, 0)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released.IsDefective || released.ReplacementRequestID == nil {
		t.Fatalf("defective = %v replacement = %v", released.IsDefective, released.ReplacementRequestID)
	}

	// Defective units must not re-enter usable stock.
	after := getItem(t, e, item.ID)
	if after.CurrentStock != 6 {
		t.Errorf("stock = %d, want 6", after.CurrentStock)
	}
	if after.Status != models.ItemStatusNeedsRepair {
		t.Errorf("item status = %q, want needs_repair", after.Status)
	}

	replacement, err := e.requests.Get(ctx, *released.ReplacementRequestID)
	if err != nil {
		t.Fatalf("get replacement: %v", err)
	}
	if replacement.Status != models.RequestStatusPending {
		t.Errorf("replacement status = %q, want pending", replacement.Status)
	}
	if replacement.QuantityRequested != 4 {
		t.Errorf("replacement quantity = %d, want 4", replacement.QuantityRequested)
	}
	if replacement.TaskID == nil || *replacement.TaskID != "task-1" {
		t.Errorf("replacement task = %v, want task-1", replacement.TaskID)
	}
	if e.notifier.defective != 1 {
		t.Errorf("defect notifications = %d, want 1", e.notifier.defective)
	}
}

func TestRequestReplacementLinksOnce(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, _ := e.reservations.Create(ctx, item.ID, "task-1", 2, staffActor)
	if _, err := e.reservations.MarkReceived(ctx, res.ID, staffActor); err != nil {
		t.Fatalf("receive: %v", err)
	}

	if _, err := e.reservations.RequestReplacement(ctx, res.ID, staffActor, "arrived cracked"); err != nil {
		t.Fatalf("request replacement: %v", err)
	}
	if _, err := e.reservations.RequestReplacement(ctx, res.ID, staffActor, "again"); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("second replacement err = %v, want ErrValidation", err)
	}
}

func TestReservationIllegalTransitions(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, _ := e.reservations.Create(ctx, item.ID, "task-1", 2, staffActor)

	if _, err := e.reservations.MarkConsumed(ctx, res.ID, staffActor); !errors.Is(err, inventory.ErrInvalidStateTransition) {
		t.Errorf("consume from reserved: err = %v, want ErrInvalidStateTransition", err)
	}

	if _, err := e.reservations.MarkReceived(ctx, res.ID, staffActor); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := e.reservations.MarkReceived(ctx, res.ID, staffActor); !errors.Is(err, inventory.ErrInvalidStateTransition) {
		t.Errorf("double receive: err = %v, want ErrInvalidStateTransition", err)
	}

	if _, err := e.reservations.MarkConsumed(ctx, res.ID, staffActor); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := e.reservations.Release(ctx, res.ID, staffActor, "", 0); !errors.Is(err, inventory.ErrInvalidStateTransition) {
		t.Errorf("release consumed: err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestReturnExceedingReservationRejected(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, _ := e.reservations.Create(ctx, item.ID, "task-1", 2, staffActor)
	if _, err := e.reservations.Release(ctx, res.ID, staffActor, "", 3); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

// Concurrent holds must never jointly oversubscribe availability.
func TestConcurrentReservationsRespectAvailability(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 5})

	const callers = 10
	var successes int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := e.reservations.Create(ctx, item.ID, "task-1", 1, staffActor)
			if err == nil {
				atomic.AddInt32(&successes, 1)
				return
			}
			if !errors.Is(err, inventory.ErrInsufficientStock) && !errors.Is(err, inventory.ErrStoreUnavailable) {
				t.Errorf("caller %d: unexpected error: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	after := getItem(t, e, item.ID)
	won := atomic.LoadInt32(&successes)
	if won > 5 {
		t.Errorf("successes = %d, want at most 5", won)
	}
	if after.ReservedQuantity != won {
		t.Errorf("reserved = %d, want %d", after.ReservedQuantity, won)
	}
	if after.ReservedQuantity > after.CurrentStock {
		t.Errorf("reserved %d exceeds stock %d", after.ReservedQuantity, after.CurrentStock)
	}
}

// Racing receipt calls must deduct stock exactly once.
func TestConcurrentReceiveDeductsOnce(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, err := e.reservations.Create(ctx, item.ID, "task-1", 4, staffActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 4
	var successes int32
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.reservations.MarkReceived(ctx, res.ID, staffActor); err == nil {
				atomic.AddInt32(&successes, 1)
			} else if !errors.Is(err, inventory.ErrInvalidStateTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&successes); got != 1 {
		t.Errorf("successful receipts = %d, want 1", got)
	}
	after := getItem(t, e, item.ID)
	if after.CurrentStock != 6 {
		t.Errorf("stock = %d, want 6 (single deduction)", after.CurrentStock)
	}
	if txns := listTransactions(t, e, item.ID); len(txns) != 1 {
		t.Errorf("transactions = %d, want 1", len(txns))
	}
}

func TestReleaseReopensHoldAfterWriteFault(t *testing.T) {
	e, fs := newFaultEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, err := e.reservations.Create(ctx, item.ID, "task-1", 4, staffActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fs.setFailWrites(true)
	if _, err := e.reservations.Release(ctx, res.ID, staffActor, "", 0); !errors.Is(err, inventory.ErrStoreUnavailable) {
		t.Fatalf("release error = %v, want ErrStoreUnavailable", err)
	}

	// The reservation is back in reserved and the hold still counts, so a
	// retry of the whole operation succeeds once the store recovers.
	cur, _ := e.store.GetReservation(ctx, res.ID)
	if cur.Status != models.ReservationStatusReserved {
		t.Fatalf("status after failed release = %s, want reserved", cur.Status)
	}
	if got := getItem(t, e, item.ID).ReservedQuantity; got != 4 {
		t.Fatalf("reserved_quantity = %d, want 4", got)
	}

	fs.setFailWrites(false)
	if _, err := e.reservations.Release(ctx, res.ID, staffActor, "", 0); err != nil {
		t.Fatalf("retried release: %v", err)
	}
	if got := getItem(t, e, item.ID).ReservedQuantity; got != 0 {
		t.Errorf("reserved_quantity after retry = %d, want 0", got)
	}
}

func TestReturnReceivedReopensAfterWriteFault(t *testing.T) {
	e, fs := newFaultEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	res, err := e.reservations.Create(ctx, item.ID, "task-1", 4, staffActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.reservations.MarkReceived(ctx, res.ID, staffActor); err != nil {
		t.Fatalf("receive: %v", err)
	}

	fs.setFailWrites(true)
	if _, err := e.reservations.Release(ctx, res.ID, staffActor, inventory.ConditionGood, 0); !errors.Is(err, inventory.ErrStoreUnavailable) {
		t.Fatalf("release error = %v, want ErrStoreUnavailable", err)
	}
	cur, _ := e.store.GetReservation(ctx, res.ID)
	if cur.Status != models.ReservationStatusReceived {
		t.Fatalf("status after failed return = %s, want received", cur.Status)
	}
	if got := getItem(t, e, item.ID).CurrentStock; got != 6 {
		t.Fatalf("stock after failed return = %d, want 6", got)
	}

	fs.setFailWrites(false)
	if _, err := e.reservations.Release(ctx, res.ID, staffActor, inventory.ConditionGood, 0); err != nil {
		t.Fatalf("retried return: %v", err)
	}
	if got := getItem(t, e, item.ID).CurrentStock; got != 10 {
		t.Errorf("stock after retry = %d, want 10", got)
	}
	cur, _ = e.store.GetReservation(ctx, res.ID)
	if cur.Status != models.ReservationStatusReleased {
		t.Errorf("status after retry = %s, want released", cur.Status)
	}
}
