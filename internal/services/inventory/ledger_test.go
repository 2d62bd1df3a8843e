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

func TestConsumeRecordsTransaction(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10, reorder: 2})

	updated, err := e.ledger.Consume(ctx, item.ID, 3, staffActor, nil, "routine maintenance")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if updated.CurrentStock != 7 {
		t.Errorf("stock = %d, want 7", updated.CurrentStock)
	}

	txns := listTransactions(t, e, item.ID)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	txn := txns[0]
	if txn.Type != models.TransactionTypeOut {
		t.Errorf("type = %q, want out", txn.Type)
	}
	if txn.Quantity != 3 || txn.PreviousStock != 10 || txn.NewStock != 7 {
		t.Errorf("txn quantities = %d/%d/%d, want 3/10/7", txn.Quantity, txn.PreviousStock, txn.NewStock)
	}
	if txn.PerformedBy != staffActor.ID {
		t.Errorf("performed_by = %q, want %q", txn.PerformedBy, staffActor.ID)
	}
}

func TestConsumeRejectsOverdraft(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 2})

	_, err := e.ledger.Consume(ctx, item.ID, 5, staffActor, nil, "")
	if !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	if got := getItem(t, e, item.ID).CurrentStock; got != 2 {
		t.Errorf("stock = %d, want 2 (unchanged)", got)
	}
	if txns := listTransactions(t, e, item.ID); len(txns) != 0 {
		t.Errorf("transactions = %d, want 0", len(txns))
	}
}

func TestConsumeValidatesQuantity(t *testing.T) {
	e := newEngine()
	item := seedItem(t, e, itemSpec{stock: 5})

	for _, qty := range []int32{0, -3} {
		if _, err := e.ledger.Consume(context.Background(), item.ID, qty, staffActor, nil, ""); !errors.Is(err, inventory.ErrValidation) {
			t.Errorf("quantity %d: err = %v, want ErrValidation", qty, err)
		}
	}
}

func TestRestockComputesTotalCost(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 0})

	cost := "2.50"
	updated, err := e.ledger.Restock(ctx, item.ID, 4, adminActor, nil, "supplier delivery", &cost)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if updated.CurrentStock != 4 {
		t.Errorf("stock = %d, want 4", updated.CurrentStock)
	}
	if getItem(t, e, item.ID).LastRestockedAt == nil {
		t.Error("last_restocked_at not set")
	}

	txns := listTransactions(t, e, item.ID)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].TotalCost == nil || *txns[0].TotalCost != "10.00" {
		t.Errorf("total_cost = %v, want 10.00", txns[0].TotalCost)
	}
}

func TestAdjustMovesToTarget(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 10})

	updated, err := e.ledger.Adjust(ctx, item.ID, 6, adminActor, "cycle count")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if updated.CurrentStock != 6 {
		t.Errorf("stock = %d, want 6", updated.CurrentStock)
	}

	txns := listTransactions(t, e, item.ID)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].Type != models.TransactionTypeAdjustment {
		t.Errorf("type = %q, want adjustment", txns[0].Type)
	}
	if txns[0].Quantity != 4 {
		t.Errorf("quantity = %d, want 4", txns[0].Quantity)
	}
}

func TestAdjustToCurrentIsNoOp(t *testing.T) {
	e := newEngine()
	item := seedItem(t, e, itemSpec{stock: 10})

	if _, err := e.ledger.Adjust(context.Background(), item.ID, 10, adminActor, ""); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if txns := listTransactions(t, e, item.ID); len(txns) != 0 {
		t.Errorf("transactions = %d, want 0", len(txns))
	}
}

func TestAdjustRejectsNegativeTarget(t *testing.T) {
	e := newEngine()
	item := seedItem(t, e, itemSpec{stock: 10})

	if _, err := e.ledger.Adjust(context.Background(), item.ID, -1, adminActor, ""); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestHistoryRejectsUnknownType(t *testing.T) {
	e := newEngine()

	if _, err := e.ledger.History(context.Background(), inventory.TransactionFilter{Type: "sideways"}); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

// Ledger reconciliation: replaying the transaction log reproduces the final
// stock level even under concurrent writers.
func TestConcurrentConsumersReconcile(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 100})

	const workers = 8
	var successes int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ledger.Consume(ctx, item.ID, 2, staffActor, nil, "")
			if err == nil {
				atomic.AddInt32(&successes, 1)
				return
			}
			if !errors.Is(err, inventory.ErrStoreUnavailable) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	final := getItem(t, e, item.ID)
	wantStock := 100 - 2*atomic.LoadInt32(&successes)
	if final.CurrentStock != wantStock {
		t.Errorf("stock = %d, want %d", final.CurrentStock, wantStock)
	}

	replayed := int32(100)
	for _, txn := range listTransactions(t, e, item.ID) {
		switch txn.Type {
		case models.TransactionTypeOut:
			replayed -= txn.Quantity
		case models.TransactionTypeIn:
			replayed += txn.Quantity
		}
	}
	if replayed != final.CurrentStock {
		t.Errorf("replayed ledger = %d, stock = %d", replayed, final.CurrentStock)
	}
}
