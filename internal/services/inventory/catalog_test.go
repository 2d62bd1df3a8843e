package inventory_test

import (
	"context"
	"errors"
	"testing"

	"facilicore-system/internal/database/models"
	"facilicore-system/internal/services/inventory"
)

func TestCreateItemLedgersInitialStock(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	cost := "12.00"
	item, err := e.catalog.Create(ctx, inventory.NewItem{
		SiteID:        "site-1",
		ItemCode:      "FLT-001",
		ItemName:      "Air filter",
		Category:      "consumables",
		Department:    "maintenance",
		InitialStock:  8,
		ReorderLevel:  3,
		UnitOfMeasure: "pcs",
		UnitCost:      &cost,
	}, adminActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.CurrentStock != 8 {
		t.Errorf("stock = %d, want 8", item.CurrentStock)
	}

	txns := listTransactions(t, e, item.ID)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].Type != models.TransactionTypeIn || txns[0].Quantity != 8 {
		t.Errorf("txn = %q/%d, want in/8", txns[0].Type, txns[0].Quantity)
	}
	if txns[0].Reason == nil || *txns[0].Reason != "Initial stock creation" {
		t.Errorf("reason = %v, want Initial stock creation", txns[0].Reason)
	}
}

func TestCreateItemZeroStockRaisesAlert(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	item, err := e.catalog.Create(ctx, inventory.NewItem{
		SiteID:        "site-1",
		ItemCode:      "PMP-001",
		ItemName:      "Pump seal",
		ReorderLevel:  2,
		UnitOfMeasure: "pcs",
	}, adminActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	alert := activeAlert(t, e, item.ID)
	if alert == nil || alert.Level != models.AlertLevelOutOfStock {
		t.Fatalf("alert = %+v, want active out_of_stock", alert)
	}
}

func TestCreateItemValidation(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	if _, err := e.catalog.Create(ctx, inventory.NewItem{SiteID: "site-1", ItemName: "no code"}, adminActor); !errors.Is(err, inventory.ErrValidation) {
		t.Errorf("missing code: err = %v, want ErrValidation", err)
	}
	if _, err := e.catalog.Create(ctx, inventory.NewItem{SiteID: "site-1", ItemCode: "X", ItemName: "X", InitialStock: -1}, adminActor); !errors.Is(err, inventory.ErrValidation) {
		t.Errorf("negative stock: err = %v, want ErrValidation", err)
	}
	if _, err := e.catalog.Create(ctx, inventory.NewItem{SiteID: "site-1", ItemCode: "X", ItemName: "X"}, staffActor); !errors.Is(err, inventory.ErrNotAuthorized) {
		t.Errorf("staff create: err = %v, want ErrNotAuthorized", err)
	}
}

func TestCreateItemRejectsDuplicateCode(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	spec := inventory.NewItem{SiteID: "site-1", ItemCode: "DUP-1", ItemName: "First"}
	if _, err := e.catalog.Create(ctx, spec, adminActor); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.catalog.Create(ctx, spec, adminActor); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("duplicate: err = %v, want ErrValidation", err)
	}
}

func TestUpdateReorderLevelReevaluatesAlerts(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 4, reorder: 2})

	if alert := activeAlert(t, e, item.ID); alert != nil {
		t.Fatalf("unexpected alert: %+v", alert)
	}

	level := int32(6)
	if _, err := e.catalog.Update(ctx, item.ID, inventory.ItemUpdate{ReorderLevel: &level}, adminActor); err != nil {
		t.Fatalf("update: %v", err)
	}
	if alert := activeAlert(t, e, item.ID); alert == nil {
		t.Error("raising reorder level above stock should open an alert")
	}
}

func TestDeactivateIsSoft(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	item := seedItem(t, e, itemSpec{stock: 4})

	if err := e.catalog.Deactivate(ctx, item.ID, adminActor); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := e.catalog.Deactivate(ctx, item.ID, staffActor); !errors.Is(err, inventory.ErrNotAuthorized) {
		t.Errorf("staff deactivate: err = %v, want ErrNotAuthorized", err)
	}

	got := getItem(t, e, item.ID)
	if got.IsActive {
		t.Error("item still active")
	}

	// Default listing hides it, include_inactive shows it.
	visible, _ := e.catalog.List(ctx, inventory.ItemFilter{})
	if len(visible) != 0 {
		t.Errorf("visible items = %d, want 0", len(visible))
	}
	all, _ := e.catalog.List(ctx, inventory.ItemFilter{IncludeInactive: true})
	if len(all) != 1 {
		t.Errorf("all items = %d, want 1", len(all))
	}
}

func TestSiteSummary(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	cost := "3.00"
	seedItem(t, e, itemSpec{stock: 10, reorder: 2, cost: &cost})
	seedItem(t, e, itemSpec{stock: 0, reorder: 2})
	seedItem(t, e, itemSpec{stock: 1, reorder: 5, critical: true})

	summary, err := e.catalog.Summary(ctx, "site-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalItems != 3 {
		t.Errorf("total = %d, want 3", summary.TotalItems)
	}
	if summary.OutOfStockItems != 1 {
		t.Errorf("out of stock = %d, want 1", summary.OutOfStockItems)
	}
	if summary.LowStockItems != 2 {
		t.Errorf("low stock = %d, want 2", summary.LowStockItems)
	}
	if summary.CriticalItems != 1 {
		t.Errorf("critical = %d, want 1", summary.CriticalItems)
	}
	if summary.TotalValue != "30.00" {
		t.Errorf("total value = %q, want 30.00", summary.TotalValue)
	}
	if summary.ItemsByCategory["consumables"] != 3 {
		t.Errorf("consumables = %d, want 3", summary.ItemsByCategory["consumables"])
	}
}
