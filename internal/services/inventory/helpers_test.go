package inventory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"facilicore-system/internal/database/models"
	"facilicore-system/internal/services/inventory"
	"facilicore-system/internal/storage/memory"
)

var (
	adminActor = inventory.Actor{ID: "admin-1", Role: inventory.RoleAdmin}
	staffActor = inventory.Actor{ID: "staff-1", Role: inventory.RoleStaff}
)

// recordingNotifier captures events for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	lowStock  []string
	submitted int
	approved  int
	denied    int
	defective int
}

func (n *recordingNotifier) LowStock(_ context.Context, _ *models.Item, level string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lowStock = append(n.lowStock, level)
}

func (n *recordingNotifier) RequestSubmitted(context.Context, *models.ItemRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted++
}

func (n *recordingNotifier) RequestApproved(context.Context, *models.ItemRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved++
}

func (n *recordingNotifier) RequestDenied(context.Context, *models.ItemRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.denied++
}

func (n *recordingNotifier) ReservationDefective(context.Context, inventory.Reference, *models.ItemRequest, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.defective++
}

func (n *recordingNotifier) lowStockLevels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.lowStock))
	copy(out, n.lowStock)
	return out
}

type engine struct {
	store        *memory.Store
	notifier     *recordingNotifier
	alerts       *inventory.AlertMonitor
	ledger       *inventory.Ledger
	catalog      *inventory.Catalog
	reservations *inventory.ReservationManager
	requests     *inventory.RequestWorkflow
}

func newEngine() *engine {
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	alerts := inventory.NewAlertMonitor(store, notifier)
	ledger := inventory.NewLedger(store, alerts)
	replacements := inventory.NewReplacementHandler(store, notifier)
	return &engine{
		store:        store,
		notifier:     notifier,
		alerts:       alerts,
		ledger:       ledger,
		catalog:      inventory.NewCatalog(store, ledger),
		reservations: inventory.NewReservationManager(store, ledger, replacements),
		requests:     inventory.NewRequestWorkflow(store, ledger, replacements, store, notifier),
	}
}

// faultStore wraps the in-memory store and fails stock writes on demand, so
// tests can exercise the recovery path of operations whose side effect lands
// after a status change.
type faultStore struct {
	*memory.Store
	mu         sync.Mutex
	failWrites bool
}

func (f *faultStore) setFailWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = fail
}

func (f *faultStore) ApplyStockChange(ctx context.Context, w inventory.StockWrite, txn *models.StockTransaction) error {
	f.mu.Lock()
	fail := f.failWrites
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: injected write failure", inventory.ErrStoreUnavailable)
	}
	return f.Store.ApplyStockChange(ctx, w, txn)
}

func newFaultEngine() (*engine, *faultStore) {
	mem := memory.NewStore()
	fs := &faultStore{Store: mem}
	notifier := &recordingNotifier{}
	alerts := inventory.NewAlertMonitor(fs, notifier)
	ledger := inventory.NewLedger(fs, alerts)
	replacements := inventory.NewReplacementHandler(fs, notifier)
	e := &engine{
		store:        mem,
		notifier:     notifier,
		alerts:       alerts,
		ledger:       ledger,
		catalog:      inventory.NewCatalog(fs, ledger),
		reservations: inventory.NewReservationManager(fs, ledger, replacements),
		requests:     inventory.NewRequestWorkflow(fs, ledger, replacements, mem, notifier),
	}
	return e, fs
}

type itemSpec struct {
	stock    int32
	reorder  int32
	critical bool
	cost     *string
}

func seedItem(t *testing.T, e *engine, spec itemSpec) *models.Item {
	t.Helper()
	item := &models.Item{
		ID:            uuid.NewString(),
		SiteID:        "site-1",
		ItemCode:      "code-" + uuid.NewString()[:8],
		ItemName:      "Test Item",
		Category:      "consumables",
		Department:    "maintenance",
		CurrentStock:  spec.stock,
		ReorderLevel:  spec.reorder,
		IsCritical:    spec.critical,
		UnitOfMeasure: "pcs",
		UnitCost:      spec.cost,
		IsActive:      true,
		Status:        models.ItemStatusOK,
	}
	if err := e.store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func getItem(t *testing.T, e *engine, id string) *models.Item {
	t.Helper()
	item, err := e.store.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item == nil {
		t.Fatalf("item %s not found", id)
	}
	return item
}

func listTransactions(t *testing.T, e *engine, itemID string) []models.StockTransaction {
	t.Helper()
	txns, err := e.store.ListTransactions(context.Background(), inventory.TransactionFilter{ItemID: itemID})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return txns
}
