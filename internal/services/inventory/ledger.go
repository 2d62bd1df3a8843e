package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"facilicore-system/internal/database/models"
)

// maxStockRetries bounds the optimistic retry loop on version conflicts.
const maxStockRetries = 5

// Reference links a ledger transaction to the entity that caused it.
type Reference struct {
	Type string
	ID   string
}

// Ledger is the sole authority over current_stock. Every mutation lands
// together with its audit transaction; the alert monitor runs after each one.
type Ledger struct {
	store  Store
	alerts *AlertMonitor
}

func NewLedger(store Store, alerts *AlertMonitor) *Ledger {
	return &Ledger{store: store, alerts: alerts}
}

// ApplyDelta moves an item's stock by delta and appends the matching
// transaction atomically. A negative result is rejected with
// ErrInsufficientStock before anything is written.
func (l *Ledger) ApplyDelta(ctx context.Context, itemID string, delta int32, txType string, actor Actor, ref *Reference, reason string, costPerUnit *string) (*models.Item, error) {
	return l.applyDelta(ctx, itemID, delta, 0, txType, actor, ref, reason, costPerUnit)
}

// applyDelta additionally moves reserved_quantity by reservedDelta in the same
// guarded write. Only the reservation manager uses a non-zero reservedDelta.
func (l *Ledger) applyDelta(ctx context.Context, itemID string, delta, reservedDelta int32, txType string, actor Actor, ref *Reference, reason string, costPerUnit *string) (*models.Item, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if err := validateTransactionType(txType, delta); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxStockRetries; attempt++ {
		item, err := l.store.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("%w: item %s", ErrItemNotFound, itemID)
		}

		newStock := item.CurrentStock + delta
		if newStock < 0 {
			return nil, fmt.Errorf("%w: current %d, requested %d", ErrInsufficientStock, item.CurrentStock, -delta)
		}
		newReserved := item.ReservedQuantity + reservedDelta
		if newReserved < 0 {
			newReserved = 0
		}

		txn := l.buildTransaction(item, txType, delta, newStock, actor, ref, reason, costPerUnit)
		write := StockWrite{
			ItemID:           item.ID,
			ExpectedVersion:  item.Version,
			CurrentStock:     newStock,
			ReservedQuantity: newReserved,
			MarkRestocked:    delta > 0,
		}

		if err := l.store.ApplyStockChange(ctx, write, txn); err != nil {
			if errors.Is(err, ErrStaleItem) {
				continue
			}
			return nil, err
		}

		item.CurrentStock = newStock
		item.ReservedQuantity = newReserved
		item.Version++
		l.alerts.EvaluateAfterMutation(ctx, item)
		return item, nil
	}

	return nil, fmt.Errorf("%w: stock update contention on item %s", ErrStoreUnavailable, itemID)
}

// Consume deducts quantity from stock as an "out" transaction.
func (l *Ledger) Consume(ctx context.Context, itemID string, quantity int32, actor Actor, ref *Reference, reason string) (*models.Item, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	}
	if reason == "" {
		reason = "Stock consumption"
	}
	return l.ApplyDelta(ctx, itemID, -quantity, models.TransactionTypeOut, actor, ref, reason, nil)
}

// Restock adds quantity to stock as an "in" transaction.
func (l *Ledger) Restock(ctx context.Context, itemID string, quantity int32, actor Actor, ref *Reference, reason string, costPerUnit *string) (*models.Item, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	}
	if reason == "" {
		reason = "Stock replenishment"
	}
	return l.ApplyDelta(ctx, itemID, quantity, models.TransactionTypeIn, actor, ref, reason, costPerUnit)
}

// Adjust corrects stock to an absolute target quantity. The signed delta is
// recomputed on every retry so a concurrent mutation cannot skew the target.
func (l *Ledger) Adjust(ctx context.Context, itemID string, target int32, actor Actor, reason string) (*models.Item, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if target < 0 {
		return nil, fmt.Errorf("%w: target quantity must not be negative", ErrValidation)
	}

	for attempt := 0; attempt < maxStockRetries; attempt++ {
		item, err := l.store.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("%w: item %s", ErrItemNotFound, itemID)
		}

		delta := target - item.CurrentStock
		if delta == 0 {
			return item, nil
		}
		adjustReason := reason
		if adjustReason == "" {
			adjustReason = fmt.Sprintf("Stock adjustment from %d to %d", item.CurrentStock, target)
		}

		txn := l.buildTransaction(item, models.TransactionTypeAdjustment, delta, target, actor, nil, adjustReason, nil)
		write := StockWrite{
			ItemID:           item.ID,
			ExpectedVersion:  item.Version,
			CurrentStock:     target,
			ReservedQuantity: item.ReservedQuantity,
			MarkRestocked:    delta > 0,
		}

		if err := l.store.ApplyStockChange(ctx, write, txn); err != nil {
			if errors.Is(err, ErrStaleItem) {
				continue
			}
			return nil, err
		}

		item.CurrentStock = target
		item.Version++
		l.alerts.EvaluateAfterMutation(ctx, item)
		return item, nil
	}

	return nil, fmt.Errorf("%w: stock update contention on item %s", ErrStoreUnavailable, itemID)
}

// History lists recorded transactions, optionally filtered by item and type.
func (l *Ledger) History(ctx context.Context, f TransactionFilter) ([]models.StockTransaction, error) {
	if f.Type != "" && !isValidTransactionType(f.Type) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, f.Type)
	}
	return l.store.ListTransactions(ctx, f)
}

func (l *Ledger) buildTransaction(item *models.Item, txType string, delta, newStock int32, actor Actor, ref *Reference, reason string, costPerUnit *string) *models.StockTransaction {
	quantity := delta
	if quantity < 0 {
		quantity = -quantity
	}

	txn := &models.StockTransaction{
		ID:            uuid.NewString(),
		ItemID:        item.ID,
		Type:          txType,
		Quantity:      quantity,
		PreviousStock: item.CurrentStock,
		NewStock:      newStock,
		PerformedBy:   actor.ID,
		CreatedAt:     time.Now(),
	}
	if reason != "" {
		txn.Reason = &reason
	}
	if ref != nil {
		refType, refID := ref.Type, ref.ID
		txn.ReferenceType = &refType
		txn.ReferenceID = &refID
	}
	if costPerUnit != nil {
		if unit, err := decimal.NewFromString(*costPerUnit); err == nil {
			total := unit.Mul(decimal.NewFromInt32(quantity)).StringFixed(2)
			txn.CostPerUnit = costPerUnit
			txn.TotalCost = &total
		}
	}
	return txn
}

func validateTransactionType(txType string, delta int32) error {
	switch txType {
	case models.TransactionTypeIn:
		if delta <= 0 {
			return fmt.Errorf("%w: %q transaction requires a positive delta", ErrValidation, txType)
		}
	case models.TransactionTypeOut:
		if delta >= 0 {
			return fmt.Errorf("%w: %q transaction requires a negative delta", ErrValidation, txType)
		}
	case models.TransactionTypeAdjustment:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, txType)
	}
	return nil
}

func isValidTransactionType(txType string) bool {
	return txType == models.TransactionTypeIn ||
		txType == models.TransactionTypeOut ||
		txType == models.TransactionTypeAdjustment
}
