package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"facilicore-system/internal/database/models"
)

// NewItem is the closed creation command for catalog items.
type NewItem struct {
	SiteID        string
	ItemCode      string
	ItemName      string
	Category      string
	Department    string
	Description   *string
	InitialStock  int32
	ReorderLevel  int32
	IsCritical    bool
	MaxStockLevel int32
	UnitOfMeasure string
	UnitCost      *string
}

// SiteSummary aggregates stock health counts for one site.
type SiteSummary struct {
	TotalItems        int            `json:"total_items"`
	LowStockItems     int            `json:"low_stock_items"`
	OutOfStockItems   int            `json:"out_of_stock_items"`
	CriticalItems     int            `json:"critical_items"`
	TotalValue        string         `json:"total_value"`
	ItemsByCategory   map[string]int `json:"items_by_category"`
	ItemsByDepartment map[string]int `json:"items_by_department"`
}

// Catalog manages item records. Stock counters still flow through the ledger:
// initial stock lands as an "in" transaction so the ledger reconciles from
// the very first unit.
type Catalog struct {
	store  Store
	ledger *Ledger
}

func NewCatalog(store Store, ledger *Ledger) *Catalog {
	return &Catalog{store: store, ledger: ledger}
}

func (c *Catalog) Create(ctx context.Context, in NewItem, actor Actor) (*models.Item, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins create items", ErrNotAuthorized)
	}
	if in.ItemCode == "" || in.ItemName == "" {
		return nil, fmt.Errorf("%w: item code and item name are required", ErrValidation)
	}
	if in.SiteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrValidation)
	}
	if in.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock must not be negative", ErrValidation)
	}

	now := time.Now()
	item := &models.Item{
		ID:            uuid.NewString(),
		SiteID:        in.SiteID,
		ItemCode:      in.ItemCode,
		ItemName:      in.ItemName,
		Category:      in.Category,
		Department:    in.Department,
		Description:   in.Description,
		ReorderLevel:  in.ReorderLevel,
		IsCritical:    in.IsCritical,
		MaxStockLevel: in.MaxStockLevel,
		UnitOfMeasure: in.UnitOfMeasure,
		UnitCost:      in.UnitCost,
		IsActive:      true,
		Status:        models.ItemStatusOK,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	if in.InitialStock > 0 {
		updated, err := c.ledger.Restock(ctx, item.ID, in.InitialStock, actor, nil, "Initial stock creation", in.UnitCost)
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	// A zero-stock item may already sit at or below its reorder level.
	c.ledger.alerts.EvaluateAfterMutation(ctx, item)
	return item, nil
}

func (c *Catalog) Get(ctx context.Context, itemID string) (*models.Item, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrValidation)
	}
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrItemNotFound, itemID)
	}
	return item, nil
}

func (c *Catalog) GetByCode(ctx context.Context, code string) (*models.Item, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: item code is required", ErrValidation)
	}
	item, err := c.store.GetItemByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: code %s", ErrItemNotFound, code)
	}
	return item, nil
}

func (c *Catalog) List(ctx context.Context, f ItemFilter) ([]models.Item, error) {
	return c.store.ListItems(ctx, f)
}

func (c *Catalog) Update(ctx context.Context, itemID string, upd ItemUpdate, actor Actor) (*models.Item, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins update items", ErrNotAuthorized)
	}
	item, err := c.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := c.store.UpdateItem(ctx, itemID, upd); err != nil {
		return nil, err
	}

	// A lowered reorder level can silently put the item into alert territory.
	if upd.ReorderLevel != nil {
		item.ReorderLevel = *upd.ReorderLevel
		c.ledger.alerts.EvaluateAfterMutation(ctx, item)
	}
	return c.Get(ctx, itemID)
}

// Deactivate soft-deletes: history, reservations, and the ledger keep
// pointing at the row.
func (c *Catalog) Deactivate(ctx context.Context, itemID string, actor Actor) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: only admins deactivate items", ErrNotAuthorized)
	}
	if _, err := c.Get(ctx, itemID); err != nil {
		return err
	}
	active := false
	return c.store.UpdateItem(ctx, itemID, ItemUpdate{IsActive: &active})
}

func (c *Catalog) Summary(ctx context.Context, siteID string) (*SiteSummary, error) {
	items, err := c.store.ListItems(ctx, ItemFilter{SiteID: siteID})
	if err != nil {
		return nil, err
	}

	summary := &SiteSummary{
		ItemsByCategory:   map[string]int{},
		ItemsByDepartment: map[string]int{},
	}
	total := decimal.Zero
	for i := range items {
		item := &items[i]
		summary.TotalItems++
		if item.CurrentStock <= item.ReorderLevel {
			summary.LowStockItems++
		}
		if item.CurrentStock == 0 {
			summary.OutOfStockItems++
		}
		if item.IsCritical {
			summary.CriticalItems++
		}
		if item.UnitCost != nil {
			if unit, err := decimal.NewFromString(*item.UnitCost); err == nil {
				total = total.Add(unit.Mul(decimal.NewFromInt32(item.CurrentStock)))
			}
		}
		if item.Category != "" {
			summary.ItemsByCategory[item.Category]++
		}
		if item.Department != "" {
			summary.ItemsByDepartment[item.Department]++
		}
	}
	summary.TotalValue = total.StringFixed(2)
	return summary, nil
}
