// Package storage implements the stock engine's Store interface over Postgres
// via gorm. Contended counter writes are version-guarded: the UPDATE carries a
// WHERE version = ? clause and zero affected rows surfaces ErrStaleItem so the
// caller can re-read and retry.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"facilicore-system/internal/database/models"
	"facilicore-system/internal/services/inventory"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// --- items ---

func (s *GormStore) CreateItem(ctx context.Context, item *models.Item) error {
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (s *GormStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

func (s *GormStore) GetItemByCode(ctx context.Context, code string) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).First(&item, "item_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by code: %w", err)
	}
	return &item, nil
}

func (s *GormStore) ListItems(ctx context.Context, f inventory.ItemFilter) ([]models.Item, error) {
	q := s.db.WithContext(ctx).Model(&models.Item{})
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if f.SiteID != "" {
		q = q.Where("site_id = ?", f.SiteID)
	}
	if f.Department != "" {
		q = q.Where("department = ?", f.Department)
	}
	if f.Search != "" {
		term := "%" + f.Search + "%"
		q = q.Where("item_name ILIKE ? OR item_code ILIKE ? OR description ILIKE ?", term, term, term)
	}

	var items []models.Item
	if err := q.Order("item_name ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *GormStore) UpdateItem(ctx context.Context, id string, upd inventory.ItemUpdate) error {
	values := map[string]interface{}{}
	if upd.ItemName != nil {
		values["item_name"] = *upd.ItemName
	}
	if upd.Category != nil {
		values["category"] = *upd.Category
	}
	if upd.Department != nil {
		values["department"] = *upd.Department
	}
	if upd.Description != nil {
		values["description"] = upd.Description
	}
	if upd.ReorderLevel != nil {
		values["reorder_level"] = *upd.ReorderLevel
	}
	if upd.IsCritical != nil {
		values["is_critical"] = *upd.IsCritical
	}
	if upd.MaxStockLevel != nil {
		values["max_stock_level"] = *upd.MaxStockLevel
	}
	if upd.UnitOfMeasure != nil {
		values["unit_of_measure"] = *upd.UnitOfMeasure
	}
	if upd.UnitCost != nil {
		values["unit_cost"] = upd.UnitCost
	}
	if upd.IsActive != nil {
		values["is_active"] = *upd.IsActive
	}
	if upd.Status != nil {
		values["status"] = *upd.Status
	}
	if upd.ConditionNotes != nil {
		values["condition_notes"] = upd.ConditionNotes
	}
	if len(values) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: item %s", inventory.ErrItemNotFound, id)
	}
	return nil
}

func (s *GormStore) ApplyStockChange(ctx context.Context, w inventory.StockWrite, txn *models.StockTransaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyStockWrite(tx, w); err != nil {
			return err
		}
		if txn != nil {
			if err := tx.Create(txn).Error; err != nil {
				return fmt.Errorf("append stock transaction: %w", err)
			}
		}
		return nil
	})
}

// --- reservations ---

func (s *GormStore) CreateReservationHold(ctx context.Context, w inventory.StockWrite, res *models.Reservation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyStockWrite(tx, w); err != nil {
			return err
		}
		if err := tx.Create(res).Error; err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	var res models.Reservation
	err := s.db.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

func (s *GormStore) ListReservations(ctx context.Context, f inventory.ReservationFilter) ([]models.Reservation, error) {
	q := s.db.WithContext(ctx).Model(&models.Reservation{})
	if f.ItemID != "" {
		q = q.Where("item_id = ?", f.ItemID)
	}
	if f.TaskID != "" {
		q = q.Where("task_id = ?", f.TaskID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var out []models.Reservation
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

func (s *GormStore) UpdateReservationStatus(ctx context.Context, id, from, to string, upd inventory.ReservationUpdate) error {
	values := map[string]interface{}{"status": to}
	if upd.ReceivedAt != nil {
		values["received_at"] = upd.ReceivedAt
	}
	if upd.ConsumedAt != nil {
		values["consumed_at"] = upd.ConsumedAt
	}
	if upd.ReleasedAt != nil {
		values["released_at"] = upd.ReleasedAt
	}
	if upd.ReturnedQuantity != nil {
		values["returned_quantity"] = *upd.ReturnedQuantity
	}
	if upd.IsDefective != nil {
		values["is_defective"] = *upd.IsDefective
	}
	if upd.ConditionNotes != nil {
		values["condition_notes"] = upd.ConditionNotes
	}
	if upd.ReplacementRequestID != nil {
		values["replacement_request_id"] = upd.ReplacementRequestID
	}

	res := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update reservation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.reservationTransitionError(ctx, id, from)
	}
	return nil
}

func (s *GormStore) reservationTransitionError(ctx context.Context, id, from string) error {
	cur, err := s.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("%w: reservation %s", inventory.ErrReservationNotFound, id)
	}
	return fmt.Errorf("%w: reservation %s is %s, expected %s", inventory.ErrInvalidStateTransition, id, cur.Status, from)
}

// --- requests ---

func (s *GormStore) CreateRequest(ctx context.Context, req *models.ItemRequest) error {
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (s *GormStore) GetRequest(ctx context.Context, id string) (*models.ItemRequest, error) {
	var req models.ItemRequest
	err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

func (s *GormStore) ListRequests(ctx context.Context, f inventory.RequestFilter) ([]models.ItemRequest, error) {
	q := s.db.WithContext(ctx).Model(&models.ItemRequest{})
	if f.ItemID != "" {
		q = q.Where("item_id = ?", f.ItemID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RequestedBy != "" {
		q = q.Where("requested_by = ?", f.RequestedBy)
	}
	if f.TaskID != "" {
		q = q.Where("task_id = ?", f.TaskID)
	}

	var out []models.ItemRequest
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

func (s *GormStore) UpdateRequestStatus(ctx context.Context, id, from, to string, upd inventory.RequestUpdate) error {
	values := map[string]interface{}{"status": to}
	if upd.QuantityApproved != nil {
		values["quantity_approved"] = *upd.QuantityApproved
	}
	if upd.DecidedBy != nil {
		values["decided_by"] = upd.DecidedBy
	}
	if upd.AdminNotes != nil {
		values["admin_notes"] = upd.AdminNotes
	}
	if upd.IsDefective != nil {
		values["is_defective"] = *upd.IsDefective
	}
	if upd.ReplacementRequestID != nil {
		values["replacement_request_id"] = upd.ReplacementRequestID
	}
	if upd.ApprovedAt != nil {
		values["approved_at"] = upd.ApprovedAt
	}
	if upd.FulfilledAt != nil {
		values["fulfilled_at"] = upd.FulfilledAt
	}
	if upd.ReceivedAt != nil {
		values["received_at"] = upd.ReceivedAt
	}
	if upd.ReturnedAt != nil {
		values["returned_at"] = upd.ReturnedAt
	}
	if upd.ReturnedQuantity != nil {
		values["returned_quantity"] = *upd.ReturnedQuantity
	}

	res := s.db.WithContext(ctx).Model(&models.ItemRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update request status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.requestTransitionError(ctx, id, from)
	}
	return nil
}

func (s *GormStore) requestTransitionError(ctx context.Context, id, from string) error {
	cur, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("%w: request %s", inventory.ErrRequestNotFound, id)
	}
	return fmt.Errorf("%w: request %s is %s, expected %s", inventory.ErrInvalidStateTransition, id, cur.Status, from)
}

// --- alerts ---

func (s *GormStore) CreateAlert(ctx context.Context, alert *models.LowStockAlert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		// The partial unique index on item_id rejects a second open alert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: item %s", inventory.ErrAlertExists, alert.ItemID)
		}
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func (s *GormStore) GetAlert(ctx context.Context, id string) (*models.LowStockAlert, error) {
	var alert models.LowStockAlert
	err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &alert, nil
}

func (s *GormStore) GetActiveAlert(ctx context.Context, itemID string) (*models.LowStockAlert, error) {
	var alert models.LowStockAlert
	err := s.db.WithContext(ctx).
		Where("item_id = ? AND status <> ?", itemID, models.AlertStatusResolved).
		Order("created_at ASC").
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active alert: %w", err)
	}
	return &alert, nil
}

func (s *GormStore) ListAlerts(ctx context.Context, f inventory.AlertFilter) ([]models.LowStockAlert, error) {
	q := s.db.WithContext(ctx).Model(&models.LowStockAlert{})
	if f.SiteID != "" {
		q = q.Where("site_id = ?", f.SiteID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var out []models.LowStockAlert
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}

func (s *GormStore) UpdateAlert(ctx context.Context, id string, upd inventory.AlertUpdate) error {
	values := map[string]interface{}{}
	if upd.Level != nil {
		values["level"] = *upd.Level
	}
	if upd.CurrentStock != nil {
		values["current_stock"] = *upd.CurrentStock
	}
	if upd.Status != nil {
		values["status"] = *upd.Status
	}
	if upd.AcknowledgedBy != nil {
		values["acknowledged_by"] = upd.AcknowledgedBy
	}
	if upd.AcknowledgedAt != nil {
		values["acknowledged_at"] = upd.AcknowledgedAt
	}
	if upd.ResolvedAt != nil {
		values["resolved_at"] = upd.ResolvedAt
	}
	if len(values) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.LowStockAlert{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: alert %s", inventory.ErrAlertNotFound, id)
	}
	return nil
}

// --- transactions ---

func (s *GormStore) ListTransactions(ctx context.Context, f inventory.TransactionFilter) ([]models.StockTransaction, error) {
	q := s.db.WithContext(ctx).Model(&models.StockTransaction{})
	if f.ItemID != "" {
		q = q.Where("item_id = ?", f.ItemID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}

	var out []models.StockTransaction
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// applyStockWrite lands the guarded counter update inside tx. Zero affected
// rows means the version moved under us; the caller's retry loop handles it.
func applyStockWrite(tx *gorm.DB, w inventory.StockWrite) error {
	values := map[string]interface{}{
		"current_stock":     w.CurrentStock,
		"reserved_quantity": w.ReservedQuantity,
		"version":           gorm.Expr("version + 1"),
	}
	if w.MarkRestocked {
		values["last_restocked_at"] = time.Now()
	}

	res := tx.Model(&models.Item{}).
		Where("id = ? AND version = ?", w.ItemID, w.ExpectedVersion).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("apply stock write: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return inventory.ErrStaleItem
	}
	return nil
}

// GormTaskDirectory answers staff-assignment lookups against maintenance tasks.
type GormTaskDirectory struct {
	db *gorm.DB
}

func NewGormTaskDirectory(db *gorm.DB) *GormTaskDirectory {
	return &GormTaskDirectory{db: db}
}

func (d *GormTaskDirectory) IsStaffAssigned(ctx context.Context, taskID, userID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.MaintenanceTask{}).
		Where("id = ? AND assigned_to = ?", taskID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("task assignment lookup: %w", err)
	}
	return count > 0, nil
}
