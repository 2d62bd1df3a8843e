// Package memory provides a mutex-guarded in-memory Store. It backs the
// engine's tests and local development; it honors the same version-guard and
// status compare-and-swap contracts as the Postgres adapter.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"facilicore-system/internal/database/models"
	"facilicore-system/internal/services/inventory"
)

type Store struct {
	mu           sync.Mutex
	items        map[string]*models.Item
	transactions []models.StockTransaction
	reservations map[string]*models.Reservation
	requests     map[string]*models.ItemRequest
	alerts       map[string]*models.LowStockAlert
	alertOrder   []string
	tasks        map[string]*models.MaintenanceTask
}

func NewStore() *Store {
	return &Store{
		items:        make(map[string]*models.Item),
		reservations: make(map[string]*models.Reservation),
		requests:     make(map[string]*models.ItemRequest),
		alerts:       make(map[string]*models.LowStockAlert),
		tasks:        make(map[string]*models.MaintenanceTask),
	}
}

// --- items ---

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("%w: duplicate item id %s", inventory.ErrValidation, item.ID)
	}
	for _, existing := range s.items {
		if existing.ItemCode == item.ItemCode {
			return fmt.Errorf("%w: duplicate item code %s", inventory.ErrValidation, item.ItemCode)
		}
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *Store) GetItemByCode(ctx context.Context, code string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.ItemCode == code {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListItems(ctx context.Context, f inventory.ItemFilter) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Item
	for _, item := range s.items {
		if !f.IncludeInactive && !item.IsActive {
			continue
		}
		if f.SiteID != "" && item.SiteID != f.SiteID {
			continue
		}
		if f.Department != "" && item.Department != f.Department {
			continue
		}
		if f.Search != "" && !matchesSearch(item, f.Search) {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *Store) UpdateItem(ctx context.Context, id string, upd inventory.ItemUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: item %s", inventory.ErrItemNotFound, id)
	}
	if upd.ItemName != nil {
		item.ItemName = *upd.ItemName
	}
	if upd.Category != nil {
		item.Category = *upd.Category
	}
	if upd.Department != nil {
		item.Department = *upd.Department
	}
	if upd.Description != nil {
		item.Description = upd.Description
	}
	if upd.ReorderLevel != nil {
		item.ReorderLevel = *upd.ReorderLevel
	}
	if upd.IsCritical != nil {
		item.IsCritical = *upd.IsCritical
	}
	if upd.MaxStockLevel != nil {
		item.MaxStockLevel = *upd.MaxStockLevel
	}
	if upd.UnitOfMeasure != nil {
		item.UnitOfMeasure = *upd.UnitOfMeasure
	}
	if upd.UnitCost != nil {
		item.UnitCost = upd.UnitCost
	}
	if upd.IsActive != nil {
		item.IsActive = *upd.IsActive
	}
	if upd.Status != nil {
		item.Status = *upd.Status
	}
	if upd.ConditionNotes != nil {
		item.ConditionNotes = upd.ConditionNotes
	}
	item.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ApplyStockChange(ctx context.Context, w inventory.StockWrite, txn *models.StockTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyStockChangeLocked(w, txn)
}

func (s *Store) applyStockChangeLocked(w inventory.StockWrite, txn *models.StockTransaction) error {
	item, ok := s.items[w.ItemID]
	if !ok {
		return fmt.Errorf("%w: item %s", inventory.ErrItemNotFound, w.ItemID)
	}
	if item.Version != w.ExpectedVersion {
		return inventory.ErrStaleItem
	}

	item.CurrentStock = w.CurrentStock
	item.ReservedQuantity = w.ReservedQuantity
	item.Version++
	item.UpdatedAt = time.Now()
	if w.MarkRestocked {
		now := time.Now()
		item.LastRestockedAt = &now
	}
	if txn != nil {
		s.transactions = append(s.transactions, *txn)
	}
	return nil
}

// --- reservations ---

func (s *Store) CreateReservationHold(ctx context.Context, w inventory.StockWrite, res *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyStockChangeLocked(w, nil); err != nil {
		return err
	}
	cp := *res
	s.reservations[res.ID] = &cp
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (s *Store) ListReservations(ctx context.Context, f inventory.ReservationFilter) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reservation
	for _, res := range s.reservations {
		if f.ItemID != "" && res.ItemID != f.ItemID {
			continue
		}
		if f.TaskID != "" && res.TaskID != f.TaskID {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		out = append(out, *res)
	}
	return out, nil
}

func (s *Store) UpdateReservationStatus(ctx context.Context, id, from, to string, upd inventory.ReservationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[id]
	if !ok {
		return fmt.Errorf("%w: reservation %s", inventory.ErrReservationNotFound, id)
	}
	if res.Status != from {
		return fmt.Errorf("%w: reservation %s is %s, expected %s", inventory.ErrInvalidStateTransition, id, res.Status, from)
	}

	res.Status = to
	if upd.ReceivedAt != nil {
		res.ReceivedAt = upd.ReceivedAt
	}
	if upd.ConsumedAt != nil {
		res.ConsumedAt = upd.ConsumedAt
	}
	if upd.ReleasedAt != nil {
		res.ReleasedAt = upd.ReleasedAt
	}
	if upd.ReturnedQuantity != nil {
		res.ReturnedQuantity = *upd.ReturnedQuantity
	}
	if upd.IsDefective != nil {
		res.IsDefective = *upd.IsDefective
	}
	if upd.ConditionNotes != nil {
		res.ConditionNotes = upd.ConditionNotes
	}
	if upd.ReplacementRequestID != nil {
		res.ReplacementRequestID = upd.ReplacementRequestID
	}
	res.UpdatedAt = time.Now()
	return nil
}

// --- requests ---

func (s *Store) CreateRequest(ctx context.Context, req *models.ItemRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("%w: duplicate request id %s", inventory.ErrValidation, req.ID)
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*models.ItemRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (s *Store) ListRequests(ctx context.Context, f inventory.RequestFilter) ([]models.ItemRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ItemRequest
	for _, req := range s.requests {
		if f.ItemID != "" && req.ItemID != f.ItemID {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		if f.RequestedBy != "" && req.RequestedBy != f.RequestedBy {
			continue
		}
		if f.TaskID != "" && (req.TaskID == nil || *req.TaskID != f.TaskID) {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id, from, to string, upd inventory.RequestUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("%w: request %s", inventory.ErrRequestNotFound, id)
	}
	if req.Status != from {
		return fmt.Errorf("%w: request %s is %s, expected %s", inventory.ErrInvalidStateTransition, id, req.Status, from)
	}

	req.Status = to
	if upd.QuantityApproved != nil {
		req.QuantityApproved = *upd.QuantityApproved
	}
	if upd.DecidedBy != nil {
		req.DecidedBy = upd.DecidedBy
	}
	if upd.AdminNotes != nil {
		req.AdminNotes = upd.AdminNotes
	}
	if upd.IsDefective != nil {
		req.IsDefective = *upd.IsDefective
	}
	if upd.ReplacementRequestID != nil {
		req.ReplacementRequestID = upd.ReplacementRequestID
	}
	if upd.ApprovedAt != nil {
		req.ApprovedAt = upd.ApprovedAt
	}
	if upd.FulfilledAt != nil {
		req.FulfilledAt = upd.FulfilledAt
	}
	if upd.ReceivedAt != nil {
		req.ReceivedAt = upd.ReceivedAt
	}
	if upd.ReturnedAt != nil {
		req.ReturnedAt = upd.ReturnedAt
	}
	if upd.ReturnedQuantity != nil {
		req.ReturnedQuantity = *upd.ReturnedQuantity
	}
	req.UpdatedAt = time.Now()
	return nil
}

// --- alerts ---

func (s *Store) CreateAlert(ctx context.Context, alert *models.LowStockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.alertOrder {
		existing := s.alerts[id]
		if existing.ItemID == alert.ItemID && existing.Status != models.AlertStatusResolved {
			return fmt.Errorf("%w: item %s has alert %s", inventory.ErrAlertExists, alert.ItemID, existing.ID)
		}
	}

	cp := *alert
	s.alerts[alert.ID] = &cp
	s.alertOrder = append(s.alertOrder, alert.ID)
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (*models.LowStockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *alert
	return &cp, nil
}

func (s *Store) GetActiveAlert(ctx context.Context, itemID string) (*models.LowStockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.alertOrder {
		alert := s.alerts[id]
		if alert.ItemID == itemID && alert.Status != models.AlertStatusResolved {
			cp := *alert
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListAlerts(ctx context.Context, f inventory.AlertFilter) ([]models.LowStockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.LowStockAlert
	for _, id := range s.alertOrder {
		alert := s.alerts[id]
		if f.SiteID != "" && alert.SiteID != f.SiteID {
			continue
		}
		if f.Status != "" && alert.Status != f.Status {
			continue
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (s *Store) UpdateAlert(ctx context.Context, id string, upd inventory.AlertUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("%w: alert %s", inventory.ErrAlertNotFound, id)
	}
	if upd.Level != nil {
		alert.Level = *upd.Level
	}
	if upd.CurrentStock != nil {
		alert.CurrentStock = *upd.CurrentStock
	}
	if upd.Status != nil {
		alert.Status = *upd.Status
	}
	if upd.AcknowledgedBy != nil {
		alert.AcknowledgedBy = upd.AcknowledgedBy
	}
	if upd.AcknowledgedAt != nil {
		alert.AcknowledgedAt = upd.AcknowledgedAt
	}
	if upd.ResolvedAt != nil {
		alert.ResolvedAt = upd.ResolvedAt
	}
	alert.UpdatedAt = time.Now()
	return nil
}

// --- transactions ---

func (s *Store) ListTransactions(ctx context.Context, f inventory.TransactionFilter) ([]models.StockTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.StockTransaction
	for _, txn := range s.transactions {
		if f.ItemID != "" && txn.ItemID != f.ItemID {
			continue
		}
		if f.Type != "" && txn.Type != f.Type {
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

// --- task directory ---

func (s *Store) AddTask(task *models.MaintenanceTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *task
	s.tasks[task.ID] = &cp
}

func (s *Store) IsStaffAssigned(ctx context.Context, taskID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return false, nil
	}
	return task.AssignedTo == userID, nil
}

func matchesSearch(item *models.Item, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(item.ItemName), term) {
		return true
	}
	if strings.Contains(strings.ToLower(item.ItemCode), term) {
		return true
	}
	if item.Description != nil && strings.Contains(strings.ToLower(*item.Description), term) {
		return true
	}
	return false
}
