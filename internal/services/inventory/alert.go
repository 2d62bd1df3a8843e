package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"facilicore-system/internal/database/models"
)

// AlertMonitor derives low-stock alert state from an item's stock level. It
// runs inline after every ledger mutation; at most one non-resolved alert
// exists per item at any time.
type AlertMonitor struct {
	store    Store
	notifier Notifier
}

func NewAlertMonitor(store Store, notifier Notifier) *AlertMonitor {
	return &AlertMonitor{store: store, notifier: notifier}
}

// EvaluateAfterMutation is the best-effort hook the ledger calls. Evaluation
// failures are logged and never abort the stock change that triggered them.
func (m *AlertMonitor) EvaluateAfterMutation(ctx context.Context, item *models.Item) {
	if err := m.Evaluate(ctx, item); err != nil {
		log.Printf("alert evaluation failed for item %s: %v", item.ID, err)
	}
}

// Evaluate classifies the item's stock level and reconciles its alert: create
// when none is active, escalate the level in place when stock degraded
// further, resolve when stock recovered above the reorder level. Evaluating
// twice with no stock change is a no-op.
func (m *AlertMonitor) Evaluate(ctx context.Context, item *models.Item) error {
	active, err := m.store.GetActiveAlert(ctx, item.ID)
	if err != nil {
		return err
	}

	if item.CurrentStock > item.ReorderLevel {
		if active == nil {
			return nil
		}
		return m.resolve(ctx, active)
	}

	level := classifyAlertLevel(item)
	if active == nil {
		alert := &models.LowStockAlert{
			ID:           uuid.NewString(),
			ItemID:       item.ID,
			SiteID:       item.SiteID,
			ItemName:     item.ItemName,
			CurrentStock: item.CurrentStock,
			ReorderLevel: item.ReorderLevel,
			Level:        level,
			Status:       models.AlertStatusActive,
			CreatedAt:    time.Now(),
		}
		err := m.store.CreateAlert(ctx, alert)
		if err == nil {
			m.notifier.LowStock(ctx, item, level)
			return nil
		}
		if !errors.Is(err, ErrAlertExists) {
			return err
		}
		// A concurrent evaluation inserted first; escalate its row instead.
		active, err = m.store.GetActiveAlert(ctx, item.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return nil
		}
	}

	// Severity is only ever raised while an alert is open; churn from
	// oscillating stock is absorbed by the single row.
	if alertSeverity(level) > alertSeverity(active.Level) {
		stock := item.CurrentStock
		if err := m.store.UpdateAlert(ctx, active.ID, AlertUpdate{Level: &level, CurrentStock: &stock}); err != nil {
			return err
		}
		m.notifier.LowStock(ctx, item, level)
	}
	return nil
}

// List returns alerts filtered by site and status.
func (m *AlertMonitor) List(ctx context.Context, f AlertFilter) ([]models.LowStockAlert, error) {
	return m.store.ListAlerts(ctx, f)
}

// Acknowledge marks an active alert as seen by staff.
func (m *AlertMonitor) Acknowledge(ctx context.Context, alertID string, actor Actor) (*models.LowStockAlert, error) {
	alert, err := m.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, fmt.Errorf("%w: alert %s", ErrAlertNotFound, alertID)
	}
	if alert.Status != models.AlertStatusActive {
		return nil, fmt.Errorf("%w: alert %s is %s", ErrInvalidStateTransition, alertID, alert.Status)
	}

	now := time.Now()
	status := models.AlertStatusAcknowledged
	upd := AlertUpdate{Status: &status, AcknowledgedBy: &actor.ID, AcknowledgedAt: &now}
	if err := m.store.UpdateAlert(ctx, alertID, upd); err != nil {
		return nil, err
	}
	alert.Status = status
	alert.AcknowledgedBy = &actor.ID
	alert.AcknowledgedAt = &now
	return alert, nil
}

func (m *AlertMonitor) resolve(ctx context.Context, alert *models.LowStockAlert) error {
	now := time.Now()
	status := models.AlertStatusResolved
	return m.store.UpdateAlert(ctx, alert.ID, AlertUpdate{Status: &status, ResolvedAt: &now})
}

func classifyAlertLevel(item *models.Item) string {
	switch {
	case item.CurrentStock == 0:
		return models.AlertLevelOutOfStock
	case item.IsCritical || item.CurrentStock*2 <= item.ReorderLevel:
		return models.AlertLevelCritical
	default:
		return models.AlertLevelLow
	}
}

func alertSeverity(level string) int {
	switch level {
	case models.AlertLevelOutOfStock:
		return 3
	case models.AlertLevelCritical:
		return 2
	case models.AlertLevelLow:
		return 1
	}
	return 0
}
