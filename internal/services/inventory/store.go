package inventory

import (
	"context"
	"time"

	"facilicore-system/internal/database/models"
)

// ItemUpdate is a closed update command for item detail fields. Stock counters
// are deliberately absent: current_stock and reserved_quantity change only
// through guarded StockWrite calls.
type ItemUpdate struct {
	ItemName       *string
	Category       *string
	Department     *string
	Description    *string
	ReorderLevel   *int32
	IsCritical     *bool
	MaxStockLevel  *int32
	UnitOfMeasure  *string
	UnitCost       *string
	IsActive       *bool
	Status         *string
	ConditionNotes *string
}

// StockWrite is a guarded write of an item's contended counters. The write
// only lands if the item's version still equals ExpectedVersion; otherwise the
// store reports ErrStaleItem and the caller re-reads and retries.
type StockWrite struct {
	ItemID           string
	ExpectedVersion  int32
	CurrentStock     int32
	ReservedQuantity int32
	MarkRestocked    bool
}

type ReservationUpdate struct {
	ReceivedAt           *time.Time
	ConsumedAt           *time.Time
	ReleasedAt           *time.Time
	ReturnedQuantity     *int32
	IsDefective          *bool
	ConditionNotes       *string
	ReplacementRequestID *string
}

type RequestUpdate struct {
	QuantityApproved     *int32
	DecidedBy            *string
	AdminNotes           *string
	IsDefective          *bool
	ReplacementRequestID *string
	ApprovedAt           *time.Time
	FulfilledAt          *time.Time
	ReceivedAt           *time.Time
	ReturnedAt           *time.Time
	ReturnedQuantity     *int32
}

type AlertUpdate struct {
	Level          *string
	CurrentStock   *int32
	Status         *string
	AcknowledgedBy *string
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

type ItemFilter struct {
	SiteID          string
	Department      string
	Search          string
	IncludeInactive bool
}

type TransactionFilter struct {
	ItemID string
	Type   string
}

type ReservationFilter struct {
	ItemID string
	TaskID string
	Status string
}

type RequestFilter struct {
	ItemID      string
	Status      string
	RequestedBy string
	TaskID      string
}

type AlertFilter struct {
	SiteID string
	Status string
}

// Store is the persistence boundary for the stock engine. Implementations
// must make ApplyStockChange and CreateReservationHold atomic: a reader never
// observes the stock write without its paired row, or vice versa.
type Store interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	GetItemByCode(ctx context.Context, code string) (*models.Item, error)
	ListItems(ctx context.Context, f ItemFilter) ([]models.Item, error)
	UpdateItem(ctx context.Context, id string, upd ItemUpdate) error

	// ApplyStockChange persists w and appends txn as one atomic unit. txn may
	// be nil for pure reserved-quantity moves that have no ledger effect.
	ApplyStockChange(ctx context.Context, w StockWrite, txn *models.StockTransaction) error

	// CreateReservationHold inserts res and persists w in one atomic unit,
	// guarded by w.ExpectedVersion.
	CreateReservationHold(ctx context.Context, w StockWrite, res *models.Reservation) error

	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]models.Reservation, error)
	// UpdateReservationStatus moves id from one status to another as a
	// compare-and-swap; ErrInvalidStateTransition when the row already moved.
	UpdateReservationStatus(ctx context.Context, id, from, to string, upd ReservationUpdate) error

	CreateRequest(ctx context.Context, req *models.ItemRequest) error
	GetRequest(ctx context.Context, id string) (*models.ItemRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]models.ItemRequest, error)
	UpdateRequestStatus(ctx context.Context, id, from, to string, upd RequestUpdate) error

	CreateAlert(ctx context.Context, alert *models.LowStockAlert) error
	GetAlert(ctx context.Context, id string) (*models.LowStockAlert, error)
	// GetActiveAlert returns the non-resolved alert for an item, or nil.
	GetActiveAlert(ctx context.Context, itemID string) (*models.LowStockAlert, error)
	ListAlerts(ctx context.Context, f AlertFilter) ([]models.LowStockAlert, error)
	UpdateAlert(ctx context.Context, id string, upd AlertUpdate) error

	ListTransactions(ctx context.Context, f TransactionFilter) ([]models.StockTransaction, error)
}

// TaskDirectory answers staff-assignment questions for maintenance tasks. It
// backs the authorization check on request receipt.
type TaskDirectory interface {
	IsStaffAssigned(ctx context.Context, taskID, userID string) (bool, error)
}

// Actor identifies who performs an operation, for audit fields and
// authorization checks. IDs are opaque identity-provider subjects.
type Actor struct {
	ID   string
	Role string
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// SystemActor performs automatic transitions such as auto-fulfillment.
var SystemActor = Actor{ID: "system_auto_fulfill", Role: RoleAdmin}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
