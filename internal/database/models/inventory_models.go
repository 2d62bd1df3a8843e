package models

import "time"

// Transaction types recorded in the stock ledger.
const (
	TransactionTypeIn         = "in"
	TransactionTypeOut        = "out"
	TransactionTypeAdjustment = "adjustment"
)

// Reservation lifecycle states.
const (
	ReservationStatusReserved = "reserved"
	ReservationStatusReceived = "received"
	ReservationStatusConsumed = "consumed"
	ReservationStatusReleased = "released"
)

// Request lifecycle states.
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusDenied    = "denied"
	RequestStatusFulfilled = "fulfilled"
	RequestStatusReceived  = "received"
	RequestStatusReturned  = "returned"
)

// Alert severity levels, ordered from least to most severe.
const (
	AlertLevelLow        = "low"
	AlertLevelCritical   = "critical"
	AlertLevelOutOfStock = "out_of_stock"
)

// Alert states.
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// Item condition states. needs_repair marks quarantined stock pending inspection.
const (
	ItemStatusOK          = "ok"
	ItemStatusNeedsRepair = "needs_repair"
)

// Reference types linking ledger transactions back to their originating entity.
const (
	ReferenceTypeReservation = "reservation"
	ReferenceTypeRequest     = "request"
	ReferenceTypeTask        = "maintenance_task"
	ReferenceTypeManual      = "manual"
)

type Item struct {
	ID               string  `gorm:"primaryKey;size:40"`
	SiteID           string  `gorm:"size:40;index"`
	ItemCode         string  `gorm:"size:100;uniqueIndex"`
	ItemName         string  `gorm:"size:255"`
	Category         string  `gorm:"size:100"`
	Department       string  `gorm:"size:100"`
	Description      *string `gorm:"size:500"`
	CurrentStock     int32
	ReservedQuantity int32
	ReorderLevel     int32
	IsCritical       bool
	MaxStockLevel    int32
	UnitOfMeasure    string  `gorm:"size:50"`
	UnitCost         *string `gorm:"size:50"`
	IsActive         bool
	Status           string  `gorm:"size:50;default:ok"`
	ConditionNotes   *string `gorm:"size:500"`
	LastRestockedAt  *time.Time
	Version          int32
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Transactions []StockTransaction `gorm:"foreignKey:ItemID"`
	Reservations []Reservation      `gorm:"foreignKey:ItemID"`
}

func (Item) TableName() string { return "inventory_items" }

// StockTransaction rows are append-only; they are never updated or deleted.
type StockTransaction struct {
	ID            string `gorm:"primaryKey;size:40"`
	ItemID        string `gorm:"size:40;index"`
	Type          string `gorm:"size:20;index"`
	Quantity      int32
	PreviousStock int32
	NewStock      int32
	PerformedBy   string  `gorm:"size:100"`
	ReferenceType *string `gorm:"size:50"`
	ReferenceID   *string `gorm:"size:40"`
	Reason        *string `gorm:"size:500"`
	CostPerUnit   *string `gorm:"size:50"`
	TotalCost     *string `gorm:"size:50"`
	CreatedAt     time.Time
}

func (StockTransaction) TableName() string { return "stock_transactions" }

type Reservation struct {
	ID                   string `gorm:"primaryKey;size:40"`
	ItemID               string `gorm:"size:40;index"`
	TaskID               string `gorm:"size:40;index"`
	Quantity             int32
	Status               string `gorm:"size:20;index"`
	ReservedBy           string `gorm:"size:100"`
	ReceivedAt           *time.Time
	ConsumedAt           *time.Time
	ReleasedAt           *time.Time
	ReturnedQuantity     int32
	IsDefective          bool
	ConditionNotes       *string `gorm:"size:500"`
	ReplacementRequestID *string `gorm:"size:40"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

func (Reservation) TableName() string { return "stock_reservations" }

type ItemRequest struct {
	ID                   string `gorm:"primaryKey;size:40"`
	ItemID               string `gorm:"size:40;index"`
	RequestedBy          string `gorm:"size:100;index"`
	QuantityRequested    int32
	QuantityApproved     int32
	Purpose              string  `gorm:"size:500"`
	TaskID               *string `gorm:"size:40;index"`
	Status               string  `gorm:"size:20;index"`
	DecidedBy            *string `gorm:"size:100"`
	AdminNotes           *string `gorm:"size:500"`
	IsDefective          bool
	ParentRequestID      *string `gorm:"size:40;index"`
	ReplacementRequestID *string `gorm:"size:40"`
	ApprovedAt           *time.Time
	FulfilledAt          *time.Time
	ReceivedAt           *time.Time
	ReturnedAt           *time.Time
	ReturnedQuantity     int32
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

func (ItemRequest) TableName() string { return "item_requests" }

type LowStockAlert struct {
	ID             string `gorm:"primaryKey;size:40"`
	ItemID         string `gorm:"size:40;uniqueIndex:uniq_open_alert_per_item,where:status <> 'resolved'"`
	SiteID         string `gorm:"size:40;index"`
	ItemName       string `gorm:"size:255"`
	CurrentStock   int32
	ReorderLevel   int32
	Level          string  `gorm:"size:20"`
	Status         string  `gorm:"size:20;index"`
	AcknowledgedBy *string `gorm:"size:100"`
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (LowStockAlert) TableName() string { return "low_stock_alerts" }
