package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"facilicore-system/internal/database/models"
	"facilicore-system/internal/gateway/middleware"
	"facilicore-system/internal/services/inventory"
)

const (
	ITEM_CACHE_PREFIX = "inventory:item:"
	SUMMARY_CACHE_KEY = "inventory:summary:"
	ALERTS_CACHE_KEY  = "inventory:alerts"
	CACHE_TTL_SHORT   = 5 * time.Minute
	CACHE_TTL_MEDIUM  = 30 * time.Minute
)

type InventoryHTTPHandler struct {
	catalog      *inventory.Catalog
	ledger       *inventory.Ledger
	reservations *inventory.ReservationManager
	requests     *inventory.RequestWorkflow
	alerts       *inventory.AlertMonitor
	redis        *redis.Client
}

func NewInventoryHTTPHandler(
	catalog *inventory.Catalog,
	ledger *inventory.Ledger,
	reservations *inventory.ReservationManager,
	requests *inventory.RequestWorkflow,
	alerts *inventory.AlertMonitor,
	redisClient *redis.Client,
) *InventoryHTTPHandler {
	return &InventoryHTTPHandler{
		catalog:      catalog,
		ledger:       ledger,
		reservations: reservations,
		requests:     requests,
		alerts:       alerts,
		redis:        redisClient,
	}
}

// Helper functions
func (s *InventoryHTTPHandler) success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func (s *InventoryHTTPHandler) created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

func (s *InventoryHTTPHandler) error(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"success": false,
		"error":   message,
	})
}

// fail maps engine errors onto HTTP status codes.
func (s *InventoryHTTPHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inventory.ErrValidation):
		s.error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrItemNotFound),
		errors.Is(err, inventory.ErrReservationNotFound),
		errors.Is(err, inventory.ErrRequestNotFound),
		errors.Is(err, inventory.ErrAlertNotFound):
		s.error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, inventory.ErrNotAuthorized):
		s.error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvalidStateTransition):
		s.error(c, http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrStoreUnavailable):
		s.error(c, http.StatusServiceUnavailable, err.Error())
	default:
		s.error(c, http.StatusInternalServerError, "internal error")
	}
}

func actorFromContext(c *gin.Context) inventory.Actor {
	return inventory.Actor{
		ID:   c.GetString(middleware.ContextUserID),
		Role: c.GetString(middleware.ContextRole),
	}
}

func (s *InventoryHTTPHandler) invalidateItemCaches(ctx context.Context, itemID ...string) {
	keys := []string{ALERTS_CACHE_KEY}
	for _, id := range itemID {
		keys = append(keys, ITEM_CACHE_PREFIX+id)
	}
	_ = s.redis.Del(ctx, keys...)
}

// --- Response types ---

type itemResponse struct {
	ID               string     `json:"id"`
	SiteID           string     `json:"site_id"`
	ItemCode         string     `json:"item_code"`
	ItemName         string     `json:"item_name"`
	Category         string     `json:"category"`
	Department       string     `json:"department"`
	Description      *string    `json:"description,omitempty"`
	CurrentStock     int32      `json:"current_stock"`
	ReservedQuantity int32      `json:"reserved_quantity"`
	AvailableStock   int32      `json:"available_stock"`
	ReorderLevel     int32      `json:"reorder_level"`
	IsCritical       bool       `json:"is_critical"`
	MaxStockLevel    int32      `json:"max_stock_level"`
	UnitOfMeasure    string     `json:"unit_of_measure"`
	UnitCost         *string    `json:"unit_cost,omitempty"`
	IsActive         bool       `json:"is_active"`
	Status           string     `json:"status"`
	ConditionNotes   *string    `json:"condition_notes,omitempty"`
	LastRestockedAt  *time.Time `json:"last_restocked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type reservationResponse struct {
	ID                   string     `json:"id"`
	ItemID               string     `json:"item_id"`
	TaskID               string     `json:"task_id"`
	Quantity             int32      `json:"quantity"`
	Status               string     `json:"status"`
	ReservedBy           string     `json:"reserved_by"`
	ReceivedAt           *time.Time `json:"received_at,omitempty"`
	ConsumedAt           *time.Time `json:"consumed_at,omitempty"`
	ReleasedAt           *time.Time `json:"released_at,omitempty"`
	ReturnedQuantity     int32      `json:"returned_quantity"`
	IsDefective          bool       `json:"is_defective"`
	ConditionNotes       *string    `json:"condition_notes,omitempty"`
	ReplacementRequestID *string    `json:"replacement_request_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

type requestResponse struct {
	ID                   string     `json:"id"`
	ItemID               string     `json:"item_id"`
	RequestedBy          string     `json:"requested_by"`
	QuantityRequested    int32      `json:"quantity_requested"`
	QuantityApproved     int32      `json:"quantity_approved"`
	Purpose              string     `json:"purpose"`
	TaskID               *string    `json:"task_id,omitempty"`
	Status               string     `json:"status"`
	DecidedBy            *string    `json:"decided_by,omitempty"`
	AdminNotes           *string    `json:"admin_notes,omitempty"`
	IsDefective          bool       `json:"is_defective"`
	ParentRequestID      *string    `json:"parent_request_id,omitempty"`
	ReplacementRequestID *string    `json:"replacement_request_id,omitempty"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
	FulfilledAt          *time.Time `json:"fulfilled_at,omitempty"`
	ReceivedAt           *time.Time `json:"received_at,omitempty"`
	ReturnedAt           *time.Time `json:"returned_at,omitempty"`
	ReturnedQuantity     int32      `json:"returned_quantity"`
	CreatedAt            time.Time  `json:"created_at"`
}

type alertResponse struct {
	ID             string     `json:"id"`
	ItemID         string     `json:"item_id"`
	SiteID         string     `json:"site_id"`
	ItemName       string     `json:"item_name"`
	CurrentStock   int32      `json:"current_stock"`
	ReorderLevel   int32      `json:"reorder_level"`
	Level          string     `json:"level"`
	Status         string     `json:"status"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type transactionResponse struct {
	ID            string    `json:"id"`
	ItemID        string    `json:"item_id"`
	Type          string    `json:"type"`
	Quantity      int32     `json:"quantity"`
	PreviousStock int32     `json:"previous_stock"`
	NewStock      int32     `json:"new_stock"`
	PerformedBy   string    `json:"performed_by"`
	ReferenceType *string   `json:"reference_type,omitempty"`
	ReferenceID   *string   `json:"reference_id,omitempty"`
	Reason        *string   `json:"reason,omitempty"`
	CostPerUnit   *string   `json:"cost_per_unit,omitempty"`
	TotalCost     *string   `json:"total_cost,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func itemToResponse(item *models.Item) itemResponse {
	return itemResponse{
		ID:               item.ID,
		SiteID:           item.SiteID,
		ItemCode:         item.ItemCode,
		ItemName:         item.ItemName,
		Category:         item.Category,
		Department:       item.Department,
		Description:      item.Description,
		CurrentStock:     item.CurrentStock,
		ReservedQuantity: item.ReservedQuantity,
		AvailableStock:   item.CurrentStock - item.ReservedQuantity,
		ReorderLevel:     item.ReorderLevel,
		IsCritical:       item.IsCritical,
		MaxStockLevel:    item.MaxStockLevel,
		UnitOfMeasure:    item.UnitOfMeasure,
		UnitCost:         item.UnitCost,
		IsActive:         item.IsActive,
		Status:           item.Status,
		ConditionNotes:   item.ConditionNotes,
		LastRestockedAt:  item.LastRestockedAt,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}
}

func itemsToResponse(items []models.Item) []itemResponse {
	out := make([]itemResponse, len(items))
	for i := range items {
		out[i] = itemToResponse(&items[i])
	}
	return out
}

func reservationToResponse(res *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:                   res.ID,
		ItemID:               res.ItemID,
		TaskID:               res.TaskID,
		Quantity:             res.Quantity,
		Status:               res.Status,
		ReservedBy:           res.ReservedBy,
		ReceivedAt:           res.ReceivedAt,
		ConsumedAt:           res.ConsumedAt,
		ReleasedAt:           res.ReleasedAt,
		ReturnedQuantity:     res.ReturnedQuantity,
		IsDefective:          res.IsDefective,
		ConditionNotes:       res.ConditionNotes,
		ReplacementRequestID: res.ReplacementRequestID,
		CreatedAt:            res.CreatedAt,
	}
}

func requestToResponse(req *models.ItemRequest) requestResponse {
	return requestResponse{
		ID:                   req.ID,
		ItemID:               req.ItemID,
		RequestedBy:          req.RequestedBy,
		QuantityRequested:    req.QuantityRequested,
		QuantityApproved:     req.QuantityApproved,
		Purpose:              req.Purpose,
		TaskID:               req.TaskID,
		Status:               req.Status,
		DecidedBy:            req.DecidedBy,
		AdminNotes:           req.AdminNotes,
		IsDefective:          req.IsDefective,
		ParentRequestID:      req.ParentRequestID,
		ReplacementRequestID: req.ReplacementRequestID,
		ApprovedAt:           req.ApprovedAt,
		FulfilledAt:          req.FulfilledAt,
		ReceivedAt:           req.ReceivedAt,
		ReturnedAt:           req.ReturnedAt,
		ReturnedQuantity:     req.ReturnedQuantity,
		CreatedAt:            req.CreatedAt,
	}
}

func alertToResponse(alert *models.LowStockAlert) alertResponse {
	return alertResponse{
		ID:             alert.ID,
		ItemID:         alert.ItemID,
		SiteID:         alert.SiteID,
		ItemName:       alert.ItemName,
		CurrentStock:   alert.CurrentStock,
		ReorderLevel:   alert.ReorderLevel,
		Level:          alert.Level,
		Status:         alert.Status,
		AcknowledgedBy: alert.AcknowledgedBy,
		AcknowledgedAt: alert.AcknowledgedAt,
		ResolvedAt:     alert.ResolvedAt,
		CreatedAt:      alert.CreatedAt,
	}
}

func transactionToResponse(txn *models.StockTransaction) transactionResponse {
	return transactionResponse{
		ID:            txn.ID,
		ItemID:        txn.ItemID,
		Type:          txn.Type,
		Quantity:      txn.Quantity,
		PreviousStock: txn.PreviousStock,
		NewStock:      txn.NewStock,
		PerformedBy:   txn.PerformedBy,
		ReferenceType: txn.ReferenceType,
		ReferenceID:   txn.ReferenceID,
		Reason:        txn.Reason,
		CostPerUnit:   txn.CostPerUnit,
		TotalCost:     txn.TotalCost,
		CreatedAt:     txn.CreatedAt,
	}
}

// --- Item endpoints ---

type createItemRequest struct {
	SiteID        string  `json:"site_id"`
	ItemCode      string  `json:"item_code"`
	ItemName      string  `json:"item_name"`
	Category      string  `json:"category"`
	Department    string  `json:"department"`
	Description   *string `json:"description"`
	InitialStock  int32   `json:"initial_stock"`
	ReorderLevel  int32   `json:"reorder_level"`
	IsCritical    bool    `json:"is_critical"`
	MaxStockLevel int32   `json:"max_stock_level"`
	UnitOfMeasure string  `json:"unit_of_measure"`
	UnitCost      *string `json:"unit_cost"`
}

func (s *InventoryHTTPHandler) CreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := s.catalog.Create(c.Request.Context(), inventory.NewItem{
		SiteID:        req.SiteID,
		ItemCode:      req.ItemCode,
		ItemName:      req.ItemName,
		Category:      req.Category,
		Department:    req.Department,
		Description:   req.Description,
		InitialStock:  req.InitialStock,
		ReorderLevel:  req.ReorderLevel,
		IsCritical:    req.IsCritical,
		MaxStockLevel: req.MaxStockLevel,
		UnitOfMeasure: req.UnitOfMeasure,
		UnitCost:      req.UnitCost,
	}, actorFromContext(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	s.created(c, itemToResponse(item))
}

func (s *InventoryHTTPHandler) GetItem(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	cacheKey := ITEM_CACHE_PREFIX + id
	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var resp itemResponse
		if json.Unmarshal([]byte(cached), &resp) == nil {
			s.success(c, resp)
			return
		}
	}

	item, err := s.catalog.Get(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := itemToResponse(item)
	if body, err := json.Marshal(resp); err == nil {
		_ = s.redis.Set(ctx, cacheKey, body, CACHE_TTL_SHORT)
	}
	s.success(c, resp)
}

func (s *InventoryHTTPHandler) GetItemByCode(c *gin.Context) {
	item, err := s.catalog.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, itemToResponse(item))
}

func (s *InventoryHTTPHandler) ListItems(c *gin.Context) {
	includeInactive := false
	if v := c.Query("include_inactive"); v == "true" {
		includeInactive = true
	}

	items, err := s.catalog.List(c.Request.Context(), inventory.ItemFilter{
		SiteID:          c.Query("site_id"),
		Department:      c.Query("department"),
		Search:          c.Query("search"),
		IncludeInactive: includeInactive,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, itemsToResponse(items))
}

type updateItemRequest struct {
	ItemName       *string `json:"item_name"`
	Category       *string `json:"category"`
	Department     *string `json:"department"`
	Description    *string `json:"description"`
	ReorderLevel   *int32  `json:"reorder_level"`
	IsCritical     *bool   `json:"is_critical"`
	MaxStockLevel  *int32  `json:"max_stock_level"`
	UnitOfMeasure  *string `json:"unit_of_measure"`
	UnitCost       *string `json:"unit_cost"`
	IsActive       *bool   `json:"is_active"`
	Status         *string `json:"status"`
	ConditionNotes *string `json:"condition_notes"`
}

func (s *InventoryHTTPHandler) UpdateItem(c *gin.Context) {
	id := c.Param("id")

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := s.catalog.Update(c.Request.Context(), id, inventory.ItemUpdate{
		ItemName:       req.ItemName,
		Category:       req.Category,
		Department:     req.Department,
		Description:    req.Description,
		ReorderLevel:   req.ReorderLevel,
		IsCritical:     req.IsCritical,
		MaxStockLevel:  req.MaxStockLevel,
		UnitOfMeasure:  req.UnitOfMeasure,
		UnitCost:       req.UnitCost,
		IsActive:       req.IsActive,
		Status:         req.Status,
		ConditionNotes: req.ConditionNotes,
	}, actorFromContext(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), id)
	s.success(c, itemToResponse(item))
}

func (s *InventoryHTTPHandler) DeactivateItem(c *gin.Context) {
	id := c.Param("id")
	if err := s.catalog.Deactivate(c.Request.Context(), id, actorFromContext(c)); err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), id)
	s.success(c, gin.H{"id": id, "is_active": false})
}

func (s *InventoryHTTPHandler) SiteSummary(c *gin.Context) {
	siteID := c.Query("site_id")
	ctx := c.Request.Context()

	cacheKey := SUMMARY_CACHE_KEY + siteID
	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var summary inventory.SiteSummary
		if json.Unmarshal([]byte(cached), &summary) == nil {
			s.success(c, summary)
			return
		}
	}

	summary, err := s.catalog.Summary(ctx, siteID)
	if err != nil {
		s.fail(c, err)
		return
	}

	if body, err := json.Marshal(summary); err == nil {
		_ = s.redis.Set(ctx, cacheKey, body, CACHE_TTL_SHORT)
	}
	s.success(c, summary)
}

// --- Stock endpoints ---

type stockChangeRequest struct {
	Quantity    int32   `json:"quantity"`
	Reason      string  `json:"reason"`
	CostPerUnit *string `json:"cost_per_unit"`
}

func (s *InventoryHTTPHandler) ConsumeStock(c *gin.Context) {
	id := c.Param("id")

	var req stockChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := s.ledger.Consume(c.Request.Context(), id, req.Quantity, actorFromContext(c), nil, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), id)
	s.success(c, itemToResponse(item))
}

func (s *InventoryHTTPHandler) RestockItem(c *gin.Context) {
	id := c.Param("id")

	var req stockChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := s.ledger.Restock(c.Request.Context(), id, req.Quantity, actorFromContext(c), nil, req.Reason, req.CostPerUnit)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), id)
	s.success(c, itemToResponse(item))
}

type adjustStockRequest struct {
	TargetQuantity int32  `json:"target_quantity"`
	Reason         string `json:"reason"`
}

func (s *InventoryHTTPHandler) AdjustStock(c *gin.Context) {
	id := c.Param("id")

	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := s.ledger.Adjust(c.Request.Context(), id, req.TargetQuantity, actorFromContext(c), req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), id)
	s.success(c, itemToResponse(item))
}

func (s *InventoryHTTPHandler) ListTransactions(c *gin.Context) {
	txns, err := s.ledger.History(c.Request.Context(), inventory.TransactionFilter{
		ItemID: c.Query("item_id"),
		Type:   c.Query("type"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]transactionResponse, len(txns))
	for i := range txns {
		out[i] = transactionToResponse(&txns[i])
	}
	s.success(c, out)
}

// --- Reservation endpoints ---

type createReservationRequest struct {
	ItemID   string `json:"item_id"`
	TaskID   string `json:"task_id"`
	Quantity int32  `json:"quantity"`
}

func (s *InventoryHTTPHandler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.reservations.Create(c.Request.Context(), req.ItemID, req.TaskID, req.Quantity, actorFromContext(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), req.ItemID)
	s.created(c, reservationToResponse(res))
}

func (s *InventoryHTTPHandler) GetReservation(c *gin.Context) {
	res, err := s.reservations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, reservationToResponse(res))
}

func (s *InventoryHTTPHandler) ListReservations(c *gin.Context) {
	out, err := s.reservations.List(c.Request.Context(), inventory.ReservationFilter{
		ItemID: c.Query("item_id"),
		TaskID: c.Query("task_id"),
		Status: c.Query("status"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := make([]reservationResponse, len(out))
	for i := range out {
		resp[i] = reservationToResponse(&out[i])
	}
	s.success(c, resp)
}

func (s *InventoryHTTPHandler) ReceiveReservation(c *gin.Context) {
	res, err := s.reservations.MarkReceived(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), res.ItemID)
	s.success(c, reservationToResponse(res))
}

func (s *InventoryHTTPHandler) ConsumeReservation(c *gin.Context) {
	res, err := s.reservations.MarkConsumed(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, reservationToResponse(res))
}

type releaseReservationRequest struct {
	Condition string `json:"condition"`
	Quantity  int32  `json:"quantity"`
}

func (s *InventoryHTTPHandler) ReleaseReservation(c *gin.Context) {
	var req releaseReservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	res, err := s.reservations.Release(c.Request.Context(), c.Param("id"), actorFromContext(c), req.Condition, req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), res.ItemID)
	s.success(c, reservationToResponse(res))
}

type replacementRequest struct {
	Reason string `json:"reason"`
}

func (s *InventoryHTTPHandler) RequestReservationReplacement(c *gin.Context) {
	var req replacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	replacement, err := s.reservations.RequestReplacement(c.Request.Context(), c.Param("id"), actorFromContext(c), req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), replacement.ItemID)
	s.created(c, requestToResponse(replacement))
}

// --- Request endpoints ---

type submitRequestRequest struct {
	ItemID   string  `json:"item_id"`
	Quantity int32   `json:"quantity"`
	Purpose  string  `json:"purpose"`
	TaskID   *string `json:"task_id"`
}

func (s *InventoryHTTPHandler) SubmitRequest(c *gin.Context) {
	var req submitRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	out, err := s.requests.Submit(c.Request.Context(), req.ItemID, actorFromContext(c), req.Quantity, req.Purpose, req.TaskID)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.created(c, requestToResponse(out))
}

func (s *InventoryHTTPHandler) GetRequest(c *gin.Context) {
	out, err := s.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, requestToResponse(out))
}

func (s *InventoryHTTPHandler) ListRequests(c *gin.Context) {
	out, err := s.requests.List(c.Request.Context(), inventory.RequestFilter{
		ItemID:      c.Query("item_id"),
		Status:      c.Query("status"),
		RequestedBy: c.Query("requested_by"),
		TaskID:      c.Query("task_id"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := make([]requestResponse, len(out))
	for i := range out {
		resp[i] = requestToResponse(&out[i])
	}
	s.success(c, resp)
}

type approveRequestRequest struct {
	QuantityApproved int32  `json:"quantity_approved"`
	Notes            string `json:"notes"`
}

func (s *InventoryHTTPHandler) ApproveRequest(c *gin.Context) {
	var req approveRequestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	out, err := s.requests.Approve(c.Request.Context(), c.Param("id"), actorFromContext(c), req.QuantityApproved, req.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), out.ItemID)
	s.success(c, requestToResponse(out))
}

type denyRequestRequest struct {
	Reason string `json:"reason"`
}

func (s *InventoryHTTPHandler) DenyRequest(c *gin.Context) {
	var req denyRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	out, err := s.requests.Deny(c.Request.Context(), c.Param("id"), actorFromContext(c), req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, requestToResponse(out))
}

func (s *InventoryHTTPHandler) FulfillRequest(c *gin.Context) {
	out, err := s.requests.Fulfill(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), out.ItemID)
	s.success(c, requestToResponse(out))
}

type receiveRequestRequest struct {
	Condition string `json:"condition"`
	Notes     string `json:"notes"`
}

func (s *InventoryHTTPHandler) ReceiveRequest(c *gin.Context) {
	var req receiveRequestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	out, err := s.requests.MarkReceived(c.Request.Context(), c.Param("id"), actorFromContext(c), req.Condition, req.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), out.ItemID)
	s.success(c, requestToResponse(out))
}

type returnRequestRequest struct {
	Quantity int32 `json:"quantity"`
}

func (s *InventoryHTTPHandler) ReturnRequest(c *gin.Context) {
	var req returnRequestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	out, err := s.requests.Return(c.Request.Context(), c.Param("id"), actorFromContext(c), req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateItemCaches(c.Request.Context(), out.ItemID)
	s.success(c, requestToResponse(out))
}

// --- Alert endpoints ---

func (s *InventoryHTTPHandler) ListAlerts(c *gin.Context) {
	out, err := s.alerts.List(c.Request.Context(), inventory.AlertFilter{
		SiteID: c.Query("site_id"),
		Status: c.Query("status"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := make([]alertResponse, len(out))
	for i := range out {
		resp[i] = alertToResponse(&out[i])
	}
	s.success(c, resp)
}

func (s *InventoryHTTPHandler) AcknowledgeAlert(c *gin.Context) {
	alert, err := s.alerts.Acknowledge(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	_ = s.redis.Del(c.Request.Context(), ALERTS_CACHE_KEY)
	s.success(c, alertToResponse(alert))
}
