package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transfer moves stock between two warehouses. The quantity is reserved at the
// source on creation and stays reserved until the transfer is received at the
// destination or cancelled.
type Transfer struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	BusinessId             string          `gorm:"index;not null" json:"business_id"`
	TransferNumber         string          `gorm:"size:20;index" json:"transfer_number"`
	VariantId              int             `gorm:"index;not null" json:"variant_id"`
	SourceWarehouseId      int             `gorm:"not null" json:"source_warehouse_id"`
	DestinationWarehouseId int             `gorm:"not null" json:"destination_warehouse_id"`
	Quantity               decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Status                 TransferStatus  `gorm:"type:enum('pending','in_transit','completed','cancelled');not null;default:'pending';index" json:"status"`
	Notes                  string          `gorm:"type:text" json:"notes"`
	ApprovedAt             *time.Time      `json:"approved_at"`
	ReceivedAt             *time.Time      `json:"received_at"`
	CancelledAt            *time.Time      `json:"cancelled_at"`
	CreatedAt              time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// transferStateMachine lists the legal forward edges. Anything else is either
// an idempotent no-op (already in the target state) or an invalid transition.
var transferStateMachine = map[TransferStatus][]TransferStatus{
	TransferStatusPending:   {TransferStatusInTransit, TransferStatusCancelled},
	TransferStatusInTransit: {TransferStatusCompleted, TransferStatusCancelled},
	TransferStatusCompleted: {},
	TransferStatusCancelled: {},
}

// CanTransition reports whether from→to is legal, and whether it is a no-op
// because the transfer already sits in the target state.
func CanTransition(from TransferStatus, to TransferStatus) (allowed bool, noop bool) {
	if from == to {
		return true, true
	}
	for _, next := range transferStateMachine[from] {
		if next == to {
			return true, false
		}
	}
	return false, false
}

type NewTransfer struct {
	VariantId              int             `json:"variant_id" binding:"required"`
	SourceWarehouseId      int             `json:"source_warehouse_id" binding:"required"`
	DestinationWarehouseId int             `json:"destination_warehouse_id" binding:"required"`
	Quantity               decimal.Decimal `json:"quantity" binding:"required"`
	Notes                  string          `json:"notes" binding:"required"`
}

func (input *NewTransfer) validate(ctx context.Context, businessId string) error {
	if !input.Quantity.IsPositive() {
		return utils.NewValidationError("quantity must be positive")
	}
	if strings.TrimSpace(input.Notes) == "" {
		return utils.NewValidationError("notes are required")
	}
	if input.SourceWarehouseId == input.DestinationWarehouseId {
		return utils.NewValidationError("source and destination warehouses must differ")
	}
	if err := validateWarehouseActive(ctx, businessId, input.SourceWarehouseId); err != nil {
		return err
	}
	if err := validateWarehouseActive(ctx, businessId, input.DestinationWarehouseId); err != nil {
		return err
	}
	return validateVariantActive(ctx, businessId, input.VariantId)
}

// CreateTransfer reserves the quantity at the source and opens the transfer in
// pending state.
func CreateTransfer(ctx context.Context, input *NewTransfer) (*Transfer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var transferId int
	err := utils.WithConflictRetry(config.GetLogger(), 3, func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
			}
		}()
		txCtx := tx.WithContext(ctx)

		sourceRecord, isNew, err := FirstOrCreateStockRecord(txCtx, businessId, input.SourceWarehouseId, input.VariantId)
		if err != nil {
			return err
		}
		if isNew || sourceRecord.QuantityAvailable.LessThan(input.Quantity) {
			tx.Rollback()
			return &utils.InsufficientStockError{
				WarehouseId: input.SourceWarehouseId,
				Requested:   input.Quantity,
				Available:   sourceRecord.QuantityAvailable,
			}
		}
		if err := moveAvailableToReserved(txCtx, sourceRecord.ID, input.Quantity); err != nil {
			return err
		}

		transfer := Transfer{
			BusinessId:             businessId,
			VariantId:              input.VariantId,
			SourceWarehouseId:      input.SourceWarehouseId,
			DestinationWarehouseId: input.DestinationWarehouseId,
			Quantity:               input.Quantity,
			Status:                 TransferStatusPending,
			Notes:                  input.Notes,
		}
		if err := txCtx.Create(&transfer).Error; err != nil {
			tx.Rollback()
			return err
		}
		// the number embeds the row id, so it is assigned after the insert
		transfer.TransferNumber = fmt.Sprintf("TRF-%06d", transfer.ID)
		if err := txCtx.Model(&transfer).UpdateColumn("transfer_number", transfer.TransferNumber).Error; err != nil {
			tx.Rollback()
			return err
		}
		transferId = transfer.ID

		if err := createTransferTransition(txCtx, &transfer, TransferActionCreate, "", TransferStatusPending, input.Notes); err != nil {
			tx.Rollback()
			return err
		}

		if err := PublishStockEvent(ctx, txCtx, businessId, time.Now(), transfer.ID,
			StockReferenceTypeTransfer, transfer, nil, PubSubMessageActionCreate); err != nil {
			tx.Rollback()
			return err
		}

		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[Transfer](ctx, businessId, transferId)
}

func lockTransfer(tx *gorm.DB, businessId string, id int) (*Transfer, error) {
	var transfer Transfer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&transfer).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

func checkTransition(tx *gorm.DB, transfer *Transfer, target TransferStatus) (noop bool, err error) {
	allowed, noop := CanTransition(transfer.Status, target)
	if !allowed {
		tx.Rollback()
		return false, &utils.InvalidStateTransitionError{
			From: string(transfer.Status),
			To:   string(target),
		}
	}
	if noop {
		// already there; commit the empty tx so the lock is released cleanly
		if err := tx.Commit().Error; err != nil {
			return true, err
		}
	}
	return noop, nil
}

// ApproveTransfer moves a pending transfer into transit. Approving a transfer
// that is already in transit is a no-op.
func ApproveTransfer(ctx context.Context, id int, notes string) (*Transfer, error) {
	return runTransferTransition(ctx, id, TransferStatusInTransit, TransferActionApprove, notes)
}

// ReceiveTransfer completes the transfer: the reserved quantity leaves the
// source and lands as available at the destination. Receiving a completed
// transfer is a no-op.
func ReceiveTransfer(ctx context.Context, id int, notes string) (*Transfer, error) {
	return runTransferTransition(ctx, id, TransferStatusCompleted, TransferActionReceive, notes)
}

// CancelTransfer aborts a pending or in-transit transfer and releases the
// source reservation. Cancelling a cancelled transfer is a no-op.
func CancelTransfer(ctx context.Context, id int, notes string) (*Transfer, error) {
	return runTransferTransition(ctx, id, TransferStatusCancelled, TransferActionCancel, notes)
}

func runTransferTransition(ctx context.Context, id int, target TransferStatus, action TransferAction, notes string) (*Transfer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()

	err := utils.WithConflictRetry(config.GetLogger(), 3, func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
			}
		}()
		txCtx := tx.WithContext(ctx)

		transfer, err := lockTransfer(txCtx, businessId, id)
		if err != nil {
			return err
		}
		noop, err := checkTransition(tx, transfer, target)
		if err != nil || noop {
			return err
		}

		fromStatus := transfer.Status
		now := time.Now()

		switch target {
		case TransferStatusCompleted:
			if err := moveTransferStock(txCtx, businessId, transfer); err != nil {
				return err
			}
			transfer.ReceivedAt = &now
		case TransferStatusCancelled:
			if err := releaseTransferReservation(txCtx, businessId, transfer); err != nil {
				return err
			}
			transfer.CancelledAt = &now
		case TransferStatusInTransit:
			transfer.ApprovedAt = &now
		}

		transfer.Status = target
		if err := txCtx.Save(transfer).Error; err != nil {
			tx.Rollback()
			return err
		}

		if err := createTransferTransition(txCtx, transfer, action, fromStatus, target, notes); err != nil {
			tx.Rollback()
			return err
		}

		if err := PublishStockEvent(ctx, txCtx, businessId, now, transfer.ID,
			StockReferenceTypeTransfer, transfer, nil, PubSubMessageActionUpdate); err != nil {
			tx.Rollback()
			return err
		}

		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[Transfer](ctx, businessId, id)
}

// moveTransferStock burns the source reservation and credits the destination.
// Stock rows are locked in ascending warehouse id order so two transfers
// crossing in opposite directions cannot deadlock on each other.
func moveTransferStock(tx *gorm.DB, businessId string, transfer *Transfer) error {
	first, second := transfer.SourceWarehouseId, transfer.DestinationWarehouseId
	if second < first {
		first, second = second, first
	}

	records := map[int]*StockRecord{}
	for _, warehouseId := range []int{first, second} {
		record, _, err := FirstOrCreateStockRecord(tx, businessId, warehouseId, transfer.VariantId)
		if err != nil {
			return err
		}
		records[warehouseId] = record
	}

	sourceRecord := records[transfer.SourceWarehouseId]
	if sourceRecord.QuantityReserved.LessThan(transfer.Quantity) {
		tx.Rollback()
		return &utils.InsufficientStockError{
			WarehouseId: transfer.SourceWarehouseId,
			Requested:   transfer.Quantity,
			Available:   sourceRecord.QuantityReserved,
		}
	}
	if err := consumeReserved(tx, sourceRecord.ID, transfer.Quantity); err != nil {
		return err
	}
	return addStockRecordAvailable(tx, records[transfer.DestinationWarehouseId].ID, transfer.Quantity)
}

func releaseTransferReservation(tx *gorm.DB, businessId string, transfer *Transfer) error {
	sourceRecord, isNew, err := FirstOrCreateStockRecord(tx, businessId, transfer.SourceWarehouseId, transfer.VariantId)
	if err != nil {
		return err
	}
	if isNew || sourceRecord.QuantityReserved.LessThan(transfer.Quantity) {
		tx.Rollback()
		return &utils.InsufficientStockError{
			WarehouseId: transfer.SourceWarehouseId,
			Requested:   transfer.Quantity,
			Available:   sourceRecord.QuantityReserved,
		}
	}
	return releaseReserved(tx, sourceRecord.ID, transfer.Quantity)
}

type UpdateTransferInput struct {
	Quantity *decimal.Decimal `json:"quantity"`
	Notes    *string          `json:"notes"`
}

// UpdateTransfer edits a transfer in place. Notes can always change; the
// quantity of a pending transfer can only be adjusted when strict immutability
// is switched off, and the source reservation follows the delta.
func UpdateTransfer(ctx context.Context, id int, input *UpdateTransferInput) (*Transfer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()

	err := utils.WithConflictRetry(config.GetLogger(), 3, func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
			}
		}()
		txCtx := tx.WithContext(ctx)

		transfer, err := lockTransfer(txCtx, businessId, id)
		if err != nil {
			return err
		}

		if input.Quantity != nil && !input.Quantity.Equal(transfer.Quantity) {
			if config.StrictTransferImmutability() {
				tx.Rollback()
				return utils.NewValidationError("transfer quantity cannot be changed")
			}
			if transfer.Status != TransferStatusPending {
				tx.Rollback()
				return &utils.InvalidStateTransitionError{
					From: string(transfer.Status),
					To:   string(transfer.Status),
				}
			}
			if !input.Quantity.IsPositive() {
				tx.Rollback()
				return utils.NewValidationError("quantity must be positive")
			}
			if err := adjustTransferReservation(txCtx, businessId, transfer, *input.Quantity); err != nil {
				return err
			}
			transfer.Quantity = *input.Quantity
		}
		if input.Notes != nil {
			transfer.Notes = *input.Notes
		}

		if err := txCtx.Save(transfer).Error; err != nil {
			tx.Rollback()
			return err
		}

		if err := PublishStockEvent(ctx, txCtx, businessId, time.Now(), transfer.ID,
			StockReferenceTypeTransfer, transfer, nil, PubSubMessageActionUpdate); err != nil {
			tx.Rollback()
			return err
		}

		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[Transfer](ctx, businessId, id)
}

func adjustTransferReservation(tx *gorm.DB, businessId string, transfer *Transfer, newQuantity decimal.Decimal) error {
	sourceRecord, _, err := FirstOrCreateStockRecord(tx, businessId, transfer.SourceWarehouseId, transfer.VariantId)
	if err != nil {
		return err
	}

	delta := newQuantity.Sub(transfer.Quantity)
	if delta.IsPositive() {
		if sourceRecord.QuantityAvailable.LessThan(delta) {
			tx.Rollback()
			return &utils.InsufficientStockError{
				WarehouseId: transfer.SourceWarehouseId,
				Requested:   delta,
				Available:   sourceRecord.QuantityAvailable,
			}
		}
		return moveAvailableToReserved(tx, sourceRecord.ID, delta)
	}
	return releaseReserved(tx, sourceRecord.ID, delta.Neg())
}

// GetTransfer fetches one transfer scoped to the caller's business.
func GetTransfer(ctx context.Context, id int) (*Transfer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Transfer](ctx, businessId, id)
}

type TransferFilter struct {
	Status      *TransferStatus
	VariantId   *int
	WarehouseId *int
}

// PaginateTransfer pages through transfers newest first with a composite
// created_at cursor.
func PaginateTransfer(ctx context.Context, limit int, after *string, filter *TransferFilter) ([]Edge[Transfer], *PageInfo, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Transfer{}).Where("business_id = ?", businessId)
	if filter != nil {
		if filter.Status != nil {
			dbCtx.Where("status = ?", *filter.Status)
		}
		if filter.VariantId != nil {
			dbCtx.Where("variant_id = ?", *filter.VariantId)
		}
		if filter.WarehouseId != nil {
			dbCtx.Where("source_warehouse_id = ? OR destination_warehouse_id = ?",
				*filter.WarehouseId, *filter.WarehouseId)
		}
	}

	return FetchPageCompositeCursor[Transfer](dbCtx, limit, after, "created_at", "<")
}
