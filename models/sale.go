package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SaleStockInput struct {
	VariantId   int             `json:"variant_id" binding:"required"`
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	Reference   string          `json:"reference"`
}

func validateSaleInput(ctx context.Context, businessId string, input *SaleStockInput) error {
	if !input.Quantity.IsPositive() {
		return utils.NewValidationError("quantity must be positive")
	}

	warehouse, err := GetWarehouse(ctx, input.WarehouseId)
	if err != nil {
		return err
	}
	if warehouse.IsActive == nil || !*warehouse.IsActive {
		return utils.NewValidationError("warehouse %d is not active", input.WarehouseId)
	}
	if warehouse.IsPointOfSale == nil || !*warehouse.IsPointOfSale {
		return utils.NewValidationError("warehouse %d is not a point of sale", input.WarehouseId)
	}

	return validateVariantActive(ctx, businessId, input.VariantId)
}

func lockStockRecordForSale(tx *gorm.DB, businessId string, input *SaleStockInput) (*StockRecord, error) {
	var stockRecord StockRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND variant_id = ? AND warehouse_id = ?",
			businessId, input.VariantId, input.WarehouseId).
		First(&stockRecord).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &stockRecord, nil
}

// ReserveForSale moves quantity from available into reserved while an order is
// being prepared. Oversell is rejected unless the business runs with
// ALLOW_SALE_WITHOUT_STOCK, in which case available is allowed to go negative
// through a plain debit without the sufficiency guard.
func ReserveForSale(ctx context.Context, input *SaleStockInput) (*StockRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := validateSaleInput(ctx, businessId, input); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var recordId int
	err := utils.WithConflictRetry(config.GetLogger(), 3, func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
			}
		}()
		txCtx := tx.WithContext(ctx)

		stockRecord, isNew, err := FirstOrCreateStockRecord(txCtx, businessId, input.WarehouseId, input.VariantId)
		if err != nil {
			return err
		}
		recordId = stockRecord.ID

		if isNew || stockRecord.QuantityAvailable.LessThan(input.Quantity) {
			if !config.AllowSaleWithoutStock() {
				tx.Rollback()
				return &utils.InsufficientStockError{
					WarehouseId: input.WarehouseId,
					Requested:   input.Quantity,
					Available:   stockRecord.QuantityAvailable,
				}
			}
			// negative available is tolerated under the flag
			if err := tx.Exec("UPDATE stock_records SET quantity_available = quantity_available - ?, quantity_reserved = quantity_reserved + ? WHERE id = ?",
				input.Quantity, input.Quantity, stockRecord.ID).Error; err != nil {
				tx.Rollback()
				return err
			}
		} else {
			if err := moveAvailableToReserved(txCtx, stockRecord.ID, input.Quantity); err != nil {
				return err
			}
		}

		if err := PublishStockEvent(ctx, txCtx, businessId, time.Now(), stockRecord.ID,
			StockReferenceTypeSale, input, nil, PubSubMessageActionCreate); err != nil {
			tx.Rollback()
			return err
		}

		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[StockRecord](ctx, businessId, recordId)
}

// ReleaseReservation hands the quantity back to available when the order is
// abandoned.
func ReleaseReservation(ctx context.Context, input *SaleStockInput) (*StockRecord, error) {
	return settleReservation(ctx, input, false)
}

// CommitSale burns the reserved quantity once the sale is finalized.
func CommitSale(ctx context.Context, input *SaleStockInput) (*StockRecord, error) {
	return settleReservation(ctx, input, true)
}

func settleReservation(ctx context.Context, input *SaleStockInput, consume bool) (*StockRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !input.Quantity.IsPositive() {
		return nil, utils.NewValidationError("quantity must be positive")
	}

	db := config.GetDB()

	var recordId int
	err := utils.WithConflictRetry(config.GetLogger(), 3, func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
			}
		}()
		txCtx := tx.WithContext(ctx)

		stockRecord, err := lockStockRecordForSale(txCtx, businessId, input)
		if err != nil {
			return err
		}
		recordId = stockRecord.ID

		if stockRecord.QuantityReserved.LessThan(input.Quantity) {
			tx.Rollback()
			return &utils.InsufficientStockError{
				WarehouseId: input.WarehouseId,
				Requested:   input.Quantity,
				Available:   stockRecord.QuantityReserved,
			}
		}

		if consume {
			if err := consumeReserved(txCtx, stockRecord.ID, input.Quantity); err != nil {
				return err
			}
		} else {
			if err := releaseReserved(txCtx, stockRecord.ID, input.Quantity); err != nil {
				return err
			}
		}

		if err := PublishStockEvent(ctx, txCtx, businessId, time.Now(), stockRecord.ID,
			StockReferenceTypeSale, input, stockRecord, PubSubMessageActionUpdate); err != nil {
			tx.Rollback()
			return err
		}

		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[StockRecord](ctx, businessId, recordId)
}
