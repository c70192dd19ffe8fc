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

// StockRecord is the ledger leaf: one row per (variant, warehouse) pair.
// Available and reserved quantities are mutated only through raw SQL
// increments while the row is held under a FOR UPDATE lock, and must never
// go negative.
type StockRecord struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null;uniqueIndex:idx_stock_variant_wh,priority:1" json:"business_id"`
	VariantId         int             `gorm:"not null;uniqueIndex:idx_stock_variant_wh,priority:2" json:"variant_id"`
	WarehouseId       int             `gorm:"not null;uniqueIndex:idx_stock_variant_wh,priority:3" json:"warehouse_id"`
	QuantityAvailable decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity_available"`
	QuantityReserved  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity_reserved"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FirstOrCreateStockRecord finds or creates the ledger row for the pair and
// returns it locked FOR UPDATE for the remainder of tx.
func FirstOrCreateStockRecord(tx *gorm.DB, businessId string, warehouseId int, variantId int) (*StockRecord, bool, error) {
	isNew := false
	stockRecord := StockRecord{
		BusinessId:  businessId,
		VariantId:   variantId,
		WarehouseId: warehouseId,
	}
	// FirstOrCreate will try to find a record matching the conditions, and if it doesn't find one, it will create a new record
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND variant_id = ? AND warehouse_id = ?",
			businessId, variantId, warehouseId).
		FirstOrCreate(&stockRecord)
	if result.Error != nil {
		tx.Rollback()
		return nil, isNew, result.Error
	}
	if result.RowsAffected == 1 {
		isNew = true
	}

	return &stockRecord, isNew, nil
}

func addStockRecordAvailable(tx *gorm.DB, recordId int, quantity decimal.Decimal) error {
	if err := tx.Exec("UPDATE stock_records SET quantity_available = quantity_available + ? WHERE id = ?",
		quantity, recordId).Error; err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

// moveAvailableToReserved debits available and credits reserved atomically.
// The caller must hold the row lock and have verified sufficiency; the WHERE
// guard is the last line of defense against a negative balance.
func moveAvailableToReserved(tx *gorm.DB, recordId int, quantity decimal.Decimal) error {
	result := tx.Exec("UPDATE stock_records SET quantity_available = quantity_available - ?, quantity_reserved = quantity_reserved + ? WHERE id = ? AND quantity_available >= ?",
		quantity, quantity, recordId, quantity)
	if result.Error != nil {
		tx.Rollback()
		return result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return errors.New("stock record update would go negative")
	}
	return nil
}

// consumeReserved removes quantity from the reservation bucket (transfer
// received at destination, or sale committed).
func consumeReserved(tx *gorm.DB, recordId int, quantity decimal.Decimal) error {
	result := tx.Exec("UPDATE stock_records SET quantity_reserved = quantity_reserved - ? WHERE id = ? AND quantity_reserved >= ?",
		quantity, recordId, quantity)
	if result.Error != nil {
		tx.Rollback()
		return result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return errors.New("stock record update would go negative")
	}
	return nil
}

// releaseReserved moves quantity back from reserved to available (cancelled
// transfer or released sale reservation).
func releaseReserved(tx *gorm.DB, recordId int, quantity decimal.Decimal) error {
	result := tx.Exec("UPDATE stock_records SET quantity_reserved = quantity_reserved - ?, quantity_available = quantity_available + ? WHERE id = ? AND quantity_reserved >= ?",
		quantity, quantity, recordId, quantity)
	if result.Error != nil {
		tx.Rollback()
		return result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return errors.New("stock record update would go negative")
	}
	return nil
}

type NewStockIntake struct {
	VariantId   int             `json:"variant_id" binding:"required"`
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	Reference   string          `json:"reference"`
}

// ReceiveStock credits purchased or returned goods into a warehouse.
func ReceiveStock(ctx context.Context, input *NewStockIntake) (*StockRecord, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if !input.Quantity.IsPositive() {
		return nil, utils.NewValidationError("quantity must be positive")
	}
	if err := validateWarehouseActive(ctx, businessId, input.WarehouseId); err != nil {
		return nil, err
	}
	if err := validateVariantActive(ctx, businessId, input.VariantId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	txCtx := tx.WithContext(ctx)

	stockRecord, _, err := FirstOrCreateStockRecord(txCtx, businessId, input.WarehouseId, input.VariantId)
	if err != nil {
		return nil, err
	}
	if err := addStockRecordAvailable(txCtx, stockRecord.ID, input.Quantity); err != nil {
		return nil, err
	}

	if err := PublishStockEvent(ctx, txCtx, businessId, time.Now(), stockRecord.ID,
		StockReferenceTypeStockIntake, input, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// re-read outside the tx for the response
	return utils.FetchModel[StockRecord](ctx, businessId, stockRecord.ID)
}

// GetStockRecordsForVariant lists the raw ledger rows; aggregation is built on
// top of this by the stock aggregate.
func GetStockRecordsForVariant(ctx context.Context, variantId int) ([]*StockRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*StockRecord
	err := db.WithContext(ctx).
		Where("business_id = ? AND variant_id = ?", businessId, variantId).
		Order("warehouse_id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// PruneZeroStockRecords deletes ledger rows where both quantities have drained
// to zero. Run from the ops tool, never from request paths.
func PruneZeroStockRecords(db *gorm.DB) (int64, error) {
	result := db.Where("quantity_available = 0 AND quantity_reserved = 0").Delete(&StockRecord{})
	return result.RowsAffected, result.Error
}
