package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"gorm.io/gorm/clause"
)

// Warehouse is a physical location (bodega) holding stock. Warehouses are never
// hard-deleted; decommissioning is done by deactivation, and only once the
// location holds no stock.
type Warehouse struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	Code          string    `gorm:"size:20;not null" json:"code" binding:"required"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone         string    `gorm:"size:20" json:"phone"`
	Address       string    `gorm:"type:text" json:"address"`
	City          string    `gorm:"size:100"  json:"city"`
	IsPointOfSale *bool     `gorm:"not null;default:false" json:"is_point_of_sale"`
	IsActive      *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	City          string `json:"city"`
	IsPointOfSale bool   `json:"is_point_of_sale"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewWarehouse) validate(ctx context.Context, businessId string, id int) error {
	if strings.TrimSpace(input.Code) == "" {
		return utils.NewValidationError("warehouse code is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewValidationError("warehouse name is required")
	}
	// code + name must be unique per business
	if err := utils.ValidateUnique[Warehouse](ctx, businessId, "code", input.Code, id); err != nil {
		return utils.NewValidationError("%s", err.Error())
	}
	if err := utils.ValidateUnique[Warehouse](ctx, businessId, "name", input.Name, id); err != nil {
		return utils.NewValidationError("%s", err.Error())
	}
	return nil
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	warehouse := Warehouse{
		BusinessId:    businessId,
		Code:          input.Code,
		Name:          input.Name,
		Phone:         input.Phone,
		Address:       input.Address,
		City:          input.City,
		IsPointOfSale: &input.IsPointOfSale,
		IsActive:      utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&warehouse).Error
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func UpdateWarehouse(ctx context.Context, id int, input *NewWarehouse) (*Warehouse, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	warehouse, err := utils.FetchModel[Warehouse](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&warehouse).Updates(map[string]interface{}{
		"Code":          input.Code,
		"Name":          input.Name,
		"Phone":         input.Phone,
		"Address":       input.Address,
		"City":          input.City,
		"IsPointOfSale": input.IsPointOfSale,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Warehouse](id); err != nil {
		return nil, err
	}
	return warehouse, nil
}

func GetWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	return GetResource[Warehouse](ctx, id)
}

func ListWarehouse(ctx context.Context, name *string) ([]*Warehouse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Warehouse

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%").Limit(config.SearchLimit)
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ToggleActiveWarehouse deactivates or reactivates a warehouse. Deactivation is
// rejected while any stock record at the location still holds a nonzero
// available or reserved quantity; the check and the flag update run in one
// transaction with the stock rows locked, so an intake cannot land in between.
func ToggleActiveWarehouse(ctx context.Context, id int, isActive bool) (*Warehouse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	txCtx := tx.WithContext(ctx)

	var warehouse Warehouse
	if err := txCtx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&warehouse, id).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	if !isActive {
		var count int64
		if err := txCtx.Model(&StockRecord{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND warehouse_id = ?", businessId, id).
			Where("quantity_available <> 0 OR quantity_reserved <> 0").
			Count(&count).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if count > 0 {
			tx.Rollback()
			return nil, utils.NewValidationError("warehouse still holds stock; move or prune it before deactivating")
		}
	}

	if err := txCtx.Model(&warehouse).UpdateColumn("IsActive", isActive).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	warehouse.IsActive = &isActive

	if err := utils.RemoveRedisItem[Warehouse](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Warehouse](businessId); err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// validateWarehouseActive is the shared guard for ledger mutations.
// (may return RecordNotFound)
func validateWarehouseActive(ctx context.Context, businessId string, id int) error {
	warehouse, err := utils.FetchModel[Warehouse](ctx, businessId, id)
	if err != nil {
		return err
	}
	if !utils.DereferencePtr(warehouse.IsActive) {
		return utils.NewValidationError("warehouse %d is inactive", id)
	}
	return nil
}
