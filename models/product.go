package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/shopspring/decimal"
)

// Product carries the stock thresholds its variants are classified against.
// MinimumStock/MaximumStock of zero means the threshold is not configured.
type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	Name         string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku          string          `gorm:"size:100" json:"sku"`
	Description  string          `gorm:"type:text" json:"description"`
	MinimumStock decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"minimum_stock"`
	MaximumStock decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"maximum_stock"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Variants []ProductVariant `gorm:"foreignKey:ProductId" json:"variants,omitempty"`
}

type NewProduct struct {
	Name         string          `json:"name" binding:"required"`
	Sku          string          `json:"sku"`
	Description  string          `json:"description"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	MaximumStock decimal.Decimal `json:"maximum_stock"`
}

func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewValidationError("product name is required")
	}
	if input.MinimumStock.IsNegative() || input.MaximumStock.IsNegative() {
		return utils.NewValidationError("stock thresholds cannot be negative")
	}
	if input.MaximumStock.IsPositive() && input.MaximumStock.LessThan(input.MinimumStock) {
		return utils.NewValidationError("maximum stock cannot be below minimum stock")
	}
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, id); err != nil {
		return utils.NewValidationError("%s", err.Error())
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	product := Product{
		BusinessId:   businessId,
		Name:         input.Name,
		Sku:          input.Sku,
		Description:  input.Description,
		MinimumStock: input.MinimumStock,
		MaximumStock: input.MaximumStock,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":         input.Name,
		"Sku":          input.Sku,
		"Description":  input.Description,
		"MinimumStock": input.MinimumStock,
		"MaximumStock": input.MaximumStock,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Product](id); err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id)
}

func ListProduct(ctx context.Context, name *string) ([]*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Product

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%").Limit(config.SearchLimit)
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return ToggleActiveModel[Product](ctx, businessId, id, isActive)
}
