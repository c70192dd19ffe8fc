package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
)

// ProductVariant is the sellable unit stock is tracked for. Every stock record
// and transfer references a variant, never the parent product directly.
type ProductVariant struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	ProductId  int       `gorm:"index;not null" json:"product_id" binding:"required"`
	Sku        string    `gorm:"size:100;not null" json:"sku" binding:"required"`
	Color      string    `gorm:"size:50" json:"color"`
	Size       string    `gorm:"size:50" json:"size"`
	Material   string    `gorm:"size:50" json:"material"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductVariant struct {
	ProductId int    `json:"product_id" binding:"required"`
	Sku       string `json:"sku" binding:"required"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Material  string `json:"material"`
}

func (input *NewProductVariant) validate(ctx context.Context, businessId string, id int) error {
	if strings.TrimSpace(input.Sku) == "" {
		return utils.NewValidationError("sku is required")
	}
	if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
		return utils.NewValidationError("product not found")
	}
	if err := utils.ValidateUnique[ProductVariant](ctx, businessId, "sku", input.Sku, id); err != nil {
		return utils.NewValidationError("%s", err.Error())
	}
	return nil
}

func CreateProductVariant(ctx context.Context, input *NewProductVariant) (*ProductVariant, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	variant := ProductVariant{
		BusinessId: businessId,
		ProductId:  input.ProductId,
		Sku:        input.Sku,
		Color:      input.Color,
		Size:       input.Size,
		Material:   input.Material,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func GetProductVariant(ctx context.Context, id int) (*ProductVariant, error) {
	return GetResource[ProductVariant](ctx, id)
}

func ListProductVariant(ctx context.Context, productId *int) ([]*ProductVariant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*ProductVariant

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	err := dbCtx.Order("sku").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// validateVariantActive is the shared guard for ledger mutations.
// (may return RecordNotFound)
func validateVariantActive(ctx context.Context, businessId string, id int) error {
	variant, err := utils.FetchModel[ProductVariant](ctx, businessId, id)
	if err != nil {
		return err
	}
	if !utils.DereferencePtr(variant.IsActive) {
		return utils.NewValidationError("product variant %d is inactive", id)
	}
	return nil
}
