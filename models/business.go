package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	City        string    `gorm:"size:100"  json:"city"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
}

func (business *Business) StoreRedis() error {
	return config.SetRedisObject("Business:"+fmt.Sprint(business.ID), business, 0)
}

func (business *Business) RemoveRedis() error {
	return config.RemoveRedisKey("Business:" + fmt.Sprint(business.ID))
}

func (input *NewBusiness) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewValidationError("business name is required")
	}
	if !utils.IsValidEmail(input.Email) {
		return utils.NewValidationError("invalid email")
	}
	return nil
}

// CreateBusiness bootstraps a tenant: the business row, its primary
// point-of-sale warehouse, and an owner user.
func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {

	if err := input.validate(); err != nil {
		return nil, err
	}

	business := Business{
		ID:          uuid.New(),
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		City:        input.City,
		Timezone:    input.Timezone,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// tenant scoping does not apply while the business is being created
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	if err := tx.WithContext(ctx).Create(&business).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	businessId := business.ID.String()
	if err := CreateDefaultWarehouse(tx, ctx, businessId); err != nil {
		return nil, err
	}
	if _, err := CreateDefaultOwner(tx, ctx, businessId, input.Email, input.ContactName); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &business, nil
}

// may return RecordNotFound error
func GetBusinessById(ctx context.Context, id string) (*Business, error) {

	var business *Business
	exists, err := config.GetRedisObject("Business:"+id, &business)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		business = &Business{}
		if err := db.WithContext(ctx).Where("id = ?", id).First(business).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		if err := business.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return business, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}
