package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"gorm.io/gorm"
)

// TransferTransition is an append-only record of every state change a transfer
// went through, including who triggered it.
type TransferTransition struct {
	ID         int            `gorm:"primary_key" json:"id"`
	BusinessId string         `gorm:"index;not null" json:"business_id"`
	TransferId int            `gorm:"index;not null" json:"transfer_id"`
	Action     TransferAction `gorm:"type:enum('create','approve','receive','cancel');not null" json:"action"`
	FromStatus TransferStatus `gorm:"type:enum('pending','in_transit','completed','cancelled')" json:"from_status"`
	ToStatus   TransferStatus `gorm:"type:enum('pending','in_transit','completed','cancelled');not null" json:"to_status"`
	Notes      string         `gorm:"type:text" json:"notes"`
	Snapshot   string         `gorm:"type:text" json:"snapshot"`
	UserId     int            `gorm:"index;not null" json:"user_id"`
	UserName   string         `gorm:"size:100" json:"user_name"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func createTransferTransition(tx *gorm.DB,
	transfer *Transfer,
	action TransferAction,
	fromStatus TransferStatus,
	toStatus TransferStatus,
	notes string) error {

	var transition TransferTransition

	snapshot, _ := json.Marshal(transfer)

	ctx := tx.Statement.Context
	// get businessId, userId, userName from context
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		return errors.New("user name is required")
	}

	transition.BusinessId = businessId
	transition.TransferId = transfer.ID
	transition.Action = action
	transition.FromStatus = fromStatus
	transition.ToStatus = toStatus
	transition.Notes = notes
	transition.Snapshot = string(snapshot)
	transition.UserId = userId
	transition.UserName = userName

	return tx.Create(&transition).Error
}

// GetTransferTransitions returns the audit trail for one transfer, oldest
// first.
func GetTransferTransitions(ctx context.Context, transferId int) ([]*TransferTransition, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// ownership check before exposing the trail
	if _, err := utils.FetchModel[Transfer](ctx, businessId, transferId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var transitions []*TransferTransition
	err := db.WithContext(ctx).
		Where("business_id = ? AND transfer_id = ?", businessId, transferId).
		Order("id").
		Find(&transitions).Error
	if err != nil {
		return nil, err
	}
	return transitions, nil
}
