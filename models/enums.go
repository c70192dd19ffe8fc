package models

import "errors"

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusInTransit TransferStatus = "in_transit"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

func ParseTransferStatus(str string) (TransferStatus, error) {
	transferStatus := map[string]TransferStatus{
		"pending":    TransferStatusPending,
		"in_transit": TransferStatusInTransit,
		"completed":  TransferStatusCompleted,
		"cancelled":  TransferStatusCancelled,
	}

	s, ok := transferStatus[str]
	if !ok {
		return "", errors.New("invalid transfer status")
	}
	return s, nil
}

// TransferAction names the workflow verb that caused a transition.
type TransferAction string

const (
	TransferActionCreate  TransferAction = "create"
	TransferActionApprove TransferAction = "approve"
	TransferActionReceive TransferAction = "receive"
	TransferActionCancel  TransferAction = "cancel"
)

// StockStatus classifies a warehouse's available quantity against the
// product's minimum/maximum thresholds.
type StockStatus string

const (
	StockStatusOutOfStock   StockStatus = "sin_stock"
	StockStatusBelowMinimum StockStatus = "bajo_minimo"
	StockStatusOverMaximum  StockStatus = "sobre_maximo"
	StockStatusNormal       StockStatus = "normal"
)

type StockReferenceType string

const (
	StockReferenceTypeTransfer    StockReferenceType = "TR"
	StockReferenceTypeStockIntake StockReferenceType = "SI"
	StockReferenceTypeSale        StockReferenceType = "SL"
)

type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "A"
	UserRoleCustom UserRole = "C"
)

func (r UserRole) DisplayName() string {
	if r == UserRoleAdmin {
		return "Admin"
	}
	return "Custom"
}
