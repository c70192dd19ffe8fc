package utils

import (
	"context"
	"errors"
	"reflect"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
)

// ValidateResourceId checks that id exists for businessId.
// Returns ErrorRecordNotFound when it does not.
func ValidateResourceId[T any](ctx context.Context, businessId string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, businessId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateResourcesId checks that EVERY id exists for businessId.
func ValidateResourcesId[M any, ID comparable](ctx context.Context, businessId string, ids []ID) error {
	unqIds := UniqueSlice(ids)
	count, err := ResourceCountWhere[M](ctx, businessId, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateUnique rejects a value already taken by another row of T within the
// tenant. exceptId excludes the row being updated.
func ValidateUnique[T any](ctx context.Context, businessId string, column string, value interface{}, exceptId interface{}) error {
	condition := column + " = ?"
	args := []interface{}{value}
	if !reflect.ValueOf(exceptId).IsZero() {
		condition += " AND NOT id = ?"
		args = append(args, exceptId)
	}

	count, err := ResourceCountWhere[T](ctx, businessId, condition, args...)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// ResourceCountWhere counts rows of T matching condition. businessId can be
// blank for platform-admin queries.
func ResourceCountWhere[T any](ctx context.Context, businessId string, condition string, value ...interface{}) (int64, error) {
	var model T
	dbCtx := config.GetDB().WithContext(ctx).Model(&model)
	if businessId != "" {
		dbCtx = dbCtx.Where("business_id = ?", businessId)
	}
	var count int64
	if err := dbCtx.Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
