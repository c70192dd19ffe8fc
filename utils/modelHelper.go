package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
)

/* DB fetching */

// FetchSingleModel loads a row by primary key without tenant scoping.
// Reserved for platform-level lookups; may return ErrorRecordNotFound.
func FetchSingleModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// FetchModel loads a row by primary key scoped to businessId.
// May return ErrorRecordNotFound.
func FetchModel[T any](ctx context.Context, businessId string, id int, associations ...string) (*T, error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("business_id = ?", businessId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// FetchAllModels loads every row of T owned by businessId.
func FetchAllModels[T any](ctx context.Context, businessId string, associations ...string) ([]*T, error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("business_id = ?", businessId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}
