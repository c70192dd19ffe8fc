package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

/* Redis model cache */

// Catalog types expire so renames and threshold edits converge without an
// explicit invalidation sweep. Everything else is invalidated on write.
func typeHasExpiration(typeName string) bool {
	switch typeName {
	case "Product", "ProductVariant", "Warehouse":
		return true
	}
	return false
}

func cacheKey(typeName string, id int) string {
	return typeName + ":" + fmt.Sprint(id)
}

func listCacheKey(typeName string, businessId string) string {
	if businessId == "" {
		return typeName + "List"
	}
	return typeName + "List:" + businessId
}

func cacheLifespanFor(typeName string) time.Duration {
	if typeHasExpiration(typeName) {
		return GetCacheLifespan()
	}
	return 0
}

// StoreRedis caches a single instance under Type:$id. obj should be a pointer.
func StoreRedis[T any](obj any, id int) error {
	typeName := GetTypeName[T]()
	return config.SetRedisObject(cacheKey(typeName, id), &obj, cacheLifespanFor(typeName))
}

// StoreRedisList caches a tenant's list under TypeList:$business_id.
func StoreRedisList[T any](obj any, businessId string) error {
	typeName := GetTypeName[T]()
	return config.SetRedisObject(listCacheKey(typeName, businessId), &obj, cacheLifespanFor(typeName))
}

// RetrieveRedis returns nil without error on a cache miss.
func RetrieveRedis[T any](id int) (*T, error) {
	var result *T
	exists, err := config.GetRedisObject(cacheKey(GetTypeName[T](), id), &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

// RetrieveRedisList returns nil without error on a cache miss.
func RetrieveRedisList[T any](businessId string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(listCacheKey(GetTypeName[T](), businessId), &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

func RemoveRedisList[T any](businessId string) error {
	return config.RemoveRedisKey(listCacheKey(GetTypeName[T](), businessId))
}

func RemoveRedisItem[T any](id int) error {
	return config.RemoveRedisKey(cacheKey(GetTypeName[T](), id))
}
