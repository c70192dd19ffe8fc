package models

import (
	"context"
	"errors"
	"sort"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/shopspring/decimal"
)

// WarehouseStockLine is one warehouse's slice of the aggregate. Quantities
// arrive as strings from the scan so legacy rows with malformed values can be
// coerced to zero instead of failing the whole snapshot.
type WarehouseStockLine struct {
	WarehouseId       int             `json:"warehouse_id"`
	WarehouseName     string          `json:"warehouse_name"`
	IsPointOfSale     bool            `json:"is_point_of_sale"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	QuantityReserved  decimal.Decimal `json:"quantity_reserved"`
	Status            StockStatus     `json:"status"`
	CanSellFromHere   bool            `json:"can_sell_from_here"`
	Percentage        int             `json:"percentage"`
}

type StockAggregate struct {
	VariantId            int                  `json:"variant_id"`
	TotalAvailable       decimal.Decimal      `json:"total_available"`
	TotalReserved        decimal.Decimal      `json:"total_reserved"`
	TotalQuantity        decimal.Decimal      `json:"total_quantity"`
	CanSell              bool                 `json:"can_sell"`
	MaxSellableQuantity  decimal.Decimal      `json:"max_sellable_quantity"`
	Status               StockStatus          `json:"status"`
	SuggestedWarehouseId *int                 `json:"suggested_warehouse_id"`
	SuggestionReason     string               `json:"suggestion_reason,omitempty"`
	Warehouses           []WarehouseStockLine `json:"warehouses"`
}

// stockAggregateRow mirrors the join of stock records against warehouses.
// Quantities are scanned as text on purpose; see DecimalOrZero.
type stockAggregateRow struct {
	WarehouseId       int
	WarehouseName     string
	IsPointOfSale     bool
	IsActive          bool
	QuantityAvailable string
	QuantityReserved  string
}

func classifyStock(totalQuantity decimal.Decimal, minimumStock decimal.Decimal, maximumStock decimal.Decimal) StockStatus {
	if !totalQuantity.IsPositive() {
		return StockStatusOutOfStock
	}
	if minimumStock.IsPositive() && totalQuantity.LessThan(minimumStock) {
		return StockStatusBelowMinimum
	}
	if maximumStock.IsPositive() && totalQuantity.GreaterThan(maximumStock) {
		return StockStatusOverMaximum
	}
	return StockStatusNormal
}

// percentageOf returns round-half-up(part/total*100); zero when total is zero.
func percentageOf(part decimal.Decimal, total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(part.Mul(decimal.NewFromInt(100)).Div(total).Round(0).IntPart())
}

// BuildStockAggregate folds the scanned rows into the snapshot. Pure: no db,
// no clock, so the arithmetic is testable against fixed fixtures.
func BuildStockAggregate(variantId int, rows []stockAggregateRow, minimumStock decimal.Decimal, maximumStock decimal.Decimal, allowSaleWithoutStock bool) *StockAggregate {
	agg := StockAggregate{
		VariantId:           variantId,
		TotalAvailable:      decimal.Zero,
		TotalReserved:       decimal.Zero,
		TotalQuantity:       decimal.Zero,
		MaxSellableQuantity: decimal.Zero,
		Warehouses:          []WarehouseStockLine{},
	}

	anySellable := false
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		line := WarehouseStockLine{
			WarehouseId:       row.WarehouseId,
			WarehouseName:     row.WarehouseName,
			IsPointOfSale:     row.IsPointOfSale,
			QuantityAvailable: utils.DecimalOrZero(row.QuantityAvailable),
			QuantityReserved:  utils.DecimalOrZero(row.QuantityReserved),
		}
		// each warehouse is classified on its own available quantity, so a
		// depleted branch stays visible when the rest of the network is healthy
		line.Status = classifyStock(line.QuantityAvailable, minimumStock, maximumStock)
		line.CanSellFromHere = row.IsPointOfSale && (line.QuantityAvailable.IsPositive() || allowSaleWithoutStock)
		anySellable = anySellable || line.CanSellFromHere

		agg.TotalAvailable = agg.TotalAvailable.Add(line.QuantityAvailable)
		agg.TotalReserved = agg.TotalReserved.Add(line.QuantityReserved)
		if row.IsPointOfSale && line.QuantityAvailable.IsPositive() {
			agg.MaxSellableQuantity = agg.MaxSellableQuantity.Add(line.QuantityAvailable)
		}
		agg.Warehouses = append(agg.Warehouses, line)
	}
	agg.TotalQuantity = agg.TotalAvailable.Add(agg.TotalReserved)
	agg.Status = classifyStock(agg.TotalQuantity, minimumStock, maximumStock)
	// system-wide sellability is the OR of the per-warehouse flags; back-order
	// mode also covers a variant with no stock rows at all
	agg.CanSell = anySellable || allowSaleWithoutStock

	for i := range agg.Warehouses {
		agg.Warehouses[i].Percentage = percentageOf(agg.Warehouses[i].QuantityAvailable, agg.TotalAvailable)
	}

	// suggested fulfillment source: the POS warehouse holding the most
	// available stock, lowest id on ties
	sorted := make([]WarehouseStockLine, len(agg.Warehouses))
	copy(sorted, agg.Warehouses)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].QuantityAvailable.Equal(sorted[j].QuantityAvailable) {
			return sorted[i].QuantityAvailable.GreaterThan(sorted[j].QuantityAvailable)
		}
		return sorted[i].WarehouseId < sorted[j].WarehouseId
	})
	for _, line := range sorted {
		if line.IsPointOfSale && line.QuantityAvailable.IsPositive() {
			id := line.WarehouseId
			agg.SuggestedWarehouseId = &id
			agg.SuggestionReason = "highest available stock"
			break
		}
	}

	return &agg
}

// GetStockAggregateForVariant recomputes the snapshot for a variant from the
// ledger rows. There is no persisted summary; the ledger is the single source
// of truth.
func GetStockAggregateForVariant(ctx context.Context, variantId int) (*StockAggregate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	variant, err := GetProductVariant(ctx, variantId)
	if err != nil {
		return nil, err
	}
	product, err := utils.FetchModel[Product](ctx, businessId, variant.ProductId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var rows []stockAggregateRow
	err = db.WithContext(ctx).
		Table("stock_records").
		Select("warehouses.id AS warehouse_id, warehouses.name AS warehouse_name, warehouses.is_point_of_sale AS is_point_of_sale, warehouses.is_active AS is_active, CAST(stock_records.quantity_available AS CHAR) AS quantity_available, CAST(stock_records.quantity_reserved AS CHAR) AS quantity_reserved").
		Joins("JOIN warehouses ON warehouses.id = stock_records.warehouse_id").
		Where("stock_records.business_id = ? AND stock_records.variant_id = ?", businessId, variantId).
		Order("warehouses.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return BuildStockAggregate(variantId, rows, product.MinimumStock, product.MaximumStock, config.AllowSaleWithoutStock()), nil
}
