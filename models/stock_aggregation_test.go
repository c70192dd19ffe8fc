package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuildStockAggregateDistribution(t *testing.T) {
	rows := []stockAggregateRow{
		{WarehouseId: 1, WarehouseName: "Bodega Principal", IsPointOfSale: true, IsActive: true, QuantityAvailable: "20", QuantityReserved: "5"},
		{WarehouseId: 2, WarehouseName: "Bodega Norte", IsPointOfSale: false, IsActive: true, QuantityAvailable: "10", QuantityReserved: "0"},
	}

	agg := BuildStockAggregate(7, rows, decimal.Zero, decimal.Zero, false)

	if !agg.TotalAvailable.Equal(dec("30")) {
		t.Fatalf("total available = %s, want 30", agg.TotalAvailable)
	}
	if !agg.TotalReserved.Equal(dec("5")) {
		t.Fatalf("total reserved = %s, want 5", agg.TotalReserved)
	}
	if !agg.TotalQuantity.Equal(dec("35")) {
		t.Fatalf("total quantity = %s, want 35", agg.TotalQuantity)
	}
	if !agg.CanSell {
		t.Fatalf("can_sell = false, want true (POS warehouse holds stock)")
	}
	if !agg.MaxSellableQuantity.Equal(dec("20")) {
		t.Fatalf("max sellable = %s, want 20 (only POS availability counts)", agg.MaxSellableQuantity)
	}
	if len(agg.Warehouses) != 2 {
		t.Fatalf("warehouse lines = %d, want 2", len(agg.Warehouses))
	}
	if agg.Warehouses[0].Percentage != 67 {
		t.Fatalf("warehouse 1 percentage = %d, want 67", agg.Warehouses[0].Percentage)
	}
	if agg.Warehouses[1].Percentage != 33 {
		t.Fatalf("warehouse 2 percentage = %d, want 33", agg.Warehouses[1].Percentage)
	}
	if agg.SuggestedWarehouseId == nil || *agg.SuggestedWarehouseId != 1 {
		t.Fatalf("suggested warehouse = %v, want 1", agg.SuggestedWarehouseId)
	}
	if agg.SuggestionReason != "highest available stock" {
		t.Fatalf("suggestion reason = %q", agg.SuggestionReason)
	}
	if agg.Status != StockStatusNormal {
		t.Fatalf("status = %s, want %s", agg.Status, StockStatusNormal)
	}
	if !agg.Warehouses[0].CanSellFromHere {
		t.Fatalf("warehouse 1 can_sell_from_here = false, want true (POS with stock)")
	}
	if agg.Warehouses[1].CanSellFromHere {
		t.Fatalf("warehouse 2 can_sell_from_here = true, want false (not a POS)")
	}
	if agg.Warehouses[0].Status != StockStatusNormal || agg.Warehouses[1].Status != StockStatusNormal {
		t.Fatalf("warehouse statuses = %s/%s, want normal/normal",
			agg.Warehouses[0].Status, agg.Warehouses[1].Status)
	}
}

func TestBuildStockAggregatePerWarehouseStatus(t *testing.T) {
	// A branch running low must be reported even while the network-wide total
	// is comfortably above the minimum.
	rows := []stockAggregateRow{
		{WarehouseId: 1, IsPointOfSale: true, IsActive: true, QuantityAvailable: "2", QuantityReserved: "0"},
		{WarehouseId: 2, IsPointOfSale: false, IsActive: true, QuantityAvailable: "100", QuantityReserved: "0"},
		{WarehouseId: 3, IsPointOfSale: true, IsActive: true, QuantityAvailable: "0", QuantityReserved: "1"},
	}

	agg := BuildStockAggregate(7, rows, dec("5"), dec("60"), false)

	if agg.Warehouses[0].Status != StockStatusBelowMinimum {
		t.Fatalf("warehouse 1 status = %s, want %s", agg.Warehouses[0].Status, StockStatusBelowMinimum)
	}
	if agg.Warehouses[1].Status != StockStatusOverMaximum {
		t.Fatalf("warehouse 2 status = %s, want %s", agg.Warehouses[1].Status, StockStatusOverMaximum)
	}
	if agg.Warehouses[2].Status != StockStatusOutOfStock {
		t.Fatalf("warehouse 3 status = %s, want %s", agg.Warehouses[2].Status, StockStatusOutOfStock)
	}

	// can_sell is the OR of the per-warehouse flags: only warehouse 1 qualifies
	if !agg.Warehouses[0].CanSellFromHere || agg.Warehouses[1].CanSellFromHere || agg.Warehouses[2].CanSellFromHere {
		t.Fatalf("can_sell_from_here = %v/%v/%v, want true/false/false",
			agg.Warehouses[0].CanSellFromHere, agg.Warehouses[1].CanSellFromHere, agg.Warehouses[2].CanSellFromHere)
	}
	if !agg.CanSell {
		t.Fatalf("can_sell = false, want true")
	}

	// back-order mode marks every POS sellable, including the empty one
	agg = BuildStockAggregate(7, rows, dec("5"), dec("60"), true)
	if !agg.Warehouses[2].CanSellFromHere {
		t.Fatalf("warehouse 3 can_sell_from_here = false, want true under back-order mode")
	}
	if agg.Warehouses[1].CanSellFromHere {
		t.Fatalf("warehouse 2 can_sell_from_here = true, want false (never sellable from non-POS)")
	}
}

func TestBuildStockAggregateAfterTransferLifecycle(t *testing.T) {
	// While a transfer of 5 from warehouse 1 is pending, the quantity sits in
	// warehouse 1's reserved bucket; totals are unchanged.
	pending := []stockAggregateRow{
		{WarehouseId: 1, IsPointOfSale: true, IsActive: true, QuantityAvailable: "15", QuantityReserved: "10"},
		{WarehouseId: 2, IsPointOfSale: false, IsActive: true, QuantityAvailable: "10", QuantityReserved: "0"},
	}
	agg := BuildStockAggregate(7, pending, decimal.Zero, decimal.Zero, false)
	if !agg.TotalQuantity.Equal(dec("35")) {
		t.Fatalf("total while pending = %s, want 35", agg.TotalQuantity)
	}
	if !agg.MaxSellableQuantity.Equal(dec("15")) {
		t.Fatalf("max sellable while pending = %s, want 15", agg.MaxSellableQuantity)
	}

	// After the transfer is received, the 5 lands at warehouse 2.
	received := []stockAggregateRow{
		{WarehouseId: 1, IsPointOfSale: true, IsActive: true, QuantityAvailable: "15", QuantityReserved: "5"},
		{WarehouseId: 2, IsPointOfSale: false, IsActive: true, QuantityAvailable: "15", QuantityReserved: "0"},
	}
	agg = BuildStockAggregate(7, received, decimal.Zero, decimal.Zero, false)
	if !agg.TotalQuantity.Equal(dec("35")) {
		t.Fatalf("total after receive = %s, want 35", agg.TotalQuantity)
	}
	if !agg.TotalAvailable.Equal(dec("30")) {
		t.Fatalf("available after receive = %s, want 30", agg.TotalAvailable)
	}
	if agg.Warehouses[0].Percentage != 50 || agg.Warehouses[1].Percentage != 50 {
		t.Fatalf("percentages after receive = %d/%d, want 50/50",
			agg.Warehouses[0].Percentage, agg.Warehouses[1].Percentage)
	}
}

func TestBuildStockAggregateMalformedQuantities(t *testing.T) {
	rows := []stockAggregateRow{
		{WarehouseId: 1, IsPointOfSale: true, IsActive: true, QuantityAvailable: "not-a-number", QuantityReserved: ""},
		{WarehouseId: 2, IsPointOfSale: true, IsActive: true, QuantityAvailable: "12.5", QuantityReserved: "0.5"},
	}

	agg := BuildStockAggregate(7, rows, decimal.Zero, decimal.Zero, false)

	// legacy garbage coerces to zero instead of failing the snapshot
	if !agg.TotalAvailable.Equal(dec("12.5")) {
		t.Fatalf("total available = %s, want 12.5", agg.TotalAvailable)
	}
	if !agg.TotalReserved.Equal(dec("0.5")) {
		t.Fatalf("total reserved = %s, want 0.5", agg.TotalReserved)
	}
	if agg.SuggestedWarehouseId == nil || *agg.SuggestedWarehouseId != 2 {
		t.Fatalf("suggested warehouse = %v, want 2", agg.SuggestedWarehouseId)
	}
}

func TestBuildStockAggregateSkipsInactiveWarehouses(t *testing.T) {
	rows := []stockAggregateRow{
		{WarehouseId: 1, IsPointOfSale: true, IsActive: false, QuantityAvailable: "100", QuantityReserved: "0"},
		{WarehouseId: 2, IsPointOfSale: true, IsActive: true, QuantityAvailable: "3", QuantityReserved: "0"},
	}

	agg := BuildStockAggregate(7, rows, decimal.Zero, decimal.Zero, false)

	if !agg.TotalAvailable.Equal(dec("3")) {
		t.Fatalf("total available = %s, want 3 (inactive warehouse excluded)", agg.TotalAvailable)
	}
	if len(agg.Warehouses) != 1 {
		t.Fatalf("warehouse lines = %d, want 1", len(agg.Warehouses))
	}
	if agg.Warehouses[0].Percentage != 100 {
		t.Fatalf("percentage = %d, want 100", agg.Warehouses[0].Percentage)
	}
}

func TestBuildStockAggregateCanSellRules(t *testing.T) {
	// stock only at a non-POS warehouse
	rows := []stockAggregateRow{
		{WarehouseId: 1, IsPointOfSale: false, IsActive: true, QuantityAvailable: "50", QuantityReserved: "0"},
	}

	agg := BuildStockAggregate(7, rows, decimal.Zero, decimal.Zero, false)
	if agg.CanSell {
		t.Fatalf("can_sell = true, want false (no POS availability)")
	}
	if agg.SuggestedWarehouseId != nil {
		t.Fatalf("suggested warehouse = %v, want nil", agg.SuggestedWarehouseId)
	}

	agg = BuildStockAggregate(7, rows, decimal.Zero, decimal.Zero, true)
	if !agg.CanSell {
		t.Fatalf("can_sell = false, want true under allowSaleWithoutStock")
	}
	if !agg.MaxSellableQuantity.IsZero() {
		t.Fatalf("max sellable = %s, want 0 (flag does not add POS stock)", agg.MaxSellableQuantity)
	}
}

func TestBuildStockAggregateSuggestedTieBreak(t *testing.T) {
	rows := []stockAggregateRow{
		{WarehouseId: 9, IsPointOfSale: true, IsActive: true, QuantityAvailable: "10", QuantityReserved: "0"},
		{WarehouseId: 3, IsPointOfSale: true, IsActive: true, QuantityAvailable: "10", QuantityReserved: "0"},
	}

	agg := BuildStockAggregate(7, rows, decimal.Zero, decimal.Zero, false)
	if agg.SuggestedWarehouseId == nil || *agg.SuggestedWarehouseId != 3 {
		t.Fatalf("suggested warehouse = %v, want 3 (lowest id on tie)", agg.SuggestedWarehouseId)
	}
}

func TestClassifyStock(t *testing.T) {
	cases := []struct {
		name  string
		total string
		min   string
		max   string
		want  StockStatus
	}{
		{"zero quantity", "0", "0", "0", StockStatusOutOfStock},
		{"negative quantity", "-2", "0", "0", StockStatusOutOfStock},
		{"below minimum", "4", "5", "0", StockStatusBelowMinimum},
		{"at minimum", "5", "5", "0", StockStatusNormal},
		{"above maximum", "11", "0", "10", StockStatusOverMaximum},
		{"at maximum", "10", "0", "10", StockStatusNormal},
		{"no thresholds", "999", "0", "0", StockStatusNormal},
	}
	for _, tc := range cases {
		got := classifyStock(dec(tc.total), dec(tc.min), dec(tc.max))
		if got != tc.want {
			t.Errorf("%s: classifyStock(%s, %s, %s) = %s, want %s",
				tc.name, tc.total, tc.min, tc.max, got, tc.want)
		}
	}
}

func TestPercentageOfRoundsHalfUp(t *testing.T) {
	cases := []struct {
		part  string
		total string
		want  int
	}{
		{"1", "3", 33},
		{"2", "3", 67},
		{"1", "200", 1}, // 0.5 rounds up
		{"0", "10", 0},
		{"10", "10", 100},
		{"5", "0", 0}, // degenerate total
	}
	for _, tc := range cases {
		got := percentageOf(dec(tc.part), dec(tc.total))
		if got != tc.want {
			t.Errorf("percentageOf(%s, %s) = %d, want %d", tc.part, tc.total, got, tc.want)
		}
	}
}
