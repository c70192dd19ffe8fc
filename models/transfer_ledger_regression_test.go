package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/models"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/shopspring/decimal"
)

func TestTransferLifecycleMovesLedgerQuantities(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "bodegas_test")
	t.Setenv("ALLOW_SALE_WITHOUT_STOCK", "")

	// Connect deps.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	// Start from an empty cache; the container may be reused across runs.
	if err := config.ClearRedis(ctx); err != nil {
		t.Fatalf("ClearRedis: %v", err)
	}

	// Migrate schema (in a fresh DB).
	models.AutoMigrate(db)

	// Transition records require user context.
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	// 1) Create a new business (includes the primary POS warehouse + owner).
	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Test Bodegas",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	var primary models.Warehouse
	if err := db.WithContext(ctx).Where("business_id = ? AND code = ?", businessID, "MAIN").First(&primary).Error; err != nil {
		t.Fatalf("fetch primary warehouse: %v", err)
	}

	// 2) Create a second, non-POS warehouse.
	norte, err := models.CreateWarehouse(ctx, &models.NewWarehouse{
		Code: "NORTE",
		Name: "Bodega Norte",
	})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}

	// 3) Product + variant.
	shirt, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Camisa",
		Sku:  "CAM-001",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{
		ProductId: shirt.ID,
		Sku:       "CAM-001-M-AZUL",
		Color:     "azul",
		Size:      "M",
	})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}

	// 4) Intake: 25 into primary, 10 into norte; reserve 5 at primary for a sale.
	if _, err := models.ReceiveStock(ctx, &models.NewStockIntake{
		VariantId:   variant.ID,
		WarehouseId: primary.ID,
		Quantity:    decimal.NewFromInt(25),
	}); err != nil {
		t.Fatalf("ReceiveStock primary: %v", err)
	}
	if _, err := models.ReceiveStock(ctx, &models.NewStockIntake{
		VariantId:   variant.ID,
		WarehouseId: norte.ID,
		Quantity:    decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("ReceiveStock norte: %v", err)
	}
	if _, err := models.ReserveForSale(ctx, &models.SaleStockInput{
		VariantId:   variant.ID,
		WarehouseId: primary.ID,
		Quantity:    decimal.NewFromInt(5),
	}); err != nil {
		t.Fatalf("ReserveForSale: %v", err)
	}

	assertStock := func(warehouseId int, available, reserved string) {
		t.Helper()
		var rec models.StockRecord
		if err := db.WithContext(ctx).Where("business_id = ? AND variant_id = ? AND warehouse_id = ?",
			businessID, variant.ID, warehouseId).First(&rec).Error; err != nil {
			t.Fatalf("fetch stock record wh=%d: %v", warehouseId, err)
		}
		if !rec.QuantityAvailable.Equal(decimal.RequireFromString(available)) {
			t.Fatalf("wh=%d available = %s, want %s", warehouseId, rec.QuantityAvailable, available)
		}
		if !rec.QuantityReserved.Equal(decimal.RequireFromString(reserved)) {
			t.Fatalf("wh=%d reserved = %s, want %s", warehouseId, rec.QuantityReserved, reserved)
		}
	}

	assertStock(primary.ID, "20", "5")
	assertStock(norte.ID, "10", "0")

	agg, err := models.GetStockAggregateForVariant(ctx, variant.ID)
	if err != nil {
		t.Fatalf("GetStockAggregateForVariant: %v", err)
	}
	if !agg.TotalAvailable.Equal(decimal.NewFromInt(30)) ||
		!agg.TotalReserved.Equal(decimal.NewFromInt(5)) ||
		!agg.TotalQuantity.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("aggregate = %s/%s/%s, want 30/5/35",
			agg.TotalAvailable, agg.TotalReserved, agg.TotalQuantity)
	}
	if !agg.CanSell {
		t.Fatalf("can_sell = false, want true")
	}
	if agg.SuggestedWarehouseId == nil || *agg.SuggestedWarehouseId != primary.ID {
		t.Fatalf("suggested warehouse = %v, want %d", agg.SuggestedWarehouseId, primary.ID)
	}

	// 5) Transfer 5 from primary to norte: quantity moves into primary's
	// reserved bucket while pending.
	transfer, err := models.CreateTransfer(ctx, &models.NewTransfer{
		VariantId:              variant.ID,
		SourceWarehouseId:      primary.ID,
		DestinationWarehouseId: norte.ID,
		Quantity:               decimal.NewFromInt(5),
		Notes:                  "rebalance for weekend demand",
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}
	if transfer.Status != models.TransferStatusPending {
		t.Fatalf("transfer status = %s, want pending", transfer.Status)
	}
	if transfer.TransferNumber != fmt.Sprintf("TRF-%06d", transfer.ID) {
		t.Fatalf("transfer number = %q", transfer.TransferNumber)
	}
	assertStock(primary.ID, "15", "10")

	// Over-transfer is rejected with the fresh availability.
	_, err = models.CreateTransfer(ctx, &models.NewTransfer{
		VariantId:              variant.ID,
		SourceWarehouseId:      primary.ID,
		DestinationWarehouseId: norte.ID,
		Quantity:               decimal.NewFromInt(100),
		Notes:                  "too much",
	})
	var insufficient *utils.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("over-transfer error = %v, want InsufficientStockError", err)
	}
	if !insufficient.Available.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("reported available = %s, want 15", insufficient.Available)
	}

	// 6) Approve and receive.
	transfer, err = models.ApproveTransfer(ctx, transfer.ID, "ok")
	if err != nil {
		t.Fatalf("ApproveTransfer: %v", err)
	}
	if transfer.Status != models.TransferStatusInTransit {
		t.Fatalf("status after approve = %s, want in_transit", transfer.Status)
	}

	// approving again is an idempotent no-op
	again, err := models.ApproveTransfer(ctx, transfer.ID, "again")
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if again.Status != models.TransferStatusInTransit {
		t.Fatalf("status after re-approve = %s, want in_transit", again.Status)
	}

	transfer, err = models.ReceiveTransfer(ctx, transfer.ID, "")
	if err != nil {
		t.Fatalf("ReceiveTransfer: %v", err)
	}
	if transfer.Status != models.TransferStatusCompleted {
		t.Fatalf("status after receive = %s, want completed", transfer.Status)
	}
	assertStock(primary.ID, "15", "5")
	assertStock(norte.ID, "15", "0")

	// receiving again must not move stock twice
	if _, err := models.ReceiveTransfer(ctx, transfer.ID, ""); err != nil {
		t.Fatalf("re-receive: %v", err)
	}
	assertStock(norte.ID, "15", "0")

	// cancelling a completed transfer is invalid
	_, err = models.CancelTransfer(ctx, transfer.ID, "")
	var transition *utils.InvalidStateTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("cancel completed error = %v, want InvalidStateTransitionError", err)
	}

	// 7) The audit trail carries the full lifecycle.
	transitions, err := models.GetTransferTransitions(ctx, transfer.ID)
	if err != nil {
		t.Fatalf("GetTransferTransitions: %v", err)
	}
	if len(transitions) != 3 {
		t.Fatalf("transitions = %d, want 3 (create/approve/receive)", len(transitions))
	}
	wantActions := []models.TransferAction{
		models.TransferActionCreate,
		models.TransferActionApprove,
		models.TransferActionReceive,
	}
	for i, want := range wantActions {
		if transitions[i].Action != want {
			t.Fatalf("transition[%d].Action = %s, want %s", i, transitions[i].Action, want)
		}
	}

	// 8) Cancelling a pending transfer releases the reservation.
	cancelMe, err := models.CreateTransfer(ctx, &models.NewTransfer{
		VariantId:              variant.ID,
		SourceWarehouseId:      norte.ID,
		DestinationWarehouseId: primary.ID,
		Quantity:               decimal.NewFromInt(3),
		Notes:                  "restock primary",
	})
	if err != nil {
		t.Fatalf("CreateTransfer(cancel): %v", err)
	}
	assertStock(norte.ID, "12", "3")
	if _, err := models.CancelTransfer(ctx, cancelMe.ID, "changed plans"); err != nil {
		t.Fatalf("CancelTransfer: %v", err)
	}
	assertStock(norte.ID, "15", "0")

	// 9) Outbox rows were written for every mutation inside the same tx.
	var outboxCount int64
	if err := db.WithContext(ctx).Model(&models.PubSubMessageRecord{}).
		Where("business_id = ?", businessID).Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outboxCount == 0 {
		t.Fatalf("no outbox rows written")
	}
}

func TestConcurrentTransferCreationDoesNotOverReserve(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "bodegas_test")
	t.Setenv("ALLOW_SALE_WITHOUT_STOCK", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	if err := config.ClearRedis(ctx); err != nil {
		t.Fatalf("ClearRedis: %v", err)
	}
	models.AutoMigrate(db)

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Carrera Bodegas",
		Email: "owner@carrera.local",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	var primary models.Warehouse
	if err := db.WithContext(ctx).Where("business_id = ? AND code = ?", businessID, "MAIN").First(&primary).Error; err != nil {
		t.Fatalf("fetch primary warehouse: %v", err)
	}
	sur, err := models.CreateWarehouse(ctx, &models.NewWarehouse{
		Code: "SUR",
		Name: "Bodega Sur",
	})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}

	pants, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Pantalón",
		Sku:  "PAN-001",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{
		ProductId: pants.ID,
		Sku:       "PAN-001-L-NEGRO",
		Color:     "negro",
		Size:      "L",
	})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}

	if _, err := models.ReceiveStock(ctx, &models.NewStockIntake{
		VariantId:   variant.ID,
		WarehouseId: primary.ID,
		Quantity:    decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("ReceiveStock: %v", err)
	}

	// 8 writers race for 10 units in lots of 3; at most 3 can win.
	const workers = 8
	perTransfer := decimal.NewFromInt(3)

	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := models.CreateTransfer(ctx, &models.NewTransfer{
				VariantId:              variant.ID,
				SourceWarehouseId:      primary.ID,
				DestinationWarehouseId: sur.ID,
				Quantity:               perTransfer,
				Notes:                  "rebalance burst",
			})
			results[slot] = err
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i, err := range results {
		if err == nil {
			admitted++
			continue
		}
		var insufficient *utils.InsufficientStockError
		var conflict *utils.ConcurrencyConflictError
		if !errors.As(err, &insufficient) && !errors.As(err, &conflict) {
			t.Fatalf("worker %d failed with unexpected error: %v", i, err)
		}
	}
	if admitted == 0 {
		t.Fatalf("no transfer was admitted")
	}
	reserved := perTransfer.Mul(decimal.NewFromInt(int64(admitted)))
	if reserved.GreaterThan(decimal.NewFromInt(10)) {
		t.Fatalf("admitted %d transfers, reserving %s out of 10", admitted, reserved)
	}

	var rec models.StockRecord
	if err := db.WithContext(ctx).Where("business_id = ? AND variant_id = ? AND warehouse_id = ?",
		businessID, variant.ID, primary.ID).First(&rec).Error; err != nil {
		t.Fatalf("fetch source stock record: %v", err)
	}
	if rec.QuantityAvailable.IsNegative() {
		t.Fatalf("source available went negative: %s", rec.QuantityAvailable)
	}
	wantAvailable := decimal.NewFromInt(10).Sub(reserved)
	if !rec.QuantityAvailable.Equal(wantAvailable) {
		t.Fatalf("source available = %s, want %s", rec.QuantityAvailable, wantAvailable)
	}
	if !rec.QuantityReserved.Equal(reserved) {
		t.Fatalf("source reserved = %s, want %s", rec.QuantityReserved, reserved)
	}

	// The source still holds stock, so deactivating it must be refused.
	_, err = models.ToggleActiveWarehouse(ctx, primary.ID, false)
	var validation *utils.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("deactivating stocked warehouse: got %v, want validation error", err)
	}

	// The destination is still empty (nothing received yet) and may be closed.
	if _, err := models.ToggleActiveWarehouse(ctx, sur.ID, false); err != nil {
		t.Fatalf("deactivating empty warehouse: %v", err)
	}
	reopened, err := models.ToggleActiveWarehouse(ctx, sur.ID, true)
	if err != nil {
		t.Fatalf("reactivating warehouse: %v", err)
	}
	if reopened.IsActive == nil || !*reopened.IsActive {
		t.Fatalf("warehouse not reactivated")
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("bodegas-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("bodegas-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=bodegas_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
