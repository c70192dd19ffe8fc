// stockrecord-prune deletes stock ledger rows where both the available and
// reserved quantities have drained back to zero. Empty rows are harmless but
// they bloat the aggregation join over time.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/stockrecord-prune
package main

import (
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	pruned, err := models.PruneZeroStockRecords(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prune failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Pruned %d empty stock records\n", pruned)
}
