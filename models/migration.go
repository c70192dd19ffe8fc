package models

import (
	"log"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&Business{},
		&User{},
		&Warehouse{},
		&Product{},
		&ProductVariant{},
		&StockRecord{},
		&Transfer{},
		&TransferTransition{},
		&PubSubMessageRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
