package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/bodegas_backend/models"
	"github.com/gin-gonic/gin"
)

func receiveStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStockIntake
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		record, err := models.ReceiveStock(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func saleStockHandler(op func(c *gin.Context, input *models.SaleStockInput) (*models.StockRecord, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.SaleStockInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		record, err := op(c, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func variantStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		aggregate, err := models.GetStockAggregateForVariant(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, aggregate)
	}
}

func variantStockRecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		records, err := models.GetStockRecordsForVariant(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}
