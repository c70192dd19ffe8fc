package main

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondBindError turns request binding failures into a field.tag map when
// the failure came from struct validation, and a plain message otherwise.
func respondBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(validationErrors)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// respondError maps domain errors onto HTTP statuses. Anything unrecognized
// is a 500 with the message hidden behind a generic body.
func respondError(c *gin.Context, err error) {
	var validationErr *utils.ValidationError
	var insufficientErr *utils.InsufficientStockError
	var transitionErr *utils.InvalidStateTransitionError
	var conflictErr *utils.ConcurrencyConflictError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &insufficientErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":        insufficientErr.Error(),
			"warehouse_id": insufficientErr.WarehouseId,
			"requested":    insufficientErr.Requested,
			"available":    insufficientErr.Available,
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": "the record was modified concurrently, retry the request"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
