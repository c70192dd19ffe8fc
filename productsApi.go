package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/bodegas_backend/models"
	"github.com/gin-gonic/gin"
)

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		products, err := models.ListProduct(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func toggleActiveProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
			return
		}
		product, err := models.ToggleActiveProduct(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func createVariantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProductVariant
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		variant, err := models.CreateProductVariant(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, variant)
	}
}

func getVariantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		variant, err := models.GetProductVariant(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, variant)
	}
}

func listVariantsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var productId *int
		if v := c.Query("product_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "product_id must be a positive integer"})
				return
			}
			productId = &id
		}
		variants, err := models.ListProductVariant(c.Request.Context(), productId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, variants)
	}
}
