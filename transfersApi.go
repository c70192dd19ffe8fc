package main

import (
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/models"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"bitbucket.org/mmdatafocus/bodegas_backend/workflow"
	"github.com/gin-gonic/gin"
)

func createTransferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTransfer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		transfer, err := models.CreateTransfer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, transfer)
	}
}

func getTransferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		transfer, err := models.GetTransfer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, transfer)
	}
}

func listTransfersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 100 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
				return
			}
			limit = n
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}

		var filter models.TransferFilter
		if v := c.Query("status"); v != "" {
			status, err := models.ParseTransferStatus(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter.Status = &status
		}
		if v := c.Query("variant_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "variant_id must be a positive integer"})
				return
			}
			filter.VariantId = &id
		}
		if v := c.Query("warehouse_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "warehouse_id must be a positive integer"})
				return
			}
			filter.WarehouseId = &id
		}

		edges, pageInfo, err := models.PaginateTransfer(c.Request.Context(), limit, after, &filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edges": edges, "pageInfo": pageInfo})
	}
}

type transferActionRequest struct {
	Notes string `json:"notes"`
}

func transferActionHandler(op func(c *gin.Context, id int, notes string) (*models.Transfer, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req transferActionRequest
		// body is optional for workflow verbs
		_ = c.ShouldBindJSON(&req)

		transfer, err := op(c, id, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, transfer)
	}
}

func updateTransferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.UpdateTransferInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		transfer, err := models.UpdateTransfer(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, transfer)
	}
}

type transferTransitionView struct {
	models.TransferTransition
	LocalCreatedAt time.Time `json:"local_created_at"`
}

func transferTransitionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		transitions, err := models.GetTransferTransitions(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		business, err := models.GetBusiness(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		views := make([]transferTransitionView, 0, len(transitions))
		for _, transition := range transitions {
			views = append(views, transferTransitionView{
				TransferTransition: *transition,
				LocalCreatedAt:     utils.ConvertToLocalTime(transition.CreatedAt, business.Timezone),
			})
		}
		c.JSON(http.StatusOK, views)
	}
}

func submitApprovalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req transferActionRequest
		_ = c.ShouldBindJSON(&req)

		approval, err := workflow.SubmitForApproval(c.Request.Context(), id, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, approval)
	}
}

func listApprovalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		approvals, err := workflow.ListPendingApprovals(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, approvals)
	}
}

type resolveApprovalRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Notes   string `json:"notes"`
}

func resolveApprovalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		approvalId := c.Param("id")
		if approvalId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "approval id is required"})
			return
		}
		var req resolveApprovalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "approve is required"})
			return
		}
		transfer, err := workflow.ResolveApproval(c.Request.Context(), approvalId, *req.Approve, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, transfer)
	}
}

func disconnectApprovalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		approvalId := c.Param("id")
		if approvalId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "approval id is required"})
			return
		}
		if err := workflow.MarkSubmitterDisconnected(c.Request.Context(), approvalId); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
