package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/models"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PendingApproval is a remote approval request for a transfer. It lives only
// in redis: approvals are transient coordination state, not ledger data, and
// they expire on their own if nobody resolves them.
type PendingApproval struct {
	ID                 string    `json:"id"`
	BusinessId         string    `json:"business_id"`
	TransferId         int       `json:"transfer_id"`
	SubmittedBy        string    `json:"submitted_by"`
	SubmitterConnected bool      `json:"submitter_connected"`
	Notes              string    `json:"notes"`
	CreatedAt          time.Time `json:"created_at"`
}

func pendingApprovalKey(id string) string {
	return "PendingApproval:" + id
}

func pendingApprovalSetKey(businessId string) string {
	return "PendingApprovals:" + businessId
}

func approvalLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("APPROVAL_TTL_HOURS"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// ShouldAlert is edge-triggered: the backlog alert fires only when the pending
// queue goes from empty to non-empty, never on every enqueue.
func ShouldAlert(previousCount int64, currentCount int64) bool {
	return previousCount == 0 && currentCount > 0
}

var approvalAlert = func(logger *logrus.Logger, businessId string, pendingCount int64) {
	logger.WithFields(logrus.Fields{
		"field":         "ApprovalChannel",
		"business_id":   businessId,
		"pending_count": pendingCount,
	}).Warn("transfer approvals waiting")
}

// SubmitForApproval queues a pending transfer for remote approval and alerts
// the approvers when the queue transitions from empty to non-empty.
func SubmitForApproval(ctx context.Context, transferId int, notes string) (*PendingApproval, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	transfer, err := models.GetTransfer(ctx, transferId)
	if err != nil {
		return nil, err
	}
	if transfer.Status != models.TransferStatusPending {
		return nil, utils.NewValidationError("transfer %s is %s, only pending transfers need approval",
			transfer.TransferNumber, transfer.Status)
	}

	release, err := utils.BusinessLock(ctx, businessId, "approval", "approvalChannel.go", "SubmitForApproval")
	if err != nil {
		return nil, err
	}
	defer release()

	// one open request per transfer
	existing, err := ListPendingApprovals(ctx)
	if err != nil {
		return nil, err
	}
	for _, approval := range existing {
		if approval.TransferId == transferId {
			return nil, utils.NewValidationError("transfer %s already has a pending approval", transfer.TransferNumber)
		}
	}

	previousCount, err := config.CountRedisSetMembers(pendingApprovalSetKey(businessId))
	if err != nil {
		return nil, err
	}

	approval := PendingApproval{
		ID:                 uuid.NewString(),
		BusinessId:         businessId,
		TransferId:         transferId,
		SubmittedBy:        userName,
		SubmitterConnected: true,
		Notes:              notes,
		CreatedAt:          time.Now(),
	}
	if err := config.SetRedisObject(pendingApprovalKey(approval.ID), approval, approvalLifespan()); err != nil {
		return nil, err
	}
	if err := config.AddRedisSet(pendingApprovalSetKey(businessId), approval.ID); err != nil {
		return nil, err
	}

	if ShouldAlert(previousCount, previousCount+1) {
		approvalAlert(config.GetLogger(), businessId, previousCount+1)
	}

	return &approval, nil
}

// ListPendingApprovals returns the open requests for the caller's business.
// Entries whose redis object expired are pruned from the set on the way out.
func ListPendingApprovals(ctx context.Context) ([]*PendingApproval, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	ids, err := config.GetRedisSetMembers(pendingApprovalSetKey(businessId))
	if err != nil {
		return nil, err
	}

	approvals := make([]*PendingApproval, 0, len(ids))
	for _, id := range ids {
		var approval PendingApproval
		found, err := config.GetRedisObject(pendingApprovalKey(id), &approval)
		if err != nil {
			return nil, err
		}
		if !found {
			_ = config.RemoveRedisSetMember(pendingApprovalSetKey(businessId), id)
			continue
		}
		approvals = append(approvals, &approval)
	}
	return approvals, nil
}

func getPendingApproval(businessId string, approvalId string) (*PendingApproval, error) {
	var approval PendingApproval
	found, err := config.GetRedisObject(pendingApprovalKey(approvalId), &approval)
	if err != nil {
		return nil, err
	}
	if !found || approval.BusinessId != businessId {
		return nil, utils.ErrorRecordNotFound
	}
	return &approval, nil
}

// MarkSubmitterDisconnected records that the submitter's session dropped.
// The request stays in the queue but can no longer be approved, only
// rejected.
func MarkSubmitterDisconnected(ctx context.Context, approvalId string) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	release, err := utils.BusinessLock(ctx, businessId, "approval", "approvalChannel.go", "MarkSubmitterDisconnected")
	if err != nil {
		return err
	}
	defer release()

	approval, err := getPendingApproval(businessId, approvalId)
	if err != nil {
		return err
	}
	approval.SubmitterConnected = false
	return config.SetRedisObject(pendingApprovalKey(approvalId), approval, approvalLifespan())
}

// ResolveApproval closes a pending request. Approving moves the transfer into
// transit; rejecting leaves the transfer pending and simply drops the request.
func ResolveApproval(ctx context.Context, approvalId string, approve bool, notes string) (*models.Transfer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	release, err := utils.BusinessLock(ctx, businessId, "approval", "approvalChannel.go", "ResolveApproval")
	if err != nil {
		return nil, err
	}
	defer release()

	approval, err := getPendingApproval(businessId, approvalId)
	if err != nil {
		return nil, err
	}

	var transfer *models.Transfer
	if approve {
		if !approval.SubmitterConnected {
			return nil, utils.NewValidationError("submitter disconnected, the request can only be rejected")
		}
		transfer, err = models.ApproveTransfer(ctx, approval.TransferId,
			fmt.Sprintf("approved via remote channel: %s", notes))
		if err != nil {
			return nil, err
		}
	} else {
		transfer, err = models.GetTransfer(ctx, approval.TransferId)
		if err != nil {
			return nil, err
		}
	}

	if err := config.RemoveRedisKey(pendingApprovalKey(approvalId)); err != nil {
		return nil, err
	}
	if err := config.RemoveRedisSetMember(pendingApprovalSetKey(businessId), approvalId); err != nil {
		return nil, err
	}

	return transfer, nil
}
