package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxPublishBackoff = 10 * time.Minute

// StockEventDispatcher drains the stock event outbox. Events are written to
// pub_sub_message_records inside the same transaction that mutates stock, so
// a committed ledger change always has a matching event row. The dispatcher
// claims rows with SKIP LOCKED, which keeps multiple replicas from fighting
// over the same batch.
type StockEventDispatcher struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	WorkerId string

	BatchSize      int
	PollInterval   time.Duration
	ClaimTimeout   time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewStockEventDispatcher(db *gorm.DB, logger *logrus.Logger) *StockEventDispatcher {
	return &StockEventDispatcher{
		DB:             db,
		Logger:         logger,
		WorkerId:       uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		ClaimTimeout:   30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (d *StockEventDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()
	for {
		d.dispatchBatch(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *StockEventDispatcher) dispatchBatch(ctx context.Context) {
	if d.DB == nil {
		return
	}
	now := time.Now().UTC()
	batch, err := d.claimBatch(ctx, now)
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithField("worker_id", d.WorkerId).Error("stock event claim failed: " + err.Error())
		}
		return
	}
	for _, rec := range batch {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		msgId, pubErr := config.PublishStockEventWithResult(ctx, rec.BusinessId, models.ConvertToPubSubMessage(rec))
		if pubErr != nil {
			d.markFailed(ctx, rec, pubErr)
			continue
		}
		d.markSent(ctx, rec.ID, msgId, now)
	}
}

// claimBatch locks a batch of publishable rows and stamps them PROCESSING.
// A row is publishable when it is PENDING, a FAILED row whose retry time has
// come, or a PROCESSING row whose claim went stale (the worker that held it
// died). Rows that already burned MaxAttempts are parked as DEAD instead.
func (d *StockEventDispatcher) claimBatch(ctx context.Context, now time.Time) ([]models.PubSubMessageRecord, error) {
	staleBefore := now.Add(-d.ClaimTimeout)
	var batch []models.PubSubMessageRecord
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = 0").
			Where(`(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
				OR (publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?)`,
				[]string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now,
				models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&batch).Error; err != nil {
			return err
		}
		for i := range batch {
			if d.MaxAttempts > 0 && batch[i].PublishAttempts >= d.MaxAttempts {
				reason := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				batch[i].PublishStatus = models.OutboxPublishStatusDead
				if err := d.updateRecord(tx, batch[i].ID, map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &reason,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}); err != nil {
					return err
				}
				continue
			}

			batch[i].PublishStatus = models.OutboxPublishStatusProcessing
			batch[i].PublishAttempts = batch[i].PublishAttempts + 1
			if err := d.updateRecord(tx, batch[i].ID, map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.WorkerId,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return batch, err
}

func (d *StockEventDispatcher) updateRecord(tx *gorm.DB, recordId int, updates map[string]interface{}) error {
	return tx.Model(&models.PubSubMessageRecord{}).Where("id = ?", recordId).Updates(updates).Error
}

func (d *StockEventDispatcher) markSent(ctx context.Context, recordId int, pubsubMsgId string, now time.Time) {
	_ = d.updateRecord(d.DB.WithContext(ctx), recordId, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusSent,
		"published_at":       &now,
		"pub_sub_message_id": &pubsubMsgId,
		"locked_at":          nil,
		"locked_by":          nil,
		"next_attempt_at":    nil,
	})
}

func (d *StockEventDispatcher) markFailed(ctx context.Context, rec models.PubSubMessageRecord, pubErr error) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	reason := pubErr.Error()

	if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
		_ = d.updateRecord(db, rec.ID, map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusDead,
			"last_publish_error": &reason,
			"next_attempt_at":    nil,
			"locked_at":          nil,
			"locked_by":          nil,
		})
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"business_id": rec.BusinessId,
				"record_id":   rec.ID,
				"attempt":     rec.PublishAttempts,
			}).Error("stock event moved to DEAD after max attempts: " + reason)
		}
		return
	}

	next := now.Add(d.retryDelay(rec.PublishAttempts))
	_ = d.updateRecord(db, rec.ID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusFailed,
		"last_publish_error": &reason,
		"next_attempt_at":    &next,
		"locked_at":          nil,
		"locked_by":          nil,
	})
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"business_id":     rec.BusinessId,
			"record_id":       rec.ID,
			"attempt":         rec.PublishAttempts,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("stock event publish failed: " + reason)
	}
}

// retryDelay doubles per attempt, capped at maxPublishBackoff.
func (d *StockEventDispatcher) retryDelay(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxPublishBackoff {
			return maxPublishBackoff
		}
	}
	return backoff
}
