package jobs

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Jobs running longer than this are assumed abandoned and requeued.
const stuckAfter = 5 * time.Minute

type Repo struct {
	DB *gorm.DB
}

// Enqueue adds a pending job. A non-empty key makes the call idempotent: it
// reports false while a job with that key is pending or running. Finished
// jobs release their key.
func (r *Repo) Enqueue(ctx context.Context, typ, key string, payload any, runAt time.Time) (bool, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	j := Job{
		Type:        typ,
		Payload:     b,
		RunAt:       runAt.UTC(),
		Status:      StatusPending,
		MaxAttempts: 8,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if key != "" {
		j.DedupeKey = &key
	}

	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(&j)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// EnqueueReclassify schedules a relink pass unless the most recent one was
// for the same fingerprint and did not fail. Going back to an earlier
// taxonomy therefore queues a new pass.
func (r *Repo) EnqueueReclassify(ctx context.Context, fingerprint string) (bool, error) {
	var last Job
	res := r.DB.WithContext(ctx).
		Where("type = ?", TypeReclassify).
		Order("id DESC").
		Limit(1).
		Find(&last)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 && last.Status != StatusFailed {
		var p reclassifyPayload
		if err := json.Unmarshal(last.Payload, &p); err == nil && p.Fingerprint == fingerprint {
			return false, nil
		}
	}

	return r.Enqueue(ctx, TypeReclassify, "reclassify:"+fingerprint, reclassifyPayload{
		Fingerprint: fingerprint,
	}, time.Now())
}

// Claim marks the oldest due job as running for workerID and returns it, or
// nil when nothing is due. On postgres concurrent workers skip each other's
// locked rows; sqlite serializes writers instead.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	var claimed *Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		if err := tx.Model(&Job{}).
			Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", StatusRunning, now.Add(-stuckAfter)).
			Updates(map[string]any{
				"status":     StatusPending,
				"locked_by":  nil,
				"locked_at":  nil,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		var job Job
		res := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at ASC").Order("id ASC").
			Limit(1).
			Find(&job)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		job.Status = StatusRunning
		job.LockedBy = &workerID
		job.LockedAt = &now
		job.UpdatedAt = now
		if err := tx.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":     job.Status,
			"locked_by":  workerID,
			"locked_at":  now,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusDone,
		"dedupe_key": nil,
		"locked_by":  nil,
		"locked_at":  nil,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusFailed,
		"dedupe_key": nil,
		"last_error": errMsg,
		"locked_by":  nil,
		"locked_at":  nil,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusPending,
		"attempts":   attempts,
		"run_at":     runAt.UTC(),
		"locked_by":  nil,
		"locked_at":  nil,
		"last_error": errMsg,
		"updated_at": time.Now().UTC(),
	}).Error
}
