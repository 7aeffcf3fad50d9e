package jobs

import (
	"context"
	"math"
	"time"

	"memotags/internal/metrics"

	"go.uber.org/zap"
)

// Reclassifier rebuilds memo links against the current taxonomy.
type Reclassifier interface {
	Reclassify(ctx context.Context) (int, error)
}

type Worker struct {
	ID           string
	Repo         *Repo
	Reclassifier Reclassifier
	Log          *zap.Logger
	Metrics      *metrics.Collector
	Interval     time.Duration
}

func (w *Worker) Run(ctx context.Context) {
	iv := w.Interval
	if iv <= 0 {
		iv = 800 * time.Millisecond
	}
	ticker := time.NewTicker(iv)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil && ctx.Err() == nil {
				w.log().Warn("worker claim error", zap.String("worker_id", w.ID), zap.Error(err))
			}
		}
	}
}

// Tick claims and handles at most one job. It reports whether a job was
// handled; the error is only about claiming.
func (w *Worker) Tick(ctx context.Context) (bool, error) {
	job, err := w.Repo.Claim(ctx, w.ID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeReclassify:
		w.handleReclassify(ctx, job)
	default:
		w.fail(ctx, job, "unknown job type")
	}
}

func (w *Worker) handleReclassify(ctx context.Context, job *Job) {
	n, err := w.Reclassifier.Reclassify(ctx)
	if err != nil {
		w.retry(ctx, job, err.Error())
		return
	}
	if err := w.Repo.MarkDone(ctx, job.ID); err != nil {
		w.log().Error("mark job done", zap.Uint64("job_id", job.ID), zap.Error(err))
		return
	}
	w.Metrics.JobProcessed(job.Type, "done")
	w.log().Info("reclassify job done", zap.Uint64("job_id", job.ID), zap.Int("memos", n))
}

func (w *Worker) fail(ctx context.Context, job *Job, msg string) {
	if err := w.Repo.MarkFailed(ctx, job.ID, msg); err != nil {
		w.log().Error("mark job failed", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
	w.Metrics.JobProcessed(job.Type, "failed")
	w.log().Warn("job failed", zap.Uint64("job_id", job.ID), zap.String("type", job.Type), zap.String("error", msg))
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.fail(ctx, job, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := time.Now().Add(time.Duration(sec) * time.Second)

	if err := w.Repo.RetryLater(ctx, job.ID, attempts, next, errMsg); err != nil {
		w.log().Error("reschedule job", zap.Uint64("job_id", job.ID), zap.Error(err))
		return
	}
	w.Metrics.JobProcessed(job.Type, "retry")
	w.log().Warn("job rescheduled", zap.Uint64("job_id", job.ID), zap.Int("attempts", attempts), zap.Time("run_at", next))
}

func (w *Worker) log() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}
