package jobs

import (
	"context"
	"errors"
	"math"
	"time"

	"ideavote/internal/vote"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Queue is the subset of Repo the worker drives.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(id uint64) error
	MarkFailed(id uint64, errMsg string) error
	RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error
}

type Worker struct {
	ID       string
	Repo     Queue
	Ledger   vote.Store
	Syncer   vote.Syncer
	Interval time.Duration
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Repo.Claim(ctx, w.ID)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Str("worker", w.ID).Msg("worker claim error")
				}
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeVoteSync:
		w.handleSync(ctx, job)
	default:
		_ = w.Repo.MarkFailed(job.ID, "unknown job type")
	}
}

func (w *Worker) handleSync(ctx context.Context, job *Job) {
	var p SyncPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.JTI == "" {
		_ = w.Repo.MarkFailed(job.ID, "bad payload")
		return
	}

	counts, err := w.Ledger.Tally(ctx, vote.Target{Type: vote.TargetType(p.TargetType), ID: p.TargetID})
	if err != nil {
		w.retry(job, "tally: "+err.Error())
		return
	}

	if err := w.Syncer.SyncTotals(ctx, p.TargetType, p.TargetID, counts.Likes, counts.Dislikes, p.JTI); err != nil {
		w.retry(job, err.Error())
		return
	}

	log.Info().
		Uint64("job_id", job.ID).
		Str("target_id", p.TargetID).
		Str("jti", p.JTI).
		Int("attempts", job.Attempts+1).
		Msg("stats sync reconciled")
	_ = w.Repo.MarkDone(job.ID)
}

func (w *Worker) retry(job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		log.Error().Uint64("job_id", job.ID).Str("error", errMsg).Msg("stats sync gave up")
		_ = w.Repo.MarkFailed(job.ID, errMsg)
		return
	}

	_ = w.Repo.RetryLater(job.ID, attempts, time.Now().Add(Backoff(attempts)), errMsg)
}

// Backoff is 2^attempts seconds, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}
