package jobs

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

type Repo struct {
	DB *gorm.DB
}

// EnqueueSync schedules a stats resend for a target. One pending job per
// target is enough since the worker sends current totals, so an older
// pending job for the same target is replaced.
func (r *Repo) EnqueueSync(ctx context.Context, targetType, targetID, jti string) error {
	payload, err := json.Marshal(SyncPayload{TargetType: targetType, TargetID: targetID, JTI: jti})
	if err != nil {
		return err
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
delete from jobs
where type = ?
  and status = 'PENDING'
  and payload->>'target_type' = ?
  and payload->>'target_id' = ?
`, TypeVoteSync, targetType, targetID).Error; err != nil {
			return err
		}

		j := Job{
			Type:    TypeVoteSync,
			Payload: payload,
			RunAt:   time.Now().Add(2 * time.Second),
			Status:  StatusPending,
		}
		return tx.Create(&j).Error
	})
}

// Claim one due job atomically using SKIP LOCKED.
// Works on Postgres.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// requeue jobs whose worker died mid-run
		tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - interval '5 minutes'
`)

		// FOR UPDATE SKIP LOCKED ensures no double-claim
		q := tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now()
  order by run_at asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, workerID)

		return q.Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(id uint64) error {
	return r.DB.Exec(`update jobs set status='DONE', locked_by=null, updated_at=now() where id=?`, id).Error
}

func (r *Repo) MarkFailed(id uint64, errMsg string) error {
	return r.DB.Exec(`update jobs set status='FAILED', locked_by=null, last_error=?, updated_at=now() where id=?`, errMsg, id).Error
}

func (r *Repo) RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.Exec(`
update jobs
set status='PENDING',
    attempts=?,
    run_at=?,
    locked_by=null,
    locked_at=null,
    last_error=?,
    updated_at=now()
where id=?`, attempts, runAt, errMsg, id).Error
}
