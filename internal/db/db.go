package db

import (
	"fmt"

	"ideavote/internal/comment"
	"ideavote/internal/jobs"
	"ideavote/internal/vote"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&vote.Vote{},
		&vote.VoteEvent{},
		&comment.Comment{},
		&comment.Notification{},
		&comment.Activity{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	// Ledger uniqueness is enforced here; the vote store maps violations by name.
	unique := []string{
		`create unique index if not exists ` + vote.IndexTargetUser + ` on votes(target_type, target_id, user_id);`,
		`create unique index if not exists ` + vote.IndexVoteToken + ` on votes(idempotency_token);`,
		`create unique index if not exists ` + vote.IndexEventToken + ` on vote_events(idempotency_key);`,
	}
	for _, s := range unique {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("unique index exec failed: %w (sql=%s)", err, s)
		}
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_votes_target on votes(target_type, target_id);`,
		`create index if not exists idx_vote_events_target on vote_events(target_type, target_id, id);`,
		`create index if not exists idx_comments_thread on comments(idea_id, parent_id, created_at desc);`,
		`create index if not exists idx_notifications_inbox on notifications(recipient_id, read, created_at desc);`,
		`create index if not exists idx_activities_created on activities(created_at desc);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
