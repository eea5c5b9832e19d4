package vote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the vote ledger. Apply runs the toggle state machine atomically;
// Tally groups the current rows of a target by sign.
type Store interface {
	Apply(ctx context.Context, b Ballot) (Outcome, error)
	Tally(ctx context.Context, t Target) (Counts, error)
}

// Two first votes from the same user can race past the row lookup; the loser
// hits uq_votes_target_user and is replayed against the winner's row.
const maxApplyAttempts = 3

type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) Apply(ctx context.Context, b Ballot) (Outcome, error) {
	return retryApply(func() (Outcome, error) { return s.apply(ctx, b) })
}

// retryApply reruns fn while it loses the first-vote race, up to
// maxApplyAttempts, and translates the final error.
func retryApply(fn func() (Outcome, error)) (Outcome, error) {
	for attempt := 1; ; attempt++ {
		outcome, err := fn()
		if err == nil {
			return outcome, nil
		}
		retry, err := classifyApplyErr(err)
		if !retry || attempt >= maxApplyAttempts {
			return "", err
		}
	}
}

// classifyApplyErr maps a failed ledger transaction: a token index
// violation is a replay, a target/user violation is a lost race worth
// retrying, anything else passes through.
func classifyApplyErr(err error) (retry bool, out error) {
	switch {
	case isUniqueViolation(err, IndexEventToken), isUniqueViolation(err, IndexVoteToken):
		return false, ErrDuplicateRequest
	case isUniqueViolation(err, IndexTargetUser):
		return true, err
	default:
		return false, err
	}
}

func (s *GormStore) apply(ctx context.Context, b Ballot) (Outcome, error) {
	var outcome Outcome

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Vote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("target_type = ? AND target_id = ? AND user_id = ?", b.Target.Type, b.Target.ID, b.UserID).
			First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			v := Vote{
				TargetType:       string(b.Target.Type),
				TargetID:         b.Target.ID,
				UserID:           b.UserID,
				Value:            b.Value,
				IdempotencyToken: b.Token,
			}
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
			outcome = OutcomeCast
		case err != nil:
			return err
		case existing.Value == b.Value:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			outcome = OutcomeRemoved
		default:
			if err := tx.Model(&existing).Updates(map[string]any{
				"value":             b.Value,
				"idempotency_token": b.Token,
				"updated_at":        time.Now(),
			}).Error; err != nil {
				return err
			}
			outcome = OutcomeChanged
		}

		return tx.Create(&VoteEvent{
			TargetType:     string(b.Target.Type),
			TargetID:       b.Target.ID,
			UserID:         b.UserID,
			Value:          b.Value,
			Outcome:        string(outcome),
			IdempotencyKey: b.Token,
		}).Error
	})

	return outcome, err
}

func (s *GormStore) Tally(ctx context.Context, t Target) (Counts, error) {
	var row struct {
		LikeCount    int64
		DislikeCount int64
	}
	err := s.DB.WithContext(ctx).Model(&Vote{}).
		Select(`coalesce(sum(case when value = 1 then 1 else 0 end), 0) as like_count,
coalesce(sum(case when value = -1 then 1 else 0 end), 0) as dislike_count`).
		Where("target_type = ? AND target_id = ?", t.Type, t.ID).
		Scan(&row).Error
	if err != nil {
		return Counts{}, fmt.Errorf("tally %s:%s: %w", t.Type, t.ID, err)
	}
	return Counts{Likes: row.LikeCount, Dislikes: row.DislikeCount}, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
