package vote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ideavote/internal/metrics"

	"github.com/rs/zerolog/log"
)

const maxTargetIDLen = 64

// Warnings attached to a successful cast when a post-commit side effect
// failed. The vote itself stands.
const (
	WarnSyncDeferred    = "statistics sync deferred"
	WarnCacheInvalidate = "cache invalidation failed"
)

// Invalidator drops cached read views of an idea.
type Invalidator interface {
	InvalidateIdea(ctx context.Context, ideaID string) error
}

// Syncer pushes current totals to the statistics service.
type Syncer interface {
	SyncTotals(ctx context.Context, targetType, targetID string, likes, dislikes int64, token string) error
}

// SyncQueue records a failed sync for later reconciliation.
type SyncQueue interface {
	EnqueueSync(ctx context.Context, targetType, targetID, token string) error
}

type Service struct {
	Store Store
	Cache Invalidator
	Sync  Syncer
	Queue SyncQueue

	// TxTimeout bounds the ledger transaction. It runs detached from the
	// request context so a client abort cannot cut it short.
	TxTimeout time.Duration
}

type CastInput struct {
	TargetType string
	TargetID   string
	UserID     string
	Value      int
	Token      string
}

type Result struct {
	Outcome  Outcome
	Counts   Counts
	Warnings []string
}

// ParseTarget normalizes a caller-supplied target. Every reader and writer
// goes through it so cache keys and ledger rows agree on the id.
func ParseTarget(targetType, targetID string) (Target, error) {
	tt := TargetType(strings.TrimSpace(strings.ToLower(targetType)))
	id := strings.TrimSpace(targetID)

	switch {
	case !tt.Valid():
		return Target{}, fmt.Errorf("%w: target_type must be idea or comment", ErrValidation)
	case id == "" || len(id) > maxTargetIDLen:
		return Target{}, fmt.Errorf("%w: target_id required", ErrValidation)
	}
	return Target{Type: tt, ID: id}, nil
}

func (in CastInput) ballot() (Ballot, error) {
	target, err := ParseTarget(in.TargetType, in.TargetID)
	if err != nil {
		return Ballot{}, err
	}

	switch {
	case in.Value != Like && in.Value != Dislike:
		return Ballot{}, fmt.Errorf("%w: value must be 1 or -1", ErrValidation)
	case in.UserID == "":
		return Ballot{}, fmt.Errorf("%w: caller identity missing", ErrValidation)
	case in.Token == "":
		return Ballot{}, fmt.Errorf("%w: idempotency token missing", ErrValidation)
	}

	return Ballot{
		Target: target,
		UserID: in.UserID,
		Value:  in.Value,
		Token:  in.Token,
	}, nil
}

// Cast applies one castVote request and answers with the target's current
// totals. Only a ledger failure fails the call; cache and sync problems are
// logged and reported as warnings.
func (s *Service) Cast(ctx context.Context, in CastInput) (Result, error) {
	b, err := in.ballot()
	if err != nil {
		return Result{}, err
	}

	detached := context.WithoutCancel(ctx)
	txCtx, cancel := context.WithTimeout(detached, s.txTimeout())
	defer cancel()

	outcome, err := s.Store.Apply(txCtx, b)
	if err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			metrics.DuplicateRequests.Inc()
			log.Info().Str("jti", b.Token).Str("target_id", b.Target.ID).Msg("replayed vote rejected")
			return Result{}, err
		}
		return Result{}, fmt.Errorf("apply vote: %w", err)
	}
	metrics.VotesApplied.WithLabelValues(string(b.Target.Type), string(outcome)).Inc()

	res := Result{Outcome: outcome}
	if w := s.invalidate(detached, b.Target); w != "" {
		res.Warnings = append(res.Warnings, w)
	}

	counts, err := s.Store.Tally(txCtx, b.Target)
	if err != nil {
		// The vote is committed; let reconciliation deliver totals later.
		s.enqueue(detached, b)
		return Result{}, err
	}
	res.Counts = counts

	if w := s.sync(detached, b, counts); w != "" {
		res.Warnings = append(res.Warnings, w)
	}

	log.Debug().
		Str("target_type", string(b.Target.Type)).
		Str("target_id", b.Target.ID).
		Str("user_id", b.UserID).
		Str("outcome", string(outcome)).
		Int64("likes", counts.Likes).
		Int64("dislikes", counts.Dislikes).
		Msg("vote applied")

	return res, nil
}

// Tally reads the current totals of a target from ParseTarget without
// touching the ledger.
func (s *Service) Tally(ctx context.Context, t Target) (Counts, error) {
	return s.Store.Tally(ctx, t)
}

func (s *Service) invalidate(ctx context.Context, t Target) string {
	if s.Cache == nil || t.Type != TargetIdea {
		return ""
	}
	if err := s.Cache.InvalidateIdea(ctx, t.ID); err != nil {
		metrics.SideEffectFailures.WithLabelValues("cache").Inc()
		log.Warn().Err(err).Str("idea_id", t.ID).Msg("cache invalidation failed")
		return WarnCacheInvalidate
	}
	return ""
}

func (s *Service) sync(ctx context.Context, b Ballot, c Counts) string {
	if s.Sync == nil {
		return ""
	}
	err := s.Sync.SyncTotals(ctx, string(b.Target.Type), b.Target.ID, c.Likes, c.Dislikes, b.Token)
	if err == nil {
		return ""
	}
	metrics.SideEffectFailures.WithLabelValues("sync").Inc()
	log.Warn().Err(err).Str("jti", b.Token).Str("target_id", b.Target.ID).Msg("stats sync failed, scheduling reconciliation")
	s.enqueue(ctx, b)
	return WarnSyncDeferred
}

func (s *Service) enqueue(ctx context.Context, b Ballot) {
	if s.Queue == nil {
		return
	}
	if err := s.Queue.EnqueueSync(ctx, string(b.Target.Type), b.Target.ID, b.Token); err != nil {
		log.Error().Err(err).Str("jti", b.Token).Str("target_id", b.Target.ID).Msg("enqueue sync reconciliation failed")
	}
}

func (s *Service) txTimeout() time.Duration {
	if s.TxTimeout <= 0 {
		return 10 * time.Second
	}
	return s.TxTimeout
}
