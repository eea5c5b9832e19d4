package vote

import (
	"time"
)

type TargetType string

const (
	TargetIdea    TargetType = "idea"
	TargetComment TargetType = "comment"
)

func (t TargetType) Valid() bool {
	return t == TargetIdea || t == TargetComment
}

const (
	Like    = 1
	Dislike = -1
)

type Outcome string

const (
	OutcomeCast    Outcome = "cast"
	OutcomeChanged Outcome = "changed"
	OutcomeRemoved Outcome = "removed"
)

// Unique index names; the store maps violations of these to domain errors.
const (
	IndexTargetUser = "uq_votes_target_user"
	IndexVoteToken  = "uq_votes_idempotency_token"
	IndexEventToken = "uq_vote_events_idempotency_key"
)

// Vote is one user's current stance on one target. At most one row exists
// per (target_type, target_id, user_id).
type Vote struct {
	ID               uint64    `gorm:"primaryKey"`
	TargetType       string    `gorm:"type:varchar(16);not null"`
	TargetID         string    `gorm:"size:64;not null"`
	UserID           string    `gorm:"size:64;not null;index"`
	Value            int       `gorm:"not null"`
	IdempotencyToken string    `gorm:"size:128;not null"`
	CreatedAt        time.Time `gorm:"not null;default:now()"`
	UpdatedAt        time.Time `gorm:"not null;default:now()"`
}

// VoteEvent is append-only. Its unique idempotency key outlives the vote it
// touched, so a replay is caught even after a toggle-off removed the row.
type VoteEvent struct {
	ID             uint64    `gorm:"primaryKey"`
	TargetType     string    `gorm:"type:varchar(16);not null"`
	TargetID       string    `gorm:"size:64;not null"`
	UserID         string    `gorm:"size:64;not null"`
	Value          int       `gorm:"not null"`
	Outcome        string    `gorm:"type:varchar(16);not null"`
	IdempotencyKey string    `gorm:"size:128;not null"`
	CreatedAt      time.Time `gorm:"not null;default:now()"`
}

type Target struct {
	Type TargetType
	ID   string
}

// Ballot is a validated castVote request.
type Ballot struct {
	Target Target
	UserID string
	Value  int
	Token  string
}

// Counts are the current totals for a target, never deltas.
type Counts struct {
	Likes    int64 `json:"likeCount"`
	Dislikes int64 `json:"dislikeCount"`
}

func (c Counts) Total() int64 { return c.Likes + c.Dislikes }
