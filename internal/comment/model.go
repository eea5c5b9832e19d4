package comment

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
)

type Comment struct {
	ID        string     `gorm:"type:uuid;primaryKey" json:"id"`
	IdeaID    string     `gorm:"size:64;not null" json:"idea_id"`
	AuthorID  string     `gorm:"size:64;not null;index" json:"author_id"`
	ParentID  *string    `gorm:"type:uuid" json:"parent_id"`
	Body      string     `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	EditedAt  *time.Time `gorm:"type:timestamptz" json:"edited_at"`
	IsDeleted bool       `gorm:"not null;default:false" json:"is_deleted"`

	// filled on reads, not stored
	ChildrenCount int64         `gorm:"-" json:"children_count"`
	Author        AuthorSummary `gorm:"-" json:"author"`
}

// AuthorSummary is the display data attached to comments. Profiles live in
// another service, so the name is derived from the author id.
type AuthorSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func authorSummary(authorID string) AuthorSummary {
	short := authorID
	if len(short) > 4 {
		short = short[:4]
	}
	return AuthorSummary{ID: authorID, Name: "User " + short}
}

type NotificationType string

const (
	NotifyCommentOnIdea  NotificationType = "COMMENT_ON_IDEA"
	NotifyReplyToComment NotificationType = "REPLY_TO_COMMENT"
	NotifyVoteOnIdea     NotificationType = "VOTE_ON_IDEA"
	NotifyTeamInvite     NotificationType = "TEAM_INVITE"
)

// Notification is delivered to exactly one recipient. Only Read changes, and
// only at the recipient's request.
type Notification struct {
	ID          uint64           `gorm:"primaryKey" json:"id"`
	RecipientID string           `gorm:"size:64;not null" json:"recipient_id"`
	ActorID     string           `gorm:"size:64" json:"actor_id"`
	Type        NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Message     string           `gorm:"type:text;not null" json:"message"`
	TargetURL   string           `gorm:"type:text" json:"target_url"`
	Read        bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time        `gorm:"not null;default:now()" json:"created_at"`
}

type ActivityType string

const (
	ActivityNewIdea    ActivityType = "NEW_IDEA"
	ActivityNewComment ActivityType = "NEW_COMMENT"
	ActivityNewVote    ActivityType = "NEW_VOTE"
	ActivityTeamInvite ActivityType = "TEAM_INVITE"
)

// activityFor maps a notification to the feed fact it records.
func activityFor(t NotificationType) ActivityType {
	switch t {
	case NotifyVoteOnIdea:
		return ActivityNewVote
	case NotifyTeamInvite:
		return ActivityTeamInvite
	default:
		return ActivityNewComment
	}
}

// Activity is the append-only feed of facts, with the realtime channels each
// fact was pushed to.
type Activity struct {
	ID        uint64          `gorm:"primaryKey" json:"id"`
	ActorID   string          `gorm:"size:64;index" json:"actor_id"`
	Type      ActivityType    `gorm:"type:varchar(32);not null" json:"type"`
	TargetID  string          `gorm:"size:64" json:"target_id"`
	Payload   json.RawMessage `gorm:"type:jsonb;not null;default:'{}'::jsonb" json:"payload"`
	Channels  pq.StringArray  `gorm:"type:text[];not null;default:'{}'" json:"channels"`
	CreatedAt time.Time       `gorm:"not null;default:now()" json:"created_at"`
}
