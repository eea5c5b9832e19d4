package comment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ideavote/internal/metrics"
	"ideavote/internal/realtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// EditWindow is how long an author may edit their comment.
const EditWindow = 10 * time.Minute

// Invalidator drops cached read views of an idea.
type Invalidator interface {
	InvalidateIdea(ctx context.Context, ideaID string) error
}

type Service struct {
	DB       *gorm.DB
	Cache    Invalidator
	Realtime realtime.Publisher
	Ideas    IdeaDirectory
	Notifier *Notifier

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create stores a comment or reply, then runs its side effects: cache
// invalidation, comment_created on the idea channel, and a notification to
// the idea owner or parent author. Side-effect failures are logged only.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (Comment, error) {
	in, err := in.normalize()
	if err != nil {
		return Comment{}, err
	}

	var parent *Comment
	if in.ParentID != nil {
		p, err := s.find(ctx, *in.ParentID)
		if err != nil {
			return Comment{}, err
		}
		if p.IdeaID != in.IdeaID {
			return Comment{}, fmt.Errorf("%w: parent belongs to another idea", ErrValidation)
		}
		parent = &p
	}

	c := Comment{
		ID:        uuid.NewString(),
		IdeaID:    in.IdeaID,
		AuthorID:  authorID,
		ParentID:  in.ParentID,
		Body:      in.Body,
		CreatedAt: s.clock(),
		Author:    authorSummary(authorID),
	}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return Comment{}, fmt.Errorf("create comment: %w", err)
	}

	detached := context.WithoutCancel(ctx)
	s.invalidate(detached, c.IdeaID)
	s.publish(realtime.IdeaChannel(c.IdeaID), realtime.EventCommentCreated, c)

	recipient, typ := s.recipientFor(detached, c, parent)
	if recipient != "" && s.Notifier != nil {
		_, err := s.Notifier.Notify(detached, NotifyInput{
			RecipientID: recipient,
			ActorID:     authorID,
			Type:        typ,
			Message:     c.Author.Name + " commented on your post.",
			TargetURL:   "/ideas/" + c.IdeaID,
		})
		if err != nil {
			metrics.SideEffectFailures.WithLabelValues("notify").Inc()
			log.Error().Err(err).Str("comment_id", c.ID).Msg("notification failed")
		}
	}

	return c, nil
}

// recipientFor picks who hears about a new comment: the parent's author for
// replies, the idea owner for top-level comments, and nobody when that
// would be the commenter themself or the owner cannot be resolved.
func (s *Service) recipientFor(ctx context.Context, c Comment, parent *Comment) (string, NotificationType) {
	if parent != nil {
		if parent.AuthorID == c.AuthorID {
			return "", ""
		}
		return parent.AuthorID, NotifyReplyToComment
	}

	if s.Ideas == nil {
		return "", ""
	}
	owner, err := s.Ideas.OwnerOf(ctx, c.IdeaID)
	if err != nil {
		log.Warn().Err(err).Str("idea_id", c.IdeaID).Msg("idea owner lookup failed, skipping notification")
		return "", ""
	}
	if owner == c.AuthorID {
		return "", ""
	}
	return owner, NotifyCommentOnIdea
}

type Page struct {
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int64     `json:"total"`
	Comments []Comment `json:"comments"`
	NextPage *int      `json:"next_page"`
}

// List pages through top-level comments of an idea, or the replies to one
// comment, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	q, err := q.normalize()
	if err != nil {
		return Page{}, err
	}

	base := s.DB.WithContext(ctx).Model(&Comment{}).Where("is_deleted = false")
	if q.ParentID != "" {
		base = base.Where("parent_id = ?", q.ParentID)
	} else {
		base = base.Where("idea_id = ? AND parent_id IS NULL", q.IdeaID)
	}

	out := Page{Page: q.Page, Limit: q.Limit, Comments: []Comment{}}
	if err := base.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return Page{}, err
	}
	offset := (q.Page - 1) * q.Limit
	if err := base.Session(&gorm.Session{}).
		Order("created_at desc").
		Limit(q.Limit).
		Offset(offset).
		Find(&out.Comments).Error; err != nil {
		return Page{}, err
	}

	if err := s.fillChildrenCounts(ctx, out.Comments); err != nil {
		return Page{}, err
	}

	if int64(offset+len(out.Comments)) < out.Total {
		next := q.Page + 1
		out.NextPage = &next
	}
	return out, nil
}

func (s *Service) fillChildrenCounts(ctx context.Context, comments []Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}

	var rows []struct {
		ParentID string
		Count    int64
	}
	if err := s.DB.WithContext(ctx).Model(&Comment{}).
		Select("parent_id, count(*) as count").
		Where("parent_id IN ? AND is_deleted = false", ids).
		Group("parent_id").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ParentID] = r.Count
	}
	for i := range comments {
		comments[i].ChildrenCount = counts[comments[i].ID]
		comments[i].Author = authorSummary(comments[i].AuthorID)
	}
	return nil
}

// Update lets the author rewrite a comment within EditWindow of creating it.
func (s *Service) Update(ctx context.Context, id, userID string, in UpdateInput) (Comment, error) {
	in, err := in.normalize()
	if err != nil {
		return Comment{}, err
	}

	c, err := s.find(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	if c.AuthorID != userID {
		return Comment{}, fmt.Errorf("%w: not authorized to edit this comment", ErrForbidden)
	}
	now := s.clock()
	if now.Sub(c.CreatedAt) > EditWindow {
		return Comment{}, fmt.Errorf("%w: %w", ErrForbidden, ErrEditWindowClosed)
	}

	c.Body = in.Body
	c.EditedAt = &now
	if err := s.DB.WithContext(ctx).Model(&c).Updates(map[string]any{
		"body":      c.Body,
		"edited_at": now,
	}).Error; err != nil {
		return Comment{}, err
	}

	s.invalidate(context.WithoutCancel(ctx), c.IdeaID)
	return c, nil
}

// SoftDelete hides a comment on a moderator's behalf.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	c, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Model(&c).Update("is_deleted", true).Error; err != nil {
		return err
	}
	s.invalidate(context.WithoutCancel(ctx), c.IdeaID)
	return nil
}

func (s *Service) find(ctx context.Context, id string) (Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Comment{}, ErrNotFound
	}
	var c Comment
	err := s.DB.WithContext(ctx).Where("id = ? AND is_deleted = false", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	c.Author = authorSummary(c.AuthorID)
	return c, nil
}

func (s *Service) invalidate(ctx context.Context, ideaID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.InvalidateIdea(ctx, ideaID); err != nil {
		metrics.SideEffectFailures.WithLabelValues("cache").Inc()
		log.Warn().Err(err).Str("idea_id", ideaID).Msg("cache invalidation failed")
	}
}

func (s *Service) publish(channel, event string, payload any) {
	if s.Realtime == nil {
		return
	}
	if err := s.Realtime.Publish(channel, event, payload); err != nil {
		metrics.SideEffectFailures.WithLabelValues("broadcast").Inc()
		log.Warn().Err(err).Str("channel", channel).Str("event", event).Msg("realtime publish failed")
	}
}
