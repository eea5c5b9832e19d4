package comment

import (
	"context"
	"fmt"
	"strings"

	"ideavote/internal/metrics"
	"ideavote/internal/realtime"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Notifier struct {
	DB       *gorm.DB
	Realtime realtime.Publisher
}

type NotifyInput struct {
	RecipientID string
	ActorID     string
	Type        NotificationType
	Message     string
	TargetURL   string
}

// Notify stores the notification and its activity row together, then pushes
// new_notification to the recipient's channel. A failed push is logged only.
func (n *Notifier) Notify(ctx context.Context, in NotifyInput) (Notification, error) {
	channel := realtime.UserChannel(in.RecipientID)
	note := Notification{
		RecipientID: in.RecipientID,
		ActorID:     in.ActorID,
		Type:        in.Type,
		Message:     in.Message,
		TargetURL:   in.TargetURL,
	}

	payload, err := json.Marshal(map[string]any{
		"recipientId": in.RecipientID,
		"message":     in.Message,
		"type":        in.Type,
	})
	if err != nil {
		return Notification{}, err
	}

	err = n.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&note).Error; err != nil {
			return err
		}
		return tx.Create(&Activity{
			ActorID:  in.ActorID,
			Type:     activityFor(in.Type),
			TargetID: lastSegment(in.TargetURL),
			Payload:  payload,
			Channels: pq.StringArray{channel},
		}).Error
	})
	if err != nil {
		return Notification{}, fmt.Errorf("store notification: %w", err)
	}

	if n.Realtime != nil {
		if err := n.Realtime.Publish(channel, realtime.EventNewNotification, note); err != nil {
			metrics.SideEffectFailures.WithLabelValues("broadcast").Inc()
			log.Warn().Err(err).Str("channel", channel).Msg("notification push failed")
		}
	}
	return note, nil
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Total         int64          `json:"total"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
	UnreadCount   int64          `json:"unread_count"`
}

func (n *Notifier) List(ctx context.Context, recipientID string, page, limit int, unreadOnly bool) (NotificationPage, error) {
	page, limit = paging(page, limit, 20)

	q := n.DB.WithContext(ctx).Model(&Notification{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("read = false")
	}

	out := NotificationPage{Page: page, Limit: limit, Notifications: []Notification{}}
	if err := q.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return NotificationPage{}, err
	}
	if err := q.Session(&gorm.Session{}).
		Order("created_at desc, id desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&out.Notifications).Error; err != nil {
		return NotificationPage{}, err
	}
	if err := n.DB.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND read = false", recipientID).
		Count(&out.UnreadCount).Error; err != nil {
		return NotificationPage{}, err
	}
	return out, nil
}

// MarkRead flips read for the recipient's own notification only.
func (n *Notifier) MarkRead(ctx context.Context, id uint64, recipientID string) (Notification, error) {
	res := n.DB.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if res.Error != nil {
		return Notification{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Notification{}, ErrNotFound
	}

	var note Notification
	if err := n.DB.WithContext(ctx).First(&note, id).Error; err != nil {
		return Notification{}, err
	}
	return note, nil
}

func lastSegment(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}
