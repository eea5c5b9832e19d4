// Package realtime publishes events to room-scoped websocket subscribers.
//
// Delivery is best effort: no acknowledgement, no persistence, no replay.
// A subscriber that is offline or too slow misses the event and catches up
// through the regular paginated reads.
package realtime

import (
	"errors"
	"sync"
)

// ErrNotInitialized means Publish ran before the transport was attached at
// startup.
var ErrNotInitialized = errors.New("realtime transport not initialized")

const (
	EventCommentCreated  = "comment_created"
	EventNewNotification = "new_notification"
)

func IdeaChannel(ideaID string) string { return "idea:" + ideaID }
func UserChannel(userID string) string { return "user:" + userID }

// Transport fans an event out to a channel's current subscribers. It must
// not block on slow or missing subscribers.
type Transport interface {
	Emit(channel, event string, payload any)
}

// Publisher is what request handlers depend on.
type Publisher interface {
	Publish(channel, event string, payload any) error
}

// Broadcaster is the process-wide handle to the transport. It is created
// empty, wired into services, and attached once the transport is listening.
type Broadcaster struct {
	mu sync.RWMutex
	t  Transport
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

func (b *Broadcaster) Attach(t Transport) {
	b.mu.Lock()
	b.t = t
	b.mu.Unlock()
}

func (b *Broadcaster) Transport() (Transport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.t == nil {
		return nil, ErrNotInitialized
	}
	return b.t, nil
}

func (b *Broadcaster) Publish(channel, event string, payload any) error {
	t, err := b.Transport()
	if err != nil {
		return err
	}
	t.Emit(channel, event, payload)
	return nil
}
