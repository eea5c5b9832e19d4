package vote

import (
	"context"
	"sync"
	"time"
)

type voteKey struct {
	targetType TargetType
	targetID   string
	userID     string
}

// MemoryStore is a Store for tests and local runs without Postgres. A single
// mutex gives it the serializable behaviour the SQL store gets from its
// transaction and unique indexes.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint64
	votes  map[voteKey]Vote
	tokens map[string]struct{}
	events []VoteEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		votes:  map[voteKey]Vote{},
		tokens: map[string]struct{}{},
	}
}

func (m *MemoryStore) Apply(ctx context.Context, b Ballot) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.tokens[b.Token]; seen {
		return "", ErrDuplicateRequest
	}

	k := voteKey{b.Target.Type, b.Target.ID, b.UserID}
	now := time.Now()

	var outcome Outcome
	existing, ok := m.votes[k]
	switch {
	case !ok:
		m.nextID++
		m.votes[k] = Vote{
			ID:               m.nextID,
			TargetType:       string(b.Target.Type),
			TargetID:         b.Target.ID,
			UserID:           b.UserID,
			Value:            b.Value,
			IdempotencyToken: b.Token,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		outcome = OutcomeCast
	case existing.Value == b.Value:
		delete(m.votes, k)
		outcome = OutcomeRemoved
	default:
		existing.Value = b.Value
		existing.IdempotencyToken = b.Token
		existing.UpdatedAt = now
		m.votes[k] = existing
		outcome = OutcomeChanged
	}

	m.tokens[b.Token] = struct{}{}
	m.events = append(m.events, VoteEvent{
		ID:             uint64(len(m.events) + 1),
		TargetType:     string(b.Target.Type),
		TargetID:       b.Target.ID,
		UserID:         b.UserID,
		Value:          b.Value,
		Outcome:        string(outcome),
		IdempotencyKey: b.Token,
		CreatedAt:      now,
	})
	return outcome, nil
}

func (m *MemoryStore) Tally(ctx context.Context, t Target) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var c Counts
	for k, v := range m.votes {
		if k.targetType != t.Type || k.targetID != t.ID {
			continue
		}
		switch v.Value {
		case Like:
			c.Likes++
		case Dislike:
			c.Dislikes++
		}
	}
	return c, nil
}

func (m *MemoryStore) Events() []VoteEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]VoteEvent(nil), m.events...)
}
