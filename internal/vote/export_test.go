package vote

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Lookup returns the caller's current vote on a target, if any.
func (s *GormStore) Lookup(ctx context.Context, t Target, userID string) (Vote, bool, error) {
	var v Vote
	err := s.DB.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", t.Type, t.ID, userID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Vote{}, false, nil
	}
	if err != nil {
		return Vote{}, false, err
	}
	return v, true, nil
}

func (m *MemoryStore) Lookup(_ context.Context, t Target, userID string) (Vote, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey{t.Type, t.ID, userID}]
	return v, ok, nil
}
