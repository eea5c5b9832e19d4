package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ideavote/internal/vote"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// TallyView holds idea tallies in Redis so every instance reads the same
// entry and one InvalidateIdea clears it for all of them.
type TallyView struct {
	Redis   redis.Cmdable
	TTL     time.Duration
	Timeout time.Duration
}

func (v *TallyView) Get(ctx context.Context, ideaID string) (vote.Counts, bool, error) {
	ctx, cancel := v.bound(ctx)
	defer cancel()

	raw, err := v.Redis.Get(ctx, IdeaTallyKey(ideaID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return vote.Counts{}, false, nil
	}
	if err != nil {
		return vote.Counts{}, false, fmt.Errorf("%w: get tally %s: %v", ErrUnavailable, ideaID, err)
	}

	var c vote.Counts
	if err := json.Unmarshal(raw, &c); err != nil {
		return vote.Counts{}, false, nil
	}
	return c, true, nil
}

func (v *TallyView) Set(ctx context.Context, ideaID string, c vote.Counts) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ttl := v.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	ctx, cancel := v.bound(ctx)
	defer cancel()
	if err := v.Redis.Set(ctx, IdeaTallyKey(ideaID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set tally %s: %v", ErrUnavailable, ideaID, err)
	}
	return nil
}

func (v *TallyView) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return context.WithTimeout(ctx, timeout)
}
