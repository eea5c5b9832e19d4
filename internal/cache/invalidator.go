// Package cache keeps read-side views coherent with the vote ledger.
//
// Writers never update cached views; they delete every key a mutation may
// have affected. A reader that repopulates a key from stale data right after
// a delete leaves a bounded window that the next invalidation closes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const TrendingIdeasKey = "ideas:trending"

var ErrUnavailable = errors.New("cache store unavailable")

func IdeaDetailKey(ideaID string) string { return "idea:detail:" + ideaID }

// IdeaTallyKey names the shared tally view served by GET /votes.
func IdeaTallyKey(ideaID string) string { return "idea:tally:" + ideaID }

type Invalidator struct {
	Redis   redis.Cmdable
	Timeout time.Duration
}

// InvalidateIdea deletes the trending listing, the idea's detail view and
// its tally view in one DEL.
func (inv *Invalidator) InvalidateIdea(ctx context.Context, ideaID string) error {
	if inv.Redis == nil {
		return nil
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := inv.Redis.Del(ctx, TrendingIdeasKey, IdeaDetailKey(ideaID), IdeaTallyKey(ideaID)).Result()
	if err != nil {
		return fmt.Errorf("%w: del idea %s: %v", ErrUnavailable, ideaID, err)
	}
	log.Debug().Str("idea_id", ideaID).Int64("deleted", n).Msg("cache invalidated")
	return nil
}
