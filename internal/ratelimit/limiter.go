// Package ratelimit gates actions per caller with a Redis fixed-window
// counter.
//
// The window starts at the first request and lasts Rule.Window, so a caller
// can spend up to 2*Limit requests across a window boundary. Stricter
// limiting (sliding log, token bucket) can replace the script behind the
// same Allow contract.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ClassVote    = "vote"
	ClassComment = "comment"
)

var ErrUnknownClass = errors.New("unknown rate limit class")

// windowScript increments the counter and reads its TTL in one atomic step.
// A counter without expiry (first hit of a window, or an EXPIRE lost to a
// crash) gets the window set here. Returns {count, ttl_seconds}.
var windowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("TTL", KEYS[1])
if ttl < 0 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

type Rule struct {
	Limit  int
	Window time.Duration
}

type Decision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	RetryAfterSeconds int
}

type Limiter struct {
	rdb    redis.Scripter
	rules  map[string]Rule
	prefix string
}

func New(rdb redis.Scripter, rules map[string]Rule) *Limiter {
	return &Limiter{rdb: rdb, rules: rules, prefix: "RL"}
}

func (l *Limiter) Rule(class string) (Rule, bool) {
	r, ok := l.rules[class]
	return r, ok
}

// Allow spends one slot of callerKey's budget for class. Denied attempts
// still spend a slot.
func (l *Limiter) Allow(ctx context.Context, class, callerKey string) (Decision, error) {
	rule, ok := l.rules[class]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	window := windowSeconds(rule.Window)

	key := fmt.Sprintf("%s:%s:%s", l.prefix, class, callerKey)
	res, err := windowScript.Run(ctx, l.rdb, []string{key}, window).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	count, ttl := res[0], res[1]

	d := Decision{Limit: rule.Limit}
	if count > int64(rule.Limit) {
		d.RetryAfterSeconds = int(ttl)
		if ttl <= 0 {
			d.RetryAfterSeconds = int(window)
		}
		return d, nil
	}
	d.Allowed = true
	d.Remaining = rule.Limit - int(count)
	return d, nil
}

func windowSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
