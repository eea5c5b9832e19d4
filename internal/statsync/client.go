// Package statsync delivers vote totals to the external statistics service.
//
// Delivery is at-least-once with a dedup key: every request carries the
// originating idempotency token in X-Idempotency-Key and the receiver is
// expected to apply each key once. Totals are sent rather than deltas, so a
// redelivery can only move the receiver toward the ledger's state. Dispatch
// is not serialized per target; two syncs racing for the same target may
// land out of commit order.
package statsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ideavote/internal/metrics"

	"github.com/goccy/go-json"
)

const syncPath = "/stats/votes/sync"

var (
	ErrUnavailable   = errors.New("statistics service unavailable")
	ErrMissingKey    = errors.New("idempotency key is required for sync")
	ErrNotConfigured = errors.New("statistics sync not configured")
)

type Totals struct {
	TargetID     string `json:"target_id"`
	TargetType   string `json:"target_type"`
	LikeCount    int64  `json:"likeCount"`
	DislikeCount int64  `json:"dislikeCount"`
	JTI          string `json:"jti"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{},
		Timeout: timeout,
	}
}

// SyncTotals satisfies vote.Syncer.
func (c *Client) SyncTotals(ctx context.Context, targetType, targetID string, likes, dislikes int64, token string) error {
	return c.Send(ctx, Totals{
		TargetID:     targetID,
		TargetType:   targetType,
		LikeCount:    likes,
		DislikeCount: dislikes,
		JTI:          token,
	})
}

// Send posts one Totals payload. Timeouts, transport errors and non-2xx
// answers all come back wrapped in ErrUnavailable.
func (c *Client) Send(ctx context.Context, t Totals) error {
	if c == nil || c.BaseURL == "" {
		return ErrNotConfigured
	}
	if t.JTI == "" {
		return ErrMissingKey
	}

	body, err := json.Marshal(t)
	if err != nil {
		return err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+syncPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", t.JTI)

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		metrics.SyncDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.SyncDeliveries.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: status %d (jti=%s)", ErrUnavailable, resp.StatusCode, t.JTI)
	}
	metrics.SyncDeliveries.WithLabelValues("ok").Inc()
	return nil
}
