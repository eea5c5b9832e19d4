package comment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// IdeaDirectory resolves idea ownership from the service that owns ideas.
type IdeaDirectory interface {
	OwnerOf(ctx context.Context, ideaID string) (string, error)
}

type HTTPIdeaDirectory struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration
}

func (d *HTTPIdeaDirectory) OwnerOf(ctx context.Context, ideaID string) (string, error) {
	if d == nil || d.BaseURL == "" {
		return "", fmt.Errorf("%w: idea directory not configured", ErrOwnerUnknown)
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/ideas/"+url.PathEscape(ideaID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	hc := d.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOwnerUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: idea %s status %d", ErrOwnerUnknown, ideaID, resp.StatusCode)
	}

	var body struct {
		OwnerID string `json:"owner_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrOwnerUnknown, err)
	}
	if body.OwnerID == "" {
		return "", fmt.Errorf("%w: idea %s has no owner_id", ErrOwnerUnknown, ideaID)
	}
	return body.OwnerID, nil
}

// OwnerCache is the in-process store behind CachedIdeaDirectory.
type OwnerCache interface {
	Get(key string) (string, bool)
	Set(key string, v string, ttl time.Duration)
}

// CachedIdeaDirectory remembers resolved owners for TTL. Ownership does not
// change after an idea is created, so entries are never invalidated; failed
// lookups are not cached.
type CachedIdeaDirectory struct {
	Next  IdeaDirectory
	Cache OwnerCache
	TTL   time.Duration
}

func (d *CachedIdeaDirectory) OwnerOf(ctx context.Context, ideaID string) (string, error) {
	key := "idea:owner:" + ideaID
	if owner, ok := d.Cache.Get(key); ok {
		return owner, nil
	}

	owner, err := d.Next.OwnerOf(ctx, ideaID)
	if err != nil {
		return "", err
	}
	ttl := d.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	d.Cache.Set(key, owner, ttl)
	return owner, nil
}
