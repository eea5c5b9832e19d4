package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ideavote/internal/auth"
	"ideavote/internal/cache"
	"ideavote/internal/comment"
	"ideavote/internal/config"
	"ideavote/internal/ratelimit"
	"ideavote/internal/vote"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type testEnv struct {
	srv   *httptest.Server
	jwt   *auth.JWT
	store *vote.MemoryStore
	redis *miniredis.Miniredis
}

func newTestEnv(t *testing.T, voteLimit int) *testEnv {
	t.Helper()
	return newTestEnvOn(t, voteLimit, miniredis.RunT(t), vote.NewMemoryStore())
}

// newTestEnvOn builds one service instance over a shared redis and ledger.
func newTestEnvOn(t *testing.T, voteLimit int, mr *miniredis.Miniredis, store *vote.MemoryStore) *testEnv {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inv := &cache.Invalidator{Redis: rdb}
	jwtSvc := auth.NewJWT("test-secret")

	h := NewRouter(config.Config{}, Deps{
		JWT: jwtSvc,
		Limiter: ratelimit.New(rdb, map[string]ratelimit.Rule{
			ratelimit.ClassVote:    {Limit: voteLimit, Window: time.Hour},
			ratelimit.ClassComment: {Limit: 10, Window: time.Hour},
		}),
		Votes:    &vote.Service{Store: store, Cache: inv},
		Tallies:  &cache.TallyView{Redis: rdb, TTL: 30 * time.Second},
		Comments: &comment.Service{},
		Notifier: &comment.Notifier{},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, jwt: jwtSvc, store: store, redis: mr}
}

func (e *testEnv) token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := e.jwt.Sign(user, role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestCastVoteToggleScenario(t *testing.T) {
	env := newTestEnv(t, 100)

	steps := []struct {
		value    int
		code     int
		likes    float64
		dislikes float64
		message  string
	}{
		{1, http.StatusCreated, 1, 0, "Vote successfully cast."},
		{-1, http.StatusOK, 0, 1, "Vote successfully changed."},
		{-1, http.StatusOK, 0, 0, "Vote successfully removed."},
	}

	for i, s := range steps {
		body := `{"target_type":"idea","target_id":"idea-1","value":` + jsonInt(s.value) + `}`
		resp, out := env.do(t, http.MethodPost, "/votes", env.token(t, "u1", "user"), body)
		if resp.StatusCode != s.code {
			t.Fatalf("step %d: status %d, want %d (%v)", i, resp.StatusCode, s.code, out)
		}
		if out["likeCount"] != s.likes || out["dislikeCount"] != s.dislikes {
			t.Fatalf("step %d: counts %v", i, out)
		}
		if out["message"] != s.message {
			t.Errorf("step %d: message %v", i, out["message"])
		}
	}
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestCastVoteReplayConflicts(t *testing.T) {
	env := newTestEnv(t, 100)
	tok := env.token(t, "u1", "user")
	body := `{"target_type":"comment","target_id":"c-9","value":1}`

	if resp, _ := env.do(t, http.MethodPost, "/votes", tok, body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first cast status %d", resp.StatusCode)
	}
	resp, _ := env.do(t, http.MethodPost, "/votes", tok, body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("replay status %d, want 409", resp.StatusCode)
	}

	c, _ := env.store.Tally(context.Background(), vote.Target{Type: vote.TargetComment, ID: "c-9"})
	if c.Likes != 1 {
		t.Fatalf("replay changed ledger: %+v", c)
	}
}

func TestCastVoteRejects(t *testing.T) {
	env := newTestEnv(t, 100)

	resp, out := env.do(t, http.MethodPost, "/votes", "", `{"target_type":"idea","target_id":"x","value":1}`)
	if resp.StatusCode != http.StatusUnauthorized || out["message"] == nil {
		t.Errorf("no token: %d %v", resp.StatusCode, out)
	}
	resp, _ = env.do(t, http.MethodPost, "/votes", "garbage", `{"target_type":"idea","target_id":"x","value":1}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: %d", resp.StatusCode)
	}

	for _, body := range []string{
		`{"target_type":"post","target_id":"x","value":1}`,
		`{"target_type":"idea","target_id":"x","value":2}`,
		`{"target_type":"idea","target_id":"","value":1}`,
		`not json`,
	} {
		resp, _ := env.do(t, http.MethodPost, "/votes", env.token(t, "u1", "user"), body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, resp.StatusCode)
		}
	}
	if n := len(env.store.Events()); n != 0 {
		t.Errorf("rejected requests reached the ledger: %d events", n)
	}
}

func TestCastVoteRateLimited(t *testing.T) {
	env := newTestEnv(t, 2)
	body := `{"target_type":"idea","target_id":"idea-rl","value":1}`

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/votes", env.token(t, "u1", "user"), body)
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i)
		}
		if resp.Header.Get("X-RateLimit-Limit") != "2" {
			t.Errorf("limit header = %q", resp.Header.Get("X-RateLimit-Limit"))
		}
	}

	resp, out := env.do(t, http.MethodPost, "/votes", env.token(t, "u1", "user"), body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "3600" {
		t.Errorf("Retry-After = %q", resp.Header.Get("Retry-After"))
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining = %q", resp.Header.Get("X-RateLimit-Remaining"))
	}
	if out["retry_after"] != float64(3600) {
		t.Errorf("body = %v", out)
	}

	// other callers have their own budget
	resp, _ = env.do(t, http.MethodPost, "/votes", env.token(t, "u2", "user"), body)
	if resp.StatusCode == http.StatusTooManyRequests {
		t.Fatal("u2 limited by u1's budget")
	}
}

func TestRateLimiterDownFailsOpen(t *testing.T) {
	env := newTestEnv(t, 1)
	env.redis.SetError("LOADING redis is loading")

	resp, _ := env.do(t, http.MethodPost, "/votes", env.token(t, "u1", "user"), `{"target_type":"comment","target_id":"c-1","value":1}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d, want 201 with limiter down", resp.StatusCode)
	}
}

func TestTallyCachedAndInvalidated(t *testing.T) {
	env := newTestEnv(t, 100)

	resp, out := env.do(t, http.MethodGet, "/votes/idea/idea-7", "", "")
	if resp.StatusCode != http.StatusOK || out["likeCount"] != float64(0) {
		t.Fatalf("tally: %d %v", resp.StatusCode, out)
	}

	env.do(t, http.MethodPost, "/votes", env.token(t, "u1", "user"), `{"target_type":"idea","target_id":"idea-7","value":1}`)

	_, out = env.do(t, http.MethodGet, "/votes/idea/idea-7", "", "")
	if out["likeCount"] != float64(1) {
		t.Fatalf("stale tally after vote: %v", out)
	}

	resp, _ = env.do(t, http.MethodGet, "/votes/post/idea-7", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad type status %d", resp.StatusCode)
	}
}

func TestTallyPaddedIDSharesCacheEntry(t *testing.T) {
	env := newTestEnv(t, 100)

	if _, out := env.do(t, http.MethodGet, "/votes/idea/%20i2", "", ""); out["likeCount"] != float64(0) {
		t.Fatalf("initial tally: %v", out)
	}
	if !env.redis.Exists(cache.IdeaTallyKey("i2")) {
		t.Fatal("tally view not stored under the normalized id")
	}

	resp, _ := env.do(t, http.MethodPost, "/votes", env.token(t, "u1", "user"), `{"target_type":"idea","target_id":"i2","value":1}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("cast status %d", resp.StatusCode)
	}

	_, out := env.do(t, http.MethodGet, "/votes/IDEA/%20i2%20", "", "")
	if out["likeCount"] != float64(1) {
		t.Fatalf("padded id served stale tally: %v", out)
	}
}

func TestTallyFreshAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	store := vote.NewMemoryStore()
	a := newTestEnvOn(t, 100, mr, store)
	b := newTestEnvOn(t, 100, mr, store)

	if _, out := a.do(t, http.MethodGet, "/votes/idea/i1", "", ""); out["likeCount"] != float64(0) {
		t.Fatalf("initial tally: %v", out)
	}

	resp, _ := b.do(t, http.MethodPost, "/votes", b.token(t, "u1", "user"), `{"target_type":"idea","target_id":"i1","value":1}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("cast status %d", resp.StatusCode)
	}

	if _, out := a.do(t, http.MethodGet, "/votes/idea/i1", "", ""); out["likeCount"] != float64(1) {
		t.Fatalf("instance a served stale tally: %v", out)
	}
}

func TestAdminRequiresModerator(t *testing.T) {
	env := newTestEnv(t, 100)

	resp, _ := env.do(t, http.MethodDelete, "/admin/comments/3f1b8f5e-6f0a-4c1e-9d38-1f7d2a9f0c11", env.token(t, "u1", "user"), "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 100)
	resp, err := http.Get(env.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health %d", resp.StatusCode)
	}
}
