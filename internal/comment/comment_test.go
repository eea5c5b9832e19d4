package comment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ideavote/internal/cache"
)

func TestCreateInputNormalize(t *testing.T) {
	parent := "3f1b8f5e-6f0a-4c1e-9d38-1f7d2a9f0c11"
	blank := "  "
	bad := "not-a-uuid"

	tests := []struct {
		name    string
		in      CreateInput
		wantErr bool
		body    string
	}{
		{"ok", CreateInput{IdeaID: " idea-1 ", Body: " hello "}, false, "hello"},
		{"reply", CreateInput{IdeaID: "idea-1", ParentID: &parent, Body: "hi"}, false, "hi"},
		{"blank parent is top level", CreateInput{IdeaID: "idea-1", ParentID: &blank, Body: "hi"}, false, "hi"},
		{"bad parent", CreateInput{IdeaID: "idea-1", ParentID: &bad, Body: "hi"}, true, ""},
		{"missing idea", CreateInput{Body: "hi"}, true, ""},
		{"empty body", CreateInput{IdeaID: "idea-1", Body: "   "}, true, ""},
		{"script only", CreateInput{IdeaID: "idea-1", Body: "<script>alert(1)</script>"}, true, ""},
		{"strips script", CreateInput{IdeaID: "idea-1", Body: "nice<script>x()</script>"}, false, "nice"},
		{"too long", CreateInput{IdeaID: "idea-1", Body: strings.Repeat("a", MaxBodyLen+1)}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.normalize()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("want ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got.Body != tt.body {
				t.Errorf("body = %q, want %q", got.Body, tt.body)
			}
			if got.IdeaID != "idea-1" {
				t.Errorf("idea id = %q", got.IdeaID)
			}
		})
	}
}

func TestBlankParentBecomesNil(t *testing.T) {
	blank := ""
	got, err := CreateInput{IdeaID: "i", ParentID: &blank, Body: "b"}.normalize()
	if err != nil {
		t.Fatal(err)
	}
	if got.ParentID != nil {
		t.Fatalf("parent = %q, want nil", *got.ParentID)
	}
}

func TestListQueryNormalize(t *testing.T) {
	if _, err := (ListQuery{}).normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation without ids, got %v", err)
	}
	if _, err := (ListQuery{ParentID: "nope"}).normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation for bad parent, got %v", err)
	}

	q, err := ListQuery{IdeaID: "idea-1", Page: -2, Limit: 500}.normalize()
	if err != nil {
		t.Fatal(err)
	}
	if q.Page != 1 || q.Limit != 100 {
		t.Errorf("page=%d limit=%d", q.Page, q.Limit)
	}

	q, _ = ListQuery{IdeaID: "idea-1"}.normalize()
	if q.Limit != 10 {
		t.Errorf("default limit = %d", q.Limit)
	}
}

type fakeDirectory struct {
	owner string
	err   error
	calls int
}

func (f *fakeDirectory) OwnerOf(context.Context, string) (string, error) {
	f.calls++
	return f.owner, f.err
}

func TestRecipientFor(t *testing.T) {
	ctx := context.Background()
	parent := &Comment{ID: "p", AuthorID: "bob"}

	tests := []struct {
		name     string
		dir      *fakeDirectory
		comment  Comment
		parent   *Comment
		want     string
		wantType NotificationType
	}{
		{"owner of idea", &fakeDirectory{owner: "olga"}, Comment{AuthorID: "ann"}, nil, "olga", NotifyCommentOnIdea},
		{"owner comments own idea", &fakeDirectory{owner: "ann"}, Comment{AuthorID: "ann"}, nil, "", ""},
		{"owner unknown", &fakeDirectory{err: ErrOwnerUnknown}, Comment{AuthorID: "ann"}, nil, "", ""},
		{"reply", &fakeDirectory{owner: "olga"}, Comment{AuthorID: "ann"}, parent, "bob", NotifyReplyToComment},
		{"self reply", &fakeDirectory{owner: "olga"}, Comment{AuthorID: "bob"}, parent, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Service{Ideas: tt.dir}
			got, typ := s.recipientFor(ctx, tt.comment, tt.parent)
			if got != tt.want || typ != tt.wantType {
				t.Fatalf("got (%q,%q), want (%q,%q)", got, typ, tt.want, tt.wantType)
			}
			if tt.parent != nil && tt.dir.calls != 0 {
				t.Errorf("replies must not consult the idea directory")
			}
		})
	}
}

func TestHTTPIdeaDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ideas/idea-1":
			_, _ = w.Write([]byte(`{"owner_id":"olga"}`))
		case "/ideas/orphan":
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := &HTTPIdeaDirectory{BaseURL: srv.URL}
	owner, err := d.OwnerOf(context.Background(), "idea-1")
	if err != nil || owner != "olga" {
		t.Fatalf("OwnerOf = %q, %v", owner, err)
	}

	for _, id := range []string{"orphan", "missing"} {
		if _, err := d.OwnerOf(context.Background(), id); !errors.Is(err, ErrOwnerUnknown) {
			t.Errorf("%s: want ErrOwnerUnknown, got %v", id, err)
		}
	}

	var unset *HTTPIdeaDirectory
	if _, err := unset.OwnerOf(context.Background(), "idea-1"); !errors.Is(err, ErrOwnerUnknown) {
		t.Errorf("nil directory: want ErrOwnerUnknown, got %v", err)
	}
}

func TestAuthorSummary(t *testing.T) {
	if got := authorSummary("fa53b41a-e47a"); got.Name != "User fa53" || got.ID != "fa53b41a-e47a" {
		t.Errorf("got %+v", got)
	}
	if got := authorSummary("ab"); got.Name != "User ab" {
		t.Errorf("short id: got %+v", got)
	}
}

func TestActivityFor(t *testing.T) {
	tests := map[NotificationType]ActivityType{
		NotifyCommentOnIdea:  ActivityNewComment,
		NotifyReplyToComment: ActivityNewComment,
		NotifyVoteOnIdea:     ActivityNewVote,
		NotifyTeamInvite:     ActivityTeamInvite,
	}
	for in, want := range tests {
		if got := activityFor(in); got != want {
			t.Errorf("activityFor(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestLastSegment(t *testing.T) {
	for in, want := range map[string]string{
		"/ideas/abc":  "abc",
		"/ideas/abc/": "abc",
		"abc":         "abc",
	} {
		if got := lastSegment(in); got != want {
			t.Errorf("lastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCachedIdeaDirectory(t *testing.T) {
	owners, err := cache.NewLocal[string](16)
	if err != nil {
		t.Fatal(err)
	}
	next := &fakeDirectory{owner: "olga"}
	d := &CachedIdeaDirectory{Next: next, Cache: owners}

	for i := 0; i < 3; i++ {
		got, err := d.OwnerOf(context.Background(), "idea-1")
		if err != nil || got != "olga" {
			t.Fatalf("OwnerOf = %q, %v", got, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("directory calls = %d, want 1", next.calls)
	}

	failing := &fakeDirectory{err: ErrOwnerUnknown}
	d = &CachedIdeaDirectory{Next: failing, Cache: owners}
	for i := 0; i < 2; i++ {
		if _, err := d.OwnerOf(context.Background(), "idea-2"); !errors.Is(err, ErrOwnerUnknown) {
			t.Fatalf("err = %v", err)
		}
	}
	if failing.calls != 2 {
		t.Errorf("failed lookups must not be cached, calls = %d", failing.calls)
	}
}
