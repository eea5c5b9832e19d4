package vote_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"ideavote/internal/db"
	"ideavote/internal/vote"

	"gorm.io/gorm"
)

// Runs against a disposable Postgres database named by TEST_DATABASE_URL.
func setupPG(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	gdb, err := db.Connect(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := gdb.Exec(`drop table if exists votes, vote_events cascade`).Error; err != nil {
		t.Fatalf("clean: %v", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestGormStoreToggle(t *testing.T) {
	store := &vote.GormStore{DB: setupPG(t)}
	ctx := context.Background()
	target := vote.Target{Type: vote.TargetIdea, ID: "idea-pg"}

	steps := []struct {
		value   int
		outcome vote.Outcome
		counts  vote.Counts
	}{
		{vote.Like, vote.OutcomeCast, vote.Counts{Likes: 1}},
		{vote.Dislike, vote.OutcomeChanged, vote.Counts{Dislikes: 1}},
		{vote.Dislike, vote.OutcomeRemoved, vote.Counts{}},
	}
	for i, s := range steps {
		out, err := store.Apply(ctx, vote.Ballot{Target: target, UserID: "u1", Value: s.value, Token: fmt.Sprintf("pg-%d", i)})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if out != s.outcome {
			t.Errorf("step %d: outcome = %s, want %s", i, out, s.outcome)
		}
		c, err := store.Tally(ctx, target)
		if err != nil {
			t.Fatal(err)
		}
		if c != s.counts {
			t.Errorf("step %d: counts = %+v, want %+v", i, c, s.counts)
		}
	}

	_, err := store.Apply(ctx, vote.Ballot{Target: target, UserID: "u1", Value: vote.Like, Token: "pg-0"})
	if !errors.Is(err, vote.ErrDuplicateRequest) {
		t.Fatalf("replay err = %v, want ErrDuplicateRequest", err)
	}
}

func TestGormStoreConcurrentSameUser(t *testing.T) {
	store := &vote.GormStore{DB: setupPG(t)}
	target := vote.Target{Type: vote.TargetIdea, ID: "idea-race"}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Apply(context.Background(), vote.Ballot{
				Target: target, UserID: "racer", Value: vote.Like, Token: fmt.Sprintf("race-%d", i),
			})
			if err != nil {
				t.Errorf("apply %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	// Two serialized casts of the same value toggle back to no row.
	if _, ok, err := store.Lookup(context.Background(), target, "racer"); err != nil || ok {
		t.Fatalf("lookup ok=%v err=%v, want no row", ok, err)
	}
}
