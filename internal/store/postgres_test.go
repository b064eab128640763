package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oriys/contentcache/internal/domain"
)

//go:embed testdata/schema.sql
var testSchema string

// newTestStore connects to CONTENTCACHE_TEST_PG_DSN (a URL DSN) and gives
// each test its own schema. Tests skip when the variable is unset.
func newTestStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("CONTENTCACHE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("CONTENTCACHE_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(admin.Close)

	schema := fmt.Sprintf("cc_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { _, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE") })

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	s, err := NewPostgresStore(ctx, u.String())
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, err := s.primary.Exec(ctx, testSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return s, s.primary
}

func TestUserProfileRoundTrip(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	var id int64
	if err := db.QueryRow(ctx, `INSERT INTO user_basic (user_name, mobile) VALUES ('ann', '100') RETURNING user_id`).Scan(&id); err != nil {
		t.Fatal(err)
	}

	p, err := s.GetUserProfile(ctx, id)
	if err != nil {
		t.Fatalf("GetUserProfile: %v", err)
	}
	if p.Name != "ann" || p.Photo != "" {
		t.Fatalf("unexpected profile %+v", p)
	}

	name := "anna"
	if err := s.UpdateUserProfile(ctx, id, domain.ProfileUpdate{Name: &name}); err != nil {
		t.Fatal(err)
	}
	if p, _ = s.GetUserProfile(ctx, id); p.Name != "anna" || p.Mobile != "100" {
		t.Fatalf("expected only the name to change, got %+v", p)
	}

	if _, err := s.GetUserProfile(ctx, id+1000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateUserProfile(ctx, id+1000, domain.ProfileUpdate{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetRelationReturnsPrevious(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	steps := []struct {
		kind domain.RelationKind
		prev domain.RelationKind
	}{
		{domain.RelationFollow, domain.RelationDeleted},
		{domain.RelationFollow, domain.RelationFollow},
		{domain.RelationBlacklist, domain.RelationFollow},
		{domain.RelationDeleted, domain.RelationBlacklist},
	}
	for i, step := range steps {
		prev, _, err := s.SetRelation(ctx, 1, 2, step.kind)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if prev != step.prev {
			t.Fatalf("step %d: expected previous %d, got %d", i, step.prev, prev)
		}
	}
}

func TestFollowListingsAndAggregates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, target := range []int64{2, 3, 4} {
		if _, _, err := s.SetRelation(ctx, 1, target, domain.RelationFollow); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := s.SetRelation(ctx, 1, 3, domain.RelationDeleted); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.SetRelation(ctx, 5, 2, domain.RelationFollow); err != nil {
		t.Fatal(err)
	}

	refs, err := s.QueryOrdered(ctx, UserFollowingsQuery, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 || refs[0].ID != 4 || refs[1].ID != 2 {
		t.Fatalf("expected [4 2] newest first, got %+v", refs)
	}

	pairs, err := s.AggregateGroupCount(ctx, UserFollowersAggregate)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[int64]int64{}
	for _, p := range pairs {
		counts[p.ID] = p.Count
	}
	if counts[2] != 2 || counts[4] != 1 || counts[3] != 0 {
		t.Fatalf("unexpected follower counts %v", counts)
	}
}

func TestAttitudeAndCollection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if att, err := s.GetAttitude(ctx, 1, 9); err != nil || att != domain.AttitudeNone {
		t.Fatalf("expected none, got %d %v", att, err)
	}
	prev, err := s.SetAttitude(ctx, 1, 9, domain.AttitudeLiking)
	if err != nil || prev != domain.AttitudeNone {
		t.Fatalf("expected previous none, got %d %v", prev, err)
	}
	prev, err = s.SetAttitude(ctx, 1, 9, domain.AttitudeNone)
	if err != nil || prev != domain.AttitudeLiking {
		t.Fatalf("expected previous liking, got %d %v", prev, err)
	}
	if att, _ := s.GetAttitude(ctx, 1, 9); att != domain.AttitudeNone {
		t.Fatalf("expected cleared attitude, got %d", att)
	}

	for i, step := range []struct {
		collected, changed bool
	}{{true, true}, {true, false}, {false, true}, {false, false}} {
		changed, _, err := s.SetCollection(ctx, 1, 9, step.collected)
		if err != nil {
			t.Fatal(err)
		}
		if changed != step.changed {
			t.Fatalf("step %d: expected changed=%v", i, step.changed)
		}
	}
}

func TestCommentsPinnedFirst(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	first, err := s.InsertComment(ctx, domain.NewComment{UserID: 1, ArticleID: 7, Content: "a"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.InsertComment(ctx, domain.NewComment{UserID: 1, ArticleID: 7, Content: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertComment(ctx, domain.NewComment{UserID: 1, ArticleID: 7, ParentID: first.ID, Content: "reply"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(ctx, `UPDATE news_comment SET is_top = TRUE WHERE comment_id = $1`, first.ID); err != nil {
		t.Fatal(err)
	}

	refs, err := s.QueryOrdered(ctx, ArticleCommentsQuery, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 || refs[0].ID != first.ID || !refs[0].Pinned || refs[1].ID != second.ID {
		t.Fatalf("expected pinned comment first and no replies, got %+v", refs)
	}

	got, err := s.GetComments(ctx, []int64{first.ID, second.ID, 99999})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(got))
	}
}
