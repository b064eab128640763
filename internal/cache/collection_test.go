package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/contentcache/internal/domain"
	"github.com/redis/go-redis/v9"
)

// stubChildren serves a fixed child list and counts queries.
type stubChildren struct {
	refs    []domain.Ref
	count   int64
	queries atomic.Int32
	err     error
}

func (s *stubChildren) query(context.Context, int64) ([]domain.Ref, error) {
	s.queries.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Ref(nil), s.refs...), nil
}

func (s *stubChildren) counter(context.Context, int64) int64 { return s.count }

func newTestCollection(t *testing.T, children *stubChildren, opts ...Option) (*Collection, func(int64) string) {
	t.Helper()
	_, client := newTestRedis(t)
	c := NewCollection(client, Strategy{
		Name:  "article_comments",
		Key:   ArticleCommentsKey,
		Count: children.counter,
		Query: children.query,
		TTL:   ArticleCommentsTTL,
	}, opts...)
	return c, ArticleCommentsKey
}

func at(sec int64) time.Time { return time.Unix(sec, 0) }

// descending builds n unpinned refs with ids n..1 at times 1000+id.
func descending(n int) []domain.Ref {
	refs := make([]domain.Ref, 0, n)
	for id := int64(n); id >= 1; id-- {
		refs = append(refs, domain.Ref{ID: id, At: at(1000 + id)})
	}
	return refs
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCollectionPinnedFirst(t *testing.T) {
	children := &stubChildren{
		count: 2,
		refs: []domain.Ref{
			{ID: 1, At: at(100), Pinned: true},
			{ID: 2, At: at(500)},
		},
	}
	c, _ := newTestCollection(t, children)
	ctx := context.Background()

	for _, path := range []string{"miss", "hit"} {
		page, err := c.GetPage(ctx, 10, 0, 10)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if !equalIDs(page.IDs, []int64{1, 2}) {
			t.Fatalf("%s: expected [1 2], got %v", path, page.IDs)
		}
		if page.Total != 2 || page.End != 500 || page.Last != 500 {
			t.Fatalf("%s: unexpected cursors %+v", path, page)
		}
	}
	if n := children.queries.Load(); n != 1 {
		t.Fatalf("expected 1 store query, got %d", n)
	}
}

func TestCollectionKnownEmptyParentSkipsStore(t *testing.T) {
	children := &stubChildren{count: 0, refs: descending(3)}
	c, _ := newTestCollection(t, children)

	page, err := c.GetPage(context.Background(), 10, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 || page.End != 0 || page.Last != 0 || len(page.IDs) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
	if n := children.queries.Load(); n != 0 {
		t.Fatalf("expected no store query, got %d", n)
	}
}

func TestCollectionEmptyStoreResult(t *testing.T) {
	children := &stubChildren{count: 4}
	c, key := newTestCollection(t, children)

	page, err := c.GetPage(context.Background(), 10, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 || len(page.IDs) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
	if n, _ := c.client.Exists(context.Background(), key(10)).Result(); n != 0 {
		t.Fatal("expected no index for an empty result")
	}
}

func TestCollectionNeverExceedsLimit(t *testing.T) {
	children := &stubChildren{count: 10, refs: descending(10)}
	c, _ := newTestCollection(t, children)
	ctx := context.Background()

	// Miss path.
	page, err := c.GetPage(ctx, 1, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(page.IDs, []int64{10, 9, 8}) {
		t.Fatalf("miss page: expected [10 9 8], got %v", page.IDs)
	}

	// Hit path, walking the cursor to the end.
	var all []int64
	all = append(all, page.IDs...)
	for page.Last != page.End {
		page, err = c.GetPage(ctx, 1, page.Last, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(page.IDs) > 3 {
			t.Fatalf("page exceeded limit: %v", page.IDs)
		}
		all = append(all, page.IDs...)
	}
	want := []int64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	if !equalIDs(all, want) {
		t.Fatalf("expected %v, got %v", want, all)
	}
	if page.End != 1001 {
		t.Fatalf("expected end cursor 1001, got %d", page.End)
	}
	if n := children.queries.Load(); n != 1 {
		t.Fatalf("expected 1 store query, got %d", n)
	}
}

func TestCollectionMissPathHonorsOffset(t *testing.T) {
	children := &stubChildren{count: 5, refs: descending(5)}
	c, _ := newTestCollection(t, children)

	page, err := c.GetPage(context.Background(), 1, 1004, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(page.IDs, []int64{3, 2}) {
		t.Fatalf("expected [3 2], got %v", page.IDs)
	}
	if page.Total != 5 || page.Last != 1002 || page.End != 1001 {
		t.Fatalf("unexpected cursors %+v", page)
	}
}

func TestCollectionIndexCarriesTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	children := &stubChildren{count: 2, refs: descending(2)}
	c := NewCollection(client, Strategy{
		Name: "article_comments", Key: ArticleCommentsKey, Count: children.counter,
		Query: children.query, TTL: ArticleCommentsTTL,
	})

	if _, err := c.GetPage(context.Background(), 5, 0, 10); err != nil {
		t.Fatal(err)
	}
	ttl := mr.TTL(ArticleCommentsKey(5))
	if ttl < ArticleCommentsTTL.Base || ttl >= ArticleCommentsTTL.Max() {
		t.Fatalf("index ttl %v outside class bounds", ttl)
	}
}

// failExpire fails every EXPIRE sent in a pipeline after it has run.
type failExpire struct{}

func (failExpire) DialHook(next redis.DialHook) redis.DialHook          { return next }
func (failExpire) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (failExpire) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		for _, cmd := range cmds {
			if cmd.Name() == "expire" {
				cmd.SetErr(errors.New("ERR injected failure"))
			}
		}
		return err
	}
}

func TestCollectionDropsIndexWithoutTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	client.AddHook(failExpire{})
	children := &stubChildren{count: 2, refs: descending(2)}
	c := NewCollection(client, Strategy{
		Name: "article_comments", Key: ArticleCommentsKey, Count: children.counter,
		Query: children.query, TTL: ArticleCommentsTTL,
	})

	page, err := c.GetPage(context.Background(), 5, 0, 10)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.Total != 2 || !equalIDs(page.IDs, []int64{2, 1}) || page.Last != 1001 {
		t.Fatalf("unexpected page %+v", page)
	}
	if mr.Exists(ArticleCommentsKey(5)) {
		t.Fatal("expected index without ttl to be deleted")
	}
}

func TestCollectionTieOrderStable(t *testing.T) {
	// Store order breaks ties numerically; the index breaks them by member bytes.
	children := &stubChildren{count: 3, refs: []domain.Ref{
		{ID: 10, At: at(1500)},
		{ID: 9, At: at(1500)},
		{ID: 8, At: at(1400)},
	}}
	c, _ := newTestCollection(t, children)
	ctx := context.Background()

	miss, err := c.GetPage(ctx, 5, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	hit, err := c.GetPage(ctx, 5, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{9, 10, 8}
	if !equalIDs(miss.IDs, want) || !equalIDs(hit.IDs, want) {
		t.Fatalf("expected %v on both paths, got miss=%v hit=%v", want, miss.IDs, hit.IDs)
	}
	if children.queries.Load() != 1 {
		t.Fatalf("expected one store query, got %d", children.queries.Load())
	}

	_, ids, err := c.GetRange(ctx, 6, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids, []int64{9, 10}) {
		t.Fatalf("expected range [9 10], got %v", ids)
	}
}

func TestCollectionAddRespectsGuard(t *testing.T) {
	mr, client := newTestRedis(t)
	children := &stubChildren{count: 2, refs: descending(2)}
	c := NewCollection(client, Strategy{
		Name: "article_comments", Key: ArticleCommentsKey, Count: children.counter,
		Query: children.query, TTL: ArticleCommentsTTL,
	})
	ctx := context.Background()
	key := ArticleCommentsKey(5)

	if c.Add(ctx, 5, domain.Ref{ID: 99, At: at(2000)}) {
		t.Fatal("expected Add on an unpopulated index to be a no-op")
	}
	if mr.Exists(key) {
		t.Fatal("Add must not create an index")
	}

	if _, err := c.GetPage(ctx, 5, 0, 10); err != nil {
		t.Fatal(err)
	}
	mr.SetTTL(key, 3*time.Second)
	if c.Add(ctx, 5, domain.Ref{ID: 99, At: at(2000)}) {
		t.Fatal("expected Add below the guard to be a no-op")
	}
	members, _ := mr.ZMembers(key)
	if len(members) != 2 {
		t.Fatalf("expected index unchanged, got %v", members)
	}

	mr.SetTTL(key, time.Minute)
	if !c.Add(ctx, 5, domain.Ref{ID: 99, At: at(2000)}) {
		t.Fatal("expected Add above the guard to apply")
	}
	page, _ := c.GetPage(ctx, 5, 0, 1)
	if !equalIDs(page.IDs, []int64{99}) {
		t.Fatalf("expected new child first, got %v", page.IDs)
	}
}

func TestCollectionGetRange(t *testing.T) {
	children := &stubChildren{count: 5, refs: descending(5)}
	c, _ := newTestCollection(t, children)
	ctx := context.Background()

	total, ids, err := c.GetRange(ctx, 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || !equalIDs(ids, []int64{3, 2}) {
		t.Fatalf("miss: expected 5 [3 2], got %d %v", total, ids)
	}
	total, ids, _ = c.GetRange(ctx, 1, 3, 2)
	if total != 5 || !equalIDs(ids, []int64{1}) {
		t.Fatalf("hit: expected 5 [1], got %d %v", total, ids)
	}
	_, ids, _ = c.GetRange(ctx, 1, 4, 2)
	if len(ids) != 0 {
		t.Fatalf("expected empty page past the end, got %v", ids)
	}
}

func TestCollectionStoreErrorPropagates(t *testing.T) {
	children := &stubChildren{count: 1, err: errors.New("replica lag")}
	c, _ := newTestCollection(t, children)

	if _, err := c.GetPage(context.Background(), 1, 0, 5); err == nil {
		t.Fatal("expected store error")
	}
}

func TestCollectionDegradesOnBackendError(t *testing.T) {
	mr, client := newTestRedis(t)
	children := &stubChildren{count: 3, refs: descending(3)}
	c := NewCollection(client, Strategy{
		Name: "article_comments", Key: ArticleCommentsKey, Count: children.counter,
		Query: children.query, TTL: ArticleCommentsTTL,
	})

	mr.SetError("ERR injected failure")
	page, err := c.GetPage(context.Background(), 1, 0, 2)
	mr.SetError("")
	if err != nil {
		t.Fatalf("expected store fallback, got %v", err)
	}
	if !equalIDs(page.IDs, []int64{3, 2}) {
		t.Fatalf("expected [3 2], got %v", page.IDs)
	}
}

func TestPinBiasNumericSafety(t *testing.T) {
	maxEpoch := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).Unix()
	if PinBias <= maxEpoch {
		t.Fatalf("pin bias %d must exceed max epoch %d", PinBias, maxEpoch)
	}
	top := PinBias + maxEpoch
	if top >= 1<<53 {
		t.Fatalf("pinned score %d exceeds exact float64 range", top)
	}
	if int64(float64(top)) != top || int64(float64(top-1)) != top-1 {
		t.Fatal("pinned scores must round-trip through float64")
	}

	oldPinned := Score(domain.Ref{At: at(0), Pinned: true})
	newest := Score(domain.Ref{At: time.Unix(maxEpoch, 0)})
	if oldPinned <= newest {
		t.Fatalf("pinned %d must outrank unpinned %d", oldPinned, newest)
	}
}
