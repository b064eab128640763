package content

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/domain"
	"github.com/oriys/contentcache/internal/store"
	"github.com/redis/go-redis/v9"
)

// fakeStore is an in-memory store.Store that counts reads per method.
type fakeStore struct {
	mu sync.Mutex

	profiles      map[int64]*domain.UserProfile
	articles      map[int64]*domain.ArticleInfo
	details       map[int64]*domain.ArticleDetail
	comments      map[int64]*domain.Comment
	announcements map[int64]*domain.Announcement
	children      map[string]map[int64][]domain.Ref
	relations     map[[2]int64]domain.RelationKind
	attitudes     map[[2]int64]domain.Attitude
	collections   map[[2]int64]bool
	nextComment   int64

	profileReads atomic.Int32
	articleReads atomic.Int32
	queries      atomic.Int32
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:      map[int64]*domain.UserProfile{},
		articles:      map[int64]*domain.ArticleInfo{},
		details:       map[int64]*domain.ArticleDetail{},
		comments:      map[int64]*domain.Comment{},
		announcements: map[int64]*domain.Announcement{},
		children:      map[string]map[int64][]domain.Ref{},
		relations:     map[[2]int64]domain.RelationKind{},
		attitudes:     map[[2]int64]domain.Attitude{},
		collections:   map[[2]int64]bool{},
		nextComment:   1000,
	}
}

func (f *fakeStore) addChild(q store.OrderedQuery, parentID int64, ref domain.Ref) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertChild(q, parentID, ref)
}

// insertChild keeps the listing in query order. Callers hold f.mu.
func (f *fakeStore) insertChild(q store.OrderedQuery, parentID int64, ref domain.Ref) {
	if f.children[q.Name] == nil {
		f.children[q.Name] = map[int64][]domain.Ref{}
	}
	refs := append(f.children[q.Name][parentID], ref)
	slices.SortFunc(refs, func(a, b domain.Ref) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		if c := b.At.Compare(a.At); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	f.children[q.Name][parentID] = refs
}

func (f *fakeStore) Close() error                   { return nil }
func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) GetUserProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	f.profileReads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetUserExtra(ctx context.Context, userID int64) (*domain.UserExtra, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetUserStatus(ctx context.Context, userID int64) (*domain.UserStatus, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetArticleInfo(ctx context.Context, articleID int64) (*domain.ArticleInfo, error) {
	f.articleReads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[articleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetArticleDetail(ctx context.Context, articleID int64) (*domain.ArticleDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[articleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) GetAttitude(ctx context.Context, userID, articleID int64) (domain.Attitude, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if att, ok := f.attitudes[[2]int64{userID, articleID}]; ok {
		return att, nil
	}
	return domain.AttitudeNone, nil
}

func (f *fakeStore) GetComment(ctx context.Context, commentID int64) (*domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[commentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) GetComments(ctx context.Context, commentIDs []int64) ([]*domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Comment
	for _, id := range commentIDs {
		if c, ok := f.comments[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAnnouncement(ctx context.Context, id int64) (*domain.Announcement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.announcements[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) QueryOrdered(ctx context.Context, q store.OrderedQuery, parentID int64) ([]domain.Ref, error) {
	f.queries.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.children[q.Name][parentID]), nil
}

func (f *fakeStore) AggregateGroupCount(ctx context.Context, a store.Aggregate) ([]domain.CountPair, error) {
	return nil, nil
}

func (f *fakeStore) UpdateUserProfile(ctx context.Context, userID int64, u domain.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Photo != nil {
		p.Photo = *u.Photo
	}
	if u.Intro != nil {
		p.Intro = *u.Intro
	}
	return nil
}

func (f *fakeStore) SetRelation(ctx context.Context, userID, targetID int64, kind domain.RelationKind) (domain.RelationKind, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{userID, targetID}
	prev := f.relations[key]
	f.relations[key] = kind
	now := time.Now()
	f.unlink(store.UserFollowingsQuery, userID, targetID)
	f.unlink(store.UserFollowersQuery, targetID, userID)
	if kind == domain.RelationFollow {
		f.insertChild(store.UserFollowingsQuery, userID, domain.Ref{ID: targetID, At: now})
		f.insertChild(store.UserFollowersQuery, targetID, domain.Ref{ID: userID, At: now})
	}
	return prev, now, nil
}

func (f *fakeStore) unlink(q store.OrderedQuery, parentID, childID int64) {
	m := f.children[q.Name]
	if m == nil {
		return
	}
	m[parentID] = slices.DeleteFunc(m[parentID], func(r domain.Ref) bool { return r.ID == childID })
}

func (f *fakeStore) InsertComment(ctx context.Context, nc domain.NewComment) (*domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextComment++
	c := &domain.Comment{
		ID:       f.nextComment,
		AuthorID: nc.UserID,
		PubDate:  time.Now().Truncate(time.Second),
		Content:  nc.Content,
	}
	f.comments[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeStore) SetAttitude(ctx context.Context, userID, articleID int64, att domain.Attitude) (domain.Attitude, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{userID, articleID}
	prev, ok := f.attitudes[key]
	if !ok {
		prev = domain.AttitudeNone
	}
	f.attitudes[key] = att
	return prev, nil
}

func (f *fakeStore) SetCollection(ctx context.Context, userID, articleID int64, collected bool) (bool, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{userID, articleID}
	prev := f.collections[key]
	f.collections[key] = collected
	return prev != collected, time.Now(), nil
}

func newTestService(t *testing.T, st store.Store, opts Options) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(st, client, cache.NewPersistent(client, nil, nil), opts), mr
}
