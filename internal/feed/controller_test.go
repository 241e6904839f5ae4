package feed_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adoptik/petfeed/internal/feed"
	"adoptik/petfeed/internal/notify"
)

type stubProvider struct {
	mu    sync.Mutex
	pages map[int][]feed.VideoItem
	errs  map[int]error
	calls []int
}

func newStubProvider() *stubProvider {
	return &stubProvider{pages: map[int][]feed.VideoItem{}, errs: map[int]error{}}
}

func (p *stubProvider) FetchPage(_ context.Context, page int) ([]feed.VideoItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, page)
	if err := p.errs[page]; err != nil {
		return nil, err
	}
	return p.pages[page], nil
}

func (p *stubProvider) Calls() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.calls...)
}

// blockingProvider parks every FetchPage call until release is closed.
type blockingProvider struct {
	entered chan int
	release chan struct{}
	items   []feed.VideoItem
}

func newBlockingProvider(items ...feed.VideoItem) *blockingProvider {
	return &blockingProvider{
		entered: make(chan int, 16),
		release: make(chan struct{}),
		items:   items,
	}
}

func (p *blockingProvider) FetchPage(_ context.Context, page int) ([]feed.VideoItem, error) {
	p.entered <- page
	<-p.release
	return p.items, nil
}

type recordingSink struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (s *recordingSink) Notify(kind notify.Kind, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
}

func (s *recordingSink) Kinds() []notify.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Kind(nil), s.kinds...)
}

type recordingListener struct {
	mu       sync.Mutex
	appended [][]string
	current  []int
}

func (l *recordingListener) ItemsAppended(items []feed.VideoItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appended = append(l.appended, ids(items))
}

func (l *recordingListener) CurrentChanged(_ feed.VideoItem, index int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = append(l.current, index)
}

func items(names ...string) []feed.VideoItem {
	out := make([]feed.VideoItem, 0, len(names))
	for _, n := range names {
		out = append(out, feed.VideoItem{ID: n, Source: "/videos/" + n + ".mp4", AnimalInfo: feed.PlaceholderAnimal()})
	}
	return out
}

func ids(items []feed.VideoItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestController_AdvanceAtEndFetchesNextPage(t *testing.T) {
	p := newStubProvider()
	p.pages[2] = items("D", "E")
	c := feed.NewController(p, feed.Options{})
	require.NoError(t, c.SeedInitial(items("A", "B", "C")))

	require.True(t, c.Advance(context.Background()))
	require.True(t, c.Advance(context.Background()))
	require.Empty(t, p.Calls())

	st := c.Snapshot()
	require.Equal(t, 2, st.Current)
	require.Equal(t, 2, st.Page)

	require.True(t, c.Advance(context.Background()))
	st = c.Snapshot()
	require.Equal(t, []string{"A", "B", "C", "D", "E"}, ids(st.Items))
	require.Equal(t, 3, st.Current)
	require.Equal(t, 3, st.Page)
	require.False(t, st.Loading)
	require.Equal(t, []int{2}, p.Calls())
}

func TestController_EmptyPageIsNoOp(t *testing.T) {
	p := newStubProvider()
	c := feed.NewController(p, feed.Options{})
	require.NoError(t, c.SeedInitial(items("A")))

	require.False(t, c.Advance(context.Background()))
	st := c.Snapshot()
	require.Equal(t, 0, st.Current)
	require.Equal(t, 2, st.Page)
	require.Len(t, st.Items, 1)
	require.False(t, st.Loading)

	// The end of the feed is not sticky: new content is picked up later.
	p.mu.Lock()
	p.pages[2] = items("B")
	p.mu.Unlock()
	require.True(t, c.Advance(context.Background()))
	require.Equal(t, 1, c.Snapshot().Current)
}

func TestController_RetreatAtStartIsNoOp(t *testing.T) {
	c := feed.NewController(newStubProvider(), feed.Options{})
	require.False(t, c.Retreat())

	require.NoError(t, c.SeedInitial(items("A", "B")))
	require.False(t, c.Retreat())
	require.Equal(t, 0, c.Snapshot().Current)

	require.True(t, c.Advance(context.Background()))
	require.True(t, c.Retreat())
	require.Equal(t, 0, c.Snapshot().Current)
}

func TestController_FailedFetchKeepsStateAndNotifies(t *testing.T) {
	p := newStubProvider()
	p.errs[2] = errors.New("connection reset")
	sink := &recordingSink{}
	c := feed.NewController(p, feed.Options{Notifier: sink})
	require.NoError(t, c.SeedInitial(items("A")))

	require.False(t, c.Advance(context.Background()))
	st := c.Snapshot()
	require.Equal(t, []string{"A"}, ids(st.Items))
	require.Equal(t, 2, st.Page)
	require.False(t, st.Loading)
	require.Equal(t, []notify.Kind{notify.LoadFailed}, sink.Kinds())

	p.mu.Lock()
	delete(p.errs, 2)
	p.pages[2] = items("B")
	p.mu.Unlock()
	require.True(t, c.Advance(context.Background()))
	require.Equal(t, 3, c.Snapshot().Page)
}

func TestController_SingleFetchInFlight(t *testing.T) {
	p := newBlockingProvider(items("B")...)
	c := feed.NewController(p, feed.Options{})
	require.NoError(t, c.SeedInitial(items("A")))

	done := make(chan bool)
	go func() { done <- c.Advance(context.Background()) }()
	select {
	case page := <-p.entered:
		require.Equal(t, 2, page)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not started")
	}
	require.True(t, c.Snapshot().Loading)

	require.False(t, c.Advance(context.Background()))
	require.False(t, c.LoadMoreIfNearEnd(context.Background()))
	require.Len(t, p.entered, 0)

	close(p.release)
	require.True(t, <-done)
	st := c.Snapshot()
	require.Equal(t, []string{"A", "B"}, ids(st.Items))
	require.Equal(t, 1, st.Current)
}

func TestController_CloseDropsLateResponse(t *testing.T) {
	p := newBlockingProvider(items("B", "C")...)
	c := feed.NewController(p, feed.Options{})
	require.NoError(t, c.SeedInitial(items("A")))

	done := make(chan bool)
	go func() { done <- c.Advance(context.Background()) }()
	<-p.entered
	c.Close()
	close(p.release)

	require.False(t, <-done)
	st := c.Snapshot()
	require.Equal(t, []string{"A"}, ids(st.Items))
	require.Equal(t, 0, st.Current)
	require.Equal(t, 2, st.Page)
	require.False(t, c.Advance(context.Background()))
}

func TestController_LoadMoreIfNearEnd(t *testing.T) {
	p := newStubProvider()
	p.pages[2] = items("F", "G")
	c := feed.NewController(p, feed.Options{})
	require.NoError(t, c.SeedInitial(items("A", "B", "C", "D", "E")))

	require.False(t, c.LoadMoreIfNearEnd(context.Background()))
	require.Empty(t, p.Calls())

	for i := 0; i < 3; i++ {
		require.True(t, c.Advance(context.Background()))
	}
	require.True(t, c.LoadMoreIfNearEnd(context.Background()))
	st := c.Snapshot()
	require.Equal(t, 3, st.Current, "prefetch must not navigate")
	require.Len(t, st.Items, 7)
	require.Equal(t, 3, st.Page)
}

func TestController_LoadMoreOnEmptyFeedSelectsFirstItem(t *testing.T) {
	p := newStubProvider()
	p.pages[1] = items("A", "B")
	l := &recordingListener{}
	c := feed.NewController(p, feed.Options{Listener: l})

	require.True(t, c.LoadMoreIfNearEnd(context.Background()))
	item, idx, ok := c.Current()
	require.True(t, ok)
	require.Equal(t, "A", item.ID)
	require.Equal(t, 0, idx)
	require.Equal(t, [][]string{{"A", "B"}}, l.appended)
	require.Equal(t, []int{0}, l.current)
	require.Equal(t, 2, c.Snapshot().Page)
}

func TestController_SeedInitialOnlyOnce(t *testing.T) {
	c := feed.NewController(newStubProvider(), feed.Options{})
	require.NoError(t, c.SeedInitial(nil))
	require.Equal(t, 1, c.Snapshot().Page)

	require.NoError(t, c.SeedInitial(items("A")))
	require.ErrorIs(t, c.SeedInitial(items("B")), feed.ErrAlreadySeeded)
	require.Equal(t, []string{"A"}, ids(c.Snapshot().Items))
}

func TestController_ItemsAreAppendOnlyAndIndexStaysInBounds(t *testing.T) {
	p := newStubProvider()
	for page := 2; page <= 6; page++ {
		p.pages[page] = items(fmt.Sprintf("p%d-a", page), fmt.Sprintf("p%d-b", page))
	}
	c := feed.NewController(p, feed.Options{})
	require.NoError(t, c.SeedInitial(items("p1-a", "p1-b")))

	rng := rand.New(rand.NewSource(7))
	prev := ids(c.Snapshot().Items)
	for i := 0; i < 200; i++ {
		switch rng.Intn(3) {
		case 0:
			c.Advance(context.Background())
		case 1:
			c.Retreat()
		default:
			c.LoadMoreIfNearEnd(context.Background())
		}
		st := c.Snapshot()
		require.GreaterOrEqual(t, st.Current, 0)
		require.Less(t, st.Current, len(st.Items))
		require.GreaterOrEqual(t, len(st.Items), len(prev))
		require.Equal(t, prev, ids(st.Items[:len(prev)]))
		prev = ids(st.Items)
	}
}

func TestController_ListenerSeesChangesInOrder(t *testing.T) {
	p := newStubProvider()
	p.pages[2] = items("C")
	l := &recordingListener{}
	c := feed.NewController(p, feed.Options{Listener: l})

	require.NoError(t, c.SeedInitial(items("A", "B")))
	c.Advance(context.Background())
	c.Advance(context.Background())
	c.Retreat()

	require.Equal(t, [][]string{{"A", "B"}, {"C"}}, l.appended)
	require.Equal(t, []int{0, 1, 2, 1}, l.current)
}
