package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"adoptik/petfeed/internal/notify"
)

const (
	// DefaultFirstPage is the first page requested from a Provider.
	DefaultFirstPage = 1
	// DefaultNearEndThreshold is how many items may remain ahead of the
	// current one before LoadMoreIfNearEnd fetches the next page.
	DefaultNearEndThreshold = 1
)

// ErrAlreadySeeded is returned by SeedInitial once items are loaded.
var ErrAlreadySeeded = errors.New("feed already has items")

// Listener observes controller changes. Calls are made without the
// controller lock held. A background page load may still be inside
// ItemsAppended when one of its items becomes current.
type Listener interface {
	ItemsAppended(items []VideoItem)
	CurrentChanged(item VideoItem, index int)
}

// Options configures a Controller.
type Options struct {
	FirstPage        int
	NearEndThreshold int
	Notifier         notify.Sink
	Listener         Listener
	Logger           *zerolog.Logger
}

// State is a copy of the controller state.
type State struct {
	Items   []VideoItem
	Current int
	Page    int
	Loading bool
}

// Controller owns the feed state of one viewing session.
type Controller struct {
	provider Provider
	notifier notify.Sink
	listener Listener
	nearEnd  int
	log      zerolog.Logger

	mu         sync.Mutex
	items      []VideoItem
	current    int
	page       int
	loading    bool
	generation uint64
	closed     bool
}

// NewController returns a Controller that pulls pages from provider.
func NewController(provider Provider, opts Options) *Controller {
	if opts.FirstPage <= 0 {
		opts.FirstPage = DefaultFirstPage
	}
	if opts.NearEndThreshold <= 0 {
		opts.NearEndThreshold = DefaultNearEndThreshold
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Controller{
		provider: provider,
		notifier: opts.Notifier,
		listener: opts.Listener,
		nearEnd:  opts.NearEndThreshold,
		log:      logger.With().Str("component", "feed").Logger(),
		page:     opts.FirstPage,
	}
}

// SeedInitial installs a pre-fetched first page. It is only valid while the
// controller is still empty.
func (c *Controller) SeedInitial(items []VideoItem) error {
	c.mu.Lock()
	if len(c.items) > 0 {
		c.mu.Unlock()
		return ErrAlreadySeeded
	}
	if len(items) == 0 {
		c.mu.Unlock()
		return nil
	}
	seeded := append([]VideoItem(nil), items...)
	c.items = seeded
	c.current = 0
	c.page++
	first := c.items[0]
	c.mu.Unlock()

	c.log.Debug().Int("items", len(seeded)).Msg("Feed seeded")
	c.emitAppended(seeded)
	c.emitCurrent(first, 0)
	return nil
}

// Advance moves to the next item, fetching the next page when the current
// item is the last one loaded. It reports whether the position changed.
func (c *Controller) Advance(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.current+1 < len(c.items) {
		c.current++
		item, idx := c.items[c.current], c.current
		c.mu.Unlock()
		c.emitCurrent(item, idx)
		return true
	}
	c.mu.Unlock()

	return c.fetchNext(ctx, true)
}

// Retreat moves to the previous item. It is a no-op on the first item.
func (c *Controller) Retreat() bool {
	c.mu.Lock()
	if c.closed || c.current == 0 || len(c.items) == 0 {
		c.mu.Unlock()
		return false
	}
	c.current--
	item, idx := c.items[c.current], c.current
	c.mu.Unlock()
	c.emitCurrent(item, idx)
	return true
}

// LoadMoreIfNearEnd fetches the next page without navigating when at most
// NearEndThreshold items remain ahead of the current one. It reports
// whether new items were appended.
func (c *Controller) LoadMoreIfNearEnd(ctx context.Context) bool {
	c.mu.Lock()
	near := len(c.items) == 0 || len(c.items)-1-c.current <= c.nearEnd
	busy := c.loading || c.closed
	c.mu.Unlock()
	if !near || busy {
		return false
	}
	return c.fetchNext(ctx, false)
}

// fetchNext requests the page under the cursor and appends the result.
// When navigate is set and the position is still on the previous last item,
// the position moves to the first appended item.
func (c *Controller) fetchNext(ctx context.Context, navigate bool) bool {
	c.mu.Lock()
	if c.loading || c.closed {
		c.mu.Unlock()
		c.log.Debug().Msg("Fetch already in flight, dropping trigger")
		return false
	}
	c.loading = true
	page, gen := c.page, c.generation
	c.mu.Unlock()

	c.log.Debug().Int("page", page).Msg("Requesting page")
	items, err := c.provider.FetchPage(ctx, page)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.log.Debug().Int("page", page).Msg("Discarding stale page response")
		return false
	}
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Int("page", page).Msg("Failed to load page")
		c.notifier.Notify(notify.LoadFailed, "Could not load more videos")
		return false
	}
	if len(items) == 0 {
		c.mu.Unlock()
		c.log.Debug().Int("page", page).Msg("Empty page, end of feed")
		return false
	}

	first := len(c.items)
	appended := append([]VideoItem(nil), items...)
	c.items = append(c.items, appended...)
	c.page++

	moved := false
	if navigate && (first == 0 || c.current == first-1) {
		c.current = first
		moved = true
	}
	item, idx := c.items[c.current], c.current
	c.mu.Unlock()

	c.log.Debug().Int("page", page).Int("appended", len(appended)).Msg("Page appended")
	c.emitAppended(appended)
	if moved || first == 0 {
		c.emitCurrent(item, idx)
	}
	if navigate {
		return moved
	}
	return true
}

// Current returns the item under the cursor. ok is false while empty.
func (c *Controller) Current() (item VideoItem, index int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return VideoItem{}, 0, false
	}
	return c.items[c.current], c.current, true
}

// Snapshot returns a copy of the state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Items:   append([]VideoItem(nil), c.items...),
		Current: c.current,
		Page:    c.page,
		Loading: c.loading,
	}
}

// Close ends the session. Responses of fetches still in flight are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.generation++
	c.loading = false
	c.mu.Unlock()
}

func (c *Controller) emitAppended(items []VideoItem) {
	if c.listener != nil {
		c.listener.ItemsAppended(items)
	}
}

func (c *Controller) emitCurrent(item VideoItem, index int) {
	if c.listener != nil {
		c.listener.CurrentChanged(item, index)
	}
}
