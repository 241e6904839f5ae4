// Package playback keeps at most one media handle playing: the one that
// belongs to the current feed item.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"adoptik/petfeed/internal/notify"
)

const (
	DefaultToggleDebounce    = 250 * time.Millisecond
	DefaultHideControlsAfter = 2 * time.Second
	DefaultPlayTimeout       = 10 * time.Second
)

// Handle controls one media element. Play may block until playback has
// actually started or failed; the other methods must return promptly.
type Handle interface {
	Play(ctx context.Context) error
	Pause()
	SeekToStart()
	IsPlaying() bool
}

// Options configures a Coordinator. A negative ToggleDebounce or
// HideControlsAfter disables the corresponding timer.
type Options struct {
	ToggleDebounce    time.Duration
	HideControlsAfter time.Duration
	PlayTimeout       time.Duration
	Notifier          notify.Sink
	Logger            *zerolog.Logger
}

// Overlay is what the UI needs to draw the play/pause affordance.
type Overlay struct {
	CurrentID       string
	Paused          bool
	ControlsVisible bool
}

// Coordinator synchronises playback with the current feed item.
type Coordinator struct {
	debounce    time.Duration
	hideAfter   time.Duration
	playTimeout time.Duration
	notifier    notify.Sink
	log         zerolog.Logger

	mu       sync.Mutex
	handles  map[string]Handle
	current  string
	seq      uint64
	paused   bool
	controls bool
	toggling bool
	closed   bool

	// awaiting: current has no handle yet and starts once one registers.
	// starting: a start for the current seq is in flight.
	// held: the viewer paused current; late plays for it are undone.
	awaiting bool
	starting bool
	held     bool

	debounceTimer *time.Timer
	hideTimer     *time.Timer

	wg sync.WaitGroup
}

// NewCoordinator returns an empty Coordinator.
func NewCoordinator(opts Options) *Coordinator {
	if opts.ToggleDebounce == 0 {
		opts.ToggleDebounce = DefaultToggleDebounce
	}
	if opts.HideControlsAfter == 0 {
		opts.HideControlsAfter = DefaultHideControlsAfter
	}
	if opts.PlayTimeout <= 0 {
		opts.PlayTimeout = DefaultPlayTimeout
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Coordinator{
		debounce:    opts.ToggleDebounce,
		hideAfter:   opts.HideControlsAfter,
		playTimeout: opts.PlayTimeout,
		notifier:    opts.Notifier,
		log:         logger.With().Str("component", "playback").Logger(),
		handles:     make(map[string]Handle),
		paused:      true,
		controls:    true,
	}
}

// Register attaches the handle for an item id, replacing any previous one.
// If id became current before its handle existed, playback starts now.
func (c *Coordinator) Register(id string, h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.handles[id]; ok && old != h && old.IsPlaying() {
		old.Pause()
	}
	c.handles[id] = h

	if c.closed || id != c.current || !c.awaiting || c.held {
		return
	}
	c.awaiting = false
	if h.IsPlaying() {
		c.setPausedLocked(false)
		return
	}
	c.startLocked(id, h)
}

// Unregister detaches the handle for id, pausing it first.
func (c *Coordinator) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[id]
	if !ok {
		return
	}
	if h.IsPlaying() {
		h.Pause()
	}
	delete(c.handles, id)
}

// Sync makes id the current item: every other playing handle is paused and
// rewound, and the target is started from the beginning. The start runs in
// the background; its outcome is only applied if id is still current then.
func (c *Coordinator) Sync(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.seq++
	c.current = id
	c.held = false
	c.awaiting = false
	c.starting = false

	for otherID, h := range c.handles {
		if otherID == id {
			continue
		}
		if h.IsPlaying() {
			h.Pause()
			h.SeekToStart()
		}
	}

	target, ok := c.handles[id]
	if !ok {
		c.awaiting = true
		c.setPausedLocked(true)
		return
	}
	if target.IsPlaying() {
		c.setPausedLocked(false)
		return
	}
	c.startLocked(id, target)
}

// startLocked rewinds h and plays it in the background under a fresh seq.
func (c *Coordinator) startLocked(id string, h Handle) {
	h.SeekToStart()
	c.seq++
	c.starting = true
	c.setPausedLocked(true)
	c.wg.Add(1)
	go c.start(c.seq, id, h)
}

func (c *Coordinator) start(seq uint64, id string, h Handle) {
	defer c.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), c.playTimeout)
	defer cancel()

	err := h.Play(ctx)
	if !c.settle(seq, id, h, err) {
		c.log.Debug().Str("item_id", id).Msg("Discarding stale playback completion")
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Str("item_id", id).Msg("Playback failed to start")
		c.notifier.Notify(notify.PlaybackFailed, "Tap to play")
	}
}

// settle applies the outcome of a play attempt. It returns false when the
// attempt is stale, in which case a handle that started late is stopped
// again unless it is the current item and nobody paused it since.
func (c *Coordinator) settle(seq uint64, id string, h Handle, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.seq {
		if c.closed || id != c.current {
			if h.IsPlaying() {
				h.Pause()
				h.SeekToStart()
			}
		} else if c.held && h.IsPlaying() {
			h.Pause()
		}
		return false
	}
	c.starting = false
	c.setPausedLocked(err != nil || !h.IsPlaying())
	return true
}

// Toggle pauses the current item if it is playing or about to start, and
// resumes it otherwise. While a toggle is in flight, and for a short
// debounce window after it, further toggles are dropped. It reports whether
// the toggle was applied.
func (c *Coordinator) Toggle(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed || c.toggling {
		c.mu.Unlock()
		return false
	}
	h, ok := c.handles[c.current]
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.toggling = true
	if h.IsPlaying() || c.starting {
		c.holdLocked(h)
		c.releaseToggleLocked()
		c.mu.Unlock()
		return true
	}
	c.held = false
	seq, id := c.seq, c.current
	c.mu.Unlock()

	err := h.Play(ctx)
	applied := c.settle(seq, id, h, err)

	c.mu.Lock()
	c.releaseToggleLocked()
	c.mu.Unlock()

	if applied && err != nil {
		c.log.Warn().Err(err).Str("item_id", id).Msg("Resume failed")
		c.notifier.Notify(notify.PlaybackFailed, "Tap to play")
	}
	return applied
}

// PauseCurrent pauses the current item, for example while a detail view
// covers it.
func (c *Coordinator) PauseCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.awaiting = false
	c.holdLocked(c.handles[c.current])
}

// ResumeCurrent resumes the current item if it is paused. Without a handle
// the item starts as soon as one is registered.
func (c *Coordinator) ResumeCurrent(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.held = false
	h, ok := c.handles[c.current]
	if !ok {
		c.awaiting = c.current != ""
		c.mu.Unlock()
		return
	}
	if h.IsPlaying() {
		c.setPausedLocked(false)
		c.mu.Unlock()
		return
	}
	seq, id := c.seq, c.current
	c.mu.Unlock()

	err := h.Play(ctx)
	if c.settle(seq, id, h, err) && err != nil {
		c.log.Warn().Err(err).Str("item_id", id).Msg("Resume failed")
		c.notifier.Notify(notify.PlaybackFailed, "Tap to play")
	}
}

// Overlay returns the current UI-facing playback state.
func (c *Coordinator) Overlay() Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Overlay{CurrentID: c.current, Paused: c.paused, ControlsVisible: c.controls}
}

// Wait blocks until background play attempts have settled.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close stops the owned timers. Late play completions are discarded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.seq++
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	if c.hideTimer != nil {
		c.hideTimer.Stop()
		c.hideTimer = nil
	}
	for _, h := range c.handles {
		if h.IsPlaying() {
			h.Pause()
		}
	}
	c.mu.Unlock()
}

// setPausedLocked records the paused flag. A paused item keeps its controls
// on screen; a playing one hides them after hideAfter.
func (c *Coordinator) setPausedLocked(paused bool) {
	c.paused = paused
	c.controls = true
	if c.hideTimer != nil {
		c.hideTimer.Stop()
		c.hideTimer = nil
	}
	if paused {
		return
	}
	if c.hideAfter < 0 {
		c.controls = false
		return
	}
	seq := c.seq
	c.hideTimer = time.AfterFunc(c.hideAfter, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.closed && !c.paused && seq == c.seq {
			c.controls = false
		}
	})
}

// holdLocked pauses current on the viewer's behalf. Bumping seq turns any
// in-flight play for it stale, and settle pauses it again when it lands.
func (c *Coordinator) holdLocked(h Handle) {
	if h != nil && h.IsPlaying() {
		h.Pause()
	}
	c.seq++
	c.starting = false
	c.held = true
	c.setPausedLocked(true)
}

func (c *Coordinator) releaseToggleLocked() {
	if c.debounce < 0 {
		c.toggling = false
		return
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		c.toggling = false
		c.mu.Unlock()
	})
}
