package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adoptik/petfeed/internal/feed/gesture"
	"adoptik/petfeed/internal/feed/playback"
	"adoptik/petfeed/internal/notify"
)

// HandleFactory creates the media handle for a newly loaded item.
type HandleFactory func(item VideoItem) playback.Handle

// SessionOptions configures a Session.
type SessionOptions struct {
	FirstPage        int
	NearEndThreshold int
	SwipeThreshold   float64
	Playback         playback.Options
	Reactor          Reactor
	Notifier         notify.Sink
	Logger           *zerolog.Logger
}

// Session ties one viewer's input, feed state and playback together.
// Intents from the gesture interpreter move the controller, and every
// change of the current item is mirrored into the playback coordinator.
type Session struct {
	ID string

	ctrl      *Controller
	player    *playback.Coordinator
	gestures  *gesture.Interpreter
	newHandle HandleFactory
	reactor   Reactor
	log       zerolog.Logger

	mu          sync.Mutex
	detailsOpen bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession returns a Session reading from provider. newHandle may be nil,
// in which case items have no media attached.
func NewSession(provider Provider, newHandle HandleFactory, opts SessionOptions) *Session {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}

	id := uuid.NewString()
	logger = logger.With().Str("session_id", id).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		gestures:  gesture.NewInterpreter(opts.SwipeThreshold),
		newHandle: newHandle,
		reactor:   opts.Reactor,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	pb := opts.Playback
	if pb.Notifier == nil {
		pb.Notifier = opts.Notifier
	}
	if pb.Logger == nil {
		pb.Logger = &logger
	}
	s.player = playback.NewCoordinator(pb)
	s.ctrl = NewController(provider, Options{
		FirstPage:        opts.FirstPage,
		NearEndThreshold: opts.NearEndThreshold,
		Notifier:         opts.Notifier,
		Listener:         s,
		Logger:           &logger,
	})
	return s
}

// Start loads the first page unless the feed was seeded already.
func (s *Session) Start(ctx context.Context) bool {
	if _, _, ok := s.ctrl.Current(); ok {
		return true
	}
	return s.ctrl.LoadMoreIfNearEnd(ctx)
}

// Seed installs a pre-fetched first page.
func (s *Session) Seed(items []VideoItem) error {
	return s.ctrl.SeedInitial(items)
}

// Advance moves to the next item.
func (s *Session) Advance(ctx context.Context) bool {
	return s.ctrl.Advance(ctx)
}

// Retreat moves to the previous item.
func (s *Session) Retreat() bool {
	return s.ctrl.Retreat()
}

// TogglePlayback pauses or resumes the current item.
func (s *Session) TogglePlayback(ctx context.Context) bool {
	return s.player.Toggle(ctx)
}

// DragStart begins a vertical drag at y.
func (s *Session) DragStart(y float64) {
	s.gestures.DragStart(y)
}

// DragMove reports whether native scrolling should be suppressed.
func (s *Session) DragMove(y float64) bool {
	return s.gestures.DragMove(y)
}

// DragEnd classifies the drag and applies the resulting intent.
func (s *Session) DragEnd(ctx context.Context, y float64) gesture.Intent {
	intent := s.ClassifyDrag(y)
	s.Apply(ctx, intent)
	return intent
}

// KeyPress applies a navigation key. It reports whether the key was handled.
func (s *Session) KeyPress(ctx context.Context, k gesture.Key) bool {
	intent, handled := s.ClassifyKey(k)
	if handled {
		s.Apply(ctx, intent)
	}
	return handled
}

// ClassifyDrag ends the drag at y and returns its intent without applying
// it. Like the other drag calls it belongs on the input loop; Apply may run
// elsewhere.
func (s *Session) ClassifyDrag(y float64) gesture.Intent {
	return s.gestures.DragEnd(y)
}

// ClassifyKey returns the intent of a navigation key without applying it.
func (s *Session) ClassifyKey(k gesture.Key) (gesture.Intent, bool) {
	return s.gestures.Key(k)
}

// Apply carries out intent. It reports whether anything changed.
func (s *Session) Apply(ctx context.Context, intent gesture.Intent) bool {
	return gesture.Dispatch(ctx, s, intent)
}

// Like sends a like for the current item.
func (s *Session) Like(ctx context.Context) error {
	return s.reactCurrent(ctx, ReactionLike)
}

// Share sends a share for the current item.
func (s *Session) Share(ctx context.Context) error {
	return s.reactCurrent(ctx, ReactionShare)
}

func (s *Session) reactCurrent(ctx context.Context, r Reaction) error {
	item, _, ok := s.ctrl.Current()
	if !ok || s.reactor == nil {
		return nil
	}
	return s.reactor.React(ctx, item.ID, r)
}

// OpenDetails pauses the current video while its animal's details are on
// screen and returns those details. ok is false when the feed is empty.
func (s *Session) OpenDetails() (info AnimalInfo, ok bool) {
	item, _, ok := s.ctrl.Current()
	if !ok {
		return AnimalInfo{}, false
	}
	s.mu.Lock()
	s.detailsOpen = true
	s.mu.Unlock()
	s.player.PauseCurrent()
	return item.AnimalInfo, true
}

// CloseDetails dismisses the details view and resumes the current video.
// It reports whether a details view was open.
func (s *Session) CloseDetails(ctx context.Context) bool {
	s.mu.Lock()
	open := s.detailsOpen
	s.detailsOpen = false
	s.mu.Unlock()
	if !open {
		return false
	}
	s.player.ResumeCurrent(ctx)
	return true
}

// DetailsOpen reports whether the details view is showing.
func (s *Session) DetailsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailsOpen
}

// State returns a copy of the feed state.
func (s *Session) State() State {
	return s.ctrl.Snapshot()
}

// Overlay returns the playback overlay for the current item.
func (s *Session) Overlay() playback.Overlay {
	return s.player.Overlay()
}

// Controller exposes the underlying feed controller.
func (s *Session) Controller() *Controller { return s.ctrl }

// Player exposes the underlying playback coordinator.
func (s *Session) Player() *playback.Coordinator { return s.player }

// ItemsAppended attaches media handles to new items.
func (s *Session) ItemsAppended(items []VideoItem) {
	if s.newHandle == nil {
		return
	}
	for _, item := range items {
		if h := s.newHandle(item); h != nil {
			s.player.Register(item.ID, h)
		}
	}
}

// CurrentChanged syncs playback, records a view and prefetches ahead. The
// details view belongs to the item that was left, so it closes.
func (s *Session) CurrentChanged(item VideoItem, index int) {
	s.log.Debug().Int("index", index).Str("item_id", item.ID).Msg("Current item changed")
	s.mu.Lock()
	s.detailsOpen = false
	s.mu.Unlock()
	s.player.Sync(item.ID)

	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.reactor != nil {
			if err := s.reactor.React(s.ctx, item.ID, ReactionView); err != nil {
				s.log.Debug().Err(err).Str("item_id", item.ID).Msg("Failed to record view")
			}
		}
		s.ctrl.LoadMoreIfNearEnd(s.ctx)
	}()
}

// Wait blocks until background work started so far has finished.
func (s *Session) Wait() {
	s.wg.Wait()
	s.player.Wait()
}

// Close ends the session and waits for background work.
func (s *Session) Close() {
	s.cancel()
	s.ctrl.Close()
	s.player.Close()
	s.Wait()
}
