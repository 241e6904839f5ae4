package playback_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adoptik/petfeed/internal/feed/playback"
	"adoptik/petfeed/internal/notify"
)

type fakeHandle struct {
	mu      sync.Mutex
	playing bool
	plays   int
	pauses  int
	seeks   int
	playErr error
	gate    chan struct{}
}

func (h *fakeHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	gate := h.gate
	h.plays++
	h.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playErr != nil {
		return h.playErr
	}
	h.playing = true
	return nil
}

func (h *fakeHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.pauses++
}

func (h *fakeHandle) SeekToStart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seeks++
}

func (h *fakeHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

type kindRecorder struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (r *kindRecorder) Notify(kind notify.Kind, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *kindRecorder) Kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Kind(nil), r.kinds...)
}

func playingCount(handles ...*fakeHandle) int {
	n := 0
	for _, h := range handles {
		if h.IsPlaying() {
			n++
		}
	}
	return n
}

func TestCoordinator_SyncPlaysOnlyCurrent(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{HideControlsAfter: -1})
	defer c.Close()
	a, b, d := &fakeHandle{}, &fakeHandle{}, &fakeHandle{}
	c.Register("a", a)
	c.Register("b", b)
	c.Register("d", d)

	for _, id := range []string{"a", "b", "d", "b"} {
		c.Sync(id)
		c.Wait()
		require.Equal(t, 1, playingCount(a, b, d))
	}
	require.True(t, b.IsPlaying())
	require.Equal(t, playback.Overlay{CurrentID: "b", Paused: false, ControlsVisible: false}, c.Overlay())
	require.Greater(t, d.seeks, 0, "left item is rewound")
}

func TestCoordinator_StalePlayIsDiscarded(t *testing.T) {
	sink := &kindRecorder{}
	c := playback.NewCoordinator(playback.Options{Notifier: sink})
	defer c.Close()
	first := &fakeHandle{}
	slow := &fakeHandle{gate: make(chan struct{})}
	last := &fakeHandle{}
	c.Register("0", first)
	c.Register("1", slow)
	c.Register("2", last)

	c.Sync("0")
	c.Wait()
	c.Sync("1")
	c.Sync("2")
	require.Eventually(t, last.IsPlaying, time.Second, 5*time.Millisecond)

	close(slow.gate)
	c.Wait()

	require.False(t, slow.IsPlaying())
	require.True(t, last.IsPlaying())
	require.False(t, first.IsPlaying())
	ov := c.Overlay()
	require.Equal(t, "2", ov.CurrentID)
	require.False(t, ov.Paused)
	require.Empty(t, sink.Kinds())
}

func TestCoordinator_PlayFailureNotifies(t *testing.T) {
	sink := &kindRecorder{}
	c := playback.NewCoordinator(playback.Options{Notifier: sink})
	defer c.Close()
	h := &fakeHandle{playErr: errors.New("autoplay blocked")}
	c.Register("a", h)

	c.Sync("a")
	c.Wait()

	require.True(t, c.Overlay().Paused)
	require.True(t, c.Overlay().ControlsVisible)
	require.Equal(t, []notify.Kind{notify.PlaybackFailed}, sink.Kinds())
}

func TestCoordinator_SyncWithoutHandleStaysPaused(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{})
	defer c.Close()
	c.Sync("missing")
	c.Wait()
	require.Equal(t, playback.Overlay{CurrentID: "missing", Paused: true, ControlsVisible: true}, c.Overlay())
	require.False(t, c.Toggle(context.Background()))
}

func TestCoordinator_ToggleIsDebounced(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{ToggleDebounce: 30 * time.Millisecond})
	defer c.Close()
	h := &fakeHandle{}
	c.Register("a", h)
	c.Sync("a")
	c.Wait()
	require.True(t, h.IsPlaying())

	require.True(t, c.Toggle(context.Background()))
	require.False(t, h.IsPlaying())
	require.True(t, c.Overlay().Paused)

	require.False(t, c.Toggle(context.Background()), "second tap inside the debounce window is dropped")
	require.False(t, h.IsPlaying())

	require.Eventually(t, func() bool { return c.Toggle(context.Background()) }, time.Second, 5*time.Millisecond)
	require.True(t, h.IsPlaying())
	require.False(t, c.Overlay().Paused)
}

func TestCoordinator_ToggleWhileResumeInFlightIsDropped(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{ToggleDebounce: -1})
	defer c.Close()
	h := &fakeHandle{playErr: errors.New("not yet")}
	c.Register("a", h)
	c.Sync("a")
	c.Wait()

	h.mu.Lock()
	h.playErr = nil
	h.gate = make(chan struct{})
	h.mu.Unlock()

	done := make(chan bool)
	go func() { done <- c.Toggle(context.Background()) }()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.plays == 2
	}, time.Second, 5*time.Millisecond)

	require.False(t, c.Toggle(context.Background()))

	close(h.gate)
	require.True(t, <-done)
	require.True(t, h.IsPlaying())
	require.True(t, c.Toggle(context.Background()))
	require.False(t, h.IsPlaying())
}

func TestCoordinator_ControlsHideWhilePlaying(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{HideControlsAfter: 20 * time.Millisecond, ToggleDebounce: -1})
	defer c.Close()
	h := &fakeHandle{}
	c.Register("a", h)
	c.Sync("a")
	c.Wait()

	require.Eventually(t, func() bool { return !c.Overlay().ControlsVisible }, time.Second, 5*time.Millisecond)

	require.True(t, c.Toggle(context.Background()))
	require.True(t, c.Overlay().ControlsVisible)
	time.Sleep(40 * time.Millisecond)
	require.True(t, c.Overlay().ControlsVisible, "paused item keeps its controls")
}

func TestCoordinator_PauseAndResumeCurrent(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{})
	defer c.Close()
	h := &fakeHandle{}
	c.Register("a", h)
	c.Sync("a")
	c.Wait()

	c.PauseCurrent()
	require.False(t, h.IsPlaying())
	require.True(t, c.Overlay().Paused)

	c.ResumeCurrent(context.Background())
	require.True(t, h.IsPlaying())
	require.False(t, c.Overlay().Paused)
}

func TestCoordinator_UnregisterPausesHandle(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{})
	defer c.Close()
	h := &fakeHandle{}
	c.Register("a", h)
	c.Sync("a")
	c.Wait()

	c.Unregister("a")
	require.False(t, h.IsPlaying())
	require.False(t, c.Toggle(context.Background()))
}

func TestCoordinator_CloseStopsEverything(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{})
	a, b := &fakeHandle{}, &fakeHandle{gate: make(chan struct{})}
	c.Register("a", a)
	c.Register("b", b)
	c.Sync("a")
	c.Wait()
	c.Sync("b")

	c.Close()
	close(b.gate)
	c.Wait()

	require.Equal(t, 0, playingCount(a, b))
	c.Sync("a")
	c.Wait()
	require.False(t, a.IsPlaying())
}

func TestCoordinator_RegisterStartsAwaitedCurrent(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{HideControlsAfter: -1})
	defer c.Close()
	c.Sync("a")
	c.Wait()
	require.True(t, c.Overlay().Paused)

	other := &fakeHandle{}
	c.Register("b", other)
	h := &fakeHandle{}
	c.Register("a", h)
	c.Wait()

	require.True(t, h.IsPlaying())
	require.False(t, other.IsPlaying())
	require.Equal(t, playback.Overlay{CurrentID: "a", Paused: false, ControlsVisible: false}, c.Overlay())

	c.Register("a", h)
	c.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, 1, h.plays, "re-registering a playing handle does not restart it")
}

func TestCoordinator_RegisterRespectsPause(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{})
	defer c.Close()
	c.Sync("a")
	c.PauseCurrent()

	h := &fakeHandle{}
	c.Register("a", h)
	c.Wait()
	require.False(t, h.IsPlaying())
	require.True(t, c.Overlay().Paused)

	c.ResumeCurrent(context.Background())
	require.True(t, h.IsPlaying())
	require.False(t, c.Overlay().Paused)
}

func TestCoordinator_ResumeWithoutHandleWaitsForRegister(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{})
	defer c.Close()
	c.Sync("a")
	c.PauseCurrent()
	c.ResumeCurrent(context.Background())

	h := &fakeHandle{}
	c.Register("a", h)
	c.Wait()
	require.True(t, h.IsPlaying())
}

func TestCoordinator_ToggleDuringPendingStartPauses(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{ToggleDebounce: -1})
	defer c.Close()
	h := &fakeHandle{gate: make(chan struct{})}
	c.Register("a", h)
	c.Sync("a")
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.plays == 1
	}, time.Second, 5*time.Millisecond)

	require.True(t, c.Toggle(context.Background()), "a pending start counts as playing")
	require.True(t, c.Overlay().Paused)

	close(h.gate)
	c.Wait()
	require.False(t, h.IsPlaying(), "the late start is undone")
	require.True(t, c.Overlay().Paused)
	h.mu.Lock()
	require.Equal(t, 1, h.plays)
	h.mu.Unlock()

	require.True(t, c.Toggle(context.Background()))
	require.True(t, h.IsPlaying())
	require.False(t, c.Overlay().Paused)
}

func TestCoordinator_PauseCurrentDuringPendingStart(t *testing.T) {
	c := playback.NewCoordinator(playback.Options{})
	defer c.Close()
	h := &fakeHandle{gate: make(chan struct{})}
	c.Register("a", h)
	c.Sync("a")

	c.PauseCurrent()
	close(h.gate)
	c.Wait()
	require.False(t, h.IsPlaying())
	require.True(t, c.Overlay().Paused)
}
