package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"adoptik/petfeed/internal/config"
	"adoptik/petfeed/internal/feed"
	"adoptik/petfeed/internal/feed/playback"
)

func pageOf(names ...string) []feed.VideoItem {
	out := make([]feed.VideoItem, 0, len(names))
	for _, n := range names {
		info := feed.PlaceholderAnimal()
		info.Name = n
		out = append(out, feed.VideoItem{ID: n, Source: "/videos/" + n + ".mp4", AnimalInfo: info})
	}
	return out
}

func newTestBrowser(t *testing.T, provider feed.Provider, notices noticeSink) (tea.Model, *feed.Session) {
	t.Helper()
	s := feed.NewSession(provider, terminalHandles(), feed.SessionOptions{
		Playback: playback.Options{ToggleDebounce: -1, HideControlsAfter: -1},
	})
	t.Cleanup(s.Close)
	b := newBrowser(context.Background(), s, notices)
	b.refreshEvery = time.Millisecond
	m, _ := exec(b, b.Init())
	return settle(m, s), s
}

// exec runs cmd and feeds what it produces back into m. Refresh ticks are
// not re-armed. quit reports whether the program asked to stop.
func exec(m tea.Model, cmd tea.Cmd) (out tea.Model, quit bool) {
	if cmd == nil {
		return m, false
	}
	switch msg := cmd().(type) {
	case nil, refreshTick:
		return m, false
	case tea.QuitMsg:
		return m, true
	case noticeMsg:
		// The notice listener re-arms itself and would block here.
		m, _ = m.Update(msg)
		return m, false
	case tea.BatchMsg:
		for _, c := range msg {
			var q bool
			m, q = exec(m, c)
			quit = quit || q
		}
		return m, quit
	default:
		m, cmd = m.Update(msg)
		return exec(m, cmd)
	}
}

// settle waits for the session's background work and redraws.
func settle(m tea.Model, s *feed.Session) tea.Model {
	s.Wait()
	m, _ = m.Update(refreshTick{})
	return m
}

func send(t *testing.T, m tea.Model, s *feed.Session, msg tea.Msg) tea.Model {
	t.Helper()
	m, cmd := m.Update(msg)
	m, quit := exec(m, cmd)
	require.False(t, quit)
	return settle(m, s)
}

func key(k string) tea.KeyMsg {
	switch k {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func TestBrowser_KeysDriveSession(t *testing.T) {
	pages := map[int][]feed.VideoItem{1: pageOf("Rex", "Luna", "Bella"), 2: pageOf("Max")}
	provider := feed.ProviderFunc(func(_ context.Context, page int) ([]feed.VideoItem, error) {
		return pages[page], nil
	})
	m, s := newTestBrowser(t, provider, nil)

	view := m.View()
	require.Contains(t, view, "[1/3] Rex")
	require.Contains(t, view, "> playing")

	m = send(t, m, s, key("down"))
	require.Contains(t, m.View(), "[2/4] Luna", "moving onto Luna prefetches page 2")

	m = send(t, m, s, key("space"))
	require.Contains(t, m.View(), "|| paused")
	require.True(t, s.Overlay().Paused)

	m = send(t, m, s, key("l"))
	require.Contains(t, m.View(), "[3/4] Bella")
	require.Contains(t, m.View(), "> playing")

	m = send(t, m, s, key("k"))
	m = send(t, m, s, key("up"))
	require.Contains(t, m.View(), "[1/4] Rex")

	m = send(t, m, s, key("x"))
	require.Contains(t, m.View(), "[1/4] Rex", "unbound keys are ignored")

	m, cmd := m.Update(key("q"))
	_, quit := exec(m, cmd)
	require.True(t, quit)
	require.Empty(t, m.View())
}

func TestBrowser_DetailsPausePlayback(t *testing.T) {
	provider := feed.ProviderFunc(func(_ context.Context, page int) ([]feed.VideoItem, error) {
		if page == 1 {
			items := pageOf("Rex", "Luna", "Bella")
			items[0].AnimalInfo.Description = "Loves long walks"
			return items, nil
		}
		return nil, nil
	})
	m, s := newTestBrowser(t, provider, nil)

	m = send(t, m, s, key("i"))
	require.True(t, s.DetailsOpen())
	require.True(t, s.Overlay().Paused)
	require.Contains(t, m.View(), "Loves long walks")
	require.Contains(t, m.View(), "|| paused")

	m = send(t, m, s, key("esc"))
	require.False(t, s.DetailsOpen())
	require.False(t, s.Overlay().Paused)
	require.NotContains(t, m.View(), "Loves long walks")

	m = send(t, m, s, key("i"))
	m = send(t, m, s, key("i"))
	require.False(t, s.DetailsOpen(), "i toggles the details view")
	require.Contains(t, m.View(), "> playing")
}

func TestBrowser_MouseDragsSwipe(t *testing.T) {
	provider := feed.ProviderFunc(func(_ context.Context, page int) ([]feed.VideoItem, error) {
		if page == 1 {
			return pageOf("Rex", "Luna", "Bella", "Max"), nil
		}
		return nil, nil
	})
	m, s := newTestBrowser(t, provider, nil)

	drag := func(m tea.Model, from, to int) tea.Model {
		m = send(t, m, s, tea.MouseMsg{X: 10, Y: from, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
		m = send(t, m, s, tea.MouseMsg{X: 10, Y: to, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
		return send(t, m, s, tea.MouseMsg{X: 10, Y: to, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone})
	}

	// Rows are scaled by rowPixels: five rows is well past the swipe threshold.
	m = drag(m, 25, 20)
	require.Contains(t, m.View(), "[2/4] Luna")

	m = drag(m, 20, 25)
	require.Contains(t, m.View(), "[1/4] Rex")

	m = drag(m, 20, 19)
	require.Contains(t, m.View(), "[1/4] Rex", "a short drag is a tap")
	require.True(t, s.Overlay().Paused)

	m = send(t, m, s, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	require.Contains(t, m.View(), "[2/4] Luna")

	m = send(t, m, s, tea.MouseMsg{Y: 3, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone})
	require.Contains(t, m.View(), "[2/4] Luna", "a release without a press does nothing")
}

func TestBrowser_EmptyFeed(t *testing.T) {
	provider := feed.ProviderFunc(func(context.Context, int) ([]feed.VideoItem, error) { return nil, nil })
	m, s := newTestBrowser(t, provider, nil)
	require.Contains(t, m.View(), "No videos available.")

	m = send(t, m, s, key("i"))
	require.Contains(t, m.View(), "nothing to show")
}

func TestBrowser_ShowsNotices(t *testing.T) {
	provider := feed.ProviderFunc(func(context.Context, int) ([]feed.VideoItem, error) {
		return nil, errors.New("connection refused")
	})
	notices := newNoticeSink()
	s := feed.NewSession(provider, terminalHandles(), feed.SessionOptions{Notifier: notices})
	t.Cleanup(s.Close)
	b := newBrowser(context.Background(), s, notices)
	b.refreshEvery = time.Millisecond

	m, _ := exec(b, b.Init())
	m = settle(m, s)
	require.NotEmpty(t, m.(browser).status, "the load failure reaches the status line")
	require.Contains(t, m.View(), m.(browser).status)
}

func TestBrowser_ReactionsReportErrors(t *testing.T) {
	provider := feed.ProviderFunc(func(_ context.Context, page int) ([]feed.VideoItem, error) {
		if page == 1 {
			return pageOf("Rex"), nil
		}
		return nil, nil
	})
	reactor := reactorFunc(func(_ context.Context, _ string, r feed.Reaction) error {
		if r == feed.ReactionShare {
			return errors.New("offline")
		}
		return nil
	})
	s := feed.NewSession(provider, terminalHandles(), feed.SessionOptions{Reactor: reactor})
	t.Cleanup(s.Close)
	b := newBrowser(context.Background(), s, nil)
	b.refreshEvery = time.Millisecond
	m, _ := exec(b, b.Init())
	m = settle(m, s)

	m = send(t, m, s, key("f"))
	require.Contains(t, m.View(), "liked")
	m = send(t, m, s, key("s"))
	require.Contains(t, m.View(), "share failed: offline")
}

type reactorFunc func(ctx context.Context, videoID string, r feed.Reaction) error

func (f reactorFunc) React(ctx context.Context, videoID string, r feed.Reaction) error {
	return f(ctx, videoID, r)
}

// The viewer runs as a real program on a plain reader and writer.
func TestBrowser_RunsHeadless(t *testing.T) {
	provider := feed.ProviderFunc(func(_ context.Context, page int) ([]feed.VideoItem, error) {
		if page == 1 {
			return pageOf("Rex"), nil
		}
		return nil, nil
	})
	s := feed.NewSession(provider, terminalHandles(), feed.SessionOptions{})
	t.Cleanup(s.Close)

	var out bytes.Buffer
	p := tea.NewProgram(newBrowser(context.Background(), s, nil),
		tea.WithInput(strings.NewReader("q")),
		tea.WithOutput(&out),
		tea.WithoutSignalHandler(),
	)
	final, err := p.Run()
	require.NoError(t, err)
	require.True(t, final.(browser).quitting)
}

func TestRun_UnknownCommand(t *testing.T) {
	require.Error(t, run("fly", nil))
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(config.EnvDBPath, t.TempDir()+"/pets.db")
	err := run("server", []string{"-port", "0"})
	require.ErrorContains(t, err, "invalid server port")
}

func TestRunMigrate(t *testing.T) {
	dir := t.TempDir()
	db := fmt.Sprintf("%s/pets.db", dir)
	require.NoError(t, run("migrate", []string{"-db", db}))
	require.NoError(t, run("migrate", []string{"-db", db, "-down", "1"}))
}

func TestWanted(t *testing.T) {
	require.False(t, wanted("", config.DefaultAnimalsCSVPath))
	require.False(t, wanted(config.DefaultAnimalsCSVPath, config.DefaultAnimalsCSVPath))
	require.True(t, wanted("https://example.com/animals.csv", config.DefaultAnimalsCSVPath))
}
