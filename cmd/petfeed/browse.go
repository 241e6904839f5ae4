package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"adoptik/petfeed/internal/feed"
	"adoptik/petfeed/internal/feed/gesture"
	"adoptik/petfeed/internal/feed/playback"
	"adoptik/petfeed/internal/notify"
)

const (
	// rowPixels converts terminal rows into the pixel distances the swipe
	// threshold is expressed in.
	rowPixels = 20.0

	defaultRefreshEvery = 250 * time.Millisecond
)

const browseHelp = "j/k or arrows: next/prev  drag or wheel: swipe  space: pause  f: like  s: share  i: details  q: quit"

var (
	colorPrimary   = lipgloss.Color("62")
	colorSecondary = lipgloss.Color("241")
	colorHighlight = lipgloss.Color("212")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(colorPrimary).Padding(0, 1)
	nameStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorHighlight)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorSecondary)
	detailsStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorPrimary).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(colorSecondary).Italic(true)
	positionStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

// terminalHandle stands in for a media element. Playback starts at once.
type terminalHandle struct {
	playing atomic.Bool
}

func (h *terminalHandle) Play(context.Context) error {
	h.playing.Store(true)
	return nil
}

func (h *terminalHandle) Pause() { h.playing.Store(false) }

func (h *terminalHandle) SeekToStart() {}

func (h *terminalHandle) IsPlaying() bool { return h.playing.Load() }

func terminalHandles() feed.HandleFactory {
	return func(feed.VideoItem) playback.Handle {
		return &terminalHandle{}
	}
}

// Messages delivered to the browser.
type (
	sessionChanged struct{ note string }
	noticeMsg      struct {
		kind notify.Kind
		text string
	}
	refreshTick struct{}
)

// noticeSink forwards session notifications into the program. Notify never
// blocks; notifications arriving faster than the UI drains them are dropped.
type noticeSink chan noticeMsg

func newNoticeSink() noticeSink { return make(noticeSink, 16) }

func (n noticeSink) Notify(kind notify.Kind, message string) {
	select {
	case n <- noticeMsg{kind: kind, text: message}:
	default:
	}
}

// browser is the bubbletea model of the feed viewer. Gestures are classified
// in Update; the session work they cause runs in commands, one at a time.
type browser struct {
	ctx          context.Context
	session      *feed.Session
	notices      noticeSink
	ops          *sync.Mutex
	refreshEvery time.Duration

	width    int
	started  bool
	state    feed.State
	overlay  playback.Overlay
	details  bool
	dragging bool
	status   string
	quitting bool
}

func newBrowser(ctx context.Context, s *feed.Session, notices noticeSink) browser {
	return browser{
		ctx:          ctx,
		session:      s,
		notices:      notices,
		ops:          &sync.Mutex{},
		refreshEvery: defaultRefreshEvery,
	}
}

// Init starts the session and the refresh loop.
func (b browser) Init() tea.Cmd {
	return tea.Batch(
		b.run(func(ctx context.Context) string {
			b.session.Start(ctx)
			return ""
		}),
		b.waitNotice(),
		b.tick(),
	)
}

// Update handles messages and returns the updated model and any commands.
func (b browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return b.handleKeyMsg(msg)

	case tea.MouseMsg:
		return b.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		b.width = msg.Width
		return b, nil

	case sessionChanged:
		b.started = true
		if msg.note != "" {
			b.status = msg.note
		}
		b.refresh()
		return b, nil

	case noticeMsg:
		b.status = msg.text
		return b, b.waitNotice()

	case refreshTick:
		b.refresh()
		return b, b.tick()
	}
	return b, nil
}

func (b browser) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	b.status = ""
	switch msg.String() {
	case "q", "ctrl+c":
		b.quitting = true
		return b, tea.Quit

	case " ", "enter", "t":
		return b, b.apply(gesture.Toggle)

	case "f":
		return b, b.run(func(ctx context.Context) string {
			if err := b.session.Like(ctx); err != nil {
				return "like failed: " + err.Error()
			}
			return "liked"
		})

	case "s":
		return b, b.run(func(ctx context.Context) string {
			if err := b.session.Share(ctx); err != nil {
				return "share failed: " + err.Error()
			}
			return "shared"
		})

	case "i":
		if b.details {
			return b, b.closeDetails()
		}
		return b, b.run(func(context.Context) string {
			if _, ok := b.session.OpenDetails(); !ok {
				return "nothing to show"
			}
			return ""
		})

	case "esc":
		if b.details {
			return b, b.closeDetails()
		}
		return b, nil
	}

	if intent, handled := b.session.ClassifyKey(gesture.ParseKey(msg.String())); handled {
		return b, b.apply(intent)
	}
	return b, nil
}

func (b browser) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	y := float64(msg.Y) * rowPixels
	switch {
	case msg.Button == tea.MouseButtonWheelDown:
		return b, b.apply(gesture.Advance)
	case msg.Button == tea.MouseButtonWheelUp:
		return b, b.apply(gesture.Retreat)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		b.dragging = true
		b.session.DragStart(y)
	case msg.Action == tea.MouseActionMotion && b.dragging:
		b.session.DragMove(y)
	case msg.Action == tea.MouseActionRelease && b.dragging:
		b.dragging = false
		return b, b.apply(b.session.ClassifyDrag(y))
	}
	return b, nil
}

func (b browser) closeDetails() tea.Cmd {
	return b.run(func(ctx context.Context) string {
		b.session.CloseDetails(ctx)
		return ""
	})
}

func (b browser) apply(intent gesture.Intent) tea.Cmd {
	if intent == gesture.None {
		return nil
	}
	return b.run(func(ctx context.Context) string {
		b.session.Apply(ctx, intent)
		return ""
	})
}

// run executes op off the event loop. Operations are serialised so
// navigation intents apply in the order they were made.
func (b browser) run(op func(ctx context.Context) string) tea.Cmd {
	return func() tea.Msg {
		b.ops.Lock()
		defer b.ops.Unlock()
		return sessionChanged{note: op(b.ctx)}
	}
}

func (b browser) waitNotice() tea.Cmd {
	if b.notices == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n := <-b.notices:
			return n
		case <-b.ctx.Done():
			return nil
		}
	}
}

func (b browser) tick() tea.Cmd {
	return tea.Tick(b.refreshEvery, func(time.Time) tea.Msg {
		return refreshTick{}
	})
}

func (b *browser) refresh() {
	b.state = b.session.State()
	b.overlay = b.session.Overlay()
	b.details = b.session.DetailsOpen()
}

// View renders the current video card.
func (b browser) View() string {
	if b.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("petfeed"))
	sb.WriteString("\n\n")

	switch {
	case len(b.state.Items) == 0 && (!b.started || b.state.Loading):
		sb.WriteString(mutedStyle.Render("Loading..."))
		sb.WriteString("\n")
	case len(b.state.Items) == 0:
		sb.WriteString("No videos available.\n")
	default:
		sb.WriteString(b.renderCard())
	}

	sb.WriteString("\n")
	if b.status != "" {
		sb.WriteString(statusStyle.Render(b.status))
		sb.WriteString("\n")
	}
	sb.WriteString(helpKeyStyle.Render(browseHelp))
	sb.WriteString("\n")
	return sb.String()
}

func (b browser) renderCard() string {
	item := b.state.Items[b.state.Current]
	a := item.AnimalInfo

	state := "> playing"
	if b.overlay.Paused {
		state = "|| paused"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n",
		positionStyle.Render(fmt.Sprintf("[%d/%d]", b.state.Current+1, len(b.state.Items))),
		nameStyle.Render(a.Name))
	fmt.Fprintf(&sb, "%s, %s (%s)\n", a.Species, a.Age, a.Location)
	fmt.Fprintf(&sb, "%s\n", mutedStyle.Render(item.Source))
	fmt.Fprintf(&sb, "likes %d  shares %d  %s\n", item.LikeCount, item.ShareCount, state)

	if b.details {
		width := b.width - 2
		if width < 20 {
			width = 60
		}
		body := nameStyle.Render(a.Name) + "\n" + a.Description + "\n" + mutedStyle.Render("esc or i to close")
		sb.WriteString(detailsStyle.Width(width).Render(body))
		sb.WriteString("\n")
	}
	return sb.String()
}
