// Package gesture turns drags and key presses into feed navigation intents.
package gesture

import (
	"context"
	"math"
	"strings"
)

const (
	// DefaultThreshold is the vertical distance in pixels a drag must exceed
	// to count as a swipe.
	DefaultThreshold = 50.0
	// scrollLockDistance is the drag distance after which the native scroll
	// should be suppressed while the finger is still down.
	scrollLockDistance = 10.0
)

// Intent is the outcome of classifying an input event.
type Intent int

const (
	None Intent = iota
	Advance
	Retreat
	Toggle
)

func (i Intent) String() string {
	switch i {
	case Advance:
		return "advance"
	case Retreat:
		return "retreat"
	case Toggle:
		return "toggle"
	default:
		return "none"
	}
}

// Key is a navigation key.
type Key int

const (
	KeyOther Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// ParseKey maps key names such as "ArrowUp", "up" or "k" to a Key.
func ParseKey(name string) Key {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "arrowup", "up", "k":
		return KeyUp
	case "arrowdown", "down", "j":
		return KeyDown
	case "arrowleft", "left", "h":
		return KeyLeft
	case "arrowright", "right", "l":
		return KeyRight
	default:
		return KeyOther
	}
}

// Navigator is what an Intent is dispatched to.
type Navigator interface {
	Advance(ctx context.Context) bool
	Retreat() bool
	TogglePlayback(ctx context.Context) bool
}

// Interpreter classifies vertical drags and navigation keys. It keeps the
// state of one pointer and is meant to be driven from a single event loop.
type Interpreter struct {
	threshold float64
	startY    float64
	currentY  float64
	tracking  bool
}

// NewInterpreter returns an Interpreter. A non-positive threshold selects
// DefaultThreshold.
func NewInterpreter(threshold float64) *Interpreter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Interpreter{threshold: threshold}
}

// Threshold returns the swipe distance in pixels.
func (in *Interpreter) Threshold() float64 { return in.threshold }

// DragStart records the vertical position where the pointer went down.
func (in *Interpreter) DragStart(y float64) {
	in.startY = y
	in.currentY = y
	in.tracking = true
}

// DragMove records the latest position. It reports whether the caller
// should suppress native scrolling for this move.
func (in *Interpreter) DragMove(y float64) bool {
	if !in.tracking {
		return false
	}
	in.currentY = y
	return math.Abs(in.startY-y) > scrollLockDistance
}

// DragEnd classifies the finished drag. A finger that moved up (start below
// end on screen, so start > end) past the threshold advances, one that moved
// down retreats, anything shorter is a tap.
func (in *Interpreter) DragEnd(y float64) Intent {
	if !in.tracking {
		return None
	}
	in.tracking = false
	delta := in.startY - y
	if math.Abs(delta) > in.threshold {
		if delta > 0 {
			return Advance
		}
		return Retreat
	}
	return Toggle
}

// Cancel drops the drag in progress.
func (in *Interpreter) Cancel() {
	in.tracking = false
}

// Key classifies a key press. A key press also ends any drag in progress.
func (in *Interpreter) Key(k Key) (Intent, bool) {
	intent, handled := KeyIntent(k)
	if handled {
		in.tracking = false
	}
	return intent, handled
}

// KeyIntent classifies a key press. handled reports whether the key belongs
// to the feed, in which case its default scrolling must be suppressed.
func KeyIntent(k Key) (intent Intent, handled bool) {
	switch k {
	case KeyUp, KeyLeft:
		return Retreat, true
	case KeyDown, KeyRight:
		return Advance, true
	default:
		return None, false
	}
}

// Dispatch applies intent to nav and reports whether anything changed.
func Dispatch(ctx context.Context, nav Navigator, intent Intent) bool {
	switch intent {
	case Advance:
		return nav.Advance(ctx)
	case Retreat:
		return nav.Retreat()
	case Toggle:
		return nav.TogglePlayback(ctx)
	default:
		return false
	}
}
