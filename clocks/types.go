// Package clocks drives the clock overlay windows shown on secondary
// outputs: which windows exist, how they fade in and out, and how they
// follow output hotplug. All Controller methods must be called from the
// goroutine running the RunLoop.
package clocks

import (
	"fmt"
	"time"
)

// Settings keys for the three persisted opacities.
const (
	KeyBackgroundAlpha = "background_alpha"
	KeyFaceAlpha       = "face_alpha"
	KeyHandsAlpha      = "hands_alpha"
)

// A fade moves the opacity by DefaultFadeStep every DefaultFadeInterval,
// so a full fade takes 50 ticks.
const (
	DefaultFadeStep     = 0.02
	DefaultFadeInterval = 50 * time.Millisecond
)

// Rect is an output frame in compositor coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Display is a physical output. Two displays are the same output when
// their names match.
type Display struct {
	Name  string
	Frame Rect
}

func (d Display) String() string {
	return fmt.Sprintf("%s(%dx%d+%d+%d)", d.Name, d.Frame.Width, d.Frame.Height, d.Frame.X, d.Frame.Y)
}

// ClockView is the content of an overlay window.
type ClockView interface {
	SetTime(t time.Time)
	SetFaceAlpha(alpha float64)
	SetHandsAlpha(alpha float64)
}

// Window is a borderless, click-through overlay covering one display.
// Close must be safe to call more than once.
type Window interface {
	Display() Display
	View() ClockView
	SetAlpha(alpha float64)
	SetBackgroundAlpha(alpha float64)
	// SetCloseHandler registers fn to run on the loop goroutine when the
	// window is closed from outside. A nil fn detaches the handler.
	SetCloseHandler(fn func())
	Close()
}

// WindowOptions carries the initial state of a new window.
type WindowOptions struct {
	Alpha           float64
	BackgroundAlpha float64
	FaceAlpha       float64
	HandsAlpha      float64
	Time            time.Time
}

type WindowFactory interface {
	NewWindow(d Display, opts WindowOptions) (Window, error)
}

// Settings is the persistent preference store.
type Settings interface {
	Float(key string) float64
	SetFloat(key string, value float64) error
}

// FullscreenSource reports whether the primary output shows a fullscreen
// window. Handlers are invoked on the loop goroutine.
type FullscreenSource interface {
	OnFullscreenChange(fn func(fullscreen bool))
}
