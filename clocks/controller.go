package clocks

import (
	"io"
	"log/slog"
	"math"
	"time"
)

// Options configures a Controller. Factory and Scheduler are required.
type Options struct {
	Factory    WindowFactory
	Scheduler  Scheduler
	Settings   Settings
	Fullscreen FullscreenSource
	Screens    []Display

	FadeStep     float64
	FadeInterval time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Controller owns the overlay windows and decides when they exist.
type Controller struct {
	factory   WindowFactory
	scheduler Scheduler
	settings  Settings
	now       func() time.Time
	log       *slog.Logger

	visible bool
	windows []Window
	screens []Display

	backgroundAlpha float64
	faceAlpha       float64
	handsAlpha      float64

	currentAlpha float64
	fadeStep     float64
	fadeInterval time.Duration
	session      *FadeSession

	minuteTimer Timer

	visibleHandlers []func(bool)
}

func NewController(opts Options) *Controller {
	c := &Controller{
		factory:         opts.Factory,
		scheduler:       opts.Scheduler,
		settings:        opts.Settings,
		now:             opts.Now,
		log:             opts.Logger,
		fadeStep:        opts.FadeStep,
		fadeInterval:    opts.FadeInterval,
		backgroundAlpha: 0.5,
		faceAlpha:       1.0,
		handsAlpha:      1.0,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.fadeStep <= 0 {
		c.fadeStep = DefaultFadeStep
	}
	if c.fadeInterval <= 0 {
		c.fadeInterval = DefaultFadeInterval
	}
	if c.settings != nil {
		c.backgroundAlpha = clampAlpha(c.settings.Float(KeyBackgroundAlpha))
		c.faceAlpha = clampAlpha(c.settings.Float(KeyFaceAlpha))
		c.handsAlpha = clampAlpha(c.settings.Float(KeyHandsAlpha))
	}
	c.screens = uniqueDisplays(opts.Screens)

	if opts.Fullscreen != nil {
		opts.Fullscreen.OnFullscreenChange(c.handleFullscreen)
	}
	return c
}

// OnVisibleChange registers fn to be called synchronously whenever the
// visible intent flips.
func (c *Controller) OnVisibleChange(fn func(visible bool)) {
	c.visibleHandlers = append(c.visibleHandlers, fn)
}

func (c *Controller) Visible() bool { return c.visible }

// Alpha is the shared fade progress applied to every window.
func (c *Controller) Alpha() float64 { return c.currentAlpha }

func (c *Controller) WindowCount() int { return len(c.windows) }

func (c *Controller) Screens() []Display {
	return append([]Display(nil), c.screens...)
}

func (c *Controller) BackgroundAlpha() float64 { return c.backgroundAlpha }
func (c *Controller) FaceAlpha() float64       { return c.faceAlpha }
func (c *Controller) HandsAlpha() float64      { return c.handsAlpha }

func (c *Controller) handleFullscreen(fullscreen bool) {
	c.log.Debug("fullscreen changed", "fullscreen", fullscreen)
	if fullscreen {
		c.Show()
	} else {
		c.Hide()
	}
}

// Show creates the overlay windows if needed and fades them in. Windows
// still fading out are reused. The minute timer only runs while at least
// one window exists; SetAllowedScreens starts it for windows opened later.
func (c *Controller) Show() {
	if c.visible {
		return
	}

	if len(c.windows) == 0 {
		now := c.now()
		for _, d := range c.screens {
			c.openWindow(d, now, 0.0)
		}
		if len(c.windows) > 0 {
			c.startMinuteTimer()
		}
		c.log.Info("showing clocks", "windows", len(c.windows))
	} else {
		c.log.Debug("reversing fade out", "alpha", c.currentAlpha)
	}

	c.setVisible(true)
	c.fade(FadeIn)
}

// Hide fades the windows out. They are destroyed when the fade finishes.
// Calling it again while the fade-out runs restarts the fade-out timer
// from the current alpha.
func (c *Controller) Hide() {
	if !c.visible {
		if dir, ok := c.FadeDirection(); ok && dir == FadeOut {
			c.fade(FadeOut)
		}
		return
	}
	c.setVisible(false)
	c.fade(FadeOut)
}

func (c *Controller) ToggleVisible() {
	if c.visible {
		c.Hide()
	} else {
		c.Show()
	}
}

// HideImmediately drops every window and timer without animating.
func (c *Controller) HideImmediately() {
	c.teardown()
}

// SetBackgroundAlpha stores, persists and applies the window background
// opacity.
func (c *Controller) SetBackgroundAlpha(alpha float64) {
	alpha = clampAlpha(alpha)
	c.backgroundAlpha = alpha
	c.persist(KeyBackgroundAlpha, alpha)
	for _, w := range c.windows {
		w.SetBackgroundAlpha(alpha)
	}
}

func (c *Controller) SetFaceAlpha(alpha float64) {
	alpha = clampAlpha(alpha)
	c.faceAlpha = alpha
	c.persist(KeyFaceAlpha, alpha)
	for _, w := range c.windows {
		w.View().SetFaceAlpha(alpha)
	}
}

func (c *Controller) SetHandsAlpha(alpha float64) {
	alpha = clampAlpha(alpha)
	c.handsAlpha = alpha
	c.persist(KeyHandsAlpha, alpha)
	for _, w := range c.windows {
		w.View().SetHandsAlpha(alpha)
	}
}

func (c *Controller) persist(key string, value float64) {
	if c.settings == nil {
		return
	}
	if err := c.settings.SetFloat(key, value); err != nil {
		c.log.Error("failed to persist setting", "key", key, "error", err)
	}
}

func (c *Controller) setVisible(visible bool) {
	if c.visible == visible {
		return
	}
	c.visible = visible
	for _, fn := range c.visibleHandlers {
		fn(visible)
	}
}

// startMinuteTimer fires at the next whole minute and every minute after.
func (c *Controller) startMinuteTimer() {
	stopTimer(c.minuteTimer)
	now := c.now()
	first := nextMinute(now).Sub(now)
	c.minuteTimer = c.scheduler.Schedule(first, time.Minute, c.updateClockViews)
	c.log.Debug("minute timer scheduled", "first", first)
}

func (c *Controller) updateClockViews() {
	now := c.now()
	for _, w := range c.windows {
		w.View().SetTime(now)
	}
}

func (c *Controller) openWindow(d Display, now time.Time, alpha float64) {
	w, err := c.factory.NewWindow(d, WindowOptions{
		Alpha:           alpha,
		BackgroundAlpha: c.backgroundAlpha,
		FaceAlpha:       c.faceAlpha,
		HandsAlpha:      c.handsAlpha,
		Time:            now,
	})
	if err != nil {
		c.log.Error("failed to open clock window", "display", d.Name, "error", err)
		return
	}
	w.SetCloseHandler(func() { c.windowClosed(w) })
	c.windows = append(c.windows, w)
}

// teardown stops both timers, closes every window and resets the fade.
func (c *Controller) teardown() {
	stopTimer(c.minuteTimer)
	c.minuteTimer = nil
	c.stopFade()

	for _, w := range c.windows {
		closeWindow(w)
	}
	if len(c.windows) > 0 {
		c.log.Info("clocks removed", "windows", len(c.windows))
	}
	c.windows = nil
	c.currentAlpha = 0.0
	c.setVisible(false)
}

// closeWindow detaches the close handler before closing so the window
// cannot call back into the controller.
func closeWindow(w Window) {
	w.SetCloseHandler(nil)
	w.Close()
}

func nextMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}

func clampAlpha(alpha float64) float64 {
	if math.IsNaN(alpha) {
		return 0.0
	}
	return max(0.0, min(1.0, alpha))
}
