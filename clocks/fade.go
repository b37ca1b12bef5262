package clocks

import "time"

// alphaEpsilon absorbs the rounding error of repeated float steps.
const alphaEpsilon = 1e-9

type FadeDirection int

const (
	FadeIn FadeDirection = iota
	FadeOut
)

func (d FadeDirection) String() string {
	switch d {
	case FadeIn:
		return "in"
	case FadeOut:
		return "out"
	default:
		return "unknown"
	}
}

// FadeSession is one run of the opacity ramp in a single direction.
type FadeSession struct {
	Direction FadeDirection
	Step      float64
	Interval  time.Duration

	timer Timer
}

// Fading reports whether a fade timer is running.
func (c *Controller) Fading() bool { return c.session != nil }

// FadeDirection returns the direction of the running fade, if any.
func (c *Controller) FadeDirection() (FadeDirection, bool) {
	if c.session == nil {
		return 0, false
	}
	return c.session.Direction, true
}

// fade replaces the running session. currentAlpha is kept, so reversing
// mid-fade continues from the current opacity.
func (c *Controller) fade(dir FadeDirection) {
	c.stopFade()

	s := &FadeSession{
		Direction: dir,
		Step:      c.fadeStep,
		Interval:  c.fadeInterval,
	}
	c.session = s
	s.timer = c.scheduler.Schedule(s.Interval, s.Interval, func() { c.fadeTick(s) })
	c.log.Debug("fade started", "direction", dir, "alpha", c.currentAlpha)
}

func (c *Controller) stopFade() {
	if c.session == nil {
		return
	}
	stopTimer(c.session.timer)
	c.session = nil
}

func (c *Controller) fadeTick(s *FadeSession) {
	if c.session != s {
		return
	}

	switch s.Direction {
	case FadeIn:
		c.currentAlpha += s.Step
		if c.currentAlpha >= 1.0-alphaEpsilon {
			c.currentAlpha = 1.0
		}
	case FadeOut:
		c.currentAlpha -= s.Step
		if c.currentAlpha <= alphaEpsilon {
			c.currentAlpha = 0.0
		}
	}
	for _, w := range c.windows {
		w.SetAlpha(c.currentAlpha)
	}

	switch {
	case s.Direction == FadeIn && c.currentAlpha >= 1.0:
		c.stopFade()
		c.log.Debug("fade in finished")
	case s.Direction == FadeOut && c.currentAlpha <= 0.0:
		c.stopFade()
		c.log.Debug("fade out finished")
		c.teardown()
	}
}
