package clocks

// SetAllowedScreens reconciles the windows with a new output topology.
// Windows on outputs that went away are closed without fading. While the
// clocks are meant to be visible, uncovered outputs get a window at full
// opacity.
func (c *Controller) SetAllowedScreens(screens []Display) {
	screens = uniqueDisplays(screens)
	c.screens = screens

	allowed := make(map[string]bool, len(screens))
	for _, d := range screens {
		allowed[d.Name] = true
	}

	kept := c.windows[:0]
	covered := make(map[string]bool, len(c.windows))
	for _, w := range c.windows {
		name := w.Display().Name
		if !allowed[name] {
			c.log.Info("output removed, closing clock", "display", name)
			closeWindow(w)
			continue
		}
		covered[name] = true
		kept = append(kept, w)
	}
	clear(c.windows[len(kept):])
	c.windows = kept

	if c.visible {
		now := c.now()
		for _, d := range screens {
			if covered[d.Name] {
				continue
			}
			c.log.Info("output added, opening clock", "display", d.Name)
			c.openWindow(d, now, 1.0)
		}
		if c.minuteTimer == nil && len(c.windows) > 0 {
			c.startMinuteTimer()
		}
	}

	if len(c.windows) == 0 {
		c.teardown()
	}
}

// windowClosed handles a window closed from outside the controller. The
// window is released here, so Close must tolerate a second call.
func (c *Controller) windowClosed(w Window) {
	idx := -1
	for i, cur := range c.windows {
		if cur == w {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	c.log.Debug("clock window closed", "display", w.Display().Name)
	closeWindow(w)
	c.windows = append(c.windows[:idx], c.windows[idx+1:]...)
	if len(c.windows) == 0 {
		c.teardown()
	}
}

// uniqueDisplays copies ds keeping the first display of each name.
func uniqueDisplays(ds []Display) []Display {
	seen := make(map[string]bool, len(ds))
	out := make([]Display, 0, len(ds))
	for _, d := range ds {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out
}
