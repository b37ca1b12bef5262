package clocks

import (
	"errors"
	"math"
	"time"
)

type manualTimer struct {
	first    time.Duration
	interval time.Duration
	fn       func()
	stopped  bool
	fired    int
}

func (t *manualTimer) Stop() { t.stopped = true }

func (t *manualTimer) fire() {
	if t.stopped {
		return
	}
	t.fired++
	t.fn()
	if t.interval <= 0 {
		t.stopped = true
	}
}

// manualScheduler hands out timers that only fire when a test says so.
type manualScheduler struct {
	timers []*manualTimer
}

func (s *manualScheduler) Schedule(first, interval time.Duration, fn func()) Timer {
	t := &manualTimer{first: first, interval: interval, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) active() []*manualTimer {
	var out []*manualTimer
	for _, t := range s.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

func (s *manualScheduler) activeWithInterval(d time.Duration) []*manualTimer {
	var out []*manualTimer
	for _, t := range s.active() {
		if t.interval == d {
			out = append(out, t)
		}
	}
	return out
}

type fakeView struct {
	time       time.Time
	faceAlpha  float64
	handsAlpha float64
	timeSets   int
}

func (v *fakeView) SetTime(t time.Time)         { v.time = t; v.timeSets++ }
func (v *fakeView) SetFaceAlpha(alpha float64)  { v.faceAlpha = alpha }
func (v *fakeView) SetHandsAlpha(alpha float64) { v.handsAlpha = alpha }

type fakeWindow struct {
	display         Display
	view            *fakeView
	alpha           float64
	backgroundAlpha float64
	onClose         func()
	closed          int
}

func (w *fakeWindow) Display() Display                 { return w.display }
func (w *fakeWindow) View() ClockView                  { return w.view }
func (w *fakeWindow) SetAlpha(alpha float64)           { w.alpha = alpha }
func (w *fakeWindow) SetBackgroundAlpha(alpha float64) { w.backgroundAlpha = alpha }
func (w *fakeWindow) SetCloseHandler(fn func())        { w.onClose = fn }
func (w *fakeWindow) Close()                           { w.closed++ }

// userClose simulates the compositor asking the window to close.
func (w *fakeWindow) userClose() {
	if w.onClose != nil {
		w.onClose()
	}
}

type fakeFactory struct {
	created []*fakeWindow
	fail    map[string]bool
}

func (f *fakeFactory) NewWindow(d Display, opts WindowOptions) (Window, error) {
	if f.fail[d.Name] {
		return nil, errors.New("no surface")
	}
	w := &fakeWindow{
		display:         d,
		alpha:           opts.Alpha,
		backgroundAlpha: opts.BackgroundAlpha,
		view: &fakeView{
			time:       opts.Time,
			faceAlpha:  opts.FaceAlpha,
			handsAlpha: opts.HandsAlpha,
		},
	}
	f.created = append(f.created, w)
	return w, nil
}

func (f *fakeFactory) open() []*fakeWindow {
	var out []*fakeWindow
	for _, w := range f.created {
		if w.closed == 0 {
			out = append(out, w)
		}
	}
	return out
}

type fakeSettings struct {
	values map[string]float64
	writes int
	err    error
}

func (s *fakeSettings) Float(key string) float64 { return s.values[key] }

func (s *fakeSettings) SetFloat(key string, value float64) error {
	s.writes++
	if s.err != nil {
		return s.err
	}
	s.values[key] = value
	return nil
}

type fakeFullscreen struct {
	handler func(bool)
}

func (f *fakeFullscreen) OnFullscreenChange(fn func(bool)) { f.handler = fn }

var (
	dvi  = Display{Name: "DVI-1", Frame: Rect{X: 1920, Width: 1280, Height: 1024}}
	hdmi = Display{Name: "HDMI-A-1", Frame: Rect{X: 3200, Width: 1920, Height: 1080}}
	dp   = Display{Name: "DP-2", Frame: Rect{X: 5120, Width: 2560, Height: 1440}}
)

var testNow = time.Date(2024, 3, 9, 14, 25, 40, 500_000_000, time.UTC)

type harness struct {
	ctrl      *Controller
	sched     *manualScheduler
	factory   *fakeFactory
	settings  *fakeSettings
	fs        *fakeFullscreen
	now       time.Time
	visibleCh []bool
}

func newHarness(screens ...Display) *harness {
	h := &harness{
		sched:   &manualScheduler{},
		factory: &fakeFactory{fail: map[string]bool{}},
		settings: &fakeSettings{values: map[string]float64{
			KeyBackgroundAlpha: 0.5,
			KeyFaceAlpha:       0.8,
			KeyHandsAlpha:      0.9,
		}},
		fs:  &fakeFullscreen{},
		now: testNow,
	}
	h.ctrl = NewController(Options{
		Factory:    h.factory,
		Scheduler:  h.sched,
		Settings:   h.settings,
		Fullscreen: h.fs,
		Screens:    screens,
		Now:        func() time.Time { return h.now },
	})
	h.ctrl.OnVisibleChange(func(v bool) { h.visibleCh = append(h.visibleCh, v) })
	return h
}

// fadeTimer returns the single running fade timer, or nil.
func (h *harness) fadeTimer() *manualTimer {
	ts := h.sched.activeWithInterval(DefaultFadeInterval)
	if len(ts) == 0 {
		return nil
	}
	return ts[len(ts)-1]
}

func (h *harness) minuteTimer() *manualTimer {
	ts := h.sched.activeWithInterval(time.Minute)
	if len(ts) == 0 {
		return nil
	}
	return ts[len(ts)-1]
}

// tick fires the fade timer n times and returns how many fires happened.
func (h *harness) tick(n int) int {
	fired := 0
	for i := 0; i < n; i++ {
		t := h.fadeTimer()
		if t == nil {
			break
		}
		t.fire()
		fired++
	}
	return fired
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
