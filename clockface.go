package main

import (
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Hand outlines on a 200x200 grid centered at (100,100), pointing at 12.
var (
	hourHand   = []point{{100, 42}, {107, 99}, {100, 114}, {93, 99}}
	minuteHand = []point{{100, 10}, {105, 99}, {100, 114}, {95, 99}}
)

const (
	faceSVG    = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><circle cx="100" cy="100" r="100" fill="#000000"/></svg>`
	clockGrid  = 200.0
	gridCenter = clockGrid / 2
)

type point struct{ X, Y float64 }

// ClockFace is the analog clock drawn inside an overlay window. Setters
// call the change hook so the hosting window can redraw.
type ClockFace struct {
	mu         sync.Mutex
	t          time.Time
	faceAlpha  float64
	handsAlpha float64
	onChange   func()
}

func NewClockFace(t time.Time, faceAlpha, handsAlpha float64) *ClockFace {
	return &ClockFace{t: t, faceAlpha: faceAlpha, handsAlpha: handsAlpha}
}

func (f *ClockFace) SetTime(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
	f.changed()
}

func (f *ClockFace) SetFaceAlpha(alpha float64) {
	f.mu.Lock()
	f.faceAlpha = alpha
	f.mu.Unlock()
	f.changed()
}

func (f *ClockFace) SetHandsAlpha(alpha float64) {
	f.mu.Lock()
	f.handsAlpha = alpha
	f.mu.Unlock()
	f.changed()
}

func (f *ClockFace) setChangeHook(fn func()) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

func (f *ClockFace) changed() {
	f.mu.Lock()
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Draw renders the clock into the largest centered square of dst.
func (f *ClockFace) Draw(dst *image.RGBA) {
	f.mu.Lock()
	t, faceAlpha, handsAlpha := f.t, f.faceAlpha, f.handsAlpha
	f.mu.Unlock()

	b := dst.Bounds()
	side := min(b.Dx(), b.Dy())
	if side <= 0 {
		return
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2

	if faceAlpha > 0 {
		drawSVG(dst, faceSVG, x, y, side, faceAlpha)
	}
	if handsAlpha > 0 {
		drawSVG(dst, handsSVG(t), x, y, side, handsAlpha)
	}
}

// Snapshot renders the clock on a transparent size x size image.
func (f *ClockFace) Snapshot(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	f.Draw(img)
	return img
}

func drawSVG(dst *image.RGBA, svg string, x, y, side int, opacity float64) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		lg.Error("failed to parse clock svg", "error", err)
		return
	}
	icon.SetTarget(float64(x), float64(y), float64(side), float64(side))

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, opacity)
}

func handsSVG(t time.Time) string {
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200">`)
	writePolygon(&b, rotate(hourHand, hourDegrees(t)))
	writePolygon(&b, rotate(minuteHand, minuteDegrees(t)))
	b.WriteString(`</svg>`)
	return b.String()
}

func writePolygon(b *strings.Builder, pts []point) {
	b.WriteString(`<polygon fill="#ffffff" points="`)
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%.3f,%.3f", p.X, p.Y)
	}
	b.WriteString(`"/>`)
}

// minuteDegrees is the clockwise angle of the minute hand from 12.
func minuteDegrees(t time.Time) float64 {
	return 6 * float64(t.Minute())
}

// hourDegrees moves the hour hand one minute-mark per twelve minutes.
func hourDegrees(t time.Time) float64 {
	units := 5*float64(t.Hour()%12) + float64(t.Minute())/12
	return 6 * units
}

// rotate turns pts clockwise around the grid center. y grows downwards.
func rotate(pts []point, degrees float64) []point {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	out := make([]point, len(pts))
	for i, p := range pts {
		dx, dy := p.X-gridCenter, p.Y-gridCenter
		out[i] = point{
			X: gridCenter + dx*cos - dy*sin,
			Y: gridCenter + dx*sin + dy*cos,
		}
	}
	return out
}
