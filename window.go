package main

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	xdg_shell "github.com/rajveermalviya/go-wayland/wayland/stable/xdg-shell"
	"github.com/trbjo/goclock/clocks"
	"golang.org/x/image/draw"
	"golang.org/x/sys/unix"
)

const appID = "goclock"

var (
	_ clocks.Window    = (*overlayWindow)(nil)
	_ clocks.ClockView = (*ClockFace)(nil)
)

// overlayWindow is a fullscreen, click-through xdg toplevel pinned to one
// output. All methods run on the run loop; Wayland callbacks post there.
type overlayWindow struct {
	om      *OutputManager
	display clocks.Display
	face    *ClockFace

	surface    *client.Surface
	xdgSurface *xdg_shell.Surface
	toplevel   *xdg_shell.Toplevel

	alpha   float64
	bgAlpha float64

	width, height int
	configured    bool
	pending       bool
	base          []byte
	pool          *shmPool

	mu      sync.Mutex
	onClose func()
	closed  bool
}

func newOverlayWindow(om *OutputManager, output *client.Output, d clocks.Display, opts clocks.WindowOptions) (*overlayWindow, error) {
	w := &overlayWindow{
		om:      om,
		display: d,
		face:    NewClockFace(opts.Time, opts.FaceAlpha, opts.HandsAlpha),
		alpha:   opts.Alpha,
		bgAlpha: opts.BackgroundAlpha,
		width:   d.Frame.Width,
		height:  d.Frame.Height,
	}

	surface, err := om.compositor.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("unable to create surface: %w", err)
	}
	w.surface = surface

	// an empty input region lets pointer events fall through
	region, err := om.compositor.CreateRegion()
	if err != nil {
		surface.Destroy()
		return nil, fmt.Errorf("unable to create region: %w", err)
	}
	surface.SetInputRegion(region)
	region.Destroy()

	w.xdgSurface, err = om.wmBase.GetXdgSurface(surface)
	if err != nil {
		surface.Destroy()
		return nil, fmt.Errorf("unable to create xdg surface: %w", err)
	}
	w.toplevel, err = w.xdgSurface.GetToplevel()
	if err != nil {
		w.xdgSurface.Destroy()
		surface.Destroy()
		return nil, fmt.Errorf("unable to create toplevel: %w", err)
	}

	w.toplevel.SetAppId(appID)
	w.toplevel.SetTitle("Clock " + d.Name)
	w.toplevel.SetFullscreen(output)

	w.toplevel.SetConfigureHandler(func(e xdg_shell.ToplevelConfigureEvent) {
		width, height := int(e.Width), int(e.Height)
		om.loop.Post(func() { w.resize(width, height) })
	})
	w.toplevel.SetCloseHandler(func(e xdg_shell.ToplevelCloseEvent) {
		om.loop.Post(w.userClosed)
	})
	w.xdgSurface.SetConfigureHandler(func(e xdg_shell.SurfaceConfigureEvent) {
		om.loop.Post(func() { w.ackConfigure(e.Serial) })
	})

	w.face.setChangeHook(w.invalidate)

	if err := surface.Commit(); err != nil {
		w.Close()
		return nil, fmt.Errorf("unable to commit surface: %w", err)
	}
	lg.Debug("overlay window created", "display", d)
	return w, nil
}

func (w *overlayWindow) Display() clocks.Display { return w.display }

func (w *overlayWindow) View() clocks.ClockView { return w.face }

func (w *overlayWindow) SetAlpha(alpha float64) {
	w.alpha = alpha
	w.redraw()
}

func (w *overlayWindow) SetBackgroundAlpha(alpha float64) {
	w.bgAlpha = alpha
	w.invalidate()
}

func (w *overlayWindow) SetCloseHandler(fn func()) {
	w.mu.Lock()
	w.onClose = fn
	w.mu.Unlock()
}

func (w *overlayWindow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.onClose = nil
	w.mu.Unlock()

	w.face.setChangeHook(nil)
	if w.toplevel != nil {
		w.toplevel.Destroy()
	}
	if w.xdgSurface != nil {
		w.xdgSurface.Destroy()
	}
	w.surface.Destroy()
	if w.pool != nil {
		w.pool.destroy()
		w.pool = nil
	}
	lg.Debug("overlay window closed", "display", w.display)
}

func (w *overlayWindow) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *overlayWindow) userClosed() {
	w.mu.Lock()
	fn := w.onClose
	w.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (w *overlayWindow) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	w.base = nil
}

func (w *overlayWindow) ackConfigure(serial uint32) {
	if w.isClosed() {
		return
	}
	if err := w.xdgSurface.AckConfigure(serial); err != nil {
		lg.Error("failed to ack configure", "display", w.display, "error", err)
		return
	}
	w.configured = true
	w.redraw()
}

// invalidate drops the cached background and face.
func (w *overlayWindow) invalidate() {
	w.base = nil
	w.redraw()
}

func (w *overlayWindow) redraw() {
	if !w.configured || w.isClosed() || w.width <= 0 || w.height <= 0 {
		return
	}

	if w.pool == nil || w.pool.width != w.width || w.pool.height != w.height {
		if w.pool != nil {
			w.pool.destroy()
		}
		pool, err := newShmPool(w.om.shm, w.width, w.height, func() {
			w.om.loop.Post(w.flushPending)
		})
		if err != nil {
			lg.Error("failed to allocate buffers", "display", w.display, "error", err)
			w.pool = nil
			return
		}
		w.pool = pool
	}

	buf := w.pool.acquire()
	if buf == nil {
		w.pending = true
		return
	}
	w.pending = false

	if w.base == nil {
		img := image.NewRGBA(image.Rect(0, 0, w.width, w.height))
		bg := color.NRGBA{A: uint8(w.bgAlpha*255 + 0.5)}
		draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
		w.face.Draw(img)
		w.base = make([]byte, 4*w.width*w.height)
		toARGB(w.base, img)
	}
	scaleARGB(buf.data, w.base, w.alpha)

	w.surface.Attach(buf.buffer, 0, 0)
	w.surface.Damage(0, 0, int32(w.width), int32(w.height))
	if err := w.surface.Commit(); err != nil {
		lg.Error("failed to commit frame", "display", w.display, "error", err)
	}
}

func (w *overlayWindow) flushPending() {
	if w.pending {
		w.redraw()
	}
}

// toARGB copies premultiplied src into dst as little-endian ARGB8888.
func toARGB(dst []byte, src *image.RGBA) {
	b := src.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[src.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+4]
			dst[i+0] = p[2]
			dst[i+1] = p[1]
			dst[i+2] = p[0]
			dst[i+3] = p[3]
			i += 4
		}
	}
}

// Frames smaller than this are scaled on the calling goroutine.
const minParallelBytes = 1 << 20

// scaleARGB writes src into dst with every premultiplied channel scaled by
// alpha. Large frames are split into bands scaled concurrently.
func scaleARGB(dst, src []byte, alpha float64) {
	dst = dst[:len(src)]
	a := uint32(max(0, min(1, alpha))*255 + 0.5)
	switch a {
	case 0:
		clear(dst)
		return
	case 255:
		copy(dst, src)
		return
	}

	var table [256]byte
	for v := range table {
		table[v] = uint8(uint32(v) * a / 255)
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 2 || len(src) < minParallelBytes {
		scaleBand(dst, src, &table)
		return
	}
	band := (len(src)/workers + 3) &^ 3
	var wg sync.WaitGroup
	for start := 0; start < len(src); start += band {
		end := min(start+band, len(src))
		wg.Add(1)
		go func(d, s []byte) {
			defer wg.Done()
			scaleBand(d, s, &table)
		}(dst[start:end], src[start:end])
	}
	wg.Wait()
}

func scaleBand(dst, src []byte, table *[256]byte) {
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = table[v]
	}
}

type shmBuffer struct {
	buffer *client.Buffer
	data   []byte
	busy   atomic.Bool
}

// shmPool holds two buffers in one memfd so a frame can be drawn while
// the compositor still reads the other.
type shmPool struct {
	width, height int
	mem           []byte
	pool          *client.ShmPool
	buffers       [2]*shmBuffer
	onRelease     func()
}

func newShmPool(shm *client.Shm, width, height int, onRelease func()) (*shmPool, error) {
	stride := width * 4
	size := stride * height

	fd, err := unix.MemfdCreate("goclock-buffer", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(2*size)); err != nil {
		return nil, fmt.Errorf("ftruncate: %w", err)
	}

	mem, err := unix.Mmap(fd, 0, 2*size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	pool, err := shm.CreatePool(fd, int32(2*size))
	if err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &shmPool{width: width, height: height, mem: mem, pool: pool, onRelease: onRelease}
	for i := range p.buffers {
		buffer, err := pool.CreateBuffer(int32(i*size), int32(width), int32(height), int32(stride), uint32(client.ShmFormatArgb8888))
		if err != nil {
			p.destroy()
			return nil, fmt.Errorf("create buffer: %w", err)
		}
		b := &shmBuffer{buffer: buffer, data: mem[i*size : (i+1)*size]}
		buffer.SetReleaseHandler(func(client.BufferReleaseEvent) {
			b.busy.Store(false)
			if p.onRelease != nil {
				p.onRelease()
			}
		})
		p.buffers[i] = b
	}
	return p, nil
}

func (p *shmPool) acquire() *shmBuffer {
	for _, b := range p.buffers {
		if b != nil && b.busy.CompareAndSwap(false, true) {
			return b
		}
	}
	return nil
}

func (p *shmPool) destroy() {
	for _, b := range p.buffers {
		if b != nil {
			b.buffer.Destroy()
		}
	}
	p.pool.Destroy()
	unix.Munmap(p.mem)
}
