package main

import (
	"fmt"
	"sync"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	xdg_shell "github.com/rajveermalviya/go-wayland/wayland/stable/xdg-shell"
	"github.com/trbjo/goclock/clocks"
)

type poster interface {
	Post(fn func())
}

// OutputManager tracks wl_output globals and hands out overlay windows on
// them. Wayland events are dispatched on a private goroutine; everything
// that reaches the controller is posted to the run loop.
type OutputManager struct {
	display    *client.Display
	registry   *client.Registry
	compositor *client.Compositor
	shm        *client.Shm
	wmBase     *xdg_shell.WmBase

	loop     poster
	primary  string
	outputs  map[uint32]*outputInfo
	order    []uint32
	onChange func([]clocks.Display)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

type outputInfo struct {
	output *client.Output
	global uint32
	name   string
	frame  clocks.Rect
	ready  bool
}

func (o *outputInfo) display() clocks.Display {
	name := o.name
	if name == "" {
		name = fmt.Sprintf("output-%d", o.global)
	}
	return clocks.Display{Name: name, Frame: o.frame}
}

// NewOutputManager connects to the compositor. primary names the output
// that never gets an overlay; empty means the first announced output.
func NewOutputManager(loop poster, primary string) (*OutputManager, error) {
	display, err := client.Connect("")
	if err != nil {
		return nil, fmt.Errorf("unable to connect to wayland: %w", err)
	}

	registry, err := display.GetRegistry()
	if err != nil {
		display.Context().Close()
		return nil, fmt.Errorf("unable to get registry: %w", err)
	}

	om := &OutputManager{
		display:  display,
		registry: registry,
		loop:     loop,
		primary:  primary,
		outputs:  make(map[uint32]*outputInfo),
	}

	if err := om.initialize(); err != nil {
		display.Context().Close()
		return nil, err
	}

	om.StartEventLoop()

	return om, nil
}

func (om *OutputManager) initialize() error {
	om.registry.SetGlobalHandler(om.handleGlobal)
	om.registry.SetGlobalRemoveHandler(om.handleGlobalRemove)

	// globals, then the output events they trigger
	om.displayRoundTrip()
	om.displayRoundTrip()

	if om.compositor == nil || om.shm == nil || om.wmBase == nil {
		return fmt.Errorf("missing required Wayland interfaces")
	}
	return nil
}

func (om *OutputManager) handleGlobal(e client.RegistryGlobalEvent) {
	ctx := om.display.Context()
	switch e.Interface {
	case "wl_compositor":
		om.compositor = client.NewCompositor(ctx)
		if err := om.registry.Bind(e.Name, e.Interface, e.Version, om.compositor); err != nil {
			lg.Error("failed to bind compositor", "error", err)
		}
	case "wl_shm":
		om.shm = client.NewShm(ctx)
		if err := om.registry.Bind(e.Name, e.Interface, e.Version, om.shm); err != nil {
			lg.Error("failed to bind shm", "error", err)
		}
	case "xdg_wm_base":
		om.wmBase = xdg_shell.NewWmBase(ctx)
		if err := om.registry.Bind(e.Name, e.Interface, e.Version, om.wmBase); err != nil {
			lg.Error("failed to bind xdg_wm_base", "error", err)
			return
		}
		om.wmBase.SetPingHandler(func(e xdg_shell.WmBasePingEvent) {
			om.wmBase.Pong(e.Serial)
		})
	case "wl_output":
		output := client.NewOutput(ctx)
		if err := om.registry.Bind(e.Name, e.Interface, min(e.Version, 4), output); err != nil {
			lg.Error("failed to bind output", "error", err)
			return
		}
		om.setupOutput(e.Name, output)
	}
}

func (om *OutputManager) setupOutput(global uint32, output *client.Output) {
	info := &outputInfo{output: output, global: global}

	om.mu.Lock()
	om.outputs[global] = info
	om.order = append(om.order, global)
	om.mu.Unlock()

	output.SetNameHandler(func(e client.OutputNameEvent) {
		om.mu.Lock()
		info.name = e.Name
		om.mu.Unlock()
	})

	output.SetGeometryHandler(func(e client.OutputGeometryEvent) {
		om.mu.Lock()
		info.frame.X, info.frame.Y = int(e.X), int(e.Y)
		om.mu.Unlock()
	})

	output.SetModeHandler(func(e client.OutputModeEvent) {
		if e.Flags&uint32(client.OutputModeCurrent) == 0 {
			return
		}
		om.mu.Lock()
		info.frame.Width, info.frame.Height = int(e.Width), int(e.Height)
		om.mu.Unlock()
	})

	output.SetDoneHandler(func(e client.OutputDoneEvent) {
		om.mu.Lock()
		info.ready = true
		om.mu.Unlock()
		lg.Debug("output ready", "output", info.display())
		om.notify()
	})
}

func (om *OutputManager) handleGlobalRemove(e client.RegistryGlobalRemoveEvent) {
	om.mu.Lock()
	info, ok := om.outputs[e.Name]
	if ok {
		delete(om.outputs, e.Name)
		for i, g := range om.order {
			if g == e.Name {
				om.order = append(om.order[:i], om.order[i+1:]...)
				break
			}
		}
	}
	om.mu.Unlock()

	if !ok {
		return
	}
	lg.Debug("output removed", "output", info.display())
	if err := info.output.Release(); err != nil {
		lg.Debug("failed to release output", "error", err)
	}
	om.notify()
}

func (om *OutputManager) displayRoundTrip() {
	callback, err := om.display.Sync()
	if err != nil {
		lg.Error("unable to get sync callback", "error", err)
		return
	}
	defer callback.Destroy()

	done := false
	callback.SetDoneHandler(func(_ client.CallbackDoneEvent) {
		done = true
	})

	for !done {
		if err := om.display.Context().Dispatch(); err != nil {
			lg.Error("dispatch failed", "error", err)
			return
		}
	}
}

// OnChange registers fn to receive the secondary displays whenever the
// output topology changes. fn runs on the run loop.
func (om *OutputManager) OnChange(fn func([]clocks.Display)) {
	om.mu.Lock()
	om.onChange = fn
	om.mu.Unlock()
	om.notify()
}

func (om *OutputManager) notify() {
	om.mu.Lock()
	fn := om.onChange
	om.mu.Unlock()
	if fn == nil {
		return
	}
	screens := om.AllowedScreens()
	om.loop.Post(func() { fn(screens) })
}

func (om *OutputManager) readyDisplays() []clocks.Display {
	om.mu.Lock()
	defer om.mu.Unlock()

	displays := make([]clocks.Display, 0, len(om.order))
	for _, g := range om.order {
		if info := om.outputs[g]; info.ready {
			displays = append(displays, info.display())
		}
	}
	return displays
}

// AllowedScreens returns every ready output except the primary one.
func (om *OutputManager) AllowedScreens() []clocks.Display {
	_, secondary := splitPrimary(om.readyDisplays(), om.primary)
	return secondary
}

// PrimaryName returns the name of the output the clock never covers.
func (om *OutputManager) PrimaryName() string {
	primary, _ := splitPrimary(om.readyDisplays(), om.primary)
	return primary
}

// splitPrimary picks the preferred output, or the first one when the
// preferred name is empty or absent, and returns the rest in order.
func splitPrimary(displays []clocks.Display, preferred string) (string, []clocks.Display) {
	if len(displays) == 0 {
		return "", nil
	}
	primary := displays[0].Name
	for _, d := range displays {
		if preferred != "" && d.Name == preferred {
			primary = preferred
			break
		}
	}
	rest := make([]clocks.Display, 0, len(displays)-1)
	for _, d := range displays {
		if d.Name != primary {
			rest = append(rest, d)
		}
	}
	return primary, rest
}

func (om *OutputManager) lookup(name string) *client.Output {
	om.mu.Lock()
	defer om.mu.Unlock()
	for _, g := range om.order {
		if info := om.outputs[g]; info.display().Name == name {
			return info.output
		}
	}
	return nil
}

// NewWindow implements clocks.WindowFactory.
func (om *OutputManager) NewWindow(d clocks.Display, opts clocks.WindowOptions) (clocks.Window, error) {
	output := om.lookup(d.Name)
	if output == nil {
		return nil, fmt.Errorf("output %s not found", d.Name)
	}
	return newOverlayWindow(om, output, d, opts)
}

func (om *OutputManager) StartEventLoop() {
	om.mu.Lock()
	if om.running {
		om.mu.Unlock()
		return
	}
	om.running = true
	om.stopCh = make(chan struct{})
	stopCh := om.stopCh
	om.mu.Unlock()

	go func() {
		for {
			select {
			case <-stopCh:
				return
			default:
				if err := om.display.Context().Dispatch(); err != nil {
					lg.Error("wayland connection lost", "error", err)
					return
				}
			}
		}
	}()
}

func (om *OutputManager) StopEventLoop() {
	om.mu.Lock()
	defer om.mu.Unlock()
	if !om.running {
		return
	}
	close(om.stopCh)
	om.running = false
}

func (om *OutputManager) Close() {
	om.StopEventLoop()

	om.mu.Lock()
	defer om.mu.Unlock()

	for _, info := range om.outputs {
		info.output.Release()
	}
	om.outputs = make(map[uint32]*outputInfo)
	om.order = nil
	if om.wmBase != nil {
		om.wmBase.Destroy()
	}
	om.display.Context().Close()
}
