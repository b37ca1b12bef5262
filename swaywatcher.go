package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/joshuarubin/go-sway"
)

// SwayWatcher turns sway window and workspace events into the fullscreen
// state of the primary output and a workspace-switch trigger. Handlers run
// on the run loop.
type SwayWatcher struct {
	sway.EventHandler

	client     sway.Client
	loop       poster
	primary    func() string
	fullscreen *SafeState[bool]

	mu                 sync.Mutex
	fullscreenHandlers []func(bool)
	workspaceHandlers  []func()
}

func NewSwayWatcher(ctx context.Context, loop poster, primary func() string) (*SwayWatcher, error) {
	client, err := sway.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to sway: %w", err)
	}
	return &SwayWatcher{
		EventHandler: sway.NoOpEventHandler(),
		client:       client,
		loop:         loop,
		primary:      primary,
		fullscreen:   NewSafeState(false),
	}, nil
}

// OnFullscreenChange implements clocks.FullscreenSource.
func (w *SwayWatcher) OnFullscreenChange(fn func(bool)) {
	w.mu.Lock()
	w.fullscreenHandlers = append(w.fullscreenHandlers, fn)
	w.mu.Unlock()
}

func (w *SwayWatcher) OnWorkspaceChange(fn func()) {
	w.mu.Lock()
	w.workspaceHandlers = append(w.workspaceHandlers, fn)
	w.mu.Unlock()
}

// Forget clears the remembered fullscreen state so the next refresh
// reports it again. Must be called on the run loop.
func (w *SwayWatcher) Forget() {
	w.fullscreen.Set(false)
}

// Run reports the current state and then blocks on the sway event stream.
func (w *SwayWatcher) Run(ctx context.Context) error {
	w.refresh(ctx)
	return sway.Subscribe(ctx, w, sway.EventTypeWindow, sway.EventTypeWorkspace)
}

func (w *SwayWatcher) Window(ctx context.Context, e sway.WindowEvent) {
	w.refresh(ctx)
}

func (w *SwayWatcher) Workspace(ctx context.Context, e sway.WorkspaceEvent) {
	if e.Change != sway.WorkspaceFocus {
		return
	}
	lg.Debug("workspace focus changed")

	w.mu.Lock()
	handlers := append([]func(){}, w.workspaceHandlers...)
	w.mu.Unlock()
	w.loop.Post(func() {
		for _, fn := range handlers {
			fn()
		}
	})
	w.refresh(ctx)
}

func (w *SwayWatcher) refresh(ctx context.Context) {
	tree, err := w.client.GetTree(ctx)
	if err != nil {
		lg.Error("failed to get sway tree", "error", err)
		return
	}
	on := fullscreenOn(tree, w.primary())
	w.loop.Post(func() { w.apply(on) })
}

func (w *SwayWatcher) apply(on bool) {
	if !w.fullscreen.Swap(on) {
		return
	}
	lg.Info("fullscreen changed", "fullscreen", on)

	w.mu.Lock()
	handlers := append([]func(bool){}, w.fullscreenHandlers...)
	w.mu.Unlock()
	for _, fn := range handlers {
		fn(on)
	}
}

func walkTree(node *sway.Node, f func(node *sway.Node)) {
	f(node)

	for _, n := range node.Nodes {
		walkTree(n, f)
	}

	for _, n := range node.FloatingNodes {
		walkTree(n, f)
	}
}

// fullscreenOn reports whether the named output shows a fullscreen
// container: a visible one in output fullscreen on it, or any container in
// global fullscreen, which spans every output. An empty name matches the
// first real output.
func fullscreenOn(tree *sway.Node, output string) bool {
	if tree == nil {
		return false
	}

	global := false
	walkTree(tree, func(node *sway.Node) {
		if isContainer(node) && node.FullscreenMode == sway.FullscreenGlobal {
			global = true
		}
	})
	if global {
		return true
	}

	var target *sway.Node
	for _, o := range tree.Nodes {
		if o.Type != sway.NodeOutput || strings.HasPrefix(o.Name, "__") {
			continue
		}
		if output == "" || o.Name == output {
			target = o
			break
		}
	}
	if target == nil {
		return false
	}

	found := false
	walkTree(target, func(node *sway.Node) {
		if isContainer(node) && node.FullscreenMode == sway.FullscreenOutput && shown(node) {
			found = true
		}
	})
	return found
}

func isContainer(node *sway.Node) bool {
	return node.Type == sway.NodeCon || node.Type == sway.NodeFloatingCon
}

// shown reports whether node is on screen. Split containers carry no
// visible flag, so they count as shown when one of their views is.
func shown(node *sway.Node) bool {
	if node.Visible != nil {
		return *node.Visible
	}
	for _, n := range node.Nodes {
		if shown(n) {
			return true
		}
	}
	for _, n := range node.FloatingNodes {
		if shown(n) {
			return true
		}
	}
	return false
}
