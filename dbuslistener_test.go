package main

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/trbjo/goclock/clocks"
)

func newTestDbus(t *testing.T) (*GoClockDbus, *clocks.RunLoop) {
	t.Helper()
	loop := clocks.NewRunLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ctrl := clocks.NewController(clocks.Options{Scheduler: idleScheduler{}})
	obj := &GoClockDbus{
		loop: loop,
		ctrl: ctrl,
		userRequestsFunc: func(req UserRequest) {
			loop.Post(func() { handleRequest(ctrl, nil, req) })
		},
	}
	return obj, loop
}

func TestDbusVisible(t *testing.T) {
	obj, loop := newTestDbus(t)

	if v, err := obj.Visible(); err != nil || v {
		t.Fatalf("Visible = %v, %v", v, err)
	}
	obj.Show()
	loop.Call(func() {})
	if v, err := obj.Visible(); err != nil || !v {
		t.Fatalf("after Show: Visible = %v, %v", v, err)
	}
	obj.Toggle()
	loop.Call(func() {})
	if v, _ := obj.Visible(); v {
		t.Fatal("Toggle did not hide")
	}
}

func TestDbusSetAlpha(t *testing.T) {
	obj, loop := newTestDbus(t)

	for _, bad := range []float64{-0.1, 1.5, math.NaN()} {
		if err := obj.SetFaceAlpha(bad); err == nil {
			t.Errorf("SetFaceAlpha(%v) accepted", bad)
		}
	}

	if err := obj.SetHandsAlpha(0.25); err != nil {
		t.Fatal(err)
	}
	loop.Call(func() {})
	_, face, hands, err := obj.Alphas()
	if err != nil {
		t.Fatal(err)
	}
	if face != 1 || hands != 0.25 {
		t.Fatalf("face, hands = %v, %v", face, hands)
	}
}

func TestDbusSnapshot(t *testing.T) {
	obj, _ := newTestDbus(t)

	if _, err := obj.Snapshot(4); err == nil {
		t.Fatal("tiny snapshot accepted")
	}

	data, derr := obj.Snapshot(64)
	if derr != nil {
		t.Fatal(derr)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("snapshot bounds = %v", b)
	}
	if _, _, _, a := img.At(32, 32).RGBA(); a == 0 {
		t.Fatal("snapshot center is transparent")
	}
}

func TestSnapshotPNGTransparentWhenHidden(t *testing.T) {
	data, err := snapshotPNG(time.Now(), 0, 0, 32)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := img.At(16, 16).RGBA(); a != 0 {
		t.Fatalf("center alpha = %d, want 0", a)
	}
}
