package main

import (
	"strconv"

	"github.com/trbjo/goclock/clocks"
)

type UserRequest int

const (
	Show UserRequest = 1 << iota
	Hide
	Toggle
	HideNow
	RestoreDefaults
)

func (t UserRequest) String() string {
	switch t {
	case Show:
		return "Show"
	case Hide:
		return "Hide"
	case Toggle:
		return "Toggle"
	case HideNow:
		return "HideNow"
	case RestoreDefaults:
		return "RestoreDefaults"
	default:
		t := strconv.Itoa(int(t))
		return t
	}
}

type defaultSource interface {
	Default(key string) float64
}

// handleRequest applies a user request to the controller. Runs on the
// run loop.
func handleRequest(ctrl *clocks.Controller, defaults defaultSource, req UserRequest) {
	lg.Debug("user request", "request", req.String())
	switch req {
	case Show:
		ctrl.Show()
	case Hide:
		ctrl.Hide()
	case Toggle:
		ctrl.ToggleVisible()
	case HideNow:
		ctrl.HideImmediately()
	case RestoreDefaults:
		ctrl.SetBackgroundAlpha(defaults.Default(clocks.KeyBackgroundAlpha))
		ctrl.SetFaceAlpha(defaults.Default(clocks.KeyFaceAlpha))
		ctrl.SetHandsAlpha(defaults.Default(clocks.KeyHandsAlpha))
	default:
		lg.Warn("unknown user request", "request", req.String())
	}
}
