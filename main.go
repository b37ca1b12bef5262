package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/trbjo/goclock/clocks"
	"github.com/trbjo/goclock/logger"
	"github.com/trbjo/goclock/utilities"
)

var lg = logger.Slog

func configPath() string {
	if path := os.Getenv("GOCLOCK_CONFIG"); path != "" {
		return path
	}
	path, err := utilities.ConfigPath("config.json")
	if err != nil {
		lg.Error("no config directory", "error", err)
		os.Exit(1)
	}
	return path
}

func main() {
	config := initConfig(configPath())
	logger.SetLogLevel(config.LogLevel)

	prefsPath, err := utilities.ConfigPath("preferences.json")
	if err != nil {
		lg.Error("no config directory", "error", err)
		os.Exit(1)
	}
	prefs, err := LoadPreferences(prefsPath)
	if prefs == nil {
		lg.Error("Failed to load preferences", "error", err)
		os.Exit(1)
	}
	if err != nil {
		lg.Warn("preferences unreadable, using defaults", "path", prefsPath, "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loop := clocks.NewRunLoop()

	om, err := NewOutputManager(loop, config.PrimaryOutput)
	if err != nil {
		lg.Error("Failed to create OutputManager", "error", err)
		os.Exit(1)
	}
	defer om.Close()

	var fullscreen clocks.FullscreenSource
	sw, err := NewSwayWatcher(ctx, loop, om.PrimaryName)
	if err != nil {
		lg.Warn("no sway connection, overlay is only controlled over D-Bus", "error", err)
	} else {
		fullscreen = sw
	}

	ctrl := clocks.NewController(clocks.Options{
		Factory:      om,
		Scheduler:    loop,
		Settings:     prefs,
		Fullscreen:   fullscreen,
		Screens:      om.AllowedScreens(),
		FadeStep:     config.FadeStep,
		FadeInterval: config.FadeInterval.Duration,
		Logger:       lg.With("component", "clocks"),
	})
	om.OnChange(ctrl.SetAllowedScreens)

	if sw != nil {
		sw.OnWorkspaceChange(func() {
			if config.KeepOnWorkspaceSwitch {
				return
			}
			ctrl.HideImmediately()
			sw.Forget()
		})
		go func() {
			if err := sw.Run(ctx); err != nil && ctx.Err() == nil {
				lg.Error("sway event stream ended", "error", err)
			}
		}()
	}

	userRequests := make(chan UserRequest, 8)
	conn, emitVisible, err := setupDbus(&GoClockDbus{
		loop:             loop,
		ctrl:             ctrl,
		userRequestsFunc: utilities.CreateNonBlockingSender(userRequests),
	})
	if err != nil {
		lg.Error("D-Bus setup failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	ctrl.OnVisibleChange(emitVisible)

	go func() {
		for {
			select {
			case req := <-userRequests:
				loop.Post(func() { handleRequest(ctrl, prefs, req) })
			case <-ctx.Done():
				return
			}
		}
	}()

	lg.Info("goclock started", "primary", om.PrimaryName(), "secondary", len(om.AllowedScreens()))
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("run loop stopped", "error", err)
	}

	lg.Info("got shutdown signal")
	ctrl.HideImmediately()
	config.Dump()
}
