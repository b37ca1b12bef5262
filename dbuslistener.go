package main

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/trbjo/goclock/clocks"
	"github.com/trbjo/goclock/logger"
)

const (
	dbusInterface = "io.github.trbjo.GoClock"
	dbusPath      = "/io/github/trbjo/GoClock"

	errInvalidArgs = dbusInterface + ".Error.InvalidArgs"
	errStopped     = dbusInterface + ".Error.Stopped"

	minSnapshotSize = 16
	maxSnapshotSize = 1024
)

type GoClockDbus struct {
	loop             *clocks.RunLoop
	ctrl             *clocks.Controller
	userRequestsFunc func(UserRequest)
}

func (o *GoClockDbus) Show() *dbus.Error {
	o.userRequestsFunc(Show)
	return nil
}

func (o *GoClockDbus) Hide() *dbus.Error {
	o.userRequestsFunc(Hide)
	return nil
}

func (o *GoClockDbus) Toggle() *dbus.Error {
	o.userRequestsFunc(Toggle)
	return nil
}

func (o *GoClockDbus) HideImmediately() *dbus.Error {
	o.userRequestsFunc(HideNow)
	return nil
}

func (o *GoClockDbus) RestoreDefaults() *dbus.Error {
	o.userRequestsFunc(RestoreDefaults)
	return nil
}

func (o *GoClockDbus) Visible() (bool, *dbus.Error) {
	var visible bool
	if !o.loop.Call(func() { visible = o.ctrl.Visible() }) {
		return false, dbus.NewError(errStopped, []interface{}{"run loop stopped"})
	}
	return visible, nil
}

func (o *GoClockDbus) Alphas() (float64, float64, float64, *dbus.Error) {
	var bg, face, hands float64
	ok := o.loop.Call(func() {
		bg, face, hands = o.ctrl.BackgroundAlpha(), o.ctrl.FaceAlpha(), o.ctrl.HandsAlpha()
	})
	if !ok {
		return 0, 0, 0, dbus.NewError(errStopped, []interface{}{"run loop stopped"})
	}
	return bg, face, hands, nil
}

func (o *GoClockDbus) SetBackgroundAlpha(v float64) *dbus.Error {
	return o.setAlpha(v, (*clocks.Controller).SetBackgroundAlpha)
}

func (o *GoClockDbus) SetFaceAlpha(v float64) *dbus.Error {
	return o.setAlpha(v, (*clocks.Controller).SetFaceAlpha)
}

func (o *GoClockDbus) SetHandsAlpha(v float64) *dbus.Error {
	return o.setAlpha(v, (*clocks.Controller).SetHandsAlpha)
}

func (o *GoClockDbus) setAlpha(v float64, set func(*clocks.Controller, float64)) *dbus.Error {
	if err := validAlpha(v); err != nil {
		return dbus.NewError(errInvalidArgs, []interface{}{err.Error()})
	}
	o.loop.Post(func() { set(o.ctrl, v) })
	return nil
}

// Snapshot renders the clock as it looks right now into a size x size PNG.
func (o *GoClockDbus) Snapshot(size int32) ([]byte, *dbus.Error) {
	if size < minSnapshotSize || size > maxSnapshotSize {
		return nil, dbus.NewError(errInvalidArgs, []interface{}{
			fmt.Sprintf("size must be within %d..%d", minSnapshotSize, maxSnapshotSize),
		})
	}
	_, face, hands, derr := o.Alphas()
	if derr != nil {
		return nil, derr
	}
	data, err := snapshotPNG(time.Now(), face, hands, int(size))
	if err != nil {
		return nil, dbus.MakeFailedError(err)
	}
	return data, nil
}

func (o *GoClockDbus) LogDebug() *dbus.Error {
	logger.SetLogLevel("debug")
	return nil
}

func (o *GoClockDbus) LogWarn() *dbus.Error {
	logger.SetLogLevel("warn")
	return nil
}

func (o *GoClockDbus) LogInfo() *dbus.Error {
	logger.SetLogLevel("info")
	return nil
}

func validAlpha(v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("alpha %v outside 0..1", v)
	}
	return nil
}

func snapshotPNG(t time.Time, faceAlpha, handsAlpha float64, size int) ([]byte, error) {
	img := NewClockFace(t, faceAlpha, handsAlpha).Snapshot(size)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setupDbus claims the bus name and exports obj. The returned function
// emits VisibleChanged.
func setupDbus(obj *GoClockDbus) (*dbus.Conn, func(bool), error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(dbusInterface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, nil, fmt.Errorf("name %s already taken", dbusInterface)
	}

	if err := conn.Export(obj, dbus.ObjectPath(dbusPath), dbusInterface); err != nil {
		return nil, nil, fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: dbusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    dbusInterface,
				Methods: introspect.Methods(obj),
				Signals: []introspect.Signal{{
					Name: "VisibleChanged",
					Args: []introspect.Arg{{Name: "visible", Type: "b"}},
				}},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), dbus.ObjectPath(dbusPath), "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	emit := func(visible bool) {
		if err := conn.Emit(dbus.ObjectPath(dbusPath), dbusInterface+".VisibleChanged", visible); err != nil {
			lg.Error("failed to emit VisibleChanged", "error", err)
		}
	}

	lg.Debug("Listening on D-Bus", "interface", dbusInterface, "path", dbusPath)
	return conn, emit, nil
}
