package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// CustomHandler writes one colored line per record:
// "15:04:05.000 LEVEL message key=value ...".
type CustomHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	color  bool
	attrs  []slog.Attr
	groups []string
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorBlue
	}
}

func (h *CustomHandler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	if h.color {
		b.WriteString(levelColor(r.Level))
		b.WriteString(r.Level.String())
		b.WriteString(colorReset)
	} else {
		b.WriteString(r.Level.String())
	}
	b.WriteByte(' ')
	b.WriteString(r.Message)

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Any())
}

func (h *CustomHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return h2
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

func (h *CustomHandler) clone() *CustomHandler {
	return &CustomHandler{
		mu:     h.mu,
		w:      h.w,
		level:  h.level,
		color:  h.color,
		attrs:  append([]slog.Attr{}, h.attrs...),
		groups: append([]string{}, h.groups...),
	}
}

func NewCustomHandler(w io.Writer, opts *slog.HandlerOptions) *CustomHandler {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	if opts != nil && opts.Level != nil {
		level.Set(opts.Level.Level())
	}
	_, noColor := os.LookupEnv("NO_COLOR")
	return &CustomHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		color: !noColor,
	}
}

var Slog *slog.Logger

func init() {
	Slog = slog.New(NewCustomHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(Slog)
}

// SetLogLevel changes the level of the global logger at runtime.
func SetLogLevel(val string) {
	var level slog.Level
	err := level.UnmarshalText([]byte(val))
	if err != nil {
		Slog.Info("could not parse loglevel, keeping as is", "value", val)
		return
	}

	handler, ok := Slog.Handler().(*CustomHandler)
	if !ok {
		Slog.Info("Handler is not a CustomHandler, cannot change log level")
		return
	}

	handler.level.Set(level)
	Slog.Info("Log level changed", "level", level)
}
