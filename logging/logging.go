// Package logging configures the process-wide slog logger used by the
// narrowck command.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// LevelOff is above every level a record is logged at.
const LevelOff = slog.Level(12)

// ParseLogLevel parses a level name. Unknown names return LevelInfo with
// an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "OFF", "NONE":
		return LevelOff, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

type PrettyHandlerOptions struct {
	SlogOpts slog.HandlerOptions
	Color    bool
}

// PrettyHandler writes one line per record: time, level, message and the
// record's attributes as key=value pairs.
type PrettyHandler struct {
	slog.Handler
	out    io.Writer
	mu     *sync.Mutex
	color  bool
	prefix string
	attrs  []slog.Attr
}

func NewPrettyHandler(out io.Writer, opts PrettyHandlerOptions) *PrettyHandler {
	return &PrettyHandler{
		Handler: slog.NewTextHandler(out, &opts.SlogOpts),
		out:     out,
		mu:      &sync.Mutex{},
		color:   opts.Color,
	}
}

func (h *PrettyHandler) levelColor(level slog.Level) *color.Color {
	var c *color.Color
	switch {
	case level >= slog.LevelError:
		c = color.New(color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		c = color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		c = color.New(color.FgBlue)
	default:
		c = color.New(color.FgMagenta)
	}
	if h.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(h.levelColor(r.Level).Sprint(r.Level.String() + ":"))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s%s=%v", prefix, a.Key, a.Value.Any())
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.Handler = h.Handler.WithAttrs(attrs)
	out.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		out.attrs = append(out.attrs, a)
	}
	return &out
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.Handler = h.Handler.WithGroup(name)
	out.prefix = h.prefix + name + "."
	return &out
}

// Setup installs a PrettyHandler writing to out as the default logger.
func Setup(out io.Writer, level slog.Level, useColor bool) {
	slog.SetDefault(slog.New(NewPrettyHandler(out, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
		Color:    useColor,
	})))
}
