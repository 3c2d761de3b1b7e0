package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const shortRequestID = 8

// consoleHandler renders one line per record for terminals:
//
//	15:04:05.000 INFO  [gateway] req=3f2a9c1e conversion completed input_ext=odt
//
// component and request_id are lifted into the prefix. event_type is only
// shown on WARN and above.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool

	component string
	requestID string
	prefix    string // group path for attributes added later, with trailing dot
	preset    []byte // pre-rendered " key=value" pairs from WithAttrs
	presetEvt string
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	line := consoleLine{component: h.component, requestID: h.requestID, event: h.presetEvt}
	line.attrs.Write(h.preset)
	record.Attrs(func(a slog.Attr) bool {
		line.add(h.prefix, a)
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(ts.Format("15:04:05.000"))
	fmt.Fprintf(&buf, " %-5s ", levelLabel(record.Level))
	if line.component != "" {
		buf.WriteString("[" + line.component + "] ")
	}
	if line.requestID != "" {
		id := line.requestID
		if len(id) > shortRequestID {
			id = id[:shortRequestID]
		}
		buf.WriteString("req=" + id + " ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	buf.Write(line.attrs.Bytes())
	if line.event != "" && record.Level >= slog.LevelWarn {
		buf.WriteString(" " + FieldEventType + "=" + line.event)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	line := consoleLine{component: h.component, requestID: h.requestID, event: h.presetEvt}
	line.attrs.Write(h.preset)
	for _, a := range attrs {
		line.add(h.prefix, a)
	}
	clone.component, clone.requestID, clone.presetEvt = line.component, line.requestID, line.event
	clone.preset = line.attrs.Bytes()
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

type consoleLine struct {
	component string
	requestID string
	event     string
	attrs     bytes.Buffer
}

func (l *consoleLine) add(prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			l.add(prefix, ga)
		}
		return
	}
	if prefix == "" {
		switch a.Key {
		case FieldComponent:
			l.component = a.Value.String()
			return
		case FieldRequestID:
			l.requestID = a.Value.String()
			return
		case FieldEventType:
			l.event = a.Value.String()
			return
		}
	}
	l.attrs.WriteString(" " + prefix + a.Key + "=" + formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
