package log

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LogEvent is a single structured record under construction. Fields are
// appended as flat JSON key/value pairs in call order; Msg (or Msgf)
// finalizes the record and hands it to the owning logger's appenders.
// Instances are pooled by GameLogger, so every exported method must
// tolerate a nil receiver (the level-filtered-out case) by being a no-op.
type LogEvent struct {
	logger *GameLogger
	buf    bytes.Buffer
	level  Level
	fields int
}

func newEvent(logger *GameLogger) *LogEvent {
	e := &LogEvent{logger: logger}
	e.Reset()
	return e
}

// Reset clears the event for reuse from the object pool.
func (e *LogEvent) Reset() {
	e.buf.Reset()
	e.buf.WriteByte('{')
	e.fields = 0
	e.level = InfoLevel
}

func (e *LogEvent) key(name string) {
	if e.fields > 0 {
		e.buf.WriteByte(',')
	}
	e.fields++
	e.buf.WriteByte('"')
	e.buf.WriteString(name)
	e.buf.WriteString(`":`)
}

// Str appends a string field.
func (e *LogEvent) Str(key, val string) *LogEvent {
	if e == nil {
		return nil
	}
	e.key(key)
	e.buf.WriteByte('"')
	e.buf.WriteString(escapeJSONString(val))
	e.buf.WriteByte('"')
	return e
}

// Int appends a signed integer field.
func (e *LogEvent) Int(key string, val int) *LogEvent {
	if e == nil {
		return nil
	}
	e.key(key)
	e.buf.WriteString(strconv.Itoa(val))
	return e
}

// Uint64 appends an unsigned 64-bit field, the usual shape for ids
// (connection, session, server, actor) that never need a sign.
func (e *LogEvent) Uint64(key string, val uint64) *LogEvent {
	if e == nil {
		return nil
	}
	e.key(key)
	e.buf.WriteString(strconv.FormatUint(val, 10))
	return e
}

// Bool appends a boolean field.
func (e *LogEvent) Bool(key string, val bool) *LogEvent {
	if e == nil {
		return nil
	}
	e.key(key)
	e.buf.WriteString(strconv.FormatBool(val))
	return e
}

// Err appends the conventional "error" field. A nil error is a no-op so
// callers can chain .Err(err) unconditionally.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	return e.Str("error", err.Error())
}

// Time appends an RFC3339Nano-formatted time field.
func (e *LogEvent) Time(key string, t *time.Time) *LogEvent {
	if e == nil || t == nil {
		return e
	}
	return e.Str(key, t.Format(time.RFC3339Nano))
}

// Msg finalizes the event, writes the rendered line to every appender on
// the owning logger, and returns the event to the pool.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	e.key("message")
	e.buf.WriteByte('"')
	e.buf.WriteString(escapeJSONString(msg))
	e.buf.WriteString("\"}\n")
	e.logger.OnEventEnd(e)
}

// Msgf formats args per format before finalizing the event.
func (e *LogEvent) Msgf(format string, args ...any) {
	if e == nil {
		return
	}
	e.Msg(fmt.Sprintf(format, args...))
}

var jsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeJSONString(s string) string {
	return jsonEscaper.Replace(s)
}
