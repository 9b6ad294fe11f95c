// Package log is a small geth-style structured logger: leveled records of
// alternating key/value pairs, rendered through a colorized terminal
// handler when the output is a terminal and plain text otherwise. It exists so the
// rest of this module never reaches for fmt.Println or the stdlib "log"
// package for anything a reader is meant to see.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is the severity of a log record, ordered least to most severe.
type Level int

const (
	LvlDebug Level = iota
	LvlInfo
	LvlWarn
	LvlError
)

func (l Level) String() string {
	switch l {
	case LvlDebug:
		return "DEBG"
	case LvlInfo:
		return "INFO"
	case LvlWarn:
		return "WARN"
	case LvlError:
		return "EROR"
	default:
		return "????"
	}
}

var levelColor = map[Level]*color.Color{
	LvlDebug: color.New(color.FgHiBlack),
	LvlInfo:  color.New(color.FgGreen),
	LvlWarn:  color.New(color.FgYellow),
	LvlError: color.New(color.FgRed, color.Bold),
}

// Logger writes leveled, keyval records. The zero value is not usable; use
// New or the package-level default logger via Debug/Info/Warn/Error.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	minLevel Level
	ctx      []interface{}
}

// New builds a Logger writing to w. If w is a terminal, output is
// colorized; ctx is a list of key/value pairs attached to every record
// (mirrors geth's log.New(ctx...) pattern).
func New(w io.Writer, ctx ...interface{}) *Logger {
	colorize := false
	if f, ok := w.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return &Logger{out: w, colorize: colorize, minLevel: LvlDebug, ctx: ctx}
}

// SetLevel changes the minimum level that is actually written.
func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = lvl
}

// New returns a child logger with additional context key/values.
func (l *Logger) New(ctx ...interface{}) *Logger {
	return &Logger{out: l.out, colorize: l.colorize, minLevel: l.minLevel, ctx: append(append([]interface{}{}, l.ctx...), ctx...)}
}

func (l *Logger) write(lvl Level, msg string, kv []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl < l.minLevel {
		return
	}
	var b strings.Builder
	ts := time.Now().Format("01-02|15:04:05.000")
	if l.colorize {
		levelColor[lvl].Fprint(&b, lvl.String())
	} else {
		b.WriteString(lvl.String())
	}
	fmt.Fprintf(&b, "[%s] %s", ts, msg)
	all := append(append([]interface{}{}, l.ctx...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	b.WriteByte('\n')
	io.WriteString(l.out, b.String())
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.write(LvlDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.write(LvlInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.write(LvlWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.write(LvlError, msg, kv) }

var root = New(os.Stderr)

// Root returns the process-wide default logger.
func Root() *Logger { return root }

func Debug(msg string, kv ...interface{}) { root.Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { root.Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { root.Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { root.Error(msg, kv...) }
