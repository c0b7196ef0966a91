package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rivo/tview"
	"github.com/rs/zerolog"
)

type Types int

const (
	Info Types = iota
	Error
	Warn
	Fatal
)

type Message struct {
	Timestamp time.Time
	Tag       string
	Message   string
	LogTypes  Types
}

type manager struct {
	view    *tview.TextView
	dev     atomic.Bool
	logFile *os.File
	sink    zerolog.Logger
	console zerolog.Logger
	logChan chan Message
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Logger struct {
	tag string
	m   *manager
}

var (
	logManager *manager
	once       sync.Once
	closeOnce  sync.Once
)

// fallback used before InitLogger runs, e.g. in package tests
var quiet = &manager{sink: zerolog.Nop(), console: zerolog.Nop()}

// InitLogger configures the shared log sinks. In dev mode messages are
// mirrored into view, or onto stderr when there is no view. When logPath is
// set every message is also written to a timestamped file there.
func InitLogger(dev bool, logPath string, view *tview.TextView) error {
	var initErr error
	once.Do(func() {
		m := &manager{
			view:    view,
			sink:    zerolog.Nop(),
			console: zerolog.Nop(),
			logChan: make(chan Message, 100),
			done:    make(chan struct{}),
		}
		if logPath != "" {
			timestamp := time.Now().Format("20060102_150405")
			fileName := fmt.Sprintf("eyesy_log_%s.log", timestamp)
			filePath := filepath.Join(logPath, fileName)

			file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				initErr = fmt.Errorf("open log file: %w", err)
				return
			}
			m.logFile = file
			m.sink = zerolog.New(file).With().Timestamp().Logger()
		}
		if dev && view == nil {
			m.console = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
				With().Timestamp().Logger()
		}

		m.dev.Store(dev)
		logManager = m
		go logManager.processLogs()
	})
	return initErr
}

func NewLogger(tag string) *Logger {
	if logManager == nil {
		return &Logger{tag: tag, m: quiet}
	}
	return &Logger{tag: tag, m: logManager}
}

func (m *manager) processLogs() {
	defer close(m.done)
	for msg := range m.logChan {
		event(m.sink, msg.LogTypes).
			Time("ts", msg.Timestamp).
			Str("tag", msg.Tag).
			Msg(msg.Message)
	}
}

func event(zl zerolog.Logger, t Types) *zerolog.Event {
	switch t {
	case Error:
		return zl.Error()
	case Warn:
		return zl.Warn()
	case Fatal:
		// WithLevel keeps zerolog from exiting before the file is flushed
		return zl.WithLevel(zerolog.FatalLevel)
	default:
		return zl.Info()
	}
}

func (l *Logger) log(logTypes Types, v ...interface{}) {
	message := fmt.Sprint(v...)
	m := l.m
	if m.dev.Load() {
		if m.view != nil {
			var format string
			switch logTypes {
			case Info:
				format = "[green]DEBUG (%s): %s[-]\n"
			case Error:
				format = "[red]DEBUG (%s): %s[-]\n"
			case Warn:
				format = "[yellow]DEBUG (%s): %s[-]\n"
			case Fatal:
				format = "[red]DEBUG (%s): %s[-]\n"
			}
			fmt.Fprintf(m.view, format, l.tag, tview.Escape(message))
		} else {
			event(m.console, logTypes).Str("tag", l.tag).Msg(message)
		}
	}

	if m.logFile != nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		if m.closed {
			return
		}
		m.logChan <- Message{
			Timestamp: time.Now(),
			Tag:       l.tag,
			Message:   message,
			LogTypes:  logTypes,
		}
	}
}

func (l *Logger) Info(v ...interface{}) {
	l.log(Info, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.log(Info, fmt.Sprintf(format, v...))
}

func (l *Logger) Error(v ...interface{}) {
	l.log(Error, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.log(Error, fmt.Sprintf(format, v...))
}

func (l *Logger) Warn(v ...interface{}) {
	l.log(Warn, v...)
}

func (l *Logger) Fatal(v ...interface{}) {
	l.log(Fatal, v...)
	Close()
	os.Exit(1)
}

// Writer adapts the logger for libraries that want an io.Writer.
func (l *Logger) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.Info(string(p))
		return len(p), nil
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// SetMirror turns mirroring into the debug view on or off at runtime.
func SetMirror(on bool) {
	if logManager != nil {
		logManager.dev.Store(on)
	}
}

// Close drains pending file records and closes the log file.
func Close() {
	if logManager == nil {
		return
	}
	closeOnce.Do(func() {
		logManager.mu.Lock()
		logManager.closed = true
		close(logManager.logChan)
		logManager.mu.Unlock()
		<-logManager.done
		if logManager.logFile != nil {
			logManager.logFile.Close()
		}
	})
}

func (t Types) String() string {
	switch t {
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
