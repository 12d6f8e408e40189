package types

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/journald"
)

func isJournaldAvailable() bool {
	conn, err := net.Dial("unixgram", "/run/systemd/journal/socket")
	if err != nil {
		return false
	}
	defer conn.Close()
	return true
}

// NewSessionLogger opens the transcript for one installation run: an
// append-only file named install-<YYYYMMDD-HHMMSS>.log under dir. Everything
// the installer displays, and everything captured from collaborator commands,
// goes through it. A console writer is attached unless quiet is set, and a
// journald writer when the journal socket is reachable.
// The level defaults to info and can be overridden by ARCHON_DEBUG or
// ARCHON_TRACE in the environment.
func NewSessionLogger(dir, level string, quiet bool) (SessionLogger, error) {
	var loggers []io.Writer

	if err := os.MkdirAll(dir, os.ModeDir|os.ModePerm); err != nil {
		return SessionLogger{}, fmt.Errorf("creating log dir: %w", err)
	}
	logName := fmt.Sprintf("install-%s.log", time.Now().Format("20060102-150405"))
	logFileName := filepath.Join(dir, logName)

	logfile, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return SessionLogger{}, fmt.Errorf("opening transcript %s: %w", logFileName, err)
	}
	loggers = append(loggers, zerolog.ConsoleWriter{Out: logfile, TimeFormat: time.RFC3339, NoColor: true})
	fileLock := flock.New(logFileName + ".lock")

	if isJournaldAvailable() {
		loggers = append(loggers, journald.NewJournalDWriter())
	}

	if !quiet {
		loggers = append(loggers, zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = time.RFC3339
		}))
	}

	// Parse the level, default to info
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		l = zerolog.InfoLevel
	}

	multi := zerolog.MultiLevelWriter(loggers...)

	if os.Getenv("ARCHON_DEBUG") != "" {
		l = zerolog.DebugLevel
	}
	if os.Getenv("ARCHON_TRACE") != "" {
		l = zerolog.TraceLevel
	}
	k := SessionLogger{
		zerolog.New(multi).With().Timestamp().Logger().Level(l),
		fileLock,
		logfile,
		logFileName,
	}

	// Set the finalizer to call the cleanup method
	runtime.SetFinalizer(&k, func(k *SessionLogger) {
		k.Cleanup()
	})

	return k, nil
}

func (k *SessionLogger) Cleanup() {
	if k.fileLock != nil {
		k.fileLock.Lock()
		defer k.fileLock.Unlock()
	}

	if k.logFile != nil {
		k.logFile.Close()
		k.logFile = nil
	}
	if k.fileLock != nil {
		k.fileLock.Unlock()
		k.fileLock = nil
	}
}

func NewBufferLogger(b *bytes.Buffer) SessionLogger {
	return SessionLogger{
		zerolog.New(b).With().Timestamp().Logger(),
		nil,
		nil,
		"",
	}
}

func NewNullLogger() SessionLogger {
	return SessionLogger{
		zerolog.New(io.Discard).With().Timestamp().Logger(),
		nil,
		nil,
		"",
	}
}

// SessionLogger is the zerolog-backed transcript writer shared by the whole
// installation run.
type SessionLogger struct {
	zerolog.Logger
	fileLock *flock.Flock
	logFile  *os.File
	path     string
}

// Path returns the transcript file location, empty for buffer/null loggers.
func (m SessionLogger) Path() string {
	return m.path
}

func (m *SessionLogger) SetLevel(level string) {
	l, _ := zerolog.ParseLevel(level)
	m.Logger = m.Logger.Level(l)
}

func (m SessionLogger) IsDebug() bool {
	return m.Logger.GetLevel() == zerolog.DebugLevel
}

func (m SessionLogger) Infof(tpl string, args ...interface{}) {
	m.Logger.Info().Msg(fmt.Sprintf(tpl, args...))
}

func (m SessionLogger) Warnf(tpl string, args ...interface{}) {
	m.Logger.Warn().Msg(fmt.Sprintf(tpl, args...))
}

func (m SessionLogger) Errorf(tpl string, args ...interface{}) {
	m.Logger.Error().Msg(fmt.Sprintf(tpl, args...))
}

func (m SessionLogger) Debugf(tpl string, args ...interface{}) {
	m.Logger.Debug().Msg(fmt.Sprintf(tpl, args...))
}
