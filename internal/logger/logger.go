package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cenkalti/log"
)

var (
	handler  log.Handler
	mHandler sync.Mutex
	loggers  []log.Logger
)

func init() {
	SetHandler(log.NewFileHandler(os.Stderr))
}

// SetHandler changes the global logging handler.
// Loggers created before the call are switched to the new handler too.
func SetHandler(h log.Handler) {
	mHandler.Lock()
	defer mHandler.Unlock()
	h.SetLevel(currentLevel)
	handler = h
	handler.SetFormatter(logFormatter{})
	for _, l := range loggers {
		l.SetHandler(handler)
	}
}

var currentLevel = log.INFO

// SetLevel sets the logging level on the global handler.
func SetLevel(l log.Level) {
	mHandler.Lock()
	defer mHandler.Unlock()
	currentLevel = l
	handler.SetLevel(l)
}

// ToFile redirects all log output to the file at path.
// The dashboard owns the terminal while it runs, so it logs here instead of stderr.
func ToFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	SetHandler(log.NewFileHandler(f))
	return f, nil
}

// Logger is for logging messages from inside of the program in various logging levels.
type Logger log.Logger

// New returns a new Logger with a name.
// Log messages are prefixed with this name by the default Handler.
func New(name string) Logger {
	logger := log.NewLogger(name)
	logger.SetLevel(log.DEBUG) // forward all messages to handler
	mHandler.Lock()
	logger.SetHandler(handler)
	loggers = append(loggers, logger)
	mHandler.Unlock()
	return logger
}

type logFormatter struct{}

// Format outputs a message like "2014-02-28 18:15:57 INFO     [listener] listener.go:88 received aria2.onDownloadStart"
func (f logFormatter) Format(rec *log.Record) string {
	return fmt.Sprintf("%s %-8s [%s] %-8s %s",
		fmt.Sprint(rec.Time)[:19],
		rec.Level,
		rec.LoggerName,
		filepath.Base(rec.Filename)+":"+strconv.Itoa(rec.Line),
		rec.Message)
}
