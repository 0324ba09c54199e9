// Package logging builds the component loggers used across the module.
//
// Every component logs through a standard *log.Logger prefixed with its
// name in brackets. When a log file is configured the output is rotated by
// lumberjack; otherwise it goes to stderr.
package logging

import (
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where log output goes.
type Config struct {
	// File is the log file path. Empty logs to stderr.
	File string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Factory hands out component loggers sharing one output.
type Factory struct {
	out    io.Writer
	closer io.Closer

	mu      sync.Mutex
	loggers map[string]*log.Logger
}

// New creates a Factory for config.
func New(config Config) *Factory {
	f := &Factory{loggers: make(map[string]*log.Logger)}
	if config.File == "" {
		f.out = os.Stderr
		return f
	}

	lj := &lumberjack.Logger{
		Filename:   config.File,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
	}
	f.out = lj
	f.closer = lj
	return f
}

// Discard returns a Factory whose loggers drop everything.
func Discard() *Factory {
	return &Factory{out: io.Discard, loggers: make(map[string]*log.Logger)}
}

// Logger returns the logger for component, e.g. "engine" logs as
// "[engine] ...". Repeated calls return the same logger.
func (f *Factory) Logger(component string) *log.Logger {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.loggers[component]; ok {
		return l
	}
	flags := log.LstdFlags
	if f.out == io.Discard {
		flags = 0
	}
	l := log.New(f.out, "["+component+"] ", flags)
	f.loggers[component] = l
	return l
}

// Writer returns the shared output.
func (f *Factory) Writer() io.Writer {
	return f.out
}

// Close closes the log file, if there is one.
func (f *Factory) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
