// Package logging builds the component loggers used across the daemon.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a stderr logger tagged with a component prefix, e.g.
// "[controller] ".
func New(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
}

// NewFile returns a component logger writing to a size-rotated log file.
// The daemon uses this so long-running watch sessions do not grow a log
// without bound.
func NewFile(component, path string) *log.Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return log.New(w, "["+component+"] ", log.LstdFlags)
}

// NewFileTee returns a component logger writing to both stderr and a
// rotated log file.
func NewFileTee(component, path string) *log.Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	return log.New(io.MultiWriter(os.Stderr, w), "["+component+"] ", log.LstdFlags)
}
