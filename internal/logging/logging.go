// Package logging provides the phase-prefixed loggers used throughout the
// installer. It generalizes the bare log.Printf/log.SetPrefix idiom the
// teacher tool uses in its CLI entrypoint into per-component loggers, rather
// than adopting a structured logging library the teacher never imports.
package logging

import (
	"io"
	"log"
	"os"
)

// Logger is the minimal interface components depend on, satisfied by
// *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
	Println(v ...any)
}

var output io.Writer = os.Stderr

// SetOutput redirects every logger created by For after the call to w;
// cmd/collector uses it to tee log output to a state file.
func SetOutput(w io.Writer) { output = w }

// For returns a logger prefixed with the given component name, e.g.
// "[fetch] " or "[scheduler] ".
func For(component string) *log.Logger {
	return log.New(output, "["+component+"] ", log.LstdFlags)
}
