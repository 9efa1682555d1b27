// Package logging builds the leveled stderr logger shared by the CLI and the
// packages it wires together.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

type Options struct {
	// Level is one of debug, info, warn, error or fatal. Empty means warn.
	Level  string
	Prefix string
	// Writer defaults to os.Stderr so JSON on stdout stays clean.
	Writer io.Writer
	// JSON switches to one JSON object per line.
	JSON bool
}

// New returns a logger configured by opts.
func New(opts Options) (*log.Logger, error) {
	level := log.WarnLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	o := log.Options{
		Prefix: opts.Prefix,
		Level:  level,
	}
	if opts.JSON {
		o.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, o), nil
}
