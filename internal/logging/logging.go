// Package logging prints leveled, colored messages for the command line.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Logger writes info and debug lines to Out when enabled, and warnings and
// errors to Err unconditionally.
type Logger struct {
	Verbose bool
	Debug   bool

	Out io.Writer // defaults to os.Stdout
	Err io.Writer // defaults to os.Stderr
}

// New returns a logger writing to the standard streams.
func New(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose || debug, Debug: debug}
}

func (l *Logger) out() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l *Logger) err() io.Writer {
	if l.Err != nil {
		return l.Err
	}
	return os.Stderr
}

func (l *Logger) Infof(msg string, args ...any) {
	if l.Verbose {
		fmt.Fprintf(l.out(), color.GreenString("[info] ")+msg+"\n", args...)
	}
}

func (l *Logger) Debugf(msg string, args ...any) {
	if l.Debug {
		fmt.Fprintf(l.out(), color.CyanString("[debug] ")+msg+"\n", args...)
	}
}

func (l *Logger) Warnf(msg string, args ...any) {
	fmt.Fprintf(l.err(), color.YellowString("[warn] ")+msg+"\n", args...)
}

func (l *Logger) Errorf(msg string, args ...any) {
	fmt.Fprintf(l.err(), color.RedString("[error] ")+msg+"\n", args...)
}
