// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package log provides simple level logging for the zff packages. Log
// output is implemented by an Outputter, which by default forwards to
// Go's standard logging package at the Info level. Applications that
// embed the codec install their own Outputter to route messages into
// their logging stack.
//
// If the application wishes to configure the level by standard
// flags, it should call log.AddFlags before flag.Parse.
package log

import (
	"flag"
	"fmt"
	"io"
	golog "log"
	"sync/atomic"
)

// An Outputter provides a destination for leveled log output.
type Outputter interface {
	// Level returns the level at which the outputter is accepting
	// messages.
	Level() Level

	// Output writes the provided message to the outputter at the
	// provided calldepth and level. The message is dropped by
	// the outputter if it is not logging at the desired level.
	Output(calldepth int, level Level, s string) error
}

// A Level is a log verbosity level. If the outputter is logging at
// level L, then all messages with level M <= L are outputted.
type Level int

const (
	// Off never outputs messages.
	Off = Level(-3)
	// Error outputs error messages.
	Error = Level(-2)
	// Info outputs informational messages. This is the standard
	// logging level.
	Info = Level(0)
	// Debug outputs messages intended for debugging: rejected record
	// identifiers, unknown enumerated codes, failed key unwraps.
	Debug = Level(1)
)

var (
	out     Outputter = stdOutputter{}
	stdLvl            = Info
	flagged int32
)

// String returns the string representation of the level l.
func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "error"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		if l < 0 {
			panic("invalid log level")
		}
		return fmt.Sprintf("debug%d", l)
	}
}

// Print formats a message in the manner of fmt.Sprint and outputs it
// at level l to the current outputter.
func (l Level) Print(v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprint(v...))
	}
}

// Printf formats a message in the manner of fmt.Sprintf and outputs
// it at level l to the current outputter.
func (l Level) Printf(format string, v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprintf(format, v...))
	}
}

// SetOutputter provides a new outputter for use in the log package.
// SetOutputter should not be called concurrently with any log
// output. It returns the old outputter.
func SetOutputter(newOut Outputter) Outputter {
	old := out
	out = newOut
	return old
}

// At returns whether the logger is currently logging at the provided level.
func At(level Level) bool {
	return level <= out.Level()
}

// Output outputs s at the given level to the current outputter.
// Calldepth is the number of frames to skip when annotating the
// message with its caller.
func Output(calldepth int, level Level, s string) error {
	if !At(level) {
		return nil
	}
	return out.Output(calldepth+1, level, s)
}

// Printf formats a message in the manner of fmt.Sprintf
// and outputs it at the Info level to the current outputter.
func Printf(format string, v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprintf(format, v...))
	}
}

// SetLevel sets the level of the default outputter.
func SetLevel(level Level) {
	stdLvl = level
}

// SetOutput sets the output destination for the Go standard logger.
func SetOutput(w io.Writer) {
	golog.SetOutput(w)
}

// SetFlags sets the output flags for the Go standard logger.
func SetFlags(flag int) {
	golog.SetFlags(flag)
}

// AddFlags adds the -log flag to the flag.CommandLine flag set.
func AddFlags() {
	if atomic.AddInt32(&flagged, 1) != 1 {
		Error.Printf("log.AddFlags: called twice!")
		return
	}
	flag.Var(new(levelFlag), "log", "set log level (off, error, info, debug)")
}

type levelFlag struct{}

func (levelFlag) String() string { return stdLvl.String() }

func (levelFlag) Set(s string) error {
	switch s {
	case "off":
		stdLvl = Off
	case "error":
		stdLvl = Error
	case "info":
		stdLvl = Info
	case "debug":
		stdLvl = Debug
	default:
		return fmt.Errorf("invalid log level %q", s)
	}
	return nil
}

// Get implements flag.Getter.
func (levelFlag) Get() interface{} { return stdLvl }

type stdOutputter struct{}

func (stdOutputter) Level() Level { return stdLvl }

func (stdOutputter) Output(calldepth int, level Level, s string) error {
	if stdLvl < level {
		return nil
	}
	return golog.Output(calldepth+1, s)
}
