// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// The hyperplane library is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package log provides the leveled, colorized logger used by every role in
// the core (CL, HIG, HS). Records carry structured key/value context rather
// than preformatted message strings; Error and Crit records also carry a
// call-site annotation.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
)

// Lvl is a logging priority, highest-severity first so that zero-value Lvl
// is the most severe (a zero Logger that was never configured still prints).
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgHiRed, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Logger is the interface every role holds instead of talking to fmt/log
// directly. ctx is a flat list of alternating key, value pairs.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

type logger struct {
	ctx []interface{}
}

var (
	mu        sync.Mutex
	out       io.Writer = colorable.NewColorableStderr()
	threshold           = LvlTrace
)

// SetOutput redirects every logger's output; used by tests that want to
// capture log lines instead of writing to stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the minimum level that is actually written.
func SetLevel(l Lvl) {
	mu.Lock()
	defer mu.Unlock()
	threshold = l
}

// New returns a logger carrying ctx as a permanent prefix on every record.
func New(ctx ...interface{}) Logger {
	return &logger{ctx: ctx}
}

// NewModuleLogger returns a logger scoped to a named module (e.g. "CL",
// "HIG:chain-1", "HS").
func NewModuleLogger(module string) Logger {
	return New("module", module)
}

// Root is the logger used by code with no natural module.
func Root() Logger { return New() }

func (l *logger) New(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged}
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

func (l *logger) write(lvl Lvl, msg string, extra []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > threshold {
		return
	}
	c := levelColor[lvl]
	line := fmt.Sprintf("%s [%s] %s", time.Now().Format("15:04:05.000"), c.Sprint(lvl.String()), msg)

	all := make([]interface{}, 0, len(l.ctx)+len(extra))
	all = append(all, l.ctx...)
	all = append(all, extra...)
	for i := 0; i+1 < len(all); i += 2 {
		line += fmt.Sprintf(" %v=%v", all[i], all[i+1])
	}
	if lvl <= LvlError {
		if frame := callerFrame(); frame != "" {
			line += " caller=" + frame
		}
	}
	fmt.Fprintln(out, line)
	if lvl == LvlCrit {
		fmt.Fprintln(os.Stderr, "fatal condition logged at CRIT, see above")
	}
}

// callerFrame returns the frame that called the logging method, for the
// caller= annotation on error records. It skips callerFrame itself, write,
// and the level method (Error or Crit).
func callerFrame() string {
	return fmt.Sprintf("%+v", stack.Caller(3))
}
