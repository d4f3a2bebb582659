// Package log provides the module-scoped structured logger used across the
// node. Every package declares a file-scope logger with NewModuleLogger and
// logs key/value pairs rather than formatted strings, matching the rest of
// the tree.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
)

// Module identifies the subsystem emitting a log line. Keeping it a
// closed enum (rather than a free-form string) lets callers filter by
// subsystem cheaply and keeps log lines grep-able by a stable name.
type Module int

const (
	Common Module = iota
	StorageDB
	CellSet
	Script
	Verifier
	TxPool
	Chain
	Sync
	Relay
	RPC
	Config
	CmdCkbNode
)

var moduleNames = map[Module]string{
	Common:     "common",
	StorageDB:  "storage/db",
	CellSet:    "cellset",
	Script:     "script",
	Verifier:   "verifier",
	TxPool:     "txpool",
	Chain:      "chain",
	Sync:       "sync",
	Relay:      "relay",
	RPC:        "rpc",
	Config:     "config",
	CmdCkbNode: "cmd/ckbnode",
}

func (m Module) String() string {
	if name, ok := moduleNames[m]; ok {
		return name
	}
	return "unknown"
}

// Level controls verbosity, ordered least to most severe.
type Level int

const (
	LvlTrace Level = iota
	LvlDebug
	LvlInfo
	LvlWarn
	LvlError
	LvlCrit
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "CRIT"}

var levelColors = [...]*color.Color{
	color.New(color.FgWhite),
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgRed),
	color.New(color.FgRed, color.Bold),
}

var (
	globalMu    sync.Mutex
	globalLevel = LvlInfo
	out         = colorable.NewColorableStdout()
)

// SetLevel adjusts the process-wide minimum level. Lines below it are
// dropped before any formatting happens.
func SetLevel(lvl Level) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLevel = lvl
}

// Logger is the leaf logging handle handed to call sites. It carries a set
// of context key/values that are prepended to every call (see NewWith).
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	NewWith(ctx ...interface{}) Logger
}

type logger struct {
	module Module
	ctx    []interface{}
}

// NewModuleLogger returns the package-scoped logger, used as
// `var logger = log.NewModuleLogger(log.Chain)` at file scope.
func NewModuleLogger(m Module) Logger {
	return &logger{module: m}
}

// New returns a standalone logger tagged with the given context, independent
// of any module (used by components that take their own name at runtime,
// e.g. a storage path or peer id).
func New(ctx ...interface{}) Logger {
	return &logger{module: Common, ctx: ctx}
}

func (l *logger) NewWith(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{module: l.module, ctx: merged}
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

// Crit logs at the highest severity and terminates the process. Reserved
// for InternalError-class invariant violations (§7): arithmetic overflow,
// a dead cell referenced, or any other state the node cannot recover from.
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(LvlCrit, msg, ctx)
	os.Exit(1)
}

func (l *logger) write(lvl Level, msg string, ctx []interface{}) {
	globalMu.Lock()
	minLvl := globalLevel
	globalMu.Unlock()
	if lvl < minLvl {
		return
	}

	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	c := levelColors[lvl]
	fmt.Fprintf(out, "%s %s [%s] %s", ts, c.Sprint(levelNames[lvl]), l.module, msg)

	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(out, " %v=%v", all[i], all[i+1])
	}
	if lvl >= LvlError {
		fmt.Fprintf(out, " caller=%v", stack.Caller(2))
	}
	fmt.Fprintln(out)
}
