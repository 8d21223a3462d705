// Package clilog sets up the per-component loggers used across the
// lexer, parser, codegen, and JIT driver. Grounded on the juju/loggo
// dependency listed (but left unexercised) in flosch-pongo2/go.mod:
// loggo's hierarchical dotted names let every component log under its
// own name while a single call adjusts verbosity for the whole tree.
package clilog

import (
	"os"

	"github.com/juju/loggo"
)

var defaultLogWriter = os.Stderr

func defaultLogFormatter(entry loggo.Entry) string {
	return loggo.DefaultFormatter(entry)
}

// Root is the ancestor of every vellumc logger; setting its level
// adjusts all children that have not been overridden individually.
var Root = loggo.GetLogger("vellumc")

var (
	Lexer   = loggo.GetLogger("vellumc.lexer")
	Parser  = loggo.GetLogger("vellumc.parser")
	Codegen = loggo.GetLogger("vellumc.codegen")
	JIT     = loggo.GetLogger("vellumc.jit")
)

// Configure sets the minimum level for every vellumc logger and wires
// a writer to stderr. Called once from cmd/vellumc before compilation
// begins.
func Configure(level loggo.Level) error {
	Root.SetLogLevel(level)
	_, _, err := loggo.RemoveWriter("default")
	if err != nil {
		return err
	}
	writer := loggo.NewSimpleWriter(defaultLogWriter, defaultLogFormatter)
	return loggo.RegisterWriter("vellumc", writer)
}

// ParseLevel maps a CLI --log-level value to a loggo.Level, defaulting
// to WARNING for an unrecognized spelling.
func ParseLevel(s string) loggo.Level {
	level, ok := loggo.ParseLevel(s)
	if !ok {
		return loggo.WARNING
	}
	return level
}
