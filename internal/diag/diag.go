// Package diag implements the three recoverable error kinds from
// spec.md §7 (LexicalError, SyntaxError, CompileError) plus the fatal
// LinkError, modeled on pongo2's Error type
// (_examples/flosch-pongo2/error.go): a flat struct carrying enough
// context to print "<kind>: <file>:<line>: <message>" without any
// caller having to thread a format string through every layer.
package diag

import (
	"errors"
	"fmt"

	jujuerrors "github.com/juju/errors"
)

// Kind distinguishes the four error categories spec.md §7 names.
type Kind int

const (
	Lexical Kind = iota
	Syntax
	Compile
	Link
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical error"
	case Syntax:
		return "syntax error"
	case Compile:
		return "compile error"
	case Link:
		return "link error"
	default:
		return "error"
	}
}

// Error is the concrete type behind every error this module raises.
type Error struct {
	Kind Kind
	File string
	Line int // 0 = unknown/synthetic position
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %s", e.Kind, e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.File, e.Msg)
}

// Lexf builds a LexicalError at the given file and line.
func Lexf(file string, line int, format string, args ...interface{}) error {
	return &Error{Kind: Lexical, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Syntaxf builds a SyntaxError at the given file and line.
func Syntaxf(file string, line int, format string, args ...interface{}) error {
	return &Error{Kind: Syntax, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Compilef builds a CompileError at the given file and line.
func Compilef(file string, line int, format string, args ...interface{}) error {
	return &Error{Kind: Compile, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Linkf annotates cause (typically a CompileError raised while
// resolving a call) as the fatal LinkError spec.md §4.4 describes: the
// already-installed execution engine cannot be rolled back, so the
// caller must abort the process after reporting it. juju/errors.Annotatef
// preserves cause's message in the chain so the originating compile
// context survives into the fatal report.
func Linkf(cause error, symbol string) error {
	return jujuerrors.Annotatef(cause, "%s: unresolved symbol %q", Link, symbol)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}
