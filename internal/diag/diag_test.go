package diag

import (
	"strings"
	"testing"
)

func TestErrorFormattingIncludesFileAndLine(t *testing.T) {
	err := Syntaxf("foo.vl", 12, "unexpected token %s", "end")
	got := err.Error()
	if !strings.Contains(got, "foo.vl:12") {
		t.Errorf("got %q, want it to contain file:line", got)
	}
	if !strings.Contains(got, "unexpected token end") {
		t.Errorf("got %q, want it to contain the message", got)
	}
}

func TestErrorFormattingOmitsLineWhenZero(t *testing.T) {
	err := Compilef("foo.vl", 0, "internal error")
	got := err.Error()
	if strings.Contains(got, ":0:") {
		t.Errorf("got %q, should not print a synthetic line 0", got)
	}
}

func TestIsKindDistinguishesKinds(t *testing.T) {
	lex := Lexf("f", 1, "bad char")
	syn := Syntaxf("f", 1, "bad token")
	if !IsKind(lex, Lexical) {
		t.Errorf("lex error should report Lexical kind")
	}
	if IsKind(lex, Syntax) {
		t.Errorf("lex error should not report Syntax kind")
	}
	if !IsKind(syn, Syntax) {
		t.Errorf("syntax error should report Syntax kind")
	}
}

func TestLinkfPreservesCauseInChain(t *testing.T) {
	cause := Compilef("f", 3, "unresolved call to helper")
	wrapped := Linkf(cause, "helper")
	got := wrapped.Error()
	if !strings.Contains(got, "helper") {
		t.Errorf("got %q, want it to mention the unresolved symbol", got)
	}
	if !strings.Contains(got, "unresolved call to helper") {
		t.Errorf("got %q, want the original cause's message preserved", got)
	}
}
