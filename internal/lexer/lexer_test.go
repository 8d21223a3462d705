package lexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/vellum-lang/vellumc/internal/token"
)

func collect(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New("t.vl", src)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := collect(t, "function foo extern bar")
	want := []struct {
		kind token.Kind
	}{
		{token.Keyword}, {token.Identifier}, {token.Keyword}, {token.Identifier}, {token.EOF},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind {
			t.Errorf("token %d: got kind %v, want %v", i, toks[i].Kind, w.kind)
		}
	}
	if toks[0].KeywordID != token.KwFunction {
		t.Errorf("token 0: got keyword %v, want KwFunction", toks[0].KeywordID)
	}
	if toks[1].Ident != "foo" {
		t.Errorf("token 1: got ident %q, want foo", toks[1].Ident)
	}
}

func TestTypeNames(t *testing.T) {
	toks := collect(t, "number string void")
	for i, want := range []token.TypeID{token.TNumber, token.TString, token.TVoid} {
		if toks[i].Kind != token.TypeName || toks[i].TypeID != want {
			t.Errorf("token %d: got %v, want type %v", i, toks[i], want)
		}
	}
}

func TestOperatorDisambiguation(t *testing.T) {
	toks := collect(t, "<= >= == <> -> < > + - * / $")
	wantKinds := []token.OpKind{
		token.LE, token.GE, token.EQ, token.NEQ, token.ARROW,
		token.LT, token.GT, token.ADD, token.SUB, token.MUL, token.DIV,
		token.UserDefined,
	}
	for i, want := range wantKinds {
		if toks[i].Kind != token.Operator || toks[i].OpKind != want {
			t.Errorf("token %d: got %v, want opkind %v", i, toks[i], want)
		}
	}
}

func TestNumberLiteral(t *testing.T) {
	toks := collect(t, "3.14 42 .5")
	wantVals := []float64{3.14, 42, 0.5}
	for i, want := range wantVals {
		if toks[i].Kind != token.Number || toks[i].Num != want {
			t.Errorf("token %d: got %v, want number %v", i, toks[i], want)
		}
	}
}

func TestMalformedNumberBestEffort(t *testing.T) {
	toks := collect(t, "1.2.3")
	if toks[0].Kind != token.Number {
		t.Fatalf("got %v, want number", toks[0])
	}
	if toks[0].Num != 1.2 {
		t.Errorf("got %v, want best-effort prefix 1.2", toks[0].Num)
	}
}

func TestStringAndCharEscapes(t *testing.T) {
	toks := collect(t, `"a\nb" 'x' '\t'`)
	if toks[0].Kind != token.String || toks[0].Str != "a\nb" {
		t.Errorf("got %v, want string %q", toks[0], "a\nb")
	}
	if toks[1].Kind != token.Char || toks[1].Ch != 'x' {
		t.Errorf("got %v, want char 'x'", toks[1])
	}
	if toks[2].Kind != token.Char || toks[2].Ch != '\t' {
		t.Errorf("got %v, want char tab", toks[2])
	}
}

func TestCommentsAndWhitespaceSkipped(t *testing.T) {
	toks := collect(t, "foo # a comment\nbar")
	if len(toks) != 3 { // foo, bar, EOF
		t.Fatalf("got %d tokens, want 3: %v", len(toks), toks)
	}
	if toks[0].Ident != "foo" || toks[1].Ident != "bar" {
		t.Errorf("got %v, %v", toks[0], toks[1])
	}
}

func TestEOFIsIdempotent(t *testing.T) {
	l := New("t.vl", "")
	first, err := l.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Kind != token.EOF {
		t.Fatalf("got %v, want EOF", first)
	}
	second, err := l.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second.Kind != token.EOF {
		t.Fatalf("got %v, want EOF again", second)
	}
}

func dumpKinds(toks []token.Token) string {
	var sb strings.Builder
	for _, tok := range toks {
		fmt.Fprintln(&sb, tok.Kind)
	}
	return sb.String()
}

func TestVarDeclTokenSequence(t *testing.T) {
	toks := collect(t, "var x: number = 1 begin x; end")
	want := dumpKinds([]token.Token{
		{Kind: token.Keyword}, {Kind: token.Identifier}, {Kind: token.Operator},
		{Kind: token.TypeName}, {Kind: token.Operator}, {Kind: token.Number},
		{Kind: token.Keyword}, {Kind: token.Identifier}, {Kind: token.Operator},
		{Kind: token.Keyword}, {Kind: token.EOF},
	})
	if diff := pretty.Compare(dumpKinds(toks), want); diff != "" {
		t.Errorf("unexpected token kind sequence, diff(-got,+want):\n%s", diff)
	}
}

func TestLineNumbersMonotonic(t *testing.T) {
	toks := collect(t, "a\nb\n\nc")
	lines := []token.Pos{}
	for _, tok := range toks {
		if tok.Kind == token.Identifier {
			lines = append(lines, tok.Line)
		}
	}
	if len(lines) != 3 {
		t.Fatalf("got %d identifiers, want 3", len(lines))
	}
	for i := 1; i < len(lines); i++ {
		if lines[i] <= lines[i-1] {
			t.Errorf("line numbers not strictly increasing: %v", lines)
		}
	}
}
