// Package token defines the lexical vocabulary of the source language:
// a tagged Token value plus the fixed keyword, type-name, and operator
// tables the lexer and parser share.
package token

import "fmt"

// Pos is a 1-based source line number. Zero means synthetic or unknown,
// matching spec's convention for positions attached to generated nodes
// such as the implicit step of a for-loop.
type Pos int

// Kind identifies which variant of Token a value holds.
type Kind int

const (
	Keyword Kind = iota
	TypeName
	Identifier
	Number
	Char
	String
	Operator
	EOF
)

func (k Kind) String() string {
	switch k {
	case Keyword:
		return "keyword"
	case TypeName:
		return "type"
	case Identifier:
		return "identifier"
	case Number:
		return "number"
	case Char:
		return "char"
	case String:
		return "string"
	case Operator:
		return "operator"
	case EOF:
		return "end"
	default:
		return "invalid"
	}
}

// KeywordID enumerates the fixed keyword set from spec.md §3.
type KeywordID int

const (
	KwExtern KeywordID = iota
	KwFunction
	KwIf
	KwThen
	KwElse
	KwFor
	KwIn
	KwUnary
	KwBinary
	KwVar
	KwBegin
	KwEnd
	KwReturn
)

var keywordNames = map[KeywordID]string{
	KwExtern:   "extern",
	KwFunction: "function",
	KwIf:       "if",
	KwThen:     "then",
	KwElse:     "else",
	KwFor:      "for",
	KwIn:       "in",
	KwUnary:    "unary",
	KwBinary:   "binary",
	KwVar:      "var",
	KwBegin:    "begin",
	KwEnd:      "end",
	KwReturn:   "return",
}

func (k KeywordID) String() string { return keywordNames[k] }

// Keywords maps a keyword's spelling to its ID; a word not present here
// (and not in Types) is an ordinary identifier.
var Keywords = map[string]KeywordID{
	"extern":   KwExtern,
	"function": KwFunction,
	"if":       KwIf,
	"then":     KwThen,
	"else":     KwElse,
	"for":      KwFor,
	"in":       KwIn,
	"unary":    KwUnary,
	"binary":   KwBinary,
	"var":      KwVar,
	"begin":    KwBegin,
	"end":      KwEnd,
	"return":   KwReturn,
}

// TypeID enumerates the fixed type-name set from spec.md §3.
type TypeID int

const (
	TNumber TypeID = iota
	TString
	TVoid
)

func (t TypeID) String() string {
	switch t {
	case TNumber:
		return "number"
	case TString:
		return "string"
	case TVoid:
		return "void"
	default:
		return "invalid"
	}
}

// Types maps a type name's spelling to its ID.
var Types = map[string]TypeID{
	"number": TNumber,
	"string": TString,
	"void":   TVoid,
}

// OpKind enumerates the fixed operator set from spec.md §3. Every
// printable character with no entry among the two- and one-character
// spellings below becomes UserDefined.
type OpKind int

const (
	LT OpKind = iota
	LE
	GT
	GE
	EQ
	NEQ
	ADD
	SUB
	MUL
	DIV
	LPAREN
	RPAREN
	COMMA
	COLON
	SEMI
	ASSIGN
	ARROW
	UserDefined
)

// Token is a tagged value produced by the lexer. Only the fields
// relevant to Kind (and, for Keyword/Operator tokens, the relevant
// sub-kind) are meaningful; the rest are zero.
type Token struct {
	Kind Kind
	Line Pos

	KeywordID KeywordID
	TypeID    TypeID
	Ident     string
	Num       float64
	Ch        byte
	Str       string
	OpKind    OpKind
	OpText    string
}

// IsKeyword reports whether t is the given keyword.
func (t Token) IsKeyword(k KeywordID) bool {
	return t.Kind == Keyword && t.KeywordID == k
}

// IsOp reports whether t is an operator of the given kind.
func (t Token) IsOp(k OpKind) bool {
	return t.Kind == Operator && t.OpKind == k
}

func (t Token) String() string {
	switch t.Kind {
	case Keyword:
		return fmt.Sprintf("keyword(%s)", t.KeywordID)
	case TypeName:
		return fmt.Sprintf("type(%s)", t.TypeID)
	case Identifier:
		return fmt.Sprintf("ident(%s)", t.Ident)
	case Number:
		return fmt.Sprintf("number(%g)", t.Num)
	case Char:
		return fmt.Sprintf("char(%q)", t.Ch)
	case String:
		return fmt.Sprintf("string(%q)", t.Str)
	case Operator:
		return fmt.Sprintf("op(%s)", t.OpText)
	case EOF:
		return "end"
	default:
		return "invalid"
	}
}
