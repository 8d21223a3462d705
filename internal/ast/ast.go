// Package ast defines the typed abstract syntax tree the parser
// builds and the code generator walks. Every node is a plain struct
// implementing Node; there is no inheritance hierarchy to downcast —
// callers that need to know a node's concrete shape (codegen's ASSIGN
// check, for instance) use a Go type switch. This replaces the
// teacher's interface-embedding node scheme
// (_examples/ajsnow-kaleidoscope/nodes.go) with the tagged-union shape
// spec.md's DESIGN NOTES call for.
package ast

import "github.com/vellum-lang/vellumc/internal/token"

// Pos is re-exported so callers need not import internal/token solely
// to read a node's position.
type Pos = token.Pos

// Node is implemented by every AST node.
type Node interface {
	Pos() Pos
}

// Number is a floating point literal.
type Number struct {
	Line Pos
	Val  float64
}

func (n *Number) Pos() Pos { return n.Line }

// String is a string literal with escapes already resolved.
type String struct {
	Line Pos
	Val  string
}

func (n *String) Pos() Pos { return n.Line }

// Variable is a reference to a previously bound name.
type Variable struct {
	Line Pos
	Name string
}

func (n *Variable) Pos() Pos { return n.Line }

// Empty is the result of parsing a bare ';'.
type Empty struct {
	Line Pos
}

func (n *Empty) Pos() Pos { return n.Line }

// Binary is a binary operator application. Kind is one of the fixed
// token.OpKind values for built-in operators, or token.UserDefined for
// a user-defined binary operator identified by Spelling.
type Binary struct {
	Line     Pos
	Spelling string
	Kind     token.OpKind
	Left     Node
	Right    Node
}

func (n *Binary) Pos() Pos { return n.Line }

// Unary is a user-defined unary operator application; the source
// language has no built-in unary operators.
type Unary struct {
	Line     Pos
	Spelling string
	Operand  Node
}

func (n *Unary) Pos() Pos { return n.Line }

// Call is a named function invocation.
type Call struct {
	Line   Pos
	Callee string
	Args   []Node
}

func (n *Call) Pos() Pos { return n.Line }

// Block is a sequence of expressions delimited by 'begin'/'end'.
type Block struct {
	Line  Pos
	Exprs []Node
}

func (n *Block) Pos() Pos { return n.Line }

// If is a three-block conditional; Then and Else are always Blocks
// per the grammar.
type If struct {
	Line Pos
	Cond Node
	Then *Block
	Else *Block
}

func (n *If) Pos() Pos { return n.Line }

// For is a counted loop over a stack-slot induction variable.
type For struct {
	Line    Pos
	Var     string
	VarType token.TypeID
	Start   Node
	End     Node
	Step    Node
	Body    *Block
}

func (n *For) Pos() Pos { return n.Line }

// Binding is one name/type/initializer triple within a Var form.
type Binding struct {
	Name string
	Type token.TypeID
	Init Node
}

// Var introduces one or more scoped, initialized locals for the
// duration of Body.
type Var struct {
	Line     Pos
	Bindings []Binding
	Body     *Block
}

func (n *Var) Pos() Pos { return n.Line }

// Return yields from the enclosing function with Value.
type Return struct {
	Line  Pos
	Value Node
}

func (n *Return) Pos() Pos { return n.Line }

// Param is one prototype parameter.
type Param struct {
	Name string
	Type token.TypeID
}

// Prototype is a function header: name, parameters, return type, and
// (for unary/binary operator definitions) operator metadata.
type Prototype struct {
	Line       Pos
	Name       string
	Params     []Param
	ReturnType token.TypeID
	IsOperator bool
	Precedence int
}

func (n *Prototype) Pos() Pos { return n.Line }

// Function pairs a Prototype with its body. Body is a *Block for
// 'function'-declared functions and a raw expression Node for the
// synthetic prototype generated from an anonymous top-level
// expression (spec.md §3: "Function and operator definitions...").
type Function struct {
	Line  Pos
	Proto *Prototype
	Body  Node
}

func (n *Function) Pos() Pos { return n.Line }
