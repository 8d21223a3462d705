package codegen

import (
	"testing"

	"github.com/vellum-lang/vellumc/internal/ast"
	"github.com/vellum-lang/vellumc/internal/parser"
	"github.com/vellum-lang/vellumc/internal/token"
)

// fakeRegistrar records SetPrecedence calls without needing the
// parser package, avoiding a codegen->parser import for tests.
type fakeRegistrar struct {
	calls map[string]int
}

func newFakeRegistrar() *fakeRegistrar { return &fakeRegistrar{calls: map[string]int{}} }

func (f *fakeRegistrar) SetPrecedence(spelling string, prec int) {
	f.calls[spelling] = prec
}

func TestEmitExternDeclaration(t *testing.T) {
	ctx := NewContext("m", "t.vl")
	proto := &ast.Prototype{Name: "print_number", Params: []ast.Param{{Name: "n", Type: token.TNumber}}, ReturnType: token.TVoid}
	fn := &ast.Function{Proto: proto, Body: nil}

	got, err := ctx.EmitFunction(fn, newFakeRegistrar())
	if err != nil {
		t.Fatalf("EmitFunction: %v", err)
	}
	if got.IsNil() {
		t.Fatal("got nil function value")
	}
	if got.BasicBlocksCount() != 0 {
		t.Errorf("extern declaration should have no basic blocks")
	}
}

func TestEmitFunctionWithImplicitReturn(t *testing.T) {
	ctx := NewContext("m", "t.vl")
	// function add(a: number, b: number) -> number begin a + b; end
	proto := &ast.Prototype{
		Name: "add",
		Params: []ast.Param{
			{Name: "a", Type: token.TNumber},
			{Name: "b", Type: token.TNumber},
		},
		ReturnType: token.TNumber,
	}
	body := &ast.Block{Exprs: []ast.Node{
		&ast.Binary{Spelling: "+", Kind: token.ADD, Left: &ast.Variable{Name: "a"}, Right: &ast.Variable{Name: "b"}},
	}}
	fn := &ast.Function{Proto: proto, Body: body}

	got, err := ctx.EmitFunction(fn, newFakeRegistrar())
	if err != nil {
		t.Fatalf("EmitFunction: %v", err)
	}
	if got.IsNil() {
		t.Fatal("got nil function value")
	}
}

func TestEmitFunctionWithExplicitReturnInBothIfBranches(t *testing.T) {
	ctx := NewContext("m", "t.vl")
	// function fib(n: number) -> number
	//   begin
	//     if n < 2 then begin return n; end
	//     else begin return fib(n - 1) + fib(n - 2); end
	//   end
	proto := &ast.Prototype{Name: "fib", Params: []ast.Param{{Name: "n", Type: token.TNumber}}, ReturnType: token.TNumber}

	// Declare fib's own prototype first so the recursive call resolves.
	if _, err := ctx.EmitPrototype(proto); err != nil {
		t.Fatalf("EmitPrototype: %v", err)
	}

	ifNode := &ast.If{
		Cond: &ast.Binary{Spelling: "<", Kind: token.LT, Left: &ast.Variable{Name: "n"}, Right: &ast.Number{Val: 2}},
		Then: &ast.Block{Exprs: []ast.Node{&ast.Return{Value: &ast.Variable{Name: "n"}}}},
		Else: &ast.Block{Exprs: []ast.Node{&ast.Return{Value: &ast.Binary{
			Spelling: "+", Kind: token.ADD,
			Left:  &ast.Call{Callee: "fib", Args: []ast.Node{&ast.Binary{Spelling: "-", Kind: token.SUB, Left: &ast.Variable{Name: "n"}, Right: &ast.Number{Val: 1}}}},
			Right: &ast.Call{Callee: "fib", Args: []ast.Node{&ast.Binary{Spelling: "-", Kind: token.SUB, Left: &ast.Variable{Name: "n"}, Right: &ast.Number{Val: 2}}}},
		}}}},
	}
	fn := &ast.Function{Proto: proto, Body: &ast.Block{Exprs: []ast.Node{ifNode}}}

	got, err := ctx.EmitFunction(fn, newFakeRegistrar())
	if err != nil {
		t.Fatalf("EmitFunction: %v", err)
	}
	if got.IsNil() {
		t.Fatal("got nil function value")
	}
}

func TestEmitFunctionRejectsRedefinition(t *testing.T) {
	ctx := NewContext("m", "t.vl")
	proto := &ast.Prototype{Name: "once", ReturnType: token.TNumber}
	body := &ast.Block{Exprs: []ast.Node{&ast.Number{Val: 1}}}
	fn := &ast.Function{Proto: proto, Body: body}

	if _, err := ctx.EmitFunction(fn, newFakeRegistrar()); err != nil {
		t.Fatalf("first EmitFunction: %v", err)
	}
	if _, err := ctx.EmitFunction(fn, newFakeRegistrar()); err == nil {
		t.Fatal("expected redefinition error on second EmitFunction")
	}
}

func TestEmitFunctionRegistersBinaryOperatorPrecedenceOnSuccess(t *testing.T) {
	ctx := NewContext("m", "t.vl")
	proto := &ast.Prototype{
		Name:       "binary|",
		IsOperator: true,
		Precedence: 5,
		Params:     []ast.Param{{Name: "a", Type: token.TNumber}, {Name: "b", Type: token.TNumber}},
		ReturnType: token.TNumber,
	}
	body := &ast.Block{Exprs: []ast.Node{
		&ast.Binary{Spelling: "+", Kind: token.ADD, Left: &ast.Variable{Name: "a"}, Right: &ast.Variable{Name: "b"}},
	}}
	fn := &ast.Function{Proto: proto, Body: body}

	reg := newFakeRegistrar()
	if _, err := ctx.EmitFunction(fn, reg); err != nil {
		t.Fatalf("EmitFunction: %v", err)
	}
	if reg.calls["|"] != 5 {
		t.Errorf("got precedence calls %v, want {\"|\": 5}", reg.calls)
	}
}

// TestScenario4EndToEndForLoopCompiles lexes, parses, and emits
// spec.md §8 scenario 4's literal source, proving the for-loop
// grammar (start ',' end (',' step)? 'in' block) compiles all the way
// through codegen rather than only through the parser.
func TestScenario4EndToEndForLoopCompiles(t *testing.T) {
	src := "extern print_number(n: number) -> void;\n" +
		"for i:number = 1, i<4, 1 in begin print_number(i); end;"
	p, err := parser.New("t.vl", src)
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	fns, errs := p.Parse()
	for _, e := range errs {
		t.Fatalf("parse error: %v", e)
	}
	if len(fns) != 2 {
		t.Fatalf("got %d top-level forms, want 2", len(fns))
	}

	ctx := NewContext("m", "t.vl")
	for _, fn := range fns {
		if _, err := ctx.EmitFunction(fn, newFakeRegistrar()); err != nil {
			t.Fatalf("EmitFunction(%s): %v", fn.Proto.Name, err)
		}
	}
}

// TestScenario5EndToEndNestedVarAndForCompiles lexes, parses, and
// emits spec.md §8 scenario 5's literal source: a var-bound
// accumulator mutated by an inner for loop's assignment, then
// returned. Exercises the var grammar's mandatory 'in' keyword through
// codegen, not just the parser.
func TestScenario5EndToEndNestedVarAndForCompiles(t *testing.T) {
	src := "var s:number = 0 in begin " +
		"for i:number = 1, i<=5, 1 in begin s = s + i; end " +
		"return s; end;"
	p, err := parser.New("t.vl", src)
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	fns, errs := p.Parse()
	for _, e := range errs {
		t.Fatalf("parse error: %v", e)
	}
	if len(fns) != 1 {
		t.Fatalf("got %d top-level forms, want 1", len(fns))
	}

	ctx := NewContext("m", "t.vl")
	if _, err := ctx.EmitFunction(fns[0], newFakeRegistrar()); err != nil {
		t.Fatalf("EmitFunction: %v", err)
	}
}

func TestEmitVariableUnknownNameFails(t *testing.T) {
	ctx := NewContext("m", "t.vl")
	proto := &ast.Prototype{Name: "bad", ReturnType: token.TNumber}
	body := &ast.Block{Exprs: []ast.Node{&ast.Variable{Name: "nope"}}}
	fn := &ast.Function{Proto: proto, Body: body}

	if _, err := ctx.EmitFunction(fn, newFakeRegistrar()); err == nil {
		t.Fatal("expected error referencing an unknown variable")
	}
}
