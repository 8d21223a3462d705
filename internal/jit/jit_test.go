package jit

import (
	"testing"

	"github.com/vellum-lang/vellumc/internal/ast"
	"github.com/vellum-lang/vellumc/internal/token"
)

type nopRegistrar struct{}

func (nopRegistrar) SetPrecedence(string, int) {}

func TestModuleForNewFunctionIsLazyAndStable(t *testing.T) {
	d := NewDriver("t.vl", false)
	first := d.ModuleForNewFunction()
	second := d.ModuleForNewFunction()
	if first != second {
		t.Errorf("expected the same open context across calls until Seal")
	}
}

func TestResolveBeforeAnyDefinitionReturnsNil(t *testing.T) {
	d := NewDriver("t.vl", false)
	if v := d.Resolve("nope"); !v.IsNil() {
		t.Errorf("expected nil Value for an unresolved symbol")
	}
}

func TestSealMakesFunctionCallableFromNextOpenModule(t *testing.T) {
	d := NewDriver("t.vl", false)

	// module 1: define helper() -> number begin 1; end
	ctx1 := d.ModuleForNewFunction()
	helperProto := &ast.Prototype{Name: "helper", ReturnType: token.TNumber}
	helperFn := &ast.Function{Proto: helperProto, Body: &ast.Block{Exprs: []ast.Node{&ast.Number{Val: 1}}}}
	if _, err := ctx1.EmitFunction(helperFn, nopRegistrar{}); err != nil {
		t.Fatalf("EmitFunction(helper): %v", err)
	}
	if _, err := d.Seal("helper"); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// module 2: caller() referencing helper via Resolve's mirrored decl.
	mirrored := d.Resolve("helper")
	if mirrored.IsNil() {
		t.Fatalf("expected Resolve to mirror helper into the newly-open module")
	}

	ctx2 := d.ModuleForNewFunction()
	callerProto := &ast.Prototype{Name: "caller", ReturnType: token.TNumber}
	callerFn := &ast.Function{Proto: callerProto, Body: &ast.Block{Exprs: []ast.Node{
		&ast.Call{Callee: "helper"},
	}}}
	if _, err := ctx2.EmitFunction(callerFn, nopRegistrar{}); err != nil {
		t.Fatalf("EmitFunction(caller): %v", err)
	}
	if _, err := d.Seal("caller"); err != nil {
		t.Fatalf("Seal: %v", err)
	}
}
