// Package codegen walks a typed ast.Function and emits LLVM IR into a
// single open module. Unlike the teacher's codegen.go
// (_examples/ajsnow-kaleidoscope/codegen.go), which keeps TheModule,
// Builder, and NamedValues as package globals, every piece of mutable
// state lives on a *Context so multiple modules (one open, several
// sealed) can coexist inside one process, per spec.md §4.4.
package codegen

import (
	"github.com/ajsnow/llvm"

	"github.com/vellum-lang/vellumc/internal/ast"
	"github.com/vellum-lang/vellumc/internal/clilog"
	"github.com/vellum-lang/vellumc/internal/diag"
	"github.com/vellum-lang/vellumc/internal/token"
)

// PrecedenceRegistrar is satisfied by parser.PrecedenceTable without
// either package importing the other. EmitFunction calls SetPrecedence
// only after an operator-defining function has verified successfully,
// so a 'binary'/'unary' definition that fails to compile never
// pollutes the parser's operator table.
type PrecedenceRegistrar interface {
	SetPrecedence(spelling string, prec int)
}

// binding is a named local: the stack slot backing it (mem2reg turns
// this into an SSA register during optimization, so there is no need
// to hand-roll PHI nodes for ordinary mutable locals) and its source
// type.
type binding struct {
	Alloca llvm.Value
	Type   token.TypeID
}

// Context holds everything needed to emit into one module. A fresh
// Context is created per open module (see internal/jit); the vars map
// is reset at the start of every EmitFunction, matching the teacher's
// NamedValues reset at the top of functionNode.codegen.
type Context struct {
	File    string
	Module  llvm.Module
	Builder llvm.Builder

	vars map[string]binding
}

// NewContext creates an empty module named moduleName ready to receive
// declarations and definitions.
func NewContext(moduleName, file string) *Context {
	return &Context{
		File:    file,
		Module:  llvm.NewModule(moduleName),
		Builder: llvm.NewBuilder(),
		vars:    make(map[string]binding),
	}
}

func llvmType(t token.TypeID) llvm.Type {
	switch t {
	case token.TNumber:
		return llvm.DoubleType()
	case token.TString:
		return llvm.PointerType(llvm.Int8Type(), 0)
	default:
		return llvm.VoidType()
	}
}

// entryAlloca inserts an alloca at the start of f's entry block,
// rather than at the current insertion point, so every local lives in
// the block mem2reg scans first — the same trick as the teacher's
// createEntryBlockAlloca, generalized to a caller-supplied type since
// locals here are not always double.
func entryAlloca(f llvm.Value, name string, ty llvm.Type) llvm.Value {
	tmp := llvm.NewBuilder()
	entry := f.EntryBasicBlock()
	tmp.SetInsertPoint(entry, entry.FirstInstruction())
	return tmp.CreateAlloca(ty, name)
}

func (c *Context) errf(line token.Pos, format string, args ...interface{}) error {
	return diag.Compilef(c.File, int(line), format, args...)
}

// EmitPrototype declares (or validates a matching re-declaration of) a
// function header without a body. Mirrors fnPrototypeNode.codegen but
// returns an error instead of the sentinel ErrorV the teacher uses.
func (c *Context) EmitPrototype(p *ast.Prototype) (llvm.Value, error) {
	paramTypes := make([]llvm.Type, len(p.Params))
	for i, param := range p.Params {
		paramTypes[i] = llvmType(param.Type)
	}
	fnType := llvm.FunctionType(llvmType(p.ReturnType), paramTypes, false)

	fn := llvm.AddFunction(c.Module, p.Name, fnType)
	if fn.Name() != p.Name {
		// AddFunction renamed it to avoid a collision: an identical
		// declaration already exists. Use the existing one instead.
		fn.EraseFromParentAsFunction()
		fn = c.Module.NamedFunction(p.Name)
	}

	if fn.ParamsCount() != len(p.Params) {
		return llvm.Value{}, c.errf(p.Line, "redeclaration of %q with different arity", p.Name)
	}

	for i, param := range fn.Params() {
		param.SetName(p.Params[i].Name)
	}
	return fn, nil
}

// EmitFunction emits a complete function definition: prototype,
// parameter allocas, body, and (when the body falls through without
// an explicit return) an implicit return: 'ret void' for a void
// prototype, otherwise the body's trailing value. On success, if proto is a 'binary' operator definition, reg
// learns the operator's precedence — spec.md §5's ordering guarantee
// that a user-defined operator only becomes usable in infix position
// once it has actually been code-generated.
func (c *Context) EmitFunction(fn *ast.Function, reg PrecedenceRegistrar) (llvm.Value, error) {
	c.vars = make(map[string]binding)
	proto := fn.Proto

	llvmFn, err := c.EmitPrototype(proto)
	if err != nil {
		return llvm.Value{}, err
	}
	if fn.Body == nil {
		// An 'extern' declaration: nothing more to emit.
		return llvmFn, nil
	}
	if llvmFn.BasicBlocksCount() != 0 {
		return llvm.Value{}, c.errf(proto.Line, "redefinition of function %q", proto.Name)
	}

	entry := llvm.AddBasicBlock(llvmFn, "entry")
	c.Builder.SetInsertPointAtEnd(entry)

	for i, param := range llvmFn.Params() {
		alloca := entryAlloca(llvmFn, proto.Params[i].Name, llvmType(proto.Params[i].Type))
		c.Builder.CreateStore(param, alloca)
		c.vars[proto.Params[i].Name] = binding{Alloca: alloca, Type: proto.Params[i].Type}
	}

	var bodyVal llvm.Value
	var terminated bool
	if block, ok := fn.Body.(*ast.Block); ok {
		bodyVal, terminated, err = c.emitBlock(block)
	} else {
		// The synthetic prototype for an anonymous top-level
		// expression always declares a void return (spec.md §6): its
		// only observable effect is whatever print_number/print_string
		// calls its body makes, so the computed value itself is
		// discarded rather than returned to the caller.
		bodyVal, terminated, err = c.Emit(fn.Body)
	}
	if err != nil {
		llvmFn.EraseFromParentAsFunction()
		return llvm.Value{}, err
	}

	if !terminated {
		if proto.ReturnType == token.TVoid {
			c.Builder.CreateRetVoid()
		} else {
			if bodyVal.IsNil() {
				llvmFn.EraseFromParentAsFunction()
				return llvm.Value{}, c.errf(proto.Line, "function %q falls through without a value", proto.Name)
			}
			c.Builder.CreateRet(bodyVal)
		}
	}

	if verr := llvm.VerifyFunction(llvmFn, llvm.ReturnStatusAction); verr != nil {
		llvmFn.EraseFromParentAsFunction()
		return llvm.Value{}, c.errf(proto.Line, "function %q failed verification: %v", proto.Name, verr)
	}

	if proto.IsOperator && len(proto.Name) > len("binary") && proto.Name[:6] == "binary" {
		reg.SetPrecedence(proto.Name[len("binary"):], proto.Precedence)
	}

	clilog.Codegen.Debugf("emitted function %q", proto.Name)
	return llvmFn, nil
}

// Emit generates code for one expression node. The bool result
// reports whether n unconditionally transfers control out of the
// current block (via a return statement nested arbitrarily deep, e.g.
// inside both arms of an if). Callers emitting a sequence — Block,
// Var's body — must stop emitting siblings once a prior sibling
// reports terminated, since LLVM rejects a basic block with more than
// one terminator instruction.
func (c *Context) Emit(n ast.Node) (llvm.Value, bool, error) {
	switch node := n.(type) {
	case *ast.Number:
		return llvm.ConstFloat(llvm.DoubleType(), node.Val), false, nil
	case *ast.String:
		return c.Builder.CreateGlobalStringPtr(node.Val, "str"), false, nil
	case *ast.Empty:
		return llvm.ConstFloat(llvm.DoubleType(), 0), false, nil
	case *ast.Variable:
		return c.emitVariable(node)
	case *ast.Unary:
		return c.emitUnary(node)
	case *ast.Binary:
		return c.emitBinary(node)
	case *ast.Call:
		return c.emitCall(node)
	case *ast.If:
		return c.emitIf(node)
	case *ast.For:
		return c.emitFor(node)
	case *ast.Var:
		return c.emitVar(node)
	case *ast.Block:
		return c.emitBlock(node)
	case *ast.Return:
		return c.emitReturn(node)
	default:
		return llvm.Value{}, false, c.errf(n.Pos(), "internal error: unhandled node %T", n)
	}
}

func (c *Context) emitVariable(n *ast.Variable) (llvm.Value, bool, error) {
	b, ok := c.vars[n.Name]
	if !ok {
		return llvm.Value{}, false, c.errf(n.Line, "unknown variable %q", n.Name)
	}
	return c.Builder.CreateLoad(b.Alloca, n.Name), false, nil
}

func (c *Context) emitUnary(n *ast.Unary) (llvm.Value, bool, error) {
	operand, _, err := c.Emit(n.Operand)
	if err != nil {
		return llvm.Value{}, false, err
	}
	fn := c.Module.NamedFunction("unary" + n.Spelling)
	if fn.IsNil() {
		return llvm.Value{}, false, c.errf(n.Line, "unknown unary operator %q", n.Spelling)
	}
	return c.Builder.CreateCall(fn, []llvm.Value{operand}, "unop"), false, nil
}

func (c *Context) emitBinary(n *ast.Binary) (llvm.Value, bool, error) {
	if n.Kind == token.ASSIGN {
		target, ok := n.Left.(*ast.Variable)
		if !ok {
			return llvm.Value{}, false, c.errf(n.Line, "left side of '=' must be a variable")
		}
		b, ok := c.vars[target.Name]
		if !ok {
			return llvm.Value{}, false, c.errf(n.Line, "unknown variable %q", target.Name)
		}
		val, _, err := c.Emit(n.Right)
		if err != nil {
			return llvm.Value{}, false, err
		}
		c.Builder.CreateStore(val, b.Alloca)
		return val, false, nil
	}

	l, _, err := c.Emit(n.Left)
	if err != nil {
		return llvm.Value{}, false, err
	}
	r, _, err := c.Emit(n.Right)
	if err != nil {
		return llvm.Value{}, false, err
	}

	switch n.Kind {
	case token.ADD:
		return c.Builder.CreateFAdd(l, r, "addtmp"), false, nil
	case token.SUB:
		return c.Builder.CreateFSub(l, r, "subtmp"), false, nil
	case token.MUL:
		return c.Builder.CreateFMul(l, r, "multmp"), false, nil
	case token.DIV:
		return c.Builder.CreateFDiv(l, r, "divtmp"), false, nil
	case token.LT:
		return c.emitFCmp(llvm.FloatOLT, l, r), false, nil
	case token.LE:
		return c.emitFCmp(llvm.FloatOLE, l, r), false, nil
	case token.GT:
		return c.emitFCmp(llvm.FloatOGT, l, r), false, nil
	case token.GE:
		return c.emitFCmp(llvm.FloatOGE, l, r), false, nil
	case token.EQ:
		return c.emitFCmp(llvm.FloatOEQ, l, r), false, nil
	case token.NEQ:
		return c.emitFCmp(llvm.FloatONE, l, r), false, nil
	default:
		fn := c.Module.NamedFunction("binary" + n.Spelling)
		if fn.IsNil() {
			return llvm.Value{}, false, c.errf(n.Line, "unknown binary operator %q", n.Spelling)
		}
		return c.Builder.CreateCall(fn, []llvm.Value{l, r}, "binop"), false, nil
	}
}

func (c *Context) emitFCmp(pred llvm.FloatPredicate, l, r llvm.Value) llvm.Value {
	cmp := c.Builder.CreateFCmp(pred, l, r, "cmptmp")
	return c.Builder.CreateUIToFP(cmp, llvm.DoubleType(), "booltmp")
}

func (c *Context) emitCall(n *ast.Call) (llvm.Value, bool, error) {
	callee := c.Module.NamedFunction(n.Callee)
	if callee.IsNil() {
		return llvm.Value{}, false, c.errf(n.Line, "call to undeclared function %q", n.Callee)
	}
	if callee.ParamsCount() != len(n.Args) {
		return llvm.Value{}, false, c.errf(n.Line, "%q expects %d argument(s), got %d", n.Callee, callee.ParamsCount(), len(n.Args))
	}
	args := make([]llvm.Value, len(n.Args))
	for i, a := range n.Args {
		v, _, err := c.Emit(a)
		if err != nil {
			return llvm.Value{}, false, err
		}
		args[i] = v
	}
	if callee.Type().ElementType().ReturnType().TypeKind() == llvm.VoidTypeKind {
		return c.Builder.CreateCall(callee, args, ""), false, nil
	}
	return c.Builder.CreateCall(callee, args, "calltmp"), false, nil
}

// emitIf handles all three termination combinations the two branches
// of an if/then/else can produce: if both branches unconditionally
// return, there is nothing left to merge into and no value flows out;
// if exactly one branch returns, control only ever reaches the merge
// block from the other branch, so the merge is a plain jump rather
// than a PHI; only when neither branch returns do the two values need
// a PHI node, exactly as the teacher's ifNode.codegen always assumes.
func (c *Context) emitIf(n *ast.If) (llvm.Value, bool, error) {
	condVal, _, err := c.Emit(n.Cond)
	if err != nil {
		return llvm.Value{}, false, err
	}
	cond := c.Builder.CreateFCmp(llvm.FloatONE, condVal, llvm.ConstFloat(llvm.DoubleType(), 0), "ifcond")

	parent := c.Builder.GetInsertBlock().Parent()
	thenBlk := llvm.AddBasicBlock(parent, "then")
	elseBlk := llvm.AddBasicBlock(parent, "else")
	mergeBlk := llvm.AddBasicBlock(parent, "merge")
	c.Builder.CreateCondBr(cond, thenBlk, elseBlk)

	c.Builder.SetInsertPointAtEnd(thenBlk)
	thenVal, thenTerm, err := c.emitBlock(n.Then)
	if err != nil {
		return llvm.Value{}, false, err
	}
	if !thenTerm {
		c.Builder.CreateBr(mergeBlk)
	}
	thenBlk = c.Builder.GetInsertBlock()

	c.Builder.SetInsertPointAtEnd(elseBlk)
	elseVal, elseTerm, err := c.emitBlock(n.Else)
	if err != nil {
		return llvm.Value{}, false, err
	}
	if !elseTerm {
		c.Builder.CreateBr(mergeBlk)
	}
	elseBlk = c.Builder.GetInsertBlock()

	switch {
	case thenTerm && elseTerm:
		mergeBlk.EraseFromParentAsBlock()
		return llvm.Value{}, true, nil
	case thenTerm:
		c.Builder.SetInsertPointAtEnd(mergeBlk)
		return elseVal, false, nil
	case elseTerm:
		c.Builder.SetInsertPointAtEnd(mergeBlk)
		return thenVal, false, nil
	default:
		c.Builder.SetInsertPointAtEnd(mergeBlk)
		phi := c.Builder.CreatePHI(llvm.DoubleType(), "iftmp")
		phi.AddIncoming([]llvm.Value{thenVal, elseVal}, []llvm.BasicBlock{thenBlk, elseBlk})
		return phi, false, nil
	}
}

// emitFor lowers a counted loop to a stack-slot induction variable
// (createEntryBlockAlloca's mem2reg pass turns it into an SSA loop
// register) rather than constructing the loop PHI by hand, matching
// forNode.codegen's approach.
func (c *Context) emitFor(n *ast.For) (llvm.Value, bool, error) {
	startVal, _, err := c.Emit(n.Start)
	if err != nil {
		return llvm.Value{}, false, err
	}
	ty := llvmType(n.VarType)

	parent := c.Builder.GetInsertBlock().Parent()
	alloca := entryAlloca(parent, n.Var, ty)
	c.Builder.CreateStore(startVal, alloca)

	loopBlk := llvm.AddBasicBlock(parent, "loop")
	c.Builder.CreateBr(loopBlk)
	c.Builder.SetInsertPointAtEnd(loopBlk)

	old, hadOld := c.vars[n.Var]
	c.vars[n.Var] = binding{Alloca: alloca, Type: n.VarType}

	_, bodyTerm, err := c.emitBlock(n.Body)
	if err != nil {
		return llvm.Value{}, false, err
	}

	afterBlk := llvm.AddBasicBlock(parent, "afterloop")

	if !bodyTerm {
		stepVal, _, err := c.Emit(n.Step)
		if err != nil {
			return llvm.Value{}, false, err
		}
		endVal, _, err := c.Emit(n.End)
		if err != nil {
			return llvm.Value{}, false, err
		}

		cur := c.Builder.CreateLoad(alloca, n.Var)
		next := c.Builder.CreateFAdd(cur, stepVal, "nextvar")
		c.Builder.CreateStore(next, alloca)

		cond := c.Builder.CreateFCmp(llvm.FloatONE, endVal, llvm.ConstFloat(llvm.DoubleType(), 0), "loopcond")
		c.Builder.CreateCondBr(cond, loopBlk, afterBlk)
	}

	c.Builder.SetInsertPointAtEnd(afterBlk)

	if hadOld {
		c.vars[n.Var] = old
	} else {
		delete(c.vars, n.Var)
	}

	return llvm.ConstFloat(llvm.DoubleType(), 0), false, nil
}

func (c *Context) emitVar(n *ast.Var) (llvm.Value, bool, error) {
	parent := c.Builder.GetInsertBlock().Parent()
	type saved struct {
		name string
		had  bool
		old  binding
	}
	var saves []saved

	for _, b := range n.Bindings {
		var val llvm.Value
		if b.Init != nil {
			v, _, err := c.Emit(b.Init)
			if err != nil {
				return llvm.Value{}, false, err
			}
			val = v
		} else {
			val = llvm.ConstNull(llvmType(b.Type))
		}
		alloca := entryAlloca(parent, b.Name, llvmType(b.Type))
		c.Builder.CreateStore(val, alloca)

		old, had := c.vars[b.Name]
		saves = append(saves, saved{name: b.Name, had: had, old: old})
		c.vars[b.Name] = binding{Alloca: alloca, Type: b.Type}
	}

	bodyVal, terminated, err := c.emitBlock(n.Body)

	for _, s := range saves {
		if s.had {
			c.vars[s.name] = s.old
		} else {
			delete(c.vars, s.name)
		}
	}

	if err != nil {
		return llvm.Value{}, false, err
	}
	return bodyVal, terminated, nil
}

// emitBlock emits each expression in sequence, stopping as soon as one
// unconditionally terminates (a return nested inside, however deep) so
// no unreachable instruction ever follows a terminator in the same
// basic block.
func (c *Context) emitBlock(n *ast.Block) (llvm.Value, bool, error) {
	var last llvm.Value
	for _, expr := range n.Exprs {
		v, terminated, err := c.Emit(expr)
		if err != nil {
			return llvm.Value{}, false, err
		}
		last = v
		if terminated {
			return last, true, nil
		}
	}
	if last.IsNil() {
		last = llvm.ConstFloat(llvm.DoubleType(), 0)
	}
	return last, false, nil
}

func (c *Context) emitReturn(n *ast.Return) (llvm.Value, bool, error) {
	if n.Value == nil {
		c.Builder.CreateRetVoid()
		return llvm.Value{}, true, nil
	}
	val, _, err := c.Emit(n.Value)
	if err != nil {
		return llvm.Value{}, false, err
	}
	// A void function (such as the synthetic prototype of an anonymous
	// top-level expression) discards the returned value.
	retTy := c.Builder.GetInsertBlock().Parent().Type().ElementType().ReturnType()
	if retTy.TypeKind() == llvm.VoidTypeKind {
		c.Builder.CreateRetVoid()
		return val, true, nil
	}
	c.Builder.CreateRet(val)
	return val, true, nil
}
