// Package jit manages the open-module / sealed-engines lifecycle
// spec.md §4.4 describes: one module stays "open" and receives new
// definitions, while every previously sealed module has its own
// finalized execution engine. A function defined in an earlier,
// already-sealed module is callable from the open module via an
// external declaration mirrored into it; resolving that declaration
// at finalize time walks every sealed engine in turn. This is a
// direct port of original_source/SummerLanguage/MCJIT_helper.{h,cpp}'s
// get_function/get_pointer_to_function/get_symbol_address state
// machine onto the Go bindings the teacher's lib.go and exec.go use.
package jit

import (
	"github.com/ajsnow/llvm"

	"github.com/vellum-lang/vellumc/internal/clilog"
	"github.com/vellum-lang/vellumc/internal/codegen"
	"github.com/vellum-lang/vellumc/internal/diag"
)

// sealedModule pairs a finalized module with the engine that compiled
// it — the engine alone doesn't expose enough to re-walk its
// functions for symbol resolution, so Driver keeps both.
type sealedModule struct {
	module llvm.Module
	engine llvm.ExecutionEngine
}

// Driver owns the open module plus every sealed engine produced so
// far. It only resolves and executes; codegen.PrecedenceRegistrar is
// satisfied by the parser's table, not by Driver.
type Driver struct {
	file string

	openCtx *codegen.Context
	sealed  []sealedModule

	optimize bool
}

// NewDriver returns a Driver with no open module yet; one is created
// lazily by ModuleForNewFunction, matching
// MCJIT_helper::get_module_for_new_function's lazy allocation.
func NewDriver(file string, optimize bool) *Driver {
	llvm.LinkInMCJIT()
	llvm.InitializeNativeTarget()
	llvm.InitializeNativeAsmPrinter()
	return &Driver{file: file, optimize: optimize}
}

// ModuleForNewFunction returns the currently open codegen.Context,
// creating one if none is open.
func (d *Driver) ModuleForNewFunction() *codegen.Context {
	if d.openCtx == nil {
		d.openCtx = codegen.NewContext("module", d.file)
		clilog.JIT.Debugf("opened new module")
	}
	return d.openCtx
}

// Resolve looks up name first as a function defined in the still-open
// module (returned as-is), then as a function already defined in a
// sealed module (mirrored into the open module as an external
// declaration so the open module can call it once it is itself
// sealed). It returns the zero Value if name is not yet defined
// anywhere.
func (d *Driver) Resolve(name string) llvm.Value {
	if d.openCtx != nil {
		if fn := d.openCtx.Module.NamedFunction(name); !fn.IsNil() {
			return fn
		}
	}
	for _, sm := range d.sealed {
		fn := sm.module.NamedFunction(name)
		if fn.IsNil() {
			continue
		}
		ctx := d.ModuleForNewFunction()
		if existing := ctx.Module.NamedFunction(name); !existing.IsNil() {
			return existing
		}
		decl := llvm.AddFunction(ctx.Module, name, fn.Type().ElementType())
		return decl
	}
	return llvm.Value{}
}

// getSymbolAddress hunts every sealed engine for name's compiled
// address, mirroring HelpingMemoryManager::getSymbolAddress's fallback
// after SectionMemoryManager's own lookup fails.
func (d *Driver) getSymbolAddress(name string) uintptr {
	for _, sm := range d.sealed {
		fn := sm.module.NamedFunction(name)
		if fn.IsNil() {
			continue
		}
		if addr := sm.engine.PointerToGlobal(fn); addr != 0 {
			return addr
		}
	}
	return 0
}

// Seal finalizes the currently open module into a fresh execution
// engine: it binds every declaration that an earlier sealed module
// defines to that module's compiled address, runs the optimization
// pipeline across every function if requested, then keeps the engine
// for future symbol resolution. Declarations no sealed module defines
// (the host runtime functions, for instance) are left to the engine's
// own symbol lookup; Seal does not check that they resolve, and the
// only LinkError it returns is for a failure to create the engine.
// Returns the function named entryPoint from the newly-sealed module.
func (d *Driver) Seal(entryPoint string) (llvm.Value, error) {
	if d.openCtx == nil {
		return llvm.Value{}, diag.Compilef(d.file, 0, "internal error: Seal called with no open module")
	}
	mod := d.openCtx.Module

	engine, err := llvm.NewExecutionEngine(mod)
	if err != nil {
		return llvm.Value{}, diag.Linkf(diag.Compilef(d.file, 0, "%s", err.Error()), entryPoint)
	}

	// Every external declaration Resolve mirrored in from an earlier
	// sealed module needs an explicit binding to that module's
	// already-JIT-compiled address — this engine has no visibility
	// into a sibling engine's code otherwise.
	for fn := mod.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
		if !fn.IsDeclaration() {
			continue
		}
		addr := d.getSymbolAddress(fn.Name())
		if addr == 0 {
			continue
		}
		engine.AddGlobalMapping(fn, addr)
	}

	if d.optimize {
		fpm := llvm.NewFunctionPassManagerForModule(mod)
		fpm.Add(engine.TargetData())
		fpm.AddBasicAliasAnalysisPass()
		fpm.AddPromoteMemoryToRegisterPass()
		fpm.AddInstructionCombiningPass()
		fpm.AddReassociatePass()
		fpm.AddGVNPass()
		fpm.AddCFGSimplificationPass()
		fpm.InitializeFunc()
		for fn := mod.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
			if !fn.IsDeclaration() {
				fpm.RunFunc(fn)
			}
		}
		fpm.FinalizeFunc()
	}

	engine.RunStaticConstructors()
	d.sealed = append(d.sealed, sealedModule{module: mod, engine: engine})
	d.openCtx = nil
	clilog.JIT.Debugf("sealed module, %d engine(s) live", len(d.sealed))

	entry := mod.NamedFunction(entryPoint)
	if entry.IsNil() {
		return llvm.Value{}, diag.Compilef(d.file, 0, "internal error: %q missing after seal", entryPoint)
	}
	return entry, nil
}

// RunNullary JIT-executes a zero-argument, void-returning function —
// the shape every anonymous top-level expression compiles to (spec.md
// §6) — by its already-sealed llvm.Value handle.
func (d *Driver) RunNullary(fn llvm.Value) {
	eng := d.sealed[len(d.sealed)-1].engine
	eng.RunFunction(fn, []llvm.GenericValue{})
}
