// Command vellumc lexes, parses, code-generates, and JIT-executes a
// source file, one top-level form at a time. Flag parsing follows
// openconfig-goyang/yang.go's use of pborman/getopt rather than the
// teacher's stdlib flag package, since getopt is the CLI library this
// pack's example repos actually reach for.
package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/pborman/getopt"

	"github.com/vellum-lang/vellumc/internal/ast"
	"github.com/vellum-lang/vellumc/internal/clilog"
	"github.com/vellum-lang/vellumc/internal/diag"
	"github.com/vellum-lang/vellumc/internal/jit"
	"github.com/vellum-lang/vellumc/internal/lexer"
	"github.com/vellum-lang/vellumc/internal/parser"
	_ "github.com/vellum-lang/vellumc/internal/rtlib" // links print_number/print_string/str_cat
	"github.com/vellum-lang/vellumc/internal/token"
)

func main() {
	var (
		optimize   = true
		dumpIR     = false
		dumpTokens = false
		dumpAST    = false
		logLevel   = "warning"
		showHelp   = false
	)
	getopt.BoolVarLong(&optimize, "optimize", 'O', "run the mem2reg/instcombine/reassociate/gvn/cfg-simplify pipeline before executing")
	getopt.BoolVarLong(&dumpIR, "dump-ir", 0, "print each function's LLVM IR as it is emitted")
	getopt.BoolVarLong(&dumpTokens, "dump-tokens", 0, "print every token the lexer produces")
	getopt.BoolVarLong(&dumpAST, "dump-ast", 0, "print the parsed AST for each top-level form")
	getopt.StringVarLong(&logLevel, "log-level", 0, "trace|debug|info|warning|error")
	getopt.BoolVarLong(&showHelp, "help", '?', "display this help")
	getopt.SetParameters("FILE")

	if err := getopt.Getopt(nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		getopt.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	if showHelp {
		getopt.CommandLine.PrintUsage(os.Stderr)
		return
	}
	if err := clilog.Configure(clilog.ParseLevel(logLevel)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := getopt.Args()
	if len(args) != 1 {
		getopt.CommandLine.PrintUsage(os.Stderr)
		os.Exit(1)
	}
	file := args[0]

	src, err := ioutil.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if dumpTokens {
		dumpLex(file, string(src))
	}

	p, err := parser.New(file, string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fns, errs := p.Parse()
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e)
	}
	if dumpAST {
		spew.Dump(fns)
	}

	driver := jit.NewDriver(file, optimize)
	hadError := len(errs) > 0

	for _, fn := range fns {
		ctx := driver.ModuleForNewFunction()
		resolveCalls(driver, fn)

		llvmFn, err := ctx.EmitFunction(fn, p.Precedence)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			hadError = true
			continue
		}
		if dumpIR {
			llvmFn.Dump()
		}

		if fn.Body == nil {
			// extern declaration: nothing to execute.
			continue
		}

		entry, err := driver.Seal(fn.Proto.Name)
		if err != nil {
			fmt.Fprintln(os.Stderr, diag.Linkf(err, fn.Proto.Name))
			os.Exit(1)
		}
		if isAnonExpr(fn) {
			driver.RunNullary(entry)
		}
	}

	if hadError {
		os.Exit(1)
	}
}

// resolveCalls mirrors every external symbol fn's body references from
// an earlier sealed module into the currently open one, so EmitFunction
// finds a declaration for cross-module calls spec.md §4.4 permits.
func resolveCalls(driver *jit.Driver, fn *ast.Function) {
	for _, name := range calledNames(fn) {
		driver.Resolve(name)
	}
}

func calledNames(fn *ast.Function) []string {
	var names []string
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.Call:
			names = append(names, v.Callee)
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.Binary:
			if v.Kind == token.UserDefined {
				names = append(names, "binary"+v.Spelling)
			}
			walk(v.Left)
			walk(v.Right)
		case *ast.Unary:
			names = append(names, "unary"+v.Spelling)
			walk(v.Operand)
		case *ast.If:
			walk(v.Cond)
			walkBlock(v.Then, walk)
			walkBlock(v.Else, walk)
		case *ast.For:
			walk(v.Start)
			walk(v.End)
			walk(v.Step)
			walkBlock(v.Body, walk)
		case *ast.Var:
			for _, b := range v.Bindings {
				if b.Init != nil {
					walk(b.Init)
				}
			}
			walkBlock(v.Body, walk)
		case *ast.Block:
			walkBlock(v, walk)
		case *ast.Return:
			if v.Value != nil {
				walk(v.Value)
			}
		}
	}
	if fn.Body != nil {
		walk(fn.Body)
	}
	return names
}

func walkBlock(b *ast.Block, walk func(ast.Node)) {
	if b == nil {
		return
	}
	for _, e := range b.Exprs {
		walk(e)
	}
}

func isAnonExpr(fn *ast.Function) bool {
	if _, ok := fn.Body.(*ast.Block); ok {
		return false
	}
	return fn.Body != nil
}

func dumpLex(file, src string) {
	l := lexer.New(file, src)
	for {
		t, err := l.Next()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Println(t)
		if t.Kind == token.EOF {
			return
		}
	}
}
