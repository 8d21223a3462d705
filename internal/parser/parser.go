// Package parser builds a typed ast.Function tree from a token
// stream, using recursive descent for statement-level forms and
// precedence climbing for expressions. The operator precedence table
// is mutable, but not at parse time: a 'binary' definition only
// records its requested precedence on the parsed Prototype, and it is
// internal/codegen that installs it into the table once the defining
// function has actually been code-generated, so an operator only
// becomes usable in infix position after it compiles successfully.
package parser

import (
	"github.com/vellum-lang/vellumc/internal/ast"
	"github.com/vellum-lang/vellumc/internal/clilog"
	"github.com/vellum-lang/vellumc/internal/diag"
	"github.com/vellum-lang/vellumc/internal/lexer"
	"github.com/vellum-lang/vellumc/internal/token"
)

// defaultPrecedence holds the built-in operators' binding power, in
// ascending order, mirroring _examples/ajsnow-kaleidoscope/parse.go's
// binopPrecedence table extended with the extra comparison operators
// spec.md §3 adds.
var defaultPrecedence = map[string]int{
	"=":  2,
	"<":  10,
	">":  10,
	"<=": 10,
	">=": 10,
	"==": 10,
	"<>": 10,
	"+":  20,
	"-":  20,
	"*":  40,
	"/":  40,
}

// PrecedenceTable is the parser's live operator/precedence map. It
// satisfies codegen.PrecedenceRegistrar structurally — codegen never
// imports this package, and this package never imports codegen —
// avoiding the import cycle a shared concrete type would create.
type PrecedenceTable map[string]int

// SetPrecedence installs or overrides spelling's binding power.
func (p PrecedenceTable) SetPrecedence(spelling string, prec int) {
	p[spelling] = prec
}

func newPrecedenceTable() PrecedenceTable {
	t := make(PrecedenceTable, len(defaultPrecedence))
	for k, v := range defaultPrecedence {
		t[k] = v
	}
	return t
}

// Parser consumes tokens from a lexer.Lexer and produces ast.Function
// values, one per top-level form (named function, extern declaration,
// operator definition, or anonymous top-level expression).
type Parser struct {
	file string
	lex  *lexer.Lexer
	tok  token.Token

	Precedence PrecedenceTable

	anonCount int
}

// New returns a Parser positioned before the first token of src.
func New(file, src string) (*Parser, error) {
	p := &Parser{
		file:       file,
		lex:        lexer.New(file, src),
		Precedence: newPrecedenceTable(),
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return diag.Syntaxf(p.file, int(p.tok.Line), format, args...)
}

// resync discards the current token so the caller's next Parse
// attempt starts from a fresh position, per spec.md §7's recoverable
// SyntaxError/CompileError contract.
func (p *Parser) resync() {
	_ = p.advance()
}

// Parse consumes the entire token stream, returning every successfully
// parsed top-level form along with any errors encountered. Parsing
// continues past an error by resyncing one token at a time, so a
// single mistake does not abort the whole file.
func (p *Parser) Parse() ([]*ast.Function, []error) {
	var fns []*ast.Function
	var errs []error

	for p.tok.Kind != token.EOF {
		fn, err := p.parseTopLevel()
		if err != nil {
			errs = append(errs, err)
			clilog.Parser.Warningf("%s", err.Error())
			p.resync()
			continue
		}
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	return fns, errs
}

func (p *Parser) parseTopLevel() (*ast.Function, error) {
	switch {
	case p.tok.IsKeyword(token.KwExtern):
		return p.parseExtern()
	case p.tok.IsKeyword(token.KwFunction):
		return p.parseFunctionDef()
	case p.tok.IsOp(token.SEMI):
		return nil, p.advance()
	default:
		return p.parseAnonExpr()
	}
}

func (p *Parser) parseExtern() (*ast.Function, error) {
	if err := p.advance(); err != nil { // consume 'extern'
		return nil, err
	}
	proto, err := p.parsePrototype()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemi(); err != nil {
		return nil, err
	}
	return &ast.Function{Line: proto.Line, Proto: proto, Body: nil}, nil
}

func (p *Parser) parseFunctionDef() (*ast.Function, error) {
	line := p.tok.Line
	if err := p.advance(); err != nil { // consume 'function'
		return nil, err
	}
	proto, err := p.parsePrototype()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Line: line, Proto: proto, Body: body}, nil
}

// parseAnonExpr wraps a bare top-level expression in a synthetic,
// void-returning, zero-arity prototype so codegen can treat every
// top-level form uniformly as a Function, per spec.md §6.
func (p *Parser) parseAnonExpr() (*ast.Function, error) {
	line := p.tok.Line
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemi(); err != nil {
		return nil, err
	}
	p.anonCount++
	proto := &ast.Prototype{
		Line:       line,
		Name:       anonName(p.anonCount),
		ReturnType: token.TVoid,
	}
	return &ast.Function{Line: line, Proto: proto, Body: expr}, nil
}

// anonName builds the reserved anno_func identifier spec.md §3/§4.3/§6
// names for a top-level expression's synthetic prototype.
func anonName(n int) string {
	const base = "anno_func"
	if n == 1 {
		return base
	}
	return base + "_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// parsePrototype parses a name (or a 'unary'/'binary' operator
// definition header), its parenthesized, type-annotated parameter
// list, and a '-> type' return annotation.
func (p *Parser) parsePrototype() (*ast.Prototype, error) {
	line := p.tok.Line
	proto := &ast.Prototype{Line: line}

	switch {
	case p.tok.IsKeyword(token.KwUnary):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != token.Operator {
			return nil, p.errf("expected operator spelling after 'unary', got %s", p.tok)
		}
		proto.Name = "unary" + p.tok.OpText
		proto.IsOperator = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	case p.tok.IsKeyword(token.KwBinary):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != token.Operator {
			return nil, p.errf("expected operator spelling after 'binary', got %s", p.tok)
		}
		proto.Name = "binary" + p.tok.OpText
		proto.IsOperator = true
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind == token.Number {
			proto.Precedence = int(p.tok.Num)
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			proto.Precedence = 30
		}
		// Precedence is NOT installed here: the operator only takes
		// effect once its defining function has actually been
		// code-generated, not merely parsed. codegen.Context.EmitFunction
		// calls back into p.Precedence (a PrecedenceRegistrar) once the
		// function verifies successfully.
	case p.tok.Kind == token.Identifier:
		proto.Name = p.tok.Ident
		if err := p.advance(); err != nil {
			return nil, err
		}
	default:
		return nil, p.errf("expected function name, got %s", p.tok)
	}

	if !p.tok.IsOp(token.LPAREN) {
		return nil, p.errf("expected '(' in prototype, got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	for !p.tok.IsOp(token.RPAREN) {
		if p.tok.Kind != token.Identifier {
			return nil, p.errf("expected parameter name, got %s", p.tok)
		}
		name := p.tok.Ident
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.tok.IsOp(token.COLON) {
			return nil, p.errf("expected ':' after parameter name, got %s", p.tok)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		ty, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		proto.Params = append(proto.Params, ast.Param{Name: name, Type: ty})
		if p.tok.IsOp(token.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if !p.tok.IsOp(token.RPAREN) {
		return nil, p.errf("expected ')' to close parameter list, got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	proto.ReturnType = token.TVoid
	if p.tok.IsOp(token.ARROW) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		ty, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		proto.ReturnType = ty
	}

	if proto.IsOperator {
		arity := 1
		if proto.Name[0] == 'b' {
			arity = 2
		}
		if len(proto.Params) != arity {
			return nil, p.errf("operator %q expects %d parameter(s), got %d", proto.Name, arity, len(proto.Params))
		}
	}

	return proto, nil
}

func (p *Parser) parseTypeName() (token.TypeID, error) {
	if p.tok.Kind != token.TypeName {
		return 0, p.errf("expected type name, got %s", p.tok)
	}
	ty := p.tok.TypeID
	return ty, p.advance()
}

func (p *Parser) expectSemi() error {
	if !p.tok.IsOp(token.SEMI) {
		return p.errf("expected ';', got %s", p.tok)
	}
	return p.advance()
}

// parseBlock parses a 'begin' ... 'end' sequence of statements (see
// parseStatement).
func (p *Parser) parseBlock() (*ast.Block, error) {
	if !p.tok.IsKeyword(token.KwBegin) {
		return nil, p.errf("expected 'begin', got %s", p.tok)
	}
	line := p.tok.Line
	if err := p.advance(); err != nil {
		return nil, err
	}
	blk := &ast.Block{Line: line}
	for !p.tok.IsKeyword(token.KwEnd) {
		if p.tok.Kind == token.EOF {
			return nil, p.errf("unterminated block, expected 'end'")
		}
		expr, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		blk.Exprs = append(blk.Exprs, expr)
	}
	return blk, p.advance()
}

// parseStatement parses one statement: a 'return' (a bare 'return;'
// returns no value), a lone ';', or an expression. A ';' right after
// a return value or an expression is consumed with it, but is not
// required, so 'for ... in begin ... end return s' is two statements.
func (p *Parser) parseStatement() (ast.Node, error) {
	var stmt ast.Node
	if p.tok.IsKeyword(token.KwReturn) {
		line := p.tok.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.IsOp(token.SEMI) {
			return &ast.Return{Line: line, Value: nil}, p.advance()
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt = &ast.Return{Line: line, Value: val}
	} else if p.tok.IsOp(token.SEMI) {
		line := p.tok.Line
		return &ast.Empty{Line: line}, p.advance()
	} else {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt = expr
	}
	if p.tok.IsOp(token.SEMI) {
		return stmt, p.advance()
	}
	return stmt, nil
}

// parseExpression is the entry point for precedence climbing: parse a
// primary, then fold in any trailing binary operators at or above
// precedence 0.
func (p *Parser) parseExpression() (ast.Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryRHS(0, lhs)
}

func (p *Parser) tokPrecedence() (string, int, bool) {
	if p.tok.Kind != token.Operator {
		return "", 0, false
	}
	prec, ok := p.Precedence[p.tok.OpText]
	return p.tok.OpText, prec, ok
}

// parseBinaryRHS folds trailing "op rhs" pairs into lhs using
// precedence climbing: an operator is consumed only while its
// precedence is at least minPrec, and a higher-precedence operator
// immediately to its right recurses first, so "1+2*3" reads as
// "1+(2*3)". Matches
// _examples/ajsnow-kaleidoscope/parse.go's parseBinaryOpRHS shape.
func (p *Parser) parseBinaryRHS(minPrec int, lhs ast.Node) (ast.Node, error) {
	for {
		spelling, prec, ok := p.tokPrecedence()
		if !ok || prec < minPrec {
			return lhs, nil
		}
		opKind := p.tok.OpKind
		line := p.tok.Line
		if err := p.advance(); err != nil {
			return nil, err
		}

		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		_, nextPrec, nextOk := p.tokPrecedence()
		if nextOk && nextPrec > prec {
			rhs, err = p.parseBinaryRHS(prec+1, rhs)
			if err != nil {
				return nil, err
			}
		}

		lhs = &ast.Binary{Line: line, Spelling: spelling, Kind: opKind, Left: lhs, Right: rhs}
	}
}

// structuralOps never introduce a unary operator application in
// prefix position — they are punctuation with a single fixed meaning
// (grouping, separators, assignment, the arrow in a prototype).
var structuralOps = map[token.OpKind]bool{
	token.LPAREN: true,
	token.RPAREN: true,
	token.COMMA:  true,
	token.COLON:  true,
	token.SEMI:   true,
	token.ASSIGN: true,
	token.ARROW:  true,
}

// parseUnary recognizes a user-defined unary operator applied to a
// primary expression. Built-in arithmetic/comparison operators never
// appear in prefix position either, so any non-structural operator
// token here must resolve to a 'unary'-defined function at codegen
// time.
func (p *Parser) parseUnary() (ast.Node, error) {
	if p.tok.Kind == token.Operator && !structuralOps[p.tok.OpKind] {
		spelling := p.tok.OpText
		line := p.tok.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Line: line, Spelling: spelling, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	switch {
	case p.tok.Kind == token.Number:
		n := &ast.Number{Line: p.tok.Line, Val: p.tok.Num}
		return n, p.advance()
	case p.tok.Kind == token.String:
		s := &ast.String{Line: p.tok.Line, Val: p.tok.Str}
		return s, p.advance()
	case p.tok.Kind == token.Identifier:
		return p.parseIdentifierExpr()
	case p.tok.IsOp(token.LPAREN):
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if !p.tok.IsOp(token.RPAREN) {
			return nil, p.errf("expected ')', got %s", p.tok)
		}
		return expr, p.advance()
	case p.tok.IsKeyword(token.KwIf):
		return p.parseIf()
	case p.tok.IsKeyword(token.KwFor):
		return p.parseFor()
	case p.tok.IsKeyword(token.KwVar):
		return p.parseVar()
	default:
		return nil, p.errf("unexpected token %s", p.tok)
	}
}

func (p *Parser) parseIdentifierExpr() (ast.Node, error) {
	name := p.tok.Ident
	line := p.tok.Line
	if err := p.advance(); err != nil {
		return nil, err
	}
	if !p.tok.IsOp(token.LPAREN) {
		return &ast.Variable{Line: line, Name: name}, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	call := &ast.Call{Line: line, Callee: name}
	for !p.tok.IsOp(token.RPAREN) {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.tok.IsOp(token.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if !p.tok.IsOp(token.RPAREN) {
		return nil, p.errf("expected ')' or ',' in argument list, got %s", p.tok)
	}
	return call, p.advance()
}

func (p *Parser) parseIf() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(); err != nil { // 'if'
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.tok.IsKeyword(token.KwThen) {
		return nil, p.errf("expected 'then', got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	thenBlk, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if !p.tok.IsKeyword(token.KwElse) {
		return nil, p.errf("expected 'else', got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	elseBlk, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.If{Line: line, Cond: cond, Then: thenBlk, Else: elseBlk}, nil
}

// parseFor parses 'for' IDENT ':' type '=' expr ',' expr (',' expr)?
// 'in' block, matching spec.md §4.2's grammar and
// _examples/ajsnow-kaleidoscope/parse.go's parseForExpr shape: start
// and end are separated by a comma, an optional third comma-separated
// expression is the step, and only then does 'in' introduce the body.
func (p *Parser) parseFor() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(); err != nil { // 'for'
		return nil, err
	}
	if p.tok.Kind != token.Identifier {
		return nil, p.errf("expected induction variable name, got %s", p.tok)
	}
	name := p.tok.Ident
	if err := p.advance(); err != nil {
		return nil, err
	}
	if !p.tok.IsOp(token.COLON) {
		return nil, p.errf("expected ':' after for-loop variable, got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	varType, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if !p.tok.IsOp(token.ASSIGN) {
		return nil, p.errf("expected '=' after for-loop variable, got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	start, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.tok.IsOp(token.COMMA) {
		return nil, p.errf("expected ',' after for-loop start expression, got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	end, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	var step ast.Node
	if p.tok.IsOp(token.COMMA) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		step, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	} else {
		step = &ast.Number{Line: 0, Val: 1}
	}
	if !p.tok.IsKeyword(token.KwIn) {
		return nil, p.errf("expected 'in', got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.For{Line: line, Var: name, VarType: varType, Start: start, End: end, Step: step, Body: body}, nil
}

// parseVar parses 'var' (IDENT ':' type '=' expr)(',' ...)* 'in' block,
// matching spec.md §4.2's grammar: every binding's type annotation and
// initializer are mandatory, and 'in' is required before the body
// (_examples/ajsnow-kaleidoscope/parse.go's parseVarExpr requires the
// same keyword before its body).
func (p *Parser) parseVar() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(); err != nil { // 'var'
		return nil, err
	}
	v := &ast.Var{Line: line}
	for {
		if p.tok.Kind != token.Identifier {
			return nil, p.errf("expected variable name, got %s", p.tok)
		}
		b := ast.Binding{Name: p.tok.Ident}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.tok.IsOp(token.COLON) {
			return nil, p.errf("expected ':' after variable name, got %s", p.tok)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		ty, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		b.Type = ty
		if !p.tok.IsOp(token.ASSIGN) {
			return nil, p.errf("expected '=' after variable type, got %s", p.tok)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		b.Init = init
		v.Bindings = append(v.Bindings, b)
		if p.tok.IsOp(token.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if !p.tok.IsKeyword(token.KwIn) {
		return nil, p.errf("expected 'in' after 'var' bindings, got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	v.Body = body
	return v, nil
}
