// Package parse converts a template into its in-memory representation,
// the syntax tree defined in the ast package.
package parse

import (
	"runtime"
	"strconv"

	"github.com/smarttpl/smarttpl/ast"
	"github.com/smarttpl/smarttpl/errortypes"
)

// tree is the parser state for a single template.
type tree struct {
	name      string  // name provided for the input
	text      string  // the full input text
	lex       *lexer  // lexer provides a sequence of tokens
	token     [2]item // two-token lookahead
	peekCount int     // how many tokens have we backed up?
}

// Parse parses the input into a syntax tree.  The result may be used as
// input to any of the backends.  A lexing or parsing failure is returned
// as an errortypes.CompileError carrying the source position.
func Parse(name, text string) (node *ast.SyntaxTree, err error) {
	var t = &tree{
		name: name,
		text: text,
		lex:  lex(name, text),
	}
	defer t.recover(&err)
	var root = t.itemList(itemEOF)
	t.lex = nil
	return &ast.SyntaxTree{Name: name, Root: root}, nil
}

// Expr parses a standalone expression, e.g. "1 + $a.b".
func Expr(str string) (node ast.Expression, err error) {
	var t = &tree{name: "expression", text: str, lex: lexExpr("expression", str)}
	defer t.recover(&err)
	var expr = t.parseExpr(0)
	t.expect(itemEOF, "expression")
	t.lex = nil
	return expr, nil
}

// itemList:
//	textOrTag*
// Terminates when it comes across one of the given end tokens.  The end
// token is consumed.
func (t *tree) itemList(until ...itemType) *ast.Statements {
	var list *ast.Statements
	for {
		var token = t.next()
		if list == nil {
			list = &ast.Statements{Pos: token.pos}
		}
		var node, halt = t.textOrTag(token, until)
		if halt {
			return list
		}
		if node != nil {
			list.Nodes = append(list.Nodes, node)
		}
	}
}

// textOrTag reads raw text or recognizes the start of tags until one of the
// end tokens.
func (t *tree) textOrTag(token item, until []itemType) (node ast.Statement, halt bool) {
	// Two ways to end a list:
	// 1. We found the until token (e.g. EOF)
	if isOneOf(token.typ, until) {
		return nil, true
	}

	// 2. The until token is a command, e.g. {else} {/foreach}
	if token.typ == itemLeftDelim {
		var token2 = t.next()
		if isOneOf(token2.typ, until) {
			return nil, true
		}
		t.backup()
	}

	switch token.typ {
	case itemText:
		return &ast.RawNode{Pos: token.pos, Text: []byte(token.val)}, false
	case itemLeftDelim:
		return t.beginTag(token), false
	default:
		t.unexpected(token, "input")
	}
	return nil, false
}

// beginTag parses the contents of a directive: a statement keyword, an
// inline assignment, or an output expression.
// { has already been read.
func (t *tree) beginTag(ldelim item) ast.Statement {
	switch token := t.next(); token.typ {
	case itemIf:
		return t.parseIf(token)
	case itemForeach:
		return t.parseForeach(token)
	case itemAssign:
		return t.parseAssign(token)
	case itemDollarIdent:
		// {$name = expr} is an assignment; anything else is an output.
		if t.peek().typ == itemEquals {
			return t.parseInlineAssign(token)
		}
		// peek overwrote token[0]; push the variable back in front of it
		t.token[1] = token
		t.peekCount = 2
		return t.parsePrint(ldelim)
	case itemNull, itemBool, itemInteger, itemFloat, itemString, itemNot, itemNegate, itemLeftParen:
		t.backup()
		return t.parsePrint(ldelim)
	default:
		t.unexpected(token, "directive")
	}
	return nil
}

// parsePrint parses an output directive, e.g. {$a.b|tolower} or {1+2*3}.
// The opening { has been read.
func (t *tree) parsePrint(token item) ast.Statement {
	var expr = t.parseExpr(0)
	t.expect(itemRightDelim, "output")

	var escape = true
	if filter, ok := expr.(*ast.FilterNode); ok {
		// |raw is not a modifier: it cancels escaping for this output.
		var mods = filter.Mods[:0]
		for _, m := range filter.Mods {
			if m.Name == "raw" {
				if len(m.Args) > 0 {
					t.errorf("raw takes no parameters")
				}
				escape = false
				continue
			}
			mods = append(mods, m)
		}
		filter.Mods = mods
		if len(filter.Mods) == 0 {
			expr = filter.Base
		}
	}
	return &ast.OutputNode{Pos: token.pos, Expr: expr, Escape: escape}
}

// parseInlineAssign parses {$name = expr}.
// The variable token is provided; '=' is the next token.
func (t *tree) parseInlineAssign(token item) ast.Statement {
	t.expect(itemEquals, "assignment")
	var expr = t.parseExpr(0)
	t.expect(itemRightDelim, "assignment")
	return &ast.AssignNode{Pos: token.pos, Name: token.val[1:], Expr: expr}
}

// parseAssign parses {assign expr to $name}.
// "assign" has just been read.
func (t *tree) parseAssign(token item) ast.Statement {
	var expr = t.parseExpr(0)
	t.expect(itemTo, "assign")
	var name = t.expect(itemDollarIdent, "assign")
	t.expect(itemRightDelim, "assign")
	return &ast.AssignNode{Pos: token.pos, Name: name.val[1:], Expr: expr}
}

// parseIf parses an {if} chain.  {elseif} parses as an if statement nested
// in the else branch.
// "if" or "elseif" has just been read.
func (t *tree) parseIf(token item) ast.Statement {
	var cond = t.parseExpr(0)
	t.expect(itemRightDelim, "if")
	var then = t.itemList(itemElseif, itemElse, itemIfEnd)
	t.backup()
	switch tok := t.next(); tok.typ {
	case itemElseif:
		var nested = t.parseIf(tok)
		return &ast.IfNode{
			Pos:  token.pos,
			Cond: cond,
			Then: then,
			Else: &ast.Statements{Pos: tok.pos, Nodes: []ast.Statement{nested}},
		}
	case itemElse:
		t.expect(itemRightDelim, "else")
		var els = t.itemList(itemIfEnd)
		t.expect(itemRightDelim, "/if")
		return &ast.IfNode{Pos: token.pos, Cond: cond, Then: then, Else: els}
	default: // itemIfEnd
		t.expect(itemRightDelim, "/if")
		return &ast.IfNode{Pos: token.pos, Cond: cond, Then: then}
	}
}

// parseForeach parses the two loop forms:
//	{foreach $value in $source}
//	{foreach $source as $value}
//	{foreach $source as $key => $value}
// "foreach" has just been read.
func (t *tree) parseForeach(token item) ast.Statement {
	var first = t.expect(itemDollarIdent, "foreach")
	var firstVar = t.parseVariable(first)

	var n = &ast.ForeachNode{Pos: token.pos}
	switch tok := t.next(); tok.typ {
	case itemIn:
		if len(firstVar.Access) > 0 {
			t.errorf("foreach: loop variable must be a plain name")
		}
		n.ValueName = firstVar.Name
		var src = t.expect(itemDollarIdent, "foreach")
		n.Source = t.parseVariable(src)
	case itemAs:
		n.Source = firstVar
		var name1 = t.expect(itemDollarIdent, "foreach")
		if t.peek().typ == itemArrow {
			t.next()
			var name2 = t.expect(itemDollarIdent, "foreach")
			n.KeyName = name1.val[1:]
			n.ValueName = name2.val[1:]
		} else {
			n.ValueName = name1.val[1:]
		}
	default:
		t.unexpected(tok, "foreach (expected 'in' or 'as')")
	}
	t.expect(itemRightDelim, "foreach")

	n.Body = t.itemList(itemForeachelse, itemForeachEnd)
	t.backup()
	switch tok := t.next(); tok.typ {
	case itemForeachelse:
		t.expect(itemRightDelim, "foreachelse")
		n.Else = t.itemList(itemForeachEnd)
		t.expect(itemRightDelim, "/foreach")
	default: // itemForeachEnd
		t.expect(itemRightDelim, "/foreach")
	}
	return n
}

// Expressions ----------

var precedence = map[itemType]int{
	itemOr:  1,
	itemAnd: 2,
	itemEq:  3,
	itemNotEq: 3,
	itemGt:  3,
	itemGte: 3,
	itemLt:  3,
	itemLte: 3,
	itemAdd: 4,
	itemSub: 4,
	itemMul: 5,
	itemDiv: 5,
	itemMod: 5,
}

const unaryPrecedence = 6

// parseExpr parses an arbitrary expression involving arithmetic, comparison
// and boolean operators.
//
// For handling binary operators, we use the Precedence Climbing algorithm
// described in:
//   http://www.engr.mun.ca/~theo/Misc/exp_parsing.htm
func (t *tree) parseExpr(prec int) ast.Expression {
	n := t.parseFirstTerm()
	for {
		var tok = t.next()
		q := precedence[tok.typ]
		if !isBinaryOp(tok.typ) || q < prec {
			t.backup()
			return n
		}
		n = ast.NewBinaryOp(tok.pos, tok.val, n, t.parseExpr(q+1))
		if isComparisonOp(tok.typ) && isComparisonOp(t.peek().typ) {
			// comparison is non-associative
			t.errorf("comparison operators cannot be chained")
		}
	}
}

// FirstTerm ->   "(" Expr ")"
//              | u=UnaryOp Expr(prec(u))
//              | Variable Pipe* | Literal
func (t *tree) parseFirstTerm() ast.Expression {
	switch tok := t.next(); tok.typ {
	case itemNot:
		return &ast.NotNode{Pos: tok.pos, Arg: t.parseExpr(unaryPrecedence)}
	case itemNegate:
		// unary minus lowers to 0 - operand
		return ast.NewBinaryOp(tok.pos, "-",
			&ast.IntNode{Pos: tok.pos, Value: 0}, t.parseExpr(unaryPrecedence))
	case itemLeftParen:
		n := t.parseExpr(0)
		t.expect(itemRightParen, "expression")
		return n
	case itemNull:
		return &ast.NullNode{Pos: tok.pos}
	case itemBool:
		return &ast.BoolNode{Pos: tok.pos, True: tok.val == "true"}
	case itemInteger:
		value, err := strconv.ParseInt(tok.val, 10, 64)
		if err != nil {
			t.error(err)
		}
		return &ast.IntNode{Pos: tok.pos, Value: value}
	case itemFloat:
		value, err := strconv.ParseFloat(tok.val, 64)
		if err != nil {
			t.error(err)
		}
		return &ast.DoubleNode{Pos: tok.pos, Value: value}
	case itemString:
		s, err := unquoteString(tok.val)
		if err != nil {
			t.errorf("error unquoting %s: %s", tok.val, err)
		}
		return &ast.StringNode{Pos: tok.pos, Quoted: tok.val, Text: s}
	case itemDollarIdent:
		return t.parsePipes(t.parseVariable(tok))
	default:
		t.unexpected(tok, "expression")
	}
	return nil
}

// parseVariable parses the accessors following a variable name:
//	Variable -> DollarIdent ( DotIdent | "[" Expr "]" )*
func (t *tree) parseVariable(tok item) *ast.VariableNode {
	var v = &ast.VariableNode{Pos: tok.pos, Name: tok.val[1:]}
	for {
		switch tok := t.next(); tok.typ {
		case itemDotIdent:
			v.Access = append(v.Access, &ast.FieldAccess{Pos: tok.pos, Name: tok.val[1:]})
		case itemLeftBracket:
			var index = t.parseExpr(0)
			t.expect(itemRightBracket, "variable")
			v.Access = append(v.Access, &ast.IndexAccess{Pos: tok.pos, Index: index})
		default:
			t.backup()
			return v
		}
	}
}

// parsePipes parses the modifier chain attached to a variable, if any:
//	Pipe -> "|" Ident ( ":" Expr ( "," Expr )* )?
func (t *tree) parsePipes(v *ast.VariableNode) ast.Expression {
	var mods []*ast.ModifierCall
	for t.peek().typ == itemPipe {
		var pipe = t.next()
		var name = t.expect(itemIdent, "modifier")
		var m = &ast.ModifierCall{Pos: pipe.pos, Name: name.val}
		if t.peek().typ == itemColon {
			t.next()
			m.Args = append(m.Args, t.parseExpr(0))
			for t.peek().typ == itemComma {
				t.next()
				m.Args = append(m.Args, t.parseExpr(0))
			}
		}
		mods = append(mods, m)
	}
	if len(mods) == 0 {
		return v
	}
	return &ast.FilterNode{Pos: v.Pos, Base: v, Mods: mods}
}

func isBinaryOp(typ itemType) bool {
	switch typ {
	case itemMul, itemDiv, itemMod,
		itemAdd, itemSub,
		itemEq, itemNotEq, itemGt, itemGte, itemLt, itemLte,
		itemOr, itemAnd:
		return true
	}
	return false
}

func isComparisonOp(typ itemType) bool {
	switch typ {
	case itemEq, itemNotEq, itemGt, itemGte, itemLt, itemLte:
		return true
	}
	return false
}

// Helpers ----------

// next returns the next token.
func (t *tree) next() item {
	if t.peekCount > 0 {
		t.peekCount--
	} else {
		t.token[0] = t.lex.nextItem()
	}
	return t.token[t.peekCount]
}

// backup backs the input stream up one token.
func (t *tree) backup() {
	t.peekCount++
}

// peek returns but does not consume the next token.
func (t *tree) peek() item {
	if t.peekCount > 0 {
		return t.token[t.peekCount-1]
	}
	t.peekCount = 1
	t.token[0] = t.lex.nextItem()
	return t.token[0]
}

// recover is the handler that turns panics into returns from the top level
// of Parse.
func (t *tree) recover(errp *error) {
	e := recover()
	if e == nil {
		return
	}
	if _, ok := e.(runtime.Error); ok {
		panic(e)
	}
	t.lex = nil
	if err, ok := e.(error); ok {
		*errp = err
	} else {
		*errp = errortypes.NewCompileErrorf(t.name, 0, 0, "%v", e)
	}
}

// expect consumes the next token and guarantees it has the required type.
func (t *tree) expect(expected itemType, context string) item {
	token := t.next()
	if token.typ != expected {
		t.unexpected(token, context+" (expected "+expected.String()+")")
	}
	return token
}

// unexpected complains about the token and terminates processing.
func (t *tree) unexpected(token item, context string) {
	if token.typ == itemError {
		t.errorf("lexical error: %v", token.val)
	}
	t.errorf("unexpected %v in %s", token, context)
}

// errorf formats the error, including the source position of the current
// token, and terminates processing.
func (t *tree) errorf(format string, args ...interface{}) {
	// get current token (taking account of backups)
	var tok = t.token[0]
	if t.peekCount > 0 {
		tok = t.token[t.peekCount-1]
	}
	var line, col = 0, 0
	if t.lex != nil {
		line = t.lex.lineNumber(tok.pos)
		col = t.lex.columnNumber(tok.pos)
	}
	panic(errortypes.NewCompileErrorf(t.name, line, col, format, args...))
}

// error terminates processing.
func (t *tree) error(err error) {
	t.errorf("%s", err)
}

func isOneOf(tocheck itemType, against []itemType) bool {
	for _, x := range against {
		if tocheck == x {
			return true
		}
	}
	return false
}
