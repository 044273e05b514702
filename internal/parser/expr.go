package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/lexer"
	"github.com/coredb/qlcore/internal/value"
)

// precedence assigns a binding power to each binary operator (spec.md
// §4.3's operator table), low to high. Operators absent from the table are
// not valid infix operators.
var precedence = map[string]int{
	"||": 1, "OR": 1,
	"&&": 2, "AND": 2,
	"??": 3, "?:": 3,
	"=": 4, "==": 4, "!=": 4, "*=": 4, "?=": 4,
	"~": 4, "!~": 4, "*~": 4, "?~": 4,
	"<": 4, ">": 4, "<=": 4, ">=": 4,
	"∋": 4, "∌": 4, "⊇": 4, "⊃": 4, "⊅": 4,
	"∈": 4, "∉": 4, "⊆": 4, "⊂": 4, "⊄": 4,
	"CONTAINS": 4, "CONTAINSNOT": 4, "CONTAINSALL": 4, "CONTAINSANY": 4, "CONTAINSNONE": 4,
	"INSIDE": 4, "OUTSIDE": 4, "INTERSECTS": 4, "IN": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "×": 6, "÷": 6, "%": 6,
	"**": 7,
}

// rightAssoc marks operators that bind tighter to their right operand.
var rightAssoc = map[string]bool{"**": true}

// currentOperatorText returns the textual operator at cur if cur is either
// an Operator token or a Keyword usable infix (AND/OR/CONTAINS*/IN/...).
func (p *Parser) currentOperatorText() (string, bool) {
	if p.cur.Kind == lexer.KindOperator {
		return p.cur.Text, true
	}
	if p.cur.Kind == lexer.KindKeyword {
		up := strings.ToUpper(p.cur.Text)
		if _, ok := precedence[up]; ok {
			return up, true
		}
	}
	return "", false
}

// parseExpr parses an expression using precedence climbing; minPrec is the
// minimum binding power an infix operator must have to be consumed here.
func (p *Parser) parseExpr(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.currentOperatorText()
		if !ok {
			break
		}
		prec, ok := precedence[op]
		if !ok || prec < minPrec {
			break
		}
		p.advance()
		nextMin := prec + 1
		if rightAssoc[op] {
			nextMin = prec
		}
		right, err := p.parseExpr(nextMin)
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.isOperator("-") || p.isOperator("+") || p.isOperator("!") || p.isKeyword("NOT") {
		op := p.cur.Text
		if p.isKeyword("NOT") {
			op = "NOT"
		}
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: op, Expr: inner}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any idiom suffix
// (dot-path, indexing, wildcard, destructuring, graph arrows).
func (p *Parser) parsePostfix() (ast.Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	var parts []ast.IdiomPart
	for {
		switch {
		case p.isPunct("."):
			p.advance()
			if p.tryPunct("*") || p.tryOperatorText("*") {
				parts = append(parts, ast.All{})
				continue
			}
			name, err := p.parseIdentName()
			if err != nil {
				return nil, err
			}
			parts = append(parts, ast.Field{Name: name})
		case p.isPunct("["):
			p.advance()
			if p.tryPunct("*") || p.tryOperatorText("*") {
				if err := p.expectPunct("]"); err != nil {
					return nil, err
				}
				parts = append(parts, ast.All{})
				continue
			}
			if p.isKeyword("WHERE") {
				p.advance()
				cond, err := p.parseExpr(0)
				if err != nil {
					return nil, err
				}
				if err := p.expectPunct("]"); err != nil {
					return nil, err
				}
				parts = append(parts, ast.Where{Cond: cond})
				continue
			}
			key, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			parts = append(parts, ast.Index{Key: key})
		case p.isPunct("{"):
			fields, err := p.parseDestructureFields()
			if err != nil {
				return nil, err
			}
			parts = append(parts, ast.Destructure{Fields: fields})
		case p.isOperator("->") || p.isOperator("<-") || p.isOperator("<->"):
			dir := ast.GraphOut
			switch p.cur.Text {
			case "<-":
				dir = ast.GraphIn
			case "<->":
				dir = ast.GraphBoth
			}
			p.advance()
			table := ""
			if p.cur.Kind == lexer.KindIdent {
				table = p.curText()
				p.advance()
			}
			var cond ast.Expr
			if p.tryPunct("[") {
				if err := p.expectKeyword("WHERE"); err != nil {
					return nil, err
				}
				c, err := p.parseExpr(0)
				if err != nil {
					return nil, err
				}
				cond = c
				if err := p.expectPunct("]"); err != nil {
					return nil, err
				}
			}
			parts = append(parts, ast.Graph{Direction: dir, Table: table, Cond: cond})
		default:
			if len(parts) == 0 {
				return base, nil
			}
			return ast.Idiom{Base: base, Parts: parts}, nil
		}
	}
}

func (p *Parser) parseDestructureFields() ([]string, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []string
	for !p.isPunct("}") {
		name, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		fields = append(fields, name)
		if !p.tryPunct(",") {
			break
		}
	}
	return fields, p.expectPunct("}")
}

// parsePrimary parses literals, identifiers, record ids, parenthesized
// expressions, array/object literals, function calls, and subqueries.
func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch {
	case p.isPunct("$"):
		p.advance()
		name, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		return ast.Param{Name: name}, nil
	case p.isPunct("("):
		p.advance()
		if p.isKeyword("SELECT") {
			sel, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return ast.Subquery{Select: sel.(*ast.SelectStmt)}, nil
		}
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		return inner, p.expectPunct(")")
	case p.isPunct("["):
		return p.parseArrayLit()
	case p.isPunct("{"):
		return p.parseObjectLit()
	case p.cur.Kind == lexer.KindNumber:
		return p.parseNumberLit()
	case p.cur.Kind == lexer.KindString:
		s := p.payloadText(p.cur)
		p.advance()
		return ast.Literal{Value: value.Str(s)}, nil
	case p.cur.Kind == lexer.KindDuration:
		raw := p.lx.Durations[p.cur.DataIndex].Raw
		p.advance()
		d, err := durationFromText(raw)
		if err != nil {
			return nil, err
		}
		return ast.Literal{Value: value.Duration(d)}, nil
	case p.cur.Kind == lexer.KindDatetime:
		raw := p.lx.Datetimes[p.cur.DataIndex].Raw
		p.advance()
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, errs.Wrap(errs.Parse, err, "malformed datetime literal")
		}
		return ast.Literal{Value: value.Datetime(t)}, nil
	case p.cur.Kind == lexer.KindUuid:
		raw := p.lx.Uuids[p.cur.DataIndex].Raw
		p.advance()
		u, err := parseUUID(raw)
		if err != nil {
			return nil, err
		}
		return ast.Literal{Value: u}, nil
	case p.isKeyword("NULL"):
		p.advance()
		return ast.Literal{Value: value.Null{}}, nil
	case p.isKeyword("NONE"):
		p.advance()
		return ast.Literal{Value: value.None{}}, nil
	case p.isKeyword("TRUE"):
		p.advance()
		return ast.Literal{Value: value.Bool(true)}, nil
	case p.isKeyword("FALSE"):
		p.advance()
		return ast.Literal{Value: value.Bool(false)}, nil
	case p.cur.Kind == lexer.KindIdent:
		return p.parseIdentOrRecordIDOrCall()
	default:
		return nil, p.unexpected("expression")
	}
}

func (p *Parser) parseArrayLit() (ast.Expr, error) {
	p.advance()
	var items []ast.Expr
	for !p.isPunct("]") {
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		if !p.tryPunct(",") {
			break
		}
	}
	return ast.ArrayLit{Items: items}, p.expectPunct("]")
}

func (p *Parser) parseObjectLit() (ast.Expr, error) {
	p.advance()
	var keys []string
	var vals []ast.Expr
	for !p.isPunct("}") {
		key, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
		if !p.tryPunct(",") {
			break
		}
	}
	return ast.ObjectLit{Keys: keys, Values: vals}, p.expectPunct("}")
}

func (p *Parser) parseNumberLit() (ast.Expr, error) {
	np := p.lx.Numbers[p.cur.DataIndex]
	p.advance()
	switch {
	case np.IsDec:
		d, err := value.DecimalFromString(np.Raw)
		if err != nil {
			return nil, errs.Wrap(errs.Parse, err, "malformed decimal literal")
		}
		return ast.Literal{Value: d}, nil
	case np.IsFloat:
		f, err := strconv.ParseFloat(np.Raw, 64)
		if err != nil {
			return nil, errs.Wrap(errs.Parse, err, "malformed float literal")
		}
		return ast.Literal{Value: value.Float(f)}, nil
	default:
		n, err := strconv.ParseInt(np.Raw, 10, 64)
		if err != nil {
			d, derr := value.DecimalFromString(np.Raw)
			if derr != nil {
				return nil, errs.Wrap(errs.Parse, err, "malformed integer literal")
			}
			return ast.Literal{Value: d}, nil
		}
		return ast.Literal{Value: value.Int(n)}, nil
	}
}

// parseIdentOrRecordIDOrCall disambiguates a bare identifier: it may be a
// variable reference, a `table:key` record id literal, or `name(args)`
// function call.
func (p *Parser) parseIdentOrRecordIDOrCall() (ast.Expr, error) {
	name := p.curText()
	p.advance()
	if p.isPunct(":") {
		p.advance()
		keyExpr, err := p.parseRecordIDKey()
		if err != nil {
			return nil, err
		}
		return ast.RecordIDLit{Table: name, Key: keyExpr}, nil
	}
	if p.isPunct("(") {
		p.advance()
		var args []ast.Expr
		for !p.isPunct(")") {
			a, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if !p.tryPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.FuncCall{Name: name, Args: args}, nil
	}
	return ast.Ident{Name: name}, nil
}

func (p *Parser) parseRecordIDKey() (ast.Expr, error) {
	switch {
	case p.cur.Kind == lexer.KindNumber:
		return p.parseNumberLit()
	case p.cur.Kind == lexer.KindString:
		s := p.payloadText(p.cur)
		p.advance()
		return ast.Literal{Value: value.Str(s)}, nil
	case p.cur.Kind == lexer.KindIdent:
		s := p.curText()
		p.advance()
		return ast.Literal{Value: value.Str(s)}, nil
	case p.isPunct("["):
		return p.parseArrayLit()
	case p.isPunct("{"):
		return p.parseObjectLit()
	default:
		return nil, p.unexpected("record id key")
	}
}
