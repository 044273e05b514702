package parser

import (
	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/lexer"
)

func (p *Parser) parseWhat() (ast.What, error) {
	var w ast.What
	for {
		if p.cur.Kind != lexer.KindIdent && p.cur.Kind != lexer.KindKeyword {
			return w, p.unexpected("table name or record id")
		}
		if p.peek.Kind == lexer.KindPunct && p.peek.Text == ":" {
			e, err := p.parseIdentOrRecordIDOrCall()
			if err != nil {
				return w, err
			}
			w.RecordIDs = append(w.RecordIDs, e)
		} else {
			w.Tables = append(w.Tables, p.curText())
			p.advance()
		}
		if !p.tryPunct(",") {
			break
		}
	}
	return w, nil
}

func (p *Parser) parseCond() (*ast.Cond, error) {
	if !p.tryKeyword("WHERE") {
		return nil, nil
	}
	e, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.Cond{Expr: e}, nil
}

func (p *Parser) parseGroups() (*ast.Groups, error) {
	if !p.tryKeyword("GROUP") {
		return nil, nil
	}
	p.tryKeyword("BY")
	var fields []ast.Expr
	for {
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		fields = append(fields, e)
		if !p.tryPunct(",") {
			break
		}
	}
	return &ast.Groups{Fields: fields}, nil
}

func (p *Parser) parseOrders() ([]ast.Order, error) {
	if !p.tryKeyword("ORDER") {
		return nil, nil
	}
	p.tryKeyword("BY")
	var orders []ast.Order
	for {
		if p.tryKeyword("RAND") {
			orders = append(orders, ast.Order{Rand: true})
		} else {
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			o := ast.Order{Field: e}
			if p.tryKeyword("ASC") {
				// default
			} else if p.tryKeyword("DESC") {
				o.Desc = true
			}
			orders = append(orders, o)
		}
		if !p.tryPunct(",") {
			break
		}
	}
	return orders, nil
}

func (p *Parser) parseLimitStart() (limit, start ast.Expr, err error) {
	if p.tryKeyword("LIMIT") {
		limit, err = p.parseExpr(0)
		if err != nil {
			return nil, nil, err
		}
	}
	if p.tryKeyword("START") {
		p.tryKeyword("AT")
		start, err = p.parseExpr(0)
		if err != nil {
			return nil, nil, err
		}
	}
	return limit, start, nil
}

func (p *Parser) parseFetchs() (*ast.Fetchs, error) {
	if !p.tryKeyword("FETCH") {
		return nil, nil
	}
	var idioms []ast.Expr
	for {
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		idioms = append(idioms, e)
		if !p.tryPunct(",") {
			break
		}
	}
	return &ast.Fetchs{Idioms: idioms}, nil
}

func (p *Parser) parseTimeout() (*ast.Timeout, error) {
	if !p.tryKeyword("TIMEOUT") {
		return nil, nil
	}
	if p.cur.Kind != lexer.KindDuration {
		return nil, p.unexpected("duration literal")
	}
	raw := p.lx.Durations[p.cur.DataIndex].Raw
	p.advance()
	d, err := durationFromText(raw)
	if err != nil {
		return nil, err
	}
	return &ast.Timeout{Duration: d}, nil
}

func (p *Parser) parseOutput() (*ast.Output, error) {
	if !p.tryKeyword("RETURN") {
		return nil, nil
	}
	var o ast.Output
	switch {
	case p.tryKeyword("NONE"):
		o = ast.OutputNone
	case p.tryKeyword("NULL"):
		o = ast.OutputNull
	case p.tryKeyword("DIFF"):
		o = ast.OutputDiff
	case p.tryKeyword("BEFORE"):
		o = ast.OutputBefore
	case p.tryKeyword("AFTER"):
		o = ast.OutputAfter
	default:
		// RETURN followed by anything else: nothing more is consumed here
		// and no caller parses a field list, so tokens after RETURN are
		// left for the statement parser (which rejects a field list), and
		// the executor's outputFor treats OutputFields like AFTER.
		o = ast.OutputFields
	}
	return &o, nil
}

func (p *Parser) parseSelect() (ast.Statement, error) {
	p.advance()
	stmt := &ast.SelectStmt{}
	if p.tryKeyword("VALUE") {
		// single-field shorthand: fall through to normal field parsing
	}
	for {
		if p.tryPunct("*") || p.tryOperatorText("*") {
			stmt.Fields = append(stmt.Fields, ast.SelectField{Star: true})
		} else {
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			f := ast.SelectField{Expr: e}
			if p.tryKeyword("AS") {
				alias, err := p.parseIdentName()
				if err != nil {
					return nil, err
				}
				f.Alias = alias
			}
			stmt.Fields = append(stmt.Fields, f)
		}
		if !p.tryPunct(",") {
			break
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if p.tryKeyword("ONLY") {
		stmt.Only = true
	}
	what, err := p.parseWhat()
	if err != nil {
		return nil, err
	}
	stmt.What = what
	if stmt.Cond, err = p.parseCond(); err != nil {
		return nil, err
	}
	if stmt.Groups, err = p.parseGroups(); err != nil {
		return nil, err
	}
	if stmt.Orders, err = p.parseOrders(); err != nil {
		return nil, err
	}
	if stmt.Limit, stmt.Start, err = p.parseLimitStart(); err != nil {
		return nil, err
	}
	if stmt.Fetchs, err = p.parseFetchs(); err != nil {
		return nil, err
	}
	if p.tryKeyword("PARALLEL") {
		stmt.Parallel = true
	}
	if stmt.Timeout, err = p.parseTimeout(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseAssignments() ([]ast.Assignment, error) {
	var out []ast.Assignment
	for {
		idiom, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		op := "="
		switch {
		case p.tryOperatorText("+="):
			op = "+="
		case p.tryOperatorText("-="):
			op = "-="
		default:
			if err := p.expectOperator("="); err != nil {
				return nil, err
			}
		}
		val, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		out = append(out, ast.Assignment{Idiom: idiom, Op: op, Value: val})
		if !p.tryPunct(",") {
			break
		}
	}
	return out, nil
}

func (p *Parser) tryOperatorText(s string) bool {
	if p.cur.Kind == lexer.KindOperator && p.cur.Text == s {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) parseCreate() (ast.Statement, error) {
	p.advance()
	stmt := &ast.CreateStmt{}
	if p.tryKeyword("ONLY") {
		stmt.Only = true
	}
	what, err := p.parseWhat()
	if err != nil {
		return nil, err
	}
	stmt.What = what
	if p.tryKeyword("CONTENT") {
		stmt.Content, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
	} else if p.tryKeyword("SET") {
		stmt.Set, err = p.parseAssignments()
		if err != nil {
			return nil, err
		}
	}
	if out, err := p.parseOutput(); err != nil {
		return nil, err
	} else {
		stmt.Output = out
	}
	if stmt.Timeout, err = p.parseTimeout(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	p.advance()
	stmt := &ast.UpdateStmt{}
	if p.tryKeyword("ONLY") {
		stmt.Only = true
	}
	what, err := p.parseWhat()
	if err != nil {
		return nil, err
	}
	stmt.What = what
	switch {
	case p.tryKeyword("CONTENT"):
		stmt.Content, err = p.parseExpr(0)
	case p.tryKeyword("MERGE"):
		stmt.Merge, err = p.parseExpr(0)
	case p.tryKeyword("PATCH"):
		stmt.Patch, err = p.parseExpr(0)
	case p.tryKeyword("REPLACE"):
		stmt.Replace, err = p.parseExpr(0)
	case p.tryKeyword("SET"):
		stmt.Set, err = p.parseAssignments()
	case p.tryKeyword("UNSET"):
		for {
			name, ierr := p.parseIdentName()
			if ierr != nil {
				err = ierr
				break
			}
			stmt.Unset = append(stmt.Unset, name)
			if !p.tryPunct(",") {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if stmt.Cond, err = p.parseCond(); err != nil {
		return nil, err
	}
	if out, err := p.parseOutput(); err != nil {
		return nil, err
	} else {
		stmt.Output = out
	}
	if stmt.Timeout, err = p.parseTimeout(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.advance()
	stmt := &ast.DeleteStmt{}
	if p.tryKeyword("ONLY") {
		stmt.Only = true
	}
	p.tryKeyword("FROM")
	what, err := p.parseWhat()
	if err != nil {
		return nil, err
	}
	stmt.What = what
	if stmt.Cond, err = p.parseCond(); err != nil {
		return nil, err
	}
	if out, err := p.parseOutput(); err != nil {
		return nil, err
	} else {
		stmt.Output = out
	}
	if stmt.Timeout, err = p.parseTimeout(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.advance()
	p.tryKeyword("INTO")
	table, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.InsertStmt{Table: table}
	content, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	stmt.Content = content
	if out, err := p.parseOutput(); err != nil {
		return nil, err
	} else {
		stmt.Output = out
	}
	return stmt, nil
}

func (p *Parser) parseRelate() (ast.Statement, error) {
	p.advance()
	stmt := &ast.RelateStmt{}
	from, err := p.parseExpr(5) // above arrow-adjacent idiom parsing
	if err != nil {
		return nil, err
	}
	stmt.From = from
	if err := p.expectOperator("->"); err != nil {
		return nil, err
	}
	edge, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	stmt.Edge = edge
	if err := p.expectOperator("->"); err != nil {
		return nil, err
	}
	to, err := p.parseExpr(5)
	if err != nil {
		return nil, err
	}
	stmt.To = to
	if p.tryKeyword("CONTENT") {
		stmt.Content, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
	} else if p.tryKeyword("SET") {
		stmt.Set, err = p.parseAssignments()
		if err != nil {
			return nil, err
		}
	}
	if out, err := p.parseOutput(); err != nil {
		return nil, err
	} else {
		stmt.Output = out
	}
	return stmt, nil
}
