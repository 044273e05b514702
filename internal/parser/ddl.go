package parser

import (
	"strings"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/lexer"
)

func (p *Parser) parseDefine() (ast.Statement, error) {
	p.advance()
	if p.cur.Kind != lexer.KindKeyword {
		return nil, p.unexpected("TABLE|FIELD|INDEX|USER")
	}
	switch strings.ToUpper(p.cur.Text) {
	case "TABLE":
		p.advance()
		return p.parseDefineTable()
	case "FIELD":
		p.advance()
		return p.parseDefineField()
	case "INDEX":
		p.advance()
		return p.parseDefineIndex()
	case "USER":
		p.advance()
		return p.parseDefineUser()
	default:
		return nil, p.unexpected("TABLE|FIELD|INDEX|USER")
	}
}

func (p *Parser) parseDefineTable() (ast.Statement, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.DefineTableStmt{Name: name}
	for {
		switch {
		case p.tryKeyword("DROP"):
			stmt.Drop = true
		case p.tryKeyword("SCHEMAFULL"):
			stmt.Schemafull = true
		case p.tryKeyword("SCHEMALESS"):
			stmt.Schemafull = false
		case p.tryKeyword("AS"):
			if err := p.expectKeyword("SELECT"); err != nil {
				return nil, err
			}
			sel, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			stmt.View = &ast.View{Select: sel.(*ast.SelectStmt)}
		case p.tryKeyword("CHANGEFEED"):
			if p.cur.Kind != lexer.KindDuration {
				return nil, p.unexpected("duration literal")
			}
			raw := p.lx.Durations[p.cur.DataIndex].Raw
			p.advance()
			d, err := durationFromText(raw)
			if err != nil {
				return nil, err
			}
			cf := &ast.ChangeFeed{Expiry: d}
			if p.tryKeyword("INCLUDE") {
				p.tryKeyword("ORIGINAL")
				cf.IncludeOrig = true
			}
			stmt.ChangeFeed = cf
		case p.isKeyword("PERMISSIONS"):
			perms, err := p.parsePermissions()
			if err != nil {
				return nil, err
			}
			stmt.Permissions = perms
		default:
			return stmt, nil
		}
	}
}

func (p *Parser) parsePermissions() (*ast.Permissions, error) {
	if err := p.expectKeyword("PERMISSIONS"); err != nil {
		return nil, err
	}
	perms := &ast.Permissions{}
	if p.tryKeyword("NONE") {
		perms.None = true
		return perms, nil
	}
	if p.tryKeyword("FULL") {
		perms.Full = true
		return perms, nil
	}
	for p.isKeyword("FOR") {
		p.advance()
		var actions []string
		for {
			switch {
			case p.tryKeyword("SELECT"):
				actions = append(actions, "select")
			case p.tryKeyword("CREATE"):
				actions = append(actions, "create")
			case p.tryKeyword("UPDATE"):
				actions = append(actions, "update")
			case p.tryKeyword("DELETE"):
				actions = append(actions, "delete")
			default:
				return nil, p.unexpected("SELECT|CREATE|UPDATE|DELETE")
			}
			if !p.tryPunct(",") {
				break
			}
		}
		var cond ast.Expr
		if p.tryKeyword("WHERE") {
			c, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			cond = c
		} else {
			p.tryKeyword("NONE")
		}
		perm := &ast.Permission{Actions: actions, Cond: cond}
		for _, a := range actions {
			switch a {
			case "select":
				perms.Select = perm
			case "create":
				perms.Create = perm
			case "update":
				perms.Update = perm
			case "delete":
				perms.Delete = perm
			}
		}
	}
	return perms, nil
}

func (p *Parser) parseDefineField() (ast.Statement, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	p.tryKeyword("TABLE")
	table, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.DefineFieldStmt{Name: name, Table: table}
	for {
		switch {
		case p.tryKeyword("FLEXIBLE"):
			stmt.Flexible = true
		case p.tryKeyword("READONLY"):
			stmt.Readonly = true
		case p.tryKeyword("TYPE"):
			typeName, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			stmt.Type = typeName
		case p.tryKeyword("VALUE"):
			stmt.Value, err = p.parseExpr(0)
			if err != nil {
				return nil, err
			}
		case p.tryKeyword("ASSERT"):
			stmt.Assert, err = p.parseExpr(0)
			if err != nil {
				return nil, err
			}
		case p.tryKeyword("DEFAULT"):
			stmt.Default, err = p.parseExpr(0)
			if err != nil {
				return nil, err
			}
		case p.isKeyword("PERMISSIONS"):
			stmt.Permissions, err = p.parsePermissions()
			if err != nil {
				return nil, err
			}
		default:
			return stmt, nil
		}
	}
}

// parseTypeName reads a (possibly parametrized) type name like "int",
// "string", "array<record<user>>", keeping only the head name; element
// parametrization is accepted but not retained beyond the head, since
// coercion dispatch (internal/exec) only branches on the head type.
func (p *Parser) parseTypeName() (string, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return "", err
	}
	if p.tryPunct("<") || p.tryOperatorText("<") {
		depth := 1
		for depth > 0 {
			if p.cur.Kind == lexer.KindEOF {
				return "", p.unexpected(">")
			}
			if p.isPunct("<") {
				depth++
			} else if p.isOperator("<") {
				depth++
			} else if p.isPunct(">") || p.isOperator(">") {
				depth--
			}
			p.advance()
		}
	}
	return name, nil
}

func (p *Parser) parseDefineIndex() (ast.Statement, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	p.tryKeyword("TABLE")
	table, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.DefineIndexStmt{Name: name, Table: table}
	if err := p.expectKeyword("FIELDS"); err != nil {
		if err2 := p.expectKeyword("COLUMNS"); err2 != nil {
			return nil, err
		}
	}
	for {
		f, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		stmt.Fields = append(stmt.Fields, f)
		if !p.tryPunct(",") {
			break
		}
	}
	if p.tryKeyword("UNIQUE") {
		stmt.Unique = true
	}
	return stmt, nil
}

func (p *Parser) parseDefineUser() (ast.Statement, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.DefineUserStmt{Name: name}
	switch {
	case p.tryKeyword("ON"):
		if p.tryKeyword("ROOT") {
			stmt.Base = ast.BaseRoot
		} else if p.tryKeyword("NAMESPACE") {
			stmt.Base = ast.BaseNs
		} else if p.tryKeyword("DATABASE") {
			stmt.Base = ast.BaseDb
		}
	}
	if p.tryKeyword("PASSWORD") {
		if p.cur.Kind != lexer.KindString {
			return nil, p.unexpected("password string literal")
		}
		stmt.Password = p.payloadText(p.cur)
		p.advance()
	}
	if p.tryKeyword("ROLES") {
		for {
			r, err := p.parseIdentName()
			if err != nil {
				return nil, err
			}
			stmt.Roles = append(stmt.Roles, r)
			if !p.tryPunct(",") {
				break
			}
		}
	}
	return stmt, nil
}

func (p *Parser) parseRemove() (ast.Statement, error) {
	p.advance()
	if p.cur.Kind != lexer.KindKeyword {
		return nil, p.unexpected("TABLE|FIELD|INDEX|USER")
	}
	kind := strings.ToUpper(p.cur.Text)
	p.advance()
	name, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.RemoveStmt{Kind: kind, Name: name}
	if kind == "FIELD" || kind == "INDEX" {
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		p.tryKeyword("TABLE")
		table, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		stmt.Table = table
	}
	return stmt, nil
}
