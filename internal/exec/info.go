package exec

import (
	"context"
	"strings"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// execInfo reports Catalog contents for the requested scope (spec.md
// §4.5's INFO FOR statement). The shape mirrors the DEFINE statement each
// entry came from: a name-keyed object of flag summaries, not the raw AST.
func (e *Executor) execInfo(ctx context.Context, s *ast.InfoStmt) (value.Value, error) {
	ns, db := e.opts.Namespace, e.opts.Database
	switch strings.ToUpper(s.Scope) {
	case "ROOT", "NAMESPACE":
		out := value.NewObject()
		users := value.NewObject()
		for _, u := range e.cat.UsersOf(ns, "") {
			users.Set(u.Name, userSummary(u))
		}
		out.Set("users", users)
		return out, nil
	case "DATABASE":
		out := value.NewObject()
		tables := value.NewObject()
		for _, t := range e.cat.TablesOf(ns, db) {
			tables.Set(t.Name, tableSummary(t))
		}
		out.Set("tables", tables)
		users := value.NewObject()
		for _, u := range e.cat.UsersOf(ns, db) {
			users.Set(u.Name, userSummary(u))
		}
		out.Set("users", users)
		return out, nil
	case "TABLE":
		def, ok := e.cat.Table(ns, db, s.Name)
		if !ok {
			return nil, errs.New(errs.NotFound, "no such table", errs.F("table", s.Name))
		}
		out := tableSummary(def)
		fields := value.NewObject()
		for _, f := range e.cat.FieldsOf(ns, db, s.Name) {
			fields.Set(f.Name, fieldSummary(f))
		}
		out.Set("fields", fields)
		indexes := value.NewObject()
		for _, ix := range e.cat.IndexesOf(ns, db, s.Name) {
			indexes.Set(ix.Name, indexSummary(ix))
		}
		out.Set("indexes", indexes)
		return out, nil
	case "USER":
		def, ok := e.cat.User(ns, db, s.Name)
		if !ok {
			return nil, errs.New(errs.NotFound, "no such user", errs.F("user", s.Name))
		}
		return userSummary(def), nil
	default:
		return nil, errs.New(errs.Unsupported, "unsupported INFO scope", errs.F("scope", s.Scope))
	}
}

func tableSummary(d *ast.DefineTableStmt) value.Object {
	o := value.NewObject()
	o.Set("schemafull", value.Bool(d.Schemafull))
	o.Set("drop", value.Bool(d.Drop))
	return o
}

func fieldSummary(d *ast.DefineFieldStmt) value.Object {
	o := value.NewObject()
	o.Set("type", value.Str(d.Type))
	o.Set("flexible", value.Bool(d.Flexible))
	o.Set("readonly", value.Bool(d.Readonly))
	return o
}

func indexSummary(d *ast.DefineIndexStmt) value.Object {
	o := value.NewObject()
	fields := make(value.Array, 0, len(d.Fields))
	for _, f := range d.Fields {
		fields = append(fields, value.Str(f))
	}
	o.Set("fields", fields)
	o.Set("unique", value.Bool(d.Unique))
	return o
}

func userSummary(d *ast.DefineUserStmt) value.Object {
	o := value.NewObject()
	roles := make(value.Array, 0, len(d.Roles))
	for _, r := range d.Roles {
		roles = append(roles, value.Str(r))
	}
	o.Set("roles", roles)
	return o
}
