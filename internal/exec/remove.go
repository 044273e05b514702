package exec

import (
	"context"
	"strings"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
)

// execRemove dispatches a REMOVE statement by its Kind (spec.md §4.5):
// each branch confirms the definition exists (surfacing errs.NotFound
// otherwise), then drops it from both the Catalog and the durable marker.
func (e *Executor) execRemove(ctx context.Context, s *ast.RemoveStmt) error {
	ns, db := e.opts.Namespace, e.opts.Database
	if err := e.opts.IsAllowed(ActionRemove, ResourceTable); err != nil {
		return err
	}
	switch strings.ToUpper(s.Kind) {
	case "TABLE":
		if _, ok := e.cat.Table(ns, db, s.Name); !ok {
			return requireDefined(false, "table", s.Name)
		}
		if err := removeTableDef(ctx, e.tx, ns, db, s.Name); err != nil {
			return err
		}
		e.cat.RemoveTable(ns, db, s.Name)
		return nil
	case "FIELD":
		if _, ok := e.cat.Field(ns, db, s.Table, s.Name); !ok {
			return requireDefined(false, "field", s.Name)
		}
		if err := removeFieldDef(ctx, e.tx, ns, db, s.Table, s.Name); err != nil {
			return err
		}
		e.cat.RemoveField(ns, db, s.Table, s.Name)
		return nil
	case "INDEX":
		found := false
		for _, ix := range e.cat.IndexesOf(ns, db, s.Table) {
			if ix.Name == s.Name {
				found = true
				break
			}
		}
		if !found {
			return requireDefined(false, "index", s.Name)
		}
		if err := removeIndexDef(ctx, e.tx, ns, db, s.Table, s.Name); err != nil {
			return err
		}
		e.cat.RemoveIndex(ns, db, s.Table, s.Name)
		return nil
	case "USER":
		if _, ok := e.cat.User(ns, db, s.Name); !ok {
			return requireDefined(false, "user", s.Name)
		}
		if err := removeUserDef(ctx, e.tx, ns, db, s.Name); err != nil {
			return err
		}
		e.cat.RemoveUser(ns, db, s.Name)
		return nil
	default:
		return errs.New(errs.Unsupported, "unsupported REMOVE kind", errs.F("kind", s.Kind))
	}
}
