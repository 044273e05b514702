package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/value"
)

// execDelete implements DELETE (spec.md §4.2): resolve targets, filter by
// WHERE, permission-check, and remove.
func (e *Executor) execDelete(ctx context.Context, s *ast.DeleteStmt, scope *Scope) ([]value.Value, error) {
	ns, db := e.opts.Namespace, e.opts.Database
	recs, err := e.resolveWhat(ctx, s.What, scope)
	if err != nil {
		return nil, err
	}

	rows := make([]value.Value, 0, len(recs))
	for _, r := range recs {
		before := ensureID(r)
		if s.Cond != nil {
			keep, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: before}, s.Cond.Expr)
			if err != nil {
				return nil, err
			}
			if !truthy(keep) {
				continue
			}
		}
		if err := checkTablePermission(ctx, e.opts, e.cat, ns, db, r.ID.Table, ActionDelete, before); err != nil {
			return nil, err
		}
		if err := deleteRecord(ctx, e.tx, ns, db, r.ID); err != nil {
			return nil, err
		}
		// DELETE's default (Output nil) reports the removed record, not an
		// empty AFTER body.
		mode := s.Output
		if mode == nil {
			defaultMode := ast.OutputBefore
			mode = &defaultMode
		}
		rows = append(rows, outputFor(mode, before, value.Object{}))
	}
	return rows, nil
}
