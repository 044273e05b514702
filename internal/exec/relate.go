package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// execRelate implements RELATE (spec.md §4.2): creates an edge record on
// the named edge table carrying "in"/"out" RecordID fields pointing at the
// From/To endpoints, the representation traverseGraph reads back.
func (e *Executor) execRelate(ctx context.Context, s *ast.RelateStmt, scope *Scope) ([]value.Value, error) {
	ns, db := e.opts.Namespace, e.opts.Database

	fromV, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.From)
	if err != nil {
		return nil, err
	}
	from, ok := fromV.(value.RecordID)
	if !ok {
		return nil, errs.New(errs.Conversion, "RELATE FROM must be a record id")
	}
	toV, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.To)
	if err != nil {
		return nil, err
	}
	to, ok := toV.(value.RecordID)
	if !ok {
		return nil, errs.New(errs.Conversion, "RELATE TO must be a record id")
	}

	obj := value.NewObject()
	if s.Content != nil {
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.Content)
		if err != nil {
			return nil, err
		}
		content, ok := v.(value.Object)
		if !ok {
			return nil, errs.New(errs.Conversion, "RELATE CONTENT must be an object")
		}
		obj = content
	}
	for _, a := range s.Set {
		if err := applyAssignment(ctx, EvalContext{Scope: scope, Exec: e, Current: obj}, &obj, a); err != nil {
			return nil, err
		}
	}
	obj.Set("in", from)
	obj.Set("out", to)

	rid := value.RecordID{Table: s.Edge, Key: newAutoKey()}
	prepared, err := e.prepareWrite(ctx, ns, db, s.Edge, obj, true)
	if err != nil {
		return nil, err
	}
	prepared.Set("id", rid)
	prepared.Set("in", from)
	prepared.Set("out", to)

	if err := checkTablePermission(ctx, e.opts, e.cat, ns, db, s.Edge, ActionCreate, prepared); err != nil {
		return nil, err
	}
	if err := createRecord(ctx, e.tx, ns, db, rid, prepared); err != nil {
		return nil, err
	}
	return []value.Value{outputFor(s.Output, value.Object{}, prepared)}, nil
}
