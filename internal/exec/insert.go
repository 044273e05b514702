package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// execInsert implements INSERT (spec.md §4.2): CONTENT is either a single
// object or an array of objects, each written as a new record on Table,
// auto-assigning an id unless the content supplies one.
func (e *Executor) execInsert(ctx context.Context, s *ast.InsertStmt, scope *Scope) ([]value.Value, error) {
	ns, db := e.opts.Namespace, e.opts.Database
	v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.Content)
	if err != nil {
		return nil, err
	}

	var items []value.Object
	switch t := v.(type) {
	case value.Object:
		items = []value.Object{t}
	case value.Array:
		for _, item := range t {
			obj, ok := item.(value.Object)
			if !ok {
				return nil, errs.New(errs.Conversion, "INSERT content array must contain objects")
			}
			items = append(items, obj)
		}
	default:
		return nil, errs.New(errs.Conversion, "INSERT content must be an object or an array of objects")
	}

	rows := make([]value.Value, 0, len(items))
	for _, obj := range items {
		rid, err := insertTargetID(obj, s.Table)
		if err != nil {
			return nil, err
		}
		prepared, err := e.prepareWrite(ctx, ns, db, s.Table, obj, true)
		if err != nil {
			return nil, err
		}
		prepared.Set("id", rid)
		if err := checkTablePermission(ctx, e.opts, e.cat, ns, db, s.Table, ActionCreate, prepared); err != nil {
			return nil, err
		}
		if err := createRecord(ctx, e.tx, ns, db, rid, prepared); err != nil {
			return nil, err
		}
		rows = append(rows, outputFor(s.Output, value.Object{}, prepared))
	}
	return rows, nil
}

func insertTargetID(obj value.Object, table string) (value.RecordID, error) {
	if idv, ok := obj.Get("id"); ok {
		if rid, ok := idv.(value.RecordID); ok {
			return rid, nil
		}
		key, ok := idv.(value.RecordIDKey)
		if !ok {
			return value.RecordID{}, errs.New(errs.Conversion, "id field must be a valid record id key")
		}
		return value.RecordID{Table: table, Key: key}, nil
	}
	return value.RecordID{Table: table, Key: newAutoKey()}, nil
}
