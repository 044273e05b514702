package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// execUpdate implements UPDATE (spec.md §4.2): resolve targets (existing
// records only; UPDATE never creates), apply exactly one of CONTENT/
// REPLACE/MERGE/PATCH/SET-UNSET, re-coerce, and write back.
func (e *Executor) execUpdate(ctx context.Context, s *ast.UpdateStmt, scope *Scope) ([]value.Value, error) {
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

		after, err := applyUpdateBody(ctx, e, scope, s, before)
		if err != nil {
			return nil, err
		}
		after, err = e.prepareWrite(ctx, ns, db, r.ID.Table, after, false)
		if err != nil {
			return nil, err
		}
		after.Set("id", r.ID)

		if err := checkTablePermission(ctx, e.opts, e.cat, ns, db, r.ID.Table, ActionUpdate, after); err != nil {
			return nil, err
		}
		if err := setRecord(ctx, e.tx, ns, db, r.ID, after); err != nil {
			return nil, err
		}
		rows = append(rows, outputFor(s.Output, before, after))
	}
	return rows, nil
}

func applyUpdateBody(ctx context.Context, e *Executor, scope *Scope, s *ast.UpdateStmt, before value.Object) (value.Object, error) {
	switch {
	case s.Content != nil:
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: before}, s.Content)
		if err != nil {
			return value.Object{}, err
		}
		obj, ok := v.(value.Object)
		if !ok {
			return value.Object{}, errs.New(errs.Conversion, "UPDATE CONTENT must be an object")
		}
		return obj, nil
	case s.Replace != nil:
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: before}, s.Replace)
		if err != nil {
			return value.Object{}, err
		}
		obj, ok := v.(value.Object)
		if !ok {
			return value.Object{}, errs.New(errs.Conversion, "UPDATE REPLACE must be an object")
		}
		return obj, nil
	case s.Merge != nil:
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: before}, s.Merge)
		if err != nil {
			return value.Object{}, err
		}
		patch, ok := v.(value.Object)
		if !ok {
			return value.Object{}, errs.New(errs.Conversion, "UPDATE MERGE must be an object")
		}
		return mergeObjects(before, patch), nil
	case s.Patch != nil:
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: before}, s.Patch)
		if err != nil {
			return value.Object{}, err
		}
		ops, ok := v.(value.Array)
		if !ok {
			return value.Object{}, errs.New(errs.Conversion, "UPDATE PATCH must be an array")
		}
		return applyPatchOps(before, ops)
	default:
		obj := cloneObject(before)
		for _, a := range s.Set {
			if err := applyAssignment(ctx, EvalContext{Scope: scope, Exec: e, Current: obj}, &obj, a); err != nil {
				return value.Object{}, err
			}
		}
		for _, name := range s.Unset {
			obj.Delete(name)
		}
		return obj, nil
	}
}

func cloneObject(o value.Object) value.Object {
	out := value.NewObject()
	for _, k := range o.SortedKeys() {
		v, _ := o.Get(k)
		out.Set(k, v)
	}
	return out
}

func mergeObjects(base, patch value.Object) value.Object {
	out := cloneObject(base)
	for _, k := range patch.SortedKeys() {
		v, _ := patch.Get(k)
		if _, isNull := v.(value.Null); isNull {
			out.Delete(k)
			continue
		}
		out.Set(k, v)
	}
	return out
}

func applyPatchOps(base value.Object, ops value.Array) (value.Object, error) {
	out := cloneObject(base)
	for _, opv := range ops {
		op, ok := opv.(value.Object)
		if !ok {
			return value.Object{}, errs.New(errs.Conversion, "patch entry must be an object")
		}
		kindV, _ := op.Get("op")
		pathV, _ := op.Get("path")
		kind, _ := value.AsString(kindV)
		path, _ := value.AsString(pathV)
		field := trimLeadingSlash(path)
		switch kind {
		case "add", "replace":
			v, _ := op.Get("value")
			out.Set(field, v)
		case "remove":
			out.Delete(field)
		default:
			return value.Object{}, errs.New(errs.Unsupported, "unsupported patch op", errs.F("op", kind))
		}
	}
	return out, nil
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}
