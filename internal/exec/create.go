package exec

import (
	"context"

	"github.com/google/uuid"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// execCreate implements CREATE (spec.md §4.2): one new record per What
// target, content-assembled from CONTENT or SET, type-coerced per the
// table's field definitions, and permission-checked before being written.
func (e *Executor) execCreate(ctx context.Context, s *ast.CreateStmt, scope *Scope) ([]value.Value, error) {
	ns, db := e.opts.Namespace, e.opts.Database
	targets, err := e.createTargets(ctx, s.What, scope)
	if err != nil {
		return nil, err
	}

	rows := make([]value.Value, 0, len(targets))
	for _, rid := range targets {
		obj := value.NewObject()
		if s.Content != nil {
			v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.Content)
			if err != nil {
				return nil, err
			}
			content, ok := v.(value.Object)
			if !ok {
				return nil, errs.New(errs.Conversion, "CREATE CONTENT must be an object")
			}
			obj = content
		}
		for _, a := range s.Set {
			if err := applyAssignment(ctx, EvalContext{Scope: scope, Exec: e, Current: obj}, &obj, a); err != nil {
				return nil, err
			}
		}

		obj, err = e.prepareWrite(ctx, ns, db, rid.Table, obj, true)
		if err != nil {
			return nil, err
		}
		obj.Set("id", rid)

		if err := checkTablePermission(ctx, e.opts, e.cat, ns, db, rid.Table, ActionCreate, obj); err != nil {
			return nil, err
		}
		if err := createRecord(ctx, e.tx, ns, db, rid, obj); err != nil {
			return nil, err
		}
		rows = append(rows, outputFor(s.Output, value.Object{}, obj))
	}
	return rows, nil
}

// createTargets resolves What into the concrete ids CREATE should write:
// explicit record ids as given, or one freshly minted id per bare table
// name (spec.md §4.2's implicit-id CREATE form).
func (e *Executor) createTargets(ctx context.Context, w ast.What, scope *Scope) ([]value.RecordID, error) {
	var out []value.RecordID
	for _, tb := range w.Tables {
		out = append(out, value.RecordID{Table: tb, Key: newAutoKey()})
	}
	for _, expr := range w.RecordIDs {
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, expr)
		if err != nil {
			return nil, err
		}
		rid, ok := v.(value.RecordID)
		if !ok {
			return nil, errs.New(errs.Conversion, "CREATE target is not a record id")
		}
		out = append(out, rid)
	}
	return out, nil
}

func newAutoKey() value.RecordIDKey {
	return value.Str(uuid.New().String())
}

// prepareWrite applies the table's schema: type coercion on every field
// the table's DEFINE FIELD clauses describe, and SCHEMAFULL rejection of
// any field without one (spec.md §4.4).
func (e *Executor) prepareWrite(ctx context.Context, ns, db, tb string, obj value.Object, create bool) (value.Object, error) {
	def, hasTable := e.cat.Table(ns, db, tb)
	if hasTable && def.Schemafull {
		for _, k := range obj.SortedKeys() {
			if k == "id" {
				continue
			}
			if _, ok := e.cat.Field(ns, db, tb, k); !ok {
				return value.Object{}, errs.New(errs.Unsupported, "field not defined on schemafull table",
					errs.F("table", tb), errs.F("field", k))
			}
		}
	}
	coerced, err := applyFieldTypes(e.cat, ns, db, tb, obj)
	if err != nil {
		return value.Object{}, err
	}
	for _, fd := range e.cat.FieldsOf(ns, db, tb) {
		if _, ok := coerced.Get(fd.Name); ok {
			continue
		}
		if fd.Default == nil {
			continue
		}
		v, err := Eval(ctx, EvalContext{Scope: NewScope(), Exec: e, Current: coerced}, fd.Default)
		if err != nil {
			return value.Object{}, err
		}
		coerced.Set(fd.Name, v)
	}
	for _, fd := range e.cat.FieldsOf(ns, db, tb) {
		if fd.Assert == nil {
			continue
		}
		v, _ := coerced.Get(fd.Name)
		ok, err := Eval(ctx, EvalContext{Scope: NewScope(), Exec: e, Current: coerced}, fd.Assert)
		if err != nil {
			return value.Object{}, err
		}
		_ = v
		if !truthy(ok) {
			return value.Object{}, errs.New(errs.Conversion, "field failed ASSERT", errs.F("field", fd.Name))
		}
	}
	return coerced, nil
}

// applyAssignment evaluates one SET clause term and writes it onto obj at
// the idiom's top-level field name; "+="/"-=" combine with the field's
// current value the way value.Add/value.Sub already define for arrays and
// numbers.
func applyAssignment(ctx context.Context, ec EvalContext, obj *value.Object, a ast.Assignment) error {
	name, ok := topLevelField(a.Idiom)
	if !ok {
		return errs.New(errs.Unsupported, "SET target must be a plain field")
	}
	v, err := Eval(ctx, ec, a.Value)
	if err != nil {
		return err
	}
	switch a.Op {
	case "+=":
		cur, _ := obj.Get(name)
		sum, err := value.Add(cur, v)
		if err != nil {
			return err
		}
		obj.Set(name, sum)
	case "-=":
		cur, _ := obj.Get(name)
		diff, err := value.Sub(cur, v)
		if err != nil {
			return err
		}
		obj.Set(name, diff)
	default:
		obj.Set(name, v)
	}
	return nil
}

func topLevelField(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case ast.Ident:
		return e.Name, true
	case ast.Idiom:
		if base, ok := e.Base.(ast.Ident); ok {
			return base.Name, true
		}
	}
	return "", false
}

// outputFor renders a write statement's per-record return value for the
// given Output clause (spec.md §4.2's RETURN modifiers); nil means the
// statement's default (AFTER).
func outputFor(output *ast.Output, before, after value.Object) value.Value {
	mode := ast.OutputAfter
	if output != nil {
		mode = *output
	}
	switch mode {
	case ast.OutputNone:
		return value.None{}
	case ast.OutputNull:
		return value.Null{}
	case ast.OutputBefore:
		return before
	case ast.OutputDiff:
		return diffObjects(before, after)
	default:
		return after
	}
}

// diffObjects renders a JSON-patch-like list of changed fields between
// before and after, per spec.md §4.2's DIFF output mode.
func diffObjects(before, after value.Object) value.Value {
	out := make(value.Array, 0)
	seen := map[string]bool{}
	for _, k := range after.SortedKeys() {
		seen[k] = true
		av, _ := after.Get(k)
		if bv, ok := before.Get(k); ok {
			if value.Equal(bv, av) {
				continue
			}
			out = append(out, patchOp("replace", k, av))
		} else {
			out = append(out, patchOp("add", k, av))
		}
	}
	for _, k := range before.SortedKeys() {
		if seen[k] {
			continue
		}
		out = append(out, patchOp("remove", k, nil))
	}
	return out
}

func patchOp(op, path string, v value.Value) value.Object {
	o := value.NewObject()
	o.Set("op", value.Str(op))
	o.Set("path", value.Str("/"+path))
	if v != nil {
		o.Set("value", v)
	}
	return o
}
