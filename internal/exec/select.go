package exec

import (
	"context"
	"math/rand"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// runSelect is the SELECT compute pipeline of spec.md §4.7 step 4: resolve
// targets, filter, permission-check, group, project, order, page, fetch.
// It also backs every Subquery expression, so SELECT statements and
// subqueries share one implementation; write statements build their
// output through outputFor instead.
func (e *Executor) runSelect(ctx context.Context, sel *ast.SelectStmt, scope *Scope) ([]value.Value, error) {
	ns, db := e.opts.Namespace, e.opts.Database
	recs, err := e.resolveWhat(ctx, sel.What, scope)
	if err != nil {
		return nil, err
	}

	filtered := make([]scannedRecord, 0, len(recs))
	for _, r := range recs {
		body := ensureID(r)
		if sel.Cond != nil {
			keep, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: body}, sel.Cond.Expr)
			if err != nil {
				return nil, err
			}
			if !truthy(keep) {
				continue
			}
		}
		if err := checkTablePermission(ctx, e.opts, e.cat, ns, db, r.ID.Table, ActionSelect, body); err != nil {
			continue
		}
		filtered = append(filtered, scannedRecord{ID: r.ID, Body: body})
	}

	var groups [][]scannedRecord
	if sel.Groups != nil {
		groups, err = e.groupRecords(ctx, scope, filtered, sel.Groups.Fields)
		if err != nil {
			return nil, err
		}
	} else {
		groups = make([][]scannedRecord, len(filtered))
		for i, r := range filtered {
			groups[i] = []scannedRecord{r}
		}
	}

	rows := make([]value.Value, 0, len(groups))
	for _, g := range groups {
		rowScope := scope.Child()
		rowScope.Set("__group__", recordsToArray(g))
		ecRow := EvalContext{Scope: rowScope, Exec: e, Current: g[0].Body}
		projected, err := projectFields(ctx, ecRow, sel.Fields)
		if err != nil {
			return nil, err
		}
		rows = append(rows, projected)
	}

	if len(sel.Orders) > 0 {
		if err := e.sortRows(ctx, rows, sel.Orders, scope); err != nil {
			return nil, err
		}
	}

	rows, err = paginate(ctx, e, scope, rows, sel.Start, sel.Limit)
	if err != nil {
		return nil, err
	}

	if sel.Fetchs != nil {
		for i, row := range rows {
			fetched, err := e.applyFetch(ctx, scope, row, sel.Fetchs.Idioms)
			if err != nil {
				return nil, err
			}
			rows[i] = fetched
		}
	}

	return rows, nil
}

// resolveWhat expands a What clause into the concrete records it names:
// every row of a plain table name, or the single record named by an
// explicit record id expression.
func (e *Executor) resolveWhat(ctx context.Context, w ast.What, scope *Scope) ([]scannedRecord, error) {
	ns, db := e.opts.Namespace, e.opts.Database
	var out []scannedRecord
	for _, tb := range w.Tables {
		recs, err := scanTable(ctx, e.tx, ns, db, tb)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	for _, expr := range w.RecordIDs {
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, expr)
		if err != nil {
			return nil, err
		}
		rid, ok := v.(value.RecordID)
		if !ok {
			return nil, errs.New(errs.Conversion, "FROM target is not a record id")
		}
		body, ok, err := e.loadRecord(ctx, rid)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, scannedRecord{ID: rid, Body: body})
	}
	return out, nil
}

// ensureID guarantees a scanned record's body carries its own id, the
// convention createRecord/setRecord establish at write time so idioms and
// graph traversal can always resolve "the record this body came from"
// without a side-channel.
func ensureID(r scannedRecord) value.Object {
	if _, ok := r.Body.Get("id"); ok {
		return r.Body
	}
	out := value.NewObject()
	for _, k := range r.Body.SortedKeys() {
		v, _ := r.Body.Get(k)
		out.Set(k, v)
	}
	out.Set("id", r.ID)
	return out
}

func recordsToArray(recs []scannedRecord) value.Array {
	out := make(value.Array, len(recs))
	for i, r := range recs {
		out[i] = r.Body
	}
	return out
}

func (e *Executor) groupRecords(ctx context.Context, scope *Scope, recs []scannedRecord, fields []ast.Expr) ([][]scannedRecord, error) {
	type bucket struct {
		key  value.Array
		recs []scannedRecord
	}
	var buckets []*bucket
	for _, r := range recs {
		key := make(value.Array, len(fields))
		for i, f := range fields {
			v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: r.Body}, f)
			if err != nil {
				return nil, err
			}
			key[i] = v
		}
		var found *bucket
		for _, b := range buckets {
			if value.Equal(b.key, key) {
				found = b
				break
			}
		}
		if found == nil {
			found = &bucket{key: key}
			buckets = append(buckets, found)
		}
		found.recs = append(found.recs, r)
	}
	out := make([][]scannedRecord, len(buckets))
	for i, b := range buckets {
		out[i] = b.recs
	}
	return out, nil
}

// projectFields builds one output row from a record's fields, per spec.md
// §4.3's SelectField list: a lone unaliased "*" returns the record
// unchanged, otherwise each field (or merged wildcard) is written under its
// alias or derived name.
func projectFields(ctx context.Context, ec EvalContext, fields []ast.SelectField) (value.Value, error) {
	if len(fields) == 1 && fields[0].Star && fields[0].Alias == "" {
		return ec.Current, nil
	}
	out := value.NewObject()
	for _, f := range fields {
		if f.Star {
			if obj, ok := ec.Current.(value.Object); ok {
				for _, k := range obj.SortedKeys() {
					v, _ := obj.Get(k)
					out.Set(k, v)
				}
			}
			continue
		}
		v, err := Eval(ctx, ec, f.Expr)
		if err != nil {
			return nil, err
		}
		name := f.Alias
		if name == "" {
			name = fieldExprName(f.Expr)
		}
		out.Set(name, v)
	}
	return out, nil
}

// fieldExprName derives the default projection column name for an
// unaliased field, following the teacher's convention of naming a
// projected column after its source identifier when no AS clause is
// given.
func fieldExprName(expr ast.Expr) string {
	switch e := expr.(type) {
	case ast.Ident:
		return e.Name
	case ast.Idiom:
		if base, ok := e.Base.(ast.Ident); ok {
			return base.Name
		}
		if len(e.Parts) > 0 {
			if f, ok := e.Parts[len(e.Parts)-1].(ast.Field); ok {
				return f.Name
			}
		}
		return "field"
	case ast.FuncCall:
		return e.Name
	default:
		return "field"
	}
}

func (e *Executor) sortRows(ctx context.Context, rows []value.Value, orders []ast.Order, scope *Scope) error {
	var sortErr error
	less := func(a, b value.Value) bool {
		for _, o := range orders {
			if o.Rand {
				continue
			}
			av, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: a}, o.Field)
			if err != nil {
				sortErr = err
				return false
			}
			bv, err := Eval(ctx, EvalContext{Scope: scope, Exec: e, Current: b}, o.Field)
			if err != nil {
				sortErr = err
				return false
			}
			c := value.Compare(av, bv)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	}
	for _, o := range orders {
		if o.Rand {
			rand.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
			return nil
		}
	}
	// Stable insertion sort: result sets are typically small, and this
	// keeps the comparator's early-exit-on-error simple to thread through.
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && less(rows[j], rows[j-1]); j-- {
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
	return sortErr
}

func paginate(ctx context.Context, e *Executor, scope *Scope, rows []value.Value, start, limit ast.Expr) ([]value.Value, error) {
	s := 0
	if start != nil {
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, start)
		if err != nil {
			return nil, err
		}
		n, err := value.AsInt(v)
		if err != nil {
			return nil, err
		}
		s = int(n)
	}
	if s > len(rows) {
		s = len(rows)
	}
	rows = rows[s:]
	if limit != nil {
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, limit)
		if err != nil {
			return nil, err
		}
		n, err := value.AsInt(v)
		if err != nil {
			return nil, err
		}
		if int(n) < len(rows) {
			rows = rows[:n]
		}
	}
	return rows, nil
}

// applyFetch dereferences each named idiom on row in place, replacing a
// RecordID leaf with the loaded record body (spec.md §4.3's FETCH clause).
func (e *Executor) applyFetch(ctx context.Context, scope *Scope, row value.Value, idioms []ast.Expr) (value.Value, error) {
	obj, ok := row.(value.Object)
	if !ok {
		return row, nil
	}
	out := value.NewObject()
	for _, k := range obj.SortedKeys() {
		v, _ := obj.Get(k)
		out.Set(k, v)
	}
	for _, idiomExpr := range idioms {
		name := fieldExprName(idiomExpr)
		v, ok := out.Get(name)
		if !ok {
			continue
		}
		deref, err := e.fetchValue(ctx, v)
		if err != nil {
			return nil, err
		}
		out.Set(name, deref)
	}
	return out, nil
}

func (e *Executor) fetchValue(ctx context.Context, v value.Value) (value.Value, error) {
	switch t := v.(type) {
	case value.RecordID:
		body, ok, err := e.loadRecord(ctx, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			return value.None{}, nil
		}
		return ensureID(scannedRecord{ID: t, Body: body}), nil
	case value.Array:
		out := make(value.Array, len(t))
		for i, item := range t {
			d, err := e.fetchValue(ctx, item)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	default:
		return v, nil
	}
}
