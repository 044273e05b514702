package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// EvalContext is what Eval needs beyond the expression itself: the variable
// scope, the executor (for function dispatch, subqueries, and record
// dereferencing), and the "current" record a bare Ident resolves a field
// against when no scope variable shadows it (WHERE/SET clauses reference
// fields this way, e.g. "age > 18").
type EvalContext struct {
	Scope   *Scope
	Exec    *Executor
	Current value.Value // value.None{} outside of a per-record evaluation
}

// Eval walks expr and produces its Value, recursively composing leaves by
// statement semantics (spec.md §4.7 step 3).
func Eval(ctx context.Context, ec EvalContext, expr ast.Expr) (value.Value, error) {
	switch e := expr.(type) {
	case ast.Literal:
		return e.Value, nil
	case ast.Param:
		if v, ok := ec.Scope.Get(e.Name); ok {
			return v, nil
		}
		return value.None{}, nil
	case ast.Ident:
		if v, ok := ec.Scope.Get(e.Name); ok {
			return v, nil
		}
		return fieldOf(ec.Current, e.Name), nil
	case ast.Idiom:
		return evalIdiom(ctx, ec, e)
	case ast.Unary:
		return evalUnary(ctx, ec, e)
	case ast.Binary:
		return evalBinary(ctx, ec, e)
	case ast.FuncCall:
		return evalFuncCall(ctx, ec, e)
	case ast.ArrayLit:
		out := make(value.Array, 0, len(e.Items))
		for _, it := range e.Items {
			v, err := Eval(ctx, ec, it)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case ast.ObjectLit:
		obj := value.NewObject()
		for i, k := range e.Keys {
			v, err := Eval(ctx, ec, e.Values[i])
			if err != nil {
				return nil, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	case ast.RecordIDLit:
		keyVal, err := Eval(ctx, ec, e.Key)
		if err != nil {
			return nil, err
		}
		keyComp, ok := keyVal.(value.RecordIDKey)
		if !ok {
			return nil, errs.New(errs.Conversion, "record id key must be string, integer, array, or object")
		}
		return value.RecordID{Table: e.Table, Key: keyComp}, nil
	case ast.Subquery:
		rows, err := ec.Exec.runSelect(ctx, e.Select, ec.Scope)
		if err != nil {
			return nil, err
		}
		return value.Array(rows), nil
	default:
		return nil, errs.New(errs.Internal, "unhandled expression node")
	}
}

func fieldOf(base value.Value, name string) value.Value {
	obj, ok := base.(value.Object)
	if !ok {
		return value.None{}
	}
	if v, ok := obj.Get(name); ok {
		return v
	}
	return value.None{}
}

func evalUnary(ctx context.Context, ec EvalContext, e ast.Unary) (value.Value, error) {
	v, err := Eval(ctx, ec, e.Expr)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "-":
		zero := value.Int(0)
		return value.Sub(zero, v)
	case "+":
		return v, nil
	case "!", "NOT":
		return value.Bool(!value.AsBool(v)), nil
	default:
		return nil, errs.New(errs.Unsupported, "unknown unary operator", errs.F("op", e.Op))
	}
}

func evalBinary(ctx context.Context, ec EvalContext, e ast.Binary) (value.Value, error) {
	// Short-circuiting boolean semantics (spec.md §4.7 step 4: Filter):
	// None/Null in a predicate evaluates to false.
	switch e.Op {
	case "&&", "AND":
		l, err := Eval(ctx, ec, e.Left)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return value.Bool(false), nil
		}
		r, err := Eval(ctx, ec, e.Right)
		if err != nil {
			return nil, err
		}
		return value.Bool(truthy(r)), nil
	case "||", "OR":
		l, err := Eval(ctx, ec, e.Left)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return value.Bool(true), nil
		}
		r, err := Eval(ctx, ec, e.Right)
		if err != nil {
			return nil, err
		}
		return value.Bool(truthy(r)), nil
	case "??":
		l, err := Eval(ctx, ec, e.Left)
		if err != nil {
			return nil, err
		}
		if isNoneOrNull(l) {
			return Eval(ctx, ec, e.Right)
		}
		return l, nil
	}

	l, err := Eval(ctx, ec, e.Left)
	if err != nil {
		return nil, err
	}
	r, err := Eval(ctx, ec, e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "+":
		return value.Add(l, r)
	case "-":
		return value.Sub(l, r)
	case "*", "×":
		return value.Mul(l, r)
	case "/", "÷":
		return value.Div(l, r)
	case "**":
		return value.Pow(l, r)
	case "%":
		return value.Mod(l, r)
	case "=", "==":
		return value.Bool(value.Equal(l, r)), nil
	case "!=":
		return value.Bool(!value.Equal(l, r)), nil
	case "<":
		return value.Bool(value.Compare(l, r) < 0), nil
	case "<=":
		return value.Bool(value.Compare(l, r) <= 0), nil
	case ">":
		return value.Bool(value.Compare(l, r) > 0), nil
	case ">=":
		return value.Bool(value.Compare(l, r) >= 0), nil
	case "∈", "IN":
		return value.Bool(arrayContains(r, l)), nil
	case "∉":
		return value.Bool(!arrayContains(r, l)), nil
	case "∋", "CONTAINS":
		return value.Bool(arrayContains(l, r)), nil
	case "∌", "CONTAINSNOT":
		return value.Bool(!arrayContains(l, r)), nil
	case "CONTAINSALL":
		return value.Bool(containsAll(l, r)), nil
	case "CONTAINSANY":
		return value.Bool(containsAny(l, r)), nil
	case "CONTAINSNONE":
		return value.Bool(!containsAny(l, r)), nil
	case "⊇", "⊃", "⊅", "⊆", "⊂", "⊄":
		return value.Bool(subsetOp(e.Op, l, r)), nil
	default:
		return nil, errs.New(errs.Unsupported, "unknown binary operator", errs.F("op", e.Op))
	}
}

func truthy(v value.Value) bool {
	if isNoneOrNull(v) {
		return false
	}
	return value.AsBool(v)
}

func isNoneOrNull(v value.Value) bool {
	switch v.(type) {
	case value.None, value.Null:
		return true
	default:
		return false
	}
}

func arrayContains(haystack, needle value.Value) bool {
	arr, ok := haystack.(value.Array)
	if !ok {
		return false
	}
	for _, v := range arr {
		if value.Equal(v, needle) {
			return true
		}
	}
	return false
}

func containsAll(haystack, needles value.Value) bool {
	list, ok := needles.(value.Array)
	if !ok {
		return arrayContains(haystack, needles)
	}
	for _, n := range list {
		if !arrayContains(haystack, n) {
			return false
		}
	}
	return true
}

func containsAny(haystack, needles value.Value) bool {
	list, ok := needles.(value.Array)
	if !ok {
		return arrayContains(haystack, needles)
	}
	for _, n := range list {
		if arrayContains(haystack, n) {
			return true
		}
	}
	return false
}

func subsetOp(op string, l, r value.Value) bool {
	la, lok := l.(value.Array)
	ra, rok := r.(value.Array)
	if !lok || !rok {
		return false
	}
	isSubset := func(a, b value.Array) bool {
		for _, v := range a {
			if !arrayContains(b, v) {
				return false
			}
		}
		return true
	}
	switch op {
	case "⊆":
		return isSubset(la, ra)
	case "⊂":
		return isSubset(la, ra) && len(la) < len(ra)
	case "⊄":
		return !isSubset(la, ra)
	case "⊇":
		return isSubset(ra, la)
	case "⊃":
		return isSubset(ra, la) && len(ra) < len(la)
	case "⊅":
		return !isSubset(ra, la)
	default:
		return false
	}
}
