package exec

import (
	"context"
	"strings"
	"time"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// funcHandler evaluates one already-argument-evaluated function call,
// mirroring the teacher's funcHandler(env, *FuncCall, row) shape
// generalized from a SQL row-scoped evaluator to this language's
// EvalContext-scoped one.
type funcHandler func(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error)

var builtinFunctions = map[string]funcHandler{
	"count":          fnCount,
	"array::len":     fnArrayLen,
	"array::distinct": fnArrayDistinct,
	"array::sort":    fnArraySort,
	"array::flatten": fnArrayFlatten,
	"string::len":    fnStringLen,
	"string::upper":  fnStringUpper,
	"string::lower":  fnStringLower,
	"string::trim":   fnStringTrim,
	"string::concat": fnStringConcat,
	"string::split":  fnStringSplit,
	"math::abs":      fnMathAbs,
	"math::ceil":     fnMathCeil,
	"math::floor":    fnMathFloor,
	"math::round":    fnMathRound,
	"math::max":      fnMathMax,
	"math::min":      fnMathMin,
	"type::int":      fnTypeInt,
	"type::float":    fnTypeFloat,
	"type::string":   fnTypeString,
	"type::bool":     fnTypeBool,
	"time::now":      fnTimeNow,
	"is::none":       fnIsNone,
	"is::null":       fnIsNull,
}

// evalFuncCall evaluates every argument, then dispatches by lower-cased
// name to the builtin registry (spec.md §9's "name-indexed function
// registry" design note).
func evalFuncCall(ctx context.Context, ec EvalContext, e ast.FuncCall) (value.Value, error) {
	args := make([]value.Value, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := Eval(ctx, ec, a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	handler, ok := builtinFunctions[strings.ToLower(e.Name)]
	if !ok {
		return nil, errs.New(errs.InvalidFunction, "unknown function", errs.F("name", e.Name))
	}
	return handler(ctx, ec, args)
}

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.None{}
}

func fnCount(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		if ec.Scope != nil {
			if grp, ok := ec.Scope.Get("__group__"); ok {
				if members, ok := grp.(value.Array); ok {
					return value.Int(int64(len(members))), nil
				}
			}
		}
		if isNoneOrNull(ec.Current) {
			return value.Int(0), nil
		}
		return value.Int(1), nil
	}
	arr, ok := arg(args, 0).(value.Array)
	if !ok {
		return value.Int(0), nil
	}
	n := 0
	for _, v := range arr {
		if truthy(v) {
			n++
		}
	}
	return value.Int(int64(n)), nil
}

func fnArrayLen(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	arr, ok := arg(args, 0).(value.Array)
	if !ok {
		return nil, errs.New(errs.Conversion, "array::len expects an array")
	}
	return value.Int(int64(len(arr))), nil
}

func fnArrayDistinct(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	arr, ok := arg(args, 0).(value.Array)
	if !ok {
		return nil, errs.New(errs.Conversion, "array::distinct expects an array")
	}
	out := make(value.Array, 0, len(arr))
	for _, v := range arr {
		if !arrayContains(out, v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func fnArraySort(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	arr, ok := arg(args, 0).(value.Array)
	if !ok {
		return nil, errs.New(errs.Conversion, "array::sort expects an array")
	}
	out := make(value.Array, len(arr))
	copy(out, arr)
	sortValues(out)
	return out, nil
}

func fnArrayFlatten(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	arr, ok := arg(args, 0).(value.Array)
	if !ok {
		return nil, errs.New(errs.Conversion, "array::flatten expects an array")
	}
	out := make(value.Array, 0, len(arr))
	for _, v := range arr {
		if inner, ok := v.(value.Array); ok {
			out = append(out, inner...)
		} else {
			out = append(out, v)
		}
	}
	return out, nil
}

func sortValues(arr value.Array) {
	for i := 1; i < len(arr); i++ {
		for j := i; j > 0 && value.Compare(arr[j-1], arr[j]) > 0; j-- {
			arr[j-1], arr[j] = arr[j], arr[j-1]
		}
	}
}

func fnStringLen(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	s, err := value.AsString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return value.Int(int64(len(s))), nil
}

func fnStringUpper(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	s, err := value.AsString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return value.Str(strings.ToUpper(s)), nil
}

func fnStringLower(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	s, err := value.AsString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return value.Str(strings.ToLower(s)), nil
}

func fnStringTrim(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	s, err := value.AsString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return value.Str(strings.TrimSpace(s)), nil
}

func fnStringConcat(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		s, err := value.AsString(a)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return value.Str(sb.String()), nil
}

func fnStringSplit(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	s, err := value.AsString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	sep, err := value.AsString(arg(args, 1))
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s, sep)
	out := make(value.Array, 0, len(parts))
	for _, p := range parts {
		out = append(out, value.Str(p))
	}
	return out, nil
}

func fnMathAbs(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	f, err := value.AsFloat(arg(args, 0))
	if err != nil {
		return nil, err
	}
	if f < 0 {
		f = -f
	}
	return value.Float(f), nil
}

func fnMathCeil(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	f, err := value.AsFloat(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return value.Int(int64(f) + boolToInt(f > float64(int64(f)))), nil
}

func fnMathFloor(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	f, err := value.AsFloat(arg(args, 0))
	if err != nil {
		return nil, err
	}
	n := int64(f)
	if f < float64(n) {
		n--
	}
	return value.Int(n), nil
}

func fnMathRound(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	f, err := value.AsFloat(arg(args, 0))
	if err != nil {
		return nil, err
	}
	if f >= 0 {
		return value.Int(int64(f + 0.5)), nil
	}
	return value.Int(-int64(-f + 0.5)), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func fnMathMax(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.None{}, nil
	}
	best := args[0]
	for _, v := range args[1:] {
		if value.Compare(v, best) > 0 {
			best = v
		}
	}
	return best, nil
}

func fnMathMin(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.None{}, nil
	}
	best := args[0]
	for _, v := range args[1:] {
		if value.Compare(v, best) < 0 {
			best = v
		}
	}
	return best, nil
}

func fnTypeInt(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	n, err := value.AsInt(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return value.Int(n), nil
}

func fnTypeFloat(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	f, err := value.AsFloat(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return value.Float(f), nil
}

func fnTypeString(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	s, err := value.AsString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return value.Str(s), nil
}

func fnTypeBool(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	return value.Bool(value.AsBool(arg(args, 0))), nil
}

func fnTimeNow(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	return value.Datetime(time.Now().UTC()), nil
}

func fnIsNone(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	_, ok := arg(args, 0).(value.None)
	return value.Bool(ok), nil
}

func fnIsNull(ctx context.Context, ec EvalContext, args []value.Value) (value.Value, error) {
	_, ok := arg(args, 0).(value.Null)
	return value.Bool(ok), nil
}
