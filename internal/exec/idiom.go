package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// evalIdiom walks a path expression over a base value (spec.md §4.3, GLOSSARY
// "Idiom"): dot-path, indexing, wildcard, destructuring, and graph arrows.
func evalIdiom(ctx context.Context, ec EvalContext, idiom ast.Idiom) (value.Value, error) {
	cur, err := Eval(ctx, ec, idiom.Base)
	if err != nil {
		return nil, err
	}
	for _, part := range idiom.Parts {
		next, err := applyIdiomPart(ctx, ec, cur, part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func applyIdiomPart(ctx context.Context, ec EvalContext, cur value.Value, part ast.IdiomPart) (value.Value, error) {
	switch p := part.(type) {
	case ast.Field:
		switch v := cur.(type) {
		case value.Object:
			if got, ok := v.Get(p.Name); ok {
				return got, nil
			}
			return value.None{}, nil
		case value.RecordID:
			rec, ok, err := ec.Exec.loadRecord(ctx, v)
			if err != nil {
				return nil, err
			}
			if !ok {
				return value.None{}, nil
			}
			if got, ok := rec.Get(p.Name); ok {
				return got, nil
			}
			return value.None{}, nil
		default:
			return value.None{}, nil
		}
	case ast.Index:
		keyVal, err := Eval(ctx, ec, p.Key)
		if err != nil {
			return nil, err
		}
		arr, ok := cur.(value.Array)
		if !ok {
			return value.None{}, nil
		}
		idx, ok := indexFromValue(keyVal, len(arr))
		if !ok {
			return value.None{}, nil
		}
		return arr[idx], nil
	case ast.All:
		return cur, nil
	case ast.Where:
		arr, ok := cur.(value.Array)
		if !ok {
			return value.Array{}, nil
		}
		out := make(value.Array, 0, len(arr))
		for _, item := range arr {
			child := ec
			child.Current = item
			keep, err := Eval(ctx, child, p.Cond)
			if err != nil {
				return nil, err
			}
			if truthy(keep) {
				out = append(out, item)
			}
		}
		return out, nil
	case ast.Destructure:
		obj, ok := cur.(value.Object)
		if !ok {
			return value.None{}, nil
		}
		out := value.NewObject()
		for _, f := range p.Fields {
			if v, ok := obj.Get(f); ok {
				out.Set(f, v)
			}
		}
		return out, nil
	case ast.Graph:
		return ec.Exec.traverseGraph(ctx, ec, cur, p)
	default:
		return nil, errs.New(errs.Internal, "unhandled idiom part")
	}
}

func indexFromValue(v value.Value, length int) (int, bool) {
	n, ok := v.(value.Int)
	if !ok {
		f, ferr := value.AsInt(v)
		if ferr != nil {
			return 0, false
		}
		n = value.Int(f)
	}
	i := int(n)
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, false
	}
	return i, true
}
