package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// traverseGraph walks one graph-arrow idiom part (spec.md §4.3, GLOSSARY
// "Graph"). RELATE stores an edge record with "in"/"out" RecordID fields
// pointing at its endpoints (relate.go); traversal scans the named edge
// table for rows touching the current record and projects the far
// endpoint, same direction semantics as the arrow that parsed it.
func (e *Executor) traverseGraph(ctx context.Context, ec EvalContext, cur value.Value, g ast.Graph) (value.Value, error) {
	self, ok := recordIDOf(cur)
	if !ok {
		return value.Array{}, nil
	}
	if g.Table == "" {
		return nil, errs.New(errs.Unsupported, "graph traversal requires an explicit edge table")
	}
	edges, err := scanTable(ctx, e.tx, e.opts.Namespace, e.opts.Database, g.Table)
	if err != nil {
		return nil, err
	}
	out := make(value.Array, 0, len(edges))
	for _, edge := range edges {
		target, matched := matchEdge(edge.Body, self, g.Direction)
		if !matched {
			continue
		}
		if g.Cond != nil {
			child := ec
			child.Current = edge.Body
			keep, err := Eval(ctx, child, g.Cond)
			if err != nil {
				return nil, err
			}
			if !truthy(keep) {
				continue
			}
		}
		body, ok, err := e.loadRecord(ctx, target)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, ensureID(scannedRecord{ID: target, Body: body}))
	}
	return out, nil
}

// matchEdge reports whether edge touches self in the direction dir,
// returning the record id at the opposite endpoint.
func matchEdge(edge value.Object, self value.RecordID, dir ast.GraphDirection) (value.RecordID, bool) {
	in, inOK := recordIDFromField(edge, "in")
	out, outOK := recordIDFromField(edge, "out")
	switch dir {
	case ast.GraphOut:
		if inOK && in.Equal(self) && outOK {
			return out, true
		}
	case ast.GraphIn:
		if outOK && out.Equal(self) && inOK {
			return in, true
		}
	case ast.GraphBoth:
		if inOK && in.Equal(self) && outOK {
			return out, true
		}
		if outOK && out.Equal(self) && inOK {
			return in, true
		}
	}
	return value.RecordID{}, false
}

// recordIDOf recovers the record id identifying cur: itself if cur is
// already a RecordID, or its "id" field if cur is a loaded record body
// (the ensureID convention every record-producing path maintains).
func recordIDOf(cur value.Value) (value.RecordID, bool) {
	switch v := cur.(type) {
	case value.RecordID:
		return v, true
	case value.Object:
		return recordIDFromField(v, "id")
	default:
		return value.RecordID{}, false
	}
}

func recordIDFromField(obj value.Object, field string) (value.RecordID, bool) {
	v, ok := obj.Get(field)
	if !ok {
		return value.RecordID{}, false
	}
	rid, ok := v.(value.RecordID)
	return rid, ok
}
