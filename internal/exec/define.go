package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
)

// execDefineTable registers a table definition in both the in-process
// Catalog (the authoritative copy, including any VALUE/VIEW/conditional
// PERMISSIONS expression) and the durable coarse marker definitions.go
// maintains (spec.md §4.5).
func (e *Executor) execDefineTable(ctx context.Context, s *ast.DefineTableStmt) error {
	if err := e.opts.IsAllowed(ActionDefine, ResourceTable); err != nil {
		return err
	}
	if err := saveTableDef(ctx, e.tx, e.opts.Namespace, e.opts.Database, s); err != nil {
		return err
	}
	e.cat.PutTable(e.opts.Namespace, e.opts.Database, s)
	return nil
}

func (e *Executor) execDefineField(ctx context.Context, s *ast.DefineFieldStmt) error {
	if err := e.opts.IsAllowed(ActionDefine, ResourceField); err != nil {
		return err
	}
	if _, ok := e.cat.Table(e.opts.Namespace, e.opts.Database, s.Table); !ok {
		// A field on a table with no DEFINE TABLE registers the table
		// implicitly, so INFO FOR TABLE can list the field.
		tb := &ast.DefineTableStmt{Name: s.Table}
		if err := saveTableDef(ctx, e.tx, e.opts.Namespace, e.opts.Database, tb); err != nil {
			return err
		}
		e.cat.PutTable(e.opts.Namespace, e.opts.Database, tb)
	}
	if err := saveFieldDef(ctx, e.tx, e.opts.Namespace, e.opts.Database, s); err != nil {
		return err
	}
	e.cat.PutField(e.opts.Namespace, e.opts.Database, s)
	return nil
}

func (e *Executor) execDefineIndex(ctx context.Context, s *ast.DefineIndexStmt) error {
	if err := e.opts.IsAllowed(ActionDefine, ResourceIndex); err != nil {
		return err
	}
	if err := saveIndexDef(ctx, e.tx, e.opts.Namespace, e.opts.Database, s); err != nil {
		return err
	}
	e.cat.PutIndex(e.opts.Namespace, e.opts.Database, s)
	return nil
}

func (e *Executor) execDefineUser(ctx context.Context, s *ast.DefineUserStmt) error {
	if err := e.opts.IsAllowed(ActionDefine, ResourceUser); err != nil {
		return err
	}
	if err := saveUserDef(ctx, e.tx, e.opts.Namespace, e.opts.Database, s); err != nil {
		return err
	}
	e.cat.PutUser(e.opts.Namespace, e.opts.Database, s)
	return nil
}
