package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// checkTablePermission enforces a table's PERMISSIONS clause for action
// against candidate (the record being selected/created/updated/deleted),
// completing the authorization IsAllowed defers to this definition-aware
// check (spec.md §4.7 step 1; options.go's doc comment). Root sessions and
// tables with no DEFINE TABLE entry (plain SCHEMALESS use) are allowed
// unconditionally.
func checkTablePermission(ctx context.Context, opts Options, cat *Catalog, ns, db, tb string, action Action, candidate value.Value) error {
	if opts.Root {
		return nil
	}
	def, ok := cat.Table(ns, db, tb)
	if !ok || def.Permissions == nil {
		return nil
	}
	perms := def.Permissions
	if perms.None {
		return errs.New(errs.PermissionDenied, "table denies all access", errs.F("table", tb))
	}
	if perms.Full {
		return nil
	}
	perm := permissionFor(perms, action)
	if perm == nil {
		return errs.New(errs.PermissionDenied, "action not permitted on table",
			errs.F("table", tb), errs.F("action", actionName(action)))
	}
	if perm.Cond == nil {
		return nil
	}
	ec := EvalContext{Scope: NewScope(), Current: candidate}
	result, err := Eval(ctx, ec, perm.Cond)
	if err != nil {
		return err
	}
	if !truthy(result) {
		return errs.New(errs.PermissionDenied, "permission condition not satisfied", errs.F("table", tb))
	}
	return nil
}

func permissionFor(p *ast.Permissions, action Action) *ast.Permission {
	switch action {
	case ActionSelect:
		return p.Select
	case ActionCreate:
		return p.Create
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	default:
		return nil
	}
}

func actionName(a Action) string {
	switch a {
	case ActionSelect:
		return "select"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionDefine:
		return "define"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}
