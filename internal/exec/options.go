// Package exec implements the statement executor of spec.md §4.7: per-
// statement permission checks, a transactional compute pipeline
// (projection/filter/group/fetch/output), and Ignore elision. A
// statement's TIMEOUT clause is parsed but not applied: a batch stops only
// when the caller's context is done, checked between statements.
// CREATE/UPDATE/DELETE load, change and write records directly, with no
// explicit record state type.
package exec

import (
	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
)

// ResourceKind names what an authorization check is guarding.
type ResourceKind int

const (
	ResourceTable ResourceKind = iota
	ResourceField
	ResourceIndex
	ResourceUser
	ResourceNamespace
	ResourceDatabase
)

// Action names the operation being authorized.
type Action int

const (
	ActionSelect Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
	ActionDefine
	ActionRemove
)

// Options is the per-request scope the executor carries through a
// statement's compute (GLOSSARY: Base). Each Executor holds its own copy;
// a USE statement overwrites that copy's Namespace/Database for the rest
// of the batch.
type Options struct {
	Namespace string
	Database  string
	Base      ast.Base
	// Root marks a root-level session that bypasses table-level
	// PERMISSIONS clauses entirely (GLOSSARY: Base.Root).
	Root bool
}

// IsAllowed enforces spec.md §4.7 step 1. Root sessions bypass all
// definition-level permission clauses; non-root sessions are checked
// against the table's Permissions via checkTablePermission in
// permissions.go once the relevant definition is loaded (field-level
// PERMISSIONS are stored in the Catalog but not checked), so IsAllowed here
// only gates the coarse namespace/database scoping that doesn't require a
// definition lookup.
func (o Options) IsAllowed(action Action, kind ResourceKind) error {
	if o.Root {
		return nil
	}
	if o.Namespace == "" && kind != ResourceNamespace {
		return errs.New(errs.PermissionDenied, "no namespace selected")
	}
	if o.Database == "" && kind != ResourceNamespace && kind != ResourceDatabase {
		return errs.New(errs.PermissionDenied, "no database selected")
	}
	return nil
}
