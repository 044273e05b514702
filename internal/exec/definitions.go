package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/keys"
	"github.com/coredb/qlcore/internal/kv"
	"github.com/coredb/qlcore/internal/value"
)

// Definitions durably mark a schema object's existence in the KV plane
// (spec.md §4.5/§4.6): a small value.Object encoding the coarse, literal
// facts a definition carries (flags, type name), exercised through the
// same Encode/Decode and keys codec records use. The Catalog above holds
// the authoritative, richer (expression-bearing) version for the life of
// the process. These markers are written and removed alongside it, but no
// code reads them back into a Catalog.

func saveTableDef(ctx context.Context, tx *kv.Transaction, ns, db string, d *ast.DefineTableStmt) error {
	obj := value.NewObject()
	obj.Set("schemafull", value.Bool(d.Schemafull))
	if err := tx.Set(ctx, keys.TB(ns, db, d.Name), value.Encode(obj)); err != nil {
		return err
	}
	tx.Clr(keys.TB(ns, db, d.Name))
	return nil
}

func tableExists(ctx context.Context, tx *kv.Transaction, ns, db, tb string) (bool, error) {
	v, err := tx.Get(ctx, keys.TB(ns, db, tb))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func removeTableDef(ctx context.Context, tx *kv.Transaction, ns, db, tb string) error {
	if err := tx.Del(ctx, keys.TB(ns, db, tb)); err != nil {
		return err
	}
	if _, err := tx.Delr(ctx, keys.RecordPrefix(ns, db, tb), keys.RecordSuffix(ns, db, tb), 0); err != nil {
		return err
	}
	if _, err := tx.Delr(ctx, keys.FieldTablePrefix(ns, db, tb), keys.FieldTableSuffix(ns, db, tb), 0); err != nil {
		return err
	}
	tx.Clr(keys.TB(ns, db, tb))
	return nil
}

func saveFieldDef(ctx context.Context, tx *kv.Transaction, ns, db string, d *ast.DefineFieldStmt) error {
	obj := value.NewObject()
	obj.Set("type", value.Str(d.Type))
	obj.Set("flexible", value.Bool(d.Flexible))
	obj.Set("readonly", value.Bool(d.Readonly))
	if err := tx.Set(ctx, keys.FieldPrefix(ns, db, d.Table, d.Name), value.Encode(obj)); err != nil {
		return err
	}
	tx.Clr(keys.FieldPrefix(ns, db, d.Table, d.Name))
	return nil
}

func removeFieldDef(ctx context.Context, tx *kv.Transaction, ns, db, tb, name string) error {
	if err := tx.Del(ctx, keys.FieldPrefix(ns, db, tb, name)); err != nil {
		return err
	}
	tx.Clr(keys.FieldPrefix(ns, db, tb, name))
	return nil
}

func saveIndexDef(ctx context.Context, tx *kv.Transaction, ns, db string, d *ast.DefineIndexStmt) error {
	obj := value.NewObject()
	fields := make(value.Array, 0, len(d.Fields))
	for _, f := range d.Fields {
		fields = append(fields, value.Str(f))
	}
	obj.Set("fields", fields)
	obj.Set("unique", value.Bool(d.Unique))
	if err := tx.Set(ctx, keys.IndexPrefix(ns, db, d.Table, d.Name), value.Encode(obj)); err != nil {
		return err
	}
	tx.Clr(keys.IndexPrefix(ns, db, d.Table, d.Name))
	return nil
}

func removeIndexDef(ctx context.Context, tx *kv.Transaction, ns, db, tb, name string) error {
	if err := tx.Del(ctx, keys.IndexPrefix(ns, db, tb, name)); err != nil {
		return err
	}
	if _, err := tx.Delr(ctx, keys.IndexDataPrefix(ns, db, tb, name), keys.IndexDataSuffix(ns, db, tb, name), 0); err != nil {
		return err
	}
	tx.Clr(keys.IndexPrefix(ns, db, tb, name))
	return nil
}

func saveUserDef(ctx context.Context, tx *kv.Transaction, ns, db string, d *ast.DefineUserStmt) error {
	obj := value.NewObject()
	obj.Set("base", value.Int(int64(d.Base)))
	roles := make(value.Array, 0, len(d.Roles))
	for _, r := range d.Roles {
		roles = append(roles, value.Str(r))
	}
	obj.Set("roles", roles)
	if err := tx.Set(ctx, keys.User(ns, db, d.Name), value.Encode(obj)); err != nil {
		return err
	}
	tx.Clr(keys.User(ns, db, d.Name))
	return nil
}

func removeUserDef(ctx context.Context, tx *kv.Transaction, ns, db, name string) error {
	if err := tx.Del(ctx, keys.User(ns, db, name)); err != nil {
		return err
	}
	tx.Clr(keys.User(ns, db, name))
	return nil
}

// requireDefined turns a failed Catalog lookup (ok == false) into a
// NotFound error, used by REMOVE handlers so removing something never
// defined reports cleanly instead of silently succeeding.
func requireDefined(ok bool, kind, name string) error {
	if !ok {
		return errs.New(errs.NotFound, "no such "+kind, errs.F("name", name))
	}
	return nil
}
