package exec

import (
	"context"

	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/keys"
	"github.com/coredb/qlcore/internal/kv"
	"github.com/coredb/qlcore/internal/value"
)

// recordKeyBytes canonically encodes a record id's key component for use
// as the variable-length tail of a keys.Record key. Using the same
// revisioned wire encoding the value package already defines keeps every
// key category addressed through one codec instead of a second bespoke
// one for record ids specifically.
func recordKeyBytes(k value.RecordIDKey) []byte {
	return value.Encode(k)
}

func recordKey(ns, db, tb string, k value.RecordIDKey) []byte {
	return keys.Record(ns, db, tb, recordKeyBytes(k))
}

// loadRecord reads a record's body, decoding it back to an Object. ok is
// false when no record exists at rid.
func loadRecord(ctx context.Context, tx *kv.Transaction, ns, db string, rid value.RecordID) (value.Object, bool, error) {
	raw, err := tx.Get(ctx, recordKey(ns, db, rid.Table, rid.Key))
	if err != nil {
		return value.Object{}, false, err
	}
	if raw == nil {
		return value.Object{}, false, nil
	}
	v, err := value.Decode(raw)
	if err != nil {
		return value.Object{}, false, err
	}
	obj, ok := v.(value.Object)
	if !ok {
		return value.Object{}, false, errs.New(errs.Internal, "record body is not an object")
	}
	return obj, true, nil
}

// createRecord writes a new record, failing with errs.AlreadyExists if rid
// is already occupied.
func createRecord(ctx context.Context, tx *kv.Transaction, ns, db string, rid value.RecordID, obj value.Object) error {
	return tx.Put(ctx, recordKey(ns, db, rid.Table, rid.Key), value.Encode(obj))
}

// setRecord upserts a record unconditionally.
func setRecord(ctx context.Context, tx *kv.Transaction, ns, db string, rid value.RecordID, obj value.Object) error {
	return tx.Set(ctx, recordKey(ns, db, rid.Table, rid.Key), value.Encode(obj))
}

func deleteRecord(ctx context.Context, tx *kv.Transaction, ns, db string, rid value.RecordID) error {
	return tx.Del(ctx, recordKey(ns, db, rid.Table, rid.Key))
}

// scannedRecord pairs a record id with its decoded body, the unit
// scanTable and the iterator pipeline (select.go) work over.
type scannedRecord struct {
	ID   value.RecordID
	Body value.Object
}

// scanTable returns every record currently stored under table tb.
func scanTable(ctx context.Context, tx *kv.Transaction, ns, db, tb string) ([]scannedRecord, error) {
	lo := keys.RecordPrefix(ns, db, tb)
	hi := keys.RecordSuffix(ns, db, tb)
	pairs, err := tx.Getr(ctx, lo, hi, 0)
	if err != nil {
		return nil, err
	}
	out := make([]scannedRecord, 0, len(pairs))
	for _, p := range pairs {
		idKeyBytes := p.Key[len(lo):]
		idKeyVal, err := value.Decode(idKeyBytes)
		if err != nil {
			return nil, err
		}
		idKey, ok := idKeyVal.(value.RecordIDKey)
		if !ok {
			return nil, errs.New(errs.Internal, "decoded record key is not a valid record id key")
		}
		bodyVal, err := value.Decode(p.Value)
		if err != nil {
			return nil, err
		}
		body, ok := bodyVal.(value.Object)
		if !ok {
			return nil, errs.New(errs.Internal, "record body is not an object")
		}
		out = append(out, scannedRecord{ID: value.RecordID{Table: tb, Key: idKey}, Body: body})
	}
	return out, nil
}

// coerceToType converts v to the schema type name t (spec.md §4.4's
// coercion rules, as applied at write time by a DEFINE FIELD TYPE
// clause). Unknown or structural type names (array/object/record/any/
// uuid/bytes) pass the value through unchanged: those are validated by
// shape, not by a scalar coercion function.
func coerceToType(t string, v value.Value) (value.Value, error) {
	switch t {
	case "int":
		n, err := value.AsInt(v)
		if err != nil {
			return nil, err
		}
		return value.Int(n), nil
	case "float":
		f, err := value.AsFloat(v)
		if err != nil {
			return nil, err
		}
		return value.Float(f), nil
	case "decimal", "number":
		d, err := value.AsDecimal(v)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "string":
		s, err := value.AsString(v)
		if err != nil {
			return nil, err
		}
		return value.Str(s), nil
	case "bool":
		return value.Bool(value.AsBool(v)), nil
	case "datetime":
		return value.AsDatetime(v)
	case "duration":
		return value.AsDuration(v)
	default:
		return v, nil
	}
}

// applyFieldTypes coerces every defined field on obj to its schema type,
// per spec.md §4.4. Fields with no DEFINE FIELD entry pass through
// unchanged, matching SCHEMALESS semantics; a SCHEMAFULL table additionally
// rejects fields with no matching definition (checked by the caller before
// calling this, since that decision needs the table definition, not just
// the field list).
func applyFieldTypes(cat *Catalog, ns, db, tb string, obj value.Object) (value.Object, error) {
	out := value.NewObject()
	for _, k := range obj.SortedKeys() {
		v, _ := obj.Get(k)
		if def, ok := cat.Field(ns, db, tb, k); ok && def.Type != "" {
			coerced, err := coerceToType(def.Type, v)
			if err != nil {
				return value.Object{}, errs.Wrap(errs.Conversion, err, "coercing field", errs.F("field", k))
			}
			v = coerced
		}
		out.Set(k, v)
	}
	return out, nil
}
