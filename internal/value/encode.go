package value

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coredb/qlcore/internal/errs"
)

// wireVersion is the outer revision tag every canonical encoding starts
// with (spec.md §4.4, §6). Bumping it is a breaking format change.
const wireVersion uint16 = 1

// durationInnerVersion is the nested version inside a Duration's frame.
// spec.md §9 calls this "unused" but requires decoders to keep reading and
// verifying it equals 1 without assuming future values are rejected.
const durationInnerVersion uint32 = 1

// variant discriminants, each a uint32 per spec.md's glossary entry for
// "Revisioned encoding".
const (
	vNone uint32 = iota
	vNull
	vBool
	vInt
	vFloat
	vDecimal
	vString
	vDuration
	vDatetime
	vUuid
	vArray
	vObject
	vBytes
	vRecordID
)

// Encode produces the canonical revisioned wire form of v.
func Encode(v Value) []byte {
	buf := new(bytes.Buffer)
	writeU16(buf, wireVersion)
	encodeInto(buf, v)
	return buf.Bytes()
}

func encodeInto(buf *bytes.Buffer, v Value) {
	switch t := v.(type) {
	case None:
		writeU32(buf, vNone)
	case Null:
		writeU32(buf, vNull)
	case Bool:
		writeU32(buf, vBool)
		if t {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case Int:
		writeU32(buf, vInt)
		writeU64(buf, uint64(t))
	case Float:
		writeU32(buf, vFloat)
		writeU64(buf, math.Float64bits(float64(t)))
	case Decimal:
		writeU32(buf, vDecimal)
		b, _ := t.Decimal.MarshalBinary()
		writeBytesWithLen(buf, b)
	case Str:
		writeU32(buf, vString)
		writeBytesWithLen(buf, []byte(t))
	case Duration:
		writeU32(buf, vDuration)
		writeU32(buf, durationInnerVersion)
		writeU64(buf, uint64(time.Duration(t).Nanoseconds()))
	case Datetime:
		writeU32(buf, vDatetime)
		b, _ := time.Time(t).UTC().MarshalBinary()
		writeBytesWithLen(buf, b)
	case Uuid:
		writeU32(buf, vUuid)
		b := uuid.UUID(t)
		buf.Write(b[:])
	case Array:
		writeU32(buf, vArray)
		writeU32(buf, uint32(len(t)))
		for _, el := range t {
			encodeInto(buf, el)
		}
	case Object:
		writeU32(buf, vObject)
		keys := t.SortedKeys()
		writeU32(buf, uint32(len(keys)))
		for _, k := range keys {
			writeBytesWithLen(buf, []byte(k))
			val, _ := t.Get(k)
			encodeInto(buf, val)
		}
	case Bytes:
		writeU32(buf, vBytes)
		writeBytesWithLen(buf, []byte(t))
	case RecordID:
		writeU32(buf, vRecordID)
		writeBytesWithLen(buf, []byte(t.Table))
		encodeInto(buf, t.Key)
	}
}

// Decode parses the canonical revisioned wire form produced by Encode.
func Decode(b []byte) (Value, error) {
	r := bytes.NewReader(b)
	ver, err := readU16(r)
	if err != nil {
		return nil, errs.Wrap(errs.Deserialization, err, "truncated value header")
	}
	if ver != wireVersion {
		return nil, errs.New(errs.DecodeRevision, "unknown value encoding version",
			errs.F("version", ver))
	}
	v, err := decodeFrom(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errs.New(errs.Deserialization, "trailing bytes after value")
	}
	return v, nil
}

func decodeFrom(r *bytes.Reader) (Value, error) {
	disc, err := readU32(r)
	if err != nil {
		return nil, errs.Wrap(errs.Deserialization, err, "truncated value discriminant")
	}
	switch disc {
	case vNone:
		return None{}, nil
	case vNull:
		return Null{}, nil
	case vBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated bool")
		}
		return Bool(b != 0), nil
	case vInt:
		n, err := readU64(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated int")
		}
		return Int(int64(n)), nil
	case vFloat:
		n, err := readU64(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated float")
		}
		return Float(math.Float64frombits(n)), nil
	case vDecimal:
		raw, err := readBytesWithLen(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated decimal")
		}
		var d decimal.Decimal
		if err := d.UnmarshalBinary(raw); err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "malformed decimal")
		}
		return Decimal{d}, nil
	case vString:
		raw, err := readBytesWithLen(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated string")
		}
		return Str(raw), nil
	case vDuration:
		inner, err := readU32(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated duration version")
		}
		if inner != durationInnerVersion {
			// Preserved open question (spec.md §9): keep reading/verifying
			// but do not reject unknown future values.
			_ = inner
		}
		ns, err := readU64(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated duration")
		}
		return Duration(time.Duration(int64(ns))), nil
	case vDatetime:
		raw, err := readBytesWithLen(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated datetime")
		}
		var t time.Time
		if err := t.UnmarshalBinary(raw); err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "malformed datetime")
		}
		return Datetime(t), nil
	case vUuid:
		var u uuid.UUID
		if _, err := io.ReadFull(r, u[:]); err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated uuid")
		}
		return Uuid(u), nil
	case vArray:
		n, err := readU32(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated array length")
		}
		out := make(Array, 0, n)
		for i := uint32(0); i < n; i++ {
			el, err := decodeFrom(r)
			if err != nil {
				return nil, err
			}
			out = append(out, el)
		}
		return out, nil
	case vObject:
		n, err := readU32(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated object length")
		}
		obj := NewObject()
		for i := uint32(0); i < n; i++ {
			k, err := readBytesWithLen(r)
			if err != nil {
				return nil, errs.Wrap(errs.Deserialization, err, "truncated object key")
			}
			val, err := decodeFrom(r)
			if err != nil {
				return nil, err
			}
			obj.Set(string(k), val)
		}
		return obj, nil
	case vBytes:
		raw, err := readBytesWithLen(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated bytes")
		}
		return Bytes(raw), nil
	case vRecordID:
		tbl, err := readBytesWithLen(r)
		if err != nil {
			return nil, errs.Wrap(errs.Deserialization, err, "truncated record id table")
		}
		key, err := decodeFrom(r)
		if err != nil {
			return nil, err
		}
		rk, ok := key.(RecordIDKey)
		if !ok {
			return nil, errs.New(errs.Deserialization, "invalid record id key variant")
		}
		return RecordID{Table: string(tbl), Key: rk}, nil
	default:
		return nil, errs.New(errs.DecodeVariant, "unknown value variant discriminant",
			errs.F("discriminant", disc))
	}
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytesWithLen(buf *bytes.Buffer, b []byte) {
	writeU32(buf, uint32(len(b)))
	buf.Write(b)
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readBytesWithLen(r *bytes.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
