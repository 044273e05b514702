package value

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// ToJSON renders v as the lossy, human-readable JSON projection described
// in spec.md §6. It is one-way and never used for persistence: Datetime
// becomes an RFC3339 string, Bytes becomes base64, Uuid and RecordID become
// strings, and None/Null both become JSON null (the distinction is lost).
func ToJSON(v Value) (json.RawMessage, error) {
	return json.Marshal(toJSONAny(v))
}

func toJSONAny(v Value) any {
	switch t := v.(type) {
	case None, Null:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case Decimal:
		return t.Decimal.String()
	case Str:
		return string(t)
	case Duration:
		return time.Duration(t).String()
	case Datetime:
		return time.Time(t).UTC().Format(time.RFC3339Nano)
	case Uuid:
		return t.String()
	case Bytes:
		return base64.StdEncoding.EncodeToString(t)
	case Array:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = toJSONAny(el)
		}
		return out
	case Object:
		out := make(map[string]any, t.Len())
		for _, k := range t.SortedKeys() {
			val, _ := t.Get(k)
			out[k] = toJSONAny(val)
		}
		return out
	case RecordID:
		return t.String()
	default:
		return nil
	}
}
