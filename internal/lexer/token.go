// Package lexer tokenizes query-language source into a lazy stream of
// Tokens plus side tables for payload-bearing tokens (spec.md §4.2).
//
// What: An ASCII-fast-path, non-ASCII-aware scanner that recognizes
// identifiers, keywords, numbers, strings, datetimes, UUIDs, durations, and
// the operator set, post-classifying identifiers against a keyword table.
// How: Built on internal/reader.Reader for byte-at-a-time access with
// backup/peek; payloads too large for a fixed-size token (strings, numbers,
// datetimes, uuids, durations) are appended to a typed side-table and the
// token carries only a DataIndex into it.
// Why: Keeping Token itself small and copyable lets the parser hold a
// one-token lookahead cheaply while side tables carry the actual bytes.
package lexer

// Kind classifies a Token. The zero value, KindInvalid, is never emitted
// for well-formed input; a lexer error always accompanies it.
type Kind int

const (
	KindInvalid Kind = iota
	KindEOF

	KindIdent
	KindKeyword
	KindAlgorithm
	KindLanguage
	KindDistance
	KindGeometry

	KindNumber
	KindString
	KindDatetime
	KindUuid
	KindDuration

	KindOperator
	KindPunct
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindEOF:
		return "EOF"
	case KindIdent:
		return "Ident"
	case KindKeyword:
		return "Keyword"
	case KindAlgorithm:
		return "Algorithm"
	case KindLanguage:
		return "Language"
	case KindDistance:
		return "Distance"
	case KindGeometry:
		return "Geometry"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindDatetime:
		return "Datetime"
	case KindUuid:
		return "Uuid"
	case KindDuration:
		return "Duration"
	case KindOperator:
		return "Operator"
	case KindPunct:
		return "Punct"
	default:
		return "Unknown"
	}
}

// Span is a byte offset/length pair into the source.
type Span struct {
	Offset uint32
	Len    uint32
}

// Token is the fixed-size unit the parser consumes. Text carries the raw
// lexeme for idents/keywords/operators/punct (no side-table needed since
// those never exceed a short identifier or symbol); DataIndex addresses a
// side-table entry for Number/String/Datetime/Uuid/Duration tokens and for
// ⟨…⟩-delimited identifiers (whose name is in the Strings table), and is
// -1 otherwise.
type Token struct {
	Kind      Kind
	Span      Span
	Text      string
	DataIndex int
}

// NumberPayload is one entry in the lexer's numbers side-table.
type NumberPayload struct {
	Raw      string
	IsFloat  bool
	IsDec    bool
	IsNegExp bool
}

// StringPayload is one entry in the lexer's strings side-table, already
// escape-decoded.
type StringPayload struct {
	Value string
}

// DatetimePayload is one entry in the lexer's datetimes side-table.
type DatetimePayload struct {
	Raw string
}

// UuidPayload is one entry in the lexer's uuids side-table.
type UuidPayload struct {
	Raw string
}

// DurationPayload is one entry in the lexer's durations side-table.
type DurationPayload struct {
	Raw string
}
