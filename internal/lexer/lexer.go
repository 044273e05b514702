package lexer

import (
	"strings"

	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/reader"
)

// openingAngleByte/openingAngleCont0/openingAngleCont1 are the three UTF-8
// bytes of U+27E8 '⟨', the delimited-identifier opener (spec.md §4.2, §6).
const (
	openingAngleByte  = 0xE2
	openingAngleCont0 = 0x9F
	openingAngleCont1 = 0xA8
)

// nonASCIIOperators maps the small set of mathematical operator runes the
// query language accepts (spec.md §4.2) to their token text. Identifier
// delimiters ⟨ ⟩ are handled separately since they wrap an ident, not an
// operator.
var nonASCIIOperators = map[rune]string{
	'∈': "∈", '∉': "∉", '⊆': "⊆", '⊂': "⊂", '⊇': "⊇", '⊃': "⊃",
	'×': "×", '÷': "÷", '≠': "≠", '≤': "≤", '≥': "≥",
	'∋': "∋", '∌': "∌", '⊅': "⊅", '⊄': "⊄",
}

// Lexer tokenizes src lazily: each call to Next returns the following
// Token, or a KindEOF token once exhausted. The first error encountered is
// stuck in Error and an Invalid token is emitted at the failing position;
// callers must check Error after receiving an Invalid token.
type Lexer struct {
	r     *reader.Reader
	Error error

	Numbers   []NumberPayload
	Strings   []StringPayload
	Datetimes []DatetimePayload
	Uuids     []UuidPayload
	Durations []DurationPayload
}

// New creates a Lexer over src.
func New(src []byte) *Lexer {
	return &Lexer{r: reader.New(src)}
}

func (l *Lexer) invalid(offset int, err error) Token {
	if l.Error == nil {
		l.Error = err
	}
	return Token{Kind: KindInvalid, Span: Span{Offset: uint32(offset), Len: uint32(l.r.Offset() - offset)}, DataIndex: -1}
}

func (l *Lexer) tok(kind Kind, offset int, text string) Token {
	return Token{Kind: kind, Span: Span{Offset: uint32(offset), Len: uint32(l.r.Offset() - offset)}, Text: text, DataIndex: -1}
}

// Next scans and returns the following token.
func (l *Lexer) Next() Token {
	l.skipWhitespaceAndComments()
	start := l.r.Offset()
	b, ok := l.r.Next()
	if !ok {
		return Token{Kind: KindEOF, Span: Span{Offset: uint32(start)}, DataIndex: -1}
	}

	switch {
	case isIdentStart(b):
		return l.lexIdentOrPrefixed(start, b)
	case b >= '0' && b <= '9':
		return l.lexNumber(start)
	case b == '"' || b == '\'':
		return l.lexString(start, b)
	case b == openingAngleByte && peekIs(l.r, 0, openingAngleCont0) && peekIs(l.r, 1, openingAngleCont1):
		l.r.Next()
		l.r.Next()
		return l.lexDelimitedIdent(start)
	case b < 0x80:
		return l.lexASCIISymbol(start, b)
	default:
		ru, err := l.r.CompleteChar(b)
		if err != nil {
			return l.invalid(start, errs.Wrap(errs.Lex, err, "invalid byte in source"))
		}
		if text, ok := nonASCIIOperators[ru]; ok {
			return l.tok(KindOperator, start, text)
		}
		return l.invalid(start, errs.New(errs.Lex, "unexpected character", errs.F("char", string(ru))))
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		b, ok := l.r.Peek()
		if !ok {
			return
		}
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			l.r.Next()
		case b == '-' && peekIs(l.r, 1, '-'):
			l.r.Next()
			l.r.Next()
			for {
				c, ok := l.r.Peek()
				if !ok || c == '\n' {
					break
				}
				l.r.Next()
			}
		case b == '/' && peekIs(l.r, 1, '*'):
			l.r.Next()
			l.r.Next()
			for {
				c, ok := l.r.Next()
				if !ok {
					return
				}
				if c == '*' {
					if d, ok := l.r.Peek(); ok && d == '/' {
						l.r.Next()
						break
					}
				}
			}
		case b == '/' && peekIs(l.r, 1, '/'):
			l.r.Next()
			l.r.Next()
			for {
				c, ok := l.r.Peek()
				if !ok || c == '\n' {
					break
				}
				l.r.Next()
			}
		default:
			return
		}
	}
}

func peekIs(r *reader.Reader, n int, want byte) bool {
	b, ok := r.PeekAt(n)
	return ok && b == want
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

// lexIdentOrPrefixed handles a leading letter/underscore, which may turn
// out to be a bare identifier/keyword, or one of the quoted-payload
// prefixes d'...' (datetime), u'...' (uuid).
func (l *Lexer) lexIdentOrPrefixed(start int, first byte) Token {
	if (first == 'd' || first == 'D') && isQuote(l.r) {
		return l.lexDatetime(start)
	}
	if (first == 'u' || first == 'U') && isQuote(l.r) {
		return l.lexUuid(start)
	}
	for {
		b, ok := l.r.Peek()
		if !ok || !isIdentCont(b) {
			break
		}
		l.r.Next()
	}
	// A bare identifier may still be the start of a duration if it's purely
	// numeric-prefixed, but durations are only recognized starting from a
	// digit (lexNumber), so an ident-start token is never reinterpreted.
	text := string(l.sliceSince(start))
	return l.tok(classify(text), start, text)
}

func isQuote(r *reader.Reader) bool {
	b, ok := r.Peek()
	return ok && (b == '\'' || b == '"')
}

// sliceSince recovers the bytes between start and the current offset.
// Reader intentionally exposes no raw slice accessor so every other
// consumer stays byte-at-a-time; this is the one place the lexer reaches
// past that to materialize a lexeme once its extent is known, which is
// safe since PeekAt can address any already-consumed offset too.
func (l *Lexer) sliceSince(start int) []byte {
	end := l.r.Offset()
	out := make([]byte, 0, end-start)
	for i := start; i < end; i++ {
		if b, ok := l.r.PeekAt(i - l.r.Offset()); ok {
			out = append(out, b)
		}
	}
	return out
}

func (l *Lexer) lexASCIISymbol(start int, b byte) Token {
	two := func(next byte, text string) (Token, bool) {
		if n, ok := l.r.Peek(); ok && n == next {
			l.r.Next()
			return l.tok(KindOperator, start, text), true
		}
		return Token{}, false
	}
	switch b {
	case '=':
		if t, ok := two('=', "=="); ok {
			return t
		}
		return l.tok(KindOperator, start, "=")
	case '!':
		if t, ok := two('~', "!~"); ok {
			return t
		}
		if t, ok := two('=', "!="); ok {
			return t
		}
		return l.tok(KindOperator, start, "!")
	case '*':
		if t, ok := two('=', "*="); ok {
			return t
		}
		if t, ok := two('~', "*~"); ok {
			return t
		}
		if t, ok := two('*', "**"); ok {
			return t
		}
		return l.tok(KindOperator, start, "*")
	case '?':
		if t, ok := two('=', "?="); ok {
			return t
		}
		if t, ok := two('~', "?~"); ok {
			return t
		}
		if t, ok := two('?', "??"); ok {
			return t
		}
		if t, ok := two(':', "?:"); ok {
			return t
		}
		return l.tok(KindOperator, start, "?")
	case '~':
		return l.tok(KindOperator, start, "~")
	case '+':
		if t, ok := two('=', "+="); ok {
			return t
		}
		return l.tok(KindOperator, start, "+")
	case '-':
		if n, ok := l.r.Peek(); ok && n == '>' {
			l.r.Next()
			return l.tok(KindOperator, start, "->")
		}
		if t, ok := two('=', "-="); ok {
			return t
		}
		return l.tok(KindOperator, start, "-")
	case '/':
		return l.tok(KindOperator, start, "/")
	case '%':
		return l.tok(KindOperator, start, "%")
	case '|':
		if t, ok := two('|', "||"); ok {
			return t
		}
		return l.tok(KindPunct, start, "|")
	case '&':
		if t, ok := two('&', "&&"); ok {
			return t
		}
		return l.tok(KindPunct, start, "&")
	case '<':
		if n, ok := l.r.Peek(); ok && n == '-' {
			l.r.Next()
			if n2, ok := l.r.Peek(); ok && n2 == '>' {
				l.r.Next()
				return l.tok(KindOperator, start, "<->")
			}
			return l.tok(KindOperator, start, "<-")
		}
		if t, ok := two('=', "<="); ok {
			return t
		}
		return l.tok(KindOperator, start, "<")
	case '>':
		if t, ok := two('=', ">="); ok {
			return t
		}
		return l.tok(KindOperator, start, ">")
	case '(', ')', '[', ']', '{', '}', ',', ';', ':', '.', '$':
		return l.tok(KindPunct, start, string(b))
	default:
		return l.invalid(start, errs.New(errs.Lex, "unexpected character", errs.F("char", string(b))))
	}
}

// closingAngleBytes is the UTF-8 encoding of U+27E9 '⟩'.
var closingAngleBytes = []byte{0xE2, 0x9F, 0xA9}

func (l *Lexer) lexDelimitedIdent(start int) Token {
	var sb strings.Builder
	for {
		b, ok := l.r.Next()
		if !ok {
			return l.invalid(start, errs.New(errs.Lex, "unterminated ⟨ident⟩"))
		}
		if b == closingAngleBytes[0] {
			c1, ok1 := l.r.PeekAt(0)
			c2, ok2 := l.r.PeekAt(1)
			if ok1 && ok2 && c1 == closingAngleBytes[1] && c2 == closingAngleBytes[2] {
				l.r.Next()
				l.r.Next()
				break
			}
		}
		sb.WriteByte(b)
	}
	idx := len(l.Strings)
	l.Strings = append(l.Strings, StringPayload{Value: sb.String()})
	return Token{Kind: KindIdent, Span: Span{Offset: uint32(start), Len: uint32(l.r.Offset() - start)}, DataIndex: idx}
}

func (l *Lexer) lexString(start int, quote byte) Token {
	var sb strings.Builder
	for {
		b, ok := l.r.Next()
		if !ok {
			return l.invalid(start, errs.New(errs.Lex, "unterminated string literal"))
		}
		if b == quote {
			break
		}
		if b != '\\' {
			sb.WriteByte(b)
			continue
		}
		esc, ok := l.r.Next()
		if !ok {
			return l.invalid(start, errs.New(errs.Lex, "unterminated escape sequence"))
		}
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		case '\'':
			sb.WriteByte('\'')
		case 'u':
			if err := l.decodeUnicodeEscape(&sb); err != nil {
				return l.invalid(start, err)
			}
		default:
			return l.invalid(start, errs.New(errs.Lex, "invalid escape character", errs.F("char", string(esc))))
		}
	}
	idx := len(l.Strings)
	l.Strings = append(l.Strings, StringPayload{Value: sb.String()})
	return Token{Kind: KindString, Span: Span{Offset: uint32(start), Len: uint32(l.r.Offset() - start)}, DataIndex: idx}
}

func (l *Lexer) decodeUnicodeEscape(sb *strings.Builder) error {
	b, ok := l.r.Next()
	if !ok || b != '{' {
		return errs.New(errs.Lex, "expected '{' after \\u")
	}
	var hex strings.Builder
	for {
		c, ok := l.r.Next()
		if !ok {
			return errs.New(errs.Lex, "unterminated \\u{...} escape")
		}
		if c == '}' {
			break
		}
		hex.WriteByte(c)
	}
	cp, err := parseHexRune(hex.String())
	if err != nil {
		return errs.Wrap(errs.Lex, err, "invalid \\u{...} escape")
	}
	sb.WriteRune(cp)
	return nil
}

func parseHexRune(s string) (rune, error) {
	if s == "" {
		return 0, errs.New(errs.Lex, "empty \\u{...} escape")
	}
	var v rune
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			v |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= rune(c-'A') + 10
		default:
			return 0, errs.New(errs.Lex, "invalid hex digit", errs.F("char", string(c)))
		}
	}
	return v, nil
}

// lexNumber parses a sign-less leading-digit number (the sign, if present,
// is a separate unary operator token handled by the parser), an optional
// fractional part, optional exponent, optional type suffix, or a duration
// if a recognized unit suffix directly follows the digits.
func (l *Lexer) lexNumber(start int) Token {
	for {
		b, ok := l.r.Peek()
		if !ok || b < '0' || b > '9' {
			break
		}
		l.r.Next()
	}
	isFloat := false
	if b, ok := l.r.Peek(); ok && b == '.' {
		if n, ok := l.r.PeekAt(1); ok && n >= '0' && n <= '9' {
			isFloat = true
			l.r.Next()
			for {
				b, ok := l.r.Peek()
				if !ok || b < '0' || b > '9' {
					break
				}
				l.r.Next()
			}
		}
	}
	if b, ok := l.r.Peek(); ok && (b == 'e' || b == 'E') {
		if n, ok := l.r.PeekAt(1); ok && (n == '+' || n == '-' || (n >= '0' && n <= '9')) {
			isFloat = true
			l.r.Next()
			if s, ok := l.r.Peek(); ok && (s == '+' || s == '-') {
				l.r.Next()
			}
			for {
				b, ok := l.r.Peek()
				if !ok || b < '0' || b > '9' {
					break
				}
				l.r.Next()
			}
		}
	}
	if unit, ok := l.peekDurationUnit(); ok {
		l.r.Next()
		if len(unit) == 2 {
			l.r.Next()
		}
		return l.lexDurationTail(start)
	}
	raw := string(l.sliceSince(start))
	isDec := false
	if b, ok := l.r.Peek(); ok && b == 'd' {
		if n, ok := l.r.PeekAt(1); ok && n == 'e' {
			if n2, ok := l.r.PeekAt(2); ok && n2 == 'c' {
				l.r.Next()
				l.r.Next()
				l.r.Next()
				isDec = true
			}
		}
	} else if b, ok := l.r.Peek(); ok && b == 'f' {
		l.r.Next()
		isFloat = true
	}
	idx := len(l.Numbers)
	l.Numbers = append(l.Numbers, NumberPayload{Raw: raw, IsFloat: isFloat, IsDec: isDec})
	return Token{Kind: KindNumber, Span: Span{Offset: uint32(start), Len: uint32(l.r.Offset() - start)}, DataIndex: idx}
}

// durationUnits lists the recognized suffix set in longest-first order so a
// two-byte unit like "ms" is tried before its one-byte prefix would
// otherwise mis-tokenize.
var durationUnits = []string{"ns", "ms", "us", "µs", "s", "m", "h", "d", "w", "y"}

func (l *Lexer) peekDurationUnit() (string, bool) {
	for _, u := range durationUnits {
		if len(u) == 1 {
			if b, ok := l.r.Peek(); ok && b == u[0] {
				// Don't treat a trailing identifier char as a unit boundary
				// (e.g. "10something" is not a duration).
				if !peekIdentContAt(l.r, 1) {
					return u, true
				}
			}
			continue
		}
		if b, ok := l.r.Peek(); ok && b == u[0] {
			if n, ok := l.r.PeekAt(1); ok && n == u[1] {
				if !peekIdentContAt(l.r, 2) {
					return u, true
				}
			}
		}
	}
	return "", false
}

func peekIdentContAt(r *reader.Reader, n int) bool {
	b, ok := r.PeekAt(n)
	return ok && isIdentCont(b)
}

// lexDurationTail continues consuming additional digit-unit pairs after the
// first has been recognized, since durations compose ("7d12h").
func (l *Lexer) lexDurationTail(start int) Token {
	for {
		b, ok := l.r.Peek()
		if !ok || b < '0' || b > '9' {
			break
		}
		for {
			c, ok := l.r.Peek()
			if !ok || c < '0' || c > '9' {
				break
			}
			l.r.Next()
		}
		unit, ok := l.peekDurationUnit()
		if !ok {
			break
		}
		l.r.Next()
		if len(unit) == 2 {
			l.r.Next()
		}
	}
	raw := string(l.sliceSince(start))
	idx := len(l.Durations)
	l.Durations = append(l.Durations, DurationPayload{Raw: raw})
	return Token{Kind: KindDuration, Span: Span{Offset: uint32(start), Len: uint32(l.r.Offset() - start)}, DataIndex: idx}
}

func (l *Lexer) lexDatetime(start int) Token {
	quote, _ := l.r.Next()
	var sb strings.Builder
	for {
		b, ok := l.r.Next()
		if !ok {
			return l.invalid(start, errs.New(errs.Lex, "unterminated datetime literal"))
		}
		if b == quote {
			break
		}
		sb.WriteByte(b)
	}
	idx := len(l.Datetimes)
	l.Datetimes = append(l.Datetimes, DatetimePayload{Raw: sb.String()})
	return Token{Kind: KindDatetime, Span: Span{Offset: uint32(start), Len: uint32(l.r.Offset() - start)}, DataIndex: idx}
}

func (l *Lexer) lexUuid(start int) Token {
	quote, _ := l.r.Next()
	var sb strings.Builder
	for {
		b, ok := l.r.Next()
		if !ok {
			return l.invalid(start, errs.New(errs.Lex, "unterminated uuid literal"))
		}
		if b == quote {
			break
		}
		sb.WriteByte(b)
	}
	idx := len(l.Uuids)
	l.Uuids = append(l.Uuids, UuidPayload{Raw: sb.String()})
	return Token{Kind: KindUuid, Span: Span{Offset: uint32(start), Len: uint32(l.r.Offset() - start)}, DataIndex: idx}
}
