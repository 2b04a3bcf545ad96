// Package astutil provides helpers for working with the JavaScript AST produced by
// github.com/tdewolff/parse/v2/js: decoding and encoding string literal data as
// UTF-16 code units, and small node constructors shared by the transformers.
package astutil

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2/js"
)

const hexDigits = "0123456789abcdef"

// StringLiteral returns the literal node if n is a string literal, in either
// pointer or value form (the parser uses both depending on the position).
func StringLiteral(n js.INode) (*js.LiteralExpr, bool) {
	switch lit := n.(type) {
	case *js.LiteralExpr:
		if lit != nil && lit.TokenType == js.StringToken {
			return lit, true
		}
	case js.LiteralExpr:
		if lit.TokenType == js.StringToken {
			return &lit, true
		}
	}
	return nil, false
}

// DecodeString decodes the raw data of a string literal token, quotes included,
// into the UTF-16 code units of its value.
func DecodeString(data []byte) ([]uint16, error) {
	if len(data) < 2 || (data[0] != '"' && data[0] != '\'') || data[len(data)-1] != data[0] {
		return nil, fmt.Errorf("not a quoted string literal: %q", data)
	}
	body := data[1 : len(data)-1]
	units := make([]uint16, 0, len(body))

	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			r, size := utf8.DecodeRune(body[i:])
			units = appendRune(units, r)
			i += size
			continue
		}

		i++
		if i >= len(body) {
			return nil, fmt.Errorf("unterminated escape sequence in %q", data)
		}
		c = body[i]
		switch c {
		case 'n':
			units = append(units, '\n')
			i++
		case 't':
			units = append(units, '\t')
			i++
		case 'r':
			units = append(units, '\r')
			i++
		case 'b':
			units = append(units, '\b')
			i++
		case 'f':
			units = append(units, '\f')
			i++
		case 'v':
			units = append(units, '\v')
			i++
		case '\r':
			// line continuation, optionally \r\n
			i++
			if i < len(body) && body[i] == '\n' {
				i++
			}
		case '\n':
			i++
		case 'x':
			if i+2 >= len(body) {
				return nil, fmt.Errorf("invalid hexadecimal escape in %q", data)
			}
			v, err := strconv.ParseUint(string(body[i+1:i+3]), 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid hexadecimal escape in %q: %w", data, err)
			}
			units = append(units, uint16(v))
			i += 3
		case 'u':
			r, n, err := decodeUnicodeEscape(body[i+1:])
			if err != nil {
				return nil, fmt.Errorf("invalid unicode escape in %q: %w", data, err)
			}
			if r > 0xFFFF {
				units = appendRune(units, r)
			} else {
				units = append(units, uint16(r))
			}
			i += 1 + n
		case '0', '1', '2', '3', '4', '5', '6', '7':
			// legacy octal escape, \0 not followed by a digit is NUL
			max := 3
			if c >= '4' {
				max = 2
			}
			j := i
			v := 0
			for j < len(body) && j-i < max && body[j] >= '0' && body[j] <= '7' {
				v = v*8 + int(body[j]-'0')
				j++
			}
			units = append(units, uint16(v))
			i = j
		default:
			if c == 0xE2 && i+2 < len(body) && body[i+1] == 0x80 && (body[i+2] == 0xA8 || body[i+2] == 0xA9) {
				// line continuation with LS or PS
				i += 3
				continue
			}
			r, size := utf8.DecodeRune(body[i:])
			units = appendRune(units, r)
			i += size
		}
	}
	return units, nil
}

// decodeUnicodeEscape decodes the part of a \u escape after the 'u', returning the
// code point and the number of bytes consumed.
func decodeUnicodeEscape(b []byte) (rune, int, error) {
	if len(b) > 0 && b[0] == '{' {
		end := bytes.IndexByte(b, '}')
		if end < 2 {
			return 0, 0, fmt.Errorf("malformed code point escape")
		}
		v, err := strconv.ParseUint(string(b[1:end]), 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0, fmt.Errorf("code point out of range")
		}
		return rune(v), end + 1, nil
	}
	if len(b) < 4 {
		return 0, 0, fmt.Errorf("short escape")
	}
	v, err := strconv.ParseUint(string(b[:4]), 16, 16)
	if err != nil {
		return 0, 0, err
	}
	return rune(v), 4, nil
}

func appendRune(units []uint16, r rune) []uint16 {
	if r >= 0x10000 {
		r1, r2 := utf16.EncodeRune(r)
		return append(units, uint16(r1), uint16(r2))
	}
	return append(units, uint16(r))
}

// EncodeString renders code units as a double-quoted literal. Printable ASCII is
// written as is, everything else is escaped so the literal survives re-embedding
// in any source encoding.
func EncodeString(units []uint16) []byte {
	buf := make([]byte, 0, len(units)+2)
	buf = append(buf, '"')
	for _, u := range units {
		switch {
		case u == '\\':
			buf = append(buf, '\\', '\\')
		case u == '"':
			buf = append(buf, '\\', '"')
		case u == '\n':
			buf = append(buf, '\\', 'n')
		case u == '\r':
			buf = append(buf, '\\', 'r')
		case u == '\t':
			buf = append(buf, '\\', 't')
		case u >= 0x20 && u < 0x7F:
			buf = append(buf, byte(u))
		default:
			buf = append(buf, '\\', 'u',
				hexDigits[u>>12&0xF], hexDigits[u>>8&0xF], hexDigits[u>>4&0xF], hexDigits[u&0xF])
		}
	}
	return append(buf, '"')
}

// UnitsToString converts code units to a Go string. Unpaired surrogates become U+FFFD.
func UnitsToString(units []uint16) string {
	return string(utf16.Decode(units))
}

// StringToUnits converts a Go string to UTF-16 code units.
func StringToUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// NewStringLiteral builds a string literal node holding s.
func NewStringLiteral(s string) *js.LiteralExpr {
	return &js.LiteralExpr{TokenType: js.StringToken, Data: EncodeString(StringToUnits(s))}
}

// NewIdentifierNameLiteral builds a string literal with the same value as the given
// identifier name. Identifier names only contain identifier characters and \u
// escapes, which keep their meaning inside a double-quoted literal.
func NewIdentifierNameLiteral(name []byte) *js.LiteralExpr {
	data := make([]byte, 0, len(name)+2)
	data = append(data, '"')
	data = append(data, name...)
	data = append(data, '"')
	return &js.LiteralExpr{TokenType: js.StringToken, Data: data}
}

// NewNumberLiteral builds an integer literal.
func NewNumberLiteral(n int) *js.LiteralExpr {
	return &js.LiteralExpr{TokenType: js.IntegerToken, Data: []byte(strconv.Itoa(n))}
}

// NewVar builds a variable reference with the given name.
func NewVar(name string) *js.Var {
	return &js.Var{Data: []byte(name), Decl: js.VariableDecl}
}

// NewVarDecl builds `var name = init`.
func NewVarDecl(name string, init js.IExpr) *js.VarDecl {
	return &js.VarDecl{
		TokenType: js.VarToken,
		List:      []js.BindingElement{{Binding: NewVar(name), Default: init}},
	}
}

// VarName returns the resolved name of a variable node, or "" for anything else.
func VarName(n js.INode) string {
	if v, ok := n.(*js.Var); ok && v != nil {
		return string(v.Name())
	}
	return ""
}
