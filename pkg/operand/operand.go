// Package operand implements the OPER-8 literal/operand parser (spec.md
// §4.B): numeric literals in several bases, character literals with
// escapes, register names, and the label-derived forms (bare label,
// >label/<label, HIGH(label)/LOW(label)).
package operand

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how a bare identifier or out-of-range value is interpreted,
// since the same token means different things in a branch operand, a plain
// operand, and a .data literal list (spec.md §4.B rule 3, §4.C).
type Mode int

const (
	// ModeValue is a normal instruction operand: bare labels resolve to
	// their absolute 16-bit address, and values must fit in a byte.
	ModeValue Mode = iota
	// ModeBranch is the operand of one of the seven branch-ish mnemonics:
	// a bare label resolves to a signed PC-relative offset.
	ModeBranch
	// ModeData is a .data token list: multi-character literals are
	// permitted and integers wider than a byte are allowed.
	ModeData
)

// Labels maps a case-folded identifier to its assembled 16-bit address.
type Labels map[string]uint16

// escapes is the fixed backslash-escape table recognized inside character
// literals (spec.md §4.B rule 4).
var escapes = map[byte]byte{
	'0':  0,
	'n':  10,
	'r':  13,
	't':  9,
	'\\': 92,
	'\'': 39,
}

// Result is what a successfully parsed operand produced: either a single
// 16-bit value (most operands) or a byte sequence (only possible in
// ModeData, from a multi-character literal).
type Result struct {
	Value int64
	Bytes []byte // non-nil only for a multi-character .data literal
}

// Parse resolves one whitespace-delimited token to its operand value.
// nextAddr is the address of the instruction following the one being
// assembled — the base PC-relative offsets are computed from
// (spec.md §4.B rule 3: labels[IDENT] − (currentAddr + 2)).
func Parse(tok string, mode Mode, labels Labels, nextAddr uint16) (Result, error) {
	if tok == "" {
		return Result{}, errors.New("empty operand")
	}

	upper := strings.ToUpper(tok)

	// Rule 1: >IDENT or HIGH(IDENT)
	if ident, ok := stripHigh(upper); ok {
		addr, err := lookupLabel(ident, labels)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: int64((addr >> 8) & 0xFF)}, nil
	}

	// Rule 2: <IDENT or LOW(IDENT)
	if ident, ok := stripLow(upper); ok {
		addr, err := lookupLabel(ident, labels)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: int64(addr & 0xFF)}, nil
	}

	// Rule 3: bare identifier naming a label.
	if isIdentifier(upper) {
		if addr, ok := labels[upper]; ok {
			if mode == ModeBranch {
				offset := int64(addr) - int64(nextAddr)
				if offset < -128 || offset > 127 {
					return Result{}, errors.Errorf("branch offset out of range [-128,127]: %d (target %s)", offset, tok)
				}
				return Result{Value: offset}, nil
			}
			return Result{Value: int64(addr)}, nil
		}
	}

	// Rule 4: character literal.
	if strings.HasPrefix(tok, "'") {
		return parseCharLiteral(tok, mode)
	}

	// Rule 5: numeric literal.
	val, err := ParseNumber(tok)
	if err != nil {
		if isIdentifier(upper) {
			return Result{}, errors.Errorf("undefined label %q", tok)
		}
		return Result{}, err
	}
	if mode != ModeData && (val < -128 || val > 255) {
		return Result{}, errors.Errorf("value out of byte range: %s", tok)
	}
	return Result{Value: val}, nil
}

func stripHigh(upper string) (string, bool) {
	if strings.HasPrefix(upper, ">") {
		return upper[1:], true
	}
	if strings.HasPrefix(upper, "HIGH(") && strings.HasSuffix(upper, ")") {
		return upper[5 : len(upper)-1], true
	}
	return "", false
}

func stripLow(upper string) (string, bool) {
	if strings.HasPrefix(upper, "<") {
		return upper[1:], true
	}
	if strings.HasPrefix(upper, "LOW(") && strings.HasSuffix(upper, ")") {
		return upper[4 : len(upper)-1], true
	}
	return "", false
}

func lookupLabel(ident string, labels Labels) (uint16, error) {
	addr, ok := labels[ident]
	if !ok {
		return 0, errors.Errorf("undefined label %q", ident)
	}
	return addr, nil
}

// isIdentifier reports whether s matches [A-Z_][A-Z0-9_]*.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	first := s[0]
	if !(first == '_' || (first >= 'A' && first <= 'Z')) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// parseCharLiteral parses '…' with a single character or backslash escape.
// Multi-character literals are only valid in ModeData, producing a byte
// sequence instead of a single value.
func parseCharLiteral(tok string, mode Mode) (Result, error) {
	if len(tok) < 2 || tok[len(tok)-1] != '\'' {
		return Result{}, errors.Errorf("malformed character literal: %s", tok)
	}
	inner := tok[1 : len(tok)-1]
	if inner == "" {
		return Result{}, errors.New("empty character literal")
	}

	bytes, err := decodeCharBody(inner)
	if err != nil {
		return Result{}, err
	}
	if len(bytes) == 1 {
		return Result{Value: int64(bytes[0])}, nil
	}
	if mode != ModeData {
		return Result{}, errors.Errorf("multi-character literal %s only permitted in .data", tok)
	}
	return Result{Bytes: bytes}, nil
}

// decodeCharBody expands backslash escapes within a character literal body.
func decodeCharBody(inner string) ([]byte, error) {
	var out []byte
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(inner) {
			return nil, errors.New("malformed escape at end of character literal")
		}
		esc, ok := escapes[inner[i]]
		if !ok {
			return nil, errors.Errorf("malformed escape \\%c", inner[i])
		}
		out = append(out, esc)
	}
	return out, nil
}

// ParseNumber parses a bare numeric literal in decimal, $hex, 0xhex, or
// 0bbin form (spec.md §4.B rule 5). The result may be negative for a
// leading-minus decimal literal.
func ParseNumber(tok string) (int64, error) {
	neg := false
	s := tok
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	var v int64
	var err error
	switch {
	case strings.HasPrefix(s, "$"):
		v, err = parseBase(s[1:], 16)
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		v, err = parseBase(s[2:], 16)
	case strings.HasPrefix(strings.ToLower(s), "0b"):
		v, err = parseBase(s[2:], 2)
	default:
		v, err = parseBase(s, 10)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "malformed number %q", tok)
	}
	if neg {
		v = -v
	}
	return v, nil
}

func parseBase(digits string, base int) (int64, error) {
	if digits == "" {
		return 0, errors.New("no digits")
	}
	return strconv.ParseInt(digits, base, 64)
}

// RegisterIndex parses "R0".."R15" (case-insensitive), returning the
// register index. Reports false for anything else.
func RegisterIndex(tok string) (byte, bool) {
	upper := strings.ToUpper(tok)
	if !strings.HasPrefix(upper, "R") || len(upper) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(upper[1:])
	if err != nil || n < 0 || n > 15 {
		return 0, false
	}
	return byte(n), true
}
