// Package assembler implements the OPER-8 two-pass assembler (spec.md
// §4.C): a line classifier, a label-resolving first pass, and a
// byte-emitting second pass, built on pkg/isa for encoding and
// pkg/operand for literal parsing.
package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oper8/oper8/pkg/isa"
	"github.com/oper8/oper8/pkg/operand"
)

// DefaultOrigin is the address assembly starts at when the source never
// issues a .org directive.
const DefaultOrigin = isa.ResetPC

// Segment is a contiguous run of assembled bytes destined for one address,
// the "implementation detail" alternative to a single padded buffer that
// spec.md §4.C explicitly allows.
type Segment struct {
	Addr  uint16
	Bytes []byte
}

// Error reports one assembly failure with its source line number, per
// spec.md §7 kind 1.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type itemKind int

const (
	itemInstruction itemKind = iota
	itemData
)

type item struct {
	kind    itemKind
	addr    uint16
	line    int
	source  string // itemInstruction: the mnemonic+operands text
	bytes   []byte // itemData: pre-resolved bytes
}

// Assembler holds the listing setting and the listing of the most recent
// Assemble call; the label table lives only for the duration of one
// Assemble call.
type Assembler struct {
	listingEnabled bool
	listing        []string
}

// New returns a ready-to-use Assembler.
func New() *Assembler {
	return &Assembler{}
}

// SetListing enables or disables address/byte listing output alongside
// assembly.
func (a *Assembler) SetListing(enabled bool) {
	a.listingEnabled = enabled
}

// Listing returns the listing lines produced by the most recent Assemble
// call, one per source line that emitted bytes.
func (a *Assembler) Listing() []string {
	return a.listing
}

// Assemble runs the two-pass assembly described in spec.md §4.C and
// returns the resulting segments in source order: a new segment starts at
// each .org that does not continue the previous segment.
func (a *Assembler) Assemble(source string) ([]Segment, error) {
	a.listing = nil

	lines := strings.Split(source, "\n")
	labels := operand.Labels{}

	items, err := a.passOne(lines, labels)
	if err != nil {
		return nil, err
	}

	return a.passTwo(items, labels)
}

// passOne walks lines in order, interning labels and recording the items
// pass two will resolve and emit.
func (a *Assembler) passOne(lines []string, labels operand.Labels) ([]item, error) {
	addr := uint16(DefaultOrigin)
	var items []item

	for lineNo, raw := range lines {
		text := stripComment(raw)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		fields := strings.Fields(text)
		head := fields[0]

		switch {
		case strings.EqualFold(head, ".org"):
			if len(fields) != 2 {
				return nil, &Error{lineNo + 1, ".org requires exactly one address operand"}
			}
			v, err := operand.ParseNumber(fields[1])
			if err != nil {
				return nil, &Error{lineNo + 1, err.Error()}
			}
			addr = uint16(v)

		case strings.EqualFold(head, ".data"):
			toks := fields[1:]
			if len(toks) == 0 {
				return nil, &Error{lineNo + 1, ".data requires at least one value"}
			}
			var bytes []byte
			for _, tok := range toks {
				res, err := operand.Parse(tok, operand.ModeData, labels, addr)
				if err != nil {
					return nil, &Error{lineNo + 1, err.Error()}
				}
				if res.Bytes != nil {
					bytes = append(bytes, res.Bytes...)
					continue
				}
				if res.Value < 0 || res.Value > 0xFFFF {
					return nil, &Error{lineNo + 1, fmt.Sprintf("value out of range: %s", tok)}
				}
				if res.Value > 0xFF {
					bytes = append(bytes, byte(res.Value>>8), byte(res.Value))
				} else {
					bytes = append(bytes, byte(res.Value))
				}
			}
			items = append(items, item{kind: itemData, addr: addr, line: lineNo + 1, bytes: bytes})
			addr += uint16(len(bytes))

		case strings.HasSuffix(head, ":"):
			name := strings.ToUpper(strings.TrimSuffix(head, ":"))
			if _, dup := labels[name]; dup {
				return nil, &Error{lineNo + 1, fmt.Sprintf("duplicate label %q", name)}
			}
			labels[name] = addr
			rest := strings.TrimSpace(text[len(head):])
			if rest == "" {
				continue
			}
			items = append(items, item{kind: itemInstruction, addr: addr, line: lineNo + 1, source: rest})
			addr += isa.InstructionSize

		default:
			items = append(items, item{kind: itemInstruction, addr: addr, line: lineNo + 1, source: text})
			addr += isa.InstructionSize
		}
	}

	return items, nil
}

// passTwo resolves operands (now that every label's address is known) and
// emits the final bytes, coalescing adjacent items into segments.
func (a *Assembler) passTwo(items []item, labels operand.Labels) ([]Segment, error) {
	var segments []Segment

	appendBytes := func(addr uint16, bytes []byte) {
		if n := len(segments); n > 0 {
			last := &segments[n-1]
			if last.Addr+uint16(len(last.Bytes)) == addr {
				last.Bytes = append(last.Bytes, bytes...)
				return
			}
		}
		segments = append(segments, Segment{Addr: addr, Bytes: append([]byte(nil), bytes...)})
	}

	for _, it := range items {
		switch it.kind {
		case itemData:
			appendBytes(it.addr, it.bytes)
			a.addListing(it.addr, it.bytes, fmt.Sprintf(".data (line %d)", it.line))

		case itemInstruction:
			bytes, err := a.assembleInstruction(it, labels)
			if err != nil {
				return nil, err
			}
			appendBytes(it.addr, bytes)
			a.addListing(it.addr, bytes, it.source)
		}
	}

	return segments, nil
}

// assembleInstruction resolves one mnemonic+operands line to its 2-byte
// encoding.
func (a *Assembler) assembleInstruction(it item, labels operand.Labels) ([]byte, error) {
	fields := strings.SplitN(it.source, " ", 2)
	mnemonic := strings.ToUpper(fields[0])
	var operandsText string
	if len(fields) == 2 {
		operandsText = fields[1]
	}

	operands := splitOperands(operandsText)
	nextAddr := it.addr + isa.InstructionSize

	// LDI0..LDI15 fuse the destination register into the mnemonic itself
	// (spec.md §4.A); ByMnemonic only knows the bare two-operand "LDI"
	// shape used for decoding, so the fused spelling is handled here.
	if reg, ok := parseLDIMnemonic(mnemonic); ok {
		if len(operands) != 1 {
			return nil, &Error{it.line, fmt.Sprintf("%s takes exactly one immediate operand", mnemonic)}
		}
		res, err := operand.Parse(operands[0], operand.ModeValue, labels, nextAddr)
		if err != nil {
			return nil, &Error{it.line, err.Error()}
		}
		return []byte{isa.LDIBase + reg, byte(res.Value)}, nil
	}

	info, ok := isa.ByMnemonic(mnemonic)
	if !ok {
		return nil, &Error{it.line, fmt.Sprintf("unknown mnemonic %q", fields[0])}
	}

	switch info.Shape {
	case isa.ShapeNone:
		if len(operands) != 0 {
			return nil, &Error{it.line, fmt.Sprintf("%s takes no operands", mnemonic)}
		}
		return []byte{info.Opcode, 0x00}, nil

	case isa.ShapeReg2:
		rx, ry, err := twoRegisters(it.line, mnemonic, operands)
		if err != nil {
			return nil, err
		}
		return []byte{info.Opcode, isa.EncodeOperand(isa.ShapeReg2, rx, ry)}, nil

	case isa.ShapeReg1:
		if len(operands) != 1 {
			return nil, &Error{it.line, fmt.Sprintf("%s takes exactly one register operand", mnemonic)}
		}
		rx, ok := operand.RegisterIndex(operands[0])
		if !ok {
			return nil, &Error{it.line, fmt.Sprintf("bad register name %q", operands[0])}
		}
		return []byte{info.Opcode, isa.EncodeOperand(isa.ShapeReg1, rx, 0)}, nil

	case isa.ShapeRegRange:
		rx, ry, err := twoRegisters(it.line, mnemonic, operands)
		if err != nil {
			return nil, err
		}
		return []byte{info.Opcode, isa.EncodeOperand(isa.ShapeRegRange, rx, ry)}, nil

	case isa.ShapeRegImm:
		if len(operands) != 2 {
			return nil, &Error{it.line, "LDI takes a register and an 8-bit immediate"}
		}
		rx, ok := operand.RegisterIndex(operands[0])
		if !ok {
			return nil, &Error{it.line, fmt.Sprintf("bad register name %q", operands[0])}
		}
		res, err := operand.Parse(operands[1], operand.ModeValue, labels, nextAddr)
		if err != nil {
			return nil, &Error{it.line, err.Error()}
		}
		return []byte{info.Opcode | rx, byte(res.Value)}, nil

	case isa.ShapeImm8:
		if len(operands) != 1 {
			return nil, &Error{it.line, fmt.Sprintf("%s takes exactly one operand", mnemonic)}
		}
		res, err := operand.Parse(operands[0], operand.ModeValue, labels, nextAddr)
		if err != nil {
			return nil, &Error{it.line, err.Error()}
		}
		return []byte{info.Opcode, byte(res.Value)}, nil

	case isa.ShapeRel8:
		if len(operands) != 1 {
			return nil, &Error{it.line, fmt.Sprintf("%s takes exactly one operand", mnemonic)}
		}
		res, err := operand.Parse(operands[0], operand.ModeBranch, labels, nextAddr)
		if err != nil {
			return nil, &Error{it.line, err.Error()}
		}
		return []byte{info.Opcode, byte(int8(res.Value))}, nil

	default:
		return nil, &Error{it.line, fmt.Sprintf("internal error: unhandled shape for %s", mnemonic)}
	}
}

// parseLDIMnemonic recognizes the fused LDI0..LDI15 spelling and returns the
// destination register it names.
func parseLDIMnemonic(mnemonic string) (byte, bool) {
	suffix := strings.TrimPrefix(mnemonic, "LDI")
	if suffix == "" || suffix == mnemonic {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 || n > 15 {
		return 0, false
	}
	return byte(n), true
}

func twoRegisters(line int, mnemonic string, operands []string) (byte, byte, error) {
	if len(operands) != 2 {
		return 0, 0, &Error{line, fmt.Sprintf("%s takes exactly two register operands", mnemonic)}
	}
	rx, ok := operand.RegisterIndex(operands[0])
	if !ok {
		return 0, 0, &Error{line, fmt.Sprintf("bad register name %q", operands[0])}
	}
	ry, ok := operand.RegisterIndex(operands[1])
	if !ok {
		return 0, 0, &Error{line, fmt.Sprintf("bad register name %q", operands[1])}
	}
	return rx, ry, nil
}

func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func stripComment(line string) string {
	for i, c := range line {
		if c == ';' {
			return line[:i]
		}
		if c == '/' && i+1 < len(line) && line[i+1] == '/' {
			return line[:i]
		}
	}
	return line
}

func (a *Assembler) addListing(addr uint16, bytes []byte, source string) {
	if !a.listingEnabled {
		return
	}
	hex := make([]string, len(bytes))
	for i, b := range bytes {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	a.listing = append(a.listing, fmt.Sprintf("%04X  %-8s %s", addr, strings.Join(hex, " "), source))
}

// Flatten merges segments into a single zero-padded buffer spanning
// [min(addr), max(addr+len)), the other emission shape spec.md §4.C
// permits. Useful for loading a program without tracking segment gaps.
func Flatten(segments []Segment) (startAddr uint16, buf []byte) {
	if len(segments) == 0 {
		return 0, nil
	}
	lo, hi := segments[0].Addr, int(segments[0].Addr)
	for _, seg := range segments {
		if seg.Addr < lo {
			lo = seg.Addr
		}
		end := int(seg.Addr) + len(seg.Bytes)
		if end > hi {
			hi = end
		}
	}
	buf = make([]byte, hi-int(lo))
	for _, seg := range segments {
		copy(buf[int(seg.Addr)-int(lo):], seg.Bytes)
	}
	return lo, buf
}
