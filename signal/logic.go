// Package signal models the four-state values carried by DUT signals and the
// signals themselves.
package signal

import (
	"strings"

	"github.com/pkg/errors"
)

// Logic is the state of a single bit.
type Logic uint8

// The four logic states.
const (
	L0 Logic = iota
	L1
	X
	Z
)

// ParseLogic converts one of the characters 0, 1, x, z (case insensitive)
// into a Logic.
func ParseLogic(c rune) (Logic, error) {
	switch c {
	case '0':
		return L0, nil
	case '1':
		return L1, nil
	case 'x', 'X':
		return X, nil
	case 'z', 'Z':
		return Z, nil
	}

	return X, errors.Errorf("invalid logic character %q", c)
}

// Rune returns the character representing the state.
func (l Logic) Rune() rune {
	switch l {
	case L0:
		return '0'
	case L1:
		return '1'
	case Z:
		return 'z'
	default:
		return 'x'
	}
}

func (l Logic) String() string {
	return string(l.Rune())
}

// IsResolvable tells if the state is a plain 0 or 1.
func (l Logic) IsResolvable() bool {
	return l == L0 || l == L1
}

// MaxWidth is the widest vector a Value can hold.
const MaxWidth = 64

// ErrNotResolvable is returned when converting a value with X or Z bits to an
// integer.
var ErrNotResolvable = errors.New("value has X or Z bits")

// Value is a vector of 1 to 64 logic bits. Bit 0 is the least significant.
//
// A bit is X if its xmask bit is set, Z if its zmask bit is set, and
// otherwise the matching bit of bits.
type Value struct {
	width int
	bits  uint64
	xmask uint64
	zmask uint64
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << uint(width)) - 1
}

func widthMustBeValid(width int) {
	if width < 1 || width > MaxWidth {
		panic(errors.Errorf("width %d out of range 1..%d", width, MaxWidth))
	}
}

// NewValue creates a value of the given width holding v. Bits of v above the
// width are dropped.
func NewValue(width int, v uint64) Value {
	widthMustBeValid(width)

	return Value{width: width, bits: v & mask(width)}
}

// Fill creates a value whose bits all hold the given state.
func Fill(width int, l Logic) Value {
	widthMustBeValid(width)

	v := Value{width: width}
	switch l {
	case L1:
		v.bits = mask(width)
	case X:
		v.xmask = mask(width)
	case Z:
		v.zmask = mask(width)
	}

	return v
}

// ParseValue parses a literal of the form 4'b10xz, 8'hff, 'b1, 12'd100 or a
// bare binary string such as 0101.
func ParseValue(s string) (Value, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if s == "" {
		return Value{}, errors.New("empty value literal")
	}

	tick := strings.IndexByte(s, '\'')
	if tick < 0 {
		return parseBinary(len(s), s)
	}

	width := 0
	if tick > 0 {
		n, err := parseDecimal(s[:tick])
		if err != nil {
			return Value{}, errors.Wrapf(err, "parsing width of %q", s)
		}

		width = int(n)
	}

	if len(s) < tick+3 {
		return Value{}, errors.Errorf("value literal %q has no digits", s)
	}

	base := s[tick+1]
	digits := s[tick+2:]

	switch base {
	case 'b', 'B':
		if width == 0 {
			width = len(digits)
		}

		return parseBinary(width, digits)
	case 'h', 'H':
		if width == 0 {
			width = 4 * len(digits)
		}

		return parseHex(width, digits)
	case 'd', 'D':
		n, err := parseDecimal(digits)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parsing %q", s)
		}

		if width == 0 {
			width = 32
		}

		if width < 1 || width > MaxWidth || (width < 64 && n > mask(width)) {
			return Value{}, errors.Errorf("%q does not fit its width", s)
		}

		return NewValue(width, n), nil
	}

	return Value{}, errors.Errorf("unknown base %q in %q", base, s)
}

func parseDecimal(s string) (uint64, error) {
	var n uint64
	if s == "" {
		return 0, errors.New("missing number")
	}

	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.Errorf("invalid decimal digit %q", c)
		}

		next := n*10 + uint64(c-'0')
		if next < n {
			return 0, errors.New("number overflows")
		}

		n = next
	}

	return n, nil
}

func parseBinary(width int, digits string) (Value, error) {
	if width < 1 || width > MaxWidth {
		return Value{}, errors.Errorf("width %d out of range 1..%d",
			width, MaxWidth)
	}

	if len(digits) > width {
		return Value{}, errors.Errorf("%d digits do not fit in %d bits",
			len(digits), width)
	}

	v := Value{width: width}
	for i, c := range digits {
		l, err := ParseLogic(c)
		if err != nil {
			return Value{}, err
		}

		v = v.WithBit(len(digits)-1-i, l)
	}

	return v, nil
}

func parseHex(width int, digits string) (Value, error) {
	if width < 1 || width > MaxWidth {
		return Value{}, errors.Errorf("width %d out of range 1..%d",
			width, MaxWidth)
	}

	v := Value{width: width}
	for i, c := range digits {
		pos := 4 * (len(digits) - 1 - i)

		var l Logic
		nibble := uint64(0)
		special := true

		switch {
		case c == 'x' || c == 'X':
			l = X
		case c == 'z' || c == 'Z':
			l = Z
		case c >= '0' && c <= '9':
			nibble, special = uint64(c-'0'), false
		case c >= 'a' && c <= 'f':
			nibble, special = uint64(c-'a'+10), false
		case c >= 'A' && c <= 'F':
			nibble, special = uint64(c-'A'+10), false
		default:
			return Value{}, errors.Errorf("invalid hex digit %q", c)
		}

		for b := 0; b < 4; b++ {
			bit := L0
			if special {
				bit = l
			} else if nibble&(1<<uint(b)) != 0 {
				bit = L1
			}

			if pos+b >= width {
				if bit != L0 {
					return Value{}, errors.Errorf(
						"hex digits do not fit in %d bits", width)
				}

				continue
			}

			v = v.WithBit(pos+b, bit)
		}
	}

	return v, nil
}

// Width returns the number of bits.
func (v Value) Width() int {
	return v.width
}

// Bit returns the state of bit i.
func (v Value) Bit(i int) Logic {
	if i < 0 || i >= v.width {
		panic(errors.Errorf("bit %d out of range of %d-bit value", i, v.width))
	}

	m := uint64(1) << uint(i)
	switch {
	case v.xmask&m != 0:
		return X
	case v.zmask&m != 0:
		return Z
	case v.bits&m != 0:
		return L1
	default:
		return L0
	}
}

// WithBit returns a copy of the value with bit i set to l.
func (v Value) WithBit(i int, l Logic) Value {
	if i < 0 || i >= v.width {
		panic(errors.Errorf("bit %d out of range of %d-bit value", i, v.width))
	}

	m := uint64(1) << uint(i)
	v.bits &^= m
	v.xmask &^= m
	v.zmask &^= m

	switch l {
	case L1:
		v.bits |= m
	case X:
		v.xmask |= m
	case Z:
		v.zmask |= m
	}

	return v
}

// IsResolvable tells if all bits are 0 or 1.
func (v Value) IsResolvable() bool {
	return v.xmask == 0 && v.zmask == 0
}

// Uint64 returns the integer value. It fails if any bit is X or Z.
func (v Value) Uint64() (uint64, error) {
	if !v.IsResolvable() {
		return 0, errors.Wrapf(ErrNotResolvable, "value %s", v)
	}

	return v.bits, nil
}

// Equal tells if two values have the same width and bits.
func (v Value) Equal(o Value) bool {
	return v == o
}

// String returns the bits from the most significant to the least, for
// example "10xz".
func (v Value) String() string {
	var sb strings.Builder
	for i := v.width - 1; i >= 0; i-- {
		sb.WriteRune(v.Bit(i).Rune())
	}

	return sb.String()
}
