package permission

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidMask is returned when a textual mask cannot be parsed.
var ErrInvalidMask = errors.New("invalid permission mask")

// MarshalText encodes m using its role name when it has one.
func (m Mask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts role names from the default registry, binary
// literals ("0b011"), hex literals ("0x3") and plain decimals.
func (m *Mask) UnmarshalText(text []byte) error {
	parsed, err := ParseMask(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMask parses a role name or a numeric mask literal.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return None, ErrInvalidMask
	}

	if mask, ok := defaultRegistry.Lookup(s); ok {
		return mask, nil
	}

	base := 10
	digits := s
	switch {
	case strings.HasPrefix(s, "0b"):
		base, digits = 2, s[2:]
	case strings.HasPrefix(s, "0x"):
		base, digits = 16, s[2:]
	}

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return None, ErrInvalidMask
	}
	return Mask(v), nil
}
