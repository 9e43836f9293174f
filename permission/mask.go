package permission

import "strconv"

// Mask is a role bitmask. Each role is the bitwise OR of the role below it
// and one incremental bit, so a more privileged role is always a bit
// superset of a less privileged one.
type Mask uint64

const (
	// Client is the base role held by every authenticated account.
	Client Mask = 0b001
	// Developer may edit content and trigger builds.
	Developer Mask = Client | 0b010
	// SuperAdmin may manage users.
	SuperAdmin Mask = Developer | 0b100
)

// None is the empty mask. Every mask satisfies it.
const None Mask = 0

// Satisfies reports whether m holds every bit of required.
// This is a superset test, not an ordinal comparison.
func (m Mask) Satisfies(required Mask) bool {
	return m&required == required
}

// Has reports whether bit (0-based) is set.
func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return m&(1<<bit) != 0
}

// Set returns m with bit set.
func (m Mask) Set(bit int) Mask {
	if bit < 0 || bit >= 64 {
		return m
	}
	return m | (1 << bit)
}

// Clear returns m with bit cleared.
func (m Mask) Clear(bit int) Mask {
	if bit < 0 || bit >= 64 {
		return m
	}
	return m &^ (1 << bit)
}

// String renders well-known roles by name and anything else in binary.
func (m Mask) String() string {
	switch m {
	case None:
		return "none"
	case Client:
		return "client"
	case Developer:
		return "developer"
	case SuperAdmin:
		return "super_admin"
	}
	return "0b" + strconv.FormatUint(uint64(m), 2)
}
