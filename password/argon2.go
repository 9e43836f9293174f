package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// MinLength is the shortest accepted password, in bytes.
	MinLength = 10

	algorithmID = "argon2id"
)

var (
	// ErrTooShort is returned by [Hasher.Hash] for passwords under MinLength bytes.
	ErrTooShort = errors.New("password: too short")
	// ErrMismatch is returned by [Hasher.Compare] when the password is wrong.
	ErrMismatch = errors.New("password: mismatch")
	// ErrInvalidHash is returned for strings that are not argon2id PHC hashes.
	ErrInvalidHash = errors.New("password: invalid hash")
	// ErrInvalidConfig is returned by [NewHasher] for weak parameters.
	ErrInvalidConfig = errors.New("password: invalid config")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32 `yaml:"memory_kb"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
}

// DefaultConfig returns the OWASP-recommended Argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords. Safe for concurrent use.
type Hasher struct {
	cfg Config

	dummyOnce sync.Once
	dummy     string
}

type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

type phc struct {
	params
	salt []byte
	key  []byte
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Hasher{cfg: cfg}, nil
}

// Hash returns the PHC encoding of password under a fresh random salt.
// The password bytes are used as given, without normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, h.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}

	p := params{memory: h.cfg.Memory, time: h.cfg.Time, parallelism: h.cfg.Parallelism}
	key := p.derive(password, salt, h.cfg.KeyLength)
	return encode(p, salt, key), nil
}

// Compare returns nil when password matches encoded, [ErrMismatch] when it
// does not, and [ErrInvalidHash] when encoded cannot be parsed.
func (h *Hasher) Compare(password, encoded string) error {
	parsed, err := decode(encoded)
	if err != nil {
		return err
	}

	key := parsed.derive(password, parsed.salt, uint32(len(parsed.key)))
	if subtle.ConstantTimeCompare(key, parsed.key) != 1 {
		return ErrMismatch
	}
	return nil
}

// CompareDummy spends the same work as a real Compare and always fails. The
// login flow calls it for unknown accounts so response time does not reveal
// which emails exist.
func (h *Hasher) CompareDummy(password string) error {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.Hash("dummy-password-never-matches")
	})
	_ = h.Compare(password, h.dummy)
	return ErrMismatch
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher's.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	parsed, err := decode(encoded)
	if err != nil {
		return false, err
	}

	return h.cfg.Memory > parsed.memory ||
		h.cfg.Time > parsed.time ||
		h.cfg.Parallelism > parsed.parallelism ||
		h.cfg.KeyLength != uint32(len(parsed.key)), nil
}

func (p params) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, keyLen)
}

func encode(p params, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	)
}

func decode(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return phc{}, fmt.Errorf("%w: malformed", ErrInvalidHash)
	}
	if parts[1] != algorithmID {
		return phc{}, fmt.Errorf("%w: algorithm %q", ErrInvalidHash, parts[1])
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, fmt.Errorf("%w: version %q", ErrInvalidHash, parts[2])
	}

	p, err := parseParams(parts[3])
	if err != nil {
		return phc{}, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return phc{}, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	key, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return phc{}, fmt.Errorf("%w: key", ErrInvalidHash)
	}

	return phc{params: p, salt: salt, key: key}, nil
}

func parseParams(s string) (params, error) {
	var (
		p    params
		seen = map[string]bool{}
	)

	pairs := strings.Split(s, ",")
	if len(pairs) != 3 {
		return p, fmt.Errorf("%w: parameters", ErrInvalidHash)
	}

	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || seen[k] {
			return p, fmt.Errorf("%w: parameter %q", ErrInvalidHash, pair)
		}
		seen[k] = true

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return p, fmt.Errorf("%w: memory", ErrInvalidHash)
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return p, fmt.Errorf("%w: time", ErrInvalidHash)
			}
			p.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return p, fmt.Errorf("%w: parallelism", ErrInvalidHash)
			}
			p.parallelism = uint8(n)
		default:
			return p, fmt.Errorf("%w: parameter %q", ErrInvalidHash, k)
		}
	}
	return p, nil
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("memory must be >= %d KB", minMemoryKB)
	case c.Time < minTimeCost:
		return fmt.Errorf("time must be >= %d", minTimeCost)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("parallelism must be >= %d", minParallelism)
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("key length must be >= %d", minKeyLength)
	}
	return nil
}
