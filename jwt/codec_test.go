package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestSignVerifyRoundTrip(t *testing.T) {
	clock := newClock()
	c, err := NewCodec(Config{Secret: []byte("test-secret-test-secret"), Now: clock.Now})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	token, err := c.Sign(Payload{SubjectID: "u1", Email: "a@x.io"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := c.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.SubjectID() != "u1" || claims.Email != "a@x.io" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != DefaultTTL {
		t.Fatalf("expected expiry %v after issue, got %v", DefaultTTL, got)
	}
	if !claims.IssuedAt.Time.Equal(clock.now) {
		t.Fatalf("expected issued-at %v, got %v", clock.now, claims.IssuedAt.Time)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	clock := newClock()
	c, err := NewCodec(Config{Secret: []byte("test-secret-test-secret"), Now: clock.Now})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	token, err := c.Sign(Payload{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	clock.Advance(DefaultTTL - time.Second)
	if _, err := c.Verify(token); err != nil {
		t.Fatalf("expected token valid just before expiry: %v", err)
	}

	clock.Advance(2 * time.Second)
	if _, err := c.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerifyRejectsTamperedAndForeignTokens(t *testing.T) {
	c, err := NewCodec(Config{Secret: []byte("secret-one-secret-one")})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	other, err := NewCodec(Config{Secret: []byte("secret-two-secret-two")})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	token, err := other.Sign(Payload{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for _, input := range []string{"", "garbage", "a.b.c", token, token + "x"} {
		if _, err := c.Verify(input); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", input, err)
		}
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	c, err := NewCodec(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := c.Verify(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestVerifyRejectsMissingExpiry(t *testing.T) {
	secret := []byte("test-secret-test-secret")
	c, err := NewCodec(Config{Secret: secret})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "u1"}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := c.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without exp to be rejected, got %v", err)
	}
}

func TestIssuerAndLeeway(t *testing.T) {
	clock := newClock()
	pub, priv := newEdKeys(t)
	c, err := NewCodec(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "cms",
		Leeway:        30 * time.Second,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	token, err := c.Sign(Payload{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	clock.Advance(time.Minute + 10*time.Second)
	if _, err := c.Verify(token); err != nil {
		t.Fatalf("expected token valid within leeway: %v", err)
	}

	clock.Advance(30 * time.Second)
	if _, err := c.Verify(token); err == nil {
		t.Fatal("expected token rejected beyond leeway")
	}

	foreign, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "someone-else",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	other, err := foreign.Sign(Payload{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Verify(other); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestDevelopmentSecretFallback(t *testing.T) {
	c, err := NewCodec(Config{})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if !c.UsingDevelopmentSecret() {
		t.Fatal("expected development secret fallback")
	}
	if c.TTL() != DefaultTTL {
		t.Fatalf("expected default TTL, got %v", c.TTL())
	}

	withSecret, err := NewCodec(Config{Secret: []byte("real")})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if withSecret.UsingDevelopmentSecret() {
		t.Fatal("configured secret must not report development mode")
	}
}

func TestNewCodecRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{TTL: -time.Second},
		{Leeway: time.Hour},
		{SigningMethod: "rs512"},
		{SigningMethod: MethodEd25519},
		{SigningMethod: MethodEd25519, PrivateKey: make([]byte, ed25519.PrivateKeySize)},
	}
	for i, cfg := range cases {
		if _, err := NewCodec(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestSignRejectsEmptySubject(t *testing.T) {
	c, err := NewCodec(Config{})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if _, err := c.Sign(Payload{}); !errors.Is(err, ErrTokenCreation) {
		t.Fatalf("expected ErrTokenCreation, got %v", err)
	}
}
