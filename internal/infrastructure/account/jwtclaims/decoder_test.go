package jwtclaims

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte("backend-only-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestDecoder_DecodeReadsIdentity(t *testing.T) {
	t.Parallel()

	raw := signed(t, Claims{
		UserName: "alice",
		IsJudge:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	identity, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if identity.Username != "alice" || !identity.IsJudge || identity.IsPlayer {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestDecoder_IgnoresExpiry(t *testing.T) {
	t.Parallel()

	raw := signed(t, Claims{
		UserName: "bob",
		IsPlayer: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	identity, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("expired token must still decode: %v", err)
	}
	if identity.Username != "bob" || !identity.IsPlayer {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestDecoder_RejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "not-a-jwt", "a.b"} {
		if _, err := NewDecoder().Decode(raw); !errors.Is(err, jwt.ErrTokenMalformed) {
			t.Fatalf("Decode(%q) error = %v, want ErrTokenMalformed", raw, err)
		}
	}
}
