// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid, malformed, tampered, unsigned and expired tokens

package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing!")

func newTestVerifier(t *testing.T, opts ...VerifierOption) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	_, err := NewJWTVerifier([]byte("too-short"))
	if !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("NewJWTVerifier() error = %v, want ErrSecretTooShort", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	subject := "alice@example.com"
	token, err := verifier.Generate(subject, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if got != subject {
		t.Errorf("Verify() = %q, want %q", got, subject)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	otherVerifier, err := NewJWTVerifier([]byte("a-completely-different-secret-32b"))
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	wrongSecret, _ := otherVerifier.Generate("alice@example.com", time.Hour)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty token", token: "", want: ErrMalformedToken},
		{name: "garbage token", token: "not-a-jwt-token", want: ErrMalformedToken},
		{name: "malformed JWT", token: "header.payload.signature", want: ErrMalformedToken},
		{name: "wrong secret", token: wrongSecret, want: ErrSignatureInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want it to wrap ErrInvalidToken", err)
			}
			if errors.Is(err, ErrExpiredToken) {
				t.Errorf("Verify() error = %v must not be reported as expired", err)
			}
		})
	}
}

func TestJWTVerifier_TamperedSignature(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}

	// Flip one bit of the first signature byte and re-encode.
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decoding signature: %v", err)
	}
	sig[0] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	tampered := strings.Join(parts, ".")

	_, err = verifier.Verify(tampered)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify() error = %v, want ErrSignatureInvalid", err)
	}
}

func TestJWTVerifier_TamperedPayload(t *testing.T) {
	verifier := newTestVerifier(t)

	token, _ := verifier.Generate("alice@example.com", time.Hour)
	parts := strings.Split(token, ".")
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"mallory@example.com","exp":9999999999}`))

	_, err := verifier.Verify(strings.Join(parts, "."))
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify() error = %v, want ErrSignatureInvalid", err)
	}
}

func TestJWTVerifier_UnsignedToken(t *testing.T) {
	verifier := newTestVerifier(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrMalformedToken) {
		t.Errorf("Verify() error = %v, want ErrMalformedToken", err)
	}
}

func TestJWTVerifier_OtherHMACAlgorithm(t *testing.T) {
	verifier := newTestVerifier(t)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := hs512.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrMalformedToken) {
		t.Errorf("Verify() error = %v, want ErrMalformedToken", err)
	}
}

func TestJWTVerifier_MissingClaims(t *testing.T) {
	verifier := newTestVerifier(t)

	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{name: "no sub", claims: jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}},
		{name: "empty sub", claims: jwt.MapClaims{"sub": "", "exp": time.Now().Add(time.Hour).Unix()}},
		{name: "no exp", claims: jwt.MapClaims{"sub": "alice@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString(testSecret)
			if err != nil {
				t.Fatalf("SignedString() error = %v", err)
			}

			_, err = verifier.Verify(token)
			if !errors.Is(err, ErrMissingClaim) {
				t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t)

	// Generate a token that expired 1 hour ago
	token, err := verifier.Generate("alice@example.com", -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token must be distinguishable from an invalid one, got %v", err)
	}
}

func TestJWTVerifier_ExpiresAfterTTL(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	verifier := newTestVerifier(t, WithClock(clock))

	token, err := verifier.Generate("alice@example.com", 2*time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	now = now.Add(time.Hour)
	if _, err := verifier.Verify(token); err != nil {
		t.Fatalf("Verify() within TTL error = %v", err)
	}

	now = now.Add(90 * time.Minute)
	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() after TTL error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_DifferentSubjects(t *testing.T) {
	verifier := newTestVerifier(t)

	subjects := []string{"a@example.com", "b@example.com", "c@example.com"}

	for _, subject := range subjects {
		token, err := verifier.Generate(subject, time.Hour)
		if err != nil {
			t.Fatalf("Generate(%q) error = %v", subject, err)
		}

		got, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}

		if got != subject {
			t.Errorf("Verify() = %q, want %q", got, subject)
		}
	}
}

func TestJWTVerifier_RotatedSecretInvalidatesTokens(t *testing.T) {
	old := newTestVerifier(t)
	token, _ := old.Generate("alice@example.com", time.Hour)

	rotated, err := NewJWTVerifier([]byte("rotated-secret-rotated-secret-32"))
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	if _, err := rotated.Verify(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify() with rotated secret error = %v, want ErrSignatureInvalid", err)
	}
}
