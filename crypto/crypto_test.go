package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testService(t *testing.T) *Service {
	t.Helper()

	svc, err := New(Config{
		LookupSalt: "test-lookup-salt",
		AESKey:     bytes.Repeat([]byte{0x7a}, 32),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return svc
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := New(Config{LookupSalt: "s", AESKey: bytes.Repeat([]byte{1}, size)})
		if !errors.Is(err, ErrInvalidKeyLength) {
			t.Fatalf("key size %d: expected ErrInvalidKeyLength, got %v", size, err)
		}
	}
}

func TestNewRejectsEmptySalt(t *testing.T) {
	_, err := New(Config{LookupSalt: "  ", AESKey: bytes.Repeat([]byte{1}, 32)})
	if !errors.Is(err, ErrMissingLookupSalt) {
		t.Fatalf("expected ErrMissingLookupSalt, got %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := testService(t)

	for _, plaintext := range []string{"", "Fatima Al Mansoori", "784-1990-1234567-1", strings.Repeat("x", 4096)} {
		envelope, err := svc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}

		got, err := svc.Decrypt(envelope)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestEncryptProducesDistinctEnvelopes(t *testing.T) {
	svc := testService(t)

	first, err := svc.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	second, err := svc.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if first == second {
		t.Fatal("two encryptions of the same plaintext produced identical envelopes")
	}
}

func TestDecryptRejectsTamperedEnvelope(t *testing.T) {
	svc := testService(t)

	envelope, err := svc.Encrypt("secret profile data")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip one character of the base64 payload.
	tampered := []byte(envelope)
	if tampered[len(tampered)-5] == 'A' {
		tampered[len(tampered)-5] = 'B'
	} else {
		tampered[len(tampered)-5] = 'A'
	}

	if _, err := svc.Decrypt(string(tampered)); err == nil {
		t.Fatal("expected tampered envelope to fail decryption")
	}
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	svc := testService(t)

	if _, err := svc.Decrypt("not-base64!!"); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
	if _, err := svc.Decrypt("dG9vLXNob3J0"); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope for truncated envelope, got %v", err)
	}
}

func TestHashLookupDeterministic(t *testing.T) {
	svc := testService(t)

	a := svc.HashLookup("user@example.com")
	b := svc.HashLookup("user@example.com")
	if a != b {
		t.Fatal("HashLookup must be deterministic for equal inputs")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}

	if svc.HashLookup("user@example.com") == svc.HashLookup("other@example.com") {
		t.Fatal("different inputs must produce different digests")
	}
}

func TestHashLookupSaltSeparation(t *testing.T) {
	first := testService(t)
	second, err := New(Config{
		LookupSalt: "a-different-salt",
		AESKey:     bytes.Repeat([]byte{0x7a}, 32),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if first.HashLookup("784-1990-1234567-1") == second.HashLookup("784-1990-1234567-1") {
		t.Fatal("different salts must produce different digests for the same input")
	}
}

func TestHashEphemeralIsUnsalted(t *testing.T) {
	svc := testService(t)

	// sha256("482910") with no salt involved.
	if svc.HashEphemeral("482910") == svc.HashLookup("482910") {
		t.Fatal("ephemeral and lookup hashing must differ")
	}
	if svc.HashEphemeral("482910") != testService(t).HashEphemeral("482910") {
		t.Fatal("ephemeral hashing must not depend on service configuration")
	}
}

func TestGenerateNumericCode(t *testing.T) {
	for _, length := range []int{4, 6, 8} {
		code, err := GenerateNumericCode(length)
		if err != nil {
			t.Fatalf("GenerateNumericCode(%d) failed: %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("expected %d digits, got %q", length, code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit %q in code %q", r, code)
			}
		}
	}

	if _, err := GenerateNumericCode(0); !errors.Is(err, ErrInvalidCodeLength) {
		t.Fatalf("expected ErrInvalidCodeLength, got %v", err)
	}
}
