package security

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdefghijklmnopqrstuvwxyzABCD"

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("Failed to create Sealer: %v", err)
	}

	payload := []byte(`{"state":"abc","nonce":"def","code_verifier":"ghi"}`)
	aad := []byte("txn:abc")

	sealed, err := sealer.Seal(payload, aad)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if bytes.Contains([]byte(sealed), payload) {
		t.Error("sealed value contains the plaintext")
	}

	opened, err := sealer.Open(sealed, aad)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if !bytes.Equal(opened, payload) {
		t.Errorf("Open returned %s, want %s", opened, payload)
	}
}

func TestSealerRejectsShortSecret(t *testing.T) {
	_, err := NewSealer("too-short")
	if err == nil {
		t.Fatal("expected error for short secret")
	}

	var cryptoErr *CryptoError
	if !errors.As(err, &cryptoErr) {
		t.Fatalf("expected CryptoError, got %T", err)
	}
}

func TestSealerEmptyInput(t *testing.T) {
	sealer, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("Failed to create Sealer: %v", err)
	}

	if _, err := sealer.Seal(nil, nil); err == nil {
		t.Error("Expected error for empty plaintext, got nil")
	}

	if _, err := sealer.Open("", nil); err == nil {
		t.Error("Expected error for empty ciphertext, got nil")
	}
}

func TestSealerInvalidInput(t *testing.T) {
	sealer, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("Failed to create Sealer: %v", err)
	}

	if _, err := sealer.Open("invalid_base64!", nil); err == nil {
		t.Error("Expected error for invalid base64, got nil")
	}

	if _, err := sealer.Open("dGVzdA", nil); err == nil {
		t.Error("Expected error for short ciphertext, got nil")
	}
}

func TestSealerBindsAdditionalData(t *testing.T) {
	sealer, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("Failed to create Sealer: %v", err)
	}

	sealed, err := sealer.Seal([]byte("payload"), []byte("txn:one"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := sealer.Open(sealed, []byte("txn:two")); err == nil {
		t.Error("Open succeeded with different additional data")
	}
}

func TestSealerSecretsAreIndependent(t *testing.T) {
	first, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("Failed to create first Sealer: %v", err)
	}
	second, err := NewSealer(strings.ToUpper(testSecret) + "-rotated")
	if err != nil {
		t.Fatalf("Failed to create second Sealer: %v", err)
	}
	same, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("Failed to create third Sealer: %v", err)
	}

	sealed, err := first.Seal([]byte("payload"), nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := second.Open(sealed, nil); err == nil {
		t.Error("value sealed with one secret opened with another")
	}
	if _, err := same.Open(sealed, nil); err != nil {
		t.Errorf("value did not open with the same secret: %v", err)
	}
}

func TestSealerUniqueness(t *testing.T) {
	sealer, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("Failed to create Sealer: %v", err)
	}

	a, _ := sealer.Seal([]byte("same"), nil)
	b, _ := sealer.Seal([]byte("same"), nil)
	if a == b {
		t.Error("Two seals of the same plaintext produced identical ciphertext")
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	b, _ := GenerateToken(32)

	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("GenerateToken returned the same value twice")
	}
}

func TestRedactString(t *testing.T) {
	tests := []struct {
		input   string
		secret  string
		keepKey string
	}{
		{"Authorization: Bearer ya29.a0AfH6SMC", "ya29.a0AfH6SMC", ""},
		{`{"access_token":"ya29.abcdef"}`, "ya29.abcdef", "access_token"},
		{"client_secret=GOCSPX-abcdefghijklmnop", "GOCSPX-abcdefghijklmnop", "client_secret"},
		{"http://localhost:3000/auth/callback?code=4/0AbCdEfGh&state=xyz", "4/0AbCdEfGh", "code="},
	}

	for _, tt := range tests {
		got := RedactString(tt.input)
		if strings.Contains(got, tt.secret) {
			t.Errorf("RedactString(%q) = %q, secret still present", tt.input, got)
		}
		if !strings.Contains(got, "[REDACTED]") {
			t.Errorf("RedactString(%q) = %q, no redaction marker", tt.input, got)
		}
		if tt.keepKey != "" && !strings.Contains(got, tt.keepKey) {
			t.Errorf("RedactString(%q) = %q, key %q lost", tt.input, got, tt.keepKey)
		}
	}

	if got := RedactString("user logged in"); got != "user logged in" {
		t.Errorf("plain text changed: %q", got)
	}
}

func TestMask(t *testing.T) {
	if got := Mask("abcdefgh"); got != "abcd****" {
		t.Errorf("Mask = %q", got)
	}
	if got := Mask("abc"); got != "****" {
		t.Errorf("Mask = %q", got)
	}
}

func BenchmarkSeal(b *testing.B) {
	sealer, err := NewSealer(testSecret)
	if err != nil {
		b.Fatalf("Failed to create Sealer: %v", err)
	}

	payload := []byte(`{"state":"0123456789abcdef","nonce":"fedcba9876543210","code_verifier":"verifier"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sealer.Seal(payload, nil); err != nil {
			b.Fatalf("Seal failed: %v", err)
		}
	}
}
