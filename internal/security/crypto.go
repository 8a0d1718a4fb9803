package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinSecretLength is the shortest session secret Sealer accepts.
	MinSecretLength = 32

	sealerIterations = 100000
)

// sealerSalt binds derived keys to this application; the secret carries the entropy.
var sealerSalt = []byte("nextday-freebusy/login-transaction/v1")

// Sealer encrypts and authenticates short-lived values (pending login
// transactions) with a key derived from the session secret.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256-GCM key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < MinSecretLength {
		return nil, NewCryptoError("key_derivation", fmt.Sprintf("secret must be at least %d characters", MinSecretLength))
	}

	derivedKey := pbkdf2.Key([]byte(secret), sealerSalt, sealerIterations, 32, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, NewCryptoError("key_derivation", "failed to create cipher").WithCause(err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewCryptoError("key_derivation", "failed to create GCM").WithCause(err)
	}

	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext and returns URL-safe base64 ciphertext. The
// additional data binds the ciphertext to a context such as a store key.
func (s *Sealer) Seal(plaintext, additionalData []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", NewCryptoError("seal", "plaintext cannot be empty")
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", NewCryptoError("seal", "failed to generate nonce").WithCause(err)
	}

	ciphertext := s.aead.Seal(nonce, nonce, plaintext, additionalData)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. It fails if the value was produced with another
// secret, other additional data, or was modified.
func (s *Sealer) Open(sealed string, additionalData []byte) ([]byte, error) {
	if sealed == "" {
		return nil, NewCryptoError("open", "ciphertext cannot be empty")
	}

	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, NewCryptoError("open", "invalid base64 encoding").WithCause(err)
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, NewCryptoError("open", "ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, NewCryptoError("open", "authentication failed").WithCause(err)
	}

	return plaintext, nil
}

// GenerateToken returns n random bytes, hex encoded.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
