// Package credential implements at-rest encryption for provider credential
// handles: the xtream-style provider's account password and the messaging
// provider's session blob are never persisted in plaintext.
//
// Encryption Algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per encryption
//   - Key derived from a master key via HKDF-SHA256
//
// Example:
//
//	enc, err := credential.NewEncryptor(masterKey)
//	handle, err := enc.Encrypt(providerAConfig.Password)
//	password, err := enc.Decrypt(handle)
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// encryptionSalt is a fixed, application-specific salt binding derived
	// keys to this credential-encryption use case.
	encryptionSalt = "nxcatalog-credential-handles"

	encryptionInfo = "credential-encryption-v1"
	aesKeySize     = 32
	gcmNonceSize   = 12
)

var (
	ErrEmptyMasterKey     = errors.New("master key cannot be empty")
	ErrEmptyPlaintext     = errors.New("plaintext cannot be empty")
	ErrEmptyCiphertext    = errors.New("ciphertext cannot be empty")
	ErrDecryptionFailed   = errors.New("decryption failed: invalid ciphertext or authentication tag")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext format")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// Encryptor provides AES-256-GCM encryption for provider credential handles.
type Encryptor struct {
	cipher cipher.AEAD
}

// NewEncryptor derives a 256-bit AES key from masterKey via HKDF-SHA256 and
// returns a ready-to-use Encryptor.
func NewEncryptor(masterKey string) (*Encryptor, error) {
	if masterKey == "" {
		return nil, ErrEmptyMasterKey
	}

	key, err := deriveKey(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{cipher: gcm}, nil
}

// Encrypt encrypts plaintext and returns a base64-encoded handle:
// base64(nonce || ciphertext || tag).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := e.cipher.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(handle string) (string, error) {
	if handle == "" {
		return "", ErrEmptyCiphertext
	}

	data, err := base64.StdEncoding.DecodeString(handle)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed: %s", ErrInvalidCiphertext, err.Error())
	}

	minLength := gcmNonceSize + 1 + e.cipher.Overhead()
	if len(data) < minLength {
		return "", ErrCiphertextTooShort
	}

	nonce := data[:gcmNonceSize]
	encryptedData := data[gcmNonceSize:]

	plaintext, err := e.cipher.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// MaskCredential returns a masked version of a credential for logging,
// showing only the last 4 characters.
func MaskCredential(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****..." + v[len(v)-4:]
}

func deriveKey(masterKey string) ([]byte, error) {
	hkdfReader := hkdf.New(sha256.New, []byte(masterKey), []byte(encryptionSalt), []byte(encryptionInfo))

	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}
	return key, nil
}

// SelfTest performs a round-trip encrypt/decrypt check to validate that the
// encryptor is configured correctly.
func (e *Encryptor) SelfTest() error {
	const probe = "encryption-validation-test"

	encrypted, err := e.Encrypt(probe)
	if err != nil {
		return fmt.Errorf("encryption self-test failed: %w", err)
	}

	decrypted, err := e.Decrypt(encrypted)
	if err != nil {
		return fmt.Errorf("decryption self-test failed: %w", err)
	}

	if decrypted != probe {
		return errors.New("round-trip self-test failed: data mismatch")
	}

	return nil
}
