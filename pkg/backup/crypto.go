package backup

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/forest6511/cryptlog/pkg/crypto"
)

const (
	// SaltLength is the length of the archive salt in bytes.
	SaltLength = 32

	// HMACLength is the length of the HMAC-SHA256 in bytes.
	HMACLength = 32

	// KeyLength is the length of derived keys in bytes (256 bits).
	KeyLength = 32
)

// HKDF info strings for key derivation.
const (
	hkdfInfoEncryption = "cryptlog-backup-encryption"
	hkdfInfoMAC        = "cryptlog-backup-mac"
)

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("backup: failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKeys derives the encryption and MAC keys of an archive from the
// password and the archive's own salt.
func DeriveKeys(password, salt []byte) (encKey, macKey []byte, err error) {
	if len(password) == 0 {
		return nil, nil, ErrEmptyPassword
	}

	masterKey := crypto.DeriveKey(password, salt)
	defer crypto.SecureWipe(masterKey)

	encKey, err = deriveHKDF(masterKey, []byte(hkdfInfoEncryption))
	if err != nil {
		return nil, nil, fmt.Errorf("backup: failed to derive encryption key: %w", err)
	}

	macKey, err = deriveHKDF(masterKey, []byte(hkdfInfoMAC))
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, fmt.Errorf("backup: failed to derive MAC key: %w", err)
	}

	return encKey, macKey, nil
}

// deriveHKDF derives a key using HKDF-SHA256.
func deriveHKDF(secret, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// encryptPayload seals the encoded payload as nonce||ciphertext||tag.
func encryptPayload(plaintext, key []byte) ([]byte, error) {
	sealed, err := crypto.Seal(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("backup: encryption failed: %w", err)
	}
	return sealed, nil
}

// decryptPayload opens a sealed payload.
func decryptPayload(data, key []byte) ([]byte, error) {
	plaintext, err := crypto.Open(key, data)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// computeHMAC computes HMAC-SHA256 over data.
func computeHMAC(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// verifyHMAC verifies the HMAC-SHA256 of data.
func verifyHMAC(data, expectedMAC, key []byte) bool {
	return hmac.Equal(computeHMAC(data, key), expectedMAC)
}
