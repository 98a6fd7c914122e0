// Package crypto provides cryptographic primitives for cryptlog.
//
// This package implements AES-256-GCM authenticated encryption, Argon2id key
// derivation and Argon2id password hashing in the PHC string format.
//
// # Security Features
//
//   - AES-256-GCM authenticated encryption with self-describing output
//   - Argon2id key derivation (64MB memory, 3 iterations, 4 threads)
//   - Cryptographically secure random nonce generation
//   - Secure memory wiping for sensitive data
//
// # Example Usage
//
//	// Derive a key from password and the user's stored salt
//	key := crypto.DeriveKey([]byte("password"), salt)
//	defer crypto.SecureWipe(key)
//
//	// Seal an entry (nonce || ciphertext || tag)
//	sealed, err := crypto.Seal(key, plaintext)
//
//	// Open it again
//	plaintext, err := crypto.Open(key, sealed)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. The same values are used when a user is created and
// on every later seal/open, so they must never change for existing data.
const (
	// Argon2Memory is the memory cost in KiB (64MB).
	Argon2Memory = 64 * 1024

	// Argon2Time is the number of iterations.
	Argon2Time = 3

	// Argon2Threads is the degree of parallelism.
	Argon2Threads = 4

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// TagLength is the length of the GCM authentication tag in bytes.
	TagLength = 16
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidNonceLength indicates the nonce is not 12 bytes.
	ErrInvalidNonceLength = errors.New("crypto: invalid nonce length, must be 12 bytes")

	// ErrDecryptionFailed indicates decryption or authentication tag verification failed.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")

	// ErrCiphertextTooShort indicates the ciphertext is shorter than the GCM tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// DeriveKey derives a 256-bit encryption key from a password using Argon2id.
//
// The salt should be the 16-byte per-user salt kept by the key chain.
// Returns a 32-byte key suitable for AES-256 encryption. Callers should
// SecureWipe the key once the seal/open it was derived for is done.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, Argon2Time, Argon2Memory, Argon2Threads, KeyLength)
}

// Encrypt encrypts plaintext using AES-256-GCM authenticated encryption.
//
// The function generates a cryptographically secure random 12-byte nonce
// using crypto/rand. The authentication tag is appended to the ciphertext.
func Encrypt(key, plaintext []byte) (ciphertext []byte, nonce []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)

	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM authenticated encryption.
//
// The function verifies the authentication tag before returning the plaintext.
// If the tag verification fails (indicating tampering, corruption or a wrong
// key), ErrDecryptionFailed is returned and no plaintext is produced.
func Decrypt(key, ciphertext, nonce []byte) (plaintext []byte, err error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err = gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// Seal encrypts plaintext and returns a self-describing blob laid out as
// nonce || ciphertext || tag. Open is its inverse.
func Seal(key, plaintext []byte) ([]byte, error) {
	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// Open verifies and decrypts a blob produced by Seal.
//
// Truncated input is reported as ErrDecryptionFailed, the same as a tampered
// blob or one sealed under a different key.
func Open(key, sealed []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(sealed) < NonceLength+TagLength {
		return nil, ErrDecryptionFailed
	}
	return Decrypt(key, sealed[NonceLength:], sealed[:NonceLength])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
