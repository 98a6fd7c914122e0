package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// HashSaltLength is the length of the random salt embedded in password hashes.
const HashSaltLength = 16

// Password hash errors.
var (
	// ErrInvalidHash indicates the encoded hash is not a PHC argon2id string.
	ErrInvalidHash = errors.New("crypto: invalid encoded password hash")

	// ErrParamMismatch indicates the encoded hash was produced with different
	// algorithm, version or cost parameters than the ones this package uses.
	ErrParamMismatch = errors.New("crypto: password hash parameters do not match")

	// ErrPasswordMismatch indicates the password does not match the hash.
	ErrPasswordMismatch = errors.New("crypto: password does not match")
)

var b64 = base64.RawStdEncoding

// HashPassword hashes a password with Argon2id and returns it encoded as
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
//
// with raw standard base64 for salt and hash.
func HashPassword(password []byte) (string, error) {
	salt := make([]byte, HashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("crypto: failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(password, salt, Argon2Time, Argon2Memory, Argon2Threads, KeyLength)
	defer SecureWipe(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Threads,
		b64.EncodeToString(salt), b64.EncodeToString(hash)), nil
}

// VerifyPassword checks password against an encoded hash from HashPassword.
//
// Returns nil on match, ErrPasswordMismatch on a wrong password,
// ErrInvalidHash for malformed input and ErrParamMismatch when the cost
// parameters differ from the fixed ones.
func VerifyPassword(encoded string, password []byte) error {
	salt, want, err := decodeHash(encoded)
	if err != nil {
		return err
	}

	got := argon2.IDKey(password, salt, Argon2Time, Argon2Memory, Argon2Threads, uint32(len(want)))
	defer SecureWipe(got)

	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

func decodeHash(encoded string) (salt, hash []byte, err error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, nil, ErrInvalidHash
	}
	if parts[1] != "argon2id" {
		return nil, nil, ErrParamMismatch
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return nil, nil, ErrParamMismatch
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, nil, ErrInvalidHash
	}
	if memory != Argon2Memory || iterations != Argon2Time || threads != Argon2Threads {
		return nil, nil, ErrParamMismatch
	}

	salt, err = b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, nil, ErrInvalidHash
	}
	hash, err = b64.DecodeString(parts[5])
	if err != nil || len(hash) != KeyLength {
		return nil, nil, ErrInvalidHash
	}
	return salt, hash, nil
}
