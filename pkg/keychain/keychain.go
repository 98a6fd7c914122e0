// Package keychain manages per-user authentication material on disk.
//
// Each user owns one directory below the keys base directory:
//
//	<keys>/<user>/<user>.txt   16 raw salt bytes used for key derivation
//	<keys>/<user>/pass.txt     encoded Argon2id password hash
//
// The salt feeds crypto.DeriveKey for every seal/open; the password hash only
// gates access. Verification failures of any kind are reported as
// ErrNotAuthorized so callers cannot tell an unknown user from a wrong
// password.
package keychain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forest6511/cryptlog/pkg/crypto"

	"golang.org/x/text/unicode/norm"
)

// Constants
const (
	SaltLength   = 16 // 128-bit salt
	PassFileName = "pass.txt"
	FileMode     = 0600 // Owner read/write only
	DirMode      = 0700 // Owner read/write/execute only
	MaxIDLength  = 64
)

// Errors
var (
	ErrNotAuthorized    = errors.New("keychain: not authorized")
	ErrUserExists       = errors.New("keychain: user already exists")
	ErrInvalidUserID    = errors.New("keychain: invalid user id")
	ErrSaltNotFound     = errors.New("keychain: salt file not found")
	ErrSaltCorrupted    = errors.New("keychain: salt file is corrupted")
	ErrPasswordTooShort = errors.New("keychain: password too short")
	ErrPasswordTooLong  = errors.New("keychain: password too long")
)

// KeyChain reads and writes user key material below a base directory.
type KeyChain struct {
	dir string
}

// New returns a KeyChain rooted at dir.
func New(dir string) *KeyChain {
	return &KeyChain{dir: dir}
}

// Dir returns the keys base directory.
func (k *KeyChain) Dir() string {
	return k.dir
}

// NormalizeID returns the canonical (NFC) form of a user id, or
// ErrInvalidUserID if it cannot be used as a directory name.
func NormalizeID(id string) (string, error) {
	id = norm.NFC.String(strings.TrimSpace(id))
	if id == "" || len(id) > MaxIDLength {
		return "", ErrInvalidUserID
	}
	if id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: cannot start with '.'", ErrInvalidUserID)
	}
	if strings.ContainsAny(id, `/\:*?"<>|`) || strings.ContainsRune(id, 0) {
		return "", fmt.Errorf("%w: %q contains a reserved character", ErrInvalidUserID, id)
	}
	// the salt file <id>.txt would be the password file
	if id+".txt" == PassFileName {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidUserID, id)
	}
	return id, nil
}

// UserDir returns the directory holding id's key material.
func (k *KeyChain) UserDir(id string) string {
	return filepath.Join(k.dir, id)
}

// SaltPath returns the salt file of id.
func (k *KeyChain) SaltPath(id string) string {
	return filepath.Join(k.dir, id, id+".txt")
}

// PassPath returns the password hash file of id.
func (k *KeyChain) PassPath(id string) string {
	return filepath.Join(k.dir, id, PassFileName)
}

// CreateUser creates a new user:
// 1. Create the user's key directory
// 2. Generate a random salt and save it to <id>.txt
// 3. Hash the password and save the encoded hash to pass.txt
func (k *KeyChain) CreateUser(id, password string) error {
	id, err := NormalizeID(id)
	if err != nil {
		return err
	}
	if err := ValidatePasswordLength(password); err != nil {
		return err
	}
	if err := os.MkdirAll(k.UserDir(id), DirMode); err != nil {
		return fmt.Errorf("keychain: failed to create key directory: %w", err)
	}

	// An existing directory is reused only when it holds neither file.
	for _, p := range []string{k.SaltPath(id), k.PassPath(id)} {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%w: %s already present", ErrUserExists, filepath.Base(p))
		}
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("keychain: failed to generate salt: %w", err)
	}
	if err := writeExclusive(k.SaltPath(id), salt); err != nil {
		return fmt.Errorf("keychain: failed to write salt file: %w", err)
	}

	hash, err := crypto.HashPassword([]byte(password))
	if err != nil {
		_ = os.Remove(k.SaltPath(id))
		return fmt.Errorf("keychain: failed to hash password: %w", err)
	}
	if err := writeExclusive(k.PassPath(id), []byte(hash)); err != nil {
		_ = os.Remove(k.SaltPath(id))
		return fmt.Errorf("keychain: failed to write password file: %w", err)
	}

	return nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// ValidAuth verifies password for id. It returns nil or ErrNotAuthorized.
func (k *KeyChain) ValidAuth(id, password string) error {
	id, err := NormalizeID(id)
	if err != nil {
		return ErrNotAuthorized
	}

	encoded, err := os.ReadFile(k.PassPath(id))
	if err != nil {
		return ErrNotAuthorized
	}
	if err := crypto.VerifyPassword(string(encoded), []byte(password)); err != nil {
		return ErrNotAuthorized
	}
	return nil
}

// Salt returns the persisted 16-byte salt of id.
func (k *KeyChain) Salt(id string) ([]byte, error) {
	id, err := NormalizeID(id)
	if err != nil {
		return nil, err
	}

	salt, err := os.ReadFile(k.SaltPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSaltNotFound
		}
		return nil, fmt.Errorf("keychain: failed to read salt file: %w", err)
	}
	if len(salt) != SaltLength {
		return nil, ErrSaltCorrupted
	}
	return salt, nil
}

// DeriveKey derives id's entry key from password and the stored salt.
// The caller owns the returned key and should wipe it after use.
func (k *KeyChain) DeriveKey(id, password string) ([]byte, error) {
	salt, err := k.Salt(id)
	if err != nil {
		return nil, err
	}
	return crypto.DeriveKey([]byte(password), salt), nil
}

// Exists reports whether id has a password file.
func (k *KeyChain) Exists(id string) bool {
	id, err := NormalizeID(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(k.PassPath(id))
	return err == nil
}

// Users lists the ids of fully created users, sorted by name.
func (k *KeyChain) Users() ([]string, error) {
	entries, err := os.ReadDir(k.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain: failed to list users: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() && k.Exists(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
