// Package backup writes and restores encrypted archives of one journal user.
package backup

import "errors"

// Backup/Restore errors
var (
	// ErrInvalidMagic indicates the archive has an invalid magic number.
	ErrInvalidMagic = errors.New("backup: invalid archive, magic number mismatch")

	// ErrUnsupportedVersion indicates the archive format version is not supported.
	ErrUnsupportedVersion = errors.New("backup: unsupported archive format version")

	// ErrIntegrityFailed indicates the HMAC verification failed.
	ErrIntegrityFailed = errors.New("backup: integrity check failed, HMAC mismatch")

	// ErrDecryptionFailed indicates decryption failed due to invalid password or corruption.
	ErrDecryptionFailed = errors.New("backup: decryption failed, invalid password or corrupted data")

	// ErrTruncated indicates the archive ends before its declared length.
	ErrTruncated = errors.New("backup: archive truncated")

	// ErrUserExists indicates the archived user already exists at the restore target.
	ErrUserExists = errors.New("backup: user already exists at restore target")

	// ErrInvalidPath indicates an archived file name escapes its directory.
	ErrInvalidPath = errors.New("backup: invalid file path in archive")

	// ErrEmptyPassword indicates an empty password was provided.
	ErrEmptyPassword = errors.New("backup: password cannot be empty")
)
