package backup

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/forest6511/cryptlog/pkg/crypto"
	"github.com/forest6511/cryptlog/pkg/keychain"
)

// Archive layout:
//
//	magic(8) | header length(4) | header JSON | payload length(4) | sealed payload | HMAC(32)
//
// The HMAC covers everything before it. Entries stay sealed under the
// user's entry key inside the payload, which is sealed again under a key
// derived from the password and the archive's own salt.

const (
	FileMode = 0600
	DirMode  = 0700

	auditDirName = "audit"
)

// Layout names the base directories a user's files live in.
type Layout struct {
	KeysDir string
	LogsDir string
}

func (l Layout) keyDir(user string) string   { return filepath.Join(l.KeysDir, user) }
func (l Layout) logDir(user string) string   { return filepath.Join(l.LogsDir, user) }
func (l Layout) auditDir(user string) string { return filepath.Join(l.KeysDir, user, auditDirName) }

// Options configures Backup.
type Options struct {
	Layout
	User         string
	Password     []byte
	IncludeAudit bool
}

// RestoreOptions configures Restore.
type RestoreOptions struct {
	Layout
	Password []byte
	// Overwrite replaces a user that already exists at the target.
	Overwrite bool
	// WithAudit restores the archived audit trail; otherwise an existing
	// trail is kept.
	WithAudit bool
	// DryRun verifies and reports without writing.
	DryRun bool
}

// RestoreResult contains the result of a restore operation.
type RestoreResult struct {
	User            string
	EntriesRestored int
	AuditRestored   bool
	DryRun          bool
}

// VerifyResult contains the result of a verify operation.
type VerifyResult struct {
	Valid         bool
	Version       int
	CreatedAt     time.Time
	User          string
	EntryCount    int
	IncludesAudit bool
	Error         string
}

// Backup writes an encrypted archive of opts.User to w and returns its
// header. The password must be the user's.
func Backup(w io.Writer, opts Options) (*Header, error) {
	user, err := keychain.NormalizeID(opts.User)
	if err != nil {
		return nil, err
	}
	keys := keychain.New(opts.KeysDir)
	if err := keys.ValidAuth(user, string(opts.Password)); err != nil {
		return nil, err
	}

	payload, err := collect(keys, opts.Layout, user, opts.IncludeAudit)
	if err != nil {
		return nil, err
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	encKey, macKey, err := DeriveKeys(opts.Password, salt)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	payloadBytes, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	ciphertext, err := encryptPayload(payloadBytes, encKey)
	if err != nil {
		return nil, err
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		User:      user,
		KDFParams: KDFParams{
			Salt:        salt,
			Memory:      crypto.Argon2Memory,
			Iterations:  crypto.Argon2Time,
			Parallelism: crypto.Argon2Threads,
		},
		IncludesAudit: opts.IncludeAudit,
		EntryCount:    len(payload.Entries),
		ChecksumAlgo:  "sha256",
	}

	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(ciphertext))); err != nil {
		return nil, fmt.Errorf("backup: failed to write payload length: %w", err)
	}
	buf.Write(ciphertext)

	mac := computeHMAC(buf.Bytes(), macKey)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("backup: failed to write archive: %w", err)
	}
	if _, err := w.Write(mac); err != nil {
		return nil, fmt.Errorf("backup: failed to write HMAC: %w", err)
	}
	return header, nil
}

// collect reads the key material, entries and optionally the audit trail
// of user.
func collect(keys *keychain.KeyChain, layout Layout, user string, includeAudit bool) (*Payload, error) {
	salt, err := keys.Salt(user)
	if err != nil {
		return nil, err
	}
	passHash, err := os.ReadFile(keys.PassPath(user))
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read password hash: %w", err)
	}

	payload := &Payload{Salt: salt, PassHash: passHash}
	if payload.Entries, err = readTree(layout.logDir(user)); err != nil {
		return nil, err
	}
	if includeAudit {
		if payload.Audit, err = readTree(layout.auditDir(user)); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// readTree returns every regular file below root. A missing root is empty.
func readTree(root string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, File{Name: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read %s: %w", root, err)
	}
	return files, nil
}

// Verify checks archive integrity with password without restoring.
func Verify(path string, password []byte) (*VerifyResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read archive: %w", err)
	}

	header, _, err := open(data, password)
	if err != nil {
		return &VerifyResult{Valid: false, Error: err.Error()}, nil
	}
	return &VerifyResult{
		Valid:         true,
		Version:       header.Version,
		CreatedAt:     header.CreatedAt,
		User:          header.User,
		EntryCount:    header.EntryCount,
		IncludesAudit: header.IncludesAudit,
	}, nil
}

// Restore verifies the archive at path and writes its user back below
// opts.Layout.
func Restore(path string, opts RestoreOptions) (*RestoreResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read archive: %w", err)
	}
	header, payload, err := open(data, opts.Password)
	if err != nil {
		return nil, err
	}

	user, err := keychain.NormalizeID(header.User)
	if err != nil || user != header.User {
		return nil, fmt.Errorf("%w: user %q", ErrInvalidPath, header.User)
	}
	if len(payload.Salt) != keychain.SaltLength {
		return nil, keychain.ErrSaltCorrupted
	}
	for _, files := range [][]File{payload.Entries, payload.Audit} {
		for _, f := range files {
			if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPath, f.Name)
			}
		}
	}

	keys := keychain.New(opts.KeysDir)
	if exists(opts.keyDir(user)) || exists(opts.logDir(user)) {
		if !opts.Overwrite {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, user)
		}
	}

	result := &RestoreResult{
		User:            user,
		EntriesRestored: len(payload.Entries),
		AuditRestored:   opts.WithAudit && len(payload.Audit) > 0,
		DryRun:          opts.DryRun,
	}
	if opts.DryRun {
		return result, nil
	}

	if err := restoreUser(keys, opts, user, payload); err != nil {
		return nil, err
	}
	return result, nil
}

// restoreUser stages both directories next to their targets and renames
// them into place.
func restoreUser(keys *keychain.KeyChain, opts RestoreOptions, user string, payload *Payload) error {
	for _, dir := range []string{opts.KeysDir, opts.LogsDir} {
		if err := os.MkdirAll(dir, DirMode); err != nil {
			return fmt.Errorf("backup: failed to create %s: %w", dir, err)
		}
	}

	keyStage, err := os.MkdirTemp(opts.KeysDir, ".restore-*")
	if err != nil {
		return fmt.Errorf("backup: failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(keyStage)
	logStage, err := os.MkdirTemp(opts.LogsDir, ".restore-*")
	if err != nil {
		return fmt.Errorf("backup: failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(logStage)

	if err := writeFile(filepath.Join(keyStage, filepath.Base(keys.SaltPath(user))), payload.Salt); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(keyStage, keychain.PassFileName), payload.PassHash); err != nil {
		return err
	}
	if err := writeTree(logStage, payload.Entries); err != nil {
		return err
	}

	auditStage := filepath.Join(keyStage, auditDirName)
	if opts.WithAudit {
		if err := writeTree(auditStage, payload.Audit); err != nil {
			return err
		}
	} else if exists(opts.auditDir(user)) {
		// keep the current trail
		if err := os.Rename(opts.auditDir(user), auditStage); err != nil {
			return fmt.Errorf("backup: failed to keep audit trail: %w", err)
		}
	}

	for _, dir := range []string{opts.keyDir(user), opts.logDir(user)} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("backup: failed to remove %s: %w", dir, err)
		}
	}
	if err := os.Rename(keyStage, opts.keyDir(user)); err != nil {
		return fmt.Errorf("backup: failed to restore key material: %w", err)
	}
	if err := os.Rename(logStage, opts.logDir(user)); err != nil {
		return fmt.Errorf("backup: failed to restore entries: %w", err)
	}
	return nil
}

func writeTree(root string, files []File) error {
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
			return fmt.Errorf("backup: failed to create directory: %w", err)
		}
		if err := writeFile(path, f.Data); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, FileMode); err != nil {
		return fmt.Errorf("backup: failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// open verifies the HMAC of an archive and decrypts its payload.
func open(data, password []byte) (*Header, *Payload, error) {
	if len(password) == 0 {
		return nil, nil, ErrEmptyPassword
	}
	r := bytes.NewReader(data)
	header, err := ReadHeader(r)
	if err != nil {
		return nil, nil, err
	}
	headerEnd := len(data) - r.Len()

	var payloadLen uint32
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return nil, nil, fmt.Errorf("%w: payload length", ErrTruncated)
	}
	if r.Len() != int(payloadLen)+HMACLength {
		return nil, nil, ErrTruncated
	}
	bodyEnd := headerEnd + 4 + int(payloadLen)
	ciphertext := data[headerEnd+4 : bodyEnd]
	storedMAC := data[bodyEnd:]

	encKey, macKey, err := DeriveKeys(password, header.KDFParams.Salt)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	if !verifyHMAC(data[:bodyEnd], storedMAC, macKey) {
		return nil, nil, ErrIntegrityFailed
	}

	plaintext, err := decryptPayload(ciphertext, encKey)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(plaintext)

	payload, err := decodePayload(plaintext)
	if err != nil {
		return nil, nil, err
	}
	return header, payload, nil
}
