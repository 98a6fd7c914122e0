// Package journal composes the key chain, log store, catalog and audit trail
// into the operations the command line offers.
//
// Every entry operation goes through an Account, which exists only after
// Login verified the user's password. Writes run in a session.Session whose
// store records each persisted save in the catalog and the audit trail.
package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/forest6511/cryptlog/internal/config"
	"github.com/forest6511/cryptlog/pkg/audit"
	"github.com/forest6511/cryptlog/pkg/catalog"
	"github.com/forest6511/cryptlog/pkg/crypto"
	"github.com/forest6511/cryptlog/pkg/keychain"
	"github.com/forest6511/cryptlog/pkg/logstore"
)

// Errors
var (
	ErrCatalogDisabled = errors.New("journal: catalog is disabled")
	ErrAuditDisabled   = errors.New("journal: audit is disabled")
	ErrNoLogs          = errors.New("journal: user does not have any logs")
)

// Journal is the opened journal of one installation.
type Journal struct {
	cfg     *config.Config
	keys    *keychain.KeyChain
	logs    *logstore.Store
	catalog *catalog.Catalog // nil when disabled
	now     func() time.Time
}

// Open opens the journal described by cfg. The catalog database is created
// on first use when enabled.
func Open(cfg *config.Config) (*Journal, error) {
	keys := keychain.New(cfg.KeysDir)
	j := &Journal{
		cfg:  cfg,
		keys: keys,
		logs: logstore.New(cfg.LogsDir, keys),
		now:  time.Now,
	}

	if cfg.Catalog {
		c, err := catalog.Open(cfg.CatalogPath())
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		j.catalog = c
	}
	return j, nil
}

// Close releases the catalog.
func (j *Journal) Close() error {
	if j.catalog == nil {
		return nil
	}
	return j.catalog.Close()
}

// Config returns the configuration the journal was opened with.
func (j *Journal) Config() *config.Config {
	return j.cfg
}

// Users returns the registered user ids.
func (j *Journal) Users() ([]string, error) {
	return j.keys.Users()
}

// CreateUser registers user with password and opens the user's audit trail.
func (j *Journal) CreateUser(user, password string) error {
	if err := j.keys.CreateUser(user, password); err != nil {
		return err
	}
	id, _ := keychain.NormalizeID(user)

	if lg := j.auditLogger(id); lg != nil {
		if err := j.unlockAudit(lg, id, password); err != nil {
			return err
		}
		_ = lg.LogSuccess(audit.OpUserCreate, audit.SourceCLI, "")
	}
	return nil
}

// Login verifies password for user and returns the user's account.
// Failures are ErrNotAuthorized whatever their cause.
func (j *Journal) Login(user, password string) (*Account, error) {
	id, err := keychain.NormalizeID(user)
	if err != nil {
		return nil, keychain.ErrNotAuthorized
	}
	lg := j.auditLogger(id)

	if err := j.keys.ValidAuth(id, password); err != nil {
		if lg != nil && j.keys.Exists(id) {
			_ = lg.RecordFailure()
		}
		return nil, err
	}

	if lg != nil {
		if err := j.unlockAudit(lg, id, password); err != nil {
			return nil, err
		}
		_, _ = lg.FlushFailures(audit.SourceCLI)
		_ = lg.LogSuccess(audit.OpAuthSuccess, audit.SourceCLI, "")
	}

	return &Account{
		j:        j,
		user:     id,
		password: password,
		audit:    lg,
	}, nil
}

func (j *Journal) auditLogger(id string) *audit.Logger {
	if !j.cfg.Audit {
		return nil
	}
	return audit.NewLogger(j.cfg.AuditDir(id), id)
}

func (j *Journal) unlockAudit(lg *audit.Logger, id, password string) error {
	key, err := j.keys.DeriveKey(id, password)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(key)

	if err := lg.SetHMACKey(key); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}
