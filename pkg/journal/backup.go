package journal

import (
	"errors"
	"fmt"
	"io"

	"github.com/forest6511/cryptlog/pkg/audit"
	"github.com/forest6511/cryptlog/pkg/backup"
)

// Backup writes an encrypted archive of the account to w. The archive is
// protected by the account password.
func (a *Account) Backup(w io.Writer, includeAudit bool) (*backup.Header, error) {
	if includeAudit && a.audit == nil {
		return nil, ErrAuditDisabled
	}
	header, err := backup.Backup(w, backup.Options{
		Layout:       a.j.layout(),
		User:         a.user,
		Password:     []byte(a.password),
		IncludeAudit: includeAudit,
	})
	if err != nil {
		if a.audit != nil {
			_ = a.audit.LogError(audit.OpBackupCreate, audit.SourceCLI, "", "IO_ERROR", err.Error())
		}
		return nil, err
	}
	if a.audit != nil {
		_ = a.audit.Log(audit.OpBackupCreate, audit.SourceCLI, audit.ResultSuccess, "", nil,
			map[string]interface{}{
				"entries":       header.EntryCount,
				"include_audit": includeAudit,
			})
	}
	return header, nil
}

// RestoreOptions configures Journal.Restore.
type RestoreOptions struct {
	Overwrite bool
	WithAudit bool
	DryRun    bool
}

// Restore writes the user of the archive at path back into the journal and
// rebuilds that user's catalog records. password is the archive's password,
// which is also the restored user's.
func (j *Journal) Restore(path, password string, opts RestoreOptions) (*backup.RestoreResult, error) {
	res, err := backup.Restore(path, backup.RestoreOptions{
		Layout:    j.layout(),
		Password:  []byte(password),
		Overwrite: opts.Overwrite,
		WithAudit: opts.WithAudit,
		DryRun:    opts.DryRun,
	})
	if err != nil || res.DryRun {
		return res, err
	}

	acct, err := j.Login(res.User, password)
	if err != nil {
		return res, fmt.Errorf("journal: restored user cannot log in: %w", err)
	}
	if acct.audit != nil {
		_ = acct.audit.Log(audit.OpRestore, audit.SourceCLI, audit.ResultSuccess, "", nil,
			map[string]interface{}{
				"entries":    res.EntriesRestored,
				"with_audit": res.AuditRestored,
			})
	}
	if err := acct.reindex(); err != nil {
		return res, wrapCatalog(err)
	}
	return res, nil
}

// reindex replaces the catalog records of the account with one record per
// entry on disk.
func (a *Account) reindex() error {
	c := a.j.catalog
	if c == nil {
		return nil
	}
	if err := c.Forget(a.user); err != nil {
		return err
	}

	dates, err := a.Dates()
	if errors.Is(err, ErrNoLogs) {
		return nil
	}
	if err != nil {
		return err
	}
	now := a.j.now()
	for _, date := range dates {
		logs, err := a.j.logs.History(date, a.user, a.password)
		if err != nil {
			return err
		}
		for _, l := range logs {
			if err := c.Record(a.user, date, l.Index, len(l.Plaintext), now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (j *Journal) layout() backup.Layout {
	return backup.Layout{KeysDir: j.cfg.KeysDir, LogsDir: j.cfg.LogsDir}
}
