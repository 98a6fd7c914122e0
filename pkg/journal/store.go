package journal

import (
	"errors"
	"time"

	"github.com/forest6511/cryptlog/pkg/audit"
	"github.com/forest6511/cryptlog/pkg/catalog"
	"github.com/forest6511/cryptlog/pkg/logstore"
)

// recordingStore is the session.Store of journal sessions. After each
// successful write it updates the catalog and appends an audit event.
// It is used by the worker goroutine only; err is read after the worker
// has stopped.
type recordingStore struct {
	logs    *logstore.Store
	catalog *catalog.Catalog
	audit   *audit.Logger
	now     func() time.Time

	err error // catalog failures, joined
}

func (r *recordingStore) Insert(date logstore.Date, user string, plaintext []byte, password string) (int, error) {
	index, err := r.logs.Insert(date, user, plaintext, password)
	if err != nil {
		r.logError(audit.OpEntryCreate, date.String(), err)
		return 0, err
	}
	r.record(audit.OpEntryCreate, user, date, index, len(plaintext))
	return index, nil
}

func (r *recordingStore) Overwrite(date logstore.Date, user string, plaintext []byte, password string, index int) error {
	if err := r.logs.Overwrite(date, user, plaintext, password, index); err != nil {
		r.logError(audit.OpEntrySave, audit.EntryRef(date.String(), index), err)
		return err
	}
	r.record(audit.OpEntrySave, user, date, index, len(plaintext))
	return nil
}

func (r *recordingStore) record(op, user string, date logstore.Date, index, size int) {
	if r.catalog != nil {
		if err := r.catalog.Record(user, date, index, size, r.now()); err != nil {
			r.err = errors.Join(r.err, wrapCatalog(err))
		}
	}
	if r.audit != nil {
		_ = r.audit.Log(op, audit.SourceWorker, audit.ResultSuccess, audit.EntryRef(date.String(), index), nil,
			map[string]interface{}{"size": size})
	}
}

func (r *recordingStore) logError(op, entry string, err error) {
	if r.audit != nil {
		_ = r.audit.LogError(op, audit.SourceWorker, entry, errorCode(err), err.Error())
	}
}
