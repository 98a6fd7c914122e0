// Package session runs the persistence worker of one editing session.
//
// The editor goroutine owns the buffer and sends Save/Exit messages through
// an unbounded Queue. A single worker goroutine is the only writer of the
// entry's file. For a new entry the first Save inserts and fixes the index,
// every later Save overwrites that index. For an existing entry every Save
// overwrites the known index. The first write error stops the worker and
// any remaining messages are dropped. Close sends Exit, waits for the worker
// and reports the outcome.
package session

import (
	"fmt"
	"sync"

	"github.com/forest6511/cryptlog/pkg/logstore"
)

// Store is the persistence the worker writes through.
type Store interface {
	Insert(date logstore.Date, user string, plaintext []byte, password string) (int, error)
	Overwrite(date logstore.Date, user string, plaintext []byte, password string, index int) error
}

// Result is the final state of a session, valid after Close returns.
type Result struct {
	Index   int   // entry index, -1 if nothing was persisted for a new entry
	Created bool  // true when this session inserted the entry
	Saves   int   // number of Save messages written
	Dropped int   // Save messages discarded after a failure
	Err     error // first write error, if any
}

// Persisted reports whether at least one Save reached the store.
func (r Result) Persisted() bool {
	return r.Saves > 0
}

// Session is one running worker plus its queue.
type Session struct {
	store    Store
	user     string
	date     logstore.Date
	password string

	queue     *Queue
	done      chan struct{}
	closeOnce sync.Once

	// written by the worker only; read after done is closed
	result Result
}

// NewEntry starts a worker for an entry that does not exist yet.
func NewEntry(store Store, user string, date logstore.Date, password string) *Session {
	s := newSession(store, user, date, password)
	s.result.Index = -1
	go s.run(false)
	return s
}

// ExistingEntry starts a worker that overwrites the entry at index.
func ExistingEntry(store Store, user string, date logstore.Date, password string, index int) *Session {
	s := newSession(store, user, date, password)
	s.result.Index = index
	go s.run(true)
	return s
}

func newSession(store Store, user string, date logstore.Date, password string) *Session {
	return &Session{
		store:    store,
		user:     user,
		date:     date,
		password: password,
		queue:    NewQueue(),
		done:     make(chan struct{}),
	}
}

// Send queues m for the worker. It never blocks.
func (s *Session) Send(m Message) {
	s.queue.Send(m)
}

// Done is closed when the worker has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close sends Exit, waits for every earlier Save to be applied and returns
// the result. Later calls return the same result.
func (s *Session) Close() Result {
	s.closeOnce.Do(func() {
		s.queue.Send(ExitMessage())
	})
	<-s.done
	return s.result
}

func (s *Session) run(existing bool) {
	defer close(s.done)
	defer s.queue.Close()

	for {
		msg, ok := s.queue.Receive()
		if !ok || msg.Kind == Exit {
			return
		}
		if msg.Kind != Save {
			continue
		}

		if err := s.persist(existing, msg.Text); err != nil {
			s.result.Err = err
			for _, m := range s.queue.Discard() {
				if m.Kind == Save {
					s.result.Dropped++
				}
			}
			return
		}
		s.result.Saves++
	}
}

func (s *Session) persist(existing bool, text []byte) error {
	if existing || s.result.Created {
		if err := s.store.Overwrite(s.date, s.user, text, s.password, s.result.Index); err != nil {
			return fmt.Errorf("session: save %d of %s index %d: %w", s.result.Saves+1, s.date, s.result.Index, err)
		}
		return nil
	}

	index, err := s.store.Insert(s.date, s.user, text, s.password)
	if err != nil {
		return fmt.Errorf("session: create entry for %s: %w", s.date, err)
	}
	s.result.Index = index
	s.result.Created = true
	return nil
}
