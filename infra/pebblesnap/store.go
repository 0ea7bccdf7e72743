// Package pebblesnap shares pebble snapshots between concurrent readers.
//
// Readers that ask for a snapshot while no write has happened since the
// last one get the same *pebble.Snapshot. A write invalidates the shared
// snapshot for new readers; readers already holding it keep a consistent
// view, and the snapshot is closed when the last of them releases it.
package pebblesnap

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/go-logr/logr"

	"sharedref/domain/ownership"
)

var (
	ErrClosed        = errors.New("pebblesnap: store closed")
	ErrSnapshotsOpen = errors.New("pebblesnap: snapshots still open")
)

// Snapshot is a shared reference to a pebble snapshot.
type Snapshot = ownership.Shared[pebble.Snapshot]

// Store is safe for concurrent use. Snapshots it hands out must be given
// back with Release.
type Store struct {
	mu      sync.Mutex
	db      *pebble.DB
	log     logr.Logger
	opts    []ownership.Option
	current ownership.Weak[pebble.Snapshot]
	issued  []ownership.Weak[pebble.Snapshot]
	closed  bool
}

// Open opens the pebble database in dir.
func Open(dir string, popts *pebble.Options, log logr.Logger, opts ...ownership.Option) (*Store, error) {
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, errors.Wrapf(err, "pebblesnap: open %s", dir)
	}
	return New(db, log, opts...), nil
}

// New wraps db, which the store then owns.
func New(db *pebble.DB, log logr.Logger, opts ...ownership.Option) *Store {
	return &Store{
		db:   db,
		log:  log,
		opts: append(append([]ownership.Option{}, opts...), ownership.WithLogger(log)),
	}
}

// Snapshot returns the shared snapshot, taking a new one if every holder
// of the previous one has released it or a write happened since.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}

	if snap := s.current.Lock(); snap.Valid() {
		return snap, nil
	}

	snap, err := ownership.NewWithDeleter(s.db.NewSnapshot(), s.closeSnapshot, s.opts...)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "pebblesnap: share snapshot")
	}
	s.current.AssignShared(snap)
	s.issued = append(s.pruneLocked(), snap.Weak())
	return snap, nil
}

func (s *Store) closeSnapshot(snap *pebble.Snapshot) {
	if err := snap.Close(); err != nil {
		s.log.Error(err, "close snapshot")
	}
}

// Release gives back a snapshot obtained from Snapshot and empties it.
func (s *Store) Release(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Release()
}

// Set writes key durably. Later calls to Snapshot observe it.
func (s *Store) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.Set(key, value, pebble.Sync); err != nil {
		return errors.Wrapf(err, "pebblesnap: set %q", key)
	}
	s.current.Reset()
	return nil
}

func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return errors.Wrapf(err, "pebblesnap: delete %q", key)
	}
	s.current.Reset()
	return nil
}

// OpenSnapshots returns how many snapshots are still held by readers.
func (s *Store) OpenSnapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = s.pruneLocked()
	return len(s.issued)
}

func (s *Store) pruneLocked() []ownership.Weak[pebble.Snapshot] {
	live := s.issued[:0]
	for i := range s.issued {
		if s.issued[i].Expired() {
			s.issued[i].Release()
			continue
		}
		live = append(live, s.issued[i])
	}
	for i := len(live); i < len(s.issued); i++ {
		s.issued[i] = ownership.Weak[pebble.Snapshot]{}
	}
	return live
}

// Close closes the database. It fails with ErrSnapshotsOpen while any
// reader still holds a snapshot.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.issued = s.pruneLocked()
	if n := len(s.issued); n > 0 {
		return errors.Wrapf(ErrSnapshotsOpen, "%d open", n)
	}
	s.current.Reset()
	s.closed = true
	return errors.Wrap(s.db.Close(), "pebblesnap: close")
}

// Get reads key from snap. The returned slice is a copy.
func Get(snap Snapshot, key []byte) ([]byte, error) {
	if !snap.Valid() {
		return nil, errors.New("pebblesnap: empty snapshot")
	}
	v, closer, err := snap.Get().Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}
