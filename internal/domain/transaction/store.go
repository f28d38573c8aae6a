package transaction

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

// Snapshot is an immutable view of the store at one committed version
type Snapshot struct {
	version uint64
	records []Transaction
}

// Version increases with every committed mutation.
func (s Snapshot) Version() uint64 {
	return s.version
}

// Len returns the number of records in the snapshot.
func (s Snapshot) Len() int {
	return len(s.records)
}

// Records returns a copy of the records, newest first.
func (s Snapshot) Records() []Transaction {
	out := make([]Transaction, len(s.records))
	copy(out, s.records)
	return out
}

// Contains reports whether a record with id is present.
func (s Snapshot) Contains(id int64) bool {
	for _, r := range s.records {
		if r.ID == id {
			return true
		}
	}
	return false
}

type subscriber struct {
	id uint64
	fn func(Snapshot)
}

// Store is the single owner of the local transaction cache. Writes are
// serialized on one lock and committed through the Repository; reads load an
// immutable snapshot without locking.
type Store struct {
	repo   Repository
	logger *zap.Logger

	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub uint64
}

// NewStore creates a new transaction store
func NewStore(repo Repository, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		repo:   repo,
		logger: logger.Named("store"),
	}
	s.current.Store(&Snapshot{})
	return s
}

// Load primes the snapshot from the repository
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	records, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to load transactions", zap.Error(err))
		return asPersistence("failed to load transactions", err)
	}
	SortByTimeDesc(records)
	s.commit(records)
	return nil
}

// UpsertAll merges records by id. Existing rows are replaced and new rows
// inserted. On failure the previous snapshot stays in place.
func (s *Store) UpsertAll(ctx context.Context, records []Transaction) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	batch := Dedupe(records)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if len(batch) > 0 {
		if err := s.repo.UpsertAll(ctx, batch); err != nil {
			s.logger.Error("failed to upsert transactions", zap.Int("count", len(batch)), zap.Error(err))
			return asPersistence("failed to upsert transactions", err)
		}
	}

	prev := s.current.Load().records
	merged := make(map[int64]Transaction, len(prev)+len(batch))
	for _, r := range prev {
		merged[r.ID] = r
	}
	for _, r := range batch {
		merged[r.ID] = r
	}
	next := make([]Transaction, 0, len(merged))
	for _, r := range merged {
		next = append(next, r)
	}
	SortByTimeDesc(next)

	snap := s.commit(next)
	s.logger.Debug("transactions upserted",
		zap.Int("count", len(batch)),
		zap.Int("total", len(next)),
		zap.Uint64("version", snap.version))
	return nil
}

// QueryAll returns the latest committed records sorted by time, newest first.
// The result is a copy owned by the caller.
func (s *Store) QueryAll() []Transaction {
	return s.current.Load().Records()
}

// Snapshot returns the latest committed snapshot
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Len returns the number of cached records
func (s *Store) Len() int {
	return s.current.Load().Len()
}

// Reset clears every record, used on logout
func (s *Store) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.Reset(ctx); err != nil {
		s.logger.Error("failed to reset transactions", zap.Error(err))
		return asPersistence("failed to reset transactions", err)
	}
	s.commit(nil)
	s.logger.Info("transaction store reset")
	return nil
}

// Subscribe registers fn to be called after every committed mutation.
// Callbacks run synchronously in registration order and must not write to
// the store.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// commit must be called with writeMu held.
func (s *Store) commit(records []Transaction) Snapshot {
	prev := s.current.Load()
	snap := &Snapshot{version: prev.version + 1, records: records}
	s.current.Store(snap)

	s.subsMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(*snap)
	}
	return *snap
}

func asPersistence(message string, err error) error {
	if errors.HasCode(err, errors.CodePersistence) {
		return err
	}
	return errors.NewPersistenceError(message, err)
}
