// Package snapshot records synthesized stacks so a later run can report what changed.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Louis4933/CYFEAST-2023-BACK/internal/ctxlog"
	"github.com/Louis4933/CYFEAST-2023-BACK/stack"
)

var ErrNotFound = errors.New("snapshot not found")

const keyPrefix = "stack/"

// Record is one synthesized stack.
type Record struct {
	Stack      string      `json:"stack"`
	Graph      stack.Graph `json:"graph"`
	Template   []byte      `json:"template,omitempty"`
	Format     string      `json:"format,omitempty"`
	RecordedAt time.Time   `json:"recordedAt"`
}

// Store keeps the latest record per stack name in BadgerDB.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger for BadgerDB. If nil, logging is disabled.
	Logger badger.Logger
}

func Open(opts StoreOptions) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save records s, replacing any earlier record for the same stack name.
func (s *Store) Save(ctx context.Context, st *stack.Stack, format string, template []byte) (Record, error) {
	rec := Record{
		Stack:      st.Name(),
		Graph:      st.Graph(),
		Template:   template,
		Format:     format,
		RecordedAt: s.now().UTC(),
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.Stack), val)
	})
	if err != nil {
		return Record{}, fmt.Errorf("save snapshot %s: %w", rec.Stack, err)
	}
	ctxlog.FromContext(ctx).Debug("Recorded snapshot.", "stack", rec.Stack, "nodes", len(rec.Graph.Nodes))
	return rec, nil
}

// Load returns the latest record for the named stack, or ErrNotFound.
func (s *Store) Load(ctx context.Context, name string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	return rec, nil
}

// List returns the names of all recorded stacks, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the record for the named stack. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + name))
	})
}
