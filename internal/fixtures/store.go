package fixtures

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const (
	keyTTSnapshotPrefix = "ttsnap:"
	keyFixturePrefix    = "fixture:"
)

// TTRecord is one transposition-table entry as persisted to disk: a plain
// value type decoupled from engine.TTEntry so this package never needs to
// import the engine.
type TTRecord struct {
	Key    uint64 `json:"key"`
	Pn     int32  `json:"pn"`
	Dn     int32  `json:"dn"`
	Result uint8  `json:"result"`
	Depth  int16  `json:"depth"`
}

// Fixture names a regression position and its expected proof. The store
// saves, loads and lists fixtures; nothing in the solver CLI or the engine
// tests reads them.
type Fixture struct {
	Name             string `json:"name"`
	BoardLine        string `json:"board_line"`
	SideToMoveLine   string `json:"side_to_move_line"`
	ExpectedResult   string `json:"expected_result"`
	ExpectedBestMove string `json:"expected_best_move"`
	TimeLimitSec     int    `json:"time_limit_sec"`
}

// Store wraps a BadgerDB instance holding TT snapshots and fixtures.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a fixtures/TT-cache store rooted at
// dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("fixtures: open store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveTTSnapshot persists a batch of proven TT entries under name, so a
// later run started with the same -tt-cache directory can seed its table
// from them instead of re-proving the same subtrees.
func (s *Store) SaveTTSnapshot(name string, records []TTRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("fixtures: marshal tt snapshot %s: %w", name, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyTTSnapshotPrefix+name), data)
	})
}

// LoadTTSnapshot loads a previously saved batch of TT entries, or an empty
// slice if name has never been saved.
func (s *Store) LoadTTSnapshot(name string) ([]TTRecord, error) {
	var records []TTRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyTTSnapshotPrefix + name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &records)
		})
	})
	return records, err
}

// SaveFixture stores a named regression fixture.
func (s *Store) SaveFixture(f Fixture) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("fixtures: marshal fixture %s: %w", f.Name, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyFixturePrefix+f.Name), data)
	})
}

// LoadFixture retrieves a previously saved fixture by name.
func (s *Store) LoadFixture(name string) (*Fixture, error) {
	var f Fixture
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyFixturePrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &f)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fixtures: load fixture %s: %w", name, err)
	}
	return &f, nil
}

// ListFixtures returns every saved fixture's name.
func (s *Store) ListFixtures() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyFixturePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			names = append(names, string(key[len(prefix):]))
		}
		return nil
	})
	return names, err
}
