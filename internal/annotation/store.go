// Package annotation persists client-drawn PDF annotations in Badger, keyed by
// the sanitized document filename.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/text/unicode/norm"
)

const keyPrefix = "annotation:"

// Delete outcomes.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

// ErrInvalidPayload is returned when the annotation data is not a JSON object.
var ErrInvalidPayload = errors.New("annotation data must be a JSON object")

// DeleteResult describes what Delete did.
type DeleteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Store is a Badger-backed annotation store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	return open(opts, logger)
}

// OpenInMemory opens a store that lives only as long as the process. Used by tests.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open annotation db: %w", err)
	}
	logger.Info("annotation store opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return &Store{db: db, logger: logger}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SafeName maps a filename to its storage key: NFC-normalized, with anything
// other than letters, digits, '.', '-' and '_' replaced by '_'.
func SafeName(filename string) string {
	var b strings.Builder
	for _, r := range norm.NFC.String(filename) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func key(filename string) []byte {
	return []byte(keyPrefix + SafeName(filename))
}

// Save stores data for filename, replacing whatever was there.
func (s *Store) Save(filename string, data json.RawMessage) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return ErrInvalidPayload
	}
	compact, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode annotations: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(filename), compact)
	})
	if err != nil {
		return fmt.Errorf("save annotations for %s: %w", filename, err)
	}
	s.logger.Info("annotations saved", "filename", filename, "bytes", len(compact))
	return nil
}

// Get returns the stored annotations, or an empty object when there are none.
func (s *Store) Get(filename string) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(filename))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return json.RawMessage("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get annotations for %s: %w", filename, err)
	}
	return out, nil
}

// Delete removes the annotations for filename. Deleting something that does
// not exist is reported as a warning, not an error.
func (s *Store) Delete(filename string) (DeleteResult, error) {
	k := key(filename)
	found := false
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return txn.Delete(k)
	})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete annotations for %s: %w", filename, err)
	}
	if !found {
		return DeleteResult{Status: StatusWarning, Message: "no annotations found for " + filename}, nil
	}
	s.logger.Info("annotations deleted", "filename", filename)
	return DeleteResult{Status: StatusSuccess, Message: "annotations deleted for " + filename}, nil
}
