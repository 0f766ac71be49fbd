package configstore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

var recordKey = []byte("feeder/config/record")

// BadgerMedium stores the record under a single key.
type BadgerMedium struct {
	db *badger.DB
}

// OpenBadgerMedium opens (or creates) a Badger database in dir.
func OpenBadgerMedium(dir string) (*BadgerMedium, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger medium: open %s: %w", dir, err)
	}
	return &BadgerMedium{db: db}, nil
}

// NewBadgerMedium wraps an already opened database.
func NewBadgerMedium(db *badger.DB) *BadgerMedium {
	return &BadgerMedium{db: db}
}

func (b *BadgerMedium) ReadRecord() ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Blank(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("badger medium: read: %w", err)
	}
	return out, nil
}

func (b *BadgerMedium) Commit(record []byte) error {
	val := make([]byte, len(record))
	copy(val, record)
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey, val)
	}); err != nil {
		return fmt.Errorf("badger medium: commit: %w", err)
	}
	return nil
}

func (b *BadgerMedium) Close() error {
	return b.db.Close()
}
