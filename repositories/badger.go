package repositories

import (
	"pulse-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

const maxConflictRetries = 8

// update runs fn in a read-write transaction, retrying when badger detects
// a conflicting concurrent commit on the same keys.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}
