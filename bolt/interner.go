package bolt

import (
	"encoding/binary"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/hupe1980/geostore/strtable"
)

// Interner is a string table backed by the store's strings buckets. Ids come
// from the bucket sequence, which starts at one, so zero is never assigned
// and stays free as the tag-stream terminator.
type Interner struct {
	db *bbolt.DB
}

var _ strtable.Interner = (*Interner)(nil)

// Interner returns the store's persistent string table.
func (s *Store) Interner() *Interner {
	return &Interner{db: s.db}
}

// Intern returns the id for text, assigning the next id on first sight.
// Interning the same text twice returns the same id.
func (in *Interner) Intern(text string) (uint64, error) {
	var id uint64
	err := in.db.Update(func(tx *bbolt.Tx) error {
		byText := tx.Bucket(bucketStringsText)
		if v := byText.Get([]byte(text)); v != nil {
			id = binary.BigEndian.Uint64(v)
			return nil
		}

		byID := tx.Bucket(bucketStrings)
		next, err := byID.NextSequence()
		if err != nil {
			return err
		}
		if err := byID.Put(be64(next), []byte(text)); err != nil {
			return err
		}
		if err := byText.Put([]byte(text), be64(next)); err != nil {
			return err
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bolt: intern: %w", err)
	}
	return id, nil
}

// Resolve returns the text for a previously assigned id.
func (in *Interner) Resolve(id uint64) (string, error) {
	var text string
	err := in.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketStrings).Get(be64(id))
		if v == nil {
			return strtable.ErrNotFound
		}
		text = string(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Len returns the number of interned strings.
func (in *Interner) Len() (int, error) {
	var n int
	err := in.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketStrings).Stats().KeyN
		return nil
	})
	return n, err
}
