package bolt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/hupe1980/geostore/cell"
	"github.com/hupe1980/geostore/idset"
	"github.com/hupe1980/geostore/layout"
	"github.com/hupe1980/geostore/model"
)

var (
	// ErrNotFound is returned when an id has no record.
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed is returned for operations on a closed store.
	ErrStoreClosed = errors.New("store closed")
)

var (
	bucketNodes       = []byte("nodes")
	bucketNodeTags    = []byte("node_tags")
	bucketNodeCells   = []byte("node_cells")
	bucketPaths       = []byte("paths")
	bucketPathNodes   = []byte("path_nodes")
	bucketPathTags    = []byte("path_tags")
	bucketStrings     = []byte("strings")
	bucketStringsText = []byte("strings_text")
)

const nodeValueSize = 16

// Options configures a store.
type Options struct {
	// FileMode is the mode the database file is created with.
	FileMode os.FileMode

	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration

	// NoSync trades durability for bulk-load speed; the caller must Sync
	// before relying on the data surviving a crash.
	NoSync bool
}

// Option mutates Options.
type Option func(*Options)

// WithTimeout bounds how long Open waits for the file lock.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithNoSync disables fsync on commit for bulk loading.
func WithNoSync() Option {
	return func(o *Options) {
		o.NoSync = true
	}
}

// Store is the embedded backend. All methods are safe for concurrent use;
// bbolt serializes writers internally.
type Store struct {
	db      *bbolt.DB
	profile layout.Profile
}

// Open opens or creates the database at path and ensures all buckets exist.
func Open(path string, optFns ...Option) (*Store, error) {
	opts := Options{
		FileMode: 0o600,
		Timeout:  time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := bbolt.Open(path, opts.FileMode, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	db.NoSync = opts.NoSync

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketNodes, bucketNodeTags, bucketNodeCells,
			bucketPaths, bucketPathNodes, bucketPathTags,
			bucketStrings, bucketStringsText,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: create buckets: %w", err)
	}

	return &Store{db: db, profile: layout.Embedded()}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sync flushes the database file. Useful after bulk loads with NoSync.
func (s *Store) Sync() error {
	return s.db.Sync()
}

func (s *Store) update(fn func(*bbolt.Tx) error) error {
	err := s.db.Update(fn)
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrStoreClosed
	}
	return err
}

func (s *Store) view(fn func(*bbolt.Tx) error) error {
	err := s.db.View(fn)
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrStoreClosed
	}
	return err
}

func be64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func be32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// signBias flips the sign bit of an id before big-endian encoding, so byte
// order under a cursor equals signed numeric order: negative ids sort first,
// matching the analytical engine's comparators.
const signBias = 1 << 63

func idKey(id int64) []byte { return be64(uint64(id) ^ signBias) }

func keyID(k []byte) int64 { return int64(binary.BigEndian.Uint64(k) ^ signBias) }

func nodeValue(n model.Node) []byte {
	out := make([]byte, nodeValueSize)
	binary.BigEndian.PutUint32(out[0:4], uint32(n.DecimicroLat))
	binary.BigEndian.PutUint32(out[4:8], uint32(n.DecimicroLon))
	binary.BigEndian.PutUint64(out[8:16], uint64(n.Cell12))
	return out
}

func decodeNodeValue(id int64, v []byte) (model.Node, error) {
	if len(v) != nodeValueSize {
		return model.Node{}, fmt.Errorf("bolt: node %d: corrupt record of %d bytes", id, len(v))
	}
	fine := cell.ID(binary.BigEndian.Uint64(v[8:16]))
	return model.Node{
		ID:           id,
		DecimicroLat: int32(binary.BigEndian.Uint32(v[0:4])),
		DecimicroLon: int32(binary.BigEndian.Uint32(v[4:8])),
		Cell3:        fine.ParentAt(cell.Coarse),
		Cell12:       fine,
	}, nil
}

func cellKey(n model.Node) []byte {
	out := make([]byte, 24)
	binary.BigEndian.PutUint64(out[0:8], uint64(n.Cell3))
	binary.BigEndian.PutUint64(out[8:16], uint64(n.Cell12))
	binary.BigEndian.PutUint64(out[16:24], uint64(n.ID)^signBias)
	return out
}

func ownedKey(owner int64, sub uint64) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint64(out[0:8], uint64(owner)^signBias)
	binary.BigEndian.PutUint64(out[8:16], sub)
	return out
}

// deleteOwned removes every row in b whose key starts with the owner id.
func deleteOwned(b *bbolt.Bucket, owner int64) error {
	prefix := idKey(owner)
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertNode inserts or replaces the node in one transaction. Replacement is
// whole-record: previous tags and the previous spatial index entry go away
// with it.
func (s *Store) UpsertNode(n model.Node) error {
	return s.update(func(tx *bbolt.Tx) error {
		nodes := tx.Bucket(bucketNodes)
		key := idKey(n.ID)

		if old := nodes.Get(key); old != nil {
			prev, err := decodeNodeValue(n.ID, old)
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketNodeCells).Delete(cellKey(prev)); err != nil {
				return err
			}
		}
		if err := deleteOwned(tx.Bucket(bucketNodeTags), n.ID); err != nil {
			return err
		}

		if err := nodes.Put(key, nodeValue(n)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketNodeCells).Put(cellKey(n), nil); err != nil {
			return err
		}
		tags := tx.Bucket(bucketNodeTags)
		for k, v := range n.Tags {
			if err := tags.Put(ownedKey(n.ID, k), be64(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNode returns the node with the given id.
func (s *Store) GetNode(id int64) (model.Node, error) {
	var out model.Node
	err := s.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketNodes).Get(idKey(id))
		if v == nil {
			return ErrNotFound
		}
		n, err := decodeNodeValue(id, v)
		if err != nil {
			return err
		}
		n.Tags = readOwnedTags(tx.Bucket(bucketNodeTags), id)
		out = n
		return nil
	})
	return out, err
}

// DeleteNode removes the node, its tags and its spatial index entry.
// Deleting an absent id is a no-op.
func (s *Store) DeleteNode(id int64) error {
	return s.update(func(tx *bbolt.Tx) error {
		nodes := tx.Bucket(bucketNodes)
		key := idKey(id)
		v := nodes.Get(key)
		if v == nil {
			return nil
		}
		n, err := decodeNodeValue(id, v)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketNodeCells).Delete(cellKey(n)); err != nil {
			return err
		}
		if err := deleteOwned(tx.Bucket(bucketNodeTags), id); err != nil {
			return err
		}
		return nodes.Delete(key)
	})
}

func readOwnedTags(b *bbolt.Bucket, owner int64) model.Tags {
	prefix := idKey(owner)
	var tags model.Tags
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if tags == nil {
			tags = model.Tags{}
		}
		tags[binary.BigEndian.Uint64(k[8:16])] = binary.BigEndian.Uint64(v)
	}
	return tags
}

// ScanNodes yields nodes ordered by (coarse cell, fine cell, id), the same
// order the analytical backend produces. With bounds set, the spatial index
// is only read under the coarse cells covering the box.
func (s *Store) ScanNodes(bounds *model.BoundingBox) iter.Seq2[model.Node, error] {
	return func(yield func(model.Node, error) bool) {
		err := s.view(func(tx *bbolt.Tx) error {
			var prefixes [][]byte
			if bounds != nil {
				for _, c := range cell.Cover(bounds.MinDecimicroLat, bounds.MaxDecimicroLat, bounds.MinDecimicroLon, bounds.MaxDecimicroLon, s.profile.PartitionLevel) {
					prefixes = append(prefixes, be64(uint64(c)))
				}
			} else {
				prefixes = [][]byte{nil}
			}

			cells := tx.Bucket(bucketNodeCells)
			nodes := tx.Bucket(bucketNodes)
			tags := tx.Bucket(bucketNodeTags)

			for _, prefix := range prefixes {
				cur := cells.Cursor()
				var k []byte
				if prefix == nil {
					k, _ = cur.First()
				} else {
					k, _ = cur.Seek(prefix)
				}
				for ; k != nil; k, _ = cur.Next() {
					if prefix != nil && !bytes.HasPrefix(k, prefix) {
						break
					}
					id := keyID(k[16:24])
					v := nodes.Get(idKey(id))
					if v == nil {
						return fmt.Errorf("bolt: spatial index references missing node %d", id)
					}
					n, err := decodeNodeValue(id, v)
					if err != nil {
						return err
					}
					if bounds != nil && !bounds.Contains(n.Coord()) {
						continue
					}
					n.Tags = readOwnedTags(tags, id)
					if !yield(n, nil) {
						return nil
					}
				}
			}
			return nil
		})
		if err != nil {
			yield(model.Node{}, err)
		}
	}
}

// UpsertPath inserts or replaces the path in one transaction, preserving the
// node order through the ordinal key component.
func (s *Store) UpsertPath(p model.Path) error {
	if len(p.Nodes) > int(^uint32(0)) {
		return fmt.Errorf("bolt: path %d: too many node references", p.ID)
	}
	return s.update(func(tx *bbolt.Tx) error {
		if err := deleteOwned(tx.Bucket(bucketPathNodes), p.ID); err != nil {
			return err
		}
		if err := deleteOwned(tx.Bucket(bucketPathTags), p.ID); err != nil {
			return err
		}

		if err := tx.Bucket(bucketPaths).Put(idKey(p.ID), be32(uint32(len(p.Nodes)))); err != nil {
			return err
		}
		refs := tx.Bucket(bucketPathNodes)
		for i, ref := range p.Nodes {
			key := make([]byte, 12)
			binary.BigEndian.PutUint64(key[0:8], uint64(p.ID)^signBias)
			binary.BigEndian.PutUint32(key[8:12], uint32(i))
			if err := refs.Put(key, be64(uint64(ref))); err != nil {
				return err
			}
		}
		tags := tx.Bucket(bucketPathTags)
		for k, v := range p.Tags {
			if err := tags.Put(ownedKey(p.ID, k), be64(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPath returns the path with the given id, node references in stored
// order.
func (s *Store) GetPath(id int64) (model.Path, error) {
	var out model.Path
	err := s.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketPaths).Get(idKey(id))
		if v == nil {
			return ErrNotFound
		}
		p, err := readPath(tx, id, v)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func readPath(tx *bbolt.Tx, id int64, countVal []byte) (model.Path, error) {
	if len(countVal) != 4 {
		return model.Path{}, fmt.Errorf("bolt: path %d: corrupt record", id)
	}
	count := binary.BigEndian.Uint32(countVal)

	p := model.Path{ID: id}
	prefix := idKey(id)
	c := tx.Bucket(bucketPathNodes).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		p.Nodes = append(p.Nodes, int64(binary.BigEndian.Uint64(v)))
	}
	if uint32(len(p.Nodes)) != count {
		return model.Path{}, fmt.Errorf("bolt: path %d: %d node references, want %d", id, len(p.Nodes), count)
	}
	p.Tags = readOwnedTags(tx.Bucket(bucketPathTags), id)
	return p, nil
}

// DeletePath removes the path, its node references and its tags. Deleting an
// absent id is a no-op.
func (s *Store) DeletePath(id int64) error {
	return s.update(func(tx *bbolt.Tx) error {
		key := idKey(id)
		if tx.Bucket(bucketPaths).Get(key) == nil {
			return nil
		}
		if err := deleteOwned(tx.Bucket(bucketPathNodes), id); err != nil {
			return err
		}
		if err := deleteOwned(tx.Bucket(bucketPathTags), id); err != nil {
			return err
		}
		return tx.Bucket(bucketPaths).Delete(key)
	})
}

// ScanPaths yields paths ordered by id.
func (s *Store) ScanPaths() iter.Seq2[model.Path, error] {
	return func(yield func(model.Path, error) bool) {
		err := s.view(func(tx *bbolt.Tx) error {
			c := tx.Bucket(bucketPaths).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				id := keyID(k)
				p, err := readPath(tx, id, v)
				if err != nil {
					return err
				}
				if !yield(p, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(model.Path{}, err)
		}
	}
}

// NodeCount returns the number of stored nodes.
func (s *Store) NodeCount() (int, error) {
	var n int
	err := s.view(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketNodes).Stats().KeyN
		return nil
	})
	return n, err
}

// PathCount returns the number of stored paths.
func (s *Store) PathCount() (int, error) {
	var n int
	err := s.view(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketPaths).Stats().KeyN
		return nil
	})
	return n, err
}

// NodeIDs returns the set of stored node ids.
func (s *Store) NodeIDs() (*idset.Set, error) {
	out := idset.New()
	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, _ []byte) error {
			out.Add(keyID(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
