// Package tagcodec packs raw text tag sets into compact interned-id mappings
// and unpacks them again. Encoding and decoding are exact inverses for any
// tag set whose keys and values can be interned.
package tagcodec

import (
	"fmt"

	"github.com/hupe1980/geostore/model"
	"github.com/hupe1980/geostore/strtable"
)

// ErrEncodingFailure indicates a tag key or value that could not be interned,
// typically because the string dictionary is full.
//
// The underlying interner error can be accessed via errors.Unwrap.
type ErrEncodingFailure struct {
	Key   string
	Value string
	cause error
}

func (e *ErrEncodingFailure) Error() string {
	return fmt.Sprintf("cannot encode tag %q=%q: %v", e.Key, e.Value, e.cause)
}

func (e *ErrEncodingFailure) Unwrap() error { return e.cause }

// Codec encodes and decodes tag sets against a string table.
// It is safe for concurrent use if the underlying Interner is.
type Codec struct {
	table strtable.Interner
}

// New creates a Codec over the given string table.
func New(table strtable.Interner) *Codec {
	return &Codec{table: table}
}

// Encode interns every key and value of tags. Empty and nil tag sets encode
// to an empty mapping.
func (c *Codec) Encode(tags map[string]string) (model.Tags, error) {
	out := make(model.Tags, len(tags))
	for key, value := range tags {
		keyID, err := c.table.Intern(key)
		if err != nil {
			return nil, &ErrEncodingFailure{Key: key, Value: value, cause: err}
		}
		valueID, err := c.table.Intern(value)
		if err != nil {
			return nil, &ErrEncodingFailure{Key: key, Value: value, cause: err}
		}
		out[keyID] = valueID
	}
	return out, nil
}

// Decode is the exact inverse of Encode.
func (c *Codec) Decode(tags model.Tags) (map[string]string, error) {
	out := make(map[string]string, len(tags))
	for keyID, valueID := range tags {
		key, err := c.table.Resolve(keyID)
		if err != nil {
			return nil, fmt.Errorf("decode tag key %d: %w", keyID, err)
		}
		value, err := c.table.Resolve(valueID)
		if err != nil {
			return nil, fmt.Errorf("decode tag value %d: %w", valueID, err)
		}
		out[key] = value
	}
	return out, nil
}
