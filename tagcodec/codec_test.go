package tagcodec

import (
	"errors"
	"maps"
	"testing"

	"github.com/hupe1980/geostore/strtable"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := New(strtable.NewMemoryTable())

	tags := map[string]string{
		"highway": "traffic_signals",
		"name":    "Main Street",
		"oneway":  "yes",
	}

	encoded, err := codec.Encode(tags)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(encoded) != len(tags) {
		t.Fatalf("encoded %d pairs, want %d", len(encoded), len(tags))
	}
	for k, v := range encoded {
		if k == 0 || v == 0 {
			t.Fatal("encoded tag carries reserved id 0")
		}
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !maps.Equal(decoded, tags) {
		t.Errorf("round trip mismatch: got %v, want %v", decoded, tags)
	}
}

func TestEncodeSharesIDs(t *testing.T) {
	codec := New(strtable.NewMemoryTable())

	a, _ := codec.Encode(map[string]string{"highway": "residential"})
	b, _ := codec.Encode(map[string]string{"highway": "residential"})
	if !a.Equal(b) {
		t.Error("identical tag sets encoded differently")
	}

	// The same string interns to one id whether it appears as key or value.
	c, _ := codec.Encode(map[string]string{"residential": "highway"})
	for k := range a {
		if _, ok := c[a[k]]; !ok {
			t.Error("value id not reused as key id for the same text")
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	codec := New(strtable.NewMemoryTable())

	for _, tags := range []map[string]string{nil, {}} {
		encoded, err := codec.Encode(tags)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if len(encoded) != 0 {
			t.Errorf("empty input encoded to %d pairs", len(encoded))
		}
	}
}

func TestEncodeTableFull(t *testing.T) {
	codec := New(strtable.NewMemoryTable(strtable.WithMaxEntries(1)))

	_, err := codec.Encode(map[string]string{"highway": "residential"})
	if err == nil {
		t.Fatal("expected encoding failure, got nil")
	}

	var ef *ErrEncodingFailure
	if !errors.As(err, &ef) {
		t.Fatalf("expected ErrEncodingFailure, got %T", err)
	}
	if ef.Key != "highway" {
		t.Errorf("failure key = %q, want %q", ef.Key, "highway")
	}
	if !errors.Is(err, strtable.ErrTableFull) {
		t.Error("underlying ErrTableFull not reachable via errors.Is")
	}
}

func TestDecodeUnknownID(t *testing.T) {
	codec := New(strtable.NewMemoryTable())
	if _, err := codec.Decode(map[uint64]uint64{7: 8}); err == nil {
		t.Fatal("decoding unknown ids should fail")
	}
}
