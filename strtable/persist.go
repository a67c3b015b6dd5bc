package strtable

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Save persists the table to w.
// Format: [Count: 8 bytes] [Entry...]
// Entry: [ID: 8 bytes] [TextLen: 4 bytes] [Text: N bytes]
func (t *MemoryTable) Save(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, uint64(len(t.byID))); err != nil {
		return err
	}

	for id, text := range t.byID {
		if err := binary.Write(bw, binary.LittleEndian, id); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(text))); err != nil {
			return err
		}
		if _, err := bw.WriteString(text); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the table contents from r. The next id to allocate is set
// past the highest loaded id so previously issued ids are never reused.
func (t *MemoryTable) Load(r io.Reader) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	br := bufio.NewReader(r)

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	byText := make(map[string]uint64, count)
	byID := make(map[uint64]string, count)
	next := uint64(1)

	for i := uint64(0); i < count; i++ {
		var id uint64
		if err := binary.Read(br, binary.LittleEndian, &id); err != nil {
			return err
		}
		if id == 0 {
			return fmt.Errorf("string table: reserved id 0 in input")
		}

		var textLen uint32
		if err := binary.Read(br, binary.LittleEndian, &textLen); err != nil {
			return err
		}
		buf := make([]byte, textLen)
		if _, err := io.ReadFull(br, buf); err != nil {
			return err
		}

		text := string(buf)
		if prev, ok := byText[text]; ok && prev != id {
			return fmt.Errorf("string table: duplicate text %q with ids %d and %d", text, prev, id)
		}
		byText[text] = id
		byID[id] = text
		if id >= next {
			next = id + 1
		}
	}

	t.byText = byText
	t.byID = byID
	t.next = next
	return nil
}
