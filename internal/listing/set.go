package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Set maps product ids to snapshots and remembers insertion order.
// A nil *Set behaves as an empty set for every read method.
type Set struct {
	keys  []string
	items map[string]Snapshot
}

func NewSet(capacity int) *Set {
	return &Set{
		keys:  make([]string, 0, capacity),
		items: make(map[string]Snapshot, capacity),
	}
}

// SetOf builds a set from snapshots in the given order.
func SetOf(items ...Snapshot) *Set {
	s := NewSet(len(items))
	for _, it := range items {
		s.Put(it)
	}
	return s
}

// Put inserts or replaces a snapshot. A replaced id keeps its original position.
// The zero Set is ready to use.
func (s *Set) Put(item Snapshot) {
	if s.items == nil {
		s.items = make(map[string]Snapshot)
	}
	if _, ok := s.items[item.ID]; !ok {
		s.keys = append(s.keys, item.ID)
	}
	s.items[item.ID] = item
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *Set) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[id]
	return ok
}

func (s *Set) Get(id string) (Snapshot, bool) {
	if s == nil {
		return Snapshot{}, false
	}
	it, ok := s.items[id]
	return it, ok
}

// Keys returns the ids in insertion order.
func (s *Set) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Items returns the snapshots in insertion order.
func (s *Set) Items() []Snapshot {
	if s == nil {
		return nil
	}
	out := make([]Snapshot, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.items[k])
	}
	return out
}

// Equal reports whether both sets hold the same ids with equal snapshots.
// Order is not compared.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, k := range s.Keys() {
		a, _ := s.Get(k)
		b, ok := o.Get(k)
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}

// MarshalJSON writes a JSON object keyed by id, in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		it, _ := s.Get(k)
		vb, err := json.Marshal(it.record())
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keyed by id, keeping the file's key order.
func (s *Set) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = *NewSet(0)
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("listing set: expected JSON object")
	}

	out := NewSet(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var r record
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("product %q: %w", id, err)
		}
		it, err := r.snapshot(id)
		if err != nil {
			return err
		}
		out.Put(it)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = *out
	return nil
}
