package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Txn is a transaction handed to Store.Update and Store.View callbacks
type Txn struct {
	txn *badger.Txn
}

// ListOptions controls prefix listing
type ListOptions struct {
	Offset int
	// Limit caps the number of entries; 0 means unlimited
	Limit   int
	Reverse bool
}

// Entry is a listed key with its raw JSON value
type Entry struct {
	Key   Key
	Value []byte
}

// Decode unmarshals the entry's value into out
func (e Entry) Decode(out any) error {
	if err := json.Unmarshal(e.Value, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", e.Key, err)
	}
	return nil
}

// Get decodes the value at key into out
func (t *Txn) Get(key Key, out any) error {
	if !key.valid() {
		return ErrInvalidKey
	}
	item, err := t.txn.Get(key.Encode())
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, out); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		return nil
	})
}

// Exists reports whether key is present
func (t *Txn) Exists(key Key) (bool, error) {
	if !key.valid() {
		return false, ErrInvalidKey
	}
	_, err := t.txn.Get(key.Encode())
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return true, nil
}

// Set JSON-encodes value at key; ttl > 0 expires the entry
func (t *Txn) Set(key Key, value any, ttl time.Duration) error {
	if !key.valid() {
		return ErrInvalidKey
	}
	b, err := encode(value)
	if err != nil {
		return err
	}
	e := badger.NewEntry(key.Encode(), b)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	if err := t.txn.SetEntry(e); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key; missing keys are ignored
func (t *Txn) Delete(key Key) error {
	if !key.valid() {
		return ErrInvalidKey
	}
	if err := t.txn.Delete(key.Encode()); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List iterates the keys under prefix in key order, or reverse key order
func (t *Txn) List(prefix Key, opts ListOptions) ([]Entry, error) {
	p := prefix.prefix()
	iopts := badger.DefaultIteratorOptions
	iopts.Prefix = p
	iopts.Reverse = opts.Reverse
	if opts.Limit > 0 && opts.Limit < iopts.PrefetchSize {
		iopts.PrefetchSize = opts.Limit
	}

	it := t.txn.NewIterator(iopts)
	defer it.Close()

	var entries []Entry
	skipped := 0
	for it.Seek(seekKey(p, opts.Reverse)); it.ValidForPrefix(p); it.Next() {
		if skipped < opts.Offset {
			skipped++
			continue
		}
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read value: %w", err)
		}
		entries = append(entries, Entry{Key: DecodeKey(item.KeyCopy(nil)), Value: val})
		if opts.Limit > 0 && len(entries) >= opts.Limit {
			break
		}
	}
	return entries, nil
}

// Count returns the number of keys under prefix without reading values
func (t *Txn) Count(prefix Key) (int, error) {
	p := prefix.prefix()
	iopts := badger.DefaultIteratorOptions
	iopts.Prefix = p
	iopts.PrefetchValues = false

	it := t.txn.NewIterator(iopts)
	defer it.Close()

	n := 0
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		n++
	}
	return n, nil
}

// seekKey positions an iterator at the first key under p. In reverse mode
// that is p followed by 0xFF, which sorts after every UTF-8 suffix.
func seekKey(p []byte, reverse bool) []byte {
	if !reverse {
		return p
	}
	k := make([]byte, len(p)+1)
	copy(k, p)
	k[len(p)] = 0xFF
	return k
}
