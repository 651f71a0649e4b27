package css

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// keyEntry holds one stored key. The byte slice is owned exclusively by the
// store; it leaves only as a copy and is wiped before every replace or remove.
type keyEntry struct {
	id          uint64
	bytes       []byte
	typ         string
	description string
	createdAt   time.Time
	updateCount int
	accessCount int
}

func (e *keyEntry) String() string {
	return fmt.Sprintf("KeyEntry[id=%d, type=%s, size=%d bytes, updates=%d, accesses=%d, desc=%s]",
		e.id, e.typ, len(e.bytes), e.updateCount, e.accessCount, e.description)
}

// KeyStore manages keying material for the subsystem. It is safe for
// concurrent use; per-key mutation is atomic with respect to concurrent reads.
//
// Key bytes never escape by reference: every read returns an independent copy,
// and released material is wiped with memguard before the reference is dropped.
type KeyStore struct {
	mu     sync.RWMutex
	keys   map[uint64]*keyEntry
	nextID uint64
	rand   io.Reader
}

// NewKeyStore creates an empty key store. Key IDs start at 1 and increase
// monotonically.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys:   make(map[uint64]*keyEntry),
		nextID: 1,
		rand:   rand.Reader,
	}
}

// StoreKey stores a copy of data under a freshly allocated key ID.
// Returns ErrInvalidInput if data is empty.
func (s *KeyStore) StoreKey(data []byte, typ, description string) (uint64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: key data must not be empty", ErrInvalidInput)
	}

	b := make([]byte, len(data))
	copy(b, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.keys[id] = &keyEntry{
		id:          id,
		bytes:       b,
		typ:         typ,
		description: description,
		createdAt:   time.Now(),
	}

	return id, nil
}

// GetKey returns a copy of the key bytes for the given ID and increments the
// entry's access counter. Returns ErrKeyNotFound if the ID is unknown.
func (s *KeyStore) GetKey(id uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrKeyNotFound, id)
	}

	entry.accessCount++
	b := make([]byte, len(entry.bytes))
	copy(b, entry.bytes)
	return b, nil
}

// UpdateKey rotates the key in place: the new key is the byte-wise XOR of the
// old key with a fresh random sequence of the same length. This is a
// deliberate simplification, not a vetted KDF. The old bytes are wiped before
// the reference is released. Returns ErrKeyNotFound if the ID is unknown.
func (s *KeyStore) UpdateKey(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.keys[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrKeyNotFound, id)
	}

	random := make([]byte, len(entry.bytes))
	if _, err := io.ReadFull(s.rand, random); err != nil {
		return fmt.Errorf("css: failed to generate rotation bytes: %w", err)
	}
	defer memguard.WipeBytes(random)

	next := make([]byte, len(entry.bytes))
	for i := range entry.bytes {
		next[i] = entry.bytes[i] ^ random[i]
	}

	memguard.WipeBytes(entry.bytes)
	entry.bytes = next
	entry.updateCount++

	return nil
}

// UpdateCount returns the number of completed rotations for the given key,
// or -1 if the key does not exist. The sentinel lets callers distinguish a
// missing key from one that has never been rotated.
func (s *KeyStore) UpdateCount(id uint64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.keys[id]
	if !ok {
		return -1
	}
	return entry.updateCount
}

// ZeroizeKey wipes the key bytes and removes the entry. The operation is
// irreversible; a subsequent GetKey reports not-found.
func (s *KeyStore) ZeroizeKey(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.keys[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrKeyNotFound, id)
	}

	memguard.WipeBytes(entry.bytes)
	delete(s.keys, id)
	return nil
}

// KeyExists reports whether a key with the given ID is stored.
func (s *KeyStore) KeyExists(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[id]
	return ok
}

// KeyCount returns the number of stored keys.
func (s *KeyStore) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// KeyIDs returns the IDs of all stored keys in unspecified order.
func (s *KeyStore) KeyIDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint64, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	return ids
}

// KeyInfo returns a descriptor for the key without exposing its bytes.
func (s *KeyStore) KeyInfo(id uint64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.keys[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrKeyNotFound, id)
	}
	return entry.String(), nil
}

// Clear wipes and removes all keys. Used at subsystem shutdown.
func (s *KeyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.keys {
		memguard.WipeBytes(entry.bytes)
		delete(s.keys, id)
	}
}
