package css

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func makeKey(size int) []byte {
	key := make([]byte, size)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func storeTestKey(t *testing.T, s *KeyStore, size int) uint64 {
	t.Helper()
	id, err := s.StoreKey(makeKey(size), "AES-128", "test key")
	if err != nil {
		t.Fatalf("StoreKey: %v", err)
	}
	return id
}

func TestStoreKeyEmpty(t *testing.T) {
	s := NewKeyStore()
	_, err := s.StoreKey(nil, "AES-128", "empty")
	if !IsInvalidInput(err) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStoreKeyIDsMonotonic(t *testing.T) {
	s := NewKeyStore()
	for want := uint64(1); want <= 5; want++ {
		id := storeTestKey(t, s, 16)
		if id != want {
			t.Errorf("StoreKey: got id %d, want %d", id, want)
		}
	}
}

func TestGetKeyReturnsCopy(t *testing.T) {
	s := NewKeyStore()
	id := storeTestKey(t, s, 16)

	first, err := s.GetKey(id)
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if !bytes.Equal(first, makeKey(16)) {
		t.Errorf("GetKey: got %x, want %x", first, makeKey(16))
	}

	// Mutating the returned copy must not affect stored material.
	for i := range first {
		first[i] = 0xFF
	}
	second, err := s.GetKey(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(second, makeKey(16)) {
		t.Error("stored key was mutated through a returned copy")
	}
}

func TestGetKeyNotFound(t *testing.T) {
	s := NewKeyStore()
	_, err := s.GetKey(42)
	if !IsKeyNotFound(err) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestUpdateKey(t *testing.T) {
	s := NewKeyStore()
	id := storeTestKey(t, s, 16)

	before, err := s.GetKey(id)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateKey(id); err != nil {
		t.Fatalf("UpdateKey: %v", err)
	}

	after, err := s.GetKey(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Errorf("UpdateKey changed key length: got %d, want %d", len(after), len(before))
	}
	if bytes.Equal(before, after) {
		t.Error("UpdateKey left key content unchanged")
	}
	if got := s.UpdateCount(id); got != 1 {
		t.Errorf("UpdateCount: got %d, want 1", got)
	}

	if err := s.UpdateKey(id); err != nil {
		t.Fatal(err)
	}
	if got := s.UpdateCount(id); got != 2 {
		t.Errorf("UpdateCount after second update: got %d, want 2", got)
	}
}

func TestUpdateKeyNotFound(t *testing.T) {
	s := NewKeyStore()
	if err := s.UpdateKey(7); !IsKeyNotFound(err) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestUpdateCountMissingKeySentinel(t *testing.T) {
	s := NewKeyStore()
	if got := s.UpdateCount(99); got != -1 {
		t.Errorf("UpdateCount for missing key: got %d, want -1", got)
	}

	// A stored key that was never rotated reports zero, not the sentinel.
	id := storeTestKey(t, s, 16)
	if got := s.UpdateCount(id); got != 0 {
		t.Errorf("UpdateCount for fresh key: got %d, want 0", got)
	}
}

func TestZeroizeKey(t *testing.T) {
	s := NewKeyStore()
	id := storeTestKey(t, s, 16)

	if err := s.ZeroizeKey(id); err != nil {
		t.Fatalf("ZeroizeKey: %v", err)
	}

	if s.KeyExists(id) {
		t.Error("KeyExists after zeroize: got true, want false")
	}
	if _, err := s.GetKey(id); !IsKeyNotFound(err) {
		t.Errorf("GetKey after zeroize: expected ErrKeyNotFound, got %v", err)
	}
	if err := s.ZeroizeKey(id); !IsKeyNotFound(err) {
		t.Errorf("second ZeroizeKey: expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyInfo(t *testing.T) {
	s := NewKeyStore()
	id, err := s.StoreKey(makeKey(32), "AES-256", "downlink key")
	if err != nil {
		t.Fatal(err)
	}

	// Reads bump the access counter, observable via the descriptor.
	if _, err := s.GetKey(id); err != nil {
		t.Fatal(err)
	}

	info, err := s.KeyInfo(id)
	if err != nil {
		t.Fatalf("KeyInfo: %v", err)
	}
	for _, want := range []string{"type=AES-256", "size=32 bytes", "accesses=1", "desc=downlink key"} {
		if !strings.Contains(info, want) {
			t.Errorf("KeyInfo: %q does not contain %q", info, want)
		}
	}

	if _, err := s.KeyInfo(404); !IsKeyNotFound(err) {
		t.Errorf("KeyInfo for missing key: expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyIDsAndCount(t *testing.T) {
	s := NewKeyStore()
	want := map[uint64]bool{}
	for i := 0; i < 3; i++ {
		want[storeTestKey(t, s, 16)] = true
	}

	if got := s.KeyCount(); got != 3 {
		t.Errorf("KeyCount: got %d, want 3", got)
	}
	ids := s.KeyIDs()
	if len(ids) != 3 {
		t.Fatalf("KeyIDs: got %d ids, want 3", len(ids))
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("KeyIDs returned unexpected id %d", id)
		}
	}
}

func TestClear(t *testing.T) {
	s := NewKeyStore()
	for i := 0; i < 4; i++ {
		storeTestKey(t, s, 16)
	}

	s.Clear()

	if got := s.KeyCount(); got != 0 {
		t.Errorf("KeyCount after Clear: got %d, want 0", got)
	}
}

func TestConcurrentStoreUniqueIDs(t *testing.T) {
	s := NewKeyStore()

	const goroutines = 16
	const perGoroutine = 32

	var wg sync.WaitGroup
	ids := make(chan uint64, goroutines*perGoroutine)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				id, err := s.StoreKey(makeKey(16), "AES-128", "concurrent")
				if err != nil {
					t.Error(err)
					return
				}
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint64]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate key id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != goroutines*perGoroutine {
		t.Errorf("got %d unique ids, want %d", len(seen), goroutines*perGoroutine)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := NewKeyStore()
	id := storeTestKey(t, s, 32)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key, err := s.GetKey(id)
				if err != nil {
					t.Error(err)
					return
				}
				if len(key) != 32 {
					t.Errorf("observed half-updated key of length %d", len(key))
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := s.UpdateKey(id); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
