package css

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestHashKnownAnswer(t *testing.T) {
	c := newHashChannel(1, "SHA-256")
	c.PushData([]byte("abc"))

	got := hex.EncodeToString(c.Hash())
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("SHA-256(abc): got %s, want %s", got, want)
	}
}

func TestDigestLengths(t *testing.T) {
	tests := []struct {
		algorithm string
		wantLen   int
	}{
		{"SHA-256", 32},
		{"SHA256", 32},
		{"SHA-512", 64},
		{"SHA512", 64},
		{"MD5", 16},
		{"SHA-1", 20},
		{"sha1", 20},
	}
	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			c := newHashChannel(1, tt.algorithm)
			c.PushData([]byte("data"))
			if got := len(c.Hash()); got != tt.wantLen {
				t.Errorf("digest length: got %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestUnrecognizedAlgorithmDefaultsToSHA256(t *testing.T) {
	c := newHashChannel(1, "WHIRLPOOL")
	if c.Algorithm() != "SHA-256" {
		t.Errorf("Algorithm: got %s, want SHA-256", c.Algorithm())
	}

	c.PushData([]byte("abc"))
	want := sha256.Sum256([]byte("abc"))
	if !bytes.Equal(c.Hash(), want[:]) {
		t.Error("fallback digest does not match SHA-256")
	}
}

func TestHashDeterministic(t *testing.T) {
	a := newHashChannel(1, "SHA-512")
	b := newHashChannel(2, "SHA-512")
	a.PushData([]byte("identical input"))
	b.PushData([]byte("identical input"))
	if !bytes.Equal(a.Hash(), b.Hash()) {
		t.Error("identical input produced differing digests")
	}
}

func TestHashIncrementalAccumulation(t *testing.T) {
	whole := newHashChannel(1, "SHA-256")
	whole.PushData([]byte("hello world"))

	chunked := newHashChannel(2, "SHA-256")
	chunked.PushData([]byte("hello "))
	chunked.PushData([]byte("world"))

	if !bytes.Equal(whole.Hash(), chunked.Hash()) {
		t.Error("chunked accumulation differs from whole-input digest")
	}
}

func TestHashFinalizesAccumulator(t *testing.T) {
	c := newHashChannel(1, "SHA-256")
	c.PushData([]byte("abc"))
	first := c.Hash()

	// Reading again without pushing reflects an empty continuation.
	second := c.Hash()
	empty := sha256.Sum256(nil)
	if bytes.Equal(first, second) {
		t.Error("second read returned the same digest; accumulator was not finalized")
	}
	if !bytes.Equal(second, empty[:]) {
		t.Errorf("second read: got %x, want digest of empty input %x", second, empty)
	}
}

func TestPushDataEmptyNoOp(t *testing.T) {
	c := newHashChannel(1, "SHA-256")
	c.PushData(nil)
	c.PushData([]byte{})
	if got := c.BufferedSize(); got != 0 {
		t.Errorf("BufferedSize after empty pushes: got %d, want 0", got)
	}
}

func TestHashReset(t *testing.T) {
	c := newHashChannel(1, "SHA-256")
	c.PushData([]byte("stale"))
	c.Reset()

	if got := c.BufferedSize(); got != 0 {
		t.Errorf("BufferedSize after Reset: got %d, want 0", got)
	}

	c.PushData([]byte("abc"))
	want := sha256.Sum256([]byte("abc"))
	if !bytes.Equal(c.Hash(), want[:]) {
		t.Error("digest after Reset includes pre-reset data")
	}
}

func TestHashInfo(t *testing.T) {
	c := newHashChannel(7, "MD5")
	c.PushData([]byte("12345"))

	info := c.Info()
	for _, want := range []string{"id=7", "algorithm=MD5", "buffered=5 bytes"} {
		if !strings.Contains(info, want) {
			t.Errorf("Info: %q does not contain %q", info, want)
		}
	}
}

func TestMaxDataSize(t *testing.T) {
	c := newHashChannel(1, "SHA-256")
	if c.MaxDataSize() <= 0 {
		t.Errorf("MaxDataSize: got %d, want positive", c.MaxDataSize())
	}
}
