package css

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"math"
	"strings"
	"sync"
)

// HashChannel is an incremental digest accumulator bound to one algorithm.
// It is safe for concurrent use.
type HashChannel struct {
	id        uint64
	algorithm string

	mu       sync.Mutex
	digest   hash.Hash
	buffered int
}

// resolveDigest maps an algorithm name to a digest constructor and its
// canonical name. Unrecognized names fall back to SHA-256 rather than failing.
func resolveDigest(algorithm string) (string, hash.Hash) {
	switch strings.ToUpper(algorithm) {
	case "SHA-512", "SHA512":
		return "SHA-512", sha512.New()
	case "MD5":
		return "MD5", md5.New()
	case "SHA-1", "SHA1":
		return "SHA-1", sha1.New()
	default:
		return "SHA-256", sha256.New()
	}
}

func newHashChannel(id uint64, algorithm string) *HashChannel {
	name, digest := resolveDigest(algorithm)
	return &HashChannel{id: id, algorithm: name, digest: digest}
}

// ID returns the channel identifier.
func (c *HashChannel) ID() uint64 { return c.id }

// Algorithm returns the resolved digest algorithm name. When the channel was
// created with an unrecognized name, this reports the canonical name of the
// fallback digest ("SHA-256"), not the name the channel was declared with.
func (c *HashChannel) Algorithm() string { return c.algorithm }

// PushData feeds data into the running digest. Empty input is a no-op.
func (c *HashChannel) PushData(data []byte) {
	if len(data) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.digest.Write(data)
	c.buffered += len(data)
}

// Hash finalizes the current accumulation and returns the digest. The
// accumulator is reset afterwards, so reading twice without pushing more data
// yields the digest of empty input; the buffered byte tally is kept until
// Reset for diagnostics.
func (c *HashChannel) Hash() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := c.digest.Sum(nil)
	c.digest.Reset()
	return sum
}

// hashOnce pushes data and finalizes the digest in one critical section,
// backing the subsystem's one-shot GenerateHash.
func (c *HashChannel) hashOnce(data []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(data) > 0 {
		c.digest.Write(data)
		c.buffered += len(data)
	}
	sum := c.digest.Sum(nil)
	c.digest.Reset()
	return sum
}

// Reset clears the accumulator and the buffered byte tally, starting a new
// accumulation cycle.
func (c *HashChannel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.digest.Reset()
	c.buffered = 0
}

// BufferedSize returns the number of bytes pushed since the last Reset.
func (c *HashChannel) BufferedSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

// MaxDataSize returns the maximum data size the channel can process.
// Hashing is practically unbounded.
func (c *HashChannel) MaxDataSize() int {
	return math.MaxInt32
}

// Info returns a diagnostic descriptor for the channel.
func (c *HashChannel) Info() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("HashChannel[id=%d, algorithm=%s, buffered=%d bytes]", c.id, c.algorithm, c.buffered)
}
