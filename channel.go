package css

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"
	"io"
	"strings"
	"sync"
)

// cipherPolicy describes the concrete primitive parameters an algorithm name
// resolves to. All supported modes are block-chained (CBC) with PKCS#7 padding.
type cipherPolicy struct {
	name     string
	keySize  int
	ivSize   int
	newBlock func(key []byte) (cipher.Block, error)
}

// resolvePolicy maps a declared algorithm family to its primitive policy.
// Unknown names fail with ErrUnsupportedAlgorithm.
func resolvePolicy(algorithm string) (cipherPolicy, error) {
	switch strings.ToUpper(algorithm) {
	case "AES", "AES-128":
		return cipherPolicy{name: "AES-128", keySize: 16, ivSize: aes.BlockSize, newBlock: aes.NewCipher}, nil
	case "AES-256":
		return cipherPolicy{name: "AES-256", keySize: 32, ivSize: aes.BlockSize, newBlock: aes.NewCipher}, nil
	case "DES":
		return cipherPolicy{name: "DES", keySize: 8, ivSize: des.BlockSize, newBlock: des.NewCipher}, nil
	default:
		return cipherPolicy{}, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

// configuration is an immutable bundle of derived key and IV bound to one
// channel. The IV is generated once at construction and reused for every
// transform under this configuration; callers needing a fresh IV per message
// must create a new configuration per message (see package doc).
type configuration struct {
	id    uint64
	keyID uint64
	block cipher.Block
	iv    []byte
}

// newConfiguration derives key material for the policy and generates the
// configuration's IV. Key material shorter than the policy size is zero-padded
// on the right; longer material is truncated. No KDF is applied.
func newConfiguration(id, keyID uint64, keyData []byte, policy cipherPolicy, random io.Reader) (*configuration, error) {
	derived := make([]byte, policy.keySize)
	copy(derived, keyData)

	block, err := policy.newBlock(derived)
	if err != nil {
		return nil, fmt.Errorf("css: cipher init failed: %w", err)
	}

	iv := make([]byte, policy.ivSize)
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, fmt.Errorf("css: failed to generate IV: %w", err)
	}

	return &configuration{id: id, keyID: keyID, block: block, iv: iv}, nil
}

// CryptoChannel is a configurable encrypt/decrypt endpoint bound to one
// algorithm family. A channel owns a set of configurations, of which at most
// one is active; transforms without an active configuration fail with
// ErrNotConfigured.
//
// All operations on a single channel are serialized by an internal lock, so a
// channel is safe for concurrent use.
type CryptoChannel struct {
	id        uint64
	algorithm string
	duplexity string
	random    io.Reader

	mu           sync.Mutex
	configs      map[uint64]*configuration
	nextConfigID uint64
	active       *configuration
	streaming    bool
	packets      int
}

func newCryptoChannel(id uint64, algorithm, duplexity string, random io.Reader) *CryptoChannel {
	return &CryptoChannel{
		id:           id,
		algorithm:    algorithm,
		duplexity:    duplexity,
		random:       random,
		configs:      make(map[uint64]*configuration),
		nextConfigID: 1,
	}
}

// ID returns the channel identifier.
func (c *CryptoChannel) ID() uint64 { return c.id }

// Algorithm returns the declared algorithm family.
func (c *CryptoChannel) Algorithm() string { return c.algorithm }

// Duplexity returns the declared duplex mode. Recorded, not enforced.
func (c *CryptoChannel) Duplexity() string { return c.duplexity }

// AddConfiguration derives a new configuration from the given key material and
// registers it on the channel. Configuration IDs are unique per channel,
// starting at 1. The new configuration is not active until
// ActivateConfiguration selects it.
func (c *CryptoChannel) AddConfiguration(keyID uint64, keyData []byte) (uint64, error) {
	policy, err := resolvePolicy(c.algorithm)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextConfigID
	config, err := newConfiguration(id, keyID, keyData, policy, c.random)
	if err != nil {
		return 0, err
	}
	c.nextConfigID++
	c.configs[id] = config

	return id, nil
}

// ActivateConfiguration makes the given configuration the channel's active one.
// Activation is a hard reset of session state: the streaming flag is cleared
// and the packet counter zeroed. Returns ErrConfigNotFound for an unknown ID.
func (c *CryptoChannel) ActivateConfiguration(configID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, ok := c.configs[configID]
	if !ok {
		return fmt.Errorf("%w: config %d on channel %d", ErrConfigNotFound, configID, c.id)
	}

	c.active = config
	c.streaming = false
	c.packets = 0
	return nil
}

// IsConfigured reports whether an active configuration is set.
func (c *CryptoChannel) IsConfigured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Encrypt encrypts plaintext under the active configuration (CBC mode, PKCS#7
// padding). The ciphertext length is always a multiple of the block size.
// A successful call increments the processed-packet counter.
func (c *CryptoChannel) Encrypt(plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encryptLocked(plaintext)
}

func (c *CryptoChannel) encryptLocked(plaintext []byte) ([]byte, error) {
	if c.active == nil {
		return nil, fmt.Errorf("%w: channel %d", ErrNotConfigured, c.id)
	}

	block := c.active.block
	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.active.iv).CryptBlocks(ciphertext, padded)

	c.packets++
	return ciphertext, nil
}

// Decrypt decrypts ciphertext under the active configuration. Truncated input
// or bad padding fails with ErrTransformFailed. A successful call increments
// the processed-packet counter.
func (c *CryptoChannel) Decrypt(ciphertext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decryptLocked(ciphertext)
}

func (c *CryptoChannel) decryptLocked(ciphertext []byte) ([]byte, error) {
	if c.active == nil {
		return nil, fmt.Errorf("%w: channel %d", ErrNotConfigured, c.id)
	}

	block := c.active.block
	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of block size %d",
			ErrTransformFailed, len(ciphertext), bs)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.active.iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, bs)
	if err != nil {
		return nil, err
	}

	c.packets++
	return plaintext, nil
}

// transformChunk applies the stream markers and the transform in one critical
// section, so concurrent stream calls on the same channel cannot interleave
// a marker between another call's marker and transform.
func (c *CryptoChannel) transformChunk(data []byte, startOfMessage, endOfMessage, encrypt bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if startOfMessage {
		c.streaming = true
		c.packets = 0
	}

	var result []byte
	var err error
	if encrypt {
		result, err = c.encryptLocked(data)
	} else {
		result, err = c.decryptLocked(data)
	}
	if err != nil {
		return nil, err
	}

	if endOfMessage {
		c.streaming = false
	}

	return result, nil
}

// ResetStreamState marks the channel as mid-stream and zeroes the packet
// counter. Invoked on a start-of-message marker. The marker does not alter
// cryptographic state; each stream chunk is an independent block-mode
// operation under the configuration's fixed IV.
func (c *CryptoChannel) ResetStreamState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = true
	c.packets = 0
}

// FinalizeStream clears the mid-stream flag. Invoked on an end-of-message marker.
func (c *CryptoChannel) FinalizeStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
}

// Streaming reports whether the channel is between SOM and EOM markers.
func (c *CryptoChannel) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// PacketsProcessed returns the number of successful transforms since the last
// activation or SOM marker.
func (c *CryptoChannel) PacketsProcessed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.packets
}

// pkcs7Pad appends PKCS#7 padding. Always adds at least one byte, so the
// output length is a strictly larger multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad validates and strips PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: invalid padded length %d", ErrTransformFailed, len(data))
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrTransformFailed)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrTransformFailed)
		}
	}

	return data[:len(data)-n], nil
}
