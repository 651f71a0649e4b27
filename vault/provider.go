// Package vault seeds a css.KeyStore from HashiCorp Vault Transit secrets.
//
// Key material is decrypted via the Transit decrypt endpoint at import time
// and stored in the key store; the plaintext copies held during import are
// wiped before return. The Vault client is not retained.
//
// Usage:
//
//	keys := css.NewKeyStore()
//	ids, err := vault.Import(ctx, client, keys,
//	    vault.WithEncryptedKey(ciphertext, "my-transit-key", "AES-128", "radio uplink key"),
//	)
//	sub := css.New(css.WithKeyStore(keys))
package vault

import (
	"context"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/secradio/css"
)

// Client abstracts the Vault Transit decrypt operation. This allows injecting
// a mock for testing or wrapping any Vault client library.
type Client interface {
	// TransitDecrypt decrypts ciphertext using the named Transit key.
	// The ciphertext should be in Vault's format (e.g., "vault:v1:base64data").
	// Returns the plaintext bytes.
	TransitDecrypt(ctx context.Context, keyName string, ciphertext string) ([]byte, error)
}

// Option configures an Import call.
type Option func(*options)

type options struct {
	encryptedKeys []encryptedKeyEntry
}

type encryptedKeyEntry struct {
	ciphertext     string // Vault Transit ciphertext (e.g., "vault:v1:...")
	transitKeyName string
	keyType        string
	description    string
}

// WithEncryptedKey adds a Transit-encrypted key to be decrypted and stored at
// import time. The transitKeyName is the name of the Transit key in Vault;
// keyType and description are recorded on the key store entry.
func WithEncryptedKey(ciphertext, transitKeyName, keyType, description string) Option {
	return func(o *options) {
		o.encryptedKeys = append(o.encryptedKeys, encryptedKeyEntry{
			ciphertext:     ciphertext,
			transitKeyName: transitKeyName,
			keyType:        keyType,
			description:    description,
		})
	}
}

// Import decrypts the configured keys through the Vault Transit engine and
// stores them in the key store. It returns the allocated key IDs in the order
// the keys were configured.
//
// At least one key must be provided via WithEncryptedKey. Plaintext copies
// held during import are wiped before return on every path.
func Import(ctx context.Context, client Client, keys *css.KeyStore, opts ...Option) ([]uint64, error) {
	if client == nil {
		return nil, fmt.Errorf("vault: client is nil")
	}
	if keys == nil {
		return nil, fmt.Errorf("vault: key store is nil")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.encryptedKeys) == 0 {
		return nil, fmt.Errorf("vault: at least one encrypted key is required")
	}

	ids := make([]uint64, 0, len(o.encryptedKeys))
	for _, ek := range o.encryptedKeys {
		plaintext, err := client.TransitDecrypt(ctx, ek.transitKeyName, ek.ciphertext)
		if err != nil {
			return nil, fmt.Errorf("vault: failed to decrypt key %q: %w", ek.transitKeyName, err)
		}

		id, err := keys.StoreKey(plaintext, ek.keyType, ek.description)
		memguard.WipeBytes(plaintext)
		if err != nil {
			return nil, fmt.Errorf("vault: failed to store key %q: %w", ek.transitKeyName, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}
