// Package css implements a cryptographic subsystem that brokers encrypt,
// decrypt and hash services to callers through identifier-addressed,
// stateful channels.
//
// A Subsystem owns a key store and two channel registries (crypto and hash
// channels share one identifier space). Callers create channels, store keys,
// derive per-channel configurations from stored keys, activate one
// configuration at a time, and run batch or streaming transforms. All state
// is instance-scoped: independent Subsystem values share nothing.
//
// Key material is handled under a strict hygiene discipline: the key store
// never hands out references to stored bytes, and every path that replaces or
// releases key bytes wipes them first (memguard.WipeBytes), including error
// paths and shutdown.
//
// # Known limitations
//
// A configuration's IV is generated once at creation and reused for every
// transform under that configuration. CBC with a reused IV across independent
// messages weakens confidentiality; callers needing a fresh IV per message
// must create a new configuration per message. Key material is fitted to the
// cipher's key size by zero-padding or truncation, not a KDF, and key
// rotation XORs the key with fresh random bytes rather than applying a vetted
// derivation. These simplifications are deliberate and covered by tests.
package css
