package css

import (
	"context"
	"fmt"
)

// Request is one operation in the subsystem's transport-facing operation set.
// The set is closed: every variant is declared in this file, and Do resolves
// each to the corresponding typed method. A transport layer deserializes its
// wire representation into one of these variants and calls Do.
type Request interface {
	// Operation returns the wire-level operation name.
	Operation() string
}

// CreateCryptoChannelRequest creates a crypto channel.
type CreateCryptoChannelRequest struct {
	ModuleID   int
	PTEndpoint int
	CTEndpoint int
	Algorithm  string
	Duplexity  string
}

// CreateHashChannelRequest creates a hash channel.
type CreateHashChannelRequest struct {
	Algorithm string
}

// DestroyChannelRequest destroys a channel of either kind.
type DestroyChannelRequest struct {
	ChannelID uint64
}

// StoreKeyRequest stores user-provided key material.
type StoreKeyRequest struct {
	KeyData []byte
}

// UpdateKeyRequest rotates a stored key.
type UpdateKeyRequest struct {
	KeyID uint64
}

// UpdateCountRequest reads a key's rotation count.
type UpdateCountRequest struct {
	KeyID uint64
}

// ZeroizeKeyRequest wipes and removes a stored key.
type ZeroizeKeyRequest struct {
	KeyID uint64
}

// AddConfigurationRequest derives a configuration on a crypto channel.
type AddConfigurationRequest struct {
	ChannelID uint64
	KeyID     uint64
}

// ActivateConfigurationRequest activates a configuration on a crypto channel.
type ActivateConfigurationRequest struct {
	ChannelID uint64
	ConfigID  uint64
}

// EncryptPacketsRequest encrypts a batch of packets.
type EncryptPacketsRequest struct {
	ChannelID uint64
	Packets   [][]byte
}

// DecryptPacketsRequest decrypts a batch of packets.
type DecryptPacketsRequest struct {
	ChannelID uint64
	Packets   [][]byte
}

// TransformStreamRequest transforms one chunk of a streaming session.
type TransformStreamRequest struct {
	ChannelID      uint64
	Data           []byte
	StartOfMessage bool
	EndOfMessage   bool
	Encrypt        bool
}

// GenerateHashRequest pushes data and finalizes the digest in one call.
type GenerateHashRequest struct {
	ChannelID uint64
	Data      []byte
}

// StatisticsRequest reads subsystem statistics.
type StatisticsRequest struct{}

// Operation names match the original wire protocol.
func (CreateCryptoChannelRequest) Operation() string   { return "CREATE_CRYPTO_CHANNEL" }
func (CreateHashChannelRequest) Operation() string     { return "CREATE_HASH_CHANNEL" }
func (DestroyChannelRequest) Operation() string        { return "DESTROY_CHANNEL" }
func (StoreKeyRequest) Operation() string              { return "STORE_KEY" }
func (UpdateKeyRequest) Operation() string             { return "UPDATE_KEY" }
func (UpdateCountRequest) Operation() string           { return "GET_UPDATE_COUNT" }
func (ZeroizeKeyRequest) Operation() string            { return "ZEROIZE_KEY" }
func (AddConfigurationRequest) Operation() string      { return "ADD_CONFIGURATION" }
func (ActivateConfigurationRequest) Operation() string { return "ACTIVATE_CONFIGURATION" }
func (EncryptPacketsRequest) Operation() string        { return "ENCRYPT_PACKETS" }
func (DecryptPacketsRequest) Operation() string        { return "DECRYPT_PACKETS" }
func (TransformStreamRequest) Operation() string       { return "TRANSFORM_STREAM" }
func (GenerateHashRequest) Operation() string          { return "GENERATE_HASH" }
func (StatisticsRequest) Operation() string            { return "GET_STATS" }

// Do executes a request against the subsystem and returns the
// operation-specific result: a uint64 identifier, a []byte, a [][]byte, an
// int, a Statistics value, or nil for operations with no result.
func (s *Subsystem) Do(ctx context.Context, req Request) (any, error) {
	switch r := req.(type) {
	case CreateCryptoChannelRequest:
		return s.CreateCryptographicChannel(ctx, r.ModuleID, r.PTEndpoint, r.CTEndpoint, r.Algorithm, r.Duplexity), nil
	case CreateHashChannelRequest:
		return s.CreateHashChannel(ctx, r.Algorithm), nil
	case DestroyChannelRequest:
		s.DestroyChannel(ctx, r.ChannelID)
		return nil, nil
	case StoreKeyRequest:
		return s.StoreKey(ctx, r.KeyData)
	case UpdateKeyRequest:
		return nil, s.UpdateKey(ctx, r.KeyID)
	case UpdateCountRequest:
		return s.UpdateCount(r.KeyID), nil
	case ZeroizeKeyRequest:
		return nil, s.ZeroizeKey(ctx, r.KeyID)
	case AddConfigurationRequest:
		return s.AddConfiguration(ctx, r.ChannelID, r.KeyID)
	case ActivateConfigurationRequest:
		return nil, s.ActivateConfiguration(ctx, r.ChannelID, r.ConfigID)
	case EncryptPacketsRequest:
		return s.TransformPackets(ctx, r.ChannelID, r.Packets, true)
	case DecryptPacketsRequest:
		return s.TransformPackets(ctx, r.ChannelID, r.Packets, false)
	case TransformStreamRequest:
		return s.TransformStream(ctx, r.ChannelID, r.Data, r.StartOfMessage, r.EndOfMessage, r.Encrypt)
	case GenerateHashRequest:
		return s.GenerateHash(ctx, r.ChannelID, r.Data)
	case StatisticsRequest:
		return s.Statistics(), nil
	default:
		return nil, fmt.Errorf("%w: unknown request type %T", ErrInvalidInput, req)
	}
}
