package css

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/awnumar/memguard"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Size limits enforced at the subsystem boundary.
const (
	maxPacketSize  = 64 * 1024 // per-packet cap for batch transforms
	maxPayloadSize = 32 * 1024 // informational
	maxBypassSize  = 4 * 1024  // reserved, unused by current operations
)

// Subsystem is the sole entry point for channel lifecycle and transform
// operations. It owns the key store and both channel registries; crypto and
// hash channels draw identifiers from one shared counter, so IDs never
// collide across the two kinds.
//
// A Subsystem is safe for concurrent use. Operations on distinct channels do
// not serialize against each other; operations on the same channel do.
type Subsystem struct {
	log     *zap.Logger
	metrics *subsystemMetrics
	tracer  trace.Tracer
	random  io.Reader
	keys    *KeyStore

	mu          sync.RWMutex
	crypto      map[uint64]*CryptoChannel
	hash        map[uint64]*HashChannel
	nextChannel uint64
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithLogger sets the logger for lifecycle events. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Subsystem) {
		if log != nil {
			s.log = log
		}
	}
}

// WithKeyStore sets the key store, allowing a pre-seeded store (e.g. one
// populated by the vault provider) to be injected. Defaults to an empty store.
func WithKeyStore(keys *KeyStore) Option {
	return func(s *Subsystem) {
		if keys != nil {
			s.keys = keys
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for subsystem
// metrics. Defaults to the global provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(s *Subsystem) {
		if provider != nil {
			s.metrics = newSubsystemMetrics(provider)
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for transform
// spans. Defaults to the global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *Subsystem) {
		if provider != nil {
			s.tracer = provider.Tracer(instrumentationName)
		}
	}
}

// New creates a Subsystem. Each instance is fully independent: registries and
// the key store are instance state, never process globals.
func New(opts ...Option) *Subsystem {
	s := &Subsystem{
		log:         zap.NewNop(),
		random:      rand.Reader,
		keys:        NewKeyStore(),
		crypto:      make(map[uint64]*CryptoChannel),
		hash:        make(map[uint64]*HashChannel),
		nextChannel: 1,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = newSubsystemMetrics(otel.GetMeterProvider())
	}
	if s.tracer == nil {
		s.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}

	return s
}

// CreateCryptographicChannel allocates and registers a new crypto channel.
// The endpoints and module ID are recorded for diagnostics only. The
// algorithm name is resolved when the first configuration is added, so an
// unsupported name surfaces from AddConfiguration rather than here.
func (s *Subsystem) CreateCryptographicChannel(ctx context.Context, moduleID, ptEndpoint, ctEndpoint int, algorithm, duplexity string) uint64 {
	s.mu.Lock()
	id := s.nextChannel
	s.nextChannel++
	s.crypto[id] = newCryptoChannel(id, algorithm, duplexity, s.random)
	s.mu.Unlock()

	s.log.Info("crypto channel created",
		zap.Uint64("channel_id", id),
		zap.String("algorithm", algorithm),
		zap.String("duplexity", duplexity),
		zap.Int("module_id", moduleID),
		zap.Int("pt_endpoint", ptEndpoint),
		zap.Int("ct_endpoint", ctEndpoint),
	)
	s.metrics.recordChannelCreated(ctx, "crypto")

	return id
}

// CreateHashChannel allocates and registers a new hash channel. An
// unrecognized algorithm name falls back to SHA-256.
func (s *Subsystem) CreateHashChannel(ctx context.Context, algorithm string) uint64 {
	s.mu.Lock()
	id := s.nextChannel
	s.nextChannel++
	channel := newHashChannel(id, algorithm)
	s.hash[id] = channel
	s.mu.Unlock()

	s.log.Info("hash channel created",
		zap.Uint64("channel_id", id),
		zap.String("algorithm", channel.Algorithm()),
	)
	s.metrics.recordChannelCreated(ctx, "hash")

	return id
}

// DestroyChannel removes the channel from whichever registry holds it.
// Destruction is idempotent: an unknown ID is logged, not an error.
func (s *Subsystem) DestroyChannel(ctx context.Context, channelID uint64) {
	s.mu.Lock()
	_, isCrypto := s.crypto[channelID]
	_, isHash := s.hash[channelID]
	delete(s.crypto, channelID)
	delete(s.hash, channelID)
	s.mu.Unlock()

	switch {
	case isCrypto:
		s.log.Info("crypto channel destroyed", zap.Uint64("channel_id", channelID))
		s.metrics.recordChannelDestroyed(ctx)
	case isHash:
		s.log.Info("hash channel destroyed", zap.Uint64("channel_id", channelID))
		s.metrics.recordChannelDestroyed(ctx)
	default:
		s.log.Warn("destroy of unknown channel", zap.Uint64("channel_id", channelID))
	}
}

// CryptoChannel returns the crypto channel with the given ID.
func (s *Subsystem) CryptoChannel(channelID uint64) (*CryptoChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channel, ok := s.crypto[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: crypto channel %d", ErrChannelNotFound, channelID)
	}
	return channel, nil
}

// HashChannel returns the hash channel with the given ID. Callers needing
// multi-chunk accumulation use the channel's PushData/Hash directly.
func (s *Subsystem) HashChannel(channelID uint64) (*HashChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channel, ok := s.hash[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: hash channel %d", ErrChannelNotFound, channelID)
	}
	return channel, nil
}

// AddConfiguration resolves the key from the key store and derives a new
// configuration on the channel. The intermediate key copy is wiped before
// return on every path.
func (s *Subsystem) AddConfiguration(ctx context.Context, channelID, keyID uint64) (uint64, error) {
	channel, err := s.CryptoChannel(channelID)
	if err != nil {
		return 0, err
	}

	keyData, err := s.keys.GetKey(keyID)
	if err != nil {
		return 0, err
	}
	defer memguard.WipeBytes(keyData)

	configID, err := channel.AddConfiguration(keyID, keyData)
	if err != nil {
		return 0, err
	}

	s.log.Info("configuration added",
		zap.Uint64("channel_id", channelID),
		zap.Uint64("config_id", configID),
		zap.Uint64("key_id", keyID),
	)

	return configID, nil
}

// ActivateConfiguration makes the given configuration active on the channel,
// resetting the channel's streaming flag and packet counter.
func (s *Subsystem) ActivateConfiguration(ctx context.Context, channelID, configID uint64) error {
	channel, err := s.CryptoChannel(channelID)
	if err != nil {
		return err
	}

	if err := channel.ActivateConfiguration(configID); err != nil {
		return err
	}

	s.log.Info("configuration activated",
		zap.Uint64("channel_id", channelID),
		zap.Uint64("config_id", configID),
	)

	return nil
}

// TransformPackets encrypts or decrypts a batch of packets on the given
// channel. Packets are transformed independently and in input order; output
// order matches input order.
//
// The batch is all-or-nothing: any packet over the 64 KiB limit fails the
// whole call with ErrPacketTooLarge before any packet is transformed, and a
// primitive failure mid-batch discards all output.
func (s *Subsystem) TransformPackets(ctx context.Context, channelID uint64, packets [][]byte, encrypt bool) ([][]byte, error) {
	ctx, span := s.tracer.Start(ctx, "css.TransformPackets", trace.WithAttributes(
		attribute.Int64("css.channel_id", int64(channelID)),
		attribute.Int("css.packet_count", len(packets)),
		attribute.Bool("css.encrypt", encrypt),
	))
	defer span.End()

	channel, err := s.CryptoChannel(channelID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !channel.IsConfigured() {
		err := fmt.Errorf("%w: channel %d", ErrNotConfigured, channelID)
		span.RecordError(err)
		return nil, err
	}

	for i, packet := range packets {
		if len(packet) > maxPacketSize {
			err := fmt.Errorf("%w: packet %d is %d bytes, limit %d", ErrPacketTooLarge, i, len(packet), maxPacketSize)
			span.RecordError(err)
			return nil, err
		}
	}

	results := make([][]byte, 0, len(packets))
	for _, packet := range packets {
		var result []byte
		if encrypt {
			result, err = channel.Encrypt(packet)
		} else {
			result, err = channel.Decrypt(packet)
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		results = append(results, result)
	}

	s.metrics.recordPackets(ctx, len(results), encrypt)
	return results, nil
}

// TransformStream transforms one chunk of a streaming session. A set
// start-of-message marker resets the channel's stream state before the
// transform; a set end-of-message marker finalizes it after. The markers do
// not alter cryptographic state: each chunk is an independent block-mode
// operation under the configuration's fixed IV.
func (s *Subsystem) TransformStream(ctx context.Context, channelID uint64, data []byte, startOfMessage, endOfMessage, encrypt bool) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "css.TransformStream", trace.WithAttributes(
		attribute.Int64("css.channel_id", int64(channelID)),
		attribute.Bool("css.som", startOfMessage),
		attribute.Bool("css.eom", endOfMessage),
		attribute.Bool("css.encrypt", encrypt),
	))
	defer span.End()

	channel, err := s.CryptoChannel(channelID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !channel.IsConfigured() {
		err := fmt.Errorf("%w: channel %d", ErrNotConfigured, channelID)
		span.RecordError(err)
		return nil, err
	}

	result, err := channel.transformChunk(data, startOfMessage, endOfMessage, encrypt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.recordPackets(ctx, 1, encrypt)
	return result, nil
}

// GenerateHash pushes data into the hash channel and finalizes the digest in
// one call. For multi-chunk accumulation use HashChannel directly.
func (s *Subsystem) GenerateHash(ctx context.Context, channelID uint64, data []byte) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "css.GenerateHash", trace.WithAttributes(
		attribute.Int64("css.channel_id", int64(channelID)),
	))
	defer span.End()

	channel, err := s.HashChannel(channelID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	digest := channel.hashOnce(data)

	s.metrics.recordHash(ctx)
	return digest, nil
}

// StoreKey stores user-provided key material in the key store.
func (s *Subsystem) StoreKey(ctx context.Context, keyData []byte) (uint64, error) {
	keyID, err := s.keys.StoreKey(keyData, "UNKNOWN", "User-provided key")
	if err != nil {
		return 0, err
	}

	s.log.Info("key stored", zap.Uint64("key_id", keyID), zap.Int("size", len(keyData)))
	s.metrics.recordKeyStored(ctx)

	return keyID, nil
}

// UpdateKey rotates the key in the key store.
func (s *Subsystem) UpdateKey(ctx context.Context, keyID uint64) error {
	if err := s.keys.UpdateKey(keyID); err != nil {
		return err
	}
	s.log.Info("key updated", zap.Uint64("key_id", keyID))
	return nil
}

// UpdateCount returns the key's rotation count, or -1 if the key does not exist.
func (s *Subsystem) UpdateCount(keyID uint64) int {
	return s.keys.UpdateCount(keyID)
}

// ZeroizeKey wipes and removes the key from the key store.
func (s *Subsystem) ZeroizeKey(ctx context.Context, keyID uint64) error {
	if err := s.keys.ZeroizeKey(keyID); err != nil {
		return err
	}
	s.log.Info("key zeroized", zap.Uint64("key_id", keyID))
	return nil
}

// Keys returns the subsystem's key store.
func (s *Subsystem) Keys() *KeyStore {
	return s.keys
}

// MaxPacketSize returns the per-packet limit for batch transforms.
func (s *Subsystem) MaxPacketSize() int { return maxPacketSize }

// MaxPayloadSize returns the informational payload limit.
func (s *Subsystem) MaxPayloadSize() int { return maxPayloadSize }

// MaxBypassSize returns the reserved bypass limit.
func (s *Subsystem) MaxBypassSize() int { return maxBypassSize }

// Statistics holds counts of live channels and stored keys.
type Statistics struct {
	CryptoChannels int
	HashChannels   int
	StoredKeys     int
}

// String formats the statistics as a multi-line descriptor.
func (st Statistics) String() string {
	return fmt.Sprintf("CSS Statistics:\n  Crypto Channels: %d\n  Hash Channels: %d\n  Stored Keys: %d",
		st.CryptoChannels, st.HashChannels, st.StoredKeys)
}

// Statistics returns counts of live crypto channels, live hash channels and
// stored keys.
func (s *Subsystem) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Statistics{
		CryptoChannels: len(s.crypto),
		HashChannels:   len(s.hash),
		StoredKeys:     s.keys.KeyCount(),
	}
}

// Shutdown clears both channel registries and zeroizes all stored keys. It is
// idempotent and safe to race against in-flight operations, which may then
// fail with not-found errors.
func (s *Subsystem) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.crypto = make(map[uint64]*CryptoChannel)
	s.hash = make(map[uint64]*HashChannel)
	s.mu.Unlock()

	s.keys.Clear()
	s.log.Info("subsystem shut down")
}
