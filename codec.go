package css

import (
	"context"
	"fmt"

	"github.com/rbaliyan/config/codec"
)

// ChannelCodec wraps an inner codec with channel encryption. On Encode, the
// inner codec serializes the value and the result is encrypted through the
// bound crypto channel; on Decode, the data is decrypted and the inner codec
// deserializes the plaintext.
//
// The channel must have an active configuration before the codec is used.
// ChannelCodec is safe for concurrent use; the channel serializes transforms.
type ChannelCodec struct {
	inner     codec.Codec
	subsystem *Subsystem
	channelID uint64
	name      string
}

// Compile-time interface check.
var _ codec.Codec = (*ChannelCodec)(nil)

// NewChannelCodec creates a codec that routes the inner codec's bytes through
// the given crypto channel. The codec name is "channel:<inner>", e.g.
// "channel:json". Returns an error if inner or subsystem is nil, or the
// channel does not exist.
func NewChannelCodec(inner codec.Codec, subsystem *Subsystem, channelID uint64) (*ChannelCodec, error) {
	if inner == nil {
		return nil, fmt.Errorf("css: NewChannelCodec inner codec is nil")
	}
	if subsystem == nil {
		return nil, fmt.Errorf("css: NewChannelCodec subsystem is nil")
	}
	if _, err := subsystem.CryptoChannel(channelID); err != nil {
		return nil, err
	}

	return &ChannelCodec{
		inner:     inner,
		subsystem: subsystem,
		channelID: channelID,
		name:      "channel:" + inner.Name(),
	}, nil
}

// Name returns the codec name, e.g. "channel:json".
func (c *ChannelCodec) Name() string {
	return c.name
}

// Encode serializes the value using the inner codec, then encrypts the result
// on the bound channel.
func (c *ChannelCodec) Encode(ctx context.Context, v any) ([]byte, error) {
	plaintext, err := c.inner.Encode(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("css: inner encode failed: %w", err)
	}

	return c.subsystem.TransformStream(ctx, c.channelID, plaintext, true, true, true)
}

// Decode decrypts the data on the bound channel, then deserializes the
// plaintext using the inner codec.
func (c *ChannelCodec) Decode(ctx context.Context, data []byte, v any) error {
	plaintext, err := c.subsystem.TransformStream(ctx, c.channelID, data, true, true, false)
	if err != nil {
		return err
	}

	if err := c.inner.Decode(ctx, plaintext, v); err != nil {
		return fmt.Errorf("css: inner decode failed: %w", err)
	}
	return nil
}
