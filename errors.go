package css

import "errors"

var (
	// ErrInvalidInput is returned when an argument is malformed, e.g. empty key bytes.
	ErrInvalidInput = errors.New("css: invalid input")

	// ErrChannelNotFound is returned when a channel ID is not registered.
	ErrChannelNotFound = errors.New("css: channel not found")

	// ErrKeyNotFound is returned when a key ID is not present in the key store.
	ErrKeyNotFound = errors.New("css: key not found")

	// ErrConfigNotFound is returned when a configuration ID is unknown to a channel.
	ErrConfigNotFound = errors.New("css: configuration not found")

	// ErrUnsupportedAlgorithm is returned when an algorithm name cannot be resolved
	// and no lenient default applies.
	ErrUnsupportedAlgorithm = errors.New("css: unsupported algorithm")

	// ErrNotConfigured is returned when a transform is attempted on a channel
	// with no active configuration.
	ErrNotConfigured = errors.New("css: channel not configured")

	// ErrPacketTooLarge is returned when a packet exceeds MaxPacketSize.
	ErrPacketTooLarge = errors.New("css: packet too large")

	// ErrTransformFailed is returned when the underlying primitive rejects an
	// operation (wrong key, truncated ciphertext, bad padding).
	ErrTransformFailed = errors.New("css: transform failed")
)

// IsInvalidInput returns true if the error is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsChannelNotFound returns true if the error is or wraps ErrChannelNotFound.
func IsChannelNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound)
}

// IsKeyNotFound returns true if the error is or wraps ErrKeyNotFound.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsConfigNotFound returns true if the error is or wraps ErrConfigNotFound.
func IsConfigNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}

// IsUnsupportedAlgorithm returns true if the error is or wraps ErrUnsupportedAlgorithm.
func IsUnsupportedAlgorithm(err error) bool {
	return errors.Is(err, ErrUnsupportedAlgorithm)
}

// IsNotConfigured returns true if the error is or wraps ErrNotConfigured.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsPacketTooLarge returns true if the error is or wraps ErrPacketTooLarge.
func IsPacketTooLarge(err error) bool {
	return errors.Is(err, ErrPacketTooLarge)
}

// IsTransformFailed returns true if the error is or wraps ErrTransformFailed.
func IsTransformFailed(err error) bool {
	return errors.Is(err, ErrTransformFailed)
}
