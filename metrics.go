package css

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/secradio/css"

// subsystemMetrics bundles the subsystem's OpenTelemetry instruments.
// Instrument creation errors are routed to the global otel error handler;
// a nil instrument is simply skipped at record time.
type subsystemMetrics struct {
	channelsCreated   metric.Int64Counter
	channelsDestroyed metric.Int64Counter
	packetsProcessed  metric.Int64Counter
	hashesGenerated   metric.Int64Counter
	keysStored        metric.Int64Counter
}

func newSubsystemMetrics(provider metric.MeterProvider) *subsystemMetrics {
	meter := provider.Meter(instrumentationName)
	m := &subsystemMetrics{}

	var err error
	if m.channelsCreated, err = meter.Int64Counter("css.channels.created",
		metric.WithDescription("Channels created, by kind")); err != nil {
		otel.Handle(err)
	}
	if m.channelsDestroyed, err = meter.Int64Counter("css.channels.destroyed",
		metric.WithDescription("Channels destroyed")); err != nil {
		otel.Handle(err)
	}
	if m.packetsProcessed, err = meter.Int64Counter("css.packets.processed",
		metric.WithDescription("Packets transformed, by direction")); err != nil {
		otel.Handle(err)
	}
	if m.hashesGenerated, err = meter.Int64Counter("css.hashes.generated",
		metric.WithDescription("Digests finalized")); err != nil {
		otel.Handle(err)
	}
	if m.keysStored, err = meter.Int64Counter("css.keys.stored",
		metric.WithDescription("Keys stored")); err != nil {
		otel.Handle(err)
	}

	return m
}

func (m *subsystemMetrics) recordChannelCreated(ctx context.Context, kind string) {
	if m.channelsCreated != nil {
		m.channelsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (m *subsystemMetrics) recordChannelDestroyed(ctx context.Context) {
	if m.channelsDestroyed != nil {
		m.channelsDestroyed.Add(ctx, 1)
	}
}

func (m *subsystemMetrics) recordPackets(ctx context.Context, n int, encrypt bool) {
	if m.packetsProcessed != nil {
		m.packetsProcessed.Add(ctx, int64(n), metric.WithAttributes(attribute.Bool("encrypt", encrypt)))
	}
}

func (m *subsystemMetrics) recordHash(ctx context.Context) {
	if m.hashesGenerated != nil {
		m.hashesGenerated.Add(ctx, 1)
	}
}

func (m *subsystemMetrics) recordKeyStored(ctx context.Context) {
	if m.keysStored != nil {
		m.keysStored.Add(ctx, 1)
	}
}
