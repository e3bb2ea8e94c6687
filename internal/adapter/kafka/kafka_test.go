package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/temperature-predictor/internal/config"
	"github.com/couchcryptid/temperature-predictor/internal/domain"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 500, time.UTC)
	event := domain.ConversionEvent{
		ID:           "evt-1",
		Celsius:      100,
		Fahrenheit:   212,
		Source:       "fallback",
		UsedFallback: true,
		ConvertedAt:  now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("evt-1"), msg.Key)
	assert.Equal(t, now, msg.Time)
	assert.Contains(t, string(msg.Value), `"source":"fallback"`)
	assert.Contains(t, string(msg.Value), `"used_fallback":true`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, kafkago.Header{Key: "source", Value: []byte("fallback")}, msg.Headers[0])
	assert.Equal(t, "converted_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339Nano)), msg.Headers[1].Value)

	var decoded domain.ConversionEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestNewWriter(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:       []string{"broker-1:9092", "broker-2:9092"},
		KafkaTopic:         "temperature-conversions",
		BatchSize:          25,
		BatchFlushInterval: 250 * time.Millisecond,
	}

	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "temperature-conversions", w.writer.Topic)
	assert.Equal(t, "broker-1:9092,broker-2:9092", w.writer.Addr.String())
	assert.Equal(t, 25, w.writer.BatchSize)
	assert.Equal(t, kafkago.RequireAll, w.writer.RequiredAcks)
}

func TestLoadBatch_Empty(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaTopic: "t"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.NoError(t, w.LoadBatch(context.Background(), nil))
}
