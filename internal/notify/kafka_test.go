package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_PublishAlert(t *testing.T) {
	writer := &fakeWriter{}
	p := &Publisher{writer: writer, logger: zap.NewNop()}
	detected := time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)

	err := p.PublishAlert(context.Background(), models.AlertEvent{
		Account:        "someone",
		PostText:       "help",
		SupportMessage: "we're here",
		Probability:    0.93,
		DetectedAt:     detected,
	})

	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "someone", string(msg.Key))
	assert.Equal(t, detected, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "risk_alert", string(msg.Headers[1].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "help", decoded["post_text"])
	assert.InDelta(t, 0.93, decoded["probability_of_risk"], 1e-9)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPublisher_WriteError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("no brokers")}, logger: zap.NewNop()}

	err := p.PublishAlert(context.Background(), models.AlertEvent{Account: "someone"})

	assert.ErrorContains(t, err, "no brokers")
}
