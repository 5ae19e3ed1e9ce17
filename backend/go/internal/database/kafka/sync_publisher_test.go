package kafka

import (
	"AskArchive/backend/go/internal/models"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestSyncPublisher_Report(t *testing.T) {
	w := &recordingWriter{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &SyncPublisher{writer: w, topic: "archive.sync-events", now: func() time.Time { return fixed }}

	err := p.Report(context.Background(), &models.SyncEvent{
		Type:       models.SyncPartialDelete,
		UserID:     "u1",
		SourceID:   "notes.pdf",
		Namespace:  "user_u1",
		FailedSide: "relational",
		Message:    "Wipe incomplete.",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "archive.sync-events", msg.Topic)
	assert.Equal(t, "user_u1", string(msg.Key))
	assert.Equal(t, "PARTIAL_DELETE", string(msg.Headers[0].Value))

	var got models.SyncEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "notes.pdf", got.SourceID)
	assert.Equal(t, "relational", got.FailedSide)
	assert.True(t, got.Timestamp.Equal(fixed))
}

func TestSyncPublisher_KeepsExplicitTimestamp(t *testing.T) {
	w := &recordingWriter{}
	p := &SyncPublisher{writer: w, topic: "t", now: func() time.Time { t.Fatal("clock should not be read"); return time.Time{} }}
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, p.Report(context.Background(), &models.SyncEvent{Type: models.SyncOrphanedVectors, Timestamp: ts}))
	assert.Len(t, w.msgs, 1)
}

func TestSyncPublisher_WriteError(t *testing.T) {
	p := &SyncPublisher{writer: &recordingWriter{err: errors.New("broker down")}, topic: "t", now: time.Now}

	err := p.Report(context.Background(), &models.SyncEvent{Type: models.SyncOrphanedVectors})
	assert.ErrorContains(t, err, "broker down")
}
