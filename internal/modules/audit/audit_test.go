package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"warden/internal/storage"
)

type memoryStore struct {
	logs []storage.AuditLog
	err  error
}

func (m *memoryStore) AddAuditLog(_ context.Context, log storage.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

func TestLogPersistsAndNotifies(t *testing.T) {
	store := &memoryStore{}
	logger := NewLogger(store, zap.NewNop())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return fixed }

	var notified []storage.AuditLog
	logger.SetNotifier(func(_ context.Context, log storage.AuditLog) {
		notified = append(notified, log)
	})

	logger.Log(context.Background(), Entry{Level: LevelWarn, GuildID: "g", UserID: "u", ActorID: "m", Event: EventBan, Details: "spam"})

	require.Len(t, store.logs, 1)
	assert.Equal(t, "m", store.logs[0].ActorID)
	assert.Equal(t, fixed, store.logs[0].CreatedAt)
	require.Len(t, notified, 1)
	assert.Equal(t, EventBan, notified[0].Event)
}

func TestLogStillNotifiesWhenStoreFails(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	logger := NewLogger(store, nil)

	called := false
	logger.SetNotifier(func(context.Context, storage.AuditLog) { called = true })
	logger.Log(context.Background(), Entry{Level: LevelInfo, GuildID: "g", Event: EventPurge})
	assert.True(t, called)
}

func TestNilLoggerIsNoop(t *testing.T) {
	var logger *Logger
	logger.Log(context.Background(), Entry{Event: EventMute})
}
