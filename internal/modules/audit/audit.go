package audit

import (
	"context"
	"time"

	"warden/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

const (
	EventBan      = "ban"
	EventMassBan  = "mass_ban"
	EventMute     = "mute"
	EventUnmute   = "unmute"
	EventPurge    = "purge"
	EventLock     = "lock"
	EventUnlock   = "unlock"
	EventArchive  = "archive"
	EventPlugin   = "plugin"
	EventSettings = "settings"
)

type Store interface {
	AddAuditLog(ctx context.Context, log storage.AuditLog) error
}

// Entry is one moderation action. UserID is the target, ActorID the moderator.
type Entry struct {
	Level   string
	GuildID string
	UserID  string
	ActorID string
	Event   string
	Details string
}

type Logger struct {
	store  Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
	now    func() time.Time
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	entry := storage.AuditLog{
		GuildID:   e.GuildID,
		UserID:    e.UserID,
		ActorID:   e.ActorID,
		Level:     e.Level,
		Event:     e.Event,
		Details:   e.Details,
		CreatedAt: l.now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit persist failed", zap.String("event", e.Event), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", e.Level),
		zap.String("guild_id", e.GuildID),
		zap.String("user_id", e.UserID),
		zap.String("actor_id", e.ActorID),
		zap.String("event", e.Event),
		zap.String("details", e.Details),
	)
}
