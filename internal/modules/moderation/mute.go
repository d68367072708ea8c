package moderation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/modules/audit"
	"warden/internal/storage"
)

const expireTimeout = 15 * time.Second

type MuteStore interface {
	AddMute(ctx context.Context, mute storage.Mute) error
	GetMute(ctx context.Context, guildID, userID string) (storage.Mute, bool, error)
	RemoveMute(ctx context.Context, guildID, userID string) (bool, error)
	ListMutes(ctx context.Context) ([]storage.Mute, error)
}

// MuteManager gives and takes the muted role and lifts timed mutes when they
// run out. Mutes are persisted so Restore can reschedule them after a restart.
type MuteManager struct {
	mu      sync.Mutex
	service *Service
	store   MuteStore
	clock   Clock
	timers  map[string]Timer
}

func NewMuteManager(service *Service, store MuteStore) *MuteManager {
	return &MuteManager{
		service: service,
		store:   store,
		clock:   realClock{},
		timers:  make(map[string]Timer),
	}
}

func (m *MuteManager) WithClock(clock Clock) {
	m.clock = clock
}

type MuteRequest struct {
	GuildID   string
	GuildName string
	RoleID    string
	Target    *discordgo.Member
	Actor     *discordgo.User
	// Duration of zero mutes until someone unmutes.
	Duration time.Duration
	Reason   string
	Notify   bool
}

func (m *MuteManager) Mute(ctx context.Context, rep Reporter, req MuteRequest) error {
	if req.RoleID == "" {
		rep.Error("No muted role configured, set one with `/settings muted_role`!")
		return nil
	}
	if req.Target == nil || req.Target.User == nil {
		rep.Error("User not found!")
		return nil
	}
	target := req.Target.User
	if req.Actor != nil && req.Actor.ID == target.ID {
		rep.Error("You can't mute yourself!")
		return nil
	}
	if m.service.IsProtected(req.Target) {
		rep.Error("That user is protected, I can't do that.")
		return nil
	}

	if err := m.service.session.GuildMemberRoleAdd(req.GuildID, target.ID, req.RoleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add muted role: %w", err)
	}

	now := m.clock.Now()
	mute := storage.Mute{GuildID: req.GuildID, UserID: target.ID, RoleID: req.RoleID, Reason: req.Reason, CreatedAt: now}
	if req.Duration > 0 {
		expires := now.Add(req.Duration)
		mute.ExpiresAt = &expires
	}
	if err := m.store.AddMute(ctx, mute); err != nil {
		return fmt.Errorf("persist mute: %w", err)
	}
	m.schedule(mute)

	length := "Indefinitely"
	if req.Duration > 0 {
		length = req.Duration.String()
	}
	reason := req.Reason
	if reason == "" {
		reason = noReason
	}
	if req.Notify {
		dm := actionEmbed("You were muted", m.service.cfg.Colors.Warning,
			field("In the server:", req.GuildName, false),
			field("Muted by:", mention(req.Actor), true),
			field("Duration:", length, true),
			field("Reason:", reason, false),
		)
		if err := m.service.directMessage(ctx, target.ID, dm); err != nil {
			rep.Warn("I couldn't DM that user about the mute...")
		}
	}

	m.service.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelInfo,
		GuildID: req.GuildID,
		UserID:  target.ID,
		ActorID: userID(req.Actor),
		Event:   audit.EventMute,
		Details: fmt.Sprintf("duration=%s reason=%s", length, reason),
	})
	rep.Embed(actionEmbed("User muted", m.service.cfg.Colors.Warning,
		field("Muted user:", mention(target), true),
		field("Muted by:", mention(req.Actor), true),
		field("Duration:", length, true),
		field("Reason:", reason, false),
	))
	return nil
}

type UnmuteRequest struct {
	GuildID   string
	GuildName string
	RoleID    string
	Target    *discordgo.Member
	Actor     *discordgo.User
	Notify    bool
}

func (m *MuteManager) Unmute(ctx context.Context, rep Reporter, req UnmuteRequest) error {
	if req.Target == nil || req.Target.User == nil {
		rep.Error("User not found!")
		return nil
	}
	target := req.Target.User
	m.cancel(req.GuildID, target.ID)

	stored, tracked, err := m.store.GetMute(ctx, req.GuildID, target.ID)
	if err != nil {
		return fmt.Errorf("load mute: %w", err)
	}
	roleID := req.RoleID
	if tracked {
		roleID = stored.RoleID
		if _, err := m.store.RemoveMute(ctx, req.GuildID, target.ID); err != nil {
			return fmt.Errorf("remove mute: %w", err)
		}
	}

	hasRole := roleID != "" && slices.Contains(req.Target.Roles, roleID)
	if !tracked && !hasRole {
		rep.Error(fmt.Sprintf("%s is not muted", mention(target)))
		return nil
	}

	if err := m.service.session.GuildMemberRoleRemove(req.GuildID, target.ID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove muted role: %w", err)
	}
	if !tracked {
		rep.Warn(fmt.Sprintf("Warning: %s was not muted using the bot, removed muted role.", mention(target)))
	}
	if req.Notify {
		dm := actionEmbed("You were unmuted", m.service.cfg.Colors.Success,
			field("In the server:", req.GuildName, false),
			field("Unmuted by:", mention(req.Actor), true),
		)
		if err := m.service.directMessage(ctx, target.ID, dm); err != nil {
			m.service.logger.Debug("unmute dm failed", zap.String("user_id", target.ID), zap.Error(err))
		}
	}

	m.service.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelInfo,
		GuildID: req.GuildID,
		UserID:  target.ID,
		ActorID: userID(req.Actor),
		Event:   audit.EventUnmute,
		Details: "manual",
	})
	rep.Embed(actionEmbed("User unmuted", m.service.cfg.Colors.Success,
		field("Unmuted user:", mention(target), true),
		field("Unmuted by:", mention(req.Actor), true),
	))
	return nil
}

// Restore reschedules persisted timed mutes. Mutes that ran out while the bot
// was offline are lifted right away.
func (m *MuteManager) Restore(ctx context.Context) (int, error) {
	mutes, err := m.store.ListMutes(ctx)
	if err != nil {
		return 0, err
	}
	scheduled := 0
	for _, mute := range mutes {
		if mute.ExpiresAt == nil {
			continue
		}
		m.schedule(mute)
		scheduled++
	}
	return scheduled, nil
}

// Stop cancels every pending unmute timer.
func (m *MuteManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, timer := range m.timers {
		timer.Stop()
		delete(m.timers, key)
	}
}

func (m *MuteManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *MuteManager) schedule(mute storage.Mute) {
	if mute.ExpiresAt == nil {
		return
	}
	delay := mute.ExpiresAt.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	key := muteKey(mute.GuildID, mute.UserID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.timers[key]; ok {
		existing.Stop()
	}
	m.timers[key] = m.clock.AfterFunc(delay, func() {
		m.expire(mute.GuildID, mute.UserID)
	})
}

func (m *MuteManager) cancel(guildID, userID string) {
	key := muteKey(guildID, userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.timers[key]; ok {
		timer.Stop()
		delete(m.timers, key)
	}
}

func (m *MuteManager) expire(guildID, userID string) {
	m.mu.Lock()
	delete(m.timers, muteKey(guildID, userID))
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()

	logger := m.service.logger.With(zap.String("guild_id", guildID), zap.String("user_id", userID))
	stored, ok, err := m.store.GetMute(ctx, guildID, userID)
	if err != nil {
		logger.Warn("mute expiry lookup failed", zap.Error(err))
		return
	}
	if !ok || stored.ExpiresAt == nil || stored.ExpiresAt.After(m.clock.Now()) {
		return
	}
	if _, err := m.store.RemoveMute(ctx, guildID, userID); err != nil {
		logger.Warn("mute expiry remove failed", zap.Error(err))
		return
	}
	if err := m.service.session.GuildMemberRoleRemove(guildID, userID, stored.RoleID, discordgo.WithContext(ctx)); err != nil {
		logger.Warn("mute expiry role removal failed", zap.Error(err))
	}
	m.service.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelInfo,
		GuildID: guildID,
		UserID:  userID,
		Event:   audit.EventUnmute,
		Details: "expired",
	})
}

func muteKey(guildID, userID string) string {
	return guildID + ":" + userID
}
