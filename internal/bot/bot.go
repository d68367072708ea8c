package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warden/internal/analytics"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/modules/audit"
	"warden/internal/modules/emoji"
	"warden/internal/modules/messagelog"
	"warden/internal/modules/moderation"
	"warden/internal/permissions"
	"warden/internal/plugin"
	"warden/internal/storage"
	"warden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const auditAggregateWindow = 10 * time.Minute

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	audit      *audit.Logger
	analytics  *analytics.Service
	session    *discordgo.Session
	perms      *discord.Permissions
	channels   *permissions.Controller
	moderation *moderation.Service
	mutes      *moderation.MuteManager
	messages   *messagelog.Logger
	emojis     *emoji.Stealer
	plugins    *plugin.Manager

	pluginMu       sync.RWMutex
	pluginCommands map[string]pluginCommand

	auditAgg   map[string]*auditAggregate
	auditAggMu sync.Mutex

	done      chan struct{}
	doneOnce  sync.Once
	stop      chan struct{}
	closeOnce sync.Once
}

type auditAggregate struct {
	channelID string
	messageID string
	count     int
	lastAt    time.Time
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, analyticsEngine *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildEmojis |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:            cfg,
		logger:         logger,
		store:          store,
		audit:          auditLogger,
		analytics:      analyticsEngine,
		session:        session,
		pluginCommands: make(map[string]pluginCommand),
		auditAgg:       make(map[string]*auditAggregate),
		done:           make(chan struct{}),
		stop:           make(chan struct{}),
	}

	b.perms = discord.NewPermissions(session)
	b.channels = permissions.NewController(permissions.NewState(), b.perms, b.perms, b.perms, store, logger)
	b.moderation = moderation.NewService(session, moderation.Config{
		ProtectedRoleIDs: cfg.Moderation.ProtectedRoleIDs,
		DefaultBanReason: cfg.DefaultBanReason,
		MassBanInterval:  time.Duration(cfg.Moderation.MassBanIntervalMS) * time.Millisecond,
		PurgeMaxPages:    cfg.Moderation.PurgeMaxPages,
		Colors:           cfg.Notifications.EmbedColors,
	}, auditLogger, logger)
	b.mutes = moderation.NewMuteManager(b.moderation, store)
	b.messages = messagelog.New(session, messagelog.Config{
		CacheSize:      cfg.MessageLog.CacheSize,
		IgnoreChannels: cfg.MessageLog.IgnoreChannels,
		IgnorePrefix:   cfg.MessageLog.IgnorePrefix,
		Colors:         cfg.Notifications.EmbedColors,
	}, b.logChannel, b.moderation.IsProtected, logger)
	b.emojis = emoji.NewStealer(session, logger)
	b.plugins = plugin.NewManager(cfg.PluginPath, plugin.OpenShared, b, logger)

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
			if !b.cfg.Notifications.AuditToChannel {
				return
			}
			b.notifyAudit(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onMessageDeleteBulk)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.loadPlugins()
	b.startRetention()

	return nil
}

// Done is closed when a moderator runs /shutdown.
func (b *Bot) Done() <-chan struct{} {
	return b.done
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	b.closeOnce.Do(func() {
		close(b.stop)
		b.mutes.Stop()
		if count := b.plugins.UnloadAll(); count > 0 {
			b.logger.Info("plugins unloaded", zap.Int("count", count))
		}
		if b.session != nil {
			_ = b.session.Close()
		}
	})
}

func (b *Bot) requestShutdown() {
	b.doneOnce.Do(func() { close(b.done) })
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		count, err := b.mutes.Restore(ctx)
		if err != nil {
			b.logger.Error("restore mutes failed", zap.Error(err))
			return
		}
		b.logger.Info("mutes restored", zap.Int("count", count))
	}()
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if !b.cfg.MessageLog.Enabled || msg.Author == nil || msg.Author.Bot {
		return
	}
	b.messages.Remember(msg.Message)
}

func (b *Bot) onMessageUpdate(session *discordgo.Session, msg *discordgo.MessageUpdate) {
	if !b.cfg.MessageLog.Enabled || msg.Message == nil {
		return
	}
	b.messages.HandleUpdate(context.Background(), msg.Message)
}

func (b *Bot) onMessageDelete(session *discordgo.Session, msg *discordgo.MessageDelete) {
	if !b.cfg.MessageLog.Enabled || msg.Message == nil {
		return
	}
	b.messages.HandleDelete(context.Background(), msg.ID)
}

func (b *Bot) onMessageDeleteBulk(session *discordgo.Session, event *discordgo.MessageDeleteBulk) {
	if !b.cfg.MessageLog.Enabled {
		return
	}
	b.messages.HandleBulkDelete(context.Background(), event.Messages)
}

func (b *Bot) loadPlugins() {
	files, err := b.plugins.Preload()
	if err != nil {
		b.logger.Warn("plugin preload failed", zap.Error(err))
		return
	}
	count, err := b.plugins.LoadAll(files)
	if err != nil {
		b.logger.Warn("some plugins failed to load", zap.Error(err))
	}
	b.logger.Info("plugins loaded", zap.Int("count", count))
}

// startRetention trims the audit log on start and then once a day.
func (b *Bot) startRetention() {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			b.cleanupAuditLogs()
			select {
			case <-ticker.C:
			case <-b.stop:
				return
			}
		}
	}()
}

func (b *Bot) cleanupAuditLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays); err != nil {
		b.logger.Warn("audit retention failed", zap.Error(err))
	}
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	channelID := b.logChannel(ctx, entry.GuildID)
	if channelID == "" {
		return
	}

	key := entry.GuildID + "|" + entry.Level + "|" + entry.Event + "|" + entry.Details + "|" + entry.UserID

	b.auditAggMu.Lock()
	agg := b.auditAgg[key]
	if agg != nil && agg.channelID == channelID && time.Since(agg.lastAt) <= auditAggregateWindow {
		agg.count++
		agg.lastAt = time.Now()
		count := agg.count
		messageID := agg.messageID
		b.auditAggMu.Unlock()
		if _, err := b.session.ChannelMessageEditEmbed(channelID, messageID, b.buildAuditEmbed(entry, count)); err == nil {
			return
		}
		b.auditAggMu.Lock()
		delete(b.auditAgg, key)
	}
	b.auditAggMu.Unlock()

	msg, err := b.session.ChannelMessageSendEmbed(channelID, b.buildAuditEmbed(entry, 1))
	if err != nil || msg == nil {
		return
	}
	b.auditAggMu.Lock()
	b.auditAgg[key] = &auditAggregate{channelID: channelID, messageID: msg.ID, count: 1, lastAt: time.Now()}
	b.auditAggMu.Unlock()
}

func (b *Bot) buildAuditEmbed(entry storage.AuditLog, count int) *discordgo.MessageEmbed {
	userValue := "<@" + entry.UserID + ">"
	if entry.UserID == "" {
		userValue = "None"
	}
	actorValue := "<@" + entry.ActorID + ">"
	if entry.ActorID == "" {
		actorValue = "System"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Event", Value: utils.HumanReadable(entry.Event), Inline: false},
		{Name: "Level", Value: entry.Level, Inline: true},
		{Name: "User", Value: userValue, Inline: true},
		{Name: "Moderator", Value: actorValue, Inline: true},
	}
	if count > 1 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Count", Value: fmt.Sprintf("%d", count), Inline: true})
	}
	if entry.Details != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: utils.Truncate(entry.Details, 1024, "..."), Inline: false})
	}
	return &discordgo.MessageEmbed{
		Title:     "Moderation log",
		Color:     levelColor(b.cfg.Notifications.EmbedColors, entry.Level),
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
		Fields:    fields,
	}
}

func levelColor(colors config.EmbedColors, level string) int {
	switch level {
	case audit.LevelCrit:
		return colors.Error
	case audit.LevelWarn:
		return colors.Warning
	default:
		return colors.Primary
	}
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:    guildID,
		LogChannel: b.cfg.DefaultLogChannel,
		MuteRoleID: b.cfg.Moderation.MuteRoleID,
		DMOnAction: b.cfg.Notifications.DMOnAction,
	}

	settings, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

func (b *Bot) logChannel(ctx context.Context, guildID string) string {
	if guildID == "" {
		return ""
	}
	return b.guildSettings(ctx, guildID).LogChannel
}

func (b *Bot) guildName(guildID string) string {
	if b.session.State != nil {
		if guild, err := b.session.State.Guild(guildID); err == nil && guild.Name != "" {
			return guild.Name
		}
	}
	return guildID
}
