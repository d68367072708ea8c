package messagelog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/config"
	"warden/internal/utils"
)

const fieldLimit = 1024

type Session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Settings resolves the log channel of a guild.
type Settings func(ctx context.Context, guildID string) (logChannel string)

type Config struct {
	CacheSize      int
	IgnoreChannels []string
	IgnorePrefix   string
	Colors         config.EmbedColors
}

// Logger keeps the most recent messages so edits and deletes can be logged
// with their original content.
type Logger struct {
	session   Session
	cfg       Config
	settings  Settings
	protected func(*discordgo.Member) bool
	cache     *utils.Deque[*discordgo.Message]
	logger    *zap.Logger
}

func New(session Session, cfg Config, settings Settings, protected func(*discordgo.Member) bool, logger *zap.Logger) *Logger {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if protected == nil {
		protected = func(*discordgo.Member) bool { return false }
	}
	return &Logger{
		session:   session,
		cfg:       cfg,
		settings:  settings,
		protected: protected,
		cache:     utils.NewDeque[*discordgo.Message](cfg.CacheSize),
		logger:    logger,
	}
}

// Remember caches a copy of msg. Blank and DM messages are ignored.
func (l *Logger) Remember(msg *discordgo.Message) {
	if msg == nil || msg.GuildID == "" || msg.Author == nil || strings.TrimSpace(msg.Content) == "" {
		return
	}
	clone := *msg
	l.cache.Push(&clone)
}

func (l *Logger) Cached(messageID string) (*discordgo.Message, bool) {
	return l.cache.Find(func(m *discordgo.Message) bool { return m.ID == messageID })
}

func (l *Logger) CacheLen() int {
	return l.cache.Len()
}

func (l *Logger) HandleUpdate(ctx context.Context, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil {
		return
	}
	original, ok := l.Cached(msg.ID)
	if !ok || original.Content == msg.Content {
		l.Remember(msg)
		return
	}
	if logChannel, skip := l.skip(ctx, original); !skip {
		embed := &discordgo.MessageEmbed{
			Title:     "Message edited",
			Color:     l.cfg.Colors.Edited,
			Timestamp: time.Now().Format(time.RFC3339),
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Author", Value: fmt.Sprintf("<@%s>", original.Author.ID), Inline: true},
				{Name: "Channel", Value: fmt.Sprintf("<#%s>", original.ChannelID), Inline: true},
			},
		}
		embed.Fields = append(embed.Fields, contentFields("Original message", original.Content)...)
		embed.Fields = append(embed.Fields, contentFields("New message", msg.Content)...)
		l.post(logChannel, embed)
	}

	updated := *original
	updated.Content = msg.Content
	l.cache.Push(&updated)
}

func (l *Logger) HandleDelete(ctx context.Context, messageID string) {
	original, ok := l.Cached(messageID)
	if !ok {
		return
	}
	logChannel, skip := l.skip(ctx, original)
	if skip {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:     "Message deleted",
		Color:     l.cfg.Colors.Error,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Author", Value: fmt.Sprintf("<@%s>", original.Author.ID), Inline: true},
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", original.ChannelID), Inline: true},
		},
	}
	embed.Fields = append(embed.Fields, contentFields("Message", original.Content)...)
	l.post(logChannel, embed)
}

func (l *Logger) HandleBulkDelete(ctx context.Context, messageIDs []string) {
	for _, id := range messageIDs {
		l.HandleDelete(ctx, id)
	}
}

// skip reports whether msg should not be logged, and otherwise the channel to log to.
func (l *Logger) skip(ctx context.Context, msg *discordgo.Message) (string, bool) {
	if l.settings == nil {
		return "", true
	}
	logChannel := l.settings(ctx, msg.GuildID)
	if logChannel == "" || msg.ChannelID == logChannel {
		return "", true
	}
	if slices.Contains(l.cfg.IgnoreChannels, msg.ChannelID) {
		return "", true
	}
	if l.cfg.IgnorePrefix != "" && strings.HasPrefix(msg.Content, l.cfg.IgnorePrefix) && l.protected(msg.Member) {
		return "", true
	}
	return logChannel, false
}

func (l *Logger) post(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := l.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		l.logger.Warn("message log post failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// contentFields splits content over as many embed fields as it needs.
func contentFields(name, content string) []*discordgo.MessageEmbedField {
	chunks := utils.Chunk(content, fieldLimit)
	fields := make([]*discordgo.MessageEmbedField, 0, len(chunks))
	for i, chunk := range chunks {
		title := name
		if i > 0 {
			title = fmt.Sprintf("%s (%d)", name, i+1)
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: title, Value: chunk})
	}
	return fields
}
