package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"warden/internal/config"
	"warden/internal/modules/audit"
)

const noReason = "No Reason Specified"

type Session interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

var _ Session = (*discordgo.Session)(nil)

// Reporter is the sink for command outcomes.
type Reporter interface {
	Success(text string)
	Error(text string)
	Normal(text string)
	Warn(text string)
	Embed(embed *discordgo.MessageEmbed)
}

type Config struct {
	ProtectedRoleIDs []string
	DefaultBanReason string
	MassBanInterval  time.Duration
	PurgeMaxPages    int
	Colors           config.EmbedColors
}

type Service struct {
	session   Session
	cfg       Config
	protected map[string]struct{}
	audit     *audit.Logger
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func NewService(session Session, cfg Config, auditLogger *audit.Logger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PurgeMaxPages <= 0 {
		cfg.PurgeMaxPages = 10
	}
	protected := make(map[string]struct{}, len(cfg.ProtectedRoleIDs))
	for _, id := range cfg.ProtectedRoleIDs {
		protected[id] = struct{}{}
	}
	limit := rate.Inf
	if cfg.MassBanInterval > 0 {
		limit = rate.Every(cfg.MassBanInterval)
	}
	return &Service{
		session:   session,
		cfg:       cfg,
		protected: protected,
		audit:     auditLogger,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// IsProtected reports whether member carries one of the protected roles.
func (s *Service) IsProtected(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	for _, role := range member.Roles {
		if _, ok := s.protected[role]; ok {
			return true
		}
	}
	return false
}

func (s *Service) memberProtected(ctx context.Context, guildID, userID string) (protected bool, bot bool) {
	member, err := s.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, false
	}
	if member.User != nil {
		bot = member.User.Bot
	}
	return s.IsProtected(member), bot
}

func (s *Service) reason(reason string) string {
	if reason != "" {
		return reason
	}
	if s.cfg.DefaultBanReason != "" {
		return s.cfg.DefaultBanReason
	}
	return noReason
}

func (s *Service) directMessage(ctx context.Context, userID string, embed *discordgo.MessageEmbed) error {
	channel, err := s.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = s.session.ChannelMessageSendEmbed(channel.ID, embed, discordgo.WithContext(ctx))
	return err
}

func actionEmbed(title string, color int, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Fields:    fields,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}

func mention(user *discordgo.User) string {
	if user == nil {
		return "unknown"
	}
	return fmt.Sprintf("<@%s>", user.ID)
}

func userID(user *discordgo.User) string {
	if user == nil {
		return ""
	}
	return user.ID
}

// discard drops reports for actions run in bulk.
type discard struct{}

func (discard) Success(string)                {}
func (discard) Error(string)                  {}
func (discard) Normal(string)                 {}
func (discard) Warn(string)                   {}
func (discard) Embed(*discordgo.MessageEmbed) {}
