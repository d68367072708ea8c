package moderation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/modules/audit"
)

const previewLimit = 2048

const previewTruncated = "\nNot all users are shown, due to size limitations."

var snowflakeRegex = regexp.MustCompile(`^\d{15,21}$`)

type BanRequest struct {
	GuildID        string
	GuildName      string
	Target         *discordgo.User
	Actor          *discordgo.User
	Reason         string
	DeleteMessages bool
	// Notify DMs the reason to the target before the ban.
	Notify bool
}

// Ban bans a single user and reports the outcome. It returns whether the ban
// went through.
func (s *Service) Ban(ctx context.Context, rep Reporter, req BanRequest) bool {
	if req.GuildID == "" {
		rep.Error("Server not found, make sure you aren't running this from a DM!")
		return false
	}
	if req.Target == nil {
		rep.Error("User not found!")
		return false
	}
	if req.Actor != nil && req.Target.ID == req.Actor.ID {
		rep.Error("You can't ban yourself!")
		return false
	}
	if protected, _ := s.memberProtected(ctx, req.GuildID, req.Target.ID); protected {
		rep.Error("That user is protected, I can't do that.")
		return false
	}

	reason := s.reason(req.Reason)
	if req.Notify {
		dm := actionEmbed("You were banned", s.cfg.Colors.Error,
			field("In the server:", req.GuildName, false),
			field("Banned by:", mention(req.Actor), true),
			field("Reason:", reason, false),
		)
		if err := s.directMessage(ctx, req.Target.ID, dm); err != nil {
			s.logger.Debug("ban dm failed", zap.String("user_id", req.Target.ID), zap.Error(err))
			rep.Warn("I couldn't DM that user the ban reason...")
		}
	}

	days := 0
	if req.DeleteMessages {
		days = 1
	}
	if err := s.session.GuildBanCreateWithReason(req.GuildID, req.Target.ID, reason, days, discordgo.WithContext(ctx)); err != nil {
		s.logger.Warn("ban failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.Target.ID), zap.Error(err))
		rep.Error("That user's role is higher than mine, I can't ban them!")
		return false
	}

	s.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelWarn,
		GuildID: req.GuildID,
		UserID:  req.Target.ID,
		ActorID: userID(req.Actor),
		Event:   audit.EventBan,
		Details: reason,
	})
	rep.Embed(actionEmbed("User banned", s.cfg.Colors.Error,
		field("Banned user:", mention(req.Target), true),
		field("Banned by:", mention(req.Actor), true),
		field("Reason:", reason, false),
	))
	return true
}

type MassBanRequest struct {
	GuildID        string
	GuildName      string
	Targets        []*discordgo.User
	Actor          *discordgo.User
	DeleteMessages bool
}

// BanMany bans every target, one per limiter tick. It stops early only when
// ctx is done.
func (s *Service) BanMany(ctx context.Context, rep Reporter, req MassBanRequest) (int, error) {
	if len(req.Targets) == 0 {
		rep.Error("Not banning anybody! 0 members found.")
		return 0, nil
	}

	estimate := time.Duration(len(req.Targets)) * s.cfg.MassBanInterval
	rep.Normal(fmt.Sprintf("Banning %d members, this will take around %.2f seconds...", len(req.Targets), estimate.Seconds()))

	reason := fmt.Sprintf("Mass ban by %s", mention(req.Actor))
	banned := 0
	for _, target := range req.Targets {
		if err := s.limiter.Wait(ctx); err != nil {
			return banned, err
		}
		ok := s.Ban(ctx, discard{}, BanRequest{
			GuildID:        req.GuildID,
			GuildName:      req.GuildName,
			Target:         target,
			Actor:          req.Actor,
			Reason:         reason,
			DeleteMessages: req.DeleteMessages,
		})
		if ok {
			banned++
		}
	}

	s.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelCrit,
		GuildID: req.GuildID,
		ActorID: userID(req.Actor),
		Event:   audit.EventMassBan,
		Details: fmt.Sprintf("banned=%d requested=%d", banned, len(req.Targets)),
	})
	rep.Embed(actionEmbed(fmt.Sprintf("%d members were banned", banned), s.cfg.Colors.Error,
		field("Banned by:", mention(req.Actor), true),
		field("Skipped:", fmt.Sprint(len(req.Targets)-banned), true),
	))
	return banned, nil
}

// ParseIDList pulls user IDs out of a whitespace or newline separated list.
// Mentions are accepted, duplicates and anything else are dropped.
func ParseIDList(input string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, token := range strings.Fields(input) {
		token = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(token, "<@"), "!"), ">")
		token = strings.Trim(token, ",;")
		if !snowflakeRegex.MatchString(token) {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		ids = append(ids, token)
	}
	return ids
}

// ResolveUsers looks up ids and returns the users found plus the ids that
// could not be resolved.
func (s *Service) ResolveUsers(ctx context.Context, ids []string) ([]*discordgo.User, []string) {
	users := make([]*discordgo.User, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if ctx.Err() != nil {
			missing = append(missing, id)
			continue
		}
		user, err := s.session.User(id, discordgo.WithContext(ctx))
		if err != nil {
			missing = append(missing, id)
			continue
		}
		users = append(users, user)
	}
	return users, missing
}

// FetchMembers pages through the whole member list of a guild.
func (s *Service) FetchMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	const page = 1000
	var members []*discordgo.Member
	after := ""
	for {
		batch, err := s.session.GuildMembers(guildID, after, page, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", guildID, err)
		}
		members = append(members, batch...)
		if len(batch) < page {
			return members, nil
		}
		after = batch[len(batch)-1].User.ID
	}
}

// MatchMembers keeps the members whose username matches pattern.
func MatchMembers(members []*discordgo.Member, pattern *regexp.Regexp) []*discordgo.Member {
	var matched []*discordgo.Member
	for _, member := range members {
		if member == nil || member.User == nil {
			continue
		}
		if pattern.MatchString(member.User.Username) {
			matched = append(matched, member)
		}
	}
	return matched
}

// PreviewMembers lists member mentions one per line, cut to fit an embed.
func PreviewMembers(members []*discordgo.Member) string {
	var b strings.Builder
	for _, member := range members {
		line := fmt.Sprintf("<@%s>\n", member.User.ID)
		if b.Len()+len(line)+len(previewTruncated) > previewLimit {
			b.WriteString(previewTruncated)
			break
		}
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func Users(members []*discordgo.Member) []*discordgo.User {
	users := make([]*discordgo.User, 0, len(members))
	for _, member := range members {
		users = append(users, member.User)
	}
	return users
}
