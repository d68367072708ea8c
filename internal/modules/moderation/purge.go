package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/modules/audit"
)

// Bulk delete only accepts messages younger than two weeks; keep a minute of slack.
const bulkDeleteMaxAge = 14*24*time.Hour - time.Minute

type PurgeMode int

const (
	// PurgeDefault skips bots and protected members.
	PurgeDefault PurgeMode = iota
	PurgeUser
	PurgeAll
)

type PurgeRequest struct {
	GuildID   string
	ChannelID string
	Amount    int
	Mode      PurgeMode
	UserID    string
	Actor     *discordgo.User
	// ActorProtected lets the caller purge protected members and bots.
	ActorProtected bool
}

func (s *Service) Purge(ctx context.Context, rep Reporter, req PurgeRequest) (int, error) {
	if req.Amount < 1 || req.Amount > 1000 {
		rep.Error("Amount must be between 1 and 1000!")
		return 0, nil
	}
	if req.Mode == PurgeUser {
		if req.UserID == "" {
			rep.Error("User not found!")
			return 0, nil
		}
		if req.UserID != userID(req.Actor) && !req.ActorProtected {
			if protected, bot := s.memberProtected(ctx, req.GuildID, req.UserID); protected || bot {
				rep.Error("You need to be protected to purge messages from protected users or bots!")
				return 0, nil
			}
		}
	}
	if req.Mode == PurgeAll && !req.ActorProtected {
		rep.Error("You need to be protected to purge every message!")
		return 0, nil
	}

	targets, err := s.collect(ctx, req)
	if err != nil {
		return 0, err
	}
	deleted, err := s.deleteMessages(ctx, req.ChannelID, targets)
	if err != nil {
		return deleted, err
	}

	s.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelInfo,
		GuildID: req.GuildID,
		UserID:  req.UserID,
		ActorID: userID(req.Actor),
		Event:   audit.EventPurge,
		Details: fmt.Sprintf("channel=%s deleted=%d", req.ChannelID, deleted),
	})
	rep.Embed(actionEmbed(fmt.Sprintf("%d messages were purged", deleted), s.cfg.Colors.Primary,
		field("Purged by:", mention(req.Actor), true),
		field("Channel:", fmt.Sprintf("<#%s>", req.ChannelID), true),
	))
	return deleted, nil
}

func (s *Service) collect(ctx context.Context, req PurgeRequest) ([]*discordgo.Message, error) {
	protected := make(map[string]bool)
	isProtected := func(msg *discordgo.Message) bool {
		if msg.Member != nil {
			return s.IsProtected(msg.Member)
		}
		if value, ok := protected[msg.Author.ID]; ok {
			return value
		}
		value, _ := s.memberProtected(ctx, req.GuildID, msg.Author.ID)
		protected[msg.Author.ID] = value
		return value
	}

	var targets []*discordgo.Message
	before := ""
	for page := 0; page < s.cfg.PurgeMaxPages; page++ {
		messages, err := s.session.ChannelMessages(req.ChannelID, 100, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch messages of %s: %w", req.ChannelID, err)
		}
		for _, msg := range messages {
			before = msg.ID
			if msg.Author == nil {
				continue
			}
			switch req.Mode {
			case PurgeUser:
				if msg.Author.ID != req.UserID {
					continue
				}
			case PurgeDefault:
				if msg.Author.Bot || isProtected(msg) {
					continue
				}
			}
			targets = append(targets, msg)
			if len(targets) >= req.Amount {
				return targets, nil
			}
		}
		if len(messages) < 100 {
			break
		}
	}
	return targets, nil
}

func (s *Service) deleteMessages(ctx context.Context, channelID string, messages []*discordgo.Message) (int, error) {
	now := time.Now()
	var recent, old []string
	for _, msg := range messages {
		created, err := discordgo.SnowflakeTimestamp(msg.ID)
		if err == nil && now.Sub(created) > bulkDeleteMaxAge {
			old = append(old, msg.ID)
			continue
		}
		recent = append(recent, msg.ID)
	}

	deleted := 0
	for len(recent) > 0 {
		n := min(len(recent), 100)
		chunk := recent[:n]
		recent = recent[n:]

		var err error
		if len(chunk) == 1 {
			err = s.session.ChannelMessageDelete(channelID, chunk[0], discordgo.WithContext(ctx))
		} else {
			err = s.session.ChannelMessagesBulkDelete(channelID, chunk, discordgo.WithContext(ctx))
		}
		if err != nil {
			return deleted, fmt.Errorf("delete messages in %s: %w", channelID, err)
		}
		deleted += len(chunk)
	}

	for _, id := range old {
		if err := s.session.ChannelMessageDelete(channelID, id, discordgo.WithContext(ctx)); err != nil {
			s.logger.Debug("delete old message failed", zap.String("message_id", id), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
