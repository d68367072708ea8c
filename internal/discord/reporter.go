package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/config"
	"warden/internal/utils"
)

const maxDescription = 4096

// InteractionReporter answers a slash command. The first message is the
// interaction response, later ones are followups.
type InteractionReporter struct {
	session     Session
	interaction *discordgo.Interaction
	colors      config.EmbedColors
	ephemeral   bool
	logger      *zap.Logger

	mu        sync.Mutex
	responded bool
}

func NewInteractionReporter(session Session, interaction *discordgo.Interaction, colors config.EmbedColors, ephemeral bool, logger *zap.Logger) *InteractionReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InteractionReporter{session: session, interaction: interaction, colors: colors, ephemeral: ephemeral, logger: logger}
}

func (r *InteractionReporter) Success(text string) { r.Embed(TextEmbed(text, r.colors.Success)) }
func (r *InteractionReporter) Error(text string)   { r.Embed(TextEmbed(text, r.colors.Error)) }
func (r *InteractionReporter) Normal(text string)  { r.Embed(TextEmbed(text, r.colors.Primary)) }
func (r *InteractionReporter) Warn(text string)    { r.Embed(TextEmbed(text, r.colors.Warning)) }

// Defer acknowledges the interaction for commands that take longer than the
// three second response window.
func (r *InteractionReporter) Defer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		return
	}
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: r.flags()},
	})
	if err != nil {
		r.logger.Debug("defer interaction failed", zap.Error(err))
		return
	}
	r.responded = true
}

func (r *InteractionReporter) Embed(embed *discordgo.MessageEmbed) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.responded {
		err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
				Flags:  r.flags(),
			},
		})
		if err == nil {
			r.responded = true
			return
		}
		r.logger.Debug("interaction respond failed, trying followup", zap.Error(err))
	}

	_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  r.flags(),
	})
	if err != nil {
		r.logger.Warn("interaction followup failed", zap.String("interaction_id", r.interaction.ID), zap.Error(err))
	}
}

func (r *InteractionReporter) flags() discordgo.MessageFlags {
	if r.ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

// ChannelReporter posts outcomes as embeds to a fixed channel.
type ChannelReporter struct {
	session   Session
	channelID string
	colors    config.EmbedColors
	logger    *zap.Logger
}

func NewChannelReporter(session Session, channelID string, colors config.EmbedColors, logger *zap.Logger) *ChannelReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelReporter{session: session, channelID: channelID, colors: colors, logger: logger}
}

func (r *ChannelReporter) Success(text string) { r.Embed(TextEmbed(text, r.colors.Success)) }
func (r *ChannelReporter) Error(text string)   { r.Embed(TextEmbed(text, r.colors.Error)) }
func (r *ChannelReporter) Normal(text string)  { r.Embed(TextEmbed(text, r.colors.Primary)) }
func (r *ChannelReporter) Warn(text string)    { r.Embed(TextEmbed(text, r.colors.Warning)) }

func (r *ChannelReporter) Embed(embed *discordgo.MessageEmbed) {
	if r.channelID == "" {
		return
	}
	if _, err := r.session.ChannelMessageSendEmbed(r.channelID, embed); err != nil {
		r.logger.Warn("channel report failed", zap.String("channel_id", r.channelID), zap.Error(err))
	}
}

func TextEmbed(text string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: utils.Truncate(text, maxDescription, "..."),
		Color:       color,
	}
}
