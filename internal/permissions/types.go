package permissions

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// LockDeny is the bit a lock overwrite denies to @everyone.
const LockDeny int64 = discordgo.PermissionViewChannel

// ArchiveDeny hides archived channels from @everyone.
const ArchiveDeny int64 = discordgo.PermissionViewChannel

var ErrNoServer = errors.New("channel has no server")

// Overwrite is a role's allow/deny delta on a channel. The masks are passed
// through untouched.
type Overwrite struct {
	RoleID string
	Allow  int64
	Deny   int64
}

// Channel is a resolved reference to a guild channel or category.
type Channel struct {
	ID      string
	Name    string
	GuildID string
	Type    discordgo.ChannelType
	Parent  *Channel
}

func (c Channel) IsText() bool {
	return c.Type == discordgo.ChannelTypeGuildText || c.Type == discordgo.ChannelTypeGuildNews
}

func (c Channel) IsCategory() bool {
	return c.Type == discordgo.ChannelTypeGuildCategory
}

// PermissionService reads and mutates the role overwrites of a channel.
type PermissionService interface {
	Overwrites(ctx context.Context, channelID string) ([]Overwrite, error)
	// SetOverwrites replaces the channel's role overwrites with overwrites.
	SetOverwrites(ctx context.Context, channelID string, overwrites []Overwrite) error
	AddOverwrite(ctx context.Context, channelID string, overwrite Overwrite) error
	RemoveOverwrite(ctx context.Context, channelID string, overwrite Overwrite) error
}

// Directory resolves guild-level roles.
type Directory interface {
	EveryoneRole(ctx context.Context, guildID string) (string, error)
}

// Editor covers the non-permission channel edits of the channel command group.
type Editor interface {
	SetRateLimit(ctx context.Context, channelID string, seconds int) error
	// ReplaceAll renames the channel and replaces every overwrite, member
	// overwrites included.
	ReplaceAll(ctx context.Context, channelID, name string, overwrites []Overwrite) error
}

// ArchiveCounter hands out the per-guild archive sequence.
type ArchiveCounter interface {
	NextArchiveNumber(ctx context.Context, guildID string) (int, error)
}

// Reporter sends user facing outcomes. Delivery failures stay inside the reporter.
type Reporter interface {
	Success(text string)
	Error(text string)
	Normal(text string)
}

func cloneOverwrites(overwrites []Overwrite) []Overwrite {
	if overwrites == nil {
		return nil
	}
	out := make([]Overwrite, len(overwrites))
	copy(out, overwrites)
	return out
}
