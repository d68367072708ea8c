package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"warden/internal/permissions"
)

var ErrRoleNotFound = errors.New("role not found")

// Permissions implements permissions.PermissionService, permissions.Directory
// and permissions.Editor over the Discord REST API. Only role overwrites are
// read and written; member overwrites are left untouched except by ReplaceAll.
type Permissions struct {
	session Session
}

func NewPermissions(session Session) *Permissions {
	return &Permissions{session: session}
}

func (p *Permissions) Overwrites(ctx context.Context, channelID string) ([]permissions.Overwrite, error) {
	channel, err := p.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return roleOverwrites(channel), nil
}

func (p *Permissions) SetOverwrites(ctx context.Context, channelID string, overwrites []permissions.Overwrite) error {
	channel, err := p.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(overwrites))
	for _, ow := range overwrites {
		wanted[ow.RoleID] = struct{}{}
	}
	for _, ow := range channel.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeRole {
			continue
		}
		if _, keep := wanted[ow.ID]; keep {
			continue
		}
		if err := p.session.ChannelPermissionDelete(channelID, ow.ID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("delete overwrite %s: %w", ow.ID, err)
		}
	}
	for _, ow := range overwrites {
		if err := p.AddOverwrite(ctx, channelID, ow); err != nil {
			return err
		}
	}
	return nil
}

func (p *Permissions) AddOverwrite(ctx context.Context, channelID string, overwrite permissions.Overwrite) error {
	err := p.session.ChannelPermissionSet(channelID, overwrite.RoleID, discordgo.PermissionOverwriteTypeRole, overwrite.Allow, overwrite.Deny, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("set overwrite %s: %w", overwrite.RoleID, err)
	}
	return nil
}

func (p *Permissions) RemoveOverwrite(ctx context.Context, channelID string, overwrite permissions.Overwrite) error {
	if err := p.session.ChannelPermissionDelete(channelID, overwrite.RoleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete overwrite %s: %w", overwrite.RoleID, err)
	}
	return nil
}

// EveryoneRole returns the @everyone role, which shares the guild's ID.
func (p *Permissions) EveryoneRole(ctx context.Context, guildID string) (string, error) {
	if guildID == "" {
		return "", permissions.ErrNoServer
	}
	guild, err := p.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			return role.ID, nil
		}
	}
	return "", fmt.Errorf("everyone role of %s: %w", guildID, ErrRoleNotFound)
}

func (p *Permissions) SetRateLimit(ctx context.Context, channelID string, seconds int) error {
	_, err := p.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{RateLimitPerUser: &seconds}, discordgo.WithContext(ctx))
	return err
}

func (p *Permissions) ReplaceAll(ctx context.Context, channelID, name string, overwrites []permissions.Overwrite) error {
	edit := &discordgo.ChannelEdit{Name: name, PermissionOverwrites: make([]*discordgo.PermissionOverwrite, 0, len(overwrites))}
	for _, ow := range overwrites {
		edit.PermissionOverwrites = append(edit.PermissionOverwrites, &discordgo.PermissionOverwrite{
			ID:    ow.RoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: ow.Allow,
			Deny:  ow.Deny,
		})
	}
	_, err := p.session.ChannelEditComplex(channelID, edit, discordgo.WithContext(ctx))
	return err
}

// ResolveChannel loads a channel and its parent category.
func (p *Permissions) ResolveChannel(ctx context.Context, channelID string) (permissions.Channel, error) {
	channel, err := p.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return permissions.Channel{}, err
	}
	ref := toRef(channel)
	if channel.ParentID != "" {
		parent, err := p.session.Channel(channel.ParentID, discordgo.WithContext(ctx))
		if err != nil {
			return permissions.Channel{}, fmt.Errorf("resolve category %s: %w", channel.ParentID, err)
		}
		parentRef := toRef(parent)
		ref.Parent = &parentRef
	}
	return ref, nil
}

func toRef(channel *discordgo.Channel) permissions.Channel {
	return permissions.Channel{
		ID:      channel.ID,
		Name:    channel.Name,
		GuildID: channel.GuildID,
		Type:    channel.Type,
	}
}

func roleOverwrites(channel *discordgo.Channel) []permissions.Overwrite {
	out := make([]permissions.Overwrite, 0, len(channel.PermissionOverwrites))
	for _, ow := range channel.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeRole {
			continue
		}
		out = append(out, permissions.Overwrite{RoleID: ow.ID, Allow: ow.Allow, Deny: ow.Deny})
	}
	return out
}
