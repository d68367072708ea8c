package permissions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"warden/internal/utils"
)

// Controller implements the channel command group on top of State and the
// Discord collaborators. User facing outcomes go to the Reporter; returned
// errors are collaborator failures only.
type Controller struct {
	state   *State
	perms   PermissionService
	dir     Directory
	editor  Editor
	counter ArchiveCounter
	logger  *zap.Logger
}

func NewController(state *State, perms PermissionService, dir Directory, editor Editor, counter ArchiveCounter, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		state:   state,
		perms:   perms,
		dir:     dir,
		editor:  editor,
		counter: counter,
		logger:  logger,
	}
}

func (c *Controller) State() *State {
	return c.state
}

func (c *Controller) Save(ctx context.Context, rep Reporter, name string, channel Channel) error {
	current, err := c.perms.Overwrites(ctx, channel.ID)
	if err != nil {
		return fmt.Errorf("read overwrites of %s: %w", channel.ID, err)
	}
	c.state.Record(SaveChange{Name: name, Channel: channel, Prior: current})
	c.state.SetPreset(name, current)

	c.logger.Debug("permissions saved", zap.String("name", name), zap.String("channel_id", channel.ID), zap.Int("overwrites", len(current)))
	rep.Success(fmt.Sprintf("Saved current channel permissions, use `/channel print %s` to print permissions!", name))
	return nil
}

func (c *Controller) Print(rep Reporter, name string) {
	overwrites, ok := c.state.Preset(name)
	if !ok {
		rep.Error(fmt.Sprintf("Couldn't find `%s` in saved channel presets!", name))
		return
	}
	c.state.SetPreset(name, overwrites)

	text := RenderOverwrites(overwrites)
	if strings.TrimSpace(text) == "" {
		rep.Error(fmt.Sprintf("No saved permissions for `%s`!", name))
		return
	}
	rep.Normal(text)
}

// RenderOverwrites lists each overwrite as its role mention followed by the
// allowed and denied permission names.
func RenderOverwrites(overwrites []Overwrite) string {
	blocks := make([]string, 0, len(overwrites))
	for _, ow := range overwrites {
		blocks = append(blocks, fmt.Sprintf("<@&%s>\nAllow: %s\nDeny: %s\n",
			ow.RoleID, utils.PrettyPermissions(ow.Allow), utils.PrettyPermissions(ow.Deny)))
	}
	return strings.Join(blocks, "\n")
}

func (c *Controller) Load(ctx context.Context, rep Reporter, name string, channel Channel) error {
	overwrites, ok := c.state.Preset(name)
	if !ok {
		rep.Error(fmt.Sprintf("Couldn't find `%s` in saved channel presets!", name))
		return nil
	}

	current, err := c.perms.Overwrites(ctx, channel.ID)
	if err != nil {
		return fmt.Errorf("read overwrites of %s: %w", channel.ID, err)
	}
	c.state.Record(LoadChange{Name: name, Channel: channel, Prior: current})

	if err := c.perms.SetOverwrites(ctx, channel.ID, overwrites); err != nil {
		return fmt.Errorf("apply preset %q to %s: %w", name, channel.ID, err)
	}
	rep.Success(fmt.Sprintf("Loaded channel permissions from `%s`!", name))
	return nil
}

func (c *Controller) Lock(ctx context.Context, rep Reporter, channel Channel, category bool) error {
	target, lock, ok, err := c.lockTarget(ctx, rep, channel, category)
	if err != nil || !ok {
		return err
	}

	current, err := c.perms.Overwrites(ctx, target.ID)
	if err != nil {
		return fmt.Errorf("read overwrites of %s: %w", target.ID, err)
	}
	c.state.PushHistory(target.ID, current)

	if err := c.perms.AddOverwrite(ctx, target.ID, lock); err != nil {
		return fmt.Errorf("add lock overwrite to %s: %w", target.ID, err)
	}
	c.logger.Info("channel locked", zap.String("guild_id", target.GuildID), zap.String("channel_id", target.ID))
	rep.Success(fmt.Sprintf("Locked %s!", kind(category)))
	return nil
}

func (c *Controller) Unlock(ctx context.Context, rep Reporter, channel Channel, category bool) error {
	target, lock, ok, err := c.lockTarget(ctx, rep, channel, category)
	if err != nil || !ok {
		return err
	}

	if restore, found := c.restorePoint(target); found {
		if err := c.perms.SetOverwrites(ctx, target.ID, restore); err != nil {
			return fmt.Errorf("restore overwrites of %s: %w", target.ID, err)
		}
	} else if err := c.perms.RemoveOverwrite(ctx, target.ID, lock); err != nil {
		return fmt.Errorf("remove lock overwrite from %s: %w", target.ID, err)
	}
	c.logger.Info("channel unlocked", zap.String("guild_id", target.GuildID), zap.String("channel_id", target.ID))
	rep.Success(fmt.Sprintf("Unlocked %s!", kind(category)))
	return nil
}

// restorePoint picks what unlock restores: the newest lock history entry,
// then a preset named after the target, then for text channels a preset
// named after their category.
func (c *Controller) restorePoint(target Channel) ([]Overwrite, bool) {
	if overwrites, ok := c.state.LastHistory(target.ID); ok {
		return overwrites, true
	}
	if overwrites, ok := c.state.Preset(target.Name); ok {
		return overwrites, true
	}
	if target.IsText() && target.Parent != nil {
		if overwrites, ok := c.state.Preset(target.Parent.Name); ok {
			return overwrites, true
		}
	}
	return nil, false
}

func (c *Controller) lockTarget(ctx context.Context, rep Reporter, channel Channel, category bool) (Channel, Overwrite, bool, error) {
	if channel.GuildID == "" {
		rep.Error("Server not found, make sure you aren't running this from a DM!")
		return Channel{}, Overwrite{}, false, nil
	}
	target := channel
	if category {
		if channel.Parent == nil {
			rep.Error("Channel category not found!")
			return Channel{}, Overwrite{}, false, nil
		}
		target = *channel.Parent
		if target.GuildID == "" {
			target.GuildID = channel.GuildID
		}
	}

	everyone, err := c.dir.EveryoneRole(ctx, channel.GuildID)
	if err != nil {
		return Channel{}, Overwrite{}, false, fmt.Errorf("resolve everyone role of %s: %w", channel.GuildID, err)
	}
	return target, Overwrite{RoleID: everyone, Deny: LockDeny}, true, nil
}

func kind(category bool) string {
	if category {
		return "category"
	}
	return "channel"
}

func (c *Controller) Sync(ctx context.Context, rep Reporter, reverse bool, channel Channel) error {
	if channel.Parent == nil {
		rep.Error("Channel category not found! Only channels inside a category can be synced.")
		return nil
	}
	parent := *channel.Parent

	from, to := parent, channel
	if reverse {
		from, to = channel, parent
	}

	overwrites, err := c.perms.Overwrites(ctx, from.ID)
	if err != nil {
		return fmt.Errorf("read overwrites of %s: %w", from.ID, err)
	}
	if err := c.perms.SetOverwrites(ctx, to.ID, overwrites); err != nil {
		return fmt.Errorf("sync %s onto %s: %w", from.ID, to.ID, err)
	}

	if reverse {
		rep.Success(fmt.Sprintf("Synchronized the `%s` category to the `%s` channel permissions!",
			utils.HumanReadable(parent.Name), utils.HumanReadable(channel.Name)))
	} else {
		rep.Success(fmt.Sprintf("Synchronized the `%s` channel to the `%s` category permissions!",
			utils.HumanReadable(channel.Name), utils.HumanReadable(parent.Name)))
	}
	return nil
}

// Undo reverts the last save or load. A failed revert keeps the change for
// another attempt unless a newer one was recorded in the meantime.
func (c *Controller) Undo(ctx context.Context, rep Reporter) error {
	change := c.state.TakeChange()
	switch ch := change.(type) {
	case nil:
		rep.Normal("Couldn't find any recent changes")
	case SaveChange:
		c.state.SetPreset(ch.Name, ch.Prior)
		rep.Success(fmt.Sprintf("Unsaved, set `%s` to original permissions", ch.Name))
	case LoadChange:
		if err := c.perms.SetOverwrites(ctx, ch.Channel.ID, ch.Prior); err != nil {
			c.state.restoreChange(change)
			return fmt.Errorf("revert load of %q on %s: %w", ch.Name, ch.Channel.ID, err)
		}
		rep.Success(fmt.Sprintf("Unloaded, set `%s` to original permissions", utils.HumanReadable(ch.Channel.Name)))
	}
	return nil
}

// Slow sets the per-user rate limit. Zero removes it.
func (c *Controller) Slow(ctx context.Context, rep Reporter, channel Channel, seconds int) error {
	if seconds < 0 || seconds > 21600 {
		rep.Error("Slowmode must be between 0 and 21600 seconds!")
		return nil
	}
	if err := c.editor.SetRateLimit(ctx, channel.ID, seconds); err != nil {
		return fmt.Errorf("set rate limit of %s: %w", channel.ID, err)
	}
	if seconds == 0 {
		rep.Success("Removed slowmode")
		return nil
	}
	rep.Success(fmt.Sprintf("Set slowmode to %ds", seconds))
	return nil
}

// Archive hides the channel from @everyone, drops every other overwrite and
// renames it to archived-N.
func (c *Controller) Archive(ctx context.Context, rep Reporter, channel Channel) error {
	if channel.GuildID == "" {
		rep.Error("Server not found, make sure you aren't running this from a DM!")
		return nil
	}
	everyone, err := c.dir.EveryoneRole(ctx, channel.GuildID)
	if err != nil {
		return fmt.Errorf("resolve everyone role of %s: %w", channel.GuildID, err)
	}
	n, err := c.counter.NextArchiveNumber(ctx, channel.GuildID)
	if err != nil {
		return fmt.Errorf("next archive number: %w", err)
	}

	name := fmt.Sprintf("archived-%d", n)
	overwrites := []Overwrite{{RoleID: everyone, Deny: ArchiveDeny}}
	if err := c.editor.ReplaceAll(ctx, channel.ID, name, overwrites); err != nil {
		return fmt.Errorf("archive %s: %w", channel.ID, err)
	}
	c.logger.Info("channel archived", zap.String("guild_id", channel.GuildID), zap.String("channel_id", channel.ID), zap.String("name", name))
	rep.Success(fmt.Sprintf("Changed name from `%s` to `%s`", channel.Name, name))
	return nil
}
