package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"warden/internal/analytics"
	"warden/internal/discord"
	"warden/internal/modules/audit"
	"warden/internal/modules/moderation"
	"warden/internal/permissions"
	"warden/internal/plugin"
	"warden/internal/storage"
	"warden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(options []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	out := make(optionMap, len(options))
	for _, opt := range options {
		out[opt.Name] = opt
	}
	return out
}

// str returns string, user, channel and role options as their raw value.
func (o optionMap) str(name string) string {
	opt, ok := o[name]
	if !ok {
		return ""
	}
	if value, ok := opt.Value.(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func (o optionMap) boolean(name string) bool {
	opt, ok := o[name]
	if !ok {
		return false
	}
	value, _ := opt.Value.(bool)
	return value
}

func (o optionMap) integer(name string) (int64, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	switch value := opt.Value.(type) {
	case float64:
		return int64(value), true
	case int64:
		return value, true
	case int:
		return int64(value), true
	}
	return 0, false
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := interaction.ApplicationCommandData()
	if handler, ok := b.pluginHandler(data.Name); ok {
		handler(session, interaction)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-b.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	rep := discord.NewInteractionReporter(session, interaction.Interaction, b.cfg.Notifications.EmbedColors, data.Name == "purge", b.logger)
	if interaction.GuildID == "" {
		rep.Error("Server not found, make sure you aren't running this from a DM!")
		return
	}

	var err error
	switch data.Name {
	case "channel":
		err = b.handleChannelCommand(ctx, rep, interaction, data)
	case "ban":
		err = b.handleBanCommand(ctx, rep, interaction, data)
	case "massban":
		err = b.handleMassBanCommand(ctx, rep, interaction, data)
	case "purge":
		err = b.handlePurgeCommand(ctx, rep, interaction, data)
	case "mute":
		err = b.handleMuteCommand(ctx, rep, interaction, data)
	case "unmute":
		err = b.handleUnmuteCommand(ctx, rep, interaction, data)
	case "settings":
		err = b.handleSettingsCommand(ctx, rep, interaction, data)
	case "topic":
		err = b.handleTopicCommand(ctx, rep, interaction, data)
	case "plugin":
		err = b.handlePluginCommand(ctx, rep, interaction, data)
	case "stealemoji":
		opts := optionsOf(data.Options)
		err = b.emojis.Steal(ctx, rep, interaction.GuildID, opts.str("name"), opts.str("emoji"))
	case "whois":
		err = b.handleWhoisCommand(ctx, rep, interaction, data)
	case "report":
		err = b.handleReportCommand(ctx, rep, interaction, data)
	case "shutdown":
		b.handleShutdownCommand(ctx, rep, interaction)
	default:
		rep.Error(fmt.Sprintf("Unknown command `%s`", data.Name))
	}
	if err != nil {
		b.logger.Error("command failed",
			zap.String("command", data.Name),
			zap.String("guild_id", interaction.GuildID),
			zap.Error(err),
		)
		rep.Error("Something went wrong while running that command, check the logs!")
	}
}

// presetName defaults to the channel's own name, which is also what unlock
// falls back to.
func presetName(opts optionMap, channel permissions.Channel) string {
	if name := opts.str("name"); name != "" {
		return name
	}
	return channel.Name
}

func (b *Bot) handleChannelCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if len(data.Options) == 0 {
		return nil
	}
	sub := data.Options[0]
	opts := optionsOf(sub.Options)

	switch sub.Name {
	case "print":
		if name := opts.str("name"); name != "" {
			b.channels.Print(rep, name)
			return nil
		}
	case "undo":
		return b.channels.Undo(ctx, rep)
	}

	channelID := opts.str("channel")
	if channelID == "" {
		channelID = interaction.ChannelID
	}
	channel, err := b.perms.ResolveChannel(ctx, channelID)
	if err != nil {
		b.logger.Debug("resolve channel failed", zap.String("channel_id", channelID), zap.Error(err))
		rep.Error("Channel not found!")
		return nil
	}

	switch sub.Name {
	case "print":
		b.channels.Print(rep, presetName(opts, channel))
		return nil
	case "save":
		return b.channels.Save(ctx, rep, presetName(opts, channel), channel)
	case "load":
		return b.channels.Load(ctx, rep, opts.str("name"), channel)
	case "sync":
		return b.channels.Sync(ctx, rep, opts.boolean("to_category"), channel)
	case "slow":
		seconds, _ := opts.integer("seconds")
		return b.channels.Slow(ctx, rep, channel, int(seconds))
	case "archive":
		if err := b.channels.Archive(ctx, rep, channel); err != nil {
			return err
		}
		b.auditChannel(ctx, interaction, audit.EventArchive, channel, false)
	case "lock":
		category := opts.boolean("category")
		if err := b.channels.Lock(ctx, rep, channel, category); err != nil {
			return err
		}
		b.auditChannel(ctx, interaction, audit.EventLock, channel, category)
	case "unlock":
		category := opts.boolean("category")
		if err := b.channels.Unlock(ctx, rep, channel, category); err != nil {
			return err
		}
		b.auditChannel(ctx, interaction, audit.EventUnlock, channel, category)
	}
	return nil
}

func (b *Bot) auditChannel(ctx context.Context, interaction *discordgo.InteractionCreate, event string, channel permissions.Channel, category bool) {
	target := channel
	if category {
		if channel.Parent == nil {
			return
		}
		target = *channel.Parent
	}
	b.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelWarn,
		GuildID: interaction.GuildID,
		ActorID: interactionUser(interaction).ID,
		Event:   event,
		Details: fmt.Sprintf("channel=%s name=%s", target.ID, target.Name),
	})
}

func (b *Bot) handleBanCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionsOf(data.Options)
	target := b.resolvedUser(ctx, data, opts.str("user"))
	settings := b.guildSettings(ctx, interaction.GuildID)

	b.moderation.Ban(ctx, rep, moderation.BanRequest{
		GuildID:        interaction.GuildID,
		GuildName:      b.guildName(interaction.GuildID),
		Target:         target,
		Actor:          interactionUser(interaction),
		Reason:         opts.str("reason"),
		DeleteMessages: opts.boolean("delete_messages"),
		Notify:         settings.DMOnAction,
	})
	return nil
}

func (b *Bot) handleMassBanCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if len(data.Options) == 0 {
		return nil
	}
	sub := data.Options[0]
	opts := optionsOf(sub.Options)
	rep.Defer()

	var targets []*discordgo.User
	switch sub.Name {
	case "ids":
		ids := moderation.ParseIDList(opts.str("ids"))
		users, missing := b.moderation.ResolveUsers(ctx, ids)
		if len(missing) > 0 {
			rep.Warn(fmt.Sprintf("Couldn't find %d users: %s", len(missing), utils.Truncate(strings.Join(missing, ", "), 1024, "...")))
		}
		targets = users
	case "regex":
		pattern, err := regexp.Compile(opts.str("pattern"))
		if err != nil {
			rep.Error(fmt.Sprintf("Invalid regex: `%s`", err))
			return nil
		}
		members, err := b.moderation.FetchMembers(ctx, interaction.GuildID)
		if err != nil {
			return err
		}
		matched := moderation.MatchMembers(members, pattern)
		if !opts.boolean("confirm") {
			if len(matched) == 0 {
				rep.Normal("No members match that pattern.")
				return nil
			}
			rep.Embed(&discordgo.MessageEmbed{
				Title:       fmt.Sprintf("%d members match, run again with confirm to ban them", len(matched)),
				Description: moderation.PreviewMembers(matched),
				Color:       b.cfg.Notifications.EmbedColors.Warning,
			})
			return nil
		}
		targets = moderation.Users(matched)
	}

	_, err := b.moderation.BanMany(ctx, rep, moderation.MassBanRequest{
		GuildID:   interaction.GuildID,
		GuildName: b.guildName(interaction.GuildID),
		Targets:   targets,
		Actor:     interactionUser(interaction),
	})
	if errors.Is(err, context.Canceled) {
		rep.Warn("Mass ban interrupted by shutdown.")
		return nil
	}
	return err
}

func (b *Bot) handlePurgeCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionsOf(data.Options)
	amount, _ := opts.integer("amount")

	mode := moderation.PurgeDefault
	userID := opts.str("user")
	switch {
	case userID != "":
		mode = moderation.PurgeUser
	case opts.boolean("all"):
		mode = moderation.PurgeAll
	}

	rep.Defer()
	_, err := b.moderation.Purge(ctx, rep, moderation.PurgeRequest{
		GuildID:        interaction.GuildID,
		ChannelID:      interaction.ChannelID,
		Amount:         int(amount),
		Mode:           mode,
		UserID:         userID,
		Actor:          interactionUser(interaction),
		ActorProtected: b.moderation.IsProtected(interaction.Member),
	})
	return err
}

func (b *Bot) handleMuteCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionsOf(data.Options)
	duration, err := parseDuration(opts.str("duration"))
	if err != nil {
		rep.Error("Invalid duration, use something like `30m`, `2h` or `1d`!")
		return nil
	}
	member, err := b.session.GuildMember(interaction.GuildID, opts.str("user"), discordgo.WithContext(ctx))
	if err != nil {
		rep.Error("User not found!")
		return nil
	}
	settings := b.guildSettings(ctx, interaction.GuildID)

	return b.mutes.Mute(ctx, rep, moderation.MuteRequest{
		GuildID:   interaction.GuildID,
		GuildName: b.guildName(interaction.GuildID),
		RoleID:    settings.MuteRoleID,
		Target:    member,
		Actor:     interactionUser(interaction),
		Duration:  duration,
		Reason:    opts.str("reason"),
		Notify:    settings.DMOnAction,
	})
}

func (b *Bot) handleUnmuteCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionsOf(data.Options)
	member, err := b.session.GuildMember(interaction.GuildID, opts.str("user"), discordgo.WithContext(ctx))
	if err != nil {
		rep.Error("User not found!")
		return nil
	}
	settings := b.guildSettings(ctx, interaction.GuildID)

	return b.mutes.Unmute(ctx, rep, moderation.UnmuteRequest{
		GuildID:   interaction.GuildID,
		GuildName: b.guildName(interaction.GuildID),
		RoleID:    settings.MuteRoleID,
		Target:    member,
		Actor:     interactionUser(interaction),
		Notify:    settings.DMOnAction,
	})
}

// parseDuration accepts Go durations plus a whole number of days like "3d".
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, nil
	}
	var duration time.Duration
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		duration = time.Duration(n) * 24 * time.Hour
	} else {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return 0, err
		}
		duration = parsed
	}
	if duration <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", value)
	}
	return duration, nil
}

func (b *Bot) handleSettingsCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	settings := b.guildSettings(ctx, interaction.GuildID)
	opts := optionsOf(data.Options)
	if len(opts) == 0 {
		rep.Embed(b.settingsEmbed("Server settings", settings))
		return nil
	}

	var changes []string
	if channelID := opts.str("log_channel"); channelID != "" {
		settings.LogChannel = channelID
		changes = append(changes, "log_channel="+channelID)
	}
	if roleID := opts.str("muted_role"); roleID != "" {
		settings.MuteRoleID = roleID
		changes = append(changes, "muted_role="+roleID)
	}
	if _, ok := opts["dm_on_action"]; ok {
		settings.DMOnAction = opts.boolean("dm_on_action")
		changes = append(changes, fmt.Sprintf("dm_on_action=%t", settings.DMOnAction))
	}
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	b.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelInfo,
		GuildID: interaction.GuildID,
		ActorID: interactionUser(interaction).ID,
		Event:   audit.EventSettings,
		Details: strings.Join(changes, " "),
	})
	rep.Embed(b.settingsEmbed("Server settings updated", settings))
	return nil
}

func (b *Bot) settingsEmbed(title string, settings storage.GuildSettings) *discordgo.MessageEmbed {
	logChannel := "Not set"
	if settings.LogChannel != "" {
		logChannel = "<#" + settings.LogChannel + ">"
	}
	mutedRole := "Not set"
	if settings.MuteRoleID != "" {
		mutedRole = "<@&" + settings.MuteRoleID + ">"
	}
	return &discordgo.MessageEmbed{
		Title: title,
		Color: b.cfg.Notifications.EmbedColors.Primary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Log channel", Value: logChannel, Inline: true},
			{Name: "Muted role", Value: mutedRole, Inline: true},
			{Name: "DM on action", Value: strconv.FormatBool(settings.DMOnAction), Inline: true},
		},
	}
}

func (b *Bot) handleTopicCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if len(data.Options) == 0 {
		return nil
	}
	sub := data.Options[0]
	opts := optionsOf(sub.Options)

	channel, err := b.session.Channel(interaction.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("load channel: %w", err)
	}

	switch sub.Name {
	case "view":
		if channel.Topic == "" {
			rep.Normal("No topic set!")
			return nil
		}
		rep.Normal(channel.Topic)
	case "set":
		topic := utils.Flatten(opts.str("text"), 1024)
		if topic == "" {
			rep.Error("The topic can't be empty, use `/topic clear` instead!")
			return nil
		}
		if _, err := b.session.ChannelEditComplex(channel.ID, &discordgo.ChannelEdit{Topic: topic}, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("set topic: %w", err)
		}
		rep.Success("Set topic to:\n" + topic)
	case "clear":
		// ChannelEdit drops an empty topic, so send the null explicitly.
		endpoint := discordgo.EndpointChannel(channel.ID)
		if _, err := b.session.RequestWithBucketID(http.MethodPatch, endpoint, map[string]any{"topic": nil}, endpoint, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("clear topic: %w", err)
		}
		rep.Success("Cleared topic!")
	}
	return nil
}

func (b *Bot) canManageBot(interaction *discordgo.InteractionCreate) bool {
	member := interaction.Member
	if member == nil {
		return false
	}
	return member.Permissions&discordgo.PermissionAdministrator != 0 || b.moderation.IsProtected(member)
}

func (b *Bot) handlePluginCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if !b.canManageBot(interaction) {
		rep.Error("You don't have permission to manage plugins!")
		return nil
	}
	if len(data.Options) == 0 {
		return nil
	}
	sub := data.Options[0]
	opts := optionsOf(sub.Options)
	start := time.Now()
	took := func() int64 { return time.Since(start).Milliseconds() }

	switch sub.Name {
	case "load":
		file := opts.str("file")
		p, err := b.plugins.Load(file)
		switch {
		case errors.Is(err, plugin.ErrAlreadyLoaded):
			rep.Warn(fmt.Sprintf("Plugin %s already loaded!", file))
			return nil
		case errors.Is(err, plugin.ErrFileNotFound), errors.Is(err, plugin.ErrInvalidFile):
			rep.Error(fmt.Sprintf("%s is not a valid plugin file name!", file))
			return nil
		case err != nil:
			return err
		}
		b.auditPlugin(ctx, interaction, "load "+p.Name())
		rep.Success(fmt.Sprintf("Loaded plugin %s, took %d ms!", p.Name(), took()))
	case "reload":
		name := opts.str("name")
		if name == "" {
			count, err := b.plugins.ReloadAll()
			if err != nil {
				b.logger.Warn("plugin reload failed", zap.Error(err))
				rep.Warn("Some plugins failed to reload, check the logs!")
			}
			b.auditPlugin(ctx, interaction, "reload all")
			rep.Success(fmt.Sprintf("Reloaded %d plugins, took %d ms!", count, took()))
			return nil
		}
		if _, err := b.plugins.Reload(name); err != nil {
			if errors.Is(err, plugin.ErrNotFound) {
				rep.Error(fmt.Sprintf("No plugin found for name %s", name))
				return nil
			}
			return err
		}
		b.auditPlugin(ctx, interaction, "reload "+name)
		rep.Success(fmt.Sprintf("Reloaded plugin %s, took %d ms!", name, took()))
	case "unload":
		name := opts.str("name")
		if name == "" {
			b.plugins.UnloadAll()
			b.auditPlugin(ctx, interaction, "unload all")
			rep.Success(fmt.Sprintf("Unloaded plugins, took %d ms!", took()))
			return nil
		}
		if err := b.plugins.Unload(name); err != nil {
			if errors.Is(err, plugin.ErrNotFound) {
				rep.Error(fmt.Sprintf("No plugin found for name %s", name))
				return nil
			}
			return err
		}
		b.auditPlugin(ctx, interaction, "unload "+name)
		rep.Success(fmt.Sprintf("Unloaded plugin %s, took %d ms!", name, took()))
	case "list":
		rep.Embed(b.pluginListEmbed(b.plugins.List()))
	case "info":
		name := opts.str("name")
		info, ok := b.plugins.Get(name)
		if !ok {
			rep.Error(fmt.Sprintf("No plugin found for name: `%s`", name))
			return nil
		}
		description := info.Description
		if description == "" {
			description = info.Name
		}
		rep.Embed(&discordgo.MessageEmbed{
			Title:       "Info for plugin: " + info.File,
			Description: description,
			Color:       b.cfg.Notifications.EmbedColors.Primary,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Name", Value: info.Name, Inline: true},
				{Name: "Index", Value: strconv.Itoa(info.Index), Inline: true},
			},
		})
	case "download":
		rep.Defer()
		name, err := b.plugins.Download(ctx, opts.str("file"), opts.str("url"))
		if err != nil {
			rep.Error(fmt.Sprintf("Couldn't download plugin: %s", err))
			return nil
		}
		b.auditPlugin(ctx, interaction, "download "+name)
		rep.Success(fmt.Sprintf("Downloaded plugin `%s`, took %d ms!", name, took()))
	case "delete":
		name, err := b.plugins.Delete(opts.str("file"))
		switch {
		case errors.Is(err, plugin.ErrFileNotFound):
			rep.Error(fmt.Sprintf("Could not find a plugin file with the name `%s`", name))
			return nil
		case errors.Is(err, plugin.ErrInvalidFile):
			rep.Error("That is not a valid plugin file name!")
			return nil
		case err != nil:
			return err
		}
		b.auditPlugin(ctx, interaction, "delete "+name)
		rep.Success(fmt.Sprintf("Deleted plugin with file name `%s`", name))
	}
	return nil
}

func (b *Bot) pluginListEmbed(infos []plugin.Info) *discordgo.MessageEmbed {
	if len(infos) == 0 {
		return discord.TextEmbed("No plugins loaded", b.cfg.Notifications.EmbedColors.Warning)
	}
	lines := make([]string, 0, len(infos))
	for _, info := range infos {
		lines = append(lines, fmt.Sprintf("`%d`. %s", info.Index, info.Name))
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Loaded plugins: `%d`", len(infos)),
		Description: strings.Join(lines, "\n"),
		Color:       b.cfg.Notifications.EmbedColors.Primary,
	}
}

func (b *Bot) auditPlugin(ctx context.Context, interaction *discordgo.InteractionCreate, details string) {
	b.audit.Log(ctx, audit.Entry{
		Level:   audit.LevelWarn,
		GuildID: interaction.GuildID,
		ActorID: interactionUser(interaction).ID,
		Event:   audit.EventPlugin,
		Details: details,
	})
}

func (b *Bot) handleWhoisCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionsOf(data.Options)
	userID := opts.str("user")
	if userID == "" {
		userID = interactionUser(interaction).ID
	}
	member, err := b.session.GuildMember(interaction.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		rep.Error("User not found!")
		return nil
	}
	rep.Embed(b.whoisEmbed(member))
	return nil
}

func (b *Bot) whoisEmbed(member *discordgo.Member) *discordgo.MessageEmbed {
	user := member.User
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: "<@" + user.ID + ">", Inline: true},
		{Name: "ID", Value: user.ID, Inline: true},
	}
	if created, err := discordgo.SnowflakeTimestamp(user.ID); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Account created", Value: fmt.Sprintf("<t:%d:R>", created.Unix()), Inline: true})
	}
	if !member.JoinedAt.IsZero() {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Joined", Value: fmt.Sprintf("<t:%d:R>", member.JoinedAt.Unix()), Inline: true})
	}
	roles := "None"
	if len(member.Roles) > 0 {
		mentions := make([]string, 0, len(member.Roles))
		for _, roleID := range member.Roles {
			mentions = append(mentions, "<@&"+roleID+">")
		}
		roles = utils.Truncate(strings.Join(mentions, " "), 1024, "...")
	}
	fields = append(fields,
		&discordgo.MessageEmbedField{Name: "Roles", Value: roles, Inline: false},
		&discordgo.MessageEmbedField{Name: "Protected", Value: strconv.FormatBool(b.moderation.IsProtected(member)), Inline: true},
		&discordgo.MessageEmbedField{Name: "Bot", Value: strconv.FormatBool(user.Bot), Inline: true},
	)
	return &discordgo.MessageEmbed{
		Title:     user.Username,
		Color:     b.cfg.Notifications.EmbedColors.Primary,
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("")},
		Fields:    fields,
	}
}

func (b *Bot) handleReportCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	period := optionsOf(data.Options).str("period")
	if period == "" {
		period = "day"
	}
	report, err := b.analytics.Report(ctx, interaction.GuildID, analytics.Since(time.Now(), period))
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	rep.Embed(b.reportEmbed(period, report))
	return nil
}

func (b *Bot) reportEmbed(period string, report analytics.Report) *discordgo.MessageEmbed {
	events := []string{
		audit.EventBan, audit.EventMassBan, audit.EventMute, audit.EventUnmute,
		audit.EventPurge, audit.EventLock, audit.EventUnlock, audit.EventArchive,
	}
	var lines []string
	for _, event := range events {
		if count := report.ByEvent[event]; count > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", utils.HumanReadable(event), count))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No moderation actions")
	}
	var actors []string
	for _, actor := range report.TopActors {
		actors = append(actors, fmt.Sprintf("<@%s>: %d", actor.ActorID, actor.Count))
	}
	if len(actors) == 0 {
		actors = append(actors, "None")
	}
	return &discordgo.MessageEmbed{
		Title:       "Moderation report (" + period + ")",
		Description: formatReport(report),
		Color:       b.cfg.Notifications.EmbedColors.Primary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Actions", Value: strings.Join(lines, "\n"), Inline: true},
			{Name: "Top moderators", Value: strings.Join(actors, "\n"), Inline: true},
		},
	}
}

func formatReport(report analytics.Report) string {
	return fmt.Sprintf("Total: %d | INFO: %d | WARN: %d | CRIT: %d", report.Total, report.ByLevel[audit.LevelInfo], report.ByLevel[audit.LevelWarn], report.ByLevel[audit.LevelCrit])
}

func (b *Bot) handleShutdownCommand(ctx context.Context, rep *discord.InteractionReporter, interaction *discordgo.InteractionCreate) {
	if !b.canManageBot(interaction) {
		rep.Error("You don't have permission to shut the bot down!")
		return
	}
	actor := interactionUser(interaction)
	if logChannel := b.logChannel(ctx, interaction.GuildID); logChannel != "" {
		discord.NewChannelReporter(b.session, logChannel, b.cfg.Notifications.EmbedColors, b.logger).
			Warn(fmt.Sprintf("Shutting down, requested by <@%s>", actor.ID))
	}
	b.logger.Info("shutdown requested by command", zap.String("user_id", actor.ID))
	rep.Normal("Shutting down...")
	b.requestShutdown()
}

// resolvedUser prefers the user payload sent with the interaction.
func (b *Bot) resolvedUser(ctx context.Context, data discordgo.ApplicationCommandInteractionData, userID string) *discordgo.User {
	if userID == "" {
		return nil
	}
	if data.Resolved != nil {
		if user, ok := data.Resolved.Users[userID]; ok {
			return user
		}
	}
	user, err := b.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil
	}
	return user
}
