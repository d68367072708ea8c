package bot

import "github.com/bwmarrin/discordgo"

const (
	permManageChannels int64 = discordgo.PermissionManageChannels
	permBanMembers     int64 = discordgo.PermissionBanMembers
	permManageRoles    int64 = discordgo.PermissionManageRoles
	permManageMessages int64 = discordgo.PermissionManageMessages
	permManageServer   int64 = discordgo.PermissionManageServer
	permManageEmojis   int64 = 1 << 30
	permAdministrator  int64 = discordgo.PermissionAdministrator
)

func memberPermission(value int64) *int64 {
	return &value
}

func channelOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  "Target channel, defaults to this one",
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
	}
}

func presetOption(required bool) *discordgo.ApplicationCommandOption {
	description := "Preset name"
	if !required {
		description = "Preset name, defaults to the channel name"
	}
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "name",
		Description: description,
		Required:    required,
	}
}

func categoryOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Name:        "category",
		Description: "Apply to the channel's category instead",
	}
}

func userOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    required,
	}
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func builtinCommands() []*discordgo.ApplicationCommand {
	guildOnly := false
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "channel",
			Description:              "Save, restore and lock channel permissions",
			DefaultMemberPermissions: memberPermission(permManageChannels),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("save", "Save the channel's permissions as a preset", presetOption(false), channelOption()),
				subcommand("print", "Print a saved preset", presetOption(false)),
				subcommand("load", "Apply a saved preset to the channel", presetOption(true), channelOption()),
				subcommand("undo", "Revert the last save or load"),
				subcommand("sync", "Copy permissions between the channel and its category",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "to_category",
						Description: "Copy the channel's permissions onto its category",
					},
					channelOption(),
				),
				subcommand("slow", "Set slowmode",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "seconds",
						Description: "Seconds between messages, 0 removes slowmode",
						Required:    true,
					},
					channelOption(),
				),
				subcommand("archive", "Hide the channel and rename it archived-N", channelOption()),
				subcommand("lock", "Stop @everyone from sending messages", categoryOption(), channelOption()),
				subcommand("unlock", "Restore permissions from before the lock", categoryOption(), channelOption()),
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a user",
			DefaultMemberPermissions: memberPermission(permBanMembers),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to ban", true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason shown to the user and in the audit log",
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "delete_messages",
					Description: "Delete the last day of messages",
				},
			},
		},
		{
			Name:                     "massban",
			Description:              "Ban many users at once",
			DefaultMemberPermissions: memberPermission(permBanMembers),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("ids", "Ban a list of user IDs",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "ids",
						Description: "Space separated user IDs or mentions",
						Required:    true,
					},
				),
				subcommand("regex", "Ban members whose username matches a pattern",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "pattern",
						Description: "Regular expression matched against usernames",
						Required:    true,
					},
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "confirm",
						Description: "Ban the matches instead of previewing them",
					},
				),
			},
		},
		{
			Name:                     "purge",
			Description:              "Delete recent messages",
			DefaultMemberPermissions: memberPermission(permManageMessages),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "How many messages to delete",
					Required:    true,
				},
				userOption("Only delete messages from this user", false),
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "all",
					Description: "Include bots and protected members",
				},
			},
		},
		{
			Name:                     "mute",
			Description:              "Give a user the muted role",
			DefaultMemberPermissions: memberPermission(permManageRoles),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to mute", true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "How long, like 30m, 2h or 1d. Leave empty to mute until unmuted",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Why the user is muted",
				},
			},
		},
		{
			Name:                     "unmute",
			Description:              "Remove the muted role",
			DefaultMemberPermissions: memberPermission(permManageRoles),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("User to unmute", true),
			},
		},
		{
			Name:                     "settings",
			Description:              "Show or change server settings",
			DefaultMemberPermissions: memberPermission(permManageServer),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "log_channel",
					Description:  "Where moderation actions and message edits are logged",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "muted_role",
					Description: "Role given by /mute",
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "dm_on_action",
					Description: "DM users when they are banned or muted",
				},
			},
		},
		{
			Name:                     "topic",
			Description:              "View or change the channel topic",
			DefaultMemberPermissions: memberPermission(permManageChannels),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("view", "Show the topic"),
				subcommand("set", "Set the topic",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "text",
						Description: "New topic",
						Required:    true,
					},
				),
				subcommand("clear", "Remove the topic"),
			},
		},
		{
			Name:                     "plugin",
			Description:              "Manage plugins",
			DefaultMemberPermissions: memberPermission(permAdministrator),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("load", "Load a plugin file", pluginFileOption()),
				subcommand("reload", "Reload one plugin, or all of them", pluginNameOption(false)),
				subcommand("unload", "Unload one plugin, or all of them", pluginNameOption(false)),
				subcommand("list", "List loaded plugins"),
				subcommand("info", "Show details of a loaded plugin", pluginNameOption(true)),
				subcommand("download", "Download a plugin file",
					pluginFileOption(),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "url",
						Description: "Where to download the plugin from",
						Required:    true,
					},
				),
				subcommand("delete", "Delete a plugin file", pluginFileOption()),
			},
		},
		{
			Name:                     "stealemoji",
			Description:              "Copy a custom emoji into this server",
			DefaultMemberPermissions: memberPermission(permManageEmojis),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "emoji",
					Description: "A custom emoji, an emoji ID or an emoji URL",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Name for the new emoji",
				},
			},
		},
		{
			Name:         "whois",
			Description:  "Show information about a member",
			DMPermission: &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to look up, defaults to you", false),
			},
		},
		{
			Name:                     "report",
			Description:              "Moderation activity summary",
			DefaultMemberPermissions: memberPermission(permManageServer),
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "Time span",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
						{Name: "month", Value: "month"},
					},
				},
			},
		},
		{
			Name:                     "shutdown",
			Description:              "Stop the bot",
			DefaultMemberPermissions: memberPermission(permAdministrator),
			DMPermission:             &guildOnly,
		},
	}
}

func pluginFileOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "file",
		Description: "Plugin file name",
		Required:    true,
	}
}

func pluginNameOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "name",
		Description: "Plugin name",
		Required:    required,
	}
}

func (b *Bot) registerCommands() error {
	commands := append(builtinCommands(), b.pluginApplicationCommands()...)

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildID := guild.ID
		guildCmds, err := b.session.ApplicationCommands(appID, guildID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
		}
	}
	return nil
}
