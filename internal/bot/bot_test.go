package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"warden/internal/analytics"
	"warden/internal/config"
	"warden/internal/modules/audit"
	"warden/internal/modules/moderation"
	"warden/internal/permissions"
	"warden/internal/plugin"
	"warden/internal/storage"
)

func newTestBot() *Bot {
	cfg := config.DefaultConfig()
	return &Bot{
		cfg:            cfg,
		logger:         zap.NewNop(),
		session:        &discordgo.Session{},
		moderation:     moderation.NewService(nil, moderation.Config{ProtectedRoleIDs: []string{"900"}}, nil, nil),
		pluginCommands: make(map[string]pluginCommand),
		auditAgg:       make(map[string]*auditAggregate),
		done:           make(chan struct{}),
		stop:           make(chan struct{}),
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":      0,
		"30m":   30 * time.Minute,
		"2h30m": 150 * time.Minute,
		"3d":    72 * time.Hour,
		" 1D ":  24 * time.Hour,
	}
	for input, want := range cases {
		got, err := parseDuration(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	for _, input := range []string{"soon", "-5m", "0d", "xd"} {
		_, err := parseDuration(input)
		assert.Error(t, err, input)
	}
}

func TestOptionMap(t *testing.T) {
	opts := optionsOf([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "  general "},
		{Name: "category", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
		{Name: "seconds", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(30)},
	})

	assert.Equal(t, "general", opts.str("name"))
	assert.Equal(t, "", opts.str("missing"))
	assert.True(t, opts.boolean("category"))
	assert.False(t, opts.boolean("name"))
	seconds, ok := opts.integer("seconds")
	assert.True(t, ok)
	assert.Equal(t, int64(30), seconds)
	_, ok = opts.integer("missing")
	assert.False(t, ok)
}

func TestPresetNameDefaultsToChannel(t *testing.T) {
	channel := permissions.Channel{ID: "1", Name: "general"}

	assert.Equal(t, "general", presetName(optionsOf(nil), channel))
	named := optionsOf([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "quiet"},
	})
	assert.Equal(t, "quiet", presetName(named, channel))
}

func TestChannelPresetNameOptional(t *testing.T) {
	required := make(map[string]bool)
	for _, cmd := range builtinCommands() {
		if cmd.Name != "channel" {
			continue
		}
		for _, sub := range cmd.Options {
			for _, opt := range sub.Options {
				if opt.Name == "name" {
					required[sub.Name] = opt.Required
				}
			}
		}
	}
	assert.Equal(t, map[string]bool{"save": false, "print": false, "load": true}, required)
}

func TestBuiltinCommandsAreUniqueAndGuarded(t *testing.T) {
	seen := make(map[string]bool)
	for _, cmd := range builtinCommands() {
		assert.False(t, seen[cmd.Name], cmd.Name)
		seen[cmd.Name] = true
		if cmd.Name != "whois" {
			assert.NotNil(t, cmd.DefaultMemberPermissions, cmd.Name)
		}
	}
	assert.True(t, isBuiltin("channel"))
	assert.False(t, isBuiltin("weather"))
}

func TestPluginRegistry(t *testing.T) {
	b := newTestBot()
	handler := plugin.Handler(func(*discordgo.Session, *discordgo.InteractionCreate) {})

	require.NoError(t, b.AddCommand(&discordgo.ApplicationCommand{Name: "weather"}, handler))
	assert.Error(t, b.AddCommand(&discordgo.ApplicationCommand{Name: "weather"}, handler))
	assert.Error(t, b.AddCommand(&discordgo.ApplicationCommand{Name: "ban"}, handler))
	assert.Error(t, b.AddCommand(&discordgo.ApplicationCommand{Name: "nohandler"}, nil))

	_, ok := b.pluginHandler("weather")
	assert.True(t, ok)
	assert.Len(t, b.pluginApplicationCommands(), 1)

	require.NoError(t, b.RemoveCommand("weather"))
	require.NoError(t, b.RemoveCommand("weather"))
	_, ok = b.pluginHandler("weather")
	assert.False(t, ok)
}

func TestBuildAuditEmbed(t *testing.T) {
	b := newTestBot()
	entry := storage.AuditLog{
		GuildID:   "1",
		UserID:    "2",
		Level:     audit.LevelCrit,
		Event:     audit.EventMassBan,
		Details:   "banned=3 requested=3",
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	embed := b.buildAuditEmbed(entry, 1)
	assert.Equal(t, b.cfg.Notifications.EmbedColors.Error, embed.Color)
	assert.Equal(t, "Mass Ban", embed.Fields[0].Value)
	assert.Equal(t, "System", embed.Fields[3].Value)
	assert.Len(t, embed.Fields, 5)
	assert.Equal(t, "2024-01-02T03:04:05Z", embed.Timestamp)

	entry.ActorID = "3"
	embed = b.buildAuditEmbed(entry, 4)
	assert.Equal(t, "<@3>", embed.Fields[3].Value)
	assert.Equal(t, "4", embed.Fields[4].Value)
}

func TestReportEmbed(t *testing.T) {
	b := newTestBot()
	report := analytics.Report{
		Total:     3,
		ByLevel:   map[string]int{audit.LevelInfo: 2, audit.LevelCrit: 1},
		ByEvent:   map[string]int{audit.EventBan: 1, audit.EventPurge: 2},
		TopActors: []analytics.ActorCount{{ActorID: "7", Count: 3}},
	}
	embed := b.reportEmbed("week", report)
	assert.Equal(t, "Moderation report (week)", embed.Title)
	assert.Equal(t, "Total: 3 | INFO: 2 | WARN: 0 | CRIT: 1", embed.Description)
	assert.Equal(t, "Ban: 1\nPurge: 2", embed.Fields[0].Value)
	assert.Equal(t, "<@7>: 3", embed.Fields[1].Value)

	empty := b.reportEmbed("day", analytics.Report{})
	assert.Equal(t, "No moderation actions", empty.Fields[0].Value)
	assert.Equal(t, "None", empty.Fields[1].Value)
}

func TestPluginListEmbed(t *testing.T) {
	b := newTestBot()
	empty := b.pluginListEmbed(nil)
	assert.Equal(t, "No plugins loaded", empty.Description)

	embed := b.pluginListEmbed([]plugin.Info{{Index: 0, Name: "weather"}, {Index: 1, Name: "quotes"}})
	assert.Equal(t, "Loaded plugins: `2`", embed.Title)
	assert.Equal(t, "`0`. weather\n`1`. quotes", embed.Description)
}

func TestWhoisEmbed(t *testing.T) {
	b := newTestBot()
	member := &discordgo.Member{
		User:     &discordgo.User{ID: "175928847299117063", Username: "mod"},
		Roles:    []string{"900", "901"},
		JoinedAt: time.Unix(1700000000, 0),
	}
	embed := b.whoisEmbed(member)
	assert.Equal(t, "mod", embed.Title)

	values := make(map[string]string)
	for _, field := range embed.Fields {
		values[field.Name] = field.Value
	}
	assert.Equal(t, "<@&900> <@&901>", values["Roles"])
	assert.Equal(t, "true", values["Protected"])
	assert.Equal(t, "<t:1700000000:R>", values["Joined"])
	assert.True(t, strings.HasPrefix(values["Account created"], "<t:"))
}

func TestSettingsEmbed(t *testing.T) {
	b := newTestBot()
	embed := b.settingsEmbed("Server settings", storage.GuildSettings{LogChannel: "5", DMOnAction: true})
	assert.Equal(t, "<#5>", embed.Fields[0].Value)
	assert.Equal(t, "Not set", embed.Fields[1].Value)
	assert.Equal(t, "true", embed.Fields[2].Value)
}
