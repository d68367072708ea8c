package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string           `yaml:"discord_token" validate:"required"`
	DatabasePath      string           `yaml:"database_path" validate:"required"`
	LogLevel          string           `yaml:"log_level" validate:"oneof=debug info warn error"`
	DefaultLogChannel string           `yaml:"default_log_channel" validate:"omitempty,numeric"`
	DefaultBanReason  string           `yaml:"default_ban_reason"`
	PluginPath        string           `yaml:"plugin_path" validate:"required"`
	RetentionDays     int              `yaml:"retention_days" validate:"gte=1"`
	Health            HealthConfig     `yaml:"health"`
	Moderation        ModerationConfig `yaml:"moderation"`
	MessageLog        MessageLogConfig `yaml:"message_log"`
	Notifications     NotifyConfig     `yaml:"notifications"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

type ModerationConfig struct {
	ProtectedRoleIDs  []string `yaml:"protected_role_ids" validate:"dive,numeric"`
	MassBanIntervalMS int      `yaml:"mass_ban_interval_ms" validate:"gte=0"`
	MuteRoleID        string   `yaml:"mute_role_id" validate:"omitempty,numeric"`
	PurgeMaxPages     int      `yaml:"purge_max_pages" validate:"gte=1,lte=50"`
}

type MessageLogConfig struct {
	Enabled        bool     `yaml:"enabled"`
	CacheSize      int      `yaml:"cache_size" validate:"gte=1"`
	IgnoreChannels []string `yaml:"ignore_channels"`
	IgnorePrefix   string   `yaml:"ignore_prefix"`
}

type NotifyConfig struct {
	DMOnAction     bool        `yaml:"dm_on_action"`
	AuditToChannel bool        `yaml:"audit_to_channel"`
	EmbedColors    EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Primary int `yaml:"primary"`
	Success int `yaml:"success"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
	Edited  int `yaml:"edited"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:     "/data/warden.db",
		LogLevel:         "info",
		DefaultBanReason: "",
		PluginPath:       "plugins",
		RetentionDays:    30,
		Health:           HealthConfig{Enabled: false, Addr: ":8080"},
		Moderation: ModerationConfig{
			MassBanIntervalMS: 200,
			PurgeMaxPages:     10,
		},
		MessageLog: MessageLogConfig{
			Enabled:      true,
			CacheSize:    100,
			IgnorePrefix: "!",
		},
		Notifications: NotifyConfig{
			DMOnAction:     true,
			AuditToChannel: true,
			EmbedColors: EmbedColors{
				Primary: 0x5865F2,
				Success: 0x22C55E,
				Warning: 0xF59E0B,
				Error:   0xEF4444,
				Edited:  0x38BDF8,
			},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against its validate tags.
func Validate(cfg Config) error {
	err := validator.New().Struct(cfg)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return fmt.Errorf("could not validate config: %w", err)
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.DefaultBanReason = envString("DEFAULT_BAN_REASON", cfg.DefaultBanReason)
	cfg.PluginPath = envString("PLUGIN_PATH", cfg.PluginPath)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Moderation.ProtectedRoleIDs = envList("PROTECTED_ROLE_IDS", cfg.Moderation.ProtectedRoleIDs)
	cfg.Moderation.MassBanIntervalMS = envInt("MASS_BAN_INTERVAL_MS", cfg.Moderation.MassBanIntervalMS)
	cfg.Moderation.MuteRoleID = envString("MUTE_ROLE_ID", cfg.Moderation.MuteRoleID)
	cfg.MessageLog.Enabled = envBool("MESSAGE_LOG_ENABLED", cfg.MessageLog.Enabled)
	cfg.MessageLog.IgnoreChannels = envList("MESSAGE_LOG_IGNORE_CHANNELS", cfg.MessageLog.IgnoreChannels)
	cfg.MessageLog.IgnorePrefix = envString("MESSAGE_LOG_IGNORE_PREFIX", cfg.MessageLog.IgnorePrefix)
	cfg.Notifications.DMOnAction = envBool("DM_ON_ACTION", cfg.Notifications.DMOnAction)
	cfg.Notifications.AuditToChannel = envBool("AUDIT_TO_CHANNEL", cfg.Notifications.AuditToChannel)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
