package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string          `yaml:"discord_token"`
	OwnerID       string          `yaml:"owner_id"`
	DatabasePath  string          `yaml:"database_path"`
	LogLevel      string          `yaml:"log_level"`
	RetentionDays int             `yaml:"retention_days"`
	Automod       AutomodConfig   `yaml:"automod"`
	Giveaways     GiveawayConfig  `yaml:"giveaways"`
	Broadcast     BroadcastConfig `yaml:"broadcast"`
	Notifications NotifyConfig    `yaml:"notifications"`
	Health        HealthConfig    `yaml:"health"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type AutomodConfig struct {
	JoinThreshold        int `yaml:"join_threshold"`
	JoinWindowSeconds    int `yaml:"join_window_seconds"`
	MentionThreshold     int `yaml:"mention_threshold"`
	MentionWindowSeconds int `yaml:"mention_window_seconds"`
	ChurnWindowSeconds   int `yaml:"churn_window_seconds"`
	WebhookWindowSeconds int `yaml:"webhook_window_seconds"`
	CooldownSeconds      int `yaml:"cooldown_seconds"`
	TimeoutMinutes       int `yaml:"timeout_minutes"`
	LockdownMinutes      int `yaml:"lockdown_minutes"`
}

type GiveawayConfig struct {
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	MaxWinners           int `yaml:"max_winners"`
}

type BroadcastConfig struct {
	PaceMilliseconds int `yaml:"pace_milliseconds"`
}

type NotifyConfig struct {
	DMOnAction  bool        `yaml:"dm_on_action"`
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Success int `yaml:"success"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/warden.db",
		LogLevel:      "info",
		RetentionDays: 30,
		Automod: AutomodConfig{
			JoinThreshold:        8,
			JoinWindowSeconds:    60,
			MentionThreshold:     8,
			MentionWindowSeconds: 10,
			ChurnWindowSeconds:   10,
			WebhookWindowSeconds: 30,
			CooldownSeconds:      120,
			TimeoutMinutes:       10,
			LockdownMinutes:      15,
		},
		Giveaways: GiveawayConfig{
			SweepIntervalSeconds: 30,
			MaxWinners:           20,
		},
		Broadcast: BroadcastConfig{
			PaceMilliseconds: 750,
		},
		Health: HealthConfig{
			Addr: ":8080",
		},
		Notifications: NotifyConfig{
			DMOnAction: true,
			EmbedColors: EmbedColors{
				Action:  0x5865F2,
				Success: 0x57F287,
				Error:   0xED4245,
			},
		},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	clamp(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.OwnerID = envString("OWNER_ID", cfg.OwnerID)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Automod.JoinThreshold = envInt("AUTOMOD_JOIN_THRESHOLD", cfg.Automod.JoinThreshold)
	cfg.Automod.JoinWindowSeconds = envInt("AUTOMOD_JOIN_WINDOW_SECONDS", cfg.Automod.JoinWindowSeconds)
	cfg.Automod.CooldownSeconds = envInt("AUTOMOD_COOLDOWN_SECONDS", cfg.Automod.CooldownSeconds)
	cfg.Automod.TimeoutMinutes = envInt("AUTOMOD_TIMEOUT_MINUTES", cfg.Automod.TimeoutMinutes)
	cfg.Automod.LockdownMinutes = envInt("AUTOMOD_LOCKDOWN_MINUTES", cfg.Automod.LockdownMinutes)
	cfg.Giveaways.SweepIntervalSeconds = envInt("GIVEAWAY_SWEEP_SECONDS", cfg.Giveaways.SweepIntervalSeconds)
	cfg.Giveaways.MaxWinners = envInt("GIVEAWAY_MAX_WINNERS", cfg.Giveaways.MaxWinners)
	cfg.Broadcast.PaceMilliseconds = envInt("BROADCAST_PACE_MS", cfg.Broadcast.PaceMilliseconds)
	cfg.Notifications.DMOnAction = envBool("DM_ON_ACTION", cfg.Notifications.DMOnAction)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
}

func clamp(cfg *Config) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Giveaways.SweepIntervalSeconds < 5 {
		cfg.Giveaways.SweepIntervalSeconds = 5
	}
	if cfg.Giveaways.MaxWinners <= 0 {
		cfg.Giveaways.MaxWinners = 20
	}
	if cfg.Broadcast.PaceMilliseconds < 0 {
		cfg.Broadcast.PaceMilliseconds = 0
	}
	if cfg.Automod.TimeoutMinutes <= 0 {
		cfg.Automod.TimeoutMinutes = 10
	}
	if cfg.Automod.LockdownMinutes <= 0 {
		cfg.Automod.LockdownMinutes = 15
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

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
