package bot

import (
	"testing"

	"warden/internal/analytics"
	"warden/internal/config"
	"warden/internal/giveaway"
	"warden/internal/modlog"
	"warden/internal/raidwatch"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zap.NewNop()
	cfg := config.DefaultConfig()
	cfg.DiscordToken = "token"

	b, err := New(cfg, logger, store,
		raidwatch.New(),
		giveaway.NewEngine(store, nil, logger),
		modlog.New(store, logger),
		analytics.New(store))
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	return b
}

func TestNewConfiguresGatewayIntents(t *testing.T) {
	b := newTestBot(t)

	wanted := []discordgo.Intent{
		discordgo.IntentGuilds,
		discordgo.IntentGuildMessages,
		discordgo.IntentGuildMembers,
		discordgo.IntentGuildModeration,
		discordgo.IntentGuildWebhooks,
		discordgo.IntentMessageContent,
	}
	for _, intent := range wanted {
		if b.session.Identify.Intents&intent == 0 {
			t.Fatalf("intent %d not requested", intent)
		}
	}
}

func TestNewBindsGiveawayDirectory(t *testing.T) {
	b := newTestBot(t)
	if b.Directory() == nil {
		t.Fatalf("expected a member directory")
	}
}
