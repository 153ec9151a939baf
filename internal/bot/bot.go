package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"warden/internal/analytics"
	"warden/internal/config"
	"warden/internal/giveaway"
	"warden/internal/modlog"
	"warden/internal/raidwatch"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	detector  *raidwatch.Detector
	giveaways *giveaway.Engine
	cases     *modlog.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	cron      *cron.Cron

	lockdownMu  sync.Mutex
	lockdownMap map[string]*lockdownSnapshot
}

type lockdownSnapshot struct {
	channels map[string]channelSnapshot
	timer    *time.Timer
}

type channelSnapshot struct {
	allow   int64
	deny    int64
	hasPerm bool
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, detector *raidwatch.Detector, engine *giveaway.Engine, cases *modlog.Logger, analyticsSvc *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildModeration |
		discordgo.IntentGuildWebhooks |
		discordgo.IntentMessageContent

	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		detector:    detector,
		giveaways:   engine,
		cases:       cases,
		analytics:   analyticsSvc,
		session:     session,
		lockdownMap: make(map[string]*lockdownSnapshot),
	}

	b.cases.SetNotifier(b.mirrorCase)
	b.giveaways.SetAnnouncer(b)
	b.giveaways.SetDirectory(b.Directory())

	return b, nil
}

// Directory returns the live member lookup backing giveaway
// eligibility checks.
func (b *Bot) Directory() giveaway.Directory {
	return &sessionDirectory{bot: b}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onChannelCreate)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onWebhooksUpdate)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.cron = cron.New()
	sweepSpec := fmt.Sprintf("@every %ds", b.cfg.Giveaways.SweepIntervalSeconds)
	if _, err := b.cron.AddFunc(sweepSpec, func() {
		b.giveaways.Sweep(context.Background())
	}); err != nil {
		return err
	}
	if _, err := b.cron.AddFunc("@daily", func() {
		cutoff := time.Now().AddDate(0, 0, -b.cfg.RetentionDays)
		if err := b.store.DeleteTranscriptsBefore(context.Background(), cutoff); err != nil {
			b.logger.Warn("transcript retention cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	b.cron.Start()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.cron != nil {
		b.cron.Stop()
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("gateway ready", zap.String("user", session.State.User.Username))
}

// sessionDirectory resolves member and vouch data through the live
// session and the store.
type sessionDirectory struct {
	bot *Bot
}

func (d *sessionDirectory) Member(ctx context.Context, guildID, userID string) (giveaway.Member, error) {
	_ = ctx
	member, err := d.bot.session.GuildMember(guildID, userID)
	if err != nil {
		if isUnknownEntity(err) {
			return giveaway.Member{}, giveaway.ErrMemberGone
		}
		return giveaway.Member{}, err
	}
	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		created = time.Time{}
	}
	return giveaway.Member{Roles: member.Roles, CreatedAt: created}, nil
}

func (d *sessionDirectory) VouchCount(ctx context.Context, guildID, userID string) (int, error) {
	return d.bot.store.CountVouches(ctx, guildID, userID)
}

// isUnknownEntity reports whether the gateway rejected the call
// because the member, message, channel or guild no longer exists.
func isUnknownEntity(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response != nil && restErr.Response.StatusCode == 404 {
		return true
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownMessage,
			discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownGuild,
			discordgo.ErrCodeUnknownUser:
			return true
		}
	}
	return false
}
