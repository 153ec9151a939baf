package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden/internal/raidwatch"
	"warden/internal/storage"
	"warden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) automodSettings(ctx context.Context, guildID string) (storage.AutomodSettings, error) {
	defaults := storage.DefaultAutomodSettings()
	defaults.JoinThreshold = b.cfg.Automod.JoinThreshold
	defaults.JoinWindowSeconds = b.cfg.Automod.JoinWindowSeconds
	defaults.MentionThreshold = b.cfg.Automod.MentionThreshold
	defaults.MentionWindowSeconds = b.cfg.Automod.MentionWindowSeconds
	defaults.CooldownSeconds = b.cfg.Automod.CooldownSeconds
	return b.store.GetAutomodSettings(ctx, guildID, defaults)
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	ctx := context.Background()
	settings, err := b.automodSettings(ctx, event.GuildID)
	if err != nil {
		b.logger.Error("automod settings lookup failed", zap.Error(err))
		return
	}
	if !settings.Enabled {
		return
	}

	limits := raidwatch.Limits{
		Window:    time.Duration(settings.JoinWindowSeconds) * time.Second,
		Threshold: settings.JoinThreshold,
	}
	cooldown := time.Duration(settings.CooldownSeconds) * time.Second
	count, triggered := b.detector.Observe(event.GuildID, raidwatch.KindJoin, limits, cooldown)
	if !triggered {
		return
	}

	b.logger.Warn("join burst detected",
		zap.String("guild_id", event.GuildID),
		zap.Int("count", count),
		zap.String("response", settings.JoinResponse))

	switch settings.JoinResponse {
	case storage.ResponseTimeout:
		until := time.Now().Add(time.Duration(b.cfg.Automod.TimeoutMinutes) * time.Minute)
		if err := session.GuildMemberTimeout(event.GuildID, event.User.ID, &until); err != nil {
			b.logger.Error("join burst timeout failed", zap.Error(err))
			return
		}
		b.recordAutomodCase(ctx, event.GuildID, event.User.ID, storage.CaseTimeout,
			fmt.Sprintf("join burst: %d joins in %ds", count, settings.JoinWindowSeconds),
			time.Duration(b.cfg.Automod.TimeoutMinutes)*time.Minute)
	case storage.ResponseKick:
		if err := session.GuildMemberDeleteWithReason(event.GuildID, event.User.ID, "join burst"); err != nil {
			b.logger.Error("join burst kick failed", zap.Error(err))
			return
		}
		b.recordAutomodCase(ctx, event.GuildID, event.User.ID, storage.CaseKick,
			fmt.Sprintf("join burst: %d joins in %ds", count, settings.JoinWindowSeconds), 0)
	case storage.ResponseLockdown:
		b.enterLockdown(event.GuildID)
	}
}

func (b *Bot) onChannelCreate(session *discordgo.Session, event *discordgo.ChannelCreate) {
	_ = session
	b.observeChurn(event.Channel.GuildID, raidwatch.KindChannelCreate, b.cfg.Automod.ChurnWindowSeconds,
		discordgo.AuditLogActionChannelCreate, event.Channel.ID)
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	_ = session
	b.observeChurn(event.Channel.GuildID, raidwatch.KindChannelDelete, b.cfg.Automod.ChurnWindowSeconds,
		discordgo.AuditLogActionChannelDelete, event.Channel.ID)
}

func (b *Bot) onWebhooksUpdate(session *discordgo.Session, event *discordgo.WebhooksUpdate) {
	_ = session
	b.observeChurn(event.GuildID, raidwatch.KindWebhookUpdate, b.cfg.Automod.WebhookWindowSeconds,
		discordgo.AuditLogActionWebhookUpdate, event.ChannelID)
}

// observeChurn feeds one channel or webhook change into its detector
// and responds to a burst with a lockdown, attributing the burst to
// the audit-log actor when one is visible.
func (b *Bot) observeChurn(guildID string, kind raidwatch.Kind, windowSeconds int, action discordgo.AuditLogAction, targetID string) {
	if guildID == "" {
		return
	}
	ctx := context.Background()
	settings, err := b.automodSettings(ctx, guildID)
	if err != nil || !settings.Enabled {
		return
	}
	threshold := settings.ChurnThreshold
	if kind == raidwatch.KindWebhookUpdate {
		threshold = settings.WebhookThreshold
	}
	limits := raidwatch.Limits{
		Window:    time.Duration(windowSeconds) * time.Second,
		Threshold: threshold,
	}
	cooldown := time.Duration(settings.CooldownSeconds) * time.Second
	count, triggered := b.detector.Observe(guildID, kind, limits, cooldown)
	if !triggered {
		return
	}

	actorID := b.resolveAuditActor(guildID, action, targetID)
	b.logger.Warn("churn burst detected",
		zap.String("guild_id", guildID),
		zap.String("kind", string(kind)),
		zap.String("actor_id", actorID),
		zap.Int("count", count))

	if actorID != "" && actorID != b.session.State.User.ID {
		b.recordAutomodCase(ctx, guildID, actorID, storage.CaseWarn,
			fmt.Sprintf("%s burst: %d changes in %ds", kind, count, windowSeconds), 0)
	}
	b.enterLockdown(guildID)
}

// resolveAuditActor finds who performed a recent change of the given
// action kind. Empty when the audit log is unreadable or the entry is
// stale.
func (b *Bot) resolveAuditActor(guildID string, action discordgo.AuditLogAction, targetID string) string {
	logs, err := b.session.GuildAuditLog(guildID, "", "", int(action), 5)
	if err != nil || logs == nil {
		return ""
	}
	for _, entry := range logs.AuditLogEntries {
		if entry == nil {
			continue
		}
		if targetID != "" && entry.TargetID != targetID {
			continue
		}
		ts, err := discordgo.SnowflakeTimestamp(entry.ID)
		if err == nil && time.Since(ts) > 30*time.Second {
			continue
		}
		return entry.UserID
	}
	return ""
}

func (b *Bot) onMessageCreate(session *discordgo.Session, event *discordgo.MessageCreate) {
	if event.Author == nil || event.Author.Bot || event.GuildID == "" {
		return
	}

	ctx := context.Background()
	settings, err := b.automodSettings(ctx, event.GuildID)
	if err != nil || !settings.Enabled {
		return
	}

	if b.filterLinks(ctx, session, event, settings) {
		return
	}

	mentions := len(event.Mentions)
	if event.MentionEveryone {
		mentions++
	}
	if mentions == 0 {
		return
	}
	limits := raidwatch.Limits{
		Window:    time.Duration(settings.MentionWindowSeconds) * time.Second,
		Threshold: settings.MentionThreshold,
	}
	cooldown := time.Duration(settings.CooldownSeconds) * time.Second
	var triggered bool
	var count int
	for i := 0; i < mentions; i++ {
		count, triggered = b.detector.Observe(event.GuildID, raidwatch.KindMention, limits, cooldown)
		if triggered {
			break
		}
	}
	if !triggered {
		return
	}

	b.logger.Warn("mention burst detected",
		zap.String("guild_id", event.GuildID),
		zap.String("user_id", event.Author.ID),
		zap.Int("count", count))

	if err := session.ChannelMessageDelete(event.ChannelID, event.ID); err != nil {
		b.logger.Warn("mention burst delete failed", zap.Error(err))
	}
	until := time.Now().Add(time.Duration(b.cfg.Automod.TimeoutMinutes) * time.Minute)
	if err := session.GuildMemberTimeout(event.GuildID, event.Author.ID, &until); err != nil {
		b.logger.Error("mention burst timeout failed", zap.Error(err))
		return
	}
	b.recordAutomodCase(ctx, event.GuildID, event.Author.ID, storage.CaseTimeout,
		fmt.Sprintf("mention burst: %d mentions in %ds", count, settings.MentionWindowSeconds),
		time.Duration(b.cfg.Automod.TimeoutMinutes)*time.Minute)
}

// filterLinks deletes messages carrying invites or domains outside the
// whitelist. Every linked domain must be whitelisted for the message
// to pass. Reports whether the message was removed.
func (b *Bot) filterLinks(ctx context.Context, session *discordgo.Session, event *discordgo.MessageCreate, settings storage.AutomodSettings) bool {
	if settings.BlockInvites && utils.ContainsInvite(event.Content) {
		b.deleteFiltered(ctx, session, event, "invite link")
		return true
	}
	if !settings.LinkFilterEnabled {
		return false
	}
	if len(utils.ExtractURLs(event.Content)) == 0 {
		return false
	}

	domains, err := b.store.ListAllowedDomains(ctx, event.GuildID)
	if err != nil {
		b.logger.Error("domain whitelist lookup failed", zap.Error(err))
		return false
	}
	whitelist := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		whitelist[domain] = struct{}{}
	}

	allowed, offending := utils.AllDomainsAllowed(event.Content, whitelist)
	if allowed {
		return false
	}
	b.deleteFiltered(ctx, session, event, "link to "+offending)
	return true
}

func (b *Bot) deleteFiltered(ctx context.Context, session *discordgo.Session, event *discordgo.MessageCreate, reason string) {
	if err := session.ChannelMessageDelete(event.ChannelID, event.ID); err != nil {
		b.logger.Warn("filtered message delete failed", zap.Error(err))
		return
	}
	b.recordAutomodCase(ctx, event.GuildID, event.Author.ID, storage.CaseWarn, "filtered: "+reason, 0)
}

func (b *Bot) recordAutomodCase(ctx context.Context, guildID, targetID, kind, reason string, duration time.Duration) {
	_, err := b.cases.Record(ctx, storage.CaseRecord{
		GuildID:     guildID,
		Kind:        kind,
		TargetID:    targetID,
		ModeratorID: b.session.State.User.ID,
		Reason:      reason,
		Duration:    duration,
		Metadata:    "automod",
	})
	if err != nil {
		b.logger.Error("automod case record failed",
			zap.String("guild_id", guildID), zap.Error(err))
	}
}

// enterLockdown strips send permission for @everyone in every text
// channel, keeping a snapshot so the exact previous overwrites come
// back when the lockdown lifts.
func (b *Bot) enterLockdown(guildID string) {
	b.lockdownMu.Lock()
	defer b.lockdownMu.Unlock()
	if _, active := b.lockdownMap[guildID]; active {
		return
	}

	channels, err := b.session.GuildChannels(guildID)
	if err != nil {
		b.logger.Error("lockdown channel list failed", zap.Error(err))
		return
	}

	snapshot := &lockdownSnapshot{channels: make(map[string]channelSnapshot)}
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		prev := channelSnapshot{}
		for _, overwrite := range channel.PermissionOverwrites {
			if overwrite.ID == guildID && overwrite.Type == discordgo.PermissionOverwriteTypeRole {
				prev = channelSnapshot{allow: overwrite.Allow, deny: overwrite.Deny, hasPerm: true}
				break
			}
		}
		deny := prev.deny | discordgo.PermissionSendMessages
		if err := b.session.ChannelPermissionSet(channel.ID, guildID,
			discordgo.PermissionOverwriteTypeRole, prev.allow&^discordgo.PermissionSendMessages, deny); err != nil {
			b.logger.Warn("lockdown overwrite failed",
				zap.String("channel_id", channel.ID), zap.Error(err))
			continue
		}
		snapshot.channels[channel.ID] = prev
	}

	duration := time.Duration(b.cfg.Automod.LockdownMinutes) * time.Minute
	snapshot.timer = time.AfterFunc(duration, func() {
		b.liftLockdown(guildID)
	})
	b.lockdownMap[guildID] = snapshot

	b.logger.Warn("lockdown engaged",
		zap.String("guild_id", guildID),
		zap.Duration("duration", duration),
		zap.Int("channels", len(snapshot.channels)))
}

func (b *Bot) liftLockdown(guildID string) {
	b.lockdownMu.Lock()
	snapshot, active := b.lockdownMap[guildID]
	if active {
		delete(b.lockdownMap, guildID)
	}
	b.lockdownMu.Unlock()
	if !active {
		return
	}
	snapshot.timer.Stop()

	for channelID, prev := range snapshot.channels {
		var err error
		if prev.hasPerm {
			err = b.session.ChannelPermissionSet(channelID, guildID,
				discordgo.PermissionOverwriteTypeRole, prev.allow, prev.deny)
		} else {
			err = b.session.ChannelPermissionDelete(channelID, guildID)
		}
		if err != nil {
			b.logger.Warn("lockdown restore failed",
				zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	b.logger.Info("lockdown lifted", zap.String("guild_id", guildID))
}

// mirrorCase posts the case embed to the guild's modlog channel and
// remembers the message id. Mirror failure never blocks the ledger.
func (b *Bot) mirrorCase(ctx context.Context, record storage.CaseRecord) {
	channelID, err := b.store.GetModlogChannel(ctx, record.GuildID)
	if err != nil {
		b.logger.Warn("modlog channel lookup failed", zap.Error(err))
		return
	}
	if channelID == "" {
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Target", Value: fmt.Sprintf("<@%s>", record.TargetID), Inline: true},
		{Name: "Moderator", Value: fmt.Sprintf("<@%s>", record.ModeratorID), Inline: true},
	}
	if record.Reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: record.Reason})
	}
	if record.Duration > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Duration", Value: utils.FormatDuration(record.Duration), Inline: true,
		})
	}

	embed := b.commandEmbed(
		fmt.Sprintf("Case #%d | %s", record.CaseID, titleKind(record.Kind)),
		"", b.cfg.Notifications.EmbedColors.Action, fields)
	embed.Timestamp = record.CreatedAt.Format(time.RFC3339)

	message, err := b.session.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		b.logger.Warn("modlog mirror failed",
			zap.String("guild_id", record.GuildID),
			zap.Int64("case_id", record.CaseID), zap.Error(err))
		return
	}
	if err := b.store.SetCaseLogMessage(ctx, record.GuildID, record.CaseID, message.ID); err != nil {
		b.logger.Warn("modlog message id save failed", zap.Error(err))
	}
}

func (b *Bot) handleAutomod(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Automod", "You need Manage Server for this.")
		return
	}

	data := interaction.ApplicationCommandData()
	sub := data.Options[0]
	opts := optionMap(sub.Options)
	guildID := interaction.GuildID
	defaults := storage.DefaultAutomodSettings()

	switch sub.Name {
	case "show":
		settings, err := b.automodSettings(ctx, guildID)
		if err != nil {
			b.respondError(session, interaction, "Automod", "Could not load settings.")
			return
		}
		domains, _ := b.store.ListAllowedDomains(ctx, guildID)
		fields := []*discordgo.MessageEmbedField{
			{Name: "Enabled", Value: fmt.Sprintf("%t", settings.Enabled), Inline: true},
			{Name: "Joins", Value: fmt.Sprintf("%d in %ds, response %s", settings.JoinThreshold, settings.JoinWindowSeconds, settings.JoinResponse), Inline: true},
			{Name: "Mentions", Value: fmt.Sprintf("%d in %ds", settings.MentionThreshold, settings.MentionWindowSeconds), Inline: true},
			{Name: "Channel churn", Value: fmt.Sprintf("%d", settings.ChurnThreshold), Inline: true},
			{Name: "Webhook updates", Value: fmt.Sprintf("%d", settings.WebhookThreshold), Inline: true},
			{Name: "Cooldown", Value: fmt.Sprintf("%ds", settings.CooldownSeconds), Inline: true},
			{Name: "Link filter", Value: fmt.Sprintf("%t", settings.LinkFilterEnabled), Inline: true},
			{Name: "Block invites", Value: fmt.Sprintf("%t", settings.BlockInvites), Inline: true},
			{Name: "Whitelisted domains", Value: fmt.Sprintf("%d", len(domains)), Inline: true},
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Automod settings", "", b.cfg.Notifications.EmbedColors.Action, fields), true)
	case "enable", "disable":
		enabled := sub.Name == "enable"
		_, err := b.store.PatchAutomodSettings(ctx, guildID, defaults, func(s *storage.AutomodSettings) {
			s.Enabled = enabled
		})
		if err != nil {
			b.respondError(session, interaction, "Automod", "Could not save settings.")
			return
		}
		b.respondSuccess(session, interaction, "Automod", fmt.Sprintf("Automod is now %sd.", sub.Name), nil)
	case "set":
		_, err := b.store.PatchAutomodSettings(ctx, guildID, defaults, func(s *storage.AutomodSettings) {
			if opt, ok := opts["joins"]; ok {
				s.JoinThreshold = int(opt.IntValue())
			}
			if opt, ok := opts["join_window"]; ok {
				s.JoinWindowSeconds = int(opt.IntValue())
			}
			if opt, ok := opts["mentions"]; ok {
				s.MentionThreshold = int(opt.IntValue())
			}
			if opt, ok := opts["mention_window"]; ok {
				s.MentionWindowSeconds = int(opt.IntValue())
			}
			if opt, ok := opts["churn"]; ok {
				s.ChurnThreshold = int(opt.IntValue())
			}
			if opt, ok := opts["webhooks"]; ok {
				s.WebhookThreshold = int(opt.IntValue())
			}
			if opt, ok := opts["cooldown"]; ok {
				s.CooldownSeconds = int(opt.IntValue())
			}
			if opt, ok := opts["response"]; ok {
				s.JoinResponse = opt.StringValue()
			}
		})
		if err != nil {
			b.respondError(session, interaction, "Automod", "Could not save settings.")
			return
		}
		b.respondSuccess(session, interaction, "Automod", "Settings updated.", nil)
	case "links":
		_, err := b.store.PatchAutomodSettings(ctx, guildID, defaults, func(s *storage.AutomodSettings) {
			if opt, ok := opts["filter"]; ok {
				s.LinkFilterEnabled = opt.BoolValue()
			}
			if opt, ok := opts["invites"]; ok {
				s.BlockInvites = opt.BoolValue()
			}
		})
		if err != nil {
			b.respondError(session, interaction, "Automod", "Could not save settings.")
			return
		}
		b.respondSuccess(session, interaction, "Automod", "Link filter updated.", nil)
	case "allow":
		domain, err := utils.NormalizeDomain(opts["domain"].StringValue())
		if err != nil {
			b.respondError(session, interaction, "Automod", "That does not look like a domain.")
			return
		}
		if err := b.store.AddAllowedDomain(ctx, guildID, domain); err != nil {
			b.respondError(session, interaction, "Automod", "Could not save the domain.")
			return
		}
		b.respondSuccess(session, interaction, "Automod", fmt.Sprintf("`%s` is now whitelisted.", domain), nil)
	case "unallow":
		domain, err := utils.NormalizeDomain(opts["domain"].StringValue())
		if err != nil {
			b.respondError(session, interaction, "Automod", "That does not look like a domain.")
			return
		}
		if err := b.store.RemoveAllowedDomain(ctx, guildID, domain); err != nil {
			b.respondError(session, interaction, "Automod", "Could not remove the domain.")
			return
		}
		b.respondSuccess(session, interaction, "Automod", fmt.Sprintf("`%s` removed from the whitelist.", domain), nil)
	case "domains":
		domains, err := b.store.ListAllowedDomains(ctx, guildID)
		if err != nil {
			b.respondError(session, interaction, "Automod", "Could not load the whitelist.")
			return
		}
		if len(domains) == 0 {
			b.respondSuccess(session, interaction, "Whitelisted domains", "No domains whitelisted. The link filter blocks every link while enabled.", nil)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Whitelisted domains",
			"`"+strings.Join(domains, "`\n`")+"`", b.cfg.Notifications.EmbedColors.Action, nil), true)
	}
}

func titleKind(kind string) string {
	if kind == "" {
		return kind
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

func (b *Bot) handleModlog(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Modlog", "You need Manage Server for this.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)
	if opt, ok := opts["channel"]; ok {
		channel := opt.ChannelValue(session)
		if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
			b.respondError(session, interaction, "Modlog", "Pick a text channel.")
			return
		}
		if err := b.store.SetModlogChannel(ctx, interaction.GuildID, channel.ID); err != nil {
			b.respondError(session, interaction, "Modlog", "Could not save the channel.")
			return
		}
		b.respondSuccess(session, interaction, "Modlog", fmt.Sprintf("Case logs now go to <#%s>.", channel.ID), nil)
		return
	}

	channelID, err := b.store.GetModlogChannel(ctx, interaction.GuildID)
	if err != nil {
		b.respondError(session, interaction, "Modlog", "Could not load the channel.")
		return
	}
	if channelID == "" {
		b.respondSuccess(session, interaction, "Modlog", "No log channel configured.", nil)
		return
	}
	b.respondSuccess(session, interaction, "Modlog", fmt.Sprintf("Case logs go to <#%s>.", channelID), nil)
}
