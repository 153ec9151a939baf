package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warden/internal/storage"
	"warden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionBanMembers) {
		b.respondError(session, interaction, "Ban", "You need Ban Members for this.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)
	target := opts["user"].UserValue(session)
	reason := ""
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}
	deleteDays := 0
	if opt, ok := opts["delete_days"]; ok {
		deleteDays = int(opt.IntValue())
	}
	if deleteDays < 0 || deleteDays > 7 {
		deleteDays = 0
	}

	b.notifyTarget(interaction.GuildID, target.ID, "banned", reason, 0)

	if err := session.GuildBanCreateWithReason(interaction.GuildID, target.ID, reason, deleteDays); err != nil {
		b.respondError(session, interaction, "Ban", "Could not ban that member.")
		return
	}

	caseID := b.recordCommandCase(ctx, interaction, storage.CaseBan, target.ID, reason, 0, "")
	b.respondSuccess(session, interaction, "Ban",
		fmt.Sprintf("Banned <@%s> (case #%d).", target.ID, caseID), nil)
}

func (b *Bot) handleTimeout(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionModerateMembers) {
		b.respondError(session, interaction, "Timeout", "You need Timeout Members for this.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)
	target := opts["user"].UserValue(session)
	duration, err := utils.ParseDuration(opts["duration"].StringValue())
	if err != nil {
		b.respondError(session, interaction, "Timeout", "Bad duration. Use forms like `10m`, `2h30m` or `1d`.")
		return
	}
	if duration > 28*24*time.Hour {
		b.respondError(session, interaction, "Timeout", "Timeouts cap at 28 days.")
		return
	}
	reason := ""
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}

	until := time.Now().Add(duration)
	if err := session.GuildMemberTimeout(interaction.GuildID, target.ID, &until); err != nil {
		b.respondError(session, interaction, "Timeout", "Could not time that member out.")
		return
	}

	b.notifyTarget(interaction.GuildID, target.ID, "timed out", reason, duration)
	caseID := b.recordCommandCase(ctx, interaction, storage.CaseTimeout, target.ID, reason, duration, "")
	b.respondSuccess(session, interaction, "Timeout",
		fmt.Sprintf("Timed out <@%s> for %s (case #%d).", target.ID, utils.FormatDuration(duration), caseID), nil)
}

func (b *Bot) handleWarn(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionModerateMembers) {
		b.respondError(session, interaction, "Warn", "You need Timeout Members for this.")
		return
	}
	sub := interaction.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "add":
		target := opts["user"].UserValue(session)
		reason := opts["reason"].StringValue()
		b.notifyTarget(interaction.GuildID, target.ID, "warned", reason, 0)
		caseID := b.recordCommandCase(ctx, interaction, storage.CaseWarn, target.ID, reason, 0, "")
		warns, err := b.store.ListCases(ctx, interaction.GuildID, storage.CaseFilter{TargetID: target.ID, Kind: storage.CaseWarn})
		total := len(warns)
		if err != nil {
			total = 0
		}
		b.respondSuccess(session, interaction, "Warn",
			fmt.Sprintf("Warned <@%s> (case #%d). They now have %d warning(s).", target.ID, caseID, total), nil)
	case "list":
		target := opts["user"].UserValue(session)
		warns, err := b.store.ListCases(ctx, interaction.GuildID, storage.CaseFilter{TargetID: target.ID, Kind: storage.CaseWarn})
		if err != nil {
			b.respondError(session, interaction, "Warnings", "Could not load warnings.")
			return
		}
		if len(warns) == 0 {
			b.respondSuccess(session, interaction, "Warnings", fmt.Sprintf("<@%s> has no warnings.", target.ID), nil)
			return
		}
		var lines []string
		for _, warn := range warns {
			lines = append(lines, fmt.Sprintf("`#%d` %s — %s", warn.CaseID, warn.CreatedAt.Format("2006-01-02"), warn.Reason))
		}
		b.respondEmbed(session, interaction, b.commandEmbed(
			fmt.Sprintf("Warnings for %s", target.Username),
			strings.Join(lines, "\n"), b.cfg.Notifications.EmbedColors.Action, nil), true)
	case "remove":
		caseID := opts["case_id"].IntValue()
		record, err := b.store.GetCase(ctx, interaction.GuildID, caseID)
		if err != nil || record.Kind != storage.CaseWarn {
			b.respondError(session, interaction, "Warn", fmt.Sprintf("No warning with case id %d.", caseID))
			return
		}
		if err := b.store.DeleteCase(ctx, interaction.GuildID, caseID); err != nil {
			b.respondError(session, interaction, "Warn", "Could not remove the warning.")
			return
		}
		b.respondSuccess(session, interaction, "Warn", fmt.Sprintf("Removed warning #%d from <@%s>.", caseID, record.TargetID), nil)
	case "clear":
		target := opts["user"].UserValue(session)
		removed, err := b.store.DeleteCases(ctx, interaction.GuildID, target.ID, storage.CaseWarn)
		if err != nil {
			b.respondError(session, interaction, "Warn", "Could not clear warnings.")
			return
		}
		b.respondSuccess(session, interaction, "Warn",
			fmt.Sprintf("Cleared %d warning(s) from <@%s>.", removed, target.ID), nil)
	}
}

func (b *Bot) handlePurge(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageMessages) {
		b.respondError(session, interaction, "Purge", "You need Manage Messages for this.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)
	count := int(opts["count"].IntValue())
	if count > 100 {
		count = 100
	}
	var targetID string
	if opt, ok := opts["user"]; ok {
		targetID = opt.UserValue(session).ID
	}

	messages, err := session.ChannelMessages(interaction.ChannelID, 100, "", "", "")
	if err != nil {
		b.respondError(session, interaction, "Purge", "Could not read recent messages.")
		return
	}

	cutoff := time.Now().Add(-14 * 24 * time.Hour)
	var ids []string
	for _, message := range messages {
		if len(ids) >= count {
			break
		}
		if targetID != "" && (message.Author == nil || message.Author.ID != targetID) {
			continue
		}
		// bulk delete rejects messages older than two weeks
		if message.Timestamp.Before(cutoff) {
			continue
		}
		ids = append(ids, message.ID)
	}
	if len(ids) == 0 {
		b.respondSuccess(session, interaction, "Purge", "Nothing to delete.", nil)
		return
	}
	if err := session.ChannelMessagesBulkDelete(interaction.ChannelID, ids); err != nil {
		b.respondError(session, interaction, "Purge", "Bulk delete failed.")
		return
	}

	caseID := b.recordCommandCase(ctx, interaction, storage.CasePurge, targetID, fmt.Sprintf("purged %d messages", len(ids)), 0, interaction.ChannelID)
	b.respondSuccess(session, interaction, "Purge",
		fmt.Sprintf("Deleted %d message(s) (case #%d).", len(ids), caseID), nil)
}

func (b *Bot) handleCase(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	opts := optionMap(interaction.ApplicationCommandData().Options)
	caseID := opts["id"].IntValue()
	record, err := b.store.GetCase(ctx, interaction.GuildID, caseID)
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			b.respondError(session, interaction, "Case", fmt.Sprintf("No case with id %d.", caseID))
			return
		}
		b.respondError(session, interaction, "Case", "Could not load the case.")
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Action", Value: record.Kind, Inline: true},
		{Name: "Moderator", Value: fmt.Sprintf("<@%s>", record.ModeratorID), Inline: true},
	}
	if record.TargetID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Target", Value: fmt.Sprintf("<@%s>", record.TargetID), Inline: true})
	}
	if record.Reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: record.Reason})
	}
	if record.Duration > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: utils.FormatDuration(record.Duration), Inline: true})
	}
	embed := b.commandEmbed(fmt.Sprintf("Case #%d", record.CaseID), "", b.cfg.Notifications.EmbedColors.Action, fields)
	embed.Timestamp = record.CreatedAt.Format(time.RFC3339)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleHistory(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	opts := optionMap(interaction.ApplicationCommandData().Options)
	filter := storage.CaseFilter{Limit: 15}
	if opt, ok := opts["user"]; ok {
		filter.TargetID = opt.UserValue(session).ID
	}
	if opt, ok := opts["kind"]; ok {
		filter.Kind = opt.StringValue()
	}
	if opt, ok := opts["limit"]; ok {
		filter.Limit = int(opt.IntValue())
		if filter.Limit > 25 {
			filter.Limit = 25
		}
	}

	records, err := b.store.ListCases(ctx, interaction.GuildID, filter)
	if err != nil {
		b.respondError(session, interaction, "History", "Could not load cases.")
		return
	}
	if len(records) == 0 {
		b.respondSuccess(session, interaction, "History", "No matching cases.", nil)
		return
	}

	var lines []string
	for _, record := range records {
		line := fmt.Sprintf("`#%d` %s **%s**", record.CaseID, record.CreatedAt.Format("2006-01-02"), record.Kind)
		if record.TargetID != "" {
			line += fmt.Sprintf(" <@%s>", record.TargetID)
		}
		if record.Reason != "" {
			line += " — " + record.Reason
		}
		lines = append(lines, line)
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Moderation history",
		strings.Join(lines, "\n"), b.cfg.Notifications.EmbedColors.Action, nil), true)
}

func (b *Bot) handleModstats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	opts := optionMap(interaction.ApplicationCommandData().Options)
	period := opts["period"].StringValue()
	since := time.Now().AddDate(0, 0, -1)
	if period == "week" {
		since = time.Now().AddDate(0, 0, -7)
	}

	report, err := b.analytics.Report(ctx, interaction.GuildID, since)
	if err != nil {
		b.respondError(session, interaction, "Modstats", "Could not build the report.")
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Total actions", Value: fmt.Sprintf("%d", report.Total), Inline: true},
	}
	for _, kind := range []string{storage.CaseBan, storage.CaseKick, storage.CaseTimeout, storage.CaseWarn, storage.CasePurge} {
		if count, ok := report.ByKind[kind]; ok {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name: titleKind(kind), Value: fmt.Sprintf("%d", count), Inline: true,
			})
		}
	}
	b.respondEmbed(session, interaction, b.commandEmbed(
		fmt.Sprintf("Moderation activity, last %s", period),
		"", b.cfg.Notifications.EmbedColors.Action, fields), true)
}

// recordCommandCase writes the ledger row for a command-driven action.
// A ledger failure is logged but never fails the action the moderator
// already saw succeed.
func (b *Bot) recordCommandCase(ctx context.Context, interaction *discordgo.InteractionCreate, kind, targetID, reason string, duration time.Duration, metadata string) int64 {
	caseID, err := b.cases.Record(ctx, storage.CaseRecord{
		GuildID:     interaction.GuildID,
		Kind:        kind,
		TargetID:    targetID,
		ModeratorID: b.actorID(interaction),
		Reason:      reason,
		Duration:    duration,
		Metadata:    metadata,
	})
	if err != nil {
		b.logger.Error("case record failed",
			zap.String("guild_id", interaction.GuildID),
			zap.String("kind", kind), zap.Error(err))
		return 0
	}
	return caseID
}

// notifyTarget DMs the member about the action. Best effort: members
// with closed DMs just do not get one.
func (b *Bot) notifyTarget(guildID, userID, action, reason string, duration time.Duration) {
	if !b.cfg.Notifications.DMOnAction {
		return
	}
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return
	}
	guildName := guildID
	if guild, err := b.session.State.Guild(guildID); err == nil && guild.Name != "" {
		guildName = guild.Name
	}
	message := fmt.Sprintf("You were %s in **%s**.", action, guildName)
	if duration > 0 {
		message += " Duration: " + utils.FormatDuration(duration) + "."
	}
	if reason != "" {
		message += " Reason: " + reason
	}
	_, _ = b.session.ChannelMessageSend(channel.ID, message)
}
