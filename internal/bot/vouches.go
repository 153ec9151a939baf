package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const vouchCooldown = 24 * time.Hour

func (b *Bot) handleVouch(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	opts := optionMap(interaction.ApplicationCommandData().Options)
	target := opts["user"].UserValue(session)
	voucherID := b.actorID(interaction)

	if target.ID == voucherID {
		b.respondError(session, interaction, "Vouch", "You cannot vouch for yourself.")
		return
	}
	if target.Bot {
		b.respondError(session, interaction, "Vouch", "Bots do not need vouches.")
		return
	}

	last, err := b.store.LastVouchAt(ctx, interaction.GuildID, voucherID, target.ID)
	if err != nil {
		b.respondError(session, interaction, "Vouch", "Could not check your last vouch.")
		return
	}
	if !last.IsZero() && time.Since(last) < vouchCooldown {
		remaining := vouchCooldown - time.Since(last)
		b.respondError(session, interaction, "Vouch",
			fmt.Sprintf("You already vouched for them recently. Try again in %s.", remaining.Round(time.Minute)))
		return
	}

	vouch := storage.Vouch{
		GuildID:   interaction.GuildID,
		VoucherID: voucherID,
		TargetID:  target.ID,
		Rating:    int(opts["rating"].IntValue()),
	}
	if opt, ok := opts["comment"]; ok {
		vouch.Message = opt.StringValue()
	}
	if err := b.store.AddVouch(ctx, vouch); err != nil {
		b.respondError(session, interaction, "Vouch", "Could not save the vouch.")
		return
	}

	count, err := b.store.CountVouches(ctx, interaction.GuildID, target.ID)
	if err != nil {
		count = 0
	}
	b.applyVouchRanks(ctx, interaction.GuildID, target.ID, count)
	b.refreshVouchBoard(ctx, interaction.GuildID)

	b.respondSuccess(session, interaction, "Vouch",
		fmt.Sprintf("You vouched for <@%s> (%d/5). They now have %d vouch(es).", target.ID, vouch.Rating, count), nil)
}

func (b *Bot) handleVouches(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	opts := optionMap(interaction.ApplicationCommandData().Options)
	target := opts["user"].UserValue(session)

	summary, err := b.store.VouchSummary(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respondError(session, interaction, "Vouches", "Could not load vouches.")
		return
	}
	if summary.Count == 0 {
		b.respondSuccess(session, interaction, "Vouches", fmt.Sprintf("<@%s> has no vouches yet.", target.ID), nil)
		return
	}

	recent, err := b.store.ListVouches(ctx, interaction.GuildID, target.ID, 5)
	if err != nil {
		b.respondError(session, interaction, "Vouches", "Could not load vouches.")
		return
	}
	var lines []string
	for _, vouch := range recent {
		line := fmt.Sprintf("<@%s> rated %d/5", vouch.VoucherID, vouch.Rating)
		if vouch.Message != "" {
			line += " — " + vouch.Message
		}
		lines = append(lines, line)
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Total", Value: fmt.Sprintf("%d", summary.Count), Inline: true},
		{Name: "Average rating", Value: fmt.Sprintf("%.1f/5", summary.Average), Inline: true},
		{Name: "Recent", Value: strings.Join(lines, "\n")},
	}
	b.respondEmbed(session, interaction, b.commandEmbed(
		fmt.Sprintf("Vouches for %s", target.Username), "",
		b.cfg.Notifications.EmbedColors.Action, fields), true)
}

func (b *Bot) handleTopVouches(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	opts := optionMap(interaction.ApplicationCommandData().Options)
	limit := 10
	if opt, ok := opts["limit"]; ok {
		limit = int(opt.IntValue())
		if limit > 25 {
			limit = 25
		}
	}

	leaders, err := b.store.TopVouched(ctx, interaction.GuildID, limit)
	if err != nil {
		b.respondError(session, interaction, "Top vouches", "Could not load the leaderboard.")
		return
	}
	if len(leaders) == 0 {
		b.respondSuccess(session, interaction, "Top vouches", "Nobody has been vouched for yet.", nil)
		return
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Top vouched members",
		formatLeaderboard(leaders), b.cfg.Notifications.EmbedColors.Action, nil), true)
}

func formatLeaderboard(leaders []storage.VouchLeader) string {
	var lines []string
	for i, leader := range leaders {
		lines = append(lines, fmt.Sprintf("**%d.** <@%s> — %d vouch(es)", i+1, leader.UserID, leader.Count))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) handleVouchboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Vouchboard", "You need Manage Server for this.")
		return
	}
	sub := interaction.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)
	defaults := storage.DefaultVouchSettings()

	switch sub.Name {
	case "set":
		channel := opts["channel"].ChannelValue(session)
		if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
			b.respondError(session, interaction, "Vouchboard", "Pick a text channel.")
			return
		}
		message, err := session.ChannelMessageSendEmbed(channel.ID, b.commandEmbed(
			"Top vouched members", "No vouches yet.", b.cfg.Notifications.EmbedColors.Action, nil))
		if err != nil {
			b.respondError(session, interaction, "Vouchboard", "Could not post the board.")
			return
		}
		_, err = b.store.PatchVouchSettings(ctx, interaction.GuildID, defaults, func(s *storage.VouchSettings) {
			s.BoardChannelID = channel.ID
			s.BoardMessageID = message.ID
		})
		if err != nil {
			b.respondError(session, interaction, "Vouchboard", "Posted the board but could not save it.")
			return
		}
		b.refreshVouchBoard(ctx, interaction.GuildID)
		b.respondSuccess(session, interaction, "Vouchboard", fmt.Sprintf("Board is live in <#%s>.", channel.ID), nil)
	case "remove":
		settings, err := b.store.GetVouchSettings(ctx, interaction.GuildID, defaults)
		if err == nil && settings.BoardChannelID != "" && settings.BoardMessageID != "" {
			_ = session.ChannelMessageDelete(settings.BoardChannelID, settings.BoardMessageID)
		}
		_, err = b.store.PatchVouchSettings(ctx, interaction.GuildID, defaults, func(s *storage.VouchSettings) {
			s.BoardChannelID = ""
			s.BoardMessageID = ""
		})
		if err != nil {
			b.respondError(session, interaction, "Vouchboard", "Could not remove the board.")
			return
		}
		b.respondSuccess(session, interaction, "Vouchboard", "Board removed.", nil)
	case "mode":
		mode := opts["value"].StringValue()
		_, err := b.store.PatchVouchSettings(ctx, interaction.GuildID, defaults, func(s *storage.VouchSettings) {
			s.RankMode = mode
		})
		if err != nil {
			b.respondError(session, interaction, "Vouchboard", "Could not save the mode.")
			return
		}
		b.respondSuccess(session, interaction, "Vouchboard", fmt.Sprintf("Rank mode is now `%s`.", mode), nil)
	}
}

// refreshVouchBoard rewrites the standing board message, if one is
// configured. Best effort.
func (b *Bot) refreshVouchBoard(ctx context.Context, guildID string) {
	settings, err := b.store.GetVouchSettings(ctx, guildID, storage.DefaultVouchSettings())
	if err != nil || settings.BoardChannelID == "" || settings.BoardMessageID == "" {
		return
	}
	leaders, err := b.store.TopVouched(ctx, guildID, 10)
	if err != nil {
		return
	}
	body := "No vouches yet."
	if len(leaders) > 0 {
		body = formatLeaderboard(leaders)
	}
	embed := b.commandEmbed("Top vouched members", body, b.cfg.Notifications.EmbedColors.Action, nil)
	if _, err := b.session.ChannelMessageEditEmbed(settings.BoardChannelID, settings.BoardMessageID, embed); err != nil {
		b.logger.Warn("vouch board refresh failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

// applyVouchRanks grants ladder roles the member's vouch count has
// reached. Mode highest keeps only the top earned role, mode stack
// keeps every earned role.
func (b *Bot) applyVouchRanks(ctx context.Context, guildID, userID string, count int) {
	ladder, err := b.store.ListRankLadder(ctx, guildID)
	if err != nil || len(ladder) == 0 {
		return
	}
	settings, err := b.store.GetVouchSettings(ctx, guildID, storage.DefaultVouchSettings())
	if err != nil {
		return
	}

	var earned []string
	for _, entry := range ladder {
		if count >= entry.Threshold {
			earned = append(earned, entry.RoleID)
		}
	}
	if len(earned) == 0 {
		return
	}

	keep := earned
	if settings.RankMode == storage.RankModeHighest {
		// ladder is threshold ascending, last earned entry is the top
		keep = earned[len(earned)-1:]
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, roleID := range keep {
		keepSet[roleID] = struct{}{}
	}

	for _, roleID := range keep {
		if err := b.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
			b.logger.Warn("rank role add failed",
				zap.String("role_id", roleID), zap.Error(err))
		}
	}
	// shed ladder roles outside the keep set
	member, err := b.session.GuildMember(guildID, userID)
	if err != nil {
		return
	}
	held := make(map[string]struct{}, len(member.Roles))
	for _, roleID := range member.Roles {
		held[roleID] = struct{}{}
	}
	for _, entry := range ladder {
		if _, ok := keepSet[entry.RoleID]; ok {
			continue
		}
		if _, ok := held[entry.RoleID]; !ok {
			continue
		}
		if err := b.session.GuildMemberRoleRemove(guildID, userID, entry.RoleID); err != nil {
			b.logger.Warn("rank role remove failed",
				zap.String("role_id", entry.RoleID), zap.Error(err))
		}
	}
}

func (b *Bot) handleRank(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageRoles) {
		b.respondError(session, interaction, "Ranks", "You need Manage Roles for this.")
		return
	}
	sub := interaction.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "set":
		role := opts["role"].RoleValue(session, interaction.GuildID)
		threshold := int(opts["threshold"].IntValue())
		if err := b.store.SetRankEntry(ctx, interaction.GuildID, role.ID, threshold); err != nil {
			b.respondError(session, interaction, "Ranks", "Could not save the ladder entry.")
			return
		}
		b.respondSuccess(session, interaction, "Ranks",
			fmt.Sprintf("<@&%s> is now awarded at %d vouch(es).", role.ID, threshold), nil)
	case "remove":
		role := opts["role"].RoleValue(session, interaction.GuildID)
		if err := b.store.RemoveRankEntry(ctx, interaction.GuildID, role.ID); err != nil {
			b.respondError(session, interaction, "Ranks", "Could not remove the ladder entry.")
			return
		}
		b.respondSuccess(session, interaction, "Ranks", fmt.Sprintf("<@&%s> removed from the ladder.", role.ID), nil)
	case "list":
		ladder, err := b.store.ListRankLadder(ctx, interaction.GuildID)
		if err != nil {
			b.respondError(session, interaction, "Ranks", "Could not load the ladder.")
			return
		}
		if len(ladder) == 0 {
			b.respondSuccess(session, interaction, "Ranks", "The ladder is empty.", nil)
			return
		}
		var lines []string
		for _, entry := range ladder {
			lines = append(lines, fmt.Sprintf("<@&%s> at %d vouch(es)", entry.RoleID, entry.Threshold))
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Vouch rank ladder",
			strings.Join(lines, "\n"), b.cfg.Notifications.EmbedColors.Action, nil), true)
	}
}

func (b *Bot) handleModrank(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageRoles) {
		b.respondError(session, interaction, "Staff ranks", "You need Manage Roles for this.")
		return
	}
	sub := interaction.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "set":
		role := opts["role"].RoleValue(session, interaction.GuildID)
		position := int(opts["position"].IntValue())
		if err := b.store.SetModRank(ctx, interaction.GuildID, role.ID, position); err != nil {
			b.respondError(session, interaction, "Staff ranks", "Could not save the ladder entry.")
			return
		}
		b.respondSuccess(session, interaction, "Staff ranks",
			fmt.Sprintf("<@&%s> is now ladder position %d.", role.ID, position), nil)
	case "remove":
		role := opts["role"].RoleValue(session, interaction.GuildID)
		if err := b.store.RemoveModRank(ctx, interaction.GuildID, role.ID); err != nil {
			b.respondError(session, interaction, "Staff ranks", "Could not remove the ladder entry.")
			return
		}
		b.respondSuccess(session, interaction, "Staff ranks", fmt.Sprintf("<@&%s> removed from the ladder.", role.ID), nil)
	case "list":
		ranks, err := b.store.ListModRanks(ctx, interaction.GuildID)
		if err != nil {
			b.respondError(session, interaction, "Staff ranks", "Could not load the ladder.")
			return
		}
		if len(ranks) == 0 {
			b.respondSuccess(session, interaction, "Staff ranks", "The ladder is empty.", nil)
			return
		}
		var lines []string
		for _, rank := range ranks {
			lines = append(lines, fmt.Sprintf("**%d.** <@&%s>", rank.Position, rank.RoleID))
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Staff rank ladder",
			strings.Join(lines, "\n"), b.cfg.Notifications.EmbedColors.Action, nil), true)
	case "promote", "demote":
		target := opts["user"].UserValue(session)
		b.moveModRank(ctx, session, interaction, target.ID, sub.Name == "promote")
	}
}

// moveModRank shifts the member one step along the staff ladder,
// swapping the held ladder role for the adjacent one.
func (b *Bot) moveModRank(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string, up bool) {
	ranks, err := b.store.ListModRanks(ctx, interaction.GuildID)
	if err != nil || len(ranks) == 0 {
		b.respondError(session, interaction, "Staff ranks", "The ladder is empty.")
		return
	}

	member, err := session.GuildMember(interaction.GuildID, userID)
	if err != nil {
		b.respondError(session, interaction, "Staff ranks", "Could not resolve that member.")
		return
	}
	held := make(map[string]struct{}, len(member.Roles))
	for _, roleID := range member.Roles {
		held[roleID] = struct{}{}
	}

	// highest held ladder position, or -1 when unranked
	current := -1
	for i, rank := range ranks {
		if _, ok := held[rank.RoleID]; ok {
			current = i
		}
	}

	next := current + 1
	if !up {
		next = current - 1
	}
	if next < 0 || next >= len(ranks) {
		b.respondError(session, interaction, "Staff ranks", "They are already at the end of the ladder.")
		return
	}

	if current >= 0 {
		if err := session.GuildMemberRoleRemove(interaction.GuildID, userID, ranks[current].RoleID); err != nil {
			b.respondError(session, interaction, "Staff ranks", "Could not remove their current rank role.")
			return
		}
	}
	if err := session.GuildMemberRoleAdd(interaction.GuildID, userID, ranks[next].RoleID); err != nil {
		b.respondError(session, interaction, "Staff ranks", "Could not grant the new rank role.")
		return
	}
	b.respondSuccess(session, interaction, "Staff ranks",
		fmt.Sprintf("<@%s> is now <@&%s>.", userID, ranks[next].RoleID), nil)
}
