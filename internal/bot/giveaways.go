package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warden/internal/giveaway"
	"warden/internal/storage"
	"warden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	componentGiveawayJoin  = "giveaway_join"
	componentGiveawayLeave = "giveaway_leave"
)

func giveawayButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Enter", Style: discordgo.PrimaryButton, CustomID: componentGiveawayJoin, Emoji: &discordgo.ComponentEmoji{Name: "🎉"}},
				discordgo.Button{Label: "Leave", Style: discordgo.SecondaryButton, CustomID: componentGiveawayLeave},
			},
		},
	}
}

func (b *Bot) giveawayEmbed(g storage.Giveaway, entries int) *discordgo.MessageEmbed {
	description := fmt.Sprintf("Ends <t:%d:R>\nWinners: **%d**\nEntries: **%d**\nHosted by <@%s>",
		g.EndAt.Unix(), g.WinnerCount, entries, g.HostID)
	if rules := describeRules(g); rules != "" {
		description += "\n\n**Entry rules**\n" + rules
	}
	return &discordgo.MessageEmbed{
		Title:       "🎉 " + g.Prize,
		Description: description,
		Color:       b.cfg.Notifications.EmbedColors.Action,
	}
}

func describeRules(g storage.Giveaway) string {
	var lines []string
	if len(g.RequiredRoles) > 0 {
		lines = append(lines, "Requires one of: <@&"+strings.Join(g.RequiredRoles, ">, <@&")+">")
	}
	if len(g.ForbiddenRoles) > 0 {
		lines = append(lines, "Excluded roles: <@&"+strings.Join(g.ForbiddenRoles, ">, <@&")+">")
	}
	if g.MinAccountAgeDays > 0 {
		lines = append(lines, fmt.Sprintf("Account older than %d day(s)", g.MinAccountAgeDays))
	}
	if g.MinVouches > 0 {
		lines = append(lines, fmt.Sprintf("At least %d vouch(es)", g.MinVouches))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) handleGiveawayCreate(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Giveaway", "You need Manage Server for this.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)

	duration, err := utils.ParseDuration(opts["duration"].StringValue())
	if err != nil {
		b.respondError(session, interaction, "Giveaway", "Bad duration. Use forms like `1d`, `2h30m` or `45m`.")
		return
	}
	winners := 1
	if opt, ok := opts["winners"]; ok {
		winners = int(opt.IntValue())
	}
	if winners > b.cfg.Giveaways.MaxWinners {
		winners = b.cfg.Giveaways.MaxWinners
	}

	channelID := interaction.ChannelID
	if opt, ok := opts["channel"]; ok {
		channel := opt.ChannelValue(session)
		if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
			b.respondError(session, interaction, "Giveaway", "Pick a text channel.")
			return
		}
		channelID = channel.ID
	}

	g := storage.Giveaway{
		GuildID:     interaction.GuildID,
		ChannelID:   channelID,
		Prize:       opts["prize"].StringValue(),
		HostID:      b.actorID(interaction),
		WinnerCount: winners,
		EndAt:       time.Now().Add(duration),
		Status:      storage.GiveawayRunning,
	}
	if opt, ok := opts["required_role"]; ok {
		g.RequiredRoles = []string{opt.RoleValue(session, interaction.GuildID).ID}
	}
	if opt, ok := opts["forbidden_role"]; ok {
		g.ForbiddenRoles = []string{opt.RoleValue(session, interaction.GuildID).ID}
	}
	if opt, ok := opts["min_age_days"]; ok {
		g.MinAccountAgeDays = int(opt.IntValue())
	}
	if opt, ok := opts["min_vouches"]; ok {
		g.MinVouches = int(opt.IntValue())
	}

	message, err := session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{b.giveawayEmbed(g, 0)},
		Components: giveawayButtons(),
	})
	if err != nil {
		b.respondError(session, interaction, "Giveaway", "Could not post the giveaway message.")
		return
	}
	g.MessageID = message.ID

	if err := b.store.CreateGiveaway(ctx, g); err != nil {
		_ = session.ChannelMessageDelete(channelID, message.ID)
		b.respondError(session, interaction, "Giveaway", "Could not save the giveaway.")
		return
	}

	b.respondSuccess(session, interaction, "Giveaway",
		fmt.Sprintf("Giveaway for **%s** is live in <#%s>, ending in %s.", g.Prize, channelID, utils.FormatDuration(duration)), nil)
}

func (b *Bot) handleGiveawayEnd(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Giveaway", "You need Manage Server for this.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)
	messageID := opts["message_id"].StringValue()

	result, ok, err := b.giveaways.Finalize(ctx, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrGiveawayNotFound) {
			b.respondError(session, interaction, "Giveaway", "No giveaway with that message id.")
			return
		}
		b.respondError(session, interaction, "Giveaway", "Could not end the giveaway.")
		return
	}
	if !ok {
		b.respondError(session, interaction, "Giveaway", "That giveaway already ended.")
		return
	}
	if result.Cancelled {
		b.respondSuccess(session, interaction, "Giveaway", "The announcement message is gone, so the giveaway was cancelled.", nil)
		return
	}
	if len(result.Winners) == 0 {
		b.respondSuccess(session, interaction, "Giveaway", "Ended with no eligible entrants.", nil)
		return
	}
	b.respondSuccess(session, interaction, "Giveaway",
		fmt.Sprintf("Ended. Winner(s): %s", mentionList(result.Winners)), nil)
}

func (b *Bot) handleGiveawayCancel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Giveaway", "You need Manage Server for this.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)
	messageID := opts["message_id"].StringValue()

	ok, err := b.giveaways.Cancel(ctx, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrGiveawayNotFound) {
			b.respondError(session, interaction, "Giveaway", "No giveaway with that message id.")
			return
		}
		b.respondError(session, interaction, "Giveaway", "Could not cancel the giveaway.")
		return
	}
	if !ok {
		b.respondError(session, interaction, "Giveaway", "Only a running giveaway can be cancelled.")
		return
	}
	b.respondSuccess(session, interaction, "Giveaway", "Cancelled. No winners will be drawn.", nil)
}

func (b *Bot) handleGiveawayReroll(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Giveaway", "You need Manage Server for this.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)
	messageID := opts["message_id"].StringValue()
	count := 1
	if opt, ok := opts["count"]; ok {
		count = int(opt.IntValue())
	}

	winners, err := b.giveaways.Reroll(ctx, messageID, count)
	if err != nil {
		if errors.Is(err, storage.ErrGiveawayNotFound) {
			b.respondError(session, interaction, "Giveaway", "No giveaway with that message id.")
			return
		}
		if errors.Is(err, giveaway.ErrNotEnded) {
			b.respondError(session, interaction, "Giveaway", "Only an ended giveaway can be rerolled.")
			return
		}
		b.logger.Error("giveaway reroll failed", zap.String("message_id", messageID), zap.Error(err))
		b.respondError(session, interaction, "Giveaway", "Could not reroll the giveaway.")
		return
	}
	if len(winners) == 0 {
		b.respondSuccess(session, interaction, "Giveaway", "No eligible entrants left to draw from.", nil)
		return
	}

	g, err := b.store.GetGiveaway(ctx, messageID)
	if err == nil {
		_, _ = session.ChannelMessageSend(g.ChannelID,
			fmt.Sprintf("🎉 Reroll for **%s**: congratulations %s!", g.Prize, mentionList(winners)))
	}
	b.respondSuccess(session, interaction, "Giveaway",
		fmt.Sprintf("New winner(s): %s", mentionList(winners)), nil)
}

func (b *Bot) handleGiveawayRules(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Giveaway", "You need Manage Server for this.")
		return
	}
	sub := interaction.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)
	messageID := opts["message_id"].StringValue()

	g, err := b.store.GetGiveaway(ctx, messageID)
	if err != nil {
		b.respondError(session, interaction, "Giveaway", "No giveaway with that message id.")
		return
	}

	switch sub.Name {
	case "show":
		rules := describeRules(g)
		if rules == "" {
			rules = "No entry rules. Everyone in the server can enter."
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Entry rules for "+g.Prize, rules, b.cfg.Notifications.EmbedColors.Action, nil), true)
		return
	case "set":
		if opt, ok := opts["required_role"]; ok {
			g.RequiredRoles = []string{opt.RoleValue(session, interaction.GuildID).ID}
		}
		if opt, ok := opts["forbidden_role"]; ok {
			g.ForbiddenRoles = []string{opt.RoleValue(session, interaction.GuildID).ID}
		}
		if opt, ok := opts["min_age_days"]; ok {
			g.MinAccountAgeDays = int(opt.IntValue())
		}
		if opt, ok := opts["min_vouches"]; ok {
			g.MinVouches = int(opt.IntValue())
		}
	case "clear":
		g.RequiredRoles = nil
		g.ForbiddenRoles = nil
		g.MinAccountAgeDays = 0
		g.MinVouches = 0
	}

	if err := b.store.UpdateGiveawayRules(ctx, messageID, g.RequiredRoles, g.ForbiddenRoles, g.MinAccountAgeDays, g.MinVouches); err != nil {
		b.respondError(session, interaction, "Giveaway", "Could not save the rules.")
		return
	}
	b.refreshGiveawayMessage(ctx, g)
	b.respondSuccess(session, interaction, "Giveaway", "Entry rules updated. They apply to future joins and to the draw.", nil)
}

func (b *Bot) handleGiveawayList(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	opts := optionMap(interaction.ApplicationCommandData().Options)
	status := storage.GiveawayRunning
	if opt, ok := opts["status"]; ok {
		status = opt.StringValue()
	}

	giveaways, err := b.store.ListGuildGiveaways(ctx, interaction.GuildID, status)
	if err != nil {
		b.respondError(session, interaction, "Giveaways", "Could not list giveaways.")
		return
	}
	if len(giveaways) == 0 {
		b.respondSuccess(session, interaction, "Giveaways", fmt.Sprintf("No %s giveaways.", status), nil)
		return
	}

	var lines []string
	for _, g := range giveaways {
		lines = append(lines, fmt.Sprintf("`%s` **%s** in <#%s>, %d winner(s), ends <t:%d:R>",
			g.MessageID, g.Prize, g.ChannelID, g.WinnerCount, g.EndAt.Unix()))
	}
	b.respondEmbed(session, interaction, b.commandEmbed(
		titleKind(status)+" giveaways", strings.Join(lines, "\n"),
		b.cfg.Notifications.EmbedColors.Action, nil), true)
}

func (b *Bot) handleGiveawayButton(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	messageID := interaction.Message.ID
	userID := b.actorID(interaction)
	customID := interaction.MessageComponentData().CustomID

	switch customID {
	case componentGiveawayJoin:
		reason, err := b.giveaways.Join(ctx, messageID, userID)
		if err != nil {
			b.respondError(session, interaction, "Giveaway", "Something went wrong, try again.")
			return
		}
		if reason != "" {
			b.respondError(session, interaction, "Giveaway", "You cannot enter: "+reason+".")
			return
		}
		b.respondSuccess(session, interaction, "Giveaway", "You are in. Good luck! 🎉", nil)
	case componentGiveawayLeave:
		removed, err := b.giveaways.Leave(ctx, messageID, userID)
		if err != nil {
			b.respondError(session, interaction, "Giveaway", "Something went wrong, try again.")
			return
		}
		if !removed {
			b.respondError(session, interaction, "Giveaway", "You were not entered.")
			return
		}
		b.respondSuccess(session, interaction, "Giveaway", "Your entry was withdrawn.", nil)
	default:
		return
	}

	if g, err := b.store.GetGiveaway(ctx, messageID); err == nil {
		b.refreshGiveawayMessage(ctx, g)
	}
}

func (b *Bot) refreshGiveawayMessage(ctx context.Context, g storage.Giveaway) {
	if g.Status != storage.GiveawayRunning {
		return
	}
	entries, err := b.store.CountGiveawayEntries(ctx, g.MessageID)
	if err != nil {
		return
	}
	embed := b.giveawayEmbed(g, entries)
	components := giveawayButtons()
	_, _ = b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         g.MessageID,
		Channel:    g.ChannelID,
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &components,
	})
}

// GiveawayEnded rewrites the announcement with the outcome and pings
// the winners. A missing message, channel or guild comes back as
// giveaway.ErrAnnouncementGone so the engine can cancel.
func (b *Bot) GiveawayEnded(ctx context.Context, g storage.Giveaway, winners []string) error {
	_ = ctx
	description := "This giveaway has ended."
	if len(winners) > 0 {
		description = "Winner(s): " + mentionList(winners)
	} else {
		description += " No eligible entrants."
	}
	embed := &discordgo.MessageEmbed{
		Title:       "🎉 " + g.Prize,
		Description: description,
		Color:       b.cfg.Notifications.EmbedColors.Success,
	}
	components := []discordgo.MessageComponent{}
	_, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         g.MessageID,
		Channel:    g.ChannelID,
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &components,
	})
	if err != nil {
		if isUnknownEntity(err) {
			return giveaway.ErrAnnouncementGone
		}
		return err
	}

	if len(winners) > 0 {
		_, _ = b.session.ChannelMessageSend(g.ChannelID,
			fmt.Sprintf("🎉 **%s** — congratulations %s!", g.Prize, mentionList(winners)))
	}
	return nil
}

// GiveawayCancelled marks the announcement as cancelled.
func (b *Bot) GiveawayCancelled(ctx context.Context, g storage.Giveaway) error {
	_ = ctx
	embed := &discordgo.MessageEmbed{
		Title:       "🎉 " + g.Prize,
		Description: "This giveaway was cancelled.",
		Color:       b.cfg.Notifications.EmbedColors.Error,
	}
	components := []discordgo.MessageComponent{}
	_, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         g.MessageID,
		Channel:    g.ChannelID,
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &components,
	})
	if err != nil {
		if isUnknownEntity(err) {
			return giveaway.ErrAnnouncementGone
		}
		return err
	}
	return nil
}

func mentionList(userIDs []string) string {
	mentions := make([]string, len(userIDs))
	for i, id := range userIDs {
		mentions[i] = "<@" + id + ">"
	}
	return strings.Join(mentions, ", ")
}
