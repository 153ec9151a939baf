package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const componentTicketOpen = "ticket_open"

func (b *Bot) handleTicket(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	sub := interaction.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "setup":
		b.handleTicketSetup(ctx, session, interaction, opts)
	case "panel":
		b.handleTicketPanel(ctx, session, interaction, opts)
	case "open":
		topic := ""
		if opt, ok := opts["topic"]; ok {
			topic = opt.StringValue()
		}
		b.openTicket(ctx, session, interaction, topic)
	case "claim":
		b.handleTicketClaim(ctx, session, interaction)
	case "close":
		b.handleTicketClose(ctx, session, interaction)
	case "transcript":
		b.handleTicketTranscript(ctx, session, interaction)
	case "rate":
		b.handleTicketRate(ctx, session, interaction, opts)
	}
}

func (b *Bot) handleTicketSetup(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Tickets", "You need Manage Server for this.")
		return
	}
	_, err := b.store.PatchTicketSettings(ctx, interaction.GuildID, storage.DefaultTicketSettings(), func(s *storage.TicketSettings) {
		if opt, ok := opts["category"]; ok {
			s.CategoryID = opt.ChannelValue(session).ID
		}
		if opt, ok := opts["staff_role"]; ok {
			s.StaffRoleID = opt.RoleValue(session, interaction.GuildID).ID
		}
		if opt, ok := opts["max_open"]; ok {
			s.MaxOpenPerUser = int(opt.IntValue())
		}
	})
	if err != nil {
		b.respondError(session, interaction, "Tickets", "Could not save the settings.")
		return
	}
	b.respondSuccess(session, interaction, "Tickets", "Ticket settings saved.", nil)
}

func (b *Bot) handleTicketPanel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Tickets", "You need Manage Server for this.")
		return
	}
	channel := opts["channel"].ChannelValue(session)
	if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
		b.respondError(session, interaction, "Tickets", "Pick a text channel.")
		return
	}

	message, err := session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Need help?",
			Description: "Press the button below to open a private ticket with the staff team.",
			Color:       b.cfg.Notifications.EmbedColors.Action,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Open a ticket", Style: discordgo.PrimaryButton, CustomID: componentTicketOpen, Emoji: &discordgo.ComponentEmoji{Name: "🎫"}},
				},
			},
		},
	})
	if err != nil {
		b.respondError(session, interaction, "Tickets", "Could not post the panel.")
		return
	}

	_, err = b.store.PatchTicketSettings(ctx, interaction.GuildID, storage.DefaultTicketSettings(), func(s *storage.TicketSettings) {
		s.PanelChannelID = channel.ID
		s.PanelMessageID = message.ID
	})
	if err != nil {
		b.respondError(session, interaction, "Tickets", "Posted the panel but could not save it.")
		return
	}
	b.respondSuccess(session, interaction, "Tickets", fmt.Sprintf("Panel posted in <#%s>.", channel.ID), nil)
}

// openTicket creates the ticket row first, then the channel. The
// per-user cap is checked before anything is created, so a capped
// user gets a refusal and no channel.
func (b *Bot) openTicket(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, topic string) {
	guildID := interaction.GuildID
	openerID := b.actorID(interaction)

	settings, err := b.store.GetTicketSettings(ctx, guildID, storage.DefaultTicketSettings())
	if err != nil {
		b.respondError(session, interaction, "Tickets", "Could not load ticket settings.")
		return
	}

	open, err := b.store.CountOpenTickets(ctx, guildID, openerID)
	if err != nil {
		b.respondError(session, interaction, "Tickets", "Could not check your open tickets.")
		return
	}
	if open >= settings.MaxOpenPerUser {
		b.respondError(session, interaction, "Tickets", "You already have an open ticket. Close it before opening another.")
		return
	}

	ticketID, err := b.store.CreateTicket(ctx, guildID, openerID, topic)
	if err != nil {
		b.respondError(session, interaction, "Tickets", "Could not create the ticket.")
		return
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: openerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages},
		{ID: session.State.User.ID, Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages},
	}
	if settings.StaffRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: settings.StaffRoleID, Type: discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		})
	}

	channel, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 fmt.Sprintf("ticket-%d", ticketID),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             settings.CategoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		// leave the row open so staff can see the failed attempt
		b.logger.Error("ticket channel create failed",
			zap.Int64("ticket_id", ticketID), zap.Error(err))
		b.respondError(session, interaction, "Tickets", "Could not create the ticket channel.")
		return
	}
	if err := b.store.SetTicketChannel(ctx, ticketID, channel.ID); err != nil {
		b.logger.Error("ticket channel save failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
	}

	greeting := fmt.Sprintf("<@%s> your ticket is open. Staff will be with you shortly.", openerID)
	if topic != "" {
		greeting += "\n**Topic:** " + topic
	}
	_, _ = session.ChannelMessageSend(channel.ID, greeting)

	b.respondSuccess(session, interaction, "Tickets", fmt.Sprintf("Your ticket is ready: <#%s>", channel.ID), nil)
}

func (b *Bot) handleTicketClaim(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ticket, err := b.store.GetTicketByChannel(ctx, interaction.ChannelID)
	if err != nil {
		b.respondError(session, interaction, "Tickets", "This is not a ticket channel.")
		return
	}
	claimantID := b.actorID(interaction)
	if err := b.store.ClaimTicket(ctx, ticket.ID, claimantID); err != nil {
		if errors.Is(err, storage.ErrTicketClaimed) {
			b.respondError(session, interaction, "Tickets", "This ticket is already claimed.")
			return
		}
		b.respondError(session, interaction, "Tickets", "Could not claim the ticket.")
		return
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Ticket claimed",
		fmt.Sprintf("<@%s> is handling this ticket.", claimantID),
		b.cfg.Notifications.EmbedColors.Success, nil), false)
}

func (b *Bot) handleTicketClose(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ticket, err := b.store.GetTicketByChannel(ctx, interaction.ChannelID)
	if err != nil {
		b.respondError(session, interaction, "Tickets", "This is not a ticket channel.")
		return
	}
	closed, err := b.store.CloseTicket(ctx, ticket.ID)
	if err != nil {
		b.respondError(session, interaction, "Tickets", "Could not close the ticket.")
		return
	}
	if !closed {
		b.respondError(session, interaction, "Tickets", "This ticket is already closed.")
		return
	}

	b.captureTranscript(ctx, session, ticket)

	b.respondSuccess(session, interaction, "Tickets",
		fmt.Sprintf("Ticket #%d closed. You can `/ticket rate` it. The channel disappears in a moment.", ticket.ID), nil)

	time.AfterFunc(10*time.Second, func() {
		if _, err := session.ChannelDelete(ticket.ChannelID); err != nil {
			b.logger.Warn("ticket channel delete failed",
				zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	})
}

func (b *Bot) handleTicketTranscript(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ticket, err := b.store.GetTicketByChannel(ctx, interaction.ChannelID)
	if err != nil {
		b.respondError(session, interaction, "Tickets", "This is not a ticket channel.")
		return
	}
	b.captureTranscript(ctx, session, ticket)
	b.respondSuccess(session, interaction, "Tickets", "Transcript captured.", nil)
}

func (b *Bot) handleTicketRate(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	rating := int(opts["rating"].IntValue())
	comment := ""
	if opt, ok := opts["comment"]; ok {
		comment = opt.StringValue()
	}
	raterID := b.actorID(interaction)

	ticket, err := b.store.LastClosedTicket(ctx, interaction.GuildID, raterID)
	if err != nil {
		b.respondError(session, interaction, "Tickets", "You have no closed ticket to rate.")
		return
	}

	err = b.store.SaveTicketFeedback(ctx, storage.TicketFeedback{
		TicketID: ticket.ID,
		RaterID:  raterID,
		Rating:   rating,
		Comment:  comment,
	})
	if err != nil {
		b.respondError(session, interaction, "Tickets", "Could not save your rating.")
		return
	}
	b.respondSuccess(session, interaction, "Tickets",
		fmt.Sprintf("Thanks! You rated ticket #%d %d/5.", ticket.ID, rating), nil)
}

// captureTranscript flattens the channel history oldest-first into the
// transcript row. Best effort.
func (b *Bot) captureTranscript(ctx context.Context, session *discordgo.Session, ticket storage.Ticket) {
	messages, err := session.ChannelMessages(ticket.ChannelID, 100, "", "", "")
	if err != nil {
		b.logger.Warn("transcript fetch failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return
	}

	var lines []string
	for i := len(messages) - 1; i >= 0; i-- {
		message := messages[i]
		author := "unknown"
		if message.Author != nil {
			author = message.Author.Username
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			message.Timestamp.Format(time.RFC3339), author, message.Content))
	}

	if err := b.store.SaveTicketTranscript(ctx, ticket.ID, strings.Join(lines, "\n")); err != nil {
		b.logger.Warn("transcript save failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
}
