package bot

import (
	"context"
	"fmt"
	"time"

	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const modalBroadcastEmbed = "broadcast_embed"

func (b *Bot) handleUpdates(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Updates", "You need Manage Server for this.")
		return
	}
	sub := interaction.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)

	settings, err := b.store.GetUpdatesSettings(ctx, interaction.GuildID)
	if err != nil {
		b.respondError(session, interaction, "Updates", "Could not load the settings.")
		return
	}

	switch sub.Name {
	case "show":
		if settings.ChannelID == "" {
			b.respondSuccess(session, interaction, "Updates", "No announcements channel configured.", nil)
			return
		}
		state := "enabled"
		if !settings.Enabled {
			state = "disabled"
		}
		b.respondSuccess(session, interaction, "Updates",
			fmt.Sprintf("Announcements go to <#%s> (%s).", settings.ChannelID, state), nil)
		return
	case "channel":
		channel := opts["channel"].ChannelValue(session)
		if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
			b.respondError(session, interaction, "Updates", "Pick a text channel.")
			return
		}
		settings.ChannelID = channel.ID
	case "enable":
		settings.Enabled = true
	case "disable":
		settings.Enabled = false
	}

	settings.GuildID = interaction.GuildID
	if err := b.store.UpsertUpdatesSettings(ctx, settings); err != nil {
		b.respondError(session, interaction, "Updates", "Could not save the settings.")
		return
	}
	b.respondSuccess(session, interaction, "Updates", "Settings saved.", nil)
}

func (b *Bot) handleBroadcast(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if b.actorID(interaction) != b.cfg.OwnerID {
		b.respondError(session, interaction, "Broadcast", "Only the bot owner can broadcast.")
		return
	}
	opts := optionMap(interaction.ApplicationCommandData().Options)
	message := opts["message"].StringValue()

	targets, err := b.store.ListBroadcastTargets(ctx)
	if err != nil {
		b.respondError(session, interaction, "Broadcast", "Could not load the target list.")
		return
	}
	if len(targets) == 0 {
		b.respondSuccess(session, interaction, "Broadcast", "No servers have opted in.", nil)
		return
	}

	b.respondSuccess(session, interaction, "Broadcast",
		fmt.Sprintf("Delivering to %d server(s).", len(targets)), nil)
	go b.fanOut(targets, func(target storage.UpdatesSettings) error {
		_, err := b.session.ChannelMessageSend(target.ChannelID, message)
		return err
	})
}

func (b *Bot) handleBroadcastEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if b.actorID(interaction) != b.cfg.OwnerID {
		b.respondError(session, interaction, "Broadcast", "Only the bot owner can broadcast.")
		return
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalBroadcastEmbed,
			Title:    "Broadcast embed",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "title", Label: "Title",
						Style: discordgo.TextInputShort, Required: true, MaxLength: 256,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "body", Label: "Body",
						Style: discordgo.TextInputParagraph, Required: true, MaxLength: 4000,
					},
				}},
			},
		},
	})
	if err != nil {
		b.logger.Warn("broadcast modal open failed", zap.Error(err))
	}
}

func (b *Bot) handleBroadcastEmbedSubmit(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if b.actorID(interaction) != b.cfg.OwnerID {
		b.respondError(session, interaction, "Broadcast", "Only the bot owner can broadcast.")
		return
	}
	data := interaction.ModalSubmitData()
	var title, body string
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			input, ok := component.(*discordgo.TextInput)
			if !ok {
				continue
			}
			switch input.CustomID {
			case "title":
				title = input.Value
			case "body":
				body = input.Value
			}
		}
	}

	targets, err := b.store.ListBroadcastTargets(ctx)
	if err != nil {
		b.respondError(session, interaction, "Broadcast", "Could not load the target list.")
		return
	}
	if len(targets) == 0 {
		b.respondSuccess(session, interaction, "Broadcast", "No servers have opted in.", nil)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: body,
		Color:       b.cfg.Notifications.EmbedColors.Action,
	}
	b.respondSuccess(session, interaction, "Broadcast",
		fmt.Sprintf("Delivering to %d server(s).", len(targets)), nil)
	go b.fanOut(targets, func(target storage.UpdatesSettings) error {
		_, err := b.session.ChannelMessageSendEmbed(target.ChannelID, embed)
		return err
	})
}

// fanOut delivers paced, one destination at a time. A failed
// destination is logged and skipped, never aborting the rest.
func (b *Bot) fanOut(targets []storage.UpdatesSettings, send func(storage.UpdatesSettings) error) {
	pace := time.Duration(b.cfg.Broadcast.PaceMilliseconds) * time.Millisecond
	delivered := 0
	for i, target := range targets {
		if i > 0 && pace > 0 {
			time.Sleep(pace)
		}
		if err := send(target); err != nil {
			b.logger.Warn("broadcast delivery failed",
				zap.String("guild_id", target.GuildID),
				zap.String("channel_id", target.ChannelID),
				zap.Error(err))
			continue
		}
		delivered++
	}
	b.logger.Info("broadcast complete",
		zap.Int("targets", len(targets)),
		zap.Int("delivered", delivered))
}
