package bot

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
	}
}

// respondEmbed sends the single terminal response for an interaction.
func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondError(session *discordgo.Session, interaction *discordgo.InteractionCreate, title, message string) {
	b.respondEmbed(session, interaction, b.commandEmbed(title, message, b.cfg.Notifications.EmbedColors.Error, nil), true)
}

func (b *Bot) respondSuccess(session *discordgo.Session, interaction *discordgo.InteractionCreate, title, message string, fields []*discordgo.MessageEmbedField) {
	b.respondEmbed(session, interaction, b.commandEmbed(title, message, b.cfg.Notifications.EmbedColors.Success, fields), true)
}

// optionMap flattens command options by name.
func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	mapped := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		mapped[opt.Name] = opt
	}
	return mapped
}

func (b *Bot) actorID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

// hasPermission checks the invoking member's resolved permissions.
func hasPermission(interaction *discordgo.InteractionCreate, permission int64) bool {
	if interaction.Member == nil {
		return false
	}
	return interaction.Member.Permissions&(permission|discordgo.PermissionAdministrator) != 0
}
