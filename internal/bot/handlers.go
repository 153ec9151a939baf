package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		switch interaction.MessageComponentData().CustomID {
		case componentGiveawayJoin, componentGiveawayLeave:
			b.handleGiveawayButton(ctx, session, interaction)
		case componentTicketOpen:
			b.openTicket(ctx, session, interaction, "")
		}
	case discordgo.InteractionModalSubmit:
		if interaction.ModalSubmitData().CustomID == modalBroadcastEmbed {
			b.handleBroadcastEmbedSubmit(ctx, session, interaction)
		}
	}
}

func (b *Bot) dispatchCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	switch interaction.ApplicationCommandData().Name {
	case "automod":
		b.handleAutomod(ctx, session, interaction)
	case "modlog":
		b.handleModlog(ctx, session, interaction)
	case "ban":
		b.handleBan(ctx, session, interaction)
	case "timeout":
		b.handleTimeout(ctx, session, interaction)
	case "warn":
		b.handleWarn(ctx, session, interaction)
	case "purge":
		b.handlePurge(ctx, session, interaction)
	case "case":
		b.handleCase(ctx, session, interaction)
	case "history":
		b.handleHistory(ctx, session, interaction)
	case "modstats":
		b.handleModstats(ctx, session, interaction)
	case "gcreate":
		b.handleGiveawayCreate(ctx, session, interaction)
	case "gend":
		b.handleGiveawayEnd(ctx, session, interaction)
	case "gcancel":
		b.handleGiveawayCancel(ctx, session, interaction)
	case "greroll":
		b.handleGiveawayReroll(ctx, session, interaction)
	case "grules":
		b.handleGiveawayRules(ctx, session, interaction)
	case "glist":
		b.handleGiveawayList(ctx, session, interaction)
	case "ticket":
		b.handleTicket(ctx, session, interaction)
	case "vouch":
		b.handleVouch(ctx, session, interaction)
	case "vouches":
		b.handleVouches(ctx, session, interaction)
	case "topvouches":
		b.handleTopVouches(ctx, session, interaction)
	case "vouchboard":
		b.handleVouchboard(ctx, session, interaction)
	case "rank":
		b.handleRank(ctx, session, interaction)
	case "modrank":
		b.handleModrank(ctx, session, interaction)
	case "updates":
		b.handleUpdates(ctx, session, interaction)
	case "broadcast":
		b.handleBroadcast(ctx, session, interaction)
	case "broadcastembed":
		b.handleBroadcastEmbed(session, interaction)
	}
}
