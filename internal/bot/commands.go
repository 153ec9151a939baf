package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) registerCommands() error {
	minRating := float64(1)
	maxRating := float64(5)
	minOne := float64(1)

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "automod",
			Description: "Configure automatic moderation",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Show current automod settings"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "enable", Description: "Enable automod"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "disable", Description: "Disable automod"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set", Description: "Tune automod thresholds",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "joins", Description: "Join burst threshold"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "join_window", Description: "Join window in seconds"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "mentions", Description: "Mention burst threshold"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "mention_window", Description: "Mention window in seconds"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "churn", Description: "Channel create/delete threshold"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "webhooks", Description: "Webhook update threshold"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "cooldown", Description: "Trigger cooldown in seconds"},
						{
							Type: discordgo.ApplicationCommandOptionString, Name: "response", Description: "Join burst response",
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "log", Value: "log"},
								{Name: "timeout", Value: "timeout"},
								{Name: "kick", Value: "kick"},
								{Name: "lockdown", Value: "lockdown"},
							},
						},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "links", Description: "Configure the link filter",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "filter", Description: "Only allow whitelisted domains"},
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "invites", Description: "Block invite links"},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "allow", Description: "Whitelist a domain",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "domain", Description: "Domain to whitelist", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "unallow", Description: "Remove a domain from the whitelist",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "domain", Description: "Domain to remove", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "domains", Description: "List whitelisted domains"},
			},
		},
		{
			Name:        "modlog",
			Description: "Show or set the moderation log channel",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel receiving case logs"},
			},
		},
		{
			Name:        "ban",
			Description: "Ban a member",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to ban", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "delete_days", Description: "Days of messages to delete"},
			},
		},
		{
			Name:        "timeout",
			Description: "Time a member out",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to time out", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "Duration, e.g. 10m or 2h30m", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason"},
			},
		},
		{
			Name:        "warn",
			Description: "Manage warnings",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Warn a member",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to warn", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List a member's warnings",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove one warning by case id",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "case_id", Description: "Case id", Required: true, MinValue: &minOne},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "clear", Description: "Clear all warnings for a member",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member", Required: true},
					},
				},
			},
		},
		{
			Name:        "purge",
			Description: "Bulk delete recent messages",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "count", Description: "Messages to delete (max 100)", Required: true, MinValue: &minOne},
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Only this member's messages"},
			},
		},
		{
			Name:        "case",
			Description: "Look up a moderation case",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: "Case id", Required: true, MinValue: &minOne},
			},
		},
		{
			Name:        "history",
			Description: "Moderation history",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Filter by member"},
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "kind", Description: "Filter by action",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "ban", Value: "ban"},
						{Name: "kick", Value: "kick"},
						{Name: "timeout", Value: "timeout"},
						{Name: "warn", Value: "warn"},
						{Name: "purge", Value: "purge"},
					},
				},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "limit", Description: "Max cases to show", MinValue: &minOne},
			},
		},
		{
			Name:        "modstats",
			Description: "Moderation activity report",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "period", Description: "Report period", Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
		{
			Name:        "gcreate",
			Description: "Start a giveaway",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "prize", Description: "Prize", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "Duration, e.g. 1d or 2h30m", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "winners", Description: "Winner count", MinValue: &minOne},
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to announce in"},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "required_role", Description: "Entrants must hold this role"},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "forbidden_role", Description: "Entrants must not hold this role"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "min_age_days", Description: "Minimum account age in days"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "min_vouches", Description: "Minimum vouch count"},
			},
		},
		{
			Name:        "gend",
			Description: "End a giveaway now",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "message_id", Description: "Giveaway message id", Required: true},
			},
		},
		{
			Name:        "gcancel",
			Description: "Cancel a giveaway",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "message_id", Description: "Giveaway message id", Required: true},
			},
		},
		{
			Name:        "greroll",
			Description: "Draw replacement winners",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "message_id", Description: "Giveaway message id", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "count", Description: "Winners to draw", MinValue: &minOne},
			},
		},
		{
			Name:        "grules",
			Description: "Manage giveaway entry rules",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Show the rules",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "message_id", Description: "Giveaway message id", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set", Description: "Set the rules",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "message_id", Description: "Giveaway message id", Required: true},
						{Type: discordgo.ApplicationCommandOptionRole, Name: "required_role", Description: "Entrants must hold this role"},
						{Type: discordgo.ApplicationCommandOptionRole, Name: "forbidden_role", Description: "Entrants must not hold this role"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "min_age_days", Description: "Minimum account age in days"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "min_vouches", Description: "Minimum vouch count"},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "clear", Description: "Clear the rules",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "message_id", Description: "Giveaway message id", Required: true},
					},
				},
			},
		},
		{
			Name:        "glist",
			Description: "List giveaways",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "status", Description: "Filter by status",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "running", Value: "running"},
						{Name: "ended", Value: "ended"},
						{Name: "cancelled", Value: "cancelled"},
					},
				},
			},
		},
		{
			Name:        "ticket",
			Description: "Support tickets",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "setup", Description: "Configure tickets",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "category", Description: "Category for ticket channels"},
						{Type: discordgo.ApplicationCommandOptionRole, Name: "staff_role", Description: "Role allowed to handle tickets"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "max_open", Description: "Max open tickets per user", MinValue: &minOne},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "panel", Description: "Post the open-ticket panel",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel for the panel", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "open", Description: "Open a ticket",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "topic", Description: "What is this about?"},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "claim", Description: "Claim this ticket"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "close", Description: "Close this ticket"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "transcript", Description: "Capture this ticket's transcript"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "rate", Description: "Rate a closed ticket",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "rating", Description: "1 to 5", Required: true, MinValue: &minRating, MaxValue: maxRating},
						{Type: discordgo.ApplicationCommandOptionString, Name: "comment", Description: "Optional comment"},
					},
				},
			},
		},
		{
			Name:        "vouch",
			Description: "Vouch for a member",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to vouch for", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "rating", Description: "1 to 5", Required: true, MinValue: &minRating, MaxValue: maxRating},
				{Type: discordgo.ApplicationCommandOptionString, Name: "comment", Description: "Why?"},
			},
		},
		{
			Name:        "vouches",
			Description: "Show a member's vouches",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member", Required: true},
			},
		},
		{
			Name:        "topvouches",
			Description: "Most vouched members",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "limit", Description: "How many to show", MinValue: &minOne},
			},
		},
		{
			Name:        "vouchboard",
			Description: "Manage the vouch leaderboard message",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set", Description: "Post the board in a channel",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel for the board", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove the board"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "mode", Description: "Set rank assignment mode",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type: discordgo.ApplicationCommandOptionString, Name: "value", Description: "highest or stack", Required: true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "highest", Value: "highest"},
								{Name: "stack", Value: "stack"},
							},
						},
					},
				},
			},
		},
		{
			Name:        "rank",
			Description: "Manage the vouch rank ladder",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set", Description: "Add or update a ladder entry",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to award", Required: true},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "threshold", Description: "Vouches required", Required: true, MinValue: &minOne},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a ladder entry",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to remove", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "Show the ladder"},
			},
		},
		{
			Name:        "modrank",
			Description: "Manage the staff rank ladder",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set", Description: "Add or update a ladder entry",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Staff role", Required: true},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "position", Description: "Ladder position, lowest first", Required: true, MinValue: &minOne},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a ladder entry",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to remove", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "Show the ladder"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "promote", Description: "Move a member up the ladder",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "demote", Description: "Move a member down the ladder",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member", Required: true},
					},
				},
			},
		},
		{
			Name:        "updates",
			Description: "Configure the announcements channel",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Show the current channel"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "channel", Description: "Set the channel",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel for announcements", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "enable", Description: "Opt in to announcements"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "disable", Description: "Opt out of announcements"},
			},
		},
		{
			Name:        "broadcast",
			Description: "Send an announcement to every configured server",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "message", Description: "Announcement text", Required: true},
			},
		},
		{
			Name:        "broadcastembed",
			Description: "Compose an embed announcement",
		},
	}

	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, "", commands)
	return err
}
