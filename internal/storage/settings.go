package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Per-feature settings rows. Each Get returns the provided defaults
// when no row exists yet, so newly added keys stay valid for guilds
// configured before the key existed. Each Patch is read-modify-write
// with last-write-wins.

type AutomodSettings struct {
	GuildID              string
	Enabled              bool
	JoinThreshold        int
	JoinWindowSeconds    int
	JoinResponse         string
	MentionThreshold     int
	MentionWindowSeconds int
	ChurnThreshold       int
	WebhookThreshold     int
	CooldownSeconds      int
	LinkFilterEnabled    bool
	BlockInvites         bool
}

// Join responses, from least to most aggressive.
const (
	ResponseLog      = "log"
	ResponseTimeout  = "timeout"
	ResponseKick     = "kick"
	ResponseLockdown = "lockdown"
)

func DefaultAutomodSettings() AutomodSettings {
	return AutomodSettings{
		JoinThreshold:        8,
		JoinWindowSeconds:    60,
		JoinResponse:         ResponseLog,
		MentionThreshold:     8,
		MentionWindowSeconds: 10,
		ChurnThreshold:       4,
		WebhookThreshold:     3,
		CooldownSeconds:      120,
	}
}

func (s *Store) GetAutomodSettings(ctx context.Context, guildID string, defaults AutomodSettings) (AutomodSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT enabled, join_threshold, join_window_seconds, join_response,
		mention_threshold, mention_window_seconds, churn_threshold,
		webhook_threshold, cooldown_seconds, link_filter_enabled, block_invites
		FROM automod_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var enabled, linkFilter, blockInvites int
	err := row.Scan(
		&enabled,
		&result.JoinThreshold,
		&result.JoinWindowSeconds,
		&result.JoinResponse,
		&result.MentionThreshold,
		&result.MentionWindowSeconds,
		&result.ChurnThreshold,
		&result.WebhookThreshold,
		&result.CooldownSeconds,
		&linkFilter,
		&blockInvites,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return AutomodSettings{}, err
	}
	result.Enabled = enabled == 1
	result.LinkFilterEnabled = linkFilter == 1
	result.BlockInvites = blockInvites == 1
	if result.JoinResponse == "" {
		result.JoinResponse = defaults.JoinResponse
	}
	return result, nil
}

func (s *Store) UpsertAutomodSettings(ctx context.Context, settings AutomodSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automod_settings (
			guild_id, enabled, join_threshold, join_window_seconds, join_response,
			mention_threshold, mention_window_seconds, churn_threshold,
			webhook_threshold, cooldown_seconds, link_filter_enabled, block_invites
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			enabled = excluded.enabled,
			join_threshold = excluded.join_threshold,
			join_window_seconds = excluded.join_window_seconds,
			join_response = excluded.join_response,
			mention_threshold = excluded.mention_threshold,
			mention_window_seconds = excluded.mention_window_seconds,
			churn_threshold = excluded.churn_threshold,
			webhook_threshold = excluded.webhook_threshold,
			cooldown_seconds = excluded.cooldown_seconds,
			link_filter_enabled = excluded.link_filter_enabled,
			block_invites = excluded.block_invites
	`,
		settings.GuildID,
		boolToInt(settings.Enabled),
		settings.JoinThreshold,
		settings.JoinWindowSeconds,
		settings.JoinResponse,
		settings.MentionThreshold,
		settings.MentionWindowSeconds,
		settings.ChurnThreshold,
		settings.WebhookThreshold,
		settings.CooldownSeconds,
		boolToInt(settings.LinkFilterEnabled),
		boolToInt(settings.BlockInvites),
	)
	return err
}

func (s *Store) PatchAutomodSettings(ctx context.Context, guildID string, defaults AutomodSettings, apply func(*AutomodSettings)) (AutomodSettings, error) {
	settings, err := s.GetAutomodSettings(ctx, guildID, defaults)
	if err != nil {
		return AutomodSettings{}, err
	}
	apply(&settings)
	settings.GuildID = guildID
	if err := s.UpsertAutomodSettings(ctx, settings); err != nil {
		return AutomodSettings{}, err
	}
	return settings, nil
}

func (s *Store) AddAllowedDomain(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO automod_domains (guild_id, domain) VALUES (?, ?)`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) RemoveAllowedDomain(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM automod_domains WHERE guild_id = ? AND domain = ?`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) ListAllowedDomains(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM automod_domains WHERE guild_id = ? ORDER BY domain`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

func (s *Store) GetModlogChannel(ctx context.Context, guildID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT channel_id FROM modlog_settings WHERE guild_id = ?`, guildID)
	var channelID string
	if err := row.Scan(&channelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return channelID, nil
}

func (s *Store) SetModlogChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO modlog_settings (guild_id, channel_id) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET channel_id = excluded.channel_id
	`, guildID, channelID)
	return err
}

type UpdatesSettings struct {
	GuildID   string
	ChannelID string
	Enabled   bool
}

func (s *Store) GetUpdatesSettings(ctx context.Context, guildID string) (UpdatesSettings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT channel_id, enabled FROM updates_settings WHERE guild_id = ?`, guildID)
	result := UpdatesSettings{GuildID: guildID, Enabled: true}
	var enabled int
	if err := row.Scan(&result.ChannelID, &enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return UpdatesSettings{}, err
	}
	result.Enabled = enabled == 1
	return result, nil
}

func (s *Store) UpsertUpdatesSettings(ctx context.Context, settings UpdatesSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO updates_settings (guild_id, channel_id, enabled) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			enabled = excluded.enabled
	`, settings.GuildID, settings.ChannelID, boolToInt(settings.Enabled))
	return err
}

// ListBroadcastTargets returns every guild with a configured, enabled
// updates channel.
func (s *Store) ListBroadcastTargets(ctx context.Context) ([]UpdatesSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, channel_id FROM updates_settings
		WHERE enabled = 1 AND channel_id != ''
		ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []UpdatesSettings
	for rows.Next() {
		target := UpdatesSettings{Enabled: true}
		if err := rows.Scan(&target.GuildID, &target.ChannelID); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

type TicketSettings struct {
	GuildID        string
	CategoryID     string
	StaffRoleID    string
	PanelChannelID string
	PanelMessageID string
	MaxOpenPerUser int
}

func DefaultTicketSettings() TicketSettings {
	return TicketSettings{MaxOpenPerUser: 1}
}

func (s *Store) GetTicketSettings(ctx context.Context, guildID string, defaults TicketSettings) (TicketSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT category_id, staff_role_id, panel_channel_id, panel_message_id, max_open_per_user
		FROM ticket_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID
	err := row.Scan(&result.CategoryID, &result.StaffRoleID, &result.PanelChannelID, &result.PanelMessageID, &result.MaxOpenPerUser)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return TicketSettings{}, err
	}
	if result.MaxOpenPerUser <= 0 {
		result.MaxOpenPerUser = defaults.MaxOpenPerUser
	}
	return result, nil
}

func (s *Store) UpsertTicketSettings(ctx context.Context, settings TicketSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_settings (
			guild_id, category_id, staff_role_id, panel_channel_id, panel_message_id, max_open_per_user
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			category_id = excluded.category_id,
			staff_role_id = excluded.staff_role_id,
			panel_channel_id = excluded.panel_channel_id,
			panel_message_id = excluded.panel_message_id,
			max_open_per_user = excluded.max_open_per_user
	`, settings.GuildID, settings.CategoryID, settings.StaffRoleID, settings.PanelChannelID, settings.PanelMessageID, settings.MaxOpenPerUser)
	return err
}

func (s *Store) PatchTicketSettings(ctx context.Context, guildID string, defaults TicketSettings, apply func(*TicketSettings)) (TicketSettings, error) {
	settings, err := s.GetTicketSettings(ctx, guildID, defaults)
	if err != nil {
		return TicketSettings{}, err
	}
	apply(&settings)
	settings.GuildID = guildID
	if err := s.UpsertTicketSettings(ctx, settings); err != nil {
		return TicketSettings{}, err
	}
	return settings, nil
}

// Rank assignment modes for the vouch ladder.
const (
	RankModeHighest = "highest"
	RankModeStack   = "stack"
)

type VouchSettings struct {
	GuildID        string
	BoardChannelID string
	BoardMessageID string
	RankMode       string
}

func DefaultVouchSettings() VouchSettings {
	return VouchSettings{RankMode: RankModeHighest}
}

func (s *Store) GetVouchSettings(ctx context.Context, guildID string, defaults VouchSettings) (VouchSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT board_channel_id, board_message_id, rank_mode
		FROM vouch_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID
	err := row.Scan(&result.BoardChannelID, &result.BoardMessageID, &result.RankMode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return VouchSettings{}, err
	}
	if result.RankMode == "" {
		result.RankMode = defaults.RankMode
	}
	return result, nil
}

func (s *Store) UpsertVouchSettings(ctx context.Context, settings VouchSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vouch_settings (guild_id, board_channel_id, board_message_id, rank_mode)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			board_channel_id = excluded.board_channel_id,
			board_message_id = excluded.board_message_id,
			rank_mode = excluded.rank_mode
	`, settings.GuildID, settings.BoardChannelID, settings.BoardMessageID, settings.RankMode)
	return err
}

func (s *Store) PatchVouchSettings(ctx context.Context, guildID string, defaults VouchSettings, apply func(*VouchSettings)) (VouchSettings, error) {
	settings, err := s.GetVouchSettings(ctx, guildID, defaults)
	if err != nil {
		return VouchSettings{}, err
	}
	apply(&settings)
	settings.GuildID = guildID
	if err := s.UpsertVouchSettings(ctx, settings); err != nil {
		return VouchSettings{}, err
	}
	return settings, nil
}
