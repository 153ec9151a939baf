package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Giveaway statuses. Transitions are one-directional:
// running -> ended, running -> cancelled. Rerolls keep status ended.
const (
	GiveawayRunning   = "running"
	GiveawayEnded     = "ended"
	GiveawayCancelled = "cancelled"
)

var ErrGiveawayNotFound = errors.New("giveaway not found")

type Giveaway struct {
	MessageID         string
	GuildID           string
	ChannelID         string
	Prize             string
	HostID            string
	WinnerCount       int
	EndAt             time.Time
	Status            string
	RequiredRoles     []string
	ForbiddenRoles    []string
	MinAccountAgeDays int
	MinVouches        int
	CreatedAt         time.Time
}

func (s *Store) CreateGiveaway(ctx context.Context, g Giveaway) error {
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO giveaways (
			message_id, guild_id, channel_id, prize, host_id, winner_count,
			end_at, status, required_roles, forbidden_roles,
			min_account_age_days, min_vouches, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		g.MessageID,
		g.GuildID,
		g.ChannelID,
		g.Prize,
		g.HostID,
		g.WinnerCount,
		g.EndAt.Unix(),
		GiveawayRunning,
		joinIDs(g.RequiredRoles),
		joinIDs(g.ForbiddenRoles),
		g.MinAccountAgeDays,
		g.MinVouches,
		createdAt.Unix(),
	)
	return err
}

func (s *Store) GetGiveaway(ctx context.Context, messageID string) (Giveaway, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT message_id, guild_id, channel_id, prize, host_id, winner_count,
		end_at, status, required_roles, forbidden_roles,
		min_account_age_days, min_vouches, created_at
		FROM giveaways WHERE message_id = ?`, messageID)
	g, err := scanGiveaway(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Giveaway{}, ErrGiveawayNotFound
		}
		return Giveaway{}, err
	}
	return g, nil
}

// ListDueGiveaways returns running giveaways whose end time has passed.
func (s *Store) ListDueGiveaways(ctx context.Context, now time.Time) ([]Giveaway, error) {
	return s.listGiveaways(ctx, `
		SELECT message_id, guild_id, channel_id, prize, host_id, winner_count,
		end_at, status, required_roles, forbidden_roles,
		min_account_age_days, min_vouches, created_at
		FROM giveaways WHERE status = ? AND end_at <= ?
		ORDER BY end_at`, GiveawayRunning, now.Unix())
}

func (s *Store) ListGuildGiveaways(ctx context.Context, guildID, status string) ([]Giveaway, error) {
	if status == "" {
		return s.listGiveaways(ctx, `
			SELECT message_id, guild_id, channel_id, prize, host_id, winner_count,
			end_at, status, required_roles, forbidden_roles,
			min_account_age_days, min_vouches, created_at
			FROM giveaways WHERE guild_id = ?
			ORDER BY created_at DESC`, guildID)
	}
	return s.listGiveaways(ctx, `
		SELECT message_id, guild_id, channel_id, prize, host_id, winner_count,
		end_at, status, required_roles, forbidden_roles,
		min_account_age_days, min_vouches, created_at
		FROM giveaways WHERE guild_id = ? AND status = ?
		ORDER BY created_at DESC`, guildID, status)
}

// TransitionGiveaway moves a giveaway from one status to another and
// reports whether the row actually changed. A second finalize attempt
// racing the sweep sees false and backs off.
func (s *Store) TransitionGiveaway(ctx context.Context, messageID, from, to string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE giveaways SET status = ? WHERE message_id = ? AND status = ?
	`, to, messageID, from)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) UpdateGiveawayRules(ctx context.Context, messageID string, requiredRoles, forbiddenRoles []string, minAgeDays, minVouches int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE giveaways SET
			required_roles = ?,
			forbidden_roles = ?,
			min_account_age_days = ?,
			min_vouches = ?
		WHERE message_id = ?
	`, joinIDs(requiredRoles), joinIDs(forbiddenRoles), minAgeDays, minVouches, messageID)
	return err
}

// AddGiveawayEntry records participation. Re-entering is reported as
// already entered, not an error.
func (s *Store) AddGiveawayEntry(ctx context.Context, messageID, userID string) (added bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO giveaway_entries (message_id, user_id, entered_at)
		VALUES (?, ?, ?)
	`, messageID, userID, time.Now().Unix())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RemoveGiveawayEntry withdraws a participant. Removing a missing
// entry is a no-op.
func (s *Store) RemoveGiveawayEntry(ctx context.Context, messageID, userID string) (removed bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM giveaway_entries WHERE message_id = ? AND user_id = ?
	`, messageID, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListGiveawayEntries(ctx context.Context, messageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM giveaway_entries WHERE message_id = ? ORDER BY entered_at
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

func (s *Store) CountGiveawayEntries(ctx context.Context, messageID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM giveaway_entries WHERE message_id = ?`, messageID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// AddGiveawayWinners appends to the winners list. Round 0 is the
// initial draw; rerolls bump the round.
func (s *Store) AddGiveawayWinners(ctx context.Context, messageID string, userIDs []string, round int) error {
	now := time.Now().Unix()
	for _, userID := range userIDs {
		if _, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO giveaway_winners (message_id, user_id, round, drawn_at)
			VALUES (?, ?, ?, ?)
		`, messageID, userID, round, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListGiveawayWinners(ctx context.Context, messageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM giveaway_winners WHERE message_id = ? ORDER BY round, drawn_at
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

func (s *Store) LastWinnerRound(ctx context.Context, messageID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(round), -1) FROM giveaway_winners WHERE message_id = ?
	`, messageID)
	var round int
	if err := row.Scan(&round); err != nil {
		return 0, err
	}
	return round, nil
}

func (s *Store) listGiveaways(ctx context.Context, query string, args ...any) ([]Giveaway, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var giveaways []Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		giveaways = append(giveaways, g)
	}
	return giveaways, rows.Err()
}

func scanGiveaway(row caseScanner) (Giveaway, error) {
	var g Giveaway
	var endAt, createdAt int64
	var required, forbidden string
	err := row.Scan(
		&g.MessageID,
		&g.GuildID,
		&g.ChannelID,
		&g.Prize,
		&g.HostID,
		&g.WinnerCount,
		&endAt,
		&g.Status,
		&required,
		&forbidden,
		&g.MinAccountAgeDays,
		&g.MinVouches,
		&createdAt,
	)
	if err != nil {
		return Giveaway{}, err
	}
	g.EndAt = time.Unix(endAt, 0)
	g.CreatedAt = time.Unix(createdAt, 0)
	g.RequiredRoles = splitIDs(required)
	g.ForbiddenRoles = splitIDs(forbidden)
	return g, nil
}
