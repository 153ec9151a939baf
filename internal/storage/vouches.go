package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Vouch struct {
	ID        int64
	GuildID   string
	VoucherID string
	TargetID  string
	Message   string
	Rating    int
	CreatedAt time.Time
}

type VouchSummary struct {
	Count   int
	Average float64
}

type VouchLeader struct {
	UserID string
	Count  int
}

type RankEntry struct {
	RoleID    string
	Threshold int
}

type ModRank struct {
	RoleID   string
	Position int
}

func (s *Store) AddVouch(ctx context.Context, vouch Vouch) error {
	createdAt := vouch.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vouches (guild_id, voucher_id, target_id, message, rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, vouch.GuildID, vouch.VoucherID, vouch.TargetID, vouch.Message, vouch.Rating, createdAt.Unix())
	return err
}

// LastVouchAt returns when the endorser last vouched for the target,
// backing the one-per-pair-per-24h rate limit.
func (s *Store) LastVouchAt(ctx context.Context, guildID, voucherID, targetID string) (time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM vouches
		WHERE guild_id = ? AND voucher_id = ? AND target_id = ?
		ORDER BY created_at DESC LIMIT 1
	`, guildID, voucherID, targetID)
	var createdAt int64
	if err := row.Scan(&createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return time.Unix(createdAt, 0), nil
}

func (s *Store) CountVouches(ctx context.Context, guildID, targetID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vouches WHERE guild_id = ? AND target_id = ?
	`, guildID, targetID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) VouchSummary(ctx context.Context, guildID, targetID string) (VouchSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM vouches
		WHERE guild_id = ? AND target_id = ?
	`, guildID, targetID)
	var summary VouchSummary
	if err := row.Scan(&summary.Count, &summary.Average); err != nil {
		return VouchSummary{}, err
	}
	return summary, nil
}

func (s *Store) ListVouches(ctx context.Context, guildID, targetID string, limit int) ([]Vouch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, voucher_id, target_id, message, rating, created_at
		FROM vouches WHERE guild_id = ? AND target_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, guildID, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouches []Vouch
	for rows.Next() {
		var vouch Vouch
		var createdAt int64
		if err := rows.Scan(&vouch.ID, &vouch.GuildID, &vouch.VoucherID, &vouch.TargetID, &vouch.Message, &vouch.Rating, &createdAt); err != nil {
			return nil, err
		}
		vouch.CreatedAt = time.Unix(createdAt, 0)
		vouches = append(vouches, vouch)
	}
	return vouches, rows.Err()
}

// TopVouched returns the most-endorsed members, most first.
func (s *Store) TopVouched(ctx context.Context, guildID string, limit int) ([]VouchLeader, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id, COUNT(*) AS total FROM vouches
		WHERE guild_id = ?
		GROUP BY target_id ORDER BY total DESC LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leaders []VouchLeader
	for rows.Next() {
		var leader VouchLeader
		if err := rows.Scan(&leader.UserID, &leader.Count); err != nil {
			return nil, err
		}
		leaders = append(leaders, leader)
	}
	return leaders, rows.Err()
}

func (s *Store) SetRankEntry(ctx context.Context, guildID, roleID string, threshold int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vouch_ranks (guild_id, role_id, threshold) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, role_id) DO UPDATE SET threshold = excluded.threshold
	`, guildID, roleID, threshold)
	return err
}

func (s *Store) RemoveRankEntry(ctx context.Context, guildID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM vouch_ranks WHERE guild_id = ? AND role_id = ?
	`, guildID, roleID)
	return err
}

// ListRankLadder returns the ladder ordered by threshold ascending.
func (s *Store) ListRankLadder(ctx context.Context, guildID string) ([]RankEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role_id, threshold FROM vouch_ranks
		WHERE guild_id = ? ORDER BY threshold
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ladder []RankEntry
	for rows.Next() {
		var entry RankEntry
		if err := rows.Scan(&entry.RoleID, &entry.Threshold); err != nil {
			return nil, err
		}
		ladder = append(ladder, entry)
	}
	return ladder, rows.Err()
}

func (s *Store) SetModRank(ctx context.Context, guildID, roleID string, position int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mod_ranks (guild_id, role_id, position) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, role_id) DO UPDATE SET position = excluded.position
	`, guildID, roleID, position)
	return err
}

func (s *Store) RemoveModRank(ctx context.Context, guildID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM mod_ranks WHERE guild_id = ? AND role_id = ?
	`, guildID, roleID)
	return err
}

// ListModRanks returns the manual ladder ordered by position.
func (s *Store) ListModRanks(ctx context.Context, guildID string) ([]ModRank, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role_id, position FROM mod_ranks
		WHERE guild_id = ? ORDER BY position
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranks []ModRank
	for rows.Next() {
		var rank ModRank
		if err := rows.Scan(&rank.RoleID, &rank.Position); err != nil {
			return nil, err
		}
		ranks = append(ranks, rank)
	}
	return ranks, rows.Err()
}
