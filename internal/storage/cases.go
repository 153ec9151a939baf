package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Moderation case kinds.
const (
	CaseBan     = "ban"
	CaseKick    = "kick"
	CaseTimeout = "timeout"
	CaseWarn    = "warn"
	CasePurge   = "purge"
)

var ErrCaseNotFound = errors.New("case not found")

type CaseRecord struct {
	GuildID      string
	CaseID       int64
	Kind         string
	TargetID     string
	ModeratorID  string
	Reason       string
	Duration     time.Duration
	Metadata     string
	LogMessageID string
	CreatedAt    time.Time
}

type CaseFilter struct {
	TargetID string
	Kind     string
	Limit    int
}

// AllocateCaseID atomically increments the guild's counter and returns
// the new id. Ids are strictly increasing per guild and never reused;
// a failed insert after allocation leaves a gap, which is fine.
func (s *Store) AllocateCaseID(ctx context.Context, guildID string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO case_counters (guild_id, next_id) VALUES (?, 1)
		ON CONFLICT(guild_id) DO UPDATE SET next_id = next_id + 1
		RETURNING next_id
	`, guildID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// RecordCase allocates an id and inserts the case as one unit.
func (s *Store) RecordCase(ctx context.Context, record CaseRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO case_counters (guild_id, next_id) VALUES (?, 1)
		ON CONFLICT(guild_id) DO UPDATE SET next_id = next_id + 1
		RETURNING next_id
	`, record.GuildID)
	var caseID int64
	if err = row.Scan(&caseID); err != nil {
		return 0, err
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (
			guild_id, case_id, kind, target_id, moderator_id, reason,
			duration_ms, metadata, log_message_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.GuildID,
		caseID,
		record.Kind,
		record.TargetID,
		record.ModeratorID,
		record.Reason,
		record.Duration.Milliseconds(),
		record.Metadata,
		record.LogMessageID,
		createdAt.Unix(),
	)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return caseID, nil
}

func (s *Store) GetCase(ctx context.Context, guildID string, caseID int64) (CaseRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, case_id, kind, target_id, moderator_id, reason,
		duration_ms, metadata, log_message_id, created_at
		FROM cases WHERE guild_id = ? AND case_id = ?`, guildID, caseID)
	record, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CaseRecord{}, ErrCaseNotFound
		}
		return CaseRecord{}, err
	}
	return record, nil
}

func (s *Store) ListCases(ctx context.Context, guildID string, filter CaseFilter) ([]CaseRecord, error) {
	query := `
		SELECT guild_id, case_id, kind, target_id, moderator_id, reason,
		duration_ms, metadata, log_message_id, created_at
		FROM cases WHERE guild_id = ?`
	args := []any{guildID}
	if filter.TargetID != "" {
		query += ` AND target_id = ?`
		args = append(args, filter.TargetID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	query += ` ORDER BY case_id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CaseRecord
	for rows.Next() {
		record, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// SetCaseLogMessage links the modlog mirror message after the fact.
// The pointer is the one mutable field of a case.
func (s *Store) SetCaseLogMessage(ctx context.Context, guildID string, caseID int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cases SET log_message_id = ? WHERE guild_id = ? AND case_id = ?
	`, messageID, guildID, caseID)
	return err
}

// DeleteCases removes warn cases for a target. Counter state is
// untouched, so the freed ids are never handed out again.
func (s *Store) DeleteCases(ctx context.Context, guildID, targetID, kind string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cases WHERE guild_id = ? AND target_id = ? AND kind = ?
	`, guildID, targetID, kind)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) DeleteCase(ctx context.Context, guildID string, caseID int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cases WHERE guild_id = ? AND case_id = ?
	`, guildID, caseID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// CountCasesByKind feeds the moderation activity report.
func (s *Store) CountCasesByKind(ctx context.Context, guildID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM cases
		WHERE guild_id = ? AND created_at >= ?
		GROUP BY kind
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

type caseScanner interface {
	Scan(dest ...any) error
}

func scanCase(row caseScanner) (CaseRecord, error) {
	var record CaseRecord
	var durationMs, createdAt int64
	err := row.Scan(
		&record.GuildID,
		&record.CaseID,
		&record.Kind,
		&record.TargetID,
		&record.ModeratorID,
		&record.Reason,
		&durationMs,
		&record.Metadata,
		&record.LogMessageID,
		&createdAt,
	)
	if err != nil {
		return CaseRecord{}, err
	}
	record.Duration = time.Duration(durationMs) * time.Millisecond
	record.CreatedAt = time.Unix(createdAt, 0)
	return record, nil
}
