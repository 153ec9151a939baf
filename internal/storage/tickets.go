package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	TicketOpen   = "open"
	TicketClosed = "closed"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketClaimed  = errors.New("ticket already claimed")
)

type Ticket struct {
	ID         int64
	GuildID    string
	ChannelID  string
	OpenerID   string
	ClaimantID string
	Category   string
	Status     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

type TicketFeedback struct {
	TicketID  int64
	RaterID   string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

func (s *Store) CreateTicket(ctx context.Context, guildID, openerID, category string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (guild_id, opener_id, category, status, opened_at)
		VALUES (?, ?, ?, ?, ?)
	`, guildID, openerID, category, TicketOpen, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) SetTicketChannel(ctx context.Context, ticketID int64, channelID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tickets SET channel_id = ? WHERE id = ?`, channelID, ticketID)
	return err
}

func (s *Store) GetTicket(ctx context.Context, ticketID int64) (Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, channel_id, opener_id, claimant_id, category, status, opened_at, closed_at
		FROM tickets WHERE id = ?`, ticketID)
	return scanTicket(row)
}

// GetTicketByChannel resolves the ticket backing a channel, which is
// how button and command handlers find their ticket.
func (s *Store) GetTicketByChannel(ctx context.Context, channelID string) (Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, channel_id, opener_id, claimant_id, category, status, opened_at, closed_at
		FROM tickets WHERE channel_id = ?`, channelID)
	return scanTicket(row)
}

func (s *Store) CountOpenTickets(ctx context.Context, guildID, openerID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tickets
		WHERE guild_id = ? AND opener_id = ? AND status = ?
	`, guildID, openerID, TicketOpen)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ClaimTicket is exclusive: it only succeeds while the ticket is open
// and unclaimed.
func (s *Store) ClaimTicket(ctx context.Context, ticketID int64, claimantID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET claimant_id = ?
		WHERE id = ? AND status = ? AND claimant_id = ''
	`, claimantID, ticketID, TicketOpen)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTicketClaimed
	}
	return nil
}

// LastClosedTicket returns the opener's most recently closed ticket,
// the one a rating applies to.
func (s *Store) LastClosedTicket(ctx context.Context, guildID, openerID string) (Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, channel_id, opener_id, claimant_id, category, status, opened_at, closed_at
		FROM tickets WHERE guild_id = ? AND opener_id = ? AND status = ?
		ORDER BY closed_at DESC LIMIT 1`, guildID, openerID, TicketClosed)
	return scanTicket(row)
}

func (s *Store) CloseTicket(ctx context.Context, ticketID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET status = ?, closed_at = ?
		WHERE id = ? AND status = ?
	`, TicketClosed, time.Now().Unix(), ticketID, TicketOpen)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) SaveTicketTranscript(ctx context.Context, ticketID int64, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_transcripts (ticket_id, content, created_at) VALUES (?, ?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET
			content = excluded.content,
			created_at = excluded.created_at
	`, ticketID, content, time.Now().Unix())
	return err
}

func (s *Store) GetTicketTranscript(ctx context.Context, ticketID int64) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT content FROM ticket_transcripts WHERE ticket_id = ?`, ticketID)
	var content string
	if err := row.Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrTicketNotFound
		}
		return "", err
	}
	return content, nil
}

func (s *Store) SaveTicketFeedback(ctx context.Context, feedback TicketFeedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_feedback (ticket_id, rater_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET
			rater_id = excluded.rater_id,
			rating = excluded.rating,
			comment = excluded.comment,
			created_at = excluded.created_at
	`, feedback.TicketID, feedback.RaterID, feedback.Rating, feedback.Comment, time.Now().Unix())
	return err
}

// DeleteTranscriptsBefore drops transcripts older than the cutoff.
func (s *Store) DeleteTranscriptsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ticket_transcripts WHERE created_at < ?`, cutoff.Unix())
	return err
}

func scanTicket(row caseScanner) (Ticket, error) {
	var t Ticket
	var openedAt, closedAt int64
	err := row.Scan(&t.ID, &t.GuildID, &t.ChannelID, &t.OpenerID, &t.ClaimantID, &t.Category, &t.Status, &openedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, ErrTicketNotFound
		}
		return Ticket{}, err
	}
	t.OpenedAt = time.Unix(openedAt, 0)
	if closedAt > 0 {
		t.ClosedAt = time.Unix(closedAt, 0)
	}
	return t, nil
}
