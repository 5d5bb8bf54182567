package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayRecord is one track that started playing in a session.
type PlayRecord struct {
	ID        string
	SessionID string
	GuildID   string
	ChannelID string
	URL       string
	Provider  string
	PlayedAt  time.Time
}

type PlayHistoryRecorder interface {
	RecordPlay(ctx context.Context, record PlayRecord) error
}

type PlayHistoryReader interface {
	Recent(ctx context.Context, guildID string, limit int) ([]PlayRecord, error)
}

type PostgresPlayHistoryRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPlayHistoryRepository(db *pgxpool.Pool) *PostgresPlayHistoryRepository {
	return &PostgresPlayHistoryRepository{db: db}
}

func PlayRecordToRowParams(record PlayRecord) []any {
	return []any{
		record.ID,
		record.SessionID,
		record.GuildID,
		record.ChannelID,
		record.URL,
		record.Provider,
		record.PlayedAt,
	}
}

func (r *PostgresPlayHistoryRepository) RecordPlay(ctx context.Context, record PlayRecord) error {
	const query = `
	INSERT INTO play_history (id, session_id, guild_id, channel_id, url, provider, played_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
	`

	if record.PlayedAt.IsZero() {
		record.PlayedAt = time.Now()
	}
	if _, err := r.db.Exec(ctx, query, PlayRecordToRowParams(record)...); err != nil {
		return fmt.Errorf("failed to insert play record: %w", err)
	}
	return nil
}

// Recent returns the latest plays of a guild, newest first.
func (r *PostgresPlayHistoryRepository) Recent(ctx context.Context, guildID string, limit int) ([]PlayRecord, error) {
	const query = `
	SELECT id, session_id, guild_id, channel_id, url, provider, played_at
	FROM play_history
	WHERE guild_id = $1
	ORDER BY played_at DESC
	LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query play history: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlayRecord, error) {
		var rec PlayRecord
		err := row.Scan(&rec.ID, &rec.SessionID, &rec.GuildID, &rec.ChannelID, &rec.URL, &rec.Provider, &rec.PlayedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan play history: %w", err)
	}
	return records, nil
}

var (
	_ PlayHistoryRecorder = (*PostgresPlayHistoryRepository)(nil)
	_ PlayHistoryReader   = (*PostgresPlayHistoryRepository)(nil)
)
