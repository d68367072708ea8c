package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Mute struct {
	GuildID   string
	UserID    string
	RoleID    string
	Reason    string
	CreatedAt time.Time
	// ExpiresAt is nil for mutes without a duration.
	ExpiresAt *time.Time
}

func (s *Store) AddMute(ctx context.Context, mute Mute) error {
	var expires any
	if mute.ExpiresAt != nil {
		expires = mute.ExpiresAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mutes (guild_id, user_id, role_id, reason, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			role_id = excluded.role_id,
			reason = excluded.reason,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, mute.GuildID, mute.UserID, mute.RoleID, mute.Reason, mute.CreatedAt.Unix(), expires)
	return err
}

// RemoveMute deletes the mute row and reports whether one existed.
func (s *Store) RemoveMute(ctx context.Context, guildID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mutes WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) GetMute(ctx context.Context, guildID, userID string) (Mute, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, role_id, reason, created_at, expires_at
		FROM mutes WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	mute, err := scanMute(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Mute{}, false, nil
		}
		return Mute{}, false, err
	}
	return mute, true, nil
}

func (s *Store) ListMutes(ctx context.Context) ([]Mute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, user_id, role_id, reason, created_at, expires_at
		FROM mutes ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mutes []Mute
	for rows.Next() {
		mute, err := scanMute(rows)
		if err != nil {
			return nil, err
		}
		mutes = append(mutes, mute)
	}
	return mutes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMute(row scanner) (Mute, error) {
	var mute Mute
	var created int64
	var expires sql.NullInt64
	if err := row.Scan(&mute.GuildID, &mute.UserID, &mute.RoleID, &mute.Reason, &created, &expires); err != nil {
		return Mute{}, err
	}
	mute.CreatedAt = time.Unix(created, 0)
	if expires.Valid {
		value := time.Unix(expires.Int64, 0)
		mute.ExpiresAt = &value
	}
	return mute, nil
}

// NextArchiveNumber increments and returns the guild's archive counter.
func (s *Store) NextArchiveNumber(ctx context.Context, guildID string) (int, error) {
	return s.incrementCounter(ctx, guildID, "archive")
}

func (s *Store) incrementCounter(ctx context.Context, guildID, name string) (n int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT value FROM guild_counters WHERE guild_id = ? AND name = ?`, guildID, name)
	if scanErr := row.Scan(&n); scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		return 0, scanErr
	}
	n++

	_, err = tx.ExecContext(ctx, `
		INSERT INTO guild_counters (guild_id, name, value) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, name) DO UPDATE SET value = excluded.value
	`, guildID, name, n)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
