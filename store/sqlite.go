package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"

	"recipeassistant"
)

const profileID = "default"

// SQLite keeps everything in one database file. Writes that hit a locked
// database are retried with exponential backoff.
type SQLite struct {
	db         *sql.DB
	maxRetries uint64
	backoff    time.Duration
	now        func() time.Time
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", recipeassistant.ErrStorageUnavailable, err)
	}
	// One writer at a time keeps SQLITE_BUSY rare; retries cover the rest.
	db.SetMaxOpenConns(1)

	s := &SQLite{
		db:         db,
		maxRetries: 5,
		backoff:    20 * time.Millisecond,
		now:        time.Now,
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %w", recipeassistant.ErrStorageUnavailable, err)
	}

	slog.Info("STORE: SQLite ready", "path", path)
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) initSchema(ctx context.Context) error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS chat_sessions (
        id TEXT PRIMARY KEY,
        created_at INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at INTEGER NOT NULL,
        FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS user_profiles (
        id TEXT PRIMARY KEY,
        diet TEXT NOT NULL DEFAULT '',
        allergens TEXT NOT NULL DEFAULT '',
        goals TEXT NOT NULL DEFAULT '',
        updated_at INTEGER NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id, id);
    `
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, schema)
		return err
	})
}

func (s *SQLite) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	err := s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO chat_sessions (id, created_at) VALUES (?, ?)`,
			id, s.now().UnixMilli())
		return err
	})
	if err != nil {
		return "", wrap("create session", err)
	}
	return id, nil
}

func (s *SQLite) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chat_sessions WHERE id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, wrap("lookup session", err)
	}
	return n > 0, nil
}

// LoadHistory returns every message of the session, oldest first.
func (s *SQLite) LoadHistory(ctx context.Context, sessionID string) ([]recipeassistant.Message, error) {
	ok, err := s.SessionExists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`,
		sessionID)
	if err != nil {
		return nil, wrap("query messages", err)
	}
	defer rows.Close()

	history := make([]recipeassistant.Message, 0)
	for rows.Next() {
		var (
			m  recipeassistant.Message
			ts int64
		)
		if err := rows.Scan(&m.Role, &m.Content, &ts); err != nil {
			return nil, wrap("scan message", err)
		}
		m.CreatedAt = time.UnixMilli(ts).UTC()
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate messages", err)
	}
	return history, nil
}

func (s *SQLite) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	if !validRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	ok, err := s.SessionExists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, role, content, s.now().UnixMilli())
		return err
	})
	if err != nil {
		return wrap("insert message", err)
	}
	return nil
}

// AppendExchange inserts both messages of a turn in one transaction.
func (s *SQLite) AppendExchange(ctx context.Context, sessionID, userMessage, reply string) error {
	ok, err := s.SessionExists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		ts := s.now().UnixMilli()
		for _, m := range []struct{ role, content string }{
			{recipeassistant.RoleUser, userMessage},
			{recipeassistant.RoleAssistant, reply},
		} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
				sessionID, m.role, m.content, ts); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return wrap("insert exchange", err)
	}
	return nil
}

// GetProfile returns the stored profile, or an empty one if none was saved.
func (s *SQLite) GetProfile(ctx context.Context) (recipeassistant.Profile, error) {
	var p recipeassistant.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT diet, allergens, goals FROM user_profiles WHERE id = ?`, profileID,
	).Scan(&p.Diet, &p.Allergens, &p.Goals)
	if errors.Is(err, sql.ErrNoRows) {
		return recipeassistant.Profile{}, nil
	}
	if err != nil {
		return recipeassistant.Profile{}, wrap("query profile", err)
	}
	return p, nil
}

func (s *SQLite) SaveProfile(ctx context.Context, p recipeassistant.Profile) error {
	err := s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
        INSERT INTO user_profiles (id, diet, allergens, goals, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            diet = excluded.diet,
            allergens = excluded.allergens,
            goals = excluded.goals,
            updated_at = excluded.updated_at
        `, profileID, p.Diet, p.Allergens, p.Goals, s.now().UnixMilli())
		return err
	})
	if err != nil {
		return wrap("save profile", err)
	}
	return nil
}

func (s *SQLite) withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isBusy(err) {
			slog.Warn("STORE: Database busy, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", recipeassistant.ErrStorageUnavailable, op, err)
}
