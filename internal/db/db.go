package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores one JSON document per user in a local database file
type SQLite struct {
	conn *sql.DB
}

// New opens the SQLite document store and initializes schema
func New(path string) (*Documents, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLite doesn't benefit from many connections, but these prevent resource exhaustion
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(1 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	s := &SQLite{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return newDocuments(s), nil
}

// migrate runs database migrations
func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bot_users (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLite) load(ctx context.Context, userID string) (map[string]interface{}, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM bot_users WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return make(map[string]interface{}), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument([]byte(raw))
}

func (s *SQLite) save(ctx context.Context, userID string, doc map[string]interface{}) error {
	raw, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO bot_users (user_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP
	`, userID, string(raw))
	return err
}

func (s *SQLite) userIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT user_id FROM bot_users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) close() error {
	return s.conn.Close()
}
