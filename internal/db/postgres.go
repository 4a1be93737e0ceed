package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Postgres stores user documents in a jsonb column, the same layout the hosted
// bot_users table uses
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres connects to Postgres and ensures the bot_users table exists
func NewPostgres(ctx context.Context, dsn string) (*Documents, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)

	p := &Postgres{db: conn}
	if err := p.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return newDocuments(p), nil
}

func newPostgresWithDB(conn *sqlx.DB) *Documents {
	return newDocuments(&Postgres{db: conn})
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bot_users (
			user_id TEXT PRIMARY KEY,
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (p *Postgres) load(ctx context.Context, userID string) (map[string]interface{}, error) {
	var raw []byte
	err := p.db.GetContext(ctx, &raw, `SELECT data FROM bot_users WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return make(map[string]interface{}), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

func (p *Postgres) save(ctx context.Context, userID string, doc map[string]interface{}) error {
	raw, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO bot_users (user_id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, userID, string(raw))
	return err
}

func (p *Postgres) userIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := p.db.SelectContext(ctx, &ids, `SELECT user_id FROM bot_users ORDER BY user_id`); err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *Postgres) close() error {
	return p.db.Close()
}
