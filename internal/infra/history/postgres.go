package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/hzerradi/foodscan/internal/domain/scans"
)

// ConnectPostgres opens and pings a Postgres connection.
func ConnectPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

// PostgresStore mirrors MySQLStore for Postgres deployments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	const ddl = `
CREATE TABLE IF NOT EXISTS app_state (
  name VARCHAR(64) NOT NULL PRIMARY KEY,
  body TEXT NOT NULL
);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]*domain.ScanRecord, error) {
	const q = `SELECT body FROM app_state WHERE name=$1 LIMIT 1;`
	var body string
	err := s.db.QueryRowContext(ctx, q, storageKey).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []*domain.ScanRecord
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *PostgresStore) Save(ctx context.Context, records []*domain.ScanRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO app_state (name, body) VALUES ($1,$2)
ON CONFLICT (name) DO UPDATE SET body=EXCLUDED.body;`
	_, err = s.db.ExecContext(ctx, q, storageKey, string(data))
	return err
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	const q = `DELETE FROM app_state WHERE name=$1;`
	_, err := s.db.ExecContext(ctx, q, storageKey)
	return err
}
