package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"

	domain "github.com/hzerradi/foodscan/internal/domain/scans"
)

// storageKey is the single durable key holding the serialized history.
const storageKey = "scanHistory"

// ConnectMySQL opens and pings a MySQL connection.
func ConnectMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
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

// MySQLStore keeps the serialized history in one row of a key/value table.
// Full rewrite on each Save, matching the single-key storage model.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(ctx context.Context, db *sql.DB) (*MySQLStore, error) {
	const ddl = `
CREATE TABLE IF NOT EXISTS app_state (
  name VARCHAR(64) NOT NULL PRIMARY KEY,
  body LONGTEXT NOT NULL
);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Load(ctx context.Context) ([]*domain.ScanRecord, error) {
	const q = `SELECT body FROM app_state WHERE name=? LIMIT 1;`
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

func (s *MySQLStore) Save(ctx context.Context, records []*domain.ScanRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO app_state (name, body) VALUES (?,?)
ON DUPLICATE KEY UPDATE body=VALUES(body);`
	_, err = s.db.ExecContext(ctx, q, storageKey, string(data))
	return err
}

func (s *MySQLStore) Clear(ctx context.Context) error {
	const q = `DELETE FROM app_state WHERE name=?;`
	_, err := s.db.ExecContext(ctx, q, storageKey)
	return err
}
