package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joescharf/gitvote/internal/config"
	"github.com/joescharf/gitvote/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool, so
	// concurrently closing votes never hit "database is locked".
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order. Safe to call on
// every process start.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutVote(ctx context.Context, v *models.VoteRecord) error {
	configJSON, err := json.Marshal(v.Config)
	if err != nil {
		return fmt.Errorf("encode config snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO votes (issue_number, channel_id, message_id, period_start, period_end, config_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.IssueNumber, v.Poll.ChannelID, v.Poll.MessageID,
		v.PeriodStart, v.PeriodEnd, string(configJSON),
	)
	if err != nil {
		return fmt.Errorf("put vote %s: %w", v.Poll, err)
	}
	return nil
}

func (s *SQLiteStore) RemoveVote(ctx context.Context, ref models.PollRef) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM votes WHERE channel_id = ? AND message_id = ?",
		ref.ChannelID, ref.MessageID,
	)
	if err != nil {
		return fmt.Errorf("remove vote %s: %w", ref, err)
	}
	return nil
}

func (s *SQLiteStore) ListVotes(ctx context.Context) ([]*models.VoteRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_number, channel_id, message_id, period_start, period_end, config_json
		FROM votes ORDER BY period_end`)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var votes []*models.VoteRecord
	for rows.Next() {
		v := &models.VoteRecord{}
		var configJSON string
		if err := rows.Scan(&v.IssueNumber, &v.Poll.ChannelID, &v.Poll.MessageID,
			&v.PeriodStart, &v.PeriodEnd, &configJSON); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		var cfg config.ChannelConfig
		if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
			return nil, fmt.Errorf("decode config snapshot for %s: %w", v.Poll, err)
		}
		v.Config = cfg
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (s *SQLiteStore) ClearVotes(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM votes"); err != nil {
		return fmt.Errorf("clear votes: %w", err)
	}
	return nil
}
