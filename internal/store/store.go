package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/security"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store is the generic record store behind the credential, thread and
// history repositories. It speaks SQLite (default, matching the original
// sqlite:///./bot_memory.db deployment) or Postgres via DATABASE_URL.
type Store struct {
	db      *sql.DB
	dialect dialect
	cipher  security.TokenCipher
	logger  *slog.Logger
}

// Open connects to the database named by url ("sqlite:<path>" or a
// postgres:// connection string), runs migrations, and returns a ready
// Store. cipher protects stored OAuth tokens; pass security.NopCipher{}
// to store them in plaintext.
func Open(url string, cipher security.TokenCipher, logger *slog.Logger) (*Store, error) {
	driver, dsn, dia, err := splitURL(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", domain.ErrStore, err)
	}

	if dia == dialectSQLite {
		// SQLite write safety: single writer.
		db.SetMaxOpenConns(1)

		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA synchronous=NORMAL",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%w: pragma: %v", domain.ErrStore, err)
			}
		}
	}

	s := &Store{db: db, dialect: dia, cipher: cipher, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrStore, err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func splitURL(url string) (driver, dsn string, dia dialect, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite:"):
		return "sqlite", strings.TrimPrefix(url, "sqlite:"), dialectSQLite, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", url, dialectPostgres, nil
	}
	return "", "", 0, fmt.Errorf("%w: unsupported database url %q", domain.ErrStore, url)
}

// rebind converts ?-placeholders to the $n form Postgres expects.
func (s *Store) rebind(query string) string {
	if s.dialect == dialectSQLite {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) migrate() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_tokens (
			id %s,
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, provider)
		)`, serial),
		`CREATE TABLE IF NOT EXISTS conversation_threads (
			conversation_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_memory (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_conversation
			ON conversation_memory (conversation_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_expiry
			ON user_tokens (expires_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}
