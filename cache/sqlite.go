package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore is a Store backed by a SQLite database file.
// Several processes on one host can share the file.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
	now        func() time.Time
}

// NewSQLiteStore opens (and if needed creates) the cache table in the given file.
// If filename is empty, a shared in-memory db is opened.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %s: %w", filename, err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			expires INTEGER,
			bytes BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)",
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite cache: %w", err)
		}
	}
	return &SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
		now:        time.Now,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expires int64
	var bytes []byte
	err := s.db.QueryRowContext(ctx, "SELECT expires, bytes FROM cache WHERE key = ?", key).Scan(&expires, &bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.now().UnixMilli() >= expires {
		return nil, false, nil
	}
	return bytes, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	expires := s.now().Add(ttl).UnixMilli()
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO cache (key, expires, bytes) VALUES (?, ?, ?)", key, expires, value)
	if err != nil {
		return err
	}
	// expired rows are only dropped lazily, piggyback on writes
	_, err = s.db.ExecContext(ctx, "DELETE FROM cache WHERE expires <= ?", s.now().UnixMilli())
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key)
	return err
}

func (s *SQLiteStore) DeletePrefix(ctx context.Context, prefix string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
