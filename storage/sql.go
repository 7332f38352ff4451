package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/interfaces"
)

const (
	nonceMetaKey      = "nonce"
	generationMetaKey = "generation"
)

// placeholderStyle selects how bind parameters are spelled in queries.
type placeholderStyle int

const (
	questionPlaceholders placeholderStyle = iota // ?
	dollarPlaceholders                           // $1, $2, ...
)

// sqlSnapshotStore keeps the snapshot as one row per entity plus a meta table
// holding the address nonce and the snapshot generation. Each Save rewrites both tables in one database
// transaction.
type sqlSnapshotStore struct {
	db           *sql.DB
	placeholders placeholderStyle
	log          *slog.Logger
	mu           sync.Mutex
}

func (s *sqlSnapshotStore) rebind(query string) string {
	if s.placeholders == questionPlaceholders {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlSnapshotStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			address TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			tombstoned INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *sqlSnapshotStore) load(ctx context.Context) (*interfaces.Snapshot, error) {
	var nonceStr string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM meta WHERE key = ?`), nonceMetaKey).Scan(&nonceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select meta: %w", err)
	}

	nonce, err := strconv.ParseUint(nonceStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}

	var generation uint64
	var generationStr string
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM meta WHERE key = ?`), generationMetaKey).Scan(&generationStr)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("select meta: %w", err)
	default:
		if generation, err = strconv.ParseUint(generationStr, 10, 64); err != nil {
			return nil, fmt.Errorf("decode generation: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT address, tombstoned, payload FROM entities ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := &interfaces.Snapshot{Generation: generation, Nonce: nonce}
	for rows.Next() {
		var (
			address    string
			tombstoned int
			payload    string
		)
		if err := rows.Scan(&address, &tombstoned, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		entry := interfaces.SnapshotEntry{
			Address:    common.HexToAddress(address),
			Tombstoned: tombstoned != 0,
		}
		if err := json.Unmarshal([]byte(payload), &entry.Entity); err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", address, err)
		}
		snapshot.Entities = append(snapshot.Entities, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	return snapshot, nil
}

func (s *sqlSnapshotStore) save(ctx context.Context, snapshot *interfaces.Snapshot) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}

	insert := s.rebind(`INSERT INTO entities(address, seq, tombstoned, payload) VALUES(?, ?, ?, ?)`)
	for i, entry := range snapshot.Entities {
		payload, err := json.Marshal(entry.Entity)
		if err != nil {
			return fmt.Errorf("encode entity %s: %w", entry.Address.Hex(), err)
		}
		tombstoned := 0
		if entry.Tombstoned {
			tombstoned = 1
		}
		if _, err := tx.ExecContext(ctx, insert, entry.Address.Hex(), i, tombstoned, string(payload)); err != nil {
			return fmt.Errorf("insert entity %s: %w", entry.Address.Hex(), err)
		}
	}

	upsert := s.rebind(`INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if _, err := tx.ExecContext(ctx, upsert, nonceMetaKey, strconv.FormatUint(snapshot.Nonce, 10)); err != nil {
		return fmt.Errorf("upsert nonce: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, generationMetaKey, strconv.FormatUint(snapshot.Generation, 10)); err != nil {
		return fmt.Errorf("upsert generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.log.Debug("Stored snapshot in database",
		slog.Int("entities", len(snapshot.Entities)),
		slog.Duration("duration", time.Since(start)))

	return nil
}

func (s *sqlSnapshotStore) available(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(pingCtx); err != nil {
		s.log.Debug("Database unavailable", "err", err)
		return false
	}
	return true
}
