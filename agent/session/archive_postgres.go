package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/vndang/shoptalk/agent/contract"
)

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// snapshotRow is the bun model backing the session_snapshots table. The
// snapshot itself rides as a JSON payload so schema churn in the memory map
// never needs a migration.
type snapshotRow struct {
	bun.BaseModel `bun:"table:session_snapshots"`

	SessionID string    `bun:"session_id,pk"`
	UserID    string    `bun:"user_id"`
	Payload   []byte    `bun:"payload,type:jsonb"`
	SavedAt   time.Time `bun:"saved_at"`
}

// PostgresArchive persists session snapshots in Postgres through bun.
type PostgresArchive struct {
	db *bun.DB
}

var _ Archive = (*PostgresArchive)(nil)

func NewPostgresArchive(ctx context.Context, cfg PostgresConfig) (*PostgresArchive, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	if _, err := db.NewCreateTable().
		Model((*snapshotRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}

	return &PostgresArchive{db: db}, nil
}

func (a *PostgresArchive) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, contractx.ErrInvalidSession
	}

	var row snapshotRow
	err := a.db.NewSelect().
		Model(&row).
		Where("session_id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(row.Payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot payload: %w", err)
	}
	return &snap, nil
}

func (a *PostgresArchive) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.SessionID) == "" {
		return contractx.ErrInvalidSession
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	row := snapshotRow{
		SessionID: snap.SessionID,
		UserID:    snap.UserID,
		Payload:   payload,
		SavedAt:   snap.SavedAt,
	}

	_, err = a.db.NewInsert().
		Model(&row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("payload = EXCLUDED.payload").
		Set("saved_at = EXCLUDED.saved_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (a *PostgresArchive) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return contractx.ErrInvalidSession
	}
	_, err := a.db.NewDelete().
		Model((*snapshotRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying database pool.
func (a *PostgresArchive) Close() error {
	return a.db.Close()
}
