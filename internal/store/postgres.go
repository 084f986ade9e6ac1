package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"petling/internal/pet"
)

// PGStore persists the document as a single jsonb row, keeping the same
// whole-document contract as FileStore so the data layer can be pointed at
// Postgres without touching callers. Update runs inside a transaction that
// locks the row with SELECT ... FOR UPDATE, so concurrent writers from any
// process queue up instead of overwriting each other.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// init creates the schema and seeds the singleton row. The row must exist
// before any Update, because FOR UPDATE on a missing row locks nothing.
func (s *PGStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS petling_document (
			id         int PRIMARY KEY CHECK (id = 1),
			body       jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO petling_document (id, body)
		VALUES (1, '{}'::jsonb)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("seed document row: %w", err)
	}
	return nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

func (s *PGStore) View(ctx context.Context, fn func(doc *pet.Document) error) error {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM petling_document WHERE id = 1`).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			var doc pet.Document
			doc.Normalize()
			return fn(&doc)
		}
		return fmt.Errorf("load document: %w", err)
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return err
	}
	return fn(&doc)
}

// Update locks the document row for the duration of the read-modify-write.
// A failed fn rolls the transaction back and persists nothing.
func (s *PGStore) Update(ctx context.Context, fn func(doc *pet.Document) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT body FROM petling_document WHERE id = 1 FOR UPDATE`).Scan(&raw); err != nil {
		return fmt.Errorf("lock document: %w", err)
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE petling_document SET body = $1, updated_at = now() WHERE id = 1
	`, body); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return tx.Commit(ctx)
}

func decodeDocument(raw []byte) (pet.Document, error) {
	var doc pet.Document
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return pet.Document{}, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}
	}
	doc.Normalize()
	return doc, nil
}
