package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/straja-ai/emotion/internal/config"
	"github.com/straja-ai/emotion/internal/redact"
	"github.com/straja-ai/emotion/internal/sentiment"
)

const recordColumns = "id, username, text, label_raw, label, score, model, created_at"

// Postgres stores records in the emotion_records table, creating it and its
// indexes on first use.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*Postgres, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres store: dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn %s: %w", redact.URL(cfg.DSN), err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure tables: %w", err)
	}

	log.Info().
		Str("dsn", redact.URL(cfg.DSN)).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("postgres store ready")
	return s, nil
}

func (s *Postgres) ensureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS emotion_records (
			id TEXT PRIMARY KEY,
			username VARCHAR(100) NOT NULL,
			text TEXT NOT NULL,
			label_raw TEXT NOT NULL,
			label VARCHAR(16) NOT NULL,
			score DOUBLE PRECISION NOT NULL CHECK (score >= 0 AND score <= 1),
			model TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emotion_records_username ON emotion_records(username)`,
		`CREATE INDEX IF NOT EXISTS idx_emotion_records_label ON emotion_records(label)`,
		`CREATE INDEX IF NOT EXISTS idx_emotion_records_created_at ON emotion_records(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO emotion_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Username, rec.Text, rec.LabelRaw, string(rec.Label), rec.Score, rec.Model, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM emotion_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (s *Postgres) List(ctx context.Context, f Filter) (Page, error) {
	f = f.Normalize()
	where, args := whereClause(f)

	page := Page{Page: f.Page, PageSize: f.PageSize, Items: []Record{}}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emotion_records`+where, args...).Scan(&page.Total); err != nil {
		return Page{}, fmt.Errorf("failed to count records: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM emotion_records%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, f.PageSize, f.offset())...)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return Page{}, fmt.Errorf("failed to scan record: %w", err)
		}
		page.Items = append(page.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("failed to list records: %w", err)
	}
	return page, nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM emotion_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// whereClause renders the filter as " WHERE ..." with positional arguments.
func whereClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Username != "" {
		add("username = $%d", f.Username)
	}
	if f.Label != "" {
		add("label = $%d", string(f.Label))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec   Record
		label string
	)
	if err := row.Scan(&rec.ID, &rec.Username, &rec.Text, &rec.LabelRaw, &label, &rec.Score, &rec.Model, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.Label = sentiment.Category(label)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
