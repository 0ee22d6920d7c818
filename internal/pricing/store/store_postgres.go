package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bullion/internal/metal"
	"bullion/internal/pricing"
	"bullion/pkg/platform/sentinel"
)

// PostgresHistory persists the resolution log in the price_history table.
type PostgresHistory struct {
	db *sql.DB
}

func NewPostgresHistory(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (s *PostgresHistory) Append(ctx context.Context, e pricing.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_history (id, metal, purity, price_per_gram, source, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), string(e.Metal), int(e.Purity), e.PricePerGram, string(e.Source), e.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("append price history: %w", err)
	}
	return nil
}

func (s *PostgresHistory) Latest(ctx context.Context, m metal.Metal, p metal.Purity) (*pricing.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT metal, purity, price_per_gram, source, resolved_at
		FROM price_history
		WHERE metal = $1 AND purity = $2
		ORDER BY resolved_at DESC, seq DESC
		LIMIT 1`, string(m), int(p))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest price history: %w", err)
	}
	return &e, nil
}

func (s *PostgresHistory) List(ctx context.Context, m metal.Metal, p metal.Purity, limit int) ([]pricing.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT metal, purity, price_per_gram, source, resolved_at
		FROM price_history
		WHERE metal = $1 AND purity = $2
		ORDER BY resolved_at DESC, seq DESC
		LIMIT $3`, string(m), int(p), limit)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	defer rows.Close()

	var out []pricing.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (pricing.HistoryEntry, error) {
	var (
		e      pricing.HistoryEntry
		m      string
		purity int
		source string
	)
	if err := row.Scan(&m, &purity, &e.PricePerGram, &source, &e.ResolvedAt); err != nil {
		return pricing.HistoryEntry{}, err
	}
	e.Metal = metal.Metal(m)
	e.Purity = metal.Purity(purity)
	e.Source = pricing.Tier(source)
	return e, nil
}
