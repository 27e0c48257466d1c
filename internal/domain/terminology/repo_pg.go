package terminology

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates a Postgres-backed terminology repository over the
// reference_terminology table.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) GetDisplay(ctx context.Context, code, system, language string) (string, error) {
	var display string
	err := r.pool.QueryRow(ctx,
		`SELECT display FROM reference_terminology
		 WHERE code = $1 AND code_system = $2 AND language = $3`,
		code, system, language).Scan(&display)
	if errors.Is(err, pgx.ErrNoRows) && language != "en" {
		// The reference dataset always carries an English display; fall back
		// to it before reporting a miss.
		err = r.pool.QueryRow(ctx,
			`SELECT display FROM reference_terminology
			 WHERE code = $1 AND code_system = $2 AND language = 'en'`,
			code, system).Scan(&display)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("terminology get: %w", err)
	}
	return display, nil
}
