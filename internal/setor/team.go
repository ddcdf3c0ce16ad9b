package setor

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TeamDirectory resolves a sector code to a concrete owning team. A miss is
// reported as found=false, never as an error; callers leave the team unset.
type TeamDirectory interface {
	FindTeamIDBySector(ctx context.Context, sector string) (string, bool, error)
}

type PostgresTeamDirectory struct {
	Pool *pgxpool.Pool
}

func NewPostgresTeamDirectory(pool *pgxpool.Pool) *PostgresTeamDirectory {
	return &PostgresTeamDirectory{Pool: pool}
}

const createEquipesSQL = `
CREATE TABLE IF NOT EXISTS equipes (
  id text PRIMARY KEY,
  nome text NOT NULL,
  setor text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT now()
)`

func (d *PostgresTeamDirectory) EnsureSchema(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, createEquipesSQL)
	return err
}

func (d *PostgresTeamDirectory) FindTeamIDBySector(ctx context.Context, sector string) (string, bool, error) {
	var id string
	err := d.Pool.QueryRow(ctx,
		`SELECT id
		 FROM equipes
		 WHERE nome ILIKE '%' || $1 || '%' OR setor ILIKE '%' || $1 || '%'
		 ORDER BY nome
		 LIMIT 1`,
		sector,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}
