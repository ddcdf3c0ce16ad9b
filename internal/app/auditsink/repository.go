package auditsink

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prestserv/remanejo/internal/contracts"
)

const createHistoricoTableSQL = `
CREATE TABLE IF NOT EXISTS remanejamento_historico (
  event_id text PRIMARY KEY,
  remanejamento_id text NOT NULL,
  tarefa_id text NOT NULL DEFAULT '',
  tipo text NOT NULL,
  campo text NOT NULL DEFAULT '',
  valor_antigo text NOT NULL DEFAULT '',
  valor_novo text NOT NULL DEFAULT '',
  autor text NOT NULL DEFAULT 'Sistema',
  shard_id integer NOT NULL,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createHistoricoOffsetsSQL = `
CREATE TABLE IF NOT EXISTS historico_offsets (
  remanejamento_id text PRIMARY KEY,
  last_event_seq bigint NOT NULL DEFAULT 0,
  updated_at timestamptz NOT NULL DEFAULT now()
)`

const insertHistoricoSQL = `
INSERT INTO remanejamento_historico (
  event_id, remanejamento_id, tarefa_id, tipo, campo,
  valor_antigo, valor_novo, autor, shard_id, occurred_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (event_id) DO NOTHING
`

const upsertHistoricoOffsetSQL = `
INSERT INTO historico_offsets (remanejamento_id, last_event_seq, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (remanejamento_id) DO UPDATE
SET last_event_seq = GREATEST(historico_offsets.last_event_seq, EXCLUDED.last_event_seq),
    updated_at = now()
`

type EventRepository struct {
	Pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{Pool: pool}
}

func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createHistoricoTableSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createHistoricoOffsetsSQL); err != nil {
		return err
	}
	return nil
}

func (r *EventRepository) InsertEvent(ctx context.Context, event contracts.AuditEvent, eventSeq uint64) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertHistoricoSQL,
		event.EventID,
		event.RemanejamentoID,
		event.TarefaID,
		event.Tipo,
		event.Campo,
		event.ValorAntigo,
		event.ValorNovo,
		event.Autor,
		event.ShardID,
		event.OccurredAt,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, upsertHistoricoOffsetSQL, event.RemanejamentoID, int64(eventSeq)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
