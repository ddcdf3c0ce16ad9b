package remanejamento

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("remanejamento not found")
var ErrSolicitacaoNotFound = errors.New("solicitacao not found")

// ErrVersionConflict reports a stale optimistic write on status_tarefas.
var ErrVersionConflict = errors.New("remanejamento was modified concurrently")

// Employee-level rollup status, derived from the task set by the engine.
const (
	StatusSubmeterRascunho = "SUBMETER RASCUNHO"
	StatusAtenderTarefas   = "ATENDER TAREFAS"
)

// Prestserv lifecycle gates that block new task creation.
const (
	PrestservEmAvaliacao = "EM_AVALIACAO"
	PrestservConcluido   = "CONCLUIDO"
)

// Solicitacao groups one or more employee reassignments under one
// origin/destination contract pair and a priority.
type Solicitacao struct {
	ID              string    `json:"id"`
	ContratoOrigem  string    `json:"contrato_origem"`
	ContratoDestino string    `json:"contrato_destino"`
	Prioridade      string    `json:"prioridade"`
	DataCriacao     time.Time `json:"data_criacao"`
}

// Remanejamento is one employee's participation in a solicitação.
// StatusTarefas is derived: only the engine writes it, through
// UpdateStatusTarefas.
type Remanejamento struct {
	ID               string     `json:"id"`
	SolicitacaoID    string     `json:"solicitacao_id"`
	FuncionarioID    string     `json:"funcionario_id"`
	ResponsavelAtual string     `json:"responsavel_atual"`
	StatusTarefas    string     `json:"status_tarefas"`
	StatusPrestserv  string     `json:"status_prestserv"`
	DataAdmissao     *time.Time `json:"data_admissao,omitempty"`
	Version          int64      `json:"-"`
}

// Observacao is an append-only annotation, human or engine-written.
type Observacao struct {
	ID              string    `json:"id"`
	RemanejamentoID string    `json:"remanejamento_id"`
	Autor           string    `json:"autor"`
	Texto           string    `json:"texto"`
	DataCriacao     time.Time `json:"data_criacao"`
}

type Repository interface {
	GetByID(ctx context.Context, id string) (Remanejamento, error)
	GetSolicitacao(ctx context.Context, id string) (Solicitacao, error)
	UpdateStatusTarefas(ctx context.Context, id, status string, expectedVersion int64) error
	InsertObservacao(ctx context.Context, obs Observacao) error
	// ListObservacoes returns observations newest first.
	ListObservacoes(ctx context.Context, remanejamentoID string) ([]Observacao, error)
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createSolicitacoesSQL = `
CREATE TABLE IF NOT EXISTS solicitacoes (
  id text PRIMARY KEY,
  contrato_origem text NOT NULL,
  contrato_destino text NOT NULL,
  prioridade text NOT NULL DEFAULT 'MEDIA',
  data_criacao timestamptz NOT NULL DEFAULT now()
)`

const createRemanejamentosSQL = `
CREATE TABLE IF NOT EXISTS remanejamentos_funcionarios (
  id text PRIMARY KEY,
  solicitacao_id text NOT NULL REFERENCES solicitacoes(id),
  funcionario_id text NOT NULL,
  responsavel_atual text NOT NULL DEFAULT '',
  status_tarefas text NOT NULL DEFAULT 'SUBMETER RASCUNHO',
  status_prestserv text NOT NULL DEFAULT '',
  data_admissao timestamptz,
  version bigint NOT NULL DEFAULT 0,
  data_criacao timestamptz NOT NULL DEFAULT now()
)`

const alterRemanejamentosVersionSQL = `
ALTER TABLE remanejamentos_funcionarios
ADD COLUMN IF NOT EXISTS version bigint NOT NULL DEFAULT 0`

const createObservacoesSQL = `
CREATE TABLE IF NOT EXISTS observacoes_remanejamento (
  id text PRIMARY KEY,
  remanejamento_id text NOT NULL REFERENCES remanejamentos_funcionarios(id),
  autor text NOT NULL DEFAULT 'Sistema',
  texto text NOT NULL,
  data_criacao timestamptz NOT NULL DEFAULT now()
)`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createSolicitacoesSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createRemanejamentosSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, alterRemanejamentosVersionSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createObservacoesSQL); err != nil {
		return err
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Remanejamento, error) {
	var rem Remanejamento
	err := r.Pool.QueryRow(ctx,
		`SELECT id, solicitacao_id, funcionario_id, responsavel_atual,
		        status_tarefas, status_prestserv, data_admissao, version
		 FROM remanejamentos_funcionarios
		 WHERE id = $1`,
		id,
	).Scan(
		&rem.ID,
		&rem.SolicitacaoID,
		&rem.FuncionarioID,
		&rem.ResponsavelAtual,
		&rem.StatusTarefas,
		&rem.StatusPrestserv,
		&rem.DataAdmissao,
		&rem.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Remanejamento{}, ErrNotFound
		}
		return Remanejamento{}, err
	}
	return rem, nil
}

func (r *PostgresRepository) GetSolicitacao(ctx context.Context, id string) (Solicitacao, error) {
	var s Solicitacao
	err := r.Pool.QueryRow(ctx,
		`SELECT id, contrato_origem, contrato_destino, prioridade, data_criacao
		 FROM solicitacoes
		 WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.ContratoOrigem, &s.ContratoDestino, &s.Prioridade, &s.DataCriacao)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Solicitacao{}, ErrSolicitacaoNotFound
		}
		return Solicitacao{}, err
	}
	return s, nil
}

// UpdateStatusTarefas performs the optimistic write the engine relies on.
// Callers have already loaded the row, so zero affected rows means a stale
// version, not a missing record.
func (r *PostgresRepository) UpdateStatusTarefas(ctx context.Context, id, status string, expectedVersion int64) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE remanejamentos_funcionarios
		 SET status_tarefas = $2, version = version + 1
		 WHERE id = $1 AND version = $3`,
		id, status, expectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *PostgresRepository) InsertObservacao(ctx context.Context, obs Observacao) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO observacoes_remanejamento (id, remanejamento_id, autor, texto, data_criacao)
		 VALUES ($1, $2, $3, $4, $5)`,
		obs.ID, obs.RemanejamentoID, obs.Autor, obs.Texto, obs.DataCriacao,
	)
	return err
}

func (r *PostgresRepository) ListObservacoes(ctx context.Context, remanejamentoID string) ([]Observacao, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, remanejamento_id, autor, texto, data_criacao
		 FROM observacoes_remanejamento
		 WHERE remanejamento_id = $1
		 ORDER BY data_criacao DESC`,
		remanejamentoID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Observacao
	for rows.Next() {
		var o Observacao
		if err := rows.Scan(&o.ID, &o.RemanejamentoID, &o.Autor, &o.Texto, &o.DataCriacao); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}
