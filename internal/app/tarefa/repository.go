package tarefa

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTaskNotFound = errors.New("tarefa not found")

// Task statuses. CONCLUIDO and CONCLUIDA are accepted as synonyms.
const (
	StatusPendente            = "PENDENTE"
	StatusConcluido           = "CONCLUIDO"
	StatusConcluida           = "CONCLUIDA"
	StatusCancelado           = "CANCELADO"
	StatusReprovado           = "REPROVADO"
	StatusAguardandoAprovacao = "AGUARDANDO_APROVACAO"
)

// Task priorities.
const (
	PrioridadeBaixa   = "BAIXA"
	PrioridadeMedia   = "MEDIA"
	PrioridadeAlta    = "ALTA"
	PrioridadeUrgente = "URGENTE"
)

// Task is one unit of departmental work inside an employee reassignment.
type Task struct {
	ID              string     `json:"id"`
	RemanejamentoID string     `json:"remanejamento_id"`
	Tipo            string     `json:"tipo"`
	Descricao       string     `json:"descricao"`
	Responsavel     string     `json:"responsavel"`
	SetorID         string     `json:"setor_id,omitempty"`
	Status          string     `json:"status"`
	Prioridade      string     `json:"prioridade"`
	DataCriacao     time.Time  `json:"data_criacao"`
	DataLimite      time.Time  `json:"data_limite"`
	DataVencimento  *time.Time `json:"data_vencimento,omitempty"`
	DataConclusao   *time.Time `json:"data_conclusao,omitempty"`
}

type Repository interface {
	Insert(ctx context.Context, task Task) error
	GetByID(ctx context.Context, id string) (Task, error)
	ListByRemanejamento(ctx context.Context, remanejamentoID, statusFilter string) ([]Task, error)
	UpdateStatus(ctx context.Context, id, status string, conclusao *time.Time) error
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createTarefasSQL = `
CREATE TABLE IF NOT EXISTS tarefas_remanejamento (
  id text PRIMARY KEY,
  remanejamento_id text NOT NULL REFERENCES remanejamentos_funcionarios(id),
  tipo text NOT NULL,
  descricao text NOT NULL DEFAULT '',
  responsavel text NOT NULL,
  setor_id text NOT NULL DEFAULT '',
  status text NOT NULL DEFAULT 'PENDENTE',
  prioridade text NOT NULL DEFAULT 'MEDIA',
  data_criacao timestamptz NOT NULL,
  data_limite timestamptz NOT NULL,
  data_vencimento timestamptz,
  data_conclusao timestamptz
)`

const alterTarefasSetorSQL = `
ALTER TABLE tarefas_remanejamento
ADD COLUMN IF NOT EXISTS setor_id text NOT NULL DEFAULT ''`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createTarefasSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, alterTarefasSetorSQL); err != nil {
		return err
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, task Task) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO tarefas_remanejamento (
		   id, remanejamento_id, tipo, descricao, responsavel, setor_id,
		   status, prioridade, data_criacao, data_limite, data_vencimento, data_conclusao
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		task.ID,
		task.RemanejamentoID,
		task.Tipo,
		task.Descricao,
		task.Responsavel,
		task.SetorID,
		task.Status,
		task.Prioridade,
		task.DataCriacao,
		task.DataLimite,
		task.DataVencimento,
		task.DataConclusao,
	)
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Task, error) {
	var t Task
	err := r.Pool.QueryRow(ctx,
		`SELECT id, remanejamento_id, tipo, descricao, responsavel, setor_id,
		        status, prioridade, data_criacao, data_limite, data_vencimento, data_conclusao
		 FROM tarefas_remanejamento
		 WHERE id = $1`,
		id,
	).Scan(
		&t.ID,
		&t.RemanejamentoID,
		&t.Tipo,
		&t.Descricao,
		&t.Responsavel,
		&t.SetorID,
		&t.Status,
		&t.Prioridade,
		&t.DataCriacao,
		&t.DataLimite,
		&t.DataVencimento,
		&t.DataConclusao,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}
	return t, nil
}

// ListByRemanejamento returns the task set of one reassignment. Cancelled
// tasks are excluded unconditionally; an optional status filter narrows the
// result but can never re-include them.
func (r *PostgresRepository) ListByRemanejamento(ctx context.Context, remanejamentoID, statusFilter string) ([]Task, error) {
	query := `SELECT id, remanejamento_id, tipo, descricao, responsavel, setor_id,
	                 status, prioridade, data_criacao, data_limite, data_vencimento, data_conclusao
	          FROM tarefas_remanejamento
	          WHERE remanejamento_id = $1 AND status <> 'CANCELADO'`
	args := []any{remanejamentoID}
	if statusFilter != "" {
		query += ` AND status = $2`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY data_criacao ASC`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(
			&t.ID,
			&t.RemanejamentoID,
			&t.Tipo,
			&t.Descricao,
			&t.Responsavel,
			&t.SetorID,
			&t.Status,
			&t.Prioridade,
			&t.DataCriacao,
			&t.DataLimite,
			&t.DataVencimento,
			&t.DataConclusao,
		); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status string, conclusao *time.Time) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE tarefas_remanejamento
		 SET status = $2, data_conclusao = $3
		 WHERE id = $1`,
		id, status, conclusao,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}
