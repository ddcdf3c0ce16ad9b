package tarefa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nuid"
	"github.com/prestserv/remanejo/internal/app/remanejamento"
	"github.com/prestserv/remanejo/internal/contracts"
	"github.com/prestserv/remanejo/internal/prazo"
	"github.com/prestserv/remanejo/internal/setor"
	"github.com/prestserv/remanejo/internal/sharding"
)

var ErrTipoRequired = errors.New("tipo is required")
var ErrResponsavelRequired = errors.New("responsavel is required")
var ErrStatusInvalido = errors.New("status is not a valid tarefa status")

// ErrPrestservLocked rejects task creation while the employee's service
// record is under final review or already complete.
var ErrPrestservLocked = errors.New("cannot add tasks while final review is in progress or complete")

type PublishFunc func(subject string, payload []byte) error

// RecomputeFunc triggers the aggregate status engine after a task mutation.
// It returns warnings from best-effort side effects; errors are downgraded to
// warnings by the service since the task write already succeeded.
type RecomputeFunc func(ctx context.Context, remanejamentoID, actor string) ([]string, error)

type RemanejamentoStore interface {
	GetByID(ctx context.Context, id string) (remanejamento.Remanejamento, error)
	GetSolicitacao(ctx context.Context, id string) (remanejamento.Solicitacao, error)
}

type Service struct {
	Repo           Repository
	Remanejamentos RemanejamentoStore
	Teams          setor.TeamDirectory
	Publish        PublishFunc
	Recompute      RecomputeFunc
	Now            func() time.Time
	NewID          func() string
}

func NewService(repo Repository, remStore RemanejamentoStore, teams setor.TeamDirectory, publish PublishFunc, recompute RecomputeFunc) *Service {
	return &Service{
		Repo:           repo,
		Remanejamentos: remStore,
		Teams:          teams,
		Publish:        publish,
		Recompute:      recompute,
		Now:            func() time.Time { return time.Now().UTC() },
		NewID:          nuid.Next,
	}
}

type CreateRequest struct {
	RemanejamentoID string
	Tipo            string
	Descricao       string
	Responsavel     string
	Prioridade      string
	DataLimite      *time.Time
	DataVencimento  *time.Time
}

// NormalizePrioridade maps free-form priority text onto the canonical enum.
// Unrecognized input lands on MEDIA.
func NormalizePrioridade(raw string) string {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "baixa":
		return PrioridadeBaixa
	case "media", "normal":
		return PrioridadeMedia
	case "alta":
		return PrioridadeAlta
	case "urgente":
		return PrioridadeUrgente
	default:
		return PrioridadeMedia
	}
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusPendente, StatusConcluido, StatusConcluida, StatusCancelado, StatusReprovado, StatusAguardandoAprovacao:
		return true
	default:
		return false
	}
}

// IsResolved reports whether a status counts as resolved for the rollup.
// Cancelled counts as resolved: a reassignment holding only cancelled tasks
// is considered fully submitted.
func IsResolved(status string) bool {
	switch status {
	case StatusConcluido, StatusConcluida, StatusCancelado:
		return true
	default:
		return false
	}
}

// Create validates and persists one task, then triggers the aggregate status
// recompute. Validation, missing-parent and prestserv-gate failures happen
// before any write; recompute failures after the insert come back as
// warnings, never as an error.
func (s *Service) Create(ctx context.Context, actor string, req CreateRequest) (Task, []string, error) {
	if strings.TrimSpace(req.Tipo) == "" {
		return Task{}, nil, ErrTipoRequired
	}
	if strings.TrimSpace(req.Responsavel) == "" {
		return Task{}, nil, ErrResponsavelRequired
	}

	rem, err := s.Remanejamentos.GetByID(ctx, strings.TrimSpace(req.RemanejamentoID))
	if err != nil {
		return Task{}, nil, err
	}
	switch rem.StatusPrestserv {
	case remanejamento.PrestservEmAvaliacao, remanejamento.PrestservConcluido:
		return Task{}, nil, ErrPrestservLocked
	}

	var warnings []string
	now := s.Now()

	prioridade := req.Prioridade
	if strings.TrimSpace(prioridade) == "" {
		sol, solErr := s.Remanejamentos.GetSolicitacao(ctx, rem.SolicitacaoID)
		if solErr != nil {
			warnings = append(warnings, fmt.Sprintf("prioridade da solicitacao indisponivel: %v", solErr))
		} else {
			prioridade = sol.Prioridade
		}
	}

	dataLimite := prazo.DefaultDeadline(now, rem.DataAdmissao)
	if req.DataLimite != nil {
		dataLimite = *req.DataLimite
	}

	setorID := ""
	if s.Teams != nil {
		code := setor.Resolve(req.Responsavel)
		id, found, dirErr := s.Teams.FindTeamIDBySector(ctx, code)
		if dirErr != nil {
			warnings = append(warnings, fmt.Sprintf("equipe do setor %s nao resolvida: %v", code, dirErr))
		} else if found {
			setorID = id
		}
	}

	task := Task{
		ID:              s.NewID(),
		RemanejamentoID: rem.ID,
		Tipo:            strings.TrimSpace(req.Tipo),
		Descricao:       strings.TrimSpace(req.Descricao),
		Responsavel:     strings.TrimSpace(req.Responsavel),
		SetorID:         setorID,
		Status:          StatusPendente,
		Prioridade:      NormalizePrioridade(prioridade),
		DataCriacao:     now,
		DataLimite:      dataLimite,
		DataVencimento:  req.DataVencimento,
	}
	if err := s.Repo.Insert(ctx, task); err != nil {
		return Task{}, nil, err
	}

	warnings = append(warnings, s.publishAudit(contracts.AuditEvent{
		RemanejamentoID: rem.ID,
		TarefaID:        task.ID,
		Tipo:            contracts.AuditCriacao,
		Campo:           "status",
		ValorNovo:       task.Status,
		Autor:           actorOrSistema(actor),
	})...)
	warnings = append(warnings, s.triggerRecompute(ctx, rem.ID, actor)...)

	return task, warnings, nil
}

// UpdateStatus applies an externally driven transition (completion, approval,
// rejection, cancellation) and triggers the recompute.
func (s *Service) UpdateStatus(ctx context.Context, actor, taskID, newStatus string) (Task, []string, error) {
	newStatus = strings.ToUpper(strings.TrimSpace(newStatus))
	if !IsValidStatus(newStatus) {
		return Task{}, nil, ErrStatusInvalido
	}

	task, err := s.Repo.GetByID(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return Task{}, nil, err
	}

	var conclusao *time.Time
	if newStatus == StatusConcluido || newStatus == StatusConcluida {
		now := s.Now()
		conclusao = &now
	}
	if err := s.Repo.UpdateStatus(ctx, task.ID, newStatus, conclusao); err != nil {
		return Task{}, nil, err
	}

	oldStatus := task.Status
	task.Status = newStatus
	task.DataConclusao = conclusao

	warnings := s.publishAudit(contracts.AuditEvent{
		RemanejamentoID: task.RemanejamentoID,
		TarefaID:        task.ID,
		Tipo:            contracts.AuditAtualizacaoStatus,
		Campo:           "status",
		ValorAntigo:     oldStatus,
		ValorNovo:       newStatus,
		Autor:           actorOrSistema(actor),
	})
	warnings = append(warnings, s.triggerRecompute(ctx, task.RemanejamentoID, actor)...)

	return task, warnings, nil
}

// List returns one reassignment's tasks. Cancelled tasks never appear, even
// when explicitly asked for.
func (s *Service) List(ctx context.Context, remanejamentoID, statusFilter string) ([]Task, error) {
	statusFilter = strings.ToUpper(strings.TrimSpace(statusFilter))
	if statusFilter == StatusCancelado {
		return []Task{}, nil
	}
	return s.Repo.ListByRemanejamento(ctx, remanejamentoID, statusFilter)
}

func (s *Service) publishAudit(event contracts.AuditEvent) []string {
	if s.Publish == nil {
		return nil
	}
	event.EventID = s.NewID()
	event.OccurredAt = s.Now()
	event.ShardID = sharding.GetShardID(event.RemanejamentoID)

	payload, err := json.Marshal(event)
	if err != nil {
		return []string{fmt.Sprintf("audit payload invalido: %v", err)}
	}
	if err := s.Publish(sharding.AuditSubject(event.RemanejamentoID), payload); err != nil {
		return []string{fmt.Sprintf("publicacao de auditoria falhou: %v", err)}
	}
	return nil
}

func (s *Service) triggerRecompute(ctx context.Context, remanejamentoID, actor string) []string {
	if s.Recompute == nil {
		return nil
	}
	warnings, err := s.Recompute(ctx, remanejamentoID, actor)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("recomputo de status falhou: %v", err))
	}
	return warnings
}

func actorOrSistema(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "Sistema"
	}
	return actor
}
