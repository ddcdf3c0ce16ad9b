// Package engine recomputes the employee-level task status from the live
// task set. It is the only writer of a remanejamento's status_tarefas field.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nuid"
	"github.com/prestserv/remanejo/internal/app/remanejamento"
	"github.com/prestserv/remanejo/internal/app/tarefa"
	"github.com/prestserv/remanejo/internal/contracts"
	"github.com/prestserv/remanejo/internal/platform/metrics"
	"github.com/prestserv/remanejo/internal/setor"
	"github.com/prestserv/remanejo/internal/sharding"
)

// ErrRemanejamentoMissing reports a recompute against a reassignment that no
// longer exists. The whole recompute aborts with no partial writes.
var ErrRemanejamentoMissing = errors.New("remanejamento not found at recompute time")

// ErrConcurrentUpdate reports that the optimistic status write lost every
// retry attempt.
var ErrConcurrentUpdate = errors.New("status recompute lost concurrent update race")

const maxRecomputeAttempts = 3

const bounceObservacao = "Devolvido para TREINAMENTO automaticamente: nenhuma tarefa de treinamento ativa encontrada com o remanejamento sob responsabilidade da LOGISTICA."

var (
	recomputeTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "remanejo_recompute_total",
		Help: "Status recompute passes by resulting status.",
	}, []string{"status"})
	bounceTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "remanejo_bounce_total",
		Help: "Automatic bounces back to TREINAMENTO by owning department.",
	}, []string{"responsavel"})
)

func init() {
	metrics.Default.MustRegister(recomputeTotal, bounceTotal)
}

type PublishFunc func(subject string, payload []byte) error

type TaskLister interface {
	ListByRemanejamento(ctx context.Context, remanejamentoID, statusFilter string) ([]tarefa.Task, error)
}

type Outcome struct {
	Status   string   `json:"status"`
	Changed  bool     `json:"changed"`
	Bounced  bool     `json:"bounced"`
	Warnings []string `json:"warnings,omitempty"`
}

type Service struct {
	Tasks          TaskLister
	Remanejamentos remanejamento.Repository
	Publish        PublishFunc
	Now            func() time.Time
	NewID          func() string

	// One stripe per shard serializes recomputes for the same reassignment.
	locks [sharding.ShardCount]sync.Mutex
}

func NewService(tasks TaskLister, remStore remanejamento.Repository, publish PublishFunc) *Service {
	return &Service{
		Tasks:          tasks,
		Remanejamentos: remStore,
		Publish:        publish,
		Now:            func() time.Time { return time.Now().UTC() },
		NewID:          nuid.Next,
	}
}

// BounceToTraining is the ownership-routing override: a reassignment owned by
// LOGISTICA with no active training task is forced back to ATENDER TAREFAS.
func BounceToTraining(owner string, hasActiveTraining bool) bool {
	return setor.Resolve(owner) == setor.Logistica && !hasActiveTraining
}

// Recompute derives status_tarefas from the non-cancelled task set and
// persists it, emitting an audit entry and, on a bounce, an automatic
// observation. Audit and observation are best-effort; their failures come
// back as warnings on the outcome.
func (s *Service) Recompute(ctx context.Context, remanejamentoID, actor string) (Outcome, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "Sistema"
	}

	mu := &s.locks[sharding.GetShardID(remanejamentoID)]
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < maxRecomputeAttempts; attempt++ {
		rem, err := s.Remanejamentos.GetByID(ctx, remanejamentoID)
		if err != nil {
			if errors.Is(err, remanejamento.ErrNotFound) {
				log.Printf("recompute aborted, remanejamento %s missing", remanejamentoID)
				return Outcome{}, ErrRemanejamentoMissing
			}
			return Outcome{}, err
		}

		tasks, err := s.Tasks.ListByRemanejamento(ctx, remanejamentoID, "")
		if err != nil {
			return Outcome{}, err
		}

		// An empty set is vacuously all-done.
		allDone := true
		hasActiveTraining := false
		for _, t := range tasks {
			if !tarefa.IsResolved(t.Status) {
				allDone = false
			}
			if strings.Contains(setor.Normalize(t.Responsavel), "TREIN") {
				hasActiveTraining = true
			}
		}

		status := remanejamento.StatusAtenderTarefas
		if allDone {
			status = remanejamento.StatusSubmeterRascunho
		}
		bounced := BounceToTraining(rem.ResponsavelAtual, hasActiveTraining)
		if bounced {
			status = remanejamento.StatusAtenderTarefas
		}

		err = s.Remanejamentos.UpdateStatusTarefas(ctx, remanejamentoID, status, rem.Version)
		if errors.Is(err, remanejamento.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return Outcome{}, err
		}

		out := Outcome{
			Status:  status,
			Changed: status != rem.StatusTarefas,
			Bounced: bounced,
		}
		out.Warnings = append(out.Warnings, s.publishAudit(remanejamentoID, rem.StatusTarefas, status, actor)...)
		if bounced {
			out.Warnings = append(out.Warnings, s.appendBounceObservacao(ctx, remanejamentoID, actor)...)
		}

		recomputeTotal.WithLabelValues(status).Inc()
		if bounced {
			bounceTotal.WithLabelValues(setor.Resolve(rem.ResponsavelAtual)).Inc()
		}
		return out, nil
	}
	return Outcome{}, ErrConcurrentUpdate
}

// RecomputeAfterMutation adapts Recompute for callers that already committed
// a task write: the recompute is a best-effort consistency pass, so every
// failure is downgraded to a warning.
func (s *Service) RecomputeAfterMutation(ctx context.Context, remanejamentoID, actor string) ([]string, error) {
	out, err := s.Recompute(ctx, remanejamentoID, actor)
	if err != nil {
		log.Printf("recompute after mutation failed for remanejamento %s: %v", remanejamentoID, err)
		return []string{fmt.Sprintf("recomputo de status nao aplicado: %v", err)}, nil
	}
	return out.Warnings, nil
}

func (s *Service) publishAudit(remanejamentoID, oldStatus, newStatus, actor string) []string {
	if s.Publish == nil {
		return nil
	}
	event := contracts.AuditEvent{
		EventID:         s.NewID(),
		RemanejamentoID: remanejamentoID,
		Tipo:            contracts.AuditAtualizacaoStatus,
		Campo:           "status_tarefas",
		ValorAntigo:     oldStatus,
		ValorNovo:       newStatus,
		Autor:           actor,
		OccurredAt:      s.Now(),
		ShardID:         sharding.GetShardID(remanejamentoID),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return []string{fmt.Sprintf("audit payload invalido: %v", err)}
	}
	if err := s.Publish(sharding.AuditSubject(remanejamentoID), payload); err != nil {
		log.Printf("audit publish failed for remanejamento %s: %v", remanejamentoID, err)
		return []string{fmt.Sprintf("publicacao de auditoria falhou: %v", err)}
	}
	return nil
}

// appendBounceObservacao records the automatic bounce note. It fires on
// every bounced pass, including passes where the stored status did not move,
// but skips the write when the latest observation already is the bounce note
// so that defensive repeat recomputes cannot pile up duplicates.
func (s *Service) appendBounceObservacao(ctx context.Context, remanejamentoID, actor string) []string {
	var warnings []string
	existing, err := s.Remanejamentos.ListObservacoes(ctx, remanejamentoID)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("observacoes existentes indisponiveis: %v", err))
	} else if len(existing) > 0 && existing[0].Texto == bounceObservacao {
		return nil
	}

	obs := remanejamento.Observacao{
		ID:              s.NewID(),
		RemanejamentoID: remanejamentoID,
		Autor:           actor,
		Texto:           bounceObservacao,
		DataCriacao:     s.Now(),
	}
	if err := s.Remanejamentos.InsertObservacao(ctx, obs); err != nil {
		log.Printf("bounce observation write failed for remanejamento %s: %v", remanejamentoID, err)
		warnings = append(warnings, fmt.Sprintf("observacao automatica nao registrada: %v", err))
	}
	return warnings
}
