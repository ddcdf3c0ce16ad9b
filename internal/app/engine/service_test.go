package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prestserv/remanejo/internal/app/remanejamento"
	"github.com/prestserv/remanejo/internal/app/tarefa"
	"github.com/prestserv/remanejo/internal/contracts"
	"github.com/prestserv/remanejo/internal/setor"
)

type fakeRemStore struct {
	rems          map[string]remanejamento.Remanejamento
	observacoes   []remanejamento.Observacao
	conflictsLeft int
}

func newFakeRemStore(rems ...remanejamento.Remanejamento) *fakeRemStore {
	store := &fakeRemStore{rems: map[string]remanejamento.Remanejamento{}}
	for _, rem := range rems {
		store.rems[rem.ID] = rem
	}
	return store
}

func (f *fakeRemStore) GetByID(_ context.Context, id string) (remanejamento.Remanejamento, error) {
	rem, ok := f.rems[id]
	if !ok {
		return remanejamento.Remanejamento{}, remanejamento.ErrNotFound
	}
	return rem, nil
}

func (f *fakeRemStore) GetSolicitacao(_ context.Context, id string) (remanejamento.Solicitacao, error) {
	return remanejamento.Solicitacao{ID: id, Prioridade: "MEDIA"}, nil
}

func (f *fakeRemStore) UpdateStatusTarefas(_ context.Context, id, status string, expectedVersion int64) error {
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		rem := f.rems[id]
		rem.Version++
		f.rems[id] = rem
		return remanejamento.ErrVersionConflict
	}
	rem, ok := f.rems[id]
	if !ok || rem.Version != expectedVersion {
		return remanejamento.ErrVersionConflict
	}
	rem.StatusTarefas = status
	rem.Version++
	f.rems[id] = rem
	return nil
}

func (f *fakeRemStore) InsertObservacao(_ context.Context, obs remanejamento.Observacao) error {
	f.observacoes = append(f.observacoes, obs)
	return nil
}

func (f *fakeRemStore) ListObservacoes(_ context.Context, remanejamentoID string) ([]remanejamento.Observacao, error) {
	var result []remanejamento.Observacao
	for i := len(f.observacoes) - 1; i >= 0; i-- {
		if f.observacoes[i].RemanejamentoID == remanejamentoID {
			result = append(result, f.observacoes[i])
		}
	}
	return result, nil
}

type fakeTaskLister struct {
	tasks []tarefa.Task
}

func (f *fakeTaskLister) ListByRemanejamento(_ context.Context, remanejamentoID, statusFilter string) ([]tarefa.Task, error) {
	var result []tarefa.Task
	for _, t := range f.tasks {
		if t.RemanejamentoID != remanejamentoID || t.Status == tarefa.StatusCancelado {
			continue
		}
		if statusFilter != "" && t.Status != statusFilter {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func newTestService(tasks *fakeTaskLister, store *fakeRemStore, publish PublishFunc) *Service {
	svc := NewService(tasks, store, publish)
	svc.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	next := 0
	svc.NewID = func() string { next++; return fmt.Sprintf("evt-%d", next) }
	return svc
}

func TestRecompute_EmptyTaskSetIsSubmeterRascunho(t *testing.T) {
	store := newFakeRemStore(remanejamento.Remanejamento{
		ID:               "rem-1",
		ResponsavelAtual: setor.RH,
		StatusTarefas:    remanejamento.StatusAtenderTarefas,
	})
	svc := newTestService(&fakeTaskLister{}, store, func(_ string, _ []byte) error { return nil })

	out, err := svc.Recompute(context.Background(), "rem-1", "maria")
	if err != nil {
		t.Fatalf("Recompute returned error: %v", err)
	}
	if out.Status != remanejamento.StatusSubmeterRascunho || !out.Changed || out.Bounced {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if store.rems["rem-1"].StatusTarefas != remanejamento.StatusSubmeterRascunho {
		t.Fatalf("status not persisted: %+v", store.rems["rem-1"])
	}
}

func TestRecompute_PendingTrainingTaskBlocksBounce(t *testing.T) {
	store := newFakeRemStore(remanejamento.Remanejamento{
		ID:               "rem-1",
		ResponsavelAtual: setor.Logistica,
		StatusTarefas:    remanejamento.StatusAtenderTarefas,
	})
	tasks := &fakeTaskLister{tasks: []tarefa.Task{
		{ID: "t1", RemanejamentoID: "rem-1", Responsavel: "Treinamento", Status: tarefa.StatusPendente},
	}}
	svc := newTestService(tasks, store, func(_ string, _ []byte) error { return nil })

	out, err := svc.Recompute(context.Background(), "rem-1", "maria")
	if err != nil {
		t.Fatalf("Recompute returned error: %v", err)
	}
	// Active training task present: the override does not fire, the base
	// rule holds because work is still pending.
	if out.Status != remanejamento.StatusAtenderTarefas || out.Bounced {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(store.observacoes) != 0 {
		t.Fatalf("no observation expected, got %d", len(store.observacoes))
	}
}

func TestRecompute_CancelledTrainingTaskFiresBounce(t *testing.T) {
	store := newFakeRemStore(remanejamento.Remanejamento{
		ID:               "rem-1",
		ResponsavelAtual: setor.Logistica,
		StatusTarefas:    remanejamento.StatusSubmeterRascunho,
	})
	tasks := &fakeTaskLister{tasks: []tarefa.Task{
		{ID: "t1", RemanejamentoID: "rem-1", Responsavel: "Treinamento", Status: tarefa.StatusCancelado},
	}}
	svc := newTestService(tasks, store, func(_ string, _ []byte) error { return nil })

	out, err := svc.Recompute(context.Background(), "rem-1", "maria")
	if err != nil {
		t.Fatalf("Recompute returned error: %v", err)
	}
	// The cancelled task would count as done, but with no active training
	// task the LOGISTICA owner gets bounced back.
	if out.Status != remanejamento.StatusAtenderTarefas || !out.Bounced || !out.Changed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(store.observacoes) != 1 {
		t.Fatalf("expected 1 automatic observation, got %d", len(store.observacoes))
	}
	obs := store.observacoes[0]
	if obs.Autor != "maria" || obs.RemanejamentoID != "rem-1" {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}

func TestRecompute_BounceAppendsObservationWithoutStatusChange(t *testing.T) {
	// Cancelling the only training task while the rollup already reads
	// ATENDER TAREFAS: the stored value does not move, but the bounce still
	// fires and must leave its automatic observation.
	store := newFakeRemStore(remanejamento.Remanejamento{
		ID:               "rem-1",
		ResponsavelAtual: setor.Logistica,
		StatusTarefas:    remanejamento.StatusAtenderTarefas,
	})
	tasks := &fakeTaskLister{tasks: []tarefa.Task{
		{ID: "t1", RemanejamentoID: "rem-1", Responsavel: "Treinamento", Status: tarefa.StatusCancelado},
	}}
	svc := newTestService(tasks, store, func(_ string, _ []byte) error { return nil })

	out, err := svc.Recompute(context.Background(), "rem-1", "maria")
	if err != nil {
		t.Fatalf("Recompute returned error: %v", err)
	}
	if out.Status != remanejamento.StatusAtenderTarefas || !out.Bounced || out.Changed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(store.observacoes) != 1 {
		t.Fatalf("expected the automatic observation, got %d", len(store.observacoes))
	}
	if store.observacoes[0].Autor != "maria" {
		t.Fatalf("unexpected observation author: %+v", store.observacoes[0])
	}
}

func TestRecompute_AllDoneYieldsSubmeterRascunho(t *testing.T) {
	store := newFakeRemStore(remanejamento.Remanejamento{
		ID:               "rem-1",
		ResponsavelAtual: setor.RH,
		StatusTarefas:    remanejamento.StatusAtenderTarefas,
	})
	tasks := &fakeTaskLister{tasks: []tarefa.Task{
		{ID: "t1", RemanejamentoID: "rem-1", Responsavel: "RH", Status: tarefa.StatusConcluido},
		{ID: "t2", RemanejamentoID: "rem-1", Responsavel: "Medicina", Status: tarefa.StatusConcluida},
	}}

	var published contracts.AuditEvent
	svc := newTestService(tasks, store, func(_ string, payload []byte) error {
		return json.Unmarshal(payload, &published)
	})

	out, err := svc.Recompute(context.Background(), "rem-1", "")
	if err != nil {
		t.Fatalf("Recompute returned error: %v", err)
	}
	if out.Status != remanejamento.StatusSubmeterRascunho {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if published.Tipo != contracts.AuditAtualizacaoStatus ||
		published.ValorAntigo != remanejamento.StatusAtenderTarefas ||
		published.ValorNovo != remanejamento.StatusSubmeterRascunho ||
		published.Autor != "Sistema" {
		t.Fatalf("unexpected audit event: %+v", published)
	}
}

func TestRecompute_IdempotentSecondPass(t *testing.T) {
	store := newFakeRemStore(remanejamento.Remanejamento{
		ID:               "rem-1",
		ResponsavelAtual: setor.Logistica,
		StatusTarefas:    remanejamento.StatusSubmeterRascunho,
	})
	svc := newTestService(&fakeTaskLister{}, store, func(_ string, _ []byte) error { return nil })

	first, err := svc.Recompute(context.Background(), "rem-1", "maria")
	if err != nil {
		t.Fatalf("first Recompute returned error: %v", err)
	}
	if !first.Bounced || !first.Changed || len(store.observacoes) != 1 {
		t.Fatalf("unexpected first outcome: %+v (%d observacoes)", first, len(store.observacoes))
	}

	second, err := svc.Recompute(context.Background(), "rem-1", "maria")
	if err != nil {
		t.Fatalf("second Recompute returned error: %v", err)
	}
	if second.Status != first.Status || second.Changed {
		t.Fatalf("unexpected second outcome: %+v", second)
	}
	// No duplicate automatic observation on a no-change pass.
	if len(store.observacoes) != 1 {
		t.Fatalf("observation duplicated: %d entries", len(store.observacoes))
	}
}

func TestRecompute_MissingRemanejamentoAborts(t *testing.T) {
	svc := newTestService(&fakeTaskLister{}, newFakeRemStore(), func(_ string, _ []byte) error { return nil })
	_, err := svc.Recompute(context.Background(), "rem-missing", "maria")
	if !errors.Is(err, ErrRemanejamentoMissing) {
		t.Fatalf("expected ErrRemanejamentoMissing, got %v", err)
	}
}

func TestRecompute_RetriesOnVersionConflict(t *testing.T) {
	store := newFakeRemStore(remanejamento.Remanejamento{
		ID:               "rem-1",
		ResponsavelAtual: setor.RH,
		StatusTarefas:    remanejamento.StatusAtenderTarefas,
	})
	store.conflictsLeft = 1
	svc := newTestService(&fakeTaskLister{}, store, func(_ string, _ []byte) error { return nil })

	out, err := svc.Recompute(context.Background(), "rem-1", "maria")
	if err != nil {
		t.Fatalf("Recompute returned error: %v", err)
	}
	if out.Status != remanejamento.StatusSubmeterRascunho {
		t.Fatalf("unexpected outcome after retry: %+v", out)
	}
}

func TestRecompute_AuditPublishFailureBecomesWarning(t *testing.T) {
	store := newFakeRemStore(remanejamento.Remanejamento{
		ID:               "rem-1",
		ResponsavelAtual: setor.RH,
		StatusTarefas:    remanejamento.StatusAtenderTarefas,
	})
	svc := newTestService(&fakeTaskLister{}, store, func(_ string, _ []byte) error {
		return errors.New("nats unavailable")
	})

	out, err := svc.Recompute(context.Background(), "rem-1", "maria")
	if err != nil {
		t.Fatalf("Recompute returned error: %v", err)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", out.Warnings)
	}
	if store.rems["rem-1"].StatusTarefas != remanejamento.StatusSubmeterRascunho {
		t.Fatalf("status update must survive audit failure: %+v", store.rems["rem-1"])
	}
}

func TestRecomputeAfterMutation_DowngradesErrors(t *testing.T) {
	svc := newTestService(&fakeTaskLister{}, newFakeRemStore(), func(_ string, _ []byte) error { return nil })
	warnings, err := svc.RecomputeAfterMutation(context.Background(), "rem-missing", "maria")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
}

func TestBounceToTraining(t *testing.T) {
	if !BounceToTraining("Logística", false) {
		t.Fatal("expected bounce for LOGISTICA owner without training")
	}
	if BounceToTraining("Logística", true) {
		t.Fatal("no bounce expected with active training")
	}
	if BounceToTraining("RH", false) {
		t.Fatal("no bounce expected for non-LOGISTICA owner")
	}
}
