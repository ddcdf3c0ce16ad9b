package auditsink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prestserv/remanejo/internal/contracts"
)

type fakeRepository struct {
	events []contracts.AuditEvent
	seqs   []uint64
}

func (f *fakeRepository) InsertEvent(_ context.Context, event contracts.AuditEvent, eventSeq uint64) error {
	f.events = append(f.events, event)
	f.seqs = append(f.seqs, eventSeq)
	return nil
}

func TestHandle_PersistsEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)

	event := contracts.AuditEvent{
		EventID:         "evt-1",
		RemanejamentoID: "rem-1",
		Tipo:            contracts.AuditAtualizacaoStatus,
		Campo:           "status_tarefas",
		ValorAntigo:     "ATENDER TAREFAS",
		ValorNovo:       "SUBMETER RASCUNHO",
		Autor:           "maria",
		OccurredAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, _ := json.Marshal(event)

	if err := svc.Handle(context.Background(), payload, 42); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(repo.events) != 1 || repo.events[0].EventID != "evt-1" || repo.seqs[0] != 42 {
		t.Fatalf("unexpected persisted event: %+v seq=%v", repo.events, repo.seqs)
	}
}

func TestHandle_InvalidPayload(t *testing.T) {
	svc := NewService(&fakeRepository{})
	if err := svc.Handle(context.Background(), []byte("{invalid json"), 1); !errors.Is(err, ErrInvalidEventPayload) {
		t.Fatalf("expected ErrInvalidEventPayload, got %v", err)
	}
}

func TestHandle_MissingRemanejamentoID(t *testing.T) {
	svc := NewService(&fakeRepository{})
	payload, _ := json.Marshal(contracts.AuditEvent{EventID: "evt-1", Tipo: contracts.AuditCriacao})
	if err := svc.Handle(context.Background(), payload, 1); !errors.Is(err, ErrInvalidEventPayload) {
		t.Fatalf("expected ErrInvalidEventPayload, got %v", err)
	}
}

func TestHandle_UnsupportedEventType(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)
	payload, _ := json.Marshal(contracts.AuditEvent{EventID: "evt-1", RemanejamentoID: "rem-1", Tipo: "EXCLUSAO"})
	if err := svc.Handle(context.Background(), payload, 1); !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected ErrUnsupportedEventType, got %v", err)
	}
	if len(repo.events) != 0 {
		t.Fatal("unsupported event must not be persisted")
	}
}
