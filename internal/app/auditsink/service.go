package auditsink

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/prestserv/remanejo/internal/contracts"
)

var ErrInvalidEventPayload = errors.New("invalid audit event payload")
var ErrUnsupportedEventType = errors.New("unsupported audit event type")

type Repository interface {
	InsertEvent(ctx context.Context, event contracts.AuditEvent, eventSeq uint64) error
}

type Service struct {
	Repository Repository
}

func NewService(repository Repository) *Service {
	return &Service{Repository: repository}
}

func (s *Service) Handle(ctx context.Context, payload []byte, eventSeq uint64) error {
	var event contracts.AuditEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ErrInvalidEventPayload
	}
	if strings.TrimSpace(event.RemanejamentoID) == "" {
		return ErrInvalidEventPayload
	}
	switch event.Tipo {
	case contracts.AuditCriacao, contracts.AuditAtualizacaoStatus:
	default:
		return ErrUnsupportedEventType
	}
	return s.Repository.InsertEvent(ctx, event, eventSeq)
}
