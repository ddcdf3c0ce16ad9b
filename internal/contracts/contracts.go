package contracts

import "time"

// Audit event types.
const (
	AuditCriacao           = "CRIACAO"
	AuditAtualizacaoStatus = "ATUALIZACAO_STATUS"
)

// AuditEvent is the history entry published by the engine and the task store
// and persisted by audit-sink. It is write-only from the engine's perspective.
type AuditEvent struct {
	EventID         string    `json:"event_id"`
	RemanejamentoID string    `json:"remanejamento_id"`
	TarefaID        string    `json:"tarefa_id,omitempty"`
	Tipo            string    `json:"tipo"`
	Campo           string    `json:"campo"`
	ValorAntigo     string    `json:"valor_antigo"`
	ValorNovo       string    `json:"valor_novo"`
	Autor           string    `json:"autor"`
	OccurredAt      time.Time `json:"occurred_at"`
	ShardID         int       `json:"shard_id"`
}
