package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of partitions for audit subjects and the
// engine's per-reassignment lock stripes.
const ShardCount = 1024

// GetShardID calculates the deterministic shard ID for a given entity ID.
func GetShardID(entityID string) int {
	checksum := crc32.ChecksumIEEE([]byte(entityID))
	return int(checksum % ShardCount)
}

// AuditSubject returns the NATS subject for one reassignment's audit trail.
// Format: remanejo.audit.{shard_id}.remanejamento.{id}
func AuditSubject(remanejamentoID string) string {
	return fmt.Sprintf("remanejo.audit.%d.remanejamento.%s", GetShardID(remanejamentoID), remanejamentoID)
}
