package sharding

import (
	"strings"
	"testing"
)

func TestGetShardID_Deterministic(t *testing.T) {
	a := GetShardID("rem-123")
	b := GetShardID("rem-123")
	if a != b {
		t.Fatalf("shard id not deterministic: %d vs %d", a, b)
	}
	if a < 0 || a >= ShardCount {
		t.Fatalf("shard id out of range: %d", a)
	}
}

func TestAuditSubject_Format(t *testing.T) {
	subject := AuditSubject("rem-123")
	if !strings.HasPrefix(subject, "remanejo.audit.") {
		t.Fatalf("unexpected subject prefix: %q", subject)
	}
	if !strings.HasSuffix(subject, ".remanejamento.rem-123") {
		t.Fatalf("unexpected subject suffix: %q", subject)
	}
}
