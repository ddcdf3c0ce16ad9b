package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const auditStream = "AUDIT"

// AuditSubjects matches every per-shard audit subject.
const AuditSubjects = "remanejo.audit.>"

// EnsureStreams creates (or validates) the audit stream.
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(auditStream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return err
		}
		if _, addErr := js.AddStream(&nats.StreamConfig{
			Name:      auditStream,
			Subjects:  []string{AuditSubjects},
			Retention: nats.LimitsPolicy,
			Storage:   nats.FileStorage,
			Replicas:  1,
		}); addErr != nil {
			return addErr
		}
	}
	return nil
}
