package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaMirror produces audit entries to a broker topic for downstream
// consumers (SIEM, compliance archive). It is fail-open: produce errors are
// logged and dropped because the relational store is the source of truth.
type KafkaMirror struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaMirror connects to the brokers and returns the mirror. Callers own
// Close.
func NewKafkaMirror(brokers []string, topic string, logger *slog.Logger) (*KafkaMirror, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaMirror{client: client, topic: topic, logger: logger}, nil
}

// mirrorPayload is the JSON structure published to the topic.
type mirrorPayload struct {
	ID                    string `json:"id"`
	Actor                 string `json:"actor"`
	Target                string `json:"target"`
	PreviousRole          string `json:"previous_role"`
	NewRole               string `json:"new_role"`
	PreviousApprovalState string `json:"previous_approval_state"`
	NewApprovalState      string `json:"new_approval_state"`
	Timestamp             string `json:"timestamp"`
	RequestID             string `json:"request_id,omitempty"`
}

// Emit produces the entry asynchronously, keyed by target principal so a
// user's trail stays ordered within a partition.
func (m *KafkaMirror) Emit(ctx context.Context, entry Entry) {
	payload, err := json.Marshal(mirrorPayload{
		ID:                    entry.ID.String(),
		Actor:                 entry.ActorPrincipalID.String(),
		Target:                entry.TargetPrincipalID.String(),
		PreviousRole:          string(entry.PreviousRole),
		NewRole:               string(entry.NewRole),
		PreviousApprovalState: string(entry.PreviousApprovalState),
		NewApprovalState:      string(entry.NewApprovalState),
		Timestamp:             entry.Timestamp.Format(time.RFC3339Nano),
		RequestID:             entry.RequestID,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "audit mirror marshal failed", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: m.topic,
		Key:   []byte(entry.TargetPrincipalID.String()),
		Value: payload,
	}
	m.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			m.logger.Error("audit mirror produce failed",
				"topic", m.topic,
				"entry_id", entry.ID.String(),
				"error", err,
			)
		}
	})
}

// Close flushes outstanding produces and releases the client.
func (m *KafkaMirror) Close(ctx context.Context) error {
	if err := m.client.Flush(ctx); err != nil {
		return err
	}
	m.client.Close()
	return nil
}
