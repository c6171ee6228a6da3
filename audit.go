package idcore

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent defines a public type used by idcore APIs.
//
// AuditEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditEvent struct {
	Sequence   int64          `json:"sequence"`
	EventType  AuditEventType `json:"event_type"`
	IdentityID string         `json:"identity_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	SourceIP   string         `json:"source_ip,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	ChainHash  string         `json:"chain_hash"`
	Timestamp  time.Time      `json:"timestamp"`
}

// AuditSink defines a public type used by idcore APIs.
//
// AuditSink receives persisted audit entries for side delivery (log
// shipping, SIEM forwarding). Emit must not block for long; the dispatcher
// calls it inline.
type AuditSink interface {
	Emit(event AuditEvent)
}

// NoOpAuditSink defines a public type used by idcore APIs.
//
// NoOpAuditSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NoOpAuditSink struct{}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpAuditSink) Emit(AuditEvent) {}

// JSONWriterSink defines a public type used by idcore APIs.
//
// JSONWriterSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JSONWriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONWriterSink describes the new j s o n writer sink operation and its observable behavior.
//
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *JSONWriterSink) Emit(event AuditEvent) {
	b, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Write(append(b, '\n'))
}
