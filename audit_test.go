package idcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func drainDispatcher(d *auditDispatcher) {
	d.close()
}

func newTestDispatcher(t *testing.T, repo AuditLogRepository, sink AuditSink) *auditDispatcher {
	t.Helper()
	d, err := newAuditDispatcher(repo, sink, AuditConfig{
		ChainKey:   []byte("test-chain-key"),
		BufferSize: 64,
		PageLimit:  100,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("newAuditDispatcher: %v", err)
	}
	return d
}

func TestAuditChainLinksFromGenesis(t *testing.T) {
	log := newMemAuditLog()
	d := newTestDispatcher(t, log, nil)

	identityID := uuid.New()
	requestID := "req-1"
	for i := 0; i < 5; i++ {
		d.enqueue(auditRecord{
			eventType:  AuditOtpSent,
			identityID: &identityID,
			requestID:  &requestID,
			occurredAt: time.Now(),
		})
	}
	drainDispatcher(d)

	entries := log.entries()
	if len(entries) != 5 {
		t.Fatalf("entries = %d, want 5", len(entries))
	}
	if entries[0].PrevHash != auditChainGenesis {
		t.Errorf("first prev hash = %q, want GENESIS", entries[0].PrevHash)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash != entries[i-1].ChainHash {
			t.Errorf("entry %d prev hash does not link", i)
		}
		if entries[i].Sequence != entries[i-1].Sequence+1 {
			t.Errorf("entry %d sequence gap", i)
		}
	}

	if err := VerifyAuditChain(context.Background(), log, []byte("test-chain-key")); err != nil {
		t.Fatalf("VerifyAuditChain: %v", err)
	}
}

func TestAuditChainResumesFromLatest(t *testing.T) {
	log := newMemAuditLog()

	d := newTestDispatcher(t, log, nil)
	d.enqueue(auditRecord{eventType: AuditOtpSent, occurredAt: time.Now()})
	drainDispatcher(d)

	// A second dispatcher over the same log continues the chain instead
	// of restarting at genesis.
	d2 := newTestDispatcher(t, log, nil)
	d2.enqueue(auditRecord{eventType: AuditOtpVerified, occurredAt: time.Now()})
	drainDispatcher(d2)

	entries := log.entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[1].PrevHash != entries[0].ChainHash {
		t.Error("resumed chain does not link to the persisted tail")
	}
	if err := VerifyAuditChain(context.Background(), log, []byte("test-chain-key")); err != nil {
		t.Fatalf("VerifyAuditChain: %v", err)
	}
}

func TestVerifyAuditChainDetectsTampering(t *testing.T) {
	log := newMemAuditLog()
	d := newTestDispatcher(t, log, nil)
	for i := 0; i < 4; i++ {
		d.enqueue(auditRecord{eventType: AuditPinFailed, occurredAt: time.Now()})
	}
	drainDispatcher(d)

	// Rewrite an event type after the fact.
	log.mu.Lock()
	log.rows[2].EventType = AuditPinVerified
	tamperedSeq := log.rows[2].Sequence
	log.mu.Unlock()

	err := VerifyAuditChain(context.Background(), log, []byte("test-chain-key"))
	var broken *ChainBreakError
	if !errors.As(err, &broken) {
		t.Fatalf("err = %v, want ChainBreakError", err)
	}
	if !errors.Is(err, ErrAuditChainBroken) {
		t.Error("ChainBreakError must unwrap to ErrAuditChainBroken")
	}
	if broken.Sequence != tamperedSeq {
		t.Errorf("break at %d, want %d", broken.Sequence, tamperedSeq)
	}
}

func TestVerifyAuditChainWrongKey(t *testing.T) {
	log := newMemAuditLog()
	d := newTestDispatcher(t, log, nil)
	d.enqueue(auditRecord{eventType: AuditOtpSent, occurredAt: time.Now()})
	drainDispatcher(d)

	if err := VerifyAuditChain(context.Background(), log, []byte("other-key")); err == nil {
		t.Fatal("expected verification failure under a different key")
	}
}

func TestDispatcherDropsOnBackpressure(t *testing.T) {
	log := newMemAuditLog()
	d := &auditDispatcher{
		repo:     log,
		sink:     NoOpAuditSink{},
		chainKey: []byte("k"),
		logger:   zap.NewNop(),
		queue:    make(chan auditRecord, 1),
		done:     make(chan struct{}),
	}
	// No run loop consuming: the second enqueue must drop, not block.
	d.enqueue(auditRecord{eventType: AuditOtpSent})
	d.enqueue(auditRecord{eventType: AuditOtpSent})

	if got := d.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestDispatcherEnqueueAfterClose(t *testing.T) {
	log := newMemAuditLog()
	d := newTestDispatcher(t, log, nil)

	d.enqueue(auditRecord{eventType: AuditOtpSent, occurredAt: time.Now()})
	d.close()

	// A racing operation past the engine's closed check must drop the
	// record, never panic on the queue.
	d.enqueue(auditRecord{eventType: AuditOtpVerified, occurredAt: time.Now()})

	if got := d.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	entries := log.entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

type brokenCursorLog struct {
	*memAuditLog
}

func (l *brokenCursorLog) Latest(ctx context.Context) (*AuditEntry, error) {
	return nil, errors.New("storage offline")
}

func TestDispatcherRefusesUnreadableCursor(t *testing.T) {
	_, err := newAuditDispatcher(&brokenCursorLog{newMemAuditLog()}, nil, AuditConfig{
		ChainKey:   []byte("test-chain-key"),
		BufferSize: 8,
	}, zap.NewNop())
	if err == nil {
		t.Fatal("expected construction to fail when the chain tail is unreadable")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	log := newMemAuditLog()
	d := newTestDispatcher(t, log, NewJSONWriterSink(&buf))

	identityID := uuid.New()
	d.enqueue(auditRecord{
		eventType:  AuditLoginSucceeded,
		identityID: &identityID,
		sourceIP:   "203.0.113.7",
		occurredAt: time.Now(),
	})
	drainDispatcher(d)

	line := strings.TrimSpace(buf.String())
	var event AuditEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		t.Fatalf("unmarshal sink line: %v", err)
	}
	if event.EventType != AuditLoginSucceeded {
		t.Errorf("event type = %s", event.EventType)
	}
	if event.ChainHash == "" {
		t.Error("sink event missing chain hash")
	}
}

func TestAuditExportMasksIdentifiers(t *testing.T) {
	f := newTestEngine(t)
	id := f.register(t, "784-1990-1234567-0")
	f.activate(t, id, "284917")

	// Close drains the dispatcher so the export sees everything; export
	// reads do not require a live engine queue.
	f.engine.audit.close()

	entries, err := f.engine.AuditExport(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("AuditExport: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected audit entries from the registration flow")
	}
	for _, entry := range entries {
		if entry.IdentityID == id.String() {
			t.Fatal("export leaked a raw identity id")
		}
		if strings.Contains(entry.Detail, "+971501235678") {
			t.Fatal("export leaked a raw phone number")
		}
	}
}
