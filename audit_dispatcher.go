package idcore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// auditChainGenesis seeds the hash chain before the first entry exists.
const auditChainGenesis = "GENESIS"

type auditRecord struct {
	eventType  AuditEventType
	identityID *uuid.UUID
	requestID  *string
	sourceIP   string
	detail     string
	occurredAt time.Time
}

// auditDispatcher serializes audit writes through a single goroutine. The
// goroutine is the only writer of the chain cursor (sequence and previous
// hash), so chained entries never race. The cursor is loaded once at
// construction; a chain that cannot be resumed refuses to start rather than
// forking from genesis over existing rows.
type auditDispatcher struct {
	repo     AuditLogRepository
	sink     AuditSink
	chainKey []byte
	logger   *zap.Logger

	queue   chan auditRecord
	dropped atomic.Int64

	// seq and prev are set before the goroutine starts and mutated only
	// inside run.
	seq  int64
	prev string

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func newAuditDispatcher(repo AuditLogRepository, sink AuditSink, cfg AuditConfig, logger *zap.Logger) (*auditDispatcher, error) {
	if sink == nil {
		sink = NoOpAuditSink{}
	}
	d := &auditDispatcher{
		repo:     repo,
		sink:     sink,
		chainKey: cfg.ChainKey,
		logger:   logger,
		queue:    make(chan auditRecord, cfg.BufferSize),
		done:     make(chan struct{}),
		prev:     auditChainGenesis,
	}

	latest, err := repo.Latest(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load audit chain cursor: %w", err)
	}
	if latest != nil {
		d.seq = latest.Sequence
		d.prev = latest.ChainHash
	}

	d.wg.Add(1)
	go d.run()
	return d, nil
}

// enqueue never blocks the calling operation; when the queue is full, or the
// dispatcher is already closed, the record is dropped and counted.
func (d *auditDispatcher) enqueue(rec auditRecord) {
	if d.closed.Load() {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- rec:
	case <-d.done:
		d.dropped.Add(1)
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports how many audit records were discarded due to backpressure.
func (d *auditDispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// close stops the dispatcher after draining queued records. The queue channel
// itself is never closed, so a racing enqueue can only drop, not panic.
func (d *auditDispatcher) close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	ctx := context.Background()
	for {
		select {
		case rec := <-d.queue:
			d.persist(ctx, rec)
		case <-d.done:
			for {
				select {
				case rec := <-d.queue:
					d.persist(ctx, rec)
				default:
					return
				}
			}
		}
	}
}

func (d *auditDispatcher) persist(ctx context.Context, rec auditRecord) {
	d.seq++
	entry := &AuditEntry{
		ID:         uuid.New(),
		Sequence:   d.seq,
		EventType:  rec.eventType,
		IdentityID: rec.identityID,
		RequestID:  rec.requestID,
		SourceIP:   rec.sourceIP,
		Detail:     rec.detail,
		PrevHash:   d.prev,
		CreatedAt:  rec.occurredAt,
	}
	entry.ChainHash = chainHash(d.chainKey, entry)

	if err := d.repo.Append(ctx, entry); err != nil {
		// The cursor rolls back so the next entry re-links to the last
		// persisted hash.
		d.seq--
		d.dropped.Add(1)
		d.logger.Error("audit append failed",
			zap.String("event_type", string(rec.eventType)),
			zap.Error(err))
		return
	}
	d.prev = entry.ChainHash

	d.sink.Emit(AuditEvent{
		Sequence:   entry.Sequence,
		EventType:  entry.EventType,
		IdentityID: uuidString(entry.IdentityID),
		RequestID:  stringOrEmpty(entry.RequestID),
		SourceIP:   entry.SourceIP,
		Detail:     entry.Detail,
		ChainHash:  entry.ChainHash,
		Timestamp:  entry.CreatedAt,
	})
}

// chainHash computes HMAC-SHA256 over the entry's identity-relevant fields
// joined with the previous hash. Absent optional fields encode as "-".
func chainHash(key []byte, entry *AuditEntry) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.Join([]string{
		string(entry.EventType),
		orDash(uuidString(entry.IdentityID)),
		orDash(stringOrEmpty(entry.RequestID)),
		entry.PrevHash,
	}, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyAuditChain recomputes the chain from genesis over the repository's
// pages and returns the sequence of the first broken link wrapped in
// ErrAuditChainBroken, or nil when the chain holds.
//
// VerifyAuditChain may return an error when input validation, dependency calls, or security checks fail.
// VerifyAuditChain does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func VerifyAuditChain(ctx context.Context, repo AuditLogRepository, key []byte) error {
	prev := auditChainGenesis
	var after int64

	for {
		page, err := repo.Page(ctx, after, defaultAuditPageLimit)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		for _, entry := range page {
			if entry.PrevHash != prev {
				return brokenLink(entry.Sequence)
			}
			if chainHash(key, entry) != entry.ChainHash {
				return brokenLink(entry.Sequence)
			}
			prev = entry.ChainHash
			after = entry.Sequence
		}
	}
}

func brokenLink(seq int64) error {
	return &ChainBreakError{Sequence: seq}
}

// ChainBreakError defines a public type used by idcore APIs.
//
// ChainBreakError instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChainBreakError struct {
	Sequence int64
}

// Error describes the error operation and its observable behavior.
//
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *ChainBreakError) Error() string {
	return "audit chain verification failed"
}

// Unwrap describes the unwrap operation and its observable behavior.
//
// Unwrap does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *ChainBreakError) Unwrap() error {
	return ErrAuditChainBroken
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
