package idcore

import (
	"context"

	"github.com/google/uuid"

	"github.com/veriden/idcore/internal"
)

// AuditExport returns a masked page of the audit log ordered by ascending
// sequence, starting after the given sequence. Page size is clamped to the
// configured limit; identifiers and IPs come out masked.
//
// AuditExport may return an error when input validation, dependency calls, or security checks fail.
// AuditExport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditExport(ctx context.Context, afterSequence int64, limit int) ([]MaskedAuditEntry, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if limit <= 0 || limit > e.config.Audit.PageLimit {
		limit = e.config.Audit.PageLimit
	}
	entries, err := e.audit.repo.Page(ctx, afterSequence, limit)
	if err != nil {
		return nil, err
	}
	return maskEntries(entries), nil
}

// AuditTrail returns the identity's masked audit entries, newest first.
//
// AuditTrail may return an error when input validation, dependency calls, or security checks fail.
// AuditTrail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditTrail(ctx context.Context, identityID uuid.UUID, limit int) ([]MaskedAuditEntry, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if limit <= 0 || limit > e.config.Audit.PageLimit {
		limit = e.config.Audit.PageLimit
	}
	entries, err := e.audit.repo.ByIdentity(ctx, identityID, limit)
	if err != nil {
		return nil, err
	}
	return maskEntries(entries), nil
}

// VerifyAuditIntegrity recomputes the hash chain from genesis.
//
// VerifyAuditIntegrity may return an error when input validation, dependency calls, or security checks fail.
// VerifyAuditIntegrity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyAuditIntegrity(ctx context.Context) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	return VerifyAuditChain(ctx, e.audit.repo, e.config.Audit.ChainKey)
}

func maskEntries(entries []*AuditEntry) []MaskedAuditEntry {
	masked := make([]MaskedAuditEntry, 0, len(entries))
	for _, entry := range entries {
		m := MaskedAuditEntry{
			Sequence:  entry.Sequence,
			EventType: entry.EventType,
			SourceIP:  internal.MaskIP(entry.SourceIP),
			Detail:    entry.Detail,
			ChainHash: entry.ChainHash,
			CreatedAt: entry.CreatedAt,
		}
		if entry.IdentityID != nil {
			m.IdentityID = internal.MaskUUID(entry.IdentityID.String())
		}
		if entry.RequestID != nil {
			m.RequestID = internal.Mask(*entry.RequestID, 8)
		}
		masked = append(masked, m)
	}
	return masked
}
