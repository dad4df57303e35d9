package phi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DefaultAccessReason is recorded when the caller gives no reason.
const DefaultAccessReason = "Standard access"

// BulkResourceID is the sentinel resource id for list reads; the number of
// entities touched goes in the entry's extra map.
const BulkResourceID = "multiple"

// AuditEntry is one immutable record of a PHI access attempt. Entries are
// created exactly once per attempt, successful or denied, and are never
// mutated or deleted afterwards.
type AuditEntry struct {
	ID          uuid.UUID      `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	PrincipalID string         `json:"principal_id"`
	Action      Action         `json:"action"`
	Resource    Resource       `json:"resource_type"`
	ResourceID  string         `json:"resource_id"`
	Reason      string         `json:"reason"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// AuditLogger appends PHI access entries to an append-only sink: a structured
// zerolog stream always, and the phi_access_log table when a pool is
// configured.
//
// Logging is fail-open: a sink failure is itself logged but never blocks the
// request that triggered the entry. That trades a compliance guarantee for
// availability; a stricter deployment would fail the request instead.
type AuditLogger struct {
	logger zerolog.Logger
	pool   *pgxpool.Pool
}

// NewAuditLogger creates an audit logger writing to the given zerolog stream.
// pool may be nil, in which case entries go to the log stream only.
func NewAuditLogger(logger zerolog.Logger, pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{logger: logger, pool: pool}
}

// LogAccess records one PHI access attempt and returns the entry it wrote.
// reason defaults to DefaultAccessReason when empty. It always succeeds from
// the caller's point of view.
func (a *AuditLogger) LogAccess(ctx context.Context, principalID string, action Action, resource Resource, resourceID, reason string, extra map[string]any) AuditEntry {
	if reason == "" {
		reason = DefaultAccessReason
	}

	entry := AuditEntry{
		ID:          uuid.New(),
		Timestamp:   time.Now().UTC(),
		PrincipalID: principalID,
		Action:      action,
		Resource:    resource,
		ResourceID:  resourceID,
		Reason:      reason,
		Extra:       extra,
	}

	evt := a.logger.Info().
		Str("audit_id", entry.ID.String()).
		Str("timestamp", entry.Timestamp.Format(time.RFC3339Nano)).
		Str("principal_id", entry.PrincipalID).
		Str("action", string(entry.Action)).
		Str("resource_type", string(entry.Resource)).
		Str("resource_id", entry.ResourceID).
		Str("reason", entry.Reason)
	if len(entry.Extra) > 0 {
		evt = evt.Interface("extra", entry.Extra)
	}
	evt.Msg("phi_access")

	if a.pool != nil {
		if err := a.persist(ctx, &entry); err != nil {
			a.logger.Error().Err(err).
				Str("audit_id", entry.ID.String()).
				Msg("phi audit: durable sink write failed")
		}
	}

	return entry
}

// LogDenied records a denied access attempt. The entry carries the attempted
// action with outcome=denied in extra, so a denial is never mistaken for a
// successful access.
func (a *AuditLogger) LogDenied(ctx context.Context, principalID string, action Action, resource Resource, resourceID string) AuditEntry {
	return a.LogAccess(ctx, principalID, action, resource, resourceID,
		"Denied by authorization policy", map[string]any{"outcome": "denied"})
}

func (a *AuditLogger) persist(ctx context.Context, entry *AuditEntry) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO phi_access_log (id, accessed_at, principal_id, action, resource_type, resource_id, reason, extra)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.Timestamp, entry.PrincipalID, string(entry.Action),
		string(entry.Resource), entry.ResourceID, entry.Reason, entry.Extra)
	return err
}
