// Package crm defines the contract to the external CRM collaborator.
// The loyalty core never talks to the CRM directly; synchronization is
// injected and strictly best-effort: a failed sync is surfaced through
// SyncResult for logging, never through the caller's error channel.
package crm

import "bonuspark/internal/models"

// SyncResult reports the outcome of a secondary CRM sync attempt,
// separate from the primary operation's success.
type SyncResult struct {
	Attempted bool
	Synced    bool
	Err       error
}

// Syncer pushes loyalty user records to the CRM.
type Syncer interface {
	SyncUser(user *models.User) SyncResult
}

// NopSyncer is used when no CRM integration is configured.
type NopSyncer struct{}

// SyncUser reports an unattempted sync.
func (NopSyncer) SyncUser(*models.User) SyncResult {
	return SyncResult{Attempted: false}
}
