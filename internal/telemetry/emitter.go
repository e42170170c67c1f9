package telemetry

import (
	"context"
	"time"
)

// Session lifecycle event types.
const (
	EventSignedIn      = "session.signed_in"
	EventSignedOut     = "session.signed_out"
	EventRefreshed     = "session.refreshed"
	EventRefreshFailed = "session.refresh_failed"
	EventForcedSignOut = "session.forced_sign_out"
)

// Event is one session lifecycle event. Raw tokens never go into an Event; use a fingerprint.
type Event struct {
	Type             string
	UserID           string
	Username         string
	Source           string
	TokenFingerprint string
	Reason           string
	CreatedAt        time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
