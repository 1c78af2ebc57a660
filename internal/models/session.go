package models

import "time"

// Session is the bearer token obtained once per run from the account-status API.
//
// It is shared read-only by every enrichment worker and never refreshed mid-run.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now. A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}
