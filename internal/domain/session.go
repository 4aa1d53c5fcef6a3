package domain

import (
	"encoding/json"
	"time"
)

// Session is the authenticated user as returned by the backend login call.
// Raw keeps the full backend object so nothing the UI relies on is lost.
type Session struct {
	Token     string          `json:"token"`
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email,omitempty"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// CanModify reports whether the session owns the bookmark.
// This only decides which controls the UI shows; the backend enforces
// authorization on the actual update and delete calls.
func CanModify(s *Session, b *Bookmark) bool {
	if s == nil || b == nil || s.ID == 0 {
		return false
	}
	return b.UserID == s.ID
}
