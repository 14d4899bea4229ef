package models

import "time"

type SessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Session is the client's view of an authenticated backend session.
type Session struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        SessionUser `json:"user"`
}

func (session *Session) Expired(now time.Time) bool {
	if session == nil {
		return true
	}
	if session.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(session.ExpiresAt)
}

func (session *Session) Clone() *Session {
	if session == nil {
		return nil
	}
	copied := *session
	return &copied
}
