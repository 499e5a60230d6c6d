package domain

import "time"

// Session is the authenticated handle issued by the identity gateway.
type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	UserKey   string    `json:"userKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the session is present and unexpired at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && s.UserKey != "" && now.Before(s.ExpiresAt)
}
