package session

import (
	"context"

	"github.com/gorilla/sessions"
)

const (
	userIDKey   = "userId"
	usernameKey = "username"
)

// UserID returns the logged-in user id, if any.
func UserID(s *sessions.Session) (int64, bool) {
	if s == nil {
		return 0, false
	}
	id, ok := s.Values[userIDKey].(int64)
	return id, ok && id > 0
}

// Username returns the username stored at login.
func Username(s *sessions.Session) string {
	if s == nil {
		return ""
	}
	name, _ := s.Values[usernameKey].(string)
	return name
}

// SetUser marks the session as logged in.
func SetUser(s *sessions.Session, id int64, username string) {
	s.Values[userIDKey] = id
	s.Values[usernameKey] = username
}

// Destroy clears the values and makes the next Save delete the record.
func Destroy(s *sessions.Session) {
	for k := range s.Values {
		delete(s.Values, k)
	}
	s.Options.MaxAge = -1
}

type rotator interface {
	Rotate(ctx context.Context, s *sessions.Session) error
}

// Rotate gives s a new id on its next Save. Stores that keep server-side records
// drop the old one; for others only the id is cleared.
func Rotate(ctx context.Context, store sessions.Store, s *sessions.Session) error {
	if r, ok := store.(rotator); ok {
		return r.Rotate(ctx, s)
	}
	s.ID = ""
	return nil
}
