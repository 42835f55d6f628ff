// Package sessions keeps the multi-turn USSD and IVR conversation state
// keyed by (channel, phone number, session id).
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linesmerrill/disaster-intake-api/models"
)

// Errors returned by a Store
var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// DefaultTTL is how long an idle conversation is kept
const DefaultTTL = 5 * time.Minute

// State is the step a conversation is waiting on. USSD uses the first four;
// IVR walks all of them.
type State int

// Conversation states
const (
	StateMenu State = iota + 1
	StateCategory
	StateSeverity
	StateDescription
	StateLocation
	StateConfirmation
)

func (s State) String() string {
	switch s {
	case StateMenu:
		return "menu"
	case StateCategory:
		return "category"
	case StateSeverity:
		return "severity"
	case StateDescription:
		return "description"
	case StateLocation:
		return "location"
	case StateConfirmation:
		return "confirmation"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Key identifies a conversation
type Key struct {
	Channel     models.Channel
	PhoneNumber string
	SessionID   string
}

func (k Key) String() string {
	return fmt.Sprintf("session:%s:%s:%s", k.Channel, k.PhoneNumber, k.SessionID)
}

// Session is the partially collected report for one conversation
type Session struct {
	Channel      models.Channel  `json:"channel"`
	PhoneNumber  string          `json:"phone_number"`
	SessionID    string          `json:"session_id"`
	State        State           `json:"state"`
	Language     string          `json:"language"`
	Category     models.Category `json:"category,omitempty"`
	Severity     int             `json:"severity,omitempty"`
	Description  string          `json:"description,omitempty"`
	LocationText string          `json:"location_text,omitempty"`
	Attempts     int             `json:"attempts,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// New starts a conversation at StateMenu
func New(key Key, lang string, now time.Time) *Session {
	return &Session{
		Channel:     key.Channel,
		PhoneNumber: key.PhoneNumber,
		SessionID:   key.SessionID,
		State:       StateMenu,
		Language:    lang,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Key returns the key the session is stored under
func (s *Session) Key() Key {
	return Key{Channel: s.Channel, PhoneNumber: s.PhoneNumber, SessionID: s.SessionID}
}

// Advance moves to next and resets the retry counter
func (s *Session) Advance(next State) {
	s.State = next
	s.Attempts = 0
}

// Store persists sessions. Sessions expire a fixed time after creation.
//
// Claim, Complete and Release guard the final step: only the caller that wins
// Claim may create a report, and later callers read back the report id it
// recorded with Complete.
type Store interface {
	Get(ctx context.Context, key Key) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, key Key) error
	Claim(ctx context.Context, key Key) (reportID string, claimed bool, err error)
	Complete(ctx context.Context, key Key, reportID string) error
	Release(ctx context.Context, key Key) error
}
