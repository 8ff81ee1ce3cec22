// Package session tracks per-user conversation state for the ordering flow.
package session

import "context"

// Step identifies the current position in the conversation.
type Step string

const (
	// StepIdle means no conversation is active for the user.
	StepIdle Step = ""
	// StepAskVinKnown waits for the yes/no VIN keyboard choice.
	StepAskVinKnown Step = "ask_vin_known"
	// StepGetVin waits for a 17-character VIN.
	StepGetVin Step = "get_vin"
	// StepGetContact waits for a phone number or email.
	StepGetContact Step = "get_contact"
	// StepGetParts waits for the free-form parts description.
	StepGetParts Step = "get_parts"
)

// Session holds the answers collected so far for a single user.
type Session struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	VIN      string `json:"vin,omitempty"`
	Contact  string `json:"contact,omitempty"`
	Step     Step   `json:"step"`
}

// Active reports whether the session is inside the question sequence.
func (s *Session) Active() bool {
	return s != nil && s.Step != StepIdle
}

// Manager stores conversation sessions keyed by Telegram user ID.
//
// Get returns (nil, nil) when no session exists; a non-nil error means the
// backing store failed and the caller should treat state as unknown.
type Manager interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context, userID int64) error
	// InProgress is a cheap check used by the text router to decide whether
	// an incoming message belongs to an active conversation.
	InProgress(ctx context.Context, userID int64) bool
}
