package entities

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState represents where the relay is in a capture cycle
type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateCapturing    SessionState = "capturing"
	SessionStateTransmitting SessionState = "transmitting"
)

// SessionOrigin tells which input source started a session
type SessionOrigin string

const (
	SessionOriginRemote SessionOrigin = "remote"
	SessionOriginManual SessionOrigin = "manual"
	SessionOriginRecord SessionOrigin = "record"
)

// SessionOutcome records how a session ended
type SessionOutcome string

const (
	SessionOutcomeNone            SessionOutcome = ""
	SessionOutcomeTransmitted     SessionOutcome = "transmitted"
	SessionOutcomeSynthesisFailed SessionOutcome = "synthesis_failed"
	SessionOutcomeTransportFailed SessionOutcome = "transport_failed"
)

// ErrInvalidTransition is returned when a session is moved to a state it
// cannot reach from its current one.
var ErrInvalidTransition = errors.New("invalid session state transition")

var validTransitions = map[SessionState][]SessionState{
	SessionStateIdle:         {SessionStateCapturing},
	SessionStateCapturing:    {SessionStateTransmitting, SessionStateIdle},
	SessionStateTransmitting: {SessionStateIdle},
}

// Session is the transient record of one command -> capture -> transmit cycle
type Session struct {
	ID        string         `json:"id" bson:"session_id"`
	Origin    SessionOrigin  `json:"origin" bson:"origin"`
	State     SessionState   `json:"state" bson:"state"`
	StartedAt time.Time      `json:"started_at" bson:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	Frames    int            `json:"frames" bson:"frames"`
	Outcome   SessionOutcome `json:"outcome,omitempty" bson:"outcome,omitempty"`
}

// NewSession creates a session in the idle state
func NewSession(origin SessionOrigin) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Origin:    origin,
		State:     SessionStateIdle,
		StartedAt: time.Now(),
	}
}

// Advance moves the session to the next state
func (s *Session) Advance(to SessionState) error {
	for _, allowed := range validTransitions[s.State] {
		if allowed == to {
			s.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
}

// Finish returns the session to idle and stamps the outcome
func (s *Session) Finish(outcome SessionOutcome) {
	now := time.Now()
	s.State = SessionStateIdle
	s.Outcome = outcome
	s.EndedAt = &now
}

// IsActive reports whether the session still holds the relay
func (s *Session) IsActive() bool {
	return s.EndedAt == nil && s.State != SessionStateIdle
}

// Elapsed returns how long the session has been running, or ran
func (s *Session) Elapsed() time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}

	switch s.Origin {
	case SessionOriginRemote, SessionOriginManual, SessionOriginRecord:
	default:
		return errors.New("invalid session origin")
	}

	if _, ok := validTransitions[s.State]; !ok {
		return errors.New("invalid session state")
	}

	return nil
}
