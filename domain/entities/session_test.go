package entities

import (
	"errors"
	"testing"
	"time"
)

func TestSessionCreation(t *testing.T) {
	session := NewSession(SessionOriginRemote)

	if session.ID == "" {
		t.Error("Expected session ID to be generated")
	}

	if session.State != SessionStateIdle {
		t.Errorf("Expected state %s, got %s", SessionStateIdle, session.State)
	}

	if session.Origin != SessionOriginRemote {
		t.Errorf("Expected origin %s, got %s", SessionOriginRemote, session.Origin)
	}

	if session.EndedAt != nil {
		t.Error("Expected EndedAt to be nil for a new session")
	}

	if err := session.Validate(); err != nil {
		t.Errorf("Expected new session to be valid, got %v", err)
	}
}

func TestSessionAdvance(t *testing.T) {
	tests := []struct {
		name    string
		path    []SessionState
		wantErr bool
	}{
		{
			name: "full cycle",
			path: []SessionState{SessionStateCapturing, SessionStateTransmitting, SessionStateIdle},
		},
		{
			name: "synthesis failure returns to idle",
			path: []SessionState{SessionStateCapturing, SessionStateIdle},
		},
		{
			name:    "cannot transmit before capturing",
			path:    []SessionState{SessionStateTransmitting},
			wantErr: true,
		},
		{
			name:    "cannot capture twice",
			path:    []SessionState{SessionStateCapturing, SessionStateCapturing},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession(SessionOriginManual)
			var err error
			for _, state := range tt.path {
				if err = session.Advance(state); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Advance() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestSessionFinish(t *testing.T) {
	session := NewSession(SessionOriginRemote)
	if err := session.Advance(SessionStateCapturing); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	if !session.IsActive() {
		t.Error("Capturing session should be active")
	}

	time.Sleep(5 * time.Millisecond)
	session.Finish(SessionOutcomeSynthesisFailed)

	if session.IsActive() {
		t.Error("Finished session should not be active")
	}

	if session.State != SessionStateIdle {
		t.Errorf("Expected idle after finish, got %s", session.State)
	}

	if session.Outcome != SessionOutcomeSynthesisFailed {
		t.Errorf("Expected outcome %s, got %s", SessionOutcomeSynthesisFailed, session.Outcome)
	}

	if session.Elapsed() < 5*time.Millisecond {
		t.Errorf("Expected elapsed >= 5ms, got %v", session.Elapsed())
	}
}

func TestSessionValidate(t *testing.T) {
	session := NewSession(SessionOriginRemote)
	session.ID = ""
	if err := session.Validate(); err == nil {
		t.Error("Expected error for empty session id")
	}

	session = NewSession("keyboard")
	if err := session.Validate(); err == nil {
		t.Error("Expected error for unknown origin")
	}

	session = NewSession(SessionOriginRecord)
	session.State = "paused"
	if err := session.Validate(); err == nil {
		t.Error("Expected error for unknown state")
	}
}

func TestArticulationPositionalRoundTrip(t *testing.T) {
	fields := [ArticulationParamCount]float64{10, 2, 20, 3, 1, 1.5, 0.5, 0.5, 440}
	cmd := ArticulationFromPositional(fields)

	if cmd.Tongue != (Constriction{Index: 10, Diameter: 2}) {
		t.Errorf("Unexpected tongue %+v", cmd.Tongue)
	}
	if cmd.Lips != (Constriction{Index: 20, Diameter: 3}) {
		t.Errorf("Unexpected lips %+v", cmd.Lips)
	}
	if cmd.Params != [4]float64{1, 1.5, 0.5, 0.5} {
		t.Errorf("Unexpected params %v", cmd.Params)
	}
	if cmd.Pitch != 440 {
		t.Errorf("Expected pitch 440, got %v", cmd.Pitch)
	}
	if cmd.Duration() != 1.5 {
		t.Errorf("Expected duration 1.5, got %v", cmd.Duration())
	}
	if cmd.Positional() != fields {
		t.Errorf("Positional() = %v, want %v", cmd.Positional(), fields)
	}
}

func TestFrameAndBuffer(t *testing.T) {
	byteFrame := NewFrame(SampleFormatByte, 16)
	if byteFrame.Len() != 16 || byteFrame.Floats != nil {
		t.Errorf("Unexpected byte frame %+v", byteFrame)
	}

	floatFrame := NewFrame(SampleFormatFloat, 8)
	if floatFrame.Len() != 8 || floatFrame.Bytes != nil {
		t.Errorf("Unexpected float frame %+v", floatFrame)
	}

	buf := CaptureBuffer{Format: SampleFormatFloat}
	if buf.Len() != 0 || buf.FrameLen() != 0 {
		t.Error("Empty buffer should report zero lengths")
	}
	buf.Frames = append(buf.Frames, floatFrame, floatFrame)
	if buf.Len() != 2 || buf.FrameLen() != 8 {
		t.Errorf("Unexpected buffer lengths %d/%d", buf.Len(), buf.FrameLen())
	}

	if _, err := ParseSampleFormat("int16"); err == nil {
		t.Error("Expected error for unknown sample format")
	}
	if f, err := ParseSampleFormat("float"); err != nil || f.BytesPerSample() != 4 {
		t.Errorf("ParseSampleFormat(float) = %v, %v", f, err)
	}
}
