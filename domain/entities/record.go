package entities

import "time"

// CaptureRecord is the archived copy of a transmitted session.
type CaptureRecord struct {
	SessionID string               `json:"session_id" bson:"session_id"`
	Origin    SessionOrigin        `json:"origin" bson:"origin"`
	Command   *ArticulationCommand `json:"command,omitempty" bson:"command,omitempty"`
	Format    SampleFormat         `json:"format" bson:"format"`
	Frames    int                  `json:"frames" bson:"frames"`
	FrameLen  int                  `json:"frame_len" bson:"frame_len"`
	StartedAt time.Time            `json:"started_at" bson:"started_at"`
	EndedAt   time.Time            `json:"ended_at" bson:"ended_at"`
	Payload   []byte               `json:"-" bson:"payload"`
}
