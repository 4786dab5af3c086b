package api

import "github.com/satriahrh/tractrelay/domain/entities"

// StatusResponse describes the relay's current activity
type StatusResponse struct {
	State         entities.SessionState `json:"state"`
	Current       *entities.Session     `json:"current,omitempty"`
	Last          *entities.Session     `json:"last,omitempty"`
	PeerConnected bool                  `json:"peer_connected"`
	HubClients    int                   `json:"hub_clients"`
	SampleFormat  string                `json:"sample_format"`
	Framing       string                `json:"framing"`
}

// RecordResponse is returned once a record session has finished
type RecordResponse struct {
	Session *entities.Session `json:"session"`
	Error   string            `json:"error,omitempty"`
}

// CaptureListResponse lists archived captures without payloads
type CaptureListResponse struct {
	Captures []*entities.CaptureRecord `json:"captures"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
