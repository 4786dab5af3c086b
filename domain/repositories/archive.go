package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// ErrCaptureNotFound is returned when no capture matches a session id
var ErrCaptureNotFound = errors.New("capture not found")

// CaptureArchive stores transmitted captures for later analysis
type CaptureArchive interface {
	Save(ctx context.Context, record *entities.CaptureRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (*entities.CaptureRecord, error)
	// List returns the newest records first, at most limit of them.
	List(ctx context.Context, limit int) ([]*entities.CaptureRecord, error)
}
