package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/domain/repositories"
	"github.com/satriahrh/tractrelay/internal/audiofile"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// FileArchive writes each capture as three files in a directory:
// <session>.json with the metadata, <session>.bin with the raw payload and
// <session>.wav for listening.
type FileArchive struct {
	dir           string
	wavSampleRate int
	logger        *zap.Logger
}

var _ repositories.CaptureArchive = (*FileArchive)(nil)

// NewFileArchive creates dir if needed.
func NewFileArchive(dir string, wavSampleRate int, logger *zap.Logger) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileArchive{
		dir:           dir,
		wavSampleRate: wavSampleRate,
		logger:        logger.With(zap.String("component", "file-archive")),
	}, nil
}

func (a *FileArchive) path(sessionID, ext string) string {
	return filepath.Join(a.dir, sessionID+ext)
}

// Save implements repositories.CaptureArchive
func (a *FileArchive) Save(ctx context.Context, record *entities.CaptureRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if !sessionIDPattern.MatchString(record.SessionID) {
		return fmt.Errorf("invalid session ID %q", record.SessionID)
	}

	meta, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode capture metadata: %w", err)
	}
	if err := os.WriteFile(a.path(record.SessionID, ".bin"), record.Payload, 0o644); err != nil {
		return fmt.Errorf("write capture payload: %w", err)
	}
	if err := a.writeWAV(record); err != nil {
		return err
	}
	// Metadata last: a record is listed only once it is complete.
	if err := os.WriteFile(a.path(record.SessionID, ".json"), meta, 0o644); err != nil {
		return fmt.Errorf("write capture metadata: %w", err)
	}

	a.logger.Debug("Capture archived",
		zap.String("sessionID", record.SessionID),
		zap.Int("bytes", len(record.Payload)))
	return nil
}

func (a *FileArchive) writeWAV(record *entities.CaptureRecord) error {
	f, err := os.Create(a.path(record.SessionID, ".wav"))
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	return audiofile.WriteWAV(f, record.Format, record.Payload, a.wavSampleRate)
}

// GetBySessionID implements repositories.CaptureArchive
func (a *FileArchive) GetBySessionID(ctx context.Context, sessionID string) (*entities.CaptureRecord, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return nil, repositories.ErrCaptureNotFound
	}

	record, err := a.readMeta(a.path(sessionID, ".json"))
	if err != nil {
		return nil, err
	}
	record.Payload, err = os.ReadFile(a.path(sessionID, ".bin"))
	if err != nil {
		return nil, fmt.Errorf("read capture payload: %w", err)
	}
	return record, nil
}

// List implements repositories.CaptureArchive. Payloads are not loaded.
func (a *FileArchive) List(ctx context.Context, limit int) ([]*entities.CaptureRecord, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	var out []*entities.CaptureRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := a.readMeta(filepath.Join(a.dir, entry.Name()))
		if err != nil {
			a.logger.Warn("Skipping unreadable capture", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		out = append(out, record)
	}
	sortNewestFirst(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *FileArchive) readMeta(path string) (*entities.CaptureRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repositories.ErrCaptureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read capture metadata: %w", err)
	}

	var record entities.CaptureRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode capture metadata: %w", err)
	}
	return &record, nil
}
