package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/domain/repositories"
	"github.com/satriahrh/tractrelay/internal/capture"
	"github.com/satriahrh/tractrelay/internal/codec"
	"github.com/satriahrh/tractrelay/internal/metrics"
)

// DefaultRecordDuration is the capture length of a record session when none
// is given.
const DefaultRecordDuration = time.Second

// ErrSessionActive is returned when a command arrives while another session
// holds the relay.
var ErrSessionActive = errors.New("session already active")

// SynthesisFailure is returned by a cycle whose articulation failed. The
// capture is discarded and nothing is transmitted.
type SynthesisFailure struct {
	SessionID string
	Err       error
}

func (e *SynthesisFailure) Error() string {
	return fmt.Sprintf("synthesis failed in session %s: %v", e.SessionID, e.Err)
}

func (e *SynthesisFailure) Unwrap() error {
	return e.Err
}

// TransportError is returned by a cycle whose capture could not be handed
// to the transport.
type TransportError struct {
	SessionID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transmit failed in session %s: %v", e.SessionID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RelayContext carries the relay's collaborators. It is built once at
// startup.
type RelayContext struct {
	Synthesizer repositories.Synthesizer
	Transport   repositories.Transport
	Sink        *capture.Sink
	Encoder     *codec.Encoder

	// Optional
	Archive repositories.CaptureArchive
	Metrics *metrics.Collector

	// Interval is the capture polling period; zero uses the sink default.
	Interval time.Duration
	// SynthTimeout bounds a single articulation; zero disables it.
	SynthTimeout time.Duration
}

// RelayService runs the command -> capture -> transmit cycle. At most one
// session is active; commands arriving meanwhile are rejected.
type RelayService struct {
	rc     RelayContext
	logger *zap.Logger

	mu      sync.Mutex
	current *entities.Session
	last    *entities.Session

	wg sync.WaitGroup
}

// NewRelayService creates a relay service
func NewRelayService(rc RelayContext, logger *zap.Logger) *RelayService {
	if rc.Metrics != nil {
		rc.Sink.OnFrame(rc.Metrics.RecordFrame)
	}
	return &RelayService{
		rc:     rc,
		logger: logger.With(zap.String("component", "relay")),
	}
}

// HandleMessage handles one inbound text message from the controller.
// Messages that are not articulation commands are ignored and yield a nil
// future. A malformed command returns a *codec.DecodeError and starts
// nothing.
func (s *RelayService) HandleMessage(ctx context.Context, raw string) (<-chan error, error) {
	if !codec.IsCommand(raw) {
		s.logger.Debug("Ignoring non-command message", zap.Int("length", len(raw)))
		return nil, nil
	}

	cmd, err := codec.Decode(raw)
	if err != nil {
		s.rc.Metrics.RecordRejected("decode")
		s.logger.Warn("Dropping malformed command", zap.Error(err))
		return nil, err
	}

	return s.Submit(ctx, cmd, entities.SessionOriginRemote)
}

// Submit starts a session for cmd. It returns ErrSessionActive when the
// relay is busy. The returned channel receives the cycle's result and is
// then closed.
func (s *RelayService) Submit(ctx context.Context, cmd entities.ArticulationCommand, origin entities.SessionOrigin) (<-chan error, error) {
	return s.start(ctx, origin, &cmd, func(ctx context.Context) error {
		return s.rc.Synthesizer.Articulate(ctx, cmd)
	})
}

// Record runs a capture-only session of length d without articulating.
func (s *RelayService) Record(ctx context.Context, d time.Duration) (<-chan error, error) {
	if d <= 0 {
		d = DefaultRecordDuration
	}
	return s.start(ctx, entities.SessionOriginRecord, nil, func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}

// State returns the state of the active session, or idle.
func (s *RelayService) State() entities.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return entities.SessionStateIdle
	}
	return s.current.State
}

// Current returns a copy of the active session, or nil when idle.
func (s *RelayService) Current() *entities.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.current)
}

// Last returns a copy of the most recently finished session.
func (s *RelayService) Last() *entities.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.last)
}

// Wait blocks until every running cycle has finished.
func (s *RelayService) Wait() {
	s.wg.Wait()
}

func (s *RelayService) start(
	ctx context.Context,
	origin entities.SessionOrigin,
	cmd *entities.ArticulationCommand,
	produce func(context.Context) error,
) (<-chan error, error) {
	s.mu.Lock()
	if s.current != nil {
		active := s.current.ID
		s.mu.Unlock()

		s.rc.Metrics.RecordRejected("busy")
		s.logger.Info("Rejecting command, session active",
			zap.String("activeSession", active),
			zap.String("origin", string(origin)))
		return nil, ErrSessionActive
	}

	session := entities.NewSession(origin)
	if err := session.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := session.Advance(entities.SessionStateCapturing); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.current = session
	s.mu.Unlock()

	s.logger.Info("Session started",
		zap.String("sessionID", session.ID),
		zap.String("origin", string(origin)))

	done := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		done <- s.run(ctx, session, cmd, produce)
	}()
	return done, nil
}

func (s *RelayService) run(
	ctx context.Context,
	session *entities.Session,
	cmd *entities.ArticulationCommand,
	produce func(context.Context) error,
) error {
	s.rc.Sink.Start(s.rc.Interval)
	err := s.articulate(ctx, produce)
	s.rc.Sink.Stop()
	s.rc.Synthesizer.Silence()

	if err != nil {
		discarded := s.rc.Sink.Drain()
		s.finish(session, entities.SessionOutcomeSynthesisFailed, discarded.Len())
		s.logger.Error("Articulation failed, capture discarded",
			zap.String("sessionID", session.ID),
			zap.Int("frames", discarded.Len()),
			zap.Error(err))
		return &SynthesisFailure{SessionID: session.ID, Err: err}
	}

	s.mu.Lock()
	err = session.Advance(entities.SessionStateTransmitting)
	s.mu.Unlock()
	if err != nil {
		discarded := s.rc.Sink.Drain()
		s.finish(session, entities.SessionOutcomeTransportFailed, discarded.Len())
		return &TransportError{SessionID: session.ID, Err: err}
	}

	buf := s.rc.Sink.Drain()
	msgs := s.rc.Encoder.Encode(buf)
	if err := s.rc.Transport.Send(ctx, msgs...); err != nil {
		s.finish(session, entities.SessionOutcomeTransportFailed, buf.Len())
		s.logger.Error("Failed to transmit capture",
			zap.String("sessionID", session.ID),
			zap.Int("messages", len(msgs)),
			zap.Error(err))
		return &TransportError{SessionID: session.ID, Err: err}
	}
	s.recordSent(msgs)

	s.archive(ctx, session, cmd, buf)
	s.finish(session, entities.SessionOutcomeTransmitted, buf.Len())

	s.logger.Info("Session transmitted",
		zap.String("sessionID", session.ID),
		zap.Int("frames", buf.Len()),
		zap.Int("messages", len(msgs)),
		zap.String("framing", string(s.rc.Encoder.Framing())))
	return nil
}

// articulate runs produce under the optional timeout. A panic in the engine
// is reported as an error.
func (s *RelayService) articulate(ctx context.Context, produce func(context.Context) error) (err error) {
	if s.rc.SynthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.rc.SynthTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("synthesizer panic: %v", r)
		}
	}()

	return produce(ctx)
}

func (s *RelayService) finish(session *entities.Session, outcome entities.SessionOutcome, frames int) {
	s.mu.Lock()
	session.Frames = frames
	session.Finish(outcome)
	s.last = copySession(session)
	s.current = nil
	s.mu.Unlock()

	s.rc.Metrics.RecordSession(string(session.Origin), string(outcome), session.Elapsed())
}

func (s *RelayService) recordSent(msgs []entities.WireMessage) {
	var text, binary int
	for _, m := range msgs {
		if m.Kind == entities.MessageText {
			text++
		} else {
			binary++
		}
	}
	s.rc.Metrics.RecordSent(text, binary)
}

func (s *RelayService) archive(ctx context.Context, session *entities.Session, cmd *entities.ArticulationCommand, buf entities.CaptureBuffer) {
	if s.rc.Archive == nil {
		return
	}

	record := &entities.CaptureRecord{
		SessionID: session.ID,
		Origin:    session.Origin,
		Command:   cmd,
		Format:    buf.Format,
		Frames:    buf.Len(),
		FrameLen:  buf.FrameLen(),
		StartedAt: session.StartedAt,
		EndedAt:   time.Now(),
		Payload:   codec.BlobPayload(buf),
	}
	if err := s.rc.Archive.Save(ctx, record); err != nil {
		s.logger.Warn("Failed to archive capture",
			zap.String("sessionID", session.ID),
			zap.Error(err))
	}
}

func copySession(session *entities.Session) *entities.Session {
	if session == nil {
		return nil
	}
	c := *session
	return &c
}
