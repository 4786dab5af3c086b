// Package capture samples the engine's analyser output into a capture
// buffer while a session is running.
package capture

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/domain/repositories"
)

// DefaultInterval is the analyser polling period.
const DefaultInterval = 10 * time.Millisecond

// Sink polls an AudioSource on a fixed interval and appends frames.
type Sink struct {
	source repositories.AudioSource
	format entities.SampleFormat
	logger *zap.Logger

	mu      sync.Mutex
	buffer  []entities.Frame
	running bool
	stop    chan struct{}
	done    chan struct{}

	// onFrame is called after every appended frame; used for metrics.
	onFrame func()
}

// NewSink creates a sink for the given source. The sample format is fixed
// for the sink's lifetime.
func NewSink(source repositories.AudioSource, format entities.SampleFormat, logger *zap.Logger) *Sink {
	return &Sink{
		source: source,
		format: format,
		logger: logger.With(zap.String("component", "capture-sink")),
	}
}

// OnFrame registers a callback invoked after each captured frame.
func (s *Sink) OnFrame(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = fn
}

// Format returns the sink's sample format.
func (s *Sink) Format() entities.SampleFormat {
	return s.format
}

// Start begins periodic sampling. Calling Start while already running is a
// no-op; the existing ticker keeps its interval.
func (s *Sink) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug("Capture already running, ignoring start")
		return
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(interval, s.stop, s.done)

	s.logger.Debug("Capture started", zap.Duration("interval", interval))
}

// Stop halts sampling and waits for the sampling goroutine to exit. The
// buffer is left intact. Stopping a stopped sink does nothing.
func (s *Sink) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	s.logger.Debug("Capture stopped", zap.Int("frames", s.Len()))
}

// Running reports whether the sink is sampling.
func (s *Sink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Len returns the number of buffered frames.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Drain hands the buffered frames to the caller and clears the buffer.
func (s *Sink) Drain() entities.CaptureBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := entities.CaptureBuffer{Format: s.format, Frames: s.buffer}
	s.buffer = nil
	return buf
}

// Sample takes one snapshot immediately and appends it.
func (s *Sink) Sample() {
	frame := entities.NewFrame(s.format, s.source.FrequencyBinCount())

	// A source with no live output leaves the frame zeroed.
	if s.format == entities.SampleFormatFloat {
		s.source.FloatFrequencyData(frame.Floats)
	} else {
		s.source.ByteFrequencyData(frame.Bytes)
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, frame)
	onFrame := s.onFrame
	s.mu.Unlock()

	if onFrame != nil {
		onFrame()
	}
}

func (s *Sink) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}
