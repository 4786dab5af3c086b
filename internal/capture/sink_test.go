package capture

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// stubSource returns an increasing byte value on every snapshot while live.
type stubSource struct {
	bins  int
	live  atomic.Bool
	calls atomic.Int32
}

func (s *stubSource) FrequencyBinCount() int { return s.bins }

func (s *stubSource) ByteFrequencyData(dst []byte) bool {
	n := s.calls.Add(1)
	if !s.live.Load() {
		return false
	}
	for i := range dst {
		dst[i] = byte(n)
	}
	return true
}

func (s *stubSource) FloatFrequencyData(dst []float32) bool {
	n := s.calls.Add(1)
	if !s.live.Load() {
		return false
	}
	for i := range dst {
		dst[i] = -float32(n)
	}
	return true
}

func TestSink_StartStopDrain(t *testing.T) {
	source := &stubSource{bins: 4}
	source.live.Store(true)
	sink := NewSink(source, entities.SampleFormatByte, zaptest.NewLogger(t))

	sink.Start(2 * time.Millisecond)
	if !sink.Running() {
		t.Fatal("Sink should be running after Start")
	}
	time.Sleep(30 * time.Millisecond)
	sink.Stop()

	if sink.Running() {
		t.Fatal("Sink should not be running after Stop")
	}

	n := sink.Len()
	if n == 0 {
		t.Fatal("Expected frames to be captured")
	}

	// No frames may arrive after Stop returns.
	time.Sleep(10 * time.Millisecond)
	if sink.Len() != n {
		t.Errorf("Frames grew after Stop: %d -> %d", n, sink.Len())
	}

	buf := sink.Drain()
	if buf.Len() != n {
		t.Errorf("Drain returned %d frames, want %d", buf.Len(), n)
	}
	if buf.Format != entities.SampleFormatByte {
		t.Errorf("Expected byte format, got %s", buf.Format)
	}
	for i := 1; i < buf.Len(); i++ {
		if buf.Frames[i].Bytes[0] <= buf.Frames[i-1].Bytes[0] {
			t.Fatalf("Frames out of order at %d", i)
		}
	}

	if sink.Len() != 0 {
		t.Errorf("Drain should clear the buffer, %d frames left", sink.Len())
	}
}

func TestSink_StartIsIdempotent(t *testing.T) {
	source := &stubSource{bins: 1}
	source.live.Store(true)
	sink := NewSink(source, entities.SampleFormatByte, zaptest.NewLogger(t))

	sink.Start(5 * time.Millisecond)
	firstStop := sink.stop
	sink.Start(time.Millisecond)
	if sink.stop != firstStop {
		t.Error("Second Start should not replace the running ticker")
	}
	sink.Stop()
}

func TestSink_StopWhenStoppedKeepsBuffer(t *testing.T) {
	source := &stubSource{bins: 2}
	source.live.Store(true)
	sink := NewSink(source, entities.SampleFormatByte, zaptest.NewLogger(t))

	sink.Stop()
	sink.Sample()
	sink.Sample()
	sink.Stop()
	sink.Stop()

	if sink.Len() != 2 {
		t.Errorf("Expected buffer of 2 frames to be untouched, got %d", sink.Len())
	}
}

func TestSink_NoActiveOutputYieldsZeroFrames(t *testing.T) {
	source := &stubSource{bins: 3}
	sink := NewSink(source, entities.SampleFormatFloat, zaptest.NewLogger(t))

	sink.Sample()
	buf := sink.Drain()
	if buf.Len() != 1 {
		t.Fatalf("Expected 1 frame, got %d", buf.Len())
	}
	frame := buf.Frames[0]
	if len(frame.Floats) != 3 {
		t.Fatalf("Expected 3 float bins, got %d", len(frame.Floats))
	}
	for i, v := range frame.Floats {
		if v != 0 {
			t.Errorf("Bin %d = %v, want 0", i, v)
		}
	}
}

func TestSink_OnFrameCallback(t *testing.T) {
	source := &stubSource{bins: 1}
	sink := NewSink(source, entities.SampleFormatByte, zaptest.NewLogger(t))

	var mu sync.Mutex
	count := 0
	sink.OnFrame(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	sink.Sample()
	sink.Sample()

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("Expected 2 callbacks, got %d", count)
	}
}

func TestSink_SampleWithoutOutputIsZeroed(t *testing.T) {
	tests := []struct {
		name   string
		format entities.SampleFormat
	}{
		{name: "byte", format: entities.SampleFormatByte},
		{name: "float", format: entities.SampleFormatFloat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := NewSink(&stubSource{bins: 3}, tt.format, zaptest.NewLogger(t))
			sink.Sample()

			buf := sink.Drain()
			if buf.Len() != 1 {
				t.Fatalf("frames = %d, want 1", buf.Len())
			}
			frame := buf.Frames[0]
			if frame.Len() != 3 {
				t.Fatalf("frame length = %d, want 3", frame.Len())
			}
			for i, v := range frame.Bytes {
				if v != 0 {
					t.Errorf("byte bin %d = %d, want 0", i, v)
				}
			}
			for i, v := range frame.Floats {
				if v != 0 {
					t.Errorf("float bin %d = %v, want 0", i, v)
				}
			}
		})
	}
}
