package entities

import "fmt"

// SampleFormat selects how analyser magnitudes are captured and sent.
type SampleFormat string

const (
	// SampleFormatByte captures 0..255 quantized magnitudes.
	SampleFormatByte SampleFormat = "byte"
	// SampleFormatFloat captures float32 magnitudes in decibels.
	SampleFormatFloat SampleFormat = "float"
)

// ParseSampleFormat validates a configured sample format name.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch SampleFormat(s) {
	case SampleFormatByte, SampleFormatFloat:
		return SampleFormat(s), nil
	default:
		return "", fmt.Errorf("unknown sample format %q (want byte or float)", s)
	}
}

// BytesPerSample returns the wire size of one sample.
func (f SampleFormat) BytesPerSample() int {
	if f == SampleFormatFloat {
		return 4
	}
	return 1
}

// Frame is one analyser snapshot. Exactly one of Bytes or Floats is set,
// according to the capture format.
type Frame struct {
	Bytes  []byte
	Floats []float32
}

// NewFrame allocates a zeroed frame of the given size.
func NewFrame(format SampleFormat, bins int) Frame {
	if format == SampleFormatFloat {
		return Frame{Floats: make([]float32, bins)}
	}
	return Frame{Bytes: make([]byte, bins)}
}

// Len returns the number of samples in the frame.
func (f Frame) Len() int {
	if f.Floats != nil {
		return len(f.Floats)
	}
	return len(f.Bytes)
}

// CaptureBuffer is the ordered list of frames captured during one session.
type CaptureBuffer struct {
	Format SampleFormat
	Frames []Frame
}

// Len returns the number of captured frames.
func (b CaptureBuffer) Len() int {
	return len(b.Frames)
}

// FrameLen returns the sample count of the first frame, or zero.
func (b CaptureBuffer) FrameLen() int {
	if len(b.Frames) == 0 {
		return 0
	}
	return b.Frames[0].Len()
}

// OutboundChunk is one framed unit of a transmitted capture buffer.
type OutboundChunk struct {
	SequenceIndex int
	TotalCount    int
	Payload       []byte
}

// MessageKind distinguishes text from binary transport writes.
type MessageKind int

const (
	MessageText MessageKind = iota + 1
	MessageBinary
)

// WireMessage is a single write on the transport channel.
type WireMessage struct {
	Kind    MessageKind
	Payload []byte
}

// TextMessage builds a text WireMessage.
func TextMessage(s string) WireMessage {
	return WireMessage{Kind: MessageText, Payload: []byte(s)}
}

// BinaryMessage builds a binary WireMessage.
func BinaryMessage(b []byte) WireMessage {
	return WireMessage{Kind: MessageBinary, Payload: b}
}
