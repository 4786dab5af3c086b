// Package codec translates between the relay wire protocol and the
// articulation / capture entities.
//
// Inbound commands are text messages of the form
//
//	M:p0|p1|p2|p3|p4|p5|p6|p7|p8
//
// Outbound captures are either a "S:<i>/<last>" header followed by one
// binary frame, repeated per frame, or a single "S" marker followed by one
// binary blob holding every frame.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/satriahrh/tractrelay/domain/entities"
)

const (
	// CommandPrefix starts every articulation command.
	CommandPrefix = "M"
	// FieldDelimiter separates command fields.
	FieldDelimiter = "|"
	// SampleMarker starts every outbound capture header.
	SampleMarker = "S"
)

// Framing selects the outbound transmission strategy.
type Framing string

const (
	// FramingChunked sends one header and one binary write per frame.
	FramingChunked Framing = "chunked"
	// FramingBlob sends one marker and one binary write per session.
	FramingBlob Framing = "blob"
)

// ParseFraming validates a configured framing name.
func ParseFraming(s string) (Framing, error) {
	switch Framing(s) {
	case FramingChunked, FramingBlob:
		return Framing(s), nil
	default:
		return "", fmt.Errorf("unknown framing %q (want chunked or blob)", s)
	}
}

// DecodeError reports a malformed articulation command.
type DecodeError struct {
	Raw    string
	Field  int // -1 when the error is not tied to a field
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field >= 0 {
		return fmt.Sprintf("decode articulation command: field %d: %s", e.Field, e.Reason)
	}
	return "decode articulation command: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsCommand reports whether raw carries the articulation command prefix.
// Other messages share the channel and are not errors.
func IsCommand(raw string) bool {
	return strings.HasPrefix(raw, CommandPrefix)
}

// Decode parses an articulation command. Any non-numeric, non-finite or
// missing field fails the whole command.
func Decode(raw string) (entities.ArticulationCommand, error) {
	if !IsCommand(raw) {
		return entities.ArticulationCommand{}, &DecodeError{Raw: raw, Field: -1, Reason: "missing command prefix"}
	}

	body := strings.TrimPrefix(raw, CommandPrefix)
	if strings.HasPrefix(body, ":") || strings.HasPrefix(body, FieldDelimiter) {
		body = body[1:]
	}

	fields := strings.Split(body, FieldDelimiter)
	if len(fields) != entities.ArticulationParamCount {
		return entities.ArticulationCommand{}, &DecodeError{
			Raw:    raw,
			Field:  -1,
			Reason: fmt.Sprintf("expected %d fields, got %d", entities.ArticulationParamCount, len(fields)),
		}
	}

	var values [entities.ArticulationParamCount]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return entities.ArticulationCommand{}, &DecodeError{Raw: raw, Field: i, Reason: fmt.Sprintf("%q is not a number", field), Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return entities.ArticulationCommand{}, &DecodeError{Raw: raw, Field: i, Reason: fmt.Sprintf("%q is not finite", field)}
		}
		values[i] = v
	}

	return entities.ArticulationFromPositional(values), nil
}

// EncodeCommand renders cmd as a wire command.
func EncodeCommand(cmd entities.ArticulationCommand) string {
	positional := cmd.Positional()
	parts := make([]string, len(positional))
	for i, v := range positional {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return CommandPrefix + ":" + strings.Join(parts, FieldDelimiter)
}

// Encoder turns a capture buffer into transport writes.
type Encoder struct {
	framing Framing
}

// NewEncoder creates an encoder for the given framing strategy.
func NewEncoder(framing Framing) *Encoder {
	return &Encoder{framing: framing}
}

// Framing returns the configured framing strategy.
func (e *Encoder) Framing() Framing {
	return e.framing
}

// Chunks splits buf into outbound chunks, preserving frame order.
func (e *Encoder) Chunks(buf entities.CaptureBuffer) []entities.OutboundChunk {
	if e.framing == FramingBlob {
		return []entities.OutboundChunk{{
			SequenceIndex: 0,
			TotalCount:    1,
			Payload:       BlobPayload(buf),
		}}
	}

	chunks := make([]entities.OutboundChunk, 0, len(buf.Frames))
	for i, frame := range buf.Frames {
		chunks = append(chunks, entities.OutboundChunk{
			SequenceIndex: i,
			TotalCount:    len(buf.Frames),
			Payload:       FramePayload(buf.Format, frame),
		})
	}
	return chunks
}

// Encode returns the ordered transport writes for buf.
func (e *Encoder) Encode(buf entities.CaptureBuffer) []entities.WireMessage {
	chunks := e.Chunks(buf)
	msgs := make([]entities.WireMessage, 0, 2*len(chunks))
	for _, chunk := range chunks {
		header := ChunkHeader(chunk)
		if e.framing == FramingBlob {
			header = SampleMarker
		}
		msgs = append(msgs, entities.TextMessage(header), entities.BinaryMessage(chunk.Payload))
	}
	return msgs
}

// ChunkHeader renders the "S:<index>/<last>" header announcing chunk.
func ChunkHeader(chunk entities.OutboundChunk) string {
	return fmt.Sprintf("%s:%d/%d", SampleMarker, chunk.SequenceIndex, chunk.TotalCount-1)
}

// Header is a parsed capture header.
type Header struct {
	Blob  bool
	Index int
	Last  int
}

// ErrNotHeader is returned by ParseHeader for text that is not a capture header.
var ErrNotHeader = errors.New("not a capture header")

// ParseHeader parses "S" or "S:<index>/<last>".
func ParseHeader(text string) (Header, error) {
	if text == SampleMarker {
		return Header{Blob: true}, nil
	}
	rest, ok := strings.CutPrefix(text, SampleMarker+":")
	if !ok {
		return Header{}, ErrNotHeader
	}
	idx, last, ok := strings.Cut(rest, "/")
	if !ok {
		return Header{}, fmt.Errorf("%w: %q", ErrNotHeader, text)
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return Header{}, fmt.Errorf("parse header index: %w", err)
	}
	l, err := strconv.Atoi(last)
	if err != nil {
		return Header{}, fmt.Errorf("parse header total: %w", err)
	}
	if i < 0 || i > l {
		return Header{}, fmt.Errorf("header index %d out of range 0..%d", i, l)
	}
	return Header{Index: i, Last: l}, nil
}

// FramePayload serializes one frame. Byte frames are sent as-is; float
// frames as little-endian float32.
func FramePayload(format entities.SampleFormat, frame entities.Frame) []byte {
	if format == entities.SampleFormatFloat {
		out := make([]byte, 4*len(frame.Floats))
		for i, v := range frame.Floats {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	}
	out := make([]byte, len(frame.Bytes))
	copy(out, frame.Bytes)
	return out
}

// BlobPayload concatenates every frame of buf in order.
func BlobPayload(buf entities.CaptureBuffer) []byte {
	out := make([]byte, 0, buf.Len()*buf.FrameLen()*buf.Format.BytesPerSample())
	for _, frame := range buf.Frames {
		out = append(out, FramePayload(buf.Format, frame)...)
	}
	return out
}

// DecodeFrame is the inverse of FramePayload.
func DecodeFrame(format entities.SampleFormat, payload []byte) (entities.Frame, error) {
	if format != entities.SampleFormatFloat {
		frame := entities.Frame{Bytes: make([]byte, len(payload))}
		copy(frame.Bytes, payload)
		return frame, nil
	}
	if len(payload)%4 != 0 {
		return entities.Frame{}, fmt.Errorf("float payload length %d is not a multiple of 4", len(payload))
	}
	frame := entities.Frame{Floats: make([]float32, len(payload)/4)}
	for i := range frame.Floats {
		frame.Floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
	}
	return frame, nil
}

// SplitBlob cuts a blob payload back into frames of frameLen samples.
func SplitBlob(format entities.SampleFormat, payload []byte, frameLen int) (entities.CaptureBuffer, error) {
	buf := entities.CaptureBuffer{Format: format}
	size := frameLen * format.BytesPerSample()
	if size <= 0 {
		return buf, errors.New("frame length must be positive")
	}
	if len(payload)%size != 0 {
		return buf, fmt.Errorf("blob length %d is not a multiple of frame size %d", len(payload), size)
	}
	for off := 0; off < len(payload); off += size {
		frame, err := DecodeFrame(format, payload[off:off+size])
		if err != nil {
			return buf, err
		}
		buf.Frames = append(buf.Frames, frame)
	}
	return buf, nil
}
