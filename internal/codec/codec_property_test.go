package codec

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// Any finite command survives an encode/decode trip field for field.
func TestProperty_CommandRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var fields [entities.ArticulationParamCount]float64
		for i := range fields {
			fields[i] = rapid.Float64Range(-1e6, 1e6).Draw(t, "field")
		}
		cmd := entities.ArticulationFromPositional(fields)

		got, err := Decode(EncodeCommand(cmd))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got != cmd {
			t.Fatalf("round trip = %+v, want %+v", got, cmd)
		}
	})
}

// Any field count other than nine is rejected.
func TestProperty_WrongArityRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Filter(func(n int) bool {
			return n != entities.ArticulationParamCount
		}).Draw(t, "n")

		raw := CommandPrefix + ":"
		for i := 0; i < n; i++ {
			if i > 0 {
				raw += FieldDelimiter
			}
			raw += "1"
		}
		if _, err := Decode(raw); err == nil {
			t.Fatalf("Decode(%q) accepted %d fields", raw, n)
		}
	})
}

// Chunked framing emits one header/payload pair per frame, in frame order,
// and blob framing carries the same bytes concatenated.
func TestProperty_FramingPreservesOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frameLen := rapid.IntRange(1, 32).Draw(t, "frameLen")
		count := rapid.IntRange(0, 40).Draw(t, "count")

		buf := entities.CaptureBuffer{Format: entities.SampleFormatByte}
		for i := 0; i < count; i++ {
			frame := rapid.SliceOfN(rapid.Byte(), frameLen, frameLen).Draw(t, "frame")
			buf.Frames = append(buf.Frames, entities.Frame{Bytes: frame})
		}

		chunked := NewEncoder(FramingChunked).Encode(buf)
		if len(chunked) != 2*count {
			t.Fatalf("chunked produced %d messages for %d frames", len(chunked), count)
		}
		var joined []byte
		for i := 0; i < count; i++ {
			header, err := ParseHeader(string(chunked[2*i].Payload))
			if err != nil {
				t.Fatalf("bad header: %v", err)
			}
			if header.Index != i || header.Last != count-1 {
				t.Fatalf("header %d = %+v", i, header)
			}
			joined = append(joined, chunked[2*i+1].Payload...)
		}

		blob := NewEncoder(FramingBlob).Encode(buf)
		if !bytes.Equal(blob[1].Payload, joined) {
			t.Fatalf("blob payload differs from concatenated chunks")
		}
	})
}
