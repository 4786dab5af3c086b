package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/satriahrh/tractrelay/domain/entities"
)

func feedAll(t *testing.T, a *Assembler, msgs []entities.WireMessage) bool {
	t.Helper()
	var done bool
	for _, m := range msgs {
		var err error
		if done, err = a.Feed(m); err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
	}
	return done
}

func testBuffer() entities.CaptureBuffer {
	return entities.CaptureBuffer{
		Format: entities.SampleFormatByte,
		Frames: []entities.Frame{
			{Bytes: []byte{1, 2}},
			{Bytes: []byte{3, 4}},
			{Bytes: []byte{5, 6}},
		},
	}
}

func TestAssembler_Chunked(t *testing.T) {
	buf := testBuffer()
	msgs := NewEncoder(FramingChunked).Encode(buf)

	// Echoed commands and unrelated text around the capture are skipped.
	msgs = append([]entities.WireMessage{entities.TextMessage("M:1|2|3|4|5|6|7|8|9")}, msgs...)

	var a Assembler
	if !feedAll(t, &a, msgs) {
		t.Fatal("capture not complete")
	}
	if a.Chunks() != 3 {
		t.Errorf("Chunks() = %d, want 3", a.Chunks())
	}
	if !bytes.Equal(a.Payload(), BlobPayload(buf)) {
		t.Errorf("Payload() = %v, want %v", a.Payload(), BlobPayload(buf))
	}
}

func TestAssembler_Blob(t *testing.T) {
	buf := testBuffer()
	var a Assembler
	if !feedAll(t, &a, NewEncoder(FramingBlob).Encode(buf)) {
		t.Fatal("capture not complete")
	}
	if !bytes.Equal(a.Payload(), BlobPayload(buf)) {
		t.Errorf("Payload() = %v", a.Payload())
	}

	// Further messages do not change a finished capture.
	done, err := a.Feed(entities.BinaryMessage([]byte{9}))
	if !done || err != nil || len(a.Payload()) != 6 {
		t.Errorf("Feed after done = (%v, %v)", done, err)
	}
}

func TestAssembler_OutOfOrder(t *testing.T) {
	var a Assembler
	a.Feed(entities.TextMessage("S:1/2"))
	_, err := a.Feed(entities.BinaryMessage([]byte{1}))
	if !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Feed() error = %v, want ErrOutOfOrder", err)
	}
}

func TestAssembler_IgnoresUnannouncedBinary(t *testing.T) {
	var a Assembler
	done, err := a.Feed(entities.BinaryMessage([]byte{1}))
	if done || err != nil || a.Done() {
		t.Errorf("Feed() = (%v, %v), want ignored", done, err)
	}
}

func TestAssembler_BadHeader(t *testing.T) {
	var a Assembler
	if _, err := a.Feed(entities.TextMessage("S:x/2")); err == nil {
		t.Error("expected error for malformed header")
	}
}
