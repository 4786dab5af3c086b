package codec

import (
	"errors"
	"fmt"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// ErrOutOfOrder is returned when a chunk arrives with an unexpected index.
var ErrOutOfOrder = errors.New("capture chunk out of order")

// Assembler rebuilds one transmitted capture on the receiving side. Text
// that is not a capture header, and binary messages not announced by a
// header, are ignored.
type Assembler struct {
	pending *Header
	chunks  [][]byte
	payload []byte
	done    bool
}

// Feed consumes one wire message and reports whether the capture is
// complete.
func (a *Assembler) Feed(msg entities.WireMessage) (bool, error) {
	if a.done {
		return true, nil
	}

	if msg.Kind == entities.MessageText {
		h, err := ParseHeader(string(msg.Payload))
		if errors.Is(err, ErrNotHeader) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		a.pending = &h
		return false, nil
	}

	if a.pending == nil {
		return false, nil
	}
	h := *a.pending
	a.pending = nil

	if h.Blob {
		a.payload = append([]byte(nil), msg.Payload...)
		a.done = true
		return true, nil
	}

	if h.Index != len(a.chunks) {
		return false, fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, h.Index, len(a.chunks))
	}
	a.chunks = append(a.chunks, append([]byte(nil), msg.Payload...))
	if h.Index == h.Last {
		for _, c := range a.chunks {
			a.payload = append(a.payload, c...)
		}
		a.done = true
	}
	return a.done, nil
}

// Done reports whether a complete capture has been received.
func (a *Assembler) Done() bool {
	return a.done
}

// Payload returns the concatenated capture once Done.
func (a *Assembler) Payload() []byte {
	return a.payload
}

// Chunks returns the number of chunks received in chunked framing.
func (a *Assembler) Chunks() int {
	return len(a.chunks)
}
