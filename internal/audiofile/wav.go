// Package audiofile writes capture payloads as WAV files.
package audiofile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// DefaultSampleRate is the rate stamped on exported captures.
const DefaultSampleRate = 48000

// WriteWAV writes payload as a mono WAV file. Byte captures become 8-bit
// samples; float captures keep their raw 32-bit words.
func WriteWAV(w io.WriteSeeker, format entities.SampleFormat, payload []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	width := format.BytesPerSample()
	if len(payload)%width != 0 {
		return fmt.Errorf("payload of %d bytes is not aligned to %d-byte samples", len(payload), width)
	}

	samples := make([]int, len(payload)/width)
	for i := range samples {
		if width == 4 {
			samples[i] = int(int32(binary.LittleEndian.Uint32(payload[i*4:])))
		} else {
			samples[i] = int(payload[i])
		}
	}

	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: width * 8,
	}

	enc := wav.NewEncoder(w, sampleRate, width*8, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
