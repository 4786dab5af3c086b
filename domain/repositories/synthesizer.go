package repositories

import (
	"context"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// Synthesizer abstracts the vocal-tract engine that produces sound
type Synthesizer interface {
	// Articulate shapes the tract for cmd and blocks until the utterance
	// completes. A returned error means the utterance failed.
	Articulate(ctx context.Context, cmd entities.ArticulationCommand) error
	// Silence stops any sound. It is idempotent and always safe to call.
	Silence()
}

// AudioSource is a live analyser tap on the engine output
type AudioSource interface {
	// FrequencyBinCount is the number of magnitude bins per snapshot.
	FrequencyBinCount() int
	// ByteFrequencyData copies quantized magnitudes into dst. It returns
	// false when the engine has no active output.
	ByteFrequencyData(dst []byte) bool
	// FloatFrequencyData copies decibel magnitudes into dst. It returns
	// false when the engine has no active output.
	FloatFrequencyData(dst []float32) bool
}
