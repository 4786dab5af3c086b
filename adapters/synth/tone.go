// Package synth provides Synthesizer and AudioSource implementations: an
// in-process harmonic tone engine and an adapter for an external engine
// process.
package synth

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/domain/repositories"
)

const (
	DefaultSampleRate = 44100
	DefaultFFTSize    = 2048
	DefaultVolume     = 0.5

	// MaxHold caps the hold time of a single articulation.
	MaxHold = 10 * time.Second
)

// ToneConfig configures the built-in tone engine.
type ToneConfig struct {
	SampleRate int
	FFTSize    int
	Volume     float64
}

// ToneEngine renders an articulation as a harmonic series at the command's
// pitch, shaped by three formant resonances derived from the tongue and lip
// constrictions. It exposes the resulting magnitude spectrum as a live
// analyser tap.
type ToneEngine struct {
	sampleRate int
	fftSize    int
	volume     float64
	logger     *zap.Logger

	mu       sync.RWMutex
	spectrum []float32 // nil while silent
}

var (
	_ repositories.Synthesizer = (*ToneEngine)(nil)
	_ repositories.AudioSource = (*ToneEngine)(nil)
)

// NewToneEngine creates a tone engine, applying defaults to zero fields.
func NewToneEngine(cfg ToneConfig, logger *zap.Logger) *ToneEngine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	if cfg.Volume <= 0 {
		cfg.Volume = DefaultVolume
	}
	return &ToneEngine{
		sampleRate: cfg.SampleRate,
		fftSize:    cfg.FFTSize,
		volume:     cfg.Volume,
		logger:     logger.With(zap.String("component", "tone-engine")),
	}
}

// FrequencyBinCount implements repositories.AudioSource
func (e *ToneEngine) FrequencyBinCount() int {
	return e.fftSize / 2
}

// Articulate implements repositories.Synthesizer. The engine keeps sounding
// after the hold time elapses until Silence is called.
func (e *ToneEngine) Articulate(ctx context.Context, cmd entities.ArticulationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if cmd.Pitch <= 0 {
		return fmt.Errorf("pitch must be positive, got %v", cmd.Pitch)
	}

	hold := HoldDuration(cmd)
	spectrum := e.Spectrum(cmd)

	e.mu.Lock()
	e.spectrum = spectrum
	e.mu.Unlock()

	e.logger.Debug("Articulating",
		zap.Float64("pitch", cmd.Pitch),
		zap.Duration("hold", hold))

	timer := time.NewTimer(hold)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Silence implements repositories.Synthesizer
func (e *ToneEngine) Silence() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spectrum = nil
}

// Sounding reports whether the engine currently produces output.
func (e *ToneEngine) Sounding() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spectrum != nil
}

// ByteFrequencyData implements repositories.AudioSource
func (e *ToneEngine) ByteFrequencyData(dst []byte) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.spectrum == nil {
		return false
	}
	snapshotByte(e.spectrum, dst)
	return true
}

// FloatFrequencyData implements repositories.AudioSource
func (e *ToneEngine) FloatFrequencyData(dst []float32) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.spectrum == nil {
		return false
	}
	snapshotFloat(e.spectrum, dst)
	return true
}

// HoldDuration is the articulation's hold time: the second shape
// parameter in seconds, clamped to [0, MaxHold].
func HoldDuration(cmd entities.ArticulationCommand) time.Duration {
	seconds := clamp(cmd.Duration(), 0, MaxHold.Seconds())
	return time.Duration(seconds * float64(time.Second))
}

type formant struct {
	freq      float64
	bandwidth float64
}

// formants maps the tract shape onto three resonances. A wider tongue
// constriction and open lips raise F1; a tongue placed further back lowers
// F2; lip position shifts F3.
func formants(cmd entities.ArticulationCommand) [3]formant {
	tongueIndex := clamp(cmd.Tongue.Index, 6, 35)
	tongueDiameter := clamp(cmd.Tongue.Diameter, 0, 5)
	lipsOpen := clamp((cmd.Lips.Diameter+1)/36, 0.1, 1)

	return [3]formant{
		{freq: 250 + 150*tongueDiameter*lipsOpen, bandwidth: 80},
		{freq: 2500 - 45*(tongueIndex-6), bandwidth: 120},
		{freq: 2800 + 10*clamp(cmd.Lips.Index, -50, 50), bandwidth: 160},
	}
}

// Spectrum computes the decibel magnitude per analyser bin for cmd.
func (e *ToneEngine) Spectrum(cmd entities.ArticulationCommand) []float32 {
	bins := e.FrequencyBinCount()
	binHz := float64(e.sampleRate) / float64(e.fftSize)
	nyquist := float64(e.sampleRate) / 2

	intensity := 0.2 + 0.8*clamp(cmd.Params[0], 0, 5)/5
	tenseness := clamp(cmd.Params[2], 0, 1)
	breath := clamp(cmd.Params[3], 0, 1)
	rolloff := 2 - tenseness

	power := make([]float64, bins)
	fs := formants(cmd)
	for k := 1; float64(k)*cmd.Pitch < nyquist; k++ {
		f := float64(k) * cmd.Pitch
		bin := int(math.Round(f / binHz))
		if bin >= bins {
			break
		}

		gain := 0.05
		for _, fm := range fs {
			d := (f - fm.freq) / fm.bandwidth
			gain += 1 / (1 + d*d)
		}
		amp := e.volume * intensity * gain / math.Pow(float64(k), rolloff)
		power[bin] += amp * amp
	}

	floor := MinDecibels + 30*breath
	spectrum := make([]float32, bins)
	for i, p := range power {
		db := floor
		if p > 0 {
			db = math.Max(floor, 10*math.Log10(p)+MaxDecibels)
		}
		spectrum[i] = float32(db)
	}
	return spectrum
}
