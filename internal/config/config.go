// Package config loads relay settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/internal/codec"
)

// Synthesizer engines
const (
	SynthTone = "tone"
	SynthExec = "exec"
)

// Archive backends
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveFile   = "file"
	ArchiveMongo  = "mongo"
)

// Config holds every runtime setting of the relay daemon.
type Config struct {
	// Hub
	Host         string
	Port         int
	HubPath      string
	HubEnabled   bool
	HubJWTSecret string

	// Peer connection to the controller
	PeerURL        string
	PeerToken      string
	ReconnectDelay time.Duration

	// Capture and wire format
	CaptureInterval time.Duration
	SampleFormat    entities.SampleFormat
	Framing         codec.Framing

	// Synthesizer
	SynthMode       string
	SynthCommand    string
	SynthTimeout    time.Duration
	SynthSampleRate int
	FFTSize         int

	ManualTrigger bool

	// Archive
	ArchiveMode   string
	ArchiveDir    string
	MongoURI      string
	MongoDatabase string
	WAVSampleRate int

	StaticDir        string
	LogLevel         string
	MetricsNamespace string
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; real environment variables take precedence.
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a config from lookup, applying defaults for unset keys.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}

	c := &Config{
		Host:         r.str("WS_HOST", "localhost"),
		Port:         r.integer("WS_PORT", 5678),
		HubPath:      r.str("HUB_PATH", "/ws"),
		HubEnabled:   r.boolean("HUB_ENABLED", true),
		HubJWTSecret: r.str("HUB_JWT_SECRET", ""),

		PeerToken:      r.str("RELAY_PEER_TOKEN", ""),
		ReconnectDelay: r.duration("RELAY_RECONNECT_DELAY", 2*time.Second),

		CaptureInterval: r.duration("CAPTURE_INTERVAL", 10*time.Millisecond),
		SampleFormat:    entities.SampleFormat(r.str("SAMPLE_FORMAT", string(entities.SampleFormatByte))),
		Framing:         codec.Framing(r.str("FRAMING", string(codec.FramingChunked))),

		SynthMode:       r.str("SYNTH_MODE", SynthTone),
		SynthCommand:    r.str("SYNTH_COMMAND", ""),
		SynthTimeout:    r.duration("SYNTH_TIMEOUT", 0),
		SynthSampleRate: r.integer("SYNTH_SAMPLE_RATE", 44100),
		FFTSize:         r.integer("FFT_SIZE", 2048),

		ManualTrigger: r.boolean("MANUAL_TRIGGER", false),

		ArchiveMode:   r.str("ARCHIVE_MODE", ArchiveNone),
		ArchiveDir:    r.str("ARCHIVE_DIR", "captures"),
		MongoURI:      r.str("MONGODB_URI", ""),
		MongoDatabase: r.str("MONGODB_DATABASE", "tractrelay"),
		WAVSampleRate: r.integer("WAV_SAMPLE_RATE", 48000),

		StaticDir:        r.str("STATIC_DIR", ""),
		LogLevel:         strings.ToLower(r.str("LOG_LEVEL", "info")),
		MetricsNamespace: r.str("METRICS_NAMESPACE", "tractrelay"),
	}

	// The relay talks to its own hub unless pointed elsewhere.
	c.PeerURL = r.str("RELAY_PEER_URL", fmt.Sprintf("ws://%s%s", c.Addr(), c.HubPath))

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Addr is the hub's listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("WS_PORT out of range: %d", c.Port))
	}
	if !strings.HasPrefix(c.HubPath, "/") {
		errs = append(errs, fmt.Errorf("HUB_PATH must start with /: %q", c.HubPath))
	}
	if c.PeerURL == "" {
		errs = append(errs, errors.New("RELAY_PEER_URL is required"))
	}
	if c.CaptureInterval <= 0 {
		errs = append(errs, fmt.Errorf("CAPTURE_INTERVAL must be positive: %v", c.CaptureInterval))
	}
	if c.SynthTimeout < 0 {
		errs = append(errs, fmt.Errorf("SYNTH_TIMEOUT must not be negative: %v", c.SynthTimeout))
	}
	if _, err := entities.ParseSampleFormat(string(c.SampleFormat)); err != nil {
		errs = append(errs, fmt.Errorf("SAMPLE_FORMAT: %w", err))
	}
	if _, err := codec.ParseFraming(string(c.Framing)); err != nil {
		errs = append(errs, fmt.Errorf("FRAMING: %w", err))
	}

	switch c.SynthMode {
	case SynthTone:
	case SynthExec:
		if c.SynthCommand == "" {
			errs = append(errs, errors.New("SYNTH_COMMAND is required when SYNTH_MODE=exec"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SYNTH_MODE %q (want tone or exec)", c.SynthMode))
	}
	if c.FFTSize < 32 || c.FFTSize&(c.FFTSize-1) != 0 {
		errs = append(errs, fmt.Errorf("FFT_SIZE must be a power of two >= 32: %d", c.FFTSize))
	}
	if c.SynthSampleRate <= 0 || c.WAVSampleRate <= 0 {
		errs = append(errs, errors.New("sample rates must be positive"))
	}

	switch c.ArchiveMode {
	case ArchiveNone, ArchiveMemory:
	case ArchiveFile:
		if c.ArchiveDir == "" {
			errs = append(errs, errors.New("ARCHIVE_DIR is required when ARCHIVE_MODE=file"))
		}
	case ArchiveMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when ARCHIVE_MODE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ARCHIVE_MODE %q", c.ArchiveMode))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// reader collects parse errors so every bad key is reported at once.
type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

// duration accepts Go duration strings or a bare number of milliseconds.
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
