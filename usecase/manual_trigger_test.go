package usecase

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/internal/codec"
)

func within(t *testing.T, name string, v float64, r commandRange) {
	t.Helper()
	if v < r.lo || v > r.hi {
		t.Errorf("%s = %v, want within [%v, %v]", name, v, r.lo, r.hi)
	}
}

func TestRandomCommand_Ranges(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		cmd := RandomCommand(rng)
		within(t, "tongue index", cmd.Tongue.Index, tongueIndexRange)
		within(t, "tongue diameter", cmd.Tongue.Diameter, tongueDiameterRange)
		within(t, "lips index", cmd.Lips.Index, lipsIndexRange)
		within(t, "lips diameter", cmd.Lips.Diameter, lipsDiameterRange)
		within(t, "pitch", cmd.Pitch, pitchRange)
		for j, r := range paramRanges {
			within(t, "param", cmd.Params[j], r)
		}
		if err := cmd.Validate(); err != nil {
			t.Fatalf("random command invalid: %v", err)
		}
	}
}

func TestRandomCommand_EncodesAsValidCommand(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	cmd := RandomCommand(rng)

	decoded, err := codec.Decode(codec.EncodeCommand(cmd))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded != cmd {
		t.Errorf("decoded %+v, want %+v", decoded, cmd)
	}
}

func TestManualTrigger_Fire(t *testing.T) {
	f := newRelayFixture(t, entities.SampleFormatByte, codec.FramingChunked)
	f.engine.release = make(chan struct{})
	trigger := NewManualTrigger(f.service, rand.New(rand.NewPCG(5, 6)), zaptest.NewLogger(t))

	done, err := trigger.Fire(context.Background())
	if err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if current := f.service.Current(); current.Origin != entities.SessionOriginManual {
		t.Errorf("origin = %v, want manual", current.Origin)
	}

	// A remote command is rejected while the manual session runs.
	if _, err := f.service.HandleMessage(context.Background(), validCommand); !errors.Is(err, ErrSessionActive) {
		t.Errorf("remote command error = %v, want ErrSessionActive", err)
	}
	if _, err := trigger.Fire(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Fire() error = %v, want ErrSessionActive", err)
	}

	close(f.engine.release)
	if err := wait(t, done); err != nil {
		t.Fatalf("cycle error = %v", err)
	}
}

func TestManualTrigger_RunReadsLines(t *testing.T) {
	f := newRelayFixture(t, entities.SampleFormatByte, codec.FramingChunked)
	f.engine.hold = 0
	trigger := NewManualTrigger(f.service, nil, zaptest.NewLogger(t))

	if err := trigger.Run(context.Background(), strings.NewReader("\n")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	f.service.Wait()

	if got := f.engine.articulations.Load(); got != 1 {
		t.Errorf("articulations = %d, want 1", got)
	}
	if last := f.service.Last(); last == nil || last.Origin != entities.SessionOriginManual {
		t.Errorf("Last() = %+v, want manual session", last)
	}
}

func TestManualTrigger_RunStopsOnCancel(t *testing.T) {
	f := newRelayFixture(t, entities.SampleFormatByte, codec.FramingChunked)
	trigger := NewManualTrigger(f.service, nil, zaptest.NewLogger(t))

	reader, writer := io.Pipe()
	defer writer.Close()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- trigger.Run(ctx, reader) }()

	cancel()
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
