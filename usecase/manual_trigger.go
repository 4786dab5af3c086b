package usecase

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
)

// commandRange is the inclusive interval a randomized field is drawn from.
type commandRange struct{ lo, hi float64 }

var (
	tongueIndexRange    = commandRange{6, 35}
	tongueDiameterRange = commandRange{1, 5}
	lipsIndexRange      = commandRange{-50, 50}
	lipsDiameterRange   = commandRange{-1, 35}
	paramRanges         = [4]commandRange{{0, 5}, {0.2, 3}, {0, 1}, {0, 1}}
	pitchRange          = commandRange{20, 1000}
)

func (r commandRange) draw(rng *rand.Rand) float64 {
	return r.lo + rng.Float64()*(r.hi-r.lo)
}

// RandomCommand draws an articulation command with every field inside its
// operating range.
func RandomCommand(rng *rand.Rand) entities.ArticulationCommand {
	cmd := entities.ArticulationCommand{
		Tongue: entities.Constriction{
			Index:    tongueIndexRange.draw(rng),
			Diameter: tongueDiameterRange.draw(rng),
		},
		Lips: entities.Constriction{
			Index:    lipsIndexRange.draw(rng),
			Diameter: lipsDiameterRange.draw(rng),
		},
		Pitch: pitchRange.draw(rng),
	}
	for i, r := range paramRanges {
		cmd.Params[i] = r.draw(rng)
	}
	return cmd
}

// ManualTrigger starts a randomized session for every line read from a
// local input, typically the terminal.
type ManualTrigger struct {
	relay  *RelayService
	rng    *rand.Rand
	logger *zap.Logger
}

// NewManualTrigger creates a manual trigger. A nil rng uses a randomly
// seeded generator.
func NewManualTrigger(relay *RelayService, rng *rand.Rand, logger *zap.Logger) *ManualTrigger {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &ManualTrigger{
		relay:  relay,
		rng:    rng,
		logger: logger.With(zap.String("component", "manual-trigger")),
	}
}

// Run reads lines from r until it is exhausted or ctx is done. Each line
// submits one command; a busy relay drops it.
func (m *ManualTrigger) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan struct{})
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	m.logger.Info("Manual trigger ready, press enter to articulate")

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			m.Fire(ctx)
		}
	}
}

// Fire submits one randomized command.
func (m *ManualTrigger) Fire(ctx context.Context) (<-chan error, error) {
	cmd := RandomCommand(m.rng)
	done, err := m.relay.Submit(ctx, cmd, entities.SessionOriginManual)
	if errors.Is(err, ErrSessionActive) {
		m.logger.Info("Manual trigger ignored, session active")
		return nil, err
	}
	if err != nil {
		m.logger.Warn("Manual trigger failed", zap.Error(err))
		return nil, err
	}

	m.logger.Info("Manual command submitted",
		zap.Float64("pitch", cmd.Pitch),
		zap.Float64("tongueIndex", cmd.Tongue.Index))
	return done, nil
}
