package synth

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/domain/repositories"
)

// ExecEngine drives an external vocal-tract engine process. Each
// articulation starts the command, writes the request as JSON to its stdin
// and reads newline-delimited spectrum updates from its stdout. The
// articulation completes when the process exits.
type ExecEngine struct {
	cmd    []string
	bins   int
	logger *zap.Logger

	run sync.Mutex // one articulation at a time

	mu       sync.RWMutex
	spectrum []float32
	cancel   context.CancelFunc
}

// maxOutputLine bounds a single spectrum update from the engine.
var maxOutputLine = 4 * 1024 * 1024

var (
	_ repositories.Synthesizer = (*ExecEngine)(nil)
	_ repositories.AudioSource = (*ExecEngine)(nil)
)

type execRequest struct {
	Tongue entities.Constriction `json:"tongue"`
	Lips   entities.Constriction `json:"lips"`
	Params [4]float64            `json:"params"`
	Pitch  float64               `json:"pitch"`
	Bins   int                   `json:"bins"`
}

type execResponse struct {
	Magnitudes []float32 `json:"magnitudes"`
}

// NewExecEngine parses command with shell quoting rules. bins is the number
// of analyser bins requested from the process.
func NewExecEngine(command string, bins int, logger *zap.Logger) (*ExecEngine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synth command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synth command empty")
	}
	if bins <= 0 {
		bins = DefaultFFTSize / 2
	}
	return &ExecEngine{
		cmd:    args,
		bins:   bins,
		logger: logger.With(zap.String("component", "exec-engine")),
	}, nil
}

// FrequencyBinCount implements repositories.AudioSource
func (e *ExecEngine) FrequencyBinCount() int {
	return e.bins
}

// Articulate implements repositories.Synthesizer
func (e *ExecEngine) Articulate(ctx context.Context, cmd entities.ArticulationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	e.run.Lock()
	defer e.run.Unlock()

	data, err := json.Marshal(execRequest{
		Tongue: cmd.Tongue,
		Lips:   cmd.Lips,
		Params: cmd.Params,
		Pitch:  cmd.Pitch,
		Bins:   e.bins,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	proc := exec.CommandContext(runCtx, e.cmd[0], e.cmd[1:]...)
	stdin, err := proc.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return err
	}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("start synth command: %w", err)
	}

	if _, err := stdin.Write(data); err != nil {
		cancel()
		_ = proc.Wait()
		return fmt.Errorf("write synth request: %w", err)
	}
	stdin.Close()

	updates := 0
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			cancel()
			_ = proc.Wait()
			return fmt.Errorf("decode synth output: %w", err)
		}
		e.mu.Lock()
		e.spectrum = resp.Magnitudes
		e.mu.Unlock()
		updates++
	}

	if err := scanner.Err(); err != nil {
		cancel()
		_ = proc.Wait()
		return fmt.Errorf("read synth output: %w", err)
	}
	if err := proc.Wait(); err != nil {
		return fmt.Errorf("synth command: %w", err)
	}

	e.logger.Debug("Articulation finished",
		zap.Float64("pitch", cmd.Pitch),
		zap.Int("updates", updates))
	return nil
}

// Silence implements repositories.Synthesizer. A running process is killed.
func (e *ExecEngine) Silence() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.spectrum = nil
}

// ByteFrequencyData implements repositories.AudioSource
func (e *ExecEngine) ByteFrequencyData(dst []byte) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.spectrum == nil {
		return false
	}
	snapshotByte(e.spectrum, dst)
	return true
}

// FloatFrequencyData implements repositories.AudioSource
func (e *ExecEngine) FloatFrequencyData(dst []float32) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.spectrum == nil {
		return false
	}
	snapshotFloat(e.spectrum, dst)
	return true
}
