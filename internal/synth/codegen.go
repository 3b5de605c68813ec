package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultGeneratorBin is the external schema compiler invoked for each
	// synthesis call. It reads a JSON document and writes model source text.
	DefaultGeneratorBin = "datamodel-codegen"

	// DefaultGeneratorTimeout bounds a single generator run. The tool is not
	// trusted for liveness; on expiry the subprocess is killed.
	DefaultGeneratorTimeout = 60 * time.Second
)

// GeneratorConfig configures the external generator adapter.
type GeneratorConfig struct {
	Bin     string        // Generator binary (default: datamodel-codegen)
	Timeout time.Duration // Per-run timeout (default: 60s)
	Logger  *slog.Logger
}

// Generator invokes the external code-generation tool as a synchronous,
// blocking subprocess. All failure modes - nonzero exit, timeout, missing
// binary, empty output - surface as determinate ErrGenerationFailed values;
// nothing escapes this boundary as a panic.
type Generator struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGenerator creates a generator adapter.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Bin == "" {
		cfg.Bin = DefaultGeneratorBin
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGeneratorTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Generator{bin: cfg.Bin, timeout: cfg.Timeout, logger: cfg.Logger}
}

// Available reports whether the generator binary can be found in PATH.
func (g *Generator) Available() error {
	if _, err := exec.LookPath(g.bin); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", g.bin, err)
	}
	return nil
}

// Generate runs the external tool against inputPath, writing source text to
// outputPath. Success means the subprocess exited zero AND the output file is
// non-empty; anything else returns a StageError wrapping ErrGenerationFailed
// with the tool's combined output as diagnostic text.
func (g *Generator) Generate(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.bin, "--input", inputPath, "--output", outputPath)
	// Without a WaitDelay, CombinedOutput blocks past the kill if a child of
	// the tool inherits the output pipe and outlives it.
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		// CommandContext kills the subprocess when the deadline fires.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return stageErr(StageGenerate, ErrGenerationFailed,
				"generator timed out after %s", g.timeout)
		}
		return stageErr(StageGenerate, ErrGenerationFailed,
			"%v: %s", err, strings.TrimSpace(string(out)))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return stageErr(StageGenerate, ErrGenerationFailed,
			"generator produced no output file: %v", err)
	}
	if info.Size() == 0 {
		return stageErr(StageGenerate, ErrGenerationFailed, "generator produced empty output")
	}

	g.logger.Debug("generation successful", "input", inputPath, "output", outputPath)
	return nil
}
