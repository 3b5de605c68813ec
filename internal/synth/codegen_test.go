package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeStubTool writes an executable shell script standing in for the
// external generator. The script receives --input <path> --output <path>,
// so $2 is the input file and $4 is the output file.
func writeStubTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datamodel-codegen")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write stub tool: %v", err)
	}
	return path
}

func TestGenerator_Success(t *testing.T) {
	bin := writeStubTool(t, `printf 'class Model(BaseModel):\n    a: str\n' > "$4"`)
	gen := NewGenerator(GeneratorConfig{Bin: bin})

	out := filepath.Join(t.TempDir(), "out.py")
	if err := gen.Generate(context.Background(), "/dev/null", out); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !strings.Contains(string(data), "class Model") {
		t.Errorf("unexpected output: %q", data)
	}
}

func TestGenerator_NonzeroExit(t *testing.T) {
	bin := writeStubTool(t, `echo "boom: unsupported input" >&2; exit 3`)
	gen := NewGenerator(GeneratorConfig{Bin: bin})

	err := gen.Generate(context.Background(), "/dev/null", filepath.Join(t.TempDir(), "out.py"))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	// Diagnostic text carries the tool's stderr.
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected tool diagnostic in error, got %q", err)
	}
}

func TestGenerator_EmptyOutput(t *testing.T) {
	bin := writeStubTool(t, `: > "$4"`)
	gen := NewGenerator(GeneratorConfig{Bin: bin})

	err := gen.Generate(context.Background(), "/dev/null", filepath.Join(t.TempDir(), "out.py"))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed for empty output, got %v", err)
	}
}

func TestGenerator_MissingOutput(t *testing.T) {
	bin := writeStubTool(t, `exit 0`)
	gen := NewGenerator(GeneratorConfig{Bin: bin})

	err := gen.Generate(context.Background(), "/dev/null", filepath.Join(t.TempDir(), "missing", "out.py"))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed for missing output, got %v", err)
	}
}

func TestGenerator_BinaryNotFound(t *testing.T) {
	gen := NewGenerator(GeneratorConfig{Bin: filepath.Join(t.TempDir(), "definitely-not-here")})

	if err := gen.Available(); err == nil {
		t.Error("expected Available to fail for missing binary")
	}

	err := gen.Generate(context.Background(), "/dev/null", filepath.Join(t.TempDir(), "out.py"))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerator_Timeout(t *testing.T) {
	bin := writeStubTool(t, `sleep 10`)
	gen := NewGenerator(GeneratorConfig{Bin: bin, Timeout: 100 * time.Millisecond})

	start := time.Now()
	err := gen.Generate(context.Background(), "/dev/null", filepath.Join(t.TempDir(), "out.py"))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed on timeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout diagnostic, got %q", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("subprocess was not killed promptly, took %s", elapsed)
	}

	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageGenerate {
		t.Errorf("expected generate stage error, got %v", err)
	}
}
