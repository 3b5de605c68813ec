package synth

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

const (
	// ModelClassName is the distinguished top-level class the generator is
	// contracted to emit.
	ModelClassName = "Model"

	// DefaultBaseClass is the base type qualifying classes must extend.
	DefaultBaseClass = "BaseModel"
)

// Result is the outcome of a successful synthesis call.
type Result struct {
	// Model is the distinguished Model class declared by the loaded unit.
	Model *Class

	// Classes describes every qualifying model class, in declaration order.
	Classes []ClassDescriptor

	// Descriptor is the rendered textual schema summary.
	Descriptor string

	// UnitID identifies the loaded unit backing this result. IDs differ
	// between calls even for identical input.
	UnitID string
}

// SynthesizerConfig configures the pipeline orchestrator.
type SynthesizerConfig struct {
	Store     *ArtifactStore
	Generator *Generator
	BaseClass string // default: BaseModel
	Logger    *slog.Logger
}

// Synthesizer composes the artifact store, generator adapter, loader, and
// introspector into the single public synthesis operation. It holds no
// per-call state; concurrent Synthesize calls are independent.
type Synthesizer struct {
	store  *ArtifactStore
	gen    *Generator
	base   string
	logger *slog.Logger
}

// NewSynthesizer creates a pipeline orchestrator.
func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	if cfg.BaseClass == "" {
		cfg.BaseClass = DefaultBaseClass
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Synthesizer{
		store:  cfg.Store,
		gen:    cfg.Generator,
		base:   cfg.BaseClass,
		logger: cfg.Logger,
	}
}

// Synthesize runs one complete pass of the pipeline: serialize the sample,
// drive the external generator, load the generated source as a fresh unit,
// and introspect it into a field descriptor. Exactly one attempt is made;
// retries are the caller's concern. Both artifacts are released on every
// exit path, success or failure.
func (s *Synthesizer) Synthesize(ctx context.Context, sample any) (*Result, error) {
	data, err := json.Marshal(sample)
	if err != nil {
		return nil, stageErr(StageSerialize, ErrInvalidSample, "%v", err)
	}

	input, err := s.store.Create(ArtifactSample, data)
	if err != nil {
		return nil, stageErr(StageSerialize, ErrArtifactIO, "%v", err)
	}
	defer s.store.Release(input)

	output, err := s.store.Create(ArtifactSource, nil)
	if err != nil {
		return nil, stageErr(StageSerialize, ErrArtifactIO, "%v", err)
	}
	defer s.store.Release(output)

	if err := s.gen.Generate(ctx, input.Path(), output.Path()); err != nil {
		s.logger.Warn("schema generation failed", "error", err)
		return nil, err
	}

	src, err := s.store.Read(output)
	if err != nil {
		return nil, stageErr(StageLoad, ErrArtifactIO, "%v", err)
	}

	// The unit ID is derived from the output artifact's unique name, so it
	// is never reused across calls even for byte-identical source.
	unit, err := Load(unitIDFor(output), src)
	if err != nil {
		s.logger.Warn("failed to load generated source", "error", err)
		return nil, err
	}

	model, ok := unit.Lookup(ModelClassName)
	if !ok {
		return nil, stageErr(StageLookup, ErrModelAbsent, "unit %s", unit.ID())
	}

	classes := Extract(unit, s.base)
	res := &Result{
		Model:      model,
		Classes:    classes,
		Descriptor: Render(classes),
		UnitID:     unit.ID(),
	}

	s.logger.Debug("model synthesized",
		"unit", unit.ID(),
		"classes", len(classes),
		"fields", len(model.Fields))
	return res, nil
}

// unitIDFor derives a unit identifier from a source artifact's unique name.
func unitIDFor(a *Artifact) string {
	return strings.TrimSuffix(a.Name(), a.Kind().ext())
}
