// Package synth implements the dynamic schema synthesis pipeline:
// a JSON sample is handed to an external code generator, the generated
// source is loaded as an isolated unit, and the unit's model classes are
// introspected into a textual field descriptor.
package synth

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ArtifactKind distinguishes the two ephemeral files exchanged with the
// external generator.
type ArtifactKind string

const (
	// ArtifactSample holds the serialized JSON sample fed to the generator.
	ArtifactSample ArtifactKind = "sample"

	// ArtifactSource holds the source text the generator writes back.
	ArtifactSource ArtifactKind = "source"
)

// ext returns the file extension for an artifact kind. The generator keys
// its input/output handling off extensions.
func (k ArtifactKind) ext() string {
	if k == ArtifactSample {
		return ".json"
	}
	return ".py"
}

// Artifact is a uniquely named short-lived file under the store's scratch
// directory. It exists only to communicate with the out-of-process generator.
type Artifact struct {
	kind ArtifactKind
	name string
	path string
}

// Kind returns the artifact kind.
func (a *Artifact) Kind() ArtifactKind { return a.kind }

// Name returns the artifact's unique file name (unique per process lifetime).
func (a *Artifact) Name() string { return a.name }

// Path returns the absolute location of the backing file. The generator
// addresses artifacts by path, not handle.
func (a *Artifact) Path() string { return a.path }

// ArtifactStore creates and deletes ephemeral artifacts under a scratch
// directory. Names carry a random UUID suffix so concurrent synthesis calls
// never collide.
type ArtifactStore struct {
	dir    string
	logger *slog.Logger
}

// NewArtifactStore creates a store rooted at dir, creating it if needed.
func NewArtifactStore(dir string, logger *slog.Logger) (*ArtifactStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &ArtifactStore{dir: dir, logger: logger}, nil
}

// Dir returns the scratch directory the store writes into.
func (s *ArtifactStore) Dir() string { return s.dir }

// Create allocates a uniquely named artifact and writes content to it.
// A nil content creates an empty file (used for generator output slots).
func (s *ArtifactStore) Create(kind ArtifactKind, content []byte) (*Artifact, error) {
	name := fmt.Sprintf("%s-%s%s", kind, uuid.NewString(), kind.ext())
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write %s artifact: %w", kind, err)
	}

	return &Artifact{kind: kind, name: name, path: path}, nil
}

// Read returns the current content of an artifact.
func (s *ArtifactStore) Read(a *Artifact) ([]byte, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s artifact: %w", a.kind, err)
	}
	return data, nil
}

// Release deletes the artifact's backing file. It is idempotent: releasing
// an already-released artifact is a no-op. Release is called on every exit
// path of a synthesis call, so failures here are logged rather than returned.
func (s *ArtifactStore) Release(a *Artifact) {
	if a == nil {
		return
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to release artifact", "name", a.name, "error", err)
	}
}
