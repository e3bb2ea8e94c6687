package predictor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// FormatDenseV1 identifies a sequential stack of fully connected layers.
const FormatDenseV1 = "dense-v1"

// DefaultArtifactPath is the artifact location relative to the application root.
const DefaultArtifactPath = "predictor/model/model.json"

var (
	// ErrUnsupportedFormat is returned for artifacts whose format field is not recognized.
	ErrUnsupportedFormat = errors.New("unsupported model format")
	// ErrShape is returned when layer dimensions do not chain or inputs do not fit the network.
	ErrShape = errors.New("model shape mismatch")
)

// Layer is one dense layer. Weights are laid out input-major: Weights[i][j]
// connects input i to output j.
type Layer struct {
	Activation string      `json:"activation"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
}

// Artifact is the serialized form of a trained network.
type Artifact struct {
	Format   string  `json:"format"`
	InputDim int     `json:"input_dim"`
	Layers   []Layer `json:"layers"`
}

// OutputDim returns the width of the final layer, or 0 for an empty artifact.
func (a Artifact) OutputDim() int {
	if len(a.Layers) == 0 {
		return 0
	}
	return len(a.Layers[len(a.Layers)-1].Bias)
}

// Validate checks the format tag and that every layer's shape chains into the next.
func (a Artifact) Validate() error {
	if a.Format != FormatDenseV1 {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, a.Format)
	}
	if a.InputDim < 1 {
		return fmt.Errorf("%w: input_dim must be positive, got %d", ErrShape, a.InputDim)
	}
	if len(a.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrShape)
	}

	in := a.InputDim
	for i, l := range a.Layers {
		if _, ok := activations[l.Activation]; !ok {
			return fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		if len(l.Weights) != in {
			return fmt.Errorf("%w: layer %d has %d weight rows, want %d", ErrShape, i, len(l.Weights), in)
		}
		out := len(l.Bias)
		if out == 0 {
			return fmt.Errorf("%w: layer %d has no units", ErrShape, i)
		}
		for r, row := range l.Weights {
			if len(row) != out {
				return fmt.Errorf("%w: layer %d row %d has %d columns, want %d", ErrShape, i, r, len(row), out)
			}
		}
		in = out
	}
	return nil
}

// LoadArtifact reads and validates an artifact from disk.
func LoadArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read model artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode model artifact %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return Artifact{}, fmt.Errorf("validate model artifact %s: %w", path, err)
	}
	return a, nil
}

// WriteArtifact validates a and writes it to path, creating parent directories.
func WriteArtifact(path string, a Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // artifact is not secret
		return fmt.Errorf("write model artifact: %w", err)
	}
	return nil
}

// ArtifactPath resolves the artifact location. An explicit path wins; relative
// paths are taken from appRoot.
func ArtifactPath(appRoot, modelPath string) string {
	if modelPath == "" {
		return filepath.Join(appRoot, DefaultArtifactPath)
	}
	if filepath.IsAbs(modelPath) {
		return modelPath
	}
	return filepath.Join(appRoot, modelPath)
}
