package converter

import (
	"context"
	"fmt"
	"os"
)

// stubMesh is a unit cube, enough for clients to render something.
const stubMesh = `v 1.0 1.0 -1.0
v 1.0 -1.0 -1.0
v 1.0 1.0 1.0
v 1.0 -1.0 1.0
v -1.0 1.0 -1.0
v -1.0 -1.0 -1.0
v -1.0 1.0 1.0
v -1.0 -1.0 1.0
f 1 2 4 3
f 5 6 8 7
f 1 5 7 3
f 2 6 8 4
f 1 5 6 2
f 3 7 8 4
`

// Stub is a Converter that skips the reconstruction pipeline and
// writes a placeholder mesh. Used in development and tests, where a
// GPU pipeline is not available.
type Stub struct {
	resultDir string

	// RequireInput makes Run fail when the input video is missing,
	// mirroring the real pipeline's first failure mode. Tests may
	// disable it.
	RequireInput bool
}

// NewStub creates a stub converter writing artifacts into resultDir.
func NewStub(resultDir string) (*Stub, error) {
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result dir: %w", err)
	}
	return &Stub{resultDir: resultDir, RequireInput: true}, nil
}

func (s *Stub) Run(ctx context.Context, inputPath, workDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if s.RequireInput {
		if _, err := os.Stat(inputPath); err != nil {
			return "", fmt.Errorf("video file not found at %s: %w", inputPath, err)
		}
	}

	output, err := resultPath(s.resultDir, workDir)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(output, []byte(stubMesh), 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return output, nil
}
