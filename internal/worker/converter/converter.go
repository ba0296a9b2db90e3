// Package converter wraps the video-to-mesh reconstruction pipeline
// behind a single capability. The numerical pipeline itself (frame
// sampling, inference, point-cloud filtering, surface reconstruction)
// lives in an external program; this package only invokes it.
package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Converter turns a staged video into a mesh artifact. workDir is a
// per-job scratch directory the caller creates and removes; the
// returned location must outlive it.
type Converter interface {
	Run(ctx context.Context, inputPath, workDir string) (string, error)
}

// resultPath derives the artifact location for a job from its scratch
// directory, whose base name is the job id.
func resultPath(resultDir, workDir string) (string, error) {
	path, err := filepath.Abs(filepath.Join(resultDir, filepath.Base(workDir)+".obj"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve result path: %w", err)
	}
	return path, nil
}

// checkArtifact verifies the pipeline produced a non-empty file.
func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("pipeline produced no artifact at %s: %w", path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("pipeline produced an empty artifact at %s", path)
	}
	return nil
}
