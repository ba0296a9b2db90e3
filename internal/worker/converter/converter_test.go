package converter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultPath(t *testing.T) {
	path, err := resultPath("/data/results", "/data/temp/job-42")
	require.NoError(t, err)
	assert.Equal(t, "/data/results/job-42.obj", path)
}

func TestStub_Run(t *testing.T) {
	dir := t.TempDir()

	stub, err := NewStub(filepath.Join(dir, "results"))
	require.NoError(t, err)

	input := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(input, []byte("fake video"), 0o644))

	workDir := filepath.Join(dir, "temp", "job-1")
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	output, err := stub.Run(context.Background(), input, workDir)
	require.NoError(t, err)

	assert.Equal(t, "job-1.obj", filepath.Base(output))
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "v 1.0 1.0 -1.0")
	assert.Contains(t, string(data), "f 1 2 4 3")
}

func TestStub_Run_MissingInput(t *testing.T) {
	dir := t.TempDir()

	stub, err := NewStub(filepath.Join(dir, "results"))
	require.NoError(t, err)

	_, err = stub.Run(context.Background(), filepath.Join(dir, "gone.mp4"), filepath.Join(dir, "job-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video file not found")

	// With the input check disabled the stub always produces a mesh.
	stub.RequireInput = false
	output, err := stub.Run(context.Background(), filepath.Join(dir, "gone.mp4"), filepath.Join(dir, "job-1"))
	require.NoError(t, err)
	assert.FileExists(t, output)
}

func TestStub_Run_CanceledContext(t *testing.T) {
	dir := t.TempDir()

	stub, err := NewStub(filepath.Join(dir, "results"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = stub.Run(ctx, filepath.Join(dir, "clip.mp4"), filepath.Join(dir, "job-1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCommand_MissingBinary(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewCommand("definitely-not-a-real-pipeline-binary", nil, t.TempDir(), logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline command not found")
}

func TestCommand_Run(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// A stand-in pipeline: copies the input video to the output path.
	script := filepath.Join(dir, "pipeline.sh")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --input) input="$2"; shift 2 ;;
    --output) output="$2"; shift 2 ;;
    *) shift ;;
  esac
done
cp "$input" "$output"
`), 0o755))

	cmd, err := NewCommand(script, nil, filepath.Join(dir, "results"), logger)
	require.NoError(t, err)

	input := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(input, []byte("fake video"), 0o644))
	workDir := filepath.Join(dir, "temp", "job-1")
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	output, err := cmd.Run(context.Background(), input, workDir)
	require.NoError(t, err)

	assert.Equal(t, "job-1.obj", filepath.Base(output))
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "fake video", string(data))
}

func TestCommand_Run_PipelineFailure(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	script := filepath.Join(dir, "pipeline.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'out of memory' >&2\nexit 1\n"), 0o755))

	cmd, err := NewCommand(script, nil, filepath.Join(dir, "results"), logger)
	require.NoError(t, err)

	_, err = cmd.Run(context.Background(), filepath.Join(dir, "clip.mp4"), filepath.Join(dir, "job-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline failed")
	assert.Contains(t, err.Error(), "out of memory")
}

func TestCommand_Run_NoArtifact(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Exits cleanly without producing the output file.
	script := filepath.Join(dir, "pipeline.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	cmd, err := NewCommand(script, nil, filepath.Join(dir, "results"), logger)
	require.NoError(t, err)

	_, err = cmd.Run(context.Background(), filepath.Join(dir, "clip.mp4"), filepath.Join(dir, "job-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "produced no artifact")
}
