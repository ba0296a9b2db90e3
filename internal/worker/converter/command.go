package converter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Command runs the reconstruction pipeline as an external program:
//
//	<command> <args...> --input <video> --workdir <scratch> --output <obj>
//
// The process inherits the job context, so a job timeout kills it.
type Command struct {
	command   string
	args      []string
	resultDir string
	logger    *slog.Logger
}

// NewCommand verifies the pipeline binary is resolvable and the result
// directory exists. A missing binary is a fatal-at-startup condition
// for the worker, not a per-job error.
func NewCommand(command string, args []string, resultDir string, logger *slog.Logger) (*Command, error) {
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("pipeline command not found: %w", err)
	}
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result dir: %w", err)
	}

	return &Command{
		command:   command,
		args:      args,
		resultDir: resultDir,
		logger:    logger,
	}, nil
}

func (c *Command) Run(ctx context.Context, inputPath, workDir string) (string, error) {
	output, err := resultPath(c.resultDir, workDir)
	if err != nil {
		return "", err
	}

	args := append(append([]string{}, c.args...),
		"--input", inputPath,
		"--workdir", workDir,
		"--output", output,
	)

	c.logger.Info("Running reconstruction pipeline",
		slog.String("command", c.command),
		slog.String("input", inputPath),
		slog.String("output", output),
	)

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("pipeline canceled: %w", ctx.Err())
		}
		return "", fmt.Errorf("pipeline failed: %w: %s", err, stderr.String())
	}

	if err := checkArtifact(output); err != nil {
		return "", err
	}

	return output, nil
}
