// Package output runs the configured result command for recognized text.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/rbright/hark/internal/config"
)

const defaultHookTimeout = 2 * time.Second

// Hook pipes recognized text into an external command.
type Hook struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewHook builds a hook from the engine.result_cmd setting.
// It returns nil when no command is configured.
func NewHook(cmd config.CommandConfig, logger *slog.Logger) *Hook {
	if len(cmd.Argv) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hook{
		argv:    append([]string(nil), cmd.Argv...),
		timeout: defaultHookTimeout,
		logger:  logger,
	}
}

// Run executes the command once with text on stdin.
func (h *Hook) Run(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	started := time.Now()
	if err := runCommandWithInput(runCtx, h.argv, text); err != nil {
		h.logger.Error("result command failed", "command", h.argv[0], "error", err.Error())
		return fmt.Errorf("run result command: %w", err)
	}
	h.logger.Debug("result command finished", "command", h.argv[0], "elapsed_ms", time.Since(started).Milliseconds())
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
