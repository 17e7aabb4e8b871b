// Package clipboard copies transcript text through an external command.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/chatdock/internal/config"
)

const copyTimeout = 2 * time.Second

// ErrEmpty is returned when there is nothing to copy.
var ErrEmpty = errors.New("nothing to copy")

// Copier pipes text into the configured clipboard command.
type Copier struct {
	argv   []string
	logger *slog.Logger
}

// New builds a copier for cmd.
func New(cmd config.CommandConfig, logger *slog.Logger) *Copier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Copier{argv: append([]string(nil), cmd.Argv...), logger: logger}
}

// Copy writes text to the clipboard command's stdin and waits for it to exit.
func (c *Copier) Copy(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}

	ctx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()
	if err := runCommandWithInput(ctx, c.argv, text); err != nil {
		c.logger.Error("clipboard copy failed", "command", c.argv, "error", err.Error())
		return fmt.Errorf("set clipboard: %w", err)
	}
	c.logger.Debug("clipboard copy", "chars", len(text))
	return nil
}

// runCommandWithInput executes argv with input on stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	if out, err := cmd.CombinedOutput(); err != nil {
		if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
			return fmt.Errorf("run %s: %w (%s)", argv[0], err, trimmed)
		}
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}
