// Package player plays bot reply audio through an external command or
// directly on PulseAudio.
package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/rbright/chatdock/internal/audio"
	"github.com/rbright/chatdock/internal/config"
)

// Player matches presenter.Player.
type Player interface {
	Play(ctx context.Context, audio []byte, onEnded func()) error
	Stop()
}

// New returns a Command player for cmd, or a Pulse player when the command
// binary is not installed.
func New(cmd config.CommandConfig, logger *slog.Logger) Player {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(cmd.Argv) > 0 {
		if _, err := exec.LookPath(cmd.Argv[0]); err == nil {
			return NewCommand(cmd.Argv, logger)
		}
		logger.Warn("player command not found; using pulse playback", "command", cmd.Argv[0])
	}
	return NewPulse(logger)
}

// Command runs argv with the reply file path appended.
type Command struct {
	argv   []string
	logger *slog.Logger
	tmpDir string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommand builds a command player.
func NewCommand(argv []string, logger *slog.Logger) *Command {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Command{argv: append([]string(nil), argv...), logger: logger}
}

// Play writes data to a temporary file and starts the player on it.
func (c *Command) Play(ctx context.Context, data []byte, onEnded func()) error {
	if len(c.argv) == 0 {
		return errors.New("player command is empty")
	}

	file, err := os.CreateTemp(c.tmpDir, "chatdock-reply-*"+Extension(data))
	if err != nil {
		return fmt.Errorf("create reply audio file: %w", err)
	}
	path := file.Name()
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write reply audio file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write reply audio file: %w", err)
	}

	playCtx, cancel := context.WithCancel(ctx)
	args := append(append([]string(nil), c.argv[1:]...), path)
	cmd := exec.CommandContext(playCtx, c.argv[0], args...)
	if err := cmd.Start(); err != nil {
		cancel()
		_ = os.Remove(path)
		return fmt.Errorf("start player %q: %w", c.argv[0], err)
	}

	c.mu.Lock()
	previous := c.cancel
	c.cancel = cancel
	c.mu.Unlock()
	if previous != nil {
		previous()
	}

	go func() {
		err := cmd.Wait()
		_ = os.Remove(path)
		if err != nil && playCtx.Err() == nil {
			c.logger.Warn("player exited with error", "command", c.argv[0], "error", err.Error())
		}
		cancel()
		if onEnded != nil {
			onEnded()
		}
	}()
	return nil
}

// Stop kills the running player, if any.
func (c *Command) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Pulse decodes WAV replies and plays them on the default sink.
type Pulse struct {
	logger *slog.Logger
	play   func(ctx context.Context, data []byte) error

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPulse builds a Pulse player.
func NewPulse(logger *slog.Logger) *Pulse {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pulse{logger: logger, play: audio.PlayWAV}
}

// Play validates data and starts playback in the background.
func (p *Pulse) Play(ctx context.Context, data []byte, onEnded func()) error {
	if _, err := audio.DecodeWAV(data); err != nil {
		return fmt.Errorf("pulse playback needs wav audio: %w", err)
	}

	playCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	previous := p.cancel
	p.cancel = cancel
	p.mu.Unlock()
	if previous != nil {
		previous()
	}

	go func() {
		defer cancel()
		if err := p.play(playCtx, data); err != nil && playCtx.Err() == nil {
			p.logger.Warn("pulse playback failed", "error", err.Error())
		}
		if onEnded != nil {
			onEnded()
		}
	}()
	return nil
}

// Stop cancels the current playback, if any.
func (p *Pulse) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Extension guesses a file extension from the audio container magic.
func Extension(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ".wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return ".ogg"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ".flac"
	case bytes.HasPrefix(data, []byte("ID3")), len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ".mp3"
	default:
		return ".audio"
	}
}
