// Package app dispatches chatdock commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rbright/chatdock/internal/audio"
	"github.com/rbright/chatdock/internal/cli"
	"github.com/rbright/chatdock/internal/clipboard"
	"github.com/rbright/chatdock/internal/config"
	"github.com/rbright/chatdock/internal/devserver"
	"github.com/rbright/chatdock/internal/doctor"
	"github.com/rbright/chatdock/internal/exchange"
	"github.com/rbright/chatdock/internal/ipc"
	"github.com/rbright/chatdock/internal/logging"
	"github.com/rbright/chatdock/internal/player"
	"github.com/rbright/chatdock/internal/terminal"
	"github.com/rbright/chatdock/internal/version"
	"github.com/rbright/chatdock/internal/widget"
)

const (
	binaryName     = "chatdock"
	dotenvPath     = ".env"
	forwardTimeout = 220 * time.Millisecond
	probeTimeout   = 180 * time.Millisecond
	// Starting capture opens the audio device, so record gets longer.
	recordTimeout = 2 * time.Second
	drainTimeout  = 5 * time.Second
)

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Doer sends chat requests for run; nil uses a default http.Client.
	Doer exchange.Doer
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logOpts := logging.Options{}
	if parsed.Command == cli.CommandServe {
		logOpts.Console = r.Stderr
	}
	logRuntime, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: setup logging: %v\n", err)
		logRuntime = logging.Discard()
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	lookup, err := config.EnvLookup(dotenvPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
		logger.Warn("dotenv ignored", "error", err.Error())
	}
	cfgLoaded, err := config.Load(parsed.ConfigPath, lookup)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		if parsed.Command != cli.CommandDoctor {
			fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		}
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	case cli.CommandSend:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandSend, Text: parsed.Text}, forwardTimeout)
	case cli.CommandRecord:
		return r.forwardOrFail(ctx, ipc.Request{Command: recordCommand(parsed.Record)}, recordTimeout)
	case cli.CommandMinimize:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandMinimize}, forwardTimeout)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandServe:
		return r.commandServe(ctx, parsed.Addr, logger)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, doctor.Options{Probe: parsed.Probe})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func recordCommand(action cli.RecordAction) string {
	switch action {
	case cli.RecordStart:
		return ipc.CommandRecordStart
	case cli.RecordStop:
		return ipc.CommandRecordStop
	default:
		return ipc.CommandRecord
	}
}

// commandRun hosts the widget on this terminal and owns the control socket
// while it runs.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	listener, socketPath, err := r.acquireSocket(ctx, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if listener != nil {
		defer func() {
			_ = listener.Close()
			_ = os.Remove(socketPath)
		}()
	}

	doer := r.Doer
	if doer == nil {
		doer = &http.Client{}
	}
	w := widget.New(cfg, widget.Deps{
		Renderer: terminal.NewRenderer(r.Stdout, cfg),
		Doer:     doer,
		Capture:  audio.NewMicrophone(cfg.Audio.Input, cfg.Audio.Fallback, logger),
		Encoder:  audio.WAVEncoder{SampleRate: audio.SampleRate, Channels: audio.Channels},
		Player:   player.New(cfg.Player, logger),
		Logger:   logger,
	})
	defer w.Close()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	if listener != nil {
		go func() {
			server := ipc.Server{Handler: w, Logger: logger}
			serverErrCh <- server.Serve(serverCtx, listener)
		}()
	} else {
		serverErrCh <- nil
	}

	stdin := r.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	loop := terminal.Loop{
		In:        stdin,
		Out:       r.Stdout,
		Controls:  w,
		Clipboard: clipboard.New(cfg.Clipboard, logger),
	}
	loopErr := loop.Run(ctx)
	drain(ctx, w)

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	logger.Info("widget closed", "messages", len(w.Transcript()))
	if loopErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", loopErr)
		return 1
	}
	return 0
}

// acquireSocket claims the control socket. Without a socket path the
// widget still runs, just without remote control.
func (r Runner) acquireSocket(ctx context.Context, logger *slog.Logger) (net.Listener, string, error) {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v; remote control disabled\n", err)
		logger.Warn("control socket unavailable", "error", err.Error())
		return nil, "", nil
	}
	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: probeTimeout, Retries: 8})
	if err != nil {
		return nil, "", err
	}
	return listener, socketPath, nil
}

// drain lets in-flight exchanges finish after input ends, unless the
// process is being interrupted.
func drain(ctx context.Context, w *widget.Widget) {
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(drainTimeout):
	}
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}

	resp, handled, err := ipc.Forward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = "idle"
	}
	fmt.Fprintf(r.Stdout, "state=%s messages=%d minimized=%t loading=%t\n", resp.State, resp.Messages, resp.Minimized, resp.Loading)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request, timeout time.Duration) int {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := ipc.Forward(ctx, socketPath, req, timeout)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running chatdock widget")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandServe(ctx context.Context, addr string, logger *slog.Logger) int {
	if addr == "" {
		addr = devserver.DefaultAddr
	}
	err := devserver.ListenAndServe(ctx, addr, logger, func(bound net.Addr) {
		fmt.Fprintf(r.Stdout, "echo backend on http://%s (messageUrl /chat, recordUrl /record)\n", bound)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}

	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
