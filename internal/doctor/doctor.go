// Package doctor runs readiness diagnostics for config, endpoints, playback, and audio.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/chatdock/internal/audio"
	"github.com/rbright/chatdock/internal/config"
	"github.com/rbright/chatdock/internal/version"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Options control the optional network and device probes.
type Options struct {
	// Probe contacts the configured endpoints.
	Probe bool
	// Client is used for probes; nil means a client with a short timeout.
	Client *http.Client
	// SelectDevice defaults to audio.SelectDevice.
	SelectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, opts Options) Report {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: probeTimeout}
	}
	if opts.SelectDevice == nil {
		opts.SelectDevice = audio.SelectDevice
	}
	cfg := loaded.Config

	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket directory available", "XDG_RUNTIME_DIR is empty; send/record/minimize cannot reach the widget"))

	checks = append(checks,
		checkEndpoint(ctx, opts, "messageUrl", cfg.MessageURL, "messages stay local"),
		checkEndpoint(ctx, opts, "recordUrl", cfg.RecordURL, "recordings are dropped"),
		checkCommand("playerCmd", cfg.Player, "using PulseAudio playback"),
		checkCommand("clipboardCmd", cfg.Clipboard, "/copy will fail"),
	)

	if cfg.RecordButton {
		checks = append(checks, checkAudioSelection(ctx, cfg, opts.SelectDevice))
	} else {
		checks = append(checks, Check{Name: "audio.device", Pass: true, Message: "record button disabled; skipped"})
	}

	return Report{Checks: checks}
}

// checkConfig fails on parse or resolution warnings. A missing file is
// fine; defaults apply.
func checkConfig(loaded config.Loaded) Check {
	messages := make([]string, 0, len(loaded.Warnings))
	for _, w := range loaded.Warnings {
		if !loaded.Exists && strings.Contains(w.Message, "not found") {
			continue
		}
		messages = append(messages, w.Message)
	}
	if len(messages) > 0 {
		return Check{Name: "config", Pass: false, Message: fmt.Sprintf("%q: %s", loaded.Path, strings.Join(messages, "; "))}
	}
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkEndpoint validates an endpoint URL and, when probing, that something
// answers there. Any HTTP response below 500 counts as reachable.
func checkEndpoint(ctx context.Context, opts Options, name, raw, unsetMsg string) Check {
	if raw == "" {
		return Check{Name: name, Pass: true, Message: "not configured; " + unsetMsg}
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%q is not an http(s) URL", raw)}
	}
	if !opts.Probe {
		return Check{Name: name, Pass: true, Message: parsed.Redacted()}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodOptions, raw, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("build probe: %v", err)}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := opts.Client.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, parsed.Redacted())}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", parsed.Redacted(), resp.StatusCode)}
}

// checkCommand looks an optional helper binary up in PATH. A missing binary
// still passes; missingMsg says what degrades.
func checkCommand(name string, cmd config.CommandConfig, missingMsg string) Check {
	if len(cmd.Argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	path, err := exec.LookPath(cmd.Argv[0])
	if err != nil {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s not found in PATH; %s", cmd.Argv[0], missingMsg)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	cfg config.Config,
	selectDevice func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
