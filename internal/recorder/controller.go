// Package recorder drives the microphone capture lifecycle for press-and-hold
// and toggle recording interactions.
package recorder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/chatdock/internal/fsm"
)

// Mode selects how user input maps onto start/stop signals.
type Mode int

const (
	// ModeHold records while the control is held down.
	ModeHold Mode = iota + 1
	// ModeToggle alternates between start and stop on each activation.
	ModeToggle
)

func (m Mode) String() string {
	switch m {
	case ModeHold:
		return "hold"
	case ModeToggle:
		return "toggle"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ModeFor maps the maintain-to-record flag onto a Mode.
func ModeFor(maintainToRecord bool) Mode {
	if maintainToRecord {
		return ModeHold
	}
	return ModeToggle
}

// Input is a pointer/activation event on the record control.
type Input string

const (
	InputPress    Input = "press"
	InputRelease  Input = "release"
	InputLeave    Input = "leave"
	InputActivate Input = "activate"
)

// Controller owns one microphone at a time and hands each finished recording
// to its Submitter.
type Controller struct {
	logger  *slog.Logger
	mode    Mode
	capture Capture
	encoder Encoder
	submit  Submitter
	report  ErrorReporter

	mu          sync.Mutex
	state       fsm.State
	stream      Stream
	collected   chan []byte
	stopPending bool
	onState     func(fsm.State)
}

// NewController constructs a controller. Nil collaborators fall back to
// no-ops; a nil encoder submits raw chunks unchanged.
func NewController(
	logger *slog.Logger,
	mode Mode,
	capture Capture,
	encoder Encoder,
	submitter Submitter,
	reporter ErrorReporter,
) *Controller {
	if encoder == nil {
		encoder = EncoderFunc(func(raw []byte) ([]byte, error) { return raw, nil })
	}
	if submitter == nil {
		submitter = SubmitFunc(func(context.Context, []byte) {})
	}
	if reporter == nil {
		reporter = ReportFunc(func(error) {})
	}
	return &Controller{
		logger:  logger,
		mode:    mode,
		capture: capture,
		encoder: encoder,
		submit:  submitter,
		report:  reporter,
		state:   fsm.StateIdle,
	}
}

// OnStateChange registers fn to be called after every state change.
func (c *Controller) OnStateChange(fn func(fsm.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// Mode returns the interaction mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handle routes a control input according to the interaction mode. Inputs
// belonging to the other mode are ignored and reported as unhandled.
func (c *Controller) Handle(ctx context.Context, input Input) bool {
	switch c.mode {
	case ModeHold:
		switch input {
		case InputPress:
			c.Start(ctx)
			return true
		case InputRelease, InputLeave:
			c.Stop(ctx)
			return true
		}
	case ModeToggle:
		if input == InputActivate {
			c.Toggle(ctx)
			return true
		}
	}
	return false
}

// Toggle starts capture when idle and stops it when capturing.
func (c *Controller) Toggle(ctx context.Context) {
	switch c.State() {
	case fsm.StateIdle:
		c.Start(ctx)
	case fsm.StateCapturing:
		c.Stop(ctx)
	}
}

// Start requests microphone access and begins capture. It is a no-op unless
// the controller is idle. A Stop that arrives while access is still pending
// is applied as soon as the stream opens.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state != fsm.StateIdle {
		c.mu.Unlock()
		return
	}
	notify := c.transitionLocked(fsm.EventStart)
	c.mu.Unlock()
	notify()

	if c.capture == nil {
		c.fail(fmt.Errorf("%w: no audio capture available", ErrAccessDenied))
		return
	}

	stream, err := c.capture.Open(ctx)
	if err == nil {
		if startErr := stream.Start(); startErr != nil {
			_ = stream.Stop()
			err = startErr
		}
	}
	if err != nil {
		c.fail(fmt.Errorf("%w: %w", ErrAccessDenied, err))
		return
	}

	collected := make(chan []byte, 1)
	go collect(stream.Chunks(), collected)

	c.mu.Lock()
	c.stream = stream
	c.collected = collected
	stopNow := c.stopPending
	c.stopPending = false
	c.mu.Unlock()

	c.logDebug("recording started")
	if stopNow {
		c.Stop(ctx)
	}
}

// Stop ends capture, assembles the buffered chunks, and submits the result.
// It is a no-op unless the controller is capturing.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.state != fsm.StateCapturing {
		c.mu.Unlock()
		return
	}
	if c.stream == nil {
		c.stopPending = true
		c.mu.Unlock()
		return
	}
	stream, collected := c.stream, c.collected
	c.stream, c.collected = nil, nil
	notify := c.transitionLocked(fsm.EventStop)
	c.mu.Unlock()
	notify()

	if err := stream.Stop(); err != nil {
		c.logDebug("stop capture stream failed", "error", err.Error())
	}
	raw := <-collected

	if err := c.finalize(ctx, raw); err != nil {
		c.report.RecordingFailed(err)
	}

	c.mu.Lock()
	notify = c.transitionLocked(fsm.EventFinalized)
	c.mu.Unlock()
	notify()
}

// finalize encodes raw audio and hands it to the submitter.
func (c *Controller) finalize(ctx context.Context, raw []byte) error {
	if len(raw) == 0 {
		return ErrEmptyRecording
	}
	payload, err := c.encoder.Encode(raw)
	if err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	c.logDebug("recording finalized", "raw_bytes", len(raw), "payload_bytes", len(payload))
	c.submit.SubmitRecording(ctx, payload)
	return nil
}

// fail returns to idle after a failed start and reports err.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.stopPending = false
	notify := c.transitionLocked(fsm.EventFail)
	c.mu.Unlock()
	notify()

	if c.logger != nil {
		c.logger.Warn("recording start failed", "error", err.Error())
	}
	c.report.RecordingFailed(err)
}

// transitionLocked applies event and returns the state-change notification
// to run once the lock is released. Callers hold c.mu.
func (c *Controller) transitionLocked(event fsm.Event) func() {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logDebug("recording transition rejected", "error", err.Error())
		return func() {}
	}
	c.state = next
	fn := c.onState
	if fn == nil {
		return func() {}
	}
	return func() { fn(next) }
}

func (c *Controller) logDebug(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(message, append([]any{"mode", c.mode.String()}, args...)...)
}

// collect buffers chunks until the stream closes them.
func collect(chunks <-chan []byte, out chan<- []byte) {
	var buf bytes.Buffer
	for chunk := range chunks {
		buf.Write(chunk)
	}
	out <- buf.Bytes()
}
