// Package widget wires configuration, transcript, exchange, recording and
// presentation into one chat widget.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/chatdock/internal/config"
	"github.com/rbright/chatdock/internal/exchange"
	"github.com/rbright/chatdock/internal/fsm"
	"github.com/rbright/chatdock/internal/presenter"
	"github.com/rbright/chatdock/internal/recorder"
	"github.com/rbright/chatdock/internal/transcript"
)

// ErrRecordingDisabled is returned by recording operations when the widget
// has no record button.
var ErrRecordingDisabled = errors.New("recording is disabled")

// ErrModeMismatch is returned when a recording operation belongs to the
// other interaction mode.
var ErrModeMismatch = errors.New("recording mode mismatch")

// Deps are the collaborators injected at construction. Every field is
// optional.
type Deps struct {
	Renderer presenter.Renderer
	Doer     exchange.Doer
	Capture  recorder.Capture
	Encoder  recorder.Encoder
	Player   presenter.Player
	Logger   *slog.Logger
}

// Widget is one chat panel.
type Widget struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	view     *presenter.Adapter
	log      *transcript.Store
	exchange *exchange.Client
	recorder *recorder.Controller

	mu       sync.Mutex
	input    string
	closed   bool
	inflight int
	idle     chan struct{}
}

// New builds a widget from resolved configuration and renders its initial
// state: an empty log, restored, not loading.
func New(cfg config.Config, deps Deps) *Widget {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = discardRenderer{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{cfg: cfg, logger: logger, ctx: ctx, cancel: cancel}

	w.view = presenter.NewAdapter(renderer, presenter.Options{
		Autoplay: cfg.Autoplay,
		Player:   deps.Player,
		Logger:   logger,
	})
	w.log = transcript.NewStore(w.view.Render)
	w.exchange = exchange.New(cfg, exchange.Deps{
		Doer:    deps.Doer,
		Log:     w.log,
		Loading: w.view,
		Errors:  w.view,
		Logger:  logger,
		Spawn:   w.spawn,
	})
	if cfg.RecordButton {
		w.recorder = recorder.NewController(
			logger,
			recorder.ModeFor(cfg.Maintain2Record),
			deps.Capture,
			deps.Encoder,
			recorder.SubmitFunc(w.submitRecording),
			recorder.ReportFunc(w.recordingFailed),
		)
	}

	w.view.Refresh()
	logger.Debug("widget ready",
		"message_url", cfg.MessageURL,
		"record_url", cfg.RecordURL,
		"record_button", cfg.RecordButton,
		"maintain2record", cfg.Maintain2Record,
	)
	return w
}

// Config returns the resolved configuration.
func (w *Widget) Config() config.Config {
	return w.cfg
}

// SetInput replaces the input buffer.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.input = text
}

// Input returns the input buffer.
func (w *Widget) Input() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}

// SendTypedMessage submits the input buffer. The buffer is cleared only when
// it held non-blank text.
func (w *Widget) SendTypedMessage() bool {
	w.mu.Lock()
	text := w.input
	w.mu.Unlock()

	if !w.Send(text) {
		return false
	}

	w.mu.Lock()
	if w.input == text {
		w.input = ""
	}
	w.mu.Unlock()
	return true
}

// Send submits text directly, bypassing the input buffer.
func (w *Widget) Send(text string) bool {
	if w.isClosed() {
		return false
	}
	return w.exchange.SubmitText(w.ctx, text)
}

// StartRecording presses the record control. Only press-and-hold mode
// accepts it; capture continues until StopRecording.
func (w *Widget) StartRecording() error {
	return w.recordInput(recorder.InputPress)
}

// StopRecording releases the record control in press-and-hold mode.
func (w *Widget) StopRecording() error {
	return w.recordInput(recorder.InputRelease)
}

// ToggleRecording activates the record control. Only toggle mode accepts it.
func (w *Widget) ToggleRecording() error {
	return w.recordInput(recorder.InputActivate)
}

// HandleRecordInput routes a record-control input through the configured
// interaction mode. It reports whether the input applied.
func (w *Widget) HandleRecordInput(input recorder.Input) bool {
	if w.recorder == nil {
		return false
	}
	return w.recorder.Handle(w.ctx, input)
}

func (w *Widget) recordInput(input recorder.Input) error {
	if w.recorder == nil {
		return ErrRecordingDisabled
	}
	if !w.recorder.Handle(w.ctx, input) {
		return fmt.Errorf("%w: %s mode ignores %s", ErrModeMismatch, w.recorder.Mode(), input)
	}
	return nil
}

// RecordingState returns the capture lifecycle state.
func (w *Widget) RecordingState() fsm.State {
	if w.recorder == nil {
		return fsm.StateIdle
	}
	return w.recorder.State()
}

// RecordingEnabled reports whether the widget has a record button.
func (w *Widget) RecordingEnabled() bool {
	return w.recorder != nil
}

// RecordingMode returns the configured interaction mode.
func (w *Widget) RecordingMode() recorder.Mode {
	return recorder.ModeFor(w.cfg.Maintain2Record)
}

// ToggleMinimize flips the display state and returns the new value.
func (w *Widget) ToggleMinimize() bool {
	return w.view.ToggleMinimize()
}

// Minimized reports the display state.
func (w *Widget) Minimized() bool {
	return w.view.Minimized()
}

// Loading reports whether a text exchange is in flight.
func (w *Widget) Loading() bool {
	return w.view.Loading()
}

// ToggleAudio plays or stops the reply audio of message id.
func (w *Widget) ToggleAudio(id string) error {
	return w.view.ToggleAudio(id)
}

// Entries returns the rendered rows with their audio control state.
func (w *Widget) Entries() []presenter.Entry {
	return w.view.Entries()
}

// Transcript returns a snapshot of the conversation.
func (w *Widget) Transcript() []transcript.Message {
	return w.log.Messages()
}

// Wait blocks until no network task is in flight.
func (w *Widget) Wait() {
	w.mu.Lock()
	if w.inflight == 0 {
		w.mu.Unlock()
		return
	}
	if w.idle == nil {
		w.idle = make(chan struct{})
	}
	idle := w.idle
	w.mu.Unlock()
	<-idle
}

// Close stops capture, cancels in-flight exchanges and waits for them. A
// recording still open at Close is discarded rather than uploaded, and no
// new task starts once Close has begun.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	if w.recorder != nil {
		w.recorder.Stop(w.ctx)
	}
	w.cancel()
	w.Wait()
	w.view.Close()
}

func (w *Widget) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Widget) spawn(task func()) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Debug("network task dropped after close")
		return
	}
	w.inflight++
	w.mu.Unlock()

	go func() {
		defer w.taskDone()
		task()
	}()
}

func (w *Widget) taskDone() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inflight--
	if w.inflight == 0 && w.idle != nil {
		close(w.idle)
		w.idle = nil
	}
}

func (w *Widget) submitRecording(ctx context.Context, payload []byte) {
	if w.isClosed() {
		w.logger.Info("recording discarded at close", "bytes", len(payload))
		return
	}
	w.exchange.SubmitAudio(ctx, payload)
}

func (w *Widget) recordingFailed(err error) {
	w.logger.Warn("recording failed", "error", err.Error())
	if w.cfg.RecordErrorBanner {
		w.view.ShowTransientError(w.cfg.I18n.ErrorPrefix + err.Error())
	}
}

type discardRenderer struct{}

func (discardRenderer) Render([]presenter.Entry) {}
func (discardRenderer) SetLoading(bool)          {}
func (discardRenderer) SetMinimized(bool)        {}
func (discardRenderer) ShowError(string)         {}
func (discardRenderer) HideError()               {}
