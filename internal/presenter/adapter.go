// Package presenter keeps the widget's display state and forwards it to a
// Renderer.
package presenter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/chatdock/internal/transcript"
)

// BannerDuration is how long a transient error stays visible.
const BannerDuration = 3 * time.Second

// ErrNoAudio is returned when toggling playback on an entry without audio.
var ErrNoAudio = errors.New("message has no audio")

// AudioState is the playback control state of an entry.
type AudioState string

const (
	AudioNone    AudioState = ""
	AudioStopped AudioState = "stopped"
	AudioPlaying AudioState = "playing"
)

// Entry is one rendered log row.
type Entry struct {
	Message transcript.Message
	Audio   AudioState
}

// Renderer draws display state. Calls are serialized.
type Renderer interface {
	// Render redraws the log, newest entry last, scrolled to the end.
	Render(entries []Entry)
	SetLoading(on bool)
	// SetMinimized hides the log and input row; the header stays visible.
	SetMinimized(on bool)
	ShowError(message string)
	HideError()
}

// Player plays one reply at a time. Play returns once playback has started
// and calls onEnded from another goroutine when it finishes. Stop must not
// wait for onEnded.
type Player interface {
	Play(ctx context.Context, audio []byte, onEnded func()) error
	Stop()
}

// Options tune an Adapter.
type Options struct {
	Autoplay bool
	Player   Player
	Logger   *slog.Logger
}

type stopper interface {
	Stop() bool
}

// Adapter owns minimize, loading, banner and audio control state.
type Adapter struct {
	renderer Renderer
	player   Player
	autoplay bool
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	afterFunc func(time.Duration, func()) stopper

	mu         sync.Mutex
	messages   []transcript.Message
	minimized  bool
	inflight   int
	banner     stopper
	bannerGen  uint64
	playing    string
	playingGen uint64
}

// NewAdapter wraps renderer. A nil Player disables audio controls.
func NewAdapter(renderer Renderer, opts Options) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		renderer: renderer,
		player:   opts.Player,
		autoplay: opts.Autoplay,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		afterFunc: func(d time.Duration, fn func()) stopper {
			return time.AfterFunc(d, fn)
		},
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// Refresh redraws every piece of display state.
func (a *Adapter) Refresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.renderer.Render(a.entriesLocked())
	a.renderer.SetLoading(a.inflight > 0)
	a.renderer.SetMinimized(a.minimized)
}

// Render takes a transcript snapshot and redraws the log. Snapshots older
// than the one already shown are ignored. New bot audio autoplays.
func (a *Adapter) Render(messages []transcript.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(messages) < len(a.messages) {
		return
	}
	previous := len(a.messages)
	a.messages = messages

	var autoplay *transcript.Message
	if a.autoplay && a.player != nil {
		for i := len(messages) - 1; i >= previous; i-- {
			if messages[i].Role == transcript.RoleBot && messages[i].HasAudio() {
				autoplay = &messages[i]
				break
			}
		}
	}
	if autoplay != nil {
		if err := a.playLocked(*autoplay); err != nil {
			a.logger.Warn("autoplay failed", "message_id", autoplay.ID, "error", err.Error())
		}
	}
	a.renderer.Render(a.entriesLocked())
}

// Entries returns the rows as last rendered.
func (a *Adapter) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entriesLocked()
}

// SetLoading shows the busy indicator while at least one caller has it on.
func (a *Adapter) SetLoading(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case on:
		a.inflight++
		if a.inflight == 1 {
			a.renderer.SetLoading(true)
		}
	case a.inflight > 0:
		a.inflight--
		if a.inflight == 0 {
			a.renderer.SetLoading(false)
		}
	}
}

// Loading reports whether the busy indicator is visible.
func (a *Adapter) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inflight > 0
}

// SetMinimized sets the display state.
func (a *Adapter) SetMinimized(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.minimized = on
	a.renderer.SetMinimized(on)
}

// ToggleMinimize flips the display state and returns the new value.
func (a *Adapter) ToggleMinimize() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.minimized = !a.minimized
	a.renderer.SetMinimized(a.minimized)
	return a.minimized
}

// Minimized reports the display state.
func (a *Adapter) Minimized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.minimized
}

// ShowTransientError shows message and hides it after BannerDuration. A
// newer error replaces the text and restarts the timer.
func (a *Adapter) ShowTransientError(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.banner != nil {
		a.banner.Stop()
	}
	a.bannerGen++
	gen := a.bannerGen
	a.renderer.ShowError(message)
	a.banner = a.afterFunc(BannerDuration, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.bannerGen != gen {
			return
		}
		a.banner = nil
		a.renderer.HideError()
	})
}

// ToggleAudio plays the audio attached to message id, or stops and rewinds
// it when it is already playing.
func (a *Adapter) ToggleAudio(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg, ok := a.findLocked(id)
	if !ok || !msg.HasAudio() || a.player == nil {
		return ErrNoAudio
	}

	if a.playing == id {
		a.stopLocked()
	} else if err := a.playLocked(msg); err != nil {
		a.renderer.Render(a.entriesLocked())
		return err
	}
	a.renderer.Render(a.entriesLocked())
	return nil
}

// Playing returns the id of the reply currently playing, if any.
func (a *Adapter) Playing() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// Close stops playback and any pending banner timer.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.banner != nil {
		a.banner.Stop()
		a.banner = nil
	}
	if a.playing != "" {
		a.stopLocked()
	}
	a.cancel()
}

func (a *Adapter) playLocked(msg transcript.Message) error {
	if a.playing != "" {
		a.stopLocked()
	}
	a.playingGen++
	gen := a.playingGen
	if err := a.player.Play(a.ctx, msg.Audio, func() { a.ended(gen) }); err != nil {
		return err
	}
	a.playing = msg.ID
	return nil
}

func (a *Adapter) stopLocked() {
	a.playing = ""
	a.playingGen++
	a.player.Stop()
}

// ended resets the control of the playback identified by gen.
func (a *Adapter) ended(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playingGen != gen || a.playing == "" {
		return
	}
	a.playing = ""
	a.renderer.Render(a.entriesLocked())
}

func (a *Adapter) findLocked(id string) (transcript.Message, bool) {
	for _, msg := range a.messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return transcript.Message{}, false
}

func (a *Adapter) entriesLocked() []Entry {
	entries := make([]Entry, len(a.messages))
	for i, msg := range a.messages {
		entries[i] = Entry{Message: msg}
		switch {
		case !msg.HasAudio() || a.player == nil:
		case msg.ID == a.playing:
			entries[i].Audio = AudioPlaying
		default:
			entries[i].Audio = AudioStopped
		}
	}
	return entries
}
