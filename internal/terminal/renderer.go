// Package terminal hosts a widget on a line-oriented terminal.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rbright/chatdock/internal/config"
	"github.com/rbright/chatdock/internal/presenter"
)

const defaultColumns = 80

// Renderer prints widget display state as log lines. The terminal cannot
// redraw, so entries are printed once and later changes are announced.
type Renderer struct {
	out     io.Writer
	cfg     config.Config
	columns int

	mu        sync.Mutex
	printed   int
	audio     map[string]presenter.AudioState
	minimized bool
	pending   []presenter.Entry
}

// NewRenderer writes to out using cfg for the title, alignment and padding.
func NewRenderer(out io.Writer, cfg config.Config) *Renderer {
	return &Renderer{out: out, cfg: cfg, columns: defaultColumns, audio: map[string]presenter.AudioState{}}
}

// Render prints entries not yet shown and announces audio control changes.
// While minimized the log is held back until restore.
func (r *Renderer) Render(entries []presenter.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.minimized {
		r.pending = entries
		return
	}
	r.renderLocked(entries)
}

func (r *Renderer) renderLocked(entries []presenter.Entry) {
	for i, entry := range entries {
		id := entry.Message.ID
		if i >= r.printed {
			r.printLocked(i+1, entry)
			r.audio[id] = entry.Audio
			continue
		}
		if previous := r.audio[id]; previous != entry.Audio {
			r.audio[id] = entry.Audio
			r.linef("  #%d audio %s", i+1, entry.Audio)
		}
	}
	r.printed = max(r.printed, len(entries))
}

func (r *Renderer) printLocked(n int, entry presenter.Entry) {
	msg := entry.Message
	line := fmt.Sprintf("#%d %s: %s", n, msg.Sender, msg.Text)
	if entry.Audio != presenter.AudioNone {
		line += fmt.Sprintf(" [audio %s, /play %d]", entry.Audio, n)
	}
	r.linef("%s", r.align(line))
}

// SetLoading announces the busy indicator.
func (r *Renderer) SetLoading(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on && !r.minimized {
		r.linef("  %s is typing...", r.cfg.BotName)
	}
}

// SetMinimized prints the header and hides or restores the log.
func (r *Renderer) SetMinimized(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasMinimized := r.minimized
	r.minimized = on
	r.headerLocked()
	if on {
		return
	}
	if wasMinimized && r.pending != nil {
		pending := r.pending
		r.pending = nil
		r.renderLocked(pending)
	}
	r.linef("%s", r.cfg.I18n.Placeholder)
}

// ShowError prints the transient error banner.
func (r *Renderer) ShowError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linef("! %s", message)
}

// HideError is a no-op: printed banners cannot be erased.
func (r *Renderer) HideError() {}

func (r *Renderer) headerLocked() {
	state := r.cfg.I18n.MinimizeButton
	if r.minimized {
		state = "+"
	}
	header := fmt.Sprintf("== %s [%s] ==", r.cfg.I18n.Title, state)
	r.linef("%s", r.align(header))
}

// align places line on the configured side, padded in character cells.
func (r *Renderer) align(line string) string {
	pad := min(r.cfg.Padding/10, r.columns/4)
	if r.cfg.Alignment == config.AlignRight {
		width := len([]rune(line)) + pad
		if width < r.columns {
			return strings.Repeat(" ", r.columns-width) + line
		}
		return line
	}
	return strings.Repeat(" ", pad) + line
}

func (r *Renderer) linef(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}
