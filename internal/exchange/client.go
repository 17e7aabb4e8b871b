// Package exchange implements the request/response protocol between the
// widget and the remote chat endpoints.
package exchange

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/chatdock/internal/config"
	"github.com/rbright/chatdock/internal/transcript"
)

var (
	// ErrStatus marks a non-2xx response from an endpoint.
	ErrStatus = errors.New("unexpected response status")
	// ErrNoEndpoint marks an operation whose endpoint is not configured.
	ErrNoEndpoint = errors.New("endpoint not configured")
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Log is the transcript surface the protocol reads context from and appends to.
type Log interface {
	Append(role transcript.Role, sender, text string, audio []byte) transcript.Message
	Context() string
}

// LoadingIndicator shows a busy state while a text exchange is in flight.
type LoadingIndicator interface {
	SetLoading(bool)
}

// ErrorSink surfaces failures that must not touch the transcript.
type ErrorSink interface {
	ShowTransientError(message string)
}

// Deps are the collaborators a Client needs. Only Log is required.
type Deps struct {
	Doer    Doer
	Log     Log
	Loading LoadingIndicator
	Errors  ErrorSink
	Logger  *slog.Logger
	// Spawn runs a network task. It defaults to running the task inline.
	Spawn func(task func())
}

// Client performs text and audio exchanges for one widget.
type Client struct {
	cfg     config.Config
	doer    Doer
	log     Log
	loading LoadingIndicator
	errs    ErrorSink
	logger  *slog.Logger
	spawn   func(func())
	now     func() time.Time
}

// New builds a client. Missing optional collaborators become no-ops; a nil
// Doer uses an http.Client without a timeout.
func New(cfg config.Config, deps Deps) *Client {
	c := &Client{
		cfg:     cfg,
		doer:    deps.Doer,
		log:     deps.Log,
		loading: deps.Loading,
		errs:    deps.Errors,
		logger:  deps.Logger,
		spawn:   deps.Spawn,
		now:     time.Now,
	}
	if c.doer == nil {
		c.doer = &http.Client{}
	}
	if c.loading == nil {
		c.loading = loadingFunc(func(bool) {})
	}
	if c.errs == nil {
		c.errs = errorSinkFunc(func(string) {})
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.spawn == nil {
		c.spawn = func(task func()) { task() }
	}
	return c
}

// SubmitText appends trimmed user text and, when a message endpoint is
// configured, exchanges it with the bot. It reports false for blank input.
func (c *Client) SubmitText(ctx context.Context, raw string) bool {
	text := strings.TrimSpace(raw)
	if text == "" {
		return false
	}

	system := c.log.Context()
	c.log.Append(transcript.RoleUser, c.cfg.User, text, nil)
	if !c.cfg.HasMessageEndpoint() {
		return true
	}

	c.spawn(func() {
		c.exchangeText(ctx, text, system, false)
	})
	return true
}

// ExchangeText sends text with the current transcript as context and
// appends the bot reply. Exchange failures append the fixed failure notice
// instead; the only error is ErrNoEndpoint, returned without a request or an
// append when no message endpoint is configured.
func (c *Client) ExchangeText(ctx context.Context, text string, voice bool) (transcript.Message, error) {
	if !c.cfg.HasMessageEndpoint() {
		c.logger.Warn("text exchange skipped", "error", ErrNoEndpoint.Error())
		return transcript.Message{}, ErrNoEndpoint
	}
	return c.exchangeText(ctx, text, c.log.Context(), voice), nil
}

func (c *Client) exchangeText(ctx context.Context, text, system string, voice bool) transcript.Message {
	c.loading.SetLoading(true)
	defer c.loading.SetLoading(false)

	reply, err := c.postText(ctx, textRequest{
		Message:    text,
		System:     system,
		Voice:      voice,
		Credential: c.cfg.APIKey,
	})
	if err != nil {
		c.logger.Error("text exchange failed", "url", c.cfg.MessageURL, "voice", voice, "error", err.Error())
		return c.log.Append(transcript.RoleBot, c.cfg.BotName, c.cfg.I18n.ExchangeFailed, nil)
	}

	audio, err := reply.decodeAudio()
	if err != nil {
		c.logger.Warn("reply audio dropped", "error", err.Error())
	}
	c.logger.Debug("text exchange complete", "voice", voice, "reply_chars", len(reply.Reply), "audio_bytes", len(audio))
	return c.log.Append(transcript.RoleBot, c.cfg.BotName, c.replyText(reply), audio)
}

// SubmitAudio uploads an encoded recording as a network task.
func (c *Client) SubmitAudio(ctx context.Context, wav []byte) {
	c.spawn(func() {
		_, _ = c.UploadAudio(ctx, wav)
	})
}

// UploadAudio posts a recording to the record endpoint. On success the reply
// is appended as a bot message and, when a message endpoint is configured,
// echoed back to it as a voice-originated exchange. Failures leave the
// transcript untouched and surface on the ErrorSink.
func (c *Client) UploadAudio(ctx context.Context, wav []byte) (transcript.Message, error) {
	if !c.cfg.HasRecordEndpoint() {
		c.logger.Warn("recording dropped", "error", ErrNoEndpoint.Error(), "bytes", len(wav))
		return transcript.Message{}, ErrNoEndpoint
	}

	reply, err := c.postAudio(ctx, wav)
	if err != nil {
		c.logger.Error("audio exchange failed", "url", c.cfg.RecordURL, "error", err.Error())
		c.errs.ShowTransientError(c.cfg.I18n.ErrorPrefix + err.Error())
		return transcript.Message{}, err
	}

	system := c.log.Context()
	msg := c.log.Append(transcript.RoleBot, c.cfg.BotName, c.replyText(reply), nil)
	if c.cfg.HasMessageEndpoint() && strings.TrimSpace(reply.Reply) != "" {
		c.exchangeText(ctx, reply.Reply, system, true)
	}
	return msg, nil
}

func (c *Client) replyText(r reply) string {
	if strings.TrimSpace(r.Reply) == "" {
		return c.cfg.I18n.NoReply
	}
	return r.Reply
}

type loadingFunc func(bool)

func (f loadingFunc) SetLoading(on bool) { f(on) }

type errorSinkFunc func(string)

func (f errorSinkFunc) ShowTransientError(message string) { f(message) }
