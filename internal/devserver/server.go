// Package devserver is a local echo backend for trying the widget without a
// real chat service.
package devserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rbright/chatdock/internal/audio"
)

// DefaultAddr is where serve listens when no address is given.
const DefaultAddr = "127.0.0.1:8787"

const maxUploadBytes = 32 << 20

// voiceReply is the tone attached to voice-originated replies.
var voiceReply = []audio.Tone{
	{FrequencyHz: 660, Duration: 90 * time.Millisecond, Volume: 0.2},
	{FrequencyHz: 880, Duration: 120 * time.Millisecond, Volume: 0.2},
}

// Handler serves the echo chat API.
type Handler struct {
	logger *slog.Logger
}

// NewRouter wires the echo routes behind request-id, recovery, logging and
// CORS middleware.
func NewRouter(logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the echo routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/chat", h.handleChat)
	r.Post("/record", h.handleRecord)
}

// ListenAndServe serves the router on addr until ctx is cancelled. ready,
// when non-nil, receives the bound address once listening.
func ListenAndServe(ctx context.Context, addr string, logger *slog.Logger, ready func(net.Addr)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           NewRouter(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	logger.Info("devserver listening", "addr", listener.Addr().String())
	if ready != nil {
		ready(listener.Addr())
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

type chatRequest struct {
	Message    string         `json:"message"`
	System     string         `json:"system"`
	Voice      bool           `json:"voice"`
	Credential map[string]any `json:"credential"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	Audio string `json:"audio,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp := chatResponse{Reply: "echo: " + payload.Message}
	if payload.Voice {
		resp.Audio = base64.StdEncoding.EncodeToString(audio.SynthesizeWAV(voiceReply...))
	}
	h.logger.Debug("devserver chat",
		"request_id", middleware.GetReqID(r.Context()),
		"voice", payload.Voice,
		"context_chars", len(payload.System),
		"credential", len(payload.Credential) > 0,
	)
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "audio file field is required")
		return
	}
	defer file.Close()

	n, err := io.Copy(io.Discard, file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "read audio upload")
		return
	}
	h.logger.Debug("devserver recording",
		"request_id", middleware.GetReqID(r.Context()),
		"filename", header.Filename,
		"bytes", n,
	)
	respondJSON(w, http.StatusOK, chatResponse{Reply: fmt.Sprintf("received %d bytes", n)})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
