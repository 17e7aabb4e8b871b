package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rbright/chatdock/internal/config"
	"github.com/rbright/chatdock/internal/fsm"
	"github.com/rbright/chatdock/internal/ipc"
	"github.com/rbright/chatdock/internal/presenter"
	"github.com/rbright/chatdock/internal/recorder"
	"github.com/rbright/chatdock/internal/transcript"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	mu        sync.Mutex
	renders   int
	last      []presenter.Entry
	loading   []bool
	minimized []bool
	errors    []string
}

func (r *recordingRenderer) Render(entries []presenter.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
	r.last = entries
}

func (r *recordingRenderer) SetLoading(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = append(r.loading, on)
}

func (r *recordingRenderer) SetMinimized(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minimized = append(r.minimized, on)
}

func (r *recordingRenderer) ShowError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *recordingRenderer) HideError() {}

func (r *recordingRenderer) lastLoading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading[len(r.loading)-1]
}

type stubStream struct {
	chunks chan []byte
	once   sync.Once
}

func (s *stubStream) Start() error { return nil }

func (s *stubStream) Stop() error {
	s.once.Do(func() { close(s.chunks) })
	return nil
}

func (s *stubStream) Chunks() <-chan []byte { return s.chunks }

type stubCapture struct {
	err error
}

func (c stubCapture) Open(context.Context) (recorder.Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	chunks := make(chan []byte, 1)
	chunks <- []byte("pcm")
	return &stubStream{chunks: chunks}, nil
}

type backend struct {
	mu       sync.Mutex
	chats    []map[string]any
	uploads  int
	chatFail bool
}

func newBackend(t *testing.T) (*httptest.Server, *backend) {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		b.mu.Lock()
		b.chats = append(b.chats, body)
		fail := b.chatFail
		b.mu.Unlock()
		if fail {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		reply := "hi"
		if body["voice"] == true {
			reply = "spoken"
		}
		_, _ = io.WriteString(w, `{"reply":"`+reply+`"}`)
	})
	mux.HandleFunc("POST /record", func(w http.ResponseWriter, r *http.Request) {
		_, _, err := r.FormFile("audio")
		require.NoError(t, err)
		b.mu.Lock()
		b.uploads++
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"reply":"ok"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, b
}

func pairs(messages []transcript.Message) [][2]string {
	out := make([][2]string, 0, len(messages))
	for _, msg := range messages {
		out = append(out, [2]string{msg.Sender, msg.Text})
	}
	return out
}

func TestNewRendersInitialState(t *testing.T) {
	renderer := &recordingRenderer{}
	w := New(config.Default(), Deps{Renderer: renderer})
	defer w.Close()

	require.Equal(t, 1, renderer.renders)
	require.Empty(t, renderer.last)
	require.Equal(t, []bool{false}, renderer.loading)
	require.Equal(t, []bool{false}, renderer.minimized)
	require.False(t, w.Minimized())
	require.Equal(t, fsm.StateIdle, w.RecordingState())
}

func TestSendTypedMessageExchangesWithEndpoint(t *testing.T) {
	server, b := newBackend(t)
	cfg := config.Default()
	cfg.MessageURL = server.URL + "/chat"
	renderer := &recordingRenderer{}
	w := New(cfg, Deps{Renderer: renderer, Doer: server.Client()})
	defer w.Close()

	w.SetInput("hello")
	require.True(t, w.SendTypedMessage())
	require.Empty(t, w.Input())
	require.Equal(t, [][2]string{{"You", "hello"}}, pairs(w.Transcript())[:1])

	w.Wait()
	require.Equal(t, [][2]string{{"You", "hello"}, {"Bot", "hi"}}, pairs(w.Transcript()))
	require.Equal(t, []map[string]any{{"message": "hello", "system": ""}}, b.chats)
	require.False(t, renderer.lastLoading())
	require.False(t, w.Loading())
}

func TestSendFailureAppendsFailureNotice(t *testing.T) {
	server, b := newBackend(t)
	b.chatFail = true
	cfg := config.Default()
	cfg.MessageURL = server.URL + "/chat"
	renderer := &recordingRenderer{}
	w := New(cfg, Deps{Renderer: renderer, Doer: server.Client()})
	defer w.Close()

	require.True(t, w.Send("hello"))
	w.Wait()

	require.Equal(t, [][2]string{{"You", "hello"}, {"Bot", "Error while retrieving the response."}}, pairs(w.Transcript()))
	require.False(t, renderer.lastLoading())
}

func TestSendWithoutEndpointOnlyAppendsUserMessage(t *testing.T) {
	w := New(config.Default(), Deps{})
	defer w.Close()

	w.SetInput("hi")
	require.True(t, w.SendTypedMessage())
	w.Wait()

	require.Equal(t, [][2]string{{"You", "hi"}}, pairs(w.Transcript()))
}

func TestBlankInputIsKept(t *testing.T) {
	w := New(config.Default(), Deps{})
	defer w.Close()

	w.SetInput("   ")
	require.False(t, w.SendTypedMessage())
	require.Equal(t, "   ", w.Input())
	require.Empty(t, w.Transcript())
}

func TestRecordingUploadFollowsUpWithVoiceExchange(t *testing.T) {
	server, b := newBackend(t)
	cfg := config.Default()
	cfg.RecordButton = true
	cfg.Maintain2Record = false
	cfg.RecordURL = server.URL + "/record"
	cfg.MessageURL = server.URL + "/chat"
	w := New(cfg, Deps{Doer: server.Client(), Capture: stubCapture{}})
	defer w.Close()

	require.True(t, w.HandleRecordInput(recorder.InputActivate))
	require.Equal(t, fsm.StateCapturing, w.RecordingState())
	require.True(t, w.HandleRecordInput(recorder.InputActivate))
	require.Equal(t, fsm.StateIdle, w.RecordingState())
	w.Wait()

	require.Equal(t, 1, b.uploads)
	require.Equal(t, [][2]string{{"Bot", "ok"}, {"Bot", "spoken"}}, pairs(w.Transcript()))
	require.Len(t, b.chats, 1)
	require.Equal(t, true, b.chats[0]["voice"])
	require.Equal(t, "ok", b.chats[0]["message"])
}

func TestHoldModeLeaveStopsRecording(t *testing.T) {
	server, b := newBackend(t)
	cfg := config.Default()
	cfg.RecordButton = true
	cfg.RecordURL = server.URL + "/record"
	w := New(cfg, Deps{Doer: server.Client(), Capture: stubCapture{}})
	defer w.Close()

	require.False(t, w.HandleRecordInput(recorder.InputActivate))
	require.True(t, w.HandleRecordInput(recorder.InputPress))
	require.True(t, w.HandleRecordInput(recorder.InputLeave))
	require.True(t, w.HandleRecordInput(recorder.InputRelease))
	w.Wait()

	require.Equal(t, 1, b.uploads)
	require.Equal(t, fsm.StateIdle, w.RecordingState())
}

func TestRecordingDisabledWithoutButton(t *testing.T) {
	w := New(config.Default(), Deps{Capture: stubCapture{}})
	defer w.Close()

	require.ErrorIs(t, w.StartRecording(), ErrRecordingDisabled)
	require.ErrorIs(t, w.StopRecording(), ErrRecordingDisabled)
	require.ErrorIs(t, w.ToggleRecording(), ErrRecordingDisabled)
	require.False(t, w.HandleRecordInput(recorder.InputPress))
	require.False(t, w.RecordingEnabled())
}

func TestMicrophoneDeniedBanner(t *testing.T) {
	tests := []struct {
		name       string
		banner     bool
		wantErrors int
	}{
		{name: "silent by default", banner: false, wantErrors: 0},
		{name: "opt-in banner", banner: true, wantErrors: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.RecordButton = true
			cfg.RecordErrorBanner = tc.banner
			renderer := &recordingRenderer{}
			w := New(cfg, Deps{Renderer: renderer, Capture: stubCapture{err: errors.New("permission denied")}})
			defer w.Close()

			require.NoError(t, w.StartRecording())

			require.Equal(t, fsm.StateIdle, w.RecordingState())
			require.Empty(t, w.Transcript())
			require.Len(t, renderer.errors, tc.wantErrors)
			if tc.banner {
				require.Contains(t, renderer.errors[0], "Error: microphone access denied")
			}
		})
	}
}

func TestToggleMinimizeTwiceRestores(t *testing.T) {
	renderer := &recordingRenderer{}
	w := New(config.Default(), Deps{Renderer: renderer})
	defer w.Close()

	require.True(t, w.ToggleMinimize())
	require.False(t, w.ToggleMinimize())
	require.False(t, w.Minimized())
	require.Equal(t, []bool{false, true, false}, renderer.minimized)
}

func TestHandleCommands(t *testing.T) {
	cfg := config.Default()
	cfg.RecordButton = true
	cfg.Maintain2Record = false
	w := New(cfg, Deps{Capture: stubCapture{}})
	defer w.Close()
	ctx := context.Background()

	resp := w.Handle(ctx, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)

	resp = w.Handle(ctx, ipc.Request{Command: ipc.CommandSend, Text: "from socket"})
	require.True(t, resp.OK)
	require.Equal(t, "sent", resp.Message)
	require.Equal(t, 1, resp.Messages)

	resp = w.Handle(ctx, ipc.Request{Command: ipc.CommandSend, Text: "  "})
	require.False(t, resp.OK)
	require.Equal(t, "nothing to send", resp.Error)

	resp = w.Handle(ctx, ipc.Request{Command: ipc.CommandMinimize})
	require.Equal(t, "minimized", resp.Message)
	require.True(t, resp.Minimized)

	resp = w.Handle(ctx, ipc.Request{Command: ipc.CommandRecord})
	require.True(t, resp.OK)
	require.Equal(t, "capturing", resp.Message)

	resp = w.Handle(ctx, ipc.Request{Command: "dance"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestRecordingFollowsConfiguredMode(t *testing.T) {
	tests := []struct {
		name     string
		hold     bool
		accepted []string
		rejected []string
	}{
		{
			name:     "hold mode",
			hold:     true,
			accepted: []string{ipc.CommandRecordStart, ipc.CommandRecordStop},
			rejected: []string{ipc.CommandRecord},
		},
		{
			name:     "toggle mode",
			hold:     false,
			accepted: []string{ipc.CommandRecord, ipc.CommandRecord},
			rejected: []string{ipc.CommandRecordStart, ipc.CommandRecordStop},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.RecordButton = true
			cfg.Maintain2Record = tc.hold
			w := New(cfg, Deps{Capture: stubCapture{}})
			defer w.Close()
			ctx := context.Background()

			for _, command := range tc.rejected {
				resp := w.Handle(ctx, ipc.Request{Command: command})
				require.False(t, resp.OK, command)
				require.Contains(t, resp.Error, ErrModeMismatch.Error())
				require.Equal(t, "idle", resp.State)
			}

			first := w.Handle(ctx, ipc.Request{Command: tc.accepted[0]})
			require.True(t, first.OK)
			require.Equal(t, "capturing", first.Message)

			second := w.Handle(ctx, ipc.Request{Command: tc.accepted[1]})
			require.True(t, second.OK)
			require.Equal(t, "idle", second.Message)
		})
	}
}

func TestHoldModeRejectsToggle(t *testing.T) {
	cfg := config.Default()
	cfg.RecordButton = true
	w := New(cfg, Deps{Capture: stubCapture{}})
	defer w.Close()

	require.ErrorIs(t, w.ToggleRecording(), ErrModeMismatch)
	require.Equal(t, fsm.StateIdle, w.RecordingState())

	require.NoError(t, w.StartRecording())
	require.Equal(t, fsm.StateCapturing, w.RecordingState())
	require.ErrorIs(t, w.ToggleRecording(), ErrModeMismatch)
	require.Equal(t, fsm.StateCapturing, w.RecordingState())
	require.NoError(t, w.StopRecording())
	require.Equal(t, fsm.StateIdle, w.RecordingState())
}

func TestToggleModeRejectsPressAndRelease(t *testing.T) {
	cfg := config.Default()
	cfg.RecordButton = true
	cfg.Maintain2Record = false
	w := New(cfg, Deps{Capture: stubCapture{}})
	defer w.Close()

	require.ErrorIs(t, w.StartRecording(), ErrModeMismatch)
	require.Equal(t, fsm.StateIdle, w.RecordingState())
	require.NoError(t, w.ToggleRecording())
	require.ErrorIs(t, w.StopRecording(), ErrModeMismatch)
	require.Equal(t, fsm.StateCapturing, w.RecordingState())
	require.NoError(t, w.ToggleRecording())
	require.Equal(t, fsm.StateIdle, w.RecordingState())
}

func TestHandleRecordWhenDisabled(t *testing.T) {
	w := New(config.Default(), Deps{})
	defer w.Close()

	resp := w.Handle(context.Background(), ipc.Request{Command: ipc.CommandRecord})
	require.False(t, resp.OK)
	require.Equal(t, ErrRecordingDisabled.Error(), resp.Error)
}

func TestCloseIsIdempotentAndRejectsSends(t *testing.T) {
	w := New(config.Default(), Deps{})
	w.Close()
	w.Close()

	require.False(t, w.Send("late"))
}

func TestSendRacingCloseNeverStartsTasks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"reply":"hi"}`)
	}))
	t.Cleanup(server.Close)
	cfg := config.Default()
	cfg.MessageURL = server.URL + "/chat"

	for range 200 {
		w := New(cfg, Deps{Doer: server.Client()})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			w.Send("hello")
		}()
		go func() {
			defer wg.Done()
			w.Close()
		}()
		wg.Wait()
		w.Wait()
	}
}

func TestWaitWhileSendsArrive(t *testing.T) {
	server, b := newBackend(t)
	cfg := config.Default()
	cfg.MessageURL = server.URL + "/chat"
	w := New(cfg, Deps{Doer: server.Client()})
	defer w.Close()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			w.Send("hello")
		}()
		go func() {
			defer wg.Done()
			w.Wait()
		}()
	}
	wg.Wait()
	w.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.chats, 20)
	require.Len(t, w.Transcript(), 40)
}

func TestCloseDiscardsOpenRecording(t *testing.T) {
	server, b := newBackend(t)
	cfg := config.Default()
	cfg.RecordButton = true
	cfg.RecordURL = server.URL + "/record"
	renderer := &recordingRenderer{}
	w := New(cfg, Deps{Renderer: renderer, Doer: server.Client(), Capture: stubCapture{}})

	require.NoError(t, w.StartRecording())
	require.Equal(t, fsm.StateCapturing, w.RecordingState())
	w.Close()

	require.Equal(t, fsm.StateIdle, w.RecordingState())
	b.mu.Lock()
	defer b.mu.Unlock()
	require.Zero(t, b.uploads)
	require.Empty(t, renderer.errors)
	require.Empty(t, w.Transcript())
}
