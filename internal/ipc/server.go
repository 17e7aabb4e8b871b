package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// DefaultReadTimeout bounds how long a connected client may take to send
// its request line.
const DefaultReadTimeout = 2 * time.Second

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server answers one request per connection.
type Server struct {
	Handler     Handler
	Logger      *slog.Logger
	ReadTimeout time.Duration
}

// Serve accepts unix-socket clients with default settings until context
// cancellation or listener close.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	return Server{Handler: handler}.Serve(ctx, listener)
}

// Serve accepts clients until ctx is cancelled or the listener closes, then
// waits for in-flight requests.
func (s Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}

	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			resp := s.serveConn(ctx, c)
			_ = c.SetWriteDeadline(time.Now().Add(s.ReadTimeout))
			_ = json.NewEncoder(c).Encode(resp)
		}(conn)
	}
}

func (s Server) serveConn(ctx context.Context, c net.Conn) Response {
	if err := c.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
		return Response{Error: fmt.Sprintf("set deadline: %v", err)}
	}
	line, err := bufio.NewReader(c).ReadBytes('\n')
	if err != nil {
		return Response{Error: fmt.Sprintf("read request: %v", err)}
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Error: fmt.Sprintf("decode request: %v", err)}
	}

	resp := s.handle(ctx, req)
	s.Logger.Debug("ipc request", "command", req.Command, "ok", resp.OK, "error", resp.Error)
	return resp
}

// handle turns a handler panic into an error response so one bad command
// cannot take the widget down.
func (s Server) handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("ipc handler panic", "command", req.Command, "panic", fmt.Sprint(r))
			resp = Response{Error: fmt.Sprintf("command %q failed", req.Command)}
		}
	}()
	return s.Handler.Handle(ctx, req)
}
