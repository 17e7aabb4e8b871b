package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rbright/chatdock/internal/transcript"
)

// Controls is the widget surface the input loop drives.
type Controls interface {
	SetInput(text string)
	SendTypedMessage() bool
	ToggleMinimize() bool
	StartRecording() error
	StopRecording() error
	ToggleRecording() error
	ToggleAudio(id string) error
	Transcript() []transcript.Message
}

// Clipboard receives text copied with /copy.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Loop reads commands and messages from a terminal. Clipboard is optional.
type Loop struct {
	In        io.Reader
	Out       io.Writer
	Controls  Controls
	Clipboard Clipboard
}

// Run processes lines until /quit, end of input, or ctx cancellation.
func (l Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(l.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		case line := <-lines:
			if quit := l.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// handle applies one input line and reports whether the loop should end.
func (l Loop) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		l.Controls.SetInput(line)
		l.Controls.SendTypedMessage()
		return false
	}

	command, arg, _ := strings.Cut(trimmed, " ")
	switch command {
	case "/quit", "/exit":
		return true
	case "/min":
		l.Controls.ToggleMinimize()
	case "/rec":
		l.record(strings.TrimSpace(arg))
	case "/play":
		l.play(strings.TrimSpace(arg))
	case "/copy":
		l.copy(ctx, strings.TrimSpace(arg))
	case "/help":
		l.printf("%s", Help)
	default:
		l.printf("! unknown command %s (try /help)", command)
	}
	return false
}

// record maps /rec to the widget's record control: a bare /rec activates
// it, /rec start and /rec stop press and release it.
func (l Loop) record(arg string) {
	var err error
	switch arg {
	case "":
		err = l.Controls.ToggleRecording()
	case "start":
		err = l.Controls.StartRecording()
	case "stop":
		err = l.Controls.StopRecording()
	default:
		l.printf("! /rec takes start, stop or nothing")
		return
	}
	if err != nil {
		l.printf("! %v", err)
	}
}

func (l Loop) play(arg string) {
	n, msg, ok := l.entry("/play", arg)
	if !ok {
		return
	}
	if err := l.Controls.ToggleAudio(msg.ID); err != nil {
		l.printf("! #%d: %v", n, err)
	}
}

func (l Loop) copy(ctx context.Context, arg string) {
	if l.Clipboard == nil {
		l.printf("! no clipboard command configured")
		return
	}
	n, msg, ok := l.entry("/copy", arg)
	if !ok {
		return
	}
	if err := l.Clipboard.Copy(ctx, msg.Text); err != nil {
		l.printf("! #%d: %v", n, err)
		return
	}
	l.printf("  #%d copied", n)
}

// entry resolves a 1-based entry number typed after command.
func (l Loop) entry(command, arg string) (int, transcript.Message, bool) {
	n, err := strconv.Atoi(arg)
	messages := l.Controls.Transcript()
	if err != nil || n < 1 || n > len(messages) {
		l.printf("! %s needs an entry number between 1 and %d", command, len(messages))
		return 0, transcript.Message{}, false
	}
	return n, messages[n-1], true
}

func (l Loop) printf(format string, args ...any) {
	fmt.Fprintf(l.Out, format+"\n", args...)
}

// Help lists the input loop commands.
const Help = `Type a message and press enter to send it.
  /min       minimize or restore the chat
  /rec       start or stop recording (toggle mode)
  /rec start press the record control (hold mode)
  /rec stop  release the record control (hold mode)
  /play N    play or stop the audio of entry N
  /copy N    copy the text of entry N
  /quit      exit`
