package recorder

import (
	"context"
	"errors"
)

var (
	// ErrAccessDenied wraps failures to obtain or start the microphone.
	ErrAccessDenied = errors.New("microphone access denied")
	// ErrEmptyRecording indicates capture stopped before any audio arrived.
	ErrEmptyRecording = errors.New("recording captured no audio")
)

// Capture requests microphone access and opens a capture stream.
type Capture interface {
	Open(context.Context) (Stream, error)
}

// Stream is one open microphone stream. Chunks delivers captured audio and
// is closed once the stream has flushed everything after Stop.
type Stream interface {
	Start() error
	Stop() error
	Chunks() <-chan []byte
}

// Encoder assembles raw captured chunks into one uploadable payload.
type Encoder interface {
	Encode(raw []byte) ([]byte, error)
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func([]byte) ([]byte, error)

func (f EncoderFunc) Encode(raw []byte) ([]byte, error) {
	return f(raw)
}

// Submitter receives finished recordings.
type Submitter interface {
	SubmitRecording(context.Context, []byte)
}

// SubmitFunc adapts a function to the Submitter interface.
type SubmitFunc func(context.Context, []byte)

func (f SubmitFunc) SubmitRecording(ctx context.Context, payload []byte) {
	f(ctx, payload)
}

// ErrorReporter receives non-fatal recording failures.
type ErrorReporter interface {
	RecordingFailed(error)
}

// ReportFunc adapts a function to the ErrorReporter interface.
type ReportFunc func(error)

func (f ReportFunc) RecordingFailed(err error) {
	f(err)
}
