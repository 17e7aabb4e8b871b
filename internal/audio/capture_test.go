package audio

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCapture(buffer int) *Capture {
	return &Capture{
		chunks: make(chan []byte, buffer),
		stopCh: make(chan struct{}),
	}
}

func TestWriterFuncDelegatesWrite(t *testing.T) {
	called := false
	writer := writerFunc(func(b []byte) (int, error) {
		called = true
		require.Equal(t, []byte{1, 2, 3}, b)
		return len(b), nil
	})

	n, err := writer.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, called)
}

func TestCaptureOnPCMChunkingAndStopFlushesPending(t *testing.T) {
	capture := newTestCapture(8)

	input := make([]byte, chunkSizeBytes+111)
	for i := range input {
		input[i] = byte(i % 255)
	}

	n, err := capture.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), capture.BytesCaptured())

	first := <-capture.Chunks()
	require.Equal(t, input[:chunkSizeBytes], first)

	require.NoError(t, capture.Stop())

	remaining, ok := <-capture.Chunks()
	require.True(t, ok)
	require.Equal(t, input[chunkSizeBytes:], remaining)

	_, ok = <-capture.Chunks()
	require.False(t, ok)
}

func TestCaptureOnPCMReturnsEOFAfterStop(t *testing.T) {
	capture := newTestCapture(1)
	require.NoError(t, capture.Stop())

	n, err := capture.onPCM([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, capture.BytesCaptured())
}

func TestCaptureStopIsIdempotent(t *testing.T) {
	capture := newTestCapture(1)
	capture.device = Device{ID: "mic-1"}

	require.NoError(t, capture.Stop())
	require.NoError(t, capture.Stop())
	require.Equal(t, "mic-1", capture.Device().ID)

	_, ok := <-capture.Chunks()
	require.False(t, ok)
}

func TestCaptureStartWithoutStreamFails(t *testing.T) {
	capture := newTestCapture(1)
	capture.device = Device{ID: "mic-1"}
	require.ErrorContains(t, capture.Start(), "mic-1")
}

func TestMicrophoneOpenPropagatesSelectionError(t *testing.T) {
	mic := NewMicrophone("usb", "default", nil)
	mic.selectDevice = func(context.Context, string, string) (Selection, error) {
		return Selection{}, errors.New("no audio input devices found")
	}

	stream, err := mic.Open(context.Background())
	require.Nil(t, stream)
	require.ErrorContains(t, err, "no audio input devices")
}

func TestMicrophoneOpenFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	mic := NewMicrophone("default", "default", nil)
	mic.selectDevice = func(context.Context, string, string) (Selection, error) {
		return Selection{Device: Device{ID: "usb-mic", Available: true}}, nil
	}

	_, err := mic.Open(context.Background())
	require.ErrorContains(t, err, "connect pulse server")
}
