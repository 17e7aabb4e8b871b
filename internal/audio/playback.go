package audio

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
)

// PlayWAV decodes a 16-bit PCM WAV file and plays it on the default Pulse
// sink, returning once playback drains or ctx is cancelled.
func PlayWAV(ctx context.Context, data []byte) error {
	wav, err := DecodeWAV(data)
	if err != nil {
		return err
	}
	if len(wav.Samples) == 0 {
		return nil
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(wav.Samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, wav.Samples[cursor:])
		cursor += n
		if cursor >= len(wav.Samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	channels := pulse.PlaybackMono
	if wav.Channels == 2 {
		channels = pulse.PlaybackStereo
	}
	stream, err := client.NewPlayback(
		reader,
		channels,
		pulse.PlaybackSampleRate(wav.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName("chatdock reply"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play reply stream: %w", err)
	}
	return ctx.Err()
}
