package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const wavHeaderSize = 44

// WAVEncoder frames raw little-endian PCM16 as a WAV file.
type WAVEncoder struct {
	SampleRate int
	Channels   int
}

// Encode implements recorder.Encoder.
func (e WAVEncoder) Encode(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm16 payload has odd length %d", len(pcm))
	}
	return EncodeWAV(pcm, e.SampleRate, e.Channels), nil
}

// EncodeWAV prefixes pcm with a minimal 16-bit PCM WAV header.
func EncodeWAV(pcm []byte, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	out := make([]byte, wavHeaderSize, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	return append(out, pcm...)
}

// WAV is a decoded 16-bit PCM WAV file.
type WAV struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Duration reports the playback length of w.
func (w WAV) Duration() time.Duration {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return 0
	}
	frames := len(w.Samples) / w.Channels
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// DecodeWAV parses a RIFF/WAVE file carrying 16-bit PCM. Chunks other than
// "fmt " and "data" are skipped.
func DecodeWAV(data []byte) (WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAV{}, errors.New("not a RIFF/WAVE file")
	}

	var (
		out     WAV
		haveFmt bool
	)
	rest := data[12:]
	for len(rest) >= 8 {
		id := string(rest[0:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		body := rest[8:]
		if size > len(body) {
			size = len(body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return WAV{}, errors.New("wav fmt chunk too short")
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return WAV{}, fmt.Errorf("unsupported wav format %d", format)
			}
			if bits := binary.LittleEndian.Uint16(body[14:16]); bits != 16 {
				return WAV{}, fmt.Errorf("unsupported wav bit depth %d", bits)
			}
			out.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			out.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAV{}, errors.New("wav data chunk precedes fmt chunk")
			}
			out.Samples = make([]int16, size/2)
			for i := range out.Samples {
				out.Samples[i] = int16(binary.LittleEndian.Uint16(body[i*2:]))
			}
			return out, nil
		}

		// Chunks are padded to even sizes.
		advance := 8 + size + size%2
		if advance > len(rest) {
			break
		}
		rest = rest[advance:]
	}
	return WAV{}, errors.New("wav data chunk not found")
}

// Tone describes one synthesized sine segment.
type Tone struct {
	FrequencyHz float64
	Duration    time.Duration
	Volume      float64
}

// SynthesizeWAV renders tones separated by short gaps into a mono WAV file.
func SynthesizeWAV(tones ...Tone) []byte {
	samples := synthesize(tones)
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return EncodeWAV(pcm, SampleRate, Channels)
}

func synthesize(tones []Tone) []int16 {
	gap := samplesForDuration(22 * time.Millisecond)
	var pcm []int16
	for i, tone := range tones {
		pcm = append(pcm, synthesizeTone(tone)...)
		if i < len(tones)-1 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}
	return pcm
}

func synthesizeTone(tone Tone) []int16 {
	n := samplesForDuration(tone.Duration)
	if n <= 0 || tone.FrequencyHz <= 0 || tone.Volume <= 0 {
		return nil
	}

	// 5ms linear attack and release to avoid clicks.
	ramp := max(min(n/10, SampleRate/200), 1)

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / SampleRate
		sample := math.Sin(2 * math.Pi * tone.FrequencyHz * t)
		pcm[i] = int16(math.Round(sample * tone.Volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * SampleRate))
}
