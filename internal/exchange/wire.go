package exchange

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/rbright/chatdock/internal/version"
)

const maxReplyBytes = 32 << 20

type textRequest struct {
	Message    string         `json:"message"`
	System     string         `json:"system"`
	Voice      bool           `json:"voice,omitempty"`
	Credential map[string]any `json:"credential,omitempty"`
}

type reply struct {
	Reply string `json:"reply"`
	Audio string `json:"audio,omitempty"`
}

// decodeAudio accepts plain base64 and data URLs.
func (r reply) decodeAudio() ([]byte, error) {
	raw := strings.TrimSpace(r.Audio)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "data:") {
		_, payload, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, fmt.Errorf("decode reply audio: malformed data url")
		}
		raw = payload
	}
	audio, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode reply audio: %w", err)
	}
	return audio, nil
}

// RecordingFilename names an uploaded recording after its capture time.
func RecordingFilename(unixMillis int64) string {
	return fmt.Sprintf("voice_recording_%d.wav", unixMillis)
}

func (c *Client) postText(ctx context.Context, body textRequest) (reply, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return reply{}, fmt.Errorf("encode text request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.MessageURL, bytes.NewReader(payload))
	if err != nil {
		return reply{}, fmt.Errorf("build text request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) postAudio(ctx context.Context, wav []byte) (reply, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, RecordingFilename(c.now().UnixMilli())))
	header.Set("Content-Type", "audio/wav")
	part, err := form.CreatePart(header)
	if err != nil {
		return reply{}, fmt.Errorf("build audio form: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return reply{}, fmt.Errorf("build audio form: %w", err)
	}
	if err := form.Close(); err != nil {
		return reply{}, fmt.Errorf("build audio form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RecordURL, &body)
	if err != nil {
		return reply{}, fmt.Errorf("build audio request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (reply, error) {
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.doer.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("post %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return reply{}, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	var out reply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&out); err != nil {
		return reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return out, nil
}
