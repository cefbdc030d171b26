package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/priyalabs/tutor-lite/pkg/core"
)

const (
	elevenLabsDefaultBaseURL   = "https://api.elevenlabs.io"
	elevenLabsDefaultWSBase    = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	elevenLabsDefaultModelID   = "eleven_multilingual_v2"
	elevenLabsDefaultWSModelID = "eleven_flash_v2_5"

	// DefaultVoiceID is the tutor's default voice.
	DefaultVoiceID = "EXAVITQu4vr4xnSDxMaL"
)

// ElevenLabsProvider synthesizes speech directly against the
// ElevenLabs API, either as one buffered payload or as a websocket
// audio stream.
type ElevenLabsProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	wsBaseURL  string
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
func NewElevenLabs(apiKey string) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{},
		baseURL:    elevenLabsDefaultBaseURL,
		wsBaseURL:  elevenLabsDefaultWSBase,
	}
}

// WithBaseURL overrides the HTTP API base URL.
func (e *ElevenLabsProvider) WithBaseURL(base string) *ElevenLabsProvider {
	if base = strings.TrimSpace(base); base != "" {
		e.baseURL = strings.TrimSuffix(base, "/")
	}
	return e
}

// WithWSBaseURL overrides the websocket stream-input URL template.
func (e *ElevenLabsProvider) WithWSBaseURL(base string) *ElevenLabsProvider {
	if base = strings.TrimSpace(base); base != "" {
		e.wsBaseURL = base
	}
	return e
}

// WithHTTPClient overrides the HTTP client.
func (e *ElevenLabsProvider) WithHTTPClient(client *http.Client) *ElevenLabsProvider {
	if client != nil {
		e.httpClient = client
	}
	return e
}

// Name returns the provider identifier.
func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type elevenLabsTTSRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// Synthesize converts text to one mp3 payload.
func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if e.apiKey == "" {
		return nil, core.NewSynthesisError("elevenlabs api key is not configured", nil)
	}
	voiceID := opts.VoiceID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	body, err := json.Marshal(elevenLabsTTSRequest{
		Text:    text,
		ModelID: elevenLabsDefaultModelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.3,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, core.NewSynthesisError("marshal request", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_44100_128",
		e.baseURL, url.PathEscape(voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, core.NewSynthesisError("create request", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.NewCancelledError()
		}
		return nil, core.NewSynthesisError("elevenlabs request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		synthErr := core.NewSynthesisError(
			fmt.Sprintf("elevenlabs error %d: %s", resp.StatusCode, string(errBody)), nil)
		synthErr.StatusCode = resp.StatusCode
		return nil, synthErr
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewSynthesisError("read audio", err)
	}
	return &Synthesis{Audio: audio, Format: "mp3"}, nil
}

// SynthesizeStream converts text to streaming audio over the
// ElevenLabs stream-input websocket.
func (e *ElevenLabsProvider) SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*SynthesisStream, error) {
	if e.apiKey == "" {
		return nil, core.NewSynthesisError("elevenlabs api key is not configured", nil)
	}
	voiceID := opts.VoiceID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	wsURL, err := buildElevenLabsWSURL(e.wsBaseURL, voiceID, opts)
	if err != nil {
		return nil, core.NewSynthesisError("build websocket url", err)
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, core.NewSynthesisError("websocket connect", err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }

	// Init message, then the full text, then a flush.
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	init := map[string]any{"text": " ", "voice_id": voiceID}
	payload := map[string]any{"text": ensureTrailingSpace(text)}
	flush := map[string]any{"text": "", "flush": true}
	for _, msg := range []map[string]any{init, payload, flush} {
		if err := conn.WriteJSON(msg); err != nil {
			closeConn()
			return nil, core.NewSynthesisError("websocket write", err)
		}
	}

	stream := NewSynthesisStream()
	go func() {
		defer stream.FinishSending()
		defer stream.Close()
		defer closeConn()
		for {
			select {
			case <-ctx.Done():
				stream.SetError(ctx.Err())
				return
			case <-stream.done:
				return
			default:
			}
			_, data, err := conn.ReadMessage()
			if err != nil {
				// Normal close after isFinal is not an error worth surfacing.
				return
			}
			var msg map[string]json.RawMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if audio := decodeAudioB64(msg["audio"]); len(audio) > 0 {
				if !stream.Send(audio) {
					return
				}
			}
			if decodeBoolRaw(msg["isFinal"]) || decodeBoolRaw(msg["is_final"]) {
				return
			}
		}
	}()

	return stream, nil
}

func ensureTrailingSpace(text string) string {
	text = strings.TrimSpace(text)
	if text != "" && !strings.HasSuffix(text, " ") {
		text += " "
	}
	return text
}

func buildElevenLabsWSURL(base, voiceID string, opts SynthesizeOptions) (string, error) {
	if strings.TrimSpace(base) == "" {
		base = elevenLabsDefaultWSBase
	}
	base = strings.ReplaceAll(base, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		q.Set("model_id", elevenLabsDefaultWSModelID)
	}
	if q.Get("output_format") == "" {
		format := "pcm_24000"
		if opts.Format == "mp3" {
			format = "mp3_44100_128"
		}
		q.Set("output_format", format)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeAudioB64(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	audio, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some payloads arrive without padding.
		audio, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return nil
		}
	}
	return audio
}

func decodeBoolRaw(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var out bool
	if err := json.Unmarshal(raw, &out); err != nil {
		return false
	}
	return out
}
