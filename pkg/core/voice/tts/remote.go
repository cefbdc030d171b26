package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/priyalabs/tutor-lite/pkg/core"
	"github.com/priyalabs/tutor-lite/pkg/core/types"
)

// RemoteProvider synthesizes speech through the tutor gateway's TTS
// relay: POST {text, voiceId}, binary audio payload back.
type RemoteProvider struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

// NewRemote creates a provider for the given relay endpoint.
func NewRemote(endpoint string) *RemoteProvider {
	return &RemoteProvider{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

// NewRemoteWithClient creates a provider with a custom HTTP client.
func NewRemoteWithClient(endpoint string, client *http.Client) *RemoteProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteProvider{
		endpoint:   endpoint,
		httpClient: client,
	}
}

// WithAuthToken sets the bearer token sent with each request.
func (p *RemoteProvider) WithAuthToken(token string) *RemoteProvider {
	p.authToken = token
	return p
}

// Name returns the provider identifier.
func (p *RemoteProvider) Name() string {
	return "remote"
}

// Synthesize posts text to the relay and returns the audio payload.
// Any failure (network, non-success status, quota or auth) is a
// synthesis error; the caller decides whether to fall back.
func (p *RemoteProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	body, err := json.Marshal(types.SynthesisRequest{Text: text, VoiceID: opts.VoiceID})
	if err != nil {
		return nil, core.NewSynthesisError("encode synthesis request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, core.NewSynthesisError("build synthesis request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.NewCancelledError()
		}
		return nil, core.NewSynthesisError("synthesis request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er types.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(raw, &er)
		msg := er.Error
		if msg == "" {
			msg = fmt.Sprintf("synthesis endpoint returned %s", resp.Status)
		}
		e := core.NewSynthesisError(msg, nil)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewSynthesisError("read audio payload", err)
	}
	format := "mp3"
	if ct := resp.Header.Get("Content-Type"); ct == "audio/wav" || ct == "audio/x-wav" {
		format = "wav"
	}
	return &Synthesis{Audio: audio, Format: format}, nil
}
