package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/priyalabs/tutor-lite/pkg/core/types"
	"github.com/priyalabs/tutor-lite/pkg/core/voice/tts"
)

type upstreamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type upstreamChatRequest struct {
	Model    string            `json:"model"`
	Messages []upstreamMessage `json:"messages"`
	Stream   bool              `json:"stream"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = io.WriteString(w, `{"status":"ok"}`+"\n")
}

// handleChat injects the tutor persona and relays the upstream SSE
// body through unchanged.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	endpoint := "chat"

	if s.cfg.UpstreamAPIKey == "" {
		s.metrics.RecordError(endpoint, "not_configured")
		s.writeError(w, http.StatusInternalServerError, "AI service is not configured")
		return
	}

	var req types.ChatRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.metrics.RecordError(endpoint, "bad_request")
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) > s.cfg.MaxMessages {
		s.metrics.RecordError(endpoint, "too_many_messages")
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("too many messages: %d > %d", len(req.Messages), s.cfg.MaxMessages))
		return
	}

	messages := make([]upstreamMessage, 0, len(req.Messages)+1)
	messages = append(messages, upstreamMessage{
		Role:    "system",
		Content: buildSystemPrompt(req.StudentName, req.Topic, req.ConfidenceLevel),
	})
	for _, m := range req.Messages {
		messages = append(messages, upstreamMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(upstreamChatRequest{
		Model:    s.cfg.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		s.metrics.RecordError(endpoint, "encode")
		s.writeError(w, http.StatusInternalServerError, "encode upstream request")
		return
	}

	upReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.UpstreamChatURL, bytes.NewReader(payload))
	if err != nil {
		s.metrics.RecordError(endpoint, "upstream")
		s.writeError(w, http.StatusInternalServerError, "build upstream request")
		return
	}
	upReq.Header.Set("Authorization", "Bearer "+s.cfg.UpstreamAPIKey)
	upReq.Header.Set("Content-Type", "application/json")

	resp, err := s.upstream.Do(upReq)
	if err != nil {
		s.logger.Warn("upstream chat request failed", "error", err)
		s.metrics.RecordError(endpoint, "upstream")
		s.writeError(w, http.StatusBadGateway, "AI gateway is unreachable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		s.logger.Warn("upstream chat error", "status", resp.StatusCode, "body", string(errBody))
		s.metrics.RecordError(endpoint, "upstream_"+strconv.Itoa(resp.StatusCode))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please wait a moment and try again.")
		case http.StatusPaymentRequired:
			s.writeError(w, http.StatusPaymentRequired, "AI credits depleted. Please add credits to continue.")
		default:
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("AI Gateway error: %d", resp.StatusCode))
		}
		return
	}

	s.metrics.StreamsActive.Inc()
	defer s.metrics.StreamsActive.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			break
		}
	}
	s.metrics.RecordRequest(endpoint, "200", time.Since(start))
}

// handleTTS synthesizes one payload of speech and returns the raw
// audio bytes.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	endpoint := "tts"

	var req types.SynthesisRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.metrics.RecordError(endpoint, "bad_request")
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.metrics.RecordError(endpoint, "bad_request")
		s.writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoiceID
	}

	syn, err := s.synth.Synthesize(r.Context(), req.Text, ttsOptions(voiceID))
	if err != nil {
		s.logger.Warn("synthesis failed", "error", err)
		s.metrics.RecordError(endpoint, "synthesis")
		s.writeError(w, http.StatusInternalServerError, "TTS generation failed")
		return
	}

	s.metrics.SynthesisBytesTotal.Add(float64(len(syn.Audio)))
	s.metrics.RecordRequest(endpoint, "200", time.Since(start))

	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(syn.Audio)
	syn.Release()
}

// handleTTSStream relays audio chunks as the provider generates
// them, so playback can begin before synthesis finishes.
func (s *Server) handleTTSStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	endpoint := "tts_stream"

	var req types.SynthesisRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.metrics.RecordError(endpoint, "bad_request")
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.metrics.RecordError(endpoint, "bad_request")
		s.writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoiceID
	}

	streamer, ok := s.synth.(tts.StreamProvider)
	if !ok {
		s.metrics.RecordError(endpoint, "not_supported")
		s.writeError(w, http.StatusNotImplemented, "streaming synthesis is not supported")
		return
	}

	stream, err := streamer.SynthesizeStream(r.Context(), req.Text, ttsOptions(voiceID))
	if err != nil {
		s.logger.Warn("streaming synthesis failed", "error", err)
		s.metrics.RecordError(endpoint, "synthesis")
		s.writeError(w, http.StatusInternalServerError, "TTS generation failed")
		return
	}
	defer stream.Close()

	s.metrics.StreamsActive.Inc()
	defer s.metrics.StreamsActive.Dec()

	w.Header().Set("Content-Type", "audio/mpeg")
	flusher, _ := w.(http.Flusher)
	for chunk := range stream.Chunks() {
		if _, writeErr := w.Write(chunk); writeErr != nil {
			return
		}
		s.metrics.SynthesisBytesTotal.Add(float64(len(chunk)))
		if flusher != nil {
			flusher.Flush()
		}
	}
	if err := stream.Err(); err != nil {
		s.logger.Warn("streaming synthesis ended early", "error", err)
		s.metrics.RecordError(endpoint, "synthesis")
		return
	}
	s.metrics.RecordRequest(endpoint, "200", time.Since(start))
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg})
}
