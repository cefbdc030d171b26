// Package gateway serves the two endpoints the tutor client depends
// on: the chat SSE relay and the speech synthesis relay.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/priyalabs/tutor-lite/pkg/core/voice/tts"
	"github.com/priyalabs/tutor-lite/pkg/gateway/config"
	"github.com/priyalabs/tutor-lite/pkg/gateway/mw"
)

// Server is the tutor gateway.
type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *Metrics
	upstream *http.Client
	synth    tts.Provider
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSynthesizer overrides the speech synthesis backend.
func WithSynthesizer(p tts.Provider) Option {
	return func(s *Server) {
		if p != nil {
			s.synth = p
		}
	}
}

// WithUpstreamClient overrides the HTTP client used for the chat
// relay.
func WithUpstreamClient(client *http.Client) Option {
	return func(s *Server) {
		if client != nil {
			s.upstream = client
		}
	}
}

// New creates a gateway server from config.
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: NewMetrics(cfg.MetricsNamespace),
		upstream: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: cfg.UpstreamConnectTimeout}).DialContext,
				ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
			},
		},
		synth: tts.NewElevenLabs(cfg.ElevenLabsAPIKey),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Post("/v1/chat", s.handleChat)
	r.Post("/v1/tts", s.handleTTS)
	r.Post("/v1/tts/stream", s.handleTTSStream)

	var h http.Handler = r
	h = mw.CORS(cfg.CORSAllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	s.handler = h

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe runs the gateway until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func ttsOptions(voiceID string) tts.SynthesizeOptions {
	return tts.SynthesizeOptions{VoiceID: voiceID, Format: "mp3"}
}
