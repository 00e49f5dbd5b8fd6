// Package speechgrpc implements recognizer handles over the Cloud Speech v1
// StreamingRecognize gRPC API. Any server that speaks that API works,
// including local gateways.
package speechgrpc

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/recognizer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	defaultDialTimeout  = 3 * time.Second
	defaultLanguageCode = "en-US"
)

// SpeechPhrase is one vocabulary boost phrase in request-ready form.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

// Config controls connection setup and per-session recognition behavior.
type Config struct {
	Endpoint             string
	DialTimeout          time.Duration
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	MaxAlternatives      int32
	SpeechPhrases        []SpeechPhrase

	// NoSpeechTimeout ends a session with speech_timeout when nothing is heard.
	NoSpeechTimeout time.Duration
	// MaxSession ends a session with network_timeout when no result arrives.
	MaxSession time.Duration

	// DebugDump writes every response as JSONL under the state debug dir.
	DebugDump bool
}

// Factory creates one handle, and one client connection, per recognizer.
type Factory struct {
	cfg    Config
	source audio.Source
	logger *slog.Logger

	dialOptions []grpc.DialOption
}

var _ recognizer.Factory = (*Factory)(nil)

// NewFactory validates cfg and returns a recognizer factory.
func NewFactory(cfg Config, source audio.Source, logger *slog.Logger) (*Factory, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, errors.New("speech grpc endpoint is empty")
	}
	if source == nil {
		return nil, errors.New("speech grpc audio source is nil")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = defaultLanguageCode
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Factory{
		cfg:    cfg,
		source: source,
		logger: logger,
		dialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
	}, nil
}

// NewHandle creates an idle handle bound to cb. No network I/O happens until
// the first StartListening.
func (f *Factory) NewHandle(cb recognizer.Callback) (recognizer.Handle, error) {
	if cb == nil {
		return nil, errors.New("speech grpc callback is nil")
	}

	conn, err := grpc.NewClient(f.cfg.Endpoint, f.dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial speech grpc %q: %w", f.cfg.Endpoint, err)
	}

	return newHandle(f.cfg, conn, speechpb.NewSpeechClient(conn), f.source, cb, f.logger), nil
}
