// Package wsasr implements recognizer handles over the Deepgram streaming
// websocket protocol.
package wsasr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/recognizer"
	"github.com/rbright/hark/internal/version"
)

const (
	DefaultURL         = "wss://api.deepgram.com/v1/listen"
	defaultDialTimeout = 5 * time.Second
	defaultLanguage    = "en-US"
)

// Keyword is one vocabulary boost entry.
type Keyword struct {
	Keyword string
	Boost   float32
}

// Config controls the listen URL and per-session timeouts.
type Config struct {
	URL                  string
	APIKey               string
	DialTimeout          time.Duration
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	MaxAlternatives      int
	Keywords             []Keyword

	NoSpeechTimeout time.Duration
	MaxSession      time.Duration
}

// Factory creates websocket recognizer handles.
type Factory struct {
	cfg    Config
	base   *url.URL
	source audio.Source
	logger *slog.Logger
}

var _ recognizer.Factory = (*Factory)(nil)

// NewFactory validates cfg and returns a recognizer factory.
func NewFactory(cfg Config, source audio.Source, logger *slog.Logger) (*Factory, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	base, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	switch base.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("websocket url %q must use ws or wss", cfg.URL)
	}
	if source == nil {
		return nil, errors.New("websocket audio source is nil")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = defaultLanguage
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{cfg: cfg, base: base, source: source, logger: logger}, nil
}

// NewHandle creates an idle handle bound to cb. Each session dials its own
// connection.
func (f *Factory) NewHandle(cb recognizer.Callback) (recognizer.Handle, error) {
	if cb == nil {
		return nil, errors.New("websocket callback is nil")
	}
	return newHandle(f, cb), nil
}

// listenURL builds the session URL for the given session options.
func (f *Factory) listenURL(session recognizer.SessionConfig) string {
	u := *f.base
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(audio.SampleRateHz))
	q.Set("channels", "1")
	q.Set("language", f.cfg.LanguageCode)
	if model := strings.TrimSpace(f.cfg.Model); model != "" {
		q.Set("model", model)
	}
	q.Set("punctuate", strconv.FormatBool(f.cfg.AutomaticPunctuation))
	q.Set("interim_results", strconv.FormatBool(session.PartialResults))
	// SpeechStarted messages stop the no-speech timer when interim results are off.
	q.Set("vad_events", "true")
	if f.cfg.MaxAlternatives > 1 {
		q.Set("alternatives", strconv.Itoa(f.cfg.MaxAlternatives))
	}
	for _, kw := range f.cfg.Keywords {
		word := strings.TrimSpace(kw.Keyword)
		if word == "" {
			continue
		}
		// Deepgram keyword format: word:boost.
		q.Add("keywords", fmt.Sprintf("%s:%g", word, kw.Boost))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (f *Factory) headers() http.Header {
	headers := http.Header{}
	headers.Set("User-Agent", version.UserAgent())
	if key := strings.TrimSpace(f.cfg.APIKey); key != "" {
		headers.Set("Authorization", "Token "+key)
	}
	return headers
}
