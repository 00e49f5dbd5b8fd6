// Package config resolves, parses, validates, and defaults hark configuration.
package config

import "time"

const (
	BackendGRPC      = "grpc"
	BackendWebSocket = "websocket"
)

// Config is the fully materialized runtime configuration.
type Config struct {
	Backend    string
	GRPC       GRPCConfig
	WebSocket  WebSocketConfig
	Audio      AudioConfig
	ASR        ASRConfig
	Recognizer RecognizerConfig
	Engine     EngineConfig
	Metrics    MetricsConfig
	Vocab      VocabConfig
	Debug      DebugConfig
}

// GRPCConfig addresses a Cloud Speech v1 compatible endpoint.
type GRPCConfig struct {
	Endpoint      string
	DialTimeoutMS int
}

// DialTimeout returns the readiness and stream-open bound.
func (c GRPCConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

// WebSocketConfig addresses a Deepgram-style listen endpoint.
type WebSocketConfig struct {
	URL       string
	APIKeyEnv string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// ASRConfig controls request-level recognition hints.
type ASRConfig struct {
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	MaxAlternatives      int
}

// RecognizerConfig bounds one listening session. Zero disables a bound.
type RecognizerConfig struct {
	NoSpeechTimeoutMS int
	MaxSessionMS      int
}

func (c RecognizerConfig) NoSpeechTimeout() time.Duration {
	return time.Duration(c.NoSpeechTimeoutMS) * time.Millisecond
}

func (c RecognizerConfig) MaxSession() time.Duration {
	return time.Duration(c.MaxSessionMS) * time.Millisecond
}

// EngineConfig controls how recognized commands reach the game engine.
type EngineConfig struct {
	QueueSize int
	ResultCmd CommandConfig
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// DebugConfig controls log verbosity and optional debug artifacts.
type DebugConfig struct {
	LogLevel       string
	EnableGRPCDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to recognizer backends.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
