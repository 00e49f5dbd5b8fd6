package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rbright/hark/internal/logging"
)

const maxAlternativesLimit = 30

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Backend {
	case BackendGRPC:
		if strings.TrimSpace(cfg.GRPC.Endpoint) == "" {
			return nil, errors.New("grpc.endpoint must not be empty when backend=grpc")
		}
	case BackendWebSocket:
		if err := validateWebSocketURL(cfg.WebSocket.URL); err != nil {
			return nil, err
		}
		if strings.TrimSpace(cfg.WebSocket.APIKeyEnv) == "" {
			warnings = append(warnings, Warning{Message: "websocket.api_key_env is empty; connecting without credentials"})
		}
	default:
		return nil, fmt.Errorf("backend must be one of: %s, %s", BackendGRPC, BackendWebSocket)
	}

	if cfg.GRPC.DialTimeoutMS <= 0 {
		return nil, errors.New("grpc.dial_timeout_ms must be > 0")
	}
	if strings.TrimSpace(cfg.ASR.LanguageCode) == "" {
		return nil, errors.New("asr.language_code must not be empty")
	}
	if cfg.ASR.MaxAlternatives < 1 || cfg.ASR.MaxAlternatives > maxAlternativesLimit {
		return nil, fmt.Errorf("asr.max_alternatives must be between 1 and %d", maxAlternativesLimit)
	}
	if cfg.Recognizer.NoSpeechTimeoutMS < 0 {
		return nil, errors.New("recognizer.no_speech_timeout_ms must be >= 0")
	}
	if cfg.Recognizer.MaxSessionMS < 0 {
		return nil, errors.New("recognizer.max_session_ms must be >= 0")
	}
	if cfg.Recognizer.MaxSessionMS > 0 && cfg.Recognizer.NoSpeechTimeoutMS >= cfg.Recognizer.MaxSessionMS {
		warnings = append(warnings, Warning{Message: "recognizer.no_speech_timeout_ms >= recognizer.max_session_ms; silent sessions will end as network_timeout"})
	}
	if cfg.Engine.QueueSize <= 0 {
		return nil, errors.New("engine.queue_size must be > 0")
	}
	if cfg.Engine.ResultCmd.Raw != "" && len(cfg.Engine.ResultCmd.Argv) == 0 {
		return nil, errors.New("engine.result_cmd is configured but empty")
	}
	if _, err := logging.ParseLevel(cfg.Debug.LogLevel); err != nil {
		return nil, fmt.Errorf("debug.log_level: %w", err)
	}
	if cfg.Debug.EnableGRPCDump && cfg.Backend != BackendGRPC {
		warnings = append(warnings, Warning{Message: "debug.grpc_dump has no effect when backend=websocket"})
	}
	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, errors.New("vocab.max_phrases must be > 0")
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

func validateWebSocketURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("websocket.url must not be empty when backend=websocket")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("websocket.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("websocket.url must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("websocket.url must include a host")
	}
	return nil
}
