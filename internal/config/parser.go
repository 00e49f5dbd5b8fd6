package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Parse reads JSONC configuration content layered over base.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}
	return parseJSONC(content, base)
}

type jsoncConfig struct {
	Backend    *string          `json:"backend"`
	GRPC       *jsoncGRPC       `json:"grpc"`
	WebSocket  *jsoncWebSocket  `json:"websocket"`
	Audio      *jsoncAudio      `json:"audio"`
	ASR        *jsoncASR        `json:"asr"`
	Recognizer *jsoncRecognizer `json:"recognizer"`
	Engine     *jsoncEngine     `json:"engine"`
	Metrics    *jsoncMetrics    `json:"metrics"`
	Vocab      *jsoncVocab      `json:"vocab"`
	Debug      *jsoncDebug      `json:"debug"`
}

type jsoncGRPC struct {
	Endpoint      *string `json:"endpoint"`
	DialTimeoutMS *int    `json:"dial_timeout_ms"`
}

type jsoncWebSocket struct {
	URL       *string `json:"url"`
	APIKeyEnv *string `json:"api_key_env"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncASR struct {
	LanguageCode         *string `json:"language_code"`
	Model                *string `json:"model"`
	AutomaticPunctuation *bool   `json:"automatic_punctuation"`
	MaxAlternatives      *int    `json:"max_alternatives"`
}

type jsoncRecognizer struct {
	NoSpeechTimeoutMS *int `json:"no_speech_timeout_ms"`
	MaxSessionMS      *int `json:"max_session_ms"`
}

type jsoncEngine struct {
	QueueSize *int    `json:"queue_size"`
	ResultCmd *string `json:"result_cmd"`
}

type jsoncMetrics struct {
	Listen *string `json:"listen"`
}

type jsoncVocab struct {
	Global     *jsoncStringList         `json:"global"`
	MaxPhrases *int                     `json:"max_phrases"`
	Sets       map[string]jsoncVocabSet `json:"sets"`
}

type jsoncVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type jsoncDebug struct {
	LogLevel *string `json:"log_level"`
	GRPCDump *bool   `json:"grpc_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return errors.New("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := cloneConfig(base)
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

// cloneConfig copies the reference-typed fields so parsing never mutates base.
func cloneConfig(base Config) Config {
	cfg := base
	cfg.Vocab.GlobalSets = append([]string(nil), base.Vocab.GlobalSets...)
	cfg.Vocab.Sets = make(map[string]VocabSet, len(base.Vocab.Sets))
	for name, set := range base.Vocab.Sets {
		cfg.Vocab.Sets[name] = set
	}
	return cfg
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if payload.Backend != nil {
		cfg.Backend = strings.ToLower(strings.TrimSpace(*payload.Backend))
	}

	if g := payload.GRPC; g != nil {
		setString(&cfg.GRPC.Endpoint, g.Endpoint)
		setInt(&cfg.GRPC.DialTimeoutMS, g.DialTimeoutMS)
	}

	if w := payload.WebSocket; w != nil {
		setString(&cfg.WebSocket.URL, w.URL)
		setString(&cfg.WebSocket.APIKeyEnv, w.APIKeyEnv)
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if a := payload.ASR; a != nil {
		setString(&cfg.ASR.LanguageCode, a.LanguageCode)
		setString(&cfg.ASR.Model, a.Model)
		setBool(&cfg.ASR.AutomaticPunctuation, a.AutomaticPunctuation)
		setInt(&cfg.ASR.MaxAlternatives, a.MaxAlternatives)
	}

	if r := payload.Recognizer; r != nil {
		setInt(&cfg.Recognizer.NoSpeechTimeoutMS, r.NoSpeechTimeoutMS)
		setInt(&cfg.Recognizer.MaxSessionMS, r.MaxSessionMS)
	}

	if e := payload.Engine; e != nil {
		setInt(&cfg.Engine.QueueSize, e.QueueSize)
		if e.ResultCmd != nil {
			raw := *e.ResultCmd
			argv, err := parseArgv(raw)
			if err != nil {
				return fmt.Errorf("invalid engine.result_cmd: %w", err)
			}
			cfg.Engine.ResultCmd = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if m := payload.Metrics; m != nil {
		setString(&cfg.Metrics.Listen, m.Listen)
	}

	if v := payload.Vocab; v != nil {
		if v.Global != nil {
			cfg.Vocab.GlobalSets = cfg.Vocab.GlobalSets[:0]
			for _, name := range *v.Global {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				cfg.Vocab.GlobalSets = append(cfg.Vocab.GlobalSets, name)
			}
		}
		setInt(&cfg.Vocab.MaxPhrases, v.MaxPhrases)
		for name, set := range v.Sets {
			trimmed := strings.TrimSpace(name)
			if trimmed == "" {
				return errors.New("vocab.sets contains an empty set name")
			}
			entry := VocabSet{Name: trimmed, Phrases: append([]string(nil), set.Phrases...)}
			if set.Boost != nil {
				entry.Boost = *set.Boost
			}
			cfg.Vocab.Sets[trimmed] = entry
		}
	}

	if d := payload.Debug; d != nil {
		setString(&cfg.Debug.LogLevel, d.LogLevel)
		setBool(&cfg.Debug.EnableGRPCDump, d.GRPCDump)
	}

	return nil
}
