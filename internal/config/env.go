package config

import (
	"strconv"
	"strings"
)

// envOverride maps one HARK_* variable onto a config field.
type envOverride struct {
	name  string
	apply func(cfg *Config, value string) bool
}

var envOverrides = []envOverride{
	{name: "HARK_BACKEND", apply: func(cfg *Config, v string) bool {
		cfg.Backend = strings.ToLower(v)
		return true
	}},
	{name: "HARK_GRPC_ENDPOINT", apply: func(cfg *Config, v string) bool {
		cfg.GRPC.Endpoint = v
		return true
	}},
	{name: "HARK_WEBSOCKET_URL", apply: func(cfg *Config, v string) bool {
		cfg.WebSocket.URL = v
		return true
	}},
	{name: "HARK_LANGUAGE_CODE", apply: func(cfg *Config, v string) bool {
		cfg.ASR.LanguageCode = v
		return true
	}},
	{name: "HARK_METRICS_LISTEN", apply: func(cfg *Config, v string) bool {
		cfg.Metrics.Listen = v
		return true
	}},
	{name: "HARK_LOG_LEVEL", apply: func(cfg *Config, v string) bool {
		cfg.Debug.LogLevel = v
		return true
	}},
	{name: "HARK_QUEUE_SIZE", apply: func(cfg *Config, v string) bool {
		n, err := strconv.Atoi(v)
		if err != nil {
			return false
		}
		cfg.Engine.QueueSize = n
		return true
	}},
}

// applyEnv layers non-empty HARK_* variables onto cfg and returns the names
// it applied. Values that fail to parse are skipped.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) []string {
	var applied []string
	for _, o := range envOverrides {
		raw, ok := lookup(o.name)
		if !ok {
			continue
		}
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if o.apply(cfg, value) {
			applied = append(applied, o.name)
		}
	}
	return applied
}
