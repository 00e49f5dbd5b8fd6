package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Backend: BackendGRPC,
		GRPC: GRPCConfig{
			Endpoint:      "127.0.0.1:50051",
			DialTimeoutMS: 3000,
		},
		WebSocket: WebSocketConfig{
			URL:       "wss://api.deepgram.com/v1/listen",
			APIKeyEnv: "DEEPGRAM_API_KEY",
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		ASR: ASRConfig{
			LanguageCode:    "en-US",
			MaxAlternatives: 1,
		},
		Recognizer: RecognizerConfig{
			NoSpeechTimeoutMS: 5000,
			MaxSessionMS:      15000,
		},
		Engine: EngineConfig{QueueSize: 64},
		Vocab: VocabConfig{
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
		Debug: DebugConfig{LogLevel: "info"},
	}
}
