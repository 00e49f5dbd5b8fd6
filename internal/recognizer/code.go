package recognizer

import "fmt"

// Code is the integer error taxonomy surfaced through Listener.OnError.
// Values match the platform speech recognizer codes engines already switch on.
type Code int

const (
	CodeNetworkTimeout          Code = 1
	CodeNetwork                 Code = 2
	CodeAudio                   Code = 3
	CodeServer                  Code = 4
	CodeClient                  Code = 5
	CodeSpeechTimeout           Code = 6
	CodeNoMatch                 Code = 7
	CodeRecognizerBusy          Code = 8
	CodeInsufficientPermissions Code = 9
)

var codeNames = map[Code]string{
	CodeNetworkTimeout:          "network_timeout",
	CodeNetwork:                 "network",
	CodeAudio:                   "audio",
	CodeServer:                  "server",
	CodeClient:                  "client",
	CodeSpeechTimeout:           "speech_timeout",
	CodeNoMatch:                 "no_match",
	CodeRecognizerBusy:          "recognizer_busy",
	CodeInsufficientPermissions: "insufficient_permissions",
}

// String returns the snake_case name of the code, or unknown(N).
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(c))
}

// IsSpeechTimeout reports whether the session ended because no speech was heard.
// It is the only code that triggers automatic handle replacement.
func (c Code) IsSpeechTimeout() bool {
	return c == CodeSpeechTimeout
}
