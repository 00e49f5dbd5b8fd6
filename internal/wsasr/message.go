package wsasr

import (
	"encoding/json"
	"strings"
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

type listenAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// listenMessage is the subset of server messages the handle reads. The
// channel field is an object on Results and an index array on SpeechStarted.
type listenMessage struct {
	Type        string          `json:"type"`
	IsFinal     bool            `json:"is_final"`
	SpeechFinal bool            `json:"speech_final"`
	Channel     json.RawMessage `json:"channel"`
	Description string          `json:"description"`
	Message     string          `json:"message"`

	alternatives []listenAlternative
}

func parseMessage(data []byte) (listenMessage, bool) {
	var msg listenMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return listenMessage{}, false
	}
	if msg.Type == "Results" && len(msg.Channel) > 0 {
		var channel struct {
			Alternatives []listenAlternative `json:"alternatives"`
		}
		if err := json.Unmarshal(msg.Channel, &channel); err != nil {
			return listenMessage{}, false
		}
		msg.alternatives = channel.Alternatives
	}
	return msg, msg.Type != ""
}

// transcripts returns the alternatives in server order, unmodified.
func (m listenMessage) transcripts() []string {
	out := make([]string, 0, len(m.alternatives))
	for _, alt := range m.alternatives {
		out = append(out, alt.Transcript)
	}
	return out
}

// hasText reports whether the top alternative carries a transcript.
func (m listenMessage) hasText() bool {
	alts := m.alternatives
	return len(alts) > 0 && strings.TrimSpace(alts[0].Transcript) != ""
}
