package speechgrpc

import (
	"strings"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/recognizer"
)

// configRequest builds the first message of a session. Single-utterance mode
// makes the server close the recognition after one command.
func configRequest(cfg Config, session recognizer.SessionConfig) *speechpb.StreamingRecognizeRequest {
	recognition := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            audio.SampleRateHz,
		AudioChannelCount:          1,
		LanguageCode:               cfg.LanguageCode,
		MaxAlternatives:            cfg.MaxAlternatives,
		EnableAutomaticPunctuation: cfg.AutomaticPunctuation,
		Model:                      strings.TrimSpace(cfg.Model),
	}

	for _, phrase := range cfg.SpeechPhrases {
		text := strings.TrimSpace(phrase.Phrase)
		if text == "" {
			continue
		}
		recognition.SpeechContexts = append(recognition.SpeechContexts, &speechpb.SpeechContext{
			Phrases: []string{text},
			Boost:   phrase.Boost,
		})
	}

	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:                    recognition,
				SingleUtterance:           true,
				InterimResults:            session.PartialResults,
				EnableVoiceActivityEvents: true,
			},
		},
	}
}

func audioRequest(chunk []byte) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
	}
}

// candidatesFrom returns the alternatives of the first final result whose top
// alternative has text. Alternatives keep their server order and wording.
func candidatesFrom(resp *speechpb.StreamingRecognizeResponse) ([]string, bool) {
	for _, result := range resp.GetResults() {
		if !result.GetIsFinal() {
			continue
		}
		alts := result.GetAlternatives()
		if len(alts) == 0 || strings.TrimSpace(alts[0].GetTranscript()) == "" {
			continue
		}
		candidates := make([]string, 0, len(alts))
		for _, alt := range alts {
			candidates = append(candidates, alt.GetTranscript())
		}
		return candidates, true
	}
	return nil, false
}

// heardSpeech reports whether a response shows the user started speaking:
// transcript text, a voice-activity start, or the server closing the utterance.
func heardSpeech(resp *speechpb.StreamingRecognizeResponse) bool {
	switch resp.GetSpeechEventType() {
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_BEGIN,
		speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE:
		return true
	}
	for _, result := range resp.GetResults() {
		for _, alt := range result.GetAlternatives() {
			if strings.TrimSpace(alt.GetTranscript()) != "" {
				return true
			}
		}
	}
	return false
}
