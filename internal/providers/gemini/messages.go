package gemini

import (
	"encoding/json"
	"strings"

	"visionary/internal/domain"
)

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []domain.Modality `json:"responseModalities"`
	SpeechConfig       *speechConfig     `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type content struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []domain.MediaChunk `json:"mediaChunks"`
}

type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete"`
	ServerContent *serverContent   `json:"serverContent"`
}

type serverContent struct {
	ModelTurn           *modelTurn            `json:"modelTurn"`
	TurnComplete        bool                  `json:"turnComplete"`
	Interrupted         bool                  `json:"interrupted"`
	InputTranscription  *domain.Transcription `json:"inputTranscription"`
	OutputTranscription *domain.Transcription `json:"outputTranscription"`
}

type modelTurn struct {
	Parts []modelPart `json:"parts"`
}

type modelPart struct {
	Text       string      `json:"text"`
	InlineData *inlineData `json:"inlineData"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func buildSetup(cfg domain.LiveConfig) setupMessage {
	model := strings.TrimSpace(cfg.Model)
	if model != "" && !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	modalities := cfg.ResponseModalities
	if len(modalities) == 0 {
		modalities = []domain.Modality{domain.ModalityAudio}
	}

	msg := setupMessage{Setup: setup{
		Model:            model,
		GenerationConfig: generationConfig{ResponseModalities: modalities},
	}}
	if voice := strings.TrimSpace(cfg.VoiceName); voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice}},
		}
	}
	if prompt := strings.TrimSpace(cfg.SystemPrompt); prompt != "" {
		msg.Setup.SystemInstruction = &content{Parts: []textPart{{Text: prompt}}}
	}
	if cfg.InputTranscription {
		msg.Setup.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		msg.Setup.OutputAudioTranscription = &struct{}{}
	}
	return msg
}

// decodeServerMessage flattens a server event. ok is false for events the
// session does not act on, such as setupComplete.
func decodeServerMessage(payload []byte) (domain.LiveMessage, bool, error) {
	var raw serverMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.LiveMessage{}, false, err
	}
	if raw.ServerContent == nil {
		return domain.LiveMessage{}, false, nil
	}

	sc := raw.ServerContent
	msg := domain.LiveMessage{
		InputTranscription:  sc.InputTranscription,
		OutputTranscription: sc.OutputTranscription,
		TurnComplete:        sc.TurnComplete,
		Interrupted:         sc.Interrupted,
	}
	if sc.ModelTurn != nil && len(sc.ModelTurn.Parts) > 0 && sc.ModelTurn.Parts[0].InlineData != nil {
		msg.AudioData = sc.ModelTurn.Parts[0].InlineData.Data
	}
	return msg, true, nil
}
