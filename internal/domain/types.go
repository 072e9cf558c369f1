package domain

// ConnectionStatus models the live session lifecycle.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "ai"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerAssistant
}

// TranscriptLine is one finalized utterance. Timestamp is unix milliseconds.
type TranscriptLine struct {
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
}

// MediaChunk is a base64 payload sent to the live session.
type MediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Transcription is a streamed transcript fragment.
type Transcription struct {
	Text string `json:"text"`
}

// LiveMessage is an inbound server event flattened from the provider wire format.
type LiveMessage struct {
	InputTranscription  *Transcription
	OutputTranscription *Transcription
	TurnComplete        bool
	Interrupted         bool
	// AudioData is base64 PCM from the first model turn part, if any.
	AudioData string
}

// Modality is a response modality requested from the live endpoint.
type Modality string

const (
	ModalityAudio Modality = "AUDIO"
)

// LiveConfig describes how a live session should be opened.
type LiveConfig struct {
	Model               string
	ResponseModalities  []Modality
	VoiceName           string
	SystemPrompt        string
	InputTranscription  bool
	OutputTranscription bool
}

// ErrorCode identifies non-fatal and fatal session errors.
type ErrorCode string

const (
	ErrorCodeStartup      ErrorCode = "startup"
	ErrorCodeDeviceAccess ErrorCode = "device_access"
	ErrorCodeConnection   ErrorCode = "connection"
	ErrorCodeAudioStream  ErrorCode = "audio_stream"
	ErrorCodePlayback     ErrorCode = "playback"
)

// Status summarizes the current runtime status.
type Status struct {
	State     ConnectionStatus `json:"state"`
	Message   string           `json:"message,omitempty"`
	Muted     bool             `json:"muted"`
	SessionID string           `json:"sessionId,omitempty"`
}
