package bootstrap

import (
	"visionary/internal/audio"
	"visionary/internal/config"
	"visionary/internal/domain"
	"visionary/internal/logging"
	"visionary/internal/ports"
	"visionary/internal/providers/gemini"
	"visionary/internal/screen"
	"visionary/internal/transcript"
	"visionary/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime. cfgFile may
// be empty to use the default search path.
func Build(eventSink ports.EventSink, cfgFile string) (Services, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return Services{}, err
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, nil)

	store, err := transcriptStore(cfg.Transcript)
	if err != nil {
		return Services{}, err
	}

	controller := usecase.NewSessionController(
		screen.NewFFMPEGDisplay(screen.Config{
			Command:     cfg.Screen.FFMPEGCommand,
			InputFormat: cfg.Screen.InputFormat,
			InputDevice: cfg.Screen.InputDevice,
		}),
		audio.NewFFMPEGMicrophone(audio.MicrophoneConfig{
			Command:     cfg.Audio.FFMPEGCommand,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		}),
		audio.NewPlayerDevices(audio.PlayerConfig{Command: cfg.Audio.PlayerCommand}),
		gemini.NewProvider(gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			APIBaseURL: cfg.Gemini.APIBaseURL,
		}),
		store,
		eventSink,
		SessionConfig(cfg),
	)

	return Services{Controller: controller, Config: cfg}, nil
}

// SessionConfig maps loaded configuration onto controller settings.
func SessionConfig(cfg config.Config) usecase.Config {
	return usecase.Config{
		Live: domain.LiveConfig{
			Model:               cfg.Gemini.Model,
			ResponseModalities:  []domain.Modality{domain.ModalityAudio},
			VoiceName:           cfg.Gemini.Voice,
			SystemPrompt:        cfg.Gemini.SystemPrompt,
			InputTranscription:  true,
			OutputTranscription: true,
		},
		CaptureRate:    cfg.Audio.CaptureRate,
		PlaybackRate:   cfg.Audio.PlaybackRate,
		FrameInterval:  cfg.Session.FrameInterval,
		JPEGQuality:    cfg.Session.JPEGQuality,
		DisplayLimit:   cfg.Session.DisplayLimit,
		ChunkSamples:   cfg.Session.ChunkSamples,
		PersistTimeout: cfg.Session.PersistTimeout,
	}
}

// transcriptStore returns nil when no endpoint is configured, which disables
// persistence.
func transcriptStore(cfg config.TranscriptConfig) (ports.TranscriptStore, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	store, err := transcript.NewHTTPStore(cfg.Endpoint, cfg.APISecret, nil)
	if err != nil {
		return nil, err
	}
	return store, nil
}
