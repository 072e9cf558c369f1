package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "VISIONARY"

// DefaultSystemPrompt describes the assistant's visual-guidance role.
const DefaultSystemPrompt = "You are a real-time visual assistant. You can see the user's screen through captured frames. " +
	"You hear the user's voice. Analyze the UI, identify buttons, forms, layouts, and errors. " +
	"Explain what you see and provide verbal step-by-step guidance to help the user navigate or fix issues. " +
	"Be natural, concise, and helpful."

// Config stores runtime configuration for the desktop app and the transcript API.
type Config struct {
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Screen     ScreenConfig     `mapstructure:"screen"`
	Session    SessionConfig    `mapstructure:"session"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api_key"`
	APIBaseURL   string `mapstructure:"api_base"`
	Model        string `mapstructure:"model"`
	Voice        string `mapstructure:"voice"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type AudioConfig struct {
	FFMPEGCommand string `mapstructure:"ffmpeg_command"`
	PlayerCommand string `mapstructure:"player_command"`
	InputFormat   string `mapstructure:"input_format"`
	InputDevice   string `mapstructure:"input_device"`
	CaptureRate   int    `mapstructure:"capture_rate"`
	PlaybackRate  int    `mapstructure:"playback_rate"`
}

type ScreenConfig struct {
	FFMPEGCommand string `mapstructure:"ffmpeg_command"`
	InputFormat   string `mapstructure:"input_format"`
	InputDevice   string `mapstructure:"input_device"`
}

type SessionConfig struct {
	FrameInterval  time.Duration `mapstructure:"frame_interval"`
	JPEGQuality    float64       `mapstructure:"jpeg_quality"`
	DisplayLimit   int           `mapstructure:"display_limit"`
	ChunkSamples   int           `mapstructure:"chunk_samples"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

type TranscriptConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	APISecret string `mapstructure:"api_secret"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	APISecret    string `mapstructure:"api_secret"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

type StoreConfig struct {
	Backend       string      `mapstructure:"backend"`
	PublicBaseURL string      `mapstructure:"public_base_url"`
	Local         LocalStore  `mapstructure:"local"`
	S3            S3Store     `mapstructure:"s3"`
	GCS           GCSStore    `mapstructure:"gcs"`
	Azure         AzureStore  `mapstructure:"azure"`
	B2            B2Store     `mapstructure:"b2"`
	SQLite        SQLiteStore `mapstructure:"sqlite"`
}

type LocalStore struct {
	Path string `mapstructure:"path"`
}

type S3Store struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

type GCSStore struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
}

type AzureStore struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	ServiceURL  string `mapstructure:"service_url"`
	Container   string `mapstructure:"container"`
}

type B2Store struct {
	AccountID string `mapstructure:"account_id"`
	AppKey    string `mapstructure:"app_key"`
	Bucket    string `mapstructure:"bucket"`
	APIBase   string `mapstructure:"api_base"`
}

type SQLiteStore struct {
	Path string `mapstructure:"path"`
}

// Load resolves configuration from an optional YAML file, VISIONARY_*
// environment variables and defaults. cfgFile may be empty.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("gemini.api_key", envPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("visionary")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	normalize(&cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.api_base", "wss://generativelanguage.googleapis.com")
	v.SetDefault("gemini.model", "gemini-2.5-flash-native-audio-preview-12-2025")
	v.SetDefault("gemini.voice", "Zephyr")
	v.SetDefault("gemini.system_prompt", DefaultSystemPrompt)

	v.SetDefault("audio.ffmpeg_command", "ffmpeg")
	v.SetDefault("audio.player_command", "ffplay")
	v.SetDefault("audio.input_format", defaultAudioInputFormat())
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.capture_rate", 16000)
	v.SetDefault("audio.playback_rate", 24000)

	v.SetDefault("screen.ffmpeg_command", "ffmpeg")
	v.SetDefault("screen.input_format", "")
	v.SetDefault("screen.input_device", "")

	v.SetDefault("session.frame_interval", time.Second)
	v.SetDefault("session.jpeg_quality", 0.6)
	v.SetDefault("session.display_limit", 30)
	v.SetDefault("session.chunk_samples", 4096)
	v.SetDefault("session.persist_timeout", 10*time.Second)

	v.SetDefault("transcript.endpoint", "http://localhost:8080/api/save-transcript")
	v.SetDefault("transcript.api_secret", "")

	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_secret", "")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("store.backend", "local")
	v.SetDefault("store.public_base_url", "")
	v.SetDefault("store.local.path", "transcripts-data")
	v.SetDefault("store.s3.bucket", "")
	v.SetDefault("store.s3.region", "")
	v.SetDefault("store.s3.endpoint", "")
	v.SetDefault("store.s3.access_key_id", "")
	v.SetDefault("store.s3.secret_access_key", "")
	v.SetDefault("store.s3.session_token", "")
	v.SetDefault("store.gcs.bucket", "")
	v.SetDefault("store.gcs.credentials_file", "")
	v.SetDefault("store.gcs.endpoint", "")
	v.SetDefault("store.azure.account_name", "")
	v.SetDefault("store.azure.account_key", "")
	v.SetDefault("store.azure.service_url", "")
	v.SetDefault("store.azure.container", "")
	v.SetDefault("store.b2.account_id", "")
	v.SetDefault("store.b2.app_key", "")
	v.SetDefault("store.b2.bucket", "")
	v.SetDefault("store.b2.api_base", "")
	v.SetDefault("store.sqlite.path", "transcripts.sqlite")
}

func normalize(cfg *Config) {
	cfg.Gemini.APIKey = strings.TrimSpace(cfg.Gemini.APIKey)
	if strings.TrimSpace(cfg.Gemini.Voice) == "" {
		cfg.Gemini.Voice = "Zephyr"
	}
	if strings.TrimSpace(cfg.Gemini.SystemPrompt) == "" {
		cfg.Gemini.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Audio.CaptureRate <= 0 {
		cfg.Audio.CaptureRate = 16000
	}
	if cfg.Audio.PlaybackRate <= 0 {
		cfg.Audio.PlaybackRate = 24000
	}
	if cfg.Session.FrameInterval <= 0 {
		cfg.Session.FrameInterval = time.Second
	}
	if cfg.Session.JPEGQuality <= 0 || cfg.Session.JPEGQuality > 1 {
		cfg.Session.JPEGQuality = 0.6
	}
	cfg.Session.DisplayLimit = ClampDisplayLimit(cfg.Session.DisplayLimit)
	if cfg.Session.ChunkSamples < 256 {
		cfg.Session.ChunkSamples = 4096
	}
	if cfg.Session.PersistTimeout <= 0 {
		cfg.Session.PersistTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "local"
	}
}

// ClampDisplayLimit keeps the transcript display cap within 20..30.
func ClampDisplayLimit(limit int) int {
	if limit <= 0 {
		return 30
	}
	if limit < 20 {
		return 20
	}
	if limit > 30 {
		return 30
	}
	return limit
}

func defaultAudioInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "visionary")
}
