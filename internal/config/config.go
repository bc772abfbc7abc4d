// Package config loads service configuration from the environment,
// optionally seeded from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPPort         int           `yaml:"http_port"`
	BearerToken      string        `yaml:"bearer_token"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout"`

	// Filesystem layout
	DataDir string `yaml:"data_dir"`

	// Model backend settings
	ModelBackend string        `yaml:"model_backend"`
	ModelURL     string        `yaml:"model_url"`
	ModelCommand string        `yaml:"model_command"`
	ModelTimeout time.Duration `yaml:"model_timeout"`

	// Synthesis preset
	DefaultSEPath    string  `yaml:"default_se_path"`
	TTSSpeaker       string  `yaml:"tts_speaker"`
	TTSLanguage      string  `yaml:"tts_language"`
	TTSSpeed         float64 `yaml:"tts_speed"`
	WatermarkMessage string  `yaml:"watermark_message"`

	// Startup behavior
	WarmupAudio string `yaml:"warmup_audio"`

	// Reference normalization
	NormalizeReferences bool   `yaml:"normalize_references"`
	FFmpegPath          string `yaml:"ffmpeg_path"`

	// Artifact mirror
	NATSURL        string `yaml:"nats_url"`
	ArtifactBucket string `yaml:"artifact_bucket"`

	// Logging settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTPPort:         5000,
		MaxUploadBytes:   32 << 20,
		HTTPWriteTimeout: 0,

		DataDir: ".",

		ModelBackend: "http",
		ModelURL:     "http://127.0.0.1:8000",
		ModelTimeout: 5 * time.Minute,

		DefaultSEPath:    "OpenVoice/checkpoints/base_speakers/EN/en_default_se.pth",
		TTSSpeaker:       "default",
		TTSLanguage:      "English",
		TTSSpeed:         1.0,
		WatermarkMessage: "@MyShell",

		WarmupAudio: "OpenVoice/resources/demo_speaker0.mp3",

		FFmpegPath: "ffmpeg",

		ArtifactBucket: "VOICECLONE_OUTPUTS",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration. Values come from the defaults, then the
// YAML file at path (if path is non-empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	// HTTP settings
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.BearerToken = getEnvString("BEARER_TOKEN", c.BearerToken)
	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.HTTPWriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", c.HTTPWriteTimeout)

	c.DataDir = getEnvString("DATA_DIR", c.DataDir)

	// Model backend settings
	c.ModelBackend = getEnvString("MODEL_BACKEND", c.ModelBackend)
	c.ModelURL = getEnvString("MODEL_URL", c.ModelURL)
	c.ModelCommand = getEnvString("MODEL_COMMAND", c.ModelCommand)
	c.ModelTimeout = getEnvDuration("MODEL_TIMEOUT", c.ModelTimeout)

	// Synthesis preset
	c.DefaultSEPath = getEnvString("DEFAULT_SE_PATH", c.DefaultSEPath)
	c.TTSSpeaker = getEnvString("TTS_SPEAKER", c.TTSSpeaker)
	c.TTSLanguage = getEnvString("TTS_LANGUAGE", c.TTSLanguage)
	c.TTSSpeed = getEnvFloat("TTS_SPEED", c.TTSSpeed)
	c.WatermarkMessage = getEnvString("WATERMARK_MESSAGE", c.WatermarkMessage)

	// WARMUP_AUDIO may be set to an empty string to disable warm-up.
	if value, ok := os.LookupEnv("WARMUP_AUDIO"); ok {
		c.WarmupAudio = value
	}

	c.NormalizeReferences = getEnvBool("NORMALIZE_REFERENCES", c.NormalizeReferences)
	c.FFmpegPath = getEnvString("FFMPEG_PATH", c.FFmpegPath)

	c.NATSURL = getEnvString("NATS_URL", c.NATSURL)
	c.ArtifactBucket = getEnvString("ARTIFACT_BUCKET", c.ArtifactBucket)

	// Logging settings
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// MirrorEnabled reports whether finished artifacts are copied to NATS.
func (c *Config) MirrorEnabled() bool {
	return c.NATSURL != ""
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxUploadBytes < 1 {
		return errors.New("MAX_UPLOAD_BYTES must be at least 1")
	}

	if c.HTTPWriteTimeout < 0 {
		return errors.New("HTTP_WRITE_TIMEOUT must be non-negative")
	}

	if c.DataDir == "" {
		return errors.New("DATA_DIR cannot be empty")
	}

	switch c.ModelBackend {
	case "http":
		if c.ModelURL == "" {
			return errors.New("MODEL_URL is required for the http backend")
		}
	case "exec":
		if c.ModelCommand == "" {
			return errors.New("MODEL_COMMAND is required for the exec backend")
		}
	default:
		return errors.New("MODEL_BACKEND must be one of: http, exec")
	}

	if c.ModelTimeout < 0 {
		return errors.New("MODEL_TIMEOUT must be non-negative")
	}

	if c.DefaultSEPath == "" {
		return errors.New("DEFAULT_SE_PATH cannot be empty")
	}

	if c.TTSSpeed <= 0 {
		return errors.New("TTS_SPEED must be positive")
	}

	if c.MirrorEnabled() && c.ArtifactBucket == "" {
		return errors.New("ARTIFACT_BUCKET cannot be empty when NATS_URL is set")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as a float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
