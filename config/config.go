package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents application configuration. Values come from an optional
// YAML file, then .env, then the process environment, later sources winning.
type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`
	Port     string `yaml:"port"`
	WorkDir  string `yaml:"work_dir"`

	MaxUploadBytes int64 `yaml:"-"`
	MaxUploadMB    int64 `yaml:"max_upload_mb"`

	ImageMagickBin string   `yaml:"imagemagick_bin"`
	FFmpegBin      string   `yaml:"ffmpeg_bin"`
	SofficeBin     string   `yaml:"soffice_bin"`
	OCRLanguages   []string `yaml:"ocr_languages"`
	OCRDPI         int      `yaml:"ocr_dpi"`

	ImageTimeout    time.Duration `yaml:"-"`
	MediaTimeout    time.Duration `yaml:"-"`
	DocumentTimeout time.Duration `yaml:"-"`
	OCRTimeout      time.Duration `yaml:"-"`

	ArtifactTTL   time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	HTTPReadTimeout  time.Duration `yaml:"-"`
	HTTPWriteTimeout time.Duration `yaml:"-"`
	HTTPIdleTimeout  time.Duration `yaml:"-"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	Timeouts fileTimeouts `yaml:"timeouts"`
}

// fileTimeouts holds the second-based durations accepted in the YAML file.
type fileTimeouts struct {
	Image    int `yaml:"image_seconds"`
	Media    int `yaml:"media_seconds"`
	Document int `yaml:"document_seconds"`
	OCR      int `yaml:"ocr_seconds"`
}

func defaults() *Config {
	return &Config{
		AppEnv:         "development",
		LogLevel:       "",
		Port:           "8080",
		WorkDir:        "tmp",
		MaxUploadMB:    20,
		ImageMagickBin: "convert",
		FFmpegBin:      "ffmpeg",
		OCRLanguages:   []string{"tur", "eng"},
		OCRDPI:         300,
		Timeouts: fileTimeouts{
			Image:    60,
			Media:    30 * 60,
			Document: 120,
			OCR:      5 * 60,
		},
	}
}

// Load reads configuration. path may be empty, in which case no YAML file is
// consulted.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.WorkDir = getEnv("WORK_DIR", cfg.WorkDir)
	cfg.MaxUploadMB = int64(getEnvInt("MAX_UPLOAD_MB", int(cfg.MaxUploadMB)))
	cfg.ImageMagickBin = getEnv("IMAGEMAGICK_BIN", cfg.ImageMagickBin)
	cfg.FFmpegBin = getEnv("FFMPEG_BIN", cfg.FFmpegBin)
	cfg.SofficeBin = getEnv("SOFFICE_BIN", cfg.SofficeBin)
	cfg.OCRDPI = getEnvInt("OCR_DPI", cfg.OCRDPI)
	if v := getEnv("OCR_LANGUAGES", ""); v != "" {
		cfg.OCRLanguages = splitList(v, "+,")
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.CORSAllowedOrigins = splitList(v, ",")
	}

	cfg.ImageTimeout = seconds("IMAGE_TIMEOUT_SECONDS", cfg.Timeouts.Image)
	cfg.MediaTimeout = seconds("MEDIA_TIMEOUT_SECONDS", cfg.Timeouts.Media)
	cfg.DocumentTimeout = seconds("DOCUMENT_TIMEOUT_SECONDS", cfg.Timeouts.Document)
	cfg.OCRTimeout = seconds("OCR_TIMEOUT_SECONDS", cfg.Timeouts.OCR)
	cfg.ArtifactTTL = time.Minute * time.Duration(getEnvInt("ARTIFACT_TTL_MINUTES", 15))
	cfg.SweepInterval = seconds("SWEEP_INTERVAL_SECONDS", 60)
	cfg.HTTPReadTimeout = seconds("HTTP_READ_TIMEOUT_SECONDS", 60)
	cfg.HTTPWriteTimeout = seconds("HTTP_WRITE_TIMEOUT_SECONDS", 30*60)
	cfg.HTTPIdleTimeout = seconds("HTTP_IDLE_TIMEOUT_SECONDS", 60)

	cfg.MaxUploadBytes = cfg.MaxUploadMB * 1024 * 1024

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	absWorkDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	cfg.WorkDir = absWorkDir

	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.WorkDir) == "" {
		return errors.New("WORK_DIR is required")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.OCRDPI <= 0 {
		return fmt.Errorf("OCR_DPI must be positive, got %d", c.OCRDPI)
	}
	if len(c.OCRLanguages) == 0 {
		return errors.New("OCR_LANGUAGES is required")
	}
	return nil
}

// OCRLanguageSpec renders the languages the way tesseract expects them, e.g. "tur+eng".
func (c *Config) OCRLanguageSpec() string {
	return strings.Join(c.OCRLanguages, "+")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func seconds(key string, fallback int) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, fallback))
}

func splitList(v, seps string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return strings.ContainsRune(seps, r) })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
