package config

import (
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/cropocr/pkg/camera"
	"github.com/lehigh-university-libraries/cropocr/pkg/languages"
	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
	"github.com/lehigh-university-libraries/cropocr/pkg/overlay"
	"github.com/lehigh-university-libraries/cropocr/pkg/services"
	"github.com/lehigh-university-libraries/cropocr/pkg/translate"
)

// Config holds the endpoints and defaults shared by every command.
type Config struct {
	OCRURL       string        `yaml:"ocr_url"`
	TranslateURL string        `yaml:"translate_url"`
	CameraURL    string        `yaml:"camera_url"`
	Timeout      time.Duration `yaml:"timeout"`
	TargetLang   string        `yaml:"target_lang"`
	CameraLang   string        `yaml:"camera_lang"`
	Overlay      overlay.Style `yaml:"overlay"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		OCRURL:       ocr.DefaultURL,
		TranslateURL: translate.DefaultURL,
		CameraURL:    camera.DefaultURL,
		Timeout:      services.DefaultTimeout,
		TargetLang:   languages.DefaultTranslation,
		CameraLang:   languages.DefaultCamera,
		Overlay:      overlay.DefaultStyle(),
	}
}

// Load starts from Default, applies the YAML file at path when path is
// non-empty, then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.OCRURL, "OCR_URL")
	setString(&c.TranslateURL, "TRANSLATE_URL")
	setString(&c.CameraURL, "CAMERA_URL")
	setString(&c.TargetLang, "TARGET_LANG")
	setString(&c.CameraLang, "CAMERA_LANG")

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		c.Timeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks language codes and the timeout.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	lang, err := languages.Validate(c.TargetLang)
	if err != nil {
		return fmt.Errorf("target_lang: %w", err)
	}
	c.TargetLang = lang
	lang, err = languages.Validate(c.CameraLang)
	if err != nil {
		return fmt.Errorf("camera_lang: %w", err)
	}
	c.CameraLang = lang
	return nil
}

// OCR returns the endpoint config for the OCR service.
func (c Config) OCR() services.Config {
	return services.Config{URL: c.OCRURL, Timeout: c.Timeout}
}

// Translate returns the endpoint config for the translation service.
func (c Config) Translate() services.Config {
	return services.Config{URL: c.TranslateURL, Timeout: c.Timeout}
}

// Camera returns the endpoint config for the live camera trigger.
func (c Config) Camera() services.Config {
	return services.Config{URL: c.CameraURL, Timeout: c.Timeout}
}
