package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OCR_URL", "TRANSLATE_URL", "CAMERA_URL", "HTTP_TIMEOUT", "TARGET_LANG", "CAMERA_LANG"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cropocr.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OCRURL != ocr.DefaultURL {
		t.Errorf("OCRURL = %q", cfg.OCRURL)
	}
	if cfg.TargetLang != "ta" || cfg.CameraLang != "en" {
		t.Errorf("languages = %q/%q, want ta/en", cfg.TargetLang, cfg.CameraLang)
	}
	if cfg.Overlay.Color != "#ff4d4d" {
		t.Errorf("overlay color = %q", cfg.Overlay.Color)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
ocr_url: http://ocr.internal/ocr/
translate_url: http://translate.internal/translate/
timeout: 15s
target_lang: FR
overlay:
  color: "#00ff00"
  width: 3
`)
	t.Setenv("TRANSLATE_URL", "http://env.example/translate/")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OCRURL != "http://ocr.internal/ocr/" {
		t.Errorf("OCRURL = %q", cfg.OCRURL)
	}
	if cfg.TranslateURL != "http://env.example/translate/" {
		t.Errorf("environment should override file, got %q", cfg.TranslateURL)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.TargetLang != "fr" {
		t.Errorf("TargetLang should be canonicalized, got %q", cfg.TargetLang)
	}
	if cfg.Overlay.Color != "#00ff00" || cfg.Overlay.Width != 3 || cfg.Overlay.Radius != 4 {
		t.Errorf("Overlay = %+v", cfg.Overlay)
	}
	if got := cfg.OCR(); got.URL != cfg.OCRURL || got.Timeout != 15*time.Second {
		t.Errorf("OCR() = %+v", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name          string
		file          string
		env           map[string]string
		errorContains string
	}{
		{"missing file", "", nil, "failed to read config"},
		{"bad yaml", "ocr_url: [", nil, "failed to parse config"},
		{"bad language", "target_lang: xx", nil, "target_lang"},
		{"bad camera language", "", map[string]string{"CAMERA_LANG": "klingon"}, "camera_lang"},
		{"bad timeout env", "", map[string]string{"HTTP_TIMEOUT": "soon"}, "HTTP_TIMEOUT"},
		{"zero timeout", "timeout: 0s", nil, "timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			switch {
			case tt.name == "missing file":
				path = filepath.Join(t.TempDir(), "nope.yaml")
			case tt.file != "":
				path = writeConfig(t, tt.file)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error to contain %q, got: %v", tt.errorContains, err)
			}
		})
	}
}
