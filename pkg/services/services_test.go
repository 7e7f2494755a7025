package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		maxLen []int
		want   string
	}{
		{"short body", "ok", nil, "ok"},
		{"custom limit", "abcdef", []int{3}, "abc... (truncated)"},
		{"non-positive limit uses default", "abc", []int{0}, "abc"},
		{"default limit", strings.Repeat("x", 501), nil, strings.Repeat("x", 500) + "... (truncated)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateBody([]byte(tt.body), tt.maxLen...); got != tt.want {
				t.Errorf("TruncateBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_HTTPClient(t *testing.T) {
	if got := (Config{}).HTTPClient().Timeout; got != DefaultTimeout {
		t.Errorf("default timeout: got %v, want %v", got, DefaultTimeout)
	}
	if got := (Config{Timeout: 5 * time.Second}).HTTPClient().Timeout; got != 5*time.Second {
		t.Errorf("timeout: got %v, want 5s", got)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
		contains string
	}{
		{"transport", Transport("ocr", errors.New("connection refused")), ErrTransport, KindTransport, "connection refused"},
		{"status", Status("ocr", 500, []byte("boom")), ErrStatus, KindStatus, "ocr API error: 500 - boom"},
		{"malformed", Malformed("translate", errors.New("missing translatedText")), ErrMalformed, KindMalformed, "malformed response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("call failed: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", wrapped)
			}
			if KindOf(wrapped) != tt.kind {
				t.Errorf("KindOf() = %v, want %v", KindOf(wrapped), tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want it to contain %q", tt.err.Error(), tt.contains)
			}
		})
	}

	if errors.Is(Status("ocr", 404, nil), ErrTransport) {
		t.Error("status error should not match transport sentinel")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("plain errors have no kind")
	}
}

func TestSucceeded(t *testing.T) {
	for code, want := range map[int]bool{200: true, 201: true, 299: true, 199: false, 301: false, 404: false, 500: false} {
		if got := Succeeded(code); got != want {
			t.Errorf("Succeeded(%d) = %v, want %v", code, got, want)
		}
	}
}
