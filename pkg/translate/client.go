package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/cropocr/pkg/services"
)

// DefaultURL is the translation endpoint used when none is configured.
const DefaultURL = "https://translator-backend-r9zp.onrender.com/translate/"

const serviceName = "translate"

// Request is the JSON body sent to the translation service.
type Request struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

// Client calls the translation service.
type Client struct {
	url  string
	http services.Doer
}

// New creates a client for cfg. An empty URL falls back to DefaultURL.
func New(cfg services.Config) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	return &Client{url: url, http: cfg.HTTPClient()}
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(d services.Doer) *Client {
	c.http = d
	return c
}

// Translate returns the translation of text into targetLang. A response
// without translatedText is a failure, not an empty translation.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	requestJSON, err := json.Marshal(Request{Text: text, TargetLang: targetLang})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(requestJSON))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("Requesting translation", "target_lang", targetLang, "chars", len(text))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", services.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Transport(serviceName, fmt.Errorf("failed to read response body: %w", err))
	}

	if !services.Succeeded(resp.StatusCode) {
		return "", services.Status(serviceName, resp.StatusCode, body)
	}

	var out struct {
		TranslatedText *string `json:"translatedText"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", services.Malformed(serviceName, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, services.TruncateBody(body)))
	}
	if out.TranslatedText == nil {
		return "", services.Malformed(serviceName, errors.New("response has no translatedText"))
	}

	return *out.TranslatedText, nil
}
