package camera

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/lehigh-university-libraries/cropocr/pkg/services"
)

// DefaultURL starts the server-side live camera session.
const DefaultURL = "http://localhost:8000/start-camera"

const serviceName = "camera"

// StartedMessage is shown after a successful trigger.
const StartedMessage = "Live camera started. Check the camera window on the OCR server; press 'q' there to stop."

// Trigger asks the backend to open its live camera translation window.
type Trigger struct {
	url  string
	http services.Doer
}

// New creates a trigger for cfg. An empty URL falls back to DefaultURL.
func New(cfg services.Config) *Trigger {
	u := cfg.URL
	if u == "" {
		u = DefaultURL
	}
	return &Trigger{url: u, http: cfg.HTTPClient()}
}

// WithHTTPClient replaces the HTTP client.
func (t *Trigger) WithHTTPClient(d services.Doer) *Trigger {
	t.http = d
	return t
}

// Start sends GET ?lang=<code>. Nothing is retained; the caller only learns
// whether the request succeeded.
func (t *Trigger) Start(ctx context.Context, lang string) error {
	u, err := url.Parse(t.url)
	if err != nil {
		return fmt.Errorf("invalid camera URL: %w", err)
	}
	q := u.Query()
	q.Set("lang", lang)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	slog.Debug("Starting live camera", "lang", lang)

	resp, err := t.http.Do(req)
	if err != nil {
		return services.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !services.Succeeded(resp.StatusCode) {
		return services.Status(serviceName, resp.StatusCode, body)
	}
	return nil
}
