package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/lehigh-university-libraries/cropocr/pkg/services"
)

const (
	// DefaultURL is the OCR endpoint used when none is configured.
	DefaultURL = "http://localhost:8000/ocr/"
	// FieldName is the multipart field carrying the image.
	FieldName = "file"

	serviceName = "ocr"
)

// BoxID accepts numeric or string ids from the service.
type BoxID string

func (id *BoxID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = BoxID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("box id must be a string or number: %w", err)
	}
	*id = BoxID(n.String())
	return nil
}

// Box is one recognized text region in crop pixel coordinates.
// Missing coordinates decode as zero.
type Box struct {
	ID   BoxID   `json:"id" yaml:"id"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	W    float64 `json:"w" yaml:"w"`
	H    float64 `json:"h" yaml:"h"`
	Text string  `json:"text" yaml:"text"`
}

// Result is a successful OCR response.
type Result struct {
	Boxes []Box `json:"boxes" yaml:"boxes"`
}

// Text joins the recognized text of every box with a single space.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Boxes))
	for _, b := range r.Boxes {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, " ")
}

// Drawable returns the boxes that have both a width and a height.
func (r *Result) Drawable() []Box {
	if r == nil {
		return nil
	}
	var out []Box
	for _, b := range r.Boxes {
		if b.W != 0 && b.H != 0 {
			out = append(out, b)
		}
	}
	return out
}

// Client uploads cropped images to the OCR service.
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

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Recognize posts a PNG under the "file" form field. Failures are
// *services.Error values and are never retried.
func (c *Client) Recognize(ctx context.Context, png []byte) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="crop.png"`, FieldName))
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return nil, fmt.Errorf("failed to write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	slog.Debug("Submitting crop for OCR", "url", c.url, "bytes", len(png))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	// Read response body once for both parsing and error logging
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Transport(serviceName, fmt.Errorf("failed to read response body: %w", err))
	}

	if !services.Succeeded(resp.StatusCode) {
		return nil, services.Status(serviceName, resp.StatusCode, data)
	}

	var raw struct {
		Boxes *[]Box `json:"boxes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, services.Malformed(serviceName, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, services.TruncateBody(data)))
	}
	if raw.Boxes == nil {
		return nil, services.Malformed(serviceName, errors.New("response has no boxes"))
	}

	return &Result{Boxes: *raw.Boxes}, nil
}
