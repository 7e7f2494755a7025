package session

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/cropocr/pkg/camera"
	"github.com/lehigh-university-libraries/cropocr/pkg/crop"
	"github.com/lehigh-university-libraries/cropocr/pkg/languages"
	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
	"github.com/lehigh-university-libraries/cropocr/pkg/services"
	"github.com/lehigh-university-libraries/cropocr/pkg/translate"
)

// Recognizer is satisfied by *ocr.Client.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (*ocr.Result, error)
}

// CameraStarter is satisfied by *camera.Trigger.
type CameraStarter interface {
	Start(ctx context.Context, lang string) error
}

// Notifier shows a one-shot message to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// ErrNotLoaded is returned by operations that need a source image.
var ErrNotLoaded = errors.New("no image loaded")

// Session is the state behind one crop-and-recognize view. All methods are
// safe for concurrent use.
type Session struct {
	recognizer Recognizer
	translator *translate.Latest
	camera     CameraStarter
	notifier   Notifier

	mu          sync.Mutex
	img         image.Image
	dims        crop.DisplayDimensions
	selection   crop.Region
	generation  uint64
	cropped     *crop.Buffer
	result      *ocr.Result
	text        string
	targetLang  string
	translation string
}

// New creates an empty session. notifier may be nil.
func New(r Recognizer, t translate.Translator, c CameraStarter, n Notifier) *Session {
	if n == nil {
		n = NotifierFunc(func(string) {})
	}
	return &Session{
		recognizer: r,
		translator: translate.NewLatest(t),
		camera:     c,
		notifier:   n,
		targetLang: languages.DefaultTranslation,
	}
}

// Load replaces the source image. The selection resets to the default region
// and any previous crop, recognition or translation is discarded; work still
// in flight for the old image is superseded.
func (s *Session) Load(img image.Image, renderedWidth, renderedHeight float64) crop.DisplayDimensions {
	s.translator.Invalidate()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.img = img
	s.dims = crop.NewDisplayDimensions(img, renderedWidth, renderedHeight)
	s.selection = crop.DefaultRegion(s.dims.RenderedWidth, s.dims.RenderedHeight)
	s.generation++
	s.clearResultLocked()

	slog.Debug("Image loaded", "natural_width", s.dims.NaturalWidth, "natural_height", s.dims.NaturalHeight,
		"rendered_width", s.dims.RenderedWidth, "rendered_height", s.dims.RenderedHeight)
	return s.dims
}

// Resize records a new rendered size for the loaded image. The selection
// keeps covering the same source pixels.
func (s *Session) Resize(renderedWidth, renderedHeight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return ErrNotLoaded
	}
	next := crop.NewDisplayDimensions(s.img, renderedWidth, renderedHeight)
	if s.dims.Ready() && next.Ready() {
		fx := next.RenderedWidth / s.dims.RenderedWidth
		fy := next.RenderedHeight / s.dims.RenderedHeight
		sel := s.selection
		s.selection = crop.Region{
			X:      sel.X * fx,
			Y:      sel.Y * fy,
			Width:  sel.Width * fx,
			Height: sel.Height * fy,
			Unit:   crop.Pixels,
		}.Clamp(next)
	}
	s.dims = next
	return nil
}

// Select stores the latest selection, normalized to pixels and clamped to the
// rendered image. It is not read until Commit.
func (s *Session) Select(r crop.Region) (crop.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return crop.Region{}, ErrNotLoaded
	}
	s.selection = r.Clamp(s.dims)
	return s.selection, nil
}

// Outcome describes what a Commit produced.
type Outcome struct {
	// Produced is false when the commit was a no-op.
	Produced bool
	// Superseded is true when a newer commit or image load overtook this one;
	// nothing was applied.
	Superseded bool
	Buffer     *crop.Buffer
	Result     *ocr.Result
	Text       string
}

type extraction struct {
	buf *crop.Buffer
	err error
}

// Commit crops the current selection and submits it for recognition. The
// upload starts only after the crop callback delivers the buffer. Without an
// image or with an unset selection it does nothing and returns no error.
func (s *Session) Commit(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	img, dims, sel := s.img, s.dims, s.selection
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	done := make(chan extraction, 1)
	if !crop.ExtractAsync(img, dims, sel, func(b *crop.Buffer, err error) {
		done <- extraction{b, err}
	}) {
		return Outcome{}, nil
	}

	var ex extraction
	select {
	case ex = <-done:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	if ex.err != nil {
		return s.fail(gen, Outcome{}, ex.err, "Error: "+ex.err.Error())
	}
	if ex.buf == nil {
		return Outcome{}, nil
	}
	if !s.current(gen) {
		return Outcome{Produced: true, Superseded: true, Buffer: ex.buf}, nil
	}

	res, err := s.recognizer.Recognize(ctx, ex.buf.Data)
	out := Outcome{Produced: true, Buffer: ex.buf}
	if err != nil {
		return s.fail(gen, out, err, ocrFailureMessage(err))
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		out.Superseded = true
		return out, nil
	}
	s.cropped = ex.buf
	s.result = res
	s.text = res.Text()
	s.translation = ""
	s.mu.Unlock()

	slog.Info("Crop recognized", "width", ex.buf.Width, "height", ex.buf.Height, "boxes", len(res.Boxes))

	out.Result = res
	out.Text = res.Text()
	return out, nil
}

// fail clears the recognition state and notifies once, unless gen was
// superseded in the meantime.
func (s *Session) fail(gen uint64, out Outcome, err error, msg string) (Outcome, error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		out.Superseded = true
		return out, nil
	}
	s.clearResultLocked()
	s.mu.Unlock()

	slog.Warn("Crop recognition failed", "err", err)
	s.notifier.Notify(msg)
	return out, err
}

func ocrFailureMessage(err error) string {
	if services.KindOf(err) == services.KindStatus {
		return "OCR failed"
	}
	return "Error: " + err.Error()
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

func (s *Session) clearResultLocked() {
	s.cropped = nil
	s.result = nil
	s.text = ""
	s.translation = ""
}

// Translate translates the recognized text into lang, or clears the
// translation when there is no text. A response overtaken by a newer request,
// or by a commit that replaced the text, returns translate.ErrSuperseded and
// changes nothing.
func (s *Session) Translate(ctx context.Context, lang string) (string, error) {
	code, err := languages.Validate(lang)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.targetLang = code
	text := s.text
	s.mu.Unlock()

	stale := false
	out, err := s.translator.Translate(ctx, text, code, func(out string, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.text != text {
			stale = true
			return
		}
		if err != nil {
			s.translation = ""
			return
		}
		s.translation = out
	})
	if stale {
		return "", translate.ErrSuperseded
	}
	if err != nil && !errors.Is(err, translate.ErrSuperseded) {
		slog.Warn("Translation failed", "lang", code, "err", err)
		s.notifier.Notify("Translation failed")
	}
	return out, err
}

// StartCamera asks the backend to start its live camera session. The outcome
// is only reported through the notifier.
func (s *Session) StartCamera(ctx context.Context, lang string) error {
	code, err := languages.Validate(lang)
	if err != nil {
		return err
	}
	if err := s.camera.Start(ctx, code); err != nil {
		s.notifier.Notify("Error starting camera: " + err.Error())
		return err
	}
	s.notifier.Notify(camera.StartedMessage)
	return nil
}

// StartCameraAsync validates lang and starts the camera in the background.
// The trigger outlives ctx's cancellation; its outcome arrives through the
// notifier.
func (s *Session) StartCameraAsync(ctx context.Context, lang string) error {
	code, err := languages.Validate(lang)
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.StartCamera(ctx, code); err != nil {
			slog.Warn("Camera start failed", "lang", code, "err", err)
		}
	}()
	return nil
}

// State is a copy of everything the view displays.
type State struct {
	Loaded      bool                   `json:"loaded"`
	Dimensions  crop.DisplayDimensions `json:"dimensions"`
	Selection   crop.Region            `json:"selection"`
	Crop        *crop.Buffer           `json:"crop,omitempty"`
	CropPNG     []byte                 `json:"-"`
	Boxes       []ocr.Box              `json:"boxes"`
	Text        string                 `json:"text"`
	TargetLang  string                 `json:"target_lang"`
	Translation string                 `json:"translation"`
}

// Snapshot returns the current displayable state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Loaded:      s.img != nil,
		Dimensions:  s.dims,
		Selection:   s.selection,
		Crop:        s.cropped,
		Text:        s.text,
		TargetLang:  s.targetLang,
		Translation: s.translation,
		Boxes:       []ocr.Box{},
	}
	if s.cropped != nil {
		st.CropPNG = s.cropped.Data
	}
	if s.result != nil {
		st.Boxes = append(st.Boxes, s.result.Drawable()...)
	}
	return st
}
