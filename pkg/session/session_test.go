package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/cropocr/pkg/camera"
	"github.com/lehigh-university-libraries/cropocr/pkg/crop"
	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
	"github.com/lehigh-university-libraries/cropocr/pkg/services"
	"github.com/lehigh-university-libraries/cropocr/pkg/translate"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type stubRecognizer struct {
	result *ocr.Result
	err    error
	calls  int
	hook   func()
}

func (s *stubRecognizer) Recognize(ctx context.Context, png []byte) (*ocr.Result, error) {
	s.calls++
	if s.hook != nil {
		s.hook()
	}
	return s.result, s.err
}

type stubTranslator struct {
	out   string
	err   error
	calls int
}

func (s *stubTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	s.calls++
	return s.out, s.err
}

type stubCamera struct {
	lang string
	err  error
}

func (s *stubCamera) Start(ctx context.Context, lang string) error {
	s.lang = lang
	return s.err
}

func solidImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	return img
}

func TestCommit_EndToEndWithOCRService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("Expected file upload: %v", err)
		}
		w.Write([]byte(`{"boxes":[{"id":1,"x":5,"y":5,"w":10,"h":10,"text":"Hi"}]}`))
	}))
	defer server.Close()

	notes := &recordingNotifier{}
	s := New(ocr.New(services.Config{URL: server.URL}), &stubTranslator{}, &stubCamera{}, notes)
	s.Load(solidImage(200, 200), 100, 100)

	out, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !out.Produced || out.Superseded {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	st := s.Snapshot()
	if st.Text != "Hi" {
		t.Errorf("Text = %q, want %q", st.Text, "Hi")
	}
	if len(st.Boxes) != 1 {
		t.Fatalf("Expected exactly one box, got %d", len(st.Boxes))
	}
	b := st.Boxes[0]
	if b.X != 5 || b.Y != 5 || b.W != 10 || b.H != 10 {
		t.Errorf("box = (%v,%v,%v,%v), want (5,5,10,10)", b.X, b.Y, b.W, b.H)
	}
	if len(notes.messages()) != 0 {
		t.Errorf("Unexpected notifications: %v", notes.messages())
	}
	// Default selection: 50x50 rendered centered square, scale 2.
	if out.Buffer.Width != 100 || out.Buffer.Height != 100 {
		t.Errorf("crop size = %dx%d, want 100x100", out.Buffer.Width, out.Buffer.Height)
	}
	if len(st.CropPNG) == 0 {
		t.Error("snapshot should carry the cropped PNG")
	}
}

func TestLoad_ResetsSelectionAndResults(t *testing.T) {
	rec := &stubRecognizer{result: &ocr.Result{Boxes: []ocr.Box{{W: 1, H: 1, Text: "old"}}}}
	s := New(rec, &stubTranslator{}, &stubCamera{}, nil)

	dims := s.Load(solidImage(600, 400), 300, 200)
	if dims != (crop.DisplayDimensions{RenderedWidth: 300, RenderedHeight: 200, NaturalWidth: 600, NaturalHeight: 400}) {
		t.Errorf("dims = %+v", dims)
	}
	want := crop.Region{X: 75, Y: 25, Width: 150, Height: 150, Unit: crop.Pixels}
	if got := s.Snapshot().Selection; got != want {
		t.Errorf("default selection = %+v, want %+v", got, want)
	}

	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().Text != "old" {
		t.Fatal("expected recognized text before reload")
	}

	s.Load(solidImage(50, 50), 0, 0)
	st := s.Snapshot()
	if st.Text != "" || len(st.Boxes) != 0 || st.Crop != nil {
		t.Errorf("reload should clear results, got %+v", st)
	}
	if st.Selection != (crop.Region{X: 12.5, Y: 12.5, Width: 25, Height: 25, Unit: crop.Pixels}) {
		t.Errorf("selection after reload = %+v", st.Selection)
	}
}

func TestCommit_NoOp(t *testing.T) {
	rec := &stubRecognizer{result: &ocr.Result{}}

	t.Run("no image", func(t *testing.T) {
		s := New(rec, &stubTranslator{}, &stubCamera{}, nil)
		out, err := s.Commit(context.Background())
		if err != nil || out.Produced {
			t.Errorf("Commit() = %+v, %v; want no-op", out, err)
		}
	})

	t.Run("unset selection", func(t *testing.T) {
		s := New(rec, &stubTranslator{}, &stubCamera{}, nil)
		s.Load(solidImage(10, 10), 0, 0)
		if _, err := s.Select(crop.Region{X: 1, Y: 1}); err != nil {
			t.Fatal(err)
		}
		out, err := s.Commit(context.Background())
		if err != nil || out.Produced {
			t.Errorf("Commit() = %+v, %v; want no-op", out, err)
		}
	})

	t.Run("not rendered yet", func(t *testing.T) {
		s := New(rec, &stubTranslator{}, &stubCamera{}, nil)
		s.Load(solidImage(10, 10), 0, 0)
		s.Resize(-1, 10)
		out, err := s.Commit(context.Background())
		if err != nil || out.Produced {
			t.Errorf("Commit() = %+v, %v; want no-op", out, err)
		}
	})

	if rec.calls != 0 {
		t.Errorf("OCR should not be called for a no-op, got %d calls", rec.calls)
	}
}

func TestCommit_FailureNotifiesAndClears(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"status", services.Status("ocr", 500, nil), "OCR failed"},
		{"transport", services.Transport("ocr", errors.New("connection refused")), "Error: ocr transport: connection refused"},
		{"malformed", services.Malformed("ocr", errors.New("response has no boxes")), "Error: ocr malformed response: response has no boxes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stubRecognizer{result: &ocr.Result{Boxes: []ocr.Box{{W: 1, H: 1, Text: "prev"}}}}
			notes := &recordingNotifier{}
			s := New(rec, &stubTranslator{}, &stubCamera{}, notes)
			s.Load(solidImage(20, 20), 0, 0)
			if _, err := s.Commit(context.Background()); err != nil {
				t.Fatal(err)
			}

			rec.result, rec.err = nil, tt.err
			out, err := s.Commit(context.Background())
			if !errors.Is(err, tt.err) {
				t.Errorf("Commit error = %v, want %v", err, tt.err)
			}
			if !out.Produced {
				t.Error("the crop itself was produced")
			}

			st := s.Snapshot()
			if st.Text != "" || len(st.Boxes) != 0 {
				t.Errorf("failure should clear results, got %+v", st)
			}
			msgs := notes.messages()
			if len(msgs) != 1 || msgs[0] != tt.message {
				t.Errorf("notifications = %q, want [%q]", msgs, tt.message)
			}
		})
	}
}

func TestCommit_SupersededByNewerLoad(t *testing.T) {
	notes := &recordingNotifier{}
	rec := &stubRecognizer{result: &ocr.Result{Boxes: []ocr.Box{{W: 1, H: 1, Text: "stale"}}}}
	s := New(rec, &stubTranslator{}, &stubCamera{}, notes)
	s.Load(solidImage(20, 20), 0, 0)

	// A new image arrives while the upload is in flight.
	rec.hook = func() { s.Load(solidImage(30, 30), 0, 0) }

	out, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !out.Superseded {
		t.Error("commit should be superseded")
	}
	if s.Snapshot().Text != "" {
		t.Error("stale OCR result must not be applied")
	}

	// Failures of superseded commits are not reported either.
	rec.result, rec.err = nil, services.Status("ocr", 500, nil)
	if _, err := s.Commit(context.Background()); err != nil {
		t.Errorf("superseded failure should not surface: %v", err)
	}
	if len(notes.messages()) != 0 {
		t.Errorf("Unexpected notifications: %v", notes.messages())
	}
}

func TestSelect(t *testing.T) {
	s := New(&stubRecognizer{}, &stubTranslator{}, &stubCamera{}, nil)
	if _, err := s.Select(crop.Region{Width: 1, Height: 1}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Select before Load: got %v, want ErrNotLoaded", err)
	}

	s.Load(solidImage(100, 100), 100, 100)
	got, err := s.Select(crop.Region{X: 90, Y: 50, Width: 50, Height: 50, Unit: crop.Percent})
	if err != nil {
		t.Fatal(err)
	}
	want := crop.Region{X: 90, Y: 50, Width: 10, Height: 50, Unit: crop.Pixels}
	if got != want {
		t.Errorf("Select() = %+v, want %+v", got, want)
	}
}

func TestResize_KeepsSourcePixels(t *testing.T) {
	s := New(&stubRecognizer{}, &stubTranslator{}, &stubCamera{}, nil)
	if err := s.Resize(10, 10); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Resize before Load: got %v", err)
	}

	s.Load(solidImage(400, 400), 200, 200)
	s.Select(crop.Region{X: 20, Y: 40, Width: 60, Height: 80})
	if err := s.Resize(100, 100); err != nil {
		t.Fatal(err)
	}

	st := s.Snapshot()
	want := crop.Region{X: 10, Y: 20, Width: 30, Height: 40, Unit: crop.Pixels}
	if st.Selection != want {
		t.Errorf("selection = %+v, want %+v", st.Selection, want)
	}
	before, _ := crop.Scale(crop.DisplayDimensions{RenderedWidth: 200, RenderedHeight: 200, NaturalWidth: 400, NaturalHeight: 400},
		crop.Region{X: 20, Y: 40, Width: 60, Height: 80})
	after, _ := crop.Scale(st.Dimensions, st.Selection)
	if before != after {
		t.Errorf("natural region changed: %+v -> %+v", before, after)
	}
}

func TestTranslate(t *testing.T) {
	rec := &stubRecognizer{result: &ocr.Result{Boxes: []ocr.Box{{W: 1, H: 1, Text: "Hello"}}}}

	t.Run("success", func(t *testing.T) {
		tr := &stubTranslator{out: "Bonjour"}
		s := New(rec, tr, &stubCamera{}, nil)
		s.Load(solidImage(10, 10), 0, 0)
		s.Commit(context.Background())

		out, err := s.Translate(context.Background(), "FR")
		if err != nil || out != "Bonjour" {
			t.Fatalf("Translate() = %q, %v", out, err)
		}
		st := s.Snapshot()
		if st.Translation != "Bonjour" || st.TargetLang != "fr" {
			t.Errorf("state = %+v", st)
		}
	})

	t.Run("no text clears without calling", func(t *testing.T) {
		tr := &stubTranslator{out: "unused"}
		s := New(rec, tr, &stubCamera{}, nil)
		out, err := s.Translate(context.Background(), "ta")
		if err != nil || out != "" || tr.calls != 0 {
			t.Errorf("Translate() = %q, %v, calls=%d", out, err, tr.calls)
		}
	})

	t.Run("failure notifies and clears", func(t *testing.T) {
		tr := &stubTranslator{out: "Hola"}
		notes := &recordingNotifier{}
		s := New(rec, tr, &stubCamera{}, notes)
		s.Load(solidImage(10, 10), 0, 0)
		s.Commit(context.Background())
		s.Translate(context.Background(), "es")

		tr.out, tr.err = "", services.Malformed("translate", errors.New("response has no translatedText"))
		if _, err := s.Translate(context.Background(), "es"); err == nil {
			t.Fatal("expected error")
		}
		if s.Snapshot().Translation != "" {
			t.Error("failed translation should clear the previous one")
		}
		if msgs := notes.messages(); len(msgs) != 1 || msgs[0] != "Translation failed" {
			t.Errorf("notifications = %q", msgs)
		}
	})

	t.Run("invalid language", func(t *testing.T) {
		s := New(rec, &stubTranslator{}, &stubCamera{}, nil)
		if _, err := s.Translate(context.Background(), "xx"); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("commit clears stale translation", func(t *testing.T) {
		tr := &stubTranslator{out: "Hallo"}
		s := New(rec, tr, &stubCamera{}, nil)
		s.Load(solidImage(10, 10), 0, 0)
		s.Commit(context.Background())
		s.Translate(context.Background(), "de")
		s.Commit(context.Background())
		if s.Snapshot().Translation != "" {
			t.Error("new recognition should clear the old translation")
		}
	})
}

// gatedTranslator blocks every call until release is closed.
type gatedTranslator struct {
	started chan string
	release chan struct{}
}

func (g *gatedTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	g.started <- text
	<-g.release
	return "T(" + text + ")", nil
}

func TestTranslate_CommitSupersedesInFlightTranslation(t *testing.T) {
	rec := &stubRecognizer{result: &ocr.Result{Boxes: []ocr.Box{{W: 1, H: 1, Text: "old"}}}}
	gt := &gatedTranslator{started: make(chan string, 1), release: make(chan struct{})}
	s := New(rec, gt, &stubCamera{}, nil)
	s.Load(solidImage(10, 10), 0, 0)
	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := s.Translate(context.Background(), "ta")
		done <- result{out, err}
	}()

	select {
	case text := <-gt.started:
		if text != "old" {
			t.Fatalf("translator got %q", text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("translation never started")
	}

	rec.result = &ocr.Result{Boxes: []ocr.Box{{W: 1, H: 1, Text: "new"}}}
	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(gt.release)

	select {
	case r := <-done:
		if !errors.Is(r.err, translate.ErrSuperseded) || r.out != "" {
			t.Errorf("Translate() = %q, %v; want superseded", r.out, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("translation never finished")
	}

	st := s.Snapshot()
	if st.Text != "new" || st.Translation != "" {
		t.Errorf("state text=%q translation=%q, want text %q and no translation", st.Text, st.Translation, "new")
	}
}

func TestStartCamera(t *testing.T) {
	cam := &stubCamera{}
	notes := &recordingNotifier{}
	s := New(&stubRecognizer{}, &stubTranslator{}, cam, notes)

	if err := s.StartCamera(context.Background(), "ja"); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	if cam.lang != "ja" {
		t.Errorf("camera lang = %q", cam.lang)
	}

	cam.err = services.Transport("camera", errors.New("refused"))
	if err := s.StartCamera(context.Background(), "en"); err == nil {
		t.Error("expected error")
	}

	msgs := notes.messages()
	if len(msgs) != 2 || msgs[1] != "Error starting camera: camera transport: refused" {
		t.Errorf("notifications = %q", msgs)
	}

	if err := s.StartCamera(context.Background(), "xx"); err == nil {
		t.Error("expected validation error")
	}
	if s.Snapshot().Loaded {
		t.Error("camera trigger must not load anything")
	}
}

func TestStartCameraAsync(t *testing.T) {
	cam := &stubCamera{}
	notes := &recordingNotifier{}
	s := New(&stubRecognizer{}, &stubTranslator{}, cam, notes)

	if err := s.StartCameraAsync(context.Background(), "xx"); err == nil {
		t.Error("expected validation error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.StartCameraAsync(ctx, "HI"); err != nil {
		t.Fatalf("StartCameraAsync failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for len(notes.messages()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("camera outcome never reported")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if msgs := notes.messages(); len(msgs) != 1 || msgs[0] != camera.StartedMessage {
		t.Errorf("notifications = %q", msgs)
	}
	if cam.lang != "hi" {
		t.Errorf("camera lang = %q", cam.lang)
	}
}

var _ translate.Translator = (*stubTranslator)(nil)
