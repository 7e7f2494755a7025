package cmd

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/cropocr/pkg/camera"
	"github.com/lehigh-university-libraries/cropocr/pkg/crop"
	"github.com/lehigh-university-libraries/cropocr/pkg/hocr"
	"github.com/lehigh-university-libraries/cropocr/pkg/languages"
	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
	"github.com/lehigh-university-libraries/cropocr/pkg/overlay"
	"github.com/lehigh-university-libraries/cropocr/pkg/session"
	"github.com/lehigh-university-libraries/cropocr/pkg/translate"
)

//go:embed static
var staticFiles embed.FS

const maxUploadBytes = 32 << 20

const (
	sessionIdleTimeout = 30 * time.Minute
	maxSessions        = 256
)

var (
	daemonPort string
	daemonHost string
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Start the crop and recognize web interface",
	Long:  "Start a web server where an image can be uploaded, a region dragged out, recognized, outlined and translated",
	RunE:  runDaemon,
}

func init() {
	RootCmd.AddCommand(uiCmd)
	uiCmd.Flags().StringVar(&daemonPort, "port", "8888", "Port to run the web server on")
	uiCmd.Flags().StringVar(&daemonHost, "host", "localhost", "Host to bind the web server to")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	slog.Info("Starting cropocr daemon", "host", daemonHost, "port", daemonPort)

	srv := newUIServer(func(n session.Notifier) *session.Session {
		return session.New(ocr.New(cfg.OCR()), translate.New(cfg.Translate()), camera.New(cfg.Camera()), n)
	}, cfg.Overlay)

	addr := fmt.Sprintf("%s:%s", daemonHost, daemonPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Interface available", "url", fmt.Sprintf("http://%s", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				srv.expire()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// notices buffers one-shot messages until the page next polls.
type notices struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notices) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *notices) drain() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.msgs
	n.msgs = nil
	if out == nil {
		out = []string{}
	}
	return out
}

type uiSession struct {
	*session.Session
	notices *notices

	// lastSeen is guarded by uiServer.mu.
	lastSeen time.Time
}

type uiServer struct {
	newSession  func(session.Notifier) *session.Session
	style       overlay.Style
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*uiSession
}

func newUIServer(factory func(session.Notifier) *session.Session, style overlay.Style) *uiServer {
	return &uiServer{
		newSession:  factory,
		style:       style,
		idleTimeout: sessionIdleTimeout,
		maxSessions: maxSessions,
		now:         time.Now,
		sessions:    make(map[string]*uiSession),
	}
}

func (s *uiServer) routes() http.Handler {
	mux := http.NewServeMux()

	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /", http.FileServerFS(static))

	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("POST /api/camera", s.handleCameraOnly)
	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleState))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/sessions/{id}/image", s.withSession(s.handleImage))
	mux.HandleFunc("POST /api/sessions/{id}/resize", s.withSession(s.handleResize))
	mux.HandleFunc("POST /api/sessions/{id}/select", s.withSession(s.handleSelect))
	mux.HandleFunc("POST /api/sessions/{id}/crop", s.withSession(s.handleCrop))
	mux.HandleFunc("POST /api/sessions/{id}/translate", s.withSession(s.handleTranslate))
	mux.HandleFunc("POST /api/sessions/{id}/camera", s.withSession(s.handleCamera))
	mux.HandleFunc("GET /api/sessions/{id}/crop.png", s.withSession(s.handleCropPNG))
	mux.HandleFunc("GET /api/sessions/{id}/overlay.png", s.withSession(s.handleOverlayPNG))
	mux.HandleFunc("GET /api/sessions/{id}/hocr", s.withSession(s.handleHOCR))

	return mux
}

func (s *uiServer) lookup(id string) (*uiSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.sessions[id]
	if ok {
		us.lastSeen = s.now()
	}
	return us, ok
}

// register stores a new session under a fresh id. Idle sessions are expired
// first, and the least recently used ones are evicted to stay under the cap.
func (s *uiServer) register(us *uiSession) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.expireLocked(now)
	for len(s.sessions) > 0 && len(s.sessions) >= s.maxSessions {
		var oldest string
		for k, v := range s.sessions {
			if oldest == "" || v.lastSeen.Before(s.sessions[oldest].lastSeen) {
				oldest = k
			}
		}
		delete(s.sessions, oldest)
		slog.Info("Session evicted", "session", oldest, "sessions", len(s.sessions))
	}
	us.lastSeen = now
	s.sessions[id] = us
	return id
}

// expire drops sessions idle for longer than the idle timeout.
func (s *uiServer) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now())
}

func (s *uiServer) expireLocked(now time.Time) {
	for id, us := range s.sessions {
		if now.Sub(us.lastSeen) > s.idleTimeout {
			delete(s.sessions, id)
			slog.Debug("Session expired", "session", id)
		}
	}
}

func (s *uiServer) withSession(h func(http.ResponseWriter, *http.Request, string, *uiSession)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		us, ok := s.lookup(id)
		if !ok {
			respondWithError(w, "Session not found", http.StatusNotFound)
			return
		}
		h(w, r, id, us)
	}
}

type stateResponse struct {
	SessionID string `json:"session_id"`
	session.State
	Superseded bool     `json:"superseded,omitempty"`
	Notices    []string `json:"notices"`
}

func (s *uiServer) respondWithState(w http.ResponseWriter, id string, us *uiSession, superseded bool) {
	writeJSON(w, http.StatusOK, stateResponse{
		SessionID:  id,
		State:      us.Snapshot(),
		Superseded: superseded,
		Notices:    us.notices.drain(),
	})
}

func (s *uiServer) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"languages":           languages.All(),
		"default_translation": cfg.TargetLang,
		"default_camera":      cfg.CameraLang,
	})
}

func (s *uiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	n := &notices{}
	us := &uiSession{Session: s.newSession(n), notices: n}
	if err := loadUpload(w, r, us.Session); err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := s.register(us)
	slog.Info("Session created", "session", id)
	s.respondWithState(w, id, us, false)
}

func (s *uiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		respondWithError(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *uiServer) handleState(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	s.respondWithState(w, id, us, false)
}

func (s *uiServer) handleImage(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	if err := loadUpload(w, r, us.Session); err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respondWithState(w, id, us, false)
}

// loadUpload reads the "file" part and the rendered size the page measured.
func loadUpload(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	file, _, err := r.FormFile(ocr.FieldName)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	img, err := crop.Load(file)
	if err != nil {
		return err
	}

	rw, err := formFloat(r, "rendered_width")
	if err != nil {
		return err
	}
	rh, err := formFloat(r, "rendered_height")
	if err != nil {
		return err
	}

	sess.Load(img, rw, rh)
	return nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return f, nil
}

type sizeRequest struct {
	RenderedWidth  float64 `json:"rendered_width"`
	RenderedHeight float64 `json:"rendered_height"`
}

func (s *uiServer) handleResize(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	var req sizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := us.Resize(req.RenderedWidth, req.RenderedHeight); err != nil {
		respondWithError(w, err.Error(), http.StatusConflict)
		return
	}
	s.respondWithState(w, id, us, false)
}

func (s *uiServer) handleSelect(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	var region crop.Region
	if err := json.NewDecoder(r.Body).Decode(&region); err != nil {
		respondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if _, err := us.Select(region); err != nil {
		respondWithError(w, err.Error(), http.StatusConflict)
		return
	}
	s.respondWithState(w, id, us, false)
}

// handleCrop commits the selection and, once new text is in, refreshes the
// translation for the selected target language.
func (s *uiServer) handleCrop(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	out, err := us.Commit(r.Context())
	if err != nil {
		// Already surfaced through the session's notices.
		slog.Debug("Commit failed", "session", id, "err", err)
	}
	if err == nil && out.Produced && !out.Superseded {
		if _, err := us.Translate(r.Context(), us.Snapshot().TargetLang); err != nil {
			slog.Debug("Translation after commit failed", "session", id, "err", err)
		}
	}
	s.respondWithState(w, id, us, out.Superseded)
}

type langRequest struct {
	Lang string `json:"lang"`
}

func (s *uiServer) handleTranslate(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	var req langRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	lang, err := languages.Validate(req.Lang)
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, err = us.Translate(r.Context(), lang)
	s.respondWithState(w, id, us, errors.Is(err, translate.ErrSuperseded))
}

// cameraLang reads the requested camera language, defaulting to the
// configured one.
func cameraLang(r *http.Request) (string, error) {
	var req langRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.New("Invalid JSON")
	}
	if req.Lang == "" {
		req.Lang = cfg.CameraLang
	}
	return languages.Validate(req.Lang)
}

func (s *uiServer) handleCamera(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	lang, err := cameraLang(r)
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.startCamera(r.Context(), w, id, us, lang)
}

// handleCameraOnly triggers the camera for a page that has not uploaded an
// image yet. It registers an empty session so the outcome can be polled.
func (s *uiServer) handleCameraOnly(w http.ResponseWriter, r *http.Request) {
	lang, err := cameraLang(r)
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n := &notices{}
	us := &uiSession{Session: s.newSession(n), notices: n}
	s.startCamera(r.Context(), w, s.register(us), us, lang)
}

// startCamera returns right away; the outcome arrives as a notice on a later
// state poll.
func (s *uiServer) startCamera(ctx context.Context, w http.ResponseWriter, id string, us *uiSession, lang string) {
	if err := us.StartCameraAsync(ctx, lang); err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Info("Camera start requested", "session", id, "lang", lang)
	s.respondWithState(w, id, us, false)
}

func (s *uiServer) handleCropPNG(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	st := us.Snapshot()
	if st.CropPNG == nil {
		respondWithError(w, "No crop yet", http.StatusNotFound)
		return
	}
	writePNG(w, st.CropPNG)
}

func (s *uiServer) handleOverlayPNG(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	st := us.Snapshot()
	if st.CropPNG == nil {
		respondWithError(w, "No crop yet", http.StatusNotFound)
		return
	}
	data, err := overlay.RenderPNG(st.CropPNG, st.Boxes, s.style)
	if err != nil {
		respondWithError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writePNG(w, data)
}

func (s *uiServer) handleHOCR(w http.ResponseWriter, r *http.Request, id string, us *uiSession) {
	st := us.Snapshot()
	if st.Crop == nil {
		respondWithError(w, "No crop yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(hocr.FromBoxes(st.Boxes, st.Crop.Width, st.Crop.Height)))
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", crop.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
