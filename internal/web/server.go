package web

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tti-balder/internal/assets"
	"tti-balder/internal/bridge"
	"tti-balder/internal/design"
	"tti-balder/internal/prompt"
	"tti-balder/internal/widget"
)

const maxBodyBytes = 64 << 10

type Options struct {
	Widget *widget.Service
	Hub    *bridge.Hub
	// Assets serves hosted design images when set.
	Assets *assets.Store
	// Static is served at the root when set.
	Static         fs.FS
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Server struct {
	widget         *widget.Service
	hub            *bridge.Hub
	assets         *assets.Store
	static         fs.FS
	requestTimeout time.Duration
	logger         *slog.Logger
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hub := opts.Hub
	if hub == nil {
		hub = bridge.NewHub(bridge.HubOptions{Logger: logger})
	}

	return &Server{
		widget:         opts.Widget,
		hub:            hub,
		assets:         opts.Assets,
		static:         opts.Static,
		requestTimeout: timeout,
		logger:         logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		if s.assets != nil {
			r.Get("/assets/{name}", s.handleAsset)
		}
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Post("/reset", s.handleReset)
			r.Put("/selection", s.handleSelection)
			r.Post("/designs", s.handleGenerate)
			r.Post("/designs/{designID}/select", s.handleSelectDesign)
			r.Delete("/designs/{designID}", s.handleDeleteDesign)
			r.Post("/drag", s.handleDrag)
			r.Get("/mockup.png", s.handleMockup)
			r.Post("/cart", s.handleCart)
			r.Get("/bridge", s.handleBridge)
		})
	})

	if s.static != nil {
		r.Handle("/*", http.FileServer(http.FS(s.static)))
	}
	return r
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.widget.Choices())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.widget.NewSession())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	v, err := s.widget.Snapshot(chi.URLParam(r, "id"))
	s.respond(w, r, v, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	v, err := s.widget.Reset(chi.URLParam(r, "id"))
	s.respond(w, r, v, err)
}

type selectionRequest struct {
	Color     *string `json:"color"`
	Size      *string `json:"size"`
	Placement *string `json:"placement"`
	Blend     *string `json:"blend"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	v, err := s.widget.Snapshot(id)
	if err == nil && req.Color != nil {
		v, err = s.widget.SelectColor(id, *req.Color)
	}
	if err == nil && req.Size != nil {
		v, err = s.widget.SelectSize(id, *req.Size)
	}
	if err == nil && req.Placement != nil {
		v, err = s.widget.SelectPlacement(id, *req.Placement)
	}
	if err == nil && req.Blend != nil {
		v, err = s.widget.SelectBlend(id, *req.Blend)
	}
	s.respond(w, r, v, err)
}

type generateRequest struct {
	Subject  string   `json:"subject"`
	Style    string   `json:"style"`
	Mood     string   `json:"mood"`
	Tags     []string `json:"tags"`
	TagInput string   `json:"tagInput"`
}

type generateResponse struct {
	Design design.Design `json:"design"`
	View   widget.View   `json:"view"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	d, err := s.widget.Generate(r.Context(), id, prompt.Input{
		Subject: req.Subject,
		Style:   req.Style,
		Mood:    req.Mood,
		Tags:    prompt.ParseTags(req.TagInput, req.Tags),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	v, err := s.widget.Snapshot(id)
	s.respond(w, r, generateResponse{Design: d, View: v}, err)
}

func (s *Server) handleSelectDesign(w http.ResponseWriter, r *http.Request) {
	v, err := s.widget.SelectDesign(chi.URLParam(r, "id"), chi.URLParam(r, "designID"))
	s.respond(w, r, v, err)
}

func (s *Server) handleDeleteDesign(w http.ResponseWriter, r *http.Request) {
	v, err := s.widget.DeleteDesign(chi.URLParam(r, "id"), chi.URLParam(r, "designID"))
	s.respond(w, r, v, err)
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var ev widget.DragEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	v, err := s.widget.Drag(chi.URLParam(r, "id"), ev)
	s.respond(w, r, v, err)
}

func (s *Server) handleMockup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	png, err := s.widget.RenderMockup(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("content-type", "image/png")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// AssetRoutes serves only the hosted design images, for processes that do
// not run the widget API.
func AssetRoutes(store *assets.Store, logger *slog.Logger) http.Handler {
	s := New(Options{Assets: store, Logger: logger})
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(assets.PathPrefix+"{name}", s.handleAsset)
	return r
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.assets.Get(chi.URLParam(r, "name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "asset_not_found", Message: "image not found"})
		return
	}
	w.Header().Set("content-type", asset.ContentType)
	w.Header().Set("cache-control", "public, max-age=86400, immutable")
	w.Header().Set("x-content-type-options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.Data)
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	res, err := s.widget.AddToCart(ctx, chi.URLParam(r, "id"))
	s.respond(w, r, res, err)
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.widget.Snapshot(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.hub.Serve(w, r, id, s.widget.HandleBridge); err != nil {
		s.logger.Debug("bridge connection closed", "session_id", id, "err", err)
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := widget.Code(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "code", code, "err", err, "request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, apiError{Error: code, Message: widget.UserMessage(err)})
}

func statusFor(code string) int {
	switch code {
	case "session_not_found", "design_not_found":
		return http.StatusNotFound
	case "invalid_option":
		return http.StatusBadRequest
	case "subject_required", "size_required", "no_design", "variant_not_found", "design_not_hosted", "content_policy":
		return http.StatusUnprocessableEntity
	case "in_flight":
		return http.StatusConflict
	case "network":
		return http.StatusGatewayTimeout
	case "upstream_rejected":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid_json", Message: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if strings.HasSuffix(r.URL.Path, "/bridge") {
			s.logger.Debug("http", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "dur_ms", time.Since(start).Milliseconds())
			return
		}
		s.logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"dur_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
