// Package router exposes the gateway's HTTP API: the seam the browser map
// client drives sessions, capabilities, selection, queries and overlays
// through.
package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/config"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/executor"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/observability"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/ogc"
	mylog "github.com/openmaplab/ogc-layer-gateway/internal/logger"
	"github.com/openmaplab/ogc-layer-gateway/internal/session"
)

type Handlers struct {
	logger   *slog.Logger
	cfg      config.Config
	sessions *session.Manager
	exec     executor.Interface
	builder  *ogc.Builder
	renderer session.Renderer
}

func New(logger *slog.Logger, cfg config.Config, sessions *session.Manager, exec executor.Interface, builder *ogc.Builder, renderer session.Renderer) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		logger:   logger,
		cfg:      cfg,
		sessions: sessions,
		exec:     exec,
		builder:  builder,
		renderer: renderer,
	}
}

func (h *Handlers) Mount(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.instrument("/sessions", h.createSession))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.instrument("/sessions/{id}", h.getSession))
			r.Delete("/", h.instrument("/sessions/{id}", h.deleteSession))
			r.Put("/service", h.instrument("/sessions/{id}/service", h.switchService))
			r.Post("/capabilities", h.instrument("/sessions/{id}/capabilities", h.loadCapabilities))
			r.Get("/layers", h.instrument("/sessions/{id}/layers", h.listLayers))
			r.Put("/selection", h.instrument("/sessions/{id}/selection", h.updateSelection))
			r.Get("/selection", h.instrument("/sessions/{id}/selection", h.getSelection))
			r.Post("/query", h.instrument("/sessions/{id}/query", h.runQuery))
			r.Get("/overlays", h.instrument("/sessions/{id}/overlays", h.listOverlays))
			r.Delete("/overlays", h.instrument("/sessions/{id}/overlays", h.clearOverlays))
			r.Put("/overlays/{index}/visibility", h.instrument("/sessions/{id}/overlays/{index}/visibility", h.setOverlayVisibility))
			r.Post("/feature-errors", h.instrument("/sessions/{id}/feature-errors", h.reportFeatureError))
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *Handlers) instrument(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps the error taxonomy onto status codes. Every error leaves
// the client in an interactable state; nothing here is fatal.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.logger
	var (
		cerr *model.ConfigurationError
		nerr *model.NetworkError
		perr *model.ParseError
	)
	switch {
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "configuration", Detail: cerr.Reason})
	case errors.As(err, &nerr):
		log.WarnContext(r.Context(), "upstream fetch failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "network", Detail: nerr.Error()})
	case errors.As(err, &perr):
		log.WarnContext(r.Context(), "capabilities parse failed",
			"err", err, "raw_bytes", len(perr.Raw))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "parse", Detail: rawSnippet(perr.Raw)})
	default:
		log.ErrorContext(r.Context(), "request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

// rawSnippet keeps the start of the offending document in the response so a
// user can see what the server actually sent.
func rawSnippet(raw []byte) string {
	const max = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &model.ConfigurationError{Reason: "invalid request body: " + err.Error()}
	}
	return nil
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown session", Detail: id})
		return nil, false
	}
	return s, true
}

type sessionBody struct {
	ID      string `json:"id"`
	Service string `json:"service"`
	URL     string `json:"url"`
}

func sessionState(s *session.Session) sessionBody {
	return sessionBody{ID: s.ID(), Service: string(s.Service()), URL: s.ServerURL()}
}

func (h *Handlers) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Service string `json:"service"`
		URL     string `json:"url"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.sessions.Create(req.Service, req.URL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "session created",
		"session_id", s.ID(), "service", string(s.Service()), "url", s.ServerURL())
	writeJSON(w, http.StatusCreated, sessionState(s))
}

func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionState(s))
}

func (h *Handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.ClearOverlays()
	h.sessions.Remove(s.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) switchService(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Service string `json:"service"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	kind, err := model.ParseServiceKind(req.Service)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	s.SwitchService(kind)
	writeJSON(w, http.StatusOK, sessionState(s))
}

func (h *Handlers) loadCapabilities(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx := mylog.WithSessionID(r.Context(), s.ID())

	doc, err := h.exec.FetchCapabilities(ctx, s.Service(), s.ServerURL())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	layers, err := ogc.ParseCapabilities(doc, s.Service())
	observability.ObserveParse(string(s.Service()), len(layers), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	s.ReplaceDescriptors(layers)

	h.logger.InfoContext(ctx, "capabilities loaded",
		"service", string(s.Service()), "layers", len(layers))

	initial := ""
	if len(layers) > 0 {
		initial = layers[0].Name
	}
	writeJSON(w, http.StatusOK, struct {
		Layers           []model.LayerDescriptor `json:"layers"`
		InitialSelection string                  `json:"initialSelection,omitempty"`
	}{Layers: layers, InitialSelection: initial})
}

func (h *Handlers) listLayers(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Layers []model.LayerDescriptor `json:"layers"`
	}{Layers: s.Descriptors()})
}

type selectionBody struct {
	Checked           []string    `json:"checked"`
	ActiveBoundingBox *model.BBox `json:"activeBoundingBox,omitempty"`
}

func (h *Handlers) selectionState(s *session.Session) selectionBody {
	checked := s.CheckedLayers()
	names := make([]string, 0, len(checked))
	for _, d := range checked {
		names = append(names, d.Name)
	}
	return selectionBody{Checked: names, ActiveBoundingBox: s.ActiveBBox()}
}

func (h *Handlers) updateSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Name    string `json:"name"`
		Checked bool   `json:"checked"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, r, &model.ConfigurationError{Reason: "layer name is required"})
		return
	}
	s.Toggle(req.Name, req.Checked)
	writeJSON(w, http.StatusOK, h.selectionState(s))
}

func (h *Handlers) getSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.selectionState(s))
}

func (h *Handlers) runQuery(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Format string `json:"format"`
		SRS    string `json:"srs"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	opts := model.QueryOptions{Format: strings.TrimSpace(req.Format), SRS: strings.TrimSpace(req.SRS)}
	if opts.Format == "" {
		if s.Service() == model.ServiceWFS {
			opts.Format = h.cfg.DefaultWFSFormat
		} else {
			opts.Format = h.cfg.DefaultWMSFormat
		}
	}
	if opts.SRS == "" {
		opts.SRS = h.cfg.DefaultSRS
	}

	specs, err := s.RunQuery(h.builder, h.renderer, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(mylog.WithSessionID(r.Context(), s.ID()), "query issued",
		"service", string(s.Service()), "specs", len(specs))
	writeJSON(w, http.StatusOK, struct {
		Specs []model.RequestSpec `json:"specs"`
	}{Specs: specs})
}

func (h *Handlers) listOverlays(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Overlays []session.OverlayEntry `json:"overlays"`
	}{Overlays: s.Overlays()})
}

func (h *Handlers) clearOverlays(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	n := s.ClearOverlays()
	writeJSON(w, http.StatusOK, struct {
		Removed int `json:"removed"`
	}{Removed: n})
}

func (h *Handlers) setOverlayVisibility(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, &model.ConfigurationError{Reason: "overlay index must be an integer"})
		return
	}
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := s.SetOverlayVisible(index, req.Visible); err != nil {
		h.writeError(w, r, &model.ConfigurationError{Reason: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Overlays []session.OverlayEntry `json:"overlays"`
	}{Overlays: s.Overlays()})
}

// reportFeatureError lets the rendering client report an asynchronous
// per-layer vector load failure; siblings keep loading, the gateway only
// records it.
func (h *Handlers) reportFeatureError(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Layer   string `json:"layer"`
		Message string `json:"message"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ferr := &model.FeatureLoadError{Layer: req.Layer, Err: errors.New(req.Message)}
	h.logger.WarnContext(mylog.WithSessionID(r.Context(), s.ID()),
		"feature load failed", "layer", req.Layer, "err", ferr)
	w.WriteHeader(http.StatusAccepted)
}
