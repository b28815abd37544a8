// Package session holds the per-client state the gateway keeps between
// requests: current service kind and server URL, the last-parsed layer
// descriptors, the checked selection and the rendered-overlay registry.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/ogc"
)

// Session is the explicit replacement for what the original client kept as
// module globals (current service, overlay list). All access goes through
// the mutex; individual clients are single-threaded but the gateway is not.
type Session struct {
	mu sync.Mutex

	id        string
	service   model.ServiceKind
	serverURL string
	logger    *slog.Logger

	descriptors []model.LayerDescriptor
	selection   *Selection
	overlays    *Registry
}

func newSession(id string, kind model.ServiceKind, serverURL string, logger *slog.Logger) *Session {
	return &Session{
		id:        id,
		service:   kind,
		serverURL: serverURL,
		logger:    logger,
		selection: NewSelection(),
		overlays:  NewRegistry(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Service() model.ServiceKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.service
}

func (s *Session) ServerURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverURL
}

// SwitchService changes the protocol, rewrites a /wms or /wfs URL suffix to
// match, and invalidates the layer list, selection and overlays. Switching
// to the current kind is a no-op.
func (s *Session) SwitchService(kind model.ServiceKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == s.service {
		return
	}
	s.service = kind
	s.serverURL = ogc.SwitchServicePath(s.serverURL, kind)
	s.descriptors = nil
	s.selection = NewSelection()
	s.overlays.ClearAll()
}

// ReplaceDescriptors installs a freshly parsed layer set. The previous set is
// discarded wholesale and the first descriptor is auto-checked.
func (s *Session) ReplaceDescriptors(descriptors []model.LayerDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors = descriptors
	s.selection.Reset(descriptors)
}

func (s *Session) Descriptors() []model.LayerDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LayerDescriptor, len(s.descriptors))
	copy(out, s.descriptors)
	return out
}

func (s *Session) Toggle(name string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checked {
		s.selection.Select(name)
	} else {
		s.selection.Deselect(name)
	}
}

func (s *Session) CheckedLayers() []model.LayerDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Checked()
}

func (s *Session) ActiveBBox() *model.BBox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.ActiveBBox()
}

// RunQuery clears all prior overlays synchronously, builds one spec per
// checked layer and registers a fresh overlay for each. Clearing first keeps
// stale and fresh overlays from coexisting across re-queries. An empty
// selection is a caller-visible configuration error.
func (s *Session) RunQuery(builder *ogc.Builder, renderer Renderer, opts model.QueryOptions) ([]model.RequestSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checked := s.selection.Checked()
	if len(checked) == 0 {
		return nil, &model.ConfigurationError{Reason: "no layers selected"}
	}

	specs, err := builder.BuildQueries(s.service, s.serverURL, checked, opts)
	if err != nil {
		return nil, err
	}

	s.overlays.ClearAll()
	for _, spec := range specs {
		handle, err := renderer.Render(spec)
		if err != nil {
			// per-layer failure: report, keep rendering siblings
			ferr := &model.FeatureLoadError{Layer: spec.Layer, Err: err}
			s.logger.Warn("overlay render failed",
				"session_id", s.id, "layer", spec.Layer, "err", ferr)
			continue
		}
		s.overlays.Register(spec.Title, handle)
	}
	return specs, nil
}

func (s *Session) Overlays() []OverlayEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlays.Entries()
}

func (s *Session) SetOverlayVisible(index int, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlays.SetVisible(index, visible)
}

func (s *Session) ClearOverlays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlays.ClearAll()
}

// Manager owns the live sessions, bounded by count and idle TTL. Evicted
// sessions get their overlays cleared so the rendering collaborator's
// handles are released.
type Manager struct {
	sessions *expirable.LRU[string, *Session]
	logger   *slog.Logger
}

func NewManager(maxSessions int, idleTTL time.Duration, logger *slog.Logger) *Manager {
	if maxSessions <= 0 {
		maxSessions = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	onEvict := func(_ string, s *Session) {
		s.ClearOverlays()
	}
	return &Manager{
		sessions: expirable.NewLRU[string, *Session](maxSessions, onEvict, idleTTL),
		logger:   logger,
	}
}

// Create validates the server URL and service kind and returns a new session.
func (m *Manager) Create(kindRaw, serverURL string) (*Session, error) {
	kind, err := model.ParseServiceKind(kindRaw)
	if err != nil {
		return nil, err
	}
	if _, err := ogc.CapabilitiesURL(kind, serverURL); err != nil {
		return nil, err
	}
	s := newSession(newID(), kind, serverURL, m.logger)
	m.sessions.Add(s.id, s)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	return m.sessions.Get(id)
}

func (m *Manager) Remove(id string) {
	m.sessions.Remove(id)
}

func newID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
