package session

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/ogc"
)

type fakeRenderer struct {
	rendered []model.RequestSpec
	failFor  map[string]error
	handles  []*fakeOverlay
}

func (f *fakeRenderer) Render(spec model.RequestSpec) (Overlay, error) {
	f.rendered = append(f.rendered, spec)
	if err := f.failFor[spec.Layer]; err != nil {
		return nil, err
	}
	h := &fakeOverlay{}
	f.handles = append(f.handles, h)
	return h, nil
}

func newTestSession(t *testing.T, kind, serverURL string) (*Manager, *Session) {
	t.Helper()
	m := NewManager(16, time.Minute, nil)
	s, err := m.Create(kind, serverURL)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m, s
}

func TestManager_CreateValidates(t *testing.T) {
	m := NewManager(16, time.Minute, nil)

	if _, err := m.Create("WCS", "http://example.com/wms"); err == nil {
		t.Fatalf("expected error for unknown service kind")
	}
	var cerr *model.ConfigurationError
	_, err := m.Create("WMS", "://broken")
	if !errors.As(err, &cerr) {
		t.Fatalf("err=%v want ConfigurationError", err)
	}

	s, err := m.Create("wfs", "http://example.com/geoserver/wfs")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.Service() != model.ServiceWFS {
		t.Fatalf("service=%s", s.Service())
	}
	got, ok := m.Get(s.ID())
	if !ok || got != s {
		t.Fatalf("Get(%q)=%v,%v", s.ID(), got, ok)
	}
}

func TestSession_SwitchServiceRewritesURLAndInvalidates(t *testing.T) {
	_, s := newTestSession(t, "WMS", "http://example.com/geoserver/wms")
	s.ReplaceDescriptors(descs())
	s.overlays.Register("old", &fakeOverlay{})

	s.SwitchService(model.ServiceWFS)
	if got := s.ServerURL(); got != "http://example.com/geoserver/wfs" {
		t.Fatalf("url=%q", got)
	}
	if len(s.Descriptors()) != 0 || len(s.CheckedLayers()) != 0 || len(s.Overlays()) != 0 {
		t.Fatalf("switching kinds must invalidate layer list, selection and overlays")
	}

	// switching to the current kind changes nothing
	s.ReplaceDescriptors(descs())
	s.SwitchService(model.ServiceWFS)
	if len(s.Descriptors()) != 3 {
		t.Fatalf("no-op switch dropped descriptors")
	}
}

func TestSession_RunQueryClearsPriorOverlays(t *testing.T) {
	_, s := newTestSession(t, "WFS", "http://example.com/geoserver/wfs")
	s.ReplaceDescriptors(descs())
	s.Toggle("b", true)

	builder := ogc.NewBuilder(rand.New(rand.NewSource(7)))
	r := &fakeRenderer{}
	opts := model.QueryOptions{Format: "application/json", SRS: "EPSG:4326"}

	specs, err := s.RunQuery(builder, r, opts)
	if err != nil {
		t.Fatalf("RunQuery: %v", err)
	}
	if len(specs) != 2 || specs[0].Layer != "a" || specs[1].Layer != "b" {
		t.Fatalf("specs=%+v", specs)
	}
	if !strings.Contains(specs[0].URL, "typeName=a") {
		t.Fatalf("spec url=%q", specs[0].URL)
	}
	firstHandles := append([]*fakeOverlay(nil), r.handles...)

	// re-query: old overlays are removed before fresh ones appear
	if _, err := s.RunQuery(builder, r, opts); err != nil {
		t.Fatalf("RunQuery again: %v", err)
	}
	for i, h := range firstHandles {
		if h.removed != 1 {
			t.Fatalf("stale overlay %d not removed on re-query", i)
		}
	}
	if got := s.Overlays(); len(got) != 2 {
		t.Fatalf("overlays=%d want 2", len(got))
	}
}

func TestSession_RunQueryRenderFailureKeepsSiblings(t *testing.T) {
	var logBuf bytes.Buffer
	m := NewManager(16, time.Minute, slog.New(slog.NewTextHandler(&logBuf, nil)))
	s, err := m.Create("WFS", "http://example.com/geoserver/wfs")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.ReplaceDescriptors(descs())
	s.Toggle("b", true)

	r := &fakeRenderer{failFor: map[string]error{"a": errors.New("tile store unreachable")}}
	builder := ogc.NewBuilder(rand.New(rand.NewSource(7)))
	specs, err := s.RunQuery(builder, r, model.QueryOptions{Format: "application/json", SRS: "EPSG:4326"})
	if err != nil {
		t.Fatalf("RunQuery: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("specs=%d want 2; a failed render must not drop its spec", len(specs))
	}
	if got := s.Overlays(); len(got) != 1 || got[0].Title != "B" {
		t.Fatalf("overlays=%+v want the surviving sibling only", got)
	}
	out := logBuf.String()
	if !strings.Contains(out, "overlay render failed") || !strings.Contains(out, "load features for a") {
		t.Fatalf("render failure not reported: %q", out)
	}
}

func TestSession_RunQueryEmptySelection(t *testing.T) {
	_, s := newTestSession(t, "WMS", "http://example.com/wms")
	builder := ogc.NewBuilder(rand.New(rand.NewSource(7)))

	_, err := s.RunQuery(builder, &fakeRenderer{}, model.QueryOptions{Format: "image/png", SRS: "EPSG:4326"})
	var cerr *model.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("err=%v want ConfigurationError", err)
	}
}
