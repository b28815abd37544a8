package session

import (
	"fmt"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

// Overlay is the rendering collaborator's handle for one displayed layer.
// The registry keeps a non-owning reference: it invokes Remove on clear but
// never disposes the handle itself.
type Overlay interface {
	SetVisible(visible bool)
	Remove()
}

// Renderer turns a request spec into a displayed overlay. Vector loads happen
// asynchronously behind the handle; load failures surface through the
// renderer's error callback as model.FeatureLoadError, never through Render's
// return.
type Renderer interface {
	Render(spec model.RequestSpec) (Overlay, error)
}

// OverlayEntry is the registry's view of one rendered overlay.
type OverlayEntry struct {
	Title   string `json:"title"`
	Visible bool   `json:"visible"`
	handle  Overlay
}

// Registry tracks rendered overlays so they can be enumerated, toggled and
// bulk-cleared. Per entry the lifecycle is Created, Visible or Hidden, then
// Removed; Removed is terminal.
type Registry struct {
	entries []*OverlayEntry
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(title string, handle Overlay) {
	r.entries = append(r.entries, &OverlayEntry{Title: title, Visible: true, handle: handle})
}

func (r *Registry) Len() int { return len(r.entries) }

// Entries returns a snapshot; handles stay private to the registry.
func (r *Registry) Entries() []OverlayEntry {
	out := make([]OverlayEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = OverlayEntry{Title: e.Title, Visible: e.Visible}
	}
	return out
}

// SetVisible flips one entry's visibility through the collaborator hook
// without removing it from tracking.
func (r *Registry) SetVisible(index int, visible bool) error {
	if index < 0 || index >= len(r.entries) {
		return fmt.Errorf("overlay index %d out of range [0,%d)", index, len(r.entries))
	}
	e := r.entries[index]
	e.Visible = visible
	if e.handle != nil {
		e.handle.SetVisible(visible)
	}
	return nil
}

// ClearAll removes every tracked overlay through the collaborator and empties
// the set. Clearing an empty registry is a no-op. Returns the number of
// removals invoked.
func (r *Registry) ClearAll() int {
	n := len(r.entries)
	for _, e := range r.entries {
		if e.handle != nil {
			e.handle.Remove()
		}
	}
	r.entries = nil
	return n
}
