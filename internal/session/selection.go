package session

import (
	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

// Selection tracks the checked subset of the last-parsed layer descriptors.
// The active bounding box follows the most recently toggled-on layer rather
// than a union of all checked layers.
type Selection struct {
	descriptors []model.LayerDescriptor
	byName      map[string]model.LayerDescriptor
	checked     map[string]bool
	history     []string // toggle-on order, oldest first
}

func NewSelection() *Selection {
	return &Selection{
		byName:  map[string]model.LayerDescriptor{},
		checked: map[string]bool{},
	}
}

// Reset replaces the descriptor set and auto-checks the first descriptor in
// document order. Returns the auto-checked name, or "" when the set is empty.
func (s *Selection) Reset(descriptors []model.LayerDescriptor) string {
	s.descriptors = descriptors
	s.byName = make(map[string]model.LayerDescriptor, len(descriptors))
	s.checked = map[string]bool{}
	s.history = nil
	for _, d := range descriptors {
		s.byName[d.Name] = d
	}
	if len(descriptors) == 0 {
		return ""
	}
	first := descriptors[0].Name
	s.Select(first)
	return first
}

// Select checks a layer. Names not present in the current descriptor set are
// ignored; the UI only offers checkboxes for known descriptors, so an unknown
// name is stale, not an error.
func (s *Selection) Select(name string) {
	if _, ok := s.byName[name]; !ok {
		return
	}
	if s.checked[name] {
		s.removeFromHistory(name)
	}
	s.checked[name] = true
	s.history = append(s.history, name)
}

func (s *Selection) Deselect(name string) {
	if !s.checked[name] {
		return
	}
	delete(s.checked, name)
	s.removeFromHistory(name)
}

func (s *Selection) removeFromHistory(name string) {
	for i, n := range s.history {
		if n == name {
			s.history = append(s.history[:i], s.history[i+1:]...)
			return
		}
	}
}

// Checked returns the checked descriptors in toggle-on order, which is the
// order query specs are issued in.
func (s *Selection) Checked() []model.LayerDescriptor {
	out := make([]model.LayerDescriptor, 0, len(s.history))
	for _, n := range s.history {
		out = append(out, s.byName[n])
	}
	return out
}

// ActiveBBox returns the bounding box of the most recently toggled-on layer
// still checked, or nil when nothing is checked or that layer has no box.
// When the latest toggle is deselected the next most recent one takes over.
func (s *Selection) ActiveBBox() *model.BBox {
	if len(s.history) == 0 {
		return nil
	}
	d := s.byName[s.history[len(s.history)-1]]
	return d.BoundingBox
}
