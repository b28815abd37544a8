package session

import (
	"testing"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

func descs() []model.LayerDescriptor {
	return []model.LayerDescriptor{
		{Name: "a", Title: "A", BoundingBox: &model.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}},
		{Name: "b", Title: "B", BoundingBox: &model.BBox{MinX: 2, MinY: 2, MaxX: 3, MaxY: 3}},
		{Name: "c", Title: "C"},
	}
}

func TestSelection_ResetAutoChecksFirst(t *testing.T) {
	s := NewSelection()
	if got := s.Reset(descs()); got != "a" {
		t.Fatalf("initial selection=%q want a", got)
	}
	checked := s.Checked()
	if len(checked) != 1 || checked[0].Name != "a" {
		t.Fatalf("checked=%+v", checked)
	}
	if bb := s.ActiveBBox(); bb == nil || bb.MinX != 0 {
		t.Fatalf("active bbox=%+v", bb)
	}

	if got := s.Reset(nil); got != "" {
		t.Fatalf("empty reset selected %q", got)
	}
	if s.ActiveBBox() != nil {
		t.Fatalf("active bbox must be nil after empty reset")
	}
}

func TestSelection_DeselectOnlyCheckedClearsActiveBBox(t *testing.T) {
	s := NewSelection()
	s.Reset(descs())
	s.Deselect("a")
	s.Select("b")
	s.Deselect("b")
	if bb := s.ActiveBBox(); bb != nil {
		t.Fatalf("active bbox=%+v want nil", bb)
	}
	if len(s.Checked()) != 0 {
		t.Fatalf("checked=%+v want empty", s.Checked())
	}
}

func TestSelection_LastToggleWins(t *testing.T) {
	s := NewSelection()
	s.Reset(descs())
	s.Select("b")
	if bb := s.ActiveBBox(); bb == nil || bb.MinX != 2 {
		t.Fatalf("active bbox=%+v want b's", bb)
	}

	// a layer without a box still becomes the active one
	s.Select("c")
	if bb := s.ActiveBBox(); bb != nil {
		t.Fatalf("active bbox=%+v want nil (c has no box)", bb)
	}

	// dropping the latest toggle falls back to the previous one
	s.Deselect("c")
	if bb := s.ActiveBBox(); bb == nil || bb.MinX != 2 {
		t.Fatalf("active bbox=%+v want b's after fallback", bb)
	}
}

func TestSelection_UnknownNameIsNoOp(t *testing.T) {
	s := NewSelection()
	s.Reset(descs())
	s.Select("ghost")
	s.Deselect("ghost")
	checked := s.Checked()
	if len(checked) != 1 || checked[0].Name != "a" {
		t.Fatalf("checked=%+v", checked)
	}
}

func TestSelection_CheckedFollowsToggleOrder(t *testing.T) {
	s := NewSelection()
	s.Reset(descs())
	s.Select("c")
	s.Select("b")
	got := s.Checked()
	if len(got) != 3 || got[0].Name != "a" || got[1].Name != "c" || got[2].Name != "b" {
		t.Fatalf("checked order=%+v", got)
	}
}
