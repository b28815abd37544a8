// Package ogc implements the protocol-facing pieces of the gateway:
// capabilities parsing and request URL construction for WMS and WFS.
package ogc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

// ParseCapabilities extracts layer descriptors from a raw capabilities
// document. Descriptors come back in document order; nodes missing a name or
// title are dropped. Malformed XML yields a model.ParseError carrying the raw
// document.
func ParseCapabilities(doc []byte, kind model.ServiceKind) ([]model.LayerDescriptor, error) {
	switch kind {
	case model.ServiceWMS:
		return parseWMS(doc)
	case model.ServiceWFS:
		return parseWFS(doc)
	default:
		return nil, &model.ConfigurationError{Reason: "unknown service kind " + string(kind)}
	}
}

func parseWMS(doc []byte) ([]model.LayerDescriptor, error) {
	var caps wmsCapabilities
	if err := xml.Unmarshal(doc, &caps); err != nil {
		return nil, &model.ParseError{Err: err, Raw: doc}
	}

	// Servers nest layers at different depths: prefer layers that sit under
	// a parent layer, fall back to the capability root's direct children.
	candidates := nestedLayers(caps.Capability.Layers)
	if len(candidates) == 0 {
		candidates = caps.Capability.Layers
	}

	out := make([]model.LayerDescriptor, 0, len(candidates))
	for _, l := range candidates {
		name := strings.TrimSpace(l.Name)
		title := strings.TrimSpace(l.Title)
		if name == "" || title == "" {
			// group or partial layer node
			continue
		}
		out = append(out, model.LayerDescriptor{
			Name:        name,
			Title:       title,
			BoundingBox: wmsBBox(l),
		})
	}
	return out, nil
}

// nestedLayers collects every layer that has a parent layer, in document
// order.
func nestedLayers(top []wmsLayer) []wmsLayer {
	var out []wmsLayer
	for _, l := range top {
		out = append(out, collectChildren(l)...)
	}
	return out
}

func collectChildren(l wmsLayer) []wmsLayer {
	var out []wmsLayer
	for _, c := range l.Layers {
		out = append(out, c)
		out = append(out, collectChildren(c)...)
	}
	return out
}

// wmsBBox applies the three-shape precedence: BoundingBox attributes, then
// the geographic bounds element, then the legacy LatLonBoundingBox. A shape
// whose values do not parse as numbers counts as no box.
func wmsBBox(l wmsLayer) *model.BBox {
	if len(l.BoundingBoxes) > 0 {
		return bboxFromAttrs(l.BoundingBoxes[0])
	}
	if g := l.Geographic; g != nil {
		return bboxFromCorners(g.West, g.South, g.East, g.North)
	}
	if l.LatLon != nil {
		return bboxFromAttrs(*l.LatLon)
	}
	return nil
}

func bboxFromAttrs(a wmsBBoxAttrs) *model.BBox {
	return bboxFromCorners(a.MinX, a.MinY, a.MaxX, a.MaxY)
}

func bboxFromCorners(minX, minY, maxX, maxY string) *model.BBox {
	vals := [4]float64{}
	for i, s := range [4]string{minX, minY, maxX, maxY} {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		vals[i] = f
	}
	return &model.BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
}

// parseWFS scans for FeatureType elements anywhere in the document; WFS
// servers put them under FeatureTypeList but no nesting is assumed.
func parseWFS(doc []byte) ([]model.LayerDescriptor, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var out []model.LayerDescriptor
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &model.ParseError{Err: err, Raw: doc}
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "FeatureType" {
			continue
		}
		var ft wfsFeatureType
		if err := dec.DecodeElement(&ft, &start); err != nil {
			return nil, &model.ParseError{Err: err, Raw: doc}
		}
		name := strings.TrimSpace(ft.Name)
		title := strings.TrimSpace(ft.Title)
		if name == "" || title == "" {
			continue
		}
		out = append(out, model.LayerDescriptor{
			Name:        name,
			Title:       title,
			BoundingBox: wfsBBox(ft.WGS84),
		})
	}
	return out, nil
}

// wfsBBox reads "lon lat" corner pairs. A bounding-box node missing either
// corner yields no box.
func wfsBBox(b *wfsWGS84BBox) *model.BBox {
	if b == nil {
		return nil
	}
	lower := strings.Fields(b.LowerCorner)
	upper := strings.Fields(b.UpperCorner)
	if len(lower) < 2 || len(upper) < 2 {
		return nil
	}
	minX, err1 := strconv.ParseFloat(lower[0], 64)
	minY, err2 := strconv.ParseFloat(lower[1], 64)
	maxX, err3 := strconv.ParseFloat(upper[0], 64)
	maxY, err4 := strconv.ParseFloat(upper[1], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return nil
	}
	return &model.BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
