// Package model defines core domain types shared across the gateway.
package model

import (
	"fmt"
	"strings"
)

// ServiceKind selects which OGC protocol a server is spoken to with.
type ServiceKind string

const (
	ServiceWMS ServiceKind = "WMS"
	ServiceWFS ServiceKind = "WFS"
)

func ParseServiceKind(s string) (ServiceKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WMS":
		return ServiceWMS, nil
	case "WFS":
		return ServiceWFS, nil
	default:
		return "", &ConfigurationError{Reason: fmt.Sprintf("unknown service kind %q (want WMS or WFS)", s)}
	}
}

// BBox is a geographic rectangle in decimal degrees, axis order lon/lat.
type BBox struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// LayerDescriptor is one advertised layer or feature type from a
// capabilities document. BoundingBox is nil when the document carries no
// usable box for the layer; it is never partially populated.
type LayerDescriptor struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	BoundingBox *BBox  `json:"boundingBox,omitempty"`
}

// LayerStyle carries the per-layer vector styling for WFS overlays. Channels
// are 0-199; opacities are fixed by the rendering contract.
type LayerStyle struct {
	R             int     `json:"r"`
	G             int     `json:"g"`
	B             int     `json:"b"`
	StrokeOpacity float64 `json:"strokeOpacity"`
	FillOpacity   float64 `json:"fillOpacity"`
	MarkerOpacity float64 `json:"markerOpacity"`
}

// RequestSpec is one fully-formed request the rendering collaborator issues
// for a single layer. Style is set only for WFS feature queries.
type RequestSpec struct {
	Service ServiceKind `json:"service"`
	Layer   string      `json:"layer"`
	Title   string      `json:"title,omitempty"`
	URL     string      `json:"url"`
	Format  string      `json:"format"`
	Style   *LayerStyle `json:"style,omitempty"`
}

// QueryOptions are the rendering parameters a query is built with.
type QueryOptions struct {
	Format string
	SRS    string
}

// ConfigurationError marks caller-visible misconfiguration (bad server URL,
// empty selection). The action is blocked; nothing was attempted.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// NetworkError marks a transport failure or non-2xx upstream response.
// Retryable by re-invoking the same action.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: upstream status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError marks a malformed capabilities document. Raw keeps the response
// bytes for inspection.
type ParseError struct {
	Err error
	Raw []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse capabilities: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FeatureLoadError marks an asynchronous per-layer vector load failure. It
// never aborts sibling layer loads.
type FeatureLoadError struct {
	Layer string
	Err   error
}

func (e *FeatureLoadError) Error() string {
	return fmt.Sprintf("load features for %s: %v", e.Layer, e.Err)
}

func (e *FeatureLoadError) Unwrap() error { return e.Err }
