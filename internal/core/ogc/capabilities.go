package ogc

// XML shapes for the two capabilities schema variants. Tags match on local
// element names only, so namespaced documents (wms:, ows:) decode the same
// as plain ones, and both WMS_Capabilities (1.3.0) and WMT_MS_Capabilities
// (1.1.1) roots are accepted.

type wmsCapabilities struct {
	Version    string        `xml:"version,attr"`
	Capability wmsCapability `xml:"Capability"`
}

type wmsCapability struct {
	Layers []wmsLayer `xml:"Layer"`
}

type wmsLayer struct {
	Name   string     `xml:"Name"`
	Title  string     `xml:"Title"`
	Layers []wmsLayer `xml:"Layer"`

	// The three bounding-box shapes a WMS document may carry, in extraction
	// precedence order.
	BoundingBoxes []wmsBBoxAttrs     `xml:"BoundingBox"`
	Geographic    *wmsGeographicBBox `xml:"EX_GeographicBoundingBox"`
	LatLon        *wmsBBoxAttrs      `xml:"LatLonBoundingBox"`
}

type wmsBBoxAttrs struct {
	MinX string `xml:"minx,attr"`
	MinY string `xml:"miny,attr"`
	MaxX string `xml:"maxx,attr"`
	MaxY string `xml:"maxy,attr"`
}

type wmsGeographicBBox struct {
	West  string `xml:"westBoundLongitude"`
	East  string `xml:"eastBoundLongitude"`
	South string `xml:"southBoundLatitude"`
	North string `xml:"northBoundLatitude"`
}

type wfsFeatureType struct {
	Name  string        `xml:"Name"`
	Title string        `xml:"Title"`
	WGS84 *wfsWGS84BBox `xml:"WGS84BoundingBox"`
}

type wfsWGS84BBox struct {
	LowerCorner string `xml:"LowerCorner"`
	UpperCorner string `xml:"UpperCorner"`
}
