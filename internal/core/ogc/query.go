package ogc

import (
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

const (
	wfsQueryVersion        = "1.0.0"
	wfsCapabilitiesVersion = "2.0.0"

	// Channels are drawn from [0,200) so fills stay distinguishable against
	// light basemaps.
	colorChannelBound = 200

	strokeOpacity = 1.0
	fillOpacity   = 0.2
	markerOpacity = 0.8
)

// CapabilitiesURL builds the GetCapabilities request for a server, merging
// the protocol parameters into any query parameters already present on the
// base URL.
func CapabilitiesURL(kind model.ServiceKind, baseURL string) (string, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("service", string(kind))
	q.Set("request", "GetCapabilities")
	if kind == model.ServiceWFS {
		q.Set("version", wfsCapabilitiesVersion)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SwitchServicePath rewrites a server URL's trailing /wms or /wfs path
// segment to match the given service kind. URLs ending in neither are
// returned unchanged.
func SwitchServicePath(rawURL string, kind model.ServiceKind) string {
	base, query, hasQuery := strings.Cut(rawURL, "?")
	want := "/" + strings.ToLower(string(kind))
	switch {
	case strings.HasSuffix(base, "/wms"), strings.HasSuffix(base, "/wfs"):
		base = base[:len(base)-4] + want
	default:
		return rawURL
	}
	if hasQuery {
		return base + "?" + query
	}
	return base
}

// Builder constructs per-layer request specs. The random source only feeds
// the cosmetic WFS layer colors; pass a seeded source for deterministic
// tests. One Builder is shared across all HTTP handlers and *rand.Rand is
// not concurrency-safe, so draws go through the mutex.
type Builder struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewBuilder(rng *rand.Rand) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{rng: rng}
}

// BuildQueries emits one RequestSpec per layer, each an independently
// toggleable overlay rather than a single batched multi-layer request. An
// empty layer slice yields an empty result; callers guard that earlier with
// a user-facing warning.
func (b *Builder) BuildQueries(kind model.ServiceKind, baseURL string, layers []model.LayerDescriptor, opts model.QueryOptions) ([]model.RequestSpec, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}

	specs := make([]model.RequestSpec, 0, len(layers))
	for _, l := range layers {
		spec := model.RequestSpec{
			Service: kind,
			Layer:   l.Name,
			Title:   l.Title,
			Format:  opts.Format,
		}
		q := u.Query()
		switch kind {
		case model.ServiceWMS:
			q.Set("LAYERS", l.Name)
			q.Set("FORMAT", opts.Format)
			q.Set("SRS", opts.SRS)
		case model.ServiceWFS:
			q.Set("service", "WFS")
			q.Set("version", wfsQueryVersion)
			q.Set("request", "GetFeature")
			q.Set("typeName", l.Name)
			q.Set("outputFormat", opts.Format)
			q.Set("srsName", opts.SRS)
			spec.Style = b.randomStyle()
		default:
			return nil, &model.ConfigurationError{Reason: "unknown service kind " + string(kind)}
		}
		qu := *u
		qu.RawQuery = q.Encode()
		spec.URL = qu.String()
		specs = append(specs, spec)
	}
	return specs, nil
}

func (b *Builder) randomStyle() *model.LayerStyle {
	b.mu.Lock()
	r, g, bl := b.rng.Intn(colorChannelBound), b.rng.Intn(colorChannelBound), b.rng.Intn(colorChannelBound)
	b.mu.Unlock()
	return &model.LayerStyle{
		R:             r,
		G:             g,
		B:             bl,
		StrokeOpacity: strokeOpacity,
		FillOpacity:   fillOpacity,
		MarkerOpacity: markerOpacity,
	}
}

func parseBase(baseURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, &model.ConfigurationError{Reason: "invalid server url: " + err.Error()}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &model.ConfigurationError{Reason: "server url must be absolute (http or https)"}
	}
	return u, nil
}
