package session

import (
	"log/slog"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

// logRenderer is the gateway-side stand-in for the map widget: the browser
// does the actual drawing from the returned specs, so the gateway's handles
// only keep the lifecycle observable in the logs.
type logRenderer struct {
	logger *slog.Logger
}

func NewLogRenderer(logger *slog.Logger) Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logRenderer{logger: logger}
}

func (r *logRenderer) Render(spec model.RequestSpec) (Overlay, error) {
	r.logger.Debug("overlay rendered",
		"service", string(spec.Service), "layer", spec.Layer, "url", spec.URL)
	return &logOverlay{logger: r.logger, layer: spec.Layer}, nil
}

type logOverlay struct {
	logger *slog.Logger
	layer  string
}

func (o *logOverlay) SetVisible(visible bool) {
	o.logger.Debug("overlay visibility", "layer", o.layer, "visible", visible)
}

func (o *logOverlay) Remove() {
	o.logger.Debug("overlay removed", "layer", o.layer)
}
