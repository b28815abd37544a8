// Package executor fetches capabilities documents from upstream OGC servers,
// fronted by the document cache.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmaplab/ogc-layer-gateway/internal/capcache"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/observability"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/ogc"
)

type Interface interface {
	FetchCapabilities(ctx context.Context, kind model.ServiceKind, baseURL string) ([]byte, error)
}

type Executor struct {
	logger   *slog.Logger
	client   *http.Client
	cache    capcache.Store
	ttl      time.Duration
	maxDoc   int64
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, cache capcache.Store, ttl time.Duration, maxDocBytes int64) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDocBytes <= 0 {
		maxDocBytes = 16 << 20
	}
	return &Executor{
		logger:   logger,
		client:   client,
		cache:    cache,
		ttl:      ttl,
		maxDoc:   maxDocBytes,
		startNow: time.Now,
	}
}

// FetchCapabilities returns the raw capabilities document for a server,
// from cache when fresh. Cache trouble degrades to a plain fetch; upstream
// trouble is a model.NetworkError the caller can retry.
func (e *Executor) FetchCapabilities(ctx context.Context, kind model.ServiceKind, baseURL string) ([]byte, error) {
	reqURL, err := ogc.CapabilitiesURL(kind, baseURL)
	if err != nil {
		return nil, err
	}

	key := capcache.Key(kind, baseURL)
	if e.cache != nil {
		doc, ok, cerr := e.cache.Get(ctx, key)
		switch {
		case cerr != nil:
			// store trouble is not a miss; keep the hit/miss ratio honest
			e.logger.Warn("capabilities cache get failed", "key", key, "err", cerr)
		case ok:
			observability.IncCacheHit()
			e.logger.Debug("capabilities cache hit", "key", key)
			return doc, nil
		default:
			observability.IncCacheMiss()
		}
	}

	doc, err := e.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if cerr := e.cache.Set(ctx, key, doc, e.ttl); cerr != nil {
			e.logger.Warn("capabilities cache set failed", "key", key, "err", cerr)
		}
	}
	return doc, nil
}

func (e *Executor) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &model.NetworkError{URL: reqURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency("capabilities", dur.Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		e.logger.Warn("capabilities fetch failed",
			"url", reqURL, "status", resp.StatusCode, "body", string(b))
		return nil, &model.NetworkError{URL: reqURL, Status: resp.StatusCode}
	}

	doc, err := io.ReadAll(io.LimitReader(resp.Body, e.maxDoc))
	if err != nil {
		return nil, &model.NetworkError{URL: reqURL, Err: fmt.Errorf("read body: %w", err)}
	}
	e.logger.Debug("capabilities fetched",
		"url", reqURL, "bytes", len(doc), "duration", dur.String())
	return doc, nil
}
