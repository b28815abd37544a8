package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openmaplab/ogc-layer-gateway/internal/capcache"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

func TestFetchCapabilities_CachesDocument(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("request") != "GetCapabilities" {
			t.Errorf("missing request param: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("service") != "WMS" {
			t.Errorf("service=%q", r.URL.Query().Get("service"))
		}
		_, _ = w.Write([]byte(`<WMS_Capabilities/>`))
	}))
	defer srv.Close()

	e := New(nil, srv.Client(), capcache.NewMemory(8, time.Minute), time.Minute, 0)
	ctx := context.Background()

	doc, err := e.FetchCapabilities(ctx, model.ServiceWMS, srv.URL+"/wms")
	if err != nil {
		t.Fatalf("FetchCapabilities: %v", err)
	}
	if string(doc) != `<WMS_Capabilities/>` {
		t.Fatalf("doc=%q", doc)
	}

	if _, err := e.FetchCapabilities(ctx, model.ServiceWMS, srv.URL+"/wms"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("upstream called %d times, want 1 (cache hit)", n)
	}
}

func TestFetchCapabilities_WFSVersionParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("version") != "2.0.0" {
			t.Errorf("version=%q want 2.0.0", r.URL.Query().Get("version"))
		}
		_, _ = w.Write([]byte(`<WFS_Capabilities/>`))
	}))
	defer srv.Close()

	e := New(nil, srv.Client(), nil, time.Minute, 0)
	if _, err := e.FetchCapabilities(context.Background(), model.ServiceWFS, srv.URL+"/wfs"); err != nil {
		t.Fatalf("FetchCapabilities: %v", err)
	}
}

// brokenStore fails every operation; the executor must treat that as
// degraded, not as a miss or a fatal error.
type brokenStore struct {
	gets atomic.Int64
}

func (b *brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	b.gets.Add(1)
	return nil, false, errors.New("store unavailable")
}
func (b *brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store unavailable")
}
func (b *brokenStore) Del(context.Context, ...string) error { return errors.New("store unavailable") }
func (b *brokenStore) Close() error                         { return nil }

func TestFetchCapabilities_CacheFailureDegradesToFetch(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<WMS_Capabilities/>`))
	}))
	defer srv.Close()

	store := &brokenStore{}
	e := New(nil, srv.Client(), store, time.Minute, 0)

	doc, err := e.FetchCapabilities(context.Background(), model.ServiceWMS, srv.URL+"/wms")
	if err != nil {
		t.Fatalf("FetchCapabilities: %v", err)
	}
	if string(doc) != `<WMS_Capabilities/>` {
		t.Fatalf("doc=%q", doc)
	}
	if store.gets.Load() != 1 || calls.Load() != 1 {
		t.Fatalf("gets=%d upstream=%d, cache failure must fall through to one fetch",
			store.gets.Load(), calls.Load())
	}
}

func TestFetchCapabilities_NonOKIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	e := New(nil, srv.Client(), capcache.NewMemory(8, time.Minute), time.Minute, 0)
	_, err := e.FetchCapabilities(context.Background(), model.ServiceWMS, srv.URL+"/wms")
	var nerr *model.NetworkError
	if !errors.As(err, &nerr) || nerr.Status != http.StatusBadGateway {
		t.Fatalf("err=%v want NetworkError 502", err)
	}
}

func TestFetchCapabilities_BadBaseURL(t *testing.T) {
	e := New(nil, http.DefaultClient, nil, time.Minute, 0)
	_, err := e.FetchCapabilities(context.Background(), model.ServiceWMS, "not a url")
	var cerr *model.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("err=%v want ConfigurationError", err)
	}
}
