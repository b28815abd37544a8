package capcache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

func TestKey_StableAndDistinct(t *testing.T) {
	a := Key(model.ServiceWMS, "http://example.com/geoserver/wms")
	b := Key(model.ServiceWMS, "http://example.com/geoserver/wms")
	if a != b {
		t.Fatalf("key not stable: %q vs %q", a, b)
	}
	if c := Key(model.ServiceWFS, "http://example.com/geoserver/wms"); c == a {
		t.Fatalf("kind must distinguish keys")
	}
	if c := Key(model.ServiceWMS, "http://example.com/geoserver/wms?map=x"); c == a {
		t.Fatalf("query parameters must distinguish keys")
	}
	if !strings.HasPrefix(a, "caps:WMS:") {
		t.Fatalf("key=%q", a)
	}
}

func TestKey_SanitizesLongAndOddURLs(t *testing.T) {
	long := "http://example.com/" + strings.Repeat("deep/", 100) + "wms?auth=a b\tc"
	k := Key(model.ServiceWMS, long)
	if strings.ContainsAny(k, " \t") {
		t.Fatalf("key carries whitespace: %q", k)
	}
	if len(k) > 160 {
		t.Fatalf("key length %d not capped", len(k))
	}
}

func TestMemory_SetGetDelAndTTL(t *testing.T) {
	m := NewMemory(8, time.Minute)
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}

	if err := m.Set(ctx, "k", []byte("<doc/>"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	doc, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(doc) != "<doc/>" {
		t.Fatalf("Get: doc=%q ok=%v err=%v", doc, ok, err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("entry must expire after its TTL")
	}

	_ = m.Set(ctx, "k2", []byte("x"), time.Minute)
	if err := m.Del(ctx, "k2", "unknown"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k2"); ok {
		t.Fatalf("deleted entry still present")
	}
}
