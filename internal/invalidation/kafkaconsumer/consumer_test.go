package kafkaconsumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/openmaplab/ogc-layer-gateway/internal/capcache"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
	"github.com/openmaplab/ogc-layer-gateway/internal/invalidation"
)

func message(t *testing.T, ev invalidation.Event) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "capabilities-invalidation", Value: b}
}

func TestProcessOne_EvictsCachedDocument(t *testing.T) {
	cache := capcache.NewMemory(8, time.Minute)
	ctx := context.Background()

	key := capcache.Key(model.ServiceWMS, "http://example.com/geoserver/wms")
	if err := cache.Set(ctx, key, []byte("<WMS_Capabilities/>"), time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	c := New(NewConfig("localhost:9092", "capabilities-invalidation", "g"), nil, cache)
	ev := invalidation.Event{
		Version:   1,
		Op:        "refresh",
		Service:   "WMS",
		ServerURL: "http://example.com/geoserver/wms",
		TS:        time.Now(),
	}
	if err := c.ProcessOne(ctx, message(t, ev)); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, key); ok {
		t.Fatalf("cached document not evicted")
	}
}

func TestProcessOne_SkipsStaleAndInvalid(t *testing.T) {
	cache := capcache.NewMemory(8, time.Minute)
	ctx := context.Background()
	c := New(NewConfig("localhost:9092", "t", "g"), nil, cache)

	now := time.Now()
	fresh := invalidation.Event{
		Version: 1, Op: "refresh", Service: "WFS",
		ServerURL: "http://example.com/wfs", TS: now,
	}
	if err := c.ProcessOne(ctx, message(t, fresh)); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	// an older timestamp for the same server is a redelivery
	key := capcache.Key(model.ServiceWFS, "http://example.com/wfs")
	if err := cache.Set(ctx, key, []byte("doc"), time.Minute); err != nil {
		t.Fatalf("seed: %v", err)
	}
	stale := fresh
	stale.TS = now.Add(-time.Minute)
	if err := c.ProcessOne(ctx, message(t, stale)); err != nil {
		t.Fatalf("ProcessOne stale: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, key); !ok {
		t.Fatalf("stale event must not evict")
	}

	// invalid events are skipped without error so the group advances
	bad := fresh
	bad.Op = "drop-table"
	if err := c.ProcessOne(ctx, message(t, bad)); err != nil {
		t.Fatalf("ProcessOne invalid: %v", err)
	}

	if err := c.ProcessOne(ctx, &sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatalf("undecodable payload must error for redelivery")
	}
}
