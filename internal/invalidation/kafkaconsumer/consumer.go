package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openmaplab/ogc-layer-gateway/internal/capcache"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
	obs "github.com/openmaplab/ogc-layer-gateway/internal/core/observability"
	"github.com/openmaplab/ogc-layer-gateway/internal/invalidation"
)

// Consumer applies capabilities-invalidation events to the document cache.
type Consumer struct {
	cfg    Config
	logger *slog.Logger
	cache  capcache.Store
	dedupe *eventDedupe
}

func New(cfg Config, logger *slog.Logger, cache capcache.Store) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		cache:  cache,
		dedupe: newEventDedupe(cfg.DedupeSize),
	}
}

// Start consumes invalidation events until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache dependency")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err,
					"topic", c.cfg.Topic)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne decodes, validates and applies a single event.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError("decode")
		c.logger.Error("invalidation event decode failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		// malformed events are logged and skipped, not retried
		obs.IncKafkaConsumerError("validate")
		c.logger.Warn("invalid invalidation event skipped", "err", err)
		return nil
	}

	kind, err := model.ParseServiceKind(ev.Service)
	if err != nil {
		obs.IncKafkaConsumerError("validate")
		return nil
	}
	key := capcache.Key(kind, ev.ServerURL)

	if !c.dedupe.shouldApply(key, ev.TS) {
		c.logger.Debug("stale invalidation event skipped",
			"server_url", ev.ServerURL, "ts", ev.TS)
		return nil
	}

	err = c.cache.Del(ctx, key)
	obs.ObserveInvalidation(ev.Op, err)
	if err != nil {
		obs.IncKafkaConsumerError("cache_del")
		c.logger.Error("cache invalidation failed", "key", key, "err", err)
		return fmt.Errorf("cache del: %w", err)
	}

	c.logger.Info("capabilities cache invalidated",
		"op", ev.Op, "service", ev.Service, "server_url", ev.ServerURL)
	return nil
}

// eventDedupe drops events older than the newest applied per key; consumer
// group rebalances can redeliver.
type eventDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, time.Time]
}

func newEventDedupe(size int) *eventDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, time.Time](size)
	return &eventDedupe{lru: c}
}

func (d *eventDedupe) shouldApply(key string, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && !ts.After(last) {
		return false
	}
	d.lru.Add(key, ts)
	return true
}
