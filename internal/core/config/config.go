package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr     string
	LogLevel string

	// Capabilities document cache
	CacheDriver    string // redis or memory
	RedisAddr      string
	CapabilityTTL  time.Duration
	CacheOpTimeout time.Duration
	MemCacheSize   int
	MaxDocBytes    int64

	// Upstream fetch
	UpstreamTimeout time.Duration

	// Per-client sessions
	SessionTTL  time.Duration
	MaxSessions int

	// Defaults applied when a query omits rendering parameters
	DefaultWMSFormat string
	DefaultWFSFormat string
	DefaultSRS       string

	Invalidation InvalidationCfg
}

// FromEnv builds the runtime configuration from environment variables.
func FromEnv() Config {
	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		CacheDriver:    strings.ToLower(getenv("CACHE_DRIVER", "memory")),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		CapabilityTTL:  getduration("CAPABILITY_TTL", 5*time.Minute),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		MemCacheSize:   getint("MEM_CACHE_SIZE", 256),
		MaxDocBytes:    getint64("MAX_DOC_BYTES", 16<<20),

		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		SessionTTL:     getduration("SESSION_TTL", 30*time.Minute),
		MaxSessions:    getint("MAX_SESSIONS", 1024),

		DefaultWMSFormat: getenv("DEFAULT_WMS_FORMAT", "image/png"),
		DefaultWFSFormat: getenv("DEFAULT_WFS_FORMAT", "application/json"),
		DefaultSRS:       getenv("DEFAULT_SRS", "EPSG:4326"),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "capabilities-invalidation"),
			GroupID: getenv("KAFKA_GROUP_ID", "capcache-invalidator"),
		},
	}
}

// fileOverlay mirrors Config for YAML decoding; durations are strings in
// time.ParseDuration syntax. Only fields present in the file are applied.
type fileOverlay struct {
	Addr     *string `yaml:"addr"`
	LogLevel *string `yaml:"logLevel"`

	CacheDriver    *string `yaml:"cacheDriver"`
	RedisAddr      *string `yaml:"redisAddr"`
	CapabilityTTL  *string `yaml:"capabilityTtl"`
	CacheOpTimeout *string `yaml:"cacheOpTimeout"`
	MemCacheSize   *int    `yaml:"memCacheSize"`
	MaxDocBytes    *int64  `yaml:"maxDocBytes"`

	UpstreamTimeout *string `yaml:"upstreamTimeout"`

	SessionTTL  *string `yaml:"sessionTtl"`
	MaxSessions *int    `yaml:"maxSessions"`

	DefaultWMSFormat *string `yaml:"defaultWmsFormat"`
	DefaultWFSFormat *string `yaml:"defaultWfsFormat"`
	DefaultSRS       *string `yaml:"defaultSrs"`

	Invalidation *struct {
		Enabled *bool   `yaml:"enabled"`
		Brokers *string `yaml:"brokers"`
		Topic   *string `yaml:"topic"`
		GroupID *string `yaml:"groupId"`
	} `yaml:"invalidation"`
}

// Load returns FromEnv overlaid with a YAML config file when path is
// non-empty. File values win over environment defaults.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ov fileOverlay
	if err := yaml.NewDecoder(f).Decode(&ov); err != nil {
		return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
	}
	if err := apply(&cfg, ov); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func apply(cfg *Config, ov fileOverlay) error {
	setstr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setdur := func(dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("duration %q: %w", *src, err)
		}
		*dst = d
		return nil
	}

	setstr(&cfg.Addr, ov.Addr)
	setstr(&cfg.LogLevel, ov.LogLevel)
	setstr(&cfg.CacheDriver, ov.CacheDriver)
	setstr(&cfg.RedisAddr, ov.RedisAddr)
	if err := setdur(&cfg.CapabilityTTL, ov.CapabilityTTL); err != nil {
		return err
	}
	if err := setdur(&cfg.CacheOpTimeout, ov.CacheOpTimeout); err != nil {
		return err
	}
	if ov.MemCacheSize != nil {
		cfg.MemCacheSize = *ov.MemCacheSize
	}
	if ov.MaxDocBytes != nil {
		cfg.MaxDocBytes = *ov.MaxDocBytes
	}
	if err := setdur(&cfg.UpstreamTimeout, ov.UpstreamTimeout); err != nil {
		return err
	}
	if err := setdur(&cfg.SessionTTL, ov.SessionTTL); err != nil {
		return err
	}
	if ov.MaxSessions != nil {
		cfg.MaxSessions = *ov.MaxSessions
	}
	setstr(&cfg.DefaultWMSFormat, ov.DefaultWMSFormat)
	setstr(&cfg.DefaultWFSFormat, ov.DefaultWFSFormat)
	setstr(&cfg.DefaultSRS, ov.DefaultSRS)

	if ov.Invalidation != nil {
		if ov.Invalidation.Enabled != nil {
			cfg.Invalidation.Enabled = *ov.Invalidation.Enabled
		}
		setstr(&cfg.Invalidation.Brokers, ov.Invalidation.Brokers)
		setstr(&cfg.Invalidation.Topic, ov.Invalidation.Topic)
		setstr(&cfg.Invalidation.GroupID, ov.Invalidation.GroupID)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
