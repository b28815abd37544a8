// Package capcache caches raw capabilities documents per server so repeated
// layer browsing does not hammer upstream OGC servers.
package capcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/model"
)

// Store is the document cache. A miss is (nil, false, nil); store failures
// are errors the caller degrades to a plain fetch, never fatal.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

// Key builds the cache key for one (service kind, server URL) pair. The
// sanitized prefix keeps keys greppable in redis; the hash carries the full
// URL including query parameters.
func Key(kind model.ServiceKind, serverURL string) string {
	u := strings.TrimSpace(serverURL)
	safe := sanitizeForKey(u)
	const maxURLTextLen = 120
	if len(safe) > maxURLTextLen {
		safe = safe[:maxURLTextLen]
	}
	return fmt.Sprintf("caps:%s:%s:%016x", kind, safe, xxhash.Sum64String(u))
}

func sanitizeForKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '.' || r == '/':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
