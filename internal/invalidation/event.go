// Package invalidation defines the wire format for capabilities cache
// invalidation events. Publishing pipelines emit one when a server's layer
// catalog changes so clients re-fetch instead of waiting out the TTL.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

type Event struct {
	Version   int       `json:"version"`
	Op        string    `json:"op"` // refresh or remove
	Service   string    `json:"service"`
	ServerURL string    `json:"server_url"`
	TS        time.Time `json:"ts"`
	Source    string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "refresh", "remove":
	default:
		return fmt.Errorf("op must be refresh|remove")
	}
	switch strings.ToUpper(strings.TrimSpace(e.Service)) {
	case "WMS", "WFS":
	default:
		return fmt.Errorf("service must be WMS or WFS")
	}
	if strings.TrimSpace(e.ServerURL) == "" {
		return fmt.Errorf("server_url is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
