package invalidation

import (
	"encoding/json"
	"testing"
	"time"
)

func validEvent() Event {
	return Event{
		Version:   1,
		Op:        "refresh",
		Service:   "WMS",
		ServerURL: "http://example.com/geoserver/wms",
		TS:        time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvent_Validate(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Event)
	}{
		{"version", func(e *Event) { e.Version = 2 }},
		{"op", func(e *Event) { e.Op = "delete" }},
		{"service", func(e *Event) { e.Service = "WCS" }},
		{"server_url", func(e *Event) { e.ServerURL = "  " }},
		{"ts", func(e *Event) { e.TS = time.Time{} }},
	}
	for _, c := range cases {
		ev := validEvent()
		c.mutate(&ev)
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestEvent_RoundTripsThroughJSON(t *testing.T) {
	in := validEvent()
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip changed event: %+v", out)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("validate after round trip: %v", err)
	}
}
