package queue

import (
	"encoding/json"
	"testing"
)

type payload struct {
	Symbol string `json:"symbol"`
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[payload](json.RawMessage(`{"symbol":"NIFTY"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Symbol != "NIFTY" {
		t.Fatalf("got %q", p.Symbol)
	}

	if _, err := ParsePayload[payload](nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
	if _, err := ParsePayload[payload](json.RawMessage(`[1,2`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestKeyPrefix(t *testing.T) {
	q := NewRedisQueue(nil, nil, Config{}, WithKeyPrefix("niftypulse:queue"))
	if got := q.key("retry"); got != "niftypulse:queue:retry" {
		t.Fatalf("got %q", got)
	}
	if q.cfg.Workers != 1 || q.cfg.RetryDelay <= 0 || q.cfg.PollTimeout <= 0 {
		t.Fatalf("defaults not applied: %+v", q.cfg)
	}
}
