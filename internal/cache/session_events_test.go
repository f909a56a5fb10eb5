package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stemsi/mathcourse-portal/internal/model"
)

func TestDecodeSessionEvent(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw, _ := json.Marshal(model.SessionEvent{Kind: model.SessionEventRevoked, At: at})

	ev, err := DecodeSessionEvent(string(raw))
	if err != nil {
		t.Fatalf("DecodeSessionEvent: %v", err)
	}
	if ev.Kind != model.SessionEventRevoked || !ev.At.Equal(at) {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if _, err := DecodeSessionEvent("not json"); err == nil {
		t.Fatal("expected decode error")
	}
}
