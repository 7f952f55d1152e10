package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tbarrett/upswatch/internal/event"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewHistoryStore_Usable(t *testing.T) {
	s := NewHistoryStore(t)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
	if _, err := s.ListSamples(context.Background(), "ups1", 1); err != nil {
		t.Fatalf("ListSamples: %v", err)
	}
}

func TestEventRecorder_CapturesAndFilters(t *testing.T) {
	bus := event.NewBus(nil)
	rec, unsub := RecordEvents(bus)

	bus.Publish(context.Background(), event.New("a.topic", "test", nil))
	bus.Publish(context.Background(), event.New("b.topic", "test", nil))

	if rec.Len() != 2 {
		t.Fatalf("Len = %d, want 2", rec.Len())
	}
	if got := rec.ByTopic("a.topic"); len(got) != 1 {
		t.Errorf("ByTopic(a.topic) = %d events, want 1", len(got))
	}

	unsub()
	bus.Publish(context.Background(), event.New("c.topic", "test", nil))
	if rec.Len() != 2 {
		t.Errorf("Len = %d after unsubscribe, want 2", rec.Len())
	}
}

func TestLoadSnapshot(t *testing.T) {
	snap := LoadSnapshot(t, filepath.Join("testdata", "snapshot.yaml"))
	if snap.Device != "cyberpower" {
		t.Errorf("Device = %q, want %q", snap.Device, "cyberpower")
	}
	if snap.Status != "OL CHRG" {
		t.Errorf("Status = %q, want %q", snap.Status, "OL CHRG")
	}
	if snap.Variables["battery.charge"] != "100" {
		t.Errorf("battery.charge = %q, want %q", snap.Variables["battery.charge"], "100")
	}
}
