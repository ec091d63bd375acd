package registry

import (
	"testing"
	"time"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/driver"
	"github.com/bile0026/shelly-exporter/internal/model"
)

func TestPutIsIdempotent(t *testing.T) {
	r := New()
	target := config.Target{Name: "a", Host: "10.0.0.1"}
	r.Put(target)
	r.Put(target)
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestReconcilePreservesPollStateForUnchangedTarget(t *testing.T) {
	r := New()
	target := config.Target{Name: "a", Host: "10.0.0.1"}
	r.Put(target)

	e, _ := r.Get(target.Key())
	e.State.ConsecutiveFailures = 3
	e.State.NextRun = time.Unix(1000, 0)

	added, removed := r.Reconcile([]config.Target{target})
	if len(added) != 0 || len(removed) != 0 {
		t.Fatalf("added=%v removed=%v, want no changes", added, removed)
	}

	e2, ok := r.Get(target.Key())
	if !ok {
		t.Fatalf("target missing after reconcile")
	}
	if e2.State.ConsecutiveFailures != 3 {
		t.Fatalf("ConsecutiveFailures = %d, want preserved 3", e2.State.ConsecutiveFailures)
	}
}

func TestReconcileAddsAndRemoves(t *testing.T) {
	r := New()
	r.Put(config.Target{Name: "a", Host: "10.0.0.1"})
	r.Put(config.Target{Name: "b", Host: "10.0.0.2"})

	added, removed := r.Reconcile([]config.Target{
		{Name: "b", Host: "10.0.0.2"},
		{Name: "c", Host: "10.0.0.3"},
	})

	if len(added) != 1 || added[0] != "c@10.0.0.3" {
		t.Fatalf("added = %v, want [c@10.0.0.3]", added)
	}
	if len(removed) != 1 || removed[0] != "a@10.0.0.1" {
		t.Fatalf("removed = %v, want [a@10.0.0.1]", removed)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
}

func TestReconcileInvalidatesCachedDriverOnCredentialsChange(t *testing.T) {
	r := New()
	target := config.Target{Name: "a", Host: "10.0.0.1", Credentials: config.Credentials{Username: "admin"}}
	r.Put(target)

	e, _ := r.Get(target.Key())
	e.State.CachedDriver = driver.NewPro4PM()
	e.State.CachedInfo = model.DeviceInfo{Model: "SPSW-104PE16EU"}
	e.State.DeviceInfoRefreshed = time.Now()

	changed := target
	changed.Credentials = config.Credentials{Username: "admin", Password: "newpass"}
	r.Reconcile([]config.Target{changed})

	e2, _ := r.Get(target.Key())
	if e2.State.CachedDriver != nil {
		t.Fatalf("expected CachedDriver to be invalidated after a credentials change")
	}
	if !e2.State.DeviceInfoRefreshed.IsZero() {
		t.Fatalf("expected DeviceInfoRefreshed to be reset after a credentials change")
	}
}

func TestReconcileKeepsCachedDriverWhenOnlyIntervalChanges(t *testing.T) {
	r := New()
	target := config.Target{Name: "a", Host: "10.0.0.1"}
	r.Put(target)

	e, _ := r.Get(target.Key())
	e.State.CachedDriver = driver.NewPro4PM()

	changed := target
	changed.PollInterval = 30 * time.Second
	r.Reconcile([]config.Target{changed})

	e2, _ := r.Get(target.Key())
	if e2.State.CachedDriver == nil {
		t.Fatalf("expected CachedDriver to survive a poll-interval-only change")
	}
	if e2.State.NextRun.Before(time.Now().Add(-time.Second)) {
		t.Fatalf("expected NextRun to be recomputed after a poll-interval change")
	}
}

func TestInsertDiscoveredSkipsExistingHost(t *testing.T) {
	r := New()
	r.Put(config.Target{Name: "existing", Host: "10.0.0.5"})

	dd := model.DiscoveredDevice{
		Address:      "10.0.0.5",
		Info:         model.DeviceInfo{Model: "SPSW-104PE16EU", Gen: 2, App: "Pro4PM", MAC: "AA:BB"},
		DiscoveredAt: time.Now(),
	}
	d := driver.NewPro4PM()
	disc := config.Discovery{NameTemplate: "{model}-{id}"}

	inserted := r.InsertDiscovered(dd, d, disc, config.Credentials{})
	if inserted {
		t.Fatalf("expected insert to be skipped for already-live host")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (no duplicate)", r.Len())
	}
}

func TestInsertDiscoveredAddsNewHostWithChannels(t *testing.T) {
	r := New()
	dd := model.DiscoveredDevice{
		Address:      "10.0.0.9",
		Info:         model.DeviceInfo{Model: "SPSW-104PE16EU", Gen: 2, App: "Pro4PM", MAC: "AABBCCDDEEFF"},
		DiscoveredAt: time.Now(),
	}
	d := driver.NewPro4PM()
	disc := config.Discovery{NameTemplate: "{model}-{id}"}

	if !r.InsertDiscovered(dd, d, disc, config.Credentials{}) {
		t.Fatalf("expected insert to succeed")
	}
	entries := r.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("Snapshot len = %d, want 1", len(entries))
	}
	if len(entries[0].Target.Channels) != 4 {
		t.Fatalf("Channels = %+v, want 4 switch channels from Pro4PM", entries[0].Target.Channels)
	}
}
