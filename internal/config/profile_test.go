package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/untoldecay/gram/internal/config"
)

// testRelayURL derives a unique, reproducible-looking relay hostname per
// test run, the same namespaced-UUID idiom used elsewhere in the corpus for
// throwaway identifiers that still need to look like real addresses.
func testRelayURL(t *testing.T) string {
	t.Helper()
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(t.Name()))
	return "https://" + id.String() + ".relay.example"
}

func TestExportImportProfileRoundTrip(t *testing.T) {
	relay := testRelayURL(t)
	p := config.Profile{BroadcastRelay: relay, BroadcastPollInterval: "45s"}

	data, err := config.ExportProfileTOML(p)
	if err != nil {
		t.Fatalf("ExportProfileTOML: %v", err)
	}

	if err := config.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	got, err := config.ImportProfileTOML(data)
	if err != nil {
		t.Fatalf("ImportProfileTOML: %v", err)
	}
	if got.BroadcastRelay != relay {
		t.Errorf("relay = %q, want %q", got.BroadcastRelay, relay)
	}
	if got.BroadcastPollInterval != "45s" {
		t.Errorf("poll interval = %q, want 45s", got.BroadcastPollInterval)
	}

	if current := config.CurrentProfile(); current.BroadcastRelay != relay {
		t.Errorf("CurrentProfile relay = %q, want %q", current.BroadcastRelay, relay)
	}
}

func TestWriteDefaultFileThenReadFileDirect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.WriteDefaultFile(path); err != nil {
		t.Fatalf("WriteDefaultFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}

	// A freshly written default carries no broadcast relay yet.
	p, err := config.ReadFileDirect(path)
	if err != nil {
		t.Fatalf("ReadFileDirect: %v", err)
	}
	if p.BroadcastRelay != "" {
		t.Errorf("expected empty default relay, got %q", p.BroadcastRelay)
	}
}
