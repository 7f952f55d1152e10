package testutil

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

// Snapshot is a recorded device state: the raw ups.status line plus the
// variable table as reported by a real server.
type Snapshot struct {
	Device    string            `yaml:"device"`
	Status    string            `yaml:"status"`
	Variables map[string]string `yaml:"variables"`
}

// LoadSnapshot reads a YAML snapshot fixture from path.
func LoadSnapshot(t *testing.T, path string) Snapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("testutil.LoadSnapshot(%q): %v", path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		t.Fatalf("testutil.LoadSnapshot(%q): unmarshal: %v", path, err)
	}
	if snap.Variables == nil {
		snap.Variables = map[string]string{}
	}
	return snap
}
