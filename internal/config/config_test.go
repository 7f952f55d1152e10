package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestConfigGetString(t *testing.T) {
	v := viper.New()
	v.Set("name", "test")
	cfg := New(v)

	if got := cfg.GetString("name"); got != "test" {
		t.Errorf("GetString('name') = %q, want %q", got, "test")
	}
}

func TestConfigGetInt(t *testing.T) {
	v := viper.New()
	v.Set("port", 3493)
	cfg := New(v)

	if got := cfg.GetInt("port"); got != 3493 {
		t.Errorf("GetInt('port') = %d, want %d", got, 3493)
	}
}

func TestConfigGetBool(t *testing.T) {
	v := viper.New()
	v.Set("enabled", true)
	cfg := New(v)

	if got := cfg.GetBool("enabled"); !got {
		t.Error("GetBool('enabled') = false, want true")
	}
}

func TestConfigGetDuration(t *testing.T) {
	v := viper.New()
	v.Set("interval", "2s")
	cfg := New(v)

	want := 2 * time.Second
	if got := cfg.GetDuration("interval"); got != want {
		t.Errorf("GetDuration('interval') = %v, want %v", got, want)
	}
}

func TestConfigSub(t *testing.T) {
	v := viper.New()
	v.Set("autoconnect.enabled", true)
	v.Set("autoconnect.port", 3493)
	cfg := New(v)

	sub := cfg.Sub("autoconnect")
	if sub == nil {
		t.Fatal("Sub('autoconnect') = nil")
	}
	if !sub.GetBool("enabled") {
		t.Error("sub.GetBool('enabled') = false, want true")
	}
	if got := sub.GetInt("port"); got != 3493 {
		t.Errorf("sub.GetInt('port') = %d, want %d", got, 3493)
	}
}

func TestConfigSubMissing(t *testing.T) {
	cfg := New(viper.New())

	sub := cfg.Sub("nonexistent")
	if sub == nil {
		t.Fatal("Sub('nonexistent') should return empty Config, not nil")
	}
	if got := sub.GetString("anything"); got != "" {
		t.Errorf("empty sub GetString() = %q, want empty", got)
	}
}

func TestConfigUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("host", "localhost")
	v.Set("port", 3493)
	cfg := New(v)

	var target struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if target.Host != "localhost" {
		t.Errorf("Host = %q, want %q", target.Host, "localhost")
	}
	if target.Port != 3493 {
		t.Errorf("Port = %d, want %d", target.Port, 3493)
	}
}

func TestNilViper(t *testing.T) {
	cfg := New(nil)
	// Must return zero values without panic.
	if got := cfg.GetString("key"); got != "" {
		t.Errorf("nil viper GetString() = %q, want empty", got)
	}
	if cfg.IsSet("key") {
		t.Error("nil viper IsSet() = true, want false")
	}
	if sub := cfg.Sub("key"); sub == nil {
		t.Error("nil viper Sub() = nil, want empty Config")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load('') error = %v", err)
	}
	if got := cfg.GetDuration("poll.interval"); got != time.Second {
		t.Errorf("poll.interval default = %v, want 1s", got)
	}
	if got := cfg.GetInt("autoconnect.port"); got != 3493 {
		t.Errorf("autoconnect.port default = %d, want 3493", got)
	}
	if cfg.GetString("favorites.path") == "" {
		t.Error("favorites.path default is empty")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "server:\n  addr: 127.0.0.1:9999\npoll:\n  interval: 5s\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", path, err)
	}
	if got := cfg.GetString("server.addr"); got != "127.0.0.1:9999" {
		t.Errorf("server.addr = %q, want 127.0.0.1:9999", got)
	}
	if got := cfg.GetDuration("poll.interval"); got != 5*time.Second {
		t.Errorf("poll.interval = %v, want 5s", got)
	}
	// Defaults still visible underneath the file.
	if got := cfg.GetString("autoconnect.host"); got != "localhost" {
		t.Errorf("autoconnect.host = %q, want localhost", got)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() with missing explicit file should error")
	}
}
