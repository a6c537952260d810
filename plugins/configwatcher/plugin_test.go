package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/tickship/pkg/log"
	"github.com/bft-labs/tickship/pkg/tickship"
)

// keepGlobalLevel restores the process-wide zerolog level after the test.
func keepGlobalLevel(t *testing.T) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestPlugin_Name(t *testing.T) {
	if got := New(DefaultConfig()).Name(); got != "configwatcher" {
		t.Errorf("Name() = %q, want configwatcher", got)
	}
}

func TestPlugin_DisabledWithoutPath(t *testing.T) {
	keepGlobalLevel(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	p := New(DefaultConfig())
	if err := p.Initialize(context.Background(), tickship.PluginConfig{Logger: log.NoopLogger{}}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level changed to %v without a config file", zerolog.GlobalLevel())
	}
}

func TestPlugin_MissingDirectoryFails(t *testing.T) {
	p := New(Config{Path: filepath.Join(t.TempDir(), "missing", "config.toml")})
	if err := p.Initialize(context.Background(), tickship.PluginConfig{}); err == nil {
		t.Fatal("Initialize() succeeded for a directory that does not exist")
	}
}

func TestPlugin_KeepsStartupLevel(t *testing.T) {
	keepGlobalLevel(t)
	// As if --log-level=debug overrode the file.
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "peer = \"127.0.0.1:9000\"\nlog_level = \"info\"\n")

	p := New(DefaultConfig())
	err := p.Initialize(context.Background(), tickship.PluginConfig{ConfigPath: path})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Errorf("GlobalLevel() = %v, want debug", got)
	}
	if got := p.Level(); got != zerolog.DebugLevel {
		t.Errorf("Level() = %v, want debug", got)
	}
}

func TestPlugin_ReloadsOnWrite(t *testing.T) {
	keepGlobalLevel(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "log_level = \"info\"\n")

	reloaded := make(chan zerolog.Level, 4)
	p := New(Config{
		Path:          path,
		DebounceDelay: 10 * time.Millisecond,
		OnReload:      func(l zerolog.Level) { reloaded <- l },
	})
	if err := p.Initialize(context.Background(), tickship.PluginConfig{}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	writeConfig(t, path, "log_level = \"debug\"\n")

	select {
	case got := <-reloaded:
		if got != zerolog.DebugLevel {
			t.Errorf("reloaded level = %v, want debug", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config write")
	}
	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Errorf("GlobalLevel() = %v, want debug", got)
	}
}

func TestPlugin_IgnoresOtherFiles(t *testing.T) {
	keepGlobalLevel(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "log_level = \"info\"\n")

	reloaded := make(chan zerolog.Level, 4)
	p := New(Config{
		Path:          path,
		DebounceDelay: 10 * time.Millisecond,
		OnReload:      func(l zerolog.Level) { reloaded <- l },
	})
	if err := p.Initialize(context.Background(), tickship.PluginConfig{}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	writeConfig(t, filepath.Join(dir, "other.toml"), "log_level = \"error\"\n")

	select {
	case got := <-reloaded:
		t.Fatalf("unexpected reload to %v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPlugin_InvalidLevelKeepsCurrent(t *testing.T) {
	keepGlobalLevel(t)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "log_level = \"info\"\n")

	p := New(Config{Path: path})
	if err := p.Initialize(context.Background(), tickship.PluginConfig{}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	writeConfig(t, path, "log_level = \"loud\"\n")
	p.reload()

	if got := zerolog.GlobalLevel(); got != zerolog.InfoLevel {
		t.Errorf("GlobalLevel() = %v, want info", got)
	}
}

func TestReadLevel(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    zerolog.Level
		wantOK  bool
		wantErr bool
	}{
		{name: "debug", body: `log_level = "debug"`, want: zerolog.DebugLevel, wantOK: true},
		{name: "upper case", body: `log_level = "ERROR"`, want: zerolog.ErrorLevel, wantOK: true},
		{name: "missing key", body: `peer = "127.0.0.1:9000"`, wantOK: false},
		{name: "unknown level", body: `log_level = "loud"`, wantErr: true},
		{name: "bad toml", body: `log_level = `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			writeConfig(t, path, tt.body)

			got, ok, err := readLevel(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("readLevel() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("readLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
