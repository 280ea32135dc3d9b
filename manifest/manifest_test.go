package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"
entry = "result"

[run]
trace = true
max-frames = 256

[cache]
enabled = false
path = "/var/cache/mia.db"
max-age = "48h"

[server]
addr = "127.0.0.1:9000"
session-ttl = "5m"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if m.Project.Entry != "result" {
		t.Errorf("entry = %q, want result", m.Project.Entry)
	}
	if !m.Run.Trace || m.Run.MaxFrames != 256 {
		t.Errorf("run = %+v", m.Run)
	}
	if m.Cache.Enabled {
		t.Error("cache enabled = true, want false")
	}
	if m.Cache.MaxAge.Duration != 48*time.Hour {
		t.Errorf("cache max-age = %s, want 48h", m.Cache.MaxAge)
	}
	if m.CachePath() != "/var/cache/mia.db" {
		t.Errorf("cache path = %q", m.CachePath())
	}
	if m.Server.Addr != "127.0.0.1:9000" || m.Server.SessionTTL.Duration != 5*time.Minute {
		t.Errorf("server = %+v", m.Server)
	}
	if !filepath.IsAbs(m.Dir) {
		t.Errorf("Dir = %q, want an absolute path", m.Dir)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if m.Project.Entry != "main" {
		t.Errorf("default entry = %q, want main", m.Project.Entry)
	}
	if m.Run != def.Run {
		t.Errorf("run = %+v, want %+v", m.Run, def.Run)
	}
	if !m.Cache.Enabled || m.Cache.MaxAge != def.Cache.MaxAge {
		t.Errorf("cache = %+v", m.Cache)
	}
	if want := filepath.Join(m.Dir, ".mia", "cache.db"); m.CachePath() != want {
		t.Errorf("cache path = %q, want %q", m.CachePath(), want)
	}
	if m.Server.Addr != ":4567" || m.Server.SessionTTL.Duration != 30*time.Minute {
		t.Errorf("server = %+v", m.Server)
	}
}

func TestParseEmpty(t *testing.T) {
	m, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(empty) failed: %v", err)
	}
	if m.Project.Entry != "main" {
		t.Errorf("entry = %q, want main", m.Project.Entry)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown section", "[image]\noutput = 'x'", "image"},
		{"unknown key", "[project]\nnamespace = 'X'", "namespace"},
		{"entry not an identifier", "[project]\nentry = 'Main'", "entry"},
		{"entry with dot", "[project]\nentry = 'a.b'", "entry"},
		{"zero max-frames", "[run]\nmax-frames = 0", "max-frames"},
		{"negative max-frames", "[run]\nmax-frames = -3", "max-frames"},
		{"wrong type", "[run]\ntrace = 'yes'", "trace"},
		{"empty cache path", "[cache]\npath = ''", "path"},
		{"bad duration", "[server]\nsession-ttl = 'soon'", "soon"},
		{"not toml", "[project", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadReportsPath(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[run]\nmax-frames = 0\n")

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), FileName) {
		t.Errorf("error = %v, want it to name %s", err, FileName)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no mia.toml exists")
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1h30m")); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 90*time.Minute {
		t.Errorf("Duration = %s", d)
	}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "1h30m0s" {
		t.Errorf("MarshalText = %s", text)
	}
}
