package cli

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestEnvLoaderLoadsFlagPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(path, []byte("SAFEAGREE_TEST_VALUE=from-flag\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(OverrideVar, "")
	t.Setenv("SAFEAGREE_TEST_VALUE", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(dir, "missing.env"), "")
	if err := fs.Parse([]string{"--env", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != path {
		t.Fatalf("loaded = %q, want %q", loaded, path)
	}
	if got := os.Getenv("SAFEAGREE_TEST_VALUE"); got != "from-flag" {
		t.Fatalf("SAFEAGREE_TEST_VALUE = %q, want from-flag", got)
	}
}

func TestEnvLoaderOverrideVarWins(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "override.env")
	if err := os.WriteFile(override, []byte("SAFEAGREE_TEST_VALUE=from-override\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(OverrideVar, override)
	t.Setenv("SAFEAGREE_TEST_VALUE", "")

	loader := AddEnvFlag(flag.NewFlagSet("test", flag.ContinueOnError), filepath.Join(dir, "missing.env"), "")
	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != override {
		t.Fatalf("loaded = %q, want %q", loaded, override)
	}
	if got := os.Getenv("SAFEAGREE_TEST_VALUE"); got != "from-override" {
		t.Fatalf("SAFEAGREE_TEST_VALUE = %q, want from-override", got)
	}
}

func TestEnvLoaderCandidates(t *testing.T) {
	t.Parallel()

	loader := &EnvLoader{defaultPath: ".env", userConfig: "/home/u/.config/safeagree/.env"}
	got := loader.candidates("deploy/prod.env")
	want := []string{"deploy/prod.env", "prod.env", ".env", "/home/u/.config/safeagree/.env"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("candidates() = %v, want %v", got, want)
	}
}

func TestEnvLoaderMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(OverrideVar, "")

	loader := AddEnvFlag(flag.NewFlagSet("test", flag.ContinueOnError), filepath.Join(dir, "missing.env"), "")
	loader.userConfig = filepath.Join(dir, "also-missing.env")
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected missing env files to fail")
	}
}
