package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigDefaults(t *testing.T) {
	got, err := loadConfig(nil, map[string]string{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := Config{
		Addr:           ":8080",
		DataDir:        "./data",
		SessionIdle:    6 * time.Hour,
		EnableObserver: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	environ := map[string]string{
		"HEXADVISOR_ADDR":            ":9000",
		"HEXADVISOR_DATA_DIR":        "/var/lib/hexadvisor",
		"HEXADVISOR_DISABLE_DB":      "true",
		"HEXADVISOR_DEBUG":           "true",
		"HEXADVISOR_SESSION_IDLE":    "30m",
		"HEXADVISOR_ENABLE_OBSERVER": "false",
	}
	got, err := loadConfig([]string{"-addr", "127.0.0.1:7000", "-debug=false", "-tuning", "t.yaml", "-disable_archive"}, environ)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := Config{
		Addr:           "127.0.0.1:7000",
		DataDir:        "/var/lib/hexadvisor",
		TuningPath:     "t.yaml",
		DisableDB:      true,
		DisableArchive: true,
		Debug:          false,
		SessionIdle:    30 * time.Minute,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	if _, err := loadConfig(nil, map[string]string{"HEXADVISOR_SESSION_IDLE": "soon"}); err == nil {
		t.Fatalf("expected env parse error")
	}
	if _, err := loadConfig([]string{"-session_idle", "-1m"}, map[string]string{}); err == nil {
		t.Fatalf("expected negative idle to be rejected")
	}
	if _, err := loadConfig([]string{"-addr", ""}, map[string]string{}); err == nil {
		t.Fatalf("expected empty addr to be rejected")
	}
}
