package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Thresholds.FaceMatch != 0.6 {
		t.Errorf("face match threshold = %v, want 0.6", cfg.Thresholds.FaceMatch)
	}
	if cfg.Thresholds.Overlap != 0.5 {
		t.Errorf("overlap threshold = %v, want 0.5", cfg.Thresholds.Overlap)
	}
	if cfg.Thresholds.PhotoHash != 5 {
		t.Errorf("photo hash threshold = %v, want 5", cfg.Thresholds.PhotoHash)
	}
	if cfg.Thresholds.Cluster != 0.5 {
		t.Errorf("cluster threshold = %v, want 0.5", cfg.Thresholds.Cluster)
	}
	if cfg.Detector.Timeout != 120*time.Second {
		t.Errorf("detector timeout = %v, want 120s", cfg.Detector.Timeout)
	}
	if cfg.Reprocess != ReprocessAsk {
		t.Errorf("reprocess policy = %q, want ask", cfg.Reprocess)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PHOTODEX_CATALOG", "/tmp/catalog.db")
	t.Setenv("PHOTODEX_REFERENCE_CATALOG", "/tmp/reference.db")
	t.Setenv("PHOTODEX_REPROCESS", "skip")
	t.Setenv("DETECTOR_URL", "http://detector:9000")
	t.Setenv("DETECTOR_TIMEOUT_SECONDS", "30")
	t.Setenv("FACE_MATCH_THRESHOLD", "0.45")
	t.Setenv("PHOTO_HASH_THRESHOLD", "3")

	cfg := Load()

	if cfg.Catalog.Path != "/tmp/catalog.db" {
		t.Errorf("catalog path = %q", cfg.Catalog.Path)
	}
	if cfg.Catalog.ReferencePath != "/tmp/reference.db" {
		t.Errorf("reference path = %q", cfg.Catalog.ReferencePath)
	}
	if cfg.Reprocess != ReprocessSkip {
		t.Errorf("reprocess policy = %q, want skip", cfg.Reprocess)
	}
	if cfg.Detector.URL != "http://detector:9000" {
		t.Errorf("detector url = %q", cfg.Detector.URL)
	}
	if cfg.Detector.Timeout != 30*time.Second {
		t.Errorf("detector timeout = %v, want 30s", cfg.Detector.Timeout)
	}
	if cfg.Thresholds.FaceMatch != 0.45 {
		t.Errorf("face match threshold = %v, want 0.45", cfg.Thresholds.FaceMatch)
	}
	if cfg.Thresholds.PhotoHash != 3 {
		t.Errorf("photo hash threshold = %v, want 3", cfg.Thresholds.PhotoHash)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("PHOTODEX_REPROCESS", "sometimes")
	t.Setenv("FACE_MATCH_THRESHOLD", "not-a-number")
	t.Setenv("PHOTO_HASH_THRESHOLD", "-2")

	cfg := Load()

	if cfg.Reprocess != ReprocessAsk {
		t.Errorf("invalid reprocess policy should fall back to ask, got %q", cfg.Reprocess)
	}
	if cfg.Thresholds.FaceMatch != 0.6 {
		t.Errorf("invalid threshold should fall back to default, got %v", cfg.Thresholds.FaceMatch)
	}
	if cfg.Thresholds.PhotoHash != 5 {
		t.Errorf("negative threshold should fall back to default, got %v", cfg.Thresholds.PhotoHash)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty catalog path should fail validation")
	}
	cfg.Catalog.Path = "/tmp/catalog.db"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestReprocessPolicyValid(t *testing.T) {
	for _, p := range []ReprocessPolicy{ReprocessSkip, ReprocessAlways, ReprocessAsk} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if ReprocessPolicy("maybe").Valid() {
		t.Error("unknown policy should be invalid")
	}
}
