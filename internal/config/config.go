package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ReprocessPolicy controls what happens when ingestion meets an image that
// is already in the catalog.
type ReprocessPolicy string

const (
	// ReprocessSkip leaves already-ingested images untouched.
	ReprocessSkip ReprocessPolicy = "skip"
	// ReprocessAlways clears the image's prior rows and processes it again.
	ReprocessAlways ReprocessPolicy = "reprocess"
	// ReprocessAsk defers the decision to the interactive surface.
	ReprocessAsk ReprocessPolicy = "ask"
)

// Valid reports whether the policy is one of the known values.
func (p ReprocessPolicy) Valid() bool {
	return p == ReprocessSkip || p == ReprocessAlways || p == ReprocessAsk
}

type Config struct {
	Catalog    CatalogConfig
	Detector   DetectorConfig
	Thresholds Thresholds
	Reprocess  ReprocessPolicy
}

type CatalogConfig struct {
	Path          string // path to the active catalog database file
	ReferencePath string // optional read-only reference catalog (empty = none)
}

type DetectorConfig struct {
	URL     string        // detection service base URL
	Timeout time.Duration // per-request timeout
}

// Thresholds is the tunable configuration surface of the matching and
// deduplication engine. The defaults ship embedded; none of them has been
// validated against a labeled dataset, so treat them as starting points.
type Thresholds struct {
	FaceMatch float64 `yaml:"face_match"`
	Overlap   float64 `yaml:"overlap"`
	PhotoHash int     `yaml:"photo_hash"`
	Cluster   float64 `yaml:"cluster"`
}

type defaultsFile struct {
	Thresholds Thresholds `yaml:"thresholds"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// Load builds the configuration from embedded defaults and environment
// variables. Environment values override the embedded thresholds.
func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	policy := ReprocessPolicy(os.Getenv("PHOTODEX_REPROCESS"))
	if !policy.Valid() {
		policy = ReprocessAsk
	}

	return &Config{
		Catalog: CatalogConfig{
			Path:          os.Getenv("PHOTODEX_CATALOG"),
			ReferencePath: os.Getenv("PHOTODEX_REFERENCE_CATALOG"),
		},
		Detector: DetectorConfig{
			URL:     os.Getenv("DETECTOR_URL"),
			Timeout: time.Duration(envInt("DETECTOR_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Thresholds: Thresholds{
			FaceMatch: envFloat("FACE_MATCH_THRESHOLD", defaults.Thresholds.FaceMatch),
			Overlap:   envFloat("FACE_OVERLAP_THRESHOLD", defaults.Thresholds.Overlap),
			PhotoHash: envInt("PHOTO_HASH_THRESHOLD", defaults.Thresholds.PhotoHash),
			Cluster:   envFloat("CLUSTER_THRESHOLD", defaults.Thresholds.Cluster),
		},
		Reprocess: policy,
	}
}

// Validate checks the parts of the configuration every command needs.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required (set PHOTODEX_CATALOG or pass --catalog)")
	}
	return nil
}
