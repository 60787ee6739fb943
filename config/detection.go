package config

import (
	"os"
	"strconv"
	"time"

	"urbanfix-be/detection"
)

// DetectionConfig builds the detection pipeline tuning from environment
// variables, falling back to the recommended defaults. Thresholds are a
// deployment-density tradeoff, so they stay out of the code.
func DetectionConfig() detection.Config {
	cfg := detection.DefaultConfig()

	if v, ok := envFloat("TEXT_DUP_THRESHOLD"); ok {
		cfg.TextThreshold = v
	}
	if v, ok := envFloat("IMAGE_DUP_THRESHOLD"); ok {
		cfg.ImageThreshold = v
	}
	if v, ok := envFloat("QUALITY_FLAG_THRESHOLD"); ok {
		cfg.QualityThreshold = v
	}
	if v, ok := envFloat("DUP_RADIUS_METERS"); ok {
		cfg.RadiusMeters = v
	}
	if v, ok := envInt("DUP_WINDOW_DAYS"); ok {
		cfg.Window = time.Duration(v) * 24 * time.Hour
	}
	if v, ok := envInt("DUP_MAX_CANDIDATES"); ok {
		cfg.MaxCandidates = v
	}
	if v, ok := envInt("DETECTION_TIMEOUT_MS"); ok {
		cfg.Timeout = time.Duration(v) * time.Millisecond
	}
	return cfg
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(key string) (int64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
