package config

import (
	"os"
	"strings"
	"time"
)

const (
	MatchStrategyDefault     = "default"
	MatchStrategyStrictTaxID = "strict-tax-id"
	MatchStrategyFuzzy       = "fuzzy"
)

// ImportMatchStrategy selects the client matcher used by imports.
//
// Set via env:
// - IMPORT_MATCH_STRATEGY=default|strict-tax-id|fuzzy
//
// Unknown values fall back to default.
func ImportMatchStrategy() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("IMPORT_MATCH_STRATEGY")))
	switch v {
	case MatchStrategyStrictTaxID, MatchStrategyFuzzy:
		return v
	default:
		return MatchStrategyDefault
	}
}

// ImportNameMatchDrift is the maximum edit distance, as a percentage of the longer
// canonical name, accepted by the fuzzy matcher. IMPORT_NAME_MATCH_DRIFT (default 10).
func ImportNameMatchDrift() float64 {
	n := intFromEnv("IMPORT_NAME_MATCH_DRIFT", 10)
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return float64(n)
}

// ImportCompensatePartial enables voiding the offer when a later write of the same row fails.
//
// Set via env:
// - IMPORT_COMPENSATE_PARTIAL=true
func ImportCompensatePartial() bool {
	return envBool("IMPORT_COMPENSATE_PARTIAL")
}

// ImportMaxRows caps the number of rows a single batch may carry. IMPORT_MAX_ROWS (default 5000).
func ImportMaxRows() int {
	n := intFromEnv("IMPORT_MAX_ROWS", 5000)
	if n <= 0 {
		return 5000
	}
	return n
}

// ImportLockTTL is how long a tenant import lock is held before it expires. IMPORT_LOCK_TTL_SECONDS (default 300).
func ImportLockTTL() time.Duration {
	n := intFromEnv("IMPORT_LOCK_TTL_SECONDS", 300)
	if n <= 0 {
		n = 300
	}
	return time.Duration(n) * time.Second
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
