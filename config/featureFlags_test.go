package config

import (
	"testing"
	"time"
)

func TestImportMatchStrategy(t *testing.T) {
	cases := map[string]string{
		"":               MatchStrategyDefault,
		"fuzzy":          MatchStrategyFuzzy,
		" Strict-Tax-ID": MatchStrategyStrictTaxID,
		"closest":        MatchStrategyDefault,
	}
	for in, want := range cases {
		t.Setenv("IMPORT_MATCH_STRATEGY", in)
		if got := ImportMatchStrategy(); got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestImportLimits(t *testing.T) {
	t.Setenv("IMPORT_MAX_ROWS", "")
	t.Setenv("IMPORT_LOCK_TTL_SECONDS", "")
	t.Setenv("IMPORT_NAME_MATCH_DRIFT", "")
	if ImportMaxRows() != 5000 || ImportLockTTL() != 5*time.Minute || ImportNameMatchDrift() != 10 {
		t.Fatalf("unexpected defaults: %d %s %v", ImportMaxRows(), ImportLockTTL(), ImportNameMatchDrift())
	}

	t.Setenv("IMPORT_MAX_ROWS", "250")
	t.Setenv("IMPORT_LOCK_TTL_SECONDS", "abc")
	t.Setenv("IMPORT_NAME_MATCH_DRIFT", "400")
	if ImportMaxRows() != 250 || ImportLockTTL() != 5*time.Minute || ImportNameMatchDrift() != 100 {
		t.Fatalf("unexpected overrides: %d %s %v", ImportMaxRows(), ImportLockTTL(), ImportNameMatchDrift())
	}
}

func TestImportCompensatePartial(t *testing.T) {
	for in, want := range map[string]bool{"true": true, "YES": true, "1": true, "false": false, "": false} {
		t.Setenv("IMPORT_COMPENSATE_PARTIAL", in)
		if got := ImportCompensatePartial(); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}
