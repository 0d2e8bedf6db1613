package importer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseNumber_AcceptsLocaleFormats(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"1.234,56", "1234.56"},
		{"1234.56", "1234.56"},
		{"", "0"},
		{"   ", "0"},
		{"abc", "0"},
		{"€ 30,00", "30"},
		{"30,00 €", "30"},
		{"1,234.50", "1234.5"},
		{"1.234.567", "1234567"},
		{"1 000,00", "1000"},
		{"1 000,50", "1000.5"},
		{"-12,5", "-12.5"},
		{"EUR 2.500", "2.5"},
		{"2.500 EUR", "2.5"},
		{"€-30", "-30"},
		{"1\u00a0234,56 €", "1234.56"},
		{"12-34", "0"},
		{"05/01/2024", "0"},
	}
	for _, tc := range cases {
		d := ParseNumber(tc.in)
		if !d.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("ParseNumber(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseNumberStrict_ReportsMissingNumbers(t *testing.T) {
	for _, in := range []string{"", "n/a", "€", "-", "1e5", "12-34", "05/01/2024", "30 mois x 2", "1.2,3.4", "1 2a"} {
		if _, ok := ParseNumberStrict(in); ok {
			t.Fatalf("ParseNumberStrict(%q) expected no number", in)
		}
	}
	if d, ok := ParseNumberStrict("0"); !ok || !d.IsZero() {
		t.Fatalf("ParseNumberStrict(\"0\") expected zero number, got %s %v", d, ok)
	}
}

func TestParseDate_Formats(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"15/03/2023", "2023-03-15"},
		{"5/3/2023", "2023-03-05"},
		{"15.03.2023", "2023-03-15"},
		{"15-03-2023", "2023-03-15"},
		{"2023-03-15", "2023-03-15"},
		{"2023-03-15T10:00:00Z", "2023-03-15"},
		{"mars 2023", "2023-03-01"},
		{"janv. 2022", "2022-01-01"},
		{"Février 2021", "2021-02-01"},
		{"Déc. 2020", "2020-12-01"},
		{"SEPT 2019", "2019-09-01"},
		{"12 août 2019", "2019-08-12"},
		{"44927", "2023-01-01"},
	}
	for _, tc := range cases {
		d := ParseDate(tc.in)
		if d == nil {
			t.Fatalf("ParseDate(%q) expected %s, got nil", tc.in, tc.expected)
		}
		if got := d.Format("2006-01-02"); got != tc.expected {
			t.Fatalf("ParseDate(%q) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

func TestParseDate_UnrecognizedReturnsNil(t *testing.T) {
	for _, in := range []string{"", "not a date", "31/02/2023", "2023-13-01", "foo 2023", "03/2023", "12345678"} {
		if d := ParseDate(in); d != nil {
			t.Fatalf("ParseDate(%q) expected nil, got %s", in, d.Format(time.RFC3339))
		}
	}
}

func TestFallbackDate(t *testing.T) {
	start := time.Date(2024, time.June, 7, 15, 30, 0, 0, time.UTC)
	cases := []struct {
		label    string
		expected string
	}{
		{"2022", "2022-01-01"},
		{" 2019 ", "2019-01-01"},
		{"15/06/2021", "2021-06-15"},
		{"", "2024-06-07"},
		{"Historique", "2024-06-07"},
	}
	for _, tc := range cases {
		if got := FallbackDate(tc.label, start).Format("2006-01-02"); got != tc.expected {
			t.Fatalf("FallbackDate(%q) expected %s, got %s", tc.label, tc.expected, got)
		}
	}
}

func TestNormalizeTaxID(t *testing.T) {
	cases := map[string]string{
		"BE0123456789":       "BE0123456789",
		"BE 0123.456.789":    "BE0123456789",
		"be-0123 456 789":    "BE0123456789",
		"":                   "",
		" fr 12 345 678 901": "FR12345678901",
	}
	for in, expected := range cases {
		if got := NormalizeTaxID(in); got != expected {
			t.Fatalf("NormalizeTaxID(%q) expected %q, got %q", in, expected, got)
		}
	}
}

func TestCanonicalName(t *testing.T) {
	cases := []struct {
		a, b  string
		equal bool
	}{
		{"Acme Corp", "ACME CORP", true},
		{"Acme Corp.", "acme-corp", true},
		{"O'Brien & Sons", "obrien sons", true},
		{"Acme Corp", "Acme Corporation", false},
		{"Société Générale", "societe generale", false},
	}
	for _, tc := range cases {
		if got := CanonicalName(tc.a) == CanonicalName(tc.b); got != tc.equal {
			t.Fatalf("CanonicalName(%q) == CanonicalName(%q) expected %v", tc.a, tc.b, tc.equal)
		}
	}
	if got := CanonicalName("  --  "); got != "" {
		t.Fatalf("CanonicalName of punctuation expected empty, got %q", got)
	}
}
