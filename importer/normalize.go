package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ParseNumber parses user-formatted amounts such as "1.234,56", "1234.56" or "€ 30,00".
// Empty or unparseable input yields zero.
func ParseNumber(s string) decimal.Decimal {
	d, ok := ParseNumberStrict(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

// ParseNumberStrict is ParseNumber reporting whether s held a number at all.
//
// Whitespace (including non-breaking spaces) and currency symbols are dropped, letters only
// around the number ("EUR 30", "30 EUR"). Anything else between the digits, such as '/',
// an inner '-' or a letter, makes the input unparseable. When both ',' and '.' appear, the
// last one is the decimal separator. A single ',' is a decimal comma; repeated ',' or '.'
// are thousands separators.
func ParseNumberStrict(s string) (decimal.Decimal, bool) {
	s = strings.TrimFunc(s, isNumberAffix)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimFunc(s[1:], isNumberAffix)
	}
	if s == "" {
		return decimal.Zero, false
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case unicode.IsSpace(r), unicode.Is(unicode.Zs, r), unicode.Is(unicode.Sc, r):
		default:
			return decimal.Zero, false
		}
	}
	clean := b.String()
	if strings.Trim(clean, ".,") == "" {
		return decimal.Zero, false
	}

	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") > 1 {
			clean = strings.ReplaceAll(clean, ",", "")
		} else {
			clean = strings.Replace(clean, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(clean, ".") > 1 {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}
	if clean == "" || strings.Count(clean, ".") > 1 {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func isNumberAffix(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Zs, r) || unicode.Is(unicode.Sc, r) || unicode.IsLetter(r)
}

var (
	isoDateRe     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	dmyDateRe     = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})(?:\s.*)?$`)
	monthYearRe   = regexp.MustCompile(`^(?:(\d{1,2})\s+)?([a-z]+)\.?\s*(\d{4})$`)
	excelSerialRe = regexp.MustCompile(`^\d{5}(?:\.\d+)?$`)
	yearRe        = regexp.MustCompile(`^\d{4}$`)
)

var frenchMonths = map[string]time.Month{
	"janvier": time.January, "janv": time.January, "jan": time.January,
	"fevrier": time.February, "fevr": time.February, "fev": time.February,
	"mars": time.March, "mar": time.March,
	"avril": time.April, "avr": time.April,
	"mai": time.May,
	"juin": time.June,
	"juillet": time.July, "juil": time.July,
	"aout": time.August,
	"septembre": time.September, "sept": time.September, "sep": time.September,
	"octobre": time.October, "oct": time.October,
	"novembre": time.November, "nov": time.November,
	"decembre": time.December, "dec": time.December,
}

// ParseDate accepts DD/MM/YYYY, ISO YYYY-MM-DD, "<french month>[.] YYYY" and Excel
// serial day numbers. It returns nil for anything else; the caller picks a fallback.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := dmyDateRe.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	if m := monthYearRe.FindStringSubmatch(strings.ToLower(foldAccents(s))); m != nil {
		month, ok := frenchMonths[m[2]]
		if !ok {
			return nil
		}
		day := 1
		if m[1] != "" {
			day = atoi(m[1])
		}
		return makeDate(atoi(m[3]), int(month), day)
	}
	if excelSerialRe.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil
		}
		return makeDate(t.Year(), int(t.Month()), t.Day())
	}
	return nil
}

// FallbackDate is the date used for rows without a parseable date: January 1st when the
// batch label is a year, the label itself when it is a date, otherwise the batch start day.
func FallbackDate(label string, batchStart time.Time) time.Time {
	label = strings.TrimSpace(label)
	if yearRe.MatchString(label) {
		return time.Date(atoi(label), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if d := ParseDate(label); d != nil {
		return *d
	}
	start := batchStart.UTC()
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeTaxID is the comparison key of a tax/VAT number. The stored value is left untouched.
func NormalizeTaxID(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '.' || r == '-' {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// CanonicalName lower-cases s and keeps letters and digits only.
func CanonicalName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func makeDate(year, month, day int) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return nil
	}
	return &t
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
