package importer

import (
	"fmt"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Matcher resolves a row to an existing client, or nil when a new client must be created.
// Implementations must be deterministic for a given row and index.
type Matcher interface {
	Resolve(row ImportRow, index *ClientIndex) *models.Client
}

// DefaultMatcher matches on normalized tax id first, then on canonical name.
type DefaultMatcher struct{}

func (DefaultMatcher) Resolve(row ImportRow, index *ClientIndex) *models.Client {
	if c := index.ByTaxID(NormalizeTaxID(row.TaxID)); c != nil {
		return c
	}
	for _, key := range row.NameKeys() {
		if c := index.ByName(key); c != nil {
			return c
		}
	}
	return nil
}

// StrictTaxIDMatcher never links a row carrying a tax id by name. Rows without a tax id
// only link by name to a client that has none either.
type StrictTaxIDMatcher struct{}

func (StrictTaxIDMatcher) Resolve(row ImportRow, index *ClientIndex) *models.Client {
	if taxID := NormalizeTaxID(row.TaxID); taxID != "" {
		return index.ByTaxID(taxID)
	}
	for _, key := range row.NameKeys() {
		c := index.ByName(key)
		if c != nil && NormalizeTaxID(utils.DereferencePtr(c.TaxId)) == "" {
			return c
		}
	}
	return nil
}

// FuzzyNameMatcher falls back to edit distance on canonical names when the default
// matcher finds nothing. Drift is the allowed distance as a percentage of the longer name.
// Clients whose tax id contradicts the row's are never candidates.
type FuzzyNameMatcher struct {
	Drift float64
}

func (m FuzzyNameMatcher) Resolve(row ImportRow, index *ClientIndex) *models.Client {
	if c := (DefaultMatcher{}).Resolve(row, index); c != nil {
		return c
	}

	rowTax := NormalizeTaxID(row.TaxID)
	var (
		best     *models.Client
		bestDist = -1
	)
	for _, key := range row.NameKeys() {
		for _, c := range index.Clients() {
			clientTax := NormalizeTaxID(utils.DereferencePtr(c.TaxId))
			if rowTax != "" && clientTax != "" && rowTax != clientTax {
				continue
			}
			for _, name := range ClientNameKeys(c) {
				dist, ok := m.within(key, name)
				if ok && (bestDist < 0 || dist < bestDist) {
					best, bestDist = c, dist
				}
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

func (m FuzzyNameMatcher) within(a, b string) (int, bool) {
	ra, rb := []rune(a), []rune(b)
	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)

	maxLength := float64(max(len(ra), len(rb)))
	maxAllowedDistance := int(maxLength * (m.Drift / 100))
	return distance, distance <= maxAllowedDistance
}

// MatcherFor returns the matcher registered under a strategy name.
func MatcherFor(strategy string) (Matcher, error) {
	switch strategy {
	case "", config.MatchStrategyDefault:
		return DefaultMatcher{}, nil
	case config.MatchStrategyStrictTaxID:
		return StrictTaxIDMatcher{}, nil
	case config.MatchStrategyFuzzy:
		return FuzzyNameMatcher{Drift: config.ImportNameMatchDrift()}, nil
	}
	return nil, fmt.Errorf("unknown match strategy %q", strategy)
}
