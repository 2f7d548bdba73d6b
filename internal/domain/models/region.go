package models

import "strings"

// MarketRegion drives ticker-suffix normalization.
type MarketRegion string

const (
	RegionDomestic    MarketRegion = "domestic"
	RegionForeign     MarketRegion = "foreign"
	RegionUnspecified MarketRegion = "unspecified"
)

// domestic tickers trade on the Tokyo exchange
const domesticSuffix = ".T"

// IsValidRegion returns true if r is a supported market region.
func IsValidRegion(r MarketRegion) bool {
	switch r {
	case RegionDomestic, RegionForeign, RegionUnspecified:
		return true
	default:
		return false
	}
}

// NormalizeRegion converts a raw string to a valid region (or unspecified).
func NormalizeRegion(s string) MarketRegion {
	r := MarketRegion(strings.ToLower(strings.TrimSpace(s)))
	if IsValidRegion(r) {
		return r
	}
	return RegionUnspecified
}

// NormalizeTicker resolves the effective exchange symbol for a raw ticker.
// Domestic tickers get the exchange suffix appended exactly once; re-applying
// the function to an already-suffixed ticker is a no-op. Foreign and
// unspecified tickers pass through unchanged.
func (r MarketRegion) NormalizeTicker(raw string) string {
	t := strings.TrimSpace(raw)
	if r != RegionDomestic || t == "" {
		return t
	}
	if strings.HasSuffix(t, domesticSuffix) {
		return t
	}
	return t + domesticSuffix
}
