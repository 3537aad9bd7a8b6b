package domain

import "strings"

// normalizeSpace collapses runs of whitespace to single spaces and trims the ends.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeMerchantName folds a merchant name for matching and dedup keys.
// Normalization is deliberately limited to case and whitespace folding;
// spelling variants of the same merchant are treated as distinct merchants.
// Parameters:
//   - name: raw merchant name.
// Returns:
//   - string: lowercased, whitespace-folded name.
func NormalizeMerchantName(name string) string {
	return strings.ToLower(normalizeSpace(name))
}
