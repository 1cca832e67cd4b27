package mchms

// MatchesResult reports whether actual satisfies the requested result filter.
func MatchesResult(expected, actual ResultCode) bool {
	if expected == AnyResult {
		return true
	}
	return expected == actual
}
