package importer

import (
	"regexp"
	"strings"
)

// relationshipLabel matches values that name a relationship category
// ("Spouse", "my children") rather than a person. Whole-word,
// case-insensitive.
var relationshipLabel = regexp.MustCompile(
	`(?i)\b(spouse|children|child|son|daughter|wife|husband|kids|other|self|me|my spouse|my children|my kids)\b`)

// PickBeneficiaryName chooses the most likely full name from the ordered
// raw values of every beneficiary column in a row. A single non-blank
// value is trusted verbatim. With multiple candidates, relationship
// labels are filtered out first (falling back to the unfiltered list if
// nothing survives), then the longest string wins, ties to the first.
// Returns "" when no usable value exists.
func PickBeneficiaryName(raw []string) string {
	cleaned := make([]string, 0, len(raw))
	for _, v := range raw {
		if t := strings.TrimSpace(v); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	if len(cleaned) == 1 {
		return cleaned[0]
	}

	pool := cleaned[:0:0]
	for _, v := range cleaned {
		if !relationshipLabel.MatchString(v) {
			pool = append(pool, v)
		}
	}
	if len(pool) == 0 {
		pool = cleaned
	}

	best := pool[0]
	for _, v := range pool {
		if len(v) > len(best) {
			best = v
		}
	}
	return best
}
