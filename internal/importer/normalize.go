package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nonDigits = regexp.MustCompile(`\D+`)

// NormalizePhone converts a raw phone value to +1XXXXXXXXXX E.164 form.
// Exactly 10 digits are assumed to be a US number; 11 digits are accepted
// only with a leading 1. Anything else returns "".
func NormalizePhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	default:
		return ""
	}
}

// FallbackPhone scans every raw cell of a row for the first value that
// normalizes to a valid US number. This recovers numbers misfiled under
// unmapped or wrongly named columns.
func FallbackPhone(cells []string) string {
	for _, cell := range cells {
		if e164 := NormalizePhone(cell); e164 != "" {
			return e164
		}
	}
	return ""
}

// NormalizeEmail trims and lower-cases an email value. Empty means absent;
// no further validation is attempted.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

var (
	usDate  = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})$`)
	isoDate = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
)

// ParseDOB normalizes a birth date to ISO YYYY-MM-DD. Accepted shapes are
// MM/DD/YYYY (slash or dash separators, month/day positional) and
// YYYY-MM-DD; anything after a "T" or a space is discarded first. Each
// component is range-checked (year 1900-2100, month 1-12, day 1-31; no
// days-in-month validation). Any other shape returns "".
func ParseDOB(raw string) string {
	core := strings.TrimSpace(raw)
	core, _, _ = strings.Cut(core, "T")
	core, _, _ = strings.Cut(core, " ")
	core = strings.TrimSpace(core)
	if core == "" {
		return ""
	}

	var year, month, day int
	if m := usDate.FindStringSubmatch(core); m != nil {
		month, _ = strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else if m := isoDate.FindStringSubmatch(core); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else {
		return ""
	}

	if year < 1900 || year > 2100 {
		return ""
	}
	if month < 1 || month > 12 {
		return ""
	}
	if day < 1 || day > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// ageFromDOB computes whole years between an ISO birth date and now,
// decrementing when the birthday has not yet occurred this year.
func ageFromDOB(iso string, now time.Time) (int, bool) {
	d, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return 0, false
	}
	age := now.Year() - d.Year()
	if now.Month() < d.Month() || (now.Month() == d.Month() && now.Day() < d.Day()) {
		age--
	}
	return age, true
}

// ResolveAge applies the two-tier age fallback: the explicit age column
// (stripped of non-digits) wins when it lands in [0,120]; otherwise the
// age derived from the birth date is used, subject to the same bounds.
// Source columns are unreliable, so even a derived age is sanity-bounded.
func ResolveAge(rawAge, dobISO string, now time.Time) *int {
	if cleaned := nonDigits.ReplaceAllString(rawAge, ""); cleaned != "" {
		if n, err := strconv.Atoi(cleaned); err == nil && n >= 0 && n <= 120 {
			return &n
		}
	}

	if dobISO != "" {
		if n, ok := ageFromDOB(dobISO, now); ok && n >= 0 && n <= 120 {
			return &n
		}
	}
	return nil
}
