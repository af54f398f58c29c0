// Package validation holds the pure predicates used to vet the
// pre-engagement form before a chat is started. No I/O, no state.
package validation

import "regexp"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// postalCodeRegexes maps ISO 3166-1 alpha-2 country codes to their postal
// code shapes. Unlisted countries fall back to the permissive default.
var postalCodeRegexes = map[string]*regexp.Regexp{
	"US": regexp.MustCompile(`^\d{5}(-\d{4})?$`),
	"CA": regexp.MustCompile(`^[A-Za-z]\d[A-Za-z][ -]?\d[A-Za-z]\d$`),
	"GB": regexp.MustCompile(`^[A-Za-z]{1,2}\d[A-Za-z\d]?[ ]?\d[A-Za-z]{2}$`),
	"DE": regexp.MustCompile(`^\d{5}$`),
	"FR": regexp.MustCompile(`^\d{5}$`),
	"NL": regexp.MustCompile(`^\d{4}[ ]?[A-Za-z]{2}$`),
	"AT": regexp.MustCompile(`^\d{4}$`),
	"CH": regexp.MustCompile(`^\d{4}$`),
	"AU": regexp.MustCompile(`^\d{4}$`),
	"JP": regexp.MustCompile(`^\d{3}-?\d{4}$`),
	"CN": regexp.MustCompile(`^\d{6}$`),
}

var defaultPostalCodeRegex = regexp.MustCompile(`^[A-Za-z\d][A-Za-z\d\- ]{0,9}$`)

// nationalDigitRanges bounds the digit count of a national phone number per
// country. Unlisted countries use the default range.
var nationalDigitRanges = map[string][2]int{
	"US": {10, 10},
	"CA": {10, 10},
	"GB": {9, 10},
	"DE": {6, 11},
	"FR": {9, 9},
	"NL": {9, 9},
	"AU": {9, 9},
	"JP": {9, 10},
	"CN": {10, 11},
}

var defaultDigitRange = [2]int{6, 14}

var phoneAllowedChars = regexp.MustCompile(`^\+?[\d\- ().]+$`)
var digitRegex = regexp.MustCompile(`\d`)

// IsValidEmail reports whether s is a plausible email address
func IsValidEmail(s string) bool {
	return len(s) <= 254 && emailRegex.MatchString(s)
}

// IsValidPhone reports whether s is a plausible phone number for the given
// ISO country code. Formatting characters are tolerated; only the digit
// count and character set are checked.
func IsValidPhone(s, countryCode string) bool {
	if !phoneAllowedChars.MatchString(s) {
		return false
	}
	digits := len(digitRegex.FindAllString(s, -1))
	bounds, ok := nationalDigitRanges[countryCode]
	if !ok {
		bounds = defaultDigitRange
	}
	if s != "" && s[0] == '+' {
		// Country calling code prefix adds up to 3 digits
		bounds[1] += 3
	}
	return digits >= bounds[0] && digits <= bounds[1]
}

// IsValidPostalCode reports whether s matches the postal code shape of the
// given ISO country code
func IsValidPostalCode(s, countryCode string) bool {
	if regex, ok := postalCodeRegexes[countryCode]; ok {
		return regex.MatchString(s)
	}
	return defaultPostalCodeRegex.MatchString(s)
}

// IsValidName reports whether s is usable as a display name
func IsValidName(s string) bool {
	return len(s) >= 1 && len(s) <= 100
}
