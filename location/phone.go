package location

import "strings"

// CountryCode is the dialing code of the service area
const CountryCode = "91"

// digitsOnly keeps digits and a leading plus
func digitsOnly(number string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(number) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nationalNumber strips the country code and trunk prefix from an Indian
// number. ok is false for numbers carrying another country code.
func nationalNumber(number string) (string, bool) {
	n := digitsOnly(number)
	switch {
	case strings.HasPrefix(n, "+"+CountryCode):
		n = n[3:]
	case strings.HasPrefix(n, "+"):
		return "", false
	case strings.HasPrefix(n, "00"+CountryCode):
		n = n[4:]
	case strings.HasPrefix(n, "00"):
		return "", false
	case strings.HasPrefix(n, CountryCode) && len(n) > 10:
		n = n[2:]
	}
	n = strings.TrimPrefix(n, "0")
	return n, n != ""
}

// NormalizePhone rewrites Indian numbers to +91XXXXXXXXXX. Anything else is
// returned with formatting characters removed.
func NormalizePhone(number string) string {
	n := digitsOnly(number)
	if strings.HasPrefix(n, "+") {
		return n
	}
	national, ok := nationalNumber(n)
	if ok && len(national) == 10 {
		return "+" + CountryCode + national
	}
	return n
}

// MaskPhone hides all but the last four digits, for logs
func MaskPhone(number string) string {
	n := digitsOnly(number)
	if len(n) <= 4 {
		return strings.Repeat("*", len(n))
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}
