package track

import "regexp"

// AAMVA driver's license fields vary by jurisdiction; these patterns
// cover the fields common to most issuers.
var aamvaPatterns = map[string]*regexp.Regexp{
	"iin":            regexp.MustCompile(`^%([A-Z]{2})`),
	"license_number": regexp.MustCompile(`([A-Z0-9]+)\^`),
	"last_name":      regexp.MustCompile(`\^([A-Z]+)\$`),
	"first_name":     regexp.MustCompile(`\$([A-Z]+)\$`),
	"middle_name":    regexp.MustCompile(`\$\$([A-Z]*)\^`),
}

// ParseAAMVA extracts best-effort driver's license fields from
// combined track text. Missing fields are simply absent from the map.
func ParseAAMVA(text string) map[string]string {
	out := make(map[string]string)
	for field, re := range aamvaPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			out[field] = m[1]
		}
	}
	return out
}
