package lead

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Field canonicalization. Every function here is pure and total: bad
// input yields an empty string, never an error.

var (
	emailExactRe  = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
	emailSearchRe = regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	phoneRunRe    = regexp.MustCompile(`[0-9+\-(). ]{7,}`)
	domainRe      = regexp.MustCompile(`(?i)(?:[a-z0-9-]+\.)+[a-z]{2,}`)
)

var nameSuffixes = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {},
}

var honorifics = map[string]struct{}{
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "prof": {},
}

var regionAbbrevs = map[string]string{
	"usa": "USA", "uk": "UK", "uae": "UAE",
	"nyc": "NYC", "la": "LA", "sf": "SF", "dc": "DC",
}

var businessAbbrevs = map[string]string{
	"ceo": "CEO", "cto": "CTO", "cfo": "CFO", "coo": "COO",
	"vp": "VP", "svp": "SVP", "evp": "EVP",
	"hr": "HR", "it": "IT", "ai": "AI", "ml": "ML", "api": "API",
	"saas": "SaaS", "b2b": "B2B", "b2c": "B2C",
}

var connectorWords = map[string]struct{}{
	"and": {}, "or": {}, "of": {}, "the": {}, "in": {}, "at": {},
}

var platformDomains = map[string][]string{
	FieldLinkedin:  {"linkedin.com"},
	FieldTwitter:   {"twitter.com", "x.com"},
	FieldInstagram: {"instagram.com"},
	FieldFacebook:  {"facebook.com"},
}

// Normalize canonicalizes a single field value according to the field's
// rules. Values that fail validation become empty strings.
func Normalize(field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	switch field {
	case FieldName:
		return NormalizeName(value)
	case FieldEmail:
		return NormalizeEmail(value)
	case FieldPhone:
		return NormalizePhone(value)
	case FieldLinkedin, FieldTwitter, FieldInstagram, FieldFacebook:
		return NormalizePlatformURL(field, value)
	case FieldWebsite:
		return NormalizeWebsite(value)
	case FieldLocation:
		return NormalizeLocation(value)
	default:
		return NormalizeText(value)
	}
}

// NormalizeName capitalizes each whitespace-delimited token. Generational
// suffixes go upper-case, honorific prefixes get a trailing period, and
// apostrophe/hyphen compounds are capitalized per segment.
func NormalizeName(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		bare := strings.ToLower(strings.TrimSuffix(tok, "."))
		if _, ok := nameSuffixes[bare]; ok {
			tokens[i] = strings.ToUpper(tok)
			continue
		}
		if _, ok := honorifics[bare]; ok {
			tokens[i] = capitalize(bare) + "."
			continue
		}
		if strings.ContainsAny(tok, "'-") {
			tokens[i] = capitalizeCompound(tok)
			continue
		}
		tokens[i] = capitalize(tok)
	}
	return strings.Join(tokens, " ")
}

// NormalizeEmail lower-cases and validates. When the whole value is not a
// valid address it falls back to the first email-shaped substring.
func NormalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if emailExactRe.MatchString(s) {
		return s
	}
	return emailSearchRe.FindString(s)
}

// NormalizePhone extracts the first phone-shaped run and reformats it.
// US-style 10/11 digit numbers render as (AAA) BBB-CCCC; international
// numbers keep a bare + prefix; fewer than 7 digits is rejected.
func NormalizePhone(s string) string {
	run := strings.TrimSpace(phoneRunRe.FindString(s))
	if run == "" {
		return ""
	}
	intl := strings.HasPrefix(run, "+")
	digits := digitsOf(run)
	if len(digits) < 7 {
		return ""
	}
	if intl {
		if len(digits) == 11 && digits[0] == '1' {
			return formatUS(digits)
		}
		return "+" + digits
	}
	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return formatUS(digits)
	default:
		return digits
	}
}

// NormalizePlatformURL coerces the value to https:// form and accepts it
// only when the host belongs to the expected platform.
func NormalizePlatformURL(field, s string) string {
	s = ensureScheme(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range platformDomains[field] {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return s
		}
	}
	return ""
}

// NormalizeWebsite is far more lenient: anything containing a
// domain.tld-shaped substring passes, with a scheme prepended if absent.
func NormalizeWebsite(s string) string {
	s = ensureScheme(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if !domainRe.MatchString(s) {
		return ""
	}
	return s
}

// NormalizeLocation title-cases each token, keeping region abbreviations
// upper-case and connector words lower-case.
func NormalizeLocation(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		tokens[i] = mapToken(tok, func(core string) string {
			lower := strings.ToLower(core)
			if abbr, ok := regionAbbrevs[lower]; ok {
				return abbr
			}
			if _, ok := connectorWords[lower]; ok {
				return lower
			}
			return capitalize(core)
		})
	}
	return strings.Join(tokens, " ")
}

// NormalizeText collapses whitespace and capitalizes tokens, preserving
// business abbreviations and lower-casing connector words. The first
// token is always capitalized.
func NormalizeText(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		first := i == 0
		tokens[i] = mapToken(tok, func(core string) string {
			lower := strings.ToLower(core)
			if abbr, ok := businessAbbrevs[lower]; ok {
				return abbr
			}
			if !first {
				if _, ok := connectorWords[lower]; ok {
					return lower
				}
			}
			return capitalize(core)
		})
	}
	return strings.Join(tokens, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// capitalizeCompound capitalizes each sub-token of an apostrophe or
// hyphen compound independently, keeping the original separators.
func capitalizeCompound(s string) string {
	var b strings.Builder
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\'' || s[i] == '-' {
			b.WriteString(capitalize(s[start:i]))
			if i < len(s) {
				b.WriteByte(s[i])
			}
			start = i + 1
		}
	}
	return b.String()
}

// mapToken applies fn to a token's core, keeping any leading or trailing
// commas in place so "Austin," round-trips.
func mapToken(tok string, fn func(string) string) string {
	core := strings.Trim(tok, ",")
	if core == "" {
		return tok
	}
	idx := strings.Index(tok, core)
	return tok[:idx] + fn(core) + tok[idx+len(core):]
}

func ensureScheme(s string) string {
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		return s
	}
	// Bare values and www.-prefixed values both get an https scheme.
	return "https://" + s
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatUS(digits string) string {
	return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
}
