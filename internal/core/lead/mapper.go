package lead

import (
	"strconv"
	"strings"
)

// Raw key aliases probed per requested field, in priority order. The
// provider's records are inconsistent across actor versions, so each
// field carries every spelling we have seen in the wild.
var fieldAliases = map[string][]string{
	FieldName:      {"name", "full_name"},
	FieldEmail:     {"email", "email_address", "contact_email"},
	FieldPhone:     {"sanitized_phone", "phone", "phone_number", "phone_numbers", "organization.phone"},
	FieldCompany:   {"company", "organization_name", "organization.name", "company_name"},
	FieldTitle:     {"title", "job_title", "position", "headline"},
	FieldIndustry:  {"industry", "organization.industry", "sector"},
	FieldLinkedin:  {"linkedin_url", "linkedin", "person_linkedin_url"},
	FieldTwitter:   {"twitter_url", "twitter"},
	FieldInstagram: {"instagram_url", "instagram"},
	FieldFacebook:  {"facebook_url", "facebook"},
	FieldWebsite:   {"website_url", "website", "organization_website_url", "organization.website_url"},
}

// Location is composed from discrete parts when any are present; the
// free-text keys are a fallback only.
var (
	locationParts    = [][]string{{"city", "organization.city"}, {"state", "organization.state"}, {"country", "organization.country"}}
	locationFallback = []string{"location", "present_raw_address", "formatted_address"}
	namePartKeys     = [][]string{{"first_name", "firstName"}, {"last_name", "lastName"}}
)

// Keys probed inside nested objects, e.g. entries of a phone_numbers
// array.
var nestedValueKeys = []string{"sanitized_number", "raw_number", "number", "value"}

// MapRecord resolves every requested field from a raw provider record
// and normalizes each value. It is total: any field that cannot be
// resolved or fails validation is present with an empty string.
func MapRecord(raw RawRecord, fields []string) Record {
	rec := make(Record, len(fields))
	for _, f := range fields {
		rec[f] = resolveField(raw, f)
	}
	return rec
}

func resolveField(raw RawRecord, field string) (out string) {
	// A malformed raw value must never take down the record or its
	// sibling fields.
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()

	switch field {
	case FieldLocation:
		return Normalize(field, resolveLocation(raw))
	case FieldName:
		return Normalize(field, resolveName(raw))
	default:
		return Normalize(field, firstNonEmpty(raw, fieldAliases[field]))
	}
}

func resolveLocation(raw RawRecord) string {
	parts := make([]string, 0, len(locationParts))
	for _, keys := range locationParts {
		if v := firstNonEmpty(raw, keys); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return firstNonEmpty(raw, locationFallback)
}

func resolveName(raw RawRecord) string {
	if v := firstNonEmpty(raw, fieldAliases[FieldName]); v != "" {
		return v
	}
	parts := make([]string, 0, 2)
	for _, keys := range namePartKeys {
		if v := firstNonEmpty(raw, keys); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(raw RawRecord, keys []string) string {
	for _, key := range keys {
		if v := stringify(lookup(raw, key)); v != "" {
			return v
		}
	}
	return ""
}

// lookup resolves a possibly dotted key path against the raw record.
func lookup(raw RawRecord, key string) interface{} {
	cur := interface{}(raw)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// stringify coerces the loose provider value shapes to a single string:
// plain strings, numbers, nested objects with a known value key, and
// arrays of any of those (first non-empty element wins).
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return ""
	case map[string]interface{}:
		for _, k := range nestedValueKeys {
			if s := stringify(t[k]); s != "" {
				return s
			}
		}
		return ""
	case []interface{}:
		for _, el := range t {
			if s := stringify(el); s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
