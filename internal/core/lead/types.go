package lead

// Field names a caller may request for extraction. These are the only
// columns a job will ever emit.
const (
	FieldName      = "name"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldCompany   = "company"
	FieldTitle     = "title"
	FieldLocation  = "location"
	FieldIndustry  = "industry"
	FieldLinkedin  = "linkedin"
	FieldTwitter   = "twitter"
	FieldInstagram = "instagram"
	FieldFacebook  = "facebook"
	FieldWebsite   = "website"
)

// KnownFields lists every requestable field, in canonical column order.
var KnownFields = []string{
	FieldName, FieldEmail, FieldPhone, FieldCompany, FieldTitle,
	FieldLocation, FieldIndustry, FieldLinkedin, FieldTwitter,
	FieldInstagram, FieldFacebook, FieldWebsite,
}

// IsKnownField reports whether name is a requestable field.
func IsKnownField(name string) bool {
	for _, f := range KnownFields {
		if f == name {
			return true
		}
	}
	return false
}

// RawRecord is one loosely-typed record as returned by the provider.
type RawRecord = map[string]interface{}

// Record is one normalized lead. Every requested field is present as a
// key, with an empty string standing in for missing data, so consumers
// can rely on a fixed schema per job.
type Record map[string]string

// Empty reports whether the record carries no data at all.
func (r Record) Empty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}
