package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john smith", "John Smith"},
		{"JOHN SMITH", "John Smith"},
		{"robert downey jr", "Robert Downey JR"},
		{"dr jane smith", "Dr. Jane Smith"},
		{"o'brien", "O'Brien"},
		{"mary-jane watson", "Mary-Jane Watson"},
		{"  spaced   out  ", "Spaced Out"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "john@acme.com", NormalizeEmail("John@Acme.COM"))
	assert.Equal(t, "john@acme.com", NormalizeEmail("contact: john@acme.com (primary)"))
	assert.Equal(t, "", NormalizeEmail("not an email"))
	assert.Equal(t, "", NormalizeEmail("john@nodot"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"4155551234", "(415) 555-1234"},
		{"415-555-1234", "(415) 555-1234"},
		{"14155551234", "+1 (415) 555-1234"},
		{"+14155551234", "+1 (415) 555-1234"},
		{"+442071234567", "+442071234567"},
		{"call me at (415) 555-1234 today", "(415) 555-1234"},
		{"12345", ""},
		{"no digits here", ""},
		{"555123456", "555123456"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "input %q", tt.in)
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	for _, in := range []string{"4155551234", "+14155551234", "415 555 1234"} {
		once := NormalizePhone(in)
		assert.Equal(t, once, NormalizePhone(once), "input %q", in)
	}
}

func TestNormalizePlatformURL(t *testing.T) {
	assert.Equal(t, "https://www.linkedin.com/in/jdoe", NormalizePlatformURL(FieldLinkedin, "www.linkedin.com/in/jdoe"))
	assert.Equal(t, "https://linkedin.com/in/jdoe", NormalizePlatformURL(FieldLinkedin, "linkedin.com/in/jdoe"))
	assert.Equal(t, "https://x.com/jdoe", NormalizePlatformURL(FieldTwitter, "https://x.com/jdoe"))

	// Wrong platform host is rejected.
	assert.Equal(t, "", NormalizePlatformURL(FieldTwitter, "https://linkedin.com/in/jdoe"))
	assert.Equal(t, "", NormalizePlatformURL(FieldLinkedin, "https://evil-linkedin.com.example.org/x"))
	assert.Equal(t, "", NormalizePlatformURL(FieldFacebook, "not a url at all ://"))
}

func TestNormalizeWebsite(t *testing.T) {
	assert.Equal(t, "https://acme.io", NormalizeWebsite("acme.io"))
	assert.Equal(t, "http://www.acme.io/about", NormalizeWebsite("http://www.acme.io/about"))
	assert.Equal(t, "", NormalizeWebsite("just words"))
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "San Francisco, USA", NormalizeLocation("san francisco, usa"))
	assert.Equal(t, "NYC", NormalizeLocation("nyc"))
	assert.Equal(t, "Austin, Texas", NormalizeLocation("austin, texas"))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "CEO of Acme", NormalizeText("ceo of acme"))
	assert.Equal(t, "VP HR", NormalizeText("vp hr"))
	assert.Equal(t, "SaaS Sales", NormalizeText("saas sales"))
	assert.Equal(t, "The Head of Sales", NormalizeText("the head of sales"))
}

func TestNormalizeTotality(t *testing.T) {
	// Every known field maps garbage to an empty or sane string, never
	// panics.
	for _, f := range KnownFields {
		assert.NotPanics(t, func() { Normalize(f, "\x00\xff ???") })
		assert.Equal(t, "", Normalize(f, "   "))
	}
}
