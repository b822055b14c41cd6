package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"leadscraper/internal/core/lead"
	"leadscraper/internal/core/scrape"
)

// Service renders a completed job's records as downloadable files.
type Service struct {
	store       *scrape.Store
	countryCode string
}

func NewService(store *scrape.Store, countryCode string) *Service {
	if countryCode == "" {
		countryCode = "1"
	}
	return &Service{store: store, countryCode: countryCode}
}

var (
	ErrNotFound = fmt.Errorf("job not found")
	ErrNotReady = fmt.Errorf("job is not completed yet")
)

// CSV renders the job's records as a CSV document, one column per
// requested field in request order.
func (s *Service) CSV(jobID string) ([]byte, error) {
	job, err := s.completed(jobID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(job.Fields); err != nil {
		return nil, err
	}
	row := make([]string, len(job.Fields))
	for _, rec := range job.Records {
		for i, f := range job.Fields {
			row[i] = s.exportValue(f, rec[f])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSON renders the job's records as a JSON array of objects keyed by
// field name.
func (s *Service) JSON(jobID string) ([]byte, error) {
	job, err := s.completed(jobID)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]string, 0, len(job.Records))
	for _, rec := range job.Records {
		obj := make(map[string]string, len(job.Fields))
		for _, f := range job.Fields {
			obj[f] = s.exportValue(f, rec[f])
		}
		out = append(out, obj)
	}
	return json.MarshalIndent(out, "", "  ")
}

func (s *Service) completed(jobID string) (scrape.Job, error) {
	job, ok := s.store.Get(jobID)
	if !ok {
		return scrape.Job{}, ErrNotFound
	}
	if job.Status != scrape.StatusCompleted {
		return scrape.Job{}, ErrNotReady
	}
	return job, nil
}

func (s *Service) exportValue(field, value string) string {
	if field == lead.FieldPhone {
		return FormatPhoneForExport(value, s.countryCode)
	}
	return value
}

// FormatPhoneForExport rewrites a display-formatted phone number into a
// +-prefixed international form and guards it with a leading quote so
// spreadsheet software keeps it as text instead of mangling it into a
// formula or number.
func FormatPhoneForExport(value, countryCode string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	digits := digitsOf(value)
	var intl string
	switch {
	case strings.HasPrefix(value, "+"):
		intl = "+" + digits
	case strings.HasPrefix(digits, "00") && len(digits) > 2:
		intl = "+" + digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		intl = "+" + digits
	case len(digits) == 10:
		intl = "+" + countryCode + digits
	case len(digits) >= 7 && len(digits) < 10:
		intl = "+" + countryCode + digits
	case len(digits) >= 11:
		intl = "+" + digits
	default:
		return ""
	}
	return "'" + intl
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
