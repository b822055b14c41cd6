package progress

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Delta is the structured progress extracted from one chunk of provider
// log text. Zero-valued fields carried no signal and must not overwrite
// existing progress state.
type Delta struct {
	Percent        int
	CurrentPage    int
	RecordsFound   int
	CurrentURL     string
	Message        string
	ErrorSeen      bool
	ProcessingRate float64 // records per minute
	ETA            time.Duration
}

// Provider runs rarely page past this; it anchors the page-based
// percentage estimate.
const assumedTotalPages = 10

const maxHeuristicPercent = 95

var (
	pageRe    = regexp.MustCompile(`(?i)page[\s:#]*(\d+)`)
	countRe   = regexp.MustCompile(`(?i)(\d+)\s+(?:results|leads|records|items|profiles)`)
	urlRe     = regexp.MustCompile(`https?://[^\s"'<>]+`)
	percentRe = regexp.MustCompile(`(\d{1,3})%`)
	errorRe   = regexp.MustCompile(`(?i)\b(error|failed|failure|timeout|timed out|blocked)\b`)
)

// Milestone phrases emitted by the provider's actor, checked in order so
// later phases win when a chunk spans several.
var milestones = []struct {
	marker  string
	message string
}{
	{"logging in", "Logging into provider..."},
	{"executing search", "Executing search..."},
	{"extracting data", "Extracting lead data..."},
	{"crawl finished", "Finalizing results..."},
	{"run succeeded", "Finalizing results..."},
	{"finished successfully", "Finalizing results..."},
}

// Parse heuristically translates a chunk of provider log text into a
// progress delta. It is stateless: the caller tracks the log read
// offset and feeds only new text. Returns nil when nothing in the chunk
// matched, so callers never clobber good state with emptiness.
func Parse(chunk string, elapsed time.Duration) *Delta {
	if strings.TrimSpace(chunk) == "" {
		return nil
	}

	var d Delta
	matched := false

	for _, m := range pageRe.FindAllStringSubmatch(chunk, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > d.CurrentPage {
			d.CurrentPage = n
		}
	}
	if d.CurrentPage > 0 {
		matched = true
		d.Percent = d.CurrentPage * 100 / assumedTotalPages
		if d.Percent > maxHeuristicPercent {
			d.Percent = maxHeuristicPercent
		}
	}

	for _, m := range countRe.FindAllStringSubmatch(chunk, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			d.RecordsFound += n
			matched = true
		}
	}

	if urls := urlRe.FindAllString(chunk, -1); len(urls) > 0 {
		d.CurrentURL = urls[len(urls)-1]
		matched = true
	}

	lower := strings.ToLower(chunk)
	for _, ms := range milestones {
		if strings.Contains(lower, ms.marker) {
			d.Message = ms.message
			matched = true
		}
	}
	if errorRe.MatchString(chunk) {
		d.ErrorSeen = true
		matched = true
	}

	// Explicit percentages beat the page-based estimate.
	explicit := 0
	for _, m := range percentRe.FindAllStringSubmatch(chunk, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 100 && n > explicit {
			explicit = n
		}
	}
	if explicit > d.Percent {
		d.Percent = explicit
		matched = true
	}

	if !matched {
		return nil
	}

	if d.RecordsFound > 0 && elapsed > 0 {
		d.ProcessingRate = float64(d.RecordsFound) / elapsed.Minutes()
	}
	if d.CurrentPage > 0 && elapsed > 0 && d.CurrentPage < assumedTotalPages {
		perPage := elapsed / time.Duration(d.CurrentPage)
		d.ETA = perPage * time.Duration(assumedTotalPages-d.CurrentPage)
	}

	return &d
}
