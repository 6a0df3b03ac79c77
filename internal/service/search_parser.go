package service

import (
	"strings"

	"tubegate/internal/model"
)

// searchPrintTemplate makes yt-dlp emit one pipe separated line per result
const searchPrintTemplate = "%(id)s|%(title)s|%(duration_string)s|%(thumbnail)s"

// ParseSearchOutput turns extractor output into results. Fields are id,
// title, duration and thumbnail; a title containing the delimiter keeps its
// pipes. Lines without a usable id or title are dropped.
func ParseSearchOutput(out string) []model.SearchResult {
	results := []model.SearchResult{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if r, ok := parseSearchLine(line); ok {
			results = append(results, r)
		}
	}
	return results
}

func parseSearchLine(line string) (model.SearchResult, bool) {
	fields := strings.Split(line, "|")
	var r model.SearchResult

	switch {
	case len(fields) >= 4:
		n := len(fields)
		r.ID = fields[0]
		r.Title = strings.Join(fields[1:n-2], "|")
		r.Duration = fields[n-2]
		r.Thumbnail = fields[n-1]
	default:
		for len(fields) < 4 {
			fields = append(fields, "")
		}
		r.ID, r.Title, r.Duration, r.Thumbnail = fields[0], fields[1], fields[2], fields[3]
	}

	r.ID = strings.TrimSpace(r.ID)
	r.Title = strings.TrimSpace(r.Title)
	// yt-dlp prints NA for fields it could not extract
	if r.ID == "" || r.ID == "NA" || r.Title == "" || r.Title == "NA" {
		return r, false
	}
	return r, true
}
