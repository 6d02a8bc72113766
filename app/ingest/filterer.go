package ingest

import (
	"fmt"
	"strings"

	"github.com/crawlai/crawl-engine/app/database"
)

const (
	FilterFieldTitle   = "title"
	FilterFieldSummary = "summary"
	FilterFieldBody    = "body"
	FilterFieldURL     = "url"
)

var FilterFields = []string{FilterFieldTitle, FilterFieldSummary, FilterFieldBody, FilterFieldURL}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run reports whether candidate is dropped by any of filters and why.
func (f *Filterer) Run(candidate Candidate, filters []database.Filter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(candidate, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(c Candidate, field string) string {
	switch field {
	case FilterFieldTitle:
		return c.Title
	case FilterFieldSummary:
		return c.Summary
	case FilterFieldBody:
		return c.Body
	case FilterFieldURL:
		return c.URL
	default:
		return ""
	}
}
