// Package validator checks crawl submissions before they reach the crawler
// and reports failures per field.
package validator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const maxURLLength = 2048

// CrawlRequest is the body of POST /post.
type CrawlRequest struct {
	URL string `json:"url"`
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Message returns the first failure in field order, suitable for a single
// error string.
func (e *ValidationError) Message() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	if len(fields) == 0 {
		return ""
	}
	return e.Fields[fields[0]]
}

// ValidateCrawlRequest requires an absolute http(s) URL with a host. The URL
// is trimmed in place.
func ValidateCrawlRequest(req *CrawlRequest) error {
	errs := make(map[string]string)

	req.URL = strings.TrimSpace(req.URL)
	switch {
	case req.URL == "":
		errs["url"] = "URL is required"
	case len(req.URL) > maxURLLength:
		errs["url"] = fmt.Sprintf("URL must be at most %d characters", maxURLLength)
	default:
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs["url"] = "URL must be an absolute http or https URL"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
