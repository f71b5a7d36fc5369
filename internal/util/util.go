// Package util provides shared helpers for flatwiki.
package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// reservedPrefixRe matches URLs that would shadow built-in routes.
var reservedPrefixRe = regexp.MustCompile(`(?i)^(user|tag|create|search|index)`)

var multiSpaceRe = regexp.MustCompile(`[ ]{2,}`)

// Urlify cleans a raw URL into a canonical page slug: lower-cased,
// underscores and spaces collapsed to hyphens, backslashes normalized to
// forward slashes. When protectSpecials is true, slugs that would collide
// with a reserved route prefix are escaped with a leading hyphen.
func Urlify(url string, protectSpecials bool) string {
	if protectSpecials && reservedPrefixRe.MatchString(url) {
		url = "-" + url
	}
	pretty := strings.TrimSpace(multiSpaceRe.ReplaceAllString(url, " "))
	pretty = strings.ToLower(pretty)
	pretty = strings.ReplaceAll(pretty, "_", "-")
	pretty = strings.ReplaceAll(pretty, " ", "-")
	pretty = strings.ReplaceAll(pretty, "\\", "/")
	return pretty
}

// HasReservedPrefix reports whether url begins with a reserved route prefix.
func HasReservedPrefix(url string) bool {
	return reservedPrefixRe.MatchString(url)
}

// Empty checks if a string is empty or contains only whitespace.
func Empty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// NormalizeLineEndings converts CRLF sequences to the host convention.
func NormalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// SplitPath splits a slash-separated page URL into its non-empty segments.
func SplitPath(p string) []string {
	if p == "" {
		return nil
	}
	parts := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	var result []string
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// Breadcrumb represents a navigation breadcrumb.
type Breadcrumb struct {
	Name string
	Path string
}

// Breadcrumbs generates navigation breadcrumbs for a page URL.
func Breadcrumbs(url string) []Breadcrumb {
	parts := SplitPath(url)
	var crumbs []Breadcrumb
	var current string
	for _, part := range parts {
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}
		crumbs = append(crumbs, Breadcrumb{Name: part, Path: "/" + current})
	}
	return crumbs
}

// RelativeTime formats the distance between t and now for display.
func RelativeTime(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = -d
	}

	seconds := int(d.Seconds())
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days == 1:
		return "1 day ago"
	case days > 1:
		return fmt.Sprintf("%d days ago", days)
	case hours == 1:
		return "1 hour ago"
	case hours > 1:
		return fmt.Sprintf("%d hours ago", hours)
	case minutes == 1:
		return "1 minute ago"
	case minutes > 1:
		return fmt.Sprintf("%d minutes ago", minutes)
	case seconds == 1:
		return "1 second ago"
	}
	return fmt.Sprintf("%d seconds ago", seconds)
}

// FormatDatetime formats a time for display.
func FormatDatetime(t time.Time, format string) string {
	switch format {
	case "medium":
		return t.Format("2006-01-02 15:04")
	case "deltanow":
		return RelativeTime(t)
	default:
		return t.Format("2006-01-02 15:04:05")
	}
}
