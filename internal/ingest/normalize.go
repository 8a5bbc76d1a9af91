package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"listingd/internal/source"
	"listingd/internal/store"
)

// NormalizeError marks a single raw item that could not be canonicalized.
// It is counted by the aggregator and never fails the run.
type NormalizeError struct {
	Source string
	Reason string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize (%s): %s", e.Source, e.Reason)
}

// Normalize maps a raw source item into a canonical store record.
//
// Identity fields (title+company+url for jobs, title+platform for courses)
// are required; anything else degrades gracefully. The dedup key is a pure
// function of the case-normalized, whitespace-trimmed identity fields, so
// the same logical listing collapses to one record no matter which source
// or fetch produced it.
func Normalize(item source.Item, sourceID string, kind store.Kind, now time.Time) (store.Record, error) {
	title := cleanText(item.Title)
	org := cleanText(item.Org)

	if title == "" {
		return store.Record{}, &NormalizeError{Source: sourceID, Reason: "missing title"}
	}
	if org == "" {
		return store.Record{}, &NormalizeError{Source: sourceID, Reason: "missing organization"}
	}

	var key string
	fields := map[string]string{}

	switch kind {
	case store.KindJob:
		url := strings.TrimSpace(item.URL)
		if url == "" {
			return store.Record{}, &NormalizeError{Source: sourceID, Reason: "missing url"}
		}
		key = DedupKey(title, org, url)

		desc := capLen(cleanText(item.Description), 500)
		loc := cleanText(item.Location)
		if loc == "" {
			loc = "Not specified"
		}
		fields["company"] = org
		fields["location"] = loc
		fields["url"] = url
		fields["type"] = jobType(title, desc, loc)
		fields["category"] = jobCategory(title, desc, sourceID)
		if desc != "" {
			fields["description"] = desc
		}
		if s := cleanText(item.Salary); s != "" {
			fields["salary"] = s
		}

	case store.KindCourse:
		key = DedupKey(title, org)

		desc := capLen(cleanText(item.Description), 500)
		fields["platform"] = strings.ToLower(org)
		if url := strings.TrimSpace(item.URL); url != "" {
			fields["url"] = url
		}
		if desc != "" {
			fields["description"] = desc
		}
		fields["category"] = courseCategory(title, desc, item.Extra["category"])
		fields["difficulty"] = difficulty(item.Extra["difficulty"])
		if d := cleanText(item.Extra["duration"]); d != "" {
			fields["duration"] = d
		}
		if r, ok := rating(item.Extra["rating"]); ok {
			fields["rating"] = strconv.FormatFloat(r, 'f', 1, 64)
		}
		if in := cleanText(item.Extra["instructor"]); in != "" {
			fields["instructor"] = in
		}

	default:
		return store.Record{}, &NormalizeError{Source: sourceID, Reason: "unknown record kind " + string(kind)}
	}

	if tags := normalizeTags(item.Tags); tags != "" {
		fields["tags"] = tags
	}
	if p := strings.TrimSpace(item.Posted); p != "" {
		fields["posted"] = p
	}

	return store.Record{
		Key:       key,
		Source:    sourceID,
		Title:     title,
		Fields:    fields,
		FirstSeen: now,
		LastSeen:  now,
		Active:    true,
	}, nil
}

// DedupKey derives the stable identity hash for a listing. Parts are
// lowercased and trimmed before hashing so incidental formatting never
// splits a record.
func DedupKey(parts ...string) string {
	norm := make([]string, len(parts))
	for i, p := range parts {
		norm[i] = strings.ToLower(strings.TrimSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(norm, "|")))
	return hex.EncodeToString(sum[:])
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// cleanText strips HTML tags and collapses whitespace.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = htmlTagRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func capLen(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func jobType(title, desc, loc string) string {
	text := strings.ToLower(title + " " + desc + " " + loc)
	switch {
	case strings.Contains(text, "hybrid"):
		return "hybrid"
	case strings.Contains(text, "remote"),
		strings.Contains(text, "work from home"),
		strings.Contains(text, "wfh"),
		strings.Contains(text, "anywhere"):
		return "remote"
	default:
		return "onsite"
	}
}

var itKeywords = []string{"software", "developer", "engineer", "programmer", "python", "java", "devops", "data"}

func jobCategory(title, desc, sourceID string) string {
	text := strings.ToLower(title + " " + desc)
	src := strings.ToLower(sourceID)

	if strings.Contains(src, "gov") || strings.Contains(src, "sarkari") {
		return "government"
	}
	if strings.Contains(text, "intern") {
		return "internship"
	}
	for _, kw := range itKeywords {
		if strings.Contains(text, kw) {
			return "IT"
		}
	}
	return "general"
}

func courseCategory(title, desc, raw string) string {
	if raw != "" {
		switch r := strings.ToLower(raw); {
		case strings.Contains(r, "python"):
			return "python"
		case strings.Contains(r, "security"), strings.Contains(r, "cyber"):
			return "cybersecurity"
		case strings.Contains(r, "machine learning"), strings.Contains(r, "ai"):
			return "ai"
		case strings.Contains(r, "web"):
			return "web_development"
		}
	}

	text := strings.ToLower(title + " " + desc)
	switch {
	case strings.Contains(text, "python"):
		return "python"
	case strings.Contains(text, "security"), strings.Contains(text, "hacking"), strings.Contains(text, "cyber"):
		return "cybersecurity"
	case strings.Contains(text, "machine learning"), strings.Contains(text, " ai "), strings.HasPrefix(text, "ai "):
		return "ai"
	case strings.Contains(text, "web development"), strings.Contains(text, "javascript"), strings.Contains(text, "html"), strings.Contains(text, "css"):
		return "web_development"
	case strings.Contains(text, "cloud"), strings.Contains(text, "aws"), strings.Contains(text, "azure"), strings.Contains(text, "devops"):
		return "cloud"
	case strings.Contains(text, "data science"), strings.Contains(text, "data analysis"):
		return "data_science"
	case strings.Contains(text, "android"), strings.Contains(text, "ios"), strings.Contains(text, "flutter"), strings.Contains(text, "mobile"):
		return "mobile"
	default:
		return "general"
	}
}

func difficulty(raw string) string {
	r := strings.ToLower(raw)
	switch {
	case strings.Contains(r, "advanced"), strings.Contains(r, "expert"):
		return "advanced"
	case strings.Contains(r, "intermediate"), strings.Contains(r, "medium"):
		return "intermediate"
	default:
		return "beginner"
	}
}

func rating(raw string) (float64, bool) {
	if strings.TrimSpace(raw) == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	if f < 0 {
		f = 0
	}
	if f > 5 {
		f = 5
	}
	return f, true
}

func normalizeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = cleanText(t)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) >= 10 {
			break
		}
	}
	return strings.Join(out, ",")
}
