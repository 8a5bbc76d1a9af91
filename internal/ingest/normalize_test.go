package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"listingd/internal/source"
	"listingd/internal/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDedupKeyNormalization(t *testing.T) {
	base := DedupKey("Go Developer", "Acme", "https://acme.example/jobs/1")

	same := []struct {
		title, org, url string
	}{
		{"go developer", "acme", "https://acme.example/jobs/1"},
		{"  Go Developer  ", "Acme", "https://acme.example/jobs/1"},
		{"GO DEVELOPER", "ACME", "https://acme.example/jobs/1"},
	}
	for _, s := range same {
		if got := DedupKey(s.title, s.org, s.url); got != base {
			t.Fatalf("key for (%q,%q) diverged: %s != %s", s.title, s.org, got, base)
		}
	}

	if DedupKey("Go Developer", "Acme", "https://acme.example/jobs/2") == base {
		t.Fatalf("different url should produce a different key")
	}
	// The separator keeps field boundaries from bleeding together.
	if DedupKey("ab", "c") == DedupKey("a", "bc") {
		t.Fatalf("field boundary is not part of the identity")
	}
	if len(base) != 64 {
		t.Fatalf("key should be sha-256 hex, got %d chars", len(base))
	}
}

func TestNormalizeJob(t *testing.T) {
	item := source.Item{
		Title:       "  Senior   Backend Engineer ",
		Org:         "Acme Corp",
		URL:         "https://acme.example/jobs/42",
		Location:    "Remote",
		Description: "<p>Build <b>APIs</b> in Go.</p>",
		Salary:      "$150k",
		Tags:        []string{"go", "backend"},
		Posted:      "2026-02-20",
	}

	rec, err := Normalize(item, "remotive", store.KindJob, testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if rec.Title != "Senior Backend Engineer" {
		t.Fatalf("title not cleaned: %q", rec.Title)
	}
	if rec.Key != DedupKey("Senior Backend Engineer", "Acme Corp", "https://acme.example/jobs/42") {
		t.Fatalf("unexpected dedup key")
	}
	if rec.Source != "remotive" || !rec.Active {
		t.Fatalf("record meta: %+v", rec)
	}
	if !rec.FirstSeen.Equal(testNow) || !rec.LastSeen.Equal(testNow) {
		t.Fatalf("timestamps not stamped with now")
	}
	if rec.Fields["description"] != "Build APIs in Go." {
		t.Fatalf("html not stripped: %q", rec.Fields["description"])
	}
	if rec.Fields["type"] != "remote" {
		t.Fatalf("type = %q, want remote", rec.Fields["type"])
	}
	if rec.Fields["category"] != "IT" {
		t.Fatalf("category = %q, want IT", rec.Fields["category"])
	}
	if rec.Fields["tags"] != "go,backend" {
		t.Fatalf("tags = %q", rec.Fields["tags"])
	}
	if rec.Fields["salary"] != "$150k" || rec.Fields["posted"] != "2026-02-20" {
		t.Fatalf("fields: %+v", rec.Fields)
	}
}

func TestNormalizeJobMissingIdentity(t *testing.T) {
	cases := []struct {
		name string
		item source.Item
	}{
		{"no title", source.Item{Org: "Acme", URL: "https://x"}},
		{"no org", source.Item{Title: "Dev", URL: "https://x"}},
		{"no url", source.Item{Title: "Dev", Org: "Acme"}},
		{"tags-only title", source.Item{Title: "<b></b>", Org: "Acme", URL: "https://x"}},
	}
	for _, tc := range cases {
		_, err := Normalize(tc.item, "src", store.KindJob, testNow)
		var nerr *NormalizeError
		if !errors.As(err, &nerr) {
			t.Fatalf("%s: expected NormalizeError, got %v", tc.name, err)
		}
		if nerr.Source != "src" {
			t.Fatalf("%s: source = %q", tc.name, nerr.Source)
		}
	}
}

func TestNormalizeCourse(t *testing.T) {
	item := source.Item{
		Title: "Machine Learning Basics",
		Org:   "Coursera",
		URL:   "https://www.coursera.org/learn/ml-basics",
		Extra: map[string]string{
			"difficulty": "Intermediate level",
			"duration":   "20 hours",
			"rating":     "7.5",
			"instructor": "A. Ng",
		},
	}

	rec, err := Normalize(item, "coursera", store.KindCourse, testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	// Courses identify by title+platform; the url is informational.
	if rec.Key != DedupKey("Machine Learning Basics", "Coursera") {
		t.Fatalf("unexpected dedup key")
	}
	if rec.Fields["platform"] != "coursera" {
		t.Fatalf("platform = %q", rec.Fields["platform"])
	}
	if rec.Fields["category"] != "ai" {
		t.Fatalf("category = %q, want ai", rec.Fields["category"])
	}
	if rec.Fields["difficulty"] != "intermediate" {
		t.Fatalf("difficulty = %q", rec.Fields["difficulty"])
	}
	if rec.Fields["rating"] != "5.0" {
		t.Fatalf("rating should clamp to 5.0, got %q", rec.Fields["rating"])
	}
	if rec.Fields["duration"] != "20 hours" || rec.Fields["instructor"] != "A. Ng" {
		t.Fatalf("fields: %+v", rec.Fields)
	}
}

func TestNormalizeCourseNoURLStillValid(t *testing.T) {
	rec, err := Normalize(source.Item{Title: "Intro to CSS", Org: "freecodecamp"}, "fcc", store.KindCourse, testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if _, ok := rec.Fields["url"]; ok {
		t.Fatalf("empty url should be omitted")
	}
	if rec.Fields["category"] != "web_development" {
		t.Fatalf("category = %q", rec.Fields["category"])
	}
	if rec.Fields["difficulty"] != "beginner" {
		t.Fatalf("missing difficulty should default to beginner, got %q", rec.Fields["difficulty"])
	}
}

func TestJobTypeAndCategory(t *testing.T) {
	if got := jobType("Office Manager", "hybrid setup, remote fridays", ""); got != "hybrid" {
		t.Fatalf("hybrid wins over remote, got %q", got)
	}
	if got := jobType("Clerk", "", "New York"); got != "onsite" {
		t.Fatalf("default should be onsite, got %q", got)
	}
	if got := jobCategory("Analyst", "", "usajobs-gov"); got != "government" {
		t.Fatalf("gov source, got %q", got)
	}
	if got := jobCategory("Software Intern", "", "remotive"); got != "internship" {
		t.Fatalf("intern beats IT keywords, got %q", got)
	}
	if got := jobCategory("Barista", "", "remotive"); got != "general" {
		t.Fatalf("fallback, got %q", got)
	}
}

func TestCleanTextAndTags(t *testing.T) {
	if got := cleanText("a\n\t b   <br/> c"); got != "a b c" {
		t.Fatalf("cleanText = %q", got)
	}

	tags := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		tags = append(tags, "t")
	}
	if got := normalizeTags(tags); strings.Count(got, ",") != 9 {
		t.Fatalf("tags should cap at 10, got %q", got)
	}
	if got := normalizeTags([]string{"", "  ", "x"}); got != "x" {
		t.Fatalf("empty tags should drop, got %q", got)
	}
}
