package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "listingd/") {
			t.Errorf("missing user agent, got %q", ua)
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemotiveFetch(t *testing.T) {
	srv := serve(t, "application/json", `{
		"jobs": [
			{"title": "Go Developer", "company_name": "Acme", "url": "https://acme.example/1",
			 "description": "Ship services", "tags": ["go", "backend"],
			 "publication_date": "2026-02-20", "salary": "$150k"},
			{"title": "Designer", "company_name": "Beta", "url": "https://beta.example/2"}
		]
	}`)

	r := NewRemotive(Options{URL: srv.URL})
	items, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items: %d", len(items))
	}
	first := items[0]
	if first.Title != "Go Developer" || first.Org != "Acme" || first.URL != "https://acme.example/1" {
		t.Fatalf("item: %+v", first)
	}
	if first.Location != "Remote" {
		t.Fatalf("remotive items are always remote, got %q", first.Location)
	}
	if first.Salary != "$150k" || first.Posted != "2026-02-20" || len(first.Tags) != 2 {
		t.Fatalf("item: %+v", first)
	}
}

func TestRemotiveLimit(t *testing.T) {
	srv := serve(t, "application/json", `{"jobs": [
		{"title": "A", "company_name": "x", "url": "u1"},
		{"title": "B", "company_name": "x", "url": "u2"},
		{"title": "C", "company_name": "x", "url": "u3"}
	]}`)

	r := NewRemotive(Options{URL: srv.URL, Limit: 2})
	items, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("limit not applied: %d", len(items))
	}
}

func TestArbeitnowFetch(t *testing.T) {
	srv := serve(t, "application/json", `{"data": [
		{"title": "Backend Dev", "company_name": "Gmbh", "location": "Berlin",
		 "url": "https://an.example/1", "remote": false, "created_at": 1760000000},
		{"title": "Platform Eng", "company_name": "Gmbh", "location": "Berlin",
		 "url": "https://an.example/2", "remote": true},
		{"title": "Ops", "company_name": "Gmbh", "url": "https://an.example/3"}
	]}`)

	a := NewArbeitnow(Options{URL: srv.URL})
	items, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items: %d", len(items))
	}
	if items[0].Location != "Berlin" || items[0].Posted != "1760000000" {
		t.Fatalf("item 0: %+v", items[0])
	}
	if items[1].Location != "Remote" {
		t.Fatalf("remote flag should override location: %+v", items[1])
	}
	if items[2].Location != "Not specified" {
		t.Fatalf("empty location: %+v", items[2])
	}
}

func TestCourseraFetch(t *testing.T) {
	srv := serve(t, "application/json", `{"elements": [
		{"name": "ML Basics", "slug": "ml-basics", "description": "Intro", "workload": "20 hours"}
	]}`)

	c := NewCoursera(Options{URL: srv.URL})
	items, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items: %d", len(items))
	}
	it := items[0]
	if it.Org != "coursera" {
		t.Fatalf("org: %q", it.Org)
	}
	if it.URL != "https://www.coursera.org/learn/ml-basics" {
		t.Fatalf("url: %q", it.URL)
	}
	if it.Extra["duration"] != "20 hours" {
		t.Fatalf("extra: %+v", it.Extra)
	}
}

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>feed</title>
    <item>
      <title>Learn Go in 30 Days</title>
      <link>https://fcc.example/go-course</link>
      <description>A full course</description>
      <pubDate>Fri, 20 Feb 2026 10:00:00 GMT</pubDate>
      <category>golang</category>
      <category>tutorial</category>
    </item>
    <item>
      <title>Community Update February</title>
      <link>https://fcc.example/update</link>
      <description>News</description>
    </item>
  </channel>
</rss>`

func TestRSSFetchWithKeywords(t *testing.T) {
	srv := serve(t, "application/rss+xml", sampleRSS)

	f := NewRSSFeed("freecodecamp", "freecodecamp", srv.URL,
		[]string{"course", "tutorial", "learn"}, Options{})
	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("keyword filter should drop the news item: %d", len(items))
	}
	it := items[0]
	if it.Title != "Learn Go in 30 Days" || it.Org != "freecodecamp" {
		t.Fatalf("item: %+v", it)
	}
	if it.URL != "https://fcc.example/go-course" || len(it.Tags) != 2 {
		t.Fatalf("item: %+v", it)
	}
}

func TestRSSFetchNoKeywordsKeepsAll(t *testing.T) {
	srv := serve(t, "application/rss+xml", sampleRSS)

	f := NewRSSFeed("feed", "org", srv.URL, nil, Options{})
	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items: %d", len(items))
	}
}

func TestFetchRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	r := NewRemotive(Options{URL: srv.URL})
	if _, err := r.Fetch(context.Background()); err == nil {
		t.Fatalf("non-200 should error")
	}
}

func TestFetchRejectsBadJSON(t *testing.T) {
	srv := serve(t, "application/json", `{"jobs": [`)

	r := NewRemotive(Options{URL: srv.URL})
	if _, err := r.Fetch(context.Background()); err == nil {
		t.Fatalf("truncated payload should error")
	}
}

func TestFetchHonorsCancel(t *testing.T) {
	srv := serve(t, "application/json", `{"jobs": []}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRemotive(Options{URL: srv.URL})
	if _, err := r.Fetch(ctx); err == nil {
		t.Fatalf("canceled context should abort the fetch")
	}
}