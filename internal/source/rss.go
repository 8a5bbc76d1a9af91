package source

import (
	"context"
	"strings"
)

// RSSFeed is a generic connector for RSS 2.0 listing feeds (freeCodeCamp
// tutorials, Class Central reports, government job boards, ...).
//
// Org is stamped on every item; for course feeds it is the platform name.
// Keywords, when set, keep only items whose title contains at least one of
// them (case-insensitive); course feeds mix tutorials with general news.
type RSSFeed struct {
	name     string
	org      string
	url      string
	limit    int
	keywords []string
	client   *client
}

func NewRSSFeed(name, org, url string, keywords []string, opts Options) *RSSFeed {
	return &RSSFeed{
		name:     name,
		org:      org,
		url:      url,
		limit:    opts.limit(),
		keywords: keywords,
		client:   newClient(opts),
	}
}

func (f *RSSFeed) Name() string { return f.name }

type rssDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Author      string   `xml:"creator"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
}

func (f *RSSFeed) Fetch(ctx context.Context) ([]Item, error) {
	var doc rssDoc
	if err := f.client.getXML(ctx, f.url, &doc); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		if len(items) >= f.limit {
			break
		}
		if !f.matches(it.Title) {
			continue
		}
		items = append(items, Item{
			Title:       it.Title,
			Org:         f.org,
			Description: truncDesc(it.Description),
			URL:         it.Link,
			Posted:      it.PubDate,
			Tags:        it.Categories,
		})
	}
	return items, nil
}

func (f *RSSFeed) matches(title string) bool {
	if len(f.keywords) == 0 {
		return true
	}
	t := strings.ToLower(title)
	for _, kw := range f.keywords {
		if strings.Contains(t, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
