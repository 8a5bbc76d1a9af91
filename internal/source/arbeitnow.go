package source

import (
	"context"
	"strconv"
)

const arbeitnowURL = "https://www.arbeitnow.com/api/job-board-api"

// Arbeitnow fetches jobs from the Arbeitnow job board API.
type Arbeitnow struct {
	url    string
	limit  int
	client *client
}

func NewArbeitnow(opts Options) *Arbeitnow {
	url := opts.URL
	if url == "" {
		url = arbeitnowURL
	}
	return &Arbeitnow{url: url, limit: opts.limit(), client: newClient(opts)}
}

func (a *Arbeitnow) Name() string { return "arbeitnow" }

func (a *Arbeitnow) Fetch(ctx context.Context) ([]Item, error) {
	var payload struct {
		Data []struct {
			Title       string   `json:"title"`
			CompanyName string   `json:"company_name"`
			Location    string   `json:"location"`
			Description string   `json:"description"`
			URL         string   `json:"url"`
			Tags        []string `json:"tags"`
			Remote      bool     `json:"remote"`
			CreatedAt   int64    `json:"created_at"`
		} `json:"data"`
	}
	if err := a.client.getJSON(ctx, a.url, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Data))
	for _, j := range payload.Data {
		if len(items) >= a.limit {
			break
		}
		loc := j.Location
		if loc == "" {
			loc = "Not specified"
		}
		if j.Remote {
			loc = "Remote"
		}
		var posted string
		if j.CreatedAt > 0 {
			posted = strconv.FormatInt(j.CreatedAt, 10)
		}
		items = append(items, Item{
			Title:       j.Title,
			Org:         j.CompanyName,
			Location:    loc,
			Description: truncDesc(j.Description),
			URL:         j.URL,
			Posted:      posted,
			Tags:        j.Tags,
		})
	}
	return items, nil
}
