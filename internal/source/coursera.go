package source

import "context"

const courseraURL = "https://www.coursera.org/api/courses.v1?fields=name,description,workload,slug&limit=50"

// Coursera fetches courses from the public Coursera catalog API.
type Coursera struct {
	url    string
	limit  int
	client *client
}

func NewCoursera(opts Options) *Coursera {
	url := opts.URL
	if url == "" {
		url = courseraURL
	}
	return &Coursera{url: url, limit: opts.limit(), client: newClient(opts)}
}

func (c *Coursera) Name() string { return "coursera" }

func (c *Coursera) Fetch(ctx context.Context) ([]Item, error) {
	var payload struct {
		Elements []struct {
			Name        string `json:"name"`
			Slug        string `json:"slug"`
			Description string `json:"description"`
			Workload    string `json:"workload"`
		} `json:"elements"`
	}
	if err := c.client.getJSON(ctx, c.url, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Elements))
	for _, e := range payload.Elements {
		if len(items) >= c.limit {
			break
		}
		items = append(items, Item{
			Title:       e.Name,
			Org:         "coursera",
			Description: truncDesc(e.Description),
			URL:         "https://www.coursera.org/learn/" + e.Slug,
			Extra:       map[string]string{"duration": e.Workload},
		})
	}
	return items, nil
}
