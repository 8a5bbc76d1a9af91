package source

import "context"

const remotiveURL = "https://remotive.com/api/remote-jobs"

// Remotive fetches global remote jobs from the Remotive public API.
type Remotive struct {
	url    string
	limit  int
	client *client
}

func NewRemotive(opts Options) *Remotive {
	url := opts.URL
	if url == "" {
		url = remotiveURL
	}
	return &Remotive{url: url, limit: opts.limit(), client: newClient(opts)}
}

func (r *Remotive) Name() string { return "remotive" }

func (r *Remotive) Fetch(ctx context.Context) ([]Item, error) {
	var payload struct {
		Jobs []struct {
			Title           string   `json:"title"`
			CompanyName     string   `json:"company_name"`
			URL             string   `json:"url"`
			Description     string   `json:"description"`
			Tags            []string `json:"tags"`
			PublicationDate string   `json:"publication_date"`
			Salary          string   `json:"salary"`
		} `json:"jobs"`
	}
	if err := r.client.getJSON(ctx, r.url, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Jobs))
	for _, j := range payload.Jobs {
		if len(items) >= r.limit {
			break
		}
		items = append(items, Item{
			Title:       j.Title,
			Org:         j.CompanyName,
			Location:    "Remote",
			Description: truncDesc(j.Description),
			URL:         j.URL,
			Salary:      j.Salary,
			Posted:      j.PublicationDate,
			Tags:        j.Tags,
		})
	}
	return items, nil
}
