// Package source defines the connector contract for external listing
// providers and ships the HTTP/RSS connectors the aggregators fan out to.
//
// A connector maps one provider's payload into the common raw Item shape.
// Normalization and deduplication happen later, in internal/ingest.
package source

import (
	"context"
	"time"
)

// Item is the raw shape every provider payload is mapped into before
// normalization. Org is the company for jobs and the platform for courses.
type Item struct {
	Title       string
	Org         string
	Location    string
	Description string
	URL         string
	Salary      string
	Posted      string
	Tags        []string
	Extra       map[string]string
}

// Connector fetches raw items from one external provider.
//
// Fetch must honor ctx cancellation; the owning aggregator bounds every call
// with a per-call timeout and treats any error as isolated to this source.
type Connector interface {
	Name() string
	Fetch(ctx context.Context) ([]Item, error)
}

// Options tune a connector built from config.
type Options struct {
	// URL overrides the provider default (also how tests point connectors
	// at a local server).
	URL string

	// Limit caps items taken per fetch. 0 means defaultItemLimit.
	Limit int

	// Timeout bounds the underlying HTTP client. 0 means defaultTimeout.
	Timeout time.Duration

	// RatePerSec paces requests to the provider. 0 disables pacing.
	RatePerSec float64
}

const (
	defaultItemLimit = 50
	defaultTimeout   = 10 * time.Second
)

func (o Options) limit() int {
	if o.Limit > 0 {
		return o.Limit
	}
	return defaultItemLimit
}
