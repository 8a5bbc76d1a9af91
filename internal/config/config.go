// Package config loads and validates listingd configuration.
//
// Config files are JSON or YAML. YAML is coerced to JSON so both formats go
// through the same strict decoder (DisallowUnknownFields). All durations are
// Go duration strings (e.g. "90s", "6h").
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Sources   SourcesConfig   `json:"sources"`
	Retention RetentionConfig `json:"retention"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console *bool      `json:"console,omitempty"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// NotifyConfig controls operator notifications to a Telegram chat.
// Disabled unless a token and chat id are provided.
type NotifyConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	QueueSize  int    `json:"queue_size,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // "sqlite" (default) or "memory"
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SchedulerConfig wires the periodic tasks. Intervals are fixed at startup;
// the hot-reload path deliberately does not touch them.
type SchedulerConfig struct {
	Tick    string     `json:"tick,omitempty"`
	Jobs    TaskConfig `json:"jobs"`
	Courses TaskConfig `json:"courses"`
	Cleanup TaskConfig `json:"cleanup"`
}

// TaskConfig configures one registered task.
// Enabled is a pointer so "omitted" defaults to true.
type TaskConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Interval string `json:"interval,omitempty"`
}

func (t TaskConfig) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }

type SourcesConfig struct {
	Jobs    []SourceConfig `json:"jobs,omitempty"`
	Courses []SourceConfig `json:"courses,omitempty"`
}

// SourceConfig describes one connector instance.
//
// Type selects the implementation: "remotive", "arbeitnow", "coursera" or
// "rss". RSS sources need URL and Org; Keywords optionally filter titles.
type SourceConfig struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	URL        string   `json:"url,omitempty"`
	Org        string   `json:"org,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Enabled    *bool    `json:"enabled,omitempty"`
	Timeout    string   `json:"timeout,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	RatePerSec float64  `json:"rate_per_sec,omitempty"`
}

func (s SourceConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// RetentionConfig sets the sweep horizons.
//
// DeactivateAfter is the grace window before a listing missing from
// refreshes is marked inactive; ListingsMaxAge and RunsMaxAge are the hard
// deletion horizons.
type RetentionConfig struct {
	ListingsMaxAge  string `json:"listings_max_age,omitempty"`
	RunsMaxAge      string `json:"runs_max_age,omitempty"`
	DeactivateAfter string `json:"deactivate_after,omitempty"`
}

// Default returns a complete runnable configuration: the stock source set,
// 6h listing refreshes, daily cleanup, 30d/180d retention, 48h grace.
func Default() Config {
	on := true
	return Config{
		Logging: LoggingConfig{Level: "info", Console: &on},
		Storage: StorageConfig{Driver: "sqlite", Path: "./data/listingd.db", BusyTimeout: "5s"},
		Scheduler: SchedulerConfig{
			Tick:    "1m",
			Jobs:    TaskConfig{Interval: "6h"},
			Courses: TaskConfig{Interval: "6h"},
			Cleanup: TaskConfig{Interval: "24h"},
		},
		Sources: SourcesConfig{
			Jobs: []SourceConfig{
				{Name: "remotive", Type: "remotive"},
				{Name: "arbeitnow", Type: "arbeitnow"},
				{Name: "usajobs", Type: "rss", Org: "US Government", URL: "https://www.usajobs.gov/rss/jobs"},
			},
			Courses: []SourceConfig{
				{Name: "coursera", Type: "coursera"},
				{Name: "freecodecamp", Type: "rss", Org: "freecodecamp",
					URL:      "https://www.freecodecamp.org/news/rss/",
					Keywords: []string{"course", "tutorial", "learn", "guide", "bootcamp"}},
				{Name: "classcentral", Type: "rss", Org: "classcentral",
					URL: "https://www.classcentral.com/report/feed/"},
			},
		},
		Retention: RetentionConfig{
			ListingsMaxAge:  "720h",  // 30 days
			RunsMaxAge:      "4320h", // 180 days
			DeactivateAfter: "48h",
		},
	}
}

// Validate checks cross-field consistency and that every duration parses.
func (c *Config) Validate() error {
	if _, err := ParseDurationOrDefault("scheduler.tick", c.Scheduler.Tick, time.Minute); err != nil {
		return err
	}
	for _, t := range []struct {
		name string
		cfg  TaskConfig
	}{
		{"scheduler.jobs", c.Scheduler.Jobs},
		{"scheduler.courses", c.Scheduler.Courses},
		{"scheduler.cleanup", c.Scheduler.Cleanup},
	} {
		if !t.cfg.IsEnabled() {
			continue
		}
		d, err := ParseDurationField(t.name+".interval", t.cfg.Interval)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("%s.interval must be > 0", t.name)
		}
	}

	if c.Scheduler.Jobs.IsEnabled() && countEnabled(c.Sources.Jobs) == 0 {
		return fmt.Errorf("scheduler.jobs enabled but no enabled job sources configured")
	}
	if c.Scheduler.Courses.IsEnabled() && countEnabled(c.Sources.Courses) == 0 {
		return fmt.Errorf("scheduler.courses enabled but no enabled course sources configured")
	}

	for _, group := range [][]SourceConfig{c.Sources.Jobs, c.Sources.Courses} {
		for _, s := range group {
			if strings.TrimSpace(s.Name) == "" {
				return fmt.Errorf("source with empty name")
			}
			switch strings.ToLower(s.Type) {
			case "remotive", "arbeitnow", "coursera":
			case "rss":
				if strings.TrimSpace(s.URL) == "" {
					return fmt.Errorf("source %s: rss type requires url", s.Name)
				}
			default:
				return fmt.Errorf("source %s: unknown type %q", s.Name, s.Type)
			}
			if _, err := ParseDurationField("sources."+s.Name+".timeout", s.Timeout); err != nil {
				return err
			}
		}
	}

	for _, f := range []struct{ path, raw string }{
		{"retention.listings_max_age", c.Retention.ListingsMaxAge},
		{"retention.runs_max_age", c.Retention.RunsMaxAge},
		{"retention.deactivate_after", c.Retention.DeactivateAfter},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}

	if c.Notify.Enabled {
		if strings.TrimSpace(c.Notify.Token) == "" {
			return fmt.Errorf("notify.enabled requires notify.token")
		}
		if c.Notify.ChatID == 0 {
			return fmt.Errorf("notify.enabled requires notify.chat_id")
		}
	}

	return nil
}

func countEnabled(sources []SourceConfig) int {
	n := 0
	for _, s := range sources {
		if s.IsEnabled() {
			n++
		}
	}
	return n
}
