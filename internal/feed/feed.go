// Package feed builds the candidate pool from a submission search API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/glizzus/dank-ditties/internal/config"
	"github.com/glizzus/dank-ditties/internal/util"
	"golang.org/x/time/rate"
)

// HTTPClient is an abstraction for making HTTP requests.
// The implementation is usually Go's stdlib http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Post is the part of a submission the importer cares about.
type Post struct {
	URL        string  `json:"url"`
	Domain     string  `json:"domain"`
	CreatedUTC float64 `json:"created_utc"`
}

type page struct {
	Data []Post `json:"data"`
}

// Importer pages backwards through a subreddit's submissions, newest
// first, and collects the links that Allowed accepts.
type Importer struct {
	Endpoint  string
	Subreddit string
	PageSize  int
	Limit     int
	Allowed   func(url string) bool

	Client  HTTPClient
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

func NewImporterFromConfig(cfg config.FeedConfig, allowed func(string) bool) *Importer {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultFeedEndpoint
	}
	return &Importer{
		Endpoint:  endpoint,
		Subreddit: cfg.Subreddit,
		PageSize:  cfg.PageSize,
		Limit:     cfg.Limit,
		Allowed:   allowed,
		Client:    http.DefaultClient,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		Logger:    slog.Default(),
	}
}

// Load fetches pages until one comes back empty or Limit distinct links
// have been collected.
func (i *Importer) Load(ctx context.Context) ([]string, error) {
	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		links  []string
		seen   = make(map[string]struct{})
		before *float64
	)

	for len(links) < i.Limit {
		if i.Limiter != nil {
			if err := i.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		posts, err := i.fetch(ctx, before)
		if err != nil {
			return nil, err
		}
		if len(posts) == 0 {
			break
		}
		logger.Debug("fetched feed page", "posts", len(posts), "links", len(links))

		previous := before
		for _, p := range posts {
			created := p.CreatedUTC
			before = &created

			if i.Allowed != nil && !i.Allowed(p.URL) {
				continue
			}
			if _, ok := seen[p.URL]; ok {
				continue
			}
			seen[p.URL] = struct{}{}
			links = append(links, p.URL)
		}

		// An endpoint that ignores the cursor would page forever.
		if previous != nil && *before >= *previous {
			logger.Warn("feed cursor did not advance, stopping", "before", *before)
			break
		}
	}

	if len(links) > i.Limit {
		links = links[:i.Limit]
	}
	logger.Info("loaded candidate pool", "subreddit", i.Subreddit, "size", len(links))
	return links, nil
}

func (i *Importer) fetch(ctx context.Context, before *float64) ([]Post, error) {
	u, err := url.Parse(i.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid feed endpoint: %w", err)
	}
	q := u.Query()
	q.Set("subreddit", i.Subreddit)
	q.Set("sort", "desc")
	q.Set("sort_type", "created_utc")
	q.Set("size", strconv.Itoa(i.PageSize))
	if before != nil {
		q.Set("before", strconv.FormatFloat(*before, 'f', -1, 64))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch feed page: %s", resp.Status)
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode feed page: %w", err)
	}
	return p.Data, nil
}

// LoadFile reads a pool saved as a JSON array of URLs.
func LoadFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var urls []string
	if err := json.Unmarshal(b, &urls); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return util.Dedupe(urls), nil
}

// Load returns the pool from the configured file, or from the feed when
// no file is set.
func Load(ctx context.Context, cfg config.FeedConfig, allowed func(string) bool) ([]string, error) {
	if cfg.File != "" {
		urls, err := LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		if allowed == nil {
			return urls, nil
		}
		filtered := urls[:0]
		for _, u := range urls {
			if allowed(u) {
				filtered = append(filtered, u)
			}
		}
		return filtered, nil
	}
	return NewImporterFromConfig(cfg, allowed).Load(ctx)
}
