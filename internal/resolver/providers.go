package resolver

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/glizzus/dank-ditties/internal/config"
	"github.com/glizzus/dank-ditties/internal/util"
)

// Extractor downloads the audio behind url into dir.
// name is the preferred base name for the produced file.
type Extractor interface {
	Extract(ctx context.Context, url, dir, name string) error
}

// Locator finds the file an extractor produced in dir.
type Locator func(dir, name, format string) (string, error)

// Provider is one entry of the classification table.
type Provider struct {
	Name      string
	Domains   []string
	Extractor Extractor
	Locate    Locator
}

// withScheme adds https:// to links pasted without a scheme, such as
// "youtu.be/abc", so their host can be parsed.
func withScheme(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.Contains(rawURL, "://") {
		return rawURL
	}
	return "https://" + strings.TrimPrefix(rawURL, "//")
}

func (p Provider) Matches(rawURL string) bool {
	u, err := url.Parse(withScheme(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range p.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func match(providers []Provider, rawURL string) (Provider, bool) {
	return util.FindFirst(providers, func(p Provider) bool {
		return p.Matches(rawURL)
	})
}

const (
	ProviderYouTube    = "youtube"
	ProviderSoundCloud = "soundcloud"
)

// DefaultProviders returns the video provider, extracted with yt-dlp, and
// the audio hosting provider, extracted with soundscrape.
func DefaultProviders(cfg config.PlayerConfig) []Provider {
	return []Provider{
		{
			Name:    ProviderYouTube,
			Domains: []string{"youtube.com", "youtu.be"},
			Extractor: YTDLPExtractor{
				AudioFormat:  cfg.AudioFormat,
				AudioQuality: cfg.AudioBitrate,
			},
			Locate: LocateExact,
		},
		{
			Name:      ProviderSoundCloud,
			Domains:   []string{"soundcloud.com"},
			Extractor: CommandExtractor{Bin: cfg.SoundscrapeBin},
			Locate:    LocateOnlyFile,
		},
	}
}

// Domains lists every domain handled by providers.
func Domains(providers []Provider) []string {
	var domains []string
	for _, p := range providers {
		domains = append(domains, p.Domains...)
	}
	return domains
}

// LocateExact expects the extractor to have written <name>.<format>.
func LocateExact(dir, name, format string) (string, error) {
	path := filepath.Join(dir, name+"."+format)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("expected output %s: %w", path, err)
	}
	return path, nil
}

// LocateOnlyFile is for extractors with unpredictable output names: dir
// must contain exactly one regular file.
func LocateOnlyFile(dir, _, _ string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	if len(files) != 1 {
		return "", fmt.Errorf("expected exactly one file in %s, found %d", dir, len(files))
	}
	return filepath.Join(dir, files[0]), nil
}
