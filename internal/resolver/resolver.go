// Package resolver turns source URLs into local audio files.
//
// Every resolution writes through a single scratch directory and a single
// canonical output path, so resolutions are serialized by the Resolver.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrUnsupportedSource is returned when a URL matches no provider.
// It is an expected outcome, not a failure of the resolver.
var ErrUnsupportedSource = errors.New("unsupported source")

// ResolutionError reports a failed extraction for a supported URL.
type ResolutionError struct {
	URL      string
	Provider string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s via %s: %v", e.URL, e.Provider, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Track is a resolved, playable audio file.
type Track struct {
	URL      string
	Path     string
	Provider string
}

// Cache stores resolved audio keyed by source URL.
// Load reports false on a miss.
type Cache interface {
	Load(ctx context.Context, url, dst string) (bool, error)
	Store(ctx context.Context, url, src string) error
}

type Option func(*Resolver)

// WithTimeout bounds a single extraction. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithFormat sets the extension of the canonical output file.
func WithFormat(format string) Option {
	return func(r *Resolver) {
		r.format = format
	}
}

func WithCache(c Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

type Resolver struct {
	mu sync.Mutex

	workDir    string
	outputName string
	format     string
	providers  []Provider
	timeout    time.Duration
	cache      Cache
	logger     *slog.Logger
}

func New(workDir, outputName string, providers []Provider, opts ...Option) *Resolver {
	r := &Resolver{
		workDir:    workDir,
		outputName: outputName,
		format:     "mp3",
		providers:  providers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OutputPath is the canonical location of the most recently resolved track.
func (r *Resolver) OutputPath() string {
	return filepath.Join(r.workDir, r.outputName+"."+r.format)
}

// ScratchDir is where extractors write intermediate files.
func (r *Resolver) ScratchDir() string {
	return filepath.Join(r.workDir, "tmp", "sc_"+r.outputName)
}

// Classify returns the name of the provider that handles url.
func (r *Resolver) Classify(url string) (string, bool) {
	p, ok := match(r.providers, url)
	if !ok {
		return "", false
	}
	return p.Name, true
}

func (r *Resolver) Supported(url string) bool {
	_, ok := match(r.providers, url)
	return ok
}

// Resolve produces a playable file at OutputPath for url. Any previous
// output is deleted first, including when url turns out to be unsupported.
func (r *Resolver) Resolve(ctx context.Context, url string) (Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	output := r.OutputPath()
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Track{}, fmt.Errorf("unable to remove previous output: %w", err)
	}

	p, ok := match(r.providers, url)
	if !ok {
		return Track{}, ErrUnsupportedSource
	}
	track := Track{URL: url, Path: output, Provider: p.Name}

	if r.cache != nil {
		hit, err := r.cache.Load(ctx, url, output)
		if err != nil {
			r.logger.Warn("track cache lookup failed", "url", url, slog.Any("error", err))
		} else if hit {
			r.logger.Debug("track served from cache", "url", url)
			return track, nil
		}
	}

	if err := r.extract(ctx, p, withScheme(url), output); err != nil {
		return Track{}, &ResolutionError{URL: url, Provider: p.Name, Err: err}
	}

	if r.cache != nil {
		if err := r.cache.Store(ctx, url, output); err != nil {
			r.logger.Warn("unable to store track in cache", "url", url, slog.Any("error", err))
		}
	}
	return track, nil
}

func (r *Resolver) extract(ctx context.Context, p Provider, url, output string) error {
	scratch := r.ScratchDir()
	// A failed attempt may have left files behind; extractors must start
	// from an empty directory.
	if err := os.RemoveAll(scratch); err != nil {
		return fmt.Errorf("unable to clear scratch directory: %w", err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("unable to create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			r.logger.Error("unable to remove scratch directory", "dir", scratch, slog.Any("error", err))
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := p.Extractor.Extract(ctx, url, scratch, r.outputName); err != nil {
		return err
	}

	produced, err := p.Locate(scratch, r.outputName, r.format)
	if err != nil {
		return err
	}
	if err := os.Rename(produced, output); err != nil {
		return fmt.Errorf("unable to move output into place: %w", err)
	}
	return nil
}
