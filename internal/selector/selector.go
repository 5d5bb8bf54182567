// Package selector chooses the next track to play.
//
// Manual requests are served first, in arrival order. Otherwise a random
// entry of the candidate pool is picked. Anything selected within the recent
// history window is avoided: a manual request for a recently played track is
// dropped, not deferred.
package selector

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
)

// DefaultHistorySize is the number of recent selections that will not repeat.
const DefaultHistorySize = 20

var ErrEmptyPool = errors.New("candidate pool is empty")

type Option func(*Selector)

// WithHistorySize sets the capacity of the recent history window.
func WithHistorySize(n int) Option {
	return func(s *Selector) {
		s.historySize = max(n, 0)
	}
}

// WithRandom replaces the source of randomness. intn must return a value
// in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(s *Selector) {
		s.intn = intn
	}
}

type Selector struct {
	mu      sync.Mutex
	queue   []string
	history []string

	pool        []string
	historySize int
	// window is the part of the history that random picks avoid. It is
	// smaller than historySize when the pool has too few distinct URLs to
	// fill the whole window.
	window int
	intn   func(n int) int
}

// New creates a Selector over a candidate pool. The pool is copied and
// never modified afterwards.
func New(pool []string, opts ...Option) (*Selector, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}
	s := &Selector{
		pool:        slices.Clone(pool),
		historySize: DefaultHistorySize,
		intn:        rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}

	distinct := make(map[string]struct{}, len(s.pool))
	for _, url := range s.pool {
		distinct[url] = struct{}{}
	}
	s.window = min(s.historySize, len(distinct)-1)
	return s, nil
}

// Enqueue adds a manual request and returns its position in the queue,
// starting at 1. The URL is not validated; an unplayable request fails
// later, during resolution.
func (s *Selector) Enqueue(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, url)
	return len(s.queue)
}

// Next returns the URL to play next and records it in the history.
// It never blocks and never returns an empty string.
func (s *Selector) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 {
		url := s.queue[0]
		s.queue = s.queue[1:]
		if slices.Contains(s.history, url) {
			continue
		}
		s.remember(url)
		return url
	}

	url := s.randomPick()
	s.remember(url)
	return url
}

// randomPick chooses uniformly among pool entries outside the avoidance
// window. Duplicate pool entries keep their weight.
func (s *Selector) randomPick() string {
	recent := s.history[len(s.history)-min(s.window, len(s.history)):]

	eligible := make([]string, 0, len(s.pool))
	for _, url := range s.pool {
		if !slices.Contains(recent, url) {
			eligible = append(eligible, url)
		}
	}
	return eligible[s.intn(len(eligible))]
}

func (s *Selector) remember(url string) {
	if s.historySize == 0 {
		return
	}
	s.history = append(s.history, url)
	if over := len(s.history) - s.historySize; over > 0 {
		s.history = slices.Clone(s.history[over:])
	}
}

// Queue returns a snapshot of the pending manual requests.
func (s *Selector) Queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queue)
}

// History returns a snapshot of the recent selections, oldest first.
func (s *Selector) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *Selector) PoolSize() int {
	return len(s.pool)
}
