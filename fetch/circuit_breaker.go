package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// defaultTripThreshold is the number of consecutive failures that opens a breaker.
const defaultTripThreshold = 5

// CircuitBreakerFetcher wraps a Fetcher with one circuit breaker per remote
// repository host, so an unavailable mirror fails fast instead of stalling
// every download that targets it.
type CircuitBreakerFetcher struct {
	fetcher   FetcherInterface
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// NewCircuitBreakerFetcher creates a new circuit breaker wrapper for a fetcher.
func NewCircuitBreakerFetcher(f FetcherInterface) *CircuitBreakerFetcher {
	return &CircuitBreakerFetcher{
		fetcher:   f,
		threshold: defaultTripThreshold,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

// breaker returns or creates the circuit breaker for a repository host.
func (cbf *CircuitBreakerFetcher) breaker(repository string) *circuit.Breaker {
	cbf.mu.RLock()
	b, exists := cbf.breakers[repository]
	cbf.mu.RUnlock()

	if exists {
		return b
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()

	if b, exists := cbf.breakers[repository]; exists {
		return b
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(cbf.threshold),
	})

	cbf.breakers[repository] = b
	return b
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	repository := repositoryKey(fetchURL)
	b := cbf.breaker(repository)

	if !b.Ready() {
		return nil, fmt.Errorf("circuit breaker open for repository %s: %w", repository, ErrUpstreamDown)
	}

	var artifact *Artifact
	var notFound error
	err := b.Call(func() error {
		var fetchErr error
		artifact, fetchErr = cbf.fetcher.Fetch(ctx, fetchURL)
		// A missing artifact says nothing about the health of the repository.
		if errors.Is(fetchErr, ErrNotFound) {
			notFound = fetchErr
			return nil
		}
		return fetchErr
	}, 0)
	if err != nil {
		return nil, err
	}
	if notFound != nil {
		return nil, notFound
	}

	return artifact, nil
}

// Head wraps the underlying fetcher's Head with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Head(ctx context.Context, headURL string) (size int64, contentType string, err error) {
	repository := repositoryKey(headURL)
	b := cbf.breaker(repository)

	if !b.Ready() {
		return 0, "", fmt.Errorf("circuit breaker open for repository %s: %w", repository, ErrUpstreamDown)
	}

	var notFound error
	err = b.Call(func() error {
		var headErr error
		size, contentType, headErr = cbf.fetcher.Head(ctx, headURL)
		if errors.Is(headErr, ErrNotFound) {
			notFound = headErr
			return nil
		}
		return headErr
	}, 0)
	if err == nil && notFound != nil {
		err = notFound
	}

	return size, contentType, err
}

// repositoryKey groups URLs by host. Unparseable URLs fall back to a prefix.
func repositoryKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// BreakerState returns "open" or "closed" per repository host, for health checks.
func (cbf *CircuitBreakerFetcher) BreakerState() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string, len(cbf.breakers))
	for repository, b := range cbf.breakers {
		if b.Tripped() {
			states[repository] = "open"
		} else {
			states[repository] = "closed"
		}
	}
	return states
}
