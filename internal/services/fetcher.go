package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"github.com/bobby-s-dev/emotions-in-transit/pkg/client"
	"go.uber.org/zap"
)

// Fetcher produces one SourceResult per cycle. Implementations never return
// an error and never panic; failures are reported through the status.
type Fetcher interface {
	Source() models.Source
	Fetch(ctx context.Context) models.SourceResult
}

// SourceClient is what every upstream client in pkg/client implements.
type SourceClient interface {
	Name() string
	Fetch(ctx context.Context) (models.RawReading, error)
}

type clientFetcher struct {
	source models.Source
	client SourceClient
	logger *zap.Logger
}

// NewFetcher adapts a client to the Fetcher contract for the given source.
func NewFetcher(source models.Source, c SourceClient, logger *zap.Logger) Fetcher {
	return &clientFetcher{
		source: source,
		client: c,
		logger: logger.With(zap.String("source", string(source)), zap.String("provider", c.Name())),
	}
}

func (f *clientFetcher) Source() models.Source {
	return f.source
}

func (f *clientFetcher) Fetch(ctx context.Context) (result models.SourceResult) {
	start := time.Now()
	result.Source = f.source

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Fetcher panicked", zap.Any("panic", r))
			result.Status = models.StatusUnavailable
			result.Reading = models.RawReading{}
			result.Err = fmt.Errorf("fetcher panic: %v", r)
		}
		result.Duration = time.Since(start)
	}()

	reading, err := f.client.Fetch(ctx)
	switch {
	case err == nil:
		result.Status = models.StatusOK
		result.Reading = reading
	case errors.Is(err, client.ErrRateLimited):
		f.logger.Warn("Source rate limited", zap.Error(err))
		result.Status = models.StatusRateLimited
		result.Err = err
	default:
		f.logger.Warn("Source unavailable", zap.Error(err))
		result.Status = models.StatusUnavailable
		result.Err = err
	}
	return result
}

// FetcherFunc lets a plain function act as a Fetcher. Useful for simulated
// sources and tests.
type FetcherFunc struct {
	Src models.Source
	Fn  func(ctx context.Context) models.SourceResult
}

func (f FetcherFunc) Source() models.Source {
	return f.Src
}

func (f FetcherFunc) Fetch(ctx context.Context) models.SourceResult {
	res := f.Fn(ctx)
	res.Source = f.Src
	return res
}

// fanOut runs every fetcher concurrently and waits for all of them.
func fanOut(ctx context.Context, fetchers []Fetcher, logger *zap.Logger) []models.SourceResult {
	results := make([]models.SourceResult, len(fetchers))
	var wg sync.WaitGroup

	for i, f := range fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Fetcher panicked outside adapter",
						zap.String("source", string(f.Source())),
						zap.Any("panic", r))
					results[i] = models.SourceResult{
						Source: f.Source(),
						Status: models.StatusUnavailable,
						Err:    fmt.Errorf("fetcher panic: %v", r),
					}
				}
			}()
			results[i] = f.Fetch(ctx)
		}(i, f)
	}

	wg.Wait()
	return results
}
