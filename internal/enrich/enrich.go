// Package enrich resolves best-effort street view imagery for selected
// places. Lookups never fail: every problem degrades to an empty URL.
package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sells-group/mapinfo/internal/model"
	"github.com/sells-group/mapinfo/internal/resilience"
	"github.com/sells-group/mapinfo/pkg/streetview"
)

// DefaultCacheTTL is how long a street view answer is reused.
const DefaultCacheTTL = time.Hour

// Options configures an Enricher.
type Options struct {
	// APIKey is the street view credential. Empty disables lookups.
	APIKey   string
	CacheTTL time.Duration
	// Timeout bounds the shared upstream call, which callers leaving early do
	// not cancel. Zero means no bound.
	Timeout time.Duration
	Breaker resilience.BreakerConfig
	// RateLimit caps outbound lookups per second. Zero means 10/s.
	RateLimit rate.Limit
}

// Stats counts lookup outcomes.
type Stats struct {
	Lookups   int64            `json:"lookups"`
	CacheHits int64            `json:"cache_hits"`
	Resolved  int64            `json:"resolved"`
	Failed    int64            `json:"failed"`
	Breaker   resilience.Stats `json:"breaker"`
}

// Enricher looks up street view images with caching, dedupe of identical
// concurrent lookups, rate limiting and a circuit breaker.
type Enricher struct {
	client  streetview.Client
	opts    Options
	cache   *ristretto.Cache[string, string]
	group   singleflight.Group
	breaker *resilience.Breaker
	limiter *rate.Limiter

	lookups   atomic.Int64
	cacheHits atomic.Int64
	resolved  atomic.Int64
	failed    atomic.Int64
}

// New creates an Enricher around client.
func New(client streetview.Client, opts Options) (*Enricher, error) {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Breaker.ShouldTrip == nil {
		opts.Breaker.ShouldTrip = resilience.IsTransient
	}
	if opts.Breaker.OnStateChange == nil {
		opts.Breaker.OnStateChange = func(from, to resilience.State) {
			zap.L().Warn("enrich: street view breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create cache")
	}

	return &Enricher{
		client:  client,
		opts:    opts,
		cache:   cache,
		breaker: resilience.NewBreaker(opts.Breaker),
		limiter: rate.NewLimiter(opts.RateLimit, int(opts.RateLimit)+1),
	}, nil
}

// Enabled reports whether a credential is configured.
func (e *Enricher) Enabled() bool { return e.opts.APIKey != "" }

// Lookup returns the street view image URL for p, or "" when none could be
// resolved for any reason.
func (e *Enricher) Lookup(ctx context.Context, p *model.Place) string {
	if p == nil || !e.Enabled() {
		return ""
	}
	e.lookups.Add(1)

	key := p.Position().String()
	if url, ok := e.cache.Get(key); ok {
		e.cacheHits.Add(1)
		return url
	}

	// The flight outlives any single caller so a later caller for the same
	// place is not handed an earlier caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) {
		return e.fetch(flightCtx, p)
	})

	select {
	case <-ctx.Done():
		return ""
	case res := <-ch:
		if res.Err != nil {
			e.failed.Add(1)
			e.logFailure(ctx, p, res.Err)
			return ""
		}
		url, _ := res.Val.(string)
		if url != "" {
			e.resolved.Add(1)
		}
		return url
	}
}

func (e *Enricher) fetch(ctx context.Context, p *model.Place) (string, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "enrich: rate limit")
	}

	url, err := resilience.DoValue(ctx, e.breaker, func(ctx context.Context) (string, error) {
		return e.client.Lookup(ctx, p.Lat, p.Lng)
	})
	switch {
	case err == nil:
		e.remember(p, url)
		return url, nil
	case eris.Is(err, streetview.ErrUnavailable):
		e.remember(p, "")
		return "", nil
	default:
		return "", err
	}
}

// remember caches a definitive answer. Transient failures are not cached.
func (e *Enricher) remember(p *model.Place, url string) {
	e.cache.SetWithTTL(p.Position().String(), url, int64(len(url))+1, e.opts.CacheTTL)
	e.cache.Wait()
}

func (e *Enricher) logFailure(ctx context.Context, p *model.Place, err error) {
	if ctx.Err() != nil || eris.Is(err, context.Canceled) || eris.Is(err, resilience.ErrOpen) {
		zap.L().Debug("enrich: street view lookup skipped",
			zap.String("place", p.Name),
			zap.Error(err),
		)
		return
	}
	zap.L().Warn("enrich: street view lookup failed",
		zap.String("place", p.Name),
		zap.Error(err),
	)
}

// Stats returns lookup counters and the breaker state.
func (e *Enricher) Stats() Stats {
	return Stats{
		Lookups:   e.lookups.Load(),
		CacheHits: e.cacheHits.Load(),
		Resolved:  e.resolved.Load(),
		Failed:    e.failed.Load(),
		Breaker:   e.breaker.Stats(),
	}
}

// Close releases the cache.
func (e *Enricher) Close() {
	e.cache.Close()
}
