package datasource

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a source with a token-bucket limiter so aggressive paging
// stays inside the platform's API budget.
type RateLimited struct {
	src PagingSource
	lim *rate.Limiter
}

func NewRateLimited(src PagingSource, rps float64, burst int) *RateLimited {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{src: src, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) SingleShot() bool { return r.src.SingleShot() }

func (r *RateLimited) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	if err := r.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return r.src.FetchPage(ctx, req)
}
