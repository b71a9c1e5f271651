package service

import (
	"context"
	"strings"
	"time"

	"pettit/internal/cache"
	"pettit/internal/featureflags"
	"pettit/internal/models"
	"pettit/internal/observability"
	"pettit/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Trending limits.
const (
	DefaultTrendingLimit = 5
	MaxTrendingLimit     = 100
	DefaultTimeframe     = "24h"
)

var trendingWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// TrendingService ranks recent posts by score, views and comment count.
type TrendingService struct {
	posts repository.PostRepository
	flags featureflags.Checker
	now   func() time.Time
}

// NewTrendingService creates a TrendingService. flags may be nil, which
// disables the anonymous result cache.
func NewTrendingService(posts repository.PostRepository, flags featureflags.Checker) *TrendingService {
	return &TrendingService{posts: posts, flags: flags, now: time.Now}
}

// TrendingWindow returns the lookback for a timeframe; empty means 24h.
func TrendingWindow(timeframe string) (string, time.Duration, error) {
	tf := strings.ToLower(strings.TrimSpace(timeframe))
	if tf == "" {
		tf = DefaultTimeframe
	}
	window, ok := trendingWindows[tf]
	if !ok {
		return "", 0, models.NewFieldValidationError("Invalid timeframe",
			models.FieldError{Field: "timeframe", Message: "timeframe must be one of 1h, 24h, 7d"})
	}
	return tf, window, nil
}

// Trending returns at most limit posts created within timeframe.
func (s *TrendingService) Trending(ctx context.Context, timeframe string, limit int, viewerID uint) ([]*models.Post, error) {
	tf, window, err := TrendingWindow(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	if limit > MaxTrendingLimit {
		limit = MaxTrendingLimit
	}

	span, ctx := observability.NewSpan(ctx, "feed.trending",
		attribute.String("trending.timeframe", tf), attribute.Int("trending.limit", limit))
	defer span.End()
	defer observability.ObserveFeedQuery("trending", tf)()

	load := func(ctx context.Context) ([]*models.Post, error) {
		posts, err := s.posts.List(ctx, repository.PostQuery{
			Since:    s.now().UTC().Add(-window),
			Order:    repository.OrderTrending,
			Limit:    limit,
			ViewerID: viewerID,
		})
		if err != nil {
			return nil, err
		}
		if posts == nil {
			posts = []*models.Post{}
		}
		return posts, nil
	}

	var posts []*models.Post
	if viewerID == 0 && s.flags != nil && s.flags.Enabled(featureflags.TrendingCache, 0) {
		loaded := false
		posts, err = cache.Aside(ctx, cache.TrendingKey(tf, limit), cache.TrendingTTL, func(ctx context.Context) ([]*models.Post, error) {
			loaded = true
			return load(ctx)
		})
		outcome := "hit"
		if loaded {
			outcome = "miss"
		}
		observability.TrendingCacheLookups.WithLabelValues(outcome).Inc()
	} else {
		posts, err = load(ctx)
	}
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}
