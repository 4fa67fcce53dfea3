package hospitals

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Skufu/thyrocheck/internal/metrics"
)

type Hospital struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	DistanceKM float64 `json:"distanceKm"`
}

type Result struct {
	Location  string     `json:"location"`
	Origin    Point      `json:"origin"`
	Hospitals []Hospital `json:"hospitals"`
}

// Directory is the geocoding backend; *Client satisfies it.
type Directory interface {
	Geocode(ctx context.Context, location string) (Point, error)
	Hospitals(ctx context.Context, p Point) ([]Place, error)
}

type Finder struct {
	dir     Directory
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Finder)

// WithCache enables result caching for ttl. A zero ttl disables caching.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(f *Finder) {
		f.cache = c
		f.ttl = ttl
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Finder) { f.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Finder) { f.metrics = m }
}

func NewFinder(dir Directory, opts ...Option) *Finder {
	f := &Finder{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Near geocodes location and returns hospitals sorted by distance from it.
func (f *Finder) Near(ctx context.Context, location string) (*Result, error) {
	location = strings.TrimSpace(location)
	key := strings.ToLower(location)

	if f.cacheEnabled() {
		cached, ok, err := f.cache.Get(ctx, key)
		switch {
		case err != nil:
			f.logger.WarnContext(ctx, "hospital cache read failed", "error", err)
		case ok:
			f.metrics.CacheHit()
			return cached, nil
		default:
			f.metrics.CacheMiss()
		}
	}

	origin, err := f.dir.Geocode(ctx, location)
	if err != nil {
		if !errors.Is(err, ErrLocationNotFound) {
			f.metrics.UpstreamError("geocode")
			f.logger.ErrorContext(ctx, "geocoding failed", "location", location, "error", err)
		}
		return nil, err
	}

	places, err := f.dir.Hospitals(ctx, origin)
	if err != nil {
		f.metrics.UpstreamError("search")
		f.logger.ErrorContext(ctx, "hospital search failed", "location", location, "error", err)
		return nil, err
	}

	result := &Result{Location: location, Origin: origin, Hospitals: rank(origin, places)}

	if f.cacheEnabled() {
		if err := f.cache.Set(ctx, key, result, f.ttl); err != nil {
			f.logger.WarnContext(ctx, "hospital cache write failed", "error", err)
		}
	}
	return result, nil
}

func (f *Finder) cacheEnabled() bool {
	return f.cache != nil && f.ttl > 0
}

func rank(origin Point, places []Place) []Hospital {
	out := make([]Hospital, 0, len(places))
	for _, p := range places {
		name, _, _ := strings.Cut(p.DisplayName, ",")
		out = append(out, Hospital{
			Name:       strings.TrimSpace(name),
			Address:    p.DisplayName,
			DistanceKM: DistanceKM(origin, p.Point),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKM < out[j].DistanceKM })
	return out
}
