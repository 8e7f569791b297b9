package service

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"mikrotik-geo-visualizer/internal/domain"
	"mikrotik-geo-visualizer/internal/logger"
)

// GeoProvider resolves one IP. found is false when the provider has no
// location for it; err is reserved for provider-wide failures.
type GeoProvider interface {
	Lookup(ctx context.Context, ip string) (rec domain.GeoRecord, found bool, err error)
}

type GeoService struct {
	provider GeoProvider
	workers  int
	log      logger.Logger
}

func NewGeoService(provider GeoProvider, workers int, log logger.Logger) *GeoService {
	if workers < 1 {
		workers = 1
	}
	return &GeoService{provider: provider, workers: workers, log: log}
}

// BatchLookup resolves every IP in ips. IPs without a record are absent from
// the result. The first provider failure cancels the remaining lookups and is
// returned as a *domain.GeoSourceError.
func (s *GeoService) BatchLookup(ctx context.Context, ips map[string]struct{}) (map[string]domain.GeoRecord, error) {
	out := make(map[string]domain.GeoRecord, len(ips))
	if len(ips) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for ip := range ips {
		ip := ip
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, found, err := s.provider.Lookup(gctx, ip)
			if err != nil {
				return err
			}
			if !found {
				s.log.WithFields(map[string]any{"ip": ip}).Debug("no geo record")
				return nil
			}
			rec.IP = ip
			mu.Lock()
			out[ip] = rec
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var geoErr *domain.GeoSourceError
		if errors.As(err, &geoErr) {
			return nil, err
		}
		return nil, &domain.GeoSourceError{Op: "batch lookup", Err: err}
	}
	return out, nil
}
