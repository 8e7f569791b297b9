package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"mikrotik-geo-visualizer/internal/domain"
	"mikrotik-geo-visualizer/internal/logger"
)

// ConnectionSource yields the distinct remote IPs of the router's table.
type ConnectionSource interface {
	RemoteDestinations(ctx context.Context) (map[string]struct{}, error)
}

// GeoSource resolves a set of IPs to geo records.
type GeoSource interface {
	BatchLookup(ctx context.Context, ips map[string]struct{}) (map[string]domain.GeoRecord, error)
}

// State is the lifecycle state of a Collector.
type State int

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Collector merges the connection table with geo data. It starts
// uninitialized and only collects after Init injected both sources.
type Collector struct {
	log logger.Logger

	mu    sync.RWMutex
	state State
	conns ConnectionSource
	geo   GeoSource
}

func NewCollector(log logger.Logger) *Collector {
	return &Collector{log: log, state: StateUninitialized}
}

// Init moves the collector to StateReady. It can be called once.
func (c *Collector) Init(conns ConnectionSource, geo GeoSource) error {
	if conns == nil || geo == nil {
		return errNilSource
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUninitialized {
		return domain.ErrAlreadyInitialized
	}
	c.conns = conns
	c.geo = geo
	c.state = StateReady
	return nil
}

func (c *Collector) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Collect returns one record per remote destination with a known location,
// sorted by IP. Source failures are returned unchanged.
func (c *Collector) Collect(ctx context.Context) ([]domain.ExportRecord, error) {
	c.mu.RLock()
	state, conns, geo := c.state, c.conns, c.geo
	c.mu.RUnlock()

	if state != StateReady {
		return nil, domain.ErrNotInitialized
	}

	dests, err := conns.RemoteDestinations(ctx)
	if err != nil {
		return nil, err
	}

	geoData, err := geo.BatchLookup(ctx, dests)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ExportRecord, 0, len(geoData))
	for ip, rec := range geoData {
		if _, ok := dests[ip]; !ok {
			continue
		}
		out = append(out, domain.ExportRecord{
			IP:   ip,
			Lat:  rec.Latitude,
			Lon:  rec.Longitude,
			Org:  rec.Organization,
			City: rec.City,
		})
	}
	slices.SortFunc(out, func(a, b domain.ExportRecord) int {
		return strings.Compare(a.IP, b.IP)
	})

	c.log.WithFields(map[string]any{
		"destinations": len(dests),
		"records":      len(out),
	}).Debug("collected connections")

	return out, nil
}

var errNilSource = errors.New("collector sources must not be nil")
