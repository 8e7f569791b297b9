// Package geoip resolves IP addresses to location and organization data
// from MaxMind GeoLite2 databases.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"mikrotik-geo-visualizer/internal/domain"
	"mikrotik-geo-visualizer/internal/logger"
)

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

type asnReader interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
	Close() error
}

var errClosed = errors.New("geolite databases are closed")

// Reader looks IPs up in a City database and, optionally, an ASN database.
// It is safe for concurrent use; Reload swaps the databases in place.
type Reader struct {
	cityPath string
	asnPath  string
	log      logger.Logger

	mu   sync.RWMutex
	city cityReader
	asn  asnReader
}

// Open opens the City database at cityPath and, when asnPath is not empty,
// the ASN database.
func Open(cityPath, asnPath string, log logger.Logger) (*Reader, error) {
	r := &Reader{cityPath: cityPath, asnPath: asnPath, log: log}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reopens both databases from disk. The old readers stay in service
// if the new ones cannot be opened.
func (r *Reader) Reload() error {
	city, err := geoip2.Open(r.cityPath)
	if err != nil {
		return fmt.Errorf("open city database: %w", err)
	}

	var asn asnReader
	if r.asnPath != "" {
		a, err := geoip2.Open(r.asnPath)
		if err != nil {
			_ = city.Close()
			return fmt.Errorf("open asn database: %w", err)
		}
		asn = a
	}

	r.swap(city, asn)
	return nil
}

func (r *Reader) swap(city cityReader, asn asnReader) {
	r.mu.Lock()
	oldCity, oldASN := r.city, r.asn
	r.city, r.asn = city, asn
	r.mu.Unlock()

	if oldCity != nil {
		_ = oldCity.Close()
	}
	if oldASN != nil {
		_ = oldASN.Close()
	}
}

// Close releases both databases. Lookups after Close fail.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.city != nil {
		errs = append(errs, r.city.Close())
		r.city = nil
	}
	if r.asn != nil {
		errs = append(errs, r.asn.Close())
		r.asn = nil
	}
	return errors.Join(errs...)
}

// Lookup returns the record for ip. found is false when the City database
// has no location for it. A failing ASN lookup only leaves the organization
// empty.
func (r *Reader) Lookup(_ context.Context, ip string) (domain.GeoRecord, bool, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return domain.GeoRecord{}, false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.city == nil {
		return domain.GeoRecord{}, false, &domain.GeoSourceError{Op: "city lookup", Err: errClosed}
	}

	city, err := r.city.City(addr)
	if err != nil {
		return domain.GeoRecord{}, false, &domain.GeoSourceError{Op: "city lookup", Err: err}
	}
	if city == nil || (city.Location.Latitude == 0 && city.Location.Longitude == 0) {
		return domain.GeoRecord{}, false, nil
	}

	rec := domain.GeoRecord{
		IP:        ip,
		Latitude:  city.Location.Latitude,
		Longitude: city.Location.Longitude,
	}
	if name := city.City.Names["en"]; name != "" {
		rec.City = &name
	}

	if r.asn != nil {
		asn, err := r.asn.ASN(addr)
		switch {
		case err != nil:
			r.log.WithFields(map[string]any{"ip": ip, "error": err.Error()}).Debug("asn lookup failed")
		case asn.AutonomousSystemOrganization != "":
			org := asn.AutonomousSystemOrganization
			rec.Organization = &org
		}
	}

	return rec, true, nil
}
