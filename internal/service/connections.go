package service

import (
	"context"

	"mikrotik-geo-visualizer/internal/domain"
	"mikrotik-geo-visualizer/internal/ipclass"
	"mikrotik-geo-visualizer/internal/logger"
)

// ConnectionTable is the router capability the connection source needs.
type ConnectionTable interface {
	FirewallConnections(ctx context.Context) ([]map[string]string, error)
}

// Traffic direction of a connection, as seen from the local network.
const (
	BranchLocal    = "private-private"
	BranchOutbound = "private-public"
	BranchInbound  = "public-private"
	BranchTransit  = "public-public"
)

type ConnectionsService struct {
	router ConnectionTable
	log    logger.Logger
}

func NewConnectionsService(router ConnectionTable, log logger.Logger) *ConnectionsService {
	return &ConnectionsService{router: router, log: log}
}

// ListConnections queries the router once; nothing is cached because the
// connection table churns quickly.
func (s *ConnectionsService) ListConnections(ctx context.Context) ([]domain.ConnectionTuple, error) {
	rows, err := s.router.FirewallConnections(ctx)
	if err != nil {
		return nil, &domain.ConnectionSourceError{Op: "list connections", Err: err}
	}

	out := make([]domain.ConnectionTuple, 0, len(rows))
	for _, r := range rows {
		src := r["src-address"]
		dst := r["dst-address"]
		if src == "" || dst == "" {
			continue
		}
		out = append(out, domain.ConnectionTuple{
			SrcAddress: src,
			DstAddress: dst,
			Protocol:   r["protocol"],
		})
	}
	return out, nil
}

// RemoteDestinations returns the distinct remote endpoints of the current
// connection table. Tuples with unparsable addresses are dropped.
func (s *ConnectionsService) RemoteDestinations(ctx context.Context) (map[string]struct{}, error) {
	conns, err := s.ListConnections(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{})
	for _, c := range conns {
		ip, branch, err := RemoteEndpoint(c)
		if err != nil {
			s.log.WithFields(map[string]any{
				"src": c.SrcAddress,
				"dst": c.DstAddress,
			}).Debug("dropping connection: " + err.Error())
			continue
		}
		if branch == BranchTransit {
			// depends on deployment topology: neither side is ours
			s.log.WithFields(map[string]any{
				"branch": branch,
				"src":    c.SrcAddress,
				"dst":    c.DstAddress,
			}).Warn("connection between two public addresses, using source")
		}
		if ip != "" {
			out[ip] = struct{}{}
		}
	}
	return out, nil
}

// RemoteEndpoint applies the direction policy to one tuple. It returns the
// remote IP (empty for local traffic) and the branch taken.
func RemoteEndpoint(c domain.ConnectionTuple) (string, string, error) {
	src := ipclass.StripPort(c.SrcAddress)
	dst := ipclass.StripPort(c.DstAddress)

	srcPrivate, err := ipclass.IsPrivate(src)
	if err != nil {
		return "", "", err
	}
	dstPrivate, err := ipclass.IsPrivate(dst)
	if err != nil {
		return "", "", err
	}

	switch {
	case srcPrivate && dstPrivate:
		return "", BranchLocal, nil
	case srcPrivate:
		return dst, BranchOutbound, nil
	case dstPrivate:
		// only visible if the firewall admits inbound-initiated connections
		return src, BranchInbound, nil
	default:
		return src, BranchTransit, nil
	}
}
