package mikrotik

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-routeros/routeros/v3"
	"golang.org/x/sync/semaphore"
)

// Options describe how to reach the RouterOS API.
type Options struct {
	Addr    string // host:port, usually 8728 (api) or 8729 (api-ssl)
	User    string
	Pass    string
	TLS     *tls.Config // nil means plain API
	Timeout time.Duration
}

type session interface {
	RunContext(ctx context.Context, sentence ...string) (*routeros.Reply, error)
	Close() error
}

type dialFunc func(ctx context.Context) (session, error)

// Client owns a single RouterOS API session. The session speaks a
// request/reply protocol over one socket, so every command is serialized:
// a weight-1 semaphore guards it and callers wait for their turn subject to
// their own context.
type Client struct {
	timeout time.Duration
	dial    dialFunc

	sem *semaphore.Weighted
	c   session
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &Client{
		timeout: timeout,
		dial:    routerDialer(opts),
		sem:     semaphore.NewWeighted(1),
	}
}

func routerDialer(opts Options) dialFunc {
	return func(ctx context.Context) (session, error) {
		if opts.Addr == "" {
			return nil, errors.New("mikrotik addr is empty")
		}
		var (
			c   *routeros.Client
			err error
		)
		// DialContext: connects and logs in using context.
		if opts.TLS != nil {
			c, err = routeros.DialTLSContext(ctx, opts.Addr, opts.User, opts.Pass, opts.TLS)
		} else {
			c, err = routeros.DialContext(ctx, opts.Addr, opts.User, opts.Pass)
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// NewTLSConfig builds the API-SSL client config. caPath may be empty to use
// the system roots.
func NewTLSConfig(addr, caPath string, verify bool) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verify,
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		cfg.ServerName = host
	}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read router CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("router CA %s: no certificates found", caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func (m *Client) lock(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

func (m *Client) unlock() {
	m.sem.Release(1)
}

// Connect dials the router unless a session is already open.
func (m *Client) Connect(ctx context.Context) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()
	return m.connectLocked(ctx)
}

func (m *Client) connectLocked(ctx context.Context) error {
	if m.c != nil {
		return nil
	}
	c, err := m.dial(ctx)
	if err != nil {
		return err
	}
	m.c = c
	return nil
}

// Close releases the session. The client may be used again afterwards; the
// next command redials.
func (m *Client) Close() error {
	// Close must not be blocked forever by a stuck command.
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()
	return m.closeLocked()
}

func (m *Client) closeLocked() error {
	if m.c == nil {
		return nil
	}
	err := m.c.Close()
	m.c = nil
	return err
}

func (m *Client) run(ctx context.Context, sentence ...string) (*routeros.Reply, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	if err := m.connectLocked(ctx); err != nil {
		return nil, err
	}

	r, err := m.c.RunContext(ctx, sentence...)
	if err != nil {
		// A !trap reply leaves the session usable; transport errors and
		// abandoned replies do not.
		var devErr *routeros.DeviceError
		if !errors.As(err, &devErr) {
			_ = m.closeLocked()
		}
		return nil, err
	}
	return r, nil
}

// replyToMaps converts []*proto.Sentence into []map[string]string using
// Sentence.Map. The maps are copied so callers do not depend on library
// internals.
func replyToMaps(r *routeros.Reply) []map[string]string {
	if r == nil || len(r.Re) == 0 {
		return nil
	}

	out := make([]map[string]string, 0, len(r.Re))
	for _, s := range r.Re {
		if s == nil {
			continue
		}
		if s.Map == nil {
			out = append(out, map[string]string{})
			continue
		}
		mm := make(map[string]string, len(s.Map))
		for k, v := range s.Map {
			mm[k] = v
		}
		out = append(out, mm)
	}
	return out
}

// FirewallConnections returns the router connection tracking table.
func (m *Client) FirewallConnections(ctx context.Context) ([]map[string]string, error) {
	r, err := m.run(ctx,
		"/ip/firewall/connection/print",
		"=.proplist=src-address,dst-address,protocol",
	)
	if err != nil {
		return nil, err
	}
	return replyToMaps(r), nil
}
