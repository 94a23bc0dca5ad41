// Package correct implements the error corrector and the background
// correction-loop scanners that drive it: consulting peer majority vote
// to repair a single suspect byte, and sweeping the store to find them.
package correct

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/parity-mesh/paritynode/internal/metrics"
	"github.com/parity-mesh/paritynode/internal/paritybyte"
	"github.com/parity-mesh/paritynode/internal/store"
	"github.com/parity-mesh/paritynode/internal/wire"
)

// dialTimeout bounds the short-lived connections the corrector opens to
// query a single peer for a single byte.
const dialTimeout = 3 * time.Second

// PeerLister supplies the current peer roster as dialable "host:port"
// addresses, normally backed by internal/directory.Client.PeerAddrs.
type PeerLister interface {
	PeerAddrs() ([]string, error)
}

// Dialer opens a short-lived connection to a peer address. Tests supply
// a fake; production uses DialNet.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// DialNet is the production Dialer, a plain TCP dial.
func DialNet(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// Corrector determines the correct value of a suspect byte by querying
// every known peer for it and committing the strict-majority answer.
type Corrector struct {
	log     log.Logger
	st      *store.Store
	peers   PeerLister
	dial    Dialer
	tickets *Tickets
	limiter *rate.Limiter
	mx      *metrics.Metrics
}

// Option customizes a Corrector at construction time.
type Option func(*Corrector)

// WithDialer overrides the default TCP dialer, for tests.
func WithDialer(d Dialer) Option {
	return func(c *Corrector) { c.dial = d }
}

// WithRateLimit caps how many peer-query rounds the corrector issues per
// second, bounding peer load from a hot (frequently re-corrupted) index.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Corrector) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithMetrics records correction attempts/outcomes and in-progress
// ticket counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Corrector) { c.mx = m }
}

// NewCorrector constructs a Corrector. peers supplies the live peer
// roster; st is the local byte store to repair.
func NewCorrector(logger log.Logger, st *store.Store, peers PeerLister, opts ...Option) *Corrector {
	c := &Corrector{
		log:     logger.New("component", "corrector"),
		st:      st,
		peers:   peers,
		dial:    DialNet,
		tickets: NewTickets(),
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsCorrecting reports whether a correction ticket currently exists for i.
func (c *Corrector) IsCorrecting(i int) bool {
	return c.tickets.IsInProgress(i)
}

// TryCorrect is the non-blocking entry point used by the correction loop.
// It returns false if another correction is already in progress for i
// (the attempt is collapsed into that one) or if no peer majority could
// be reached; it returns true iff data[i] was overwritten with a
// parity-valid value.
func (c *Corrector) TryCorrect(i int) bool {
	if c.st.Get(i).IsParityOk() {
		return true
	}
	if !c.tickets.Start(i) {
		return false
	}
	defer c.tickets.Finish(i)
	if c.mx != nil {
		c.mx.TicketsInProgress.Inc()
		defer c.mx.TicketsInProgress.Dec()
	}
	ok := c.correctNow(i)
	if c.mx != nil {
		c.mx.CorrectionsAttempted.Inc()
		if ok {
			c.mx.CorrectionsSucceeded.Inc()
		} else {
			c.mx.CorrectionsFailed.Inc()
		}
	}
	return ok
}

// Correct is the blocking entry point used by the Node Server: if data[i]
// is already parity-ok it returns true immediately; otherwise it either
// waits out an ongoing correction and re-checks, or initiates one itself.
func (c *Corrector) Correct(i int) bool {
	if c.st.Get(i).IsParityOk() {
		return true
	}
	if c.tickets.IsInProgress(i) {
		c.tickets.WaitFor(i)
		return c.st.Get(i).IsParityOk()
	}
	return c.TryCorrect(i)
}

func (c *Corrector) correctNow(i int) bool {
	peers, err := c.peers.PeerAddrs()
	if err != nil {
		c.log.Debug("correction failed: cannot list peers", "index", i, "err", err)
		return false
	}
	if len(peers) == 0 {
		c.log.Debug("correction failed: no peers known", "index", i)
		return false
	}

	if err := c.limiter.Wait(context.Background()); err != nil {
		return false
	}

	votes := make(map[uint8]int)
	var dialErrs *multierror.Error
	responders := 0
	for _, peer := range peers {
		v, err := c.queryOne(peer, i)
		if err != nil {
			dialErrs = multierror.Append(dialErrs, fmt.Errorf("peer %s: %w", peer, err))
			continue
		}
		responders++
		votes[v]++
	}
	if dialErrs.ErrorOrNil() != nil {
		c.log.Debug("some peers did not answer correction query", "index", i, "err", dialErrs)
	}

	value, ok := strictMajority(votes, responders)
	if !ok {
		c.log.Debug("correction failed: no strict majority", "index", i, "responders", responders, "votes", votes)
		return false
	}

	c.st.Set(i, paritybyte.New(value))
	c.log.Info("corrected suspect byte", "index", i, "value", value, "responders", responders)
	return true
}

// queryOne dials peer, requests the single byte at offset i, and returns
// its value if the peer answered with a parity-valid byte.
func (c *Corrector) queryOne(peer string, i int) (uint8, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := c.dial(ctx, peer)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := wire.WriteRequest(conn, wire.BlockRequest{Start: int32(i), Length: 1}); err != nil {
		return 0, err
	}
	data, err := wire.ReadResponse(conn)
	if err != nil {
		return 0, err
	}
	if len(data) != 1 {
		return 0, fmt.Errorf("expected 1 byte, got %d", len(data))
	}
	b := paritybyte.New(data[0])
	if !b.IsParityOk() {
		return 0, fmt.Errorf("peer returned parity-invalid byte")
	}
	return b.Value(), nil
}

// strictMajority returns the value with strictly more than half of
// responders' votes. Ties, zero responders, and plurality-only results
// all count as failure.
func strictMajority(votes map[uint8]int, responders int) (uint8, bool) {
	if responders == 0 {
		return 0, false
	}
	var best uint8
	bestCount := 0
	tie := false
	for v, n := range votes {
		switch {
		case n > bestCount:
			best, bestCount, tie = v, n, false
		case n == bestCount:
			tie = true
		}
	}
	if tie || bestCount*2 <= responders {
		return 0, false
	}
	return best, true
}
