// Package node orchestrates a single paritynode instance end to end:
// binding its listener, registering with the directory, bootstrapping
// (or loading) its store, starting the correction loop and injection
// console, and running the peer-facing accept loop.
package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"

	"github.com/parity-mesh/paritynode/internal/correct"
	"github.com/parity-mesh/paritynode/internal/console"
	"github.com/parity-mesh/paritynode/internal/directory"
	"github.com/parity-mesh/paritynode/internal/download"
	"github.com/parity-mesh/paritynode/internal/metrics"
	"github.com/parity-mesh/paritynode/internal/queue"
	"github.com/parity-mesh/paritynode/internal/server"
	"github.com/parity-mesh/paritynode/internal/store"
	"github.com/parity-mesh/paritynode/internal/ui"
	"github.com/parity-mesh/paritynode/internal/wire"
)

// bootstrapQueueSamplePeriod is how often BootstrapQueueDepth is refreshed
// while bootstrap is draining the request queue.
const bootstrapQueueSamplePeriod = 500 * time.Millisecond

// Node owns every long-lived resource of a running instance: the byte
// store, the directory connection, the listening socket, and the
// corrector/server/console built on top of them.
type Node struct {
	log     log.Logger
	cfg     Config
	mx      *metrics.Metrics
	ui      ui.Reporter
	onBound func(net.Addr)

	st  *store.Store
	dir *directory.Client
	ln  net.Listener
	srv *server.Server
	cor *correct.Corrector
}

// Option customizes a Node at construction time.
type Option func(*Node)

// WithMetrics attaches a Metrics instance; nil (the default) disables
// metrics recording entirely.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Node) { n.mx = m }
}

// WithReporter overrides the default ui.NoopReporter used to narrate
// bootstrap progress.
func WithReporter(r ui.Reporter) Option {
	return func(n *Node) { n.ui = r }
}

// WithBoundHook registers a callback invoked with the resolved listen
// address as soon as the listener is bound, before registration and
// bootstrap proceed. Used by tests that need NodePort 0 resolved to a
// concrete port without racing on Node's internal state.
func WithBoundHook(f func(net.Addr)) Option {
	return func(n *Node) { n.onBound = f }
}

// New validates cfg and constructs a Node. It performs no I/O; call Run
// to bind, register, bootstrap, and serve.
func New(logger log.Logger, cfg Config, opts ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Node{
		log: logger.New("component", "node"),
		cfg: cfg,
		ui:  ui.NoopReporter{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Run executes the full lifecycle in order: bind, register, bootstrap-or-
// load, start background workers, install the shutdown hook, and accept
// connections until ctx is canceled. Any failure before the accept loop
// is returned as a fatal error; once accepting, individual handler
// failures are contained inside internal/server and never surface here.
func (n *Node) Run(ctx context.Context, consoleIn *os.File) error {
	if err := n.bind(); err != nil {
		return err
	}
	defer n.ln.Close()

	if err := n.register(ctx); err != nil {
		return err
	}
	defer n.dir.Close()

	if n.cfg.DataBytes != nil {
		st, err := store.NewFromBytes(n.cfg.DataBytes)
		if err != nil {
			return fmt.Errorf("node: load seed data: %w", err)
		}
		n.st = st
		n.log.Info("seeded store from pre-loaded data, bootstrap skipped")
	} else {
		if err := n.bootstrap(ctx); err != nil {
			return err
		}
	}

	corOpts := []correct.Option{correct.WithMetrics(n.mx)}
	if n.cfg.CorrectorRate > 0 {
		corOpts = append(corOpts, correct.WithRateLimit(rate.Limit(n.cfg.CorrectorRate), n.cfg.correctorBurst()))
	}
	n.cor = correct.NewCorrector(n.log, n.st, n.dir, corOpts...)
	n.srv = server.New(n.log, n.st, n.cor, n.mx)

	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()
	for i := 0; i < n.cfg.scannerCount(); i++ {
		scanner := correct.NewScanner(n.log, strconv.Itoa(i), n.st, n.cor)
		go scanner.Run(scanCtx)
	}
	if consoleIn != nil {
		go console.New(n.log, consoleIn, n.st).Run()
	}

	n.log.Info("accepting peer connections", "addr", n.ln.Addr())
	return n.srv.Serve(ctx, n.ln)
}

func (n *Node) bind() error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(n.cfg.NodePort)))
	if err != nil {
		return fmt.Errorf("node: bind: %w", err)
	}
	n.ln = ln
	n.log.Info("bound listener", "addr", ln.Addr())
	if n.onBound != nil {
		n.onBound(ln.Addr())
	}
	return nil
}

func (n *Node) localEndpoint() (directory.Endpoint, error) {
	_, portStr, err := net.SplitHostPort(n.ln.Addr().String())
	if err != nil {
		return directory.Endpoint{}, fmt.Errorf("node: parse bound address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return directory.Endpoint{}, fmt.Errorf("node: parse bound port: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "127.0.0.1"
	}
	return directory.Endpoint{Host: host, Port: port}, nil
}

func (n *Node) register(ctx context.Context) error {
	local, err := n.localEndpoint()
	if err != nil {
		return err
	}
	dir, err := directory.Dial(ctx, n.log, n.cfg.directoryAddr(), local)
	if err != nil {
		return fmt.Errorf("node: register with directory: %w", err)
	}
	n.dir = dir
	return nil
}

func (n *Node) bootstrap(ctx context.Context) error {
	peers, err := n.dir.PeerAddrs()
	if err != nil {
		return fmt.Errorf("node: bootstrap: list peers: %w", err)
	}
	if len(peers) == 0 {
		return fmt.Errorf("node: bootstrap: no peers available")
	}

	n.st = store.New()
	reqs := bootstrapRequests(store.Size, n.cfg.blockSize())
	q := queue.New(reqs, len(peers))

	if n.mx != nil {
		n.mx.BootstrapQueueDepth.Set(float64(q.Len()))
	}

	n.ui.BootstrapStarted(len(reqs))
	done := make(chan struct{})
	go func() {
		q.Await()
		close(done)
	}()
	if n.mx != nil {
		go n.sampleBootstrapQueueDepth(q, done)
	}

	err = download.RunAll(ctx, n.log, peers, q, n.st)
	<-done
	n.ui.BootstrapProgress(len(reqs) - q.Len())

	if n.mx != nil {
		n.mx.BootstrapQueueDepth.Set(float64(q.Len()))
	}

	if !q.IsComplete() {
		if err != nil {
			return fmt.Errorf("node: bootstrap: incomplete, some peers failed: %w", err)
		}
		return fmt.Errorf("node: bootstrap: incomplete")
	}
	if err != nil {
		n.log.Warn("bootstrap completed despite some peer failures", "err", err)
	}

	n.ui.BootstrapFinished(peerStats(peers))
	n.log.Info("bootstrap complete", "peers", len(peers), "blocks", len(reqs))
	return nil
}

// sampleBootstrapQueueDepth refreshes the BootstrapQueueDepth gauge on a
// timer until done is closed, so it tracks progress rather than sitting at
// its initial value for the whole bootstrap.
func (n *Node) sampleBootstrapQueueDepth(q *queue.Queue, done <-chan struct{}) {
	ticker := time.NewTicker(bootstrapQueueSamplePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.mx.BootstrapQueueDepth.Set(float64(q.Len()))
		case <-done:
			return
		}
	}
}

// peerStats lists each bootstrap peer for the final summary. Per-peer
// block counts are not tracked, so BlocksServed is always left at zero.
func peerStats(peers []string) []ui.PeerStat {
	stats := make([]ui.PeerStat, len(peers))
	for i, p := range peers {
		stats[i] = ui.PeerStat{Peer: p}
	}
	return stats
}

// bootstrapRequests carves [0, size) into contiguous requests of at most
// blockSize bytes each.
func bootstrapRequests(size, blockSize int) []wire.BlockRequest {
	var reqs []wire.BlockRequest
	for start := 0; start < size; start += blockSize {
		length := blockSize
		if start+length > size {
			length = size - start
		}
		reqs = append(reqs, wire.BlockRequest{Start: int32(start), Length: int32(length)})
	}
	return reqs
}
