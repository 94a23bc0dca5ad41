// Package download implements the bootstrap-time downloader: one worker
// per peer, draining a shared request queue over a single long-lived
// connection.
package download

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"

	"github.com/parity-mesh/paritynode/internal/paritybyte"
	"github.com/parity-mesh/paritynode/internal/queue"
	"github.com/parity-mesh/paritynode/internal/store"
	"github.com/parity-mesh/paritynode/internal/wire"
)

// dialTimeout bounds how long a worker waits to establish its one
// long-lived connection to its assigned peer. This is a liveness bound
// on dialing, distinct from the policy (spec.md §9) of never timing out
// a peer read once connected.
const dialTimeout = 5 * time.Second

// Worker owns exactly one peer connection for the lifetime of bootstrap.
// It repeatedly takes a request from the shared queue, sends it, reads
// back the response, validates every returned byte's parity, and writes
// the bytes into the store at the declared offset. On the first
// transport, decode, or parity failure it requeues its in-flight request
// and exits; it never retries against the same peer.
type Worker struct {
	log  log.Logger
	peer string
	q    *queue.Queue
	st   *store.Store
}

// NewWorker constructs a Worker for a single peer address ("host:port").
func NewWorker(logger log.Logger, peerAddr string, q *queue.Queue, st *store.Store) *Worker {
	return &Worker{
		log:  logger.New("component", "downloader", "peer", peerAddr),
		peer: peerAddr,
		q:    q,
		st:   st,
	}
}

// Run dials the peer once and drains the queue until either the queue is
// empty or a request fails, in which case the in-flight request is
// requeued before returning. Run always calls MarkWorkerDone exactly
// once before returning, whether it finishes cleanly or errors out.
func (w *Worker) Run(ctx context.Context) error {
	defer w.q.MarkWorkerDone()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", w.peer)
	cancel()
	if err != nil {
		return fmt.Errorf("download: dial %s: %w", w.peer, err)
	}
	defer conn.Close()

	for {
		req, ok := w.q.Take()
		if !ok {
			return nil
		}
		if err := w.serveOne(conn, req); err != nil {
			w.q.Requeue(req)
			w.log.Warn("downloader giving up on peer", "err", err)
			return err
		}
	}
}

func (w *Worker) serveOne(conn net.Conn, req wire.BlockRequest) error {
	if err := wire.WriteRequest(conn, req); err != nil {
		return err
	}
	data, err := wire.ReadResponse(conn)
	if err != nil {
		return err
	}
	if len(data) != int(req.Length) {
		return fmt.Errorf("download: expected %d bytes, got %d", req.Length, len(data))
	}
	for i, v := range data {
		b := paritybyte.New(v)
		if !b.IsParityOk() {
			return fmt.Errorf("download: parity failure at offset %d", int(req.Start)+i)
		}
	}
	w.st.SetRange(int(req.Start), data)
	return nil
}

// RunAll starts one Worker per peer and waits for all of them to exit,
// returning an aggregated error (via go-multierror) describing which
// peers failed. The queue's own barrier, not this function, is what the
// caller should consult to decide whether bootstrap actually succeeded:
// a non-nil error here just means at least one peer was lost, which is
// tolerated as long as the remaining workers still complete the queue.
func RunAll(ctx context.Context, logger log.Logger, peers []string, q *queue.Queue, st *store.Store) error {
	errCh := make(chan error, len(peers))
	for _, p := range peers {
		worker := NewWorker(logger, p, q, st)
		go func() {
			errCh <- worker.Run(ctx)
		}()
	}

	var result *multierror.Error
	for range peers {
		if err := <-errCh; err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
