// Package server implements the Node Server: the peer-facing accept loop
// and per-connection block-request handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/parity-mesh/paritynode/internal/metrics"
	"github.com/parity-mesh/paritynode/internal/store"
	"github.com/parity-mesh/paritynode/internal/wire"
)

const (
	// maxThrottleDelay bounds how long a handler waits on rate limiting
	// before giving up on a request and answering with the null
	// sentinel, so a single slow/abusive peer can never starve the
	// "every request gets exactly one response" invariant.
	maxThrottleDelay = 20 * time.Second

	globalRate  rate.Limit = 200 // block-requests/sec served across all peers
	globalBurst            = 50
	peerRate    rate.Limit = 40 // block-requests/sec served to a single remote address
	peerBurst              = 10

	peerLimiterCacheSize = 1024
)

// Corrector is the subset of *correct.Corrector the server needs: ensure
// a single index is parity-ok, blocking on any in-progress repair.
type Corrector interface {
	Correct(i int) bool
}

// Server accepts peer connections and serves Block Requests out of a
// Store, invoking the local Corrector before ever handing out a byte so
// that it never forwards data it knows to be wrong.
type Server struct {
	log log.Logger
	st  *store.Store
	cor Corrector
	mx  *metrics.Metrics
	wg  sync.WaitGroup

	globalLimiter *rate.Limiter
	peerLimiters  *lru.Cache[string, *rate.Limiter]
}

// New constructs a Server. mx may be nil to disable metrics recording.
func New(logger log.Logger, st *store.Store, cor Corrector, mx *metrics.Metrics) *Server {
	peerLimiters, err := lru.New[string, *rate.Limiter](peerLimiterCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens with the constant above.
		panic(err)
	}
	return &Server{
		log:           logger.New("component", "node-server"),
		st:            st,
		cor:           cor,
		mx:            mx,
		globalLimiter: rate.NewLimiter(globalRate, globalBurst),
		peerLimiters:  peerLimiters,
	}
}

// Serve runs the accept loop against ln until ctx is canceled or the
// listener is closed. Each accepted connection is handled by its own
// goroutine; a single bad connection never brings down the acceptor or
// any other handler.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Wait blocks until every in-flight handler has returned. Useful for
// tests and for an orderly shutdown after Serve returns.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	log := s.log.New("remote", remote)

	for {
		req, err := wire.ReadRequest(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			log.Debug("closing connection after read error", "err", err)
			return
		}

		if err := s.throttle(ctx, remote); err != nil {
			log.Warn("throttled request too long, answering null", "err", err)
			if err := wire.WriteResponse(conn, nil); err != nil {
				return
			}
			continue
		}

		data := s.serve(req)
		if s.mx != nil {
			if data != nil {
				s.mx.BlocksServed.Inc()
			} else {
				s.mx.BlocksRejected.Inc()
			}
		}
		if err := wire.WriteResponse(conn, data); err != nil {
			log.Debug("closing connection after write error", "err", err)
			return
		}
	}
}

// serve validates req and, if in range, repairs every byte in range
// before copying it out. It returns nil (the null sentinel) for an
// out-of-range request or one that could not be fully corrected.
func (s *Server) serve(req wire.BlockRequest) []uint8 {
	if err := req.Validate(s.st.Len()); err != nil {
		return nil
	}
	for i := int(req.Start); i < int(req.End()); i++ {
		if !s.cor.Correct(i) {
			return nil
		}
	}
	return s.st.Range(int(req.Start), int(req.Length))
}

func (s *Server) throttle(ctx context.Context, remote string) error {
	ctx, cancel := context.WithTimeout(ctx, maxThrottleDelay)
	defer cancel()

	if err := s.globalLimiter.Wait(ctx); err != nil {
		return err
	}

	limiter, ok := s.peerLimiters.Get(remote)
	if !ok {
		limiter = rate.NewLimiter(peerRate, peerBurst)
		s.peerLimiters.Add(remote, limiter)
	}
	return limiter.Wait(ctx)
}
