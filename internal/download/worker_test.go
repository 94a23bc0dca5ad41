package download

import (
	"context"
	"net"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/parity-mesh/paritynode/internal/queue"
	"github.com/parity-mesh/paritynode/internal/store"
	"github.com/parity-mesh/paritynode/internal/wire"
)

// servePeer accepts one connection and answers every request with the
// requested range of src, closing after answering closeAfter requests
// (0 meaning "serve forever until the client disconnects").
func servePeer(t *testing.T, src []uint8, closeAfter int) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		served := 0
		for {
			req, err := wire.ReadRequest(conn)
			if err != nil {
				return
			}
			_ = wire.WriteResponse(conn, src[req.Start:req.Start+req.Length])
			served++
			if closeAfter > 0 && served >= closeAfter {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func blockReqs(n, blockSize int) []wire.BlockRequest {
	out := make([]wire.BlockRequest, n)
	for i := range out {
		out[i] = wire.BlockRequest{Start: int32(i * blockSize), Length: int32(blockSize)}
	}
	return out
}

func TestSingleWorkerDrainsWholeStore(t *testing.T) {
	const blockSize = 10_000
	src := make([]uint8, store.Size)
	for i := range src {
		src[i] = uint8(i)
	}
	addr := servePeer(t, src, 0)

	q := queue.New(blockReqs(store.Size/blockSize, blockSize), 1)
	st := store.New()

	err := NewWorker(log.Root(), addr, q, st).Run(context.Background())
	require.NoError(t, err)
	q.Await()
	require.True(t, q.IsComplete())
	require.Equal(t, src, st.Range(0, store.Size))
}

func TestPeerDyingMidBootstrapIsRecoveredByOtherWorker(t *testing.T) {
	const blockSize = 10_000
	const blocks = 100
	src := make([]uint8, blocks*blockSize)
	for i := range src {
		src[i] = uint8(i % 251)
	}

	dyingPeer := servePeer(t, src, 30)  // serves 30 blocks then disconnects
	healthyPeer := servePeer(t, src, 0) // serves forever

	q := queue.New(blockReqs(blocks, blockSize), 2)
	st, err := store.NewFromBytes(append(src, make([]uint8, store.Size-len(src))...))
	require.NoError(t, err)

	err = RunAll(context.Background(), log.Root(), []string{dyingPeer, healthyPeer}, q, st)
	require.Error(t, err, "the dying peer's worker should report a transport error")
	q.Await()
	require.True(t, q.IsComplete(), "the healthy peer should have picked up the requeued blocks")
}

func TestWorkerRequeuesOnLengthMismatch(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := wire.ReadRequest(conn); err != nil {
			return
		}
		// Respond with a corrupted length rather than the requested 1 byte.
		_ = wire.WriteResponse(conn, []uint8{1, 2})
	}()

	q := queue.New([]wire.BlockRequest{{Start: 0, Length: 1}}, 1)
	st := store.New()

	err = NewWorker(log.Root(), ln.Addr().String(), q, st).Run(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, q.Len(), "the failed request must be requeued")
}
