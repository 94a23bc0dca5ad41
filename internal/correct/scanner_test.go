package correct

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/parity-mesh/paritynode/internal/paritybyte"
	"github.com/parity-mesh/paritynode/internal/store"
)

func TestScannerRepairsInjectedError(t *testing.T) {
	a := singleByteServer(t, 0x2a)
	b := singleByteServer(t, 0x2a)

	st := store.New()
	st.Set(42, paritybyte.New(0x2a).Corrupt(0))

	cor := NewCorrector(log.Root(), st, fixedPeerLister{a, b}, WithDialer(netDial))
	scanner := NewScanner(log.Root(), "s1", st, cor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scanner.Run(ctx)

	require.Eventually(t, func() bool {
		return st.Get(42).IsParityOk()
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, uint8(0x2a), st.Get(42).Value())
}

func TestTwoScannersCoalesceOnSameIndex(t *testing.T) {
	a := singleByteServer(t, 0x10)
	b := singleByteServer(t, 0x10)

	st := store.New()
	st.Set(500, paritybyte.New(0x10).Corrupt(0))

	cor := NewCorrector(log.Root(), st, fixedPeerLister{a, b}, WithDialer(netDial))
	s1 := NewScanner(log.Root(), "s1", st, cor)
	s2 := NewScanner(log.Root(), "s2", st, cor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s1.Run(ctx)
	go s2.Run(ctx)

	require.Eventually(t, func() bool {
		return st.Get(500).IsParityOk()
	}, time.Second, 5*time.Millisecond)
}
