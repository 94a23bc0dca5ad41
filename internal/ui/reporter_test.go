package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopReporterDoesNothing(t *testing.T) {
	r := NoopReporter{}
	require.NotPanics(t, func() {
		r.BootstrapStarted(100)
		r.BootstrapProgress(10)
		r.BootstrapFinished([]PeerStat{{Peer: "127.0.0.1:9000", BlocksServed: 10}})
	})
}

func TestRenderPeerTableProducesRows(t *testing.T) {
	var buf bytes.Buffer
	renderPeerTable(&buf, []PeerStat{
		{Peer: "127.0.0.1:9000", BlocksServed: 4},
		{Peer: "127.0.0.1:9001", BlocksServed: 6},
	})
	out := buf.String()
	require.Contains(t, out, "127.0.0.1:9000")
	require.Contains(t, out, "127.0.0.1:9001")
}

func TestTerminalReporterProgressWithoutStartIsNoop(t *testing.T) {
	r := &terminalReporter{out: nil, width: 80}
	require.NotPanics(t, func() {
		r.BootstrapProgress(5)
	})
}
