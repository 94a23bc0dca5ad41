// Package ui reports bootstrap progress and the post-bootstrap peer
// roster to the operator, keeping internal/node free of terminal
// concerns.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// PeerStat summarizes how much one peer contributed during bootstrap.
type PeerStat struct {
	Peer         string
	BlocksServed int
}

// Reporter is the node lifecycle's view onto the operator's terminal.
// Implementations must be safe to call from a single goroutine driving
// bootstrap; Node never calls a Reporter concurrently from two
// goroutines.
type Reporter interface {
	// BootstrapStarted announces the total number of blocks to fetch.
	BootstrapStarted(totalBlocks int)
	// BootstrapProgress advances the bar by n newly fetched blocks.
	BootstrapProgress(n int)
	// BootstrapFinished renders the final per-peer summary.
	BootstrapFinished(stats []PeerStat)
}

// New picks an interactive Reporter if out is a terminal, and a quiet
// NoopReporter otherwise (piped logs, CI, redirected output).
func New(out *os.File) Reporter {
	if !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd()) {
		return NoopReporter{}
	}
	width, _, err := term.GetSize(int(out.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	return &terminalReporter{out: out, width: width}
}

type terminalReporter struct {
	out *os.File
	width int
	bar *progressbar.ProgressBar
}

func (r *terminalReporter) BootstrapStarted(totalBlocks int) {
	r.bar = progressbar.NewOptions(totalBlocks,
		progressbar.OptionSetDescription("bootstrapping"),
		progressbar.OptionSetWidth(min(r.width-20, 40)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.out) }),
	)
}

func (r *terminalReporter) BootstrapProgress(n int) {
	if r.bar == nil {
		return
	}
	_ = r.bar.Add(n)
}

func (r *terminalReporter) BootstrapFinished(stats []PeerStat) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	renderPeerTable(r.out, stats)
}

func renderPeerTable(out io.Writer, stats []PeerStat) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Peer", "Blocks Served"})
	for _, s := range stats {
		table.Append([]string{s.Peer, fmt.Sprintf("%d", s.BlocksServed)})
	}
	table.Render()
}

// NoopReporter discards progress/table output, used for non-interactive
// runs. It still exists (rather than a nil Reporter) so internal/node
// never has to nil-check its Reporter.
type NoopReporter struct{}

func (NoopReporter) BootstrapStarted(int)         {}
func (NoopReporter) BootstrapProgress(int)        {}
func (NoopReporter) BootstrapFinished([]PeerStat) {}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
