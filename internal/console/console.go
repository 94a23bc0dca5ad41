// Package console implements the operator-facing injection console: a
// stdin line reader that lets an operator corrupt a chosen byte in a
// running store, for exercising the correction loop by hand.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/parity-mesh/paritynode/internal/store"
)

// Console reads "ERROR <index>" lines from r and flips one bit of
// data[index] in st. Any other line, or an out-of-range index, is
// reported and ignored.
type Console struct {
	log log.Logger
	r   io.Reader
	st  *store.Store
}

func New(logger log.Logger, r io.Reader, st *store.Store) *Console {
	return &Console{log: logger.New("component", "injection-console"), r: r, st: st}
}

// Run processes lines from r until it is exhausted (EOF on stdin, or the
// reader is closed at shutdown). It never returns an error: malformed
// input is diagnosed and skipped, not fatal.
func (c *Console) Run() {
	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		c.handleLine(scanner.Text())
	}
}

func (c *Console) handleLine(line string) {
	index, err := parseErrorLine(line)
	if err != nil {
		c.log.Warn("ignoring malformed console line", "line", line, "err", err)
		return
	}
	if index < 0 || index >= c.st.Len() {
		c.log.Warn("ignoring out-of-range console index", "index", index)
		return
	}

	b := c.st.Get(index)
	c.st.Set(index, b.Corrupt(0))
	c.log.Info("injected bit error", "index", index)
}

// parseErrorLine parses "ERROR <index>", case-insensitive on the
// keyword, tolerating surrounding whitespace.
func parseErrorLine(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, fmt.Errorf("expected \"ERROR <index>\", got %q", line)
	}
	if !strings.EqualFold(fields[0], "ERROR") {
		return 0, fmt.Errorf("unknown command %q", fields[0])
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: %w", fields[1], err)
	}
	return index, nil
}
