package correct

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/parity-mesh/paritynode/internal/store"
)

// spinInterval is how long a scanner sleeps between retries while waiting
// for a correction it did not initiate itself to finish.
const spinInterval = 50 * time.Millisecond

// passInterval is how long a scanner sleeps between full passes over the
// store, bounding CPU usage once the store is fully parity-ok.
const passInterval = time.Second

// Scanner is one long-lived correction-loop goroutine: it sweeps the
// store from index 0 to the end, repeatedly, repairing every suspect
// byte it finds. Running several Scanners concurrently is safe and
// intended — the Tickets map coalesces overlapping repair attempts so
// only one set of peer queries is in flight per index at a time.
type Scanner struct {
	log log.Logger
	st  *store.Store
	cor *Corrector
}

// NewScanner constructs a Scanner identified by name (used only in log
// lines, to tell concurrent scanners apart).
func NewScanner(logger log.Logger, name string, st *store.Store, cor *Corrector) *Scanner {
	return &Scanner{log: logger.New("component", "correction-loop", "scanner", name), st: st, cor: cor}
}

// Run sweeps the store forever, until ctx is canceled.
func (s *Scanner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.runPass(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(passInterval):
		}
	}
}

// runPass sweeps the store once, start to finish.
func (s *Scanner) runPass(ctx context.Context) {
	s.log.Debug("starting correction pass")
	for i := 0; i < s.st.Len(); i++ {
		if ctx.Err() != nil {
			return
		}
		s.repairOne(ctx, i)
	}
}

// repairOne handles a single index: if it's parity-ok there is nothing to
// do. Otherwise it spin-waits, retrying TryCorrect with a sleep between
// attempts, until either TryCorrect succeeds or another scanner's ticket
// appears for the same index — at which point this scanner trusts that
// ticket to finish the job and moves on to the next index.
func (s *Scanner) repairOne(ctx context.Context, i int) {
	if s.st.Get(i).IsParityOk() {
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if s.cor.TryCorrect(i) {
			return
		}
		if s.cor.IsCorrecting(i) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(spinInterval):
		}
	}
}
