// Package probe implements the bounded-concurrency probe engine shared by
// port scanning, reverse DNS, and subdomain enumeration. It executes one
// probe per unit with a hard cap on simultaneous probes and a per-probe
// timeout, and returns outcomes index-aligned with the input units.
package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/logging"
	"github.com/averlane/osprey/internal/metrics"
)

// Func executes a single probe against one unit. Implementations must
// honor ctx cancellation; a Func that ignores its deadline is still
// forcibly resolved to a timeout outcome by the engine.
type Func[U any] func(ctx context.Context, unit U) Outcome[U]

// Outcome is the result of probing one unit. Exactly one outcome exists
// per unit after a batch completes.
type Outcome[U any] struct {
	// Unit is the probed unit, echoed back for order-independent association.
	Unit U
	// Success reports whether the probe succeeded.
	Success bool
	// Detail carries probe-specific context (service name, PTR hostnames).
	Detail string
	// Err classifies a failure; nil on success. Negative results such as
	// a missing PTR record carry errors.CodeNoRecord.
	Err error
}

// Config controls one batch execution. It is read-only during the batch.
type Config struct {
	// ConcurrencyLimit caps simultaneously running probes. Values below 1
	// are treated as 1.
	ConcurrencyLimit int

	// PerProbeTimeout bounds each individual probe. A probe exceeding it
	// yields a timeout outcome and frees its slot immediately.
	PerProbeTimeout time.Duration

	// Kind labels the batch for logging and metrics ("tcp_connect",
	// "ptr", "subdomain").
	Kind string

	// OnProgress, when set, is called once per completed unit with the
	// number done so far and the batch total. Calls are serialized.
	OnProgress func(done, total int)

	// Metrics receives per-probe and per-batch observations. Nil uses the
	// process-wide instance.
	Metrics *metrics.Metrics
}

// Run probes every unit with at most cfg.ConcurrencyLimit probes in
// flight. It returns only after every unit has exactly one outcome, and
// outcome[i].Unit == units[i] for all i regardless of completion order.
// Per-unit failures never abort the batch.
func Run[U any](ctx context.Context, units []U, fn Func[U], cfg Config) []Outcome[U] {
	start := time.Now()

	limit := cfg.ConcurrencyLimit
	if limit < 1 {
		limit = 1
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}

	// Each worker owns exactly one index, so no lock guards the slice.
	outcomes := make([]Outcome[U], len(units))

	permits := make(chan struct{}, limit)
	var wg sync.WaitGroup

	var progressMu sync.Mutex
	done := 0
	reportProgress := func() {
		if cfg.OnProgress == nil {
			return
		}
		progressMu.Lock()
		done++
		cfg.OnProgress(done, len(units))
		progressMu.Unlock()
	}

	for i := range units {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			permits <- struct{}{}
			defer func() { <-permits }()

			m.ProbeStarted(cfg.Kind)
			probeStart := time.Now()
			outcomes[idx] = runOne(ctx, units[idx], fn, cfg.PerProbeTimeout)
			m.ProbeFinished(cfg.Kind)
			m.RecordProbe(cfg.Kind, outcomeLabel(outcomes[idx]), time.Since(probeStart))

			reportProgress()
		}(i)
	}

	wg.Wait()

	m.RecordScan(cfg.Kind, batchStatus(outcomes), len(units), time.Since(start))
	logging.Debug("probe batch complete",
		"kind", cfg.Kind,
		"units", len(units),
		"duration", time.Since(start))

	return outcomes
}

// runOne executes a single probe under its timeout. The probe runs in its
// own goroutine so a Func that never returns cannot hold the permit past
// the deadline; a late result is discarded.
func runOne[U any](ctx context.Context, unit U, fn Func[U], timeout time.Duration) Outcome[U] {
	probeCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resultCh := make(chan Outcome[U], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- Outcome[U]{
					Unit: unit,
					Err:  errors.NewProbeError(errors.CodeUnknown, fmt.Sprintf("probe panicked: %v", r)),
				}
			}
		}()
		resultCh <- fn(probeCtx, unit)
	}()

	select {
	case out := <-resultCh:
		out.Unit = unit
		return out
	case <-probeCtx.Done():
		// A canceled parent is a user abort, not a slow probe.
		if probeCtx.Err() == context.Canceled {
			return Outcome[U]{
				Unit: unit,
				Err:  errors.WrapProbeError(errors.CodeCanceled, "probe canceled", probeCtx.Err()),
			}
		}
		return Outcome[U]{
			Unit: unit,
			Err:  errors.WrapProbeError(errors.CodeTimeout, "probe timed out", probeCtx.Err()),
		}
	}
}

func outcomeLabel[U any](out Outcome[U]) string {
	switch {
	case out.Success:
		return "success"
	case out.Err == nil:
		return "failure"
	default:
		switch errors.GetCode(out.Err) {
		case errors.CodeTimeout:
			return "timeout"
		case errors.CodeCanceled:
			return "canceled"
		case errors.CodeNoRecord:
			return "no_record"
		default:
			return "error"
		}
	}
}

// batchStatus summarizes a finished batch for the scans_total metric.
// Plain negatives and missing records are normal outcomes, not faults.
func batchStatus[U any](outcomes []Outcome[U]) string {
	faults := 0
	for _, out := range outcomes {
		if out.Err != nil && !errors.IsNegativeResult(out.Err) {
			faults++
		}
	}
	switch {
	case faults == 0:
		return "success"
	case faults == len(outcomes):
		return "failed"
	default:
		return "partial"
	}
}
