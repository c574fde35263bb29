package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/averlane/osprey/internal/store"
)

// openStore connects to the configured database. It is only called when
// a command actually needs persistence.
func openStore(ctx context.Context) (*store.Store, error) {
	if !cfg.Database.Enabled {
		return nil, fmt.Errorf("scan history requires database.enabled in the config file")
	}
	history, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := history.Migrate(ctx); err != nil {
		_ = history.Close()
		return nil, err
	}
	return history, nil
}

// persistRun saves one run and its findings. Failures warn instead of
// failing the command; the scan output is already on screen.
func persistRun(ctx context.Context, kind, target string, units int, started time.Time, findings []store.Finding) {
	history, err := openStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: not saved: %v\n", err)
		return
	}
	defer func() { _ = history.Close() }()

	run := &store.Run{
		Kind:       kind,
		Target:     target,
		Units:      units,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := history.SaveRun(ctx, run, findings); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: not saved: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Saved run %s\n", run.ID)
}

// progressPrinter writes batch progress to stderr when running verbose.
func progressPrinter(label string) func(done, total int) {
	if !verbose {
		return nil
	}
	return func(done, total int) {
		if done == total || done%50 == 0 {
			fmt.Fprintf(os.Stderr, "%s: %d/%d\n", label, done, total)
		}
	}
}
