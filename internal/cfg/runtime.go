// Package cfg holds dbugger's configuration: process-level runtime flags and
// the per-project JSON config file.
package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Runtime holds process lifecycle settings. It implements the go-core
// cfg.Registerable and cfg.Validatable interfaces so it can be filled from
// flags and DBUGGER_* environment variables alongside the go-core configs.
type Runtime struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
}

// RegisterFlags binds Runtime fields to the given FlagSet with defaults inline
func (r *Runtime) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&r.DrainSeconds, "drain-seconds", 30, "seconds to wait for an in-flight incident to finish before shutdown (1..300)")
	fs.IntVar(&r.ShutdownBudgetSeconds, "shutdown-budget-seconds", 45, "total seconds for component shutdown after drain (1..300)")
}

// Validate checks all runtime fields for correctness.
func (r *Runtime) Validate() error {
	var errs []error

	if r.DrainSeconds <= 0 || r.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", r.DrainSeconds))
	}
	if r.ShutdownBudgetSeconds <= 0 || r.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", r.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if r.ShutdownBudgetSeconds <= r.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", r.ShutdownBudgetSeconds, r.DrainSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
