package storage

import "time"

// CycleRun is the per-cycle audit row. A cycle with PersistFailures > 0 is
// under-recorded: alerts were dispatched but their durable records may be
// missing, and an operator can detect that here.
type CycleRun struct {
	CycleTS          time.Time
	TargetsEvaluated int
	SymbolsFetched   int
	SymbolsFailed    int
	EventsFired      int
	PersistFailures  int
	Status           string
	Error            *string
	CreatedAt        time.Time
}

// Cycle run statuses.
const (
	CycleStatusComplete = "complete"
	CycleStatusDegraded = "degraded"
	CycleStatusErrored  = "errored"
)
