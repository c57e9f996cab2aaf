package reports

import (
	"context"

	"encore.dev/cron"
	"encore.dev/rlog"
)

// Maintenance sweep runs hourly, coarser than any artifact TTL. Entries are
// also evicted lazily on read; this pass only bounds memory for keys nobody
// asks for again.
var _ = cron.NewJob("reports-maintenance", cron.JobConfig{
	Title:    "Sweep report caches and budget counters",
	Every:    1 * cron.Hour,
	Endpoint: Maintenance,
})

//encore:api private
func Maintenance(ctx context.Context) error {
	if svc == nil {
		return nil
	}

	evicted := svc.results.Sweep()
	pruned := svc.guard.Prune()
	rlog.Info("maintenance sweep completed",
		"cache_entries_evicted", evicted,
		"budget_actors_pruned", pruned,
		"budget_exceeded_events", svc.guard.ExceededEvents(),
	)
	return nil
}
