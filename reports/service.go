package reports

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.temporal.io/sdk/client"

	"encore.dev/rlog"
	"encore.dev/storage/sqldb"

	"encore.app/reports/budget"
	"encore.app/reports/cache"
	"encore.app/reports/coordinator"
	"encore.app/reports/engine"
	"encore.app/reports/policy"
	"encore.app/reports/store"
	"encore.app/reports/store/jobs"
	"encore.app/reports/workflow"
)

var reportsDB = sqldb.NewDatabase("reports", sqldb.DatabaseConfig{
	Migrations: "./db/migrations",
})

var validate = validator.New()

const reconcileTaskQueue = "reports-reconciliation"

//encore:service
type Service struct {
	coordinator *coordinator.Coordinator
	results     *cache.ResultCache
	guard       *budget.Guard
	temporal    client.Client
}

// svc lets package-level cron endpoints reach the running service instance.
var svc *Service

func initService() (*Service, error) {
	pgxdb := sqldb.Driver(reportsDB)

	queries := jobs.New(pgxdb)
	adapter := store.NewAdapter(queries)
	results := cache.NewResultCache(cache.DefaultTTLTable())
	guard := budget.NewGuard(budget.DefaultConfig())

	realEngine := engine.NewHTTP(engine.HTTPConfig{
		BaseURL: os.Getenv("GENERATION_API_URL"),
	})

	coord := coordinator.New(
		adapter,
		results,
		cache.NewShared(),
		guard,
		realEngine,
		engine.NewSubstitute(),
		coordinator.Config{
			Globals:          policy.GlobalsFromEnv(),
			PrivilegedActors: privilegedActorsFromEnv(),
			EngineTimeout:    2 * time.Minute,
		},
	)

	workflow.SetActivityDependencies(adapter, queries)

	s := &Service{
		coordinator: coord,
		results:     results,
		guard:       guard,
	}
	svc = s

	if addr := os.Getenv("TEMPORAL_ADDRESS"); addr != "" {
		tc, err := client.Dial(client.Options{HostPort: addr})
		if err != nil {
			// Reconciliation is an operational safety net, not a request
			// dependency; the service still serves without it.
			rlog.Error("failed to connect to temporal, stuck-job reconciliation disabled", "error", err)
		} else {
			s.temporal = tc
			s.startReconciliation(context.Background())
		}
	}

	return s, nil
}

// startReconciliation schedules the recurring stuck-job pass. Already-running
// schedules are benign.
func (s *Service) startReconciliation(ctx context.Context) {
	options := client.StartWorkflowOptions{
		ID:           "reconcile-stuck-report-jobs",
		TaskQueue:    reconcileTaskQueue,
		CronSchedule: "*/10 * * * *",
	}
	params := workflow.ReconcileParams{
		StuckAfter: 15 * time.Minute,
		BatchLimit: 100,
	}
	if _, err := s.temporal.ExecuteWorkflow(ctx, options, workflow.ReconcileStuckJobs, params); err != nil {
		rlog.Error("failed to start reconciliation schedule", "error", err)
	}
}

// privilegedActorsFromEnv parses the comma-separated allowlist of actor
// emails that must always exercise the real generation path.
func privilegedActorsFromEnv() map[string]bool {
	raw := os.Getenv("REPORTS_PRIVILEGED_ACTORS")
	if raw == "" {
		return nil
	}
	actors := make(map[string]bool)
	for _, email := range strings.Split(raw, ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			actors[email] = true
		}
	}
	return actors
}
