// Package coordinator decides, per request, whether to invoke the expensive
// generation engine, return a previously computed result, or report on an
// execution some other caller already owns. The hard guarantee is at most
// one engine invocation per idempotency key, enforced by the durable store's
// uniqueness constraint; everything in front of it is acceleration.
package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"encore.dev/beta/errs"
	"encore.dev/rlog"

	"encore.app/reports/budget"
	"encore.app/reports/cache"
	"encore.app/reports/engine"
	"encore.app/reports/identity"
	"encore.app/reports/model"
	"encore.app/reports/policy"
	"encore.app/reports/store"
)

// Config is resolved once at the composition root.
type Config struct {
	Globals policy.Globals
	// PrivilegedActors maps normalized email addresses of allowlisted
	// actors who must always exercise the real path.
	PrivilegedActors map[string]bool
	// EngineTimeout bounds one generation call.
	EngineTimeout time.Duration
}

// Coordinator composes the keys, caches, durable store, budget guard and
// policy selector around the generation engine.
type Coordinator struct {
	store      store.JobStore
	results    *cache.ResultCache
	shared     cache.Shared
	guard      *budget.Guard
	realEngine engine.Engine
	substitute engine.Engine
	cfg        Config

	group singleflight.Group

	// runAsync is an indirection so tests can execute the generation
	// synchronously. Production uses safeAsync (goroutine).
	runAsync func(op string, timeout time.Duration, fn func(ctx context.Context) error)
}

func New(js store.JobStore, results *cache.ResultCache, shared cache.Shared, guard *budget.Guard, realEngine, substitute engine.Engine, cfg Config) *Coordinator {
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = 2 * time.Minute
	}
	return &Coordinator{
		store:      js,
		results:    results,
		shared:     shared,
		guard:      guard,
		realEngine: realEngine,
		substitute: substitute,
		cfg:        cfg,
		runAsync:   safeAsync,
	}
}

// Generate is the single entry point for report generation. It returns a
// processing handle, a completed result, or the stored terminal failure;
// it never blocks on the engine.
func (c *Coordinator) Generate(ctx context.Context, req *model.GenerationRequest) (*model.Result, error) {
	idemKey := identity.DeriveIdempotencyKey(req)
	cacheKey := identity.DeriveCacheKey(req)

	if entry, ok := c.results.Get(cacheKey); ok {
		return resultFromEntry(entry), nil
	}
	if c.shared != nil {
		if entry, ok := c.shared.Get(ctx, cacheKey); ok {
			c.results.Set(entry.Key, entry.JobID, entry.Content, entry.ArtifactType, entry.Cost)
			return resultFromEntry(entry), nil
		}
	}

	// Coalesce concurrent same-key callers within this process so only one
	// of them races the store; the rest share its outcome. Cross-instance
	// duplicates are handled by the store's uniqueness constraint alone.
	v, err, _ := c.group.Do(idemKey, func() (any, error) {
		return c.claimAndStart(ctx, req, idemKey, cacheKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Result), nil
}

// Lookup serves polling clients by job ID.
func (c *Coordinator) Lookup(ctx context.Context, jobID string) (*model.Result, error) {
	job, err := c.store.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, storeUnavailableError()
	}
	if job == nil {
		return nil, &errs.Error{Code: errs.NotFound, Message: "unknown job"}
	}
	return resultFromJob(job), nil
}

func (c *Coordinator) claimAndStart(ctx context.Context, req *model.GenerationRequest, idemKey, cacheKey string) (*model.Result, error) {
	jobID := uuid.NewString()
	snapshot, err := json.Marshal(req)
	if err != nil {
		return nil, &errs.Error{Code: errs.Internal, Message: "failed to snapshot request"}
	}

	claim, err := c.store.Claim(ctx, idemKey, jobID, req.ArtifactType, snapshot)
	if err != nil {
		// No volatile fallback here: pretending to track claims in
		// process memory would reintroduce duplicate invocations the
		// moment a second instance exists.
		rlog.Error("claim failed, store unavailable", "error", err, "idempotency_key", idemKey)
		return nil, storeUnavailableError()
	}

	if !claim.Claimed {
		// Another holder owns this key. Report its state verbatim and
		// never touch the engine on this branch.
		job := claim.Job
		if job.Status == model.JobStatusCompleted && len(job.Content) > 0 {
			c.results.Set(cacheKey, job.JobID, job.Content, job.ArtifactType, 0)
		}
		return resultFromJob(&job), nil
	}

	actor := identity.ActorIdentity(req)
	if c.guard.Exceeded(actor) {
		// Defense in depth: something upstream is retrying past the
		// ceiling. Record the terminal failure so pollers resolve.
		rlog.Warn("call budget exhausted, refusing engine invocation",
			"actor", actor, "artifact_type", req.ArtifactType,
			"attempts", c.guard.AttemptsInWindow(actor))
		if failErr := c.store.Fail(ctx, idemKey, jobID, "call budget exceeded"); failErr != nil {
			rlog.Error("failed to persist budget rejection", "error", failErr, "job_id", jobID)
		}
		return nil, &errs.Error{Code: errs.ResourceExhausted, Message: "generation budget exceeded, try again later"}
	}

	decision := policy.SelectExecutionMode(policy.Params{
		Globals:         c.cfg.Globals,
		PrivilegedActor: c.isPrivileged(req),
		ForceReal:       req.ForceReal,
		Synthetic:       req.Synthetic,
	})

	c.runAsync("generate-report", c.cfg.EngineTimeout, func(asyncCtx context.Context) error {
		return c.execute(asyncCtx, req, idemKey, cacheKey, jobID, actor, decision)
	})

	return &model.Result{Status: model.JobStatusProcessing, JobID: jobID}, nil
}

// execute runs on the claim-holder only. It invokes the engine exactly once
// and transitions the durable row to a terminal state.
func (c *Coordinator) execute(ctx context.Context, req *model.GenerationRequest, idemKey, cacheKey, jobID, actor string, decision policy.Decision) error {
	eng := c.substitute
	if decision.UseRealPath {
		eng = c.realEngine
		if err := c.guard.WaitInvocation(ctx); err != nil {
			c.persistFailure(ctx, idemKey, jobID, "engine invocation throttled: "+err.Error())
			return err
		}
	}

	start := time.Now()
	content, err := eng.Generate(ctx, req.ArtifactType, req)
	duration := time.Since(start)
	c.guard.RecordAttempt(actor, req.ArtifactType, err == nil, duration)

	if err != nil {
		rlog.Error("generation failed", "error", err, "job_id", jobID, "artifact_type", req.ArtifactType, "real_path", decision.UseRealPath)
		c.persistFailure(ctx, idemKey, jobID, err.Error())
		return err
	}

	if err := c.store.Complete(ctx, idemKey, jobID, content); err != nil {
		// The content exists but the row is stuck in processing for
		// everyone else until the store recovers and reconciliation
		// catches it. Loud log, and this process can still serve the
		// result from cache.
		rlog.Error("generated content could not be persisted, row remains processing",
			"error", err, "job_id", jobID, "idempotency_key", idemKey)
	}

	c.results.Set(cacheKey, jobID, content, req.ArtifactType, duration.Milliseconds())
	if c.shared != nil {
		if entry, ok := c.results.Get(cacheKey); ok {
			c.shared.Set(ctx, entry)
		}
	}

	rlog.Info("generation completed", "job_id", jobID, "artifact_type", req.ArtifactType,
		"duration_ms", duration.Milliseconds(), "real_path", decision.UseRealPath)
	return nil
}

func (c *Coordinator) persistFailure(ctx context.Context, idemKey, jobID, msg string) {
	if err := c.store.Fail(ctx, idemKey, jobID, msg); err != nil {
		// Worst case: a row stuck in processing. Reconciliation will
		// eventually fail it; until then pollers keep seeing processing.
		rlog.Error("failed to persist generation failure", "error", err, "job_id", jobID, "idempotency_key", idemKey)
	}
}

func (c *Coordinator) isPrivileged(req *model.GenerationRequest) bool {
	if len(c.cfg.PrivilegedActors) == 0 {
		return false
	}
	return c.cfg.PrivilegedActors[identity.NormalizeEmail(req.Email)]
}

func resultFromEntry(entry *cache.Entry) *model.Result {
	return &model.Result{
		Status:  model.JobStatusCompleted,
		JobID:   entry.JobID,
		Content: entry.Content,
	}
}

func resultFromJob(job *model.ReportJob) *model.Result {
	return &model.Result{
		Status:       job.Status,
		JobID:        job.JobID,
		Content:      job.Content,
		ErrorMessage: job.ErrorMessage,
	}
}

func storeUnavailableError() *errs.Error {
	return &errs.Error{Code: errs.Unavailable, Message: "report store unavailable, please retry"}
}
