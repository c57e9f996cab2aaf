package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"encore.dev/beta/errs"

	"encore.app/reports/budget"
	"encore.app/reports/cache"
	"encore.app/reports/identity"
	"encore.app/reports/mocks/store/job_store"
	"encore.app/reports/model"
	"encore.app/reports/policy"
	"encore.app/reports/store"
)

// memStore is an in-memory JobStore whose Claim is atomic, standing in for
// the database's uniqueness constraint. Shared across Coordinator instances
// it simulates multiple service processes.
type memStore struct {
	mu          sync.Mutex
	rows        map[string]*model.ReportJob
	completeErr error
	failErr     error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*model.ReportJob)}
}

func (s *memStore) Claim(_ context.Context, key, jobID, artifactType string, snapshot json.RawMessage) (store.ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[key]; ok {
		return store.ClaimResult{Claimed: false, Job: *existing}, nil
	}
	job := &model.ReportJob{
		IdempotencyKey: key,
		JobID:          jobID,
		Status:         model.JobStatusProcessing,
		ArtifactType:   artifactType,
		InputSnapshot:  snapshot,
		CreatedAt:      time.Now(),
	}
	s.rows[key] = job
	return store.ClaimResult{Claimed: true, Job: *job}, nil
}

func (s *memStore) Complete(_ context.Context, key, jobID string, content json.RawMessage) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.rows[key]
	if !ok || job.JobID != jobID || job.Status != model.JobStatusProcessing {
		return store.ErrStaleClaim
	}
	job.Status = model.JobStatusCompleted
	job.Content = content
	return nil
}

func (s *memStore) Fail(_ context.Context, key, jobID, errorMessage string) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.rows[key]
	if !ok || job.JobID != jobID || job.Status != model.JobStatusProcessing {
		return store.ErrStaleClaim
	}
	job.Status = model.JobStatusFailed
	job.ErrorMessage = &errorMessage
	return nil
}

func (s *memStore) GetByKey(_ context.Context, key string) (*model.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.rows[key]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, nil
}

func (s *memStore) GetByJobID(_ context.Context, jobID string) (*model.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.rows {
		if job.JobID == jobID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

// countingEngine counts invocations and optionally blocks or fails.
type countingEngine struct {
	calls   atomic.Int32
	content json.RawMessage
	err     error
	block   chan struct{}
}

func (e *countingEngine) Generate(ctx context.Context, _ string, _ *model.GenerationRequest) (json.RawMessage, error) {
	e.calls.Add(1)
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.content, nil
}

// mapShared is a test double for the cross-instance L2 cache.
type mapShared struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
}

func newMapShared() *mapShared {
	return &mapShared{entries: make(map[string]cache.Entry)}
}

func (m *mapShared) Get(_ context.Context, key string) (*cache.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return &e, true
	}
	return nil, false
}

func (m *mapShared) Set(_ context.Context, entry *cache.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = *entry
}

func testGuard() *budget.Guard {
	return budget.NewGuard(budget.Config{
		Ceiling:              5,
		Window:               time.Hour,
		InvocationsPerSecond: 1000,
		Burst:                1000,
	})
}

func testRequest() *model.GenerationRequest {
	return &model.GenerationRequest{
		Name:         "A",
		DateOfBirth:  "1990-01-01",
		TimeOfBirth:  "10:00",
		Place:        "X",
		ArtifactType: "life-summary",
	}
}

type coordinatorOpts struct {
	store  store.JobStore
	shared cache.Shared
	real   *countingEngine
	sub    *countingEngine
	guard  *budget.Guard
	cfg    Config
	sync   bool
}

func newTestCoordinator(opts coordinatorOpts) *Coordinator {
	if opts.store == nil {
		opts.store = newMemStore()
	}
	if opts.real == nil {
		opts.real = &countingEngine{content: json.RawMessage(`{"report":"real"}`)}
	}
	if opts.sub == nil {
		opts.sub = &countingEngine{content: json.RawMessage(`{"report":"substitute"}`)}
	}
	if opts.guard == nil {
		opts.guard = testGuard()
	}
	c := New(opts.store, cache.NewResultCache(cache.DefaultTTLTable()), opts.shared, opts.guard, opts.real, opts.sub, opts.cfg)
	if opts.sync {
		c.runAsync = func(_ string, _ time.Duration, fn func(ctx context.Context) error) {
			_ = fn(context.Background())
		}
	}
	return c
}

func TestGenerate_EndToEndThreeSubmissions(t *testing.T) {
	real := &countingEngine{content: json.RawMessage(`{"report":"real"}`)}
	c := newTestCoordinator(coordinatorOpts{real: real, sync: true})
	ctx := context.Background()

	first, err := c.Generate(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, first.Status)
	require.NotEmpty(t, first.JobID)

	// Polling after the (synchronous) background execution sees completed.
	polled, err := c.Lookup(ctx, first.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, polled.Status)
	assert.JSONEq(t, `{"report":"real"}`, string(polled.Content))

	second, err := c.Generate(ctx, testRequest())
	require.NoError(t, err)
	third, err := c.Generate(ctx, testRequest())
	require.NoError(t, err)

	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, first.JobID, third.JobID)
	assert.Equal(t, model.JobStatusCompleted, second.Status)
	assert.Equal(t, model.JobStatusCompleted, third.Status)

	assert.Equal(t, int32(1), real.calls.Load(), "engine must run exactly once for identical input")
}

func TestGenerate_DuplicateWhileInFlightObservesProcessing(t *testing.T) {
	shared := newMemStore()
	real := &countingEngine{content: json.RawMessage(`{"ok":true}`), block: make(chan struct{})}

	// Two coordinators over one store simulate two instances with no
	// shared memory: singleflight cannot help across them.
	a := newTestCoordinator(coordinatorOpts{store: shared, real: real})
	b := newTestCoordinator(coordinatorOpts{store: shared, real: real})

	first, err := a.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, first.Status)

	// The duplicate lands on the existing row; it does not wait and does
	// not start a second execution.
	dup, err := b.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, dup.Status)
	assert.Equal(t, first.JobID, dup.JobID)

	close(real.block)
	assert.Eventually(t, func() bool {
		r, err := a.Lookup(context.Background(), first.JobID)
		return err == nil && r.Status == model.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), real.calls.Load())
}

func TestGenerate_StoreEnforcedRace(t *testing.T) {
	shared := newMemStore()
	real := &countingEngine{content: json.RawMessage(`{"ok":true}`)}

	const instances = 8
	results := make([]*model.Result, instances)
	errsOut := make([]error, instances)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < instances; i++ {
		c := newTestCoordinator(coordinatorOpts{store: shared, real: real, sync: true})
		wg.Add(1)
		go func(i int, c *Coordinator) {
			defer wg.Done()
			<-start
			results[i], errsOut[i] = c.Generate(context.Background(), testRequest())
		}(i, c)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), real.calls.Load(), "store uniqueness must admit exactly one execution")

	for i := 0; i < instances; i++ {
		require.NoError(t, errsOut[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].JobID, results[i].JobID, "every caller observes the same job")
		assert.Contains(t, []model.JobStatus{model.JobStatusProcessing, model.JobStatusCompleted}, results[i].Status)
	}
}

func TestGenerate_StoreUnavailableFailsFast(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := job_store.NewMockJobStore(ctrl)
	mockStore.EXPECT().
		Claim(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(store.ClaimResult{}, fmt.Errorf("%w: connection refused", store.ErrStoreUnavailable))

	real := &countingEngine{content: json.RawMessage(`{}`)}
	c := newTestCoordinator(coordinatorOpts{store: mockStore, real: real, sync: true})

	result, err := c.Generate(context.Background(), testRequest())
	assert.Nil(t, result, "no fabricated processing state that can never resolve")
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.Unavailable, e.Code)
	assert.Equal(t, int32(0), real.calls.Load())
}

func TestGenerate_EngineFailureIsTerminalForKey(t *testing.T) {
	real := &countingEngine{err: assert.AnError}
	shared := newMemStore()
	c := newTestCoordinator(coordinatorOpts{store: shared, real: real, sync: true})
	ctx := context.Background()

	first, err := c.Generate(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, first.Status)

	// The row is now failed; resubmitting the same input observes the
	// stored failure and never re-invokes the engine.
	second, err := c.Generate(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, second.Status)
	assert.Equal(t, first.JobID, second.JobID)
	require.NotNil(t, second.ErrorMessage)
	assert.Equal(t, int32(1), real.calls.Load())

	// A retry nonce is the sanctioned way to start over after failure.
	retry := testRequest()
	retry.RetryNonce = "attempt-2"
	real.err = nil
	real.content = json.RawMessage(`{"report":"second try"}`)
	third, err := c.Generate(ctx, retry)
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, third.JobID)
	assert.Equal(t, int32(2), real.calls.Load())
}

func TestGenerate_BudgetCeilingRefusesInvocation(t *testing.T) {
	guard := budget.NewGuard(budget.Config{Ceiling: 2, Window: time.Hour, InvocationsPerSecond: 1000, Burst: 1000})
	real := &countingEngine{content: json.RawMessage(`{}`)}
	shared := newMemStore()
	c := newTestCoordinator(coordinatorOpts{store: shared, real: real, guard: guard, sync: true})

	req := testRequest()
	actor := identity.ActorIdentity(req)
	guard.RecordAttempt(actor, req.ArtifactType, false, time.Second)
	guard.RecordAttempt(actor, req.ArtifactType, false, time.Second)

	result, err := c.Generate(context.Background(), req)
	assert.Nil(t, result)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.ResourceExhausted, e.Code)
	assert.Equal(t, int32(0), real.calls.Load())

	// The claimed row was failed so pollers are not stuck.
	row, getErr := shared.GetByKey(context.Background(), identity.DeriveIdempotencyKey(req))
	require.NoError(t, getErr)
	require.NotNil(t, row)
	assert.Equal(t, model.JobStatusFailed, row.Status)

	// A different actor is unaffected.
	other := testRequest()
	other.Name = "B"
	otherResult, err := c.Generate(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, otherResult.Status)
	assert.Equal(t, int32(1), real.calls.Load())
}

func TestGenerate_ModeRouting(t *testing.T) {
	t.Run("synthetic_takes_substitute_path", func(t *testing.T) {
		real := &countingEngine{content: json.RawMessage(`{"r":1}`)}
		sub := &countingEngine{content: json.RawMessage(`{"s":1}`)}
		c := newTestCoordinator(coordinatorOpts{real: real, sub: sub, sync: true})

		req := testRequest()
		req.Synthetic = true
		_, err := c.Generate(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, int32(0), real.calls.Load())
		assert.Equal(t, int32(1), sub.calls.Load())
	})

	t.Run("privileged_actor_overrides_synthetic", func(t *testing.T) {
		real := &countingEngine{content: json.RawMessage(`{"r":1}`)}
		sub := &countingEngine{content: json.RawMessage(`{"s":1}`)}
		c := newTestCoordinator(coordinatorOpts{
			real: real,
			sub:  sub,
			sync: true,
			cfg:  Config{PrivilegedActors: map[string]bool{"vip@example.com": true}},
		})

		req := testRequest()
		req.Synthetic = true
		req.Email = "VIP@example.com"
		_, err := c.Generate(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, int32(1), real.calls.Load())
		assert.Equal(t, int32(0), sub.calls.Load())
	})

	t.Run("kill_switch_overrides_everything", func(t *testing.T) {
		real := &countingEngine{content: json.RawMessage(`{"r":1}`)}
		sub := &countingEngine{content: json.RawMessage(`{"s":1}`)}
		c := newTestCoordinator(coordinatorOpts{
			real: real,
			sub:  sub,
			sync: true,
			cfg: Config{
				Globals:          policy.Globals{ForceSubstitute: true},
				PrivilegedActors: map[string]bool{"vip@example.com": true},
			},
		})

		req := testRequest()
		req.Email = "vip@example.com"
		req.ForceReal = true
		_, err := c.Generate(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, int32(0), real.calls.Load())
		assert.Equal(t, int32(1), sub.calls.Load())
	})
}

func TestGenerate_SharedCachePopulatedAndConsulted(t *testing.T) {
	l2 := newMapShared()
	real := &countingEngine{content: json.RawMessage(`{"report":"x"}`)}
	a := newTestCoordinator(coordinatorOpts{shared: l2, real: real, sync: true})

	first, err := a.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	// A second instance shares only the L2 cache and a fresh store; the
	// cached result short-circuits before any claim.
	b := newTestCoordinator(coordinatorOpts{shared: l2, real: real, sync: true})
	second, err := b.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, second.Status)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, int32(1), real.calls.Load())
}

func TestGenerate_CompletePersistFailureStillServesContent(t *testing.T) {
	shared := newMemStore()
	shared.completeErr = fmt.Errorf("%w: write timeout", store.ErrStoreUnavailable)
	real := &countingEngine{content: json.RawMessage(`{"report":"x"}`)}
	c := newTestCoordinator(coordinatorOpts{store: shared, real: real, sync: true})
	ctx := context.Background()

	first, err := c.Generate(ctx, testRequest())
	require.NoError(t, err)

	// The durable row is stuck in processing for other observers...
	row, getErr := shared.GetByKey(ctx, identity.DeriveIdempotencyKey(testRequest()))
	require.NoError(t, getErr)
	assert.Equal(t, model.JobStatusProcessing, row.Status)

	// ...but this process still serves the generated content from cache.
	second, err := c.Generate(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, second.Status)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, int32(1), real.calls.Load())
}

func TestLookup(t *testing.T) {
	c := newTestCoordinator(coordinatorOpts{sync: true})
	ctx := context.Background()

	first, err := c.Generate(ctx, testRequest())
	require.NoError(t, err)

	found, err := c.Lookup(ctx, first.JobID)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, found.JobID)

	_, err = c.Lookup(ctx, "no-such-job")
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.NotFound, e.Code)
}
