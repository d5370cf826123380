package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Analyzer  stage.Handler
	Clusterer stage.Handler
	Planner   stage.Handler
	Renderer  stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing using registered stage handlers. One
// claim loop walks the queue oldest-first; items run concurrently up to the
// configured video limit, and each item advances one stage per claim.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration

	stages       []pipelineStage
	stageByStart map[queue.Status]pipelineStage
	slots        chan struct{}

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	// inFlight keeps the claim loop from handing one item to two workers.
	inFlight map[int64]struct{}
}

// NewManager constructs a workflow manager around the given stage set.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, set StageSet) *Manager {
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		slots:        make(chan struct{}, cfg.Workflow.MaxConcurrentVideos),
		stageByStart: make(map[queue.Status]pipelineStage),
		inFlight:     make(map[int64]struct{}),
	}
	m.stages = []pipelineStage{
		{name: "analyzer", handler: set.Analyzer, startStatus: queue.StatusPending, processingStatus: queue.StatusAnalyzing, doneStatus: queue.StatusAnalyzed},
		{name: "clusterer", handler: set.Clusterer, startStatus: queue.StatusAnalyzed, processingStatus: queue.StatusClustering, doneStatus: queue.StatusClustered},
		{name: "planner", handler: set.Planner, startStatus: queue.StatusClustered, processingStatus: queue.StatusPlanning, doneStatus: queue.StatusPlanned},
		{name: "renderer", handler: set.Renderer, startStatus: queue.StatusPlanned, processingStatus: queue.StatusRendering, doneStatus: queue.StatusCompleted},
	}
	for _, stg := range m.stages {
		m.stageByStart[stg.startStatus] = stg
	}
	return m
}

// Start begins background processing. Items stranded in a processing status
// by a previous run are rolled back first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	if n, err := m.store.ResetStaleProcessing(runCtx); err != nil {
		m.logger.Warn("reset stale processing failed; stuck items may remain", logging.Error(err))
	} else if n > 0 {
		m.logger.Info("reset stale items from previous run", logging.Int64("count", n))
	}

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight items.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// LastError returns the most recent stage or queue failure.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Health reports stage readiness for every configured handler.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(m.stages))
	for _, stg := range m.stages {
		out = append(out, stg.handler.HealthCheck(ctx))
	}
	return out
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	startStatuses := make([]queue.Status, 0, len(m.stages))
	for _, stg := range m.stages {
		startStatuses = append(startStatuses, stg.startStatus)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := m.claimNext(ctx, startStatuses)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch next queue item", logging.Error(err))
			m.sleep(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if item == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		select {
		case <-ctx.Done():
			m.release(item.ID)
			return
		case m.slots <- struct{}{}:
		}

		m.wg.Add(1)
		go func(item *queue.Item) {
			defer m.wg.Done()
			defer func() { <-m.slots }()
			defer m.release(item.ID)
			m.processItem(ctx, item)
		}(item)
	}
}

// claimNext returns the oldest actionable item not already running, nil when
// the queue has nothing to do.
func (m *Manager) claimNext(ctx context.Context, statuses []queue.Status) (*queue.Item, error) {
	items, err := m.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if _, busy := m.inFlight[item.ID]; busy {
			continue
		}
		m.inFlight[item.ID] = struct{}{}
		return item, nil
	}
	return nil, nil
}

func (m *Manager) release(id int64) {
	m.mu.Lock()
	delete(m.inFlight, id)
	m.mu.Unlock()
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
