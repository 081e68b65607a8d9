package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// DefaultHistory is the number of finished runs a Service remembers.
const DefaultHistory = 50

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Pipeline      Config // template for every run; RunID is ignored
	MaxConcurrent int    // default 1
	MaxWait       time.Duration
	History       int
}

// RunRequest overrides parts of the template for one run.
type RunRequest struct {
	FeedURL   string `json:"feed_url,omitempty"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}

// RunStatus is a point-in-time view of a run.
type RunStatus struct {
	ID          string           `json:"id"`
	State       State            `json:"state"`
	FeedURL     string           `json:"feed_url"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Chunks      int              `json:"chunks"`
	SourceRows  int64            `json:"source_rows"`
	CleanedRows int64            `json:"cleaned_rows"`
	Rows        map[string]int64 `json:"rows"`
	BytesRead   int64            `json:"bytes_read"`
	Error       *UserMessage     `json:"error,omitempty"`
	Detail      string           `json:"detail,omitempty"`
}

type activeRun struct {
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// Service starts runs in the background and tracks their progress.
type Service struct {
	cfg     ServiceConfig
	deps    Deps
	limiter *Limiter
	metrics *Metrics
	logger  *slog.Logger

	mu    sync.RWMutex
	runs  map[string]*activeRun
	order []string // run ids, oldest first
}

// NewService creates a Service. metrics may be nil.
func NewService(cfg ServiceConfig, deps Deps, metrics *Metrics) *Service {
	if cfg.History <= 0 {
		cfg.History = DefaultHistory
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		deps:    deps,
		limiter: NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		metrics: metrics,
		logger:  logger,
		runs:    make(map[string]*activeRun),
	}
}

// Start launches a run and returns its id. It fails with ErrRunInProgress
// when no slot frees up in time. The run outlives ctx; use Cancel to stop
// it before streaming begins.
func (s *Service) Start(ctx context.Context, req RunRequest) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	cfg := s.cfg.Pipeline
	cfg.RunID = uuid.NewString()
	if req.FeedURL != "" {
		cfg.FeedURL = req.FeedURL
	}
	if req.ChunkSize > 0 {
		cfg.ChunkSize = req.ChunkSize
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &activeRun{
		status: RunStatus{
			ID:        cfg.RunID,
			State:     StateIdle,
			StartedAt: time.Now(),
			Rows:      make(map[string]int64),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	deps := s.deps
	deps.OnState = func(_ string, st State) {
		s.update(run, func(rs *RunStatus) { rs.State = st })
		if s.deps.OnState != nil {
			s.deps.OnState(cfg.RunID, st)
		}
	}
	deps.OnChunk = func(cs ChunkStats) {
		var prev int64
		s.update(run, func(rs *RunStatus) {
			prev = rs.BytesRead
			rs.Chunks++
			rs.SourceRows += int64(cs.SourceRows)
			rs.CleanedRows += int64(cs.CleanedRows)
			rs.BytesRead = cs.BytesRead
			for table, n := range cs.Rows {
				rs.Rows[table] += n
			}
		})
		s.metrics.observeChunk(cs, prev)
		if s.deps.OnChunk != nil {
			s.deps.OnChunk(cs)
		}
	}

	p := New(cfg, deps)
	run.status.FeedURL = p.cfg.FeedURL
	s.register(run)

	s.metrics.runStarted()
	go func() {
		defer cancel()

		rep, _ := p.Run(runCtx)
		s.finish(run, rep)
		s.metrics.runFinished(rep)

		s.limiter.Release()
		close(run.done)
	}()

	return cfg.RunID, nil
}

func (s *Service) register(run *activeRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.status.ID] = run
	s.order = append(s.order, run.status.ID)

	// Forget the oldest finished runs beyond the history limit.
	for len(s.order) > s.cfg.History {
		oldest := s.runs[s.order[0]]
		if !oldest.status.State.Terminal() {
			break
		}
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Service) update(run *activeRun, fn func(*RunStatus)) {
	s.mu.Lock()
	fn(&run.status)
	s.mu.Unlock()
}

func (s *Service) finish(run *activeRun, rep *Report) {
	now := time.Now()
	s.update(run, func(rs *RunStatus) {
		rs.State = rep.State
		rs.FinishedAt = &now
		rs.Chunks = rep.Chunks
		rs.SourceRows = rep.SourceRows
		rs.CleanedRows = rep.CleanedRows
		rs.BytesRead = rep.BytesRead
		rs.Rows = maps.Clone(rep.Rows)
		if rep.Err != nil {
			msg := Describe(rep.Err)
			rs.Error = &msg
			rs.Detail = rep.Err.Error()
		}
	})
}

// Get returns the status of run id.
func (s *Service) Get(id string) (RunStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return RunStatus{}, ErrRunNotFound
	}
	return snapshot(run.status), nil
}

// List returns every remembered run, newest first.
func (s *Service) List() []RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunStatus, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, snapshot(run.status))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Cancel asks run id to stop. It only takes effect before streaming starts.
func (s *Service) Cancel(id string) error {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return ErrRunNotFound
	}
	run.cancel()
	return nil
}

// Wait blocks until run id finishes or ctx is done.
func (s *Service) Wait(ctx context.Context, id string) (RunStatus, error) {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return RunStatus{}, ErrRunNotFound
	}

	select {
	case <-run.done:
		return s.Get(id)
	case <-ctx.Done():
		return RunStatus{}, ctx.Err()
	}
}

// Active returns the number of runs in progress.
func (s *Service) Active() int { return s.limiter.Active() }

// Shutdown cancels runs that have not started streaming and waits for the
// rest to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, run := range s.runs {
		run.cancel()
	}
	s.mu.RUnlock()
	return s.limiter.WaitForDrain(ctx)
}

func snapshot(rs RunStatus) RunStatus {
	rs.Rows = maps.Clone(rs.Rows)
	if rs.Error != nil {
		msg := *rs.Error
		rs.Error = &msg
	}
	return rs
}
