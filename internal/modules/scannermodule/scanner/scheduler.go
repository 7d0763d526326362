package scanner

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/events"
	"github.com/curatorapp/curator/internal/logger"
	"github.com/curatorapp/curator/internal/metadata"
	"github.com/curatorapp/curator/internal/utils"
)

// ScanTask is the explicit handle for one background scan execution. The
// scheduler's queue draining is driven from its completion, never by the
// caller.
type ScanTask struct {
	JobID uint32

	done chan struct{}
	err  error
}

// Done is closed when the scan finishes, successfully or not.
func (t *ScanTask) Done() <-chan struct{} { return t.done }

// Err returns the terminal error once Done is closed.
func (t *ScanTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// EnqueueResult is returned immediately when a scan request is accepted.
type EnqueueResult struct {
	Queued        bool   `json:"queued"`
	QueuePosition int    `json:"queuePosition,omitempty"`
	ScanJobID     uint32 `json:"scanJobId"`
}

type scanRequest struct {
	jobID  uint32
	path   string
	opts   ScanOptions
	resume bool
}

// Scheduler serializes scan execution: at most one scan runs process-wide,
// additional requests wait in a FIFO queue. It owns its queue and
// current-task reference; construct it once at startup and inject it into
// handlers.
type Scheduler struct {
	db        *gorm.DB
	cfg       config.ScannerConfig
	validator *Validator
	walker    *Walker
	persister *Persister
	emitter   *ProgressEmitter
	metaMgr   *metadata.Manager
	resolver  *utils.PathResolver

	mu     sync.Mutex
	active *ScanTask
	queue  []*scanRequest
}

// NewScheduler builds a scheduler with its collaborators.
func NewScheduler(db *gorm.DB, cfg config.ScannerConfig, bus events.EventBus, metaMgr *metadata.Manager) *Scheduler {
	return &Scheduler{
		db:        db,
		cfg:       cfg,
		validator: NewValidator(cfg),
		walker:    NewWalker(),
		persister: NewPersister(db),
		emitter:   NewProgressEmitter(bus),
		metaMgr:   metaMgr,
		resolver:  utils.NewPathResolver(),
	}
}

// Enqueue accepts a scan request. Path validation happens synchronously;
// rejected paths never create a job. The returned result says whether the
// scan started immediately or waits in the queue, with its 1-based
// position.
func (s *Scheduler) Enqueue(path string, opts ScanOptions) (*EnqueueResult, error) {
	if !opts.MediaType.Valid() {
		return nil, &ValidationError{
			Path:           path,
			Reason:         fmt.Sprintf("unsupported media type %q", opts.MediaType),
			Recommendation: "use MOVIE, TV_SHOW, MUSIC or COMIC",
		}
	}

	resolved, err := s.resolver.ResolveDirectory(path)
	if err != nil {
		return nil, &ValidationError{
			Path:           path,
			Reason:         "path does not exist or is not accessible",
			Recommendation: "check the path and filesystem permissions",
		}
	}

	if err := s.validator.Validate(resolved, opts.MediaType); err != nil {
		return nil, err
	}

	job := database.ScanJob{
		ScanPath:       resolved,
		MediaType:      opts.MediaType,
		Status:         database.ScanJobPending,
		MetadataStatus: database.MetadataNotStarted,
	}
	if err := s.db.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to create scan job: %w", err)
	}

	req := &scanRequest{jobID: job.ID, path: resolved, opts: opts}
	return s.submit(req), nil
}

// Resume re-enqueues an existing, non-running job. The execution re-derives
// remaining work from persisted rows under the job's scan path.
func (s *Scheduler) Resume(jobID uint32) (*EnqueueResult, error) {
	var job database.ScanJob
	if err := s.db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("scan job %d not found", jobID)
		}
		return nil, err
	}

	s.mu.Lock()
	if s.active != nil && s.active.JobID == jobID {
		s.mu.Unlock()
		return nil, fmt.Errorf("scan job %d is already running", jobID)
	}
	for _, queued := range s.queue {
		if queued.jobID == jobID {
			s.mu.Unlock()
			return nil, fmt.Errorf("scan job %d is already queued", jobID)
		}
	}
	s.mu.Unlock()

	if err := s.validator.Validate(job.ScanPath, job.MediaType); err != nil {
		return nil, err
	}

	req := &scanRequest{
		jobID:  job.ID,
		path:   job.ScanPath,
		opts:   ScanOptions{MediaType: job.MediaType},
		resume: true,
	}
	return s.submit(req), nil
}

// submit starts the request if the slot is free, otherwise queues it.
func (s *Scheduler) submit(req *scanRequest) *EnqueueResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		s.startLocked(req)
		return &EnqueueResult{Queued: false, ScanJobID: req.jobID}
	}

	s.queue = append(s.queue, req)
	return &EnqueueResult{
		Queued:        true,
		QueuePosition: len(s.queue),
		ScanJobID:     req.jobID,
	}
}

// startLocked launches a request. Caller holds s.mu.
func (s *Scheduler) startLocked(req *scanRequest) {
	task := &ScanTask{
		JobID: req.jobID,
		done:  make(chan struct{}),
	}
	s.active = task

	go func() {
		task.err = s.executeScan(req)
		close(task.done)
		s.onTaskComplete(task)
	}()
}

// onTaskComplete frees the slot and starts the next queued request. Queue
// draining happens only here so two queued items can never pop into
// execution at once.
func (s *Scheduler) onTaskComplete(task *ScanTask) {
	if task.err != nil {
		logger.Error("Scan job %d failed: %v", task.JobID, task.err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == task {
		s.active = nil
	}
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.startLocked(next)
	}
}

// ActiveTask returns the handle of the currently running scan, or nil.
func (s *Scheduler) ActiveTask() *ScanTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// QueueLength returns the number of waiting requests.
func (s *Scheduler) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Job returns the ScanJob row for a job ID.
func (s *Scheduler) Job(jobID uint32) (*database.ScanJob, error) {
	var job database.ScanJob
	if err := s.db.First(&job, jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// RecentJobs returns the most recent scan jobs, newest first.
func (s *Scheduler) RecentJobs(limit int) ([]database.ScanJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []database.ScanJob
	err := s.db.Order("created_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

// CleanupStaleJobs runs the stale-job sweep.
func (s *Scheduler) CleanupStaleJobs() (int64, error) {
	return CleanupStaleJobs(s.db, s.cfg)
}
