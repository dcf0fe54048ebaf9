package scanner

import (
	"context"
	"flagwatch/backend/internal/models"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrScanRunning is returned when a scan is started while another is in progress.
	ErrScanRunning = errors.New("a scan is already running")
	// ErrUnknownJob is returned for job IDs the manager has never issued.
	ErrUnknownJob = errors.New("unknown scan job")
)

// Scan kinds name the user set a job was started over.
const (
	KindCases     = "cases"
	KindWatchlist = "watchlist"
	// KindUsers is an operator-supplied list of user IDs.
	KindUsers     = "users"
)

// JobState is the lifecycle of a scan job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobCancelled JobState = "cancelled"
	JobFailed    JobState = "failed"
)

// Status is a point-in-time snapshot of a job.
type Status struct {
	ID         string                   `json:"id"`
	Kind       string                   `json:"kind"`
	State      JobState                 `json:"state"`
	Checked    int                      `json:"checked"`
	Total      int                      `json:"total"`
	Results    []models.MutualityResult `json:"results,omitempty"`
	Error      string                   `json:"error,omitempty"`
	StartedAt  time.Time                `json:"startedAt"`
	FinishedAt *time.Time               `json:"finishedAt,omitempty"`
}

// Job is one cancellable scan.
type Job struct {
	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
	subs   map[chan Status]struct{}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.status.ID }

// Done is closed when the job reaches a final state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Status returns a copy of the current state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot()
}

func (j *Job) snapshot() Status {
	s := j.status
	if s.Results != nil {
		s.Results = append([]models.MutualityResult(nil), s.Results...)
	}
	return s
}

// publish must be called with mu held. Slow subscribers miss intermediate updates.
func (j *Job) publish() {
	s := j.snapshot()
	for ch := range j.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (j *Job) progress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.Checked = p.Checked
	j.status.Total = p.Total
	j.publish()
}

func (j *Job) finish(results []models.MutualityResult, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	j.status.FinishedAt = &now
	j.status.Results = results
	switch {
	case err == nil:
		j.status.State = JobCompleted
	case errors.Is(err, context.Canceled):
		j.status.State = JobCancelled
	default:
		j.status.State = JobFailed
		j.status.Error = err.Error()
	}
	final := j.snapshot()
	for ch := range j.subs {
		select {
		case ch <- final:
		default:
		}
		close(ch)
	}
	j.subs = nil
	close(j.done)
}

// Manager runs at most one scan at a time and keeps the history of finished jobs.
type Manager struct {
	scanner *Scanner
	logger  *logrus.Logger

	mu      sync.Mutex
	jobs    map[string]*Job
	current *Job
}

// NewManager Constructor
func NewManager(s *Scanner, logger *logrus.Logger) *Manager {
	return &Manager{scanner: s, logger: logger, jobs: make(map[string]*Job)}
}

// Start launches a scan over userIDs in the background.
func (m *Manager) Start(kind string, userIDs []string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return nil, ErrScanRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		status: Status{
			ID:        uuid.NewString(),
			Kind:      kind,
			State:     JobRunning,
			Total:     len(userIDs),
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[chan Status]struct{}),
	}
	m.jobs[job.ID()] = job
	m.current = job

	ids := append([]string(nil), userIDs...)
	go m.run(ctx, job, ids)
	return job, nil
}

func (m *Manager) run(ctx context.Context, job *Job, userIDs []string) {
	log := m.logger.WithFields(logrus.Fields{"job_id": job.ID(), "kind": job.status.Kind, "users": len(userIDs)})
	log.Info("Mutual-community scan started")

	results, err := m.scanner.ScanMutuality(ctx, userIDs, job.progress)
	job.cancel()

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	job.finish(results, err)
	st := job.Status()
	log.WithFields(logrus.Fields{"state": st.State, "matches": len(results), "checked": st.Checked}).Info("Mutual-community scan finished")
}

// Get returns the job by ID.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownJob, "%s", id)
	}
	return job, nil
}

// Status returns the job's snapshot.
func (m *Manager) Status(id string) (Status, error) {
	job, err := m.Get(id)
	if err != nil {
		return Status{}, err
	}
	return job.Status(), nil
}

// Current returns the running job, if any.
func (m *Manager) Current() (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Cancel stops the job from starting new users. It is a no-op for finished jobs.
func (m *Manager) Cancel(id string) error {
	job, err := m.Get(id)
	if err != nil {
		return err
	}
	job.cancel()
	return nil
}

// Subscribe streams status updates until the job finishes, then closes the channel.
// The returned func detaches the subscriber early.
func (m *Manager) Subscribe(id string) (<-chan Status, func(), error) {
	job, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan Status, 16)

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.subs == nil {
		ch <- job.snapshot()
		close(ch)
		return ch, func() {}, nil
	}
	job.subs[ch] = struct{}{}
	ch <- job.snapshot()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			job.mu.Lock()
			defer job.mu.Unlock()
			if _, ok := job.subs[ch]; ok {
				delete(job.subs, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe, nil
}
