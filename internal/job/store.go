package job

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
)

// ErrQueueFull is returned when the job queue is full
var ErrQueueFull = errors.New("queue is full")

// ErrNotFound is returned for unknown job IDs
var ErrNotFound = errors.New("job not found")

// ErrFinished is returned when changing a job that already finished
var ErrFinished = errors.New("job already finished")

// DefaultQueueSize bounds the number of queued jobs
const DefaultQueueSize = 1000

// Store manages jobs in memory
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	queue   chan *Job
	cancels map[string]context.CancelFunc
	clock   clock.PassiveClock
}

// NewStore creates a new job store. queueSize <= 0 uses DefaultQueueSize.
func NewStore(queueSize int, clk clock.PassiveClock) *Store {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{
		jobs:    make(map[string]*Job),
		queue:   make(chan *Job, queueSize),
		cancels: make(map[string]context.CancelFunc),
		clock:   clk,
	}
}

// Create queues a job for req and returns its ID.
// Returns ErrQueueFull if the queue is full (job is not created).
func (s *Store) Create(req Request) (string, error) {
	j := &Job{
		ID:        uuid.New().String(),
		Request:   req,
		Status:    StatusQueued,
		CreatedAt: s.clock.Now(),
	}

	// Register before queueing so a fast worker always finds the job
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	select {
	case s.queue <- j:
		return j.ID, nil
	default:
		s.mu.Lock()
		delete(s.jobs, j.ID)
		s.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Get returns a snapshot of a job
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *j, nil
}

// UpdateStatus moves a job to status. Finished jobs keep their status and
// ErrFinished is returned.
func (s *Store) UpdateStatus(id string, status JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.unfinishedLocked(id)
	if err != nil {
		return err
	}
	s.setStatusLocked(j, status)
	return nil
}

// Succeed stores the result and marks the job succeeded in one step, so a
// canceled job never carries a result.
func (s *Store) Succeed(id string, result *ingest.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.unfinishedLocked(id)
	if err != nil {
		return err
	}
	j.Result = result
	s.setStatusLocked(j, StatusSucceeded)
	return nil
}

// Fail records err and its kind and marks the job failed
func (s *Store) Fail(id string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, lookupErr := s.unfinishedLocked(id)
	if lookupErr != nil {
		return lookupErr
	}
	setErrorLocked(j, err)
	s.setStatusLocked(j, StatusFailed)
	return nil
}

func (s *Store) unfinishedLocked(id string) (*Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.Status.Finished() {
		return nil, fmt.Errorf("%w: %s", ErrFinished, j.Status)
	}
	return j, nil
}

func (s *Store) setStatusLocked(j *Job, status JobStatus) {
	j.Status = status
	now := s.clock.Now()

	switch status {
	case StatusRunning:
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
	case StatusSucceeded, StatusFailed, StatusCanceled:
		if j.FinishedAt == nil {
			j.FinishedAt = &now
		}
	}
}

func setErrorLocked(j *Job, err error) {
	if err != nil {
		j.LastError = err.Error()
		j.ErrorKind = KindOf(err)
	} else {
		j.LastError = ""
		j.ErrorKind = ErrorNone
	}
}

// SetCancel registers a cancel function for a job
func (s *Store) SetCancel(jobID string, cf context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	s.cancels[jobID] = cf
	return nil
}

// ClearCancel removes cancel function for a job
func (s *Store) ClearCancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cancels, jobID)
}

// Cancel cancels a job. A running job's context is canceled, which also
// interrupts a pending quota wait.
func (s *Store) Cancel(id string) error {
	var cf context.CancelFunc

	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if j.Status.Finished() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFinished, j.Status)
	}

	if cancelFunc, exists := s.cancels[id]; exists {
		cf = cancelFunc
	}

	j.Status = StatusCanceled
	j.ErrorKind = ErrorCanceled
	now := s.clock.Now()
	j.FinishedAt = &now
	s.mu.Unlock()

	// Call cancel function outside of lock
	if cf != nil {
		cf()
	}

	return nil
}

// NextJob returns the next job from the queue (blocking)
func (s *Store) NextJob(ctx context.Context) (*Job, error) {
	select {
	case j := <-s.queue:
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// QueueLen returns the number of queued jobs not yet picked up
func (s *Store) QueueLen() int {
	return len(s.queue)
}
