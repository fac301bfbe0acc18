package checkin

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"checkin-backend/internal/model"
	"checkin-backend/internal/store"
)

const (
	recentLimit = 50

	// jobsPerWorker sizes the queue between the key stream and the workers.
	jobsPerWorker = 16
)

// Scan is a decoded badge waiting to be turned into attendance.
type Scan struct {
	BadgeID string    `json:"badge_id"`
	At      time.Time `json:"at"`
}

// Status is the result of processing one scan.
type Status string

const (
	StatusCheckedIn        Status = "checked_in"
	StatusAlreadyCheckedIn Status = "already_checked_in"
	StatusUnknownBadge     Status = "unknown_badge"
	StatusNoTraining       Status = "no_training"
	StatusFailed           Status = "failed"
)

// Outcome reports what happened to a scan.
type Outcome struct {
	Scan         Scan   `json:"scan"`
	Status       Status `json:"status"`
	EmployeeID   int64  `json:"employee_id,omitempty"`
	EmployeeName string `json:"employee_name,omitempty"`
	TrainingID   int64  `json:"training_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// WorkerPool manages a pool of workers that record attendance for scans.
type WorkerPool struct {
	size  int
	jobs  chan Scan
	store store.Store
	seen  *cache.Cache
	dedup time.Duration

	// OnOutcome, when set, is called by workers after every processed scan.
	OnOutcome func(Outcome)

	mu     sync.Mutex
	recent []Outcome
}

// NewWorkerPool creates a new worker pool. Repeat scans of the same badge
// within dedupWindow are dropped before they are queued.
func NewWorkerPool(size int, s store.Store, dedupWindow time.Duration) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:  size,
		jobs:  make(chan Scan, size*jobsPerWorker),
		store: s,
		seen:  cache.New(dedupWindow, 2*dedupWindow),
		dedup: dedupWindow,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := logrus.WithField("worker", id)
	log.Debug("Check-in worker started")
	for {
		select {
		case scan := <-wp.jobs:
			log.WithField("badge", scan.BadgeID).Debug("Processing scan")
			wp.publish(wp.process(ctx, scan))
		case <-ctx.Done():
			log.Debug("Check-in worker shutting down")
			return
		}
	}
}

// Dispatch queues a scan without blocking; it runs on the goroutine that
// delivers keystrokes. It returns false when the same badge was dispatched
// within the dedup window, since a reader held against the pad repeats
// itself, or when the queue is full.
func (wp *WorkerPool) Dispatch(scan Scan) bool {
	log := logrus.WithField("badge", scan.BadgeID)
	if wp.dedup > 0 {
		if err := wp.seen.Add(scan.BadgeID, scan.At, cache.DefaultExpiration); err != nil {
			log.Debug("Repeat scan suppressed")
			return false
		}
	}

	select {
	case wp.jobs <- scan:
		return true
	default:
		// Forget the badge so the employee can simply scan again.
		wp.seen.Delete(scan.BadgeID)
		log.Warn("Check-in queue is full; scan dropped")
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Scan {
	return wp.jobs
}

// Recent returns the latest outcomes, newest first.
func (wp *WorkerPool) Recent() []Outcome {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	out := make([]Outcome, len(wp.recent))
	for i, o := range wp.recent {
		out[len(wp.recent)-1-i] = o
	}
	return out
}

func (wp *WorkerPool) publish(o Outcome) {
	wp.mu.Lock()
	wp.recent = append(wp.recent, o)
	if len(wp.recent) > recentLimit {
		wp.recent = wp.recent[len(wp.recent)-recentLimit:]
	}
	wp.mu.Unlock()

	if wp.OnOutcome != nil {
		wp.OnOutcome(o)
	}
}

// process resolves the badge and the running training and records attendance.
func (wp *WorkerPool) process(ctx context.Context, scan Scan) Outcome {
	out := Outcome{Scan: scan}
	log := logrus.WithField("badge", scan.BadgeID)

	employee, err := wp.store.EmployeeByBadge(ctx, scan.BadgeID)
	if err != nil {
		if errors.Is(err, store.ErrUnknownBadge) {
			log.Warn("Scan from a badge that is not enrolled")
			out.Status = StatusUnknownBadge
		} else {
			log.Errorf("Error looking up badge: %v", err)
			out.Status = StatusFailed
		}
		out.Error = err.Error()
		return out
	}
	out.EmployeeID = employee.ID
	out.EmployeeName = employee.Name

	training, err := wp.store.ActiveTraining(ctx, scan.At)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveTraining) {
			log.Warnf("Employee %s scanned with no training running", employee.Name)
			out.Status = StatusNoTraining
		} else {
			log.Errorf("Error looking up active training: %v", err)
			out.Status = StatusFailed
		}
		out.Error = err.Error()
		return out
	}
	out.TrainingID = training.ID

	created, err := wp.store.RecordAttendance(ctx, &model.Attendance{
		TrainingID:  training.ID,
		EmployeeID:  employee.ID,
		Method:      model.MethodNFC,
		CheckedInAt: scan.At,
	})
	if err != nil {
		log.Errorf("Error recording attendance: %v", err)
		out.Status = StatusFailed
		out.Error = err.Error()
		return out
	}

	if created {
		log.Infof("Employee %s checked in to %q", employee.Name, training.Title)
		out.Status = StatusCheckedIn
	} else {
		log.Infof("Employee %s was already checked in to %q", employee.Name, training.Title)
		out.Status = StatusAlreadyCheckedIn
	}
	return out
}
