// Package reminder schedules one-shot deferred deliveries for confirmed
// appointments. Timers live in memory; scheduled jobs are mirrored to a
// durable store and re-armed on startup so a restart does not silently drop
// pending reminders.
package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annasalon/booking-assistant/internal/observability/metrics"
	"github.com/annasalon/booking-assistant/pkg/logging"
)

const deliverTimeout = 30 * time.Second

// Payload identifies what to remind whom about.
type Payload struct {
	UserID  int64  `json:"userId"`
	Service string `json:"service"`
	Time    string `json:"time"`
}

// Job is one scheduled reminder.
type Job struct {
	ID      string    `json:"id"`
	FireAt  time.Time `json:"fireAt"`
	Payload Payload   `json:"payload"`
}

// DeliveryFunc hands a fired reminder to the messaging collaborator. Delivery
// is fire-and-forget: an error is logged, never retried.
type DeliveryFunc func(ctx context.Context, payload Payload) error

// JobHandle allows cancelling a scheduled reminder.
type JobHandle struct {
	ID     string
	cancel func()
}

// Cancel stops the timer and removes the durable record. Safe to call after
// the job has fired.
func (h JobHandle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Scheduler arms one-shot timers and invokes the delivery callback when they
// fire.
type Scheduler struct {
	store   *Store
	deliver DeliveryFunc
	logger  *logging.Logger
	metrics *metrics.BookingMetrics

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates a scheduler. store may be nil (memory-only scheduling,
// reminders are lost over a restart).
func NewScheduler(store *Store, deliver DeliveryFunc, logger *logging.Logger, m *metrics.BookingMetrics) *Scheduler {
	if deliver == nil {
		panic("reminder: delivery callback cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		store:   store,
		deliver: deliver,
		logger:  logger,
		metrics: m,
		timers:  make(map[string]*time.Timer),
	}
}

// ScheduleOnce registers a one-shot reminder at fireAt. A fire time in the
// past fires on the next timer tick. The job is persisted before the timer is
// armed; a persistence failure is logged and scheduling proceeds in memory.
func (s *Scheduler) ScheduleOnce(ctx context.Context, fireAt time.Time, payload Payload) JobHandle {
	job := Job{
		ID:      uuid.NewString(),
		FireAt:  fireAt,
		Payload: payload,
	}

	if err := s.store.Put(ctx, job); err != nil {
		s.logger.Error("failed to persist reminder job", "error", err, "job_id", job.ID)
	}

	s.arm(job)
	s.metrics.ObserveReminder("scheduled")
	s.logger.Info("reminder scheduled",
		"job_id", job.ID,
		"user_id", payload.UserID,
		"service", payload.Service,
		"fire_at", fireAt.Format(time.RFC3339),
	)

	return JobHandle{ID: job.ID, cancel: func() { s.cancel(job.ID) }}
}

// Rearm re-registers all persisted jobs, called once at startup. Overdue jobs
// fire immediately.
func (s *Scheduler) Rearm(ctx context.Context) error {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		s.arm(job)
	}
	if len(jobs) > 0 {
		s.logger.Info("re-armed persisted reminders", "count", len(jobs))
	}
	return nil
}

// Stop cancels all in-memory timers without touching durable records, so a
// clean shutdown keeps pending jobs for the next Rearm.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) arm(job Job) {
	delay := time.Until(job.FireAt)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[job.ID] = time.AfterFunc(delay, func() { s.fire(job) })
}

func (s *Scheduler) fire(job Job) {
	s.mu.Lock()
	delete(s.timers, job.ID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if err := s.store.Remove(ctx, job.ID); err != nil {
		s.logger.Warn("failed to remove fired reminder job", "error", err, "job_id", job.ID)
	}

	if err := s.deliver(ctx, job.Payload); err != nil {
		s.metrics.ObserveReminder("failed")
		s.logger.Error("reminder delivery failed", "error", err, "job_id", job.ID, "user_id", job.Payload.UserID)
		return
	}
	s.metrics.ObserveReminder("fired")
	s.logger.Info("reminder delivered", "job_id", job.ID, "user_id", job.Payload.UserID)
}

func (s *Scheduler) cancel(jobID string) {
	s.mu.Lock()
	if timer, ok := s.timers[jobID]; ok {
		timer.Stop()
		delete(s.timers, jobID)
	}
	s.mu.Unlock()

	ctx, cancelCtx := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancelCtx()
	if err := s.store.Remove(ctx, jobID); err != nil {
		s.logger.Warn("failed to remove cancelled reminder job", "error", err, "job_id", jobID)
	}
}
