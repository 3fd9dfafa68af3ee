// Package scheduler drives the periodic reminder and waitlist sweeps.
// Each tick first takes a short Redis lease so that, when several
// instances of the service run, only one executes the sweep.  Without a
// Redis client every instance sweeps independently, which is safe but
// duplicates work.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/confera/attendance/internal/config"
	"github.com/confera/attendance/internal/service"
)

// Sweeper is the engine surface the scheduler drives.
type Sweeper interface {
	SendReminders(ctx context.Context, withinDays int) ([]service.Reminder, error)
	SweepWaitlists(ctx context.Context) error
}

// Scheduler runs two independent tickers from process start: a reminder
// scan and a waitlist promotion sweep.
type Scheduler struct {
	svc   Sweeper
	redis *redis.Client // nil disables the lease

	reminderEvery time.Duration
	waitlistEvery time.Duration
	windowDays    int

	instanceID string
}

// New builds a Scheduler from the application configuration.  The redis
// client may be nil.
func New(svc Sweeper, rdb *redis.Client, cfg config.Config) *Scheduler {
	return &Scheduler{
		svc:           svc,
		redis:         rdb,
		reminderEvery: cfg.ReminderInterval,
		waitlistEvery: cfg.WaitlistInterval,
		windowDays:    cfg.ReminderWindowDays,
		instanceID:    uuid.NewString(),
	}
}

// Start launches both sweep loops.  They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, "reminders", s.reminderEvery, func(ctx context.Context) error {
		reminders, err := s.svc.SendReminders(ctx, s.windowDays)
		if err != nil {
			return err
		}
		log.Printf("scheduler: reminder sweep produced %d reminder(s)", len(reminders))
		return nil
	})
	go s.loop(ctx, "waitlist", s.waitlistEvery, s.svc.SweepWaitlists)
}

func (s *Scheduler) loop(ctx context.Context, job string, every time.Duration, run func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.leased(ctx, job, every) {
				log.Printf("scheduler: %s sweep skipped, lease held elsewhere", job)
				continue
			}
			if err := run(ctx); err != nil {
				log.Printf("scheduler: %s sweep failed: %v", job, err)
			}
		}
	}
}

// leased acquires the per-job sweep lease with SET NX.  The lease TTL
// matches the sweep interval, so a crashed holder frees the slot before
// the next tick.  Lease errors are logged and treated as "not held" so
// a Redis outage pauses sweeps rather than stampeding them.
func (s *Scheduler) leased(ctx context.Context, job string, ttl time.Duration) bool {
	if s.redis == nil {
		return true
	}
	ok, err := s.redis.SetNX(ctx, leaseKey(job), s.instanceID, ttl).Result()
	if err != nil {
		log.Printf("scheduler: lease %s failed: %v", job, err)
		return false
	}
	return ok
}

func leaseKey(job string) string {
	return "attendance:sweep:" + job
}
