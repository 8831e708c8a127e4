// Package reminder runs the recurring sweep that sends each upcoming
// appointment exactly one reminder.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/scheduling/internal/booking"
	redisclient "github.com/clinicbook/scheduling/internal/redis"
)

const sweepLockKey = "lock:reminder-sweep"

// Store is the slice of the appointment repository the sweep needs.
type Store interface {
	FindRemindersDue(ctx context.Context, from, to time.Time) ([]booking.Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	InsertEvent(ctx context.Context, ev booking.EventLog) error
}

// Dispatcher sends the reminder itself.
type Dispatcher interface {
	SendReminder(ctx context.Context, appt *booking.Appointment) error
}

type Scheduler struct {
	store      Store
	dispatcher Dispatcher
	locker     redisclient.Locker // nil disables cross-instance exclusion
	clock      booking.Clock

	interval        time.Duration
	lead            time.Duration
	dispatchTimeout time.Duration

	log zerolog.Logger
}

func NewScheduler(store Store, dispatcher Dispatcher, locker redisclient.Locker, clock booking.Clock, interval, lead, dispatchTimeout time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:           store,
		dispatcher:      dispatcher,
		locker:          locker,
		clock:           clock,
		interval:        interval,
		lead:            lead,
		dispatchTimeout: dispatchTimeout,
		log:             log,
	}
}

// Run executes one sweep immediately, then one per tick until ctx is
// cancelled. Sweeps cannot overlap: this loop is the only goroutine
// touching the ticker, and each sweep completes before the next select.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("reminder scheduler started")

	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Scheduler) sweepOnce(ctx context.Context) {
	start := time.Now()
	sent, err := s.RunSweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reminder sweep failed")
		return
	}
	s.log.Info().Int("sent", sent).Dur("took", time.Since(start)).Msg("reminder sweep complete")
}

// RunSweep performs one scan-and-dispatch cycle and reports how many
// reminders went out. A dispatch failure skips that appointment (it stays
// unmarked and is retried next sweep) and never aborts the rest.
func (s *Scheduler) RunSweep(ctx context.Context) (int, error) {
	if s.locker == nil {
		return s.sweep(ctx)
	}

	var sent int
	err := s.locker.WithLock(ctx, sweepLockKey, func(lockCtx context.Context) error {
		var err error
		sent, err = s.sweep(lockCtx)
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		// Another instance is sweeping. The reminder_sent check-and-set
		// would keep this safe anyway; skipping just avoids the wasted scan.
		s.log.Debug().Msg("reminder sweep already running elsewhere")
		return 0, nil
	}
	return sent, err
}

func (s *Scheduler) sweep(ctx context.Context) (int, error) {
	from, to := s.window()

	due, err := s.store.FindRemindersDue(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("find reminders due: %w", err)
	}

	sent := 0
	for i := range due {
		appt := &due[i]

		if err := s.send(ctx, appt); err != nil {
			s.log.Warn().Err(err).
				Stringer("appointment_id", appt.ID).
				Msg("reminder dispatch failed, will retry next sweep")
			continue
		}

		marked, err := s.store.MarkReminderSent(ctx, appt.ID, s.clock.Now())
		if err != nil {
			s.log.Error().Err(err).
				Stringer("appointment_id", appt.ID).
				Msg("mark reminder sent")
			continue
		}
		if !marked {
			// Lost a race with another sweep; their mark stands.
			continue
		}

		sent++
		apptID := appt.ID
		ev := booking.EventLog{
			EventType:     booking.EventReminderSent,
			AppointmentID: &apptID,
			CreatedAt:     s.clock.Now(),
		}
		if err := s.store.InsertEvent(ctx, ev); err != nil {
			s.log.Error().Err(err).
				Stringer("appointment_id", appt.ID).
				Msg("insert reminder event")
		}
	}

	return sent, nil
}

func (s *Scheduler) send(ctx context.Context, appt *booking.Appointment) error {
	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()
	return s.dispatcher.SendReminder(dctx, appt)
}

// window is the reminder horizon: it opens at the next UTC day boundary and
// extends the configured lead. With the default 24h lead that is exactly
// "all of tomorrow".
func (s *Scheduler) window() (from, to time.Time) {
	from = booking.DateOnly(s.clock.Now()).AddDate(0, 0, 1)
	return from, from.Add(s.lead)
}
