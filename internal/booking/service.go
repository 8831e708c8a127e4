package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/scheduling/internal/config"
	redisclient "github.com/clinicbook/scheduling/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
	EventReminderSent         = "REMINDER_SENT"
)

var (
	ErrPastDate           = errors.New("appointment time is in the past")
	ErrSlotUnavailable    = errors.New("slot is outside the provider's availability")
	ErrAccessDenied       = errors.New("actor may not modify this appointment")
	ErrCancellationWindow = errors.New("cancellation window has closed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidWindow      = errors.New("invalid availability window")
)

// Dispatcher is the slice of the notification gateway the booking flow
// uses. Send failures are operational noise, never booking failures.
type Dispatcher interface {
	SendConfirmation(ctx context.Context, appt *Appointment) error
	SendCancellation(ctx context.Context, appt *Appointment, cancelledBy uuid.UUID) error
}

type Service struct {
	repo       Repository
	locker     redisclient.Locker
	dispatcher Dispatcher
	clock      Clock
	cfg        config.Config
	log        zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, dispatcher Dispatcher, clock Clock, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		locker:     locker,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
		log:        log,
	}
}

type BookRequest struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Date       time.Time
	Start      TimeOfDay
	End        TimeOfDay // optional; zero derives it from the slot duration
	Type       AppointmentType
	Reason     string
}

// slotLockKey guards the critical section for one bookable slot.
func slotLockKey(providerID uuid.UUID, date time.Time, start TimeOfDay) string {
	return fmt.Sprintf("lock:slot:%s:%s:%s", providerID, date.Format("2006-01-02"), start)
}

// Book reserves a slot for a patient, creating the appointment in pending.
// The redis lock keeps concurrent requests for the same slot from racing
// through the availability check; the store's uniqueness constraint is the
// authoritative guard, so even without the lock a losing writer gets
// ErrSlotTaken rather than a double booking.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if _, err := s.repo.GetProviderByID(ctx, req.ProviderID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	date := DateOnly(req.Date)
	if !req.Start.On(date).After(s.clock.Now()) {
		return nil, ErrPastDate
	}

	slot, err := s.candidateSlot(ctx, req.ProviderID, date, req.Start)
	if err != nil {
		return nil, err
	}
	if req.End != 0 && req.End != slot.End {
		return nil, ErrSlotUnavailable
	}

	var created *Appointment

	err = s.locker.WithLock(ctx, slotLockKey(req.ProviderID, date, req.Start), func(lockCtx context.Context) error {
		// Re-check under the lock so most losers fail here instead of on
		// the unique index.
		active, err := s.repo.ListActiveAppointments(lockCtx, req.ProviderID, date)
		if err != nil {
			return fmt.Errorf("check active appointments: %w", err)
		}
		for _, a := range active {
			if a.Start == req.Start {
				return ErrSlotTaken
			}
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			ID:         uuid.New(),
			PatientID:  req.PatientID,
			ProviderID: req.ProviderID,
			Date:       date,
			Start:      slot.Start,
			End:        slot.End,
			Type:       req.Type,
			Status:     StatusPending,
			Reason:     req.Reason,
		})
		if err != nil {
			return err
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"provider_id": req.ProviderID.String(),
			"patient_id":  req.PatientID.String(),
			"date":        date.Format("2006-01-02"),
			"start":       slot.Start.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Someone else is claiming this slot right now.
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	s.dispatch(ctx, created.ID, "confirmation", func(dctx context.Context) error {
		return s.dispatcher.SendConfirmation(dctx, created)
	})

	return created, nil
}

// candidateSlot verifies the requested start is one of the slots the
// resolver would offer for that day, and returns it with its end time.
func (s *Service) candidateSlot(ctx context.Context, providerID uuid.UUID, date time.Time, start TimeOfDay) (Slot, error) {
	window, ok, err := s.windowFor(ctx, providerID, date)
	if err != nil {
		return Slot{}, err
	}
	if !ok {
		return Slot{}, ErrSlotUnavailable
	}
	for slot := range window.Slots(s.cfg.SlotDuration) {
		if slot.Start == start {
			return slot, nil
		}
	}
	return Slot{}, ErrSlotUnavailable
}

// Confirm moves a pending appointment to confirmed. Provider only.
func (s *Service) Confirm(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != appt.ProviderID {
		return nil, ErrAccessDenied
	}
	updated, err := s.transition(ctx, appt, StatusConfirmed, EventAppointmentConfirmed, nil)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel ends a pending or confirmed appointment. Either party may cancel,
// but only while more than the configured window remains before the start.
// The freed slot is visible to the resolver on its next read.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != appt.PatientID && actorID != appt.ProviderID {
		return nil, ErrAccessDenied
	}
	if appt.StartsAt().Sub(s.clock.Now()) <= s.cfg.CancelWindow {
		return nil, ErrCancellationWindow
	}
	updated, err := s.transition(ctx, appt, StatusCancelled, EventAppointmentCancelled, map[string]any{
		"cancelled_by": actorID.String(),
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, updated.ID, "cancellation", func(dctx context.Context) error {
		return s.dispatcher.SendCancellation(dctx, updated, actorID)
	})

	return updated, nil
}

// Complete marks a confirmed appointment as done. Provider only.
func (s *Service) Complete(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	return s.providerTransition(ctx, id, actorID, StatusCompleted, EventAppointmentCompleted)
}

// MarkNoShow records that the patient did not turn up. Provider only.
func (s *Service) MarkNoShow(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	return s.providerTransition(ctx, id, actorID, StatusNoShow, EventAppointmentNoShow)
}

func (s *Service) providerTransition(ctx context.Context, id, actorID uuid.UUID, to Status, event string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != appt.ProviderID {
		return nil, ErrAccessDenied
	}
	return s.transition(ctx, appt, to, event, nil)
}

// validTransition is the whole lifecycle: forward-only, no exit from a
// terminal status.
func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted || to == StatusNoShow
	}
	return false
}

func (s *Service) transition(ctx context.Context, appt *Appointment, to Status, event string, payload map[string]any) (*Appointment, error) {
	if !validTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}
	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// CAS missed: a concurrent transition won. From the caller's
			// point of view the appointment is no longer in the state
			// their action requires.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.logEvent(ctx, updated.ID, event, payload)
	return updated, nil
}

// ChangeStatus drives the appointment toward newStatus, applying the same
// actor and precondition rules as the dedicated methods. Optional notes let
// a completing provider file their summary in one call; they are written
// only once the transition holds, so a rejected change leaves the
// appointment untouched.
func (s *Service) ChangeStatus(ctx context.Context, id, actorID uuid.UUID, newStatus Status, notes *string) (*Appointment, error) {
	if notes != nil {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if actorID != appt.ProviderID {
			return nil, ErrAccessDenied
		}
	}

	var updated *Appointment
	var err error
	switch newStatus {
	case StatusConfirmed:
		updated, err = s.Confirm(ctx, id, actorID)
	case StatusCancelled:
		updated, err = s.Cancel(ctx, id, actorID)
	case StatusCompleted:
		updated, err = s.Complete(ctx, id, actorID)
	case StatusNoShow:
		updated, err = s.MarkNoShow(ctx, id, actorID)
	default:
		// pending is the initial state; nothing transitions into it.
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	if notes == nil {
		return updated, nil
	}

	withNotes, err := s.repo.AttachNotes(ctx, id, *notes)
	if err != nil {
		return nil, fmt.Errorf("attach notes: %w", err)
	}
	return withNotes, nil
}

// AttachNotes lets the provider record prescriptions or a diagnosis on an
// active appointment. Status is left unchanged.
func (s *Service) AttachNotes(ctx context.Context, id, actorID uuid.UUID, notes string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != appt.ProviderID {
		return nil, ErrAccessDenied
	}
	if !appt.Status.Active() {
		return nil, ErrInvalidTransition
	}
	updated, err := s.repo.AttachNotes(ctx, id, notes)
	if err != nil {
		return nil, fmt.Errorf("attach notes: %w", err)
	}
	return updated, nil
}

// SetAvailability replaces the provider's weekly windows. Providers may
// only edit their own schedule.
func (s *Service) SetAvailability(ctx context.Context, providerID, actorID uuid.UUID, windows []AvailabilityWindow) error {
	if actorID != providerID {
		return ErrAccessDenied
	}
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return err
	}
	seen := make(map[time.Weekday]bool, len(windows))
	for i := range windows {
		windows[i].ProviderID = providerID
		if err := windows[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
		if seen[windows[i].Weekday] {
			return fmt.Errorf("%w: duplicate weekday %s", ErrInvalidWindow, windows[i].Weekday)
		}
		seen[windows[i].Weekday] = true
	}
	return s.repo.ReplaceAvailability(ctx, providerID, windows)
}

// GetAppointment retrieves one appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient.
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// dispatch runs a notification send under the configured timeout. Errors
// are logged and dropped: notifications never fail the business action.
func (s *Service) dispatch(ctx context.Context, apptID uuid.UUID, kind string, send func(context.Context) error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	if err := send(dctx); err != nil {
		s.log.Warn().Err(err).
			Stringer("appointment_id", apptID).
			Str("notification", kind).
			Msg("notification dispatch failed")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Stringer("appointment_id", appointmentID).
			Msg("insert event log")
	}
}
