package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by CreateAppointment when another active
	// appointment already holds (provider, date, start). The partial unique
	// index makes this the losing side of a write race.
	ErrSlotTaken = errors.New("slot already taken")
)

// Repository contains all DB interactions needed by the service and the
// reminder sweep.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)

	// Availability windows, at most one per (provider, weekday).
	GetAvailability(ctx context.Context, providerID uuid.UUID) ([]AvailabilityWindow, error)
	ReplaceAvailability(ctx context.Context, providerID uuid.UUID, windows []AvailabilityWindow) error

	// Active appointments (pending or confirmed) for a provider on a date,
	// ordered by start time. This is the booked-set read for the resolver.
	ListActiveAppointments(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error)

	// CreateAppointment inserts in status pending. The store must reject a
	// second active appointment for the same (provider, date, start) with
	// ErrSlotTaken, atomically with respect to concurrent inserts.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListAppointmentsByPatient pages through a patient's history, newest
	// (date, start) first.
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// UpdateAppointmentStatus is a compare-and-set on the status column:
	// it only succeeds while the row is still in `from`, so concurrent
	// transitions on one appointment serialize instead of losing updates.
	// Returns ErrAppointmentNotFound when no row matched.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// AttachNotes appends clinical notes without touching status.
	AttachNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error)

	// FindRemindersDue returns active unsent appointments whose date falls
	// in [from, to). The bounds are taken as given; callers own any
	// day-boundary alignment.
	FindRemindersDue(ctx context.Context, from, to time.Time) ([]Appointment, error)
	// MarkReminderSent flips reminder_sent false->true. Returns false when
	// the flag was already set, which makes the flip exactly-once.
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
