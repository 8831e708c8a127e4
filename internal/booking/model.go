package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no-show"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Active statuses count against the no-double-booking invariant.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type AppointmentType string

const (
	TypeInPerson AppointmentType = "in-person"
	TypeRemote   AppointmentType = "remote"
	TypePhone    AppointmentType = "phone"
)

func ParseAppointmentType(s string) (AppointmentType, error) {
	switch AppointmentType(s) {
	case TypeInPerson, TypeRemote, TypePhone:
		return AppointmentType(s), nil
	}
	return "", fmt.Errorf("unknown appointment type %q", s)
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityWindow is a provider's working hours for one weekday.
// A provider has at most one window per weekday.
type AvailabilityWindow struct {
	ProviderID  uuid.UUID
	Weekday     time.Weekday
	Start       TimeOfDay
	End         TimeOfDay
	IsAvailable bool
}

// Validate enforces start < end for available windows. Unavailable windows
// carry no usable interval, so their bounds are not checked.
func (w AvailabilityWindow) Validate() error {
	if w.IsAvailable && w.Start >= w.End {
		return fmt.Errorf("window for %s: start %s is not before end %s", w.Weekday, w.Start, w.End)
	}
	return nil
}

// Slot is a derived value, never stored on its own.
type Slot struct {
	Start TimeOfDay
	End   TimeOfDay
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	ProviderID     uuid.UUID
	Date           time.Time // midnight UTC of the appointment day
	Start          TimeOfDay
	End            TimeOfDay
	Type           AppointmentType
	Status         Status
	Reason         string
	Notes          *string
	ReminderSent   bool
	ReminderSentAt *time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StartsAt is the full wall-clock start, Date plus the slot's start time.
func (a *Appointment) StartsAt() time.Time {
	return a.Start.On(a.Date)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
