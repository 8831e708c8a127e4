package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/scheduling/internal/booking"
)

type BookAppointmentRequest struct {
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`          // YYYY-MM-DD
	Start      string `json:"start"`         // HH:MM
	End        string `json:"end,omitempty"` // HH:MM; optional, must match the slot grid
	Type       string `json:"type"`          // in-person | remote | phone
	Reason     string `json:"reason"`
}

type AttachNotesRequest struct {
	Notes string `json:"notes"`
}

type ChangeStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

type AvailabilityWindowRequest struct {
	Weekday     string `json:"weekday"` // monday..sunday
	Start       string `json:"start"`   // HH:MM
	End         string `json:"end"`     // HH:MM
	IsAvailable bool   `json:"is_available"`
}

type SetAvailabilityRequest struct {
	Windows []AvailabilityWindowRequest `json:"windows"`
}

type SlotResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	ProviderID     uuid.UUID  `json:"provider_id"`
	Date           string     `json:"date"`
	Start          string     `json:"start"`
	End            string     `json:"end"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	ReminderSent   bool       `json:"reminder_sent"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		ProviderID:     a.ProviderID,
		Date:           a.Date.Format("2006-01-02"),
		Start:          a.Start.String(),
		End:            a.End.String(),
		Type:           string(a.Type),
		Status:         string(a.Status),
		Reason:         a.Reason,
		Notes:          a.Notes,
		ReminderSent:   a.ReminderSent,
		ReminderSentAt: a.ReminderSentAt,
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
