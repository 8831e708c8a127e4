// Package notify defines the outbound notification gateway. The real
// transport (email, SMS) lives outside this service; the engine only needs
// something satisfying Dispatcher.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/scheduling/internal/booking"
)

// Dispatcher sends patient-facing messages. Implementations return an error
// on failed delivery; callers decide whether to retry (reminders are) or
// drop (confirmations are).
type Dispatcher interface {
	SendConfirmation(ctx context.Context, appt *booking.Appointment) error
	SendReminder(ctx context.Context, appt *booking.Appointment) error
	SendCancellation(ctx context.Context, appt *booking.Appointment, cancelledBy uuid.UUID) error
}

// LogDispatcher writes every notification to the log instead of delivering
// it. Used in dev and as the default wiring until a transport is plugged in.
type LogDispatcher struct {
	log zerolog.Logger
}

var _ Dispatcher = (*LogDispatcher)(nil)

func NewLogDispatcher(log zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) SendConfirmation(ctx context.Context, appt *booking.Appointment) error {
	d.event(appt, "confirmation").Msg("notification")
	return nil
}

func (d *LogDispatcher) SendReminder(ctx context.Context, appt *booking.Appointment) error {
	d.event(appt, "reminder").Msg("notification")
	return nil
}

func (d *LogDispatcher) SendCancellation(ctx context.Context, appt *booking.Appointment, cancelledBy uuid.UUID) error {
	d.event(appt, "cancellation").Stringer("cancelled_by", cancelledBy).Msg("notification")
	return nil
}

func (d *LogDispatcher) event(appt *booking.Appointment, kind string) *zerolog.Event {
	return d.log.Info().
		Str("kind", kind).
		Stringer("appointment_id", appt.ID).
		Stringer("patient_id", appt.PatientID).
		Str("date", appt.Date.Format("2006-01-02")).
		Str("start", appt.Start.String())
}
