package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests and local
// development. It upholds the same contracts as the Postgres implementation:
// the create path rejects a second active appointment for a slot atomically,
// status updates are compare-and-set, and the reminder mark flips once.
type MemoryRepository struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	providers    map[uuid.UUID]Provider
	availability map[uuid.UUID][]AvailabilityWindow
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	nextEventID  int64
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		providers:    make(map[uuid.UUID]Provider),
		availability: make(map[uuid.UUID][]AvailabilityWindow),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (m *MemoryRepository) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *MemoryRepository) AddProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
}

func (m *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetAvailability(_ context.Context, providerID uuid.UUID) ([]AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	windows := make([]AvailabilityWindow, len(m.availability[providerID]))
	copy(windows, m.availability[providerID])
	return windows, nil
}

func (m *MemoryRepository) ReplaceAvailability(_ context.Context, providerID uuid.UUID, windows []AvailabilityWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaced := make([]AvailabilityWindow, len(windows))
	copy(replaced, windows)
	m.availability[providerID] = replaced
	return nil
}

func (m *MemoryRepository) ListActiveAppointments(_ context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	date = DateOnly(date)

	var result []Appointment
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Status.Active() {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (m *MemoryRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same uniqueness the partial index enforces.
	for _, existing := range m.appointments {
		if existing.ProviderID == appt.ProviderID &&
			existing.Date.Equal(appt.Date) &&
			existing.Start == appt.Start &&
			existing.Status.Active() {
			return nil, ErrSlotTaken
		}
	}

	now := time.Now()
	stored := *appt
	stored.Status = StatusPending
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.appointments[stored.ID] = &stored

	copied := stored
	return &copied, nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	// Newest first, like the SQL ORDER BY date DESC, start_minute DESC.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.Version++
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (m *MemoryRepository) AttachNotes(_ context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	n := notes
	a.Notes = &n
	a.Version++
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (m *MemoryRepository) FindRemindersDue(_ context.Context, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if !a.Date.Before(from) && a.Date.Before(to) && a.Status.Active() && !a.ReminderSent {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (m *MemoryRepository) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	sentAt := at
	a.ReminderSentAt = &sentAt
	a.Version++
	a.UpdatedAt = at
	return true, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	ev.ID = m.nextEventID
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the audit trail, oldest first.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]EventLog, len(m.events))
	copy(events, m.events)
	return events
}

func sortAppointments(appts []Appointment) {
	for i := 1; i < len(appts); i++ {
		for j := i; j > 0 && before(&appts[j], &appts[j-1]); j-- {
			appts[j], appts[j-1] = appts[j-1], appts[j]
		}
	}
}

func before(a, b *Appointment) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Start < b.Start
}
