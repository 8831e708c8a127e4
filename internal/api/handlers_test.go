package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/scheduling/internal/booking"
	"github.com/clinicbook/scheduling/internal/config"
)

type passLocker struct{}

func (passLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type nopDispatcher struct{}

func (nopDispatcher) SendConfirmation(context.Context, *booking.Appointment) error { return nil }
func (nopDispatcher) SendCancellation(context.Context, *booking.Appointment, uuid.UUID) error {
	return nil
}

type testServer struct {
	router     http.Handler
	patientID  uuid.UUID
	providerID uuid.UUID
}

// newTestServer freezes "now" at Tuesday 2026-09-01 10:00 UTC with one
// provider working weekdays 09:00-17:00.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := booking.NewMemoryRepository()
	patientID := uuid.New()
	providerID := uuid.New()

	repo.AddPatient(booking.Patient{ID: patientID, Name: "Ana Ferreira"})
	repo.AddProvider(booking.Provider{ID: providerID, Name: "Dr. Okafor"})

	var windows []booking.AvailabilityWindow
	for wd := time.Monday; wd <= time.Friday; wd++ {
		windows = append(windows, booking.AvailabilityWindow{
			ProviderID:  providerID,
			Weekday:     wd,
			Start:       booking.TimeOfDay(9 * 60),
			End:         booking.TimeOfDay(17 * 60),
			IsAvailable: true,
		})
	}
	require.NoError(t, repo.ReplaceAvailability(context.Background(), providerID, windows))

	clock := booking.ClockFunc(func() time.Time {
		return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	})
	cfg := config.Config{
		SlotDuration:    30 * time.Minute,
		CancelWindow:    24 * time.Hour,
		DispatchTimeout: time.Second,
	}
	svc := booking.NewService(repo, passLocker{}, nopDispatcher{}, clock, cfg, zerolog.Nop())

	router := NewRouter(RouterConfig{
		Service: svc,
		Env:     "test",
		Version: "test",
		Log:     zerolog.Nop(),
	})
	return &testServer{router: router, patientID: patientID, providerID: providerID}
}

func (ts *testServer) do(t *testing.T, method, path string, actor uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != uuid.Nil {
		req.Header.Set("X-Actor-ID", actor.String())
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) book(t *testing.T, start string) AppointmentResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/appointments", ts.patientID, BookAppointmentRequest{
		PatientID:  ts.patientID.String(),
		ProviderID: ts.providerID.String(),
		Date:       "2026-09-02",
		Start:      start,
		Type:       "in-person",
		Reason:     "checkup",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestBookEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.book(t, "09:00")
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "09:00", resp.Start)
	assert.Equal(t, "09:30", resp.End)
	assert.Equal(t, "2026-09-02", resp.Date)
}

func TestBookConflictIsDistinguishable(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "09:00")

	rec := ts.do(t, http.MethodPost, "/appointments", ts.patientID, BookAppointmentRequest{
		PatientID:  ts.patientID.String(),
		ProviderID: ts.providerID.String(),
		Date:       "2026-09-02",
		Start:      "09:00",
		Type:       "phone",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_taken", errorCode(t, rec))
}

func TestBookValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/appointments", ts.patientID, BookAppointmentRequest{
		PatientID:  "not-a-uuid",
		ProviderID: ts.providerID.String(),
		Date:       "2026-09-02",
		Start:      "09:00",
		Type:       "in-person",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/appointments", ts.patientID, BookAppointmentRequest{
		PatientID:  ts.patientID.String(),
		ProviderID: uuid.New().String(),
		Date:       "2026-09-02",
		Start:      "09:00",
		Type:       "in-person",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "provider_not_found", errorCode(t, rec))

	rec = ts.do(t, http.MethodPost, "/appointments", ts.patientID, BookAppointmentRequest{
		PatientID:  ts.patientID.String(),
		ProviderID: ts.providerID.String(),
		Date:       "2026-08-31",
		Start:      "09:00",
		Type:       "in-person",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "past_date", errorCode(t, rec))
}

func TestSlotsEndpointSubtractsBooked(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "09:00")

	rec := ts.do(t, http.MethodGet, "/providers/"+ts.providerID.String()+"/slots?date=2026-09-02", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, 15)
	assert.Equal(t, "09:30", slots[0].Start)
}

func TestCancelWithinWindowRejected(t *testing.T) {
	ts := newTestServer(t)
	// Wednesday 09:00 is 23h from the frozen Tuesday 10:00 clock.
	appt := ts.book(t, "09:00")

	rec := ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", ts.patientID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "cancellation_window_violation", errorCode(t, rec))
}

func TestLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)
	appt := ts.book(t, "11:00")
	path := "/appointments/" + appt.ID.String()

	// Patient may not confirm.
	rec := ts.do(t, http.MethodPost, path+"/confirm", ts.patientID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "access_denied", errorCode(t, rec))

	// Provider completes only after confirming.
	rec = ts.do(t, http.MethodPost, path+"/complete", ts.providerID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", errorCode(t, rec))

	rec = ts.do(t, http.MethodPost, path+"/confirm", ts.providerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, path+"/notes", ts.providerID, AttachNotesRequest{Notes: "rx: ibuprofen"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, path+"/complete", ts.providerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var final AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.Equal(t, "completed", final.Status)
}

func TestSetAvailabilityEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/providers/"+ts.providerID.String()+"/availability", ts.providerID, SetAvailabilityRequest{
		Windows: []AvailabilityWindowRequest{
			{Weekday: "wednesday", Start: "10:00", End: "12:00", IsAvailable: true},
		},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	slotsRec := ts.do(t, http.MethodGet, "/providers/"+ts.providerID.String()+"/slots?date=2026-09-02", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, slotsRec.Code)

	var slots []SlotResponse
	require.NoError(t, json.Unmarshal(slotsRec.Body.Bytes(), &slots))
	assert.Len(t, slots, 4)

	// Another actor may not rewrite this provider's schedule.
	rec = ts.do(t, http.MethodPut, "/providers/"+ts.providerID.String()+"/availability", ts.patientID, SetAvailabilityRequest{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChangeStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	appt := ts.book(t, "11:00")
	path := "/appointments/" + appt.ID.String() + "/status"

	rec := ts.do(t, http.MethodPatch, path, ts.providerID, ChangeStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	notes := "bp normal, follow-up in 6 months"
	rec = ts.do(t, http.MethodPatch, path, ts.providerID, ChangeStatusRequest{Status: "completed", Notes: &notes})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Notes)
	assert.Equal(t, notes, *resp.Notes)

	rec = ts.do(t, http.MethodPatch, path, ts.providerID, ChangeStatusRequest{Status: "pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", errorCode(t, rec))
}

func TestListAppointmentsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "09:00")
	ts.book(t, "09:30")

	rec := ts.do(t, http.MethodGet, "/appointments?patient_id="+ts.patientID.String(), uuid.Nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var appts []AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appts))
	require.Len(t, appts, 2)
	assert.Equal(t, "09:30", appts[0].Start, "most recent slot first")
	assert.Equal(t, "09:00", appts[1].Start)
}
