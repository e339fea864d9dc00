package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/openleaf-portal/apiclient"
	"github.com/jrsteele09/openleaf-portal/backend"
	"github.com/jrsteele09/openleaf-portal/token/tokenfake"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          string
}

// fakeBackend answers every request with the response registered for "METHOD /path".
type fakeBackend struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]fakeResponse
	requests  []recordedRequest
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{responses: map[string]fakeResponse{}}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
		resp, ok := b.responses[r.Method+" "+r.URL.Path]
		b.mu.Unlock()

		if !ok {
			resp = fakeResponse{status: http.StatusNotFound, body: `{"message":"no route"}`}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = io.WriteString(w, resp.body)
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) respond(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[route] = fakeResponse{status: status, body: body}
}

func (b *fakeBackend) recorded() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedRequest(nil), b.requests...)
}

type backendConfig struct {
	base string
}

func (c backendConfig) GetUsersURL() string              { return c.base + "/api/users" }
func (c backendConfig) GetJournalsURL() string           { return c.base + "/api/journals" }
func (c backendConfig) GetAppointmentsURL() string       { return c.base + "/api/appointments" }
func (c backendConfig) GetAssignmentsURL() string        { return c.base + "/api/assignments" }
func (c backendConfig) GetBackendTimeout() time.Duration { return time.Second }

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func newServices(t *testing.T) (*backend.Services, *fakeBackend) {
	t.Helper()
	fake := newFakeBackend(t)
	api := apiclient.New()
	api.Use(apiclient.BearerToken(staticToken("token-1")))
	return backend.New(api, backendConfig{base: fake.server.URL}), fake
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	return decoded
}

func TestUsers_RegisterFromClaims(t *testing.T) {
	services, fake := newServices(t)
	fake.respond("POST /api/users/register", http.StatusOK, `{}`)

	claims := tokenfake.PatientClaims()
	require.NoError(t, services.Users.Register(context.Background(), claims))

	requests := fake.recorded()
	require.Len(t, requests, 1)
	require.Equal(t, "Bearer token-1", requests[0].Authorization)
	require.Equal(t, map[string]any{
		"keycloakId": "patient-kc-123",
		"username":   "john.doe",
		"email":      "john.doe@example.com",
		"firstName":  "Test",
		"lastName":   "User",
	}, decodeBody(t, requests[0].Body))
}

func TestUsers_RegisterRejectsIncompleteClaims(t *testing.T) {
	services, fake := newServices(t)

	claims := tokenfake.PatientClaims()
	claims.PreferredUsername = ""
	err := services.Users.Register(context.Background(), claims)
	require.ErrorIs(t, err, backend.ErrInvalidPayload)
	require.Contains(t, err.Error(), "username is required")

	require.ErrorIs(t, services.Users.Register(context.Background(), nil), backend.ErrInvalidPayload)
	require.Empty(t, fake.recorded())
}

func TestUsers_TherapistsAndDelete(t *testing.T) {
	services, fake := newServices(t)
	fake.respond("GET /api/users/therapists", http.StatusOK, `[{"keycloakId":"therapist-kc-123","username":"dr.smith","firstName":"Jane","lastName":"Smith"}]`)
	fake.respond("DELETE /api/users/patient-kc-123", http.StatusNoContent, ``)
	fake.respond("GET /api/users/me", http.StatusOK, `{"keycloakId":"patient-kc-123","username":"john.doe"}`)

	me, err := services.Users.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "john.doe", me.DisplayName())

	therapists, err := services.Users.Therapists(context.Background())
	require.NoError(t, err)
	require.Len(t, therapists, 1)
	require.Equal(t, "Jane Smith", therapists[0].DisplayName())

	require.NoError(t, services.Users.Delete(context.Background(), "patient-kc-123", "User requested account deletion"))
	requests := fake.recorded()
	require.Equal(t, map[string]any{"reason": "User requested account deletion"}, decodeBody(t, requests[2].Body))
}

func TestJournals(t *testing.T) {
	services, fake := newServices(t)
	fake.respond("POST /api/journals/create", http.StatusOK, `{"id":7,"content":"today","createdAt":"2024-05-01T10:00:00"}`)
	fake.respond("GET /api/journals", http.StatusOK, `[{"id":7,"content":"today"}]`)
	fake.respond("GET /api/journals/7", http.StatusOK, `{"id":7,"content":"today"}`)

	created, err := services.Journals.Create(context.Background(), "today")
	require.NoError(t, err)
	require.Equal(t, int64(7), created.ID)

	list, err := services.Journals.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := services.Journals.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "today", got.Content)

	_, err = services.Journals.Get(context.Background(), 8)
	require.ErrorIs(t, err, apiclient.ErrNotFound)

	_, err = services.Journals.Create(context.Background(), "")
	require.ErrorIs(t, err, backend.ErrInvalidPayload)
}

func TestScheduling(t *testing.T) {
	services, fake := newServices(t)
	fake.respond("POST /api/appointments", http.StatusOK, `{"id":3,"therapistKeycloakId":"therapist-kc-123","startTime":"2024-05-01T10:00","endTime":"2024-05-01T11:00","status":"AVAILABLE"}`)
	fake.respond("GET /api/appointments/therapist/therapist-kc-123/available", http.StatusOK, `[{"id":3,"status":"AVAILABLE"}]`)
	fake.respond("POST /api/appointments/3/book", http.StatusOK, `{"id":3,"patientKeycloakId":"patient-kc-123","status":"BOOKED"}`)
	fake.respond("DELETE /api/appointments/3", http.StatusOK, ``)
	fake.respond("GET /api/appointments/user", http.StatusOK, `[]`)

	slot, err := services.Scheduling.CreateSlot(context.Background(), backend.CreateSlotRequest{
		StartTime: "2024-05-01T10:00",
		EndTime:   "2024-05-01T11:00",
	})
	require.NoError(t, err)
	require.False(t, slot.Booked())

	available, err := services.Scheduling.AvailableSlots(context.Background(), "therapist-kc-123")
	require.NoError(t, err)
	require.Len(t, available, 1)

	booked, err := services.Scheduling.Book(context.Background(), 3, nil)
	require.NoError(t, err)
	require.True(t, booked.Booked())

	require.NoError(t, services.Scheduling.Cancel(context.Background(), 3))

	mine, err := services.Scheduling.UserAppointments(context.Background())
	require.NoError(t, err)
	require.Empty(t, mine)

	requests := fake.recorded()
	require.Equal(t, "{}", requests[2].Body)
}

func TestScheduling_CreateSlotValidation(t *testing.T) {
	services, fake := newServices(t)

	tests := []struct {
		name string
		req  backend.CreateSlotRequest
	}{
		{"missing start", backend.CreateSlotRequest{EndTime: "2024-05-01T11:00"}},
		{"bad format", backend.CreateSlotRequest{StartTime: "tomorrow", EndTime: "2024-05-01T11:00"}},
		{"end before start", backend.CreateSlotRequest{StartTime: "2024-05-01T11:00", EndTime: "2024-05-01T10:00"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := services.Scheduling.CreateSlot(context.Background(), tc.req)
			require.ErrorIs(t, err, backend.ErrInvalidPayload)
		})
	}
	require.Empty(t, fake.recorded())
}

func TestAssignments(t *testing.T) {
	services, fake := newServices(t)
	fake.respond("POST /api/assignments/assign", http.StatusOK, `{"id":11,"patientKeycloakId":"patient-kc-123","therapistKeycloakId":"therapist-kc-123"}`)
	fake.respond("GET /api/assignments/therapist/therapist-kc-123/patients", http.StatusOK, `[{"assignmentId":11,"patientKeycloakId":"patient-kc-123"}]`)
	fake.respond("GET /api/assignments/check", http.StatusOK, `{"authorized":true}`)
	fake.respond("GET /api/assignments/patient/patient-kc-123/therapist", http.StatusOK, `{"id":11,"therapistKeycloakId":"therapist-kc-123"}`)
	fake.respond("DELETE /api/assignments/11", http.StatusOK, ``)

	created, err := services.Assignments.Assign(context.Background(), backend.AssignRequest{
		PatientKeycloakID:   "patient-kc-123",
		TherapistKeycloakID: "therapist-kc-123",
		Notes:               "Patient self-assigned",
	})
	require.NoError(t, err)
	require.Equal(t, int64(11), created.ID)

	patients, err := services.Assignments.TherapistPatients(context.Background(), "therapist-kc-123")
	require.NoError(t, err)
	require.Equal(t, "patient-kc-123", patients[0].PatientKeycloakID)

	ok, err := services.Assignments.Check(context.Background(), "therapist-kc-123", "patient-kc-123")
	require.NoError(t, err)
	require.True(t, ok)

	assignment, err := services.Assignments.PatientTherapist(context.Background(), "patient-kc-123")
	require.NoError(t, err)
	require.Equal(t, "therapist-kc-123", assignment.TherapistKeycloakID)

	require.NoError(t, services.Assignments.Unassign(context.Background(), 11))

	requests := fake.recorded()
	require.Equal(t, "patientId=patient-kc-123&therapistId=therapist-kc-123", requests[2].Query)
}

func TestAssignments_Errors(t *testing.T) {
	services, fake := newServices(t)
	fake.respond("POST /api/assignments/assign", http.StatusConflict, `{"message":"Assignment already exists"}`)
	fake.respond("GET /api/assignments/therapist/therapist-kc-123/patients", http.StatusForbidden, `{"message":"forbidden"}`)

	_, err := services.Assignments.Assign(context.Background(), backend.AssignRequest{
		PatientKeycloakID:   "patient-kc-123",
		TherapistKeycloakID: "therapist-kc-123",
	})
	var statusErr *apiclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.True(t, statusErr.IsConflict())

	_, err = services.Assignments.TherapistPatients(context.Background(), "therapist-kc-123")
	require.ErrorIs(t, err, apiclient.ErrStaleAuthorization)

	_, err = services.Assignments.Assign(context.Background(), backend.AssignRequest{
		PatientKeycloakID:   "same",
		TherapistKeycloakID: "same",
	})
	require.ErrorIs(t, err, backend.ErrInvalidPayload)
	require.Len(t, fake.recorded(), 2)
}

func TestServices_RejectIdentifiersSpanningSegments(t *testing.T) {
	services, fake := newServices(t)
	ctx := context.Background()

	for _, id := range []string{"", ".", "..", "x/../../users", `x\y`} {
		_, err := services.Scheduling.AvailableSlots(ctx, id)
		require.ErrorIs(t, err, backend.ErrInvalidPayload, id)

		_, err = services.Assignments.TherapistPatients(ctx, id)
		require.ErrorIs(t, err, backend.ErrInvalidPayload, id)

		_, err = services.Assignments.PatientTherapist(ctx, id)
		require.ErrorIs(t, err, backend.ErrInvalidPayload, id)

		require.ErrorIs(t, services.Users.Delete(ctx, id, "User requested account deletion"), backend.ErrInvalidPayload, id)
	}
	require.Empty(t, fake.recorded())
}
